package orclient

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/elee1766/dextra/src/aisdk"
)

const maxEventSize = 1 << 20

var _ aisdk.StreamInterface = (*sseStream)(nil)

// sseStream decodes an OpenAI-style server-sent event body into chunks.
// Comment lines (OpenRouter sends ": OPENROUTER PROCESSING" keepalives) and
// blank separators are skipped; "data: [DONE]" ends the stream.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner

	mu     sync.Mutex
	closed bool
	done   bool
}

func newSSEStream(body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)
	return &sseStream{body: body, scanner: scanner}
}

// Read returns the next chunk or io.EOF.
func (s *sseStream) Read() (*aisdk.StreamChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.done {
		return nil, io.EOF
	}

	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 || line[0] == ':' {
			continue
		}
		data, ok := bytes.CutPrefix(line, []byte("data:"))
		if !ok {
			// event:, id: and retry: fields carry nothing we need
			continue
		}
		data = bytes.TrimSpace(data)
		if bytes.Equal(data, []byte("[DONE]")) {
			s.done = true
			return nil, io.EOF
		}

		var probe struct {
			Error *json.RawMessage `json:"error"`
		}
		if err := json.Unmarshal(data, &probe); err == nil && probe.Error != nil {
			var errResp ErrorResponse
			_ = json.Unmarshal(data, &errResp)
			return nil, &APIError{
				StatusCode: 200,
				Type:       errResp.Error.Type,
				Message:    errResp.Error.Message,
				Code:       codeString(errResp.Error.Code),
				Details:    errResp.Error.Metadata,
			}
		}

		var chunk aisdk.StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			return nil, fmt.Errorf("failed to decode stream chunk: %w", err)
		}
		return &chunk, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}
	s.done = true
	return nil, io.EOF
}

// Close releases the response body.
func (s *sseStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
