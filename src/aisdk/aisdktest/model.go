// Package aisdktest provides a scripted aisdk.ModelClient for tests.
package aisdktest

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/elee1766/dextra/src/aisdk"
)

// ErrNoReply is returned when the script is exhausted.
var ErrNoReply = errors.New("aisdktest: no scripted reply")

// Reply is one scripted model answer.
type Reply struct {
	Content   string
	ToolCalls []aisdk.ToolCall
	Usage     aisdk.Usage
	Err       error
}

// Text is a plain text reply.
func Text(content string) Reply {
	return Reply{Content: content, Usage: aisdk.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}
}

// Calls is a reply that calls tools.
func Calls(calls ...aisdk.ToolCall) Reply {
	return Reply{ToolCalls: calls, Usage: aisdk.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}
}

// Call builds a tool call.
func Call(id, name, args string) aisdk.ToolCall {
	return aisdk.ToolCall{ID: id, Type: "function", Function: aisdk.FunctionCall{Name: name, Arguments: args}}
}

// Model replays scripted replies in order. When Func is set it is consulted
// instead of the queue. A reply that arrives after ctx is done is dropped in
// favour of ctx's error, like a cancelled HTTP request.
type Model struct {
	mu       sync.Mutex
	Replies  []Reply
	Func     func(req *aisdk.ChatCompletionRequest) Reply
	Requests []*aisdk.ChatCompletionRequest
	Info     aisdk.ModelInfo
}

var _ aisdk.ModelClient = (*Model)(nil)

// New returns a model that replays replies.
func New(replies ...Reply) *Model {
	return &Model{Replies: replies, Info: aisdk.ModelInfo{ID: "test/model"}}
}

func (m *Model) next(req *aisdk.ChatCompletionRequest) Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *req
	cp.Messages = append([]*aisdk.Message(nil), req.Messages...)
	m.Requests = append(m.Requests, &cp)
	if m.Func != nil {
		return m.Func(req)
	}
	if len(m.Replies) == 0 {
		return Reply{Err: ErrNoReply}
	}
	r := m.Replies[0]
	m.Replies = m.Replies[1:]
	return r
}

// Calls returns the number of requests seen.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

func (m *Model) CreateChatCompletion(ctx context.Context, req *aisdk.ChatCompletionRequest) (*aisdk.ChatCompletionResponse, error) {
	r := m.next(req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}
	finish := "stop"
	if len(r.ToolCalls) > 0 {
		finish = "tool_calls"
	}
	return &aisdk.ChatCompletionResponse{
		ID:    "gen-test",
		Model: m.Info.ID,
		Choices: []aisdk.Choice{{
			Message:      aisdk.Message{Role: aisdk.RoleAssistant, Content: r.Content, ToolCalls: r.ToolCalls},
			FinishReason: finish,
		}},
		Usage: r.Usage,
	}, nil
}

func (m *Model) CreateChatCompletionStream(ctx context.Context, req *aisdk.ChatCompletionRequest) (aisdk.StreamInterface, error) {
	r := m.next(req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}
	var chunks []*aisdk.StreamChunk
	// split text so consumers see more than one delta
	for i := 0; i < len(r.Content); i += 8 {
		end := min(i+8, len(r.Content))
		chunks = append(chunks, &aisdk.StreamChunk{Choices: []aisdk.Choice{{Delta: &aisdk.Message{Content: r.Content[i:end]}}}})
	}
	for i, tc := range r.ToolCalls {
		idx := i
		tc.Index = &idx
		chunks = append(chunks, &aisdk.StreamChunk{Choices: []aisdk.Choice{{Delta: &aisdk.Message{ToolCalls: []aisdk.ToolCall{tc}}}}})
	}
	finish := "stop"
	if len(r.ToolCalls) > 0 {
		finish = "tool_calls"
	}
	usage := r.Usage
	chunks = append(chunks, &aisdk.StreamChunk{Choices: []aisdk.Choice{{FinishReason: finish}}, Usage: &usage})
	return &sliceStream{chunks: chunks}, nil
}

func (m *Model) GetModelInfo() *aisdk.ModelInfo {
	return &m.Info
}

type sliceStream struct {
	chunks []*aisdk.StreamChunk
}

func (s *sliceStream) Read() (*aisdk.StreamChunk, error) {
	if len(s.chunks) == 0 {
		return nil, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *sliceStream) Close() error { return nil }
