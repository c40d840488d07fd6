package aisdk

import (
	"errors"
	"io"
	"sort"
	"strings"
)

// StreamCallback is a function called for each chunk in a stream.
type StreamCallback func(chunk *StreamChunk) error

// StreamToCallback reads a stream and calls the callback for each chunk.
func StreamToCallback(stream StreamInterface, callback StreamCallback) error {
	defer stream.Close()

	for {
		chunk, err := stream.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if chunk == nil {
			return nil
		}
		if err := callback(chunk); err != nil {
			return err
		}
	}
}

// StreamAggregator folds streamed deltas back into a single assistant message.
// Tool call fragments are keyed by their delta index.
type StreamAggregator struct {
	ID           string
	Model        string
	FinishReason string
	Usage        *Usage

	content   strings.Builder
	toolCalls map[int]*ToolCall
	names     map[int]*strings.Builder
	args      map[int]*strings.Builder
}

// NewStreamAggregator creates a new stream aggregator.
func NewStreamAggregator() *StreamAggregator {
	return &StreamAggregator{
		toolCalls: make(map[int]*ToolCall),
		names:     make(map[int]*strings.Builder),
		args:      make(map[int]*strings.Builder),
	}
}

// AddChunk processes a stream chunk and updates the aggregated state.
func (a *StreamAggregator) AddChunk(chunk *StreamChunk) {
	if a.ID == "" {
		a.ID = chunk.ID
	}
	if a.Model == "" {
		a.Model = chunk.Model
	}
	if chunk.Usage != nil {
		u := *chunk.Usage
		a.Usage = &u
	}
	if len(chunk.Choices) == 0 {
		return
	}

	choice := chunk.Choices[0]
	if choice.FinishReason != "" {
		a.FinishReason = choice.FinishReason
	}
	if choice.Delta == nil {
		return
	}
	a.content.WriteString(choice.Delta.Content)

	for i, tc := range choice.Delta.ToolCalls {
		idx := i
		if tc.Index != nil {
			idx = *tc.Index
		}
		call, ok := a.toolCalls[idx]
		if !ok {
			call = &ToolCall{Type: "function"}
			a.toolCalls[idx] = call
			a.names[idx] = &strings.Builder{}
			a.args[idx] = &strings.Builder{}
		}
		if tc.ID != "" {
			call.ID = tc.ID
		}
		a.names[idx].WriteString(tc.Function.Name)
		a.args[idx].WriteString(tc.Function.Arguments)
	}
}

// Content returns the text accumulated so far.
func (a *StreamAggregator) Content() string {
	return a.content.String()
}

// ToolCalls returns the completed tool calls ordered by delta index.
func (a *StreamAggregator) ToolCalls() []ToolCall {
	indexes := make([]int, 0, len(a.toolCalls))
	for idx := range a.toolCalls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out := make([]ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		call := *a.toolCalls[idx]
		call.Function.Name = a.names[idx].String()
		call.Function.Arguments = a.args[idx].String()
		out = append(out, call)
	}
	return out
}

// ToResponse converts the aggregated stream into a ChatCompletionResponse.
func (a *StreamAggregator) ToResponse() *ChatCompletionResponse {
	response := &ChatCompletionResponse{
		ID:     a.ID,
		Object: "chat.completion",
		Model:  a.Model,
		Choices: []Choice{
			{
				Message: Message{
					Role:      RoleAssistant,
					Content:   a.content.String(),
					ToolCalls: a.ToolCalls(),
				},
				FinishReason: a.FinishReason,
			},
		},
	}
	if a.Usage != nil {
		response.Usage = *a.Usage
	}
	return response
}

// AggregateStream reads a stream and returns the aggregated response.
func AggregateStream(stream StreamInterface) (*ChatCompletionResponse, error) {
	aggregator := NewStreamAggregator()
	err := StreamToCallback(stream, func(chunk *StreamChunk) error {
		aggregator.AddChunk(chunk)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return aggregator.ToResponse(), nil
}
