package aisdk

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceStream struct {
	chunks []*StreamChunk
	closed bool
}

func (s *sliceStream) Read() (*StreamChunk, error) {
	if len(s.chunks) == 0 {
		return nil, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

func intPtr(i int) *int { return &i }

func TestAggregateStreamMergesToolCallFragments(t *testing.T) {
	stream := &sliceStream{chunks: []*StreamChunk{
		{ID: "gen-1", Model: "m", Choices: []Choice{{Delta: &Message{Content: "Look"}}}},
		{Choices: []Choice{{Delta: &Message{Content: "ing up"}}}},
		{Choices: []Choice{{Delta: &Message{ToolCalls: []ToolCall{
			{Index: intPtr(0), ID: "call_1", Function: FunctionCall{Name: "searchToken", Arguments: `{"que`}},
		}}}}},
		{Choices: []Choice{{Delta: &Message{ToolCalls: []ToolCall{
			{Index: intPtr(0), Function: FunctionCall{Arguments: `ry":"BONK"}`}},
			{Index: intPtr(1), ID: "call_2", Function: FunctionCall{Name: "readPage", Arguments: `{}`}},
		}}}}},
		{Choices: []Choice{{FinishReason: "tool_calls"}}, Usage: &Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}},
	}}

	resp, err := AggregateStream(stream)
	require.NoError(t, err)
	assert.True(t, stream.closed)

	msg := resp.Choices[0].Message
	assert.Equal(t, "Looking up", msg.Content)
	require.Len(t, msg.ToolCalls, 2)
	assert.Equal(t, "call_1", msg.ToolCalls[0].ID)
	assert.Equal(t, "searchToken", msg.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"query":"BONK"}`, msg.ToolCalls[0].Function.Arguments)
	assert.Equal(t, "readPage", msg.ToolCalls[1].Function.Name)
	assert.Equal(t, "tool_calls", resp.Choices[0].FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestUsageAdd(t *testing.T) {
	a := Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}
	b := Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30}
	assert.Equal(t, Usage{PromptTokens: 11, CompletionTokens: 22, TotalTokens: 33}, a.Add(b))
	assert.False(t, Usage{}.Valid())
	assert.True(t, a.Valid())
}

func TestRawArgumentsDefaultsToEmptyObject(t *testing.T) {
	assert.Equal(t, "{}", string(FunctionCall{}.RawArguments()))
	assert.Equal(t, `{"a":1}`, string(FunctionCall{Arguments: `{"a":1}`}.RawArguments()))
}
