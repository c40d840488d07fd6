package executor

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/elee1766/dextra/src/agent"
	"github.com/elee1766/dextra/src/aisdk"
	"github.com/elee1766/dextra/src/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitle(t *testing.T) {
	assert.Equal(t, "New Conversation", Title("   "))
	assert.Equal(t, "swap SOL for BONK", Title("swap  SOL\nfor BONK"))
	long := strings.Repeat("é", 150)
	assert.Equal(t, 100, len([]rune(Title(long))))
}

func TestStamper(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewStamper(now, nil)
	assert.Equal(t, now, s.Next())
	assert.Equal(t, now.Add(time.Millisecond), s.Next())

	latest := now.Add(time.Second)
	s = NewStamper(now, &latest)
	assert.Equal(t, latest.Add(time.Millisecond), s.Next())
}

func TestFinalizeDropsEmptyMessages(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	msgs := Finalize([]*storage.Message{
		{Role: "assistant"},
		{Role: "assistant", Content: "hi"},
		{Role: "assistant", ToolInvocations: storage.ToolInvocations{{ToolCallID: "c", ToolName: "x", State: "call"}}},
	}, "conv", NewStamper(now, nil))
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Equal(t, "conv", m.ConversationID)
		assert.NotEmpty(t, m.ID)
	}
	assert.True(t, msgs[1].CreatedAt.After(msgs[0].CreatedAt))
}

func TestToModelMessagesPairsResolvedCalls(t *testing.T) {
	history := []*storage.Message{
		{Role: "user", Content: "price of SOL"},
		{Role: "assistant", ToolInvocations: storage.ToolInvocations{
			{ToolCallID: "c1", ToolName: "getPrice", Args: json.RawMessage(`{"symbol":"SOL"}`), State: "result", Result: json.RawMessage(`{"price":1}`)},
			{ToolCallID: "c2", ToolName: "askForConfirmation", State: "call"},
		}},
		{Role: "assistant", ToolInvocations: storage.ToolInvocations{{ToolCallID: "c3", ToolName: "askForConfirmation", State: "call"}}},
		{Role: "user", Content: ""},
	}
	got := ToModelMessages(history)
	require.Len(t, got, 3)
	assert.Equal(t, aisdk.RoleUser, got[0].Role)
	require.Len(t, got[1].ToolCalls, 1)
	assert.Equal(t, "c1", got[1].ToolCalls[0].ID)
	assert.Equal(t, `{"symbol":"SOL"}`, got[1].ToolCalls[0].Function.Arguments)
	assert.Equal(t, aisdk.RoleTool, got[2].Role)
	assert.Equal(t, `{"price":1}`, got[2].Content)
}

func TestBuildSystemPrompt(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)
	prompt := BuildSystemPrompt("Base instructions.", PromptContext{
		Attachments:    []storage.Attachment{{ContentType: "image/png", URL: "https://x/y.png"}},
		Caller:         &agent.Caller{UserID: "u1", PublicKey: "PK", DegenMode: true},
		ConversationID: "c1",
		Now:            now,
		Unsupported:    []string{"INVALID_TOOL:bridge"},
	})
	assert.True(t, strings.HasPrefix(prompt, "Base instructions.\n\n"))
	assert.Contains(t, prompt, `History of attachments: [{"type":"image/png","data":"https://x/y.png"}]`)
	assert.Contains(t, prompt, "User Solana wallet public key: PK")
	assert.Contains(t, prompt, "User ID: u1")
	assert.Contains(t, prompt, "Conversation ID: c1")
	assert.Contains(t, prompt, "Degen Mode: true")
	assert.Contains(t, prompt, "Unsupported requests: bridge.")
	assert.True(t, strings.HasSuffix(prompt, "approximateCurrentTime: 2025-03-01T08:30:00Z }"))
}

func TestChannelEventSinkDelivers(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsoleEventProcessor(&buf, ConsoleProcessorConfig{ShowToolResults: true, MaxResultPreview: 12})
	sink := NewChannelEventSink(4, nil, console)

	require.NoError(t, sink.Send(Event{Type: EventTextDelta, TextDelta: "Checking"}))
	require.NoError(t, sink.Send(Event{Type: EventToolCall, ToolName: "getPrice"}))
	require.NoError(t, sink.Send(Event{Type: EventToolResult, ToolName: "getPrice", Result: json.RawMessage(`{"symbol":"SOL","price":1.5}`)}))
	require.NoError(t, sink.Send(Event{Type: EventFinish, FinishReason: StopClientTool}))
	require.NoError(t, sink.Close())
	assert.ErrorIs(t, sink.Send(Event{Type: EventTextDelta}), ErrSinkClosed)

	out := buf.String()
	assert.Contains(t, out, "Checking\n")
	assert.Contains(t, out, "getPrice")
	assert.Contains(t, out, "…")
	assert.NotContains(t, out, "1.5")
	assert.Contains(t, out, "waiting for your confirmation")
}
