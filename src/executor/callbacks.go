package executor

import (
	"encoding/json"

	"github.com/elee1766/dextra/src/aisdk"
)

// Callbacks observe tool execution in loops that have no event sink.
type Callbacks struct {
	// OnToolCall is called before a tool runs.
	OnToolCall func(call aisdk.ToolCall)
	// OnToolResult is called with the payload fed back to the model.
	OnToolResult func(call aisdk.ToolCall, result json.RawMessage, isError bool)
}

func (c *Callbacks) toolCall(call aisdk.ToolCall) {
	if c == nil || c.OnToolCall == nil {
		return
	}
	c.OnToolCall(call)
}

func (c *Callbacks) toolResult(call aisdk.ToolCall, result json.RawMessage, isError bool) {
	if c == nil || c.OnToolResult == nil {
		return
	}
	c.OnToolResult(call, result, isError)
}
