package executor

import (
	"encoding/json"
	"time"

	"github.com/elee1766/dextra/src/aisdk"
)

// EventEmitter stamps events with the conversation and step and forwards
// them to a sink. A nil sink drops everything.
type EventEmitter struct {
	sink           EventSink
	conversationID string
	step           int
	now            func() time.Time
}

// NewEventEmitter creates an emitter for one turn.
func NewEventEmitter(sink EventSink, conversationID string) *EventEmitter {
	return &EventEmitter{sink: sink, conversationID: conversationID, now: time.Now}
}

func (e *EventEmitter) setStep(step int) {
	if e != nil {
		e.step = step
	}
}

func (e *EventEmitter) emit(ev Event) error {
	if e == nil || e.sink == nil {
		return nil
	}
	ev.ConversationID = e.conversationID
	ev.Timestamp = e.now()
	ev.Step = e.step
	return e.sink.Send(ev)
}

func (e *EventEmitter) EmitTextDelta(delta string) error {
	if delta == "" {
		return nil
	}
	return e.emit(Event{Type: EventTextDelta, TextDelta: delta})
}

func (e *EventEmitter) EmitToolCall(call aisdk.ToolCall) error {
	return e.emit(Event{
		Type:       EventToolCall,
		ToolCallID: call.ID,
		ToolName:   call.Function.Name,
		Args:       validJSON(call.Function.RawArguments()),
	})
}

func (e *EventEmitter) EmitToolResult(call aisdk.ToolCall, result json.RawMessage, isError bool, renderHint string) error {
	return e.emit(Event{
		Type:       EventToolResult,
		ToolCallID: call.ID,
		ToolName:   call.Function.Name,
		Result:     result,
		IsError:    isError,
		RenderHint: renderHint,
	})
}

func (e *EventEmitter) EmitToolUpdate(toolCallID string, result string) error {
	raw, _ := json.Marshal(result)
	return e.emit(Event{Type: EventToolUpdate, ToolCallID: toolCallID, Result: raw})
}

// EmitError sends a client-safe message; details belong in the log.
func (e *EventEmitter) EmitError(message string) error {
	return e.emit(Event{Type: EventError, Error: message})
}

func (e *EventEmitter) EmitFinish(reason StopReason, usage aisdk.Usage, messageIDs []string) error {
	return e.emit(Event{Type: EventFinish, FinishReason: reason, Usage: &usage, MessageIDs: messageIDs})
}

// validJSON keeps raw if it parses and quotes it as a string otherwise, so
// malformed model arguments never break an event encoder.
func validJSON(raw json.RawMessage) json.RawMessage {
	if json.Valid(raw) {
		return raw
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}
