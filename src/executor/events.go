package executor

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/elee1766/dextra/src/aisdk"
)

// EventType names the events a turn emits. The values double as the SSE
// event names.
type EventType string

const (
	EventTextDelta  EventType = "text-delta"
	EventToolCall   EventType = "tool-call"
	EventToolResult EventType = "tool-result"
	// EventToolUpdate reports a result written to an invocation that was
	// already delivered, such as a resolved confirmation.
	EventToolUpdate EventType = "tool-update"
	EventError      EventType = "error"
	EventFinish     EventType = "finish"
)

// Event is one item of a turn's stream.
type Event struct {
	Type           EventType       `json:"type"`
	ConversationID string          `json:"conversationId,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Step           int             `json:"step,omitempty"`
	TextDelta      string          `json:"textDelta,omitempty"`
	ToolCallID     string          `json:"toolCallId,omitempty"`
	ToolName       string          `json:"toolName,omitempty"`
	Args           json.RawMessage `json:"args,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	// IsError marks a failed tool result.
	IsError      bool         `json:"isError,omitempty"`
	RenderHint   string       `json:"renderHint,omitempty"`
	Error        string       `json:"error,omitempty"`
	FinishReason StopReason   `json:"finishReason,omitempty"`
	Usage        *aisdk.Usage `json:"usage,omitempty"`
	MessageIDs   []string     `json:"messageIds,omitempty"`
}

// EventSink receives turn events.
type EventSink interface {
	Send(event Event) error
	Close() error
}

// EventProcessor handles events delivered by a ChannelEventSink.
type EventProcessor interface {
	Process(event Event) error
	Close() error
}

var ErrSinkClosed = errors.New("event sink is closed")

// ChannelEventSink fans events out to processors on its own goroutine.
type ChannelEventSink struct {
	events     chan Event
	processors []EventProcessor
	done       chan struct{}
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewChannelEventSink creates a sink and starts delivering to processors.
func NewChannelEventSink(bufferSize int, logger *slog.Logger, processors ...EventProcessor) *ChannelEventSink {
	if logger == nil {
		logger = slog.Default()
	}
	sink := &ChannelEventSink{
		events:     make(chan Event, bufferSize),
		processors: processors,
		done:       make(chan struct{}),
		logger:     logger,
	}
	go sink.processEvents()
	return sink
}

func (s *ChannelEventSink) Send(event Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.events <- event
	return nil
}

// Close drains pending events and closes the processors.
func (s *ChannelEventSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()

	<-s.done
	var errs []error
	for _, p := range s.processors {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *ChannelEventSink) processEvents() {
	defer close(s.done)
	for event := range s.events {
		for _, p := range s.processors {
			if err := p.Process(event); err != nil {
				s.logger.Warn("event processor failed", "type", event.Type, "error", err)
			}
		}
	}
}

// CollectingSink records events in memory.
type CollectingSink struct {
	mu     sync.Mutex
	Events []Event
}

func (c *CollectingSink) Send(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Events = append(c.Events, event)
	return nil
}

func (c *CollectingSink) Close() error { return nil }

// OfType returns the recorded events of type t.
func (c *CollectingSink) OfType(t EventType) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.Events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
