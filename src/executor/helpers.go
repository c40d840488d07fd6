package executor

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/elee1766/dextra/src/aisdk"
	"github.com/elee1766/dextra/src/confirm"
	"github.com/elee1766/dextra/src/storage"
)

const (
	maxTitleRunes = 100
	defaultTitle  = "New Conversation"
)

// ToModelMessages converts stored history into wire messages. Resolved
// invocations become tool calls followed by their results; invocations still
// waiting on the client are left out since they have nothing to pair with.
func ToModelMessages(history []*storage.Message) []*aisdk.Message {
	out := make([]*aisdk.Message, 0, len(history))
	for _, m := range history {
		if m == nil {
			continue
		}
		switch m.Role {
		case aisdk.RoleUser:
			if m.Content != "" {
				out = append(out, &aisdk.Message{Role: aisdk.RoleUser, Content: m.Content, CreatedAt: m.CreatedAt})
			}
		case aisdk.RoleAssistant:
			msg := &aisdk.Message{Role: aisdk.RoleAssistant, Content: m.Content, CreatedAt: m.CreatedAt}
			var results []*aisdk.Message
			for _, inv := range m.ToolInvocations {
				if inv.State != storage.InvocationResult || len(inv.Result) == 0 {
					continue
				}
				args := "{}"
				if len(inv.Args) > 0 {
					args = string(inv.Args)
				}
				msg.ToolCalls = append(msg.ToolCalls, aisdk.ToolCall{
					ID:       inv.ToolCallID,
					Type:     "function",
					Function: aisdk.FunctionCall{Name: inv.ToolName, Arguments: args},
				})
				results = append(results, &aisdk.Message{
					Role:       aisdk.RoleTool,
					Name:       inv.ToolName,
					ToolCallID: inv.ToolCallID,
					Content:    string(inv.Result),
				})
			}
			if msg.Content == "" && len(msg.ToolCalls) == 0 {
				continue
			}
			out = append(out, msg)
			out = append(out, results...)
		}
	}
	return out
}

// incomingMessages is what the model sees for the new message. A button
// press is replaced by a plain user message saying confirm or deny.
func incomingMessages(msg *storage.Message) []*aisdk.Message {
	if value := confirm.ButtonResult(msg); value != "" {
		return []*aisdk.Message{{Role: aisdk.RoleUser, Content: value}}
	}
	if msg.Role == aisdk.RoleUser && msg.Content != "" {
		return []*aisdk.Message{{Role: aisdk.RoleUser, Content: msg.Content}}
	}
	return nil
}

// CollectAttachments gathers the attachments of every message in history.
func CollectAttachments(history []*storage.Message) []storage.Attachment {
	var out []storage.Attachment
	for _, m := range history {
		if m != nil {
			out = append(out, m.Attachments...)
		}
	}
	return out
}

// Stamper hands out strictly increasing timestamps one millisecond apart,
// starting after the newest stored message.
type Stamper struct {
	next time.Time
}

// NewStamper starts at now, or one millisecond after latest when latest is
// not before now.
func NewStamper(now time.Time, latest *time.Time) *Stamper {
	start := now.UTC().Truncate(time.Millisecond)
	if latest != nil && !start.After(*latest) {
		start = latest.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	}
	return &Stamper{next: start}
}

// Next returns the next timestamp.
func (s *Stamper) Next() time.Time {
	t := s.next
	s.next = s.next.Add(time.Millisecond)
	return t
}

// Finalize drops messages with neither text nor invocations and assigns
// ids, the conversation and increasing timestamps to the rest.
func Finalize(msgs []*storage.Message, conversationID string, stamps *Stamper) []*storage.Message {
	out := make([]*storage.Message, 0, len(msgs))
	for _, m := range msgs {
		if m == nil || m.Empty() {
			continue
		}
		if m.ID == "" {
			m.ID = storage.NewID()
		}
		m.ConversationID = conversationID
		m.CreatedAt = stamps.Next()
		out = append(out, m)
	}
	return out
}

// Title derives a conversation title from the first user message.
func Title(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	if title == "" {
		return defaultTitle
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = strings.TrimSpace(string([]rune(title)[:maxTitleRunes]))
	}
	return title
}
