// Package confirm reconciles a user's reply with the confirmation the
// assistant is waiting on.
package confirm

import (
	"encoding/json"
	"strings"

	"github.com/elee1766/dextra/src/catalog"
	"github.com/elee1766/dextra/src/storage"
)

// State of the most recent confirmation in a conversation.
type State int

const (
	StateNone State = iota
	StatePending
	StateResolvedConfirm
	StateResolvedDeny
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolvedConfirm:
		return "confirm"
	case StateResolvedDeny:
		return "deny"
	default:
		return "none"
	}
}

// Values a confirmation result carries.
const (
	Confirm = "confirm"
	Deny    = "deny"
)

// Result is the payload stored on a resolved confirmation invocation.
type Result struct {
	Result  string `json:"result"`
	Message string `json:"message,omitempty"`
}

// Pending points at an unresolved confirmation inside history.
type Pending struct {
	Message    *storage.Message
	ToolCallID string
}

// Invocation returns the pending invocation.
func (p *Pending) Invocation() *storage.ToolInvocation {
	if p == nil || p.Message == nil {
		return nil
	}
	return p.Message.ToolInvocations.Find(p.ToolCallID)
}

// FindPending returns the latest assistant message holding a confirmation
// call that has no result yet, or nil.
func FindPending(history []*storage.Message) *Pending {
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m == nil || m.Role != "assistant" {
			continue
		}
		for j := len(m.ToolInvocations) - 1; j >= 0; j-- {
			inv := m.ToolInvocations[j]
			if isOpenConfirmation(inv) {
				return &Pending{Message: m, ToolCallID: inv.ToolCallID}
			}
		}
	}
	return nil
}

func isOpenConfirmation(inv storage.ToolInvocation) bool {
	return inv.ToolName == catalog.ConfirmationTool &&
		inv.State == storage.InvocationCall &&
		len(inv.Result) == 0
}

// ButtonResult returns "confirm" or "deny" when msg is a button press: an
// assistant message whose first invocation is a resolved confirmation.
// Otherwise it returns "".
func ButtonResult(msg *storage.Message) string {
	if msg == nil || msg.Role != "assistant" || len(msg.ToolInvocations) == 0 {
		return ""
	}
	inv := msg.ToolInvocations[0]
	if inv.ToolName != catalog.ConfirmationTool || inv.State != storage.InvocationResult {
		return ""
	}
	return parseResult(inv.Result)
}

// parseResult accepts {"result":"confirm"} or a bare "confirm" string.
func parseResult(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var value string
	var res Result
	if err := json.Unmarshal(raw, &res); err == nil {
		value = res.Result
	} else if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case Confirm:
		return Confirm
	case Deny:
		return Deny
	}
	return ""
}
