package confirm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	"github.com/elee1766/dextra/src/storage"
)

// Store persists rewritten invocations.
type Store interface {
	UpdateMessageToolInvocations(ctx context.Context, messageID string, invocations storage.ToolInvocations) error
}

// Update tells a live client that an invocation now has a result.
type Update struct {
	ToolCallID string `json:"toolCallId"`
	Result     string `json:"result"`
}

// Outcome is what Resolve decided.
type Outcome struct {
	State   State
	Updates []Update
	// ConfirmationHandled is set only when the user agreed.
	ConfirmationHandled bool
}

// Machine resolves pending confirmations.
type Machine struct {
	classifier Classifier
	store      Store
	logger     *slog.Logger
}

// NewMachine creates a Machine. A nil classifier denies every free-text reply.
func NewMachine(classifier Classifier, store Store, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{classifier: classifier, store: store, logger: logger.With("component", "confirm")}
}

// Resolve reconciles current with pending. With nothing pending it returns
// StateNone. A user message is classified; a button press is adopted as is
// when it answers the pending call, and leaves it pending otherwise.
// The pending invocation is rewritten in place and in the store.
func (m *Machine) Resolve(ctx context.Context, current *storage.Message, pending *Pending) (*Outcome, error) {
	inv := pending.Invocation()
	if inv == nil || !isOpenConfirmation(*inv) {
		return &Outcome{State: StateNone}, nil
	}
	if current == nil {
		return &Outcome{State: StatePending}, nil
	}

	var value string
	switch {
	case current.Role == "user":
		value = m.classify(ctx, current.Content)
	case ButtonResult(current) != "":
		if id := current.ToolInvocations[0].ToolCallID; id != pending.ToolCallID {
			m.logger.DebugContext(ctx, "ignoring button for another confirmation",
				"tool_call_id", id, "pending_tool_call_id", pending.ToolCallID)
			return &Outcome{State: StatePending}, nil
		}
		value = ButtonResult(current)
	default:
		return &Outcome{State: StatePending}, nil
	}

	result, err := json.Marshal(Result{Result: value, Message: pending.Message.Content})
	if err != nil {
		return nil, err
	}
	invocations := slices.Clone(pending.Message.ToolInvocations)
	target := invocations.Find(pending.ToolCallID)
	target.State = storage.InvocationResult
	target.Result = result

	if m.store != nil {
		if err := m.store.UpdateMessageToolInvocations(ctx, pending.Message.ID, invocations); err != nil {
			m.logger.ErrorContext(ctx, "failed to persist confirmation result",
				"message_id", pending.Message.ID, "tool_call_id", pending.ToolCallID, "error", err)
		}
	}
	pending.Message.ToolInvocations = invocations

	out := &Outcome{
		State:               StateResolvedDeny,
		Updates:             []Update{{ToolCallID: pending.ToolCallID, Result: value}},
		ConfirmationHandled: value == Confirm,
	}
	if value == Confirm {
		out.State = StateResolvedConfirm
	}
	m.logger.DebugContext(ctx, "resolved confirmation", "tool_call_id", pending.ToolCallID, "state", out.State)
	return out, nil
}

// classify fails closed: errors and missing classifiers mean deny.
func (m *Machine) classify(ctx context.Context, text string) string {
	if m.classifier == nil {
		return Deny
	}
	ok, err := m.classifier.ClassifyAffirmative(ctx, text)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			m.logger.WarnContext(ctx, "confirmation classifier failed", "error", err)
		}
		return Deny
	}
	if ok {
		return Confirm
	}
	return Deny
}
