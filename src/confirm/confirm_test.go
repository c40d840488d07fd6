package confirm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/elee1766/dextra/src/aisdk/aisdktest"
	"github.com/elee1766/dextra/src/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	updates map[string]storage.ToolInvocations
	err     error
}

func (s *recordingStore) UpdateMessageToolInvocations(ctx context.Context, messageID string, inv storage.ToolInvocations) error {
	if s.err != nil {
		return s.err
	}
	if s.updates == nil {
		s.updates = map[string]storage.ToolInvocations{}
	}
	s.updates[messageID] = inv
	return nil
}

func askMessage(id, callID string) *storage.Message {
	return &storage.Message{
		ID:      id,
		Role:    "assistant",
		Content: "Swap 1 SOL for BONK?",
		ToolInvocations: storage.ToolInvocations{{
			ToolCallID: callID,
			ToolName:   "askForConfirmation",
			Args:       json.RawMessage(`{"message":"Swap 1 SOL for BONK?"}`),
			State:      storage.InvocationCall,
		}},
	}
}

func always(answer bool) Classifier {
	return ClassifierFunc(func(ctx context.Context, text string) (bool, error) { return answer, nil })
}

func newMachine(c Classifier, s Store) *Machine {
	return NewMachine(c, s, slog.New(slog.DiscardHandler))
}

func TestFindPendingPicksLatestOpenCall(t *testing.T) {
	resolved := askMessage("m1", "c1")
	resolved.ToolInvocations[0].State = storage.InvocationResult
	resolved.ToolInvocations[0].Result = json.RawMessage(`{"result":"confirm"}`)
	open := askMessage("m3", "c3")

	history := []*storage.Message{
		resolved,
		{ID: "m2", Role: "user", Content: "now swap again"},
		open,
	}
	p := FindPending(history)
	require.NotNil(t, p)
	assert.Equal(t, "m3", p.Message.ID)
	assert.Equal(t, "c3", p.ToolCallID)

	assert.Nil(t, FindPending(history[:2]))
	assert.Nil(t, FindPending(nil))
}

func TestButtonResult(t *testing.T) {
	btn := askMessage("m", "c")
	btn.ToolInvocations[0].State = storage.InvocationResult
	btn.ToolInvocations[0].Result = json.RawMessage(`{"result":"deny"}`)
	assert.Equal(t, Deny, ButtonResult(btn))

	btn.ToolInvocations[0].Result = json.RawMessage(`"confirm"`)
	assert.Equal(t, Confirm, ButtonResult(btn))

	btn.ToolInvocations[0].Result = json.RawMessage(`{"result":"maybe"}`)
	assert.Empty(t, ButtonResult(btn))

	assert.Empty(t, ButtonResult(&storage.Message{Role: "user", Content: "confirm"}))
	assert.Empty(t, ButtonResult(askMessage("m", "c")))
}

func TestResolveWithoutPendingIsNoop(t *testing.T) {
	store := &recordingStore{}
	out, err := newMachine(always(true), store).Resolve(context.Background(), &storage.Message{Role: "user", Content: "yes"}, nil)
	require.NoError(t, err)
	assert.Equal(t, StateNone, out.State)
	assert.False(t, out.ConfirmationHandled)
	assert.Empty(t, out.Updates)
	assert.Empty(t, store.updates)
}

func TestResolveFreeTextConfirm(t *testing.T) {
	store := &recordingStore{}
	history := []*storage.Message{askMessage("m1", "c1")}
	pending := FindPending(history)

	out, err := newMachine(always(true), store).Resolve(context.Background(), &storage.Message{Role: "user", Content: "yes go ahead"}, pending)
	require.NoError(t, err)
	assert.Equal(t, StateResolvedConfirm, out.State)
	assert.True(t, out.ConfirmationHandled)
	assert.Equal(t, []Update{{ToolCallID: "c1", Result: Confirm}}, out.Updates)

	// in memory
	inv := history[0].ToolInvocations[0]
	assert.Equal(t, storage.InvocationResult, inv.State)
	assert.JSONEq(t, `{"result":"confirm","message":"Swap 1 SOL for BONK?"}`, string(inv.Result))
	// durably
	require.Contains(t, store.updates, "m1")
	assert.Equal(t, storage.InvocationResult, store.updates["m1"][0].State)
	// never asked again
	assert.Nil(t, FindPending(history))
}

func TestResolveAmbiguousFailsClosed(t *testing.T) {
	for name, c := range map[string]Classifier{
		"negative": always(false),
		"error": ClassifierFunc(func(ctx context.Context, text string) (bool, error) {
			return true, errors.New("model unavailable")
		}),
		"none": nil,
	} {
		t.Run(name, func(t *testing.T) {
			history := []*storage.Message{askMessage("m1", "c1")}
			out, err := newMachine(c, &recordingStore{}).Resolve(context.Background(),
				&storage.Message{Role: "user", Content: "maybe later"}, FindPending(history))
			require.NoError(t, err)
			assert.Equal(t, StateResolvedDeny, out.State)
			assert.False(t, out.ConfirmationHandled)
			assert.Equal(t, Deny, out.Updates[0].Result)
		})
	}
}

func TestResolveButtonPressSkipsClassifier(t *testing.T) {
	called := false
	c := ClassifierFunc(func(ctx context.Context, text string) (bool, error) {
		called = true
		return false, nil
	})
	history := []*storage.Message{askMessage("m1", "c1")}
	btn := askMessage("", "c1")
	btn.ToolInvocations[0].State = storage.InvocationResult
	btn.ToolInvocations[0].Result = json.RawMessage(`{"result":"confirm"}`)

	out, err := newMachine(c, &recordingStore{}).Resolve(context.Background(), btn, FindPending(history))
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, StateResolvedConfirm, out.State)
	assert.True(t, out.ConfirmationHandled)
}

func TestResolveDenyButtonDoesNotSetHandled(t *testing.T) {
	history := []*storage.Message{askMessage("m1", "c1")}
	btn := askMessage("", "c1")
	btn.ToolInvocations[0].State = storage.InvocationResult
	btn.ToolInvocations[0].Result = json.RawMessage(`{"result":"deny"}`)

	out, err := newMachine(always(true), &recordingStore{}).Resolve(context.Background(), btn, FindPending(history))
	require.NoError(t, err)
	assert.Equal(t, StateResolvedDeny, out.State)
	assert.False(t, out.ConfirmationHandled)
}

func TestResolveButtonForAnotherCallStaysPending(t *testing.T) {
	store := &recordingStore{}
	history := []*storage.Message{askMessage("m1", "c2")}
	stale := askMessage("", "c1")
	stale.ToolInvocations[0].State = storage.InvocationResult
	stale.ToolInvocations[0].Result = json.RawMessage(`{"result":"confirm"}`)

	out, err := newMachine(always(true), store).Resolve(context.Background(), stale, FindPending(history))
	require.NoError(t, err)
	assert.Equal(t, StatePending, out.State)
	assert.False(t, out.ConfirmationHandled)
	assert.Empty(t, out.Updates)
	assert.Empty(t, store.updates)
	assert.NotNil(t, FindPending(history))
}

func TestResolveStoreFailureStillResolvesInMemory(t *testing.T) {
	history := []*storage.Message{askMessage("m1", "c1")}
	out, err := newMachine(always(true), &recordingStore{err: storage.ErrNotFound}).Resolve(context.Background(),
		&storage.Message{Role: "user", Content: "yes"}, FindPending(history))
	require.NoError(t, err)
	assert.Equal(t, StateResolvedConfirm, out.State)
	assert.Nil(t, FindPending(history))
}

func TestResolveAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(ctx, t.TempDir()+"/confirm.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	user := &storage.User{APIToken: "tok", PublicKey: "pk"}
	require.NoError(t, db.CreateUser(ctx, user))
	conv := &storage.Conversation{UserID: user.ID, Title: "swap"}
	require.NoError(t, db.CreateConversation(ctx, conv))
	ask := askMessage("", "c1")
	ask.ConversationID = conv.ID
	require.NoError(t, db.SaveMessages(ctx, conv.ID, []*storage.Message{ask}))

	history, err := db.RecentMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	_, err = newMachine(always(false), db).Resolve(ctx, &storage.Message{Role: "user", Content: "no"}, FindPending(history))
	require.NoError(t, err)

	reloaded, err := db.Messages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	assert.Nil(t, FindPending(reloaded))
	assert.JSONEq(t, `{"result":"deny","message":"Swap 1 SOL for BONK?"}`, string(reloaded[0].ToolInvocations[0].Result))
}

func TestModelClassifierExactTrueOnly(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"true", true},
		{" true\n", true},
		{"True", false},
		{"true, they agreed", false},
		{"false", false},
		{"", false},
	}
	for _, tt := range tests {
		model := aisdktest.New(aisdktest.Text(tt.answer))
		got, err := (&ModelClassifier{Model: model}).ClassifyAffirmative(context.Background(), "sure")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "answer %q", tt.answer)
		assert.Equal(t, "sure", model.Requests[0].Messages[1].Content)
	}

	_, err := (&ModelClassifier{Model: aisdktest.New()}).ClassifyAffirmative(context.Background(), "sure")
	assert.Error(t, err)
}
