package runner

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/elee1766/dextra/src/agent"
	"github.com/elee1766/dextra/src/aisdk"
	"github.com/elee1766/dextra/src/aisdk/aisdktest"
	"github.com/elee1766/dextra/src/catalog"
	"github.com/elee1766/dextra/src/executor"
	"github.com/elee1766/dextra/src/orchestrator"
	"github.com/elee1766/dextra/src/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestIsDue(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	freq := int64(3600)

	tests := []struct {
		name   string
		action *storage.Action
		want   bool
	}{
		{"never ran", &storage.Action{Frequency: &freq}, true},
		{"exactly one period ago", &storage.Action{Frequency: &freq, LastExecutedAt: ptr(now.Add(-time.Hour))}, true},
		{"one second short", &storage.Action{Frequency: &freq, LastExecutedAt: ptr(now.Add(-time.Hour + time.Second))}, false},
		{"long overdue", &storage.Action{Frequency: &freq, LastExecutedAt: ptr(now.Add(-48 * time.Hour))}, true},
		{"no frequency", &storage.Action{}, false},
		{"zero frequency", &storage.Action{Frequency: ptr(int64(0))}, false},
		{"nil action", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDue(tt.action, now))
		})
	}
}

func TestFrequencyLabel(t *testing.T) {
	tests := map[int64]string{
		3600:    "Hourly",
		86400:   "Daily",
		604800:  "Weekly",
		2592000: "Monthly",
		60:      "Every 1 Minute",
		900:     "Every 15 Minutes",
		7200:    "Every 2 Hours",
		172800:  "Every 2 Days",
	}
	for seconds, want := range tests {
		assert.Equal(t, want, FrequencyLabel(seconds), "seconds=%d", seconds)
	}
}

func TestApplyPausesAfterRepeatedFailures(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	third := Apply(&storage.Action{ID: "a1", TimesExecuted: 2}, false, now, DefaultPolicy())
	assert.Equal(t, int64(3), third.Action.TimesExecuted)
	assert.True(t, third.Action.Paused)
	assert.True(t, third.PausedNow)
	assert.Equal(t, PauseRepeated, third.PauseReason)
	assert.Equal(t, "I've paused action a1 because it has failed to execute successfully 3 times.", third.Notice)
	require.NotNil(t, third.Action.LastFailureAt)
	assert.Nil(t, third.Action.LastSuccessAt)

	second := Apply(&storage.Action{ID: "a1", TimesExecuted: 1}, false, now, DefaultPolicy())
	assert.False(t, second.Action.Paused)
	assert.Empty(t, second.Notice)
}

func TestApplyPausesStaleActions(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	stale := Apply(&storage.Action{ID: "a2", TimesExecuted: 10, LastSuccessAt: ptr(now.Add(-25 * time.Hour))}, false, now, DefaultPolicy())
	assert.True(t, stale.Action.Paused)
	assert.Equal(t, PauseStale, stale.PauseReason)
	assert.Equal(t, "I've paused action a2 because it has not executed successfully in the last 24 hours.", stale.Notice)

	recent := Apply(&storage.Action{ID: "a2", TimesExecuted: 10, LastSuccessAt: ptr(now.Add(-time.Hour))}, false, now, DefaultPolicy())
	assert.False(t, recent.Action.Paused)
	assert.False(t, recent.PausedNow)
}

func TestApplyCompletion(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, success := range []bool{true, false} {
		out := Apply(&storage.Action{MaxExecutions: ptr(int64(5)), TimesExecuted: 4, LastSuccessAt: ptr(now)}, success, now, DefaultPolicy())
		assert.True(t, out.Action.Completed, "success=%t", success)
		assert.Equal(t, int64(5), out.Action.TimesExecuted)
	}

	unlimited := Apply(&storage.Action{TimesExecuted: 400}, true, now, DefaultPolicy())
	assert.False(t, unlimited.Action.Completed)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	in := &storage.Action{TimesExecuted: 2}
	out := Apply(in, true, now, DefaultPolicy())
	assert.Equal(t, int64(2), in.TimesExecuted)
	assert.Nil(t, in.LastExecutedAt)
	require.NotNil(t, out.Action.LastSuccessAt)
	assert.Equal(t, now, *out.Action.LastSuccessAt)
	assert.Nil(t, out.Action.LastFailureAt)
}

func TestApplyKeepsManualPause(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	out := Apply(&storage.Action{TimesExecuted: 9, Paused: true}, false, now, DefaultPolicy())
	assert.True(t, out.Action.Paused)
	assert.False(t, out.PausedNow)
	assert.Empty(t, out.Notice)
}

type priceInput struct {
	Symbol string `json:"symbol" required:"true"`
}

type stubSelector struct {
	mu       sync.Mutex
	sel      *orchestrator.Selection
	suppress []bool
}

func (s *stubSelector) SelectToolGroups(ctx context.Context, history []*aisdk.Message, suppress bool) (*orchestrator.Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppress = append(s.suppress, suppress)
	if s.sel != nil {
		return s.sel, nil
	}
	return &orchestrator.Selection{Usage: aisdk.Usage{PromptTokens: 4, CompletionTokens: 1, TotalTokens: 5}}, nil
}

type harness struct {
	db       *storage.DB
	model    *aisdktest.Model
	selector *stubSelector
	runner   *Runner
	user     *storage.User
	now      time.Time
}

// usesTool answers every run by calling getPrice once and then replying.
func usesTool(req *aisdk.ChatCompletionRequest) aisdktest.Reply {
	last := req.Messages[len(req.Messages)-1]
	if last.Role == aisdk.RoleTool {
		return aisdktest.Text("SOL is $1.50")
	}
	return aisdktest.Calls(aisdktest.Call("c-"+storage.NewID(), "getPrice", `{"symbol":"SOL"}`))
}

func newHarness(t *testing.T, model func(*aisdk.ChatCompletionRequest) aisdktest.Reply) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, filepath.Join(t.TempDir(), "runner.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &harness{
		db:       db,
		model:    aisdktest.New(),
		selector: &stubSelector{},
		now:      time.Now().UTC().Truncate(time.Second),
	}
	h.model.Func = model
	h.user = &storage.User{APIToken: "token", PublicKey: "Wa11et"}
	require.NoError(t, db.CreateUser(ctx, h.user))

	cat, err := catalog.New(catalog.Group{Name: "coreTools", Description: "core"})
	require.NoError(t, err)
	cat.MustRegister(
		catalog.Entry{Group: "coreTools", Tool: agent.MustNewGenericTool("getPrice", "Get a token price",
			func(ctx context.Context, caller *agent.Caller, in priceInput) (map[string]any, error) {
				if !caller.Scheduled {
					return nil, errors.New("expected a scheduled caller")
				}
				if in.Symbol == "NOPE" {
					return nil, errors.New("no market for NOPE")
				}
				return map[string]any{"symbol": in.Symbol, "price": 1.5}, nil
			})},
		catalog.Entry{Group: "coreTools", ConfirmationRequired: true, Tool: agent.MustNewGenericTool(catalog.CreateActionTool, "Schedule an action",
			func(ctx context.Context, caller *agent.Caller, in struct{}) (string, error) { return "ok", nil })},
		catalog.Entry{Group: "coreTools", ClientSide: true, Tool: agent.MustNewGenericTool(catalog.ConfirmationTool, "Ask to confirm",
			func(ctx context.Context, caller *agent.Caller, in struct{}) (string, error) { return "", nil })},
	)

	svc, err := executor.NewService(executor.ServiceConfig{
		Model:        h.model,
		Store:        db,
		Catalog:      cat,
		SystemPrompt: "You are a test agent.",
		Env:          catalog.MapEnv{},
		Logger:       slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)

	h.runner, err = New(Config{
		Store:    db,
		Executor: svc,
		Selector: h.selector,
		Owner:    "test-runner",
		Logger:   slog.New(slog.DiscardHandler),
		Now:      func() time.Time { return h.now },
	})
	require.NoError(t, err)
	return h
}

func (h *harness) action(t *testing.T, a *storage.Action) *storage.Action {
	t.Helper()
	ctx := context.Background()
	if a.UserID == "" {
		a.UserID = h.user.ID
	}
	conv := &storage.Conversation{UserID: a.UserID, Title: "home"}
	require.NoError(t, h.db.CreateConversation(ctx, conv))
	a.ConversationID = conv.ID
	a.Triggered = true
	if a.Description == "" {
		a.Description = "check the SOL price"
	}
	require.NoError(t, h.db.CreateAction(ctx, a))
	return a
}

func (h *harness) reload(t *testing.T, a *storage.Action) *storage.Action {
	t.Helper()
	got, err := h.db.ActionForUser(context.Background(), a.ID, a.UserID)
	require.NoError(t, err)
	return got
}

func TestTickHourlyActionScenario(t *testing.T) {
	h := newHarness(t, usesTool)
	a := h.action(t, &storage.Action{Frequency: ptr(int64(3600))})
	start := h.now

	report, err := h.runner.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &TickReport{Fetched: 1, Due: 1, Processed: 1, Succeeded: 1}, report)

	got := h.reload(t, a)
	assert.Equal(t, int64(1), got.TimesExecuted)
	require.NotNil(t, got.LastExecutedAt)
	assert.WithinDuration(t, start, *got.LastExecutedAt, time.Millisecond)
	require.NotNil(t, got.LastSuccessAt)
	assert.Nil(t, got.LeaseOwner)

	h.now = start.Add(10 * time.Minute)
	report, err = h.runner.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 0, report.Due)
	assert.Equal(t, int64(1), h.reload(t, a).TimesExecuted)

	h.now = start.Add(3601 * time.Second)
	report, err = h.runner.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, int64(2), h.reload(t, a).TimesExecuted)
}

func TestProcessActionSavesMessagesAndUsage(t *testing.T) {
	h := newHarness(t, usesTool)
	a := h.action(t, &storage.Action{Frequency: ptr(int64(3600))})

	run, err := h.runner.ProcessAction(context.Background(), a)
	require.NoError(t, err)
	assert.True(t, run.Success)
	assert.Equal(t, 1, run.Executed)
	assert.Equal(t, 1, run.Succeeded)

	msgs, err := h.db.Messages(context.Background(), a.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Len(t, msgs[0].ToolInvocations, 1)
	assert.Equal(t, storage.InvocationResult, msgs[0].ToolInvocations[0].State)
	assert.Equal(t, "SOL is $1.50", msgs[1].Content)
	assert.True(t, msgs[1].CreatedAt.After(msgs[0].CreatedAt))

	// two model calls plus the selector
	used, err := h.db.TokensUsed(context.Background(), h.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 35, used)

	system := h.model.Requests[0].Messages[0].Content
	assert.Contains(t, system, "User Solana wallet public key: Wa11et")
	assert.Equal(t, "check the SOL price", h.model.Requests[0].Messages[1].Content)
}

func TestProcessActionHidesCreateActionAndConfirmation(t *testing.T) {
	h := newHarness(t, usesTool)
	a := h.action(t, &storage.Action{Frequency: ptr(int64(60))})

	_, err := h.runner.ProcessAction(context.Background(), a)
	require.NoError(t, err)

	assert.Equal(t, []bool{true}, h.selector.suppress)
	var names []string
	for _, tool := range h.model.Requests[0].Tools {
		names = append(names, tool.Function.Name)
	}
	assert.Equal(t, []string{"getPrice"}, names)
}

func TestProcessActionWithoutToolCallsFails(t *testing.T) {
	h := newHarness(t, func(*aisdk.ChatCompletionRequest) aisdktest.Reply {
		return aisdktest.Text("I would check the price, but I won't.")
	})
	a := h.action(t, &storage.Action{Frequency: ptr(int64(60))})

	run, err := h.runner.ProcessAction(context.Background(), a)
	require.ErrorIs(t, err, ErrNoToolExecuted)
	assert.False(t, run.Success)

	got := h.reload(t, a)
	assert.Equal(t, int64(1), got.TimesExecuted)
	assert.NotNil(t, got.LastFailureAt)
	assert.Nil(t, got.LastSuccessAt)
	assert.False(t, got.Paused)

	// the text reply is still kept in the home conversation
	msgs, err := h.db.Messages(context.Background(), a.ConversationID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestProcessActionWithOnlyFailedToolsFails(t *testing.T) {
	h := newHarness(t, func(req *aisdk.ChatCompletionRequest) aisdktest.Reply {
		if req.Messages[len(req.Messages)-1].Role == aisdk.RoleTool {
			return aisdktest.Text("I couldn't find a price for NOPE.")
		}
		return aisdktest.Calls(aisdktest.Call("c-1", "getPrice", `{"symbol":"NOPE"}`))
	})
	a := h.action(t, &storage.Action{Frequency: ptr(int64(60)), Description: "check the NOPE price"})

	run, err := h.runner.ProcessAction(context.Background(), a)
	require.ErrorIs(t, err, ErrNoToolExecuted)
	assert.False(t, run.Success)
	assert.Equal(t, 1, run.Executed)
	assert.Equal(t, 0, run.Succeeded)

	got := h.reload(t, a)
	assert.Nil(t, got.LastSuccessAt)
	assert.NotNil(t, got.LastFailureAt)
	assert.Equal(t, int64(1), got.TimesExecuted)
}

func TestProcessActionPausesOnThirdFailure(t *testing.T) {
	h := newHarness(t, func(*aisdk.ChatCompletionRequest) aisdktest.Reply {
		return aisdktest.Reply{Err: errors.New("upstream down")}
	})
	a := h.action(t, &storage.Action{Frequency: ptr(int64(60)), TimesExecuted: 2})

	run, err := h.runner.ProcessAction(context.Background(), a)
	require.Error(t, err)
	assert.True(t, run.Outcome.PausedNow)

	got := h.reload(t, a)
	assert.True(t, got.Paused)
	assert.Equal(t, int64(3), got.TimesExecuted)

	msgs, err := h.db.Messages(context.Background(), a.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "assistant", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "I've paused action "+a.ID)

	// paused actions are no longer fetched
	h.now = h.now.Add(time.Hour)
	report, err := h.runner.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Fetched)
}

func TestProcessActionUnsupportedToolSkipsModel(t *testing.T) {
	h := newHarness(t, usesTool)
	h.selector.sel = &orchestrator.Selection{
		Names:   []string{catalog.SearchTokenTool, catalog.InvalidToolPrefix + "bridgeToEthereum"},
		Invalid: []string{catalog.InvalidToolPrefix + "bridgeToEthereum"},
	}
	a := h.action(t, &storage.Action{Frequency: ptr(int64(60))})

	run, err := h.runner.ProcessAction(context.Background(), a)
	require.ErrorIs(t, err, ErrUnsupported)
	assert.False(t, run.Success)
	assert.Equal(t, 0, h.model.Calls())
	assert.NotNil(t, h.reload(t, a).LastFailureAt)
}

func TestProcessActionCompletes(t *testing.T) {
	h := newHarness(t, usesTool)
	a := h.action(t, &storage.Action{Frequency: ptr(int64(60)), MaxExecutions: ptr(int64(5)), TimesExecuted: 4})

	_, err := h.runner.ProcessAction(context.Background(), a)
	require.NoError(t, err)
	assert.True(t, h.reload(t, a).Completed)

	h.now = h.now.Add(time.Hour)
	report, err := h.runner.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Fetched)
}

func TestTickIsolatesFailures(t *testing.T) {
	h := newHarness(t, usesTool)
	ok := h.action(t, &storage.Action{Frequency: ptr(int64(60))})

	noWallet := &storage.User{APIToken: "token-2"}
	require.NoError(t, h.db.CreateUser(context.Background(), noWallet))
	broken := h.action(t, &storage.Action{UserID: noWallet.ID, Frequency: ptr(int64(60))})

	report, err := h.runner.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	assert.NotNil(t, h.reload(t, ok).LastSuccessAt)
	assert.NotNil(t, h.reload(t, broken).LastFailureAt)
}

func TestTickSkipsClaimedActions(t *testing.T) {
	h := newHarness(t, usesTool)
	a := h.action(t, &storage.Action{Frequency: ptr(int64(60))})
	require.NoError(t, h.db.ClaimAction(context.Background(), a.ID, "other-runner", h.now, h.now.Add(time.Minute)))

	report, err := h.runner.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Due)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 0, h.model.Calls())
	assert.Equal(t, int64(0), h.reload(t, a).TimesExecuted)
}

func TestTickDefersRunsPastTheDeadline(t *testing.T) {
	h := newHarness(t, func(req *aisdk.ChatCompletionRequest) aisdktest.Reply {
		time.Sleep(300 * time.Millisecond)
		return usesTool(req)
	})
	slow, err := New(Config{
		Store:        h.db,
		Executor:     h.runner.exec,
		Selector:     h.selector,
		Owner:        "test-runner",
		BatchTimeout: 100 * time.Millisecond,
		Concurrency:  1,
		Logger:       slog.New(slog.DiscardHandler),
		Now:          func() time.Time { return h.now },
	})
	require.NoError(t, err)
	first := h.action(t, &storage.Action{Frequency: ptr(int64(60)), TimesExecuted: 2})
	second := h.action(t, &storage.Action{Frequency: ptr(int64(60)), TimesExecuted: 2})

	report, err := slow.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Due)
	assert.Equal(t, 2, report.Deferred)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 0, report.Paused)
	// only the first run reached the model before the deadline
	assert.Equal(t, 1, h.model.Calls())

	for _, a := range []*storage.Action{first, second} {
		got := h.reload(t, a)
		assert.Equal(t, int64(2), got.TimesExecuted)
		assert.False(t, got.Paused)
		assert.Nil(t, got.LastExecutedAt)
		assert.Nil(t, got.LastFailureAt)
		assert.Nil(t, got.LeaseOwner)
		assert.Nil(t, got.LeaseExpiresAt)
	}

	// both are picked up again once there is time
	h.model.Func = usesTool
	report, err = h.runner.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, int64(3), h.reload(t, first).TimesExecuted)
	assert.NotNil(t, h.reload(t, second).LastSuccessAt)
}

func TestProcessActionWithCancelledContextRecordsNothing(t *testing.T) {
	h := newHarness(t, usesTool)
	a := h.action(t, &storage.Action{Frequency: ptr(int64(60)), TimesExecuted: 2})
	require.NoError(t, h.db.ClaimAction(context.Background(), a.ID, "test-runner", h.now, h.now.Add(time.Hour)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run, err := h.runner.ProcessAction(ctx, a)
	require.ErrorIs(t, err, ErrDeferred)
	assert.True(t, run.Deferred)
	assert.False(t, run.Success)

	got := h.reload(t, a)
	assert.Equal(t, int64(2), got.TimesExecuted)
	assert.Nil(t, got.LastFailureAt)
	assert.Nil(t, got.LeaseOwner)
}

func TestTickWaitsForStartTime(t *testing.T) {
	h := newHarness(t, usesTool)
	h.action(t, &storage.Action{Frequency: ptr(int64(60)), StartTime: ptr(h.now.Add(time.Hour))})

	report, err := h.runner.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Fetched)

	h.now = h.now.Add(2 * time.Hour)
	report, err = h.runner.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrStoreRequired)
}
