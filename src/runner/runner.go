package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/elee1766/dextra/src/agent"
	"github.com/elee1766/dextra/src/aisdk"
	"github.com/elee1766/dextra/src/catalog"
	"github.com/elee1766/dextra/src/executor"
	"github.com/elee1766/dextra/src/metrics"
	"github.com/elee1766/dextra/src/orchestrator"
	"github.com/elee1766/dextra/src/storage"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchTimeout = 5 * time.Minute
	DefaultConcurrency  = 8
)

// Store is the slice of storage the runner needs. *storage.DB satisfies it.
type Store interface {
	EligibleActions(ctx context.Context, now time.Time) ([]*storage.Action, error)
	ClaimAction(ctx context.Context, id, owner string, now, leaseUntil time.Time) error
	ReleaseAction(ctx context.Context, id, owner string) error
	RecordActionExecution(ctx context.Context, action *storage.Action) error
	UserByID(ctx context.Context, id string) (*storage.User, error)
	Conversation(ctx context.Context, id string) (*storage.Conversation, error)
	LatestMessageTime(ctx context.Context, conversationID string) (*time.Time, error)
	SaveMessages(ctx context.Context, conversationID string, messages []*storage.Message) error
	SaveTokenStat(ctx context.Context, stat *storage.TokenStat) error
}

// Executor runs the non-interactive step loop. *executor.Service satisfies it.
type Executor interface {
	Tools(sel *orchestrator.Selection) []catalog.Entry
	RunLoop(ctx context.Context, req executor.LoopRequest) (*executor.LoopResult, error)
}

type Config struct {
	Store    Store
	Executor Executor
	// Selector narrows the tool set from the action description. Nil offers
	// the full catalog.
	Selector executor.ToolSelector
	Policy   Policy
	// BatchTimeout bounds a whole tick. It is also the claim lease length.
	BatchTimeout time.Duration
	Concurrency  int
	// Owner identifies this runner in action leases. Defaults to host:pid.
	Owner   string
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Runner executes due scheduled actions.
type Runner struct {
	store    Store
	exec     Executor
	selector executor.ToolSelector
	policy   Policy
	timeout  time.Duration
	limit    int
	owner    string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func New(cfg Config) (*Runner, error) {
	if cfg.Store == nil {
		return nil, ErrStoreRequired
	}
	if cfg.Executor == nil {
		return nil, ErrExecutorRequired
	}
	r := &Runner{
		store:    cfg.Store,
		exec:     cfg.Executor,
		selector: cfg.Selector,
		policy:   cfg.Policy,
		timeout:  cfg.BatchTimeout,
		limit:    cfg.Concurrency,
		owner:    cfg.Owner,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
	}
	if r.policy == (Policy{}) {
		r.policy = DefaultPolicy()
	}
	if r.timeout <= 0 {
		r.timeout = DefaultBatchTimeout
	}
	if r.limit <= 0 {
		r.limit = DefaultConcurrency
	}
	if r.owner == "" {
		host, _ := os.Hostname()
		r.owner = fmt.Sprintf("%s:%d", host, os.Getpid())
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "runner")
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// TickReport summarizes one tick.
type TickReport struct {
	Fetched   int
	Due       int
	Processed int
	Succeeded int
	Failed    int
	Paused    int
	// Skipped counts due actions another runner had already claimed.
	Skipped int
	// Deferred counts due actions the tick deadline left unfinished. They
	// keep their bookkeeping and run again next tick.
	Deferred int
}

// Tick runs every due action once. Per-action failures are folded into the
// action's bookkeeping and never abort the batch; the only error returned
// is a failure to list actions.
func (r *Runner) Tick(ctx context.Context) (*TickReport, error) {
	started := time.Now()
	defer func() { r.metrics.ObserveTick(time.Since(started)) }()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := r.now()
	actions, err := r.store.EligibleActions(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible actions: %w", err)
	}

	report := &TickReport{Fetched: len(actions)}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(r.limit)

	for _, action := range actions {
		if !IsDue(action, now) {
			continue
		}
		report.Due++
		if ctx.Err() != nil {
			report.Deferred++
			continue
		}
		if err := r.store.ClaimAction(ctx, action.ID, r.owner, now, now.Add(r.timeout)); err != nil {
			if !errors.Is(err, storage.ErrLeaseHeld) {
				r.logger.ErrorContext(ctx, "failed to claim action", "action_id", action.ID, "error", err)
			}
			report.Skipped++
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				r.release(ctx, action.ID)
				mu.Lock()
				report.Deferred++
				mu.Unlock()
				return nil
			}
			run, err := r.ProcessAction(ctx, action)
			mu.Lock()
			defer mu.Unlock()
			if run != nil && run.Deferred {
				report.Deferred++
				return nil
			}
			report.Processed++
			if err != nil || !run.Success {
				report.Failed++
			} else {
				report.Succeeded++
			}
			if run != nil && run.Outcome.PausedNow {
				report.Paused++
			}
			return nil
		})
	}
	_ = g.Wait()

	r.logger.InfoContext(ctx, "tick finished",
		"fetched", report.Fetched,
		"due", report.Due,
		"processed", report.Processed,
		"failed", report.Failed,
		"paused", report.Paused,
		"skipped", report.Skipped,
		"deferred", report.Deferred,
		"duration", time.Since(started))
	return report, nil
}

// RunReport is the outcome of one action run.
type RunReport struct {
	ActionID string
	Success  bool
	// Executed counts tool calls that ran.
	Executed int
	// Succeeded counts the executed calls that returned a non-error result.
	// A run with none is a failure.
	Succeeded int
	// Messages are the rows appended to the home conversation, including a
	// pause notice.
	Messages []*storage.Message
	Outcome  Outcome
	// Deferred is set when ctx ended before the run could finish. Nothing
	// was recorded against the action.
	Deferred bool
}

// ProcessAction runs one action as a non-interactive turn in its home
// conversation and then writes its bookkeeping, whatever happened, unless
// ctx ended under the run: then the lease is released, nothing is recorded
// and the error wraps ErrDeferred. The report is always set.
func (r *Runner) ProcessAction(ctx context.Context, action *storage.Action) (*RunReport, error) {
	log := r.logger.With("action_id", action.ID, "conversation_id", action.ConversationID)
	log.InfoContext(ctx, "processing action", "prompt", action.Description)
	started := time.Now()

	report := &RunReport{ActionID: action.ID}
	persistCtx := context.WithoutCancel(ctx)

	var stamps *executor.Stamper
	runErr := r.run(ctx, log, action, report, &stamps)
	if runErr != nil && ctx.Err() != nil {
		report.Deferred = true
		r.metrics.ActionRun("deferred")
		log.WarnContext(persistCtx, "action run cut short, leaving it for the next tick", "error", runErr)
		r.release(ctx, action.ID)
		return report, fmt.Errorf("%w: %w", ErrDeferred, runErr)
	}
	report.Success = runErr == nil

	if report.Success {
		r.metrics.ActionRun("success")
	} else {
		r.metrics.ActionRun("failure")
		log.WarnContext(ctx, "action run failed", "error", runErr)
	}

	report.Outcome = Apply(action, report.Success, r.now(), r.policy)
	if report.Outcome.PausedNow {
		r.metrics.ActionPaused(report.Outcome.PauseReason)
		log.WarnContext(ctx, "pausing action", "reason", report.Outcome.PauseReason)
		if stamps == nil {
			stamps = r.stamper(persistCtx, action.ConversationID)
		}
		notice := executor.Finalize([]*storage.Message{{
			Role:    aisdk.RoleAssistant,
			Content: report.Outcome.Notice,
		}}, action.ConversationID, stamps)
		if err := r.store.SaveMessages(persistCtx, action.ConversationID, notice); err != nil {
			log.ErrorContext(ctx, "failed to save pause notice", "error", err)
		} else {
			report.Messages = append(report.Messages, notice...)
		}
	}

	if err := r.store.RecordActionExecution(persistCtx, report.Outcome.Action); err != nil {
		log.ErrorContext(ctx, "failed to record action execution", "error", err)
		return report, errors.Join(runErr, fmt.Errorf("failed to record execution: %w", err))
	}
	log.InfoContext(ctx, "processed action",
		"success", report.Success,
		"executed", report.Executed,
		"times_executed", report.Outcome.Action.TimesExecuted,
		"completed", report.Outcome.Action.Completed,
		"duration", time.Since(started))
	return report, runErr
}

func (r *Runner) run(ctx context.Context, log *slog.Logger, action *storage.Action, report *RunReport, stamps **executor.Stamper) error {
	if _, err := r.store.Conversation(ctx, action.ConversationID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrConversationMissing
		}
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	user, err := r.store.UserByID(ctx, action.UserID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if strings.TrimSpace(user.PublicKey) == "" {
		return ErrNoWallet
	}

	var sel *orchestrator.Selection
	if r.selector != nil {
		history := []*aisdk.Message{{Role: aisdk.RoleUser, Content: action.Description}}
		sel, err = r.selector.SelectToolGroups(ctx, history, true)
		if err != nil {
			return fmt.Errorf("failed to select tools: %w", err)
		}
		if sel.HasInvalid() {
			return fmt.Errorf("%w: %s", ErrUnsupported, strings.Join(sel.Invalid, ", "))
		}
	}
	entries := catalog.Without(r.exec.Tools(sel), catalog.CreateActionTool, catalog.ConfirmationTool)
	log.DebugContext(ctx, "running action", "tools", len(entries))

	res, loopErr := r.exec.RunLoop(ctx, executor.LoopRequest{
		Caller: &agent.Caller{
			UserID:         action.UserID,
			ConversationID: action.ConversationID,
			PublicKey:      user.PublicKey,
			Scheduled:      true,
		},
		Prompt:  action.Description,
		Entries: entries,
	})
	if res == nil {
		if loopErr == nil {
			loopErr = errors.New("executor returned no result")
		}
		return loopErr
	}
	report.Executed = res.Executed
	report.Succeeded = res.Succeeded

	persistCtx := context.WithoutCancel(ctx)
	*stamps = r.stamper(persistCtx, action.ConversationID)
	msgs := executor.Finalize(res.Messages, action.ConversationID, *stamps)
	if len(msgs) > 0 {
		if err := r.store.SaveMessages(persistCtx, action.ConversationID, msgs); err != nil {
			log.ErrorContext(ctx, "failed to save action messages", "error", err)
		} else {
			report.Messages = msgs
			r.saveUsage(persistCtx, log, action.UserID, msgs, res.Usage, sel)
		}
	}

	if loopErr != nil {
		return loopErr
	}
	if res.Succeeded == 0 {
		return ErrNoToolExecuted
	}
	return nil
}

// release drops this runner's lease on an action it will not record.
func (r *Runner) release(ctx context.Context, id string) {
	ctx = context.WithoutCancel(ctx)
	if err := r.store.ReleaseAction(ctx, id, r.owner); err != nil {
		r.logger.ErrorContext(ctx, "failed to release action lease", "action_id", id, "error", err)
	}
}

func (r *Runner) stamper(ctx context.Context, conversationID string) *executor.Stamper {
	latest, err := r.store.LatestMessageTime(ctx, conversationID)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to read latest message time", "conversation_id", conversationID, "error", err)
		latest = nil
	}
	return executor.NewStamper(r.now(), latest)
}

func (r *Runner) saveUsage(ctx context.Context, log *slog.Logger, userID string, msgs []*storage.Message, usage aisdk.Usage, sel *orchestrator.Selection) {
	if !usage.Valid() {
		return
	}
	if sel != nil && sel.Usage.Valid() {
		usage = usage.Add(sel.Usage)
	}
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	stat := &storage.TokenStat{
		UserID:           userID,
		MessageIDs:       ids,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}
	if err := r.store.SaveTokenStat(ctx, stat); err != nil {
		log.ErrorContext(ctx, "failed to save token usage", "error", err)
	}
}
