// Package executor runs conversational turns: it resolves pending
// confirmations, narrows the tool set, drives the bounded tool-calling loop
// against the model and persists what the model produced.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/elee1766/dextra/src/agent"
	"github.com/elee1766/dextra/src/aisdk"
	"github.com/elee1766/dextra/src/catalog"
	"github.com/elee1766/dextra/src/confirm"
	"github.com/elee1766/dextra/src/metrics"
	"github.com/elee1766/dextra/src/orchestrator"
	"github.com/elee1766/dextra/src/storage"
)

const (
	DefaultHistoryLimit = 10
	DefaultMaxSteps     = 15
)

// Store is the slice of storage the executor needs.
type Store interface {
	confirm.Store
	Conversation(ctx context.Context, id string) (*storage.Conversation, error)
	CreateConversation(ctx context.Context, conv *storage.Conversation) error
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]*storage.Message, error)
	LatestMessageTime(ctx context.Context, conversationID string) (*time.Time, error)
	SaveMessages(ctx context.Context, conversationID string, messages []*storage.Message) error
	SaveTokenStat(ctx context.Context, stat *storage.TokenStat) error
}

// ToolSelector picks the tools a conversation needs.
type ToolSelector interface {
	SelectToolGroups(ctx context.Context, history []*aisdk.Message, suppressConfirmation bool) (*orchestrator.Selection, error)
}

// ServiceConfig holds configuration for creating a new Service
type ServiceConfig struct {
	Model    aisdk.ModelClient
	Store    Store
	Catalog  *catalog.Catalog
	Selector ToolSelector
	// Classifier decides free-text confirmation replies. Nil denies them all.
	Classifier   confirm.Classifier
	SystemPrompt string
	Disabled     []string
	Env          catalog.Env
	HistoryLimit int
	MaxSteps     int
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	Now          func() time.Time
}

// Service runs turns.
type Service struct {
	model        aisdk.ModelClient
	store        Store
	catalog      *catalog.Catalog
	selector     ToolSelector
	confirm      *confirm.Machine
	systemPrompt string
	disabled     []string
	env          catalog.Env
	historyLimit int
	maxSteps     int
	logger       *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

// NewService creates a new turn service
func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Model == nil:
		return nil, ErrModelRequired
	case cfg.Store == nil:
		return nil, ErrStoreRequired
	case cfg.Catalog == nil:
		return nil, ErrCatalogRequired
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Env == nil {
		cfg.Env = catalog.OSEnv{}
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger.With("component", "executor")
	return &Service{
		model:        cfg.Model,
		store:        cfg.Store,
		catalog:      cfg.Catalog,
		selector:     cfg.Selector,
		confirm:      confirm.NewMachine(cfg.Classifier, cfg.Store, cfg.Logger),
		systemPrompt: cfg.SystemPrompt,
		disabled:     cfg.Disabled,
		env:          cfg.Env,
		historyLimit: cfg.HistoryLimit,
		maxSteps:     cfg.MaxSteps,
		logger:       logger,
		metrics:      cfg.Metrics,
		now:          cfg.Now,
	}, nil
}

// TurnRequest is one incoming chat message.
type TurnRequest struct {
	ConversationID string
	Caller         *agent.Caller
	// Message is a user message, or an assistant message carrying a
	// confirmation button result.
	Message *storage.Message
}

// TurnResult summarizes a finished turn.
type TurnResult struct {
	ConversationID string
	Created        bool
	// Messages are the rows saved during the turn, the user message first.
	Messages     []*storage.Message
	Usage        aisdk.Usage
	Steps        int
	Stop         StopReason
	Confirmation confirm.State
	Tools        []string
	// Err is a failure that happened after streaming began. It has already
	// been reported to the sink.
	Err error
}

// RunTurn runs one conversational turn and streams its events to sink.
// Errors returned are those that happen before anything is streamed;
// later failures are logged, reported as an error event and recorded in
// TurnResult.Err.
func (s *Service) RunTurn(ctx context.Context, req TurnRequest, sink EventSink) (*TurnResult, error) {
	if req.Message == nil {
		return nil, ErrMessageRequired
	}
	if req.Caller == nil || req.Caller.UserID == "" {
		return nil, ErrCallerRequired
	}
	caller := *req.Caller
	msg := req.Message

	conv, created, history, err := s.loadConversation(ctx, req.ConversationID, caller.UserID, msg)
	if err != nil {
		return nil, err
	}
	caller.ConversationID = conv.ID
	log := s.logger.With("conversation_id", conv.ID, "user_id", caller.UserID)

	latest, err := s.store.LatestMessageTime(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("load latest message time: %w", err)
	}
	stamps := NewStamper(s.now(), latest)

	result := &TurnResult{ConversationID: conv.ID, Created: created}
	if msg.Role == aisdk.RoleUser {
		userMsg := &storage.Message{
			ID:             storage.NewID(),
			ConversationID: conv.ID,
			Role:           aisdk.RoleUser,
			Content:        msg.Content,
			Attachments:    msg.Attachments,
			CreatedAt:      stamps.Next(),
		}
		if err := s.store.SaveMessages(ctx, conv.ID, []*storage.Message{userMsg}); err != nil {
			return nil, fmt.Errorf("save user message: %w", err)
		}
		result.Messages = append(result.Messages, userMsg)
	}

	emitter := NewEventEmitter(sink, conv.ID)

	outcome, err := s.confirm.Resolve(ctx, msg, confirm.FindPending(history))
	if err != nil {
		log.WarnContext(ctx, "could not resolve confirmation", "error", err)
		outcome = &confirm.Outcome{State: confirm.StateNone}
	}
	result.Confirmation = outcome.State
	for _, u := range outcome.Updates {
		_ = emitter.EmitToolUpdate(u.ToolCallID, u.Result)
	}

	modelHistory := append(ToModelMessages(history), incomingMessages(msg)...)
	suppress := caller.DegenMode || outcome.ConfirmationHandled
	entries, sel := s.selectTools(ctx, modelHistory, suppress)
	result.Tools = entryNames(entries)

	prompt := BuildSystemPrompt(s.systemPrompt, PromptContext{
		Attachments:    CollectAttachments(history),
		Caller:         &caller,
		ConversationID: conv.ID,
		Now:            s.now(),
		Unsupported:    sel.Invalid,
	})
	messages := append([]*aisdk.Message{{Role: aisdk.RoleSystem, Content: prompt}}, modelHistory...)

	lr := s.runSteps(ctx, loopConfig{
		messages: messages,
		entries:  entries,
		caller:   &caller,
		stream:   true,
		emitter:  emitter,
	})
	result.Steps = lr.steps
	result.Stop = lr.stop
	result.Usage = lr.usage.Add(sel.Usage)
	if lr.err != nil {
		result.Err = lr.err
		log.ErrorContext(ctx, "turn failed", "stop", lr.stop, "error", lr.err)
		_ = emitter.EmitError(clientError(lr))
	}

	// the stream is delivered once started; persistence outlives the request
	persistCtx := context.WithoutCancel(ctx)
	// rows may have landed while the model ran, e.g. a scheduled action's
	// reply; the turn's messages stamp after whatever is there now
	if latest, err := s.store.LatestMessageTime(persistCtx, conv.ID); err != nil {
		log.WarnContext(ctx, "failed to reload latest message time", "error", err)
	} else {
		stamps = NewStamper(s.now(), latest)
	}
	produced := Finalize(lr.messages, conv.ID, stamps)
	if err := s.store.SaveMessages(persistCtx, conv.ID, produced); err != nil {
		log.ErrorContext(ctx, "failed to save turn messages", "count", len(produced), "error", err)
	} else {
		result.Messages = append(result.Messages, produced...)
	}
	ids := messageIDs(result.Messages)
	s.saveUsage(persistCtx, caller.UserID, ids, result.Usage)

	status := "ok"
	if lr.err != nil {
		status = "error"
	}
	s.metrics.Turn("interactive", status, lr.steps)
	_ = emitter.EmitFinish(lr.stop, result.Usage, ids)
	log.InfoContext(ctx, "turn complete", "steps", lr.steps, "stop", lr.stop, "messages", len(result.Messages),
		"tokens", result.Usage.TotalTokens, "confirmation", outcome.State)
	return result, nil
}

func (s *Service) loadConversation(ctx context.Context, id, userID string, msg *storage.Message) (*storage.Conversation, bool, []*storage.Message, error) {
	var conv *storage.Conversation
	if id != "" {
		found, err := s.store.Conversation(ctx, id)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return nil, false, nil, fmt.Errorf("load conversation: %w", err)
		case found.UserID != userID:
			return nil, false, nil, ErrConversationForeign
		default:
			conv = found
		}
	}

	var history []*storage.Message
	if conv != nil {
		var err error
		history, err = s.store.RecentMessages(ctx, conv.ID, s.historyLimit)
		if err != nil {
			return nil, false, nil, fmt.Errorf("load history: %w", err)
		}
	}
	if len(history) == 0 && msg.Role != aisdk.RoleUser {
		return nil, false, nil, ErrNoUserMessage
	}
	if conv != nil {
		return conv, false, history, nil
	}

	conv = &storage.Conversation{ID: id, UserID: userID, Title: Title(msg.Content)}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, false, nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, true, nil, nil
}

// Tools returns the entries a selection resolves to. A nil selection or one
// without names means the whole available catalog.
func (s *Service) Tools(sel *orchestrator.Selection) []catalog.Entry {
	if sel == nil || sel.Names == nil {
		return s.catalog.Available(s.disabled, s.env)
	}
	return s.catalog.ResolveByName(sel.Names, s.disabled, s.env)
}

func (s *Service) selectTools(ctx context.Context, history []*aisdk.Message, suppress bool) ([]catalog.Entry, *orchestrator.Selection) {
	sel := &orchestrator.Selection{}
	if s.selector != nil {
		got, err := s.selector.SelectToolGroups(ctx, history, suppress)
		if err != nil {
			s.logger.WarnContext(ctx, "tool selection failed, offering the full catalog", "error", err)
		} else {
			sel = got
		}
	}
	entries := s.Tools(sel)
	if suppress {
		entries = catalog.Without(entries, catalog.ConfirmationTool)
	}
	return entries, sel
}

func (s *Service) saveUsage(ctx context.Context, userID string, ids []string, usage aisdk.Usage) {
	if len(ids) == 0 || !usage.Valid() {
		return
	}
	stat := &storage.TokenStat{
		UserID:           userID,
		MessageIDs:       ids,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}
	if err := s.store.SaveTokenStat(ctx, stat); err != nil {
		s.logger.ErrorContext(ctx, "failed to save token usage", "user_id", userID, "error", err)
	}
}

func clientError(lr *loopResult) string {
	var nst *agent.NoSuchToolError
	if errors.As(lr.err, &nst) {
		return "That request is not supported."
	}
	return "An error occurred while generating the response."
}

func entryNames(entries []catalog.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name()
	}
	return out
}

func messageIDs(msgs []*storage.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
