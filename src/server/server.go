// Package server exposes the copilot over HTTP: the streaming chat
// endpoint, the minute trigger for scheduled actions and the action and
// conversation management endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/elee1766/dextra/src/executor"
	"github.com/elee1766/dextra/src/runner"
	"github.com/elee1766/dextra/src/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultShutdownTimeout = 10 * time.Second

// Store is the slice of storage the handlers read and write directly.
type Store interface {
	UserByToken(ctx context.Context, token string) (*storage.User, error)
	ConversationForUser(ctx context.Context, id, userID string) (*storage.Conversation, error)
	Conversations(ctx context.Context, userID string) ([]storage.Conversation, error)
	Messages(ctx context.Context, conversationID string) ([]*storage.Message, error)
	MarkConversationRead(ctx context.Context, id, userID string, at time.Time) error
	DeleteConversation(ctx context.Context, id, userID string) error
	Actions(ctx context.Context, userID string) ([]*storage.Action, error)
	ActionForUser(ctx context.Context, id, userID string) (*storage.Action, error)
	UpdateAction(ctx context.Context, id, userID string, patch storage.ActionPatch) (*storage.Action, error)
	DeleteAction(ctx context.Context, id, userID string) error
}

// TurnRunner runs one chat turn.
type TurnRunner interface {
	RunTurn(ctx context.Context, req executor.TurnRequest, sink executor.EventSink) (*executor.TurnResult, error)
}

// Ticker runs one pass of the scheduled action runner.
type Ticker interface {
	Tick(ctx context.Context) (*runner.TickReport, error)
}

type Config struct {
	Store  Store
	Turns  TurnRunner
	Ticker Ticker
	// CronSecret guards the minute trigger. An empty secret rejects every
	// trigger request.
	CronSecret string
	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	Debug    bool
	Now      func() time.Time
}

type Server struct {
	store      Store
	turns      TurnRunner
	ticker     Ticker
	cronSecret string
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
	now        func() time.Time
	started    time.Time
	engine     *gin.Engine
}

func New(cfg Config) (*Server, error) {
	switch {
	case cfg.Store == nil:
		return nil, ErrStoreRequired
	case cfg.Turns == nil:
		return nil, ErrTurnsRequired
	case cfg.Ticker == nil:
		return nil, ErrTickerRequired
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		store:      cfg.Store,
		turns:      cfg.Turns,
		ticker:     cfg.Ticker,
		cronSecret: cfg.CronSecret,
		gatherer:   cfg.Gatherer,
		logger:     cfg.Logger.With("component", "server"),
		now:        cfg.Now,
		started:    cfg.Now(),
	}
	s.engine = gin.New()
	s.engine.Use(s.recovery(), s.requestLogger())
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := s.engine.Group("/api")
	api.GET("/cron/minute", s.cronMinute)

	authed := api.Group("", s.authenticate())
	{
		authed.POST("/chat", s.postChat)
		authed.DELETE("/chat", s.deleteChat)

		authed.GET("/conversations", s.listConversations)
		authed.GET("/conversations/:id/messages", s.conversationMessages)

		authed.GET("/actions", s.listActions)
		authed.PATCH("/actions/:id", s.patchAction)
		authed.DELETE("/actions/:id", s.deleteAction)
	}
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
