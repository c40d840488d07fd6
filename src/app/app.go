// Package app wires configuration into a running copilot: storage, the
// model provider, the tool catalog, the orchestrator, the executor and the
// action runner.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/elee1766/dextra/src/aisdk"
	"github.com/elee1766/dextra/src/catalog"
	"github.com/elee1766/dextra/src/config"
	"github.com/elee1766/dextra/src/confirm"
	"github.com/elee1766/dextra/src/copilot"
	"github.com/elee1766/dextra/src/executor"
	"github.com/elee1766/dextra/src/metrics"
	"github.com/elee1766/dextra/src/orchestrator"
	"github.com/elee1766/dextra/src/orclient"
	"github.com/elee1766/dextra/src/runner"
	"github.com/elee1766/dextra/src/server"
	"github.com/elee1766/dextra/src/storage"
	"github.com/prometheus/client_golang/prometheus"
)

// App represents the main application with all services
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Store        *storage.DB
	Provider     *orclient.Client
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics
	Catalog      *catalog.Catalog
	Orchestrator *orchestrator.Orchestrator
	Executor     *executor.Service
	Runner       *runner.Runner
}

// Options override parts of the wiring. The zero value builds everything
// from the config.
type Options struct {
	Logger *slog.Logger
	// Models replace the OpenRouter-backed clients.
	ChatModel         aisdk.ModelClient
	OrchestratorModel aisdk.ModelClient
	ClassifierModel   aisdk.ModelClient
	// CheckModels looks configured model ids up before binding them.
	CheckModels bool
	// Env supplies tool credentials. Defaults to the process environment.
	Env catalog.Env
	Now func() time.Time
}

// New creates a new App instance with all services initialized
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Env == nil {
		opts.Env = catalog.OSEnv{}
	}
	a := &App{Config: cfg, Logger: logger}

	store, err := OpenStore(ctx, cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	a.Store = store

	if err := a.wire(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// OpenStore opens the database, creating its directory when needed.
func OpenStore(ctx context.Context, path string) (*storage.DB, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	store, err := storage.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, nil
}

func (a *App) wire(ctx context.Context, opts Options) error {
	cfg := a.Config
	a.Registry = prometheus.NewRegistry()
	a.Metrics = metrics.MustNewMetrics(a.Registry)

	a.Provider = orclient.NewClient(orclient.Config{
		APIKey:     cfg.API.APIKey,
		BaseURL:    cfg.API.BaseURL,
		Logger:     a.Logger,
		Timeout:    cfg.API.Timeout.Std(),
		RetryCount: cfg.API.RetryCount,
		SiteURL:    cfg.API.SiteURL,
		SiteName:   cfg.API.SiteName,
		Provider:   providerPreferences(cfg.API),
	})

	chat, err := a.model(ctx, opts.ChatModel, cfg.Models.Chat, opts.CheckModels)
	if err != nil {
		return err
	}
	orchModel, err := a.model(ctx, opts.OrchestratorModel, cfg.OrchestratorModel(), opts.CheckModels)
	if err != nil {
		return err
	}
	classifierModel, err := a.model(ctx, opts.ClassifierModel, cfg.ClassifierModel(), opts.CheckModels)
	if err != nil {
		return err
	}

	a.Catalog, err = copilot.NewCatalog(copilot.Config{
		Store:          a.Store,
		Env:            opts.Env,
		DexScreenerURL: cfg.Tools.DexScreenerURL,
		TelegramURL:    cfg.Tools.TelegramURL,
		CacheSize:      cfg.Tools.CacheSize,
		CacheTTL:       cfg.Tools.CacheTTL.Std(),
		Logger:         a.Logger,
		Now:            opts.Now,
	})
	if err != nil {
		return fmt.Errorf("failed to build tool catalog: %w", err)
	}

	a.Orchestrator, err = orchestrator.New(orchestrator.Config{
		Model:    orchModel,
		Catalog:  a.Catalog,
		Disabled: cfg.Tools.Disabled,
		Env:      opts.Env,
		Preamble: copilot.OrchestratorPreamble,
		Logger:   a.Logger,
		Metrics:  a.Metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	a.Executor, err = executor.NewService(executor.ServiceConfig{
		Model:        chat,
		Store:        a.Store,
		Catalog:      a.Catalog,
		Selector:     a.Orchestrator,
		Classifier:   &confirm.ModelClassifier{Model: classifierModel, Logger: a.Logger},
		SystemPrompt: copilot.SystemPrompt(),
		Disabled:     cfg.Tools.Disabled,
		Env:          opts.Env,
		HistoryLimit: cfg.Executor.HistoryLimit,
		MaxSteps:     cfg.Executor.MaxSteps,
		Logger:       a.Logger,
		Metrics:      a.Metrics,
		Now:          opts.Now,
	})
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}

	a.Runner, err = runner.New(runner.Config{
		Store:    a.Store,
		Executor: a.Executor,
		Selector: a.Orchestrator,
		Policy: runner.Policy{
			PauseThreshold: cfg.Runner.PauseThreshold,
			StaleAfter:     cfg.Runner.StaleAfter.Std(),
		},
		BatchTimeout: cfg.Runner.BatchTimeout.Std(),
		Concurrency:  cfg.Runner.Concurrency,
		Logger:       a.Logger,
		Metrics:      a.Metrics,
		Now:          opts.Now,
	})
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}
	return nil
}

func (a *App) model(ctx context.Context, override aisdk.ModelClient, id string, check bool) (aisdk.ModelClient, error) {
	if override != nil {
		return override, nil
	}
	if !check {
		return a.Provider.UncheckedModel(id), nil
	}
	m, err := a.Provider.Model(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", id, err)
	}
	return m, nil
}

func providerPreferences(api config.APIConfig) *orclient.ProviderPreferences {
	if len(api.ProviderOrder) == 0 && api.AllowFallbacks == nil {
		return nil
	}
	return &orclient.ProviderPreferences{Order: api.ProviderOrder, AllowFallbacks: api.AllowFallbacks}
}

// Server builds the HTTP server over the app's services.
func (a *App) Server() (*server.Server, error) {
	return server.New(server.Config{
		Store:      a.Store,
		Turns:      a.Executor,
		Ticker:     a.Runner,
		CronSecret: a.Config.Server.CronSecret,
		Gatherer:   a.Registry,
		Logger:     a.Logger,
		Debug:      a.Config.Server.Debug,
	})
}

// Close closes all resources held by the app
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
