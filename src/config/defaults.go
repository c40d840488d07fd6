package config

import (
	"time"

	"github.com/elee1766/dextra/src/executor"
	"github.com/elee1766/dextra/src/runner"
)

const (
	DefaultChatModel         = "openai/gpt-4o"
	DefaultOrchestratorModel = "openai/gpt-4o-mini"
	DefaultAddr              = "127.0.0.1:8080"
)

// DefaultConfig returns a default configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Timeout:    Duration(60 * time.Second),
			RetryCount: 3,
			SiteName:   "dextra",
		},
		Models: ModelsConfig{
			Chat:         DefaultChatModel,
			Orchestrator: DefaultOrchestratorModel,
		},
		Server: ServerConfig{
			Addr: DefaultAddr,
		},
		Storage: StorageConfig{
			Path: DefaultDatabasePath(),
		},
		Executor: ExecutorConfig{
			MaxSteps:     executor.DefaultMaxSteps,
			HistoryLimit: executor.DefaultHistoryLimit,
		},
		Runner: RunnerConfig{
			BatchTimeout:   Duration(runner.DefaultBatchTimeout),
			Concurrency:    runner.DefaultConcurrency,
			PauseThreshold: runner.DefaultPauseThreshold,
			StaleAfter:     Duration(runner.DefaultStaleAfter),
		},
		Tools: ToolsConfig{
			CacheSize: 256,
			CacheTTL:  Duration(30 * time.Second),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ClassifierModel is the model that classifies confirmation replies,
// falling back to the chat model.
func (c *Config) ClassifierModel() string {
	if c.Models.Classifier != "" {
		return c.Models.Classifier
	}
	return c.Models.Chat
}

// OrchestratorModel falls back to the chat model.
func (c *Config) OrchestratorModel() string {
	if c.Models.Orchestrator != "" {
		return c.Models.Orchestrator
	}
	return c.Models.Chat
}
