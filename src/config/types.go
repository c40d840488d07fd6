package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the complete configuration for dextra
type Config struct {
	// API configuration for the OpenRouter endpoint
	API APIConfig `json:"api"`

	// Models used by the copilot
	Models ModelsConfig `json:"models"`

	Server   ServerConfig   `json:"server"`
	Storage  StorageConfig  `json:"storage"`
	Executor ExecutorConfig `json:"executor"`
	Runner   RunnerConfig   `json:"runner"`
	Tools    ToolsConfig    `json:"tools"`
	Logging  LoggingConfig  `json:"logging"`
}

// APIConfig holds API-related configuration
type APIConfig struct {
	// APIKey for authentication. Usually supplied through OPENROUTER_API_KEY.
	APIKey string `json:"api_key,omitempty"`

	// BaseURL overrides the default API endpoint
	BaseURL string `json:"base_url,omitempty" validate:"omitempty,url"`

	// Timeout for non-streaming API requests
	Timeout Duration `json:"timeout,omitempty" validate:"min=0"`

	// RetryCount is the number of attempts for retryable failures
	RetryCount int `json:"retry_count,omitempty" validate:"min=0,max=10"`

	SiteURL  string `json:"site_url,omitempty" validate:"omitempty,url"`
	SiteName string `json:"site_name,omitempty"`

	// ProviderOrder is sent as OpenRouter provider routing preferences
	ProviderOrder  []string `json:"provider_order,omitempty"`
	AllowFallbacks *bool    `json:"allow_fallbacks,omitempty"`
}

type ModelsConfig struct {
	// Chat drives conversation turns and scheduled runs
	Chat string `json:"chat" validate:"required,model_id"`
	// Orchestrator selects tool groups
	Orchestrator string `json:"orchestrator" validate:"omitempty,model_id"`
	// Classifier decides free-text confirmation replies
	Classifier string `json:"classifier" validate:"omitempty,model_id"`
}

type ServerConfig struct {
	Addr string `json:"addr" validate:"required,hostname_port"`
	// CronSecret is the bearer token accepted by the minute trigger
	CronSecret string `json:"cron_secret,omitempty"`
	Debug      bool   `json:"debug,omitempty"`
}

type StorageConfig struct {
	// Path of the SQLite database file
	Path string `json:"path" validate:"required"`
}

type ExecutorConfig struct {
	MaxSteps     int `json:"max_steps" validate:"min=1,max=50"`
	HistoryLimit int `json:"history_limit" validate:"min=1,max=200"`
}

type RunnerConfig struct {
	BatchTimeout   Duration `json:"batch_timeout" validate:"min=0"`
	Concurrency    int      `json:"concurrency" validate:"min=1,max=256"`
	PauseThreshold int64    `json:"pause_threshold" validate:"min=1"`
	StaleAfter     Duration `json:"stale_after" validate:"min=0"`
}

type ToolsConfig struct {
	// Disabled lists tool names never offered to the model
	Disabled       []string `json:"disabled,omitempty"`
	DexScreenerURL string   `json:"dexscreener_url,omitempty" validate:"omitempty,url"`
	TelegramURL    string   `json:"telegram_url,omitempty" validate:"omitempty,url"`
	CacheSize      int      `json:"cache_size,omitempty" validate:"min=0"`
	CacheTTL       Duration `json:"cache_ttl,omitempty" validate:"min=0"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `json:"level,omitempty" validate:"omitempty,log_level"`
}

// Duration is a time.Duration that reads "90s" style strings or integer
// nanoseconds from JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration must be a string or integer nanoseconds")
	}
	*d = Duration(n)
	return nil
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ValidationError) Error() string {
	return e.Message
}

// ConfigSource indicates where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceUser        ConfigSource = "user"
	SourceProject     ConfigSource = "project"
	SourceExplicit    ConfigSource = "explicit"
	SourceEnvironment ConfigSource = "environment"
)
