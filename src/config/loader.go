package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// EnvironmentPrefix prefixes every dextra environment override.
const EnvironmentPrefix = "DEXTRA"

// LookupEnvFunc reads one environment variable.
type LookupEnvFunc func(key string) (string, bool)

// Loader handles loading and merging configurations from multiple sources
type Loader struct {
	fs        afero.Fs
	lookupEnv LookupEnvFunc
	validator *Validator
	paths     []source
}

type source struct {
	path   string
	origin ConfigSource
}

// NewLoader creates a loader reading files from fsys and overrides from
// lookupEnv. Nil arguments mean the OS filesystem and environment.
func NewLoader(fsys afero.Fs, lookupEnv LookupEnvFunc) *Loader {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	return &Loader{
		fs:        fsys,
		lookupEnv: lookupEnv,
		validator: NewValidator(),
		paths: []source{
			{UserConfigPath(), SourceUser},
			{ProjectConfigFile, SourceProject},
		},
	}
}

// Load layers defaults, the user config, ./dextra.json, the explicit file
// and environment overrides, then validates the result. A missing explicit
// file is an error; the others are optional.
func (l *Loader) Load(explicit string) (*Config, error) {
	config := DefaultConfig()

	sources := l.paths
	if explicit != "" {
		sources = append(sources[:len(sources):len(sources)], source{explicit, SourceExplicit})
	}
	for _, src := range sources {
		err := l.loadFile(src.path, config)
		if errors.Is(err, fs.ErrNotExist) && src.origin != SourceExplicit {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s config from %s: %w", src.origin, src.path, err)
		}
	}

	if err := l.applyEnvironmentOverrides(config); err != nil {
		return nil, err
	}

	if err := l.validator.Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// loadFile decodes path over config, so only keys present in the file
// replace earlier values.
func (l *Loader) loadFile(path string, config *Config) error {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(config); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// SaveFile writes config as indented JSON, creating parent directories.
func (l *Loader) SaveFile(config *Config, path string) error {
	if err := l.validator.Validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := l.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	// the file may hold the API key
	if err := afero.WriteFile(l.fs, path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (l *Loader) env(name string) (string, bool) {
	v, ok := l.lookupEnv(name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// applyEnvironmentOverrides applies environment variable overrides to config
func (l *Loader) applyEnvironmentOverrides(config *Config) error {
	p := EnvironmentPrefix + "_"

	if v, ok := l.env("OPENROUTER_API_KEY"); ok {
		config.API.APIKey = v
	}
	if v, ok := l.env(p + "API_KEY"); ok {
		config.API.APIKey = v
	}
	if v, ok := l.env(p + "BASE_URL"); ok {
		config.API.BaseURL = v
	}
	if v, ok := l.env(p + "MODEL"); ok {
		config.Models.Chat = v
	}
	if v, ok := l.env(p + "ORCHESTRATOR_MODEL"); ok {
		config.Models.Orchestrator = v
	}
	if v, ok := l.env(p + "CLASSIFIER_MODEL"); ok {
		config.Models.Classifier = v
	}
	if v, ok := l.env(p + "ADDR"); ok {
		config.Server.Addr = v
	}
	if v, ok := l.env("CRON_SECRET"); ok {
		config.Server.CronSecret = v
	}
	if v, ok := l.env(p + "CRON_SECRET"); ok {
		config.Server.CronSecret = v
	}
	if v, ok := l.env(p + "DB"); ok {
		config.Storage.Path = v
	}
	if v, ok := l.env(p + "LOG_LEVEL"); ok {
		config.Logging.Level = v
	}
	if v, ok := l.env(p + "DISABLED_TOOLS"); ok {
		config.Tools.Disabled = splitList(v)
	}
	if v, ok := l.env(p + "CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sCONCURRENCY %q: %w", p, v, err)
		}
		config.Runner.Concurrency = n
	}
	if v, ok := l.env(p + "BATCH_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sBATCH_TIMEOUT %q: %w", p, v, err)
		}
		config.Runner.BatchTimeout = Duration(d)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
