package main

import (
	"context"
	"log/slog"

	"github.com/elee1766/dextra/src/app"
	"github.com/elee1766/dextra/src/config"
	"github.com/elee1766/dextra/src/storage"
)

// loadConfig layers the config files and environment, then applies the
// global flags on top.
func (cli *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(nil, nil).Load(cli.Config)
	if err != nil {
		return nil, err
	}
	if cli.APIKey != "" {
		cfg.API.APIKey = cli.APIKey
	}
	if cli.BaseURL != "" {
		cfg.API.BaseURL = cli.BaseURL
	}
	if cli.DB != "" {
		cfg.Storage.Path = cli.DB
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads the config and builds the logger it names.
func (cli *CLI) setup() (*config.Config, *slog.Logger, error) {
	cfg, err := cli.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, createCLILogger(cfg.Logging.Level, "info"), nil
}

// newApp wires every service from the loaded config.
func (cli *CLI) newApp(ctx context.Context) (*app.App, error) {
	cfg, logger, err := cli.setup()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return app.New(ctx, cfg, app.Options{Logger: logger})
}

// openStore opens only the database named by the config.
func (cli *CLI) openStore(ctx context.Context) (*storage.DB, error) {
	cfg, _, err := cli.setup()
	if err != nil {
		return nil, err
	}
	return app.OpenStore(ctx, cfg.Storage.Path)
}
