package main

import (
	"context"
	"log/slog"
)

// ServeCmd runs the HTTP server
type ServeCmd struct {
	Addr       string `help:"Listen address, overrides the config"`
	CronSecret string `env:"CRON_SECRET" help:"Shared secret the minute trigger must present"`
	Debug      bool   `help:"Run gin in debug mode"`
}

// Run executes the serve command
func (c *ServeCmd) Run(ctx context.Context, cli *CLI) error {
	a, err := cli.newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if c.Addr != "" {
		a.Config.Server.Addr = c.Addr
	}
	if c.CronSecret != "" {
		a.Config.Server.CronSecret = c.CronSecret
	}
	if c.Debug {
		a.Config.Server.Debug = true
	}
	if a.Config.Server.CronSecret == "" {
		a.Logger.Warn("no cron secret configured, the minute trigger will reject every request")
	}

	srv, err := a.Server()
	if err != nil {
		return err
	}
	a.Logger.Info("listening", slog.String("addr", a.Config.Server.Addr), slog.String("db", a.Store.Path()))
	return srv.ListenAndServe(ctx, a.Config.Server.Addr)
}
