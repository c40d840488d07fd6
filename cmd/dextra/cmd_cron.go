package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// CronCmd is the external clock: it calls a server's minute trigger on a
// cron schedule with the shared secret.
type CronCmd struct {
	URL      string        `arg:"" optional:"" default:"http://127.0.0.1:8080" help:"Base URL of a running server"`
	Secret   string        `env:"CRON_SECRET" required:"" help:"Shared secret for the minute trigger"`
	Schedule string        `default:"* * * * *" help:"Five-field cron schedule"`
	Timeout  time.Duration `default:"5m" help:"Timeout for one trigger request"`
}

// Run executes the cron command until interrupted
func (c *CronCmd) Run(ctx context.Context, cli *CLI) error {
	logger := createCLILogger(cli.LogLevel, "info")
	client := &http.Client{Timeout: c.Timeout}
	url := strings.TrimRight(c.URL, "/") + "/api/cron/minute"

	cl := cronLogger{logger}
	sched := cron.New(
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)),
		cron.WithChain(cron.SkipIfStillRunning(cl)),
		cron.WithLogger(cl),
	)
	if _, err := sched.AddFunc(c.Schedule, func() {
		if err := triggerMinute(ctx, client, url, c.Secret); err != nil {
			logger.Error("minute trigger failed", "url", url, "error", err)
			return
		}
		logger.Debug("minute trigger sent", "url", url)
	}); err != nil {
		return fmt.Errorf("%w: invalid schedule %q: %v", errUsage, c.Schedule, err)
	}

	logger.Info("cron started", "url", url, "schedule", c.Schedule)
	sched.Start()
	<-ctx.Done()
	<-sched.Stop().Done()
	return nil
}

// triggerMinute calls the minute endpoint once.
func triggerMinute(ctx context.Context, client *http.Client, url, secret string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+secret)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return err
	}
	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("unexpected response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		return fmt.Errorf("trigger rejected (status %d): %s", resp.StatusCode, out.Error)
	}
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
