package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/elee1766/dextra/src/config"
)

// ConfigCmd shows and initializes configuration
type ConfigCmd struct {
	Show ConfigShowCmd `cmd:"" help:"Print the effective configuration"`
	Init ConfigInitCmd `cmd:"" help:"Write the default configuration to the user config file"`
}

// ConfigShowCmd prints the effective configuration
type ConfigShowCmd struct{}

// Run executes the config show command
func (c *ConfigShowCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	shown := *cfg
	shown.API.APIKey = maskAPIKey(cfg.API.APIKey)
	shown.Server.CronSecret = maskAPIKey(cfg.Server.CronSecret)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(&shown)
}

// ConfigInitCmd writes the defaults
type ConfigInitCmd struct {
	Path  string `arg:"" optional:"" type:"path" help:"Where to write, defaults to the user config file"`
	Force bool   `help:"Overwrite an existing file"`
}

// Run executes the config init command
func (c *ConfigInitCmd) Run(ctx context.Context, cli *CLI) error {
	path := c.Path
	if path == "" {
		path = config.UserConfigPath()
	}
	if _, err := os.Stat(path); err == nil && !c.Force {
		return fmt.Errorf("%w: %s exists, pass --force to overwrite", errUsage, path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := config.NewLoader(nil, nil).SaveFile(config.DefaultConfig(), path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

// maskAPIKey keeps the first and last four characters of a secret
func maskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
