package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

// CLI represents the main CLI structure
type CLI struct {
	Config   string `short:"c" type:"path" help:"Config file layered over the user and project config"`
	APIKey   string `env:"OPENROUTER_API_KEY" help:"OpenRouter API key"`
	BaseURL  string `help:"Custom API base URL"`
	DB       string `type:"path" help:"SQLite database path"`
	LogLevel string `enum:",debug,info,warn,error" default:"" help:"Log level (debug, info, warn, error)"`

	Serve   ServeCmd   `cmd:"" help:"Serve the chat, action and cron endpoints"`
	Tick    TickCmd    `cmd:"" help:"Run due scheduled actions once"`
	Cron    CronCmd    `cmd:"" help:"Call a server's minute trigger every minute"`
	Chat    ChatCmd    `cmd:"" help:"Send one message and render the reply"`
	Migrate MigrateCmd `cmd:"" help:"Create or upgrade the database"`
	Actions ActionsCmd `cmd:"" help:"Inspect and manage scheduled actions"`
	Users   UsersCmd   `cmd:"" help:"Manage API callers"`
	Tools   ToolsCmd   `cmd:"" help:"List the tool catalog"`
	Models  ModelsCmd  `cmd:"" help:"List models offered by the API"`
	Cfg     ConfigCmd  `cmd:"" name:"config" help:"Show or initialize configuration"`
}

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("dextra"),
		kong.Description("Solana DeFi copilot: chat, tools and scheduled actions"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.BindTo(runCtx, (*context.Context)(nil)),
	)

	err := ctx.Run(&cli)
	if err != nil {
		stop()
		FatalError(createCLILogger(cli.LogLevel, "warn"), err)
	}
}
