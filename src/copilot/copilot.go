// Package copilot assembles the Solana copilot: its tool groups, tools and
// system prompt.
package copilot

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/elee1766/dextra/src/agent"
	"github.com/elee1766/dextra/src/catalog"
	"github.com/elee1766/dextra/src/copilot/dexscreener"
	"github.com/elee1766/dextra/src/copilot/tools"
	"github.com/elee1766/dextra/src/copilot/tools/tool_createaction"
	"github.com/elee1766/dextra/src/copilot/toolsutil"
)

// Group names.
const (
	CoreTools   = "coreTools"
	WebTools    = "webTools"
	DefiTools   = "defiTools"
	SocialTools = "socialTools"
)

// Groups returns the tool groups the orchestrator chooses from.
func Groups() []catalog.Group {
	return []catalog.Group{
		{Name: CoreTools, Description: "Core utility tools for general operations, including actions, searching token info, utility functions."},
		{Name: WebTools, Description: "Web scraping and content extraction tools for reading web pages and extracting content."},
		{Name: DefiTools, Description: "Tools for interacting with DeFi protocols on Solana, including market data, token information and details."},
		{Name: SocialTools, Description: "Tools for interacting with Telegram for notifications and messaging."},
	}
}

type Config struct {
	// Store persists actions created by the createAction tool.
	Store tool_createaction.Store
	// Env supplies tool credentials. Defaults to the process environment.
	Env catalog.Env

	HTTPClient     *http.Client
	DexScreenerURL string
	TelegramURL    string
	CacheSize      int
	CacheTTL       time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

// NewCatalog builds the catalog of every copilot tool.
func NewCatalog(cfg Config) (*catalog.Catalog, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("copilot: action store is required")
	}
	if cfg.Env == nil {
		cfg.Env = catalog.OSEnv{}
	}
	if cfg.Logger != nil {
		toolsutil.SetLogger(cfg.Logger.With("component", "tools"))
	}

	opts := []dexscreener.Option{}
	if cfg.DexScreenerURL != "" {
		opts = append(opts, dexscreener.WithBaseURL(cfg.DexScreenerURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, dexscreener.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.CacheSize > 0 || cfg.CacheTTL > 0 {
		opts = append(opts, dexscreener.WithCache(cfg.CacheSize, cfg.CacheTTL))
	}
	dex := dexscreener.New(opts...)

	cat, err := catalog.New(Groups()...)
	if err != nil {
		return nil, err
	}

	type build struct {
		entry catalog.Entry
		tool  func() (agent.Tool, error)
	}
	builds := []build{
		{catalog.Entry{Group: CoreTools}, func() (agent.Tool, error) { return tools.SearchTokenTool(dex) }},
		{catalog.Entry{Group: CoreTools, ClientSide: true, RenderHint: catalog.RenderExpanded}, tools.AskForConfirmationTool},
		{catalog.Entry{Group: CoreTools, ConfirmationRequired: true, RenderHint: catalog.RenderExpanded}, func() (agent.Tool, error) {
			return tools.CreateActionTool(cfg.Store, cfg.Now)
		}},
		{catalog.Entry{Group: DefiTools, RenderHint: catalog.RenderExpanded}, func() (agent.Tool, error) { return tools.GetTokenPairsTool(dex) }},
		{catalog.Entry{Group: WebTools, RenderHint: catalog.RenderCollapsible}, func() (agent.Tool, error) { return tools.ReadPageTool(cfg.HTTPClient) }},
		{catalog.Entry{
			Group:                SocialTools,
			RequiredCredentials:  []string{tools.TelegramTokenVar},
			ConfirmationRequired: true,
			RenderHint:           catalog.RenderCollapsible,
		}, func() (agent.Tool, error) {
			return tools.SendTelegramMessageTool(cfg.HTTPClient, cfg.Env, cfg.TelegramURL)
		}},
	}
	for _, b := range builds {
		tool, err := b.tool()
		if err != nil {
			return nil, fmt.Errorf("failed to build tool: %w", err)
		}
		b.entry.Tool = tool
		if err := cat.Register(b.entry); err != nil {
			return nil, err
		}
	}
	return cat, nil
}
