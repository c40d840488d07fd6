package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/elee1766/dextra/src/aisdk"
	"github.com/elee1766/dextra/src/orclient"
)

// ModelsCmd lists models offered by the API
type ModelsCmd struct {
	Search    string `arg:"" optional:"" help:"Only models whose id or name contains this"`
	Format    string `short:"f" enum:"table,json" default:"table" help:"Output format"`
	WithCosts bool   `help:"Include pricing information"`
	ToolsOnly bool   `default:"true" negatable:"" help:"Only models that support tool calling"`
}

// Run executes the models command
func (c *ModelsCmd) Run(ctx context.Context, cli *CLI) error {
	cfg, logger, err := cli.setup()
	if err != nil {
		return err
	}
	client := orclient.NewClient(orclient.Config{
		APIKey:  cfg.API.APIKey,
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout.Std(),
		Logger:  logger,
	})

	models, err := client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	models = filterModels(models, c.Search, c.ToolsOnly)

	if c.Format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(models)
	}
	printModelsTable(os.Stdout, models, c.WithCosts)
	return nil
}

func filterModels(models []*aisdk.ModelInfo, search string, toolsOnly bool) []*aisdk.ModelInfo {
	query := strings.ToLower(search)
	var out []*aisdk.ModelInfo
	for _, m := range models {
		if toolsOnly && !slices.Contains(m.SupportedParameters, "tools") {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(m.ID), query) &&
			!strings.Contains(strings.ToLower(m.Name), query) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func printModelsTable(out io.Writer, models []*aisdk.ModelInfo, withCosts bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	if !withCosts {
		fmt.Fprintln(w, "ID\tName\tContext Length")
		for _, model := range models {
			fmt.Fprintf(w, "%s\t%s\t%d\n", model.ID, model.Name, model.ContextLength)
		}
		return
	}
	fmt.Fprintln(w, "ID\tName\tContext\tPrompt Cost\tCompletion Cost")
	for _, model := range models {
		promptCost, completionCost := "N/A", "N/A"
		if model.Pricing != nil {
			if model.Pricing.Prompt != "" {
				promptCost = model.Pricing.Prompt
			}
			if model.Pricing.Completion != "" {
				completionCost = model.Pricing.Completion
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", model.ID, model.Name, model.ContextLength, promptCost, completionCost)
	}
}
