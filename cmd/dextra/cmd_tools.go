package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/elee1766/dextra/src/catalog"
)

// ToolsCmd lists the tool catalog
type ToolsCmd struct {
	Format    string `short:"f" enum:"table,json" default:"table" help:"Output format"`
	Available bool   `short:"a" help:"Show only tools that are enabled and have their credentials"`
}

type toolRow struct {
	Name        string   `json:"name"`
	Group       string   `json:"group"`
	Available   bool     `json:"available"`
	Confirm     bool     `json:"requiresConfirmation"`
	ClientSide  bool     `json:"clientSide,omitempty"`
	Credentials []string `json:"credentials,omitempty"`
	Description string   `json:"description"`
}

// Run executes the tools command
func (c *ToolsCmd) Run(ctx context.Context, cli *CLI) error {
	a, err := cli.newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rows := toolRows(a.Catalog, a.Config.Tools.Disabled, catalog.OSEnv{})
	if c.Available {
		kept := rows[:0]
		for _, r := range rows {
			if r.Available {
				kept = append(kept, r)
			}
		}
		rows = kept
	}

	if c.Format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	printTools(os.Stdout, rows)
	return nil
}

func toolRows(cat *catalog.Catalog, disabled []string, env catalog.Env) []toolRow {
	available := map[string]bool{}
	for _, e := range cat.Available(disabled, env) {
		available[e.Name()] = true
	}
	var rows []toolRow
	for _, e := range cat.Entries() {
		rows = append(rows, toolRow{
			Name:        e.Name(),
			Group:       e.Group,
			Available:   available[e.Name()],
			Confirm:     catalog.RequiresConfirmation(e),
			ClientSide:  e.ClientSide,
			Credentials: e.RequiredCredentials,
			Description: e.Description(),
		})
	}
	return rows
}

func printTools(out io.Writer, rows []toolRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tGROUP\tAVAILABLE\tCONFIRM\tNEEDS\tDESCRIPTION")
	for _, r := range rows {
		needs := strings.Join(r.Credentials, ",")
		if needs == "" {
			needs = "-"
		}
		desc, _, _ := strings.Cut(r.Description, "\n")
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Name, r.Group, yesNo(r.Available), yesNo(r.Confirm), needs, truncate(desc, 70))
	}
	w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
