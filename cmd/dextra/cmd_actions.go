package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/elee1766/dextra/src/copilot/tools"
	"github.com/elee1766/dextra/src/runner"
	"github.com/elee1766/dextra/src/storage"
)

// ActionsCmd inspects and manages scheduled actions
type ActionsCmd struct {
	List   ActionsListCmd   `cmd:"" help:"List scheduled actions"`
	Pause  ActionsPauseCmd  `cmd:"" help:"Pause an action"`
	Resume ActionsResumeCmd `cmd:"" help:"Resume a paused action"`
	Delete ActionsDeleteCmd `cmd:"" help:"Delete an action"`
}

// ActionsListCmd lists actions for one user or all users
type ActionsListCmd struct {
	User   string `short:"u" help:"Only list this user's actions"`
	Format string `short:"f" enum:"table,json" default:"table" help:"Output format"`
}

// Run executes the actions list command
func (c *ActionsListCmd) Run(ctx context.Context, cli *CLI) error {
	db, err := cli.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	userIDs := []string{c.User}
	if c.User == "" {
		users, err := db.Users(ctx)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		userIDs = userIDs[:0]
		for _, u := range users {
			userIDs = append(userIDs, u.ID)
		}
	}

	var actions []*storage.Action
	for _, id := range userIDs {
		list, err := db.Actions(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list actions: %w", err)
		}
		actions = append(actions, list...)
	}

	if c.Format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(actions)
	}
	printActions(os.Stdout, actions)
	return nil
}

func printActions(out io.Writer, actions []*storage.Action) {
	if len(actions) == 0 {
		fmt.Fprintln(out, "No actions.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tNAME\tSCHEDULE\tRUNS\tSTATUS\tLAST RUN\tDESCRIPTION")
	for _, a := range actions {
		schedule := "-"
		if a.Frequency != nil && *a.Frequency > 0 {
			schedule = runner.FrequencyLabel(*a.Frequency)
		}
		runs := fmt.Sprintf("%d", a.TimesExecuted)
		if a.MaxExecutions != nil && *a.MaxExecutions > 0 {
			runs = fmt.Sprintf("%d/%d", a.TimesExecuted, *a.MaxExecutions)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.UserID, a.Name, schedule, runs, actionStatus(a), formatTime(a.LastExecutedAt),
			truncate(tools.DisplayDescription(a.Description), 60))
	}
	w.Flush()
}

func actionStatus(a *storage.Action) string {
	switch {
	case a.Completed:
		return "completed"
	case a.Paused:
		return "paused"
	default:
		return "active"
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// ActionRef names an action and its owner
type ActionRef struct {
	ID   string `arg:"" help:"Action id"`
	User string `short:"u" required:"" help:"Owning user id"`
}

// ActionsPauseCmd pauses an action
type ActionsPauseCmd struct {
	ActionRef `embed:""`
}

// Run executes the actions pause command
func (c *ActionsPauseCmd) Run(ctx context.Context, cli *CLI) error {
	return setPaused(ctx, cli, c.ActionRef, true)
}

// ActionsResumeCmd resumes an action
type ActionsResumeCmd struct {
	ActionRef `embed:""`
}

// Run executes the actions resume command
func (c *ActionsResumeCmd) Run(ctx context.Context, cli *CLI) error {
	return setPaused(ctx, cli, c.ActionRef, false)
}

func setPaused(ctx context.Context, cli *CLI, ref ActionRef, paused bool) error {
	db, err := cli.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SetActionPaused(ctx, ref.ID, ref.User, paused); err != nil {
		return fmt.Errorf("action %s: %w", ref.ID, err)
	}
	state := "resumed"
	if paused {
		state = "paused"
	}
	fmt.Printf("Action %s %s\n", ref.ID, state)
	return nil
}

// ActionsDeleteCmd deletes an action
type ActionsDeleteCmd struct {
	ActionRef `embed:""`
}

// Run executes the actions delete command
func (c *ActionsDeleteCmd) Run(ctx context.Context, cli *CLI) error {
	db, err := cli.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteAction(ctx, c.ID, c.User); err != nil {
		return fmt.Errorf("action %s: %w", c.ID, err)
	}
	fmt.Printf("Action %s deleted\n", c.ID)
	return nil
}
