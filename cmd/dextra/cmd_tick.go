package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/elee1766/dextra/src/runner"
)

// TickCmd runs the action runner once, like one minute trigger
type TickCmd struct{}

// Run executes the tick command
func (c *TickCmd) Run(ctx context.Context, cli *CLI) error {
	a, err := cli.newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Runner.Tick(ctx)
	if err != nil {
		return fmt.Errorf("failed to process actions: %w", err)
	}
	printReport(os.Stdout, report)
	return nil
}

func printReport(w io.Writer, r *runner.TickReport) {
	fmt.Fprintf(w, "fetched %d, due %d, processed %d\n", r.Fetched, r.Due, r.Processed)
	fmt.Fprintf(w, "succeeded %d, failed %d, paused %d, skipped %d, deferred %d\n", r.Succeeded, r.Failed, r.Paused, r.Skipped, r.Deferred)
}
