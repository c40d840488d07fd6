package main

import (
	"context"
	"fmt"
)

// MigrateCmd opens the database, applying pending migrations
type MigrateCmd struct{}

// Run executes the migrate command
func (c *MigrateCmd) Run(ctx context.Context, cli *CLI) error {
	db, err := cli.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	versions, err := db.AppliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}
	fmt.Printf("Database: %s\n", db.Path())
	fmt.Printf("Applied migrations: %v\n", versions)
	return nil
}
