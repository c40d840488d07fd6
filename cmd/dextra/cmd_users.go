package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/elee1766/dextra/src/storage"
	"github.com/google/uuid"
)

// UsersCmd manages the users allowed to call the API
type UsersCmd struct {
	Add  UsersAddCmd  `cmd:"" help:"Create a user and print its API token"`
	List UsersListCmd `cmd:"" help:"List users"`
}

// UsersAddCmd creates a user
type UsersAddCmd struct {
	PublicKey string `arg:"" optional:"" help:"Solana wallet public key"`
	Degen     bool   `help:"Skip confirmations for this user"`
	Token     string `help:"Use this token instead of generating one"`
}

// Run executes the users add command
func (c *UsersAddCmd) Run(ctx context.Context, cli *CLI) error {
	db, err := cli.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	token := c.Token
	if token == "" {
		token = newToken()
	}
	user := &storage.User{APIToken: token, PublicKey: c.PublicKey, DegenMode: c.Degen}
	if err := db.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	fmt.Printf("User:  %s\n", user.ID)
	fmt.Printf("Token: %s\n", token)
	return nil
}

// newToken returns a random bearer token.
func newToken() string {
	return "dx_" + uuid.NewString() + uuid.NewString()[:8]
}

// UsersListCmd lists users
type UsersListCmd struct{}

// Run executes the users list command
func (c *UsersListCmd) Run(ctx context.Context, cli *CLI) error {
	db, err := cli.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	users, err := db.Users(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	printUsers(os.Stdout, users)
	return nil
}

func printUsers(out io.Writer, users []storage.User) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWALLET\tDEGEN\tCREATED")
	for _, u := range users {
		wallet := u.PublicKey
		if wallet == "" {
			wallet = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", u.ID, wallet, u.DegenMode, u.CreatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
}
