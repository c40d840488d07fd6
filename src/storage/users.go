package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

const userColumns = `id, api_token, public_key, degen_mode, created_at`

// CreateUser inserts a user.
func CreateUser(ctx context.Context, db Execer, user *User) error {
	if user.ID == "" {
		user.ID = NewID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.CreatedAt = dbTime(user.CreatedAt)

	query := `INSERT INTO users (id, api_token, public_key, degen_mode, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, user.ID, user.APIToken, user.PublicKey, user.DegenMode, user.CreatedAt)
	return err
}

// GetUserByToken resolves an API token to its user.
func GetUserByToken(ctx context.Context, db sqlscan.Querier, token string) (*User, error) {
	return getUser(ctx, db, `SELECT `+userColumns+` FROM users WHERE api_token = ?`, token)
}

// GetUserByID retrieves a user by id.
func GetUserByID(ctx context.Context, db sqlscan.Querier, id string) (*User, error) {
	return getUser(ctx, db, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func getUser(ctx context.Context, db sqlscan.Querier, query string, arg string) (*User, error) {
	var u User
	if err := sqlscan.Get(ctx, db, &u, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ListUsers returns all users, oldest first.
func ListUsers(ctx context.Context, db sqlscan.Querier) ([]User, error) {
	var users []User
	err := sqlscan.Select(ctx, db, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	return users, err
}
