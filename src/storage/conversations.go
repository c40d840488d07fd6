package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

const conversationColumns = `id, user_id, title, created_at, updated_at, last_message_at, last_read_at`

// CreateConversation creates a new conversation in the database
func CreateConversation(ctx context.Context, db Execer, conversation *Conversation) error {
	if conversation.ID == "" {
		conversation.ID = NewID()
	}
	now := time.Now()
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = now
	}
	if conversation.UpdatedAt.IsZero() {
		conversation.UpdatedAt = now
	}
	conversation.CreatedAt = dbTime(conversation.CreatedAt)
	conversation.UpdatedAt = dbTime(conversation.UpdatedAt)

	query := `INSERT INTO conversations (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, conversation.ID, conversation.UserID, conversation.Title, conversation.CreatedAt, conversation.UpdatedAt)
	return err
}

// GetConversation retrieves a conversation by id regardless of owner.
func GetConversation(ctx context.Context, db sqlscan.Querier, id string) (*Conversation, error) {
	var conv Conversation
	err := sqlscan.Get(ctx, db, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// GetConversationForUser retrieves a conversation owned by userID.
func GetConversationForUser(ctx context.Context, db sqlscan.Querier, id, userID string) (*Conversation, error) {
	var conv Conversation
	err := sqlscan.Get(ctx, db, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// ListConversationsByUser returns the user's conversations, most recently
// active first.
func ListConversationsByUser(ctx context.Context, db sqlscan.Querier, userID string) ([]Conversation, error) {
	var out []Conversation
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE user_id = ?
		ORDER BY COALESCE(last_message_at, created_at) DESC`
	err := sqlscan.Select(ctx, db, &out, query, userID)
	return out, err
}

// TouchConversation bumps last_message_at and updated_at.
func TouchConversation(ctx context.Context, db Execer, id string, at time.Time) error {
	at = dbTime(at)
	_, err := db.ExecContext(ctx, `UPDATE conversations SET last_message_at = ?, updated_at = ? WHERE id = ?`, at, at, id)
	return err
}

// MarkConversationRead sets last_read_at for a conversation owned by userID.
func MarkConversationRead(ctx context.Context, db Execer, id, userID string, at time.Time) error {
	_, err := db.ExecContext(ctx, `UPDATE conversations SET last_read_at = ? WHERE id = ? AND user_id = ?`, dbTime(at), id, userID)
	return err
}

// DeleteConversation removes a conversation owned by userID together with
// its messages and actions. Either everything is removed or nothing is.
func DeleteConversation(ctx context.Context, db *sql.DB, id, userID string) error {
	return WithTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := GetConversationForUser(ctx, tx, id, userID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM actions WHERE conversation_id = ? AND user_id = ?`, id, userID); err != nil {
			return fmt.Errorf("delete actions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID); err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
		return nil
	})
}
