package storage

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

const messageColumns = `id, conversation_id, role, content, tool_invocations, attachments, created_at`

// CreateMessage creates a new message in the database
func CreateMessage(ctx context.Context, db Execer, message *Message) error {
	if message.ID == "" {
		message.ID = NewID()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	message.CreatedAt = dbTime(message.CreatedAt)

	query := `INSERT INTO messages (` + messageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		message.ID,
		message.ConversationID,
		message.Role,
		message.Content,
		message.ToolInvocations,
		message.Attachments,
		message.CreatedAt,
	)
	return err
}

// CreateMessages inserts messages in slice order.
func CreateMessages(ctx context.Context, db Execer, messages []*Message) error {
	for _, m := range messages {
		if err := CreateMessage(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

// GetMessagesByConversationID retrieves all messages for a conversation ordered by creation time
func GetMessagesByConversationID(ctx context.Context, db sqlscan.Querier, conversationID string) ([]*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ? ORDER BY created_at`
	var messages []*Message
	if err := sqlscan.Select(ctx, db, &messages, query, conversationID); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetRecentMessages returns at most limit of the newest messages in a
// conversation, oldest first.
func GetRecentMessages(ctx context.Context, db sqlscan.Querier, conversationID string, limit int) ([]*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ? ORDER BY created_at DESC LIMIT ?`
	var messages []*Message
	if err := sqlscan.Select(ctx, db, &messages, query, conversationID, limit); err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

// LatestMessageTime returns the created_at of the newest message in a
// conversation, or nil when it has none.
func LatestMessageTime(ctx context.Context, db sqlscan.Querier, conversationID string) (*time.Time, error) {
	var m Message
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ? ORDER BY created_at DESC LIMIT 1`
	if err := sqlscan.Get(ctx, db, &m, query, conversationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m.CreatedAt, nil
}

// UpdateMessageToolInvocations replaces the stored invocations of a message.
func UpdateMessageToolInvocations(ctx context.Context, db Execer, messageID string, invocations ToolInvocations) error {
	res, err := db.ExecContext(ctx, `UPDATE messages SET tool_invocations = ? WHERE id = ?`, invocations, messageID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
