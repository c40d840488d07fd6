package storage

import (
	"context"
	"database/sql"
	"time"
)

// The methods below bind the query functions to the database handle so that
// services can depend on narrow interfaces instead of *sql.DB.

func (d *DB) CreateUser(ctx context.Context, user *User) error {
	return CreateUser(ctx, d.db, user)
}

func (d *DB) UserByToken(ctx context.Context, token string) (*User, error) {
	return GetUserByToken(ctx, d.db, token)
}

func (d *DB) UserByID(ctx context.Context, id string) (*User, error) {
	return GetUserByID(ctx, d.db, id)
}

func (d *DB) Users(ctx context.Context) ([]User, error) {
	return ListUsers(ctx, d.db)
}

func (d *DB) CreateConversation(ctx context.Context, conv *Conversation) error {
	return CreateConversation(ctx, d.db, conv)
}

func (d *DB) Conversation(ctx context.Context, id string) (*Conversation, error) {
	return GetConversation(ctx, d.db, id)
}

func (d *DB) ConversationForUser(ctx context.Context, id, userID string) (*Conversation, error) {
	return GetConversationForUser(ctx, d.db, id, userID)
}

func (d *DB) Conversations(ctx context.Context, userID string) ([]Conversation, error) {
	return ListConversationsByUser(ctx, d.db, userID)
}

func (d *DB) MarkConversationRead(ctx context.Context, id, userID string, at time.Time) error {
	return MarkConversationRead(ctx, d.db, id, userID, at)
}

func (d *DB) DeleteConversation(ctx context.Context, id, userID string) error {
	return DeleteConversation(ctx, d.db, id, userID)
}

// SaveMessages inserts a batch of messages and bumps the conversation's
// last_message_at to the newest one, in one transaction.
func (d *DB) SaveMessages(ctx context.Context, conversationID string, messages []*Message) error {
	if len(messages) == 0 {
		return nil
	}
	return WithTx(ctx, d.db, func(tx *sql.Tx) error {
		if err := CreateMessages(ctx, tx, messages); err != nil {
			return err
		}
		return TouchConversation(ctx, tx, conversationID, messages[len(messages)-1].CreatedAt)
	})
}

func (d *DB) Messages(ctx context.Context, conversationID string) ([]*Message, error) {
	return GetMessagesByConversationID(ctx, d.db, conversationID)
}

func (d *DB) RecentMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	return GetRecentMessages(ctx, d.db, conversationID, limit)
}

func (d *DB) LatestMessageTime(ctx context.Context, conversationID string) (*time.Time, error) {
	return LatestMessageTime(ctx, d.db, conversationID)
}

func (d *DB) UpdateMessageToolInvocations(ctx context.Context, messageID string, invocations ToolInvocations) error {
	return UpdateMessageToolInvocations(ctx, d.db, messageID, invocations)
}

func (d *DB) SaveTokenStat(ctx context.Context, stat *TokenStat) error {
	return CreateTokenStat(ctx, d.db, stat)
}

func (d *DB) TokensUsed(ctx context.Context, userID string) (int, error) {
	return SumTokensByUser(ctx, d.db, userID)
}

func (d *DB) CreateAction(ctx context.Context, action *Action) error {
	return CreateAction(ctx, d.db, action)
}

func (d *DB) ActionForUser(ctx context.Context, id, userID string) (*Action, error) {
	return GetActionForUser(ctx, d.db, id, userID)
}

func (d *DB) Actions(ctx context.Context, userID string) ([]*Action, error) {
	return ListActions(ctx, d.db, userID)
}

func (d *DB) EligibleActions(ctx context.Context, now time.Time) ([]*Action, error) {
	return ListEligibleActions(ctx, d.db, now)
}

func (d *DB) ClaimAction(ctx context.Context, id, owner string, now, leaseUntil time.Time) error {
	return ClaimAction(ctx, d.db, id, owner, now, leaseUntil)
}

func (d *DB) ReleaseAction(ctx context.Context, id, owner string) error {
	return ReleaseAction(ctx, d.db, id, owner)
}

func (d *DB) RecordActionExecution(ctx context.Context, action *Action) error {
	return RecordActionExecution(ctx, d.db, action)
}

func (d *DB) UpdateAction(ctx context.Context, id, userID string, patch ActionPatch) (*Action, error) {
	return UpdateAction(ctx, d.db, id, userID, patch)
}

func (d *DB) SetActionPaused(ctx context.Context, id, userID string, paused bool) error {
	return SetActionPaused(ctx, d.db, id, userID, paused)
}

func (d *DB) DeleteAction(ctx context.Context, id, userID string) error {
	return DeleteAction(ctx, d.db, id, userID)
}
