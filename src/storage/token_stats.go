package storage

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

// CreateTokenStat records token usage for a batch of messages.
func CreateTokenStat(ctx context.Context, db Execer, stat *TokenStat) error {
	if stat.ID == "" {
		stat.ID = NewID()
	}
	if stat.CreatedAt.IsZero() {
		stat.CreatedAt = time.Now()
	}
	stat.CreatedAt = dbTime(stat.CreatedAt)
	if stat.MessageIDs == nil {
		stat.MessageIDs = JSONStringArray{}
	}

	query := `INSERT INTO token_stats (id, user_id, message_ids, prompt_tokens, completion_tokens, total_tokens, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, stat.ID, stat.UserID, stat.MessageIDs, stat.PromptTokens, stat.CompletionTokens, stat.TotalTokens, stat.CreatedAt)
	return err
}

// SumTokensByUser returns the total tokens recorded for a user.
func SumTokensByUser(ctx context.Context, db sqlscan.Querier, userID string) (int, error) {
	var total int
	err := sqlscan.Get(ctx, db, &total, `SELECT COALESCE(SUM(total_tokens), 0) FROM token_stats WHERE user_id = ?`, userID)
	return total, err
}
