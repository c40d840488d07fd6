package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

const actionColumns = `id, user_id, conversation_id, name, description, frequency, max_executions,
	times_executed, last_executed_at, last_success_at, last_failure_at, paused, completed,
	triggered, start_time, lease_owner, lease_expires_at, created_at, updated_at`

// CreateAction inserts a new action.
func CreateAction(ctx context.Context, db Execer, action *Action) error {
	if action.ID == "" {
		action.ID = NewID()
	}
	now := time.Now()
	if action.CreatedAt.IsZero() {
		action.CreatedAt = now
	}
	if action.UpdatedAt.IsZero() {
		action.UpdatedAt = now
	}
	action.CreatedAt = dbTime(action.CreatedAt)
	action.UpdatedAt = dbTime(action.UpdatedAt)
	action.StartTime = dbTimePtr(action.StartTime)

	query := `INSERT INTO actions (id, user_id, conversation_id, name, description, frequency, max_executions,
		times_executed, paused, completed, triggered, start_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		action.ID, action.UserID, action.ConversationID, action.Name, action.Description,
		action.Frequency, action.MaxExecutions, action.TimesExecuted,
		action.Paused, action.Completed, action.Triggered, action.StartTime,
		action.CreatedAt, action.UpdatedAt,
	)
	return err
}

// GetActionForUser retrieves an action owned by userID.
func GetActionForUser(ctx context.Context, db sqlscan.Querier, id, userID string) (*Action, error) {
	var a Action
	err := sqlscan.Get(ctx, db, &a, `SELECT `+actionColumns+` FROM actions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListActions returns every action, oldest first. userID filters when non-empty.
func ListActions(ctx context.Context, db sqlscan.Querier, userID string) ([]*Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions`
	var args []interface{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at`
	var out []*Action
	err := sqlscan.Select(ctx, db, &out, query, args...)
	return out, err
}

// ListEligibleActions returns triggered actions that are neither completed
// nor paused and whose start time has passed.
func ListEligibleActions(ctx context.Context, db sqlscan.Querier, now time.Time) ([]*Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions
		WHERE triggered = 1 AND completed = 0 AND paused = 0
		AND (start_time IS NULL OR start_time <= ?)
		ORDER BY created_at`
	var out []*Action
	err := sqlscan.Select(ctx, db, &out, query, dbTime(now))
	return out, err
}

// ClaimAction takes the run lease on an action until leaseUntil. It returns
// ErrLeaseHeld when an unexpired lease belongs to someone else.
func ClaimAction(ctx context.Context, db Execer, id, owner string, now, leaseUntil time.Time) error {
	query := `UPDATE actions SET lease_owner = ?, lease_expires_at = ?
		WHERE id = ? AND (lease_expires_at IS NULL OR lease_expires_at < ?)`
	res, err := db.ExecContext(ctx, query, owner, dbTime(leaseUntil), id, dbTime(now))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLeaseHeld
	}
	return nil
}

// ReleaseAction drops owner's lease without touching the bookkeeping fields,
// so the action is picked up again on the next tick.
func ReleaseAction(ctx context.Context, db Execer, id, owner string) error {
	query := `UPDATE actions SET lease_owner = NULL, lease_expires_at = NULL
		WHERE id = ? AND lease_owner = ?`
	_, err := db.ExecContext(ctx, query, id, owner)
	return err
}

// RecordActionExecution writes the bookkeeping fields of a finished run and
// releases the lease.
func RecordActionExecution(ctx context.Context, db Execer, action *Action) error {
	action.UpdatedAt = dbTime(time.Now())
	action.LeaseOwner = nil
	action.LeaseExpiresAt = nil

	query := `UPDATE actions SET times_executed = ?, last_executed_at = ?, last_success_at = ?,
		last_failure_at = ?, paused = ?, completed = ?, lease_owner = NULL, lease_expires_at = NULL,
		updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query,
		action.TimesExecuted,
		dbTimePtr(action.LastExecutedAt),
		dbTimePtr(action.LastSuccessAt),
		dbTimePtr(action.LastFailureAt),
		action.Paused,
		action.Completed,
		action.UpdatedAt,
		action.ID,
	)
	return err
}

// ActionPatch holds the user-editable fields of an action. Nil fields are
// left unchanged; a zero Frequency or MaxExecutions clears the column.
type ActionPatch struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Description   *string `json:"description,omitempty" validate:"omitempty,min=1"`
	Frequency     *int64  `json:"frequency,omitempty" validate:"omitempty,gte=0"`
	MaxExecutions *int64  `json:"maxExecutions,omitempty" validate:"omitempty,gte=0"`
}

func nullIfZero(v *int64) interface{} {
	if v == nil || *v == 0 {
		return nil
	}
	return *v
}

// UpdateAction applies a patch to an action owned by userID.
func UpdateAction(ctx context.Context, db ExecQuerier, id, userID string, patch ActionPatch) (*Action, error) {
	var sets []string
	var args []interface{}
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Frequency != nil {
		sets = append(sets, "frequency = ?")
		args = append(args, nullIfZero(patch.Frequency))
	}
	if patch.MaxExecutions != nil {
		sets = append(sets, "max_executions = ?")
		args = append(args, nullIfZero(patch.MaxExecutions))
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = ?")
		args = append(args, dbTime(time.Now()), id, userID)
		query := fmt.Sprintf(`UPDATE actions SET %s WHERE id = ? AND user_id = ?`, strings.Join(sets, ", "))
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return nil, err
		}
	}
	return GetActionForUser(ctx, db, id, userID)
}

// SetActionPaused pauses or resumes an action owned by userID.
func SetActionPaused(ctx context.Context, db Execer, id, userID string, paused bool) error {
	res, err := db.ExecContext(ctx, `UPDATE actions SET paused = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		paused, dbTime(time.Now()), id, userID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteAction removes an action owned by userID.
func DeleteAction(ctx context.Context, db Execer, id, userID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM actions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
