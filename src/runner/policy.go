package runner

import (
	"fmt"
	"time"

	"github.com/elee1766/dextra/src/storage"
)

const (
	DefaultPauseThreshold = 3
	DefaultStaleAfter     = 24 * time.Hour
)

// Policy is the failure circuit breaker applied after every run.
type Policy struct {
	// PauseThreshold pauses an action that has never succeeded once this
	// many executions have failed.
	PauseThreshold int64
	// StaleAfter pauses a failing action whose last success is older.
	StaleAfter time.Duration
}

// DefaultPolicy returns the standard circuit breaker settings.
func DefaultPolicy() Policy {
	return Policy{PauseThreshold: DefaultPauseThreshold, StaleAfter: DefaultStaleAfter}
}

// Pause reasons, also used as metric labels.
const (
	PauseStale    = "stale"
	PauseRepeated = "repeated"
)

// Outcome is the bookkeeping result of one run.
type Outcome struct {
	// Action is an updated copy of the input.
	Action *storage.Action
	// PausedNow is set when this run tripped the breaker.
	PausedNow   bool
	PauseReason string
	// Notice is the assistant message posted to the home conversation on a
	// pause.
	Notice string
}

// Apply computes the bookkeeping fields after a run. It never unpauses.
func Apply(action *storage.Action, success bool, now time.Time, policy Policy) Outcome {
	a := *action
	a.TimesExecuted++
	a.LastExecutedAt = &now
	if a.MaxExecutions != nil && *a.MaxExecutions > 0 && a.TimesExecuted >= *a.MaxExecutions {
		a.Completed = true
	}

	out := Outcome{Action: &a}
	if success {
		a.LastSuccessAt = &now
		return out
	}
	a.LastFailureAt = &now
	if a.Paused {
		return out
	}

	switch {
	case a.LastSuccessAt != nil:
		if now.Sub(*a.LastSuccessAt) > policy.StaleAfter {
			out.PauseReason = PauseStale
			out.Notice = fmt.Sprintf("I've paused action %s because it has not executed successfully in the last %s.", a.ID, staleLabel(policy.StaleAfter))
		}
	case policy.PauseThreshold > 0 && a.TimesExecuted >= policy.PauseThreshold:
		out.PauseReason = PauseRepeated
		out.Notice = fmt.Sprintf("I've paused action %s because it has failed to execute successfully %d times.", a.ID, a.TimesExecuted)
	}
	if out.PauseReason != "" {
		a.Paused = true
		out.PausedNow = true
	}
	return out
}

func staleLabel(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int64(d/time.Hour))
	}
	return d.String()
}
