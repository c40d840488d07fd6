package runner

import (
	"fmt"
	"time"

	"github.com/elee1766/dextra/src/storage"
)

// IsDue reports whether action should run at now. Actions without a
// frequency are never due; actions that never ran are always due.
func IsDue(action *storage.Action, now time.Time) bool {
	if action == nil || action.Frequency == nil || *action.Frequency <= 0 {
		return false
	}
	if action.LastExecutedAt == nil {
		return true
	}
	next := action.LastExecutedAt.Add(time.Duration(*action.Frequency) * time.Second)
	return !now.Before(next)
}

// FrequencyLabel renders a frequency in seconds for people.
func FrequencyLabel(seconds int64) string {
	switch seconds {
	case 3600:
		return "Hourly"
	case 86400:
		return "Daily"
	case 604800:
		return "Weekly"
	case 2592000:
		return "Monthly"
	}
	switch {
	case seconds < 3600:
		return every(seconds/60, "Minute")
	case seconds < 86400:
		return every(seconds/3600, "Hour")
	default:
		return every(seconds/86400, "Day")
	}
}

func every(n int64, unit string) string {
	if n > 1 {
		unit += "s"
	}
	return fmt.Sprintf("Every %d %s", n, unit)
}
