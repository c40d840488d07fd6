package storage

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a new random row id.
func NewID() string {
	return uuid.NewString()
}

// dbTime normalizes t for storage. All timestamps are written in UTC so that
// the text columns order the same way the instants do.
func dbTime(t time.Time) time.Time {
	return t.UTC()
}

func dbTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
