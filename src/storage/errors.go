package storage

import "errors"

var (
	// ErrNotFound is returned when a row does not exist or is not owned by
	// the requesting user.
	ErrNotFound = errors.New("not found")
	// ErrLeaseHeld is returned by ClaimAction when another runner holds the lease.
	ErrLeaseHeld = errors.New("action lease held by another runner")
)
