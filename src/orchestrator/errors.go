package orchestrator

import "errors"

var (
	// ErrModelRequired is returned when no model client is configured.
	ErrModelRequired = errors.New("orchestrator model client is required")
	// ErrMalformedSelection is returned when the model output is not a list
	// of names even after local repair.
	ErrMalformedSelection = errors.New("malformed tool selection")
)
