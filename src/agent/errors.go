package agent

import "fmt"

// NoSuchToolError is returned when a call names a tool that is not in the
// active tool set. It is never repaired.
type NoSuchToolError struct {
	Name string
}

func (e *NoSuchToolError) Error() string {
	return fmt.Sprintf("tool %s not found", e.Name)
}

// ArgumentError reports arguments that do not satisfy a tool's schema.
type ArgumentError struct {
	Tool string
	Err  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %v", e.Tool, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }
