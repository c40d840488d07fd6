package agent

import (
	"context"
	"encoding/json"

	"github.com/elee1766/dextra/src/aisdk"
	jsonschema "github.com/swaggest/jsonschema-go"
)

// Tool is the interface that all tools must implement
type Tool interface {
	// GetType returns the tool type (always "function" for now)
	GetType() string

	GetName() string
	GetDescription() string

	// GetParameters returns the JSON schema for the tool's parameters
	GetParameters() *jsonschema.Schema

	// Execute runs the tool on behalf of caller.
	Execute(ctx context.Context, caller *Caller, call *aisdk.ToolCall) (*aisdk.ToolResponse, error)
}

// ArgumentValidator is implemented by tools that can check arguments without
// running. The executor uses it to decide whether a call needs repair.
type ArgumentValidator interface {
	ValidateArguments(raw json.RawMessage) error
}
