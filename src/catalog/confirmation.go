package catalog

import (
	"strings"

	jsonschema "github.com/swaggest/jsonschema-go"
)

// ConfirmationProperty is the parameter whose default marks a tool as gated.
const ConfirmationProperty = "requiresConfirmation"

// ConfirmationMarker is the description text that marks a tool as gated.
const ConfirmationMarker = "requires confirmation"

// RequiresConfirmation reports whether e must be confirmed by a human before
// it runs. A tool is gated when the entry says so, when its schema has a
// requiresConfirmation property defaulting to true, or when its description
// carries the marker. All three are checked.
func RequiresConfirmation(e Entry) bool {
	if e.ConfirmationRequired {
		return true
	}
	if e.Tool == nil {
		return false
	}
	return schemaRequiresConfirmation(e.Tool.GetParameters()) ||
		descriptionRequiresConfirmation(e.Tool.GetDescription())
}

func schemaRequiresConfirmation(schema *jsonschema.Schema) bool {
	if schema == nil {
		return false
	}
	prop, ok := schema.Properties[ConfirmationProperty]
	if !ok || prop.TypeObject == nil || prop.TypeObject.Default == nil {
		return false
	}
	v, ok := (*prop.TypeObject.Default).(bool)
	return ok && v
}

func descriptionRequiresConfirmation(desc string) bool {
	lower := strings.ToLower(desc)
	return strings.Contains(lower, ConfirmationMarker) || strings.Contains(lower, strings.ToLower(ConfirmationProperty))
}
