// Package schema builds the JSON schemas used for structured model output:
// the orchestrator's tool selection and the argument repair call.
package schema
