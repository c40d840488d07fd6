package executor

// StopReason says why a step loop ended.
type StopReason string

const (
	// StopText means the model answered without calling tools.
	StopText StopReason = "stop"
	// StopClientTool means the model called a tool the client answers, such
	// as the confirmation prompt.
	StopClientTool StopReason = "client-tool"
	// StopMaxSteps means the step budget ran out.
	StopMaxSteps StopReason = "max-steps"
	// StopUnknownTool means the model called a tool it was not given.
	StopUnknownTool StopReason = "unknown-tool"
	// StopError means a model call failed.
	StopError StopReason = "error"
)
