package catalog

// Tool names the core treats specially.
const (
	// SearchTokenTool is unioned into every non-empty orchestrator selection.
	SearchTokenTool = "searchToken"
	// ConfirmationTool asks the user to approve a gated call. It is answered
	// by the client.
	ConfirmationTool = "askForConfirmation"
	// CreateActionTool schedules an action. It is never offered to scheduled runs.
	CreateActionTool = "createAction"
)

// InvalidToolPrefix marks orchestrator output for a capability the catalog
// does not have.
const InvalidToolPrefix = "INVALID_TOOL:"
