package tool_askforconfirmation

import (
	"context"
	"errors"

	"github.com/elee1766/dextra/src/agent"
	"github.com/elee1766/dextra/src/catalog"
)

const Name = catalog.ConfirmationTool

const description = "Confirm the execution of a function on behalf of the user."

// ErrClientSide is returned if the tool is ever executed on the server. The
// client answers it with a confirm or deny button.
var ErrClientSide = errors.New("askForConfirmation is answered by the user")

type Input struct {
	Message string `json:"message" required:"true" description:"The message to ask for confirmation"`
}

func Tool() (agent.Tool, error) {
	return agent.NewGenericTool(Name, description, func(ctx context.Context, caller *agent.Caller, input Input) (struct{}, error) {
		return struct{}{}, ErrClientSide
	})
}
