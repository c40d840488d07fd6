package tool_createaction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/elee1766/dextra/src/agent"
	"github.com/elee1766/dextra/src/catalog"
	"github.com/elee1766/dextra/src/copilot/toolsutil"
	"github.com/elee1766/dextra/src/runner"
	"github.com/elee1766/dextra/src/storage"
	jsonschema "github.com/swaggest/jsonschema-go"
)

const Name = catalog.CreateActionTool

const description = "Create an action in the database (requires confirmation). Do proper checks if the action requires additional setup before creating an action."

// NoConfirmationSuffix is appended to stored descriptions so a replayed
// prompt never asks for confirmation again.
const NoConfirmationSuffix = " (Does not require confirmation)"

// DisplayDescription strips NoConfirmationSuffix for people.
func DisplayDescription(desc string) string {
	return strings.TrimSuffix(desc, NoConfirmationSuffix)
}

type Store interface {
	CreateAction(ctx context.Context, action *storage.Action) error
}

type Input struct {
	RequiresConfirmation *bool  `json:"requiresConfirmation,omitempty" default:"true"`
	Name                 string `json:"name" required:"true" description:"Shorthand human readable name to classify the action." validate:"max=200"`
	Description          string `json:"description" required:"true" description:"Action description to display as the main content. Should not contain the frequency or max executions"`
	Frequency            int64  `json:"frequency" required:"true" description:"Frequency in seconds (3600 for hourly, 86400 for daily, or any custom intervals of 15 minutes (900))" validate:"gte=60"`
	MaxExecutions        *int64 `json:"maxExecutions,omitempty" description:"Max number of times the action can be executed" validate:"omitempty,gte=1"`
	StartTimeOffset      *int64 `json:"startTimeOffset,omitempty" description:"Offset in milliseconds for how long to wait before starting the action. Useful for scheduling actions in the future, e.g. 1 hour from now = 3600000" validate:"omitempty,gte=0"`
}

type Output struct {
	Success        bool            `json:"success"`
	Data           *storage.Action `json:"data"`
	FrequencyLabel string          `json:"frequencyLabel"`
	NextExecution  time.Time       `json:"nextExecution"`
}

// Tool returns the createAction tool. now may be nil.
func Tool(store Store, now func() time.Time) (agent.Tool, error) {
	if now == nil {
		now = time.Now
	}
	tool, err := agent.NewGenericTool(Name, description, func(ctx context.Context, caller *agent.Caller, input Input) (Output, error) {
		if caller == nil || caller.UserID == "" || caller.ConversationID == "" {
			return Output{}, fmt.Errorf("%w: actions need a user and a conversation", toolsutil.ErrUnauthorized)
		}
		at := now()
		action := &storage.Action{
			UserID:         caller.UserID,
			ConversationID: caller.ConversationID,
			Name:           input.Name,
			Description:    strings.TrimSpace(input.Description) + NoConfirmationSuffix,
			Frequency:      &input.Frequency,
			MaxExecutions:  input.MaxExecutions,
			Triggered:      true,
			CreatedAt:      at,
			UpdatedAt:      at,
		}
		next := at.Truncate(time.Minute).Add(time.Minute)
		if input.StartTimeOffset != nil && *input.StartTimeOffset > 0 {
			start := at.Add(time.Duration(*input.StartTimeOffset) * time.Millisecond)
			action.StartTime = &start
			next = start
		}
		if err := store.CreateAction(ctx, action); err != nil {
			return Output{}, fmt.Errorf("failed to create action: %w", err)
		}
		toolsutil.GetLogger().InfoContext(ctx, "created action", "action_id", action.ID, "user_id", action.UserID, "frequency", input.Frequency)
		return Output{
			Success:        true,
			Data:           action,
			FrequencyLabel: runner.FrequencyLabel(input.Frequency),
			NextExecution:  next,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	markConfirmationDefault(tool.Schema)
	return tool, nil
}

// markConfirmationDefault pins the requiresConfirmation default to true so
// the capability gate sees it regardless of how the tag was reflected.
func markConfirmationDefault(schema *jsonschema.Schema) {
	if schema == nil {
		return
	}
	prop, ok := schema.Properties[catalog.ConfirmationProperty]
	if !ok || prop.TypeObject == nil {
		return
	}
	var def interface{} = true
	prop.TypeObject.Default = &def
	schema.Properties[catalog.ConfirmationProperty] = prop
}
