package executor

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/elee1766/dextra/src/agent"
	"github.com/elee1766/dextra/src/aisdk"
	"github.com/kaptinlin/jsonrepair"
)

// repair returns call with arguments that pass the tool's validation when
// it can fix them. Syntax slips are repaired locally first; otherwise one
// structured-output call asks the model for corrected arguments, and its
// answer goes through the same validation. A call that still fails is
// returned unchanged so the tool reports the error.
func (s *Service) repair(ctx context.Context, tool agent.Tool, call aisdk.ToolCall) (aisdk.ToolCall, aisdk.Usage) {
	var usage aisdk.Usage
	v, ok := tool.(agent.ArgumentValidator)
	if !ok {
		return call, usage
	}
	verr := v.ValidateArguments(call.Function.RawArguments())
	if verr == nil {
		return call, usage
	}
	log := s.logger.With("tool", call.Function.Name, "call_id", call.ID)
	log.DebugContext(ctx, "tool arguments failed validation", "args", call.Function.Arguments, "error", verr)

	if fixed, err := jsonrepair.JSONRepair(call.Function.Arguments); err == nil && fixed != call.Function.Arguments {
		if v.ValidateArguments(json.RawMessage(fixed)) == nil {
			s.metrics.Repair("local", true)
			call.Function.Arguments = fixed
			return call, usage
		}
	}

	resp, err := s.model.CreateChatCompletion(ctx, &aisdk.ChatCompletionRequest{
		Messages: []*aisdk.Message{{Role: aisdk.RoleUser, Content: repairPrompt(tool, call, verr)}},
		ResponseFormat: &aisdk.ResponseFormat{
			Type: "json_schema",
			JSONSchema: &aisdk.ResponseSchema{
				Name:   "tool_arguments",
				Schema: tool.GetParameters(),
			},
		},
	})
	if err != nil {
		log.WarnContext(ctx, "argument repair call failed", "error", err)
		s.metrics.Repair("model", false)
		return call, usage
	}
	usage = resp.Usage
	if len(resp.Choices) == 0 {
		s.metrics.Repair("model", false)
		return call, usage
	}

	candidate := strings.TrimSpace(resp.Choices[0].Message.Content)
	if !json.Valid([]byte(candidate)) {
		if fixed, err := jsonrepair.JSONRepair(candidate); err == nil {
			candidate = fixed
		}
	}
	if err := v.ValidateArguments(json.RawMessage(candidate)); err != nil {
		log.InfoContext(ctx, "repaired arguments still invalid", "args", candidate, "error", err)
		s.metrics.Repair("model", false)
		return call, usage
	}
	log.InfoContext(ctx, "repaired tool arguments", "args", candidate)
	s.metrics.Repair("model", true)
	call.Function.Arguments = candidate
	return call, usage
}

func repairPrompt(tool agent.Tool, call aisdk.ToolCall, verr error) string {
	schema, _ := json.Marshal(tool.GetParameters())
	return strings.Join([]string{
		`The model tried to call the tool "` + call.Function.Name + `" with the following arguments:`,
		call.Function.Arguments,
		"The arguments were rejected with this error:",
		verr.Error(),
		"The tool accepts the following schema:",
		string(schema),
		"Please fix the arguments.",
	}, "\n")
}
