package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elee1766/dextra/src/agent"
	"github.com/elee1766/dextra/src/aisdk"
	"github.com/elee1766/dextra/src/catalog"
	"github.com/elee1766/dextra/src/storage"
	"github.com/google/uuid"
)

var errEmptyResponse = errors.New("model returned no choices")

type loopConfig struct {
	// messages is the full request history, system prompt first.
	messages  []*aisdk.Message
	entries   []catalog.Entry
	caller    *agent.Caller
	stream    bool
	emitter   *EventEmitter
	callbacks *Callbacks
}

type loopResult struct {
	// messages are the assistant messages produced, one per step, unsaved.
	messages []*storage.Message
	usage    aisdk.Usage
	steps    int
	// executed counts tool calls that ran and returned a result.
	executed int
	// succeeded counts the executed calls whose result was not an error.
	succeeded int
	stop      StopReason
	err       error
}

// runSteps drives the model until it answers without tools, hands control
// to the client, or the step budget runs out. Steps run strictly in order.
func (s *Service) runSteps(ctx context.Context, lc loopConfig) *loopResult {
	res := &loopResult{stop: StopMaxSteps}

	toolbox, err := agent.NewToolboxFrom(catalog.Tools(lc.entries)...)
	if err != nil {
		res.stop, res.err = StopError, err
		return res
	}
	toolbox.RegisterMiddleware(agent.LoggingMiddleware(s.logger))
	byName := make(map[string]catalog.Entry, len(lc.entries))
	for _, e := range lc.entries {
		byName[e.Name()] = e
	}
	var chatTools []*aisdk.ChatTool
	if toolbox.Len() > 0 {
		chatTools = agent.ToChatTools(toolbox.Tools())
	}

	messages := lc.messages
	for step := 1; step <= s.maxSteps; step++ {
		res.steps = step
		lc.emitter.setStep(step)

		resp, err := s.complete(ctx, &aisdk.ChatCompletionRequest{Messages: messages, Tools: chatTools}, lc.stream, lc.emitter)
		if err != nil {
			res.stop, res.err = StopError, fmt.Errorf("step %d: %w", step, err)
			return res
		}
		res.usage = res.usage.Add(resp.Usage)
		if len(resp.Choices) == 0 {
			res.stop, res.err = StopError, fmt.Errorf("step %d: %w", step, errEmptyResponse)
			return res
		}

		reply := resp.Choices[0].Message
		calls := make([]aisdk.ToolCall, len(reply.ToolCalls))
		for i, call := range reply.ToolCalls {
			call.Index = nil
			if call.ID == "" {
				call.ID = "call_" + uuid.NewString()
			}
			if call.Type == "" {
				call.Type = "function"
			}
			calls[i] = call
		}
		out := &storage.Message{Role: aisdk.RoleAssistant, Content: reply.Content}
		wire := &aisdk.Message{Role: aisdk.RoleAssistant, Content: reply.Content, ToolCalls: calls}

		if len(calls) == 0 {
			res.messages = append(res.messages, out)
			res.stop = StopText
			return res
		}

		var toolMessages []*aisdk.Message
		var clientCall bool
		var unknown *agent.NoSuchToolError
		for i := range calls {
			call := calls[i]
			name := call.Function.Name
			entry, known := byName[name]
			tool, _ := toolbox.GetTool(name)

			switch {
			case !known:
				// never repaired; the call stays visible with its failure
				unknown = &agent.NoSuchToolError{Name: name}
				_ = lc.emitter.EmitToolCall(call)
				payload := failurePayload(unknown.Error())
				_ = lc.emitter.EmitToolResult(call, payload, true, "")
				s.metrics.ToolCall(name, "unknown")
				out.ToolInvocations = append(out.ToolInvocations, resultInvocation(call, payload))
				toolMessages = append(toolMessages, toolMessage(call, payload))
				continue

			case entry.ClientSide:
				_ = lc.emitter.EmitToolCall(call)
				s.metrics.ToolCall(name, "client")
				out.ToolInvocations = append(out.ToolInvocations, storage.ToolInvocation{
					ToolCallID: call.ID,
					ToolName:   name,
					Args:       validJSON(call.Function.RawArguments()),
					State:      storage.InvocationCall,
				})
				clientCall = true
				continue
			}

			var repairUsage aisdk.Usage
			call, repairUsage = s.repair(ctx, tool, call)
			res.usage = res.usage.Add(repairUsage)
			calls[i] = call

			_ = lc.emitter.EmitToolCall(call)
			lc.callbacks.toolCall(call)
			tr, err := toolbox.ExecuteTool(ctx, lc.caller, &call)
			payload, isErr := toolPayload(tr, err)
			res.executed++
			if isErr {
				s.metrics.ToolCall(name, "error")
			} else {
				res.succeeded++
				s.metrics.ToolCall(name, "ok")
			}
			_ = lc.emitter.EmitToolResult(call, payload, isErr, entry.RenderHint)
			lc.callbacks.toolResult(call, payload, isErr)

			out.ToolInvocations = append(out.ToolInvocations, resultInvocation(call, payload))
			toolMessages = append(toolMessages, toolMessage(call, payload))
		}

		res.messages = append(res.messages, out)
		messages = append(messages, wire)
		messages = append(messages, toolMessages...)

		switch {
		case unknown != nil:
			res.stop, res.err = StopUnknownTool, unknown
			return res
		case clientCall:
			res.stop = StopClientTool
			return res
		}
	}
	return res
}

// complete makes one model call. In streaming mode text deltas are emitted
// as they arrive and the chunks are folded into a single response.
func (s *Service) complete(ctx context.Context, req *aisdk.ChatCompletionRequest, stream bool, emitter *EventEmitter) (*aisdk.ChatCompletionResponse, error) {
	if !stream {
		return s.model.CreateChatCompletion(ctx, req)
	}
	st, err := s.model.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	agg := aisdk.NewStreamAggregator()
	err = aisdk.StreamToCallback(st, func(chunk *aisdk.StreamChunk) error {
		agg.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta != nil {
			_ = emitter.EmitTextDelta(chunk.Choices[0].Delta.Content)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return agg.ToResponse(), nil
}

type failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func failurePayload(msg string) json.RawMessage {
	b, _ := json.Marshal(failure{Success: false, Error: msg})
	return b
}

// toolPayload turns a tool outcome into the JSON fed back to the model.
// Failures become {"success":false,"error":...}.
func toolPayload(resp *aisdk.ToolResponse, err error) (json.RawMessage, bool) {
	switch {
	case err != nil:
		return failurePayload(err.Error()), true
	case resp == nil:
		return failurePayload("tool returned no result"), true
	case resp.IsError:
		return failurePayload(string(resp.Content)), true
	}
	return validJSON(resp.Content), false
}

func resultInvocation(call aisdk.ToolCall, payload json.RawMessage) storage.ToolInvocation {
	return storage.ToolInvocation{
		ToolCallID: call.ID,
		ToolName:   call.Function.Name,
		Args:       validJSON(call.Function.RawArguments()),
		State:      storage.InvocationResult,
		Result:     payload,
	}
}

func toolMessage(call aisdk.ToolCall, payload json.RawMessage) *aisdk.Message {
	return &aisdk.Message{
		Role:       aisdk.RoleTool,
		Name:       call.Function.Name,
		ToolCallID: call.ID,
		Content:    string(payload),
	}
}

// LoopRequest is a non-interactive run, such as a scheduled action.
type LoopRequest struct {
	Caller *agent.Caller
	// Prompt is sent as the only user message.
	Prompt  string
	Entries []catalog.Entry
	// Unsupported lists capabilities the selector could not match.
	Unsupported []string
	Callbacks   *Callbacks
}

// LoopResult is the outcome of RunLoop. Messages are not saved.
type LoopResult struct {
	Messages []*storage.Message
	Usage    aisdk.Usage
	Steps    int
	// Executed counts tool calls that ran, whether they succeeded or not.
	Executed int
	// Succeeded counts the executed calls that returned a non-error result.
	Succeeded int
	Stop      StopReason
}

// RunLoop runs the step loop with non-streaming completions and the same
// repair path as RunTurn. The returned error is the loop's failure, if any;
// the result is always set.
func (s *Service) RunLoop(ctx context.Context, req LoopRequest) (*LoopResult, error) {
	if req.Caller == nil {
		return nil, ErrCallerRequired
	}
	prompt := BuildSystemPrompt(s.systemPrompt, PromptContext{
		Caller:      req.Caller,
		Now:         s.now(),
		Unsupported: req.Unsupported,
	})
	lr := s.runSteps(ctx, loopConfig{
		messages: []*aisdk.Message{
			{Role: aisdk.RoleSystem, Content: prompt},
			{Role: aisdk.RoleUser, Content: req.Prompt},
		},
		entries:   req.Entries,
		caller:    req.Caller,
		callbacks: req.Callbacks,
	})
	status := "ok"
	if lr.err != nil {
		status = "error"
	}
	s.metrics.Turn("scheduled", status, lr.steps)
	return &LoopResult{
		Messages:  lr.messages,
		Usage:     lr.usage,
		Steps:     lr.steps,
		Executed:  lr.executed,
		Succeeded: lr.succeeded,
		Stop:      lr.stop,
	}, lr.err
}
