package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/elee1766/dextra/src/aisdk"
)

// ToolExecutor is a function type for tool execution
type ToolExecutor func(ctx context.Context, caller *Caller, call *aisdk.ToolCall) (*aisdk.ToolResponse, error)

// Toolbox holds a set of tools keyed by name and runs calls through a
// middleware chain.
type Toolbox[T Tool] struct {
	tools      map[string]T
	middleware []ToolMiddleware
}

// ToolMiddleware is a function that wraps a ToolExecutor to add functionality.
type ToolMiddleware func(next ToolExecutor) ToolExecutor

// NewToolbox creates an empty toolbox.
func NewToolbox[T Tool]() *Toolbox[T] {
	return &Toolbox[T]{
		tools: make(map[string]T),
	}
}

// NewToolboxFrom creates a toolbox holding tools.
func NewToolboxFrom[T Tool](tools ...T) (*Toolbox[T], error) {
	tb := NewToolbox[T]()
	for _, t := range tools {
		if err := tb.RegisterTool(t); err != nil {
			return nil, err
		}
	}
	return tb, nil
}

// RegisterTool registers a tool.
func (tm *Toolbox[T]) RegisterTool(tool T) error {
	if tool.GetName() == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := tm.tools[tool.GetName()]; exists {
		return fmt.Errorf("tool %s is already registered", tool.GetName())
	}
	tm.tools[tool.GetName()] = tool
	return nil
}

// RegisterMiddleware registers middleware that will be applied to all tool executions.
// Middleware is applied in the order it's registered (first registered = outermost layer).
func (tm *Toolbox[T]) RegisterMiddleware(middleware ToolMiddleware) {
	tm.middleware = append(tm.middleware, middleware)
}

// Remove drops the named tools. Unknown names are ignored.
func (tm *Toolbox[T]) Remove(names ...string) {
	for _, name := range names {
		delete(tm.tools, name)
	}
}

// Tools returns the registered tools sorted by name.
func (tm *Toolbox[T]) Tools() []T {
	names := make([]string, 0, len(tm.tools))
	for name := range tm.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]T, 0, len(names))
	for _, name := range names {
		out = append(out, tm.tools[name])
	}
	return out
}

// Len returns the number of registered tools.
func (tm *Toolbox[T]) Len() int {
	return len(tm.tools)
}

// ExecuteTool executes a tool call with middleware applied.
func (tm *Toolbox[T]) ExecuteTool(ctx context.Context, caller *Caller, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
	tool, exists := tm.tools[call.Function.Name]
	if !exists {
		return nil, &NoSuchToolError{Name: call.Function.Name}
	}

	exec := ToolExecutor(func(ctx context.Context, caller *Caller, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
		return tool.Execute(ctx, caller, call)
	})
	for i := len(tm.middleware) - 1; i >= 0; i-- {
		exec = tm.middleware[i](exec)
	}
	return exec(ctx, caller, call)
}

// GetTool returns a specific tool by name.
func (tm *Toolbox[T]) GetTool(name string) (T, bool) {
	tool, exists := tm.tools[name]
	return tool, exists
}

// LoggingMiddleware logs tool execution details.
func LoggingMiddleware(logger *slog.Logger) ToolMiddleware {
	return func(next ToolExecutor) ToolExecutor {
		return func(ctx context.Context, caller *Caller, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
			start := time.Now()
			log := logger.With("tool", call.Function.Name, "call_id", call.ID)
			if caller != nil {
				log = log.With("user_id", caller.UserID, "scheduled", caller.Scheduled)
			}
			log.DebugContext(ctx, "executing tool", "args", call.Function.Arguments)
			result, err := next(ctx, caller, call)
			switch {
			case err != nil:
				log.WarnContext(ctx, "tool execution failed", "error", err, "duration", time.Since(start))
			case result != nil && result.IsError:
				log.InfoContext(ctx, "tool returned error", "error", string(result.Content), "duration", time.Since(start))
			default:
				log.DebugContext(ctx, "tool execution completed", "duration", time.Since(start))
			}
			return result, err
		}
	}
}
