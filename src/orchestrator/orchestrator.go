// Package orchestrator asks a small model which tools a conversation needs.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/elee1766/dextra/src/aisdk"
	"github.com/elee1766/dextra/src/catalog"
	"github.com/elee1766/dextra/src/metrics"
	"github.com/elee1766/dextra/src/schema"
	"github.com/kaptinlin/jsonrepair"
)

// Config configures an Orchestrator.
type Config struct {
	Model   aisdk.ModelClient
	Catalog *catalog.Catalog
	// Disabled and Env gate which entries are listed in the prompt.
	Disabled []string
	Env      catalog.Env
	// Preamble is prepended to the selection rules.
	Preamble string
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Orchestrator selects tool groups for a conversation.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger
}

// Selection is the result of SelectToolGroups.
type Selection struct {
	// Names are the selected tool and group names, baseline first. Nil means
	// the model signaled no restriction and the full catalog applies.
	Names []string
	// Invalid holds the INVALID_TOOL entries, also present in Names.
	Invalid []string
	Usage   aisdk.Usage
}

// HasInvalid reports whether the model asked for a tool the catalog lacks.
func (s *Selection) HasInvalid() bool {
	return s != nil && len(s.Invalid) > 0
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Model == nil {
		return nil, ErrModelRequired
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("orchestrator catalog is required")
	}
	if cfg.Env == nil {
		cfg.Env = catalog.OSEnv{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{cfg: cfg, logger: logger.With("component", "orchestrator")}, nil
}

type selectionOutput struct {
	Tools []string `json:"tools"`
}

// SelectToolGroups asks the model which tools the conversation needs. When
// suppressConfirmation is set the confirmation tool is neither suggested by
// the prompt nor returned.
func (o *Orchestrator) SelectToolGroups(ctx context.Context, history []*aisdk.Message, suppressConfirmation bool) (*Selection, error) {
	entries := o.cfg.Catalog.Available(o.cfg.Disabled, o.cfg.Env)
	prompt := BuildPrompt(o.cfg.Preamble, o.cfg.Catalog.Groups(), entries)
	if suppressConfirmation {
		prompt = stripConfirmation(prompt)
	}

	messages := []*aisdk.Message{{Role: aisdk.RoleSystem, Content: prompt}}
	messages = append(messages, plainHistory(history)...)

	resp, err := o.cfg.Model.CreateChatCompletion(ctx, &aisdk.ChatCompletionRequest{
		Messages:       messages,
		ResponseFormat: schema.ResponseFormat("tool_selection", schema.StringList("tools", "The tool or tool group names needed to handle the user request.")),
	})
	if err != nil {
		return nil, fmt.Errorf("tool selection: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("tool selection: %w", ErrMalformedSelection)
	}

	raw, err := parseSelection(resp.Choices[0].Message.Content)
	if err != nil {
		o.logger.WarnContext(ctx, "could not parse tool selection", "content", resp.Choices[0].Message.Content, "error", err)
		return nil, err
	}

	sel := normalize(raw, suppressConfirmation)
	sel.Usage = resp.Usage
	for _, name := range sel.Names {
		if !strings.HasPrefix(name, catalog.InvalidToolPrefix) && !o.cfg.Catalog.IsKnown(name) {
			o.logger.DebugContext(ctx, "model selected unknown name", "name", name)
		}
	}
	if sel.HasInvalid() {
		o.cfg.Metrics.InvalidSelection()
	}
	o.logger.DebugContext(ctx, "selected tools", "names", sel.Names, "invalid", sel.Invalid, "suppress_confirmation", suppressConfirmation)
	return sel, nil
}

// normalize applies the selection policy to the raw model output.
func normalize(raw []string, suppressConfirmation bool) *Selection {
	var cleaned []string
	for _, name := range raw {
		if name = strings.TrimSpace(name); name != "" {
			cleaned = append(cleaned, name)
		}
	}
	if len(cleaned) == 0 {
		return &Selection{}
	}

	sel := &Selection{}
	seen := map[string]bool{}
	for _, name := range append([]string{catalog.SearchTokenTool}, cleaned...) {
		if seen[name] {
			continue
		}
		seen[name] = true
		if suppressConfirmation && name == catalog.ConfirmationTool {
			continue
		}
		if strings.HasPrefix(name, catalog.InvalidToolPrefix) {
			sel.Invalid = append(sel.Invalid, name)
		}
		sel.Names = append(sel.Names, name)
	}
	return sel
}

// parseSelection accepts {"tools": [...]} or a bare array, repairing
// slightly malformed JSON first.
func parseSelection(content string) ([]string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil
	}

	if names, ok := decodeSelection(content); ok {
		return names, nil
	}
	repaired, err := jsonrepair.JSONRepair(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSelection, err)
	}
	if names, ok := decodeSelection(repaired); ok {
		return names, nil
	}
	return nil, ErrMalformedSelection
}

func decodeSelection(s string) ([]string, bool) {
	var obj selectionOutput
	if err := json.Unmarshal([]byte(s), &obj); err == nil && obj.Tools != nil {
		return obj.Tools, true
	}
	var arr []string
	if err := json.Unmarshal([]byte(s), &arr); err == nil {
		return arr, true
	}
	return nil, false
}

// plainHistory keeps the text of user and assistant messages. Tool calls and
// tool results are summarized so the request needs no tool definitions.
func plainHistory(history []*aisdk.Message) []*aisdk.Message {
	out := make([]*aisdk.Message, 0, len(history))
	for _, m := range history {
		if m == nil {
			continue
		}
		switch m.Role {
		case aisdk.RoleUser:
			if m.Content != "" {
				out = append(out, &aisdk.Message{Role: aisdk.RoleUser, Content: m.Content})
			}
		case aisdk.RoleAssistant:
			content := m.Content
			for _, tc := range m.ToolCalls {
				if content != "" {
					content += "\n"
				}
				content += "[called " + tc.Function.Name + "]"
			}
			if content != "" {
				out = append(out, &aisdk.Message{Role: aisdk.RoleAssistant, Content: content})
			}
		}
	}
	return out
}
