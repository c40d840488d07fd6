package executor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/x/ansi"
	"github.com/elee1766/dextra/src/theme"
)

// ConsoleProcessorConfig configures the console event processor
type ConsoleProcessorConfig struct {
	ShowToolArguments bool
	ShowToolResults   bool
	// Highlight colors tool arguments with chroma.
	Highlight bool
	// MaxResultPreview is the display width results are cut to.
	MaxResultPreview int
	// ChromaStyle names the chroma style used for arguments.
	ChromaStyle string
	// Theme colors the output. The zero value is uncolored.
	Theme theme.Theme
}

// ConsoleEventProcessor renders turn events as terminal lines.
type ConsoleEventProcessor struct {
	out    io.Writer
	config ConsoleProcessorConfig
	styles theme.Styles
	inText bool
}

// NewConsoleEventProcessor creates a new console event processor
func NewConsoleEventProcessor(out io.Writer, config ConsoleProcessorConfig) *ConsoleEventProcessor {
	if config.MaxResultPreview <= 0 {
		config.MaxResultPreview = 200
	}
	if config.ChromaStyle == "" {
		config.ChromaStyle = "monokai"
	}
	return &ConsoleEventProcessor{out: out, config: config, styles: config.Theme.Styles()}
}

// Process handles a single event
func (p *ConsoleEventProcessor) Process(event Event) error {
	switch event.Type {
	case EventTextDelta:
		p.inText = true
		_, err := io.WriteString(p.out, event.TextDelta)
		return err
	case EventToolCall:
		p.endText()
		return p.toolCall(event)
	case EventToolResult:
		return p.toolResult(event)
	case EventToolUpdate:
		p.endText()
		_, err := fmt.Fprintln(p.out, p.styles.Muted.Render(fmt.Sprintf("  %s resolved: %s", event.ToolCallID, unquote(event.Result))))
		return err
	case EventError:
		p.endText()
		_, err := fmt.Fprintln(p.out, p.styles.Fail.Render("✗ "+event.Error))
		return err
	case EventFinish:
		p.endText()
		if event.FinishReason == StopClientTool {
			_, err := fmt.Fprintln(p.out, p.styles.Pending.Render("? waiting for your confirmation (reply yes or no)"))
			return err
		}
		if event.Usage != nil && event.Usage.TotalTokens > 0 {
			_, err := fmt.Fprintln(p.out, p.styles.Muted.Render(fmt.Sprintf("  %d tokens", event.Usage.TotalTokens)))
			return err
		}
	}
	return nil
}

// Close cleans up resources
func (p *ConsoleEventProcessor) Close() error {
	p.endText()
	return nil
}

func (p *ConsoleEventProcessor) endText() {
	if p.inText {
		fmt.Fprintln(p.out)
		p.inText = false
	}
}

func (p *ConsoleEventProcessor) toolCall(e Event) error {
	if _, err := fmt.Fprintln(p.out, p.styles.Tool.Render("→ "+e.ToolName)); err != nil {
		return err
	}
	if !p.config.ShowToolArguments || len(e.Args) == 0 {
		return nil
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, e.Args, "    ", "  "); err != nil {
		pretty.Reset()
		pretty.Write(e.Args)
	}
	text := "    " + pretty.String()
	if p.config.Highlight {
		var hl bytes.Buffer
		if err := quick.Highlight(&hl, text, "json", "terminal256", p.config.ChromaStyle); err == nil {
			text = hl.String()
		}
	}
	_, err := fmt.Fprintln(p.out, text)
	return err
}

func (p *ConsoleEventProcessor) toolResult(e Event) error {
	mark := p.styles.OK.Render("  ✓ " + e.ToolName)
	if e.IsError {
		mark = p.styles.Fail.Render("  ✗ " + e.ToolName)
	}
	if !p.config.ShowToolResults || len(e.Result) == 0 {
		_, err := fmt.Fprintln(p.out, mark)
		return err
	}
	preview := strings.Join(strings.Fields(string(e.Result)), " ")
	preview = ansi.Truncate(preview, p.config.MaxResultPreview, "…")
	_, err := fmt.Fprintln(p.out, mark+" "+p.styles.Muted.Render(preview))
	return err
}

func unquote(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}
