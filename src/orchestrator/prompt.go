package orchestrator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/elee1766/dextra/src/catalog"
)

const confirmationNote = "(requires confirmation)"

// confirmationText matches the marker in any case, with the parentheses or
// separator that usually come with it.
var confirmationText = regexp.MustCompile(`(?i)[ \t]*[,;]?[ \t]*\(?[ \t]*` + regexp.QuoteMeta(catalog.ConfirmationMarker) + `(?:[ \t]*\))?`)

const selectionRules = `Your Task:
Analyze the user's message and return the tools and tool groups needed to handle it.

Rules:
- Only include the askForConfirmation tool if the user's message requires a transaction signature or if they are creating an action.
- Return names exactly as listed below, either tool names or group names.
- Be complete: include all necessary tools to handle the request. If you're unsure, it's better to include the tool than to leave it out.
- If the request cannot be completed with the available tools, return entries describing the unknown tools, like "INVALID_TOOL:<name>".
- If the message is small talk that needs no tools, return an empty list.`

// BuildPrompt renders the selection system prompt for the given entries.
// Gated tools are annotated with "(requires confirmation)".
func BuildPrompt(preamble string, groups []catalog.Group, entries []catalog.Entry) string {
	var b strings.Builder
	if preamble != "" {
		b.WriteString(strings.TrimSpace(preamble))
		b.WriteString("\n\n")
	}
	b.WriteString(selectionRules)

	b.WriteString("\n\nTool Groups:\n")
	for _, g := range groups {
		fmt.Fprintf(&b, "- **%s**: %s\n", g.Name, g.Description)
	}

	b.WriteString("\nAvailable Tools:\n")
	for _, e := range entries {
		desc := strings.TrimSpace(e.Description())
		if catalog.RequiresConfirmation(e) && !strings.Contains(strings.ToLower(desc), catalog.ConfirmationMarker) {
			desc += " " + confirmationNote
		}
		fmt.Fprintf(&b, "- **%s** (%s): %s\n", e.Name(), e.Group, desc)
	}
	return b.String()
}

// stripConfirmation removes the confirmation notes so the model does not
// select the confirmation tool for gated tools.
func stripConfirmation(prompt string) string {
	return confirmationText.ReplaceAllString(prompt, "")
}
