// Package theme holds the terminal palette used when rendering turns.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme is a set of colors for console output.
type Theme struct {
	Tool      lipgloss.Color
	Success   lipgloss.Color
	Failure   lipgloss.Color
	TextMuted lipgloss.Color
	Pending   lipgloss.Color
}

// Default is a dark-terminal palette.
var Default = Theme{
	Tool:      lipgloss.Color("#7aa2f7"),
	Success:   lipgloss.Color("#9ece6a"),
	Failure:   lipgloss.Color("#f7768e"),
	TextMuted: lipgloss.Color("#808080"),
	Pending:   lipgloss.Color("#e0af68"),
}

// Plain renders everything in the terminal's own colors.
var Plain = Theme{}

// Styles are the lipgloss styles a theme yields.
type Styles struct {
	Tool    lipgloss.Style
	OK      lipgloss.Style
	Fail    lipgloss.Style
	Muted   lipgloss.Style
	Pending lipgloss.Style
}

// Styles builds styles from t. Empty colors leave the foreground unset.
func (t Theme) Styles() Styles {
	fg := func(c lipgloss.Color) lipgloss.Style {
		s := lipgloss.NewStyle()
		if c != "" {
			s = s.Foreground(c)
		}
		return s
	}
	return Styles{
		Tool:    fg(t.Tool).Bold(true),
		OK:      fg(t.Success),
		Fail:    fg(t.Failure),
		Muted:   fg(t.TextMuted),
		Pending: fg(t.Pending).Bold(true),
	}
}
