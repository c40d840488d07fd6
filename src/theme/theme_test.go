package theme

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestStyles(t *testing.T) {
	s := Default.Styles()
	assert.Equal(t, lipgloss.Color("#7aa2f7"), s.Tool.GetForeground())
	assert.True(t, s.Tool.GetBold())
	assert.True(t, s.Pending.GetBold())
	assert.Equal(t, lipgloss.Color("#f7768e"), s.Fail.GetForeground())

	plain := Plain.Styles()
	assert.Equal(t, "✓ ok", plain.OK.Render("✓ ok"))
	assert.Equal(t, lipgloss.NoColor{}, plain.Muted.GetForeground())
}
