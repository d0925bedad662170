package chat

import "github.com/charmbracelet/lipgloss"

// Theme colors.
var (
	colorPrimary = lipgloss.Color("12")
	colorAccent  = lipgloss.Color("13")
	colorMuted   = lipgloss.Color("8")
	colorError   = lipgloss.Color("9")
	colorOK      = lipgloss.Color("10")
)

// Styles holds the lipgloss styles used by the chat view.
type Styles struct {
	Header    lipgloss.Style
	Badge     lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style
	UserLabel lipgloss.Style
	UserText  lipgloss.Style
	Model     lipgloss.Style
	Input     lipgloss.Style
	Content   lipgloss.Style
}

// DefaultStyles returns the default theme.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(colorPrimary).
			Padding(0, 1),
		Badge: lipgloss.NewStyle().
			Foreground(colorAccent),
		Muted: lipgloss.NewStyle().
			Foreground(colorMuted),
		Success: lipgloss.NewStyle().
			Foreground(colorOK),
		Error: lipgloss.NewStyle().
			Foreground(colorError),
		UserLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			MarginTop(1),
		UserText: lipgloss.NewStyle().
			PaddingLeft(2),
		Model: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			MarginTop(1),
		Input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1),
		Content: lipgloss.NewStyle().
			Padding(0, 1),
	}
}
