package console

import "github.com/charmbracelet/lipgloss"

// Styles contains lipgloss styles for the shell.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Success  lipgloss.Style
	Banner   lipgloss.Style
	Box      lipgloss.Style
	Active   lipgloss.Style
	Inactive lipgloss.Style
	Key      lipgloss.Style
	KeyDesc  lipgloss.Style
}

// DefaultStyles returns the default lipgloss styles.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")),
		Subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")),
		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")),
		Banner: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("166")).
			Padding(0, 1),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2),
		Active: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("63")).
			Padding(0, 1),
		Inactive: lipgloss.NewStyle().
			Foreground(lipgloss.Color("248")).
			Padding(0, 1),
		Key: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")),
		KeyDesc: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
	}
}
