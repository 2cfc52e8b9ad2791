package ui

import "github.com/charmbracelet/lipgloss"

// Styles holds lipgloss styles for the dashboard and CLI output.
type Styles struct {
	// Panel borders
	ActiveBorder   lipgloss.Style
	InactiveBorder lipgloss.Style

	Title     lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Highlight lipgloss.Style
	Muted     lipgloss.Style

	StatusOK    lipgloss.Style
	StatusWarn  lipgloss.Style
	StatusError lipgloss.Style
	StatusInfo  lipgloss.Style

	Selected lipgloss.Style

	HelpKey  lipgloss.Style
	HelpText lipgloss.Style
}

// NewStyles creates the default style set.
func NewStyles() *Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#666", Dark: "#888"}
	highlight := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	green := lipgloss.AdaptiveColor{Light: "#22863a", Dark: "#3fb950"}
	yellow := lipgloss.AdaptiveColor{Light: "#b08800", Dark: "#d29922"}
	red := lipgloss.AdaptiveColor{Light: "#cb2431", Dark: "#f85149"}
	blue := lipgloss.AdaptiveColor{Light: "#0366d6", Dark: "#58a6ff"}

	return &Styles{
		ActiveBorder: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight),
		InactiveBorder: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtle),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight).
			MarginBottom(1),
		Label:     lipgloss.NewStyle().Foreground(subtle),
		Value:     lipgloss.NewStyle().Bold(true),
		Highlight: lipgloss.NewStyle().Foreground(highlight).Bold(true),
		Muted:     lipgloss.NewStyle().Foreground(subtle),

		StatusOK:    lipgloss.NewStyle().Foreground(green).Bold(true),
		StatusWarn:  lipgloss.NewStyle().Foreground(yellow).Bold(true),
		StatusError: lipgloss.NewStyle().Foreground(red).Bold(true),
		StatusInfo:  lipgloss.NewStyle().Foreground(blue).Bold(true),

		Selected: lipgloss.NewStyle().
			Background(highlight).
			Foreground(lipgloss.Color("#fff")).
			Bold(true),

		HelpKey:  lipgloss.NewStyle().Foreground(highlight).Bold(true),
		HelpText: lipgloss.NewStyle().Foreground(subtle),
	}
}

// PriorityStyle colours a task priority.
func (s *Styles) PriorityStyle(priority string) lipgloss.Style {
	switch priority {
	case "high":
		return s.StatusError
	case "medium":
		return s.StatusWarn
	case "low":
		return s.StatusOK
	default:
		return s.Muted
	}
}
