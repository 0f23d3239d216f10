package main

import (
	"github.com/charmbracelet/lipgloss"

	"stockton/pkg/board"
)

// Theme defines the visual styling for the stockton dashboard.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color
}

// DefaultTheme returns the default theme for stockton-dash.
func DefaultTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("12"),  // Blue
		Secondary: lipgloss.Color("14"),  // Cyan
		Success:   lipgloss.Color("10"),  // Green
		Warning:   lipgloss.Color("11"),  // Yellow
		Error:     lipgloss.Color("9"),   // Red
		Muted:     lipgloss.Color("240"), // Gray
	}
}

// Styles are the lipgloss styles derived from a Theme.
type Styles struct {
	Title    lipgloss.Style
	Header   lipgloss.Style
	Muted    lipgloss.Style
	Banner   lipgloss.Style
	Selected lipgloss.Style
	TabOn    lipgloss.Style
	TabOff   lipgloss.Style
	Col      lipgloss.Style
	Panel    lipgloss.Style
	Input    lipgloss.Style
}

// NewStyles builds the styles for t.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(1, 0, 0, 0),
		Header: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Muted:  lipgloss.NewStyle().Foreground(t.Muted),
		Banner: lipgloss.NewStyle().Foreground(t.Error).Bold(true),
		Selected: lipgloss.NewStyle().
			Background(t.Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Bold(true),
		TabOn:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Underline(true),
		TabOff: lipgloss.NewStyle().Foreground(t.Muted),
		Col:    lipgloss.NewStyle().Padding(0, 1),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(0, 1),
		Input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Primary).
			Padding(0, 1),
	}
}

// levelColor maps a severity level to a theme color.
func (t Theme) levelColor(l board.Level) lipgloss.Color {
	switch l {
	case board.LevelCritical:
		return t.Error
	case board.LevelHigh:
		return t.Warning
	case board.LevelMedium:
		return t.Secondary
	case board.LevelLow:
		return t.Success
	default:
		return t.Muted
	}
}
