package ui

import "github.com/charmbracelet/lipgloss"

// Color palette. Single steel-blue accent with standard signal colors.
const (
	ColorSteel    = "75"  // Primary accent
	ColorSteelDim = "67"  // Dimmed accent for borders
	ColorWhite    = "255" // Headers, important text
	ColorGray     = "245" // Secondary text, labels
	ColorDarkGray = "238" // Separators
	ColorGreen    = "78"  // Success
	ColorRed      = "196" // Errors
	ColorYellow   = "220" // Warnings
)

// Styles holds the lipgloss styles used by the renderers.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Stage   lipgloss.Style
	Score   lipgloss.Style
	Label   lipgloss.Style
	Border  lipgloss.Style
}

// DefaultStyles returns the styled palette for terminal output.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWhite)).Bold(true),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGreen)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Stage:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSteel)).Bold(true),
		Score:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSteel)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorSteelDim)),
	}
}

// PlainStyles returns styles with no color or decoration, for pipes
// and CI logs.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header: plain, Success: plain, Warning: plain, Error: plain,
		Dim: plain, Stage: plain, Score: plain, Label: plain, Border: plain,
	}
}
