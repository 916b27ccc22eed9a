// Package styles provides consistent styling for the TUI
package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors
	Primary    = lipgloss.Color("#7C3AED")
	Secondary  = lipgloss.Color("#10B981")
	Warning    = lipgloss.Color("#F59E0B")
	Error      = lipgloss.Color("#EF4444")
	Info       = lipgloss.Color("#3B82F6")
	MutedColor = lipgloss.Color("#6B7280")
	White      = lipgloss.Color("#FFFFFF")

	Muted = lipgloss.NewStyle().Foreground(MutedColor)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	StatusOK = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	StatusWarning = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	StatusError = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	TabActive = lipgloss.NewStyle().
			Foreground(White).
			Background(Primary).
			Padding(0, 2).
			Bold(true)

	TabInactive = lipgloss.NewStyle().
			Foreground(MutedColor).
			Padding(0, 2)

	Help = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	TableHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	TableRow = lipgloss.NewStyle().
			Foreground(White)

	TableRowSelected = lipgloss.NewStyle().
				Foreground(White).
				Background(Primary)

	MetricCard = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(MutedColor).
			Padding(0, 2).
			Width(18).
			Align(lipgloss.Center)

	MetricValue = lipgloss.NewStyle().
			Bold(true).
			Foreground(Secondary)

	MetricLabel = lipgloss.NewStyle().
			Foreground(MutedColor)
)

// Priority returns the style for a Falco priority name.
func Priority(p string) lipgloss.Style {
	switch strings.ToUpper(p) {
	case "EMERGENCY", "ALERT", "CRITICAL", "ERROR":
		return StatusError
	case "WARNING":
		return StatusWarning
	case "NOTICE":
		return lipgloss.NewStyle().Foreground(Info)
	default:
		return Muted
	}
}

// Phase returns the style for a pipeline phase.
func Phase(p string) lipgloss.Style {
	switch p {
	case "Monitoring":
		return StatusOK
	case "Synthesizing", "Validating":
		return StatusWarning
	case "Persisting", "Reloading":
		return lipgloss.NewStyle().Foreground(Info).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(Primary).Bold(true)
	}
}
