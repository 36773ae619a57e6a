// Package theme holds the terminal palette and styles used by the CLI.
package theme

import (
	"charm.land/lipgloss/v2"
)

// Color palette, calm and readable on dark terminals
var (
	Primary   = lipgloss.Color("#6366F1") // Indigo
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F59E0B") // Amber
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	BgCard    = lipgloss.Color("#1E293B") // Dark Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Subtitle = lipgloss.NewStyle().
			Foreground(TextDim)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Label = lipgloss.NewStyle().
		Foreground(TextDim).
		Bold(true)
)

// Layout
var (
	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)
)

// Speakers
var (
	Interviewer = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	Participant = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	Thinking = lipgloss.NewStyle().
			Foreground(TextDim).
			Italic(true)
)

// States
var (
	Advisory = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true)

	Done = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Warning = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)
)

// Components
var (
	BarFilled = lipgloss.NewStyle().
			Background(Secondary)

	BarEmpty = lipgloss.NewStyle().
			Background(Border)

	Selected = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	Spinner = lipgloss.NewStyle().
		Foreground(Secondary)
)
