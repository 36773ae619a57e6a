// Package layout composes the header and footer bars of the interactive
// interview.
package layout

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/parley/internal/ui/theme"
)

const (
	DefaultWidth = 80
	MinWidth     = 40
)

// KeyHint represents a command hint shown in the footer.
type KeyHint struct {
	Key         string
	Description string
}

// ClampWidth keeps a terminal width inside the supported range.
func ClampWidth(width int) int {
	if width <= 0 {
		return DefaultWidth
	}
	return max(width, MinWidth)
}

// FormatRemaining renders a countdown as m:ss.
func FormatRemaining(d time.Duration) string {
	d = max(d, 0).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// RenderHeader renders the interview title bar with the time remaining on
// the right. Pass limited=false for interviews without a time limit.
func RenderHeader(title string, remaining time.Duration, limited bool, width int) string {
	left := lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true).
		Render("  " + title)

	right := ""
	if limited {
		style := lipgloss.NewStyle().Foreground(theme.TextDim)
		if remaining < 5*time.Minute {
			style = lipgloss.NewStyle().Foreground(theme.Accent).Bold(true)
		}
		right = style.Render("⏱ " + FormatRemaining(remaining))
	}

	innerWidth := max(width-4, 0)
	gap := max(innerWidth-lipgloss.Width(left)-lipgloss.Width(right), 1)

	return lipgloss.NewStyle().
		Width(width).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Render(left + strings.Repeat(" ", gap) + right)
}

// RenderFooter renders the footer with command hints.
func RenderFooter(hints []KeyHint) string {
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		part := lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Render(h.Key) +
			" " +
			lipgloss.NewStyle().Foreground(theme.TextDim).Render(h.Description)
		parts = append(parts, part)
	}
	return "  " + strings.Join(parts, "   ")
}
