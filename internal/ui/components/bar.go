package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/parley/internal/ui/theme"
)

// Bar is a labelled horizontal bar for counts, as in theme frequencies.
type Bar struct {
	Label      string
	Count      int
	Max        int
	LabelWidth int
	Width      int
}

// View renders the bar followed by its count.
func (b Bar) View() string {
	label := b.Label
	if b.LabelWidth > 0 {
		label = fmt.Sprintf("%-*s", b.LabelWidth, truncate(label, b.LabelWidth))
	}
	out := theme.Body.Render(label) + "  "

	width := max(b.Width, 4)
	filled := 0
	if b.Max > 0 {
		filled = min(width, width*b.Count/b.Max)
	}
	filled = max(filled, 0)

	out += theme.BarFilled.Render(strings.Repeat(" ", filled)) +
		theme.BarEmpty.Render(strings.Repeat(" ", width-filled))
	out += lipgloss.NewStyle().Foreground(theme.TextDim).Render(fmt.Sprintf("  %d", b.Count))
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
