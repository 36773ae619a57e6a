package components

import (
	"strings"

	"github.com/abhisek/parley/internal/session"
	"github.com/abhisek/parley/internal/ui/theme"
)

// Checkpoint renders the review card shown after a category.
func Checkpoint(v *session.CheckpointView) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render("Section complete: " + v.Category))
	for _, p := range v.Pairs {
		b.WriteString("\n\n")
		b.WriteString(theme.Label.Render("Q: "))
		b.WriteString(theme.Body.Render(p.Question))
		b.WriteString("\n")
		b.WriteString(theme.Label.Render("A: "))
		b.WriteString(theme.Body.Render(p.Answer))
	}
	return theme.Card.Render(b.String())
}
