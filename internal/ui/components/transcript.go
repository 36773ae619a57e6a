// Package components renders interview artifacts for the terminal.
package components

import (
	"strings"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/ui/theme"
)

// Message renders one transcript message. The interviewer's reasoning is
// shown only when showThinking is set.
func Message(m interview.Message, showThinking bool) string {
	var b strings.Builder
	switch m.Role {
	case interview.RoleAgent:
		b.WriteString(theme.Interviewer.Render("Interviewer"))
	default:
		b.WriteString(theme.Participant.Render("You"))
	}
	b.WriteString("\n")
	if showThinking && m.Thinking != "" {
		b.WriteString(theme.Thinking.Render("(" + m.Thinking + ")"))
		b.WriteString("\n")
	}
	b.WriteString(theme.Body.Render(m.Content))
	return b.String()
}

// Transcript renders messages separated by blank lines.
func Transcript(msgs []interview.Message, showThinking bool) string {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = Message(m, showThinking)
	}
	return strings.Join(parts, "\n\n")
}
