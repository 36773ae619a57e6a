package components

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/ui/theme"
)

// SuggestionList offers the interviewer's suggested answers. Nothing is
// selected until the participant moves into the list, so typing stays the
// default way to answer.
type SuggestionList struct {
	Options  []interview.SuggestedOption
	Selected int // -1 while typing
}

// NewSuggestionList creates a list with no selection.
func NewSuggestionList(opts []interview.SuggestedOption) SuggestionList {
	return SuggestionList{Options: opts, Selected: -1}
}

// Update moves the selection with the arrow keys. Moving up past the
// first option returns to typing.
func (l SuggestionList) Update(msg tea.Msg) (SuggestionList, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok || len(l.Options) == 0 {
		return l, nil
	}

	switch kmsg.String() {
	case "up":
		if l.Selected >= 0 {
			l.Selected--
		}
	case "down":
		if l.Selected < len(l.Options)-1 {
			l.Selected++
		}
	}
	return l, nil
}

// Active reports whether an option is selected.
func (l SuggestionList) Active() bool {
	return l.Selected >= 0 && l.Selected < len(l.Options)
}

// Chosen returns the answer text of the selected option.
func (l SuggestionList) Chosen() string {
	if !l.Active() {
		return ""
	}
	return answerText(l.Options[l.Selected])
}

// View renders the options with numeric labels the participant can also
// type. It is empty when there is nothing to suggest.
func (l SuggestionList) View() string {
	if len(l.Options) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(theme.Hint.Render("Suggested answers (↑↓ to pick, or type a number):"))
	for i, o := range l.Options {
		prefix := "  "
		title := theme.Body
		if i == l.Selected {
			prefix = "▸ "
			title = theme.Selected
		}
		b.WriteString("\n")
		b.WriteString(theme.Label.Render(fmt.Sprintf("%s%d) ", prefix, i+1)))
		b.WriteString(title.Render(o.Title))
		if o.Description != "" {
			b.WriteString(theme.Subtitle.Render(" - " + o.Description))
		}
	}
	return b.String()
}

// PickSuggestion maps a typed number to the matching suggestion, returning
// the input unchanged otherwise.
func PickSuggestion(input string, opts []interview.SuggestedOption) string {
	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(input), "%d", &n); err != nil {
		return input
	}
	if fmt.Sprint(n) != strings.TrimSpace(input) || n < 1 || n > len(opts) {
		return input
	}
	return answerText(opts[n-1])
}

func answerText(o interview.SuggestedOption) string {
	if o.Description == "" {
		return o.Title
	}
	return o.Title + ": " + o.Description
}
