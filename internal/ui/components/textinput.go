package components

import (
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/parley/internal/ui/theme"
)

// maxAnswerLen bounds a single typed answer.
const maxAnswerLen = 2000

// AnswerInput wraps bubbles/textinput with the interview styling.
type AnswerInput struct {
	Model textinput.Model
}

// NewAnswerInput creates a focused answer field.
func NewAnswerInput(placeholder string, width int) AnswerInput {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "› "
	ti.CharLimit = maxAnswerLen

	styles := textinput.DefaultDarkStyles()
	styles.Focused.Prompt = theme.Label
	styles.Focused.Text = theme.Body
	styles.Focused.Placeholder = theme.Subtitle
	styles.Cursor.Color = theme.Secondary
	styles.Cursor.Blink = false
	ti.SetStyles(styles)

	if width > 0 {
		ti.SetWidth(width)
	}
	ti.Focus()
	return AnswerInput{Model: ti}
}

// Init returns the initial command.
func (a AnswerInput) Init() tea.Cmd {
	return a.Model.Focus()
}

// Update handles messages.
func (a AnswerInput) Update(msg tea.Msg) (AnswerInput, tea.Cmd) {
	var cmd tea.Cmd
	a.Model, cmd = a.Model.Update(msg)
	return a, cmd
}

// View renders the text input.
func (a AnswerInput) View() string {
	return a.Model.View()
}

// Value returns the current input value.
func (a AnswerInput) Value() string {
	return a.Model.Value()
}

// Reset clears the field after an answer is sent.
func (a *AnswerInput) Reset() {
	a.Model.Reset()
}

// SetWidth sets the visible width of the field.
func (a *AnswerInput) SetWidth(w int) {
	a.Model.SetWidth(w)
}
