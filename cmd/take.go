package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/session"
	"github.com/abhisek/parley/internal/ui/components"
	"github.com/abhisek/parley/internal/ui/layout"
	"github.com/abhisek/parley/internal/ui/theme"
)

var takeCmd = &cobra.Command{
	Use:   "take <interview-token> <magic-token>",
	Short: "Take or resume an interview in the terminal",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		showThinking, _ := cmd.Flags().GetBool("show-thinking")

		rt, err := openRuntime(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		ctl, err := session.Open(ctx, rt.Store, args[0], args[1], rt.sessionDeps())
		if err != nil {
			if errors.Is(err, session.ErrNotPublished) {
				return errors.New("this interview is not open yet")
			}
			return err
		}

		final, err := tea.NewProgram(newTakeModel(ctx, ctl, showThinking), tea.WithContext(ctx)).Run()
		if err != nil {
			return fmt.Errorf("run interview: %w", err)
		}
		m := final.(*takeModel)
		if m.err != nil {
			return m.err
		}
		fmt.Println(m.farewellView())
		return nil
	},
}

func init() {
	takeCmd.Flags().Bool("show-thinking", false, "Show the interviewer's reasoning for each question")
	takeCmd.Flags().String("log-file", filepath.Join(os.TempDir(), "parley-take.log"),
		"Where to write logs while the interview owns the terminal")
}

// turnDoneMsg is sent when a session operation returns.
type turnDoneMsg struct {
	err error
}

// tickMsg is sent every second to refresh the countdown and advisory.
type tickMsg time.Time

// summaryDoneMsg is sent once the background summary has been written.
type summaryDoneMsg struct{}

// takeModel is the interactive interview. Session operations run as
// commands so the oracle call never blocks the UI.
type takeModel struct {
	ctx          context.Context
	ctl          *session.Controller
	showThinking bool
	tickEvery    time.Duration

	input    components.AnswerInput
	choices  components.SuggestionList
	spinner  spinner.Model
	viewport viewport.Model
	width    int
	height   int

	shown      int // messages rendered into the viewport
	checkpoint *session.CheckpointView
	remaining  time.Duration
	limited    bool
	advisory   string

	busy        bool
	confirmExit bool
	saving      bool
	finished    bool
	alreadyDone bool
	paused      bool
	notice      string
	warning     bool
	farewell    string
	err         error
}

func newTakeModel(ctx context.Context, ctl *session.Controller, showThinking bool) *takeModel {
	m := &takeModel{
		ctx:          ctx,
		ctl:          ctl,
		showThinking: showThinking,
		tickEvery:    time.Second,
		input:        components.NewAnswerInput("Type your answer…", layout.DefaultWidth-4),
		spinner:      spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(theme.Spinner)),
		viewport:     viewport.New(viewport.WithWidth(layout.DefaultWidth), viewport.WithHeight(10)),
		shown:        -1,
	}
	st := ctl.Snapshot()
	m.alreadyDone = st.Phase.Terminal()
	if len(st.Messages) > 0 && !m.alreadyDone {
		m.notice = "Welcome back. Here is where you left off."
	}
	m.refresh()
	return m
}

func (m *takeModel) Init() tea.Cmd {
	return tea.Batch(
		m.input.Init(),
		m.run(m.ctl.Start),
		m.tick(),
	)
}

func (m *takeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.fit()
		return m, nil

	case turnDoneMsg:
		return m.handleTurnDone(msg)

	case tickMsg:
		return m.handleTick()

	case summaryDoneMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		if !m.busy && !m.saving {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// run starts op off the UI loop and shows the thinking indicator until
// turnDoneMsg arrives.
func (m *takeModel) run(op func(context.Context) error) tea.Cmd {
	m.busy = true
	ctx := m.ctx
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return turnDoneMsg{err: op(ctx)}
	})
}

func (m *takeModel) tick() tea.Cmd {
	if m.tickEvery <= 0 {
		return nil
	}
	return tea.Tick(m.tickEvery, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *takeModel) handleTurnDone(msg turnDoneMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	switch {
	case msg.err == nil:
	case errors.Is(msg.err, session.ErrPersistence):
		m.setNotice("Your answer could not be saved. Press enter to try again.", true)
	case errors.Is(msg.err, session.ErrEmptyAnswer):
		m.setNotice("Type an answer, or press esc to leave.", false)
	default:
		m.err = msg.err
		return m, tea.Quit
	}

	m.refresh()
	if m.ctl.Snapshot().Phase.Terminal() {
		return m.finish()
	}
	return m, nil
}

func (m *takeModel) handleTick() (tea.Model, tea.Cmd) {
	if m.finished {
		return m, nil
	}
	m.remaining, m.limited = m.ctl.TimeRemaining()
	m.advisory = m.ctl.Advisory()
	return m, m.tick()
}

func (m *takeModel) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		if !m.finished {
			m.paused = true
		}
		return m, tea.Quit
	}
	if m.finished {
		return m, nil
	}

	switch key {
	case "pgup":
		m.viewport.PageUp()
		return m, nil
	case "pgdown":
		m.viewport.PageDown()
		return m, nil
	}

	if m.busy {
		return m, nil
	}

	if m.confirmExit {
		switch key {
		case "y", "Y":
			m.confirmExit = false
			return m, m.run(func(ctx context.Context) error {
				return m.ctl.Exit(ctx, session.ExitSubmitIncomplete)
			})
		case "n", "N", "esc":
			m.confirmExit = false
			return m, nil
		}
		return m, nil
	}

	if key == "esc" {
		m.confirmExit = true
		return m, nil
	}

	st := m.ctl.Snapshot()
	switch {
	case st.Phase == session.PhaseCategoryCheckpoint:
		switch key {
		case "enter", "c":
			return m, m.run(m.ctl.Continue)
		case "e":
			if err := m.ctl.Edit(); err != nil {
				m.err = err
				return m, tea.Quit
			}
			m.refresh()
		}
		return m, nil

	case st.ReviewPending:
		if key == "enter" {
			return m, m.run(m.ctl.Continue)
		}
		return m, nil

	case pendingReply(st):
		if key == "enter" {
			m.notice = ""
			return m, m.run(m.ctl.Start)
		}
		return m, nil

	case st.Phase == session.PhaseAwaitingAnswer:
		return m.handleAnswerKey(msg, st)
	}
	return m, nil
}

func (m *takeModel) handleAnswerKey(msg tea.KeyPressMsg, st session.State) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "down":
		m.choices, _ = m.choices.Update(msg)
		return m, nil

	case "enter":
		answer := m.choices.Chosen()
		if answer == "" {
			answer = components.PickSuggestion(m.input.Value(), st.Suggestions)
		}
		if strings.TrimSpace(answer) == "" {
			m.setNotice("Type an answer, or press esc to leave.", false)
			return m, nil
		}
		m.notice = ""
		m.input.Reset()
		m.choices = components.NewSuggestionList(nil)
		return m, m.run(func(ctx context.Context) error {
			return m.ctl.Submit(ctx, answer)
		})
	}

	// Typing returns to free text.
	m.choices.Selected = -1
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// finish shows the closing message and waits for the summary so it is
// not lost when the process exits.
func (m *takeModel) finish() (tea.Model, tea.Cmd) {
	m.finished = true
	m.confirmExit = false
	switch {
	case m.alreadyDone:
		m.farewell = "You have already finished this interview. Thank you!"
	case m.ctl.Snapshot().Phase == session.PhaseComplete:
		m.farewell = "Thank you! Your interview is complete."
	default:
		m.farewell = "Thanks, your answers so far have been submitted."
	}

	task := m.ctl.SummaryTask()
	if task == nil {
		return m, tea.Quit
	}
	m.saving = true
	ctx := m.ctx
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		_, _ = task.Wait(ctx)
		return summaryDoneMsg{}
	})
}

// refresh pulls the controller state into the view.
func (m *takeModel) refresh() {
	st := m.ctl.Snapshot()
	if len(st.Messages) != m.shown {
		m.viewport.SetContent(components.Transcript(st.Messages, m.showThinking))
		m.shown = len(st.Messages)
	}
	var opts []interview.SuggestedOption
	if st.Phase == session.PhaseAwaitingAnswer && !st.ReviewPending {
		opts = st.Suggestions
	}
	if !slices.Equal(m.choices.Options, opts) {
		m.choices = components.NewSuggestionList(opts)
	}
	m.checkpoint = nil
	if st.Phase == session.PhaseCategoryCheckpoint {
		m.checkpoint, _ = m.ctl.Checkpoint()
	}
	m.remaining, m.limited = m.ctl.TimeRemaining()
	m.advisory = m.ctl.Advisory()
	m.fit()
}

// fit gives the transcript whatever height the header, panel and footer
// leave over.
func (m *takeModel) fit() {
	width := layout.ClampWidth(m.width)
	height := m.height
	if height <= 0 {
		height = 24
	}
	m.input.SetWidth(width - 4)
	m.viewport.SetWidth(width)

	used := lipgloss.Height(m.header()) + lipgloss.Height(m.panel()) + lipgloss.Height(m.footer()) + 2
	m.viewport.SetHeight(max(height-used, 3))
	m.viewport.GotoBottom()
}

func (m *takeModel) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

func (m *takeModel) render() string {
	return strings.Join([]string{
		m.header(),
		m.viewport.View(),
		"",
		m.panel(),
		"",
		m.footer(),
	}, "\n")
}

func (m *takeModel) header() string {
	return layout.RenderHeader(m.ctl.Interview().Title, m.remaining, m.limited, layout.ClampWidth(m.width))
}

func (m *takeModel) footer() string {
	return layout.RenderFooter(m.keyHints())
}

// panel renders everything below the transcript: the input, the
// checkpoint card or a dialog, plus notices.
func (m *takeModel) panel() string {
	var parts []string
	st := m.ctl.Snapshot()

	switch {
	case m.saving:
		parts = append(parts, theme.Done.Render(m.farewell),
			m.spinner.View()+" "+theme.Hint.Render("Saving your responses…"))
	case m.finished:
		parts = append(parts, theme.Done.Render(m.farewell))
	case m.confirmExit:
		parts = append(parts, theme.Card.Render(
			theme.Body.Render("Submit your answers so far and leave?")+"\n"+
				theme.Label.Render("[y] submit  [n] keep going")))
	case m.busy:
		parts = append(parts, m.spinner.View()+" "+theme.Thinking.Render("The interviewer is thinking…"))
	case m.checkpoint != nil:
		parts = append(parts, components.Checkpoint(m.checkpoint))
	case st.ReviewPending:
		parts = append(parts, theme.Hint.Render("Review your answers above, then press enter to continue."))
	case pendingReply(st):
		parts = append(parts, theme.Hint.Render("Your last answer is waiting for a reply. Press enter to retry."))
	case st.Phase == session.PhaseAwaitingAnswer:
		if v := m.choices.View(); v != "" {
			parts = append(parts, v)
		}
		parts = append(parts, m.input.View())
	}

	if m.notice != "" && !m.finished {
		style := theme.Hint
		if m.warning {
			style = theme.Warning
		}
		parts = append(parts, style.Render(m.notice))
	}
	if m.advisory != "" && !m.finished {
		parts = append(parts, theme.Advisory.Render(m.advisory))
	}
	return strings.Join(parts, "\n")
}

func (m *takeModel) keyHints() []layout.KeyHint {
	st := m.ctl.Snapshot()
	switch {
	case m.finished:
		return []layout.KeyHint{{Key: "Ctrl+C", Description: "Close"}}
	case m.confirmExit:
		return []layout.KeyHint{
			{Key: "Y", Description: "Submit and leave"},
			{Key: "N", Description: "Keep going"},
		}
	case m.busy:
		return []layout.KeyHint{
			{Key: "PgUp/PgDn", Description: "Scroll"},
			{Key: "Ctrl+C", Description: "Pause"},
		}
	case m.checkpoint != nil:
		next := "Continue"
		if m.checkpoint.IsLast {
			next = "Complete interview"
		}
		return []layout.KeyHint{
			{Key: "Enter", Description: next},
			{Key: "E", Description: "Review answers"},
			{Key: "Esc", Description: "Leave"},
		}
	case st.ReviewPending, pendingReply(st):
		return []layout.KeyHint{
			{Key: "Enter", Description: "Continue"},
			{Key: "PgUp/PgDn", Description: "Scroll"},
			{Key: "Esc", Description: "Leave"},
		}
	}
	hints := []layout.KeyHint{{Key: "Enter", Description: "Send"}}
	if len(m.choices.Options) > 0 {
		hints = append(hints, layout.KeyHint{Key: "↑↓", Description: "Suggestions"})
	}
	return append(hints,
		layout.KeyHint{Key: "Esc", Description: "Leave"},
		layout.KeyHint{Key: "Ctrl+C", Description: "Pause"},
	)
}

func (m *takeModel) setNotice(text string, warning bool) {
	m.notice = text
	m.warning = warning
}

// farewellView is printed after the program has left the alternate
// screen.
func (m *takeModel) farewellView() string {
	if m.paused {
		return theme.Hint.Render("Session saved. Run the same command to resume.")
	}
	return theme.Done.Render(m.farewell)
}

// pendingReply reports an answer whose reply was never saved.
func pendingReply(st session.State) bool {
	n := len(st.Messages)
	return n > 0 && st.Messages[n-1].Role == interview.RoleParticipant
}
