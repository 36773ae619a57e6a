package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/oracle"
	"github.com/abhisek/parley/internal/questions"
	"github.com/abhisek/parley/internal/session"
	"github.com/abhisek/parley/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := store.Open(fmt.Sprintf("file:cmd_%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// startSession publishes an interview with one question per category and
// opens a session for a new participant.
func startSession(t *testing.T, s *store.Store, cats ...string) (*session.Controller, string) {
	t.Helper()
	return startSessionWith(t, s, nil, session.Deps{}, cats...)
}

// startSessionWith is startSession with a hook to adjust the interview
// before it is created and the controller dependencies to open with.
func startSessionWith(t *testing.T, s *store.Store, setup func(*interview.Interview), deps session.Deps, cats ...string) (*session.Controller, string) {
	t.Helper()
	ctx := context.Background()

	iv := &interview.Interview{Title: "Planning habits", Goal: "Learn how people plan"}
	for i, c := range cats {
		iv.Questions = append(iv.Questions, questions.Question{
			ID: fmt.Sprintf("q%d", i), Text: fmt.Sprintf("Question about %s?", c), Category: c, Order: i,
		})
	}
	if setup != nil {
		setup(iv)
	}
	if err := s.CreateInterview(ctx, iv); err != nil {
		t.Fatalf("create: %v", err)
	}
	iv, err := s.PublishInterview(ctx, iv.ID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	p, _, err := s.JoinInterview(ctx, iv.ID, "sam@example.com")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	ctl, err := session.Open(ctx, s, iv.URLToken, p.MagicToken, deps)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return ctl, p.ID
}

// takeDriver runs a take model without a terminal. Each key is delivered
// in turn and session results are fed back before the next one.
type takeDriver struct {
	t    *testing.T
	m    *takeModel
	quit bool
}

func newTakeDriver(t *testing.T, ctl *session.Controller) *takeDriver {
	t.Helper()
	m := newTakeModel(context.Background(), ctl, false)
	m.tickEvery = 0
	d := &takeDriver{t: t, m: m}
	d.settle(m.Init())
	return d
}

func (d *takeDriver) press(k tea.KeyPressMsg) {
	d.t.Helper()
	_, cmd := d.m.Update(k)
	d.settle(cmd)
}

func (d *takeDriver) key(r rune) {
	d.t.Helper()
	d.press(tea.KeyPressMsg{Code: r, Text: string(r)})
}

func (d *takeDriver) enter() {
	d.t.Helper()
	d.press(tea.KeyPressMsg{Code: tea.KeyEnter})
}

func (d *takeDriver) answer(text string) {
	d.t.Helper()
	for _, r := range text {
		d.key(r)
	}
	d.enter()
}

// settle runs cmd and everything it batches. Spinner frames and timers
// are dropped; session results go back into the model.
func (d *takeDriver) settle(cmd tea.Cmd) {
	d.t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := runCmd(next).(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case tea.QuitMsg:
			d.quit = true
		case turnDoneMsg, summaryDoneMsg:
			_, more := d.m.Update(msg)
			queue = append(queue, more)
		}
	}
	if d.m.err != nil {
		d.t.Fatalf("take failed: %v", d.m.err)
	}
}

func (d *takeDriver) transcript() string {
	return d.m.viewport.GetContent()
}

// runCmd runs one command, giving up on those that wait on a timer.
func runCmd(cmd tea.Cmd) tea.Msg {
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	select {
	case msg := <-done:
		return msg
	case <-time.After(2 * time.Second):
		return nil
	}
}

func TestTakeCompletesWithCheckpoints(t *testing.T) {
	s := openTestStore(t)
	ctl, pid := startSession(t, s, "Tools", "Routines")

	d := newTakeDriver(t, ctl)
	if !strings.Contains(d.transcript(), "Question about Tools?") {
		t.Fatalf("first question missing:\n%s", d.transcript())
	}

	d.answer("a paper notebook")
	if !strings.Contains(d.m.render(), "Section complete: Tools") {
		t.Errorf("checkpoint not shown:\n%s", d.m.render())
	}

	// Review, then continue into the next category.
	d.key('e')
	if !strings.Contains(d.m.render(), "press enter to continue") {
		t.Errorf("review prompt missing:\n%s", d.m.render())
	}
	d.enter()
	if !strings.Contains(d.transcript(), "Question about Routines?") {
		t.Errorf("second category not asked:\n%s", d.transcript())
	}

	d.answer("2")
	if !d.m.checkpoint.IsLast {
		t.Fatal("expected the last checkpoint")
	}
	if !strings.Contains(d.m.footer(), "Complete interview") {
		t.Errorf("footer = %q", d.m.footer())
	}
	d.key('c')

	if !d.quit {
		t.Error("program did not quit after completion")
	}
	if !strings.Contains(d.m.farewellView(), "Your interview is complete") {
		t.Errorf("farewell = %q", d.m.farewellView())
	}

	ctx := context.Background()
	p, err := s.GetParticipant(ctx, pid)
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if p.Status != interview.ParticipantCompleted {
		t.Errorf("status = %s, want completed", p.Status)
	}
	tr, err := s.GetOrCreateTranscript(ctx, pid)
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	if len(tr.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(tr.Messages))
	}
	if got := tr.Messages[3].Content; got != "2" {
		t.Errorf("last answer = %q, want literal %q without suggestions", got, "2")
	}
}

func TestTakeExitSubmitsIncomplete(t *testing.T) {
	s := openTestStore(t)
	ctl, pid := startSession(t, s, "Tools", "Tools")

	d := newTakeDriver(t, ctl)
	d.answer("first answer")

	esc := tea.KeyPressMsg{Code: tea.KeyEscape}
	d.press(esc)
	if !strings.Contains(d.m.render(), "Submit your answers so far and leave?") {
		t.Fatalf("exit dialog missing:\n%s", d.m.render())
	}
	d.key('n')
	if d.m.confirmExit || d.quit {
		t.Fatal("keep going should close the dialog and stay")
	}

	d.press(esc)
	d.key('y')
	if !d.quit {
		t.Error("program did not quit after leaving")
	}
	if !strings.Contains(d.m.farewellView(), "answers so far have been submitted") {
		t.Errorf("farewell = %q", d.m.farewellView())
	}

	p, err := s.GetParticipant(context.Background(), pid)
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if p.Status != interview.ParticipantIncomplete {
		t.Errorf("status = %s, want incomplete", p.Status)
	}
}

func TestTakePausesAndResumes(t *testing.T) {
	s := openTestStore(t)
	ctl, pid := startSession(t, s, "Tools", "Tools")

	d := newTakeDriver(t, ctl)
	d.press(tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl})
	if !d.quit || !d.m.paused {
		t.Fatal("ctrl+c should pause and quit")
	}
	if !strings.Contains(d.m.farewellView(), "Run the same command to resume") {
		t.Errorf("farewell = %q", d.m.farewellView())
	}
	p, err := s.GetParticipant(context.Background(), pid)
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if p.Status != interview.ParticipantInProgress {
		t.Fatalf("status = %s, want in_progress", p.Status)
	}

	iv, err := s.GetInterview(context.Background(), p.InterviewID)
	if err != nil {
		t.Fatalf("get interview: %v", err)
	}
	resumed, err := session.Open(context.Background(), s, iv.URLToken, p.MagicToken, session.Deps{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	d = newTakeDriver(t, resumed)
	if !strings.Contains(d.m.render(), "Welcome back") {
		t.Errorf("missing resume greeting:\n%s", d.m.render())
	}
	d.answer("one")
	if n := strings.Count(d.transcript(), "Question about Tools?"); n != 2 {
		t.Errorf("questions shown = %d, want the resumed one and the next:\n%s", n, d.transcript())
	}
	d.answer("two")
	if got := resumed.Snapshot().Phase; got != session.PhaseComplete {
		t.Errorf("phase = %s, want complete", got)
	}
}

func TestTakeEmptyAnswerHint(t *testing.T) {
	s := openTestStore(t)
	ctl, _ := startSession(t, s, "Tools")

	d := newTakeDriver(t, ctl)
	d.answer("   ")
	if !strings.Contains(d.m.render(), "Type an answer") {
		t.Errorf("missing empty answer hint:\n%s", d.m.render())
	}
	if got := len(ctl.Snapshot().Messages); got != 1 {
		t.Fatalf("messages = %d, blank answer should not be sent", got)
	}
	d.answer("fine")
	if got := ctl.Snapshot().Phase; got != session.PhaseComplete {
		t.Errorf("phase = %s, want complete", got)
	}
}

// heldOracle asks one follow-up with suggestions, then completes. Each
// call waits for release when it is set.
type heldOracle struct {
	entered chan struct{}
	release chan struct{}
	calls   int
}

func (o *heldOracle) DecideNextTurn(ctx context.Context, _ oracle.NextTurnRequest) (*oracle.Decision, error) {
	if o.release != nil {
		o.entered <- struct{}{}
		select {
		case <-o.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	o.calls++
	if o.calls > 1 {
		return &oracle.Decision{Complete: true}, nil
	}
	return &oracle.Decision{
		Question: "How often do you plan?",
		Suggestions: []interview.SuggestedOption{
			{Title: "Weekly", Description: "every Monday"},
			{Title: "Never"},
		},
	}, nil
}

func TestTakePicksSuggestionWithArrows(t *testing.T) {
	s := openTestStore(t)
	agentic := func(iv *interview.Interview) { iv.AgenticMode = true }
	ctl, pid := startSessionWith(t, s, agentic, session.Deps{Oracle: &heldOracle{}}, "Tools", "Tools")

	d := newTakeDriver(t, ctl)
	d.answer("a notebook")
	if !strings.Contains(d.m.render(), "Weekly") {
		t.Fatalf("suggestions not shown:\n%s", d.m.render())
	}

	d.press(tea.KeyPressMsg{Code: tea.KeyDown})
	d.enter()

	tr, err := s.GetOrCreateTranscript(context.Background(), pid)
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	if got := tr.Messages[3].Content; got != "Weekly: every Monday" {
		t.Errorf("answer = %q, want the selected suggestion", got)
	}
	if got := ctl.Snapshot().Phase; got != session.PhaseComplete {
		t.Errorf("phase = %s, want complete", got)
	}
}

// The oracle call runs as a command, so the model keeps handling ticks
// and ignores answer keys until the turn returns.
func TestTakeStaysResponsiveWhileThinking(t *testing.T) {
	s := openTestStore(t)
	o := &heldOracle{entered: make(chan struct{}, 1), release: make(chan struct{})}
	setup := func(iv *interview.Interview) {
		iv.AgenticMode = true
		iv.TimeLimitMinutes = 4
	}
	ctl, _ := startSessionWith(t, s, setup, session.Deps{Oracle: o}, "Tools", "Tools")

	d := newTakeDriver(t, ctl)
	for _, r := range "a notebook" {
		d.key(r)
	}
	_, cmd := d.m.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if !d.m.busy {
		t.Fatal("model not busy after sending an answer")
	}
	if !strings.Contains(d.m.render(), "thinking") {
		t.Errorf("thinking indicator missing:\n%s", d.m.render())
	}

	results := make(chan tea.Msg, 4)
	go func() {
		msg := runCmd(cmd)
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, c := range batch {
				if c != nil {
					results <- runCmd(c)
				}
			}
		}
		close(results)
	}()
	<-o.entered

	d.m.tickEvery = time.Hour
	_, next := d.m.Update(tickMsg(time.Now()))
	if next == nil {
		t.Error("tick was not rescheduled while the oracle was thinking")
	}
	if got := d.m.advisory; got != "About 4 minutes left" {
		t.Errorf("advisory = %q", got)
	}
	d.key('x')
	if got := d.m.input.Value(); got != "" {
		t.Errorf("input accepted %q while busy", got)
	}

	close(o.release)
	for msg := range results {
		if done, ok := msg.(turnDoneMsg); ok {
			d.m.tickEvery = 0
			_, more := d.m.Update(done)
			d.settle(more)
		}
	}
	if d.m.busy {
		t.Error("model still busy after the turn returned")
	}
	if !strings.Contains(d.transcript(), "How often do you plan?") {
		t.Errorf("follow-up missing:\n%s", d.transcript())
	}
}

func TestTakeAlreadyFinished(t *testing.T) {
	s := openTestStore(t)
	ctl, _ := startSession(t, s, "Tools")
	if err := ctl.Exit(context.Background(), session.ExitSubmitIncomplete); err != nil {
		t.Fatalf("exit: %v", err)
	}

	d := newTakeDriver(t, ctl)
	if !d.quit {
		t.Error("finished session should quit immediately")
	}
	if !strings.Contains(d.m.farewellView(), "already finished") {
		t.Errorf("farewell = %q", d.m.farewellView())
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "interview.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadInterviewFile(t *testing.T) {
	p := writeFile(t, `
title: "  Planning habits "
goal: Learn how people plan
time_limit_minutes: 20
agentic_mode: true
anchor_topics: [tools, routines]
status: published
url_token: should-be-ignored
questions:
  - text: What tools do you use?
    category: Tools
  - text: Which app did you try last?
    category: Tools
  - text: How do you start your week?
    category: Routines
    ai_multiple_choice: false
`)
	iv, err := loadInterviewFile(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if iv.Title != "Planning habits" {
		t.Errorf("title = %q", iv.Title)
	}
	if iv.Status != "" || iv.URLToken != "" {
		t.Errorf("status/token not cleared: %q %q", iv.Status, iv.URLToken)
	}
	if !iv.AgenticMode || iv.TimeLimitMinutes != 20 {
		t.Errorf("mode/limit = %v/%d", iv.AgenticMode, iv.TimeLimitMinutes)
	}
	// Without explicit orders the listed order is used.
	want := []string{"What tools do you use?", "Which app did you try last?", "How do you start your week?"}
	for i, q := range iv.Questions {
		if q.Text != want[i] || q.Order != i {
			t.Errorf("question %d = %q order %d", i, q.Text, q.Order)
		}
	}
	if iv.Questions[2].SuggestionsEnabled() {
		t.Error("ai_multiple_choice: false was lost")
	}
}

func TestLoadInterviewFileErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing title", "goal: g\n", "title is required"},
		{"missing goal", "title: t\n", "goal is required"},
		{"negative limit", "title: t\ngoal: g\ntime_limit_minutes: -1\n", "must not be negative"},
		{"blank question", "title: t\ngoal: g\nquestions:\n  - text: ' '\n", "empty"},
		{"bad yaml", "title: [\n", "parse interview"},
		{"interleaved", "title: t\ngoal: g\nquestions:\n  - {text: a, category: X}\n  - {text: b, category: Y}\n  - {text: c, category: X}\n", "resumes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadInterviewFile(writeFile(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestRenderAnalytics(t *testing.T) {
	c := &interview.AnalyticsCache{
		Themes: []interview.ThemeCount{{Theme: "pricing", Count: 3}, {Theme: "setup", Count: 1}},
		SentimentTrends: []interview.SentimentTrend{
			{Date: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), Sentiment: "positive"},
		},
		LastUpdated: time.Now(),
	}
	out := renderAnalytics(c)
	for _, want := range []string{"pricing", "setup", "positive", "Sentiment"} {
		if !strings.Contains(out, want) {
			t.Errorf("analytics missing %q", want)
		}
	}
}

func TestRenderSummaryPartial(t *testing.T) {
	out := renderSummary(&interview.Summary{
		Partial:       true,
		Sentiment:     "mixed",
		KeyThemes:     []string{"onboarding"},
		NotableQuotes: []interview.Quote{{Text: "It took a week", Context: "setup"}},
	})
	for _, want := range []string{"(partial)", "mixed", "onboarding", "It took a week"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q", want)
		}
	}
}

func TestFormatLimit(t *testing.T) {
	if got := formatLimit(0); got != "none" {
		t.Errorf("formatLimit(0) = %q", got)
	}
	if got := formatLimit(15); got != "15m" {
		t.Errorf("formatLimit(15) = %q", got)
	}
}

func TestMoveQuestion(t *testing.T) {
	qs := []questions.Question{
		{ID: "a", Text: "A1", Category: "A", Order: 0},
		{ID: "b", Text: "A2", Category: "A", Order: 1},
		{ID: "c", Text: "B1", Category: "B", Order: 2},
	}

	out, err := moveQuestion(qs, 0, 1, "")
	if err != nil {
		t.Fatalf("move within category: %v", err)
	}
	if out[0].ID != "b" || out[1].ID != "a" || out[1].Order != 1 {
		t.Errorf("unexpected order: %+v", out)
	}

	if _, err := moveQuestion(qs, 0, 2, ""); !errors.Is(err, questions.ErrCategoryInterleaved) {
		t.Errorf("splitting a category: err = %v", err)
	}

	out, err = moveQuestion(qs, 0, 2, "B")
	if err != nil {
		t.Fatalf("move into another category: %v", err)
	}
	if out[2].ID != "a" || out[2].Category != "B" {
		t.Errorf("moved question = %+v", out[2])
	}

	if _, err := moveQuestion(qs, 0, 9, ""); err == nil {
		t.Error("out of range move accepted")
	}
}

func TestRenderLLMStatsReportsFallbacks(t *testing.T) {
	var out bytes.Buffer
	renderLLMStats(&out,
		[]store.LLMUsageStats{
			{Purpose: "next_turn", Calls: 4, InputTokens: 400, OutputTokens: 80, AvgLatencyMs: 900},
			{Purpose: "summary", Calls: 1, InputTokens: 1200, OutputTokens: 300, AvgLatencyMs: 2100},
		},
		[]store.FallbackCount{
			{Purpose: "next_turn", Reason: "timeout", Count: 2},
			{Purpose: "next_turn", Reason: "schema", Count: 1},
			{Purpose: "questions", Reason: "transport", Count: 1},
		},
		nil,
	)
	got := out.String()

	lines := strings.Split(got, "\n")
	var nextTurn, questionsRow, total string
	for _, l := range lines {
		switch {
		case strings.HasPrefix(l, "next_turn"):
			nextTurn = l
		case strings.HasPrefix(l, "questions"):
			questionsRow = l
		case strings.HasPrefix(l, "TOTAL"):
			total = l
		}
	}
	if !strings.Contains(nextTurn, "timeout=2") || !strings.Contains(nextTurn, "schema=1") {
		t.Errorf("next_turn row = %q", nextTurn)
	}
	// Questions had no recorded calls but still fell back.
	if !strings.Contains(questionsRow, "transport=1") {
		t.Errorf("questions row = %q", questionsRow)
	}
	if strings.Index(got, "questions") > strings.Index(got, "next_turn") {
		t.Errorf("purposes out of interview order:\n%s", got)
	}
	if fields := strings.Fields(total); len(fields) < 5 || fields[1] != "5" || fields[4] != "4" {
		t.Errorf("total row = %q", total)
	}
}

func TestRenderLLMStatsEmpty(t *testing.T) {
	var out bytes.Buffer
	renderLLMStats(&out, nil, nil, nil)
	if !strings.Contains(out.String(), "No LLM usage") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRenderLLMEventsShowsFailureKind(t *testing.T) {
	var out bytes.Buffer
	renderLLMEvents(&out, []store.LLMRequestEvent{
		{ID: 2, Timestamp: time.Now(), LLMRequestEventData: store.LLMRequestEventData{
			Purpose: "next_turn", ParticipantID: "0123456789abcdef", Model: "claude-haiku",
			ErrorKind: "rate_limited",
		}},
		{ID: 1, Timestamp: time.Now(), LLMRequestEventData: store.LLMRequestEventData{
			Purpose: "questions", Model: "claude-haiku", Success: true,
		}},
	})
	got := out.String()
	for _, want := range []string{"rate_limited", "01234567", " ok"} {
		if !strings.Contains(got, want) {
			t.Errorf("list missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "0123456789") {
		t.Errorf("participant id not shortened:\n%s", got)
	}
}
