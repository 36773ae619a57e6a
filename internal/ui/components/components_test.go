package components

import (
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/session"
)

func TestPickSuggestion(t *testing.T) {
	opts := []interview.SuggestedOption{
		{Title: "Weekly", Description: "every Monday"},
		{Title: "Never"},
	}
	tests := []struct {
		in   string
		want string
	}{
		{"1", "Weekly: every Monday"},
		{" 2 ", "Never"},
		{"3", "3"},
		{"0", "0"},
		{"1 or 2", "1 or 2"},
		{"I use it daily", "I use it daily"},
	}
	for _, tt := range tests {
		if got := PickSuggestion(tt.in, opts); got != tt.want {
			t.Errorf("PickSuggestion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSuggestionListEmpty(t *testing.T) {
	l := NewSuggestionList(nil)
	if got := l.View(); got != "" {
		t.Errorf("View() = %q, want empty", got)
	}
	l, _ = l.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	if l.Active() {
		t.Error("empty list became active")
	}
}

func TestSuggestionListNavigation(t *testing.T) {
	l := NewSuggestionList([]interview.SuggestedOption{
		{Title: "Weekly", Description: "every Monday"},
		{Title: "Never"},
	})
	if l.Active() || l.Chosen() != "" {
		t.Fatal("list starts with a selection")
	}

	down := tea.KeyPressMsg{Code: tea.KeyDown}
	up := tea.KeyPressMsg{Code: tea.KeyUp}

	l, _ = l.Update(down)
	if got := l.Chosen(); got != "Weekly: every Monday" {
		t.Errorf("Chosen() = %q", got)
	}
	l, _ = l.Update(down)
	l, _ = l.Update(down)
	if got := l.Chosen(); got != "Never" {
		t.Errorf("Chosen() after overshoot = %q", got)
	}
	if !strings.Contains(l.View(), "▸ 2)") {
		t.Errorf("selection marker missing:\n%s", l.View())
	}

	l, _ = l.Update(up)
	l, _ = l.Update(up)
	if l.Active() {
		t.Error("moving up past the first option should return to typing")
	}
}

func TestAnswerInput(t *testing.T) {
	in := NewAnswerInput("Type your answer", 40)
	for _, r := range "hi there" {
		in, _ = in.Update(tea.KeyPressMsg{Code: r, Text: string(r)})
	}
	if got := in.Value(); got != "hi there" {
		t.Errorf("Value() = %q", got)
	}
	in.Reset()
	if got := in.Value(); got != "" {
		t.Errorf("Value() after Reset = %q", got)
	}
}

func TestTranscriptThinking(t *testing.T) {
	msgs := []interview.Message{
		{Role: interview.RoleAgent, Content: "How do you plan?", Thinking: "probing habits"},
		{Role: interview.RoleParticipant, Content: "With a notebook."},
	}
	out := Transcript(msgs, false)
	if strings.Contains(out, "probing habits") {
		t.Error("thinking shown when disabled")
	}
	if !strings.Contains(out, "How do you plan?") || !strings.Contains(out, "With a notebook.") {
		t.Errorf("transcript missing content: %q", out)
	}
	if out := Transcript(msgs, true); !strings.Contains(out, "probing habits") {
		t.Error("thinking hidden when enabled")
	}
}

func TestCheckpoint(t *testing.T) {
	out := Checkpoint(&session.CheckpointView{
		Category: "Habits",
		Pairs:    []session.QAPair{{Question: "How often?", Answer: "Daily"}},
	})
	for _, want := range []string{"Habits", "How often?", "Daily"} {
		if !strings.Contains(out, want) {
			t.Errorf("checkpoint missing %q", want)
		}
	}
}

func TestBarScales(t *testing.T) {
	full := Bar{Label: "pricing", Count: 4, Max: 4, Width: 10}.View()
	if !strings.Contains(full, "pricing") || !strings.Contains(full, "4") {
		t.Errorf("bar missing label or count: %q", full)
	}
	if got := truncate("onboarding", 5); got != "onbo…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("ok", 5); got != "ok" {
		t.Errorf("truncate = %q", got)
	}
}
