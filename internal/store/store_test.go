package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/questions"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedInterview(t *testing.T, s *Store) *interview.Interview {
	t.Helper()
	iv := &interview.Interview{
		Title:            "Onboarding study",
		Goal:             "Understand first-week friction",
		AnchorTopics:     []string{"setup", "docs"},
		TimeLimitMinutes: 15,
		AgenticMode:      true,
		Questions: []questions.Question{
			{ID: "q1", Text: "What is your role?", Category: "Background", Order: 0},
			{ID: "q2", Text: "Walk me through setup.", Category: "Setup", Order: 1},
		},
	}
	if err := s.CreateInterview(context.Background(), iv); err != nil {
		t.Fatalf("create interview: %v", err)
	}
	return iv
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)

	tests := []struct {
		pragma string
		want   string
	}{
		// journal_mode reports "memory" for in-memory databases.
		{"foreign_keys", "1"},
		{"synchronous", "1"},
	}
	for _, tt := range tests {
		var got string
		if err := s.DB().QueryRow("PRAGMA " + tt.pragma).Scan(&got); err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestInterviewRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	iv := seedInterview(t, s)

	if iv.ID == "" || iv.URLToken == "" || iv.Status != interview.StatusDraft {
		t.Fatalf("defaults not filled: %+v", iv)
	}

	got, err := s.GetInterview(ctx, iv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != iv.Title || !got.AgenticMode || got.TimeLimitMinutes != 15 {
		t.Fatalf("unexpected interview: %+v", got)
	}
	if len(got.Questions) != 2 || got.Questions[1].Category != "Setup" {
		t.Fatalf("questions not round-tripped: %+v", got.Questions)
	}
	if len(got.AnchorTopics) != 2 {
		t.Fatalf("anchor topics not round-tripped: %v", got.AnchorTopics)
	}

	byToken, err := s.InterviewByToken(ctx, iv.URLToken)
	if err != nil || byToken.ID != iv.ID {
		t.Fatalf("by token: %v %+v", err, byToken)
	}

	if _, err := s.GetInterview(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPublishAndDuplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	iv := seedInterview(t, s)

	pub, err := s.PublishInterview(ctx, iv.ID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !pub.Published() || pub.PublishedAt == nil {
		t.Fatalf("expected published interview: %+v", pub)
	}

	again, err := s.PublishInterview(ctx, iv.ID)
	if err != nil {
		t.Fatalf("republish: %v", err)
	}
	if !again.PublishedAt.Equal(*pub.PublishedAt) {
		t.Fatal("republishing must keep the original publication time")
	}

	dup, err := s.DuplicateInterview(ctx, iv.ID)
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if dup.ID == iv.ID || dup.URLToken == iv.URLToken {
		t.Fatal("duplicate must get a new id and token")
	}
	if dup.Status != interview.StatusDraft || dup.PublishedAt != nil {
		t.Fatalf("duplicate should be a draft: %+v", dup)
	}
	if dup.Title != "Onboarding study (Copy)" {
		t.Fatalf("title = %q", dup.Title)
	}
	if dup.Questions[0].ID == "q1" || dup.Questions[0].Text != "What is your role?" {
		t.Fatalf("questions should be copied with new ids: %+v", dup.Questions[0])
	}

	drafts, err := s.ListInterviews(ctx, interview.StatusDraft)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(drafts) != 1 || drafts[0].ID != dup.ID {
		t.Fatalf("expected only the duplicate as draft, got %d", len(drafts))
	}
}

func TestUpdateQuestionsRejectsInterleaving(t *testing.T) {
	s := openTestStore(t)
	iv := seedInterview(t, s)

	bad := []questions.Question{
		{ID: "a", Text: "A1", Category: "A", Order: 0},
		{ID: "b", Text: "B1", Category: "B", Order: 1},
		{ID: "c", Text: "A2", Category: "A", Order: 2},
	}
	err := s.UpdateQuestions(context.Background(), iv.ID, bad)
	if !errors.Is(err, questions.ErrCategoryInterleaved) {
		t.Fatalf("expected ErrCategoryInterleaved, got %v", err)
	}
}

func TestJoinInterview(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	iv := seedInterview(t, s)

	p, created, err := s.JoinInterview(ctx, iv.ID, "  Ada@Example.com ")
	if err != nil || !created {
		t.Fatalf("join: created=%v err=%v", created, err)
	}
	if p.Email != "ada@example.com" || p.Status != interview.ParticipantInProgress || p.MagicToken == "" {
		t.Fatalf("unexpected participant: %+v", p)
	}

	again, created, err := s.JoinInterview(ctx, iv.ID, "ada@example.com")
	if err != nil || created || again.ID != p.ID {
		t.Fatalf("rejoin should return existing participant: created=%v err=%v", created, err)
	}

	tr, err := s.GetOrCreateTranscript(ctx, p.ID)
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	if len(tr.Messages) != 0 {
		t.Fatalf("expected empty transcript, got %d messages", len(tr.Messages))
	}

	if _, _, err := s.JoinInterview(ctx, iv.ID, " "); err == nil {
		t.Fatal("expected error for blank email")
	}
}

func TestParticipantByTokenIsScoped(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := seedInterview(t, s)
	b := seedInterview(t, s)

	p, _, err := s.JoinInterview(ctx, a.ID, "ada@example.com")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	got, err := s.ParticipantByToken(ctx, p.MagicToken, a.ID)
	if err != nil || got.ID != p.ID {
		t.Fatalf("lookup: %v %+v", err, got)
	}
	if _, err := s.ParticipantByToken(ctx, p.MagicToken, b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("token from another interview should be not found, got %v", err)
	}
}

func TestUpdateParticipantStatusIsMonotonic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	iv := seedInterview(t, s)
	p, _, _ := s.JoinInterview(ctx, iv.ID, "ada@example.com")

	done := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := s.UpdateParticipantStatus(ctx, p.ID, interview.ParticipantCompleted, &done); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, _ := s.GetParticipant(ctx, p.ID)
	if got.Status != interview.ParticipantCompleted || got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Fatalf("unexpected participant after completion: %+v", got)
	}

	err := s.UpdateParticipantStatus(ctx, p.ID, interview.ParticipantIncomplete, &done)
	if !errors.Is(err, ErrTerminalStatus) {
		t.Fatalf("expected ErrTerminalStatus, got %v", err)
	}
	err = s.UpdateParticipantStatus(ctx, "missing", interview.ParticipantCompleted, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertTranscript(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	iv := seedInterview(t, s)
	p, _, _ := s.JoinInterview(ctx, iv.ID, "ada@example.com")

	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msgs := []interview.Message{
		{ID: "m1", Role: interview.RoleAgent, Content: "What is your role?", Timestamp: ts},
	}
	if err := s.UpsertTranscript(ctx, p.ID, msgs); err != nil {
		t.Fatalf("upsert 1: %v", err)
	}
	msgs = append(msgs, interview.Message{ID: "m2", Role: interview.RoleParticipant, Content: "Engineer", Timestamp: ts})
	if err := s.UpsertTranscript(ctx, p.ID, msgs); err != nil {
		t.Fatalf("upsert 2: %v", err)
	}

	tr, err := s.GetOrCreateTranscript(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(tr.Messages) != 2 || tr.Messages[1].Content != "Engineer" {
		t.Fatalf("unexpected messages: %+v", tr.Messages)
	}
}

func TestSummariesAndAnalytics(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	iv := seedInterview(t, s)
	done, _, _ := s.JoinInterview(ctx, iv.ID, "a@example.com")
	partial, _, _ := s.JoinInterview(ctx, iv.ID, "b@example.com")

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	_ = s.UpdateParticipantStatus(ctx, done.ID, interview.ParticipantCompleted, &now)
	_ = s.UpdateParticipantStatus(ctx, partial.ID, interview.ParticipantIncomplete, &now)

	for _, sum := range []*interview.Summary{
		{ParticipantID: done.ID, KeyThemes: []string{"setup"}, Sentiment: "positive", GeneratedAt: now},
		{ParticipantID: partial.ID, KeyThemes: []string{"docs"}, Sentiment: "negative", Partial: true, GeneratedAt: now},
	} {
		if err := s.UpsertSummary(ctx, sum); err != nil {
			t.Fatalf("upsert summary: %v", err)
		}
	}

	// Replacing keeps a single row per participant.
	if err := s.UpsertSummary(ctx, &interview.Summary{ParticipantID: done.ID, KeyThemes: []string{"setup", "docs"}, Sentiment: "mixed", GeneratedAt: now}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, err := s.CompletedSummaries(ctx, iv.ID)
	if err != nil {
		t.Fatalf("completed summaries: %v", err)
	}
	if len(got) != 1 || got[0].Sentiment != "mixed" || len(got[0].KeyThemes) != 2 {
		t.Fatalf("expected only the completed participant's latest summary, got %+v", got)
	}

	if _, err := s.AnalyticsFor(ctx, iv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before refresh, got %v", err)
	}
	cache := &interview.AnalyticsCache{
		InterviewID:     iv.ID,
		Themes:          []interview.ThemeCount{{Theme: "setup", Count: 1}},
		SentimentTrends: []interview.SentimentTrend{{Date: now, Sentiment: "mixed"}},
		LastUpdated:     now,
	}
	if err := s.UpsertAnalytics(ctx, cache); err != nil {
		t.Fatalf("upsert analytics: %v", err)
	}
	loaded, err := s.AnalyticsFor(ctx, iv.ID)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if len(loaded.Themes) != 1 || !loaded.LastUpdated.Equal(now) || !loaded.SentimentTrends[0].Date.Equal(now) {
		t.Fatalf("unexpected analytics: %+v", loaded)
	}
}

func TestLLMEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.EventRepo()

	for i, purpose := range []string{"questions", "next_turn", "next_turn"} {
		err := repo.AppendLLMRequest(ctx, LLMRequestEventData{
			Provider:    "mock",
			Model:       "mock",
			Purpose:     purpose,
			InputTokens: 10 * (i + 1),
			Success:     i != 1,
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	all, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 3 || all[0].Sequence <= all[1].Sequence {
		t.Fatalf("expected 3 events newest first, got %+v", all)
	}

	turns, err := repo.QueryLLMEvents(ctx, QueryOpts{Purpose: "next_turn", Limit: 1})
	if err != nil {
		t.Fatalf("query purpose: %v", err)
	}
	if len(turns) != 1 || turns[0].InputTokens != 30 || !turns[0].Success {
		t.Fatalf("unexpected filtered events: %+v", turns)
	}

	e, err := repo.GetLLMEvent(ctx, all[1].ID)
	if err != nil || e == nil || e.Success {
		t.Fatalf("get event: %v %+v", err, e)
	}
	if missing, err := repo.GetLLMEvent(ctx, 9999); err != nil || missing != nil {
		t.Fatalf("expected nil for missing event, got %+v %v", missing, err)
	}
}

func TestLLMUsage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.EventRepo()

	events := []LLMRequestEventData{
		{Model: "claude-haiku", Purpose: "next_turn", InputTokens: 100, OutputTokens: 20, LatencyMs: 200, Success: true},
		{Model: "claude-haiku", Purpose: "next_turn", InputTokens: 50, OutputTokens: 10, LatencyMs: 400, Success: true},
		{Model: "claude-haiku", Purpose: "summary", InputTokens: 300, LatencyMs: 100, Success: false},
	}
	for _, e := range events {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	byPurpose, err := repo.LLMUsageByPurpose(ctx, UsageFilter{})
	if err != nil {
		t.Fatalf("usage by purpose: %v", err)
	}
	if len(byPurpose) != 2 {
		t.Fatalf("expected 2 purposes, got %+v", byPurpose)
	}
	turn := byPurpose[0]
	if turn.Purpose != "next_turn" || turn.Calls != 2 || turn.InputTokens != 150 || turn.OutputTokens != 30 || turn.AvgLatencyMs != 300 {
		t.Fatalf("unexpected next_turn usage: %+v", turn)
	}

	byModel, err := repo.LLMUsageByModel(ctx, UsageFilter{})
	if err != nil {
		t.Fatalf("usage by model: %v", err)
	}
	if len(byModel) != 1 || byModel[0].Calls != 2 || byModel[0].InputTokens != 150 {
		t.Fatalf("failed calls should not count toward cost: %+v", byModel)
	}
}

func TestLLMEventsByInterview(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.EventRepo()

	events := []LLMRequestEventData{
		{Model: "m", Purpose: "next_turn", InterviewID: "iv1", ParticipantID: "p1", InputTokens: 10, Success: true},
		{Model: "m", Purpose: "next_turn", InterviewID: "iv1", ParticipantID: "p2", InputTokens: 20, ErrorKind: "rate_limited"},
		{Model: "m", Purpose: "summary", InterviewID: "iv2", ParticipantID: "p3", InputTokens: 40, Success: true},
	}
	for _, e := range events {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	iv1, err := repo.QueryLLMEvents(ctx, QueryOpts{InterviewID: "iv1"})
	if err != nil || len(iv1) != 2 {
		t.Fatalf("interview filter: %v %+v", err, iv1)
	}
	failed, err := repo.QueryLLMEvents(ctx, QueryOpts{InterviewID: "iv1", FailedOnly: true})
	if err != nil || len(failed) != 1 || failed[0].ParticipantID != "p2" || failed[0].ErrorKind != "rate_limited" {
		t.Fatalf("failed filter: %v %+v", err, failed)
	}

	usage, err := repo.LLMUsageByPurpose(ctx, UsageFilter{ParticipantID: "p3"})
	if err != nil || len(usage) != 1 || usage[0].Purpose != "summary" || usage[0].InputTokens != 40 {
		t.Fatalf("participant usage: %v %+v", err, usage)
	}
	models, err := repo.LLMUsageByModel(ctx, UsageFilter{InterviewID: "iv1"})
	if err != nil || len(models) != 1 || models[0].Calls != 1 {
		t.Fatalf("interview model usage: %v %+v", err, models)
	}
}

func TestFallbacksByPurpose(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.EventRepo()

	for _, f := range []FallbackEventData{
		{Purpose: "next_turn", Reason: "timeout", InterviewID: "iv1", ParticipantID: "p1"},
		{Purpose: "next_turn", Reason: "timeout", InterviewID: "iv1", ParticipantID: "p2"},
		{Purpose: "next_turn", Reason: "schema", InterviewID: "iv1", ParticipantID: "p2"},
		{Purpose: "summary", Reason: "transport", InterviewID: "iv2", ParticipantID: "p3"},
	} {
		if err := repo.AppendFallback(ctx, f); err != nil {
			t.Fatalf("append fallback: %v", err)
		}
	}

	all, err := repo.FallbacksByPurpose(ctx, UsageFilter{})
	if err != nil {
		t.Fatalf("fallbacks: %v", err)
	}
	want := []FallbackCount{
		{Purpose: "next_turn", Reason: "schema", Count: 1},
		{Purpose: "next_turn", Reason: "timeout", Count: 2},
		{Purpose: "summary", Reason: "transport", Count: 1},
	}
	if len(all) != len(want) {
		t.Fatalf("got %+v, want %+v", all, want)
	}
	for i := range want {
		if all[i] != want[i] {
			t.Fatalf("row %d = %+v, want %+v", i, all[i], want[i])
		}
	}

	p2, err := repo.FallbacksByPurpose(ctx, UsageFilter{ParticipantID: "p2"})
	if err != nil || len(p2) != 2 {
		t.Fatalf("participant fallbacks: %v %+v", err, p2)
	}
}
