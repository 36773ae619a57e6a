package analytics

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/store"
)

func TestAggregate(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 4, d, 0, 0, 0, 0, time.UTC) }
	tests := []struct {
		name       string
		summaries  []*interview.Summary
		wantThemes []interview.ThemeCount
		wantTrends int
	}{
		{
			name:       "empty",
			wantThemes: []interview.ThemeCount{},
		},
		{
			name: "counts sorted by count then theme",
			summaries: []*interview.Summary{
				{KeyThemes: []string{"setup", "docs"}, Sentiment: "positive", GeneratedAt: day(1)},
				{KeyThemes: []string{"pricing", "setup"}, Sentiment: "negative", GeneratedAt: day(2)},
				{KeyThemes: []string{"docs", "setup"}, Sentiment: "mixed", GeneratedAt: day(3)},
			},
			wantThemes: []interview.ThemeCount{
				{Theme: "setup", Count: 3},
				{Theme: "docs", Count: 2},
				{Theme: "pricing", Count: 1},
			},
			wantTrends: 3,
		},
		{
			name: "themes compared exactly",
			summaries: []*interview.Summary{
				{KeyThemes: []string{"Setup"}},
				{KeyThemes: []string{"setup"}},
			},
			wantThemes: []interview.ThemeCount{
				{Theme: "Setup", Count: 1},
				{Theme: "setup", Count: 1},
			},
			wantTrends: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.summaries)
			if !reflect.DeepEqual(got.Themes, tt.wantThemes) {
				t.Fatalf("themes = %+v, want %+v", got.Themes, tt.wantThemes)
			}
			if len(got.SentimentTrends) != tt.wantTrends {
				t.Fatalf("trends = %d, want %d", len(got.SentimentTrends), tt.wantTrends)
			}
		})
	}
}

func TestAggregateKeepsTrendOrder(t *testing.T) {
	sums := []*interview.Summary{
		{Sentiment: "a", GeneratedAt: time.Unix(10, 0)},
		{Sentiment: "b", GeneratedAt: time.Unix(20, 0)},
	}
	got := Aggregate(sums).SentimentTrends
	if got[0].Sentiment != "a" || got[1].Sentiment != "b" {
		t.Fatalf("trend order changed: %+v", got)
	}
}

func TestAggregateIsIdempotent(t *testing.T) {
	sums := []*interview.Summary{
		{KeyThemes: []string{"b", "a"}},
		{KeyThemes: []string{"a", "c"}},
	}
	first := Aggregate(sums)
	second := Aggregate(sums)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("aggregate not deterministic:\n%+v\n%+v", first, second)
	}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := store.Open(fmt.Sprintf("file:analytics_%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func publishedInterview(t *testing.T, s *store.Store) *interview.Interview {
	t.Helper()
	ctx := context.Background()
	iv := &interview.Interview{Title: "Study", Goal: "Learn", TimeLimitMinutes: 10}
	if err := s.CreateInterview(ctx, iv); err != nil {
		t.Fatalf("create interview: %v", err)
	}
	iv, err := s.PublishInterview(ctx, iv.ID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	return iv
}

func addParticipant(t *testing.T, s *store.Store, ivID, email string, status interview.ParticipantStatus, themes ...string) {
	t.Helper()
	ctx := context.Background()
	p, _, err := s.JoinInterview(ctx, ivID, email)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if status != interview.ParticipantInProgress {
		now := time.Now()
		if err := s.UpdateParticipantStatus(ctx, p.ID, status, &now); err != nil {
			t.Fatalf("update status: %v", err)
		}
	}
	if err := s.UpsertSummary(ctx, &interview.Summary{ParticipantID: p.ID, KeyThemes: themes, Sentiment: "ok"}); err != nil {
		t.Fatalf("upsert summary: %v", err)
	}
}

func TestRefreshNoCompletedParticipants(t *testing.T) {
	s := openStore(t)
	iv := publishedInterview(t, s)
	addParticipant(t, s, iv.ID, "left@example.com", interview.ParticipantIncomplete, "setup")

	cache, err := NewService(s, nil).Refresh(context.Background(), iv.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if cache != nil {
		t.Fatalf("expected no cache, got %+v", cache)
	}
	if _, err := s.AnalyticsFor(context.Background(), iv.ID); err != store.ErrNotFound {
		t.Fatalf("expected no stored cache, got %v", err)
	}
}

func TestRefreshReplacesCache(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	iv := publishedInterview(t, s)
	addParticipant(t, s, iv.ID, "a@example.com", interview.ParticipantCompleted, "setup", "docs")
	addParticipant(t, s, iv.ID, "b@example.com", interview.ParticipantCompleted, "setup")
	addParticipant(t, s, iv.ID, "c@example.com", interview.ParticipantIncomplete, "pricing")

	svc := NewService(s, nil)
	if _, err := svc.Refresh(ctx, iv.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	got, err := s.AnalyticsFor(ctx, iv.ID)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	want := []interview.ThemeCount{{Theme: "setup", Count: 2}, {Theme: "docs", Count: 1}}
	if !reflect.DeepEqual(got.Themes, want) {
		t.Fatalf("themes = %+v, want %+v", got.Themes, want)
	}
	if len(got.SentimentTrends) != 2 {
		t.Fatalf("trends = %d, want 2", len(got.SentimentTrends))
	}

	// A second refresh over the same summaries stores the same aggregate.
	if _, err := svc.Refresh(ctx, iv.ID); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	again, err := s.AnalyticsFor(ctx, iv.ID)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if !reflect.DeepEqual(again.Themes, got.Themes) {
		t.Fatalf("refresh not idempotent: %+v vs %+v", again.Themes, got.Themes)
	}
}

func TestRefreshAll(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	withData := publishedInterview(t, s)
	publishedInterview(t, s)
	addParticipant(t, s, withData.ID, "a@example.com", interview.ParticipantCompleted, "setup")

	draft := &interview.Interview{Title: "Draft"}
	if err := s.CreateInterview(ctx, draft); err != nil {
		t.Fatalf("create draft: %v", err)
	}

	n, err := NewService(s, nil).RefreshAll(ctx)
	if err != nil {
		t.Fatalf("refresh all: %v", err)
	}
	if n != 1 {
		t.Fatalf("written = %d, want 1", n)
	}
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	sched := NewScheduler(NewService(openStore(t), nil), "not a schedule")
	if err := sched.Start(); err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	sched := NewScheduler(NewService(openStore(t), nil), "")
	if sched.schedule != DefaultSchedule {
		t.Fatalf("schedule = %q, want default", sched.schedule)
	}
	if err := sched.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sched.Stop(ctx)
}
