package summarizer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/oracle"
)

type fakeOracle struct {
	mu    sync.Mutex
	reqs  []oracle.SummaryRequest
	err   error
	block chan struct{}
}

func (f *fakeOracle) Summarize(ctx context.Context, req oracle.SummaryRequest) (*interview.Summary, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &interview.Summary{KeyThemes: []string{"setup"}, Sentiment: "positive"}, nil
}

type fakeStore struct {
	mu    sync.Mutex
	saved []*interview.Summary
	err   error
}

func (f *fakeStore) UpsertSummary(_ context.Context, sum *interview.Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, sum)
	return nil
}

type fakeRefresher struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeRefresher) Refresh(_ context.Context, id string) (*interview.AnalyticsCache, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return &interview.AnalyticsCache{InterviewID: id}, nil
}

func testJob(partial bool) Job {
	return Job{
		Interview:     &interview.Interview{ID: "iv1", Goal: "g"},
		ParticipantID: "p1",
		Messages:      []interview.Message{{Role: interview.RoleAgent, Content: "Hi"}},
		Partial:       partial,
	}
}

func TestStartStoresSummaryAndRefreshes(t *testing.T) {
	o, st, ref := &fakeOracle{}, &fakeStore{}, &fakeRefresher{}
	svc := NewService(o, st, ref, DefaultConfig(), nil)

	task := svc.Start(testJob(false))
	sum, err := task.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if sum.ParticipantID != "p1" || sum.Partial {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if len(st.saved) != 1 {
		t.Fatalf("saved = %d, want 1", len(st.saved))
	}
	if len(ref.ids) != 1 || ref.ids[0] != "iv1" {
		t.Fatalf("refreshed = %v", ref.ids)
	}
	if task.Err() != nil {
		t.Fatalf("Err = %v", task.Err())
	}
}

func TestPartialSummarySkipsAnalytics(t *testing.T) {
	o, st, ref := &fakeOracle{}, &fakeStore{}, &fakeRefresher{}
	svc := NewService(o, st, ref, DefaultConfig(), nil)

	sum, err := svc.Start(testJob(true)).Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !sum.Partial {
		t.Fatal("summary should be marked partial")
	}
	if !o.reqs[0].Partial {
		t.Fatal("oracle should be told the transcript is partial")
	}
	if len(ref.ids) != 0 {
		t.Fatalf("partial summaries should not refresh analytics, got %v", ref.ids)
	}
}

func TestFailuresAreObservable(t *testing.T) {
	tests := []struct {
		name   string
		oracle *fakeOracle
		store  *fakeStore
	}{
		{"oracle", &fakeOracle{err: errors.New("model down")}, &fakeStore{}},
		{"store", &fakeOracle{}, &fakeStore{err: errors.New("disk full")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.oracle, tt.store, nil, DefaultConfig(), nil)
			task := svc.Start(testJob(false))
			<-task.Done()
			if task.Err() == nil {
				t.Fatal("expected task error")
			}
			if len(tt.store.saved) != 0 {
				t.Fatal("nothing should be saved")
			}
		})
	}
}

func TestTaskWaitHonorsContext(t *testing.T) {
	o := &fakeOracle{block: make(chan struct{})}
	svc := NewService(o, &fakeStore{}, nil, DefaultConfig(), nil)
	task := svc.Start(testJob(false))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := task.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if task.Err() != nil {
		t.Fatal("running task should report no error yet")
	}

	close(o.block)
	svc.Wait()
	if _, err := task.Wait(context.Background()); err != nil {
		t.Fatalf("task should finish after unblocking: %v", err)
	}
}

func TestShutdownCancelsStragglers(t *testing.T) {
	o := &fakeOracle{block: make(chan struct{})}
	svc := NewService(o, &fakeStore{}, nil, DefaultConfig(), nil)
	task := svc.Start(testJob(false))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := svc.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown = %v, want deadline exceeded", err)
	}
	select {
	case <-task.Done():
	default:
		t.Fatal("task should be finished after shutdown")
	}
	if !errors.Is(task.Err(), context.Canceled) {
		t.Fatalf("task error = %v, want canceled", task.Err())
	}
}
