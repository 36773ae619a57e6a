// Package summarizer runs transcript summarization in the background.
//
// Summaries are fire-and-forget from the session's point of view: a
// failure never changes the participant's status. Each run is still
// observable through its Task handle so callers and tests can await it.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/logging"
	"github.com/abhisek/parley/internal/metrics"
	"github.com/abhisek/parley/internal/oracle"
)

// Oracle produces a summary from a transcript.
type Oracle interface {
	Summarize(ctx context.Context, req oracle.SummaryRequest) (*interview.Summary, error)
}

// Store persists summaries.
type Store interface {
	UpsertSummary(ctx context.Context, sum *interview.Summary) error
}

// Refresher recomputes an interview's analytics cache.
type Refresher interface {
	Refresh(ctx context.Context, interviewID string) (*interview.AnalyticsCache, error)
}

// Job describes one transcript to summarize.
type Job struct {
	Interview     *interview.Interview
	ParticipantID string
	Messages      []interview.Message
	Partial       bool
}

// Task is the handle of a running summarization.
type Task struct {
	done    chan struct{}
	summary *interview.Summary
	err     error
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

func (t *Task) finish(sum *interview.Summary, err error) {
	t.summary = sum
	t.err = err
	close(t.done)
}

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) (*interview.Summary, error) {
	select {
	case <-t.done:
		return t.summary, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Err returns the task's error once finished, or nil while running.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Config holds summarization settings.
type Config struct {
	// Timeout bounds one summarization including persistence.
	Timeout time.Duration `yaml:"timeout"`

	// RefreshAnalytics recomputes the interview's analytics cache after a
	// summary of a completed session is stored.
	RefreshAnalytics bool `yaml:"refresh_analytics"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:          2 * time.Minute,
		RefreshAnalytics: true,
	}
}

// Service owns background summarization goroutines.
type Service struct {
	oracle    Oracle
	store     Store
	refresher Refresher
	cfg       Config
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a summarization service. refresher may be nil.
func NewService(o Oracle, store Store, refresher Refresher, cfg Config, logger *zap.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		oracle:    o,
		store:     store,
		refresher: refresher,
		cfg:       cfg,
		logger:    logging.OrNop(logger),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start summarizes job in the background and returns its handle.
func (s *Service) Start(job Job) *Task {
	t := newTask()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sum, err := s.Run(s.ctx, job)
		t.finish(sum, err)
	}()
	return t
}

// Run summarizes job synchronously, stores the result and refreshes the
// interview's analytics when configured.
func (s *Service) Run(ctx context.Context, job Job) (sum *interview.Summary, err error) {
	defer func() {
		metrics.Summary(job.Partial, err)
		if err != nil {
			s.logger.Warn("summary generation failed",
				zap.String("participant", job.ParticipantID),
				zap.Bool("partial", job.Partial),
				zap.Error(err))
		}
	}()

	if job.Interview == nil {
		return nil, errors.New("summarize: interview is required")
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	sum, err = s.oracle.Summarize(ctx, oracle.SummaryRequest{
		Interview:     job.Interview,
		ParticipantID: job.ParticipantID,
		Messages:      job.Messages,
		Partial:       job.Partial,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize participant %s: %w", job.ParticipantID, err)
	}
	sum.ParticipantID = job.ParticipantID
	sum.Partial = job.Partial

	if err := s.store.UpsertSummary(ctx, sum); err != nil {
		return nil, fmt.Errorf("store summary: %w", err)
	}
	s.logger.Info("summary stored",
		zap.String("participant", job.ParticipantID),
		zap.Int("themes", len(sum.KeyThemes)),
		zap.Bool("partial", job.Partial))

	// Partial summaries belong to incomplete participants, which analytics
	// ignores.
	if s.refresher != nil && s.cfg.RefreshAnalytics && !job.Partial {
		if _, err := s.refresher.Refresh(ctx, job.Interview.ID); err != nil {
			s.logger.Warn("analytics refresh after summary failed",
				zap.String("interview", job.Interview.ID),
				zap.Error(err))
		}
	}
	return sum, nil
}

// Wait blocks until every started task has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown waits for in-flight tasks until ctx ends, then cancels them and
// waits for their goroutines to return.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}
