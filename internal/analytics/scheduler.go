package analytics

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule recomputes all caches at the top of every hour.
const DefaultSchedule = "0 * * * *"

// Scheduler runs RefreshAll on a cron schedule.
type Scheduler struct {
	svc      *Service
	schedule string
	cron     *cron.Cron
	logger   *zap.Logger
}

// NewScheduler creates a scheduler for svc. An empty schedule uses
// DefaultSchedule.
func NewScheduler(svc *Service, schedule string) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Scheduler{
		svc:      svc,
		schedule: schedule,
		cron:     cron.New(),
		logger:   svc.logger,
	}
}

// Start registers the job and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.run)
	if err != nil {
		return fmt.Errorf("schedule analytics refresh %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("analytics scheduler started", zap.String("schedule", s.schedule))
	return nil
}

// Stop stops the cron loop and waits for a running refresh, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) run() {
	n, err := s.svc.RefreshAll(context.Background())
	if err != nil {
		s.logger.Warn("scheduled analytics refresh incomplete", zap.Int("written", n), zap.Error(err))
		return
	}
	s.logger.Debug("scheduled analytics refresh done", zap.Int("written", n))
}
