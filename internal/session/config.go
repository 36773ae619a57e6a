package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyAnswer is returned when a blank answer is submitted.
	ErrEmptyAnswer = errors.New("answer is empty")

	// ErrTurnInProgress is returned while the interviewer is still
	// preparing the next question.
	ErrTurnInProgress = errors.New("a turn is already in progress")

	// ErrNotStarted is returned when answering before Start.
	ErrNotStarted = errors.New("session has not started")

	// ErrSessionEnded is returned for operations on a finished session.
	ErrSessionEnded = errors.New("session has ended")

	// ErrAtCheckpoint is returned when answering while a category
	// checkpoint is open.
	ErrAtCheckpoint = errors.New("session is at a category checkpoint")

	// ErrNotAtCheckpoint is returned by checkpoint operations outside a
	// checkpoint.
	ErrNotAtCheckpoint = errors.New("session is not at a category checkpoint")

	// ErrPersistence is returned when a transcript or status write failed
	// after a retry. The in-memory state is left as before the call.
	ErrPersistence = errors.New("session state could not be saved")

	// ErrNotPublished is returned when opening a session on a draft.
	ErrNotPublished = errors.New("interview is not published")
)

// Config holds session controller settings.
type Config struct {
	// MinDelay and MaxDelay bound the pause before each interviewer
	// message. Zero disables the pause.
	MinDelay time.Duration `yaml:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay"`

	// HardStop completes the interview without consulting the oracle once
	// at most one minute of the time limit remains.
	HardStop bool `yaml:"hard_stop"`
}

// DefaultConfig returns the production pacing.
func DefaultConfig() Config {
	return Config{
		MinDelay: 1500 * time.Millisecond,
		MaxDelay: 2500 * time.Millisecond,
		HardStop: true,
	}
}

// Validate checks that the delay bounds are ordered.
func (c Config) Validate() error {
	if c.MinDelay < 0 || c.MaxDelay < 0 {
		return fmt.Errorf("session delays must not be negative")
	}
	if c.MaxDelay < c.MinDelay {
		return fmt.Errorf("session max delay %s is below min delay %s", c.MaxDelay, c.MinDelay)
	}
	return nil
}

// Clock abstracts time for the controller.
type Clock interface {
	Now() time.Time

	// Sleep pauses for d or until ctx ends.
	Sleep(ctx context.Context, d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}
