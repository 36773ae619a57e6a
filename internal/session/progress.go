package session

import (
	"fmt"
	"math"
	"time"
)

// Elapsed returns the time since the session was started or resumed.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsedLocked()
}

// TimeRemaining returns the time left before the interview's limit, never
// negative. The second result is false for interviews without a limit.
func (c *Controller) TimeRemaining() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked()
}

// Advisory returns the time banner shown to the participant, or "" when
// more than five minutes remain or the interview has no limit.
func (c *Controller) Advisory() string {
	remaining, limited := c.TimeRemaining()
	if !limited {
		return ""
	}
	return advisory(remaining)
}

func advisory(remaining time.Duration) string {
	switch mins := remaining.Minutes(); {
	case mins <= 0:
		return "Time is up"
	case mins < 2:
		return "Less than 2 minutes left"
	case mins < 5:
		return fmt.Sprintf("About %d minutes left", int(math.Ceil(mins)))
	}
	return ""
}

func (c *Controller) elapsedLocked() time.Duration {
	if c.state.StartTime.IsZero() {
		return 0
	}
	return c.clock.Now().Sub(c.state.StartTime)
}

func (c *Controller) remainingLocked() (time.Duration, bool) {
	if c.iv.TimeLimitMinutes <= 0 {
		return 0, false
	}
	limit := time.Duration(c.iv.TimeLimitMinutes) * time.Minute
	return max(0, limit-c.elapsedLocked()), true
}

// timeUpLocked reports whether the hard stop applies: at most one minute
// of a limited interview remains.
func (c *Controller) timeUpLocked() bool {
	if !c.cfg.HardStop {
		return false
	}
	remaining, limited := c.remainingLocked()
	return limited && remaining <= time.Minute
}
