package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTerminalStatus is returned when updating a participant whose
	// status is already completed or incomplete.
	ErrTerminalStatus = errors.New("participant status is terminal")
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit         int       // max results (0 = unlimited)
	After         int64     // sequence > After
	Before        int64     // sequence < Before
	From          time.Time // timestamp >= From
	To            time.Time // timestamp <= To
	Purpose       string    // exact purpose match when set
	InterviewID   string    // calls made for one interview
	ParticipantID string    // calls made for one participant's session
	FailedOnly    bool
}

// UsageFilter narrows usage and fallback aggregates to one interview or
// participant. The zero value covers everything.
type UsageFilter struct {
	InterviewID   string
	ParticipantID string
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider      string
	Model         string
	Purpose       string
	InterviewID   string
	ParticipantID string
	InputTokens   int
	OutputTokens  int
	LatencyMs     int64
	Success       bool
	ErrorKind     string // provider failure class, empty on success
	ErrorMessage  string
	RequestBody   string
	ResponseBody  string
}

// LLMRequestEvent is a stored LLM request event.
type LLMRequestEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// FallbackEventData records one oracle call that produced no usable
// decision, labelled with the oracle's failure reason.
type FallbackEventData struct {
	Purpose       string
	Reason        string
	InterviewID   string
	ParticipantID string
}

// FallbackCount is the number of fallbacks for one purpose and reason.
type FallbackCount struct {
	Purpose string
	Reason  string
	Count   int
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error)

	// GetLLMEvent returns a single event by id, or nil if absent.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEvent, error)

	// LLMUsageByPurpose aggregates token usage and latency per purpose.
	LLMUsageByPurpose(ctx context.Context, f UsageFilter) ([]LLMUsageStats, error)

	// LLMUsageByModel aggregates token usage of successful calls per model.
	LLMUsageByModel(ctx context.Context, f UsageFilter) ([]LLMModelUsage, error)

	// AppendFallback records an oracle fallback.
	AppendFallback(ctx context.Context, data FallbackEventData) error

	// FallbacksByPurpose counts fallbacks per purpose and reason.
	FallbacksByPurpose(ctx context.Context, f UsageFilter) ([]FallbackCount, error)
}
