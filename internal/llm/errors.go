package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Kind classifies a failed provider call. The retry decorator decides on
// it, and the interview oracle turns it into a fallback reason.
type Kind int

const (
	KindUnknown     Kind = iota
	KindRateLimited      // 429 from the provider
	KindUnavailable      // unreachable or 5xx
	KindRejected         // auth or malformed request; retrying cannot help
	KindBlocked          // safety filters withheld the reply
	KindTimeout          // per-call deadline elapsed
	KindTruncated        // reply cut off at MaxTokens
	KindInvalid          // reply does not match the schema
)

var kindNames = [...]string{
	KindUnknown:     "unknown",
	KindRateLimited: "rate_limited",
	KindUnavailable: "unavailable",
	KindRejected:    "rejected",
	KindBlocked:     "blocked",
	KindTimeout:     "timeout",
	KindTruncated:   "truncated",
	KindInvalid:     "invalid",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// NoReply reports whether a call of this kind produced nothing usable, as
// opposed to a reply that failed validation.
func (k Kind) NoReply() bool {
	return k != KindInvalid && k != KindUnknown
}

// Error is a classified provider failure.
type Error struct {
	Kind       Kind
	RetryAfter time.Duration   // set for KindRateLimited when the provider says
	Content    json.RawMessage // raw reply for KindTruncated and KindInvalid
	Err        error
}

func (e *Error) Error() string {
	msg := "llm " + e.Kind.String()
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain. A bare
// context deadline counts as a timeout.
func KindOf(err error) Kind {
	var e *Error
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &e):
		return e.Kind
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	return KindUnknown
}

// Invalid reports that content does not satisfy the requested schema.
func Invalid(content json.RawMessage, err error) error {
	return &Error{Kind: KindInvalid, Content: content, Err: err}
}

// statusError classifies an HTTP-level provider error by status code. A
// zero status means the request never got a response.
func statusError(status int, header http.Header, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, RetryAfter: retryAfter(header), Err: err}
	case status == http.StatusRequestTimeout, status == 0, status >= 500:
		return &Error{Kind: KindUnavailable, Err: err}
	case status >= 400:
		return &Error{Kind: KindRejected, Err: err}
	}
	return &Error{Kind: KindUnavailable, Err: err}
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
