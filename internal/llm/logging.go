package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/parley/internal/store"
)

// EventRecorder persists LLM request events. store.EventRepo satisfies it.
type EventRecorder interface {
	AppendLLMRequest(ctx context.Context, data store.LLMRequestEventData) error
}

// LoggingProvider is a decorator that records every LLM request as an event
// and emits a structured log line for it.
type LoggingProvider struct {
	inner     Provider
	provider  string
	eventRepo EventRecorder
	logger    *zap.Logger
}

// WithLogging wraps a Provider with event logging. repo may be nil, in
// which case only the structured log line is written.
func WithLogging(p Provider, providerName string, repo EventRecorder, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingProvider{inner: p, provider: providerName, eventRepo: repo, logger: logger}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)

	latencyMs := time.Since(start).Milliseconds()

	data := store.LLMRequestEventData{
		Provider:      l.provider,
		Model:         l.inner.ModelID(),
		Purpose:       purpose,
		InterviewID:   InterviewFrom(ctx),
		ParticipantID: ParticipantFrom(ctx),
		LatencyMs:     latencyMs,
		Success:       err == nil,
		RequestBody:   serializeRequest(req),
	}

	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		data.Model = resp.Model
		data.ResponseBody = string(resp.Content)
	}

	fields := []zap.Field{
		zap.String("provider", data.Provider),
		zap.String("model", data.Model),
		zap.String("purpose", purpose),
		zap.String("participant", data.ParticipantID),
		zap.Int64("latency_ms", latencyMs),
		zap.Int("input_tokens", data.InputTokens),
		zap.Int("output_tokens", data.OutputTokens),
	}
	if err != nil {
		data.ErrorKind = KindOf(err).String()
		data.ErrorMessage = err.Error()
		fields = append(fields, zap.String("kind", data.ErrorKind), zap.Error(err))
		l.logger.Warn("llm request failed", fields...)
	} else {
		l.logger.Debug("llm request", fields...)
	}

	if l.eventRepo != nil {
		// The request itself must not fail because bookkeeping did.
		if logErr := l.eventRepo.AppendLLMRequest(context.WithoutCancel(ctx), data); logErr != nil {
			l.logger.Warn("failed to record llm request event", zap.Error(logErr))
		}
	}

	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

// serializeRequest builds a readable representation of the LLM request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n", m.Role)
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}

	if req.Schema != nil {
		if def, err := json.Marshal(req.Schema.Definition); err == nil {
			fmt.Fprintf(&b, "[schema: %s]\n", req.Schema.Name)
			b.Write(def)
			b.WriteString("\n")
		}
	}

	return b.String()
}
