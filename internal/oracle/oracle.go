// Package oracle is the interviewer's LLM client: it generates question
// sets, decides each next turn, and summarizes finished transcripts.
//
// Every call renders an embedded prompt, sends it through an llm.Provider,
// extracts the first-brace-to-last-brace span of the reply and validates it
// against a schema reflected from the expected output struct.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/parley/internal/extract"
	"github.com/abhisek/parley/internal/llm"
	"github.com/abhisek/parley/internal/logging"
	"github.com/abhisek/parley/internal/metrics"
	"github.com/abhisek/parley/internal/store"
)

// Oracle issues interview prompts to an LLM provider.
type Oracle struct {
	provider llm.Provider
	cfg      Config
	prompts  *promptSet
	logger   *zap.Logger
	ledger   Ledger
}

// Ledger persists fallbacks. store.EventRepo satisfies it.
type Ledger interface {
	AppendFallback(ctx context.Context, data store.FallbackEventData) error
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithLedger records every failed operation in l, labelled with Reason.
func WithLedger(l Ledger) Option {
	return func(o *Oracle) { o.ledger = l }
}

// New creates an Oracle backed by provider.
func New(provider llm.Provider, cfg Config, logger *zap.Logger, opts ...Option) (*Oracle, error) {
	if provider == nil {
		return nil, errors.New("oracle: provider is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ps, err := loadPrompts()
	if err != nil {
		return nil, err
	}
	o := &Oracle{
		provider: provider,
		cfg:      cfg,
		prompts:  ps,
		logger:   logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// ModelID returns the underlying provider's model.
func (o *Oracle) ModelID() string {
	return o.provider.ModelID()
}

// call runs one request through the provider and returns the validated
// JSON object from the reply.
func (o *Oracle) call(ctx context.Context, op string, schema *llm.Schema, req llm.Request) (raw json.RawMessage, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveOracle(op, start, err)
		if err != nil {
			o.logger.Debug("oracle call failed",
				zap.String("op", op),
				zap.String("reason", Reason(err)),
				zap.Error(err))
		}
	}()

	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}
	ctx = llm.WithPurpose(ctx, op)

	if o.cfg.NativeStructuredOutput {
		req.Schema = schema
	}

	resp, err := o.provider.Generate(ctx, req)
	if err != nil {
		if llm.KindOf(err) == llm.KindUnknown {
			// Bare errors from custom providers count as unreachable.
			err = &llm.Error{Kind: llm.KindUnavailable, Err: err}
		}
		return nil, fmt.Errorf("oracle %s: %w", op, err)
	}

	raw, err = extract.Object(resp.Text())
	if err != nil {
		return nil, fmt.Errorf("oracle %s: %w", op, err)
	}
	if err := llm.ValidateResponse(schema, raw); err != nil {
		return nil, fmt.Errorf("oracle %s: %w", op, err)
	}
	return raw, nil
}

// recordFallback appends a failed operation to the ledger. The caller
// falls back to its base question or reports the error.
func (o *Oracle) recordFallback(ctx context.Context, op string, errp *error) {
	if *errp == nil || o.ledger == nil {
		return
	}
	data := store.FallbackEventData{
		Purpose:       op,
		Reason:        Reason(*errp),
		InterviewID:   llm.InterviewFrom(ctx),
		ParticipantID: llm.ParticipantFrom(ctx),
	}
	if err := o.ledger.AppendFallback(context.WithoutCancel(ctx), data); err != nil {
		o.logger.Warn("failed to record oracle fallback", zap.String("op", op), zap.Error(err))
	}
}

// decode unmarshals validated JSON into v.
func decode(op string, raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("oracle %s: %w: %v", op, extract.ErrMalformedStructure, err)
	}
	return nil
}
