package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

const llmEventsTable = "llm_request_events"

var llmEventColumns = []string{
	"id", "sequence", "timestamp", "provider", "model", "purpose", "interview_id", "participant_id",
	"input_tokens", "output_tokens", "latency_ms", "success", "error_kind", "error_message",
	"request_body", "response_body",
}

// eventRepo implements EventRepo on the store's sqlite database.
type eventRepo struct {
	s *Store
}

func (r *eventRepo) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	seqNum, err := r.s.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	ins := r.s.b.Insert(llmEventsTable).
		Columns(llmEventColumns[1:]...).
		Values(
			seqNum, encodeTime(r.s.now()), data.Provider, data.Model, data.Purpose, data.InterviewID, data.ParticipantID,
			data.InputTokens, data.OutputTokens, data.LatencyMs, data.Success, data.ErrorKind, data.ErrorMessage,
			data.RequestBody, data.ResponseBody,
		)
	if _, err := r.s.exec(ctx, ins); err != nil {
		return fmt.Errorf("save LLM request event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error) {
	sel := r.s.b.Select(llmEventColumns...).
		From(r.s.b.Table(llmEventsTable)).
		OrderBy(entsql.Desc("sequence"))

	if opts.Purpose != "" {
		sel.Where(entsql.EQ("purpose", opts.Purpose))
	}
	if opts.InterviewID != "" {
		sel.Where(entsql.EQ("interview_id", opts.InterviewID))
	}
	if opts.ParticipantID != "" {
		sel.Where(entsql.EQ("participant_id", opts.ParticipantID))
	}
	if opts.FailedOnly {
		sel.Where(entsql.EQ("success", false))
	}
	if opts.After > 0 {
		sel.Where(entsql.GT("sequence", opts.After))
	}
	if opts.Before > 0 {
		sel.Where(entsql.LT("sequence", opts.Before))
	}
	if !opts.From.IsZero() {
		sel.Where(entsql.GTE("timestamp", encodeTime(opts.From)))
	}
	if !opts.To.IsZero() {
		sel.Where(entsql.LTE("timestamp", encodeTime(opts.To)))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	rows, err := r.s.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("query LLM events: %w", err)
	}
	defer rows.Close()

	var out []LLMRequestEvent
	for rows.Next() {
		e, err := scanLLMEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *eventRepo) GetLLMEvent(ctx context.Context, id int) (*LLMRequestEvent, error) {
	sel := r.s.b.Select(llmEventColumns...).
		From(r.s.b.Table(llmEventsTable)).
		Where(entsql.EQ("id", id))

	e, err := scanLLMEvent(r.s.queryRow(ctx, sel))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLLMEvent(row scanner) (*LLMRequestEvent, error) {
	var (
		e  LLMRequestEvent
		ts string
	)
	err := row.Scan(
		&e.ID, &e.Sequence, &ts, &e.Provider, &e.Model, &e.Purpose, &e.InterviewID, &e.ParticipantID,
		&e.InputTokens, &e.OutputTokens, &e.LatencyMs, &e.Success, &e.ErrorKind, &e.ErrorMessage,
		&e.RequestBody, &e.ResponseBody,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan LLM event: %w", err)
	}
	e.Timestamp = decodeTime(ts)
	return &e, nil
}
