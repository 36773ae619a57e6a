package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

// LLMUsageStats aggregates LLM calls for one purpose.
type LLMUsageStats struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// LLMModelUsage aggregates LLM calls for one model.
type LLMModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// where applies f to a query over a table with interview_id and
// participant_id columns.
func (f UsageFilter) where(sel *entsql.Selector) *entsql.Selector {
	if f.InterviewID != "" {
		sel.Where(entsql.EQ("interview_id", f.InterviewID))
	}
	if f.ParticipantID != "" {
		sel.Where(entsql.EQ("participant_id", f.ParticipantID))
	}
	return sel
}

func (r *eventRepo) LLMUsageByPurpose(ctx context.Context, f UsageFilter) ([]LLMUsageStats, error) {
	sel := r.s.b.Select(
		"purpose",
		entsql.As(entsql.Count("*"), "calls"),
		entsql.As(entsql.Sum("input_tokens"), "input_tokens"),
		entsql.As(entsql.Sum("output_tokens"), "output_tokens"),
		entsql.As(entsql.Avg("latency_ms"), "avg_latency_ms"),
	).
		From(r.s.b.Table(llmEventsTable))
	f.where(sel).GroupBy("purpose").OrderBy("purpose")

	rows, err := r.s.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("usage by purpose: %w", err)
	}
	defer rows.Close()

	var out []LLMUsageStats
	for rows.Next() {
		var (
			st  LLMUsageStats
			avg float64
		)
		if err := rows.Scan(&st.Purpose, &st.Calls, &st.InputTokens, &st.OutputTokens, &avg); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		st.AvgLatencyMs = int64(avg)
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *eventRepo) LLMUsageByModel(ctx context.Context, f UsageFilter) ([]LLMModelUsage, error) {
	sel := r.s.b.Select(
		"model",
		entsql.As(entsql.Count("*"), "calls"),
		entsql.As(entsql.Sum("input_tokens"), "input_tokens"),
		entsql.As(entsql.Sum("output_tokens"), "output_tokens"),
	).
		From(r.s.b.Table(llmEventsTable)).
		Where(entsql.EQ("success", true))
	f.where(sel).GroupBy("model").OrderBy("model")

	rows, err := r.s.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("usage by model: %w", err)
	}
	defer rows.Close()

	var out []LLMModelUsage
	for rows.Next() {
		var mu LLMModelUsage
		if err := rows.Scan(&mu.Model, &mu.Calls, &mu.InputTokens, &mu.OutputTokens); err != nil {
			return nil, fmt.Errorf("scan model usage: %w", err)
		}
		out = append(out, mu)
	}
	return out, rows.Err()
}

const fallbacksTable = "oracle_fallbacks"

func (r *eventRepo) AppendFallback(ctx context.Context, data FallbackEventData) error {
	seqNum, err := r.s.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	ins := r.s.b.Insert(fallbacksTable).
		Columns("sequence", "timestamp", "purpose", "reason", "interview_id", "participant_id").
		Values(seqNum, encodeTime(r.s.now()), data.Purpose, data.Reason, data.InterviewID, data.ParticipantID)
	if _, err := r.s.exec(ctx, ins); err != nil {
		return fmt.Errorf("save fallback: %w", err)
	}
	return nil
}

func (r *eventRepo) FallbacksByPurpose(ctx context.Context, f UsageFilter) ([]FallbackCount, error) {
	sel := r.s.b.Select(
		"purpose", "reason",
		entsql.As(entsql.Count("*"), "n"),
	).
		From(r.s.b.Table(fallbacksTable))
	f.where(sel).GroupBy("purpose", "reason").OrderBy("purpose", "reason")

	rows, err := r.s.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("fallbacks by purpose: %w", err)
	}
	defer rows.Close()

	var out []FallbackCount
	for rows.Next() {
		var fc FallbackCount
		if err := rows.Scan(&fc.Purpose, &fc.Reason, &fc.Count); err != nil {
			return nil, fmt.Errorf("scan fallback count: %w", err)
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}
