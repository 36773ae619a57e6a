package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/parley/internal/interview"
)

const summariesTable = "summaries"

var summaryColumns = []string{
	"participant_id", "free_form_insights", "key_themes", "notable_quotes",
	"participant_sentiment", "actionable_insights", "partial", "generated_at",
}

// UpsertSummary stores sum, replacing any earlier summary for the same
// participant.
func (s *Store) UpsertSummary(ctx context.Context, sum *interview.Summary) error {
	if sum.GeneratedAt.IsZero() {
		sum.GeneratedAt = s.now()
	}
	themes, err := json.Marshal(nonNil(sum.KeyThemes))
	if err != nil {
		return fmt.Errorf("encode key themes: %w", err)
	}
	quotes, err := json.Marshal(nonNil(sum.NotableQuotes))
	if err != nil {
		return fmt.Errorf("encode quotes: %w", err)
	}
	actions, err := json.Marshal(nonNil(sum.ActionableInsights))
	if err != nil {
		return fmt.Errorf("encode actionable insights: %w", err)
	}

	ins := s.b.Insert(summariesTable).
		Columns(summaryColumns...).
		Values(
			sum.ParticipantID, sum.Insights, string(themes), string(quotes),
			sum.Sentiment, string(actions), sum.Partial, encodeTime(sum.GeneratedAt),
		).
		OnConflict(entsql.ConflictColumns("participant_id"), entsql.ResolveWithNewValues())
	if _, err := s.exec(ctx, ins); err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

// SummaryFor returns a participant's summary or ErrNotFound.
func (s *Store) SummaryFor(ctx context.Context, participantID string) (*interview.Summary, error) {
	sel := s.b.Select(summaryColumns...).
		From(s.b.Table(summariesTable)).
		Where(entsql.EQ("participant_id", participantID))
	sum, err := scanSummary(s.queryRow(ctx, sel))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sum, err
}

// SummariesFor returns the summaries of the given participants ordered by
// generation time. Participants without a summary are skipped.
func (s *Store) SummariesFor(ctx context.Context, participantIDs []string) ([]*interview.Summary, error) {
	if len(participantIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(participantIDs))
	for i, id := range participantIDs {
		args[i] = id
	}

	sel := s.b.Select(summaryColumns...).
		From(s.b.Table(summariesTable)).
		Where(entsql.In("participant_id", args...)).
		OrderBy("generated_at", "participant_id")

	rows, err := s.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var out []*interview.Summary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// CompletedSummaries returns the summaries of an interview's completed
// participants, oldest first.
func (s *Store) CompletedSummaries(ctx context.Context, interviewID string) ([]*interview.Summary, error) {
	ps, err := s.ListParticipants(ctx, interviewID, interview.ParticipantCompleted)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return s.SummariesFor(ctx, ids)
}

func scanSummary(row scanner) (*interview.Summary, error) {
	var (
		sum                     interview.Summary
		themes, quotes, actions string
		generated               string
	)
	err := row.Scan(
		&sum.ParticipantID, &sum.Insights, &themes, &quotes,
		&sum.Sentiment, &actions, &sum.Partial, &generated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan summary: %w", err)
	}
	if err := json.Unmarshal([]byte(themes), &sum.KeyThemes); err != nil {
		return nil, fmt.Errorf("decode key themes: %w", err)
	}
	if err := json.Unmarshal([]byte(quotes), &sum.NotableQuotes); err != nil {
		return nil, fmt.Errorf("decode quotes: %w", err)
	}
	if err := json.Unmarshal([]byte(actions), &sum.ActionableInsights); err != nil {
		return nil, fmt.Errorf("decode actionable insights: %w", err)
	}
	sum.GeneratedAt = decodeTime(generated)
	return &sum, nil
}
