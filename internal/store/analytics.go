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

const analyticsTable = "analytics_cache"

// UpsertAnalytics replaces the cached aggregate for an interview.
func (s *Store) UpsertAnalytics(ctx context.Context, c *interview.AnalyticsCache) error {
	themes, err := json.Marshal(nonNil(c.Themes))
	if err != nil {
		return fmt.Errorf("encode themes: %w", err)
	}
	trends, err := json.Marshal(nonNil(c.SentimentTrends))
	if err != nil {
		return fmt.Errorf("encode trends: %w", err)
	}

	ins := s.b.Insert(analyticsTable).
		Columns("interview_id", "themes", "sentiment_trends", "last_updated").
		Values(c.InterviewID, string(themes), string(trends), encodeTime(c.LastUpdated)).
		OnConflict(entsql.ConflictColumns("interview_id"), entsql.ResolveWithNewValues())
	if _, err := s.exec(ctx, ins); err != nil {
		return fmt.Errorf("upsert analytics: %w", err)
	}
	return nil
}

// AnalyticsFor returns the cached aggregate for an interview or ErrNotFound.
func (s *Store) AnalyticsFor(ctx context.Context, interviewID string) (*interview.AnalyticsCache, error) {
	sel := s.b.Select("interview_id", "themes", "sentiment_trends", "last_updated").
		From(s.b.Table(analyticsTable)).
		Where(entsql.EQ("interview_id", interviewID))

	var (
		c                     interview.AnalyticsCache
		themes, trends, stamp string
	)
	err := s.queryRow(ctx, sel).Scan(&c.InterviewID, &themes, &trends, &stamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load analytics: %w", err)
	}
	if err := json.Unmarshal([]byte(themes), &c.Themes); err != nil {
		return nil, fmt.Errorf("decode themes: %w", err)
	}
	if err := json.Unmarshal([]byte(trends), &c.SentimentTrends); err != nil {
		return nil, fmt.Errorf("decode trends: %w", err)
	}
	c.LastUpdated = decodeTime(stamp)
	return &c, nil
}
