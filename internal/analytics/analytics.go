// Package analytics aggregates participant summaries into the
// per-interview analytics cache.
package analytics

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/logging"
	"github.com/abhisek/parley/internal/metrics"
)

// Aggregate counts themes across summaries and lists their sentiments.
// Themes are compared as exact strings and sorted by count descending,
// then by theme. Trends keep the input order. Aggregate does not set the
// interview id or LastUpdated.
func Aggregate(summaries []*interview.Summary) *interview.AnalyticsCache {
	counts := make(map[string]int)
	trends := make([]interview.SentimentTrend, 0, len(summaries))
	for _, s := range summaries {
		for _, theme := range s.KeyThemes {
			counts[theme]++
		}
		trends = append(trends, interview.SentimentTrend{
			Date:      s.GeneratedAt,
			Sentiment: s.Sentiment,
		})
	}

	themes := make([]interview.ThemeCount, 0, len(counts))
	for theme, n := range counts {
		themes = append(themes, interview.ThemeCount{Theme: theme, Count: n})
	}
	slices.SortFunc(themes, func(a, b interview.ThemeCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Theme, b.Theme)
	})

	return &interview.AnalyticsCache{
		Themes:          themes,
		SentimentTrends: trends,
	}
}

// Store is the persistence the Service needs.
type Store interface {
	CompletedSummaries(ctx context.Context, interviewID string) ([]*interview.Summary, error)
	UpsertAnalytics(ctx context.Context, c *interview.AnalyticsCache) error
	ListInterviews(ctx context.Context, status interview.Status) ([]*interview.Interview, error)
}

// Service recomputes analytics caches from stored summaries.
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a Service.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logging.OrNop(logger),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Refresh rebuilds and replaces the cache of one interview. When there
// are no completed summaries nothing is written and Refresh returns nil
// with no error. Concurrent refreshes are last write wins.
func (s *Service) Refresh(ctx context.Context, interviewID string) (cache *interview.AnalyticsCache, err error) {
	defer func() { metrics.AnalyticsRefresh(err) }()

	summaries, err := s.store.CompletedSummaries(ctx, interviewID)
	if err != nil {
		return nil, fmt.Errorf("load summaries for %s: %w", interviewID, err)
	}
	if len(summaries) == 0 {
		s.logger.Debug("no completed summaries, analytics unchanged", zap.String("interview", interviewID))
		return nil, nil
	}

	cache = Aggregate(summaries)
	cache.InterviewID = interviewID
	cache.LastUpdated = s.now()
	if err := s.store.UpsertAnalytics(ctx, cache); err != nil {
		return nil, fmt.Errorf("save analytics for %s: %w", interviewID, err)
	}

	s.logger.Info("analytics refreshed",
		zap.String("interview", interviewID),
		zap.Int("summaries", len(summaries)),
		zap.Int("themes", len(cache.Themes)))
	return cache, nil
}

// RefreshAll refreshes every published interview. It keeps going past
// failures and returns how many caches were written along with the first
// error.
func (s *Service) RefreshAll(ctx context.Context) (int, error) {
	ivs, err := s.store.ListInterviews(ctx, interview.StatusPublished)
	if err != nil {
		return 0, fmt.Errorf("list published interviews: %w", err)
	}

	var (
		written  int
		firstErr error
	)
	for _, iv := range ivs {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		cache, err := s.Refresh(ctx, iv.ID)
		if err != nil {
			s.logger.Warn("analytics refresh failed", zap.String("interview", iv.ID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if cache != nil {
			written++
		}
	}
	return written, firstErr
}
