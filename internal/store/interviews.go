package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/questions"
)

const interviewsTable = "interviews"

var interviewColumns = []string{
	"id", "author_id", "title", "goal", "guidelines", "anchor_topics", "context",
	"time_limit_minutes", "agentic_mode", "questions", "custom_summary_template",
	"status", "url_token", "created_at", "published_at",
}

// NewToken returns a random URL-safe token.
func NewToken() string {
	return uuid.NewString()
}

// CreateInterview inserts iv as a new draft. Missing ids, tokens and
// creation times are filled in and written back to iv.
func (s *Store) CreateInterview(ctx context.Context, iv *interview.Interview) error {
	if iv.ID == "" {
		iv.ID = uuid.NewString()
	}
	if iv.URLToken == "" {
		iv.URLToken = NewToken()
	}
	if iv.Status == "" {
		iv.Status = interview.StatusDraft
	}
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = s.now()
	}

	topics, err := json.Marshal(nonNil(iv.AnchorTopics))
	if err != nil {
		return fmt.Errorf("encode anchor topics: %w", err)
	}
	qs, err := json.Marshal(nonNil(iv.Questions))
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}

	ins := s.b.Insert(interviewsTable).
		Columns(interviewColumns...).
		Values(
			iv.ID, iv.AuthorID, iv.Title, iv.Goal, iv.Guidelines, string(topics), iv.Context,
			iv.TimeLimitMinutes, iv.AgenticMode, string(qs), iv.CustomSummaryTemplate,
			string(iv.Status), iv.URLToken, encodeTime(iv.CreatedAt), encodeTimePtr(iv.PublishedAt),
		)
	if _, err := s.exec(ctx, ins); err != nil {
		return fmt.Errorf("insert interview: %w", err)
	}
	return nil
}

// GetInterview returns the interview with the given id.
func (s *Store) GetInterview(ctx context.Context, id string) (*interview.Interview, error) {
	return s.interviewWhere(ctx, entsql.EQ("id", id))
}

// InterviewByToken returns the interview addressed by a public URL token.
func (s *Store) InterviewByToken(ctx context.Context, token string) (*interview.Interview, error) {
	return s.interviewWhere(ctx, entsql.EQ("url_token", token))
}

func (s *Store) interviewWhere(ctx context.Context, p *entsql.Predicate) (*interview.Interview, error) {
	sel := s.b.Select(interviewColumns...).From(s.b.Table(interviewsTable)).Where(p)
	iv, err := scanInterview(s.queryRow(ctx, sel))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return iv, err
}

// ListInterviews returns interviews newest first, optionally filtered by
// status when status is non-empty.
func (s *Store) ListInterviews(ctx context.Context, status interview.Status) ([]*interview.Interview, error) {
	sel := s.b.Select(interviewColumns...).
		From(s.b.Table(interviewsTable)).
		OrderBy(entsql.Desc("created_at"))
	if status != "" {
		sel.Where(entsql.EQ("status", string(status)))
	}

	rows, err := s.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}
	defer rows.Close()

	var out []*interview.Interview
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// UpdateQuestions replaces the question set of a draft interview.
func (s *Store) UpdateQuestions(ctx context.Context, id string, qs []questions.Question) error {
	if err := questions.Validate(qs); err != nil {
		return err
	}
	b, err := json.Marshal(nonNil(qs))
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	upd := s.b.Update(interviewsTable).Set("questions", string(b)).Where(entsql.EQ("id", id))
	return s.updateOne(ctx, upd, "update questions")
}

// PublishInterview marks an interview published so participants can join.
// Publishing twice keeps the original publication time.
func (s *Store) PublishInterview(ctx context.Context, id string) (*interview.Interview, error) {
	iv, err := s.GetInterview(ctx, id)
	if err != nil {
		return nil, err
	}
	if iv.Published() {
		return iv, nil
	}

	now := s.now()
	upd := s.b.Update(interviewsTable).
		Set("status", string(interview.StatusPublished)).
		Set("published_at", encodeTime(now)).
		Where(entsql.EQ("id", id))
	if err := s.updateOne(ctx, upd, "publish interview"); err != nil {
		return nil, err
	}

	iv.Status = interview.StatusPublished
	iv.PublishedAt = &now
	return iv, nil
}

// DuplicateInterview copies an interview into a new draft with a fresh id
// and URL token. Participants and results are not copied.
func (s *Store) DuplicateInterview(ctx context.Context, id string) (*interview.Interview, error) {
	src, err := s.GetInterview(ctx, id)
	if err != nil {
		return nil, err
	}

	dup := *src
	dup.ID = ""
	dup.URLToken = ""
	dup.Title = src.Title + " (Copy)"
	dup.Status = interview.StatusDraft
	dup.CreatedAt = s.now()
	dup.PublishedAt = nil
	dup.Questions = make([]questions.Question, len(src.Questions))
	for i, q := range src.Questions {
		q.ID = uuid.NewString()
		dup.Questions[i] = q
	}
	dup.AnchorTopics = append([]string(nil), src.AnchorTopics...)

	if err := s.CreateInterview(ctx, &dup); err != nil {
		return nil, err
	}
	return &dup, nil
}

func (s *Store) updateOne(ctx context.Context, upd *entsql.UpdateBuilder, op string) error {
	res, err := s.exec(ctx, upd)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanInterview(row scanner) (*interview.Interview, error) {
	var (
		iv                 interview.Interview
		topics, qs, status string
		created            string
		published          sql.NullString
	)
	err := row.Scan(
		&iv.ID, &iv.AuthorID, &iv.Title, &iv.Goal, &iv.Guidelines, &topics, &iv.Context,
		&iv.TimeLimitMinutes, &iv.AgenticMode, &qs, &iv.CustomSummaryTemplate,
		&status, &iv.URLToken, &created, &published,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan interview: %w", err)
	}

	if err := json.Unmarshal([]byte(topics), &iv.AnchorTopics); err != nil {
		return nil, fmt.Errorf("decode anchor topics: %w", err)
	}
	if err := json.Unmarshal([]byte(qs), &iv.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	iv.Questions = questions.Sorted(iv.Questions)
	iv.Status = interview.Status(status)
	iv.CreatedAt = decodeTime(created)
	iv.PublishedAt = decodeTimePtr(published)
	return &iv, nil
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
