package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/abhisek/parley/internal/interview"
)

const participantsTable = "participants"

var participantColumns = []string{
	"id", "interview_id", "email", "magic_token", "status", "started_at", "completed_at",
}

// JoinInterview registers email for an interview, returning the existing
// participant when the address already joined. New participants start
// in_progress with an empty transcript.
func (s *Store) JoinInterview(ctx context.Context, interviewID, email string) (*interview.Participant, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, false, fmt.Errorf("email is required")
	}

	existing, err := s.participantWhere(ctx, entsql.And(
		entsql.EQ("interview_id", interviewID),
		entsql.EQ("email", email),
	))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	p := &interview.Participant{
		ID:          uuid.NewString(),
		InterviewID: interviewID,
		Email:       email,
		MagicToken:  NewToken(),
		Status:      interview.ParticipantInProgress,
		StartedAt:   s.now(),
	}
	ins := s.b.Insert(participantsTable).
		Columns(participantColumns...).
		Values(p.ID, p.InterviewID, p.Email, p.MagicToken, string(p.Status), encodeTime(p.StartedAt), nil)
	if _, err := s.exec(ctx, ins); err != nil {
		return nil, false, fmt.Errorf("insert participant: %w", err)
	}

	if _, err := s.GetOrCreateTranscript(ctx, p.ID); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// GetParticipant returns a participant by id.
func (s *Store) GetParticipant(ctx context.Context, id string) (*interview.Participant, error) {
	return s.participantWhere(ctx, entsql.EQ("id", id))
}

// ParticipantByToken resolves a magic token scoped to one interview. A
// token belonging to a different interview is reported as not found.
func (s *Store) ParticipantByToken(ctx context.Context, magicToken, interviewID string) (*interview.Participant, error) {
	return s.participantWhere(ctx, entsql.And(
		entsql.EQ("magic_token", magicToken),
		entsql.EQ("interview_id", interviewID),
	))
}

// ListParticipants returns an interview's participants in join order.
// When statuses is non-empty only those statuses are returned.
func (s *Store) ListParticipants(ctx context.Context, interviewID string, statuses ...interview.ParticipantStatus) ([]*interview.Participant, error) {
	sel := s.b.Select(participantColumns...).
		From(s.b.Table(participantsTable)).
		Where(entsql.EQ("interview_id", interviewID)).
		OrderBy("started_at", "id")
	if len(statuses) > 0 {
		args := make([]any, len(statuses))
		for i, st := range statuses {
			args[i] = string(st)
		}
		sel.Where(entsql.In("status", args...))
	}

	rows, err := s.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []*interview.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateParticipantStatus moves a participant to status. Only in_progress
// participants may change; updating a terminal participant returns
// ErrTerminalStatus. completedAt is stored when non-nil.
func (s *Store) UpdateParticipantStatus(ctx context.Context, participantID string, status interview.ParticipantStatus, completedAt *time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("invalid participant status %q", status)
	}

	upd := s.b.Update(participantsTable).
		Set("status", string(status)).
		Where(entsql.And(
			entsql.EQ("id", participantID),
			entsql.EQ("status", string(interview.ParticipantInProgress)),
		))
	if completedAt != nil {
		upd.Set("completed_at", encodeTime(*completedAt))
	}

	err := s.updateOne(ctx, upd, "update participant status")
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	// Nothing matched: either the participant is gone or already terminal.
	p, getErr := s.GetParticipant(ctx, participantID)
	if getErr != nil {
		return getErr
	}
	if p.Status.Terminal() {
		return fmt.Errorf("participant %s is %s: %w", participantID, p.Status, ErrTerminalStatus)
	}
	return err
}

func (s *Store) participantWhere(ctx context.Context, p *entsql.Predicate) (*interview.Participant, error) {
	sel := s.b.Select(participantColumns...).From(s.b.Table(participantsTable)).Where(p)
	pt, err := scanParticipant(s.queryRow(ctx, sel))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return pt, err
}

func scanParticipant(row scanner) (*interview.Participant, error) {
	var (
		p               interview.Participant
		completed       sql.NullString
		status, started string
	)
	if err := row.Scan(&p.ID, &p.InterviewID, &p.Email, &p.MagicToken, &status, &started, &completed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan participant: %w", err)
	}
	p.Status = interview.ParticipantStatus(status)
	p.StartedAt = decodeTime(started)
	p.CompletedAt = decodeTimePtr(completed)
	return &p, nil
}
