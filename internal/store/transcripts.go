package store

import (
	"context"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/abhisek/parley/internal/interview"
)

const transcriptsTable = "transcripts"

// GetOrCreateTranscript returns the participant's transcript, creating an
// empty one on first access.
func (s *Store) GetOrCreateTranscript(ctx context.Context, participantID string) (*interview.Transcript, error) {
	now := s.now()
	ins := s.b.Insert(transcriptsTable).
		Columns("id", "participant_id", "messages", "updated_at").
		Values(uuid.NewString(), participantID, "[]", encodeTime(now)).
		OnConflict(entsql.ConflictColumns("participant_id"), entsql.DoNothing())
	if _, err := s.exec(ctx, ins); err != nil {
		return nil, fmt.Errorf("create transcript: %w", err)
	}
	return s.transcriptFor(ctx, participantID)
}

// UpsertTranscript replaces the stored message list for a participant.
func (s *Store) UpsertTranscript(ctx context.Context, participantID string, messages []interview.Message) error {
	b, err := json.Marshal(nonNil(messages))
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}

	ins := s.b.Insert(transcriptsTable).
		Columns("id", "participant_id", "messages", "updated_at").
		Values(uuid.NewString(), participantID, string(b), encodeTime(s.now())).
		OnConflict(
			entsql.ConflictColumns("participant_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("messages")
				u.SetExcluded("updated_at")
			}),
		)
	if _, err := s.exec(ctx, ins); err != nil {
		return fmt.Errorf("upsert transcript: %w", err)
	}
	return nil
}

func (s *Store) transcriptFor(ctx context.Context, participantID string) (*interview.Transcript, error) {
	sel := s.b.Select("id", "participant_id", "messages", "updated_at").
		From(s.b.Table(transcriptsTable)).
		Where(entsql.EQ("participant_id", participantID))

	var (
		t         interview.Transcript
		msgs, upd string
	)
	if err := s.queryRow(ctx, sel).Scan(&t.ID, &t.ParticipantID, &msgs, &upd); err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	if err := json.Unmarshal([]byte(msgs), &t.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	t.UpdatedAt = decodeTime(upd)
	return &t, nil
}
