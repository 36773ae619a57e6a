package session

import (
	"context"
	"fmt"

	"github.com/abhisek/parley/internal/interview"
)

// Open resolves an interview URL token and a participant magic token into
// a controller, loading the participant's transcript. The magic token must
// belong to the same interview. Lookup failures return store.ErrNotFound;
// draft interviews return ErrNotPublished. Fields of base other than the
// interview, participant, transcript and gateway are passed through.
func Open(ctx context.Context, gw Gateway, token, magicToken string, base Deps) (*Controller, error) {
	iv, p, err := Resolve(ctx, gw, token, magicToken)
	if err != nil {
		return nil, err
	}
	return Load(ctx, gw, iv, p, base)
}

// Resolve authenticates the token pair without loading the transcript.
func Resolve(ctx context.Context, gw Gateway, token, magicToken string) (*interview.Interview, *interview.Participant, error) {
	iv, err := gw.InterviewByToken(ctx, token)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve interview: %w", err)
	}
	if !iv.Published() {
		return nil, nil, ErrNotPublished
	}

	p, err := gw.ParticipantByToken(ctx, magicToken, iv.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve participant: %w", err)
	}
	return iv, p, nil
}

// Load builds a controller for a resolved participant.
func Load(ctx context.Context, gw Gateway, iv *interview.Interview, p *interview.Participant, base Deps) (*Controller, error) {
	tr, err := gw.GetOrCreateTranscript(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	base.Interview = iv
	base.Participant = p
	base.Transcript = tr
	base.Gateway = gw
	return New(base)
}
