package llm

import "context"

type contextKey string

const (
	purposeKey     contextKey = "llm_purpose"
	interviewKey   contextKey = "llm_interview"
	participantKey contextKey = "llm_participant"
)

// Purposes used by the interview oracle.
const (
	PurposeQuestions = "questions"
	PurposeNextTurn  = "next_turn"
	PurposeSummary   = "summary"
)

// WithPurpose attaches a purpose label to the context for event logging.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

// WithInterview attaches the interview a request is made for.
func WithInterview(ctx context.Context, interviewID string) context.Context {
	return context.WithValue(ctx, interviewKey, interviewID)
}

// InterviewFrom extracts the interview id, or "" if none is attached.
func InterviewFrom(ctx context.Context) string {
	v, _ := ctx.Value(interviewKey).(string)
	return v
}

// WithParticipant attaches the participant a request is made on behalf of.
func WithParticipant(ctx context.Context, participantID string) context.Context {
	return context.WithValue(ctx, participantKey, participantID)
}

// ParticipantFrom extracts the participant id, or "" if none is attached.
func ParticipantFrom(ctx context.Context) string {
	v, _ := ctx.Value(participantKey).(string)
	return v
}
