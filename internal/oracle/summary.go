package oracle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/llm"
)

// SummaryRequest is a transcript to summarize.
type SummaryRequest struct {
	Interview     *interview.Interview
	ParticipantID string
	Messages      []interview.Message

	// Partial marks a transcript from a session the participant left
	// early. The prompt asks the model not to speculate past it.
	Partial bool
}

type summaryPrompt struct {
	Interview    *interview.Interview
	Partial      bool
	Conversation string
}

// Summarize produces a Summary of the request's transcript.
func (o *Oracle) Summarize(ctx context.Context, req SummaryRequest) (_ *interview.Summary, err error) {
	if req.Interview == nil {
		return nil, errors.New("oracle summary: interview is required")
	}
	ctx = llm.WithParticipant(llm.WithInterview(ctx, req.Interview.ID), req.ParticipantID)
	defer o.recordFallback(ctx, llm.PurposeSummary, &err)

	data := summaryPrompt{
		Interview:    req.Interview,
		Partial:      req.Partial,
		Conversation: formatConversation(req.Messages),
	}
	system, user, err := o.prompts.render(promptSummary, data)
	if err != nil {
		return nil, err
	}

	raw, err := o.call(ctx, llm.PurposeSummary, summarySchema, llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: user}},
		MaxTokens:   o.cfg.SummaryMaxTokens,
		Temperature: o.cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}

	var out summaryOutput
	if err := decode(llm.PurposeSummary, raw, &out); err != nil {
		return nil, err
	}

	sum := &interview.Summary{
		ParticipantID:      req.ParticipantID,
		Insights:           out.Insights,
		KeyThemes:          out.KeyThemes,
		Sentiment:          out.Sentiment,
		ActionableInsights: out.ActionableInsights,
		Partial:            req.Partial,
		GeneratedAt:        time.Now().UTC(),
	}
	for _, q := range out.NotableQuotes {
		sum.NotableQuotes = append(sum.NotableQuotes, interview.Quote{Text: q.Text, Context: q.Context})
	}
	return sum, nil
}

func formatConversation(msgs []interview.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		speaker := "Participant"
		if m.Role == interview.RoleAgent {
			speaker = "Interviewer"
		}
		parts = append(parts, speaker+": "+m.Content)
	}
	return strings.Join(parts, "\n\n")
}
