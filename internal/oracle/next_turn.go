package oracle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/llm"
	"github.com/abhisek/parley/internal/questions"
)

// NextTurnRequest is the state the oracle decides the next turn from.
type NextTurnRequest struct {
	Interview     *interview.Interview
	ParticipantID string
	Messages      []interview.Message

	// QuestionIndex is the index of the base question that would be asked
	// next.
	QuestionIndex int

	ElapsedMinutes float64

	// SkipSuggestions omits suggested responses from the reply.
	SkipSuggestions bool
}

// TimeRemaining returns the minutes left in the interview. Interviews
// without a limit report +Inf.
func (r NextTurnRequest) TimeRemaining() float64 {
	if r.Interview.TimeLimitMinutes <= 0 {
		return math.Inf(1)
	}
	return float64(r.Interview.TimeLimitMinutes) - r.ElapsedMinutes
}

// Decision is the oracle's choice for the next turn: either Complete, or a
// Question with optional reasoning, suggestions and a summary of the last
// answer.
type Decision struct {
	Complete        bool                        `json:"complete"`
	Question        string                      `json:"question,omitempty"`
	Thinking        string                      `json:"thinking,omitempty"`
	ResponseSummary string                      `json:"response_summary,omitempty"`
	Suggestions     []interview.SuggestedOption `json:"suggestions,omitempty"`
}

// errQuestionMissing is reported when a reply neither completes nor asks.
var errQuestionMissing = errors.New("reply has no question and is not complete")

type nextTurnPrompt struct {
	Interview       *interview.Interview
	Questions       []questions.Question
	TimeRemaining   string
	QuestionIndex   int
	SkipSuggestions bool
}

// DecideNextTurn returns the next interviewer turn. It completes without
// contacting the model when at most one minute remains or the base
// questions are exhausted.
func (o *Oracle) DecideNextTurn(ctx context.Context, req NextTurnRequest) (_ *Decision, err error) {
	if req.Interview == nil {
		return nil, errors.New("oracle next turn: interview is required")
	}
	remaining := req.TimeRemaining()
	if remaining <= 1 || req.QuestionIndex >= len(req.Interview.Questions) {
		return &Decision{Complete: true}, nil
	}
	ctx = llm.WithParticipant(llm.WithInterview(ctx, req.Interview.ID), req.ParticipantID)
	defer o.recordFallback(ctx, llm.PurposeNextTurn, &err)

	data := nextTurnPrompt{
		Interview:       req.Interview,
		Questions:       req.Interview.SortedQuestions(),
		TimeRemaining:   describeRemaining(remaining),
		QuestionIndex:   req.QuestionIndex,
		SkipSuggestions: req.SkipSuggestions,
	}
	system, instruction, err := o.prompts.render(promptNextTurn, data)
	if err != nil {
		return nil, err
	}

	raw, err := o.call(ctx, llm.PurposeNextTurn, nextTurnSchema, llm.Request{
		System:      system,
		Messages:    historyMessages(req.Messages, instruction),
		MaxTokens:   o.cfg.NextTurnMaxTokens,
		Temperature: o.cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}

	var out nextTurnOutput
	if err := decode(llm.PurposeNextTurn, raw, &out); err != nil {
		return nil, err
	}
	if out.Complete {
		return &Decision{Complete: true}, nil
	}
	if strings.TrimSpace(out.Question) == "" {
		return nil, fmt.Errorf("oracle %s: %w", llm.PurposeNextTurn,
			llm.Invalid(raw, errQuestionMissing))
	}

	d := &Decision{
		Question:        strings.TrimSpace(out.Question),
		Thinking:        strings.TrimSpace(out.Thinking),
		ResponseSummary: strings.TrimSpace(out.ResponseSummary),
	}
	if !req.SkipSuggestions {
		for _, s := range out.Suggestions {
			d.Suggestions = append(d.Suggestions, interview.SuggestedOption{
				Title:       s.Title,
				Description: s.Description,
			})
		}
	}
	return d, nil
}

// historyMessages maps the transcript onto provider roles and appends the
// instruction. A leading user turn is added when the transcript opens with
// the interviewer, since some providers require the user to speak first.
func historyMessages(msgs []interview.Message, instruction string) []llm.Message {
	out := make([]llm.Message, 0, len(msgs)+2)
	if len(msgs) > 0 && msgs[0].Role == interview.RoleAgent {
		out = append(out, llm.Message{Role: llm.RoleUser, Content: "Begin the interview."})
	}
	for _, m := range msgs {
		role := llm.RoleUser
		if m.Role == interview.RoleAgent {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return append(out, llm.Message{Role: llm.RoleUser, Content: instruction})
}

func describeRemaining(minutes float64) string {
	if math.IsInf(minutes, 1) {
		return "no fixed limit"
	}
	return fmt.Sprintf("approximately %d minutes", int(math.Ceil(minutes)))
}
