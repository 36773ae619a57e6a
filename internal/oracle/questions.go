package oracle

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/llm"
	"github.com/abhisek/parley/internal/questions"
)

// Brief is the researcher input question generation works from.
type Brief struct {
	Title            string   `json:"title"`
	Goal             string   `json:"goal"`
	TimeLimitMinutes int      `json:"time_limit_minutes"`
	AgenticMode      bool     `json:"agentic_mode"`
	Guidelines       string   `json:"guidelines,omitempty"`
	AnchorTopics     []string `json:"anchor_topics,omitempty"`
	Context          string   `json:"context,omitempty"`
}

// BriefFrom builds a Brief from an interview definition.
func BriefFrom(iv *interview.Interview) Brief {
	return Brief{
		Title:            iv.Title,
		Goal:             iv.Goal,
		TimeLimitMinutes: iv.TimeLimitMinutes,
		AgenticMode:      iv.AgenticMode,
		Guidelines:       iv.Guidelines,
		AnchorTopics:     iv.AnchorTopics,
		Context:          iv.Context,
	}
}

// QuestionRange is the number of questions requested for the brief's mode.
// Agentic interviews ask fewer base questions since follow-ups fill time.
func (b Brief) QuestionRange() string {
	if b.AgenticMode {
		return "6-9"
	}
	return "9-12"
}

// Generated is a freshly generated question set.
type Generated struct {
	Questions  []questions.Question `json:"questions"`
	Categories []string             `json:"categories"`
}

// GenerateQuestions asks the model for a categorized question set. Orders
// are assigned sequentially, categories are made contiguous, and
// multiple-choice suggestions default to enabled.
func (o *Oracle) GenerateQuestions(ctx context.Context, brief Brief) (_ *Generated, err error) {
	defer o.recordFallback(ctx, llm.PurposeQuestions, &err)

	system, user, err := o.prompts.render(promptQuestions, brief)
	if err != nil {
		return nil, err
	}

	raw, err := o.call(ctx, llm.PurposeQuestions, questionsSchema, llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: user}},
		MaxTokens:   o.cfg.QuestionsMaxTokens,
		Temperature: o.cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}

	var out questionsOutput
	if err := decode(llm.PurposeQuestions, raw, &out); err != nil {
		return nil, err
	}

	var qs []questions.Question
	for _, c := range out.Categories {
		name := strings.TrimSpace(c.Name)
		for _, gq := range c.Questions {
			enabled := gq.IsAIMultipleChoice == nil || *gq.IsAIMultipleChoice
			qs = append(qs, questions.Question{
				ID:               uuid.NewString(),
				Text:             strings.TrimSpace(gq.Text),
				Category:         name,
				Order:            len(qs),
				AIMultipleChoice: &enabled,
			})
		}
	}
	qs = questions.Normalize(qs)

	o.logger.Info("generated interview questions",
		zap.String("title", brief.Title),
		zap.Int("questions", len(qs)),
		zap.Bool("agentic", brief.AgenticMode))

	return &Generated{
		Questions:  qs,
		Categories: questions.Names(questions.Group(qs)),
	}, nil
}
