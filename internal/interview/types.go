package interview

import (
	"time"

	"github.com/abhisek/parley/internal/questions"
)

// Status is the lifecycle state of an interview definition.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Interview is a researcher-authored interview definition. It is treated as
// immutable while a session runs against it.
type Interview struct {
	ID         string `json:"id" yaml:"id"`
	AuthorID   string `json:"author_id" yaml:"author_id"`
	Title      string `json:"title" yaml:"title"`
	Goal       string `json:"goal" yaml:"goal"`
	Guidelines string `json:"guidelines,omitempty" yaml:"guidelines,omitempty"`

	// AnchorTopics are the ordered topics the interview must cover.
	AnchorTopics []string `json:"anchor_topics,omitempty" yaml:"anchor_topics,omitempty"`

	// Context is free-form background text supplied by the researcher.
	Context string `json:"context,omitempty" yaml:"context,omitempty"`

	TimeLimitMinutes int                  `json:"time_limit_minutes" yaml:"time_limit_minutes"`
	AgenticMode      bool                 `json:"agentic_mode" yaml:"agentic_mode"`
	Questions        []questions.Question `json:"questions" yaml:"questions"`

	CustomSummaryTemplate string `json:"custom_summary_template,omitempty" yaml:"custom_summary_template,omitempty"`

	Status      Status     `json:"status" yaml:"status"`
	URLToken    string     `json:"url_token" yaml:"url_token"`
	CreatedAt   time.Time  `json:"created_at" yaml:"-"`
	PublishedAt *time.Time `json:"published_at,omitempty" yaml:"-"`
}

// Published reports whether participants may join the interview.
func (iv *Interview) Published() bool {
	return iv.Status == StatusPublished
}

// SortedQuestions returns the interview's questions ordered by Order.
func (iv *Interview) SortedQuestions() []questions.Question {
	return questions.Sorted(iv.Questions)
}

// ParticipantStatus is the progress of a single participant.
type ParticipantStatus string

const (
	ParticipantInProgress ParticipantStatus = "in_progress"
	ParticipantCompleted  ParticipantStatus = "completed"
	ParticipantIncomplete ParticipantStatus = "incomplete"
)

// Terminal reports whether the status can no longer change.
func (s ParticipantStatus) Terminal() bool {
	return s == ParticipantCompleted || s == ParticipantIncomplete
}

// Valid reports whether s is a known status.
func (s ParticipantStatus) Valid() bool {
	switch s {
	case ParticipantInProgress, ParticipantCompleted, ParticipantIncomplete:
		return true
	}
	return false
}

// Participant is a person taking an interview.
type Participant struct {
	ID          string            `json:"id"`
	InterviewID string            `json:"interview_id"`
	Email       string            `json:"email"`
	MagicToken  string            `json:"magic_token"`
	Status      ParticipantStatus `json:"status"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// Role identifies the author of a transcript message.
type Role string

const (
	RoleAgent       Role = "agent"
	RoleParticipant Role = "participant"
)

// Message is a single transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Thinking  string    `json:"thinking,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is the append-only message log of one participant.
type Transcript struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	Messages      []Message `json:"messages"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CountRole returns the number of messages authored by role.
func CountRole(msgs []Message, role Role) int {
	n := 0
	for _, m := range msgs {
		if m.Role == role {
			n++
		}
	}
	return n
}

// Quote is a notable participant quote with surrounding context.
type Quote struct {
	Text    string `json:"text"`
	Context string `json:"context"`
}

// Summary is the LLM-generated digest of one participant's transcript.
type Summary struct {
	ParticipantID      string    `json:"participant_id"`
	Insights           string    `json:"free_form_insights"`
	KeyThemes          []string  `json:"key_themes"`
	NotableQuotes      []Quote   `json:"notable_quotes"`
	Sentiment          string    `json:"participant_sentiment"`
	ActionableInsights []string  `json:"actionable_insights"`
	Partial            bool      `json:"partial"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// SuggestedOption is a candidate answer shown to the participant. It is
// never persisted.
type SuggestedOption struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ThemeCount is the number of summaries mentioning a theme.
type ThemeCount struct {
	Theme string `json:"theme"`
	Count int    `json:"count"`
}

// SentimentTrend is one summary's sentiment at its generation time.
type SentimentTrend struct {
	Date      time.Time `json:"date"`
	Sentiment string    `json:"sentiment"`
}

// AnalyticsCache is the per-interview aggregate over completed summaries.
type AnalyticsCache struct {
	InterviewID     string           `json:"interview_id"`
	Themes          []ThemeCount     `json:"themes"`
	SentimentTrends []SentimentTrend `json:"sentiment_trends"`
	LastUpdated     time.Time        `json:"last_updated"`
}
