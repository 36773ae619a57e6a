package session

import (
	"time"

	"github.com/abhisek/parley/internal/interview"
)

// Phase represents the current phase of an interview session.
type Phase int

const (
	PhaseAwaitingFirstQuestion Phase = iota // Created, Start not yet called
	PhaseAwaitingAnswer                     // A question is on screen
	PhaseCategoryCheckpoint                 // A category just finished
	PhaseComplete                           // Finished normally
	PhaseIncomplete                         // Participant left early
)

var phaseNames = map[Phase]string{
	PhaseAwaitingFirstQuestion: "awaiting_first_question",
	PhaseAwaitingAnswer:        "awaiting_answer",
	PhaseCategoryCheckpoint:    "category_checkpoint",
	PhaseComplete:              "complete",
	PhaseIncomplete:            "incomplete",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "unknown"
}

// MarshalText renders the phase by name in JSON views.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Terminal reports whether no further turns can happen.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseIncomplete
}

// State is the runtime state of one participant's session.
type State struct {
	// Messages is the transcript so far, oldest first.
	Messages []interview.Message `json:"messages"`

	// CurrentQuestionIndex is the global index of the base question most
	// recently asked.
	CurrentQuestionIndex int `json:"current_question_index"`

	// CurrentCategoryIndex is the index of the category being worked
	// through.
	CurrentCategoryIndex int `json:"current_category_index"`

	Phase Phase `json:"phase"`

	// Suggestions are candidate answers for the question on screen.
	Suggestions []interview.SuggestedOption `json:"suggestions,omitempty"`

	// LastResponseSummary restates the participant's previous answer.
	LastResponseSummary string `json:"last_response_summary,omitempty"`

	// StartTime is when this session was started or resumed.
	StartTime time.Time `json:"start_time"`

	// Thinking is true while a turn is in flight.
	Thinking bool `json:"thinking"`

	// ReviewPending is set when the participant chose to review the
	// transcript from a checkpoint. Answers are refused until Continue.
	ReviewPending bool `json:"review_pending,omitempty"`
}

// clone returns a deep copy of the slices in s.
func (s State) clone() State {
	out := s
	out.Messages = append([]interview.Message(nil), s.Messages...)
	out.Suggestions = append([]interview.SuggestedOption(nil), s.Suggestions...)
	return out
}
