package session

import (
	"github.com/abhisek/parley/internal/interview"
)

// QAPair is one question and the answer given to it.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// CheckpointView summarizes the category just finished.
type CheckpointView struct {
	Category string   `json:"category"`
	IsLast   bool     `json:"is_last"`
	Pairs    []QAPair `json:"pairs"`
}

// Checkpoint returns the view of the open checkpoint. It is also available
// while the participant reviews the transcript from it.
//
// Pairs match the k-th interviewer message with the k-th answer for each
// global question index k inside the category. Follow-ups asked within the
// category shift this pairing.
func (c *Controller) Checkpoint() (*CheckpointView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != PhaseCategoryCheckpoint && !c.state.ReviewPending {
		return nil, ErrNotAtCheckpoint
	}

	cat := c.cats[c.state.CurrentCategoryIndex]
	view := &CheckpointView{
		Category: cat.Name,
		IsLast:   c.state.CurrentCategoryIndex == len(c.cats)-1,
	}

	var asked, answered []string
	for _, m := range c.state.Messages {
		switch m.Role {
		case interview.RoleAgent:
			asked = append(asked, m.Content)
		case interview.RoleParticipant:
			answered = append(answered, m.Content)
		}
	}
	for k := cat.Start; k < cat.End(); k++ {
		if k >= len(asked) || k >= len(answered) {
			break
		}
		view.Pairs = append(view.Pairs, QAPair{Question: asked[k], Answer: answered[k]})
	}
	return view, nil
}
