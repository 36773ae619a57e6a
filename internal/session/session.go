// Package session drives a single participant's interview: asking base
// questions and AI follow-ups, pausing at category checkpoints, enforcing
// the time box, and finishing as complete or incomplete.
//
// Every transcript mutation is written through the Gateway before it
// becomes visible in a Snapshot.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/logging"
	"github.com/abhisek/parley/internal/metrics"
	"github.com/abhisek/parley/internal/oracle"
	"github.com/abhisek/parley/internal/questions"
	"github.com/abhisek/parley/internal/store"
	"github.com/abhisek/parley/internal/summarizer"
)

// Gateway is the persistence the controller and Open rely on.
type Gateway interface {
	UpsertTranscript(ctx context.Context, participantID string, messages []interview.Message) error
	UpdateParticipantStatus(ctx context.Context, participantID string, status interview.ParticipantStatus, completedAt *time.Time) error
	GetOrCreateTranscript(ctx context.Context, participantID string) (*interview.Transcript, error)
	InterviewByToken(ctx context.Context, token string) (*interview.Interview, error)
	ParticipantByToken(ctx context.Context, magicToken, interviewID string) (*interview.Participant, error)
}

// Oracle decides agentic turns.
type Oracle interface {
	DecideNextTurn(ctx context.Context, req oracle.NextTurnRequest) (*oracle.Decision, error)
}

// Summarizer starts background summaries.
type Summarizer interface {
	Start(job summarizer.Job) *summarizer.Task
}

// Deps is everything a Controller needs. Oracle may be nil for static
// interviews; Summarizer may be nil to skip summaries.
type Deps struct {
	Interview   *interview.Interview
	Participant *interview.Participant
	Transcript  *interview.Transcript
	Gateway     Gateway
	Oracle      Oracle
	Summarizer  Summarizer
	Clock       Clock
	Logger      *zap.Logger
	Config      Config
}

// Controller is the state machine of one participant's session. Its
// methods are safe for concurrent use; only one turn runs at a time.
type Controller struct {
	iv          *interview.Interview
	qs          []questions.Question
	cats        []questions.Category
	participant interview.Participant

	gw     Gateway
	oracle Oracle
	sum    Summarizer
	clock  Clock
	logger *zap.Logger
	cfg    Config

	mu          sync.Mutex
	state       State
	summaryTask *summarizer.Task
}

// New creates a controller. A participant already in a terminal status
// yields a controller in the matching terminal phase.
func New(d Deps) (*Controller, error) {
	if d.Interview == nil || d.Participant == nil {
		return nil, errors.New("session: interview and participant are required")
	}
	if d.Gateway == nil {
		return nil, errors.New("session: gateway is required")
	}
	if d.Interview.AgenticMode && d.Oracle == nil {
		return nil, errors.New("session: agentic interviews need an oracle")
	}
	if err := d.Config.Validate(); err != nil {
		return nil, err
	}
	if d.Clock == nil {
		d.Clock = SystemClock
	}

	qs := d.Interview.SortedQuestions()
	c := &Controller{
		iv:          d.Interview,
		qs:          qs,
		cats:        questions.Group(qs),
		participant: *d.Participant,
		gw:          d.Gateway,
		oracle:      d.Oracle,
		sum:         d.Summarizer,
		clock:       d.Clock,
		logger: logging.OrNop(d.Logger).With(
			zap.String("interview", d.Interview.ID),
			zap.String("participant", d.Participant.ID)),
		cfg: d.Config,
	}
	if d.Transcript != nil {
		c.state.Messages = append([]interview.Message(nil), d.Transcript.Messages...)
	}

	switch d.Participant.Status {
	case interview.ParticipantCompleted:
		c.state.Phase = PhaseComplete
	case interview.ParticipantIncomplete:
		c.state.Phase = PhaseIncomplete
	}
	return c, nil
}

// Interview returns the interview the session runs against.
func (c *Controller) Interview() *interview.Interview {
	return c.iv
}

// Participant returns a copy of the participant as last persisted.
func (c *Controller) Participant() interview.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.participant
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// SummaryTask returns the handle of the summary started when the session
// ended, or nil.
func (c *Controller) SummaryTask() *summarizer.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summaryTask
}

// Start asks the first question of a fresh session or resumes an existing
// transcript. On resume the question index equals the number of answers
// given and nothing is asked again. When the transcript ends with an
// answer that never got a reply, Start runs that turn; callers use this to
// retry after ErrPersistence. Otherwise calling Start again is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Thinking || c.state.Phase.Terminal() ||
		c.state.Phase == PhaseCategoryCheckpoint || c.state.ReviewPending {
		c.mu.Unlock()
		return nil
	}
	fresh := c.state.Phase == PhaseAwaitingFirstQuestion
	if fresh {
		c.state.StartTime = c.clock.Now()
	}

	msgs := c.state.Messages
	if len(msgs) == 0 {
		if len(c.qs) == 0 {
			c.mu.Unlock()
			return c.complete(ctx)
		}
		c.state.Thinking = true
		c.mu.Unlock()
		defer c.endTurn()
		return c.ask(ctx, turn{text: c.qs[0].Text, index: 0})
	}

	answers := interview.CountRole(msgs, interview.RoleParticipant)
	if msgs[len(msgs)-1].Role == interview.RoleAgent {
		if fresh {
			c.state.CurrentQuestionIndex = answers
			c.state.CurrentCategoryIndex = questions.CategoryIndexFor(c.cats, answers)
			c.logger.Info("session resumed", zap.Int("question_index", answers))
		}
		c.setPhaseLocked(PhaseAwaitingAnswer)
		c.mu.Unlock()
		return nil
	}

	if fresh {
		c.state.CurrentQuestionIndex = answers - 1
		c.state.CurrentCategoryIndex = questions.CategoryIndexFor(c.cats, answers-1)
		c.logger.Info("session resumed after unanswered turn", zap.Int("question_index", answers-1))
	}
	c.setPhaseLocked(PhaseAwaitingAnswer)
	return c.advanceLocked(ctx)
}

// Submit records the participant's answer and runs the next turn: a
// category checkpoint, the next base question, an oracle-chosen follow-up,
// or completion.
func (c *Controller) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	switch {
	case text == "":
		c.mu.Unlock()
		return ErrEmptyAnswer
	case c.state.Thinking:
		c.mu.Unlock()
		return ErrTurnInProgress
	case c.state.Phase.Terminal():
		c.mu.Unlock()
		return ErrSessionEnded
	case c.state.Phase == PhaseCategoryCheckpoint || c.state.ReviewPending:
		c.mu.Unlock()
		return ErrAtCheckpoint
	case c.state.Phase == PhaseAwaitingFirstQuestion:
		c.mu.Unlock()
		return ErrNotStarted
	case c.lastRoleLocked() == interview.RoleParticipant:
		// The previous answer is still waiting for its reply; Start
		// retries that turn.
		c.mu.Unlock()
		return ErrTurnInProgress
	}

	if err := c.appendLocked(ctx, c.newMessage(interview.RoleParticipant, text, "")); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state.Suggestions = nil
	c.state.LastResponseSummary = ""
	return c.advanceLocked(ctx)
}

// advanceLocked decides what follows the latest answer. It is entered with
// c.mu held and returns with it released.
func (c *Controller) advanceLocked(ctx context.Context) error {
	next := c.state.CurrentQuestionIndex + 1

	if len(c.cats) > 1 && next == c.cats[c.state.CurrentCategoryIndex].End() {
		c.setPhaseLocked(PhaseCategoryCheckpoint)
		c.mu.Unlock()
		return nil
	}

	if c.timeUpLocked() {
		c.mu.Unlock()
		c.logger.Info("time limit reached, completing")
		return c.complete(ctx)
	}

	c.state.Thinking = true
	agentic := c.iv.AgenticMode
	c.mu.Unlock()
	defer c.endTurn()

	if !agentic {
		if next < len(c.qs) {
			return c.ask(ctx, turn{text: c.qs[next].Text, index: next})
		}
		return c.complete(ctx)
	}
	return c.agenticTurn(ctx, next)
}

func (c *Controller) agenticTurn(ctx context.Context, next int) error {
	c.mu.Lock()
	req := oracle.NextTurnRequest{
		Interview:       c.iv,
		ParticipantID:   c.participant.ID,
		Messages:        append([]interview.Message(nil), c.state.Messages...),
		QuestionIndex:   next,
		ElapsedMinutes:  c.elapsedLocked().Minutes(),
		SkipSuggestions: next < len(c.qs) && !c.qs[next].SuggestionsEnabled(),
	}
	c.mu.Unlock()

	d, err := c.oracle.DecideNextTurn(ctx, req)
	if err != nil {
		reason := oracle.Reason(err)
		metrics.OracleFallback(reason)
		c.logger.Warn("next turn decision failed, falling back to base question",
			zap.String("reason", reason),
			zap.Int("question_index", next),
			zap.Error(err))
		if next < len(c.qs) {
			return c.ask(ctx, turn{text: c.qs[next].Text, index: next})
		}
		return c.complete(ctx)
	}

	if d.Complete {
		return c.complete(ctx)
	}
	return c.ask(ctx, turn{
		text:        d.Question,
		index:       next,
		thinking:    d.Thinking,
		suggestions: d.Suggestions,
		summary:     d.ResponseSummary,
	})
}

// turn is one interviewer message to show.
type turn struct {
	text        string
	index       int
	thinking    string
	suggestions []interview.SuggestedOption
	summary     string
}

// ask pauses, then appends and persists the interviewer message. The
// caller must have set Thinking. If the session ended meanwhile the
// message is dropped.
func (c *Controller) ask(ctx context.Context, t turn) error {
	c.clock.Sleep(ctx, c.delay())

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase.Terminal() {
		c.logger.Debug("session ended during turn, dropping question")
		return nil
	}

	if err := c.appendLocked(ctx, c.newMessage(interview.RoleAgent, t.text, t.thinking)); err != nil {
		return err
	}
	c.state.CurrentQuestionIndex = t.index
	c.state.Suggestions = t.suggestions
	c.state.LastResponseSummary = t.summary
	c.setPhaseLocked(PhaseAwaitingAnswer)
	return nil
}

func (c *Controller) lastRoleLocked() interview.Role {
	if n := len(c.state.Messages); n > 0 {
		return c.state.Messages[n-1].Role
	}
	return ""
}

func (c *Controller) endTurn() {
	c.mu.Lock()
	c.state.Thinking = false
	c.mu.Unlock()
}

func (c *Controller) delay() time.Duration {
	if c.cfg.MaxDelay <= 0 {
		return 0
	}
	spread := c.cfg.MaxDelay - c.cfg.MinDelay
	if spread <= 0 {
		return c.cfg.MinDelay
	}
	return c.cfg.MinDelay + rand.N(spread)
}

// Continue leaves a checkpoint and asks the first question of the next
// category, or completes when none is left.
func (c *Controller) Continue(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Phase.Terminal() {
		c.mu.Unlock()
		return ErrSessionEnded
	}
	if c.state.Phase != PhaseCategoryCheckpoint && !c.state.ReviewPending {
		c.mu.Unlock()
		return ErrNotAtCheckpoint
	}
	if c.state.Thinking {
		c.mu.Unlock()
		return ErrTurnInProgress
	}
	c.state.ReviewPending = false

	next := c.state.CurrentCategoryIndex + 1
	if next >= len(c.cats) || c.timeUpLocked() {
		c.mu.Unlock()
		return c.complete(ctx)
	}

	cat := c.cats[next]
	c.state.CurrentCategoryIndex = next
	c.state.Thinking = true
	c.mu.Unlock()
	defer c.endTurn()

	return c.ask(ctx, turn{text: cat.Questions[0].Text, index: cat.Start})
}

// Edit closes the checkpoint to let the participant review the transcript.
// Nothing is changed; Continue reopens the flow.
func (c *Controller) Edit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase.Terminal() {
		return ErrSessionEnded
	}
	if c.state.ReviewPending {
		return nil
	}
	if c.state.Phase != PhaseCategoryCheckpoint {
		return ErrNotAtCheckpoint
	}
	c.state.ReviewPending = true
	c.setPhaseLocked(PhaseAwaitingAnswer)
	return nil
}

// ExitAction is the participant's choice in the exit dialog.
type ExitAction int

const (
	ExitResume           ExitAction = iota // Keep going
	ExitSubmitIncomplete                   // Leave and submit what was said
)

// Exit handles the exit dialog. Submitting incomplete marks the
// participant incomplete and starts a partial summary. Repeated exits and
// exits after the end are no-ops.
func (c *Controller) Exit(ctx context.Context, action ExitAction) error {
	if action == ExitResume {
		return nil
	}
	if action != ExitSubmitIncomplete {
		return fmt.Errorf("session: unknown exit action %d", action)
	}
	return c.finish(ctx, interview.ParticipantIncomplete)
}

func (c *Controller) complete(ctx context.Context) error {
	return c.finish(ctx, interview.ParticipantCompleted)
}

// finish moves the session to a terminal phase, persists the participant
// status and starts the summary.
func (c *Controller) finish(ctx context.Context, status interview.ParticipantStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase.Terminal() {
		return nil
	}

	now := c.clock.Now()
	taken, err := c.updateStatusLocked(ctx, status, &now)
	if err != nil {
		return err
	}
	if taken {
		// Another session finished this participant first and owns the
		// summary.
		c.state.Suggestions = nil
		c.state.ReviewPending = false
		if c.participant.Status == interview.ParticipantIncomplete {
			c.setPhaseLocked(PhaseIncomplete)
		} else {
			c.setPhaseLocked(PhaseComplete)
		}
		c.logger.Warn("participant already finished elsewhere",
			zap.String("requested", string(status)),
			zap.String("stored", string(c.participant.Status)))
		return nil
	}

	c.participant.Status = status
	c.participant.CompletedAt = &now
	c.state.Suggestions = nil
	c.state.ReviewPending = false

	partial := status == interview.ParticipantIncomplete
	if partial {
		c.setPhaseLocked(PhaseIncomplete)
	} else {
		c.setPhaseLocked(PhaseComplete)
	}
	c.logger.Info("session finished",
		zap.String("status", string(status)),
		zap.Int("messages", len(c.state.Messages)))

	if c.sum != nil {
		c.summaryTask = c.sum.Start(summarizer.Job{
			Interview:     c.iv,
			ParticipantID: c.participant.ID,
			Messages:      append([]interview.Message(nil), c.state.Messages...),
			Partial:       partial,
		})
	}
	return nil
}

func (c *Controller) newMessage(role interview.Role, content, thinking string) interview.Message {
	return interview.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Thinking:  thinking,
		Timestamp: c.clock.Now(),
	}
}

func (c *Controller) setPhaseLocked(p Phase) {
	if c.state.Phase == p {
		return
	}
	c.state.Phase = p
	metrics.SessionTransition(p.String())
}

// appendLocked appends msg and persists the transcript. When the write
// fails twice the append is undone.
func (c *Controller) appendLocked(ctx context.Context, msg interview.Message) error {
	c.state.Messages = append(c.state.Messages, msg)
	err := c.retryOnce("save transcript", func() error {
		return c.gw.UpsertTranscript(ctx, c.participant.ID, c.state.Messages)
	})
	if err != nil {
		c.state.Messages = c.state.Messages[:len(c.state.Messages)-1]
		return err
	}
	return nil
}

// updateStatusLocked persists status. taken reports that the participant
// was already terminal in the store; c.participant then carries the stored
// status and completion time.
func (c *Controller) updateStatusLocked(ctx context.Context, status interview.ParticipantStatus, at *time.Time) (taken bool, err error) {
	err = c.retryOnce("update participant status", func() error {
		err := c.gw.UpdateParticipantStatus(ctx, c.participant.ID, status, at)
		if errors.Is(err, store.ErrTerminalStatus) {
			taken = true
			return nil
		}
		return err
	})
	if err != nil || !taken {
		return taken, err
	}

	stored, err := c.gw.ParticipantByToken(ctx, c.participant.MagicToken, c.participant.InterviewID)
	if err != nil {
		return true, fmt.Errorf("reload participant: %w", err)
	}
	c.participant.Status = stored.Status
	c.participant.CompletedAt = stored.CompletedAt
	return true, nil
}

func (c *Controller) retryOnce(op string, write func() error) error {
	err := write()
	if err == nil {
		return nil
	}
	c.logger.Warn(op+" failed, retrying", zap.Error(err))

	err = write()
	metrics.PersistenceRetry(err)
	if err != nil {
		c.logger.Error(op+" failed after retry", zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
	}
	return nil
}
