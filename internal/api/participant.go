package api

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/questions"
	"github.com/abhisek/parley/internal/session"
)

const maxAnswerLength = 10000

type joinRequest struct {
	Email string `json:"email"`
}

func (r *joinRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" {
		return &ErrorResponse{Code: "email_required", Message: "email is required"}
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return &ErrorResponse{Code: "invalid_email", Message: "email is not a valid address"}
	}
	return nil
}

type joinResponse struct {
	ParticipantID string `json:"participant_id"`
	MagicToken    string `json:"magic_token"`
	SessionURL    string `json:"session_url"`
	Resumed       bool   `json:"resumed"`
}

func (s *Server) join(w http.ResponseWriter, r *http.Request) {
	req := validated[*joinRequest](r)
	token := chi.URLParam(r, "token")

	iv, err := s.store.InterviewByToken(r.Context(), token)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if !iv.Published() {
		writeError(w, http.StatusNotFound, "not_found", "interview is not open for participants")
		return
	}

	p, created, err := s.store.JoinInterview(r.Context(), iv.ID, req.Email)
	if err != nil {
		s.internalError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		s.logger.Info("participant joined", zap.String("interview", iv.ID), zap.String("participant", p.ID))
	}
	writeJSON(w, status, joinResponse{
		ParticipantID: p.ID,
		MagicToken:    p.MagicToken,
		SessionURL:    fmt.Sprintf("/api/i/%s/s/%s", token, p.MagicToken),
		Resumed:       !created,
	})
}

// sessionView is what the participant's client renders.
type sessionView struct {
	Title            string   `json:"title"`
	TimeLimitMinutes int      `json:"time_limit_minutes"`
	AgenticMode      bool     `json:"agentic_mode"`
	Categories       []string `json:"categories"`
	QuestionCount    int      `json:"question_count"`

	Phase                session.Phase               `json:"phase"`
	Messages             []interview.Message         `json:"messages"`
	CurrentQuestionIndex int                         `json:"current_question_index"`
	CurrentCategoryIndex int                         `json:"current_category_index"`
	Suggestions          []interview.SuggestedOption `json:"suggestions,omitempty"`
	ResponseSummary      string                      `json:"response_summary,omitempty"`
	Thinking             bool                        `json:"thinking"`
	ReviewPending        bool                        `json:"review_pending"`
	Advisory             string                      `json:"advisory,omitempty"`
	TimeRemainingSeconds *int                        `json:"time_remaining_seconds,omitempty"`
	Checkpoint           *session.CheckpointView     `json:"checkpoint,omitempty"`
}

func newSessionView(c *session.Controller) sessionView {
	iv := c.Interview()
	qs := iv.SortedQuestions()
	st := c.Snapshot()

	v := sessionView{
		Title:                iv.Title,
		TimeLimitMinutes:     iv.TimeLimitMinutes,
		AgenticMode:          iv.AgenticMode,
		Categories:           questions.Names(questions.Group(qs)),
		QuestionCount:        len(qs),
		Phase:                st.Phase,
		Messages:             st.Messages,
		CurrentQuestionIndex: st.CurrentQuestionIndex,
		CurrentCategoryIndex: st.CurrentCategoryIndex,
		Suggestions:          st.Suggestions,
		ResponseSummary:      st.LastResponseSummary,
		Thinking:             st.Thinking,
		ReviewPending:        st.ReviewPending,
		Advisory:             c.Advisory(),
	}
	if v.Messages == nil {
		v.Messages = []interview.Message{}
	}
	if remaining, limited := c.TimeRemaining(); limited && !st.Phase.Terminal() {
		secs := int(remaining / time.Second)
		v.TimeRemainingSeconds = &secs
	}
	if cp, err := c.Checkpoint(); err == nil {
		v.Checkpoint = cp
	}
	return v
}

func (s *Server) controller(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	ctrl, err := s.sessions.Open(r.Context(), chi.URLParam(r, "token"), chi.URLParam(r, "magic"))
	if err != nil {
		s.sessionError(w, err)
		return nil, false
	}
	return ctrl, true
}

// writeSession renders the controller and drops it from the registry
// once the session has finished.
func (s *Server) writeSession(w http.ResponseWriter, ctrl *session.Controller) {
	writeJSON(w, http.StatusOK, newSessionView(ctrl))
	s.sessions.Release(ctrl)
}

func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.controller(w, r)
	if !ok {
		return
	}
	if err := ctrl.Start(detach(r)); err != nil {
		s.sessionError(w, err)
		return
	}
	s.writeSession(w, ctrl)
}

type answerRequest struct {
	Content string `json:"content"`
}

func (r *answerRequest) Validate() error {
	if len(r.Content) > maxAnswerLength {
		return &ErrorResponse{Code: "answer_too_long", Message: fmt.Sprintf("answers are limited to %d characters", maxAnswerLength)}
	}
	return nil
}

func (s *Server) submitAnswer(w http.ResponseWriter, r *http.Request) {
	req := validated[*answerRequest](r)
	ctrl, ok := s.controller(w, r)
	if !ok {
		return
	}
	if err := ctrl.Submit(detach(r), req.Content); err != nil {
		s.sessionError(w, err)
		return
	}
	s.writeSession(w, ctrl)
}

func (s *Server) continueCheckpoint(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.controller(w, r)
	if !ok {
		return
	}
	if err := ctrl.Continue(detach(r)); err != nil {
		s.sessionError(w, err)
		return
	}
	s.writeSession(w, ctrl)
}

func (s *Server) editCheckpoint(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.controller(w, r)
	if !ok {
		return
	}
	if err := ctrl.Edit(); err != nil {
		s.sessionError(w, err)
		return
	}
	s.writeSession(w, ctrl)
}

type exitRequest struct {
	Action string `json:"action"`
}

var exitActions = map[string]session.ExitAction{
	"resume":            session.ExitResume,
	"submit_incomplete": session.ExitSubmitIncomplete,
}

func (r *exitRequest) Validate() error {
	if _, ok := exitActions[r.Action]; !ok {
		return &ErrorResponse{Code: "invalid_action", Message: `action must be "resume" or "submit_incomplete"`}
	}
	return nil
}

func (s *Server) exitSession(w http.ResponseWriter, r *http.Request) {
	req := validated[*exitRequest](r)
	ctrl, ok := s.controller(w, r)
	if !ok {
		return
	}
	if err := ctrl.Exit(detach(r), exitActions[req.Action]); err != nil {
		s.sessionError(w, err)
		return
	}
	s.writeSession(w, ctrl)
}
