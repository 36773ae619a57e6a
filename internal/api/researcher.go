package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/oracle"
	"github.com/abhisek/parley/internal/questions"
	"github.com/abhisek/parley/internal/store"
)

type createInterviewRequest struct {
	AuthorID              string               `json:"author_id"`
	Title                 string               `json:"title"`
	Goal                  string               `json:"goal"`
	Guidelines            string               `json:"guidelines"`
	AnchorTopics          []string             `json:"anchor_topics"`
	Context               string               `json:"context"`
	TimeLimitMinutes      int                  `json:"time_limit_minutes"`
	AgenticMode           bool                 `json:"agentic_mode"`
	Questions             []questions.Question `json:"questions"`
	CustomSummaryTemplate string               `json:"custom_summary_template"`
}

func (r *createInterviewRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return &ErrorResponse{Code: "title_required", Message: "title is required"}
	}
	if strings.TrimSpace(r.Goal) == "" {
		return &ErrorResponse{Code: "goal_required", Message: "goal is required"}
	}
	if r.TimeLimitMinutes < 0 {
		return &ErrorResponse{Code: "invalid_time_limit", Message: "time_limit_minutes must not be negative"}
	}
	return validateQuestions(r.Questions)
}

type updateQuestionsRequest struct {
	Questions []questions.Question `json:"questions"`
}

func (r *updateQuestionsRequest) Validate() error {
	return validateQuestions(r.Questions)
}

func validateQuestions(qs []questions.Question) error {
	if err := questions.Validate(qs); err != nil {
		return &ErrorResponse{Code: "invalid_questions", Message: err.Error()}
	}
	return nil
}

func (s *Server) createInterview(w http.ResponseWriter, r *http.Request) {
	req := validated[*createInterviewRequest](r)
	iv := &interview.Interview{
		AuthorID:              req.AuthorID,
		Title:                 strings.TrimSpace(req.Title),
		Goal:                  strings.TrimSpace(req.Goal),
		Guidelines:            req.Guidelines,
		AnchorTopics:          req.AnchorTopics,
		Context:               req.Context,
		TimeLimitMinutes:      req.TimeLimitMinutes,
		AgenticMode:           req.AgenticMode,
		Questions:             questions.Normalize(req.Questions),
		CustomSummaryTemplate: req.CustomSummaryTemplate,
	}
	if err := s.store.CreateInterview(r.Context(), iv); err != nil {
		s.internalError(w, err)
		return
	}
	s.logger.Info("interview created", zap.String("interview", iv.ID))
	writeJSON(w, http.StatusCreated, iv)
}

func (s *Server) listInterviews(w http.ResponseWriter, r *http.Request) {
	status := interview.Status(r.URL.Query().Get("status"))
	ivs, err := s.store.ListInterviews(r.Context(), status)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if ivs == nil {
		ivs = []*interview.Interview{}
	}
	writeJSON(w, http.StatusOK, ivs)
}

func (s *Server) getInterview(w http.ResponseWriter, r *http.Request) {
	iv, err := s.store.GetInterview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

// updateQuestions replaces a draft's questions, renumbering their order.
// Published interviews are frozen because sessions read them.
func (s *Server) updateQuestions(w http.ResponseWriter, r *http.Request) {
	req := validated[*updateQuestionsRequest](r)
	id := chi.URLParam(r, "id")

	iv, err := s.store.GetInterview(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if iv.Published() {
		writeError(w, http.StatusConflict, "interview_published", "published interviews cannot be edited; duplicate it instead")
		return
	}

	qs := questions.Normalize(req.Questions)
	if err := s.store.UpdateQuestions(r.Context(), id, qs); err != nil {
		s.storeError(w, err)
		return
	}
	iv.Questions = qs
	writeJSON(w, http.StatusOK, iv)
}

func (s *Server) publishInterview(w http.ResponseWriter, r *http.Request) {
	iv, err := s.store.PublishInterview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.logger.Info("interview published", zap.String("interview", iv.ID))
	writeJSON(w, http.StatusOK, iv)
}

func (s *Server) duplicateInterview(w http.ResponseWriter, r *http.Request) {
	iv, err := s.store.DuplicateInterview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, iv)
}

type generateRequest struct {
	oracle.Brief
}

func (r *generateRequest) Validate() error {
	if strings.TrimSpace(r.Goal) == "" {
		return &ErrorResponse{Code: "goal_required", Message: "goal is required"}
	}
	if r.TimeLimitMinutes < 0 {
		return &ErrorResponse{Code: "invalid_time_limit", Message: "time_limit_minutes must not be negative"}
	}
	return nil
}

func (s *Server) generateQuestions(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		writeError(w, http.StatusServiceUnavailable, "generation_disabled", "no language model is configured")
		return
	}
	req := validated[*generateRequest](r)

	ctx, cancel := context.WithTimeout(r.Context(), generateTimeout)
	defer cancel()
	gen, err := s.generator.GenerateQuestions(ctx, req.Brief)
	if err != nil {
		s.logger.Warn("question generation failed", zap.String("reason", oracle.Reason(err)), zap.Error(err))
		writeError(w, http.StatusBadGateway, "generation_failed", "could not generate questions, please try again")
		return
	}
	writeJSON(w, http.StatusOK, gen)
}

type participantResult struct {
	*interview.Participant
	Summary *interview.Summary `json:"summary,omitempty"`
}

type resultsResponse struct {
	Interview    *interview.Interview      `json:"interview"`
	Participants []participantResult       `json:"participants"`
	Analytics    *interview.AnalyticsCache `json:"analytics"`
}

// results lists every participant with their summary when one exists.
// Missing summaries and a missing analytics cache are not errors.
func (s *Server) results(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	iv, err := s.store.GetInterview(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}

	ps, err := s.store.ListParticipants(ctx, iv.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	sums, err := s.store.SummariesFor(ctx, ids)
	if err != nil {
		s.internalError(w, err)
		return
	}
	byParticipant := make(map[string]*interview.Summary, len(sums))
	for _, sum := range sums {
		byParticipant[sum.ParticipantID] = sum
	}

	resp := resultsResponse{Interview: iv, Participants: make([]participantResult, len(ps))}
	for i, p := range ps {
		resp.Participants[i] = participantResult{Participant: p, Summary: byParticipant[p.ID]}
	}

	cache, err := s.store.AnalyticsFor(ctx, iv.ID)
	switch {
	case err == nil:
		resp.Analytics = cache
	case !errors.Is(err, store.ErrNotFound):
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type participantDetailResponse struct {
	Participant *interview.Participant `json:"participant"`
	Messages    []interview.Message    `json:"messages"`
	Summary     *interview.Summary     `json:"summary,omitempty"`
}

func (s *Server) participantDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.store.GetParticipant(ctx, chi.URLParam(r, "pid"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	if p.InterviewID != chi.URLParam(r, "id") {
		writeError(w, http.StatusNotFound, "not_found", "not found")
		return
	}

	tr, err := s.store.GetOrCreateTranscript(ctx, p.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	resp := participantDetailResponse{Participant: p, Messages: tr.Messages}
	if resp.Messages == nil {
		resp.Messages = []interview.Message{}
	}

	sum, err := s.store.SummaryFor(ctx, p.ID)
	switch {
	case err == nil:
		resp.Summary = sum
	case !errors.Is(err, store.ErrNotFound):
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) refreshAnalytics(w http.ResponseWriter, r *http.Request) {
	if s.analytics == nil {
		writeError(w, http.StatusServiceUnavailable, "analytics_disabled", "analytics are not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetInterview(r.Context(), id); err != nil {
		s.storeError(w, err)
		return
	}
	cache, err := s.analytics.Refresh(r.Context(), id)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analytics": cache})
}
