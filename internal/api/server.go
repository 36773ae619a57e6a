// Package api exposes interviews and participant sessions over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/logging"
	"github.com/abhisek/parley/internal/metrics"
	"github.com/abhisek/parley/internal/oracle"
	"github.com/abhisek/parley/internal/questions"
	"github.com/abhisek/parley/internal/session"
)

// Store is the persistence the API uses.
type Store interface {
	session.Gateway

	CreateInterview(ctx context.Context, iv *interview.Interview) error
	GetInterview(ctx context.Context, id string) (*interview.Interview, error)
	ListInterviews(ctx context.Context, status interview.Status) ([]*interview.Interview, error)
	UpdateQuestions(ctx context.Context, id string, qs []questions.Question) error
	PublishInterview(ctx context.Context, id string) (*interview.Interview, error)
	DuplicateInterview(ctx context.Context, id string) (*interview.Interview, error)

	JoinInterview(ctx context.Context, interviewID, email string) (*interview.Participant, bool, error)
	GetParticipant(ctx context.Context, id string) (*interview.Participant, error)
	ListParticipants(ctx context.Context, interviewID string, statuses ...interview.ParticipantStatus) ([]*interview.Participant, error)

	SummaryFor(ctx context.Context, participantID string) (*interview.Summary, error)
	SummariesFor(ctx context.Context, participantIDs []string) ([]*interview.Summary, error)
	AnalyticsFor(ctx context.Context, interviewID string) (*interview.AnalyticsCache, error)
}

// QuestionGenerator drafts question sets.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, brief oracle.Brief) (*oracle.Generated, error)
}

// AnalyticsRefresher rebuilds an interview's analytics cache.
type AnalyticsRefresher interface {
	Refresh(ctx context.Context, interviewID string) (*interview.AnalyticsCache, error)
}

// Deps configures a Server. Generator and Analytics may be nil, which
// disables their endpoints.
type Deps struct {
	Store     Store
	Generator QuestionGenerator
	Analytics AnalyticsRefresher

	// Session carries the oracle, summarizer, clock and config handed to
	// every controller.
	Session session.Deps

	AllowedOrigins []string
	Logger         *zap.Logger
}

// Server serves the HTTP API.
type Server struct {
	store     Store
	generator QuestionGenerator
	analytics AnalyticsRefresher
	sessions  *Registry
	origins   []string
	logger    *zap.Logger
}

// New creates a Server.
func New(d Deps) *Server {
	logger := logging.OrNop(d.Logger)
	base := d.Session
	if base.Logger == nil {
		base.Logger = logger
	}
	return &Server{
		store:     d.Store,
		generator: d.Generator,
		analytics: d.Analytics,
		sessions:  NewRegistry(d.Store, base),
		origins:   d.AllowedOrigins,
		logger:    logger,
	}
}

// Sessions returns the live session registry.
func (s *Server) Sessions() *Registry {
	return s.sessions
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/i/{token}", func(r chi.Router) {
		r.With(validateRequest[*joinRequest]()).Post("/join", s.join)
		r.Route("/s/{magic}", func(r chi.Router) {
			r.Get("/", s.openSession)
			r.With(validateRequest[*answerRequest]()).Post("/answers", s.submitAnswer)
			r.Post("/checkpoint/continue", s.continueCheckpoint)
			r.Post("/checkpoint/edit", s.editCheckpoint)
			r.With(validateRequest[*exitRequest]()).Post("/exit", s.exitSession)
		})
	})

	r.Route("/api/interviews", func(r chi.Router) {
		r.Get("/", s.listInterviews)
		r.With(validateRequest[*createInterviewRequest]()).Post("/", s.createInterview)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getInterview)
			r.With(validateRequest[*updateQuestionsRequest]()).Put("/questions", s.updateQuestions)
			r.Post("/publish", s.publishInterview)
			r.Post("/duplicate", s.duplicateInterview)
			r.Get("/results", s.results)
			r.Get("/participants/{pid}", s.participantDetail)
			r.Post("/analytics/refresh", s.refreshAnalytics)
		})
	})
	r.With(validateRequest[*generateRequest]()).Post("/api/questions/generate", s.generateQuestions)

	return r
}

// detach keeps a session operation running when the client goes away so
// a turn is never cut off between the answer and the next question.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// generateTimeout bounds question generation beyond the oracle's own
// per-call timeout.
const generateTimeout = 2 * time.Minute
