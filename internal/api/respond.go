package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"

	"go.uber.org/zap"

	"github.com/abhisek/parley/internal/session"
	"github.com/abhisek/parley/internal/store"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorResponse) Error() string { return e.Message }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg})
}

// validator is implemented by request bodies.
type validator interface {
	Validate() error
}

type ctxKey struct{}

// validateRequest decodes the JSON body into a fresh T, validates it and
// stores it in the request context for validated.
func validateRequest[T validator]() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req T
			if t := reflect.TypeOf(req); t.Kind() == reflect.Pointer {
				req = reflect.New(t.Elem()).Interface().(T)
			}

			if err := json.NewDecoder(r.Body).Decode(req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON in request body")
				return
			}
			if err := req.Validate(); err != nil {
				var er *ErrorResponse
				if errors.As(err, &er) {
					writeJSON(w, http.StatusBadRequest, er)
				} else {
					writeError(w, http.StatusBadRequest, "validation_error", err.Error())
				}
				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validated[T any](r *http.Request) T {
	return r.Context().Value(ctxKey{}).(T)
}

// sessionError maps controller and lookup errors to HTTP replies. Unknown
// tokens and drafts answer 404 join_required so clients send the
// participant back to registration.
func (s *Server) sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, session.ErrNotPublished):
		writeError(w, http.StatusNotFound, "join_required", "join the interview to start a session")
	case errors.Is(err, session.ErrEmptyAnswer):
		writeError(w, http.StatusBadRequest, "empty_answer", err.Error())
	case errors.Is(err, session.ErrTurnInProgress):
		writeError(w, http.StatusConflict, "turn_in_progress", err.Error())
	case errors.Is(err, session.ErrNotStarted):
		writeError(w, http.StatusConflict, "not_started", err.Error())
	case errors.Is(err, session.ErrSessionEnded):
		writeError(w, http.StatusConflict, "session_ended", err.Error())
	case errors.Is(err, session.ErrAtCheckpoint):
		writeError(w, http.StatusConflict, "at_checkpoint", err.Error())
	case errors.Is(err, session.ErrNotAtCheckpoint):
		writeError(w, http.StatusConflict, "not_at_checkpoint", err.Error())
	case errors.Is(err, session.ErrPersistence):
		s.logger.Error("session persistence failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "persistence_failed", "your answer could not be saved, please try again")
	default:
		s.internalError(w, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal", "internal server error")
}

// storeError maps researcher lookups; anything but not-found is a 500.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "not found")
		return
	}
	s.internalError(w, err)
}
