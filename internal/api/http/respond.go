package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/mind-engage/mindengage-ead/internal/assessment"
	"github.com/mind-engage/mindengage-ead/internal/exam"
	"github.com/mind-engage/mindengage-ead/internal/gate"
	"github.com/mind-engage/mindengage-ead/internal/session"
	"github.com/mind-engage/mindengage-ead/internal/validate"
)

type errorBody struct {
	Error     string                `json:"error"`
	Fields    []validate.FieldError `json:"fields,omitempty"`
	LockUntil *time.Time            `json:"lock_until,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// respondError maps domain errors onto HTTP statuses. Anything unknown is a
// 500 and its detail stays in the log.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		locked *gate.LockedError
		verr   *validate.ValidationError
	)
	switch {
	case errors.As(err, &locked):
		until := locked.Until
		respondJSON(w, http.StatusLocked, errorBody{Error: err.Error(), LockUntil: &until})
	case errors.Is(err, gate.ErrLockedPermanent),
		errors.Is(err, gate.ErrAlreadyApproved),
		errors.Is(err, exam.ErrNoExam),
		errors.Is(err, assessment.ErrNotEnrolled),
		errors.Is(err, assessment.ErrWrongCourse),
		errors.Is(err, assessment.ErrForbidden):
		respondJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, session.ErrNotFound):
		respondJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Fields: verr.Fields})
	case errors.Is(err, exam.ErrAnswerShape), errors.Is(err, session.ErrUnknownQuestion):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, session.ErrExpired),
		errors.Is(err, session.ErrClosed),
		errors.Is(err, session.ErrNotStarted),
		errors.Is(err, session.ErrSubmitting),
		errors.Is(err, assessment.ErrAttemptConflict):
		respondJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, assessment.ErrSubmit):
		slog.Error("submission failed", "request_id", middleware.GetReqID(r.Context()), "err", err)
		respondJSON(w, http.StatusServiceUnavailable, errorBody{Error: assessment.ErrSubmit.Error()})
	case errors.Is(err, assessment.ErrLoad):
		slog.Error("exam load failed", "request_id", middleware.GetReqID(r.Context()), "err", err)
		respondJSON(w, http.StatusServiceUnavailable, errorBody{Error: assessment.ErrLoad.Error()})
	default:
		slog.Error("request failed", "request_id", middleware.GetReqID(r.Context()), "path", r.URL.Path, "err", err)
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return validate.NewValidationError(errors.New("bad json: " + err.Error()))
	}
	return validate.Struct(v)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
