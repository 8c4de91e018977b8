package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-ead/internal/assessment"
	authmw "github.com/mind-engage/mindengage-ead/internal/auth/middleware"
)

// POST /modules/{moduleID}/sessions  { "enrollment_id": "..." }
func StartSessionHandler(svc *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			EnrollmentID string `json:"enrollment_id" validate:"required"`
		}
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		sess, err := svc.Start(r.Context(), authmw.SubjectFromContext(r.Context()), req.EnrollmentID, chi.URLParam(r, "moduleID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, sess.View())
	}
}

func GetSessionHandler(svc *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := svc.Session(r.Context(), authmw.SubjectFromContext(r.Context()), chi.URLParam(r, "sessionID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, sess.View())
	}
}

// PUT /sessions/{sessionID}/answers/{questionID}  { "answer": 2 | [0,3] | true }
func SaveAnswerHandler(svc *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Answer json.RawMessage `json:"answer" validate:"required"`
		}
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		err := svc.Answer(r.Context(), authmw.SubjectFromContext(r.Context()),
			chi.URLParam(r, "sessionID"), chi.URLParam(r, "questionID"), req.Answer)
		if err != nil {
			respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DELETE /sessions/{sessionID}/answers/{questionID}
func ClearAnswerHandler(svc *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := svc.ClearAnswer(r.Context(), authmw.SubjectFromContext(r.Context()),
			chi.URLParam(r, "sessionID"), chi.URLParam(r, "questionID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /sessions/{sessionID}/submit
// Safe to repeat: later calls return the verdict of the first one.
func SubmitSessionHandler(svc *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, p, err := svc.Submit(r.Context(), authmw.SubjectFromContext(r.Context()), chi.URLParam(r, "sessionID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"attempt": a, "progress": p})
	}
}
