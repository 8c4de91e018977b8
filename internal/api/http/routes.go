package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-ead/internal/assessment"
	"github.com/mind-engage/mindengage-ead/internal/rbac"
)

// Mount registers the authenticated assessment routes. r must already carry
// the JWT middleware.
func Mount(r chi.Router, svc *assessment.Service) {
	r.With(rbac.Require(rbac.PermSessionStart)).Post("/modules/{moduleID}/sessions", StartSessionHandler(svc))

	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.With(rbac.Require(rbac.PermSessionView)).Get("/", GetSessionHandler(svc))
		r.With(rbac.Require(rbac.PermSessionAnswer)).Put("/answers/{questionID}", SaveAnswerHandler(svc))
		r.With(rbac.Require(rbac.PermSessionAnswer)).Delete("/answers/{questionID}", ClearAnswerHandler(svc))
		r.With(rbac.Require(rbac.PermSessionSubmit)).Post("/submit", SubmitSessionHandler(svc))
	})

	r.Route("/enrollments/{enrollmentID}", func(r chi.Router) {
		r.Use(rbac.RequireAny(rbac.PermProgressOwn, rbac.PermProgressAll))
		r.Get("/progress", ListProgressHandler(svc))
		r.Get("/modules/{moduleID}/progress", GetProgressHandler(svc))
	})

	r.With(rbac.RequireAny(rbac.PermAttemptOwn, rbac.PermAttemptAll)).Get("/attempts", ListAttemptsHandler(svc))
	r.With(rbac.Require(rbac.PermReportView)).Get("/reports/attempts", AttemptSummaryHandler(svc))
}

// MountHealth registers the unauthenticated probes.
func MountHealth(r chi.Router, svc *assessment.Service) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := svc.Ping(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, errorBody{Error: "store unavailable"})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
}
