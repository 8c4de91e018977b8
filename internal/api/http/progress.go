package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-ead/internal/assessment"
	authmw "github.com/mind-engage/mindengage-ead/internal/auth/middleware"
	"github.com/mind-engage/mindengage-ead/internal/rbac"
)

// GET /enrollments/{enrollmentID}/progress
// Learners only see their own enrollments; progress:view-all reads any.
func ListProgressHandler(svc *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		list, err := svc.ListProgress(ctx, authmw.SubjectFromContext(ctx), rbac.Can(ctx, rbac.PermProgressAll),
			chi.URLParam(r, "enrollmentID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// GET /enrollments/{enrollmentID}/modules/{moduleID}/progress
func GetProgressHandler(svc *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, err := svc.Progress(ctx, authmw.SubjectFromContext(ctx), rbac.Can(ctx, rbac.PermProgressAll),
			chi.URLParam(r, "enrollmentID"), chi.URLParam(r, "moduleID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, p)
	}
}
