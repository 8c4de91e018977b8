package http

import (
	"net/http"
	"strings"

	"github.com/mind-engage/mindengage-ead/internal/assessment"
	authmw "github.com/mind-engage/mindengage-ead/internal/auth/middleware"
	"github.com/mind-engage/mindengage-ead/internal/ledger"
	"github.com/mind-engage/mindengage-ead/internal/rbac"
)

func listOpts(r *http.Request) ledger.ListOpts {
	q := r.URL.Query()
	return ledger.ListOpts{
		EnrollmentID:   strings.TrimSpace(q.Get("enrollment_id")),
		ModuleID:       strings.TrimSpace(q.Get("module_id")),
		StudentID:      strings.TrimSpace(q.Get("student_id")),
		CourseID:       strings.TrimSpace(q.Get("course_id")),
		InstallationID: strings.TrimSpace(q.Get("installation_id")),
		Limit:          parseIntDefault(q.Get("limit"), 50),
		Offset:         parseIntDefault(q.Get("offset"), 0),
	}
}

// GET /attempts?enrollment_id=...&module_id=...&student_id=...&course_id=...&installation_id=...&limit=50&offset=0
// RBAC:
// - attempt:view-all can use any filter
// - attempt:view-own only sees the caller's attempts (student_id is forced to subject)
func ListAttemptsHandler(svc *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := listOpts(r)
		if !rbac.Can(r.Context(), rbac.PermAttemptAll) {
			opts.StudentID = authmw.SubjectFromContext(r.Context())
		}
		list, err := svc.ListAttempts(r.Context(), opts)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// GET /reports/attempts?course_id=...&installation_id=...&module_id=...
// Pass/fail counts and average score, total and grouped by course and installation.
func AttemptSummaryHandler(svc *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := svc.Summary(r.Context(), listOpts(r))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, sum)
	}
}
