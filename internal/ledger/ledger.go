package ledger

import (
	"encoding/json"
	"time"

	"github.com/mind-engage/mindengage-ead/internal/grading"
)

// Attempt is one submitted exam attempt. Records are append-only.
type Attempt struct {
	ID             string                     `json:"id"`
	SubmissionID   string                     `json:"submission_id"`
	ExamID         string                     `json:"exam_id"`
	ModuleID       string                     `json:"module_id"`
	CourseID       string                     `json:"course_id"`
	InstallationID string                     `json:"installation_id"`
	EnrollmentID   string                     `json:"enrollment_id"`
	StudentID      string                     `json:"student_id"`
	AttemptNumber  int                        `json:"attempt_number"`
	Score          float64                    `json:"score"`
	MaxScore       float64                    `json:"max_score"`
	Approved       bool                       `json:"approved"`
	TimedOut       bool                       `json:"timed_out"`
	Answers        map[string]json.RawMessage `json:"answers"`
	Results        []grading.Outcome          `json:"results"`
	CreatedAt      time.Time                  `json:"created_at"`
}

type ListOpts struct {
	EnrollmentID   string
	ModuleID       string
	StudentID      string
	CourseID       string
	InstallationID string
	Limit          int
	Offset         int
}

// Normalize clamps paging to sane bounds.
func (o ListOpts) Normalize() ListOpts {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > 500 {
		o.Limit = 500
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// Matches reports whether a passes the filters of o.
func (o ListOpts) Matches(a Attempt) bool {
	return (o.EnrollmentID == "" || o.EnrollmentID == a.EnrollmentID) &&
		(o.ModuleID == "" || o.ModuleID == a.ModuleID) &&
		(o.StudentID == "" || o.StudentID == a.StudentID) &&
		(o.CourseID == "" || o.CourseID == a.CourseID) &&
		(o.InstallationID == "" || o.InstallationID == a.InstallationID)
}

// Stats aggregates attempts for reporting.
type Stats struct {
	Attempts     int     `json:"attempts"`
	Approved     int     `json:"approved"`
	Failed       int     `json:"failed"`
	AverageScore float64 `json:"average_score"`
}

type GroupStats struct {
	Key string `json:"key"`
	Stats
}

type Summary struct {
	Total          Stats        `json:"total"`
	ByCourse       []GroupStats `json:"by_course"`
	ByInstallation []GroupStats `json:"by_installation"`
}
