package assessment

import (
	"context"
	"errors"
	"time"

	"github.com/mind-engage/mindengage-ead/internal/gate"
	"github.com/mind-engage/mindengage-ead/internal/ledger"
)

var (
	ErrNotEnrolled     = errors.New("enrollment not found")
	ErrWrongCourse     = errors.New("module does not belong to the enrolled course")
	ErrForbidden       = errors.New("session belongs to another student")
	ErrLoad            = errors.New("exam could not be loaded")
	ErrSubmit          = errors.New("submission failed, try again")
	ErrAttemptConflict = errors.New("attempt number already taken by another submission; reload and retry")
)

// Enrollment links a student to a course within an installation. It is
// owned by the enrollment collaborator and read-only here.
type Enrollment struct {
	ID             string `json:"id"`
	StudentID      string `json:"student_id"`
	CourseID       string `json:"course_id"`
	InstallationID string `json:"installation_id"`
}

// Submission is one scored attempt waiting to be persisted. AttemptNumber,
// ID and CreatedAt of Attempt are assigned by the store.
type Submission struct {
	Attempt ledger.Attempt
	Limit   int
	Block   time.Duration
}

type Store interface {
	Enrollment(ctx context.Context, id string) (Enrollment, error)

	// Progress returns the gate record of a pair, or gate.New when the
	// learner has not reached the module yet.
	Progress(ctx context.Context, enrollmentID, moduleID string) (gate.Record, error)
	ListProgress(ctx context.Context, enrollmentID string) ([]gate.Record, error)
	CountAttempts(ctx context.Context, enrollmentID, moduleID string) (int, error)

	// RecordAttempt appends the attempt and advances the gate as one unit.
	// A submission id that was already recorded returns the stored attempt
	// unchanged. The entry guard is re-checked against the locked record;
	// a lost race for the attempt number yields ErrAttemptConflict.
	RecordAttempt(ctx context.Context, sub Submission, now time.Time) (ledger.Attempt, gate.Record, error)

	ListAttempts(ctx context.Context, opts ledger.ListOpts) ([]ledger.Attempt, error)
	Summary(ctx context.Context, opts ledger.ListOpts) (ledger.Summary, error)
}
