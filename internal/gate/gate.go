// Package gate holds the per (enrollment, module) progression state machine
// that decides whether a learner may start an exam attempt.
package gate

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusUnlocked Status = "unlocked"
	StatusLocked   Status = "locked"
)

// State is the derived position of a Record in the state machine.
type State string

const (
	StateNotAttempted    State = "unlocked-not-attempted"
	StateLockedTemporary State = "locked-temporary"
	StateLockedPermanent State = "locked-permanent"
	StateApproved        State = "unlocked-approved"
)

var (
	ErrLockedPermanent = errors.New("attempts exhausted: module is permanently locked")
	ErrAlreadyApproved = errors.New("module already approved")
)

// LockedError refuses entry until a temporary lock expires.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("module locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// IsDenied reports whether err is one of the entry guard refusals.
func IsDenied(err error) bool {
	var le *LockedError
	return errors.As(err, &le) || errors.Is(err, ErrLockedPermanent) || errors.Is(err, ErrAlreadyApproved)
}

// Policy is the installation-level attempt policy.
type Policy struct {
	// MaxAttempts is the fallback when an exam does not set its own limit.
	MaxAttempts   int
	BlockDuration time.Duration
}

// Limit returns the effective attempt limit for an exam's own setting.
func (p Policy) Limit(examMax int) int {
	if examMax > 0 {
		return examMax
	}
	return p.MaxAttempts
}

// Record is the single mutable progress row of an (enrollment, module) pair.
type Record struct {
	EnrollmentID string     `json:"enrollment_id"`
	ModuleID     string     `json:"module_id"`
	Status       Status     `json:"status"`
	Approved     bool       `json:"approved"`
	Attempts     int        `json:"attempts"`
	Score        float64    `json:"score"`
	LockUntil    *time.Time `json:"lock_until,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// New is the implicit record of a module the learner reaches for the first time.
func New(enrollmentID, moduleID string) Record {
	return Record{EnrollmentID: enrollmentID, ModuleID: moduleID, Status: StatusUnlocked}
}

func (r Record) State() State {
	switch {
	case r.Approved:
		return StateApproved
	case r.Status == StatusLocked && r.LockUntil == nil:
		return StateLockedPermanent
	case r.Status == StatusLocked:
		return StateLockedTemporary
	default:
		return StateNotAttempted
	}
}

// CanEnter is the entry guard. limit is the effective max attempts; zero or
// less means unlimited.
func (r Record) CanEnter(limit int, now time.Time) error {
	switch r.State() {
	case StateApproved:
		return ErrAlreadyApproved
	case StateLockedPermanent:
		return ErrLockedPermanent
	case StateLockedTemporary:
		if now.Before(*r.LockUntil) {
			return &LockedError{Until: *r.LockUntil}
		}
	}
	if limit > 0 && r.Attempts >= limit {
		return ErrLockedPermanent
	}
	return nil
}

// Apply records one more attempt with the given verdict. An approved record
// never leaves the approved state.
func (r Record) Apply(score float64, approved bool, limit int, block time.Duration, now time.Time) Record {
	r.Attempts++
	r.Score = score
	r.UpdatedAt = now
	switch {
	case r.Approved || approved:
		r.Approved = true
		r.Status = StatusUnlocked
		r.LockUntil = nil
	case limit > 0 && r.Attempts >= limit:
		r.Status = StatusLocked
		r.LockUntil = nil
	default:
		until := now.Add(block)
		r.Status = StatusLocked
		r.LockUntil = &until
	}
	return r
}
