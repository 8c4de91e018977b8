package assessment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-ead/internal/gate"
	"github.com/mind-engage/mindengage-ead/internal/ledger"
)

type pairKey struct{ enrollment, module string }

// MemoryStore keeps everything in process memory. It backs the offline
// mode and the tests.
type MemoryStore struct {
	mu           sync.RWMutex
	enrollments  map[string]Enrollment
	progress     map[pairKey]gate.Record
	attempts     []ledger.Attempt
	bySubmission map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		enrollments:  map[string]Enrollment{},
		progress:     map[pairKey]gate.Record{},
		bySubmission: map[string]int{},
	}
}

var _ Store = (*MemoryStore)(nil)

// PutEnrollment seeds an enrollment.
func (m *MemoryStore) PutEnrollment(_ context.Context, e Enrollment) error {
	if e.InstallationID == "" {
		e.InstallationID = "default"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollments[e.ID] = e
	return nil
}

func (m *MemoryStore) Enrollment(_ context.Context, id string) (Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.enrollments[id]
	if !ok {
		return Enrollment{}, ErrNotEnrolled
	}
	return e, nil
}

func (m *MemoryStore) Progress(_ context.Context, enrollmentID, moduleID string) (gate.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.progressLocked(enrollmentID, moduleID), nil
}

func (m *MemoryStore) progressLocked(enrollmentID, moduleID string) gate.Record {
	rec, ok := m.progress[pairKey{enrollmentID, moduleID}]
	if !ok {
		return gate.New(enrollmentID, moduleID)
	}
	return rec
}

func (m *MemoryStore) ListProgress(_ context.Context, enrollmentID string) ([]gate.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []gate.Record
	for k, rec := range m.progress {
		if k.enrollment == enrollmentID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out, nil
}

func (m *MemoryStore) CountAttempts(_ context.Context, enrollmentID, moduleID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countLocked(enrollmentID, moduleID), nil
}

func (m *MemoryStore) countLocked(enrollmentID, moduleID string) int {
	n := 0
	for _, a := range m.attempts {
		if a.EnrollmentID == enrollmentID && a.ModuleID == moduleID {
			n++
		}
	}
	return n
}

func (m *MemoryStore) RecordAttempt(_ context.Context, sub Submission, now time.Time) (ledger.Attempt, gate.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := sub.Attempt
	if i, ok := m.bySubmission[a.SubmissionID]; ok {
		prev := m.attempts[i]
		return prev, m.progressLocked(prev.EnrollmentID, prev.ModuleID), nil
	}
	rec := m.progressLocked(a.EnrollmentID, a.ModuleID)
	if err := rec.CanEnter(sub.Limit, now); err != nil {
		return ledger.Attempt{}, gate.Record{}, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.AttemptNumber = m.countLocked(a.EnrollmentID, a.ModuleID) + 1
	a.CreatedAt = now
	rec = rec.Apply(a.Score, a.Approved, sub.Limit, sub.Block, now)

	m.attempts = append(m.attempts, a)
	m.bySubmission[a.SubmissionID] = len(m.attempts) - 1
	m.progress[pairKey{a.EnrollmentID, a.ModuleID}] = rec
	return a, rec, nil
}

func (m *MemoryStore) ListAttempts(_ context.Context, opts ledger.ListOpts) ([]ledger.Attempt, error) {
	opts = opts.Normalize()
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []ledger.Attempt
	for _, a := range m.attempts {
		if opts.Matches(a) {
			matched = append(matched, a)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if opts.Offset >= len(matched) {
		return []ledger.Attempt{}, nil
	}
	matched = matched[opts.Offset:]
	if len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

func (m *MemoryStore) Summary(_ context.Context, opts ledger.ListOpts) (ledger.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []ledger.Attempt
	for _, a := range m.attempts {
		if opts.Matches(a) {
			matched = append(matched, a)
		}
	}
	return ledger.Summarize(matched), nil
}

// QuestionInUse reports whether any recorded attempt graded the question.
func (m *MemoryStore) QuestionInUse(_ context.Context, questionID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.attempts {
		for _, r := range a.Results {
			if r.QuestionID == questionID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *MemoryStore) ExamInUse(_ context.Context, examID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.attempts {
		if a.ExamID == examID {
			return true, nil
		}
	}
	return false, nil
}
