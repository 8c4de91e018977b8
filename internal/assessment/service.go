// Package assessment drives timed exam attempts end to end: it starts
// sessions behind the progression gate, collects answers, scores
// submissions and records them in the ledger together with the gate
// transition.
package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-ead/internal/exam"
	"github.com/mind-engage/mindengage-ead/internal/gate"
	"github.com/mind-engage/mindengage-ead/internal/grading"
	"github.com/mind-engage/mindengage-ead/internal/ledger"
	"github.com/mind-engage/mindengage-ead/internal/session"
)

// Policies resolves the attempt policy of an installation.
type Policies interface {
	For(installationID string) gate.Policy
}

// StaticPolicy applies one policy to every installation.
type StaticPolicy gate.Policy

func (p StaticPolicy) For(string) gate.Policy { return gate.Policy(p) }

type Options struct {
	// AutoSubmitOnTimeout submits the current answers when time runs out.
	// When false the expired session waits for an explicit submit.
	AutoSubmitOnTimeout bool
	// Retention is how long finished or expired sessions stay readable
	// before Sweep evicts them.
	Retention    time.Duration
	TickInterval time.Duration
	Now          func() time.Time
	Logger       *slog.Logger
}

// Progress is a gate record together with its derived state.
type Progress struct {
	gate.Record
	State gate.State `json:"state"`
}

func progressOf(r gate.Record) Progress { return Progress{Record: r, State: r.State()} }

type Service struct {
	store    Store
	catalog  exam.Catalog
	grader   *grading.Engine
	policies Policies
	opts     Options
	log      *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session.Session
}

func New(store Store, catalog exam.Catalog, grader *grading.Engine, policies Policies, opts Options) *Service {
	if grader == nil {
		grader = grading.NewEngine()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.Retention <= 0 {
		opts.Retention = 2 * time.Hour
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:    store,
		catalog:  catalog,
		grader:   grader,
		policies: policies,
		opts:     opts,
		log:      log,
		sessions: map[string]*session.Session{},
	}
}

// Start opens a timed session on the exam guarding moduleID.
func (s *Service) Start(ctx context.Context, studentID, enrollmentID, moduleID string) (*session.Session, error) {
	enr, err := s.ownEnrollment(ctx, studentID, enrollmentID)
	if err != nil {
		return nil, err
	}

	def, err := s.catalog.ExamForModule(ctx, moduleID)
	if errors.Is(err, exam.ErrNoExam) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	if def.CourseID != enr.CourseID {
		return nil, ErrWrongCourse
	}
	questions, err := s.catalog.Questions(ctx, def.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	policy := s.policies.For(enr.InstallationID)
	limit := policy.Limit(def.MaxAttempts)

	rec, err := s.store.Progress(ctx, enr.ID, moduleID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	if err := rec.CanEnter(limit, s.opts.Now()); err != nil {
		return nil, err
	}
	prior, err := s.store.CountAttempts(ctx, enr.ID, moduleID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	sess := session.New(session.Params{
		ID:             uuid.NewString(),
		SubmissionID:   uuid.NewString(),
		EnrollmentID:   enr.ID,
		StudentID:      enr.StudentID,
		CourseID:       enr.CourseID,
		InstallationID: enr.InstallationID,
		Exam:           def,
		Questions:      questions,
		AttemptNumber:  prior + 1,
		MaxAttempts:    limit,
	})
	if err := sess.Start(s.opts.Now()); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.runTimer(sess)
	s.log.Info("session started",
		"session", sess.ID, "enrollment", enr.ID, "module", moduleID,
		"attempt", prior+1, "max_attempts", limit)
	return sess, nil
}

func (s *Service) runTimer(sess *session.Session) {
	ctx, cancel := context.WithCancel(context.Background())
	sess.AttachTimer(cancel)
	ticker := time.NewTicker(s.opts.TickInterval)
	go func() {
		defer ticker.Stop()
		sess.Run(ctx, ticker.C, s.onExpire)
	}()
}

func (s *Service) onExpire(sess *session.Session) {
	s.log.Info("session expired", "session", sess.ID, "auto_submit", s.opts.AutoSubmitOnTimeout)
	if !s.opts.AutoSubmitOnTimeout {
		return
	}
	if _, _, err := s.submit(context.Background(), sess); err != nil {
		s.log.Error("auto submit failed", "session", sess.ID, "err", err)
	}
}

// Session returns a session owned by studentID.
func (s *Service) Session(_ context.Context, studentID, sessionID string) (*session.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, session.ErrNotFound
	}
	if sess.StudentID != studentID {
		return nil, ErrForbidden
	}
	return sess, nil
}

func (s *Service) Answer(ctx context.Context, studentID, sessionID, questionID string, raw json.RawMessage) error {
	sess, err := s.Session(ctx, studentID, sessionID)
	if err != nil {
		return err
	}
	return sess.SetAnswer(questionID, raw)
}

func (s *Service) ClearAnswer(ctx context.Context, studentID, sessionID, questionID string) error {
	sess, err := s.Session(ctx, studentID, sessionID)
	if err != nil {
		return err
	}
	return sess.ClearAnswer(questionID)
}

// Submit scores the session and records the attempt. Repeated calls return
// the first recorded attempt. The write is not cancelled with ctx.
func (s *Service) Submit(ctx context.Context, studentID, sessionID string) (ledger.Attempt, Progress, error) {
	sess, err := s.Session(ctx, studentID, sessionID)
	if err != nil {
		return ledger.Attempt{}, Progress{}, err
	}
	return s.submit(context.WithoutCancel(ctx), sess)
}

func (s *Service) submit(ctx context.Context, sess *session.Session) (ledger.Attempt, Progress, error) {
	var rec gate.Record
	a, err := sess.Submit(func(answers map[string]exam.Response, timedOut bool) (ledger.Attempt, error) {
		verdict, err := s.grader.Score(sess.Exam, sess.Questions, answers)
		if err != nil {
			return ledger.Attempt{}, err
		}
		policy := s.policies.For(sess.InstallationID)
		encoded := make(map[string]json.RawMessage, len(answers))
		for qid, r := range answers {
			encoded[qid] = exam.EncodeResponse(r)
		}
		sub := Submission{
			Attempt: ledger.Attempt{
				ID:             uuid.NewString(),
				SubmissionID:   sess.SubmissionID,
				ExamID:         sess.Exam.ID,
				ModuleID:       sess.Exam.ModuleID,
				CourseID:       sess.CourseID,
				InstallationID: sess.InstallationID,
				EnrollmentID:   sess.EnrollmentID,
				StudentID:      sess.StudentID,
				Score:          verdict.Score,
				MaxScore:       verdict.MaxScore,
				Approved:       verdict.Approved,
				TimedOut:       timedOut,
				Answers:        encoded,
				Results:        verdict.Results,
			},
			Limit: policy.Limit(sess.Exam.MaxAttempts),
			Block: policy.BlockDuration,
		}
		var stored ledger.Attempt
		stored, rec, err = s.store.RecordAttempt(ctx, sub, s.opts.Now())
		return stored, err
	})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotStarted), gate.IsDenied(err), errors.Is(err, ErrAttemptConflict):
		default:
			err = fmt.Errorf("%w: %w", ErrSubmit, err)
		}
		s.log.Warn("submission failed", "session", sess.ID, "err", err)
		return ledger.Attempt{}, Progress{}, err
	}
	if rec.EnrollmentID == "" {
		// replayed submit: the verdict was recorded by an earlier call
		rec, err = s.store.Progress(ctx, a.EnrollmentID, a.ModuleID)
		if err != nil {
			return a, Progress{}, fmt.Errorf("%w: %w", ErrLoad, err)
		}
	}
	s.log.Info("attempt recorded",
		"session", sess.ID, "attempt", a.AttemptNumber, "score", a.Score,
		"approved", a.Approved, "timed_out", a.TimedOut, "gate", rec.State())
	return a, progressOf(rec), nil
}

// Progress returns the gate state of one module for an enrollment. Callers
// with allEnrollments may read any enrollment.
func (s *Service) Progress(ctx context.Context, studentID string, allEnrollments bool, enrollmentID, moduleID string) (Progress, error) {
	if err := s.canRead(ctx, studentID, allEnrollments, enrollmentID); err != nil {
		return Progress{}, err
	}
	rec, err := s.store.Progress(ctx, enrollmentID, moduleID)
	if err != nil {
		return Progress{}, err
	}
	return progressOf(rec), nil
}

// ListProgress returns every module the enrollment has reached.
func (s *Service) ListProgress(ctx context.Context, studentID string, allEnrollments bool, enrollmentID string) ([]Progress, error) {
	if err := s.canRead(ctx, studentID, allEnrollments, enrollmentID); err != nil {
		return nil, err
	}
	recs, err := s.store.ListProgress(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	out := make([]Progress, 0, len(recs))
	for _, r := range recs {
		out = append(out, progressOf(r))
	}
	return out, nil
}

func (s *Service) canRead(ctx context.Context, studentID string, all bool, enrollmentID string) error {
	if all {
		_, err := s.store.Enrollment(ctx, enrollmentID)
		return err
	}
	_, err := s.ownEnrollment(ctx, studentID, enrollmentID)
	return err
}

func (s *Service) ListAttempts(ctx context.Context, opts ledger.ListOpts) ([]ledger.Attempt, error) {
	return s.store.ListAttempts(ctx, opts)
}

func (s *Service) Summary(ctx context.Context, opts ledger.ListOpts) (ledger.Summary, error) {
	return s.store.Summary(ctx, opts)
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Sweep evicts sessions that finished or expired more than Retention ago,
// and running sessions whose deadline passed that long ago. It returns the
// number of evicted sessions.
func (s *Service) Sweep(now time.Time) int {
	cutoff := now.Add(-s.opts.Retention)

	s.mu.Lock()
	var evicted []*session.Session
	for id, sess := range s.sessions {
		end := sess.FinishedAt()
		if end.IsZero() {
			end = sess.Deadline()
		}
		if end.Before(cutoff) {
			delete(s.sessions, id)
			evicted = append(evicted, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range evicted {
		sess.StopTimer()
	}
	if len(evicted) > 0 {
		s.log.Info("sessions evicted", "count", len(evicted))
	}
	return len(evicted)
}

func (s *Service) ownEnrollment(ctx context.Context, studentID, enrollmentID string) (Enrollment, error) {
	enr, err := s.store.Enrollment(ctx, enrollmentID)
	if err != nil {
		return Enrollment{}, err
	}
	if enr.StudentID != studentID {
		return Enrollment{}, ErrNotEnrolled
	}
	return enr, nil
}
