package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mind-engage/mindengage-ead/internal/exam"
	"github.com/mind-engage/mindengage-ead/internal/ledger"
)

// State is the lifecycle position of an exam session:
// idle -> running -> expired | submitted, and expired -> submitted.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateExpired   State = "expired"
	StateSubmitted State = "submitted"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrNotStarted      = errors.New("session has not started")
	ErrExpired         = errors.New("time is up: answers can no longer change")
	ErrClosed          = errors.New("session already submitted")
	ErrSubmitting      = errors.New("submission in progress")
	ErrUnknownQuestion = errors.New("question is not part of this exam")
)

// Params identifies who is sitting which exam.
type Params struct {
	ID             string
	SubmissionID   string
	EnrollmentID   string
	StudentID      string
	CourseID       string
	InstallationID string
	Exam           exam.Definition
	Questions      []exam.Question // with answer keys, never exposed
	AttemptNumber  int             // provisional; fixed at submission
	MaxAttempts    int
}

// SubmitFunc persists a submission. On error the session keeps its state
// and answers so the learner can retry.
type SubmitFunc func(answers map[string]exam.Response, timedOut bool) (ledger.Attempt, error)

type Session struct {
	Params

	submitMu sync.Mutex // one submission at a time

	mu         sync.Mutex
	state      State
	submitting bool
	remaining  int // whole seconds
	startedAt  time.Time
	deadline   time.Time
	finishedAt time.Time
	answers    map[string]exam.Response
	attempt    *ledger.Attempt
	stopTimer  context.CancelFunc
	questions  map[string]exam.Question
}

func New(p Params) *Session {
	qs := make(map[string]exam.Question, len(p.Questions))
	for _, q := range p.Questions {
		qs[q.ID] = q
	}
	return &Session{
		Params:    p,
		state:     StateIdle,
		answers:   map[string]exam.Response{},
		questions: qs,
	}
}

// Start moves an idle session to running with the full time limit.
func (s *Session) Start(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return fmt.Errorf("start: session is %s", s.state)
	}
	limit := time.Duration(s.Exam.TimeLimitMinutes) * time.Minute
	s.state = StateRunning
	s.remaining = int(limit / time.Second)
	s.startedAt = now
	s.deadline = now.Add(limit)
	return nil
}

// Tick consumes one second of the remaining time and returns the resulting state.
func (s *Session) Tick() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return s.state
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining == 0 {
		s.state = StateExpired
	}
	return s.state
}

// Run drives Tick from ticks until the session leaves the running state or
// ctx is done. onExpire, if set, is called once when time runs out.
func (s *Session) Run(ctx context.Context, ticks <-chan time.Time, onExpire func(*Session)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			switch s.Tick() {
			case StateRunning:
				continue
			case StateExpired:
				if onExpire != nil {
					onExpire(s)
				}
			}
			return
		}
	}
}

// AttachTimer records the cancel func of the goroutine running Run.
func (s *Session) AttachTimer(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimer = cancel
}

// StopTimer cancels the countdown goroutine, if any.
func (s *Session) StopTimer() {
	s.mu.Lock()
	cancel := s.stopTimer
	s.stopTimer = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// SetAnswer replaces the learner's answer to one question.
func (s *Session) SetAnswer(questionID string, raw json.RawMessage) error {
	q, ok := s.questions[questionID]
	if !ok {
		return ErrUnknownQuestion
	}
	r, err := exam.ParseResponse(q.Kind, raw)
	if err != nil {
		return err
	}
	if err := checkRange(q, r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writableLocked(); err != nil {
		return err
	}
	s.answers[questionID] = r
	return nil
}

// ClearAnswer removes the learner's answer to one question.
func (s *Session) ClearAnswer(questionID string) error {
	if _, ok := s.questions[questionID]; !ok {
		return ErrUnknownQuestion
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writableLocked(); err != nil {
		return err
	}
	delete(s.answers, questionID)
	return nil
}

func (s *Session) writableLocked() error {
	switch {
	case s.submitting:
		return ErrSubmitting
	case s.state == StateIdle:
		return ErrNotStarted
	case s.state == StateExpired:
		return ErrExpired
	case s.state == StateSubmitted:
		return ErrClosed
	}
	return nil
}

// Submit hands the current answers to fn exactly once. Later calls, including
// concurrent ones, return the attempt recorded by the first successful call.
func (s *Session) Submit(fn SubmitFunc) (ledger.Attempt, error) {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	s.mu.Lock()
	switch s.state {
	case StateSubmitted:
		a := *s.attempt
		s.mu.Unlock()
		return a, nil
	case StateIdle:
		s.mu.Unlock()
		return ledger.Attempt{}, ErrNotStarted
	}
	answers := make(map[string]exam.Response, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	timedOut := s.state == StateExpired
	s.submitting = true
	s.mu.Unlock()

	a, err := fn(answers, timedOut)

	s.mu.Lock()
	s.submitting = false
	if err != nil {
		s.mu.Unlock()
		return ledger.Attempt{}, err
	}
	s.state = StateSubmitted
	s.attempt = &a
	s.finishedAt = a.CreatedAt
	s.mu.Unlock()

	s.StopTimer()
	return a, nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Deadline is the wall-clock end of the time limit.
func (s *Session) Deadline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline
}

// FinishedAt is when the session was submitted, zero otherwise.
func (s *Session) FinishedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedAt
}

func checkRange(q exam.Question, r exam.Response) error {
	n := q.OptionCount()
	bad := func(i int) bool { return i < 0 || i >= n }
	switch t := r.(type) {
	case exam.Index:
		if bad(int(t)) {
			return fmt.Errorf("%w: option %d does not exist", exam.ErrAnswerShape, t)
		}
	case exam.Indices:
		for _, i := range t {
			if bad(i) {
				return fmt.Errorf("%w: option %d does not exist", exam.ErrAnswerShape, i)
			}
		}
	}
	return nil
}
