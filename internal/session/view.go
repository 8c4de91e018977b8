package session

import (
	"encoding/json"
	"time"

	"github.com/mind-engage/mindengage-ead/internal/exam"
	"github.com/mind-engage/mindengage-ead/internal/ledger"
)

// View is what the learner sees of a session.
type View struct {
	ID               string                     `json:"id"`
	EnrollmentID     string                     `json:"enrollment_id"`
	ModuleID         string                     `json:"module_id"`
	ExamID           string                     `json:"exam_id"`
	Title            string                     `json:"title,omitempty"`
	AttemptNumber    int                        `json:"attempt_number"`
	MaxAttempts      int                        `json:"max_attempts"`
	State            State                      `json:"state"`
	RemainingSeconds int                        `json:"remaining_seconds"`
	StartedAt        time.Time                  `json:"started_at"`
	Deadline         time.Time                  `json:"deadline"`
	Questions        []exam.Question            `json:"questions"`
	Answers          map[string]json.RawMessage `json:"answers"`
	Attempt          *ledger.Attempt            `json:"attempt,omitempty"`
}

func (s *Session) View() View {
	qs := make([]exam.Question, 0, len(s.Questions))
	for _, q := range s.Questions {
		qs = append(qs, q.Public())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:               s.ID,
		EnrollmentID:     s.EnrollmentID,
		ModuleID:         s.Exam.ModuleID,
		ExamID:           s.Exam.ID,
		Title:            s.Exam.Title,
		AttemptNumber:    s.AttemptNumber,
		MaxAttempts:      s.MaxAttempts,
		State:            s.state,
		RemainingSeconds: s.remaining,
		StartedAt:        s.startedAt,
		Deadline:         s.deadline,
		Questions:        qs,
		Answers:          make(map[string]json.RawMessage, len(s.answers)),
	}
	for k, r := range s.answers {
		v.Answers[k] = exam.EncodeResponse(r)
	}
	if s.attempt != nil {
		a := *s.attempt
		v.Attempt = &a
		v.AttemptNumber = a.AttemptNumber
	}
	return v
}
