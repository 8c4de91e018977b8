package assessment_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-ead/internal/assessment"
	"github.com/mind-engage/mindengage-ead/internal/exam"
	"github.com/mind-engage/mindengage-ead/internal/gate"
	"github.com/mind-engage/mindengage-ead/internal/grading"
	"github.com/mind-engage/mindengage-ead/internal/session"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type seedableStore interface {
	assessment.Store
	PutEnrollment(ctx context.Context, e assessment.Enrollment) error
}

// Two modules of course "teologia": "m1" allows 2 attempts in 30 minutes,
// "m-open" falls back to the installation policy and lasts one minute. Both
// exams have ten questions worth one point each and pass at 7.
func seed(t *testing.T, store seedableStore, bank exam.Bank) {
	t.Helper()
	ctx := context.Background()
	ids := make([]string, 10)
	for i := range ids {
		ids[i] = fmt.Sprintf("q%02d", i)
		require.NoError(t, bank.PutQuestion(ctx, exam.Question{
			ID: ids[i], Prompt: "pergunta " + ids[i], Kind: exam.KindSingleChoice,
			Options: []string{"certa", "errada"}, Correct: exam.ChoiceKey{Index: 0},
		}))
	}
	require.NoError(t, bank.PutExam(ctx, exam.Definition{ID: "e1", ModuleID: "m1", CourseID: "teologia",
		Title: "Módulo 1", QuestionIDs: ids, TimeLimitMinutes: 30, PassingScore: 7, WeightPerQuestion: 1, MaxAttempts: 2}))
	require.NoError(t, bank.PutExam(ctx, exam.Definition{ID: "e-open", ModuleID: "m-open", CourseID: "teologia",
		QuestionIDs: ids, TimeLimitMinutes: 1, PassingScore: 7, WeightPerQuestion: 1}))
	require.NoError(t, bank.PutExam(ctx, exam.Definition{ID: "e-other", ModuleID: "m-other", CourseID: "lideranca",
		QuestionIDs: ids[:1], TimeLimitMinutes: 5, PassingScore: 1, WeightPerQuestion: 1}))

	require.NoError(t, store.PutEnrollment(ctx, assessment.Enrollment{ID: "enr-ana", StudentID: "ana", CourseID: "teologia", InstallationID: "norte"}))
	require.NoError(t, store.PutEnrollment(ctx, assessment.Enrollment{ID: "enr-bia", StudentID: "bia", CourseID: "teologia", InstallationID: "sul"}))
}

func newService(store assessment.Store, bank exam.Catalog, c *clock, policy gate.Policy, opts assessment.Options) *assessment.Service {
	opts.Now = c.Now
	if opts.TickInterval == 0 {
		opts.TickInterval = time.Hour
	}
	return assessment.New(store, bank, grading.NewEngine(), assessment.StaticPolicy(policy), opts)
}

// answer gives `correct` right answers and wrong ones for the rest.
func answer(t *testing.T, svc *assessment.Service, sess *session.Session, correct int) {
	t.Helper()
	for i, qid := range sess.Exam.QuestionIDs {
		raw := json.RawMessage(`1`)
		if i < correct {
			raw = json.RawMessage(`0`)
		}
		require.NoError(t, svc.Answer(context.Background(), sess.StudentID, sess.ID, qid, raw))
	}
}
