package exam

import (
	"context"
	"errors"
)

var (
	ErrNoExam           = errors.New("module has no exam")
	ErrQuestionNotFound = errors.New("question not found")
	ErrQuestionInUse    = errors.New("question is referenced by a submitted attempt")
	ErrExamInUse        = errors.New("exam question list is frozen by submitted attempts")
)

// Catalog is the read-only view of authored content the engine consumes.
type Catalog interface {
	// ExamForModule returns ErrNoExam when the module is not guarded by an exam.
	ExamForModule(ctx context.Context, moduleID string) (Definition, error)
	// Questions returns the questions in the order of ids, with answer keys.
	Questions(ctx context.Context, ids []string) ([]Question, error)
}

// Bank adds the writes used by the authoring collaborator and seeding tools.
type Bank interface {
	Catalog
	PutQuestion(ctx context.Context, q Question) error
	PutExam(ctx context.Context, d Definition) error
}

// UsageChecker reports whether a submitted attempt depends on content.
type UsageChecker interface {
	QuestionInUse(ctx context.Context, questionID string) (bool, error)
	ExamInUse(ctx context.Context, examID string) (bool, error)
}
