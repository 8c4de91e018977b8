package exam

import (
	"context"
	"slices"
	"sync"
)

type memoryBank struct {
	mu        sync.RWMutex
	questions map[string]Question
	exams     map[string]Definition // by module id
	usage     UsageChecker
}

// NewInMemoryBank returns a Bank kept in process memory. usage may be nil,
// in which case content is never considered in use.
func NewInMemoryBank(usage UsageChecker) Bank {
	return &memoryBank{
		questions: map[string]Question{},
		exams:     map[string]Definition{},
		usage:     usage,
	}
}

func (m *memoryBank) PutQuestion(ctx context.Context, q Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, exists := m.questions[q.ID]
	if exists && prev.Same(q) {
		return nil
	}
	if exists && m.usage != nil {
		used, err := m.usage.QuestionInUse(ctx, q.ID)
		if err != nil {
			return err
		}
		if used {
			return ErrQuestionInUse
		}
	}
	m.questions[q.ID] = q
	return nil
}

func (m *memoryBank) PutExam(ctx context.Context, d Definition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	prev, exists := m.exams[d.ModuleID]
	m.mu.Unlock()
	if exists && m.usage != nil && !slices.Equal(prev.QuestionIDs, d.QuestionIDs) {
		used, err := m.usage.ExamInUse(ctx, prev.ID)
		if err != nil {
			return err
		}
		if used {
			return ErrExamInUse
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for mod, e := range m.exams {
		if e.ID == d.ID && mod != d.ModuleID {
			delete(m.exams, mod)
		}
	}
	d.QuestionIDs = append([]string(nil), d.QuestionIDs...)
	m.exams[d.ModuleID] = d
	return nil
}

func (m *memoryBank) ExamForModule(_ context.Context, moduleID string) (Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.exams[moduleID]
	if !ok {
		return Definition{}, ErrNoExam
	}
	d.QuestionIDs = append([]string(nil), d.QuestionIDs...)
	return d, nil
}

func (m *memoryBank) Questions(_ context.Context, ids []string) ([]Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Question, 0, len(ids))
	for _, id := range ids {
		q, ok := m.questions[id]
		if !ok {
			return nil, ErrQuestionNotFound
		}
		out = append(out, q)
	}
	return out, nil
}
