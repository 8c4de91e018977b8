package grading

import (
	"errors"
	"fmt"

	"github.com/mind-engage/mindengage-ead/internal/exam"
)

var ErrMissingQuestion = errors.New("exam references a question that was not loaded")

// Outcome is the grading of a single question.
type Outcome struct {
	QuestionID string  `json:"question_id"`
	Answered   bool    `json:"answered"`
	Correct    bool    `json:"correct"`
	Points     float64 `json:"points"`
	Note       string  `json:"note,omitempty"`
}

// Verdict is the result of scoring a whole submission.
type Verdict struct {
	Score    float64   `json:"score"`
	MaxScore float64   `json:"max_score"`
	Correct  int       `json:"correct"`
	Approved bool      `json:"approved"`
	Results  []Outcome `json:"results"`
}

// Strategy decides whether a response fully answers one kind of question.
type Strategy interface {
	Correct(q exam.Question, r exam.Response) (bool, error)
}

// Engine routes each question to the Strategy registered for its kind.
// It holds no mutable state; Score is safe for concurrent use.
type Engine struct {
	strategies map[exam.Kind]Strategy
}

type Option func(*Engine)

// WithStrategy overrides or adds the strategy used for kind k.
func WithStrategy(k exam.Kind, s Strategy) Option {
	return func(e *Engine) { e.strategies[k] = s }
}

// NewEngine installs the built-in strategies.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		strategies: map[exam.Kind]Strategy{
			exam.KindSingleChoice: singleChoiceStrategy{},
			exam.KindMultiSelect:  multiSelectStrategy{},
			exam.KindTrueFalse:    trueFalseStrategy{},
		},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Score grades answers against def. Every fully correct question is worth
// def.WeightPerQuestion; anything else is worth nothing. Answers to
// questions outside the exam are ignored.
func (e *Engine) Score(def exam.Definition, questions []exam.Question, answers map[string]exam.Response) (Verdict, error) {
	byID := make(map[string]exam.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	v := Verdict{
		MaxScore: def.MaxScore(),
		Results:  make([]Outcome, 0, len(def.QuestionIDs)),
	}
	for _, id := range def.QuestionIDs {
		q, ok := byID[id]
		if !ok {
			return Verdict{}, fmt.Errorf("%w: %s", ErrMissingQuestion, id)
		}
		out := Outcome{QuestionID: id}
		r, answered := answers[id]
		out.Answered = answered && r != nil
		if out.Answered {
			s, ok := e.strategies[q.Kind]
			if !ok {
				out.Note = "no strategy available"
			} else if correct, err := s.Correct(q, r); err != nil {
				out.Note = err.Error()
			} else if correct {
				out.Correct = true
				out.Points = def.WeightPerQuestion
				v.Correct++
			}
		}
		v.Results = append(v.Results, out)
	}
	// multiply rather than accumulate so equal inputs give bit-identical scores
	v.Score = float64(v.Correct) * def.WeightPerQuestion
	v.Approved = v.Score >= def.PassingScore
	return v, nil
}

// --- Strategies ---

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Correct(q exam.Question, r exam.Response) (bool, error) {
	key, ok := q.Correct.(exam.ChoiceKey)
	if !ok {
		return false, errBadKey
	}
	idx, ok := r.(exam.Index)
	if !ok {
		return false, exam.ErrAnswerShape
	}
	return int(idx) == key.Index, nil
}

type multiSelectStrategy struct{}

func (multiSelectStrategy) Correct(q exam.Question, r exam.Response) (bool, error) {
	key, ok := q.Correct.(exam.SetKey)
	if !ok {
		return false, errBadKey
	}
	var picked []int
	switch t := r.(type) {
	case exam.Indices:
		picked = t
	case exam.Index:
		picked = []int{int(t)}
	default:
		return false, exam.ErrAnswerShape
	}
	return setEqual(toSet(key.Indices), toSet(picked)), nil
}

type trueFalseStrategy struct{}

func (trueFalseStrategy) Correct(q exam.Question, r exam.Response) (bool, error) {
	key, ok := q.Correct.(exam.BoolKey)
	if !ok {
		return false, errBadKey
	}
	switch t := r.(type) {
	case exam.Bool:
		return bool(t) == key.Value, nil
	case exam.Index:
		// option 0 is "true", option 1 is "false"
		switch t {
		case 0:
			return key.Value, nil
		case 1:
			return !key.Value, nil
		}
	}
	return false, exam.ErrAnswerShape
}

var errBadKey = errors.New("answer key does not fit question kind")

// helpers

func toSet(arr []int) map[int]struct{} {
	m := make(map[int]struct{}, len(arr))
	for _, i := range arr {
		m[i] = struct{}{}
	}
	return m
}

func setEqual(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
