package grading_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-ead/internal/exam"
	"github.com/mind-engage/mindengage-ead/internal/grading"
)

func fixture() (exam.Definition, []exam.Question) {
	qs := []exam.Question{
		{ID: "sc", Kind: exam.KindSingleChoice, Options: []string{"a", "b", "c"}, Correct: exam.ChoiceKey{Index: 2}},
		{ID: "ms", Kind: exam.KindMultiSelect, Options: []string{"a", "b", "c"}, Correct: exam.SetKey{Indices: []int{2, 1}}},
		{ID: "tf", Kind: exam.KindTrueFalse, Correct: exam.BoolKey{Value: false}},
	}
	def := exam.Definition{ID: "e", ModuleID: "m", CourseID: "c", QuestionIDs: []string{"sc", "ms", "tf"},
		TimeLimitMinutes: 10, PassingScore: 2, WeightPerQuestion: 1.5}
	return def, qs
}

func TestScoreAllCorrect(t *testing.T) {
	def, qs := fixture()
	v, err := grading.NewEngine().Score(def, qs, map[string]exam.Response{
		"sc": exam.Index(2),
		"ms": exam.Indices{1, 2},
		"tf": exam.Bool(false),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, v.Correct)
	assert.Equal(t, 4.5, v.Score)
	assert.Equal(t, 4.5, v.MaxScore)
	assert.True(t, v.Approved)
	require.Len(t, v.Results, 3)
	for _, r := range v.Results {
		assert.True(t, r.Correct, r.QuestionID)
		assert.Equal(t, 1.5, r.Points)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	def, qs := fixture()
	answers := map[string]exam.Response{"sc": exam.Index(0), "ms": exam.Indices{2, 1}, "tf": exam.Index(1)}
	e := grading.NewEngine()
	first, err := e.Score(def, qs, answers)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := e.Score(def, qs, answers)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMultiSelectIsOrderIndependent(t *testing.T) {
	def, qs := fixture()
	e := grading.NewEngine()
	for _, picked := range []exam.Indices{{1, 2}, {2, 1}, {2, 1, 1}} {
		v, err := e.Score(def, qs, map[string]exam.Response{"ms": picked})
		require.NoError(t, err)
		assert.True(t, v.Results[1].Correct, "%v", picked)
	}
}

func TestPartialMultiSelectScoresZero(t *testing.T) {
	def, qs := fixture()
	e := grading.NewEngine()
	for _, picked := range []exam.Indices{{1}, {0, 1, 2}, {}} {
		v, err := e.Score(def, qs, map[string]exam.Response{"ms": picked})
		require.NoError(t, err)
		assert.False(t, v.Results[1].Correct, "%v", picked)
		assert.Zero(t, v.Results[1].Points)
	}
}

func TestTrueFalseAcceptsIndex(t *testing.T) {
	def, qs := fixture()
	v, err := grading.NewEngine().Score(def, qs, map[string]exam.Response{"tf": exam.Index(1)})
	require.NoError(t, err)
	assert.True(t, v.Results[2].Correct)

	v, err = grading.NewEngine().Score(def, qs, map[string]exam.Response{"tf": exam.Index(0)})
	require.NoError(t, err)
	assert.False(t, v.Results[2].Correct)
}

func TestUnansweredAndMismatchedScoreZero(t *testing.T) {
	def, qs := fixture()
	v, err := grading.NewEngine().Score(def, qs, map[string]exam.Response{
		"sc":    exam.Indices{2},
		"extra": exam.Index(0),
	})
	require.NoError(t, err)
	assert.Zero(t, v.Score)
	assert.False(t, v.Approved)
	assert.True(t, v.Results[0].Answered)
	assert.NotEmpty(t, v.Results[0].Note)
	assert.False(t, v.Results[1].Answered)
	assert.Len(t, v.Results, 3)
}

func TestMissingQuestion(t *testing.T) {
	def, qs := fixture()
	_, err := grading.NewEngine().Score(def, qs[:2], nil)
	assert.ErrorIs(t, err, grading.ErrMissingQuestion)
}

func TestApprovalThresholdIsInclusive(t *testing.T) {
	qs := make([]exam.Question, 10)
	ids := make([]string, 10)
	answers := map[string]exam.Response{}
	for i := range qs {
		ids[i] = fmt.Sprintf("q%d", i)
		qs[i] = exam.Question{ID: ids[i], Kind: exam.KindSingleChoice, Options: []string{"a", "b"}, Correct: exam.ChoiceKey{Index: 0}}
		if i < 7 {
			answers[ids[i]] = exam.Index(0)
		} else {
			answers[ids[i]] = exam.Index(1)
		}
	}
	def := exam.Definition{QuestionIDs: ids, PassingScore: 7, WeightPerQuestion: 1}
	v, err := grading.NewEngine().Score(def, qs, answers)
	require.NoError(t, err)
	assert.Equal(t, 7.0, v.Score)
	assert.True(t, v.Approved)
}

type alwaysRight struct{}

func (alwaysRight) Correct(exam.Question, exam.Response) (bool, error) { return true, nil }

func TestWithStrategyOverride(t *testing.T) {
	def, qs := fixture()
	e := grading.NewEngine(grading.WithStrategy(exam.KindSingleChoice, alwaysRight{}))
	v, err := e.Score(def, qs, map[string]exam.Response{"sc": exam.Index(0)})
	require.NoError(t, err)
	assert.True(t, v.Results[0].Correct)
}
