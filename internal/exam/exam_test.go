package exam_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-ead/internal/exam"
	"github.com/mind-engage/mindengage-ead/internal/validate"
)

func TestQuestionJSONKeepsKeyShape(t *testing.T) {
	in := `{"id":"q1","prompt":"Pick the gospels","kind":"multi_select",
		"options":["Mateus","Atos","Marcos","Romanos"],"correct_answer":[2,0]}`
	var q exam.Question
	require.NoError(t, json.Unmarshal([]byte(in), &q))
	assert.Equal(t, exam.SetKey{Indices: []int{2, 0}}, q.Correct)
	require.NoError(t, q.Validate())

	pub, err := json.Marshal(q.Public())
	require.NoError(t, err)
	assert.NotContains(t, string(pub), "correct_answer")
	assert.NotNil(t, q.Correct, "Public must not clear the original")
}

func TestQuestionJSONRejectsWrongKeyShape(t *testing.T) {
	var q exam.Question
	err := json.Unmarshal([]byte(`{"id":"q1","prompt":"p","kind":"true_false","correct_answer":1}`), &q)
	assert.ErrorIs(t, err, exam.ErrAnswerShape)
}

func TestQuestionValidate(t *testing.T) {
	cases := []struct {
		name  string
		q     exam.Question
		field string
	}{
		{"missing key", exam.Question{ID: "q", Prompt: "p", Kind: exam.KindSingleChoice, Options: []string{"a", "b"}}, "correct_answer"},
		{"index out of range", exam.Question{ID: "q", Prompt: "p", Kind: exam.KindSingleChoice, Options: []string{"a", "b"}, Correct: exam.ChoiceKey{Index: 2}}, "correct_answer"},
		{"one option", exam.Question{ID: "q", Prompt: "p", Kind: exam.KindSingleChoice, Options: []string{"a"}, Correct: exam.ChoiceKey{}}, "options"},
		{"kind mismatch", exam.Question{ID: "q", Prompt: "p", Kind: exam.KindMultiSelect, Options: []string{"a", "b"}, Correct: exam.ChoiceKey{}}, "correct_answer"},
		{"empty set", exam.Question{ID: "q", Prompt: "p", Kind: exam.KindMultiSelect, Options: []string{"a", "b"}, Correct: exam.SetKey{}}, "correct_answer"},
		{"unknown kind", exam.Question{ID: "q", Prompt: "p", Kind: "essay", Correct: exam.BoolKey{}}, "kind"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.q.Validate()
			var verr *validate.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			fields := make([]string, 0, len(verr.Fields))
			for _, f := range verr.Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tc.field)
		})
	}

	tf := exam.Question{ID: "q", Prompt: "p", Kind: exam.KindTrueFalse, Correct: exam.BoolKey{Value: true}}
	assert.NoError(t, tf.Validate())
	assert.Equal(t, 2, tf.OptionCount())
}

func TestDefinitionValidate(t *testing.T) {
	d := exam.Definition{ID: "e1", ModuleID: "m1", CourseID: "c1", QuestionIDs: []string{"q1", "q1"},
		TimeLimitMinutes: 0, PassingScore: 7, WeightPerQuestion: 1}
	err := d.Validate()
	var verr *validate.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := map[string]bool{}
	for _, f := range verr.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["question_ids"])
	assert.True(t, fields["time_limit_minutes"])

	d.QuestionIDs = []string{"q1", "q2"}
	d.TimeLimitMinutes = 30
	require.NoError(t, d.Validate())
	assert.Equal(t, 2.0, d.MaxScore())
}

func TestParseResponse(t *testing.T) {
	r, err := exam.ParseResponse(exam.KindSingleChoice, json.RawMessage(`3`))
	require.NoError(t, err)
	assert.Equal(t, exam.Index(3), r)

	r, err = exam.ParseResponse(exam.KindMultiSelect, json.RawMessage(`[1,2]`))
	require.NoError(t, err)
	assert.Equal(t, exam.Indices{1, 2}, r)

	r, err = exam.ParseResponse(exam.KindTrueFalse, json.RawMessage(`false`))
	require.NoError(t, err)
	assert.Equal(t, exam.Bool(false), r)

	r, err = exam.ParseResponse(exam.KindTrueFalse, json.RawMessage(`1`))
	require.NoError(t, err)
	assert.Equal(t, exam.Index(1), r)

	for _, bad := range []struct {
		k   exam.Kind
		raw string
	}{
		{exam.KindSingleChoice, `"a"`},
		{exam.KindSingleChoice, `null`},
		{exam.KindSingleChoice, `[1]`},
		{exam.KindMultiSelect, `1`},
		{exam.KindTrueFalse, `"yes"`},
	} {
		_, err := exam.ParseResponse(bad.k, json.RawMessage(bad.raw))
		assert.ErrorIs(t, err, exam.ErrAnswerShape, "%s %s", bad.k, bad.raw)
	}

	assert.JSONEq(t, `[0,2]`, string(exam.EncodeResponse(exam.Indices{0, 2})))
	assert.JSONEq(t, `true`, string(exam.EncodeResponse(exam.Bool(true))))
}

type fakeUsage struct{ questions, exams map[string]bool }

func (f fakeUsage) QuestionInUse(_ context.Context, id string) (bool, error) { return f.questions[id], nil }
func (f fakeUsage) ExamInUse(_ context.Context, id string) (bool, error)     { return f.exams[id], nil }

func seedBank(t *testing.T, usage exam.UsageChecker) exam.Bank {
	t.Helper()
	ctx := context.Background()
	bank := exam.NewInMemoryBank(usage)
	for _, q := range []exam.Question{
		{ID: "q1", Prompt: "1", Kind: exam.KindSingleChoice, Options: []string{"a", "b"}, Correct: exam.ChoiceKey{Index: 1}},
		{ID: "q2", Prompt: "2", Kind: exam.KindTrueFalse, Correct: exam.BoolKey{Value: true}},
	} {
		require.NoError(t, bank.PutQuestion(ctx, q))
	}
	require.NoError(t, bank.PutExam(ctx, exam.Definition{ID: "e1", ModuleID: "m1", CourseID: "c1",
		QuestionIDs: []string{"q2", "q1"}, TimeLimitMinutes: 10, PassingScore: 1, WeightPerQuestion: 1}))
	return bank
}

func TestMemoryBank(t *testing.T) {
	ctx := context.Background()
	bank := seedBank(t, nil)

	d, err := bank.ExamForModule(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "e1", d.ID)

	qs, err := bank.Questions(ctx, d.QuestionIDs)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "q2", qs[0].ID)

	_, err = bank.ExamForModule(ctx, "m2")
	assert.ErrorIs(t, err, exam.ErrNoExam)
	_, err = bank.Questions(ctx, []string{"nope"})
	assert.ErrorIs(t, err, exam.ErrQuestionNotFound)
}

func TestMemoryBankFreezesUsedContent(t *testing.T) {
	ctx := context.Background()
	usage := fakeUsage{questions: map[string]bool{}, exams: map[string]bool{}}
	bank := seedBank(t, usage)
	usage.questions["q1"] = true
	usage.exams["e1"] = true

	err := bank.PutQuestion(ctx, exam.Question{ID: "q1", Prompt: "edited", Kind: exam.KindSingleChoice,
		Options: []string{"a", "b"}, Correct: exam.ChoiceKey{Index: 0}})
	assert.ErrorIs(t, err, exam.ErrQuestionInUse)

	// rewriting identical content is accepted
	assert.NoError(t, bank.PutQuestion(ctx, exam.Question{ID: "q1", Prompt: "1", Kind: exam.KindSingleChoice,
		Options: []string{"a", "b"}, Correct: exam.ChoiceKey{Index: 1}}))
	assert.NoError(t, bank.PutQuestion(ctx, exam.Question{ID: "q2", Prompt: "2", Kind: exam.KindTrueFalse,
		Correct: exam.BoolKey{Value: true}}))

	d, err := bank.ExamForModule(ctx, "m1")
	require.NoError(t, err)
	d.QuestionIDs = []string{"q1"}
	assert.ErrorIs(t, bank.PutExam(ctx, d), exam.ErrExamInUse)

	// metadata changes are still allowed
	d.QuestionIDs = []string{"q2", "q1"}
	d.Title = "Módulo 1"
	assert.NoError(t, bank.PutExam(ctx, d))
}

func TestQuestionSame(t *testing.T) {
	q := exam.Question{ID: "q", Prompt: "p", Kind: exam.KindMultiSelect, Options: []string{"a", "b", "c"},
		Correct: exam.SetKey{Indices: []int{0, 2}}}
	assert.True(t, q.Same(q))

	edited := q
	edited.Correct = exam.SetKey{Indices: []int{0, 1}}
	assert.False(t, q.Same(edited))

	edited = q
	edited.Options = []string{"a", "b", "d"}
	assert.False(t, q.Same(edited))

	tf := exam.Question{ID: "t", Prompt: "p", Kind: exam.KindTrueFalse, Correct: exam.BoolKey{Value: true}}
	assert.True(t, tf.Same(exam.Question{ID: "t", Prompt: "p", Kind: exam.KindTrueFalse, Options: []string{},
		Correct: exam.BoolKey{Value: true}}))
	assert.False(t, tf.Same(exam.Question{ID: "t", Prompt: "p", Kind: exam.KindTrueFalse,
		Correct: exam.BoolKey{Value: false}}))
}
