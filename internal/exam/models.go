package exam

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Kind tags a question with the shape of its answer.
type Kind string

const (
	KindSingleChoice Kind = "single_choice"
	KindMultiSelect  Kind = "multi_select"
	KindTrueFalse    Kind = "true_false"
)

// Question is a question bank entry. Correct is never sent to learners.
type Question struct {
	ID      string   `json:"id" validate:"required"`
	Prompt  string   `json:"prompt" validate:"required"`
	Kind    Kind     `json:"kind" validate:"required,oneof=single_choice multi_select true_false"`
	Options []string `json:"options,omitempty"`
	Correct Key      `json:"correct_answer,omitempty"`
}

// Definition binds an ordered list of questions to a course module.
type Definition struct {
	ID                string   `json:"id" validate:"required"`
	ModuleID          string   `json:"module_id" validate:"required"`
	CourseID          string   `json:"course_id" validate:"required"`
	Title             string   `json:"title,omitempty"`
	QuestionIDs       []string `json:"question_ids" validate:"required,min=1,unique,dive,required"`
	TimeLimitMinutes  int      `json:"time_limit_minutes" validate:"gte=1"`
	PassingScore      float64  `json:"passing_score" validate:"gte=0"`
	WeightPerQuestion float64  `json:"weight_per_question" validate:"gt=0"`
	// MaxAttempts of 0 falls back to the installation's max_reprobations.
	MaxAttempts int   `json:"max_attempts" validate:"gte=0"`
	CreatedAt   int64 `json:"created_at,omitempty"`
}

// MaxScore is the score of an exam answered entirely correctly.
func (d Definition) MaxScore() float64 {
	return float64(len(d.QuestionIDs)) * d.WeightPerQuestion
}

// Public returns a copy of q without its answer key.
func (q Question) Public() Question {
	q.Correct = nil
	if q.Options != nil {
		q.Options = append([]string(nil), q.Options...)
	}
	return q
}

// OptionCount is the number of selectable options, including the implicit
// true/false pair.
func (q Question) OptionCount() int {
	if q.Kind == KindTrueFalse && len(q.Options) == 0 {
		return 2
	}
	return len(q.Options)
}

// Same reports whether q and o carry identical content. Rewriting a
// question with the same content is a no-op even after it has been graded.
func (q Question) Same(o Question) bool {
	return q.ID == o.ID && q.Prompt == o.Prompt && q.Kind == o.Kind &&
		slices.Equal(q.Options, o.Options) && sameKey(q.Correct, o.Correct)
}

func sameKey(a, b Key) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case SetKey:
		y, ok := b.(SetKey)
		return ok && slices.Equal(x.Indices, y.Indices)
	default:
		return a == b
	}
}

type questionJSON struct {
	ID      string          `json:"id"`
	Prompt  string          `json:"prompt"`
	Kind    Kind            `json:"kind"`
	Options []string        `json:"options,omitempty"`
	Correct json.RawMessage `json:"correct_answer,omitempty"`
}

func (q Question) MarshalJSON() ([]byte, error) {
	out := questionJSON{ID: q.ID, Prompt: q.Prompt, Kind: q.Kind, Options: q.Options}
	if q.Correct != nil {
		raw, err := json.Marshal(q.Correct.value())
		if err != nil {
			return nil, err
		}
		out.Correct = raw
	}
	return json.Marshal(out)
}

func (q *Question) UnmarshalJSON(b []byte) error {
	var in questionJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	q.ID, q.Prompt, q.Kind, q.Options = in.ID, in.Prompt, in.Kind, in.Options
	q.Correct = nil
	if len(in.Correct) == 0 || string(in.Correct) == "null" {
		return nil
	}
	k, err := ParseKey(in.Kind, in.Correct)
	if err != nil {
		return fmt.Errorf("question %s: %w", in.ID, err)
	}
	q.Correct = k
	return nil
}
