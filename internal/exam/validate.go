package exam

import (
	"errors"
	"fmt"

	"github.com/mind-engage/mindengage-ead/internal/validate"
)

// Validate checks a question bank entry, including that its answer key has
// the shape its kind requires and only references existing options.
func (q Question) Validate() error {
	if err := validate.Struct(q); err != nil {
		return err
	}
	var flds []validate.FieldError
	n := q.OptionCount()
	if q.Kind != KindTrueFalse && n < 2 {
		flds = append(flds, validate.FieldError{Field: "options", Error: "at least two options are required"})
	}
	if q.Kind == KindTrueFalse && n != 2 {
		flds = append(flds, validate.FieldError{Field: "options", Error: "true/false questions have exactly two options"})
	}
	switch k := q.Correct.(type) {
	case nil:
		flds = append(flds, validate.FieldError{Field: "correct_answer", Error: "correct_answer is a required field"})
	case ChoiceKey:
		if q.Kind != KindSingleChoice {
			flds = append(flds, kindMismatch(q.Kind))
		} else if k.Index < 0 || k.Index >= n {
			flds = append(flds, validate.FieldError{Field: "correct_answer", Error: fmt.Sprintf("index %d out of range", k.Index)})
		}
	case SetKey:
		if q.Kind != KindMultiSelect {
			flds = append(flds, kindMismatch(q.Kind))
			break
		}
		if len(k.Indices) == 0 {
			flds = append(flds, validate.FieldError{Field: "correct_answer", Error: "at least one correct option is required"})
		}
		for _, i := range k.Indices {
			if i < 0 || i >= n {
				flds = append(flds, validate.FieldError{Field: "correct_answer", Error: fmt.Sprintf("index %d out of range", i)})
				break
			}
		}
	case BoolKey:
		if q.Kind != KindTrueFalse {
			flds = append(flds, kindMismatch(q.Kind))
		}
	}
	if len(flds) > 0 {
		return validate.NewValidationError(errors.New("invalid question"), flds...)
	}
	return nil
}

func kindMismatch(k Kind) validate.FieldError {
	return validate.FieldError{Field: "correct_answer", Error: fmt.Sprintf("answer key does not fit a %s question", k)}
}

func (d Definition) Validate() error {
	return validate.Struct(d)
}
