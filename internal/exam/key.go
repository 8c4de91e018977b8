package exam

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrAnswerShape = errors.New("answer does not match question kind")

// Key is the correct answer of a question: ChoiceKey, SetKey or BoolKey.
type Key interface {
	Kind() Kind
	value() any
}

// ChoiceKey is the index of the single correct option.
type ChoiceKey struct{ Index int }

// SetKey is the set of correct option indices of a multi-select question.
type SetKey struct{ Indices []int }

// BoolKey is the correct value of a true/false question.
type BoolKey struct{ Value bool }

func (ChoiceKey) Kind() Kind { return KindSingleChoice }
func (SetKey) Kind() Kind    { return KindMultiSelect }
func (BoolKey) Kind() Kind   { return KindTrueFalse }

func (k ChoiceKey) value() any { return k.Index }
func (k SetKey) value() any    { return k.Indices }
func (k BoolKey) value() any   { return k.Value }

// Response is a learner's answer to one question: Index, Indices or Bool.
type Response interface {
	response()
}

// Index selects one option (single choice; 0=true, 1=false for true/false).
type Index int

// Indices selects several options (multi-select).
type Indices []int

// Bool answers a true/false question directly.
type Bool bool

func (Index) response()   {}
func (Indices) response() {}
func (Bool) response()    {}

// ParseKey decodes a stored correct answer for a question of kind k.
func ParseKey(k Kind, raw json.RawMessage) (Key, error) {
	switch k {
	case KindSingleChoice:
		var i int
		if err := json.Unmarshal(raw, &i); err != nil {
			return nil, fmt.Errorf("%w: want index", ErrAnswerShape)
		}
		return ChoiceKey{Index: i}, nil
	case KindMultiSelect:
		var ii []int
		if err := json.Unmarshal(raw, &ii); err != nil {
			return nil, fmt.Errorf("%w: want list of indices", ErrAnswerShape)
		}
		return SetKey{Indices: ii}, nil
	case KindTrueFalse:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("%w: want boolean", ErrAnswerShape)
		}
		return BoolKey{Value: b}, nil
	default:
		return nil, fmt.Errorf("unknown question kind %q", k)
	}
}

// ParseResponse decodes a learner's raw answer for a question of kind k.
// True/false questions accept either a boolean or an option index.
func ParseResponse(k Kind, raw json.RawMessage) (Response, error) {
	if t := bytes.TrimSpace(raw); len(t) == 0 || bytes.Equal(t, []byte("null")) {
		return nil, fmt.Errorf("%w: answer is empty", ErrAnswerShape)
	}
	switch k {
	case KindSingleChoice:
		var i int
		if err := json.Unmarshal(raw, &i); err != nil {
			return nil, fmt.Errorf("%w: want index", ErrAnswerShape)
		}
		return Index(i), nil
	case KindMultiSelect:
		var ii []int
		if err := json.Unmarshal(raw, &ii); err != nil {
			return nil, fmt.Errorf("%w: want list of indices", ErrAnswerShape)
		}
		return Indices(ii), nil
	case KindTrueFalse:
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return Bool(b), nil
		}
		var i int
		if err := json.Unmarshal(raw, &i); err != nil {
			return nil, fmt.Errorf("%w: want boolean or index", ErrAnswerShape)
		}
		return Index(i), nil
	default:
		return nil, fmt.Errorf("unknown question kind %q", k)
	}
}

// EncodeResponse is the inverse of ParseResponse, used when answers are
// persisted with an attempt.
func EncodeResponse(r Response) json.RawMessage {
	var v any
	switch t := r.(type) {
	case Index:
		v = int(t)
	case Indices:
		v = []int(t)
	case Bool:
		v = bool(t)
	}
	b, _ := json.Marshal(v)
	return b
}
