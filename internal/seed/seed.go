// Package seed loads questions, exams and enrollments from a YAML file into
// the stores, for offline installs and demos.
package seed

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mind-engage/mindengage-ead/internal/assessment"
	"github.com/mind-engage/mindengage-ead/internal/exam"
)

type File struct {
	Questions   []exam.Question         `json:"questions"`
	Exams       []exam.Definition       `json:"exams"`
	Enrollments []assessment.Enrollment `json:"enrollments"`
}

// EnrollmentWriter is implemented by both assessment stores.
type EnrollmentWriter interface {
	PutEnrollment(ctx context.Context, e assessment.Enrollment) error
}

// Parse decodes YAML (or JSON, which is YAML) seed data. Documents go
// through JSON so question answer keys use their JSON decoding.
func Parse(b []byte) (File, error) {
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return File{}, errors.Wrap(err, "seed: yaml")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return File{}, errors.Wrap(err, "seed: convert")
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return File{}, errors.Wrap(err, "seed: decode")
	}
	return f, nil
}

func LoadFile(ctx context.Context, path string, bank exam.Bank, enr EnrollmentWriter) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, errors.Wrap(err, "seed")
	}
	f, err := Parse(b)
	if err != nil {
		return File{}, err
	}
	return f, Apply(ctx, f, bank, enr)
}

// Apply writes questions before exams so exam references resolve.
func Apply(ctx context.Context, f File, bank exam.Bank, enr EnrollmentWriter) error {
	for _, q := range f.Questions {
		if err := bank.PutQuestion(ctx, q); err != nil {
			return errors.Wrapf(err, "seed question %s", q.ID)
		}
	}
	for _, d := range f.Exams {
		if err := bank.PutExam(ctx, d); err != nil {
			return errors.Wrapf(err, "seed exam %s", d.ID)
		}
	}
	for _, e := range f.Enrollments {
		if err := enr.PutEnrollment(ctx, e); err != nil {
			return errors.Wrapf(err, "seed enrollment %s", e.ID)
		}
	}
	return nil
}
