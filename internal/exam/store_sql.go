package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-ead/internal/db"
)

type SQLStore struct {
	db *db.DB
}

func NewSQLStore(d *db.DB) *SQLStore {
	return &SQLStore{db: d}
}

var _ Bank = (*SQLStore)(nil)
var _ UsageChecker = (*SQLStore)(nil)

// PutQuestion upserts q. Content already graded by an attempt may only be
// rewritten unchanged.
func (s *SQLStore) PutQuestion(ctx context.Context, q Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	key, err := json.Marshal(q.Correct.value())
	if err != nil {
		return err
	}
	return db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		prev, err := scanQuestion(tx.QueryRowContext(ctx,
			`SELECT `+questionCols+` FROM questions WHERE id=$1`+s.db.ForUpdate(), q.ID))
		switch {
		case err == nil:
			if prev.Same(q) {
				return nil
			}
			var used bool
			if err := tx.QueryRowContext(ctx, questionInUseSQL, q.ID).Scan(&used); err != nil {
				return errors.Wrap(err, "check question usage")
			}
			if used {
				return ErrQuestionInUse
			}
		case !errors.Is(err, sql.ErrNoRows):
			return errors.Wrap(err, "load question")
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO questions (`+questionCols+`,updated_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (id) DO UPDATE SET prompt=EXCLUDED.prompt, kind=EXCLUDED.kind,
				options_json=EXCLUDED.options_json, correct_json=EXCLUDED.correct_json, updated_at=EXCLUDED.updated_at`,
			q.ID, q.Prompt, string(q.Kind), string(opts), string(key), time.Now().UnixMilli())
		return errors.Wrap(err, "put question")
	})
}

func (s *SQLStore) PutExam(ctx context.Context, d Definition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		prev, err := questionIDs(ctx, tx, d.ID)
		if err != nil {
			return err
		}
		changed := !slices.Equal(prev, d.QuestionIDs)
		if changed && len(prev) > 0 {
			var used bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM attempts WHERE exam_id=$1)`, d.ID).Scan(&used); err != nil {
				return errors.Wrap(err, "check exam usage")
			}
			if used {
				return ErrExamInUse
			}
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO exams (id,module_id,course_id,title,time_limit_minutes,passing_score,weight_per_question,max_attempts,created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (id) DO UPDATE SET module_id=EXCLUDED.module_id, course_id=EXCLUDED.course_id, title=EXCLUDED.title,
				time_limit_minutes=EXCLUDED.time_limit_minutes, passing_score=EXCLUDED.passing_score,
				weight_per_question=EXCLUDED.weight_per_question, max_attempts=EXCLUDED.max_attempts`,
			d.ID, d.ModuleID, d.CourseID, d.Title, d.TimeLimitMinutes, d.PassingScore, d.WeightPerQuestion, d.MaxAttempts, time.Now().UnixMilli())
		if err != nil {
			return errors.Wrap(err, "put exam")
		}
		if !changed {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM exam_questions WHERE exam_id=$1`, d.ID); err != nil {
			return errors.Wrap(err, "reset exam questions")
		}
		for i, qid := range d.QuestionIDs {
			if _, err := tx.ExecContext(ctx, `INSERT INTO exam_questions (exam_id,position,question_id) VALUES ($1,$2,$3)`, d.ID, i, qid); err != nil {
				return errors.Wrapf(err, "link question %s", qid)
			}
		}
		return nil
	})
}

func (s *SQLStore) ExamForModule(ctx context.Context, moduleID string) (Definition, error) {
	row := s.db.SQL.QueryRowContext(ctx, `SELECT id,module_id,course_id,title,time_limit_minutes,passing_score,weight_per_question,max_attempts,created_at
		FROM exams WHERE module_id=$1`, moduleID)
	var d Definition
	if err := row.Scan(&d.ID, &d.ModuleID, &d.CourseID, &d.Title, &d.TimeLimitMinutes, &d.PassingScore, &d.WeightPerQuestion, &d.MaxAttempts, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Definition{}, ErrNoExam
		}
		return Definition{}, errors.Wrap(err, "load exam")
	}
	ids, err := questionIDs(ctx, s.db.SQL, d.ID)
	if err != nil {
		return Definition{}, err
	}
	d.QuestionIDs = ids
	return d, nil
}

func (s *SQLStore) Questions(ctx context.Context, ids []string) ([]Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := s.db.SQL.QueryContext(ctx,
		`SELECT `+questionCols+` FROM questions WHERE id IN (`+strings.Join(ph, ",")+`)`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "load questions")
	}
	defer rows.Close()

	byID := make(map[string]Question, len(ids))
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		byID[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "load questions")
	}

	out := make([]Question, 0, len(ids))
	for _, id := range ids {
		q, ok := byID[id]
		if !ok {
			return nil, errors.Wrap(ErrQuestionNotFound, id)
		}
		out = append(out, q)
	}
	return out, nil
}

const questionInUseSQL = `SELECT EXISTS(
	SELECT 1 FROM exam_questions eq JOIN attempts a ON a.exam_id = eq.exam_id
	 WHERE eq.question_id=$1)`

func (s *SQLStore) QuestionInUse(ctx context.Context, questionID string) (bool, error) {
	var used bool
	err := s.db.SQL.QueryRowContext(ctx, questionInUseSQL, questionID).Scan(&used)
	return used, errors.Wrap(err, "check question usage")
}

func (s *SQLStore) ExamInUse(ctx context.Context, examID string) (bool, error) {
	var used bool
	err := s.db.SQL.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM attempts WHERE exam_id=$1)`, examID).Scan(&used)
	return used, errors.Wrap(err, "check exam usage")
}

const questionCols = `id,prompt,kind,options_json,correct_json`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (Question, error) {
	var (
		q          Question
		kind, opts string
		key        string
	)
	if err := row.Scan(&q.ID, &q.Prompt, &kind, &opts, &key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Question{}, err
		}
		return Question{}, errors.Wrap(err, "scan question")
	}
	q.Kind = Kind(kind)
	if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
		return Question{}, errors.Wrapf(err, "question %s options", q.ID)
	}
	if len(q.Options) == 0 {
		q.Options = nil
	}
	k, err := ParseKey(q.Kind, json.RawMessage(key))
	if err != nil {
		return Question{}, errors.Wrapf(err, "question %s key", q.ID)
	}
	q.Correct = k
	return q, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func questionIDs(ctx context.Context, q querier, examID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT question_id FROM exam_questions WHERE exam_id=$1 ORDER BY position`, examID)
	if err != nil {
		return nil, errors.Wrap(err, "load exam questions")
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan exam question")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "load exam questions")
}
