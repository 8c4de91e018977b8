package assessment

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-ead/internal/db"
	"github.com/mind-engage/mindengage-ead/internal/gate"
	"github.com/mind-engage/mindengage-ead/internal/ledger"
)

type SQLStore struct {
	db *db.DB
}

func NewSQLStore(d *db.DB) *SQLStore { return &SQLStore{db: d} }

var _ Store = (*SQLStore)(nil)

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

// PutEnrollment inserts or updates an enrollment. Enrollments belong to the
// enrollment directory; this exists for seeding and tests.
func (s *SQLStore) PutEnrollment(ctx context.Context, e Enrollment) error {
	if e.InstallationID == "" {
		e.InstallationID = "default"
	}
	_, err := s.db.SQL.ExecContext(ctx, `INSERT INTO enrollments (id,student_id,course_id,installation_id,created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET student_id=EXCLUDED.student_id, course_id=EXCLUDED.course_id,
			installation_id=EXCLUDED.installation_id`,
		e.ID, e.StudentID, e.CourseID, e.InstallationID, time.Now().UnixMilli())
	return errors.Wrap(err, "put enrollment")
}

func (s *SQLStore) Enrollment(ctx context.Context, id string) (Enrollment, error) {
	var e Enrollment
	err := s.db.SQL.QueryRowContext(ctx,
		`SELECT id,student_id,course_id,installation_id FROM enrollments WHERE id=$1`, id).
		Scan(&e.ID, &e.StudentID, &e.CourseID, &e.InstallationID)
	if errors.Is(err, sql.ErrNoRows) {
		return Enrollment{}, ErrNotEnrolled
	}
	return e, errors.Wrap(err, "load enrollment")
}

const progressCols = `enrollment_id,module_id,status,approved,attempts,score,lock_until,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner) (gate.Record, error) {
	var (
		r       gate.Record
		status  string
		lock    sql.NullInt64
		updated int64
	)
	if err := row.Scan(&r.EnrollmentID, &r.ModuleID, &status, &r.Approved, &r.Attempts, &r.Score, &lock, &updated); err != nil {
		return gate.Record{}, err
	}
	r.Status = gate.Status(status)
	if lock.Valid {
		t := time.UnixMilli(lock.Int64).UTC()
		r.LockUntil = &t
	}
	r.UpdatedAt = time.UnixMilli(updated).UTC()
	return r, nil
}

func (s *SQLStore) Progress(ctx context.Context, enrollmentID, moduleID string) (gate.Record, error) {
	r, err := scanProgress(s.db.SQL.QueryRowContext(ctx,
		`SELECT `+progressCols+` FROM module_progress WHERE enrollment_id=$1 AND module_id=$2`, enrollmentID, moduleID))
	if errors.Is(err, sql.ErrNoRows) {
		return gate.New(enrollmentID, moduleID), nil
	}
	return r, errors.Wrap(err, "load progress")
}

func (s *SQLStore) ListProgress(ctx context.Context, enrollmentID string) ([]gate.Record, error) {
	rows, err := s.db.SQL.QueryContext(ctx,
		`SELECT `+progressCols+` FROM module_progress WHERE enrollment_id=$1 ORDER BY module_id`, enrollmentID)
	if err != nil {
		return nil, errors.Wrap(err, "list progress")
	}
	defer rows.Close()
	var out []gate.Record
	for rows.Next() {
		r, err := scanProgress(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan progress")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "list progress")
}

func (s *SQLStore) CountAttempts(ctx context.Context, enrollmentID, moduleID string) (int, error) {
	var n int
	err := s.db.SQL.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attempts WHERE enrollment_id=$1 AND module_id=$2`, enrollmentID, moduleID).Scan(&n)
	return n, errors.Wrap(err, "count attempts")
}

// RecordAttempt runs the whole submission in one transaction: replay check,
// progress row lock, entry guard, numbering, ledger insert and gate upsert.
func (s *SQLStore) RecordAttempt(ctx context.Context, sub Submission, now time.Time) (ledger.Attempt, gate.Record, error) {
	a := sub.Attempt
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return ledger.Attempt{}, gate.Record{}, errors.Wrap(err, "encode answers")
	}
	results, err := json.Marshal(a.Results)
	if err != nil {
		return ledger.Attempt{}, gate.Record{}, errors.Wrap(err, "encode results")
	}

	var rec gate.Record
	err = db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		prev, err := scanAttempt(tx.QueryRowContext(ctx,
			`SELECT `+attemptCols+` FROM attempts WHERE submission_id=$1`, a.SubmissionID))
		switch {
		case err == nil:
			a = prev
			rec, err = scanProgress(tx.QueryRowContext(ctx,
				`SELECT `+progressCols+` FROM module_progress WHERE enrollment_id=$1 AND module_id=$2`, a.EnrollmentID, a.ModuleID))
			return errors.Wrap(err, "load progress")
		case !errors.Is(err, sql.ErrNoRows):
			return errors.Wrap(err, "lookup submission")
		}

		rec, err = scanProgress(tx.QueryRowContext(ctx,
			`SELECT `+progressCols+` FROM module_progress WHERE enrollment_id=$1 AND module_id=$2`+s.db.ForUpdate(),
			a.EnrollmentID, a.ModuleID))
		if errors.Is(err, sql.ErrNoRows) {
			rec, err = gate.New(a.EnrollmentID, a.ModuleID), nil
		}
		if err != nil {
			return errors.Wrap(err, "lock progress")
		}
		if err := rec.CanEnter(sub.Limit, now); err != nil {
			return err
		}

		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM attempts WHERE enrollment_id=$1 AND module_id=$2`, a.EnrollmentID, a.ModuleID).Scan(&n); err != nil {
			return errors.Wrap(err, "count attempts")
		}
		a.AttemptNumber = n + 1
		a.CreatedAt = now.UTC().Truncate(time.Millisecond)

		_, err = tx.ExecContext(ctx, `INSERT INTO attempts (`+attemptCols+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
			a.ID, a.SubmissionID, a.ExamID, a.ModuleID, a.CourseID, a.InstallationID, a.EnrollmentID, a.StudentID,
			a.AttemptNumber, a.Score, a.MaxScore, a.Approved, a.TimedOut, string(answers), string(results), a.CreatedAt.UnixMilli())
		if db.IsUniqueViolation(err) {
			return ErrAttemptConflict
		}
		if err != nil {
			return errors.Wrap(err, "insert attempt")
		}

		rec = rec.Apply(a.Score, a.Approved, sub.Limit, sub.Block, a.CreatedAt)
		var lock sql.NullInt64
		if rec.LockUntil != nil {
			lock = sql.NullInt64{Int64: rec.LockUntil.UnixMilli(), Valid: true}
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO module_progress (`+progressCols+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (enrollment_id, module_id) DO UPDATE SET status=EXCLUDED.status, approved=EXCLUDED.approved,
				attempts=EXCLUDED.attempts, score=EXCLUDED.score, lock_until=EXCLUDED.lock_until, updated_at=EXCLUDED.updated_at`,
			rec.EnrollmentID, rec.ModuleID, string(rec.Status), rec.Approved, rec.Attempts, rec.Score, lock, rec.UpdatedAt.UnixMilli())
		if db.IsUniqueViolation(err) {
			return ErrAttemptConflict
		}
		return errors.Wrap(err, "upsert progress")
	})
	if err != nil {
		return ledger.Attempt{}, gate.Record{}, err
	}
	return a, rec, nil
}

const attemptCols = `id,submission_id,exam_id,module_id,course_id,installation_id,enrollment_id,student_id,
	attempt_number,score,max_score,approved,timed_out,answers_json,results_json,created_at`

func scanAttempt(row rowScanner) (ledger.Attempt, error) {
	var (
		a                ledger.Attempt
		answers, results string
		created          int64
	)
	err := row.Scan(&a.ID, &a.SubmissionID, &a.ExamID, &a.ModuleID, &a.CourseID, &a.InstallationID, &a.EnrollmentID, &a.StudentID,
		&a.AttemptNumber, &a.Score, &a.MaxScore, &a.Approved, &a.TimedOut, &answers, &results, &created)
	if err != nil {
		return ledger.Attempt{}, err
	}
	if err := json.Unmarshal([]byte(answers), &a.Answers); err != nil {
		return ledger.Attempt{}, errors.Wrapf(err, "attempt %s answers", a.ID)
	}
	if err := json.Unmarshal([]byte(results), &a.Results); err != nil {
		return ledger.Attempt{}, errors.Wrapf(err, "attempt %s results", a.ID)
	}
	a.CreatedAt = time.UnixMilli(created).UTC()
	return a, nil
}

// where renders the filters of opts as a WHERE clause with $n placeholders.
func where(opts ledger.ListOpts) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(col, v string) {
		if v == "" {
			return
		}
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	add("enrollment_id", opts.EnrollmentID)
	add("module_id", opts.ModuleID)
	add("student_id", opts.StudentID)
	add("course_id", opts.CourseID)
	add("installation_id", opts.InstallationID)
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts ledger.ListOpts) ([]ledger.Attempt, error) {
	opts = opts.Normalize()
	w, args := where(opts)
	args = append(args, opts.Limit, opts.Offset)
	q := `SELECT ` + attemptCols + ` FROM attempts` + w +
		fmt.Sprintf(` ORDER BY created_at DESC, attempt_number DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := s.db.SQL.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list attempts")
	}
	defer rows.Close()
	out := []ledger.Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan attempt")
		}
		out = append(out, a)
	}
	return out, errors.Wrap(rows.Err(), "list attempts")
}

func (s *SQLStore) Summary(ctx context.Context, opts ledger.ListOpts) (ledger.Summary, error) {
	w, args := where(opts)
	var (
		sum ledger.Summary
		err error
	)
	if sum.ByCourse, err = s.groupStats(ctx, "course_id", w, args); err != nil {
		return ledger.Summary{}, err
	}
	if sum.ByInstallation, err = s.groupStats(ctx, "installation_id", w, args); err != nil {
		return ledger.Summary{}, err
	}
	var total float64
	for _, g := range sum.ByCourse {
		sum.Total.Attempts += g.Attempts
		sum.Total.Approved += g.Approved
		total += g.AverageScore * float64(g.Attempts)
	}
	sum.Total.Failed = sum.Total.Attempts - sum.Total.Approved
	if sum.Total.Attempts > 0 {
		sum.Total.AverageScore = total / float64(sum.Total.Attempts)
	}
	return sum, nil
}

func (s *SQLStore) groupStats(ctx context.Context, col, w string, args []any) ([]ledger.GroupStats, error) {
	rows, err := s.db.SQL.QueryContext(ctx, `SELECT `+col+`, COUNT(*),
		SUM(CASE WHEN approved THEN 1 ELSE 0 END), AVG(score)
		FROM attempts`+w+` GROUP BY `+col, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "summary by %s", col)
	}
	defer rows.Close()
	out := []ledger.GroupStats{}
	for rows.Next() {
		var (
			g   ledger.GroupStats
			avg sql.NullFloat64
		)
		if err := rows.Scan(&g.Key, &g.Attempts, &g.Approved, &avg); err != nil {
			return nil, errors.Wrapf(err, "scan summary by %s", col)
		}
		g.Failed = g.Attempts - g.Approved
		g.AverageScore = avg.Float64
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "summary by %s", col)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
