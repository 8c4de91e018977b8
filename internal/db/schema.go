package db

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Timestamps are unix milliseconds in every table.

func ensureSchema(ctx context.Context, d *DB) error {
	schema := schemaSQLite
	if d.Driver == DriverPostgres {
		schema = schemaPostgres
	}
	// Try as a single script; split on semicolons if the driver rejects
	// multiple statements.
	if _, err := d.SQL.ExecContext(ctx, schema); err == nil {
		return nil
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := d.SQL.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "db: schema at %q", firstLine(stmt))
		}
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS questions (
  id           TEXT PRIMARY KEY,
  prompt       TEXT NOT NULL,
  kind         TEXT NOT NULL,
  options_json TEXT NOT NULL DEFAULT '[]',
  correct_json TEXT NOT NULL,
  updated_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS exams (
  id                  TEXT PRIMARY KEY,
  module_id           TEXT NOT NULL UNIQUE,
  course_id           TEXT NOT NULL,
  title               TEXT NOT NULL DEFAULT '',
  time_limit_minutes  INTEGER NOT NULL,
  passing_score       REAL NOT NULL,
  weight_per_question REAL NOT NULL,
  max_attempts        INTEGER NOT NULL DEFAULT 0,
  created_at          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS exam_questions (
  exam_id     TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  position    INTEGER NOT NULL,
  question_id TEXT NOT NULL REFERENCES questions(id),
  PRIMARY KEY (exam_id, position)
);

CREATE TABLE IF NOT EXISTS enrollments (
  id              TEXT PRIMARY KEY,
  student_id      TEXT NOT NULL,
  course_id       TEXT NOT NULL,
  installation_id TEXT NOT NULL DEFAULT 'default',
  created_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS attempts (
  id              TEXT PRIMARY KEY,
  submission_id   TEXT NOT NULL UNIQUE,
  exam_id         TEXT NOT NULL REFERENCES exams(id),
  module_id       TEXT NOT NULL,
  course_id       TEXT NOT NULL,
  installation_id TEXT NOT NULL,
  enrollment_id   TEXT NOT NULL REFERENCES enrollments(id),
  student_id      TEXT NOT NULL,
  attempt_number  INTEGER NOT NULL,
  score           REAL NOT NULL,
  max_score       REAL NOT NULL,
  approved        INTEGER NOT NULL,
  timed_out       INTEGER NOT NULL DEFAULT 0,
  answers_json    TEXT NOT NULL,
  results_json    TEXT NOT NULL,
  created_at      INTEGER NOT NULL,
  UNIQUE (enrollment_id, module_id, attempt_number)
);

CREATE INDEX IF NOT EXISTS attempts_course_idx ON attempts (course_id, installation_id);

CREATE TABLE IF NOT EXISTS module_progress (
  enrollment_id TEXT NOT NULL REFERENCES enrollments(id),
  module_id     TEXT NOT NULL,
  status        TEXT NOT NULL,
  approved      INTEGER NOT NULL DEFAULT 0,
  attempts      INTEGER NOT NULL DEFAULT 0,
  score         REAL NOT NULL DEFAULT 0,
  lock_until    INTEGER,
  updated_at    INTEGER NOT NULL,
  PRIMARY KEY (enrollment_id, module_id)
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS questions (
  id           TEXT PRIMARY KEY,
  prompt       TEXT NOT NULL,
  kind         TEXT NOT NULL,
  options_json TEXT NOT NULL DEFAULT '[]',
  correct_json TEXT NOT NULL,
  updated_at   BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS exams (
  id                  TEXT PRIMARY KEY,
  module_id           TEXT NOT NULL UNIQUE,
  course_id           TEXT NOT NULL,
  title               TEXT NOT NULL DEFAULT '',
  time_limit_minutes  INTEGER NOT NULL,
  passing_score       DOUBLE PRECISION NOT NULL,
  weight_per_question DOUBLE PRECISION NOT NULL,
  max_attempts        INTEGER NOT NULL DEFAULT 0,
  created_at          BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS exam_questions (
  exam_id     TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  position    INTEGER NOT NULL,
  question_id TEXT NOT NULL REFERENCES questions(id),
  PRIMARY KEY (exam_id, position)
);

CREATE TABLE IF NOT EXISTS enrollments (
  id              TEXT PRIMARY KEY,
  student_id      TEXT NOT NULL,
  course_id       TEXT NOT NULL,
  installation_id TEXT NOT NULL DEFAULT 'default',
  created_at      BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS attempts (
  id              TEXT PRIMARY KEY,
  submission_id   TEXT NOT NULL UNIQUE,
  exam_id         TEXT NOT NULL REFERENCES exams(id),
  module_id       TEXT NOT NULL,
  course_id       TEXT NOT NULL,
  installation_id TEXT NOT NULL,
  enrollment_id   TEXT NOT NULL REFERENCES enrollments(id),
  student_id      TEXT NOT NULL,
  attempt_number  INTEGER NOT NULL,
  score           DOUBLE PRECISION NOT NULL,
  max_score       DOUBLE PRECISION NOT NULL,
  approved        BOOLEAN NOT NULL,
  timed_out       BOOLEAN NOT NULL DEFAULT FALSE,
  answers_json    TEXT NOT NULL,
  results_json    TEXT NOT NULL,
  created_at      BIGINT NOT NULL,
  UNIQUE (enrollment_id, module_id, attempt_number)
);

CREATE INDEX IF NOT EXISTS attempts_course_idx ON attempts (course_id, installation_id);

CREATE TABLE IF NOT EXISTS module_progress (
  enrollment_id TEXT NOT NULL REFERENCES enrollments(id),
  module_id     TEXT NOT NULL,
  status        TEXT NOT NULL,
  approved      BOOLEAN NOT NULL DEFAULT FALSE,
  attempts      INTEGER NOT NULL DEFAULT 0,
  score         DOUBLE PRECISION NOT NULL DEFAULT 0,
  lock_until    BIGINT,
  updated_at    BIGINT NOT NULL,
  PRIMARY KEY (enrollment_id, module_id)
);
`
