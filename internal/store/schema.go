package store

import (
	"context"
	"database/sql"
)

// schema is applied at startup. The UNIQUE constraint on
// (lesson_id, student_id) is the authoritative guard against duplicate
// check-ins; application code deliberately takes no locks of its own.
const schema = `
CREATE TABLE IF NOT EXISTS lessons (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	scheduled_at TIMESTAMPTZ NOT NULL,
	teacher_id   TEXT NOT NULL DEFAULT '',
	active_token TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS attendance_records (
	id          TEXT PRIMARY KEY,
	lesson_id   TEXT NOT NULL REFERENCES lessons (id),
	student_id  TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'present',
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (lesson_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_attendance_records_lesson
	ON attendance_records (lesson_id, recorded_at DESC);
`

// EnsureSchema creates the tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
