package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate reports that a record for (lessonID, studentID) already
// exists. The unique constraint that raises it is the authoritative
// deduplication point for concurrent scans.
var ErrDuplicate = errors.New("attendance already recorded")

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the record for (lessonID, studentID), or nil when the student
// has not checked in to the lesson.
func (r *Repository) Get(ctx context.Context, lessonID, studentID string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, lesson_id, student_id, status, recorded_at
		FROM attendance_records
		WHERE lesson_id = $1 AND student_id = $2
	`, lessonID, studentID)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.LessonID, &rec.StudentID, &rec.Status, &rec.RecordedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Insert writes a new record. A unique-constraint rejection on
// (lesson_id, student_id) is reported as ErrDuplicate so callers can treat it
// as a normal already-marked outcome rather than a failure.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = StatusPresent
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, lesson_id, student_id, status, recorded_at)
		VALUES ($1,$2,$3,$4,$5)
	`, rec.ID, rec.LessonID, rec.StudentID, rec.Status, rec.RecordedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return Record{}, ErrDuplicate
		}
		return Record{}, err
	}
	return rec, nil
}

// ListByLesson returns a lesson's records, newest first.
func (r *Repository) ListByLesson(ctx context.Context, lessonID string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, lesson_id, student_id, status, recorded_at
		FROM attendance_records
		WHERE lesson_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2 OFFSET $3
	`, lessonID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.LessonID, &rec.StudentID, &rec.Status, &rec.RecordedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
