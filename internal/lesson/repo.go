package lesson

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository persists lessons in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new lesson.
func (r *Repository) Create(ctx context.Context, l Lesson) (Lesson, error) {
	if l.Title == "" {
		return Lesson{}, errors.New("lesson title required")
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.ScheduledAt.IsZero() {
		l.ScheduledAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO lessons (id, title, description, scheduled_at, teacher_id)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, l.ID, l.Title, l.Description, l.ScheduledAt, l.TeacherID)
	if err := row.Scan(&l.CreatedAt); err != nil {
		return Lesson{}, err
	}
	return l, nil
}

// Get returns a lesson by id, or ErrNotFound.
func (r *Repository) Get(ctx context.Context, id string) (*Lesson, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, description, scheduled_at, teacher_id, active_token, created_at
		FROM lessons WHERE id = $1
	`, id)
	var l Lesson
	if err := row.Scan(&l.ID, &l.Title, &l.Description, &l.ScheduledAt, &l.TeacherID, &l.ActiveToken, &l.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// ReplaceActiveToken unconditionally overwrites the lesson's active token.
// Last write wins; there is no optimistic-lock check.
func (r *Repository) ReplaceActiveToken(ctx context.Context, lessonID, payload string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE lessons SET active_token = $2 WHERE id = $1
	`, lessonID, payload)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns lessons, optionally filtered by teacher, newest schedule first.
func (r *Repository) List(ctx context.Context, teacherID string, limit, offset int) ([]Lesson, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `
		SELECT id, title, description, scheduled_at, teacher_id, active_token, created_at
		FROM lessons`
	args := []any{}
	if teacherID != "" {
		query += ` WHERE teacher_id = $1
		ORDER BY scheduled_at DESC LIMIT $2 OFFSET $3`
		args = append(args, teacherID, limit, offset)
	} else {
		query += `
		ORDER BY scheduled_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Lesson
	for rows.Next() {
		var l Lesson
		if err := rows.Scan(&l.ID, &l.Title, &l.Description, &l.ScheduledAt, &l.TeacherID, &l.ActiveToken, &l.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}
