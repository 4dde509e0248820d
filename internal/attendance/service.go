package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classroll/internal/lesson"
	"classroll/internal/token"
)

// StatusPresent is the only status this core ever writes.
const StatusPresent = "present"

// Record is the durable, once-only proof that a student checked in to a
// lesson. Never mutated or deleted after insert.
type Record struct {
	ID         string    `json:"id"`
	LessonID   string    `json:"lesson_id"`
	StudentID  string    `json:"student_id"`
	Status     string    `json:"status"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Terminal scan rejections. These never retry; the student needs a fresh code
// (or a working one). Infrastructure errors are returned wrapped instead and
// may be retried by re-scanning.
var (
	ErrInvalidCode = errors.New("invalid QR code")
	ErrStaleToken  = errors.New("token is stale or invalid")
)

// Outcome of a scan that was not rejected.
type Status string

const (
	// StatusRecorded: a new attendance record was written.
	StatusRecorded Status = "recorded"
	// StatusAlreadyMarked: the student had already checked in. Informational,
	// not an error; must not be presented as a failure.
	StatusAlreadyMarked Status = "already_marked"
)

// Result describes a successful or already-marked scan. LessonTitle is
// carried for the confirmation display.
type Result struct {
	Status      Status    `json:"status"`
	RecordID    string    `json:"record_id,omitempty"`
	LessonID    string    `json:"lesson_id"`
	LessonTitle string    `json:"lesson_title"`
	RecordedAt  time.Time `json:"recorded_at,omitempty"`
}

// LessonStore is the slice of lesson storage the marker needs.
type LessonStore interface {
	Get(ctx context.Context, id string) (*lesson.Lesson, error)
}

// RecordStore is the slice of record storage the marker needs. Insert must
// report a (lesson, student) uniqueness violation as ErrDuplicate.
type RecordStore interface {
	Get(ctx context.Context, lessonID, studentID string) (*Record, error)
	Insert(ctx context.Context, rec Record) (Record, error)
}

// Marker validates scanned payloads and records attendance. One scan attempt
// runs decode -> validate -> check -> record; the pre-check only exists to
// give a fast friendly rejection, the insert's unique constraint is what
// actually guarantees at most one record per (lesson, student).
type Marker struct {
	lessons LessonStore
	records RecordStore
	now     func() time.Time
}

// NewMarker creates a marker backed by lesson and record storage.
func NewMarker(lessons LessonStore, records RecordStore) *Marker {
	return &Marker{lessons: lessons, records: records, now: func() time.Time { return time.Now().UTC() }}
}

// Mark processes one raw scanned string for a student.
//
// Rejections come back as ErrInvalidCode, lesson.ErrNotFound or ErrStaleToken;
// duplicate check-ins are not errors and come back as StatusAlreadyMarked.
// Anything else is a storage failure the caller may surface with a retry
// affordance. Mark never retries on its own: a blind retry could not be told
// apart from a second scan.
func (m *Marker) Mark(ctx context.Context, studentID, rawText string) (Result, error) {
	if studentID == "" {
		return Result{}, errors.New("student id required")
	}

	// Decoding. No storage is touched for garbage input.
	tok, err := token.Decode(rawText)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}

	// Validating. The stored active token is compared to the raw payload by
	// exact string equality, not field by field: re-issuing instantly
	// invalidates every previously rendered QR code even though its fields
	// still decode.
	les, err := m.lessons.Get(ctx, tok.LessonID)
	if err != nil {
		if errors.Is(err, lesson.ErrNotFound) {
			return Result{}, lesson.ErrNotFound
		}
		return Result{}, fmt.Errorf("fetch lesson: %w", err)
	}
	if les.ActiveToken == nil || *les.ActiveToken != rawText {
		return Result{}, ErrStaleToken
	}

	// Checking. Fast path for the common double-scan.
	existing, err := m.records.Get(ctx, les.ID, studentID)
	if err != nil {
		return Result{}, fmt.Errorf("check attendance: %w", err)
	}
	if existing != nil {
		return Result{
			Status:      StatusAlreadyMarked,
			LessonID:    les.ID,
			LessonTitle: les.Title,
			RecordedAt:  existing.RecordedAt,
		}, nil
	}

	// Recording. Two concurrent scans can both pass the check above; the
	// unique constraint decides the winner and the loser lands here too.
	rec, err := m.records.Insert(ctx, Record{
		LessonID:   les.ID,
		StudentID:  studentID,
		Status:     StatusPresent,
		RecordedAt: m.now(),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return Result{
				Status:      StatusAlreadyMarked,
				LessonID:    les.ID,
				LessonTitle: les.Title,
			}, nil
		}
		return Result{}, fmt.Errorf("record attendance: %w", err)
	}

	return Result{
		Status:      StatusRecorded,
		RecordID:    rec.ID,
		LessonID:    les.ID,
		LessonTitle: les.Title,
		RecordedAt:  rec.RecordedAt,
	}, nil
}
