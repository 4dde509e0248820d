package lesson

import (
	"errors"
	"time"
)

// ErrNotFound reports that no lesson exists for the requested id.
var ErrNotFound = errors.New("lesson not found")

// Lesson is a scheduled class owned by a teacher. ActiveToken holds the
// serialized attendance token most recently issued for the lesson; it is nil
// until the first issuance and replaced wholesale on every re-issue.
type Lesson struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at"`
	TeacherID   string    `json:"teacher_id"`
	ActiveToken *string   `json:"active_token,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
