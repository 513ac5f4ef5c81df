package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/icompcare/icompcare/internal/platform/apperror"
)

// Status is the lifecycle state of a care session.
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus converts a string into a Status, case-insensitively and
// tolerant of separator spelling. Unknown values are a validation error.
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	switch norm {
	case "inprogress":
		return StatusInProgress, nil
	case "completed":
		return StatusCompleted, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	default:
		return "", apperror.Validation("session.invalid_status", "invalid session status: "+s)
	}
}

// IsOpen reports whether the session is still running.
func (s Status) IsOpen() bool {
	return s == StatusInProgress
}

// Session is a care session executed against a confirmed appointment.
type Session struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	AppointmentID  uuid.UUID  `db:"appointment_id" json:"appointment_id"`
	ProfessionalID uuid.UUID  `db:"professional_id" json:"professional_id"`
	StudentID      uuid.UUID  `db:"student_id" json:"student_id"`
	Status         Status     `db:"status" json:"status"`
	StartedAt      time.Time  `db:"started_at" json:"started_at"`
	EndedAt        *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
