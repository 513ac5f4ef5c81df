package sessiontype

import (
	"time"

	"github.com/google/uuid"
)

// SessionType maps to the session_types table. Its duration drives the
// effective end time of appointments that reference it.
type SessionType struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Description     *string   `db:"description" json:"description,omitempty"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Duration returns the session length as a time.Duration.
func (t *SessionType) Duration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}
