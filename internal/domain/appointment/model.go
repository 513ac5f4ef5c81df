package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/icompcare/icompcare/internal/platform/apperror"
	"github.com/icompcare/icompcare/internal/platform/interval"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusInSession Status = "in-session"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus converts a string into a Status, case-insensitively. Separators
// are normalized so "InSession", "in_session" and "in-session" all parse.
// Unknown values are a validation error, never silently ignored.
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	switch norm {
	case "pending":
		return StatusPending, nil
	case "confirmed":
		return StatusConfirmed, nil
	case "insession":
		return StatusInSession, nil
	case "completed":
		return StatusCompleted, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	default:
		return "", apperror.Validation("appointment.invalid_status", "invalid appointment status: "+s)
	}
}

// IsTerminal reports whether no further transitions are allowed from the
// status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Appointment maps to the appointments table. EndTime may be null; such
// appointments occupy the calendar for the default duration. The inline
// student fields carry contact details for bookings made before the student
// has an account, so StudentID may stay null.
type Appointment struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	ProfessionalID      uuid.UUID  `db:"professional_id" json:"professional_id"`
	StudentID           *uuid.UUID `db:"student_id" json:"student_id,omitempty"`
	StudentEmail        *string    `db:"student_email" json:"student_email,omitempty"`
	StudentRegistration *string    `db:"student_registration" json:"student_registration,omitempty"`
	StudentFullName     *string    `db:"student_full_name" json:"student_full_name,omitempty"`
	SessionTypeID       *uuid.UUID `db:"session_type_id" json:"session_type_id,omitempty"`
	StartTime           time.Time  `db:"start_time" json:"start_time"`
	EndTime             *time.Time `db:"end_time" json:"end_time,omitempty"`
	Status              Status     `db:"status" json:"status"`
	ReasonForVisit      *string    `db:"reason_for_visit" json:"reason_for_visit,omitempty"`
	Notes               *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// EffectiveEnd resolves the appointment's calendar end: the explicit end when
// present, otherwise start plus the default duration.
func (a *Appointment) EffectiveEnd() time.Time {
	return interval.EffectiveEnd(a.StartTime, a.EndTime, interval.DefaultAppointmentDuration)
}

// BusySpan returns the calendar span the appointment occupies.
func (a *Appointment) BusySpan() interval.Span {
	return interval.Span{Start: a.StartTime, End: a.EffectiveEnd()}
}
