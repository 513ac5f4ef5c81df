package availability

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/icompcare/icompcare/internal/platform/apperror"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// ParseStatus validates a window status, case-insensitively. Unknown values
// are a validation error, never silently stored.
func ParseStatus(s string) (string, error) {
	switch strings.ToLower(s) {
	case StatusActive:
		return StatusActive, nil
	case StatusInactive:
		return StatusInactive, nil
	default:
		return "", apperror.Validation("availability.invalid_status", "invalid availability status: "+s)
	}
}

// Availability maps to the availabilities table. It is a window in which a
// professional accepts appointments. Times are stored in UTC and interpreted
// half-open: [StartTime, EndTime).
type Availability struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ProfessionalID uuid.UUID `db:"professional_id" json:"professional_id"`
	StartTime      time.Time `db:"start_time" json:"start_time"`
	EndTime        time.Time `db:"end_time" json:"end_time"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// TimeRange is one bookable fragment of an availability window.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DaySchedule groups the free fragments of a single calendar day.
type DaySchedule struct {
	Date      string      `json:"date"`
	DayOfWeek string      `json:"day_of_week"`
	Free      []TimeRange `json:"free"`
}
