package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	List(ctx context.Context, limit, offset int) ([]*Appointment, int, error)
	ListByProfessional(ctx context.Context, professionalID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	// ListActiveByProfessional returns the professional's non-cancelled
	// appointments ordered by start time.
	ListActiveByProfessional(ctx context.Context, professionalID uuid.UUID) ([]*Appointment, error)
	// HasOverlap reports whether a non-cancelled appointment of the
	// professional occupies any part of [start, end). Appointments without an
	// explicit end count as the default duration. excludeID, when non-nil,
	// leaves that row out of the check.
	HasOverlap(ctx context.Context, professionalID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)
}
