package availability

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Availability) error
	GetByID(ctx context.Context, id uuid.UUID) (*Availability, error)
	Update(ctx context.Context, a *Availability) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Availability, int, error)
	ListByProfessional(ctx context.Context, professionalID uuid.UUID, limit, offset int) ([]*Availability, int, error)
	// ListActiveEndingAfter returns the professional's active windows whose end
	// lies strictly after the given instant, ordered by start.
	ListActiveEndingAfter(ctx context.Context, professionalID uuid.UUID, after time.Time) ([]*Availability, error)
	// HasOverlap reports whether an active window of the professional overlaps
	// [start, end). excludeID, when non-nil, leaves that row out of the check.
	HasOverlap(ctx context.Context, professionalID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)
	// HasCoverage reports whether a single active window of the professional
	// fully contains [start, end).
	HasCoverage(ctx context.Context, professionalID uuid.UUID, start, end time.Time) (bool, error)
}
