package session

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	Update(ctx context.Context, s *Session) error
	List(ctx context.Context, limit, offset int) ([]*Session, int, error)
	ListByProfessional(ctx context.Context, professionalID uuid.UUID, limit, offset int) ([]*Session, int, error)
	// GetOpenByProfessional returns the professional's in-progress session, or
	// nil when there is none.
	GetOpenByProfessional(ctx context.Context, professionalID uuid.UUID) (*Session, error)
	// GetByAppointment returns the session linked to the appointment, or nil
	// when there is none.
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Session, error)
}
