package sessiontype

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, t *SessionType) error
	GetByID(ctx context.Context, id uuid.UUID) (*SessionType, error)
	Update(ctx context.Context, t *SessionType) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*SessionType, int, error)
}
