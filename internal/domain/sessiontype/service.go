package sessiontype

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/icompcare/icompcare/internal/platform/apperror"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, t *SessionType) error {
	if strings.TrimSpace(t.Name) == "" {
		return apperror.Validation("session_type.name_required", "name is required")
	}
	if t.DurationMinutes <= 0 {
		return apperror.Validation("session_type.invalid_duration", "duration must be positive")
	}
	t.Active = true
	return s.repo.Create(ctx, t)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*SessionType, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, t *SessionType) error {
	existing, err := s.repo.GetByID(ctx, t.ID)
	if err != nil {
		return err
	}

	if t.Name == "" {
		t.Name = existing.Name
	}
	if t.Description == nil {
		t.Description = existing.Description
	}
	if t.DurationMinutes == 0 {
		t.DurationMinutes = existing.DurationMinutes
	}
	if t.DurationMinutes <= 0 {
		return apperror.Validation("session_type.invalid_duration", "duration must be positive")
	}
	return s.repo.Update(ctx, t)
}

// Delete deactivates a session type. Appointments that already reference it
// keep their computed end times.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*SessionType, int, error) {
	return s.repo.List(ctx, limit, offset)
}
