package identity

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

func (s *Service) CreateUser(ctx context.Context, u *User) error {
	if strings.TrimSpace(u.Name) == "" {
		return apperror.Validation("user.name_required", "name is required")
	}
	if strings.TrimSpace(u.Email) == "" {
		return apperror.Validation("user.email_required", "email is required")
	}
	role, err := ParseRole(string(u.Role))
	if err != nil {
		return err
	}
	u.Role = role
	if u.Status == "" {
		u.Status = StatusActive
	}
	return s.repo.Create(ctx, u)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateUser(ctx context.Context, u *User) error {
	existing, err := s.repo.GetByID(ctx, u.ID)
	if err != nil {
		return err
	}

	if u.Name == "" {
		u.Name = existing.Name
	}
	if u.Email == "" {
		u.Email = existing.Email
	}
	if u.Role == "" {
		u.Role = existing.Role
	} else {
		role, err := ParseRole(string(u.Role))
		if err != nil {
			return err
		}
		u.Role = role
	}
	if u.Status == "" {
		u.Status = existing.Status
	}
	return s.repo.Update(ctx, u)
}

// DeactivateUser soft-deletes a user. Their history stays intact.
func (s *Service) DeactivateUser(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Deactivate(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, role Role, limit, offset int) ([]*User, int, error) {
	if role != "" {
		parsed, err := ParseRole(string(role))
		if err != nil {
			return nil, 0, err
		}
		role = parsed
	}
	return s.repo.List(ctx, role, limit, offset)
}

// GetProfessional fetches a user and verifies they are an active professional.
func (s *Service) GetProfessional(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != RoleProfessional {
		return nil, apperror.NotFound("user.professional_not_found", "professional not found")
	}
	return u, nil
}

// GetStudent fetches a user and verifies they hold the student role.
func (s *Service) GetStudent(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != RoleStudent {
		return nil, apperror.NotFound("user.student_not_found", "student not found")
	}
	return u, nil
}
