package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/icompcare/icompcare/internal/platform/apperror"
)

// Role classifies what a user can do in the scheduling system.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleProfessional Role = "professional"
	RoleStudent      Role = "student"
)

// ParseRole converts a string into a Role, case-insensitively. Unknown values
// are a validation error.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(s)) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleProfessional:
		return RoleProfessional, nil
	case RoleStudent:
		return RoleStudent, nil
	default:
		return "", apperror.Validation("user.invalid_role", "invalid role: "+s)
	}
}

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// User maps to the users table.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Registration *string   `db:"registration" json:"registration,omitempty"`
	Role         Role      `db:"role" json:"role"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the user can participate in scheduling.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}
