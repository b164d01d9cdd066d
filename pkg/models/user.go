package models

import "fmt"

// UserRole represents the roles carried in bearer tokens
type UserRole string

const (
	UserRoleUser    UserRole = "user"
	UserRoleService UserRole = "service"
	UserRoleAdmin   UserRole = "admin"
)

// Valid reports whether r is a known role
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleUser, UserRoleService, UserRoleAdmin:
		return true
	}
	return false
}

// Principal is the caller identified by a verified token
type Principal struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
}

// HasRole reports whether the principal holds one of roles
func (p Principal) HasRole(roles ...UserRole) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// SignupRequest registers the signup order assigned by the identity service
type SignupRequest struct {
	Order int64 `json:"order" binding:"required"`
}

// Validate checks the signup order
func (r SignupRequest) Validate() error {
	if r.Order <= 0 {
		return fmt.Errorf("%w: order must be positive", ErrInvalidInput)
	}
	return nil
}
