package users

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = errors.New("users: not found")
	// ErrDuplicateEmail indicates an email collision on create or update.
	ErrDuplicateEmail = errors.New("users: email already in use")
	// ErrInvalid indicates a validation failure before any write.
	ErrInvalid = errors.New("users: invalid input")
)

// Profile represents a back-office user account. A user carries at most one
// role at a time; reassignment overwrites, never appends.
type Profile struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	RoleID       *int64     `json:"role_id"`
	RoleName     *string    `json:"role_name,omitempty"`
	IsActive     bool       `json:"is_active"`
	DepartmentID *int64     `json:"department_id"`
	TeamID       *int64     `json:"team_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// ListFilter narrows user listings.
type ListFilter struct {
	DepartmentID *int64
	TeamID       *int64
	IsActive     *bool
	Page         int
	PerPage      int
}
