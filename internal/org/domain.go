package org

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the department or team does not exist.
	ErrNotFound = errors.New("org: not found")
	// ErrDuplicateName indicates a name collision within the parent container.
	ErrDuplicateName = errors.New("org: name already in use")
	// ErrInvalid indicates a validation failure before any write.
	ErrInvalid = errors.New("org: invalid input")
)

// Department is an organizational container used for filtering and display.
// No permission semantics attach to it beyond the own/team/all scoping of the
// permission model.
type Department struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Team groups users inside a department and optionally references a manager.
type Team struct {
	ID           int64     `json:"id"`
	DepartmentID int64     `json:"department_id"`
	Name         string    `json:"name"`
	ManagerID    *int64    `json:"manager_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
