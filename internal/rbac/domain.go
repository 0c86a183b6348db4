package rbac

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors surfaced by the service layer. Handlers translate these to
// distinguishable HTTP outcomes.
var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("rbac: not found")
	// ErrDuplicateName indicates a permission or role name collision.
	ErrDuplicateName = errors.New("rbac: name already in use")
	// ErrAlreadyGranted indicates the (role, permission) pair already exists.
	ErrAlreadyGranted = errors.New("rbac: permission already granted")
	// ErrSystemRole indicates an attempt to delete or rename a system role.
	ErrSystemRole = errors.New("rbac: system role is protected")
	// ErrStillReferenced indicates a permission is still granted to a role.
	ErrStillReferenced = errors.New("rbac: permission still referenced by a role")
)

// System role names. The access model assumes these exist and they can never
// be deleted or renamed.
const (
	RoleSuperAdmin       = "super_admin"
	RoleTeamManager      = "team_manager"
	RoleSales            = "sales"
	RoleCustomerService  = "customer_service"
	RoleTechnicalSupport = "technical_support"
)

// SystemRoles returns the protected role names.
func SystemRoles() []string {
	return []string{RoleSuperAdmin, RoleTeamManager, RoleSales, RoleCustomerService, RoleTechnicalSupport}
}

// IsSystemRoleName reports whether name is one of the protected role names.
func IsSystemRoleName(name string) bool {
	switch name {
	case RoleSuperAdmin, RoleTeamManager, RoleSales, RoleCustomerService, RoleTechnicalSupport:
		return true
	}
	return false
}

// Level describes how far a permission reaches into a record.
type Level string

const (
	LevelReadOnly   Level = "read_only"
	LevelReadEdit   Level = "read_edit"
	LevelFullAccess Level = "full_access"
)

// ParseLevel converts a raw string into a Level.
func ParseLevel(raw string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(raw))) {
	case LevelReadOnly:
		return LevelReadOnly, nil
	case LevelReadEdit:
		return LevelReadEdit, nil
	case LevelFullAccess:
		return LevelFullAccess, nil
	}
	return "", fmt.Errorf("rbac: unknown level %q", raw)
}

// Valid reports whether the level is one of the known values.
func (l Level) Valid() bool {
	_, err := ParseLevel(string(l))
	return err == nil
}

// Scope describes the breadth of records a permission applies to.
type Scope string

const (
	ScopeOwn        Scope = "own"
	ScopeTeam       Scope = "team"
	ScopeAll        Scope = "all"
	ScopeUnassigned Scope = "unassigned"
)

// ParseScope converts a raw string into a Scope.
func ParseScope(raw string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(raw))) {
	case ScopeOwn:
		return ScopeOwn, nil
	case ScopeTeam:
		return ScopeTeam, nil
	case ScopeAll:
		return ScopeAll, nil
	case ScopeUnassigned:
		return ScopeUnassigned, nil
	}
	return "", fmt.Errorf("rbac: unknown scope %q", raw)
}

// Valid reports whether the scope is one of the known values.
func (s Scope) Valid() bool {
	_, err := ParseScope(string(s))
	return err == nil
}

// Permission represents an atomic capability that can be granted to a role.
type Permission struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Module      string    `json:"module"`
	Action      string    `json:"action"`
	Level       Level     `json:"level"`
	Scope       Scope     `json:"scope"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ScopedKey returns the module.action.scope form of the permission.
func (p Permission) ScopedKey() string {
	return ScopedKey(p.Module, p.Action, p.Scope)
}

// ScopedKey composes the three-part permission key.
func ScopedKey(module, action string, scope Scope) string {
	return strings.ToLower(strings.TrimSpace(module)) + "." +
		strings.ToLower(strings.TrimSpace(action)) + "." +
		string(scope)
}

// Role represents a named bundle of permissions.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Grant ties a permission to a role.
type Grant struct {
	ID           int64     `json:"id"`
	RoleID       int64     `json:"role_id"`
	PermissionID int64     `json:"permission_id"`
	CreatedAt    time.Time `json:"created_at"`
}
