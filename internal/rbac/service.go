package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/meridian-crm/meridian/internal/shared"
)

// ErrInvalid indicates a domain validation failure before any write.
var ErrInvalid = errors.New("rbac: invalid input")

// RepositoryPort defines data access methods for the authorization model.
type RepositoryPort interface {
	LookupPort

	GetPermission(ctx context.Context, id int64) (Permission, error)
	CreatePermission(ctx context.Context, p Permission) (Permission, error)
	UpdatePermission(ctx context.Context, p Permission) (Permission, error)
	DeletePermission(ctx context.Context, id int64) error
	CountGrantsForPermission(ctx context.Context, permissionID int64) (int, error)

	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, id int64) error

	CreateGrant(ctx context.Context, roleID, permissionID int64) (Grant, error)
	GetGrant(ctx context.Context, id int64) (Grant, error)
	DeleteGrant(ctx context.Context, id int64) error
	ListGrants(ctx context.Context, roleID int64) ([]Grant, error)

	AssignUserRole(ctx context.Context, userID, roleID int64) error
	ClearUserRole(ctx context.Context, userID int64) error
}

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator disowns cached authorization decisions after a mutation.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service orchestrates the permission catalog, roles, grants and user role
// bindings. Every mutation is audit-logged and followed by a cache
// invalidation; a failure of either is logged but does not undo the write,
// since the store has already accepted it and the UI re-checks on navigation.
type Service struct {
	repo        RepositoryPort
	audit       AuditRecorder
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService builds Service instance. audit and invalidator may be nil.
func NewService(repo RepositoryPort, audit AuditRecorder, invalidator Invalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, invalidator: invalidator, logger: logger}
}

// ListPermissions returns the whole catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// CreatePermission adds a catalog entry.
func (s *Service) CreatePermission(ctx context.Context, actorID int64, p Permission) (Permission, error) {
	normalizePermission(&p)
	if err := validatePermission(p); err != nil {
		return Permission{}, err
	}
	created, err := s.repo.CreatePermission(ctx, p)
	if err != nil {
		return Permission{}, err
	}
	s.record(ctx, actorID, "permission.create", "permission", created.ID, map[string]any{"name": created.Name})
	s.bump(ctx)
	return created, nil
}

// UpdatePermission rewrites a catalog entry.
func (s *Service) UpdatePermission(ctx context.Context, actorID int64, p Permission) (Permission, error) {
	normalizePermission(&p)
	if err := validatePermission(p); err != nil {
		return Permission{}, err
	}
	updated, err := s.repo.UpdatePermission(ctx, p)
	if err != nil {
		return Permission{}, err
	}
	s.record(ctx, actorID, "permission.update", "permission", updated.ID, map[string]any{"name": updated.Name})
	s.bump(ctx)
	return updated, nil
}

// DeletePermission removes a catalog entry. It refuses while any grant still
// references the permission, so the join relation can never dangle.
func (s *Service) DeletePermission(ctx context.Context, actorID, id int64) error {
	count, err := s.repo.CountGrantsForPermission(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %d grant(s)", ErrStillReferenced, count)
	}
	if err := s.repo.DeletePermission(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "permission.delete", "permission", id, nil)
	s.bump(ctx)
	return nil
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole adds a user-defined role. The protected system names are
// reserved: seeding creates those with IsSystem set, nothing else may.
func (s *Service) CreateRole(ctx context.Context, actorID int64, name, description string) (Role, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", ErrInvalid)
	}
	if IsSystemRoleName(name) {
		return Role{}, ErrSystemRole
	}
	created, err := s.repo.CreateRole(ctx, Role{Name: name, Description: strings.TrimSpace(description)})
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, actorID, "role.create", "role", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

// UpdateRole renames or redescribes a role. System roles keep their name.
func (s *Service) UpdateRole(ctx context.Context, actorID, id int64, name, description string) (Role, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", ErrInvalid)
	}
	existing, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if existing.IsSystem && name != existing.Name {
		return Role{}, ErrSystemRole
	}
	if !existing.IsSystem && IsSystemRoleName(name) {
		return Role{}, ErrSystemRole
	}
	updated, err := s.repo.UpdateRole(ctx, Role{ID: id, Name: name, Description: strings.TrimSpace(description)})
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, actorID, "role.update", "role", updated.ID, map[string]any{"name": updated.Name})
	s.bump(ctx)
	return updated, nil
}

// DeleteRole removes a user-defined role. The five system roles are
// protected here, in the service layer, not only in any UI.
func (s *Service) DeleteRole(ctx context.Context, actorID, id int64) error {
	existing, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsSystem || IsSystemRoleName(existing.Name) {
		return ErrSystemRole
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "role.delete", "role", id, map[string]any{"name": existing.Name})
	s.bump(ctx)
	return nil
}

// ListRolePermissions returns the permissions granted to a role.
func (s *Service) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	return s.repo.ListRolePermissions(ctx, roleID)
}

// ListGrants returns the raw grant rows of a role.
func (s *Service) ListGrants(ctx context.Context, roleID int64) ([]Grant, error) {
	return s.repo.ListGrants(ctx, roleID)
}

// Grant adds a single (role, permission) pair. Granting the same pair twice
// fails with ErrAlreadyGranted and leaves the set unchanged.
func (s *Service) Grant(ctx context.Context, actorID, roleID, permissionID int64) (Grant, error) {
	grant, err := s.repo.CreateGrant(ctx, roleID, permissionID)
	if err != nil {
		return Grant{}, err
	}
	s.record(ctx, actorID, "grant.create", "grant", grant.ID, map[string]any{
		"role_id":       roleID,
		"permission_id": permissionID,
	})
	s.bump(ctx)
	return grant, nil
}

// Revoke removes exactly one grant by ID.
func (s *Service) Revoke(ctx context.Context, actorID, grantID int64) error {
	grant, err := s.repo.GetGrant(ctx, grantID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteGrant(ctx, grantID); err != nil {
		return err
	}
	s.record(ctx, actorID, "grant.revoke", "grant", grantID, map[string]any{
		"role_id":       grant.RoleID,
		"permission_id": grant.PermissionID,
	})
	s.bump(ctx)
	return nil
}

// AssignRole binds the user to a role, overwriting any previous binding.
func (s *Service) AssignRole(ctx context.Context, actorID, userID, roleID int64) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.repo.AssignUserRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.record(ctx, actorID, "user.assign_role", "user", userID, map[string]any{"role_id": roleID})
	s.bump(ctx)
	return nil
}

// ClearRole detaches the user from any role.
func (s *Service) ClearRole(ctx context.Context, actorID, userID int64) error {
	if err := s.repo.ClearUserRole(ctx, userID); err != nil {
		return err
	}
	s.record(ctx, actorID, "user.clear_role", "user", userID, nil)
	s.bump(ctx)
	return nil
}

// ElevateToSuperAdmin binds the caller to the super_admin role. This is the
// development bootstrap path; exposure is controlled by configuration and
// every use lands in the audit trail.
func (s *Service) ElevateToSuperAdmin(ctx context.Context, userID int64) error {
	role, err := s.repo.GetRoleByName(ctx, RoleSuperAdmin)
	if err != nil {
		return err
	}
	if err := s.repo.AssignUserRole(ctx, userID, role.ID); err != nil {
		return err
	}
	s.record(ctx, userID, "user.self_elevate", "user", userID, map[string]any{"role": RoleSuperAdmin})
	s.bump(ctx)
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "audit record", slog.Any("error", err), slog.String("action", action))
	}
}

func (s *Service) bump(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "authz cache invalidate", slog.Any("error", err))
	}
}

func normalizePermission(p *Permission) {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	p.Module = strings.ToLower(strings.TrimSpace(p.Module))
	p.Action = strings.ToLower(strings.TrimSpace(p.Action))
	p.Description = strings.TrimSpace(p.Description)
	p.Level = Level(strings.ToLower(strings.TrimSpace(string(p.Level))))
	p.Scope = Scope(strings.ToLower(strings.TrimSpace(string(p.Scope))))
}

func validatePermission(p Permission) error {
	if p.Name == "" {
		return fmt.Errorf("%w: permission name required", ErrInvalid)
	}
	if p.Module == "" || p.Action == "" {
		return fmt.Errorf("%w: module and action required", ErrInvalid)
	}
	if !p.Level.Valid() {
		return fmt.Errorf("%w: unknown level %q", ErrInvalid, p.Level)
	}
	if !p.Scope.Valid() {
		return fmt.Errorf("%w: unknown scope %q", ErrInvalid, p.Scope)
	}
	return nil
}
