package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for the authorization
// model. Uniqueness of permission names, role names and (role, permission)
// pairs is enforced by database constraints and translated to sentinel errors
// here, so callers never see raw SQLSTATE codes.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const permissionColumns = `id, name, description, module, action, level, scope, created_at, updated_at`

// ListPermissions returns the whole permission catalog ordered by name.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// GetPermission fetches a single permission by ID.
func (r *Repository) GetPermission(ctx context.Context, id int64) (Permission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id)
	perm, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrNotFound
		}
		return Permission{}, err
	}
	return perm, nil
}

// CreatePermission inserts a catalog entry.
func (r *Repository) CreatePermission(ctx context.Context, p Permission) (Permission, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO permissions (name, description, module, action, level, scope)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+permissionColumns,
		p.Name, p.Description, p.Module, p.Action, p.Level, p.Scope)
	created, err := scanPermission(row)
	if err != nil {
		return Permission{}, translateConstraint(err, ErrDuplicateName, ErrNotFound)
	}
	return created, nil
}

// UpdatePermission rewrites a catalog entry.
func (r *Repository) UpdatePermission(ctx context.Context, p Permission) (Permission, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE permissions
		 SET name = $2, description = $3, module = $4, action = $5, level = $6, scope = $7, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+permissionColumns,
		p.ID, p.Name, p.Description, p.Module, p.Action, p.Level, p.Scope)
	updated, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrNotFound
		}
		return Permission{}, translateConstraint(err, ErrDuplicateName, ErrNotFound)
	}
	return updated, nil
}

// DeletePermission removes a catalog entry.
func (r *Repository) DeletePermission(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		// Grants reference permissions with RESTRICT, so a race between the
		// service pre-check and this delete still cannot dangle a grant.
		return translateConstraint(err, ErrStillReferenced, ErrStillReferenced)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountGrantsForPermission reports how many grants reference the permission.
func (r *Repository) CountGrantsForPermission(ctx context.Context, permissionID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM role_permissions WHERE permission_id = $1`, permissionID).Scan(&count)
	return count, err
}

const roleColumns = `id, name, description, is_system, created_at, updated_at`

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	return scanRole(row)
}

// GetRoleByName fetches a role by its unique name.
func (r *Repository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
	return scanRole(row)
}

// CreateRole inserts a role.
func (r *Repository) CreateRole(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, description, is_system)
		 VALUES ($1, $2, $3)
		 RETURNING `+roleColumns,
		role.Name, role.Description, role.IsSystem)
	created, err := scanRole(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Role{}, err
		}
		return Role{}, translateConstraint(err, ErrDuplicateName, ErrNotFound)
	}
	return created, nil
}

// UpdateRole rewrites name and description of a role.
func (r *Repository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+roleColumns,
		role.ID, role.Name, role.Description)
	updated, err := scanRole(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Role{}, err
		}
		return Role{}, translateConstraint(err, ErrDuplicateName, ErrNotFound)
	}
	return updated, nil
}

// DeleteRole removes a role. Users bound to it fall back to no role via the
// users.role_id ON DELETE SET NULL constraint.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateGrant inserts a (role, permission) pair.
func (r *Repository) CreateGrant(ctx context.Context, roleID, permissionID int64) (Grant, error) {
	var grant Grant
	err := r.pool.QueryRow(ctx,
		`INSERT INTO role_permissions (role_id, permission_id)
		 VALUES ($1, $2)
		 RETURNING id, role_id, permission_id, created_at`,
		roleID, permissionID).
		Scan(&grant.ID, &grant.RoleID, &grant.PermissionID, &grant.CreatedAt)
	if err != nil {
		return Grant{}, translateConstraint(err, ErrAlreadyGranted, ErrNotFound)
	}
	return grant, nil
}

// GetGrant fetches a grant by ID.
func (r *Repository) GetGrant(ctx context.Context, id int64) (Grant, error) {
	var grant Grant
	err := r.pool.QueryRow(ctx,
		`SELECT id, role_id, permission_id, created_at FROM role_permissions WHERE id = $1`, id).
		Scan(&grant.ID, &grant.RoleID, &grant.PermissionID, &grant.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Grant{}, ErrNotFound
		}
		return Grant{}, err
	}
	return grant, nil
}

// DeleteGrant removes exactly one (role, permission) pairing by grant ID.
func (r *Repository) DeleteGrant(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM role_permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListGrants returns the grants of a role.
func (r *Repository) ListGrants(ctx context.Context, roleID int64) ([]Grant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, role_id, permission_id, created_at FROM role_permissions WHERE role_id = $1 ORDER BY id`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var grant Grant
		if err := rows.Scan(&grant.ID, &grant.RoleID, &grant.PermissionID, &grant.CreatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

// ListRolePermissions returns the permission rows granted to a role.
func (r *Repository) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name, p.description, p.module, p.action, p.level, p.scope, p.created_at, p.updated_at
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = $1
		 ORDER BY p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// UserBinding resolves the role bound to a user. It returns (nil, nil) when
// the user exists but carries no role, and ErrNotFound when the user is gone.
func (r *Repository) UserBinding(ctx context.Context, userID int64) (*Role, error) {
	var roleID *int64
	err := r.pool.QueryRow(ctx, `SELECT role_id FROM users WHERE id = $1`, userID).Scan(&roleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if roleID == nil {
		return nil, nil
	}
	role, err := r.GetRole(ctx, *roleID)
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// AssignUserRole overwrites the user's role binding.
func (r *Repository) AssignUserRole(ctx context.Context, userID, roleID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role_id = $2, updated_at = NOW() WHERE id = $1`, userID, roleID)
	if err != nil {
		return translateConstraint(err, ErrNotFound, ErrNotFound)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearUserRole detaches the user from any role.
func (r *Repository) ClearUserRole(ctx context.Context, userID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role_id = NULL, updated_at = NOW() WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Module, &p.Action, &p.Level, &p.Scope, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Module, &p.Action, &p.Level, &p.Scope, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// translateConstraint maps Postgres constraint violations to sentinel errors.
// 23505 (unique_violation) becomes onUnique; 23503 (foreign_key_violation)
// becomes onForeignKey. Inserts hit 23503 on missing referents, deletes hit it
// when other rows still point at the target.
func translateConstraint(err error, onUnique, onForeignKey error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return onUnique
		case "23503":
			return onForeignKey
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
