package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const profileColumns = `u.id, u.email, u.name, u.role_id, r.name, u.is_active, u.department_id, u.team_id, u.created_at, u.updated_at, u.last_login_at`

const profileFrom = ` FROM users u LEFT JOIN roles r ON r.id = u.role_id`

// List returns users matching the filter plus the unfiltered total.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Profile, int, error) {
	where := ` WHERE ($1::bigint IS NULL OR u.department_id = $1)
		AND ($2::bigint IS NULL OR u.team_id = $2)
		AND ($3::boolean IS NULL OR u.is_active = $3)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+profileFrom+where,
		filter.DepartmentID, filter.TeamID, filter.IsActive).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+profileColumns+profileFrom+where+` ORDER BY u.id LIMIT $4 OFFSET $5`,
		filter.DepartmentID, filter.TeamID, filter.IsActive, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Email, &p.Name, &p.RoleID, &p.RoleName, &p.IsActive, &p.DepartmentID, &p.TeamID, &p.CreatedAt, &p.UpdatedAt, &p.LastLoginAt); err != nil {
			return nil, 0, err
		}
		profiles = append(profiles, p)
	}
	return profiles, total, rows.Err()
}

// Get fetches a user by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Profile, error) {
	return r.getWhere(ctx, `u.id = $1`, id)
}

// GetByEmail fetches a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (Profile, error) {
	return r.getWhere(ctx, `u.email = $1`, email)
}

func (r *Repository) getWhere(ctx context.Context, cond string, arg any) (Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, `SELECT `+profileColumns+profileFrom+` WHERE `+cond, arg).
		Scan(&p.ID, &p.Email, &p.Name, &p.RoleID, &p.RoleName, &p.IsActive, &p.DepartmentID, &p.TeamID, &p.CreatedAt, &p.UpdatedAt, &p.LastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

// Create inserts a user with a hashed password and no role binding.
func (r *Repository) Create(ctx context.Context, p Profile, passwordHash string) (Profile, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, password_hash, is_active, department_id, team_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		p.Email, p.Name, passwordHash, p.IsActive, p.DepartmentID, p.TeamID).Scan(&id)
	if err != nil {
		return Profile{}, translateConstraint(err)
	}
	return r.Get(ctx, id)
}

// Update rewrites profile fields. Role bindings change through the rbac
// service only.
func (r *Repository) Update(ctx context.Context, p Profile) (Profile, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET email = $2, name = $3, department_id = $4, team_id = $5, updated_at = NOW()
		 WHERE id = $1`,
		p.ID, p.Email, p.Name, p.DepartmentID, p.TeamID)
	if err != nil {
		return Profile{}, translateConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return Profile{}, ErrNotFound
	}
	return r.Get(ctx, p.ID)
}

// SetActive toggles the account's active flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func translateConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrDuplicateEmail
		case "23503":
			return ErrNotFound
		}
	}
	return err
}
