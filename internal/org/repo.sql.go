package org

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

// ListDepartments returns all departments ordered by name.
func (r *Repository) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at, updated_at FROM departments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var departments []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		departments = append(departments, d)
	}
	return departments, rows.Err()
}

// GetDepartment fetches a department by ID.
func (r *Repository) GetDepartment(ctx context.Context, id int64) (Department, error) {
	var d Department
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM departments WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Department{}, ErrNotFound
		}
		return Department{}, err
	}
	return d, nil
}

// CreateDepartment inserts a department.
func (r *Repository) CreateDepartment(ctx context.Context, d Department) (Department, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO departments (name, description) VALUES ($1, $2) RETURNING id, created_at, updated_at`,
		d.Name, d.Description).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return Department{}, translateConstraint(err)
	}
	return d, nil
}

// UpdateDepartment rewrites a department.
func (r *Repository) UpdateDepartment(ctx context.Context, d Department) (Department, error) {
	err := r.pool.QueryRow(ctx,
		`UPDATE departments SET name = $2, description = $3, updated_at = NOW() WHERE id = $1 RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Description).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Department{}, ErrNotFound
		}
		return Department{}, translateConstraint(err)
	}
	return d, nil
}

// DeleteDepartment removes a department and detaches its users and teams via
// ON DELETE SET NULL / CASCADE constraints.
func (r *Repository) DeleteDepartment(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTeams returns teams, optionally narrowed to one department.
func (r *Repository) ListTeams(ctx context.Context, departmentID *int64) ([]Team, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, department_id, name, manager_id, created_at, updated_at
		 FROM teams WHERE ($1::bigint IS NULL OR department_id = $1) ORDER BY name`, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var teams []Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.DepartmentID, &t.Name, &t.ManagerID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// GetTeam fetches a team by ID.
func (r *Repository) GetTeam(ctx context.Context, id int64) (Team, error) {
	var t Team
	err := r.pool.QueryRow(ctx,
		`SELECT id, department_id, name, manager_id, created_at, updated_at FROM teams WHERE id = $1`, id).
		Scan(&t.ID, &t.DepartmentID, &t.Name, &t.ManagerID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Team{}, ErrNotFound
		}
		return Team{}, err
	}
	return t, nil
}

// CreateTeam inserts a team.
func (r *Repository) CreateTeam(ctx context.Context, t Team) (Team, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO teams (department_id, name, manager_id) VALUES ($1, $2, $3) RETURNING id, created_at, updated_at`,
		t.DepartmentID, t.Name, t.ManagerID).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Team{}, translateConstraint(err)
	}
	return t, nil
}

// UpdateTeam rewrites a team.
func (r *Repository) UpdateTeam(ctx context.Context, t Team) (Team, error) {
	err := r.pool.QueryRow(ctx,
		`UPDATE teams SET department_id = $2, name = $3, manager_id = $4, updated_at = NOW() WHERE id = $1 RETURNING created_at, updated_at`,
		t.ID, t.DepartmentID, t.Name, t.ManagerID).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Team{}, ErrNotFound
		}
		return Team{}, translateConstraint(err)
	}
	return t, nil
}

// DeleteTeam removes a team.
func (r *Repository) DeleteTeam(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
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
			return ErrDuplicateName
		case "23503":
			return ErrNotFound
		}
	}
	return err
}
