package org

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/meridian-crm/meridian/internal/shared"
)

// RepositoryPort defines data access methods for the org structure.
type RepositoryPort interface {
	ListDepartments(ctx context.Context) ([]Department, error)
	GetDepartment(ctx context.Context, id int64) (Department, error)
	CreateDepartment(ctx context.Context, d Department) (Department, error)
	UpdateDepartment(ctx context.Context, d Department) (Department, error)
	DeleteDepartment(ctx context.Context, id int64) error
	ListTeams(ctx context.Context, departmentID *int64) ([]Team, error)
	GetTeam(ctx context.Context, id int64) (Team, error)
	CreateTeam(ctx context.Context, t Team) (Team, error)
	UpdateTeam(ctx context.Context, t Team) (Team, error)
	DeleteTeam(ctx context.Context, id int64) error
}

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages departments and teams. Team membership drives the
// team-scoped permission checks, so mutations here are audited.
type Service struct {
	repo   RepositoryPort
	audit  AuditRecorder
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// ListDepartments returns all departments.
func (s *Service) ListDepartments(ctx context.Context) ([]Department, error) {
	return s.repo.ListDepartments(ctx)
}

// GetDepartment fetches one department.
func (s *Service) GetDepartment(ctx context.Context, id int64) (Department, error) {
	return s.repo.GetDepartment(ctx, id)
}

// CreateDepartment registers a department.
func (s *Service) CreateDepartment(ctx context.Context, actorID int64, d Department) (Department, error) {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return Department{}, fmt.Errorf("%w: name required", ErrInvalid)
	}
	created, err := s.repo.CreateDepartment(ctx, d)
	if err != nil {
		return Department{}, err
	}
	s.record(ctx, actorID, "department.create", "department", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

// UpdateDepartment rewrites a department.
func (s *Service) UpdateDepartment(ctx context.Context, actorID int64, d Department) (Department, error) {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return Department{}, fmt.Errorf("%w: name required", ErrInvalid)
	}
	updated, err := s.repo.UpdateDepartment(ctx, d)
	if err != nil {
		return Department{}, err
	}
	s.record(ctx, actorID, "department.update", "department", updated.ID, nil)
	return updated, nil
}

// DeleteDepartment removes a department.
func (s *Service) DeleteDepartment(ctx context.Context, actorID, id int64) error {
	if err := s.repo.DeleteDepartment(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "department.delete", "department", id, nil)
	return nil
}

// ListTeams returns teams, optionally narrowed to a department.
func (s *Service) ListTeams(ctx context.Context, departmentID *int64) ([]Team, error) {
	return s.repo.ListTeams(ctx, departmentID)
}

// GetTeam fetches one team.
func (s *Service) GetTeam(ctx context.Context, id int64) (Team, error) {
	return s.repo.GetTeam(ctx, id)
}

// CreateTeam registers a team under a department.
func (s *Service) CreateTeam(ctx context.Context, actorID int64, t Team) (Team, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return Team{}, fmt.Errorf("%w: name required", ErrInvalid)
	}
	if t.DepartmentID == 0 {
		return Team{}, fmt.Errorf("%w: department_id required", ErrInvalid)
	}
	created, err := s.repo.CreateTeam(ctx, t)
	if err != nil {
		return Team{}, err
	}
	s.record(ctx, actorID, "team.create", "team", created.ID, map[string]any{"name": created.Name, "department_id": created.DepartmentID})
	return created, nil
}

// UpdateTeam rewrites a team.
func (s *Service) UpdateTeam(ctx context.Context, actorID int64, t Team) (Team, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return Team{}, fmt.Errorf("%w: name required", ErrInvalid)
	}
	if t.DepartmentID == 0 {
		return Team{}, fmt.Errorf("%w: department_id required", ErrInvalid)
	}
	updated, err := s.repo.UpdateTeam(ctx, t)
	if err != nil {
		return Team{}, err
	}
	s.record(ctx, actorID, "team.update", "team", updated.ID, nil)
	return updated, nil
}

// DeleteTeam removes a team.
func (s *Service) DeleteTeam(ctx context.Context, actorID, id int64) error {
	if err := s.repo.DeleteTeam(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "team.delete", "team", id, nil)
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
