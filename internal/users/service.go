package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-crm/meridian/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Profile, int, error)
	Get(ctx context.Context, id int64) (Profile, error)
	GetByEmail(ctx context.Context, email string) (Profile, error)
	Create(ctx context.Context, p Profile, passwordHash string) (Profile, error)
	Update(ctx context.Context, p Profile) (Profile, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles user account management. New accounts start with no role
// bound; a privileged actor grants one afterwards through the rbac service.
type Service struct {
	repo   RepositoryPort
	audit  AuditRecorder
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// List returns users matching the filter along with pagination metadata.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Profile, shared.Pagination, error) {
	profiles, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return profiles, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Get fetches a user by ID.
func (s *Service) Get(ctx context.Context, id int64) (Profile, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a new account.
func (s *Service) Create(ctx context.Context, actorID int64, p Profile, password string) (Profile, error) {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Name = strings.TrimSpace(p.Name)
	if p.Email == "" {
		return Profile{}, fmt.Errorf("%w: email required", ErrInvalid)
	}
	if p.Name == "" {
		return Profile{}, fmt.Errorf("%w: name required", ErrInvalid)
	}
	if len(password) < 8 {
		return Profile{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalid)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Profile{}, err
	}
	p.IsActive = true
	created, err := s.repo.Create(ctx, p, string(hash))
	if err != nil {
		return Profile{}, err
	}
	s.record(ctx, actorID, "user.create", created.ID, map[string]any{"email": created.Email})
	return created, nil
}

// Update rewrites profile fields.
func (s *Service) Update(ctx context.Context, actorID int64, p Profile) (Profile, error) {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Name = strings.TrimSpace(p.Name)
	if p.Email == "" || p.Name == "" {
		return Profile{}, fmt.Errorf("%w: email and name required", ErrInvalid)
	}
	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		return Profile{}, err
	}
	s.record(ctx, actorID, "user.update", updated.ID, nil)
	return updated, nil
}

// SetActive toggles the account.
func (s *Service) SetActive(ctx context.Context, actorID, id int64, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.record(ctx, actorID, "user.set_active", id, map[string]any{"active": active})
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "audit record", slog.Any("error", err), slog.String("action", action))
	}
}
