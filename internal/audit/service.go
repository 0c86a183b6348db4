package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strconv"

	"github.com/meridian-crm/meridian/internal/shared"
)

// RepositoryPort defines data access methods for the audit trail.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Entry, int, error)
}

// Service exposes the read-only audit timeline.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns entries matching the filter along with pagination metadata.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Entry, shared.Pagination, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return entries, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// exportPageSize bounds a single export query; pages are walked until the
// repository runs dry.
const exportPageSize = 500

// ExportCSV renders all entries matching the filter as a CSV document.
func (s *Service) ExportCSV(ctx context.Context, filter ListFilter) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"occurred_at", "actor_id", "actor_email", "action", "entity", "entity_id", "meta"}); err != nil {
		return nil, err
	}

	filter.PerPage = exportPageSize
	for page := 1; ; page++ {
		filter.Page = page
		entries, _, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			email := ""
			if e.ActorEmail != nil {
				email = *e.ActorEmail
			}
			meta := ""
			if len(e.Meta) > 0 {
				raw, err := json.Marshal(e.Meta)
				if err != nil {
					return nil, err
				}
				meta = string(raw)
			}
			record := []string{
				e.OccurredAt.UTC().Format("2006-01-02 15:04:05"),
				strconv.FormatInt(e.ActorID, 10),
				email,
				e.Action,
				e.Entity,
				e.EntityID,
				meta,
			}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
		if len(entries) < exportPageSize {
			break
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
