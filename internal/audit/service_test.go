package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	entries []Entry
}

func (m *mockRepository) List(ctx context.Context, filter ListFilter) ([]Entry, int, error) {
	var matched []Entry
	for _, e := range m.entries {
		if filter.ActorID != nil && e.ActorID != *filter.ActorID {
			continue
		}
		if filter.Entity != "" && e.Entity != filter.Entity {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		matched = append(matched, e)
	}
	total := len(matched)

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * perPage
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + perPage
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func TestListPaginates(t *testing.T) {
	repo := &mockRepository{}
	for i := 0; i < 45; i++ {
		repo.entries = append(repo.entries, Entry{ID: int64(i + 1), ActorID: 1, Action: "role.update", Entity: "role", EntityID: "1"})
	}
	svc := NewService(repo)

	entries, pagination, err := svc.List(context.Background(), ListFilter{Page: 2, PerPage: 20})
	require.NoError(t, err)
	assert.Len(t, entries, 20)
	assert.Equal(t, 45, pagination.Total)
	assert.Equal(t, 3, pagination.TotalPages)
}

func TestListFilters(t *testing.T) {
	actor := int64(2)
	repo := &mockRepository{entries: []Entry{
		{ID: 1, ActorID: 1, Action: "role.update", Entity: "role", EntityID: "1"},
		{ID: 2, ActorID: 2, Action: "user.assign_role", Entity: "user", EntityID: "7"},
	}}
	svc := NewService(repo)

	entries, _, err := svc.List(context.Background(), ListFilter{ActorID: &actor})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "user.assign_role", entries[0].Action)

	entries, _, err = svc.List(context.Background(), ListFilter{Entity: "role"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ID)
}

func TestExportCSVWalksAllPages(t *testing.T) {
	email := "admin@meridian.local"
	repo := &mockRepository{}
	for i := 0; i < exportPageSize+3; i++ {
		repo.entries = append(repo.entries, Entry{
			ID:         int64(i + 1),
			ActorID:    1,
			ActorEmail: &email,
			Action:     "grant.create",
			Entity:     "grant",
			EntityID:   "9",
			Meta:       map[string]any{"role_id": 3},
			OccurredAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		})
	}
	svc := NewService(repo)

	data, err := svc.ExportCSV(context.Background(), ListFilter{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, exportPageSize+4) // header + all rows
	assert.Equal(t, "occurred_at,actor_id,actor_email,action,entity,entity_id,meta", lines[0])
	assert.Contains(t, lines[1], "2026-05-01 12:00:00")
	assert.Contains(t, lines[1], "admin@meridian.local")
	assert.Contains(t, lines[1], "grant.create")
}
