package org

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian/internal/shared"
)

type mockRepository struct {
	departments map[int64]Department
	teams       map[int64]Team
	nextDeptID  int64
	nextTeamID  int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		departments: make(map[int64]Department),
		teams:       make(map[int64]Team),
		nextDeptID:  1,
		nextTeamID:  1,
	}
}

func (m *mockRepository) ListDepartments(ctx context.Context) ([]Department, error) {
	var result []Department
	for _, d := range m.departments {
		result = append(result, d)
	}
	return result, nil
}

func (m *mockRepository) GetDepartment(ctx context.Context, id int64) (Department, error) {
	d, ok := m.departments[id]
	if !ok {
		return Department{}, ErrNotFound
	}
	return d, nil
}

func (m *mockRepository) CreateDepartment(ctx context.Context, d Department) (Department, error) {
	for _, existing := range m.departments {
		if existing.Name == d.Name {
			return Department{}, ErrDuplicateName
		}
	}
	d.ID = m.nextDeptID
	m.nextDeptID++
	m.departments[d.ID] = d
	return d, nil
}

func (m *mockRepository) UpdateDepartment(ctx context.Context, d Department) (Department, error) {
	if _, ok := m.departments[d.ID]; !ok {
		return Department{}, ErrNotFound
	}
	m.departments[d.ID] = d
	return d, nil
}

func (m *mockRepository) DeleteDepartment(ctx context.Context, id int64) error {
	if _, ok := m.departments[id]; !ok {
		return ErrNotFound
	}
	delete(m.departments, id)
	return nil
}

func (m *mockRepository) ListTeams(ctx context.Context, departmentID *int64) ([]Team, error) {
	var result []Team
	for _, t := range m.teams {
		if departmentID != nil && t.DepartmentID != *departmentID {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

func (m *mockRepository) GetTeam(ctx context.Context, id int64) (Team, error) {
	t, ok := m.teams[id]
	if !ok {
		return Team{}, ErrNotFound
	}
	return t, nil
}

func (m *mockRepository) CreateTeam(ctx context.Context, t Team) (Team, error) {
	if _, ok := m.departments[t.DepartmentID]; !ok {
		return Team{}, ErrNotFound
	}
	t.ID = m.nextTeamID
	m.nextTeamID++
	m.teams[t.ID] = t
	return t, nil
}

func (m *mockRepository) UpdateTeam(ctx context.Context, t Team) (Team, error) {
	if _, ok := m.teams[t.ID]; !ok {
		return Team{}, ErrNotFound
	}
	m.teams[t.ID] = t
	return t, nil
}

func (m *mockRepository) DeleteTeam(ctx context.Context, id int64) error {
	if _, ok := m.teams[id]; !ok {
		return ErrNotFound
	}
	delete(m.teams, id)
	return nil
}

type mockAudit struct {
	logs []shared.AuditLog
}

func (m *mockAudit) Record(ctx context.Context, log shared.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func TestCreateDepartmentValidatesName(t *testing.T) {
	repo := newMockRepository()
	audit := &mockAudit{}
	svc := NewService(repo, audit, nil)

	_, err := svc.CreateDepartment(context.Background(), 1, Department{Name: "   "})
	assert.ErrorIs(t, err, ErrInvalid)

	created, err := svc.CreateDepartment(context.Background(), 1, Department{Name: " Sales "})
	require.NoError(t, err)
	assert.Equal(t, "Sales", created.Name)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, "department.create", audit.logs[0].Action)
}

func TestCreateDepartmentDuplicate(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil, nil)

	_, err := svc.CreateDepartment(context.Background(), 1, Department{Name: "Sales"})
	require.NoError(t, err)

	_, err = svc.CreateDepartment(context.Background(), 1, Department{Name: "Sales"})
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestCreateTeamRequiresDepartment(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil, nil)

	_, err := svc.CreateTeam(context.Background(), 1, Team{Name: "Inbound"})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.CreateTeam(context.Background(), 1, Team{Name: "Inbound", DepartmentID: 999})
	assert.ErrorIs(t, err, ErrNotFound)

	dept, err := svc.CreateDepartment(context.Background(), 1, Department{Name: "Sales"})
	require.NoError(t, err)

	team, err := svc.CreateTeam(context.Background(), 1, Team{Name: "Inbound", DepartmentID: dept.ID})
	require.NoError(t, err)
	assert.Equal(t, dept.ID, team.DepartmentID)
}

func TestListTeamsFiltersByDepartment(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil, nil)

	sales, err := svc.CreateDepartment(context.Background(), 1, Department{Name: "Sales"})
	require.NoError(t, err)
	support, err := svc.CreateDepartment(context.Background(), 1, Department{Name: "Support"})
	require.NoError(t, err)

	_, err = svc.CreateTeam(context.Background(), 1, Team{Name: "Inbound", DepartmentID: sales.ID})
	require.NoError(t, err)
	_, err = svc.CreateTeam(context.Background(), 1, Team{Name: "Tier 1", DepartmentID: support.ID})
	require.NoError(t, err)

	all, err := svc.ListTeams(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := svc.ListTeams(context.Background(), &sales.ID)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "Inbound", scoped[0].Name)
}

func TestDeleteDepartmentAudited(t *testing.T) {
	repo := newMockRepository()
	audit := &mockAudit{}
	svc := NewService(repo, audit, nil)

	dept, err := svc.CreateDepartment(context.Background(), 1, Department{Name: "Sales"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDepartment(context.Background(), 1, dept.ID))
	assert.ErrorIs(t, svc.DeleteDepartment(context.Background(), 1, dept.ID), ErrNotFound)

	require.Len(t, audit.logs, 2)
	assert.Equal(t, "department.delete", audit.logs[1].Action)
}
