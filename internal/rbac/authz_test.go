package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/meridian-crm/meridian/internal/testing/guard"
)

type countingLookup struct {
	inner    LookupPort
	bindings int
	lists    int
}

func (c *countingLookup) UserBinding(ctx context.Context, userID int64) (*Role, error) {
	c.bindings++
	return c.inner.UserBinding(ctx, userID)
}

func (c *countingLookup) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	c.lists++
	return c.inner.ListRolePermissions(ctx, roleID)
}

func (c *countingLookup) ListPermissions(ctx context.Context) ([]Permission, error) {
	return c.inner.ListPermissions(ctx)
}

func newTestCache(t *testing.T) *DecisionCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewDecisionCache(client, time.Minute)
}

func TestCheckGrantedPermission(t *testing.T) {
	repo := newMockRepository()
	role := repo.addRole(RoleSales, true)
	perm := repo.addPermission("leads.view", "leads", "view", ScopeAll)
	repo.addUser(7)
	repo.bindings[7] = role.ID
	_, err := repo.CreateGrant(context.Background(), role.ID, perm.ID)
	require.NoError(t, err)

	authz := NewAuthorizer(repo, nil, nil, nil)

	assert.True(t, authz.Check(context.Background(), 7, "leads.view"))
	assert.True(t, authz.Check(context.Background(), 7, " LEADS.VIEW "))
	assert.False(t, authz.Check(context.Background(), 7, "leads.edit"))
}

func TestCheckSuperAdminOverride(t *testing.T) {
	repo := newMockRepository()
	admin := repo.addRole(RoleSuperAdmin, true)
	repo.addUser(7)
	repo.bindings[7] = admin.ID

	lookup := &countingLookup{inner: repo}
	authz := NewAuthorizer(lookup, nil, nil, nil)

	// No grants exist at all, yet the check passes and the grant table is
	// never consulted.
	assert.True(t, authz.Check(context.Background(), 7, "anything.at.all"))
	assert.Zero(t, lookup.lists)
}

func TestCheckDeniesWithoutBinding(t *testing.T) {
	repo := newMockRepository()
	repo.addUser(7)

	authz := NewAuthorizer(repo, nil, nil, nil)
	assert.False(t, authz.Check(context.Background(), 7, "leads.view"))
}

func TestCheckDeniesUnknownUser(t *testing.T) {
	repo := newMockRepository()
	authz := NewAuthorizer(repo, nil, nil, nil)

	assert.False(t, authz.Check(context.Background(), 99, "leads.view"))
	assert.False(t, authz.Check(context.Background(), 0, "leads.view"))
	assert.False(t, authz.Check(context.Background(), 7, ""))
}

func TestCheckFailsClosedOnInfraError(t *testing.T) {
	repo := newMockRepository()
	role := repo.addRole(RoleSales, true)
	perm := repo.addPermission("leads.view", "leads", "view", ScopeAll)
	repo.addUser(7)
	repo.bindings[7] = role.ID
	_, err := repo.CreateGrant(context.Background(), role.ID, perm.ID)
	require.NoError(t, err)

	cache := newTestCache(t)
	authz := NewAuthorizer(repo, cache, nil, nil)

	repo.bindingError = errors.New("pg down")
	assert.False(t, authz.Check(context.Background(), 7, "leads.view"))

	// The error denial was not cached: once the store recovers the same
	// check succeeds immediately.
	repo.bindingError = nil
	assert.True(t, authz.Check(context.Background(), 7, "leads.view"))
}

func TestCheckCachesDecisions(t *testing.T) {
	repo := newMockRepository()
	role := repo.addRole(RoleSales, true)
	perm := repo.addPermission("leads.view", "leads", "view", ScopeAll)
	repo.addUser(7)
	repo.bindings[7] = role.ID
	_, err := repo.CreateGrant(context.Background(), role.ID, perm.ID)
	require.NoError(t, err)

	lookup := &countingLookup{inner: repo}
	cache := newTestCache(t)
	authz := NewAuthorizer(lookup, cache, nil, nil)

	assert.True(t, authz.Check(context.Background(), 7, "leads.view"))
	resolved := lookup.bindings

	assert.True(t, authz.Check(context.Background(), 7, "leads.view"))
	assert.Equal(t, resolved, lookup.bindings, "second check should be served from cache")

	// Negative outcomes are cached too.
	assert.False(t, authz.Check(context.Background(), 7, "leads.edit"))
	misses := lookup.bindings
	assert.False(t, authz.Check(context.Background(), 7, "leads.edit"))
	assert.Equal(t, misses, lookup.bindings)
}

func TestInvalidateDisownsCachedDecisions(t *testing.T) {
	repo := newMockRepository()
	sales := repo.addRole(RoleSales, true)
	support := repo.addRole(RoleTechnicalSupport, true)
	leadsView := repo.addPermission("leads.view", "leads", "view", ScopeAll)
	repo.addUser(7)
	repo.bindings[7] = sales.ID
	_, err := repo.CreateGrant(context.Background(), sales.ID, leadsView.ID)
	require.NoError(t, err)

	cache := newTestCache(t)
	authz := NewAuthorizer(repo, cache, nil, nil)

	assert.True(t, authz.Check(context.Background(), 7, "leads.view"))

	// Reassign and invalidate, as the role service does after a mutation.
	repo.bindings[7] = support.ID
	require.NoError(t, authz.Invalidate(context.Background()))

	assert.False(t, authz.Check(context.Background(), 7, "leads.view"))
}

func TestCheckScopedExactMatch(t *testing.T) {
	repo := newMockRepository()
	role := repo.addRole(RoleSales, true)
	perm := repo.addPermission("leads.view.team", "leads", "view", ScopeTeam)
	repo.addUser(7)
	repo.bindings[7] = role.ID
	_, err := repo.CreateGrant(context.Background(), role.ID, perm.ID)
	require.NoError(t, err)

	authz := NewAuthorizer(repo, nil, nil, nil)

	assert.True(t, authz.CheckScoped(context.Background(), 7, "leads", "view", ScopeTeam))
	assert.False(t, authz.CheckScoped(context.Background(), 7, "leads", "view", ScopeAll))
	assert.False(t, authz.CheckScoped(context.Background(), 7, "leads", "view", "everyone"))
	assert.False(t, authz.CheckScoped(context.Background(), 7, "", "view", ScopeTeam))
}

func TestEffectivePermissions(t *testing.T) {
	repo := newMockRepository()
	admin := repo.addRole(RoleSuperAdmin, true)
	sales := repo.addRole(RoleSales, true)
	view := repo.addPermission("leads.view", "leads", "view", ScopeAll)
	repo.addPermission("tickets.view", "tickets", "view", ScopeAll)
	repo.addUser(1)
	repo.addUser(2)
	repo.addUser(3)
	repo.bindings[1] = admin.ID
	repo.bindings[2] = sales.ID
	_, err := repo.CreateGrant(context.Background(), sales.ID, view.ID)
	require.NoError(t, err)

	authz := NewAuthorizer(repo, nil, nil, nil)

	adminPerms, err := authz.EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, adminPerms, 2, "super_admin holds the whole catalog")

	salesPerms, err := authz.EffectivePermissions(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"leads.view"}, salesPerms)

	unbound, err := authz.EffectivePermissions(context.Background(), 3)
	require.NoError(t, err)
	assert.Nil(t, unbound)
}

func TestResolveRole(t *testing.T) {
	repo := newMockRepository()
	sales := repo.addRole(RoleSales, true)
	repo.addUser(7)
	repo.bindings[7] = sales.ID

	authz := NewAuthorizer(repo, nil, nil, nil)

	role := authz.ResolveRole(context.Background(), 7)
	require.NotNil(t, role)
	assert.Equal(t, RoleSales, role.Name)

	assert.Nil(t, authz.ResolveRole(context.Background(), 99))
}
