package rbac

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian/internal/shared"
)

func handlerFixture(t *testing.T, allowElevation bool) (*mockRepository, http.Handler) {
	t.Helper()
	repo := newMockRepository()
	authz := NewAuthorizer(repo, nil, nil, nil)
	svc := NewService(repo, nil, nil, nil)
	h := NewHandler(nil, svc, authz, Middleware{Authz: authz}, allowElevation)

	r := chi.NewRouter()
	r.Route("/api/rbac", h.MountRoutes)
	return repo, r
}

func adminContext(repo *mockRepository) context.Context {
	admin := repo.addRole(RoleSuperAdmin, true)
	repo.addUser(1)
	repo.bindings[1] = admin.ID
	return shared.ContextWithPrincipal(context.Background(), shared.Principal{UserID: 1, Email: "admin@meridian.local"})
}

func doJSON(t *testing.T, handler http.Handler, ctx context.Context, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestGrantEndpointConflictOnDuplicate(t *testing.T) {
	repo, handler := handlerFixture(t, false)
	ctx := adminContext(repo)
	role := repo.addRole("ops", false)
	perm := repo.addPermission("leads.view", "leads", "view", ScopeAll)

	body := `{"permission_id": ` + jsonID(perm.ID) + `}`
	rr := doJSON(t, handler, ctx, http.MethodPost, "/api/rbac/roles/"+jsonID(role.ID)+"/grants", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = doJSON(t, handler, ctx, http.MethodPost, "/api/rbac/roles/"+jsonID(role.ID)+"/grants", body)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "Already Granted")
}

func TestDeleteSystemRoleEndpointConflict(t *testing.T) {
	repo, handler := handlerFixture(t, false)
	ctx := adminContext(repo)
	system := repo.addRole(RoleSales, true)

	rr := doJSON(t, handler, ctx, http.MethodDelete, "/api/rbac/roles/"+jsonID(system.ID), "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "System Role Protected")
}

func TestDeletePermissionEndpointConflictWhenReferenced(t *testing.T) {
	repo, handler := handlerFixture(t, false)
	ctx := adminContext(repo)
	role := repo.addRole("ops", false)
	perm := repo.addPermission("leads.view", "leads", "view", ScopeAll)
	_, err := repo.CreateGrant(context.Background(), role.ID, perm.ID)
	require.NoError(t, err)

	rr := doJSON(t, handler, ctx, http.MethodDelete, "/api/rbac/permissions/"+jsonID(perm.ID), "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "Permission In Use")
}

func TestCheckEndpoint(t *testing.T) {
	repo, handler := handlerFixture(t, false)
	sales := repo.addRole(RoleSales, true)
	perm := repo.addPermission("leads.view", "leads", "view", ScopeAll)
	repo.addUser(2)
	repo.bindings[2] = sales.ID
	_, err := repo.CreateGrant(context.Background(), sales.ID, perm.ID)
	require.NoError(t, err)
	ctx := shared.ContextWithPrincipal(context.Background(), shared.Principal{UserID: 2, Email: "sales@meridian.local"})

	rr := doJSON(t, handler, ctx, http.MethodPost, "/api/rbac/check", `{"permission": "leads.view"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var result map[string]bool
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.True(t, result["allowed"])

	rr = doJSON(t, handler, ctx, http.MethodPost, "/api/rbac/check", `{"permission": "leads.delete"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.False(t, result["allowed"])

	rr = doJSON(t, handler, ctx, http.MethodPost, "/api/rbac/check", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestElevateEndpointOnlyMountedWhenEnabled(t *testing.T) {
	repo, handler := handlerFixture(t, false)
	repo.addRole(RoleSuperAdmin, true)
	repo.addUser(2)
	ctx := shared.ContextWithPrincipal(context.Background(), shared.Principal{UserID: 2})

	rr := doJSON(t, handler, ctx, http.MethodPost, "/api/rbac/elevate", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	repo2, enabled := handlerFixture(t, true)
	repo2.addRole(RoleSuperAdmin, true)
	repo2.addUser(2)
	ctx = shared.ContextWithPrincipal(context.Background(), shared.Principal{UserID: 2})

	rr = doJSON(t, enabled, ctx, http.MethodPost, "/api/rbac/elevate", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	role, err := repo2.UserBinding(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, role)
	assert.Equal(t, RoleSuperAdmin, role.Name)
}

func TestMePermissionsEndpoint(t *testing.T) {
	repo, handler := handlerFixture(t, false)
	sales := repo.addRole(RoleSales, true)
	perm := repo.addPermission("leads.view", "leads", "view", ScopeAll)
	repo.addUser(2)
	repo.bindings[2] = sales.ID
	_, err := repo.CreateGrant(context.Background(), sales.ID, perm.ID)
	require.NoError(t, err)
	ctx := shared.ContextWithPrincipal(context.Background(), shared.Principal{UserID: 2, Email: "sales@meridian.local"})

	rr := doJSON(t, handler, ctx, http.MethodGet, "/api/rbac/me/permissions", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var payload struct {
		Email       string   `json:"email"`
		Role        string   `json:"role"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, "sales@meridian.local", payload.Email)
	assert.Equal(t, RoleSales, payload.Role)
	assert.Equal(t, []string{"leads.view"}, payload.Permissions)
}

func jsonID(id int64) string {
	return strconv.FormatInt(id, 10)
}
