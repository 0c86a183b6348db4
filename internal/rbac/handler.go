package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-crm/meridian/internal/platform/httpx"
	"github.com/meridian-crm/meridian/internal/shared"
)

// Handler exposes the authorization model as JSON endpoints.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	authz          *Authorizer
	gate           Middleware
	validator      *validator.Validate
	allowElevation bool
}

// NewHandler builds Handler instance. allowElevation wires the development
// self-elevation endpoint; it must stay false in production.
func NewHandler(logger *slog.Logger, service *Service, authz *Authorizer, gate Middleware, allowElevation bool) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		authz:          authz,
		gate:           gate,
		validator:      validator.New(),
		allowElevation: allowElevation,
	}
}

// MountRoutes registers the rbac routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequirePermission(shared.PermPermissionsView))
		r.Get("/permissions", h.listPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequirePermission(shared.PermPermissionsManage))
		r.Post("/permissions", h.createPermission)
		r.Put("/permissions/{id}", h.updatePermission)
		r.Delete("/permissions/{id}", h.deletePermission)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequirePermission(shared.PermRolesView))
		r.Get("/roles", h.listRoles)
		r.Get("/roles/{id}", h.getRole)
		r.Get("/roles/{id}/permissions", h.listRolePermissions)
		r.Get("/roles/{id}/grants", h.listGrants)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequirePermission(shared.PermRolesManage))
		r.Post("/roles", h.createRole)
		r.Put("/roles/{id}", h.updateRole)
		r.Delete("/roles/{id}", h.deleteRole)
		r.Post("/roles/{id}/grants", h.grant)
		r.Delete("/grants/{id}", h.revoke)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequirePermission(shared.PermUsersManage))
		r.Put("/users/{id}/role", h.assignRole)
		r.Delete("/users/{id}/role", h.clearRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAuthenticated)
		r.Get("/me/permissions", h.myPermissions)
		r.Post("/check", h.check)
		if h.allowElevation {
			r.Post("/elevate", h.elevate)
		}
	})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

type permissionForm struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Module      string `json:"module" validate:"required"`
	Action      string `json:"action" validate:"required"`
	Level       string `json:"level" validate:"required"`
	Scope       string `json:"scope" validate:"required"`
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var form permissionForm
	if !h.decode(w, r, &form) {
		return
	}
	created, err := h.service.CreatePermission(r.Context(), h.actor(r), Permission{
		Name:        form.Name,
		Description: form.Description,
		Module:      form.Module,
		Action:      form.Action,
		Level:       Level(form.Level),
		Scope:       Scope(form.Scope),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var form permissionForm
	if !h.decode(w, r, &form) {
		return
	}
	updated, err := h.service.UpdatePermission(r.Context(), h.actor(r), Permission{
		ID:          id,
		Name:        form.Name,
		Description: form.Description,
		Module:      form.Module,
		Action:      form.Action,
		Level:       Level(form.Level),
		Scope:       Scope(form.Scope),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeletePermission(r.Context(), h.actor(r), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

type roleForm struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var form roleForm
	if !h.decode(w, r, &form) {
		return
	}
	created, err := h.service.CreateRole(r.Context(), h.actor(r), form.Name, form.Description)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var form roleForm
	if !h.decode(w, r, &form) {
		return
	}
	updated, err := h.service.UpdateRole(r.Context(), h.actor(r), id, form.Name, form.Description)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), h.actor(r), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	perms, err := h.service.ListRolePermissions(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	grants, err := h.service.ListGrants(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"grants": grants})
}

type grantForm struct {
	PermissionID int64 `json:"permission_id" validate:"required,gt=0"`
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var form grantForm
	if !h.decode(w, r, &form) {
		return
	}
	grant, err := h.service.Grant(r.Context(), h.actor(r), roleID, form.PermissionID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, grant)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Revoke(r.Context(), h.actor(r), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignRoleForm struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var form assignRoleForm
	if !h.decode(w, r, &form) {
		return
	}
	if err := h.service.AssignRole(r.Context(), h.actor(r), userID, form.RoleID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.ClearRole(r.Context(), h.actor(r), userID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	names, err := h.authz.EffectivePermissions(r.Context(), principal.UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	role := h.authz.ResolveRole(r.Context(), principal.UserID)
	roleName := ""
	if role != nil {
		roleName = role.Name
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"email":       principal.Email,
		"role":        roleName,
		"permissions": names,
	})
}

type checkForm struct {
	Permission string `json:"permission"`
	Module     string `json:"module"`
	Action     string `json:"action"`
	Scope      string `json:"scope"`
}

// check is the self-service permission probe the front-end gate consults
// before rendering protected UI.
func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	var form checkForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var allowed bool
	switch {
	case form.Permission != "":
		allowed = h.authz.Check(r.Context(), principal.UserID, form.Permission)
	case form.Module != "" && form.Action != "" && form.Scope != "":
		scope, err := ParseScope(form.Scope)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		allowed = h.authz.CheckScoped(r.Context(), principal.UserID, form.Module, form.Action, scope)
	default:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "permission or module/action/scope required")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

func (h *Handler) elevate(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	if err := h.service.ElevateToSuperAdmin(r.Context(), principal.UserID); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"role": RoleSuperAdmin})
}

func (h *Handler) actor(r *http.Request) int64 {
	principal, _ := shared.PrincipalFromContext(r.Context())
	return principal.UserID
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, form any) bool {
	if err := httpx.DecodeJSON(r, form); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateName):
		httpx.Problem(w, http.StatusConflict, "Duplicate Name", err.Error())
	case errors.Is(err, ErrAlreadyGranted):
		httpx.Problem(w, http.StatusConflict, "Already Granted", err.Error())
	case errors.Is(err, ErrSystemRole):
		httpx.Problem(w, http.StatusConflict, "System Role Protected", err.Error())
	case errors.Is(err, ErrStillReferenced):
		httpx.Problem(w, http.StatusConflict, "Permission In Use", err.Error())
	case errors.Is(err, ErrInvalid):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		if h.logger != nil {
			h.logger.ErrorContext(r.Context(), "rbac request failed", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
