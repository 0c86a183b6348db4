package org

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-crm/meridian/internal/platform/httpx"
	"github.com/meridian-crm/meridian/internal/rbac"
	"github.com/meridian-crm/meridian/internal/shared"
)

// Handler manages department and team endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	gate      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gate rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, gate: gate, validator: validator.New()}
}

// MountRoutes registers org routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequirePermission(shared.PermOrgView))
		r.Get("/departments", h.listDepartments)
		r.Get("/departments/{id}", h.getDepartment)
		r.Get("/teams", h.listTeams)
		r.Get("/teams/{id}", h.getTeam)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequirePermission(shared.PermOrgManage))
		r.Post("/departments", h.createDepartment)
		r.Put("/departments/{id}", h.updateDepartment)
		r.Delete("/departments/{id}", h.deleteDepartment)
		r.Post("/teams", h.createTeam)
		r.Put("/teams/{id}", h.updateTeam)
		r.Delete("/teams/{id}", h.deleteTeam)
	})
}

func (h *Handler) listDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.service.ListDepartments(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"departments": departments})
}

func (h *Handler) getDepartment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	department, err := h.service.GetDepartment(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, department)
}

type departmentForm struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (h *Handler) createDepartment(w http.ResponseWriter, r *http.Request) {
	var form departmentForm
	if !h.decode(w, r, &form) {
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	created, err := h.service.CreateDepartment(r.Context(), principal.UserID, Department{
		Name:        form.Name,
		Description: form.Description,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateDepartment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var form departmentForm
	if !h.decode(w, r, &form) {
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	updated, err := h.service.UpdateDepartment(r.Context(), principal.UserID, Department{
		ID:          id,
		Name:        form.Name,
		Description: form.Description,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteDepartment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	if err := h.service.DeleteDepartment(r.Context(), principal.UserID, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.service.ListTeams(r.Context(), queryInt64(r, "department_id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"teams": teams})
}

func (h *Handler) getTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	team, err := h.service.GetTeam(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, team)
}

type teamForm struct {
	DepartmentID int64  `json:"department_id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	ManagerID    *int64 `json:"manager_id"`
}

func (h *Handler) createTeam(w http.ResponseWriter, r *http.Request) {
	var form teamForm
	if !h.decode(w, r, &form) {
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	created, err := h.service.CreateTeam(r.Context(), principal.UserID, Team{
		DepartmentID: form.DepartmentID,
		Name:         form.Name,
		ManagerID:    form.ManagerID,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var form teamForm
	if !h.decode(w, r, &form) {
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	updated, err := h.service.UpdateTeam(r.Context(), principal.UserID, Team{
		ID:           id,
		DepartmentID: form.DepartmentID,
		Name:         form.Name,
		ManagerID:    form.ManagerID,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	if err := h.service.DeleteTeam(r.Context(), principal.UserID, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
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
	case errors.Is(err, ErrInvalid):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		if h.logger != nil {
			h.logger.ErrorContext(r.Context(), "org request failed", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func queryInt64(r *http.Request, key string) *int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &value
}
