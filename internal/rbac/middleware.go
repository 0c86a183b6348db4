package rbac

import (
	"log/slog"
	"net/http"

	"github.com/meridian-crm/meridian/internal/platform/httpx"
	"github.com/meridian-crm/meridian/internal/shared"
)

// Middleware is the gate in front of protected routes. A request is either
// granted (handed to the next handler) or denied (answered with a panel-style
// payload describing the caller); a check that cannot be positively confirmed
// counts as denied, never as a server error.
type Middleware struct {
	Authz  *Authorizer
	Logger *slog.Logger
}

// DeniedResponse is the body of a 403 from the gate. It mirrors the access
// denied panel of the front-end: who the caller is and which role was
// resolved for them.
type DeniedResponse struct {
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Permission string `json:"permission"`
}

// RequirePermission gates the wrapped routes behind a named permission.
func (m Middleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return m.require(permission, func(r *http.Request, p shared.Principal) bool {
		return m.Authz.Check(r.Context(), p.UserID, permission)
	})
}

// RequireScoped gates the wrapped routes behind a module.action.scope key.
func (m Middleware) RequireScoped(module, action string, scope Scope) func(http.Handler) http.Handler {
	key := ScopedKey(module, action, scope)
	return m.require(key, func(r *http.Request, p shared.Principal) bool {
		return m.Authz.CheckScoped(r.Context(), p.UserID, module, action, scope)
	})
}

// RequireAuthenticated only demands a logged-in caller, with no permission
// lookup. Used for self-service endpoints such as the permission self-check.
func (m Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.PrincipalFromContext(r.Context()); !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) require(permission string, allowed func(*http.Request, shared.Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			if allowed(r, principal) {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, r, principal, permission)
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, principal shared.Principal, permission string) {
	roleName := ""
	if role := m.Authz.ResolveRole(r.Context(), principal.UserID); role != nil {
		roleName = role.Name
	}
	if m.Logger != nil {
		m.Logger.InfoContext(r.Context(), "access denied",
			slog.Int64("user_id", principal.UserID),
			slog.String("permission", permission),
			slog.String("role", roleName))
	}
	httpx.JSON(w, http.StatusForbidden, DeniedResponse{
		Title:      "Access Denied",
		Status:     http.StatusForbidden,
		Email:      principal.Email,
		Role:       roleName,
		Permission: permission,
	})
}
