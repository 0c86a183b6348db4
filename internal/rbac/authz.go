package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"
)

// LookupPort is the read surface the authorization gateway needs.
type LookupPort interface {
	UserBinding(ctx context.Context, userID int64) (*Role, error)
	ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
}

// CheckMetrics records authorization decisions. Implemented by
// observability.Metrics; a nil recorder disables instrumentation.
type CheckMetrics interface {
	ObserveAuthzCheck(outcome string, cacheHit bool)
}

// Authorizer is the single authorization gateway. Every enforcement point
// (HTTP middleware, the self-check endpoint, services) goes through Check or
// CheckScoped, so there is exactly one cache and one fail-closed policy.
type Authorizer struct {
	lookup  LookupPort
	cache   *DecisionCache
	logger  *slog.Logger
	metrics CheckMetrics
	group   singleflight.Group
}

// NewAuthorizer constructs the gateway. cache and metrics may be nil.
func NewAuthorizer(lookup LookupPort, cache *DecisionCache, logger *slog.Logger, metrics CheckMetrics) *Authorizer {
	return &Authorizer{lookup: lookup, cache: cache, logger: logger, metrics: metrics}
}

type decision struct {
	allowed   bool
	cacheable bool
}

// Check reports whether the user holds the named permission. Absence of the
// user, of a role binding, or of a matching grant is the normal negative case
// and returns false without error. Infrastructure failures are logged and
// also return false: no positive confirmation means denied.
func (a *Authorizer) Check(ctx context.Context, userID int64, permission string) bool {
	name := strings.ToLower(strings.TrimSpace(permission))
	if name == "" || userID <= 0 {
		return false
	}
	return a.check(ctx, userID, name, func(p Permission) bool {
		return strings.ToLower(p.Name) == name
	})
}

// CheckScoped reports whether the user holds a permission matching the
// module.action.scope key.
func (a *Authorizer) CheckScoped(ctx context.Context, userID int64, module, action string, scope Scope) bool {
	if userID <= 0 || !scope.Valid() {
		return false
	}
	key := ScopedKey(module, action, scope)
	if strings.HasPrefix(key, ".") || strings.Contains(key, "..") {
		return false
	}
	return a.check(ctx, userID, key, func(p Permission) bool {
		return p.ScopedKey() == key
	})
}

// ResolveRole returns the user's bound role, or nil when unbound, unknown, or
// unreachable. Used by the gate to describe the caller in denied responses.
func (a *Authorizer) ResolveRole(ctx context.Context, userID int64) *Role {
	role, err := a.lookup.UserBinding(ctx, userID)
	if err != nil {
		return nil
	}
	return role
}

// EffectivePermissions returns the permission names the user can exercise.
// A super_admin holds the entire catalog.
func (a *Authorizer) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	role, err := a.lookup.UserBinding(ctx, userID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, nil
	}
	var perms []Permission
	if role.Name == RoleSuperAdmin {
		perms, err = a.lookup.ListPermissions(ctx)
	} else {
		perms, err = a.lookup.ListRolePermissions(ctx, role.ID)
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name)
	}
	return names, nil
}

// Invalidate disowns every cached decision.
func (a *Authorizer) Invalidate(ctx context.Context) error {
	return a.cache.Bump(ctx)
}

func (a *Authorizer) check(ctx context.Context, userID int64, key string, match func(Permission) bool) bool {
	if allowed, ok := a.cache.Get(ctx, userID, key); ok {
		a.observe(allowed, true)
		return allowed
	}

	// Concurrent checks for the same (user, key) collapse into one lookup.
	resultChan := a.group.DoChan(fmt.Sprintf("%d:%s", userID, key), func() (interface{}, error) {
		return a.resolve(ctx, userID, key, match), nil
	})

	var dec decision
	select {
	case <-ctx.Done():
		a.observe(false, false)
		return false
	case res := <-resultChan:
		dec, _ = res.Val.(decision)
	}

	if dec.cacheable {
		a.cache.Set(ctx, userID, key, dec.allowed)
	}
	a.observe(dec.allowed, false)
	return dec.allowed
}

func (a *Authorizer) resolve(ctx context.Context, userID int64, key string, match func(Permission) bool) decision {
	role, err := a.lookup.UserBinding(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Missing user is the normal negative case.
			return decision{allowed: false, cacheable: true}
		}
		a.logError(ctx, "resolve user binding", err, userID, key)
		return decision{allowed: false, cacheable: false}
	}
	if role == nil {
		return decision{allowed: false, cacheable: true}
	}
	if role.Name == RoleSuperAdmin {
		// Intentional override: super_admin passes every check without
		// consulting the grant table.
		return decision{allowed: true, cacheable: true}
	}
	perms, err := a.lookup.ListRolePermissions(ctx, role.ID)
	if err != nil {
		a.logError(ctx, "resolve role permissions", err, userID, key)
		return decision{allowed: false, cacheable: false}
	}
	for _, p := range perms {
		if match(p) {
			return decision{allowed: true, cacheable: true}
		}
	}
	return decision{allowed: false, cacheable: true}
}

func (a *Authorizer) observe(allowed, cacheHit bool) {
	if a.metrics == nil {
		return
	}
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	a.metrics.ObserveAuthzCheck(outcome, cacheHit)
}

func (a *Authorizer) logError(ctx context.Context, msg string, err error, userID int64, key string) {
	if a.logger == nil {
		return
	}
	a.logger.ErrorContext(ctx, msg,
		slog.Any("error", err),
		slog.Int64("user_id", userID),
		slog.String("permission", key))
}
