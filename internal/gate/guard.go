package gate

import (
	"context"
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/roles"
)

// RequireRoleLevel admits callers ranking at or above required in the role hierarchy.
// Bypass roles get no special treatment here; their level decides.
func (g *Gate) RequireRoleLevel(required rbac.SystemRole) func(http.Handler) http.Handler {
	return g.authorize("role:"+required.Code(), false, func(role rbac.Role) bool {
		return rbac.HasRoleLevel(role, required)
	})
}

// RequirePermission admits callers granted action on resource.
func (g *Gate) RequirePermission(resource rbac.Resource, action rbac.Action) func(http.Handler) http.Handler {
	return g.authorize(string(resource)+":"+action.String(), true, func(role rbac.Role) bool {
		return rbac.HasPermission(role, resource, action)
	})
}

// RequireModule admits callers holding any permission inside module.
func (g *Gate) RequireModule(module rbac.Module) func(http.Handler) http.Handler {
	return g.authorize("module:"+string(module), true, func(role rbac.Role) bool {
		return rbac.HasModuleAccess(role, module)
	})
}

// RequireSpecial admits callers holding the special capability.
func (g *Gate) RequireSpecial(c rbac.Capability) func(http.Handler) http.Handler {
	return g.authorize(string(c), true, func(role rbac.Role) bool {
		return rbac.HasSpecialCapability(role, c)
	})
}

func (g *Gate) authorize(required string, bypass bool, allowed func(rbac.Role) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, ok := g.current(w, r, StageAuthorize)
			if !ok {
				return
			}
			if bypass && rbac.IsBypassRole(req.Role) {
				next.ServeHTTP(w, r)
				return
			}
			role, err := g.roleOf(r.Context(), req)
			if err != nil {
				g.fail(w, r, StageAuthorize, err)
				return
			}
			if !allowed(role) {
				g.reject(w, StageAuthorize, httpx.Fail(httpx.ErrForbidden, "FORBIDDEN", "insufficient permissions").
					With("required", required).
					With("role", req.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// roleOf resolves the caller's role descriptor. Unknown and inactive roles
// resolve to the zero role, which grants nothing.
func (g *Gate) roleOf(ctx context.Context, req Request) (rbac.Role, error) {
	role, err := g.roles.Resolve(ctx, req.TenantID, req.Role)
	if errors.Is(err, roles.ErrNotFound) || errors.Is(err, roles.ErrInactive) {
		return rbac.Role{}, nil
	}
	return role, err
}
