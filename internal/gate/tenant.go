package gate

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tenancy/internal/tenancy"
)

// ResolveTenant attaches the tenant handle for the authenticated tenant. The
// handle is nil for the platform tenant when the caller may bypass its store.
func (g *Gate) ResolveTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, ok := g.current(w, r, StageTenant)
		if !ok {
			return
		}
		h, err := g.tenants.Resolve(r.Context(), req.TenantID.String(), req.Role)
		switch {
		case err == nil:
		case errors.Is(err, tenancy.ErrInvalidTenantID):
			g.reject(w, StageTenant, httpx.Fail(httpx.ErrUnauthorized, "INVALID_TENANT", "tenant id is not valid"))
			return
		case errors.Is(err, tenancy.ErrTenantNotFound):
			g.reject(w, StageTenant, httpx.Fail(httpx.ErrNotFound, "TENANT_NOT_FOUND", "tenant not found"))
			return
		case errors.Is(err, tenancy.ErrTenantInactive):
			g.reject(w, StageTenant, httpx.Fail(httpx.ErrForbidden, "TENANT_INACTIVE", "tenant is not active"))
			return
		case errors.Is(err, tenancy.ErrTenantMisconfigured):
			g.metrics.GateRejected(StageTenant, "MISCONFIGURED")
			httpx.RespondError(w, httpx.ErrMisconfigured)
			return
		default:
			g.fail(w, r, StageTenant, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithRequest(r.Context(), req.withTenant(h))))
	})
}
