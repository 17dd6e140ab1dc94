package gate

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tenancy/internal/schema"
	"github.com/odyssey-erp/odyssey-tenancy/internal/tenancy"
)

// RequireOwnership loads the entity named by the idParam route parameter and
// admits the request only when the record belongs to the caller's tenant. The
// loaded record is attached to the Request.
func (g *Gate) RequireOwnership(entity, idParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, ok := g.current(w, r, StageOwnership)
			if !ok {
				return
			}
			id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, idParam)))
			if err != nil {
				g.reject(w, StageOwnership, httpx.Fail(httpx.ErrValidation, "INVALID_ID", "resource id is not valid"))
				return
			}
			if !req.TenantResolved {
				g.fail(w, r, StageOwnership, fmt.Errorf("ownership check on %s without tenant resolution", entity))
				return
			}
			if req.Tenant == nil {
				g.reject(w, StageOwnership, httpx.Fail(httpx.ErrForbidden, "NO_TENANT_STORE", "tenant has no business data"))
				return
			}

			acc, err := g.accessors.AccessorFor(req.Tenant, entity)
			if err != nil {
				g.fail(w, r, StageOwnership, err)
				return
			}
			rec, err := acc.FindByID(r.Context(), id)
			switch {
			case errors.Is(err, schema.ErrRecordNotFound):
				g.reject(w, StageOwnership, httpx.Fail(httpx.ErrNotFound, "NOT_FOUND", "resource not found"))
				return
			case err != nil:
				if tenancy.IsConnectionError(err) && g.tenants.Evict(req.Tenant) {
					g.logger.Warn("evicted tenant handle after connection failure",
						slog.String("tenant", req.TenantID.String()))
				}
				g.fail(w, r, StageOwnership, err)
				return
			}
			owner, ok := acc.OwnerOf(rec)
			if !ok || owner != req.TenantID {
				g.reject(w, StageOwnership, httpx.Fail(httpx.ErrForbidden, "NOT_OWNED", "resource belongs to another tenant"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithRequest(r.Context(), req.withRecord(entity, rec))))
		})
	}
}
