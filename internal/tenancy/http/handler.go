package tenancyhttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/audit"
	"github.com/odyssey-erp/odyssey-tenancy/internal/gate"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/tenancy"
)

// Cache is the tenant handle cache administered here.
type Cache interface {
	Invalidate(tenantID uuid.UUID) bool
	Len() int
}

// Handler exposes platform operations on the tenant handle cache.
type Handler struct {
	cache Cache
	audit audit.Emitter
}

// NewHandler builds Handler instance.
func NewHandler(cache Cache, emitter audit.Emitter) *Handler {
	if emitter == nil {
		emitter = audit.Discard{}
	}
	return &Handler{cache: cache, audit: emitter}
}

// MountRoutes registers the platform routes. Only a superadmin reaches them.
func (h *Handler) MountRoutes(r chi.Router, g *gate.Gate) {
	r.Route("/platform/tenants", func(r chi.Router) {
		r.Use(g.RequireRoleLevel(rbac.RoleSuperadmin))
		r.Get("/handles", h.stats)
		r.Post("/{id}/invalidate", h.invalidate)
	})
}

func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	httpx.OK(w, http.StatusOK, map[string]any{"cached": h.cache.Len()})
}

func (h *Handler) invalidate(w http.ResponseWriter, r *http.Request) {
	id, err := tenancy.NormalizeID(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, httpx.Fail(httpx.ErrValidation, "INVALID_ID", "tenant id is not valid"))
		return
	}
	evicted := h.cache.Invalidate(id)
	if req, ok := gate.FromContext(r.Context()); ok {
		h.audit.LogSecurityEvent(req.SubjectID.String(), audit.ActionTenantInvalidate, "tenants", map[string]any{
			"tenantId": id.String(),
			"evicted":  evicted,
		})
	}
	httpx.OK(w, http.StatusOK, map[string]any{"tenantId": id, "evicted": evicted})
}
