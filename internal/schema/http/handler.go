package schemahttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/gate"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/roles"
	"github.com/odyssey-erp/odyssey-tenancy/internal/schema"
	"github.com/odyssey-erp/odyssey-tenancy/internal/tenancy"
)

// Registry exposes the entity definitions and tenant accessors.
type Registry interface {
	Entities() []schema.Entity
	AccessorFor(h *tenancy.Handle, entity string) (*schema.Accessor, error)
}

// RoleResolver resolves the caller's role descriptor.
type RoleResolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID, code string) (rbac.Role, error)
}

// Handler serves tenant business records by id.
type Handler struct {
	logger   *slog.Logger
	registry Registry
	roles    RoleResolver
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, registry Registry, roles RoleResolver) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, registry: registry, roles: roles}
}

// MountRoutes registers one read route per entity. Each route requires read access to
// the entity's resource and ownership of the record.
func (h *Handler) MountRoutes(r chi.Router, g *gate.Gate) {
	r.Get("/entities", h.entities)
	for _, e := range h.registry.Entities() {
		r.With(
			g.RequirePermission(e.Resource, rbac.ActionRead),
			g.RequireOwnership(e.Name, "id"),
		).Get("/records/"+e.Name+"/{id}", h.show)
	}
}

type entityView struct {
	Name     string            `json:"name"`
	Resource rbac.Resource     `json:"resource"`
	Columns  []string          `json:"columns"`
	Guarded  map[string]string `json:"guarded,omitempty"`
}

func (h *Handler) entities(w http.ResponseWriter, _ *http.Request) {
	defs := h.registry.Entities()
	out := make([]entityView, 0, len(defs))
	for _, e := range defs {
		v := entityView{Name: e.Name, Resource: e.Resource, Columns: e.Columns}
		if len(e.Guarded) > 0 {
			v.Guarded = make(map[string]string, len(e.Guarded))
			for col, c := range e.Guarded {
				v.Guarded[col] = string(c)
			}
		}
		out = append(out, v)
	}
	httpx.OK(w, http.StatusOK, out)
}

// show renders the record loaded by the ownership check, dropping guarded columns the
// caller holds no capability for.
func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	req, ok := gate.FromContext(r.Context())
	if !ok || req.Record == nil {
		h.logger.Error("record route mounted without ownership check", slog.String("path", r.URL.Path))
		httpx.RespondError(w, httpx.ErrMisconfigured)
		return
	}
	acc, err := h.registry.AccessorFor(req.Tenant, req.RecordEntity)
	if err != nil {
		h.logger.Error("accessor for record", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	allowed, err := h.capabilityCheck(r.Context(), req, acc.Entity())
	if err != nil {
		h.logger.Error("resolve caller role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, acc.Redact(req.Record, allowed))
}

func (h *Handler) capabilityCheck(ctx context.Context, req gate.Request, e schema.Entity) (func(string) bool, error) {
	if rbac.IsBypassRole(req.Role) {
		return func(string) bool { return true }, nil
	}
	role, err := h.roles.Resolve(ctx, req.TenantID, req.Role)
	if errors.Is(err, roles.ErrNotFound) || errors.Is(err, roles.ErrInactive) {
		role, err = rbac.Role{}, nil
	}
	if err != nil {
		return nil, err
	}
	effective := rbac.EffectivePermissions(role)
	return func(col string) bool {
		return effective.Holds(e.Guarded[col])
	}, nil
}
