package roleshttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/gate"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/roles"
)

// Service is the role management contract used by the handler.
type Service interface {
	Resolve(ctx context.Context, tenantID uuid.UUID, code string) (rbac.Role, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]rbac.Role, error)
	Get(ctx context.Context, tenantID uuid.UUID, code string) (rbac.Role, error)
	Effective(ctx context.Context, tenantID uuid.UUID, code string) (rbac.PermissionSet, error)
	Create(ctx context.Context, actor rbac.Role, tenantID uuid.UUID, in roles.CreateInput) (rbac.Role, error)
	Update(ctx context.Context, actor rbac.Role, tenantID uuid.UUID, code string, in roles.UpdateInput) (rbac.Role, error)
	Delete(ctx context.Context, actor rbac.Role, tenantID uuid.UUID, code string) error
}

// Handler manages role management endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers role routes. Writes need the role management capability
// on top of the resource permission.
func (h *Handler) MountRoutes(r chi.Router, g *gate.Gate) {
	r.Get("/permissions", h.catalog)
	r.Get("/me/permissions", h.mine)
	r.Route("/roles", func(r chi.Router) {
		r.With(g.RequirePermission(rbac.ResourceRoles, rbac.ActionRead)).Get("/", h.list)
		r.With(g.RequirePermission(rbac.ResourceRoles, rbac.ActionRead)).Get("/{code}", h.get)
		r.With(g.RequirePermission(rbac.ResourceRoles, rbac.ActionRead)).Get("/{code}/permissions", h.effective)
		r.Group(func(r chi.Router) {
			r.Use(g.RequireSpecial(rbac.CapManageRoles))
			r.With(g.RequirePermission(rbac.ResourceRoles, rbac.ActionCreate)).Post("/", h.create)
			r.With(g.RequirePermission(rbac.ResourceRoles, rbac.ActionUpdate)).Patch("/{code}", h.update)
			r.With(g.RequirePermission(rbac.ResourceRoles, rbac.ActionDelete)).Delete("/{code}", h.delete)
		})
	})
}

type roleView struct {
	Code        string             `json:"code"`
	Name        string             `json:"name"`
	Base        string             `json:"base,omitempty"`
	Permissions rbac.PermissionSet `json:"permissions"`
	Active      bool               `json:"active"`
	System      bool               `json:"system"`
	SortOrder   int                `json:"sortOrder"`
	UpdatedAt   *time.Time         `json:"updatedAt,omitempty"`
}

func viewOf(role rbac.Role) roleView {
	v := roleView{
		Code:        role.Code,
		Name:        role.Name,
		Base:        role.Base.Code(),
		Permissions: role.Permissions,
		Active:      role.Active,
		System:      role.System,
		SortOrder:   role.SortOrder,
	}
	if !role.UpdatedAt.IsZero() {
		at := role.UpdatedAt
		v.UpdatedAt = &at
	}
	return v
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	req, _ := gate.FromContext(r.Context())
	list, err := h.service.List(r.Context(), req.TenantID)
	if err != nil {
		h.respondError(w, "list roles", err)
		return
	}
	out := make([]roleView, len(list))
	for i, role := range list {
		out[i] = viewOf(role)
	}
	httpx.OK(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	req, _ := gate.FromContext(r.Context())
	role, err := h.service.Get(r.Context(), req.TenantID, chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, "get role", err)
		return
	}
	httpx.OK(w, http.StatusOK, viewOf(role))
}

func (h *Handler) effective(w http.ResponseWriter, r *http.Request) {
	req, _ := gate.FromContext(r.Context())
	set, err := h.service.Effective(r.Context(), req.TenantID, chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, "effective permissions", err)
		return
	}
	httpx.OK(w, http.StatusOK, set)
}

func (h *Handler) mine(w http.ResponseWriter, r *http.Request) {
	req, ok := gate.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.Fail(httpx.ErrUnauthorized, "UNAUTHENTICATED", "authentication required"))
		return
	}
	body := map[string]any{"role": req.Role, "bypass": rbac.IsBypassRole(req.Role)}
	role, err := h.service.Resolve(r.Context(), req.TenantID, req.Role)
	switch {
	case errors.Is(err, roles.ErrNotFound), errors.Is(err, roles.ErrInactive):
		body["permissions"] = rbac.EffectivePermissions(rbac.Role{})
		body["maxDiscount"] = 0
	case err != nil:
		h.respondError(w, "caller permissions", err)
		return
	default:
		body["permissions"] = rbac.EffectivePermissions(role)
		body["maxDiscount"] = rbac.MaxDiscount(role)
		body["level"] = role.Level()
	}
	httpx.OK(w, http.StatusOK, body)
}

func (h *Handler) catalog(w http.ResponseWriter, _ *http.Request) {
	actions := make([]string, 0, len(rbac.Actions()))
	for _, a := range rbac.Actions() {
		actions = append(actions, a.String())
	}
	modules := make(map[rbac.Module][]rbac.Resource, len(rbac.Modules()))
	for _, m := range rbac.Modules() {
		modules[m] = rbac.ModuleResources(m)
	}
	system := make([]string, 0, len(rbac.SystemRoles()))
	for _, sr := range rbac.SystemRoles() {
		system = append(system, sr.Code())
	}
	httpx.OK(w, http.StatusOK, map[string]any{
		"resources":    rbac.Resources(),
		"actions":      actions,
		"capabilities": rbac.Capabilities(),
		"modules":      modules,
		"systemRoles":  system,
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	req, _ := gate.FromContext(r.Context())
	var in roles.CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, httpx.Fail(httpx.ErrValidation, "BAD_PAYLOAD", "invalid role payload: "+err.Error()))
		return
	}
	actor, ok := h.actor(w, r, req)
	if !ok {
		return
	}
	role, err := h.service.Create(r.Context(), actor, req.TenantID, in)
	if err != nil {
		h.respondError(w, "create role", err)
		return
	}
	httpx.OK(w, http.StatusCreated, viewOf(role))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	req, _ := gate.FromContext(r.Context())
	var in roles.UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, httpx.Fail(httpx.ErrValidation, "BAD_PAYLOAD", "invalid role payload: "+err.Error()))
		return
	}
	actor, ok := h.actor(w, r, req)
	if !ok {
		return
	}
	role, err := h.service.Update(r.Context(), actor, req.TenantID, chi.URLParam(r, "code"), in)
	if err != nil {
		h.respondError(w, "update role", err)
		return
	}
	httpx.OK(w, http.StatusOK, viewOf(role))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	req, _ := gate.FromContext(r.Context())
	actor, ok := h.actor(w, r, req)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, req.TenantID, chi.URLParam(r, "code")); err != nil {
		h.respondError(w, "delete role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request, req gate.Request) (rbac.Role, bool) {
	role, err := h.service.Resolve(r.Context(), req.TenantID, req.Role)
	if err != nil {
		h.respondError(w, "resolve actor role", err)
		return rbac.Role{}, false
	}
	return role, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		httpx.RespondError(w, httpx.Invalid(err, "invalid role payload"))
	case errors.Is(err, roles.ErrNotFound):
		httpx.RespondError(w, httpx.Fail(httpx.ErrNotFound, "ROLE_NOT_FOUND", "role not found"))
	case errors.Is(err, roles.ErrInactive):
		httpx.RespondError(w, httpx.Fail(httpx.ErrForbidden, "ROLE_INACTIVE", "your role is inactive"))
	case errors.Is(err, roles.ErrDuplicate):
		httpx.RespondError(w, httpx.Fail(httpx.ErrDuplicate, "DUPLICATE_ROLE", "a role with this code already exists"))
	case errors.Is(err, roles.ErrInUse):
		httpx.RespondError(w, httpx.Fail(httpx.ErrDuplicate, "ROLE_IN_USE", "role is still assigned to users"))
	case errors.Is(err, roles.ErrSystemRole):
		httpx.RespondError(w, httpx.Fail(httpx.ErrForbidden, "SYSTEM_ROLE", "system roles cannot be changed"))
	case errors.Is(err, roles.ErrEscalation):
		httpx.RespondError(w, httpx.Fail(httpx.ErrForbidden, "ROLE_ESCALATION", "role ranks above your own"))
	case errors.Is(err, roles.ErrInvalidBase), errors.Is(err, roles.ErrReservedCode):
		httpx.RespondError(w, httpx.Fail(httpx.ErrValidation, "BAD_PAYLOAD", strings.TrimPrefix(err.Error(), "roles: ")))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
