package usershttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/gate"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/roles"
	"github.com/odyssey-erp/odyssey-tenancy/internal/users"
)

// Service is the principal management contract used by the handler.
type Service interface {
	Profile(ctx context.Context, tenantID, id uuid.UUID) (*users.Profile, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, patch users.ProfilePatch) (*users.Profile, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	AssignRole(ctx context.Context, actor rbac.Role, actorID, tenantID, targetID uuid.UUID, code string) error
}

// RoleResolver resolves the caller's role descriptor.
type RoleResolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID, code string) (rbac.Role, error)
}

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
	roles   RoleResolver
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service Service, roles RoleResolver) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, roles: roles}
}

// MountRoutes registers user routes. A principal reads and edits its own record
// without the usuarios permissions; the self-modification guard narrows what it may touch.
func (h *Handler) MountRoutes(r chi.Router, g *gate.Gate) {
	guard := g.GuardPrincipalUpdate("id", users.SelfServiceFields)
	r.Get("/me", h.me)
	r.Route("/users/{id}", func(r chi.Router) {
		r.With(selfOr(g.RequirePermission(rbac.ResourceUsers, rbac.ActionRead))).Get("/", h.get)
		r.With(selfOr(g.RequirePermission(rbac.ResourceUsers, rbac.ActionUpdate)), guard).Patch("/", h.update)
		r.With(g.RequirePermission(rbac.ResourceUsers, rbac.ActionDelete), guard).Delete("/", h.delete)
		r.With(g.RequirePermission(rbac.ResourceUsers, rbac.ActionUpdate), guard).Put("/role", h.assignRole)
	})
}

// selfOr skips check when the {id} route parameter names the caller.
func selfOr(check func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		checked := check(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, ok := gate.FromContext(r.Context())
			if ok {
				if id, err := uuid.Parse(chi.URLParam(r, "id")); err == nil && id == req.SubjectID {
					next.ServeHTTP(w, r)
					return
				}
			}
			checked.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	req, ok := gate.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.Fail(httpx.ErrUnauthorized, "UNAUTHENTICATED", "authentication required"))
		return
	}
	profile, err := h.service.Profile(r.Context(), req.TenantID, req.SubjectID)
	if err != nil {
		h.respondError(w, "load own profile", err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{
		"user":        profile,
		"displayName": req.DisplayName,
		"bypass":      rbac.IsBypassRole(req.Role),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	req, _ := gate.FromContext(r.Context())
	id, ok := routeID(w, r)
	if !ok {
		return
	}
	profile, err := h.service.Profile(r.Context(), req.TenantID, id)
	if err != nil {
		h.respondError(w, "load profile", err)
		return
	}
	httpx.OK(w, http.StatusOK, profile)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	req, _ := gate.FromContext(r.Context())
	id, ok := routeID(w, r)
	if !ok {
		return
	}
	var patch users.ProfilePatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, httpx.Fail(httpx.ErrValidation, "BAD_PAYLOAD", "request body must be JSON"))
		return
	}
	if patch.Empty() {
		httpx.RespondError(w, httpx.Fail(httpx.ErrValidation, "EMPTY_PATCH", "nothing to update"))
		return
	}
	profile, err := h.service.Update(r.Context(), req.TenantID, id, patch)
	if err != nil {
		h.respondError(w, "update profile", err)
		return
	}
	httpx.OK(w, http.StatusOK, profile)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	req, _ := gate.FromContext(r.Context())
	id, ok := routeID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), req.TenantID, id); err != nil {
		h.respondError(w, "delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type roleForm struct {
	Role string `json:"role" validate:"required,max=64"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	req, _ := gate.FromContext(r.Context())
	id, ok := routeID(w, r)
	if !ok {
		return
	}
	var form roleForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, httpx.Fail(httpx.ErrValidation, "BAD_PAYLOAD", "request body must be JSON"))
		return
	}
	if err := validate.Struct(form); err != nil {
		httpx.RespondError(w, httpx.Invalid(err, "invalid role assignment"))
		return
	}
	actor, err := h.roles.Resolve(r.Context(), req.TenantID, req.Role)
	if err != nil {
		h.respondError(w, "resolve actor role", err)
		return
	}
	if err := h.service.AssignRole(r.Context(), actor, req.SubjectID, req.TenantID, id, form.Role); err != nil {
		h.respondError(w, "assign role", err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"id": id, "role": form.Role})
}

var validate = validator.New()

func routeID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, httpx.Fail(httpx.ErrValidation, "INVALID_ID", "user id is not valid"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		httpx.RespondError(w, httpx.Invalid(err, "invalid user payload"))
	case errors.Is(err, users.ErrNotFound):
		httpx.RespondError(w, httpx.Fail(httpx.ErrNotFound, "NOT_FOUND", "user not found"))
	case errors.Is(err, users.ErrAssignForbidden):
		httpx.RespondError(w, httpx.Fail(httpx.ErrForbidden, "ROLE_ESCALATION", "you cannot grant that role"))
	case errors.Is(err, users.ErrManageForbidden):
		httpx.RespondError(w, httpx.Fail(httpx.ErrForbidden, "FORBIDDEN", "user is outside your reach"))
	case errors.Is(err, roles.ErrNotFound), errors.Is(err, roles.ErrInactive):
		httpx.RespondError(w, httpx.Fail(httpx.ErrValidation, "UNKNOWN_ROLE", "role does not exist or is inactive"))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
