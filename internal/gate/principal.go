package gate

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/users"
)

const maxPrincipalBody = 1 << 20

// GuardPrincipalUpdate protects principal management routes. On the caller's own
// record only the allowed body fields may appear, and deletion or deactivation is
// refused. Other records must live in the caller's tenant and rank within the
// caller's reach; a superadmin record is only touched by a superadmin.
func (g *Gate) GuardPrincipalUpdate(idParam string, allowed []string) func(http.Handler) http.Handler {
	allow := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		allow[f] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, ok := g.current(w, r, StageSelfModify)
			if !ok {
				return
			}
			id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, idParam)))
			if err != nil {
				g.reject(w, StageSelfModify, httpx.Fail(httpx.ErrValidation, "INVALID_ID", "user id is not valid"))
				return
			}
			if id == req.SubjectID {
				if g.guardSelf(w, r, allowed, allow) {
					next.ServeHTTP(w, r)
				}
				return
			}
			if g.guardOther(w, r, req, id) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

func (g *Gate) guardSelf(w http.ResponseWriter, r *http.Request, allowed []string, allow map[string]struct{}) bool {
	if r.Method == http.MethodDelete {
		g.reject(w, StageSelfModify, httpx.Fail(httpx.ErrForbidden, "SELF_DELETE", "you cannot delete your own user"))
		return false
	}
	if r.Body == nil || r.Body == http.NoBody {
		return true
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPrincipalBody))
	_ = r.Body.Close()
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		g.reject(w, StageSelfModify, httpx.Fail(httpx.ErrValidation, "PAYLOAD_TOO_LARGE", "request body is too large").
			With("maxBytes", maxPrincipalBody))
		return false
	}
	if err != nil {
		g.reject(w, StageSelfModify, httpx.Fail(httpx.ErrValidation, "BAD_PAYLOAD", "request body could not be read"))
		return false
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if len(bytes.TrimSpace(raw)) == 0 {
		return true
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		g.reject(w, StageSelfModify, httpx.Fail(httpx.ErrValidation, "BAD_PAYLOAD", "request body must be a JSON object"))
		return false
	}
	if _, ok := fields["isActive"]; ok {
		g.reject(w, StageSelfModify, httpx.Fail(httpx.ErrForbidden, "SELF_DEACTIVATE", "you cannot change your own activation").
			With("allowedFields", allowed))
		return false
	}
	var rejected []string
	for k := range fields {
		if _, ok := allow[k]; !ok {
			rejected = append(rejected, k)
		}
	}
	if len(rejected) > 0 {
		sort.Strings(rejected)
		g.reject(w, StageSelfModify, httpx.Fail(httpx.ErrForbidden, "SELF_MODIFICATION", "you may only change your own profile fields").
			With("allowedFields", allowed).
			With("rejectedFields", rejected))
		return false
	}
	return true
}

func (g *Gate) guardOther(w http.ResponseWriter, r *http.Request, req Request, id uuid.UUID) bool {
	target, err := g.principals.PrincipalByID(r.Context(), id)
	switch {
	case errors.Is(err, users.ErrNotFound):
		g.reject(w, StageSelfModify, httpx.Fail(httpx.ErrNotFound, "NOT_FOUND", "user not found"))
		return false
	case err != nil:
		g.fail(w, r, StageSelfModify, err)
		return false
	case target.TenantID != req.TenantID:
		g.reject(w, StageSelfModify, httpx.Fail(httpx.ErrNotFound, "NOT_FOUND", "user not found"))
		return false
	}
	if target.Role == rbac.RoleSuperadmin.Code() && req.Role != rbac.RoleSuperadmin.Code() {
		g.reject(w, StageSelfModify, httpx.Fail(httpx.ErrForbidden, "SUPERADMIN_PROTECTED", "only a superadmin may modify a superadmin").
			With("role", req.Role))
		return false
	}
	actor, err := g.roleOf(r.Context(), req)
	if err != nil {
		g.fail(w, r, StageSelfModify, err)
		return false
	}
	targetRole, err := g.roleOf(r.Context(), Request{TenantID: req.TenantID, Role: target.Role})
	if err != nil {
		g.fail(w, r, StageSelfModify, err)
		return false
	}
	if targetRole.Code == "" {
		targetRole.Code = target.Role
	}
	if !rbac.CanManagePrincipal(actor, targetRole) {
		g.reject(w, StageSelfModify, httpx.Fail(httpx.ErrForbidden, "FORBIDDEN", "user is outside your reach").
			With("required", "role:"+target.Role).
			With("role", req.Role))
		return false
	}
	return true
}
