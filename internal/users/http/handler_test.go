package usershttp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-tenancy/internal/gate"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/roles"
	"github.com/odyssey-erp/odyssey-tenancy/internal/users"
)

type stubService struct {
	profiles  map[uuid.UUID]*users.Profile
	assignErr error
	assigned  string
	actor     rbac.Role
	patched   users.ProfilePatch
}

func (s *stubService) Profile(_ context.Context, tenantID, id uuid.UUID) (*users.Profile, error) {
	p, ok := s.profiles[id]
	if !ok || p.TenantID != tenantID {
		return nil, users.ErrNotFound
	}
	return p, nil
}

func (s *stubService) Update(ctx context.Context, tenantID, id uuid.UUID, patch users.ProfilePatch) (*users.Profile, error) {
	s.patched = patch
	return s.Profile(ctx, tenantID, id)
}

func (s *stubService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	_, err := s.Profile(ctx, tenantID, id)
	return err
}

func (s *stubService) AssignRole(_ context.Context, actor rbac.Role, _, _, _ uuid.UUID, code string) error {
	s.actor = actor
	if s.assignErr != nil {
		return s.assignErr
	}
	s.assigned = code
	return nil
}

type systemRoles struct{}

func (systemRoles) Resolve(_ context.Context, _ uuid.UUID, code string) (rbac.Role, error) {
	sr, ok := rbac.ParseSystemRole(code)
	if !ok {
		return rbac.Role{}, roles.ErrNotFound
	}
	return rbac.SystemRoleDescriptor(sr), nil
}

type fixture struct {
	svc    *stubService
	tenant uuid.UUID
	caller *users.Profile
	other  *users.Profile
	router chi.Router
}

func newFixture(role string) *fixture {
	tenant := uuid.New()
	caller := &users.Profile{Principal: users.Principal{ID: uuid.New(), TenantID: tenant, Email: "me@acme.test", Role: role, IsActive: true}}
	other := &users.Profile{Principal: users.Principal{ID: uuid.New(), TenantID: tenant, Email: "other@acme.test", Role: "cajero", IsActive: true}}
	svc := &stubService{profiles: map[uuid.UUID]*users.Profile{caller.ID: caller, other.ID: other}}
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, systemRoles{})

	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			httpx.RespondError(w, httpx.Fail(httpx.ErrForbidden, "FORBIDDEN", "denied"))
		})
	}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := gate.WithRequest(req.Context(), gate.Request{SubjectID: caller.ID, TenantID: tenant, Role: role, DisplayName: "Me"})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Get("/me", h.me)
	r.Route("/users/{id}", func(r chi.Router) {
		r.With(selfOr(deny)).Get("/", h.get)
		r.Patch("/", h.update)
		r.Delete("/", h.delete)
		r.Put("/role", h.assignRole)
	})
	return &fixture{svc: svc, tenant: tenant, caller: caller, other: other, router: r}
}

func (f *fixture) serve(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(method, path, rdr))
	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestMeReturnsOwnProfile(t *testing.T) {
	f := newFixture("admin")
	w, body := f.serve(t, http.MethodGet, "/me", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["bypass"])
	assert.Equal(t, "me@acme.test", data["user"].(map[string]any)["email"])
}

func TestSelfOrSkipsCheckForOwnRecord(t *testing.T) {
	f := newFixture("vendedor")

	w, _ := f.serve(t, http.MethodGet, "/users/"+f.caller.ID.String()+"/", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := f.serve(t, http.MethodGet, "/users/"+f.other.ID.String()+"/", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", body["code"])
}

func TestUpdateRejectsEmptyPatch(t *testing.T) {
	f := newFixture("admin")
	w, body := f.serve(t, http.MethodPatch, "/users/"+f.other.ID.String()+"/", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "EMPTY_PATCH", body["code"])

	w, _ = f.serve(t, http.MethodPatch, "/users/"+f.other.ID.String()+"/", `{"isActive":false}`)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, f.svc.patched.IsActive)
	assert.False(t, *f.svc.patched.IsActive)
}

func TestUnknownAndMalformedIDs(t *testing.T) {
	f := newFixture("admin")
	w, body := f.serve(t, http.MethodDelete, "/users/"+uuid.NewString()+"/", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])

	w, body = f.serve(t, http.MethodDelete, "/users/abc/", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", body["code"])
}

func TestAssignRole(t *testing.T) {
	f := newFixture("gerente")
	path := "/users/" + f.other.ID.String() + "/role"

	w, _ := f.serve(t, http.MethodPut, path, `{"role":"vendedor"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "vendedor", f.svc.assigned)
	assert.Equal(t, "gerente", f.svc.actor.Code)

	f.svc.assignErr = users.ErrAssignForbidden
	w, body := f.serve(t, http.MethodPut, path, `{"role":"admin"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ROLE_ESCALATION", body["code"])

	f.svc.assignErr = roles.ErrNotFound
	w, body = f.serve(t, http.MethodPut, path, `{"role":"astronauta"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNKNOWN_ROLE", body["code"])

	w, body = f.serve(t, http.MethodPut, path, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["fields"], "Role")
}
