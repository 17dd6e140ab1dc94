package gate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-tenancy/internal/audit"
	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tenancy/internal/ratelimit"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/roles"
	"github.com/odyssey-erp/odyssey-tenancy/internal/schema"
	"github.com/odyssey-erp/odyssey-tenancy/internal/tenancy"
	"github.com/odyssey-erp/odyssey-tenancy/internal/users"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakePrincipals struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*users.Principal
	err   error
	calls atomic.Int32
}

func (f *fakePrincipals) PrincipalByID(_ context.Context, id uuid.UUID) (*users.Principal, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type tenantEntry struct {
	handle *tenancy.Handle
	err    error
}

type fakeTenants struct {
	mu      sync.Mutex
	entries map[uuid.UUID]tenantEntry
	evicted []*tenancy.Handle
}

func (f *fakeTenants) Resolve(_ context.Context, raw string, _ string) (*tenancy.Handle, error) {
	id, err := tenancy.NormalizeID(raw)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return nil, tenancy.ErrTenantNotFound
	}
	return e.handle, e.err
}

func (f *fakeTenants) Evict(h *tenancy.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evicted = append(f.evicted, h)
	return true
}

type fakeRoles struct {
	custom map[string]rbac.Role
}

func (f fakeRoles) Resolve(_ context.Context, _ uuid.UUID, code string) (rbac.Role, error) {
	if r, ok := f.custom[code]; ok {
		if !r.Active {
			return rbac.Role{}, roles.ErrInactive
		}
		return r, nil
	}
	if sr, ok := rbac.ParseSystemRole(code); ok {
		return rbac.SystemRoleDescriptor(sr), nil
	}
	return rbac.Role{}, roles.ErrNotFound
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingEmitter) LogSecurityEvent(subjectID, action, resourceType string, details map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, audit.Event{SubjectID: subjectID, Action: action, ResourceType: resourceType, Details: details})
}

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		*(d.(*any)) = r.values[i]
	}
	return nil
}

type stubConn struct {
	mu  sync.Mutex
	row stubRow
}

func (c *stubConn) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (c *stubConn) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (c *stubConn) QueryRow(context.Context, string, ...any) pgx.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.row
}
func (c *stubConn) Ping(context.Context) error { return nil }
func (c *stubConn) Close()                     {}

func (c *stubConn) setRow(row stubRow) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.row = row
}

type harness struct {
	t          *testing.T
	jwt        *auth.JWTManager
	principals *fakePrincipals
	tenants    *fakeTenants
	roles      fakeRoles
	conn       *stubConn
	emitter    *recordingEmitter
	tenantID   uuid.UUID
	handle     *tenancy.Handle
	router     chi.Router
}

func newHarness(t *testing.T, limiter ratelimit.Limiter) *harness {
	t.Helper()
	jwtm, err := auth.NewJWTManager(testSecret, time.Hour, "odyssey-test")
	require.NoError(t, err)

	tenantID := uuid.New()
	conn := &stubConn{}
	handle := tenancy.NewHandle(tenantID, conn)
	registry, err := schema.NewRegistry([]schema.Entity{{
		Name: "productos", Table: "productos", IDColumn: "id", TenantColumn: "empresa_id",
		Columns:  []string{"nombre", "costo"},
		Resource: rbac.ResourceProducts,
		Guarded:  map[string]rbac.Capability{"costo": rbac.CapViewCosts},
	}}, nil)
	require.NoError(t, err)

	h := &harness{
		t:          t,
		jwt:        jwtm,
		principals: &fakePrincipals{byID: map[uuid.UUID]*users.Principal{}},
		tenants:    &fakeTenants{entries: map[uuid.UUID]tenantEntry{tenantID: {handle: handle}}},
		roles:      fakeRoles{custom: map[string]rbac.Role{}},
		conn:       conn,
		emitter:    &recordingEmitter{},
		tenantID:   tenantID,
		handle:     handle,
	}
	g := New(Deps{
		Verifier:   jwtm,
		Principals: h.principals,
		Limiter:    limiter,
		Tenants:    h.tenants,
		Roles:      h.roles,
		Accessors:  registry,
		Audit:      h.emitter,
		Logger:     discardLogger(),
	})
	h.router = newRouter(g)
	return h
}

func newRouter(g *Gate) chi.Router {
	r := chi.NewRouter()
	r.Use(g.Authenticate)
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		req, _ := FromContext(r.Context())
		httpx.OK(w, http.StatusOK, map[string]any{"role": req.Role, "email": req.Email, "displayName": req.DisplayName})
	})
	r.With(g.RequireRoleLevel(rbac.RoleAdmin)).Get("/admin", ok)
	r.Route("/users/{id}", func(r chi.Router) {
		r.Use(g.GuardPrincipalUpdate("id", users.SelfServiceFields))
		r.Patch("/", echoFields)
		r.Delete("/", ok)
	})
	r.Group(func(r chi.Router) {
		r.Use(g.ResolveTenant)
		r.With(g.RequireModule(rbac.ModuleSales)).Get("/ventas", ok)
		r.With(g.RequireSpecial(rbac.CapViewCosts)).Get("/costes", ok)
		r.With(
			g.RequirePermission(rbac.ResourceProducts, rbac.ActionRead),
			g.RequireOwnership("productos", "id"),
		).Get("/productos/{id}", func(w http.ResponseWriter, r *http.Request) {
			req, _ := FromContext(r.Context())
			httpx.OK(w, http.StatusOK, req.Record)
		})
	})
	return r
}

func ok(w http.ResponseWriter, _ *http.Request) {
	httpx.OK(w, http.StatusOK, "ok")
}

func echoFields(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := httpx.DecodeJSON(r, &body); err != nil && !errors.Is(err, io.EOF) {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, body)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (h *harness) principal(role string) *users.Principal {
	p := &users.Principal{ID: uuid.New(), TenantID: h.tenantID, Email: role + "@acme.test", Role: role, FirstName: "ana", LastName: "ruiz", IsActive: true}
	h.principals.mu.Lock()
	h.principals.byID[p.ID] = p
	h.principals.mu.Unlock()
	return p
}

func (h *harness) token(p *users.Principal) string {
	tok, _, err := h.jwt.Issue(p.ID.String(), p.TenantID.String(), p.Role, p.Email)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) do(method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, path, rdr)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, r)
	var out map[string]any
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func TestAuthenticateRejectsMissingAndInvalidTokens(t *testing.T) {
	h := newHarness(t, nil)

	w, body := h.do(http.MethodGet, "/whoami", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "NO_TOKEN", body["code"])
	assert.Equal(t, false, body["success"])

	w, body = h.do(http.MethodGet, "/whoami", "not-a-jwt.at.all", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, []any{"INVALID_TOKEN", "MALFORMED_CLAIMS"}, body["code"])

	p := h.principal("vendedor")
	forged, _, err := mustManager(t, "ffffffffffffffffffffffffffffffff").Issue(p.ID.String(), p.TenantID.String(), p.Role, p.Email)
	require.NoError(t, err)
	w, body = h.do(http.MethodGet, "/whoami", forged, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", body["code"])
	assert.Equal(t, false, body["expired"])
}

func TestAuthenticateFlagsExpiredTokens(t *testing.T) {
	h := newHarness(t, nil)
	p := h.principal("vendedor")
	past := time.Now().Add(-2 * time.Hour)
	claims := &auth.Claims{
		TenantID: p.TenantID.String(),
		Role:     p.Role,
		Email:    p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	w, body := h.do(http.MethodGet, "/whoami", tok, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", body["code"])
	assert.Equal(t, true, body["expired"])
}

func TestAuthenticateRejectsMalformedClaims(t *testing.T) {
	h := newHarness(t, nil)
	tok, _, err := h.jwt.Issue(uuid.NewString(), "acme", "vendedor", "v@acme.test")
	require.NoError(t, err)

	w, body := h.do(http.MethodGet, "/whoami", tok, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "MALFORMED_CLAIMS", body["code"])
	assert.Zero(t, h.principals.calls.Load())
}

func TestAuthenticateChecksDurablePrincipal(t *testing.T) {
	h := newHarness(t, nil)

	ghost := &users.Principal{ID: uuid.New(), TenantID: h.tenantID, Email: "ghost@acme.test", Role: "vendedor"}
	w, body := h.do(http.MethodGet, "/whoami", h.token(ghost), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "PRINCIPAL_NOT_FOUND", body["code"])

	inactive := h.principal("vendedor")
	inactive.IsActive = false
	w, body = h.do(http.MethodGet, "/whoami", h.token(inactive), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "PRINCIPAL_INACTIVE", body["code"])

	h.principals.err = errors.New("directory down")
	w, body = h.do(http.MethodGet, "/whoami", h.token(h.principal("vendedor")), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", body["message"])
}

func TestAuthenticateRejectsTenantMismatchAndAudits(t *testing.T) {
	h := newHarness(t, nil)
	p := h.principal("gerente")
	tok := h.token(p)

	// The stored record moved to another tenant after the token was issued.
	p.TenantID = uuid.New()

	w, body := h.do(http.MethodGet, "/whoami", tok, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "TENANT_MISMATCH", body["code"])

	require.Len(t, h.emitter.events, 1)
	ev := h.emitter.events[0]
	assert.Equal(t, p.ID.String(), ev.SubjectID)
	assert.Equal(t, audit.ActionTenantMismatch, ev.Action)
	assert.Equal(t, h.tenantID.String(), ev.Details["claimTenantId"])
	assert.Equal(t, p.TenantID.String(), ev.Details["storedTenantId"])
}

func TestAuthenticatePopulatesFromDurableRecord(t *testing.T) {
	h := newHarness(t, nil)
	p := h.principal("admin")
	tok := h.token(p)
	p.Role = "vendedor"

	w, body := h.do(http.MethodGet, "/whoami", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "vendedor", data["role"])
	assert.Equal(t, "Ana Ruiz", data["displayName"])
}

func TestRateLimitRejectsOnlyTheRequestOverTheLimit(t *testing.T) {
	const limit = 3
	limiter := ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{Max: limit, Window: time.Minute})
	h := newHarness(t, limiter)
	tok := h.token(h.principal("vendedor"))

	for i := 0; i < limit; i++ {
		w, _ := h.do(http.MethodGet, "/whoami", tok, "")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	}
	w, body := h.do(http.MethodGet, "/whoami", tok, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", body["code"])
	resetIn := body["resetIn"].(float64)
	assert.Greater(t, resetIn, float64(0))
	assert.LessOrEqual(t, resetIn, time.Minute.Seconds())
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	other := h.token(h.principal("vendedor"))
	w, _ = h.do(http.MethodGet, "/whoami", other, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestResolveTenantFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "inactive", err: tenancy.ErrTenantInactive, status: http.StatusForbidden, code: "TENANT_INACTIVE"},
		{name: "unknown", err: tenancy.ErrTenantNotFound, status: http.StatusNotFound, code: "TENANT_NOT_FOUND"},
		{name: "misconfigured", err: tenancy.ErrTenantMisconfigured, status: http.StatusInternalServerError, code: "MISCONFIGURED"},
		{name: "store timeout", err: context.DeadlineExceeded, status: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.tenants.entries[h.tenantID] = tenantEntry{err: tc.err}
			w, body := h.do(http.MethodGet, "/costes", h.token(h.principal("admin")), "")
			assert.Equal(t, tc.status, w.Code)
			if tc.code != "" {
				assert.Equal(t, tc.code, body["code"])
			}
			if tc.status == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", body["message"])
				assert.NotContains(t, w.Body.String(), "postgres://")
			}
		})
	}
}

func TestSpecialCapabilityBypassesForAdmin(t *testing.T) {
	h := newHarness(t, nil)

	w, body := h.do(http.MethodGet, "/costes", h.token(h.principal("vendedor")), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "verCostes", body["required"])
	assert.Equal(t, "vendedor", body["role"])

	// An admin role whose stored set grants nothing is still admitted.
	h.roles.custom["admin"] = rbac.Role{Code: "admin", Active: true, Permissions: rbac.PermissionSet{Resources: rbac.ResourceMap{}}}
	w, _ = h.do(http.MethodGet, "/costes", h.token(h.principal("admin")), "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do(http.MethodGet, "/costes", h.token(h.principal("contador")), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestModuleAndRoleLevelChecks(t *testing.T) {
	h := newHarness(t, nil)

	w, _ := h.do(http.MethodGet, "/ventas", h.token(h.principal("cajero")), "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, body := h.do(http.MethodGet, "/ventas", h.token(h.principal("almacenero")), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "module:ventas", body["required"])

	w, body = h.do(http.MethodGet, "/admin", h.token(h.principal("gerente")), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "role:admin", body["required"])
	w, _ = h.do(http.MethodGet, "/admin", h.token(h.principal("superadmin")), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCustomRolesResolveThroughTheirBase(t *testing.T) {
	h := newHarness(t, nil)
	h.roles.custom["auditor"] = rbac.Role{
		Code: "auditor", Base: rbac.RoleConsulta, Active: true,
		Permissions: rbac.PermissionSet{Special: rbac.Specials{Flags: map[rbac.Capability]bool{rbac.CapViewCosts: true}}},
	}
	h.roles.custom["retired"] = rbac.Role{Code: "retired", Base: rbac.RoleGerente, Active: false}

	w, _ := h.do(http.MethodGet, "/costes", h.token(h.principal("auditor")), "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = h.do(http.MethodGet, "/ventas", h.token(h.principal("auditor")), "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := h.do(http.MethodGet, "/costes", h.token(h.principal("retired")), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "retired", body["role"])
}

func TestOwnership(t *testing.T) {
	h := newHarness(t, nil)
	tok := h.token(h.principal("vendedor"))
	id := uuid.New()

	h.conn.setRow(stubRow{values: []any{id, h.tenantID, "Martillo", 12.5}})
	w, body := h.do(http.MethodGet, "/productos/"+id.String(), tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Martillo", body["data"].(map[string]any)["nombre"])

	h.conn.setRow(stubRow{values: []any{id, uuid.New(), "Secreto", 99.0}})
	w, body = h.do(http.MethodGet, "/productos/"+id.String(), tok, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "NOT_OWNED", body["code"])
	assert.NotContains(t, w.Body.String(), "Secreto")

	w, body = h.do(http.MethodGet, "/productos/42", tok, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", body["code"])

	h.conn.setRow(stubRow{err: pgx.ErrNoRows})
	w, _ = h.do(http.MethodGet, "/productos/"+id.String(), tok, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOwnershipEvictsHandleOnConnectionFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.conn.setRow(stubRow{err: &net.OpError{Op: "read", Err: errors.New("connection reset")}})

	w, body := h.do(http.MethodGet, "/productos/"+uuid.NewString(), h.token(h.principal("vendedor")), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", body["message"])
	require.Len(t, h.tenants.evicted, 1)
	assert.Same(t, h.handle, h.tenants.evicted[0])
}

func TestOwnershipOnPlatformTenantHasNoStore(t *testing.T) {
	h := newHarness(t, nil)
	h.tenants.entries[h.tenantID] = tenantEntry{}

	w, body := h.do(http.MethodGet, "/productos/"+uuid.NewString(), h.token(h.principal("superadmin")), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "NO_TENANT_STORE", body["code"])
}

func TestSelfModificationAllowList(t *testing.T) {
	h := newHarness(t, nil)
	p := h.principal("vendedor")
	tok := h.token(p)
	path := "/users/" + p.ID.String() + "/"

	w, body := h.do(http.MethodPatch, path, tok, `{"firstName":"Ana","role":"admin","email":"x@acme.test"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "SELF_MODIFICATION", body["code"])
	assert.ElementsMatch(t, []any{"firstName", "lastName", "phone", "avatarUrl", "password"}, body["allowedFields"])
	assert.Equal(t, []any{"email", "role"}, body["rejectedFields"])

	w, body = h.do(http.MethodPatch, path, tok, `{"firstName":"Ana","phone":"555"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ana", body["data"].(map[string]any)["firstName"])

	w, body = h.do(http.MethodPatch, path, tok, `{"isActive":false}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "SELF_DEACTIVATE", body["code"])

	w, body = h.do(http.MethodDelete, path, tok, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "SELF_DELETE", body["code"])

	w, _ = h.do(http.MethodPatch, path, tok, `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSelfModificationRejectsOversizedBody(t *testing.T) {
	h := newHarness(t, nil)
	p := h.principal("vendedor")
	tok := h.token(p)
	path := "/users/" + p.ID.String() + "/"
	wrap := func(n int) string { return `{"firstName":"` + strings.Repeat("a", n) + `"}` }

	w, body := h.do(http.MethodPatch, path, tok, wrap(maxPrincipalBody))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", body["code"])

	w, _ = h.do(http.MethodPatch, path, tok, wrap(maxPrincipalBody-len(wrap(0))))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPrincipalManagementReach(t *testing.T) {
	h := newHarness(t, nil)
	admin := h.principal("admin")
	gerente := h.principal("gerente")
	super := h.principal("superadmin")
	vendedor := h.principal("vendedor")
	foreign := &users.Principal{ID: uuid.New(), TenantID: uuid.New(), Role: "vendedor", IsActive: true}
	h.principals.byID[foreign.ID] = foreign

	tests := []struct {
		name   string
		actor  *users.Principal
		target *users.Principal
		status int
		code   string
	}{
		{name: "admin edits vendedor", actor: admin, target: vendedor, status: http.StatusOK},
		{name: "admin cannot edit superadmin", actor: admin, target: super, status: http.StatusForbidden, code: "SUPERADMIN_PROTECTED"},
		{name: "superadmin edits superadmin", actor: h.principal("superadmin"), target: super, status: http.StatusOK},
		{name: "gerente cannot edit admin", actor: gerente, target: admin, status: http.StatusForbidden, code: "FORBIDDEN"},
		{name: "other tenant is invisible", actor: admin, target: foreign, status: http.StatusNotFound, code: "NOT_FOUND"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, body := h.do(http.MethodPatch, "/users/"+tc.target.ID.String()+"/", h.token(tc.actor), `{"isActive":false}`)
			assert.Equal(t, tc.status, w.Code)
			if tc.code != "" {
				assert.Equal(t, tc.code, body["code"])
			}
		})
	}
}

func TestStagesRequireAuthentication(t *testing.T) {
	g := New(Deps{Logger: discardLogger()})
	handler := g.ResolveTenant(http.HandlerFunc(ok))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func mustManager(t *testing.T, secret string) *auth.JWTManager {
	t.Helper()
	m, err := auth.NewJWTManager(secret, time.Hour, "odyssey-test")
	require.NoError(t, err)
	return m
}
