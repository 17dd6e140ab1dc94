package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audithttp "github.com/odyssey-erp/odyssey-tenancy/internal/audit/http"
	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/gate"
	"github.com/odyssey-erp/odyssey-tenancy/internal/observability"
	roleshttp "github.com/odyssey-erp/odyssey-tenancy/internal/roles/http"
	tenancyhttp "github.com/odyssey-erp/odyssey-tenancy/internal/tenancy/http"
	"github.com/odyssey-erp/odyssey-tenancy/internal/testing/guard"
	usershttp "github.com/odyssey-erp/odyssey-tenancy/internal/users/http"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newTestRouter(t *testing.T, pool Pinger) http.Handler {
	t.Helper()
	tokens, err := auth.NewJWTManager(guard.JWTSecret, time.Hour, "test")
	require.NoError(t, err)
	return NewRouter(RouterParams{
		Config:  &Config{AppEnv: "test", IPRateLimit: 1000},
		Gate:    gate.New(gate.Deps{Verifier: tokens}),
		Metrics: observability.NewMetrics(),
		Pool:    pool,

		UsersHandler:   usershttp.NewHandler(nil, nil, nil),
		RolesHandler:   roleshttp.NewHandler(nil, nil),
		AuditHandler:   audithttp.NewHandler(nil, nil),
		TenancyHandler: tenancyhttp.NewHandler(nil, nil),
	})
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthAndReadiness(t *testing.T) {
	r := newTestRouter(t, pinger{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	r = newTestRouter(t, pinger{err: errors.New("down")})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAPIRoutesRequireToken(t *testing.T) {
	r := newTestRouter(t, nil)
	for _, path := range []string{"/api/me", "/api/roles", "/audit/security-events", "/platform/tenants/handles"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Equal(t, "NO_TOKEN", decode(t, w)["code"], path)
	}
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	r := newTestRouter(t, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
