package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/odyssey-erp/odyssey-tenancy/internal/audit/http"
	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/gate"
	"github.com/odyssey-erp/odyssey-tenancy/internal/observability"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
	roleshttp "github.com/odyssey-erp/odyssey-tenancy/internal/roles/http"
	schemahttp "github.com/odyssey-erp/odyssey-tenancy/internal/schema/http"
	tenancyhttp "github.com/odyssey-erp/odyssey-tenancy/internal/tenancy/http"
	usershttp "github.com/odyssey-erp/odyssey-tenancy/internal/users/http"
	"github.com/odyssey-erp/odyssey-tenancy/jobs"
)

// Pinger reports whether the directory database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Gate    *gate.Gate
	Metrics *observability.Metrics
	Pool    Pinger

	AuthHandler    *auth.Handler
	UsersHandler   *usershttp.Handler
	RolesHandler   *roleshttp.Handler
	SchemaHandler  *schemahttp.Handler
	AuditHandler   *audithttp.Handler
	TenancyHandler *tenancyhttp.Handler
	JobsHandler    *jobs.Handler
}

// NewRouter constructs the chi.Router with Odyssey defaults.
//
// Rute /api berjalan penuh melalui pipeline: autentikasi lalu resolusi tenant.
// Rute /platform hanya terautentikasi karena tidak menyentuh penyimpanan tenant.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.OK(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool == nil {
			httpx.OK(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := params.Pool.Ping(ctx); err != nil {
			params.Logger.Warn("directory ping failed", slog.Any("error", err))
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "message": "directory unavailable"})
			return
		}
		httpx.OK(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}

	g := params.Gate
	r.Route("/api", func(r chi.Router) {
		r.Use(g.Authenticate, g.ResolveTenant)
		if params.UsersHandler != nil {
			params.UsersHandler.MountRoutes(r, g)
		}
		if params.RolesHandler != nil {
			params.RolesHandler.MountRoutes(r, g)
		}
		if params.SchemaHandler != nil {
			params.SchemaHandler.MountRoutes(r, g)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(g.Authenticate)
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r, g)
		}
		if params.TenancyHandler != nil {
			params.TenancyHandler.MountRoutes(r, g)
		}
		if params.JobsHandler != nil {
			params.JobsHandler.MountRoutes(r, g)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.RespondError(w, httpx.Fail(httpx.ErrNotFound, "NOT_FOUND", "route not found"))
	})
	return r
}
