package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/audit"
	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/observability"
	"github.com/odyssey-erp/odyssey-tenancy/internal/ratelimit"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/schema"
	"github.com/odyssey-erp/odyssey-tenancy/internal/tenancy"
	"github.com/odyssey-erp/odyssey-tenancy/internal/users"
)

// Verifier validates bearer credentials.
type Verifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Principals loads durable principal records.
type Principals interface {
	PrincipalByID(ctx context.Context, id uuid.UUID) (*users.Principal, error)
}

// Tenants resolves tenant handles.
type Tenants interface {
	Resolve(ctx context.Context, rawID string, callerRole string) (*tenancy.Handle, error)
	Evict(h *tenancy.Handle) bool
}

// Roles resolves role descriptors within a tenant.
type Roles interface {
	Resolve(ctx context.Context, tenantID uuid.UUID, code string) (rbac.Role, error)
}

// Accessors hands out entity accessors bound to a tenant handle.
type Accessors interface {
	AccessorFor(h *tenancy.Handle, entity string) (*schema.Accessor, error)
}

// Deps groups the collaborators of the pipeline.
type Deps struct {
	Verifier   Verifier
	Principals Principals
	Limiter    ratelimit.Limiter
	Tenants    Tenants
	Roles      Roles
	Accessors  Accessors
	Audit      audit.Emitter
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	Now        func() time.Time
}

// Gate builds the middleware stages of the authorization pipeline.
type Gate struct {
	verifier   Verifier
	principals Principals
	limiter    ratelimit.Limiter
	tenants    Tenants
	roles      Roles
	accessors  Accessors
	audit      audit.Emitter
	logger     *slog.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// New constructs a Gate. A nil Limiter disables rate limiting.
func New(d Deps) *Gate {
	g := &Gate{
		verifier:   d.Verifier,
		principals: d.Principals,
		limiter:    d.Limiter,
		tenants:    d.Tenants,
		roles:      d.Roles,
		accessors:  d.Accessors,
		audit:      d.Audit,
		logger:     d.Logger,
		metrics:    d.Metrics,
		now:        d.Now,
	}
	if g.audit == nil {
		g.audit = audit.Discard{}
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}
