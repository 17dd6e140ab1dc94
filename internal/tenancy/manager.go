package tenancy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-tenancy/internal/observability"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
)

// Handle is a live connection bound to exactly one tenant store.
type Handle struct {
	tenantID    uuid.UUID
	conn        Conn
	fingerprint string
	openedAt    time.Time
}

// NewHandle wraps an open connection that is not owned by a Manager.
func NewHandle(tenantID uuid.UUID, conn Conn) *Handle {
	return &Handle{tenantID: tenantID, conn: conn, openedAt: time.Now()}
}

// TenantID returns the tenant the handle is bound to.
func (h *Handle) TenantID() uuid.UUID {
	return h.tenantID
}

// Conn returns the underlying connection.
func (h *Handle) Conn() Conn {
	return h.conn
}

// OpenedAt reports when the connection was established.
func (h *Handle) OpenedAt() time.Time {
	return h.openedAt
}

// Options tune a Manager.
type Options struct {
	Logger  *slog.Logger
	Metrics *observability.Metrics
	// BypassStore admits a role to the platform tenant, which has no store.
	// Defaults to rbac.BypassesTenantStore.
	BypassStore    func(role string) bool
	ConnectTimeout time.Duration
}

// Manager caches one handle per tenant for the life of the process.
type Manager struct {
	directory Directory
	connector Connector
	logger    *slog.Logger
	metrics   *observability.Metrics
	bypass    func(role string) bool
	timeout   time.Duration

	group singleflight.Group

	mu      sync.RWMutex
	handles map[uuid.UUID]*Handle
	onEvict []func(uuid.UUID)
}

// NewManager constructs a Manager.
func NewManager(directory Directory, connector Connector, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BypassStore == nil {
		opts.BypassStore = rbac.BypassesTenantStore
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	return &Manager{
		directory: directory,
		connector: connector,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		bypass:    opts.BypassStore,
		timeout:   opts.ConnectTimeout,
		handles:   make(map[uuid.UUID]*Handle),
	}
}

// OnEvict registers a callback run after a tenant's handle leaves the cache.
func (m *Manager) OnEvict(fn func(uuid.UUID)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvict = append(m.onEvict, fn)
}

// Resolve returns the live handle for a tenant. A nil handle with a nil error means the
// caller operates on the platform tenant, which has no business store.
func (m *Manager) Resolve(ctx context.Context, rawID string, callerRole string) (*Handle, error) {
	id, err := NormalizeID(rawID)
	if err != nil {
		return nil, err
	}

	desc, err := m.directory.TenantByID(ctx, id, true)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("tenancy: resolve %s: %w", id, err)
	}
	if !desc.Active() {
		return nil, ErrTenantInactive
	}
	if !desc.Store.Configured() {
		if desc.Platform && m.bypass(callerRole) {
			return nil, nil
		}
		m.logger.Error("tenant store misconfigured",
			slog.String("tenant_id", id.String()),
			slog.Bool("platform", desc.Platform),
			slog.String("role", callerRole))
		return nil, ErrTenantMisconfigured
	}

	fp := desc.Store.fingerprint()
	if h := m.cached(id); h != nil {
		// A handle opened after the descriptor was last updated already reflects a
		// newer config than the one this caller read.
		if h.fingerprint == fp || (!desc.UpdatedAt.IsZero() && !h.openedAt.Before(desc.UpdatedAt)) {
			m.metrics.TenantLookup(true)
			return h, nil
		}
		m.evict(id, h, "config_changed")
	}
	m.metrics.TenantLookup(false)
	return m.establish(ctx, id, *desc.Store, fp)
}

func (m *Manager) cached(id uuid.UUID) *Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handles[id]
}

// establish opens the tenant connection once, however many resolvers arrive concurrently.
func (m *Manager) establish(ctx context.Context, id uuid.UUID, cfg StoreConfig, fp string) (*Handle, error) {
	resultCh := m.group.DoChan(id.String(), func() (any, error) {
		if h := m.cached(id); h != nil && h.fingerprint == fp {
			return h, nil
		}
		connectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		conn, err := m.connector.Connect(connectCtx, id, cfg)
		if err != nil {
			m.logger.Error("open tenant store",
				slog.String("tenant_id", id.String()),
				slog.Any("store", cfg),
				slog.Any("error", err))
			return nil, fmt.Errorf("tenancy: connect %s: %w", id, err)
		}
		h := &Handle{tenantID: id, conn: conn, fingerprint: fp, openedAt: time.Now()}

		m.mu.Lock()
		m.handles[id] = h
		size := len(m.handles)
		m.mu.Unlock()

		m.metrics.TenantOpened(size)
		m.logger.Info("tenant store connected", slog.String("tenant_id", id.String()), slog.Any("store", cfg))
		return h, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	}
}

// Invalidate drops the cached handle for a tenant, e.g. after its store configuration
// changed. The next Resolve re-establishes it.
func (m *Manager) Invalidate(tenantID uuid.UUID) bool {
	h := m.cached(tenantID)
	if h == nil {
		return false
	}
	return m.evict(tenantID, h, "invalidated")
}

// Evict drops h after a connection failure. It is a no-op if h was already replaced.
func (m *Manager) Evict(h *Handle) bool {
	if h == nil {
		return false
	}
	return m.evict(h.tenantID, h, "connection_failure")
}

func (m *Manager) evict(id uuid.UUID, h *Handle, reason string) bool {
	m.mu.Lock()
	current, ok := m.handles[id]
	if !ok || current != h {
		m.mu.Unlock()
		return false
	}
	delete(m.handles, id)
	size := len(m.handles)
	hooks := append([]func(uuid.UUID){}, m.onEvict...)
	m.mu.Unlock()

	h.conn.Close()
	for _, fn := range hooks {
		fn(id)
	}
	m.metrics.TenantEvicted(reason, size)
	m.logger.Info("tenant handle evicted", slog.String("tenant_id", id.String()), slog.String("reason", reason))
	return true
}

// Len returns the number of cached handles.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handles)
}

// Close releases every cached handle.
func (m *Manager) Close() {
	m.mu.Lock()
	handles := m.handles
	m.handles = make(map[uuid.UUID]*Handle)
	m.mu.Unlock()
	for _, h := range handles {
		h.conn.Close()
	}
}
