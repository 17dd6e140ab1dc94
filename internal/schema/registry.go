package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/observability"
	"github.com/odyssey-erp/odyssey-tenancy/internal/tenancy"
)

type cacheKey struct {
	tenant uuid.UUID
	entity string
}

// Registry caches compiled accessors per (tenant, entity).
type Registry struct {
	entities map[string]Entity
	metrics  *observability.Metrics

	mu        sync.RWMutex
	accessors map[cacheKey]*Accessor
}

// NewRegistry validates the entity definitions and returns an empty registry.
func NewRegistry(entities []Entity, metrics *observability.Metrics) (*Registry, error) {
	defs := make(map[string]Entity, len(entities))
	for _, e := range entities {
		if err := e.validate(); err != nil {
			return nil, err
		}
		if _, dup := defs[e.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate entity %q", e.Name)
		}
		defs[e.Name] = e
	}
	return &Registry{
		entities:  defs,
		metrics:   metrics,
		accessors: make(map[cacheKey]*Accessor),
	}, nil
}

// Entity returns a registered definition.
func (r *Registry) Entity(name string) (Entity, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// Entities lists the registered definitions ordered by name.
func (r *Registry) Entities() []Entity {
	out := make([]Entity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AccessorFor returns the accessor for entity bound to the tenant's handle. A nil handle
// means the platform tenant, which carries no business entities.
func (r *Registry) AccessorFor(h *tenancy.Handle, entity string) (*Accessor, error) {
	if h == nil {
		return nil, ErrNoTenantStore
	}
	def, ok := r.entities[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}
	key := cacheKey{tenant: h.TenantID(), entity: entity}

	r.mu.RLock()
	acc, ok := r.accessors[key]
	r.mu.RUnlock()
	if ok && acc.handle == h {
		return acc, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if acc, ok := r.accessors[key]; ok && acc.handle == h {
		return acc, nil
	}
	acc = newAccessor(def, h)
	r.accessors[key] = acc
	r.metrics.AccessorsCached(len(r.accessors))
	return acc, nil
}

// Invalidate drops every accessor of a tenant. Hooked to handle eviction.
func (r *Registry) Invalidate(tenantID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.accessors {
		if key.tenant == tenantID {
			delete(r.accessors, key)
		}
	}
	r.metrics.AccessorsCached(len(r.accessors))
}

// Reset drops every cached accessor.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accessors = make(map[cacheKey]*Accessor)
	r.metrics.AccessorsCached(0)
}

// Len returns the number of cached accessors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accessors)
}
