package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-tenancy/internal/tenancy"
)

// Record is a row loaded by an accessor, keyed by column name.
type Record map[string]any

// Accessor reads one entity from one tenant's store.
type Accessor struct {
	entity   Entity
	handle   *tenancy.Handle
	columns  []string
	findByID string
}

func newAccessor(e Entity, h *tenancy.Handle) *Accessor {
	return &Accessor{
		entity:   e,
		handle:   h,
		columns:  e.selected(),
		findByID: e.findByIDSQL(),
	}
}

// Entity returns the definition the accessor was compiled from.
func (a *Accessor) Entity() Entity {
	return a.entity
}

// TenantID returns the tenant the accessor is bound to.
func (a *Accessor) TenantID() uuid.UUID {
	return a.handle.TenantID()
}

// FindByID loads a single record.
func (a *Accessor) FindByID(ctx context.Context, id uuid.UUID) (Record, error) {
	values := make([]any, len(a.columns))
	dest := make([]any, len(a.columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := a.handle.Conn().QueryRow(ctx, a.findByID, id).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("schema: load %s %s: %w", a.entity.Name, id, err)
	}
	rec := make(Record, len(a.columns))
	for i, col := range a.columns {
		rec[col] = normalize(values[i])
	}
	return rec, nil
}

// OwnerOf returns the tenant owning a record.
func (a *Accessor) OwnerOf(rec Record) (uuid.UUID, bool) {
	return asUUID(rec[a.entity.TenantColumn])
}

// Redact removes guarded columns the caller may not see.
func (a *Accessor) Redact(rec Record, allowed func(col string) bool) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		if _, guarded := a.entity.Guarded[k]; guarded && !allowed(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// normalize converts driver values into their JSON-friendly form.
func normalize(v any) any {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val)
	default:
		return v
	}
}

func asUUID(v any) (uuid.UUID, bool) {
	switch val := v.(type) {
	case uuid.UUID:
		return val, val != uuid.Nil
	case [16]byte:
		id := uuid.UUID(val)
		return id, id != uuid.Nil
	case string:
		id, err := uuid.Parse(val)
		return id, err == nil && id != uuid.Nil
	default:
		return uuid.Nil, false
	}
}
