package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory looks up tenant descriptors.
type Directory interface {
	// TenantByID loads a descriptor in a single round trip. Store secrets are only
	// selected when withSecrets is set.
	TenantByID(ctx context.Context, id uuid.UUID, withSecrets bool) (*Descriptor, error)
}

// PGDirectory reads tenants from the directory database.
type PGDirectory struct {
	pool *pgxpool.Pool
}

// NewPGDirectory constructs a PGDirectory.
func NewPGDirectory(pool *pgxpool.Pool) *PGDirectory {
	return &PGDirectory{pool: pool}
}

const tenantByIDSQL = `SELECT id, name, state, is_platform, store_uri,
	CASE WHEN $2::boolean THEN store_secret ELSE NULL END,
	updated_at
FROM tenants WHERE id = $1`

// TenantByID implements Directory.
func (d *PGDirectory) TenantByID(ctx context.Context, id uuid.UUID, withSecrets bool) (*Descriptor, error) {
	var (
		desc   Descriptor
		uri    *string
		secret *string
	)
	err := d.pool.QueryRow(ctx, tenantByIDSQL, id, withSecrets).Scan(
		&desc.ID, &desc.Name, &desc.State, &desc.Platform, &uri, &secret, &desc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("tenancy: load tenant: %w", err)
	}
	if uri != nil && *uri != "" {
		desc.Store = &StoreConfig{URI: *uri}
		if secret != nil {
			desc.Store.Secret = *secret
		}
	}
	return &desc, nil
}

var _ Directory = (*PGDirectory)(nil)
