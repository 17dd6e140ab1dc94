package tenancy

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/db"
)

// Conn is the live connection behind a tenant handle. *pgxpool.Pool satisfies it.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Connector opens tenant connections.
type Connector interface {
	Connect(ctx context.Context, tenantID uuid.UUID, cfg StoreConfig) (Conn, error)
}

// PGConnector opens a pgx pool per tenant.
type PGConnector struct {
	MaxConns int32
}

// Connect implements Connector.
func (c PGConnector) Connect(ctx context.Context, tenantID uuid.UUID, cfg StoreConfig) (Conn, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("tenancy: parse store uri for %s: %w", tenantID, err)
	}
	if cfg.Secret != "" {
		poolCfg.ConnConfig.Password = cfg.Secret
	}
	db.Configure(poolCfg, db.Options{
		ApplicationName: "odyssey-tenant-" + tenantID.String()[:8],
		MaxConns:        c.MaxConns,
	})
	pool, err := db.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// IsConnectionError reports whether err indicates the tenant store is unreachable,
// in which case the handle should be evicted.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

var _ Conn = (*pgxpool.Pool)(nil)
