package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Options tune a pool beyond what the DSN carries. Zero values keep the DSN settings.
type Options struct {
	ApplicationName string
	MaxConns        int32
	ConnectTimeout  time.Duration
}

// Configure applies opts to a parsed pool configuration.
func Configure(config *pgxpool.Config, opts Options) {
	if opts.ApplicationName != "" {
		config.ConnConfig.RuntimeParams["application_name"] = opts.ApplicationName
	}
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.ConnectTimeout > 0 {
		config.ConnConfig.ConnectTimeout = opts.ConnectTimeout
	}
}

// New creates a PostgreSQL connection pool from a DSN.
func New(ctx context.Context, dsn string, opts Options) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: parse config: %w", err)
	}
	Configure(config, opts)
	return NewWithConfig(ctx, config)
}

// NewWithConfig creates a pool from a prepared configuration and verifies it with a ping.
// A failed ping closes the pool so no half-open pool escapes.
func NewWithConfig(ctx context.Context, config *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("platform/db: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("platform/db: ping: %w", err)
	}
	return pool, nil
}
