// Package repository reads the offer catalog, affiliate profiles and redirect
// domains, and stores clicks and affiliate links in PostgreSQL.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig sizes the Postgres connection pool. Zero values keep the defaults.
type PoolConfig struct {
	MaxConns        int32         // default 10
	MinConns        int32         // default 2
	MaxConnIdleTime time.Duration // pgx default when zero
}

// Repository provides database access methods.
type Repository struct {
	pool *pgxpool.Pool
}

// ParseConfig parses databaseURL and applies the pool settings.
func ParseConfig(databaseURL string, pool PoolConfig) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	cfg.MaxConns = 10
	if pool.MaxConns > 0 {
		cfg.MaxConns = pool.MaxConns
	}
	cfg.MinConns = 2
	if pool.MinConns > 0 {
		cfg.MinConns = min(pool.MinConns, cfg.MaxConns)
	}
	if pool.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pool.MaxConnIdleTime
	}
	return cfg, nil
}

// New opens a connection pool and verifies it.
func New(ctx context.Context, databaseURL string, pool PoolConfig) (*Repository, error) {
	cfg, err := ParseConfig(databaseURL, pool)
	if err != nil {
		return nil, err
	}

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{pool: p}, nil
}

// Ping checks database connectivity for /readyz.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// nullableString maps empty optional columns to NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
