// Package postgres stores finished matches and the snapshots game servers
// publish for discovery. Schema lives in migrations/.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/hexrooms/internal/config"
)

// Pool is the shared connection pool handed to every repository.
type Pool struct {
	pool *pgxpool.Pool
}

// PoolOption adjusts the pgx configuration before connecting.
type PoolOption func(*pgxpool.Config)

// WithApplicationName tags every session so the server shows up by name in
// pg_stat_activity.
func WithApplicationName(name string) PoolOption {
	return func(c *pgxpool.Config) {
		if name != "" {
			c.ConnConfig.RuntimeParams["application_name"] = name
		}
	}
}

// NewPool connects and verifies the database answers.
//
// Precondition: cfg passed config validation with Enabled set.
// Postcondition: Returns a pool that has completed one round trip, or an error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, opts ...PoolOption) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	for _, opt := range opts {
		opt(poolCfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening pool for %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database %s:%d unreachable: %w", cfg.Host, cfg.Port, err)
	}
	return &Pool{pool: pool}, nil
}

// Health pings the database, giving up after timeout.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.pool.Ping(ctx)
}

// Ping binds timeout into a health check for the HTTP /healthz endpoint.
func (p *Pool) Ping(timeout time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error { return p.Health(ctx, timeout) }
}

// Close waits for acquired connections to be released and closes them all.
func (p *Pool) Close() { p.pool.Close() }

// DB exposes the pgx pool to repositories.
func (p *Pool) DB() *pgxpool.Pool { return p.pool }
