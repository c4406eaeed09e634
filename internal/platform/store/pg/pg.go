// Package pg opens the pgx pool the warehouse is reached through. Redshift
// speaks the Postgres wire protocol, so pgx works against it unchanged
package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	URL      string
	MaxConns int32
	// SlowMs marks traced statements at or above it as slow; 0 disables
	SlowMs int
	// DialTimeout overrides connect_timeout from the DSN when set
	DialTimeout time.Duration
	// Tracer receives every statement; nil disables tracing
	Tracer QueryTracer
}

// PG is an open pool plus the tracing settings statements run under
type PG struct {
	Pool   *pgxpool.Pool
	Tracer QueryTracer
	SlowMs int
}

// connect is swapped in tests to avoid dialing
var connect = pgxpool.NewWithConfig

// Open parses cfg.URL and builds the pool. pgxpool dials lazily, so an
// unreachable cluster surfaces on first use, not here
func Open(ctx context.Context, cfg Config) (*PG, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := connect(ctx, pc)
	if err != nil {
		return nil, err
	}
	return &PG{Pool: pool, Tracer: cfg.Tracer, SlowMs: cfg.SlowMs}, nil
}

func poolConfig(cfg Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.DialTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = cfg.DialTimeout
	}
	return pc, nil
}

// Close is safe on a nil PG or an unopened pool
func (p *PG) Close() {
	if p == nil || p.Pool == nil {
		return
	}
	p.Pool.Close()
}
