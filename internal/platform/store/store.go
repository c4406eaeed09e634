// Package store owns the warehouse connection pool. Repos see it only through
// RowQuerier and ConnRunner, so they run against pgx in production and
// against fakes in tests
package store

import (
	"context"

	perr "eventsink/internal/platform/errors"
	"eventsink/internal/platform/logger"
)

type (
	Row interface {
		Scan(dest ...any) error
	}

	Rows interface {
		Next() bool
		Scan(dest ...any) error
		Columns() []string
		Err() error
		Close()
	}

	CommandTag interface {
		RowsAffected() int64
		String() string
	}
)

// RowQuerier runs SQL. Both the pool and a single acquired connection satisfy it
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// ConnRunner pins fn to one connection, released on every exit path including panics.
// Batch inserts use it so a statement never straddles connections
type ConnRunner interface {
	RowQuerier
	WithConn(ctx context.Context, fn func(q RowQuerier) error) error
}

// Store holds the opened warehouse client. PG is nil when the warehouse is disabled
type Store struct {
	Log logger.Logger
	PG  ConnRunner
}

// Option configures Open
type Option func(*Store) error

// WithLogger routes pool and SQL trace logs to log
func WithLogger(log logger.Logger) Option {
	return func(s *Store) error {
		s.Log = log
		return nil
	}
}

// Open connects to the warehouse when cfg.PG.Enabled, retrying the first ping
// with backoff. A malformed DSN is a Configuration error; an unreachable
// cluster is Connectivity
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if !cfg.PG.Enabled {
		return s, nil
	}

	pg, err := openPG(ctx, cfg, s)
	if err != nil {
		return nil, err
	}
	s.PG = pg
	return s, nil
}

// Ready pings the warehouse. A store without one is trivially ready
func (s *Store) Ready(ctx context.Context) error {
	if s == nil {
		return perr.New(perr.ErrorCodeUnavailable, "store not opened")
	}
	p, ok := s.PG.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return perr.Wrap(err, perr.ErrorCodeConnectivity, "warehouse ping")
	}
	return nil
}

// Close releases the pool
func (s *Store) Close(context.Context) error {
	if c, ok := s.PG.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
