package store

import (
	"context"
	"time"

	perr "eventsink/internal/platform/errors"
	"eventsink/internal/platform/store/pg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxConn is what *pgxpool.Pool and *pgxpool.Conn have in common
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pool is the production ConnRunner. Statements on the pool itself and on
// acquired connections are traced alike
type pool struct {
	traced
	acquire func(context.Context) (pgxConn, func(), error)
	close   func()
}

func newPool(p *pg.PG) *pool {
	return &pool{
		traced: traced{conn: p.Pool, tracer: p.Tracer, slow: time.Duration(p.SlowMs) * time.Millisecond},
		acquire: func(ctx context.Context) (pgxConn, func(), error) {
			c, err := p.Pool.Acquire(ctx)
			if err != nil {
				return nil, nil, err
			}
			return c, c.Release, nil
		},
		close: p.Close,
	}
}

func (p *pool) WithConn(ctx context.Context, fn func(RowQuerier) error) error {
	conn, release, err := p.acquire(ctx)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeConnectivity, "acquire warehouse connection")
	}
	defer release()
	return fn(traced{conn: conn, tracer: p.tracer, slow: p.slow})
}

func (p *pool) Ping(ctx context.Context) error {
	_, err := Scalar[int](ctx, p, "SELECT 1")
	return err
}

func (p *pool) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}

// traced reports every statement to tracer when one is set
type traced struct {
	conn   pgxConn
	tracer pg.QueryTracer
	slow   time.Duration
}

func (t traced) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	done := t.begin(ctx, sql, len(args))
	ct, err := t.conn.Exec(ctx, sql, args...)
	done(err)
	return ct, err
}

func (t traced) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	done := t.begin(ctx, sql, len(args))
	rs, err := t.conn.Query(ctx, sql, args...)
	done(err)
	if err != nil {
		return nil, err
	}
	return pgxRows{rs}, nil
}

// QueryRow is traced when the row is scanned, which is when pgx reports errors
func (t traced) QueryRow(ctx context.Context, sql string, args ...any) Row {
	done := t.begin(ctx, sql, len(args))
	return scanHook{row: t.conn.QueryRow(ctx, sql, args...), done: done}
}

func (t traced) begin(ctx context.Context, sql string, n int) func(error) {
	if t.tracer == nil {
		return func(error) {}
	}
	start := time.Now()
	return func(err error) {
		took := time.Since(start)
		t.tracer.OnQuery(ctx, pg.QueryEvent{
			SQL:       sql,
			ArgCount:  n,
			ElapsedUS: took.Microseconds(),
			Err:       err,
			Slow:      t.slow > 0 && took >= t.slow,
		})
	}
}

type scanHook struct {
	row  pgx.Row
	done func(error)
}

func (s scanHook) Scan(dest ...any) error {
	err := s.row.Scan(dest...)
	s.done(err)
	return err
}

type pgxRows struct{ pgx.Rows }

func (r pgxRows) Columns() []string {
	fds := r.FieldDescriptions()
	names := make([]string, 0, len(fds))
	for _, fd := range fds {
		names = append(names, fd.Name)
	}
	return names
}
