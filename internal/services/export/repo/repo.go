// Package repo provides the warehouse storage for exported batches
package repo

import (
	"context"
	"strings"

	"eventsink/internal/core/sqlident"
	"eventsink/internal/core/statement"
	"eventsink/internal/modkit/repokit"
	perr "eventsink/internal/platform/errors"
	"eventsink/internal/platform/logger"
	"eventsink/internal/platform/store"
	"eventsink/internal/services/export/domain"
)

// Target names the destination table and how its JSON columns are typed
type Target struct {
	Schema  string
	Table   string
	Dialect statement.Dialect
}

// Qualified is the sanitized schema.table
func (t Target) Qualified() string { return sqlident.Qualified(t.Schema, t.Table) }

type (
	pg struct {
		q   repokit.Queryer
		t   Target
		log *logger.Logger
	}
	binder struct {
		t   Target
		log *logger.Logger
	}
)

// NewPG constructs a repo binder for the Postgres wire protocol
func NewPG(t Target) repokit.Binder[Storage] { return binder{t: t, log: logger.Named("export.repo")} }

// Bind implements repokit.Binder
func (b binder) Bind(q repokit.Queryer) Storage { return &pg{q: q, t: b.t, log: b.log} }

// Storage defines the export repository
type Storage interface {
	Insert(ctx context.Context, b domain.Batch) (int64, error)
	CreateTable(ctx context.Context) error
	TableExists(ctx context.Context) (bool, error)
}

// Insert writes every row of b with one statement. A row count that differs
// from the batch is logged, not failed: the statement already committed
func (s *pg) Insert(ctx context.Context, b domain.Batch) (int64, error) {
	sql, args, err := statement.Insert(s.t.Qualified(), domain.Columns, b.Rows, s.t.Dialect)
	if err != nil {
		return 0, err
	}
	n, err := store.ExecRows(ctx, s.q, sql, args...)
	if err != nil {
		return 0, perr.FromPostgres(err, perr.ErrorCodeDelivery, "insert batch")
	}
	if n != int64(b.Len()) {
		s.log.Warn().
			Str("batch_id", b.ID).
			Int("batch_size", b.Len()).
			Int64("rows", n).
			Msg("insert row count mismatch")
	}
	return n, nil
}

// CreateTable runs the idempotent DDL
func (s *pg) CreateTable(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, statement.CreateTable(s.t.Schema, s.t.Table, s.t.Dialect)); err != nil {
		return perr.FromPostgres(err, perr.ErrorCodeConnectivity, "create table "+s.t.Qualified())
	}
	return nil
}

// TableExists asks the catalog for the target table. The DDL leaves names
// unquoted, so the catalog holds them folded to lower case
func (s *pg) TableExists(ctx context.Context) (bool, error) {
	schema := sqlident.Sanitize(s.t.Schema)
	if schema == "" {
		schema = "public"
	}
	n, err := store.Scalar[int64](ctx, s.q,
		`SELECT count(*) FROM information_schema.tables WHERE lower(table_schema) = $1 AND lower(table_name) = $2`,
		strings.ToLower(schema), strings.ToLower(sqlident.Sanitize(s.t.Table)))
	if err != nil {
		return false, perr.FromPostgres(err, perr.ErrorCodeConnectivity, "lookup table "+s.t.Qualified())
	}
	return n > 0, nil
}
