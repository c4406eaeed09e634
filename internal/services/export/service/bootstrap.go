package service

import (
	"context"

	"eventsink/internal/modkit/repokit"
	perr "eventsink/internal/platform/errors"
	"eventsink/internal/platform/logger"
	"eventsink/internal/services/export/domain"
	"eventsink/internal/services/export/repo"
)

// Bootstrapper creates the destination table
type Bootstrapper struct {
	db     repokit.ConnRunner
	binder repokit.Binder[repo.Storage]
	table  string
}

var _ domain.BootstrapPort = (*Bootstrapper)(nil)

func NewBootstrapper(db repokit.ConnRunner, binder repokit.Binder[repo.Storage], table string) *Bootstrapper {
	return &Bootstrapper{db: db, binder: binder, table: table}
}

// Bootstrap runs the create-if-missing DDL; safe to repeat. Any failure is a
// Connectivity error and should stop startup
func (b *Bootstrapper) Bootstrap(ctx context.Context) error {
	if b.db == nil {
		return perr.New(perr.ErrorCodeConnectivity, "no warehouse connection")
	}
	var existed bool
	err := b.db.WithConn(ctx, func(q repokit.Queryer) error {
		s := repokit.MustBind(b.binder, q)
		var err error
		if existed, err = s.TableExists(ctx); err != nil {
			return err
		}
		return s.CreateTable(ctx)
	})
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeConnectivity) {
			return err
		}
		return perr.Wrap(err, perr.ErrorCodeConnectivity, "bootstrap "+b.table)
	}
	logger.Named("export").Info().Str("table", b.table).Bool("existed", existed).Msg("warehouse table ready")
	return nil
}
