// Package module implements the export service module
package module

import (
	"context"

	"eventsink/internal/core/statement"
	"eventsink/internal/modkit"
	perr "eventsink/internal/platform/errors"
	"eventsink/internal/platform/logger"
	phttp "eventsink/internal/platform/net/http"
	"eventsink/internal/services/export/domain"
	exporthttp "eventsink/internal/services/export/http"
	"eventsink/internal/services/export/repo"
	"eventsink/internal/services/export/service"

	"k8s.io/utils/clock"
)

// Ports exposed by the export module
type Ports struct {
	Ingest    domain.IngestPort
	Delivery  domain.DeliveryPort
	Bootstrap domain.BootstrapPort
}

// Module implements the export service module
type Module struct {
	deps     modkit.Deps
	opts     Options
	ports    Ports
	exporter *service.Exporter
	coord    *service.Coordinator
}

var (
	_ modkit.Module = (*Module)(nil)
	_ modkit.Closer = (*Module)(nil)
)

// New validates opts and wires repo, coordinator, buffer and exporter
func New(deps modkit.Deps, opts Options) (*Module, error) {
	return newModule(deps, opts, nil)
}

func newModule(deps modkit.Deps, opts Options, clk clock.WithDelayedExecution) (*Module, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if deps.PG == nil || deps.Jobs == nil {
		return nil, perr.Configf("export module needs a warehouse connection and a scheduler")
	}
	dialect, _ := opts.Dialect()

	target := repo.Target{Schema: opts.Schema, Table: opts.TableName, Dialect: dialect}
	binder := repo.NewPG(target)

	coord := service.NewCoordinator(deps.PG, binder, deps.Jobs, deps.Metrics, service.CoordinatorConfig{
		StatementTimeout: opts.StatementTimeout,
	})
	exp := service.NewExporter(coord, deps.Metrics, service.ExporterConfig{
		EventsToIgnore: opts.EventsToIgnore,
		ByteLimit:      opts.ByteLimit(),
		Window:         opts.Window(),
		MaxRows:        statement.MaxRows(len(domain.Columns)),
		Clock:          clk,
	})

	bytes, window, rows := exp.Limits()
	logger.Named("export").Info().
		Str("table", target.Qualified()).
		Str("dialect", dialect.String()).
		Int("byte_limit", bytes).
		Dur("window", window).
		Int("max_rows", rows).
		Strs("ignore", opts.EventsToIgnore).
		Msg("export configured")

	return &Module{
		deps:     deps,
		opts:     opts,
		exporter: exp,
		coord:    coord,
		ports: Ports{
			Ingest:    exp,
			Delivery:  coord,
			Bootstrap: service.NewBootstrapper(deps.PG, binder, target.Qualified()),
		},
	}, nil
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "export" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r phttp.Router) {
	exporthttp.Register(r, exporthttp.Deps{
		Ingest:   m.ports.Ingest,
		Gatherer: m.deps.Gatherer,
		Ready:    m.deps.Ready,
	})
}

// Close delivers the last partial batch and waits for in-flight deliveries
func (m *Module) Close(ctx context.Context) error {
	if err := m.exporter.Close(ctx); err != nil {
		return err
	}
	return m.coord.Wait(ctx)
}
