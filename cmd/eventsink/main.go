package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventsink/internal/core/version"
	"eventsink/internal/modkit"
	"eventsink/internal/platform/config"
	"eventsink/internal/platform/logger"
	"eventsink/internal/platform/metrics"
	phttp "eventsink/internal/platform/net/http"
	"eventsink/internal/platform/net/middleware"
	"eventsink/internal/platform/scheduler"
	"eventsink/internal/platform/store"

	exportmod "eventsink/internal/services/export/module"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	fConfig := flag.String("config", "", "optional YAML file overlaid onto the environment")
	flag.Parse()

	root := config.New()
	if *fConfig != "" {
		// plugin style keys (clusterHost, uploadSeconds) land in CORE_EXPORT_*
		set, err := root.Prefix("CORE_EXPORT_").LoadYAML(*fConfig)
		if err != nil {
			logger.Get().Fatal().Err(err).Msg("config file")
		}
		logger.Get().Info().Strs("keys", set).Str("file", *fConfig).Msg("config file loaded")
	}

	apiCfg := root.Prefix("CORE_API_")
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	l := logger.Get()
	l.Info().Interface("build", version.Info()).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := exportmod.FromConfig(root)
	if err := opts.Validate(); err != nil {
		l.Fatal().Err(err).Msg("invalid export options")
	}

	pg := opts.Store()
	pg.URL = pgCfg.MayString("DBURL", "")
	pg.MaxConns = int32(pgCfg.MayInt("MAX_CONNS", 4))
	pg.SlowQueryMs = pgCfg.MayInt("SLOW_MS", 2000)
	pg.LogSQL = pgCfg.MayBool("LOG_SQL", false)
	pg.ConnectRetries = pgCfg.MayInt("CONNECT_RETRIES", 6)

	st, err := store.Open(ctx, store.Config{AppName: "eventsink", PG: pg}, store.WithLogger(*l))
	if err != nil {
		l.Fatal().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	jobs, err := scheduler.Open(root.Prefix("CORE_SCHEDULER_"))
	if err != nil {
		l.Fatal().Err(err).Msg("scheduler open failed")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mod, err := exportmod.New(modkit.Deps{
		Log:      *l,
		Cfg:      root,
		PG:       st.PG,
		Jobs:     jobs,
		Metrics:  metrics.New(reg),
		Gatherer: reg,
		Ready:    st.Ready,
	}, opts)
	if err != nil {
		l.Fatal().Err(err).Msg("export module")
	}

	ports := modkit.MustPortsOf[exportmod.Ports](mod)
	if err := ports.Bootstrap.Bootstrap(ctx); err != nil {
		l.Fatal().Err(err).Msg("warehouse bootstrap failed")
	}
	if err := jobs.Start(ctx); err != nil {
		l.Fatal().Err(err).Msg("scheduler start failed")
	}

	srv := phttp.NewServer(apiCfg, func(m *chi.Mux) {
		m.Use(middleware.CORS(middleware.CORSOptions{
			AllowedOrigins: apiCfg.MayCSV("CORS_ORIGINS", nil),
		}))
		m.Use(middleware.Defaults(middleware.StackOptions{
			Timeout:     apiCfg.MayDuration("REQUEST_TIMEOUT", 15*time.Second),
			SlowRequest: apiCfg.MayDuration("SLOW_REQUEST", 2*time.Second),
		})...)
	})
	mod.MountRoutes(srv.Router())

	errc := make(chan error, 1)
	go func() { errc <- srv.Run(ctx) }()

	select {
	case <-ctx.Done():
		l.Info().Msg("shutdown requested")
	case err := <-errc:
		if err != nil {
			l.Error().Err(err).Msg("http server stopped")
		}
	}

	grace := apiCfg.MayDuration("SHUTDOWN_GRACE", 30*time.Second)
	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		l.Error().Err(err).Msg("http shutdown")
	}
	if err := mod.Close(sctx); err != nil {
		l.Error().Err(err).Msg("export drain incomplete")
	}
	if err := jobs.Close(); err != nil {
		l.Error().Err(err).Msg("scheduler close")
	}
	l.Info().Msg("bye")
}
