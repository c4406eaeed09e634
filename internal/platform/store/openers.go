package store

import (
	"context"
	"time"

	perr "eventsink/internal/platform/errors"
	"eventsink/internal/platform/store/pg"

	"github.com/avast/retry-go"
)

// startup ping backoff doubles from backoffStart up to backoffCeiling
var (
	backoffStart   = 150 * time.Millisecond
	backoffCeiling = 2 * time.Second
)

// openPG builds the pool, then pings until the warehouse answers or attempts run out
func openPG(ctx context.Context, cfg Config, s *Store) (ConnRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}
	p, err := pg.Open(ctx, pg.Config{
		URL:         cfg.PG.ConnString(cfg.AppName),
		MaxConns:    cfg.PG.MaxConns,
		SlowMs:      cfg.PG.SlowQueryMs,
		DialTimeout: cfg.PG.pingTimeout(),
		Tracer:      tracer,
	})
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeConfiguration, "invalid warehouse connection settings")
	}

	attempts := cfg.PG.connectRetries()
	tries := 0
	err = retry.Do(
		func() error {
			tries++
			pctx, cancel := context.WithTimeout(ctx, cfg.PG.pingTimeout())
			defer cancel()
			return p.Pool.Ping(pctx)
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(backoffStart),
		retry.MaxDelay(backoffCeiling),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.Log.Warn().Err(err).Uint("attempt", n+1).Int("of", attempts).Msg("warehouse ping failed")
		}),
	)
	if err != nil {
		p.Close()
		return nil, perr.Wrapf(err, perr.ErrorCodeConnectivity, "warehouse unreachable after %d attempts", tries)
	}

	s.Log.Info().Str("dsn", cfg.PG.Redacted(cfg.AppName)).Int("attempts", tries).Msg("warehouse reachable")
	return newPool(p), nil
}
