package scheduler

import (
	"time"

	"eventsink/internal/platform/config"
)

// Kinds accepted by Open
const (
	KindTimer = "timer"
	KindSpool = "spool"
)

// Open builds the scheduler selected by KIND; cfg is expected to carry the
// CORE_SCHEDULER_ prefix
func Open(cfg config.Conf) (Scheduler, error) {
	switch cfg.MayEnum("KIND", KindTimer, KindTimer, KindSpool) {
	case KindSpool:
		return OpenSpool(cfg.MayString("SPOOL_PATH", "eventsink-spool.db"), SpoolOptions{
			Poll:  cfg.MayDuration("SPOOL_POLL", time.Second),
			Lease: cfg.MayDuration("SPOOL_LEASE", 5*time.Minute),
			Batch: cfg.MayInt("SPOOL_BATCH", 16),
		})
	default:
		return NewTimer(nil), nil
	}
}
