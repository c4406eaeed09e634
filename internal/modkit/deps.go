// Package modkit provides module wiring and core deps
package modkit

import (
	"context"

	"eventsink/internal/modkit/repokit"
	"eventsink/internal/platform/config"
	"eventsink/internal/platform/logger"
	"eventsink/internal/platform/metrics"
	"eventsink/internal/platform/scheduler"

	"github.com/prometheus/client_golang/prometheus"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log     logger.Logger
	Cfg     config.Conf
	PG      repokit.ConnRunner
	Jobs    scheduler.Scheduler
	Metrics *metrics.Metrics
	// Gatherer backs the /metrics route; nil disables it
	Gatherer prometheus.Gatherer
	// Ready reports warehouse reachability for /readyz; nil disables it
	Ready func(context.Context) error
}
