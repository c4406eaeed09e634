// Package service implements batch delivery, the ingestion hook and table
// bootstrap for the export service
package service

import (
	"context"
	"sync"
	"time"

	"eventsink/internal/modkit/repokit"
	perr "eventsink/internal/platform/errors"
	"eventsink/internal/platform/logger"
	"eventsink/internal/platform/metrics"
	"eventsink/internal/platform/scheduler"
	"eventsink/internal/services/export/domain"
	"eventsink/internal/services/export/repo"

	json "github.com/goccy/go-json"
)

const (
	// JobUploadBatch is the scheduler kind carrying a batch to retry
	JobUploadBatch = "upload_batch"

	// MaxRetries is the retry count at which a failing batch is abandoned
	MaxRetries = 15

	// BaseDelay is the wait before the first retry; it doubles per retry
	BaseDelay = 3 * time.Second
)

// RetryDelay is the wait before attempt retries+1
func RetryDelay(retries int) time.Duration {
	return BaseDelay << uint(retries)
}

// CoordinatorConfig tunes delivery
type CoordinatorConfig struct {
	// StatementTimeout bounds one attempt; 0 means 60s
	StatementTimeout time.Duration
}

// Coordinator runs delivery attempts and the retry state machine
type Coordinator struct {
	db      repokit.ConnRunner
	binder  repokit.Binder[repo.Storage]
	jobs    scheduler.Scheduler
	metrics *metrics.Metrics
	cfg     CoordinatorConfig
	log     *logger.Logger

	inflight sync.WaitGroup
}

var _ domain.DeliveryPort = (*Coordinator)(nil)

// NewCoordinator registers the retry handler on jobs and returns the coordinator
func NewCoordinator(
	db repokit.ConnRunner,
	binder repokit.Binder[repo.Storage],
	jobs scheduler.Scheduler,
	m *metrics.Metrics,
	cfg CoordinatorConfig,
) *Coordinator {
	if cfg.StatementTimeout <= 0 {
		cfg.StatementTimeout = 60 * time.Second
	}
	c := &Coordinator{
		db:      db,
		binder:  binder,
		jobs:    jobs,
		metrics: m,
		cfg:     cfg,
		log:     logger.Named("export"),
	}
	jobs.Handle(JobUploadBatch, c.handleRetry)
	return c
}

// Deliver runs exactly one insert attempt for b. A failure below the retry
// ceiling enqueues b.Next() after RetryDelay(b.Retries); at the ceiling the
// batch is dropped with an error log
func (c *Coordinator) Deliver(ctx context.Context, b domain.Batch) domain.State {
	ctx = logger.WithBatch(ctx, b.ID)
	log := c.log.With().Str("batch_id", b.ID).Logger()

	start := time.Now()
	n, err := c.insert(ctx, b)
	elapsed := time.Since(start)

	if err == nil {
		c.metrics.RecordDelivery(metrics.OutcomeDelivered, elapsed)
		log.Info().
			Int("batch_size", b.Len()).
			Int("retries", b.Retries).
			Int64("rows", n).
			Dur("elapsed", elapsed).
			Msg("batch delivered")
		return domain.StateDelivered
	}

	c.metrics.RecordDelivery(metrics.OutcomeFailed, elapsed)
	class := perr.FailureClass(err)

	if b.Retries >= MaxRetries {
		c.metrics.RecordAbandon()
		log.Error().
			Err(err).
			Str("failure", class).
			Int("batch_size", b.Len()).
			Int("retries", b.Retries).
			Msg("batch abandoned after max retries")
		return domain.StateAbandoned
	}

	next := b.Next()
	delay := RetryDelay(b.Retries)
	if serr := c.schedule(ctx, delay, next); serr != nil {
		log.Error().
			Err(serr).
			AnErr("cause", err).
			Int("batch_size", b.Len()).
			Int("retries", b.Retries).
			Msg("retry could not be scheduled; batch dropped")
		return domain.StateAbandoned
	}

	c.metrics.RecordRetry()
	log.Warn().
		Err(err).
		Str("failure", class).
		Int("batch_size", b.Len()).
		Int("retries", next.Retries).
		Dur("delay", delay).
		Msg("batch delivery failed; retry scheduled")
	return domain.StateAwaitingRetry
}

// Submit delivers b on a tracked goroutine
func (c *Coordinator) Submit(b domain.Batch) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.Deliver(context.Background(), b)
	}()
}

// Wait blocks until every submitted delivery returned or ctx is done
func (c *Coordinator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return perr.Wrap(ctx.Err(), perr.ErrorCodeUnavailable, "in-flight deliveries did not drain")
	}
}

func (c *Coordinator) insert(ctx context.Context, b domain.Batch) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.StatementTimeout)
	defer cancel()

	var n int64
	err := c.db.WithConn(ctx, func(q repokit.Queryer) error {
		var err error
		n, err = repokit.MustBind(c.binder, q).Insert(ctx, b)
		return err
	})
	return n, err
}

func (c *Coordinator) schedule(ctx context.Context, delay time.Duration, b domain.Batch) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "encode batch")
	}
	return c.jobs.ScheduleAfter(ctx, delay, scheduler.Job{Kind: JobUploadBatch, Payload: payload})
}

// handleRetry is the scheduler entry point for a retried batch. The attempt's
// outcome is owned by Deliver, so the job is always acknowledged
func (c *Coordinator) handleRetry(ctx context.Context, job scheduler.Job) error {
	var b domain.Batch
	if err := json.Unmarshal(job.Payload, &b); err != nil {
		c.log.Error().Err(err).Int("payload_bytes", len(job.Payload)).Msg("undecodable retry payload dropped")
		return nil
	}
	c.Deliver(ctx, b)
	return nil
}
