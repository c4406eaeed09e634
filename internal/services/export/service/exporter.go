package service

import (
	"context"
	"time"

	"eventsink/internal/core/buffer"
	"eventsink/internal/core/normalize"
	"eventsink/internal/core/statement"
	"eventsink/internal/platform/logger"
	"eventsink/internal/platform/metrics"
	"eventsink/internal/services/export/domain"

	"github.com/google/uuid"
	"k8s.io/utils/clock"
)

// ExporterConfig tunes the ingestion hook
type ExporterConfig struct {
	// EventsToIgnore are event names dropped before normalization
	EventsToIgnore []string
	ByteLimit      int
	Window         time.Duration
	// MaxRows caps the rows per batch. 0 or anything past what one INSERT
	// can bind takes that ceiling
	MaxRows int
	// Clock drives the buffer window; nil is the real clock
	Clock clock.WithDelayedExecution
}

// Exporter normalizes events into the buffer and hands every cut batch to
// the delivery port
type Exporter struct {
	buf      *buffer.Buffer[domain.Row]
	delivery domain.DeliveryPort
	ignore   map[string]struct{}
	metrics  *metrics.Metrics
	log      *logger.Logger
	newID    func() string
}

var _ domain.IngestPort = (*Exporter)(nil)

func NewExporter(delivery domain.DeliveryPort, m *metrics.Metrics, cfg ExporterConfig) *Exporter {
	e := &Exporter{
		delivery: delivery,
		ignore:   make(map[string]struct{}, len(cfg.EventsToIgnore)),
		metrics:  m,
		log:      logger.Named("export"),
		newID:    uuid.NewString,
	}
	for _, name := range cfg.EventsToIgnore {
		if name != "" {
			e.ignore[name] = struct{}{}
		}
	}
	ceiling := statement.MaxRows(len(domain.Columns))
	if cfg.MaxRows <= 0 || cfg.MaxRows > ceiling {
		cfg.MaxRows = ceiling
	}
	e.buf = buffer.New(buffer.Options{
		ByteLimit: cfg.ByteLimit,
		Window:    cfg.Window,
		MaxItems:  cfg.MaxRows,
		Clock:     cfg.Clock,
	}, e.flush)
	return e
}

// Limits reports the effective buffer bounds
func (e *Exporter) Limits() (bytes int, window time.Duration, rows int) {
	return e.buf.Limit(), e.buf.Window(), e.buf.MaxItems()
}

// OnEvent buffers one event. Ignored events return nil; a normalization
// failure is returned as is
func (e *Exporter) OnEvent(ctx context.Context, ev domain.RawEvent) error {
	_, err := e.ingest(ctx, ev)
	return err
}

// OnEvents buffers every event and counts the outcomes
func (e *Exporter) OnEvents(ctx context.Context, evs []domain.RawEvent) domain.IngestResult {
	var res domain.IngestResult
	for _, ev := range evs {
		ok, err := e.ingest(ctx, ev)
		switch {
		case err != nil:
			res.Rejected++
			if res.Err == nil {
				res.Err = err
			}
		case ok:
			res.Accepted++
		default:
			res.Ignored++
		}
	}
	return res
}

func (e *Exporter) ingest(ctx context.Context, ev domain.RawEvent) (bool, error) {
	if _, skip := e.ignore[ev.Event]; skip {
		e.metrics.RecordEvent(metrics.ResultIgnored)
		return false, nil
	}
	row, err := normalize.Normalize(ev)
	if err != nil {
		e.metrics.RecordEvent(metrics.ResultRejected)
		logger.C(ctx).Debug().Err(err).Str("event", ev.Event).Msg("event rejected")
		return false, err
	}
	if err := e.buf.Add(row, normalize.Size(row)); err != nil {
		e.metrics.RecordEvent(metrics.ResultRejected)
		return false, err
	}
	e.metrics.RecordEvent(metrics.ResultAccepted)
	e.metrics.SetBuffered(e.buf.Bytes())
	return true, nil
}

// Flush cuts the pending rows now
func (e *Exporter) Flush() { e.buf.Flush() }

func (e *Exporter) batch(s buffer.Snapshot[domain.Row]) domain.Batch {
	b := domain.Batch{ID: e.newID(), Rows: s.Items}
	e.metrics.RecordFlush(string(s.Reason), b.Len())
	e.metrics.SetBuffered(e.buf.Bytes())
	e.log.Info().
		Str("batch_id", b.ID).
		Int("batch_size", b.Len()).
		Int("bytes", s.Bytes).
		Str("reason", string(s.Reason)).
		Int("retries", 0).
		Msg("batch flushed")
	return b
}

func (e *Exporter) flush(s buffer.Snapshot[domain.Row]) {
	e.delivery.Submit(e.batch(s))
}

// Close stops accepting events and delivers what is left in the caller's
// goroutine. A failed final attempt follows the usual retry path
func (e *Exporter) Close(ctx context.Context) error {
	s, ok := e.buf.Close()
	if !ok {
		return nil
	}
	b := e.batch(s)
	st := e.delivery.Deliver(ctx, b)
	e.log.Info().Str("batch_id", b.ID).Stringer("state", st).Msg("final batch")
	return nil
}
