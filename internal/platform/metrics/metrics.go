// Package metrics holds the prometheus collectors of the exporter
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventsink"

// Event results
const (
	ResultAccepted = "accepted"
	ResultIgnored  = "ignored"
	ResultRejected = "rejected"
)

// Delivery outcomes
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
)

// Metrics bundles every collector; a nil *Metrics records nothing
type Metrics struct {
	eventsReceived   *prometheus.CounterVec
	batchesFlushed   *prometheus.CounterVec
	rowsFlushed      prometheus.Counter
	deliveries       *prometheus.CounterVec
	deliverySeconds  prometheus.Histogram
	retriesScheduled prometheus.Counter
	batchesAbandoned prometheus.Counter
	bufferedBytes    prometheus.Gauge
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		eventsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Events handed to the exporter by result",
		}, []string{"result"}),
		batchesFlushed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_flushed_total",
			Help:      "Buffer flushes by trigger",
		}, []string{"reason"}),
		rowsFlushed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_flushed_total",
			Help:      "Rows handed to the delivery coordinator",
		}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_attempts_total",
			Help:      "Warehouse insert attempts by outcome",
		}, []string{"outcome"}),
		deliverySeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Time spent on one warehouse insert attempt",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		retriesScheduled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_scheduled_total",
			Help:      "Failed batches re-enqueued with backoff",
		}),
		batchesAbandoned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_abandoned_total",
			Help:      "Batches dropped after the retry ceiling",
		}),
		bufferedBytes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffered_bytes",
			Help:      "Bytes accumulated in the batch buffer",
		}),
	}
}

func (m *Metrics) RecordEvent(result string) {
	if m == nil {
		return
	}
	m.eventsReceived.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordFlush(reason string, rows int) {
	if m == nil {
		return
	}
	m.batchesFlushed.WithLabelValues(reason).Inc()
	m.rowsFlushed.Add(float64(rows))
}

func (m *Metrics) RecordDelivery(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome).Inc()
	m.deliverySeconds.Observe(elapsed.Seconds())
}

func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.retriesScheduled.Inc()
}

func (m *Metrics) RecordAbandon() {
	if m == nil {
		return
	}
	m.batchesAbandoned.Inc()
}

func (m *Metrics) SetBuffered(bytes int) {
	if m == nil {
		return
	}
	m.bufferedBytes.Set(float64(bytes))
}

// Handler serves the exposition format for g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
