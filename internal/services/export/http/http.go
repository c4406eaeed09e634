// Package http provides the capture endpoints of the export service
package http

import (
	"bytes"
	"context"
	"net"
	"net/http"

	"eventsink/internal/core/version"
	perr "eventsink/internal/platform/errors"
	"eventsink/internal/platform/metrics"
	phttp "eventsink/internal/platform/net/http"
	"eventsink/internal/platform/net/http/bind"
	"eventsink/internal/services/export/domain"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// MaxBody caps one capture request after gzip inflation
const MaxBody = 20 << 20

// Deps are the handler dependencies
type Deps struct {
	Ingest domain.IngestPort
	// Gatherer backs GET /metrics; nil leaves the route unmounted
	Gatherer prometheus.Gatherer
	// Ready backs GET /readyz; nil leaves the route unmounted
	Ready func(context.Context) error
}

type handlers struct {
	deps  Deps
	newID func() string
}

// CaptureResponse reports what happened to the posted events
type CaptureResponse struct {
	Accepted int `json:"accepted"`
	Ignored  int `json:"ignored"`
	Rejected int `json:"rejected"`
}

// batchEnvelope is the object form of POST /batch
type batchEnvelope struct {
	Batch []domain.RawEvent `json:"batch"`
}

var bodyOpts = bind.JSONOptions{MaxBytes: MaxBody}

// Register mounts the capture routes
func Register(r phttp.Router, d Deps) {
	h := &handlers{deps: d, newID: uuid.NewString}

	r.Post("/capture", phttp.Handle(h.capture))
	r.Post("/batch", phttp.Handle(h.batch))
	r.Get("/healthz", phttp.Handle(h.healthz))
	if d.Ready != nil {
		r.Get("/readyz", phttp.Handle(h.readyz))
	}
	if d.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(d.Gatherer))
	}
}

// capture takes one event; an event without a usable timestamp is a 400
func (h *handlers) capture(r *http.Request) phttp.Response {
	b, err := bind.Body(r, bodyOpts)
	if err != nil {
		return phttp.Error(err)
	}
	var ev domain.RawEvent
	if err := bind.Decode(b, &ev, false); err != nil {
		return phttp.Error(err)
	}
	if ev.Event == "" {
		return phttp.Error(perr.WithField(perr.New(perr.ErrorCodeValidation, "event is required"), "event"))
	}
	h.fill(r, &ev)

	res := h.deps.Ingest.OnEvents(r.Context(), []domain.RawEvent{ev})
	if res.Err != nil {
		return phttp.Error(res.Err)
	}
	return phttp.Accepted(CaptureResponse{Accepted: res.Accepted, Ignored: res.Ignored})
}

// batch takes {"batch":[...]} or a bare array; rejected events are counted,
// not failed
func (h *handlers) batch(r *http.Request) phttp.Response {
	b, err := bind.Body(r, bodyOpts)
	if err != nil {
		return phttp.Error(err)
	}

	var evs []domain.RawEvent
	if t := bytes.TrimLeft(b, " \t\r\n"); len(t) > 0 && t[0] == '[' {
		err = bind.Decode(b, &evs, false)
	} else {
		var env batchEnvelope
		err = bind.Decode(b, &env, false)
		evs = env.Batch
	}
	if err != nil {
		return phttp.Error(err)
	}

	kept := evs[:0]
	rejected := 0
	for i := range evs {
		if evs[i].Event == "" {
			rejected++
			continue
		}
		h.fill(r, &evs[i])
		kept = append(kept, evs[i])
	}

	res := h.deps.Ingest.OnEvents(r.Context(), kept)
	return phttp.Accepted(CaptureResponse{
		Accepted: res.Accepted,
		Ignored:  res.Ignored,
		Rejected: res.Rejected + rejected,
	})
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	Status string            `json:"status"`
	Build  version.BuildInfo `json:"build"`
}

func (h *handlers) healthz(*http.Request) phttp.Response {
	return phttp.OK(HealthResponse{Status: "ok", Build: version.Info()})
}

func (h *handlers) readyz(r *http.Request) phttp.Response {
	if err := h.deps.Ready(r.Context()); err != nil {
		return phttp.Error(err)
	}
	return phttp.OK(HealthResponse{Status: "ready", Build: version.Info()})
}

// fill supplies the uuid and client ip the sender left out
func (h *handlers) fill(r *http.Request, ev *domain.RawEvent) {
	if ev.UUID == "" {
		ev.UUID = h.newID()
	}
	if ev.IP == "" {
		ev.IP = clientIP(r)
	}
}

// clientIP is the remote host; RealIP middleware has already applied
// X-Forwarded-For and X-Real-IP
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
