// Package scheduler runs delayed jobs with at-least-once dispatch.
//
// Two implementations share the Scheduler surface: Timer keeps pending jobs
// in memory and loses them on exit, Spool persists them in SQLite and
// redelivers any job whose lease expired before it was acknowledged.
package scheduler

import (
	"context"
	"sync"
	"time"

	perr "eventsink/internal/platform/errors"
)

// Job is one unit of delayed work; Payload is opaque to the scheduler
type Job struct {
	Kind    string
	Payload []byte
}

// HandlerFunc executes a job; a returned error leaves redelivery to the implementation
type HandlerFunc func(ctx context.Context, job Job) error

// Scheduler enqueues jobs to run after a delay
type Scheduler interface {
	Handle(kind string, h HandlerFunc)
	ScheduleAfter(ctx context.Context, delay time.Duration, job Job) error
	Start(ctx context.Context) error
	Close() error
}

// Mux routes jobs to handlers by kind
type Mux struct {
	mu sync.RWMutex
	m  map[string]HandlerFunc
}

// Handle registers h for kind; empty kinds, nil handlers and duplicates panic
func (x *Mux) Handle(kind string, h HandlerFunc) {
	if kind == "" || h == nil {
		panic("scheduler: empty kind or nil handler")
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.m == nil {
		x.m = map[string]HandlerFunc{}
	}
	if _, dup := x.m[kind]; dup {
		panic("scheduler: duplicate handler for " + kind)
	}
	x.m[kind] = h
}

// Dispatch runs the handler registered for job.Kind
func (x *Mux) Dispatch(ctx context.Context, job Job) error {
	x.mu.RLock()
	h, ok := x.m[job.Kind]
	x.mu.RUnlock()
	if !ok {
		return perr.Newf(perr.ErrorCodeNotFound, "no handler for job kind %q", job.Kind)
	}
	return h(ctx, job)
}

// ErrClosed is returned when scheduling on a closed scheduler
var ErrClosed = perr.New(perr.ErrorCodeUnavailable, "scheduler closed")
