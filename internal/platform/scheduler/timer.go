package scheduler

import (
	"context"
	"sync"
	"time"

	"eventsink/internal/platform/logger"

	"k8s.io/utils/clock"
)

// Timer schedules jobs on in-process timers
type Timer struct {
	Mux

	clock clock.WithDelayedExecution
	log   *logger.Logger

	mu      sync.Mutex
	base    context.Context
	pending map[uint64]clock.Timer
	seq     uint64
	closed  bool
	running sync.WaitGroup
}

// NewTimer builds a Timer on c; nil uses the real clock
func NewTimer(c clock.WithDelayedExecution) *Timer {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Timer{
		clock:   c,
		log:     logger.Named("scheduler"),
		base:    context.Background(),
		pending: map[uint64]clock.Timer{},
	}
}

// Start sets the context handlers run under. Its values carry over but its
// cancellation does not, so retries firing during the shutdown grace still run
func (t *Timer) Start(ctx context.Context) error {
	t.mu.Lock()
	t.base = context.WithoutCancel(ctx)
	t.mu.Unlock()
	return nil
}

// ScheduleAfter arms a timer that dispatches job after delay
func (t *Timer) ScheduleAfter(_ context.Context, delay time.Duration, job Job) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	t.seq++
	id := t.seq
	t.pending[id] = t.clock.AfterFunc(delay, func() { t.fire(id, job) })
	return nil
}

func (t *Timer) fire(id uint64, job Job) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	delete(t.pending, id)
	t.running.Add(1)
	ctx := t.base
	t.mu.Unlock()
	defer t.running.Done()

	if err := t.Dispatch(ctx, job); err != nil {
		t.log.Error().Err(err).Str("kind", job.Kind).Msg("scheduled job failed")
	}
}

// Pending reports armed timers that have not fired yet
func (t *Timer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Close stops armed timers and waits for running handlers; pending jobs are dropped
func (t *Timer) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	dropped := 0
	for id, tm := range t.pending {
		if tm.Stop() {
			dropped++
		}
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if dropped > 0 {
		t.log.Warn().Int("dropped", dropped).Msg("pending jobs discarded at shutdown")
	}
	t.running.Wait()
	return nil
}
