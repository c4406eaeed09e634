// Package buffer accumulates items and hands them off in batches bounded by
// total byte size, item count and age.
//
// A batch is cut when the pending bytes reach the limit, when an item would
// push a non-empty batch over the limit (the pending items go first), when
// the item cap is reached, when the window elapses after the first item of a
// batch arrived, or on Flush.
// The cut and reset happen under one lock; the flush handler runs outside it,
// once per snapshot, and never sees an empty snapshot
package buffer

import (
	"sync"
	"time"

	perr "eventsink/internal/platform/errors"

	"k8s.io/utils/clock"
)

const (
	MinBytes  = 1 << 20
	MaxBytes  = 10 << 20
	MinWindow = time.Second
	MaxWindow = 600 * time.Second
)

// Reason says what cut a batch
type Reason string

const (
	ReasonSize   Reason = "size"
	ReasonCount  Reason = "count"
	ReasonWindow Reason = "window"
	ReasonManual Reason = "manual"
)

// ErrClosed is returned by Add after Close
var ErrClosed = perr.New(perr.ErrorCodeUnavailable, "buffer closed")

// Snapshot is one cut batch
type Snapshot[T any] struct {
	Items  []T
	Bytes  int
	Reason Reason
}

// FlushFunc receives every snapshot the buffer cuts on its own or on Flush
type FlushFunc[T any] func(Snapshot[T])

// Options configures a Buffer; zero values take the lower bounds
type Options struct {
	ByteLimit int
	Window    time.Duration
	// MaxItems caps the items per batch; 0 leaves only the byte limit
	MaxItems int
	// Clock defaults to the real clock
	Clock clock.WithDelayedExecution
}

// ClampBytes bounds a byte limit to [MinBytes, MaxBytes]
func ClampBytes(n int) int { return min(max(n, MinBytes), MaxBytes) }

// ClampWindow bounds a window to [MinWindow, MaxWindow]
func ClampWindow(d time.Duration) time.Duration { return min(max(d, MinWindow), MaxWindow) }

type Buffer[T any] struct {
	limit    int
	maxItems int
	window   time.Duration
	clk      clock.WithDelayedExecution
	onFlush  FlushFunc[T]

	mu     sync.Mutex
	items  []T
	bytes  int
	gen    uint64
	timer  clock.Timer
	closed bool
}

// New returns an empty buffer feeding onFlush
func New[T any](opt Options, onFlush FlushFunc[T]) *Buffer[T] {
	if onFlush == nil {
		panic("buffer: nil flush handler")
	}
	clk := opt.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Buffer[T]{
		limit:    ClampBytes(opt.ByteLimit),
		maxItems: max(opt.MaxItems, 0),
		window:   ClampWindow(opt.Window),
		clk:      clk,
		onFlush:  onFlush,
	}
}

// Limit is the effective byte limit after clamping
func (b *Buffer[T]) Limit() int { return b.limit }

// Window is the effective window after clamping
func (b *Buffer[T]) Window() time.Duration { return b.window }

// MaxItems is the item cap, 0 when unbounded
func (b *Buffer[T]) MaxItems() int { return b.maxItems }

// Add appends item with its byte footprint and flushes as the limits require
func (b *Buffer[T]) Add(item T, size int) error {
	var cut []Snapshot[T]

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if len(b.items) > 0 && b.bytes+size > b.limit {
		cut = append(cut, b.take(ReasonSize))
	}
	b.items = append(b.items, item)
	b.bytes += size
	if len(b.items) == 1 {
		b.arm()
	}
	switch {
	case b.bytes >= b.limit:
		cut = append(cut, b.take(ReasonSize))
	case b.maxItems > 0 && len(b.items) >= b.maxItems:
		cut = append(cut, b.take(ReasonCount))
	}
	b.mu.Unlock()

	for _, s := range cut {
		b.onFlush(s)
	}
	return nil
}

// Flush cuts whatever is pending; it does nothing on an empty buffer
func (b *Buffer[T]) Flush() {
	b.mu.Lock()
	if len(b.items) == 0 {
		b.mu.Unlock()
		return
	}
	s := b.take(ReasonManual)
	b.mu.Unlock()
	b.onFlush(s)
}

// Close stops the buffer and returns the pending items to the caller instead
// of the flush handler. ok is false when nothing was pending
func (b *Buffer[T]) Close() (s Snapshot[T], ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return s, false
	}
	b.closed = true
	if len(b.items) == 0 {
		b.stop()
		return s, false
	}
	return b.take(ReasonManual), true
}

func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *Buffer[T]) Bytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytes
}

// take must hold mu; it snapshots, resets and retires the current window
func (b *Buffer[T]) take(r Reason) Snapshot[T] {
	s := Snapshot[T]{Items: b.items, Bytes: b.bytes, Reason: r}
	b.items = nil
	b.bytes = 0
	b.stop()
	return s
}

// arm must hold mu; it starts the window for the batch that just began
func (b *Buffer[T]) arm() {
	gen := b.gen
	b.timer = b.clk.AfterFunc(b.window, func() { b.expire(gen) })
}

// stop must hold mu
func (b *Buffer[T]) stop() {
	b.gen++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Buffer[T]) expire(gen uint64) {
	b.mu.Lock()
	if gen != b.gen || len(b.items) == 0 {
		b.mu.Unlock()
		return
	}
	s := b.take(ReasonWindow)
	b.mu.Unlock()
	b.onFlush(s)
}
