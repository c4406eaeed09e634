package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"eventsink/internal/platform/config"
	perr "eventsink/internal/platform/errors"
	kit "eventsink/internal/platform/testkit"

	testingclock "k8s.io/utils/clock/testing"
)

func TestMux_DispatchAndGuards(t *testing.T) {
	t.Parallel()

	var m Mux
	var got Job
	m.Handle("upload_batch", func(_ context.Context, j Job) error { got = j; return nil })

	if err := m.Dispatch(context.Background(), Job{Kind: "upload_batch", Payload: []byte("x")}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if string(got.Payload) != "x" {
		t.Fatalf("payload = %q", got.Payload)
	}

	err := m.Dispatch(context.Background(), Job{Kind: "nope"})
	if perr.CodeOf(err) != perr.ErrorCodeNotFound {
		t.Fatalf("unknown kind err = %v", err)
	}

	kit.MustPanic(t, func() { m.Handle("upload_batch", func(context.Context, Job) error { return nil }) })
	kit.MustPanic(t, func() { m.Handle("", func(context.Context, Job) error { return nil }) })
	kit.MustPanic(t, func() { m.Handle("x", nil) })
}

func TestTimer_FiresAfterDelay(t *testing.T) {
	t.Parallel()

	clk := testingclock.NewFakeClock(time.Unix(0, 0))
	tm := NewTimer(clk)
	fired := make(chan Job, 1)
	tm.Handle("upload_batch", func(_ context.Context, j Job) error { fired <- j; return nil })
	if err := tm.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := tm.ScheduleAfter(context.Background(), 3*time.Second, Job{Kind: "upload_batch", Payload: []byte("b1")}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if tm.Pending() != 1 {
		t.Fatalf("pending = %d", tm.Pending())
	}

	clk.Step(2999 * time.Millisecond)
	select {
	case <-fired:
		t.Fatal("fired before the delay elapsed")
	case <-time.After(20 * time.Millisecond):
	}

	clk.Step(time.Millisecond)
	j := kit.Recv(t, fired, time.Second)
	if string(j.Payload) != "b1" {
		t.Fatalf("payload = %q", j.Payload)
	}
	kit.Eventually(t, time.Second, func() bool { return tm.Pending() == 0 }, "timer not released")
}

func TestTimer_HandlersOutliveStartCancel(t *testing.T) {
	t.Parallel()

	clk := testingclock.NewFakeClock(time.Unix(0, 0))
	tm := NewTimer(clk)
	seen := make(chan error, 1)
	tm.Handle("upload_batch", func(ctx context.Context, _ Job) error { seen <- ctx.Err(); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	if err := tm.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := tm.ScheduleAfter(context.Background(), time.Second, Job{Kind: "upload_batch"}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	cancel()

	clk.Step(time.Second)
	if err := kit.Recv(t, seen, time.Second); err != nil {
		t.Fatalf("handler ctx err = %v", err)
	}
	_ = tm.Close()
}

func TestTimer_CloseDropsPending(t *testing.T) {
	t.Parallel()

	clk := testingclock.NewFakeClock(time.Unix(0, 0))
	tm := NewTimer(clk)
	var calls atomic.Int32
	tm.Handle("upload_batch", func(context.Context, Job) error { calls.Add(1); return nil })

	_ = tm.ScheduleAfter(context.Background(), time.Minute, Job{Kind: "upload_batch"})
	if err := tm.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	clk.Step(2 * time.Minute)
	time.Sleep(20 * time.Millisecond)

	if calls.Load() != 0 {
		t.Fatalf("handler ran after close")
	}
	if err := tm.ScheduleAfter(context.Background(), 0, Job{Kind: "upload_batch"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("schedule after close = %v", err)
	}
	if err := tm.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func newSpool(t *testing.T, clk *testingclock.FakeClock) *Spool {
	t.Helper()
	s, err := OpenSpool(filepath.Join(t.TempDir(), "spool.db"), SpoolOptions{
		Lease: time.Minute,
		Clock: clk,
	})
	if err != nil {
		t.Fatalf("open spool: %v", err)
	}
	return s
}

func TestSpool_DeliversDueJobsAndAcks(t *testing.T) {
	t.Parallel()

	clk := testingclock.NewFakeClock(time.Unix(1_700_000_000, 0))
	s := newSpool(t, clk)
	defer func() { _ = s.Close() }()

	done := make(chan Job, 2)
	s.Handle("upload_batch", func(_ context.Context, j Job) error { done <- j; return nil })
	ctx := context.Background()

	if err := s.ScheduleAfter(ctx, 3*time.Second, Job{Kind: "upload_batch", Payload: []byte(`{"id":"b1"}`)}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if n, err := s.pollOnce(ctx); err != nil || n != 0 {
		t.Fatalf("early poll leased %d, %v", n, err)
	}

	clk.Step(3 * time.Second)
	if n, err := s.pollOnce(ctx); err != nil || n != 1 {
		t.Fatalf("due poll leased %d, %v", n, err)
	}
	j := kit.Recv(t, done, time.Second)
	if string(j.Payload) != `{"id":"b1"}` {
		t.Fatalf("payload = %s", j.Payload)
	}
	s.jobs.Wait()

	if n, _ := s.Backlog(ctx); n != 0 {
		t.Fatalf("backlog after ack = %d", n)
	}
}

func TestSpool_RedeliversAfterLeaseExpiry(t *testing.T) {
	t.Parallel()

	clk := testingclock.NewFakeClock(time.Unix(1_700_000_000, 0))
	s := newSpool(t, clk)
	defer func() { _ = s.Close() }()

	var attempts atomic.Int32
	s.Handle("upload_batch", func(context.Context, Job) error {
		if attempts.Add(1) == 1 {
			return errors.New("handler crashed")
		}
		return nil
	})
	ctx := context.Background()
	_ = s.ScheduleAfter(ctx, 0, Job{Kind: "upload_batch"})

	if n, _ := s.pollOnce(ctx); n != 1 {
		t.Fatalf("first poll leased %d", n)
	}
	s.jobs.Wait()

	// still leased: nothing to hand out
	if n, _ := s.pollOnce(ctx); n != 0 {
		t.Fatalf("poll under lease leased %d", n)
	}

	clk.Step(time.Minute)
	if n, _ := s.pollOnce(ctx); n != 1 {
		t.Fatalf("poll after expiry leased %d", n)
	}
	s.jobs.Wait()

	if attempts.Load() != 2 {
		t.Fatalf("attempts = %d, want 2", attempts.Load())
	}
	if n, _ := s.Backlog(ctx); n != 0 {
		t.Fatalf("backlog = %d", n)
	}
}

func TestSpool_SurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "spool.db")
	clk := testingclock.NewFakeClock(time.Unix(1_700_000_000, 0))

	s, err := OpenSpool(path, SpoolOptions{Clock: clk})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = s.ScheduleAfter(context.Background(), time.Second, Job{Kind: "upload_batch", Payload: []byte("p")})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.ScheduleAfter(context.Background(), 0, Job{Kind: "upload_batch"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("schedule after close = %v", err)
	}

	s2, err := OpenSpool(path, SpoolOptions{Clock: clk})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s2.Close() }()
	if n, _ := s2.Backlog(context.Background()); n != 1 {
		t.Fatalf("backlog after reopen = %d", n)
	}
}

func TestSpool_StartPollsOnTicker(t *testing.T) {
	t.Parallel()

	clk := testingclock.NewFakeClock(time.Unix(1_700_000_000, 0))
	s, err := OpenSpool(filepath.Join(t.TempDir(), "spool.db"), SpoolOptions{Poll: time.Second, Clock: clk})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	done := make(chan struct{}, 1)
	s.Handle("upload_batch", func(context.Context, Job) error { done <- struct{}{}; return nil })
	_ = s.ScheduleAfter(context.Background(), 0, Job{Kind: "upload_batch"})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	kit.Eventually(t, time.Second, func() bool { return clk.HasWaiters() }, "ticker not armed")
	clk.Step(time.Second)
	kit.Recv(t, done, 2*time.Second)

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestOpen_SelectsKind(t *testing.T) {
	t.Setenv("TEST_SCHED_KIND", "spool")
	t.Setenv("TEST_SCHED_SPOOL_PATH", filepath.Join(t.TempDir(), "s.db"))

	sc, err := Open(config.New().Prefix("TEST_SCHED_"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := sc.(*Spool); !ok {
		t.Fatalf("got %T, want *Spool", sc)
	}
	_ = sc.Close()

	t.Setenv("TEST_SCHED_KIND", "")
	sc, err = Open(config.New().Prefix("TEST_SCHED_"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := sc.(*Timer); !ok {
		t.Fatalf("got %T, want *Timer", sc)
	}
}
