package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"eventsink/internal/modkit/repokit"
	"eventsink/internal/platform/metrics"
	"eventsink/internal/platform/scheduler"
	"eventsink/internal/platform/store"
	"eventsink/internal/services/export/domain"
	"eventsink/internal/services/export/repo"

	"github.com/prometheus/client_golang/prometheus"
)

// fakeDB hands out a nil-safe querier; the binder never touches it
type fakeDB struct {
	mu    sync.Mutex
	conns int
	err   error
}

func (f *fakeDB) Exec(context.Context, string, ...any) (store.CommandTag, error) {
	return nil, errors.New("unused")
}
func (f *fakeDB) Query(context.Context, string, ...any) (store.Rows, error) {
	return nil, errors.New("unused")
}
func (f *fakeDB) QueryRow(context.Context, string, ...any) store.Row { return nil }

func (f *fakeDB) WithConn(ctx context.Context, fn func(q store.RowQuerier) error) error {
	f.mu.Lock()
	f.conns++
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return fn(f)
}

// fakeStorage fails the first len(fails) inserts with the listed errors
type fakeStorage struct {
	mu       sync.Mutex
	fails    []error
	inserted []domain.Batch
	attempts int
	exists   bool
	ddl      int
	ddlErr   error
}

func (s *fakeStorage) Insert(ctx context.Context, b domain.Batch) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if len(s.fails) > 0 {
		err := s.fails[0]
		s.fails = s.fails[1:]
		if err != nil {
			return 0, err
		}
	}
	s.inserted = append(s.inserted, b)
	return int64(b.Len()), nil
}

func (s *fakeStorage) CreateTable(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ddl++
	return s.ddlErr
}

func (s *fakeStorage) TableExists(context.Context) (bool, error) { return s.exists, nil }

func (s *fakeStorage) counts() (attempts, delivered int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts, len(s.inserted)
}

func bindTo(s *fakeStorage) repokit.Binder[repo.Storage] {
	return repokit.BindFunc[repo.Storage](func(repokit.Queryer) repo.Storage { return s })
}

type scheduled struct {
	delay time.Duration
	job   scheduler.Job
}

// fakeJobs records ScheduleAfter calls and lets tests run a job by hand
type fakeJobs struct {
	scheduler.Mux
	mu   sync.Mutex
	got  []scheduled
	fail error
}

func (f *fakeJobs) ScheduleAfter(_ context.Context, d time.Duration, j scheduler.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.got = append(f.got, scheduled{delay: d, job: j})
	return nil
}

func (f *fakeJobs) Start(context.Context) error { return nil }
func (f *fakeJobs) Close() error                { return nil }

func (f *fakeJobs) all() []scheduled {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scheduled(nil), f.got...)
}

// fakeDelivery records what the exporter hands over
type fakeDelivery struct {
	mu        sync.Mutex
	submitted chan domain.Batch
	delivered []domain.Batch
	state     domain.State
}

func newFakeDelivery() *fakeDelivery {
	return &fakeDelivery{submitted: make(chan domain.Batch, 16), state: domain.StateDelivered}
}

func (f *fakeDelivery) Submit(b domain.Batch) { f.submitted <- b }

func (f *fakeDelivery) Deliver(_ context.Context, b domain.Batch) domain.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, b)
	return f.state
}

func newMetrics() (*metrics.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return metrics.New(reg), reg
}

// sum totals every series of a counter family
func sum(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
