package store

import (
	"bytes"
	"context"
	"errors"
	"testing"

	perr "eventsink/internal/platform/errors"

	"github.com/rs/zerolog"
)

// fakePool is a ConnRunner that can ping and close
type fakePool struct {
	traced
	pingErr error
	closed  bool
}

func (p *fakePool) Ping(context.Context) error { return p.pingErr }
func (p *fakePool) Close() error               { p.closed = true; return nil }
func (p *fakePool) WithConn(_ context.Context, fn func(RowQuerier) error) error {
	return fn(p.traced)
}

func TestOpen_Disabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s, err := Open(context.Background(), Config{}, WithLogger(zerolog.New(&buf)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.PG != nil {
		t.Fatalf("PG = %T, want nil", s.PG)
	}
	s.Log.Info().Msg("routed")
	if buf.Len() == 0 {
		t.Fatal("WithLogger not applied")
	}
	if err := s.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpen_Errors(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{PG: PGConfig{Enabled: true, URL: "://bad"}})
	if !perr.IsCode(err, perr.ErrorCodeConfiguration) {
		t.Fatalf("bad dsn err = %v", err)
	}

	boom := errors.New("boom")
	if _, err := Open(context.Background(), Config{}, func(*Store) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("option err = %v", err)
	}
}

func TestReady(t *testing.T) {
	t.Parallel()

	var unopened *Store
	if !perr.IsCode(unopened.Ready(context.Background()), perr.ErrorCodeUnavailable) {
		t.Fatal("nil store should be unavailable")
	}

	if err := (&Store{PG: &fakePool{}}).Ready(context.Background()); err != nil {
		t.Fatalf("healthy: %v", err)
	}

	down := errors.New("connection refused")
	err := (&Store{PG: &fakePool{pingErr: down}}).Ready(context.Background())
	if !perr.IsCode(err, perr.ErrorCodeConnectivity) || !errors.Is(err, down) {
		t.Fatalf("down: %v", err)
	}
}

func TestClose_ReleasesPool(t *testing.T) {
	t.Parallel()

	p := &fakePool{}
	if err := (&Store{PG: p}).Close(context.Background()); err != nil || !p.closed {
		t.Fatalf("closed=%v err=%v", p.closed, err)
	}
}
