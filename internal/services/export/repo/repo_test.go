package repo

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"eventsink/internal/core/statement"
	perr "eventsink/internal/platform/errors"
	"eventsink/internal/platform/store"
	"eventsink/internal/services/export/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

type fakeTag int64

func (f fakeTag) String() string      { return "INSERT 0" }
func (f fakeTag) RowsAffected() int64 { return int64(f) }

type fakeRow struct {
	n   int64
	err error
}

func (r fakeRow) Scan(dst ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dst[0].(*int64)) = r.n
	return nil
}

type fakeQ struct {
	sql     []string
	args    [][]any
	execErr error
	tag     store.CommandTag
	row     fakeRow
}

func (f *fakeQ) Exec(_ context.Context, sql string, args ...any) (store.CommandTag, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	if f.execErr != nil {
		return nil, f.execErr
	}
	if f.tag != nil {
		return f.tag, nil
	}
	return fakeTag(len(args) / len(domain.Columns)), nil
}

func (f *fakeQ) Query(context.Context, string, ...any) (store.Rows, error) {
	return nil, errors.New("not used")
}

func (f *fakeQ) QueryRow(_ context.Context, sql string, args ...any) store.Row {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return f.row
}

func target() Target {
	return Target{Schema: "public", Table: "posthog_event", Dialect: statement.Text}
}

func TestInsert_OneStatementPerBatch(t *testing.T) {
	t.Parallel()

	q := &fakeQ{}
	s := NewPG(target()).Bind(q)
	b := domain.Batch{ID: "b1", Rows: []domain.Row{{UUID: "u1"}, {UUID: "u2"}, {UUID: "u3"}}}

	n, err := s.Insert(context.Background(), b)
	if err != nil || n != 3 {
		t.Fatalf("insert = %d, %v", n, err)
	}
	if len(q.sql) != 1 || !strings.HasPrefix(q.sql[0], "INSERT INTO public.posthog_event (uuid, event,") {
		t.Fatalf("sql = %v", q.sql)
	}
	if len(q.args[0]) != 33 || q.args[0][0] != "u1" || q.args[0][22] != "u3" {
		t.Fatalf("args = %v", q.args[0])
	}
}

func TestInsert_RowCountMismatchIsLogged(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := zerolog.New(&buf)
	q := &fakeQ{tag: fakeTag(1)}
	s := binder{t: target(), log: &log}.Bind(q)
	b := domain.Batch{ID: "b7", Rows: []domain.Row{{UUID: "u1"}, {UUID: "u2"}}}

	n, err := s.Insert(context.Background(), b)
	if err != nil || n != 1 {
		t.Fatalf("insert = %d, %v", n, err)
	}
	out := buf.String()
	for _, want := range []string{`"batch_id":"b7"`, `"batch_size":2`, `"rows":1`, "row count mismatch"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log %q lacks %s", out, want)
		}
	}

	buf.Reset()
	q.tag = nil
	if _, err := s.Insert(context.Background(), b); err != nil || buf.Len() != 0 {
		t.Fatalf("matching insert logged %q (err %v)", buf.String(), err)
	}
}

func TestInsert_FailureIsDelivery(t *testing.T) {
	t.Parallel()

	q := &fakeQ{execErr: &pgconn.PgError{Code: "22001", ColumnName: "event"}}
	_, err := NewPG(target()).Bind(q).Insert(context.Background(), domain.Batch{Rows: []domain.Row{{}}})
	if !perr.IsCode(err, perr.ErrorCodeDelivery) {
		t.Fatalf("err = %v", err)
	}
	if e, _ := perr.As(err); e.Field() != "event" {
		t.Fatalf("field = %q", e.Field())
	}
	if perr.FailureClass(err) != perr.FailureData {
		t.Fatalf("class = %s", perr.FailureClass(err))
	}
}

func TestInsert_EmptyBatchNeverRuns(t *testing.T) {
	t.Parallel()

	q := &fakeQ{}
	if _, err := NewPG(target()).Bind(q).Insert(context.Background(), domain.Batch{}); err != statement.ErrEmptyBatch {
		t.Fatalf("err = %v", err)
	}
	if len(q.sql) != 0 {
		t.Fatalf("ran %v", q.sql)
	}
}

func TestCreateTable_SanitizedDDL(t *testing.T) {
	t.Parallel()

	q := &fakeQ{}
	s := NewPG(Target{Schema: "pub lic", Table: "events;drop", Dialect: statement.Structured}).Bind(q)
	if err := s.CreateTable(context.Background()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(q.sql[0], "CREATE TABLE IF NOT EXISTS public.eventsdrop (") ||
		!strings.Contains(q.sql[0], "properties super") {
		t.Fatalf("ddl = %s", q.sql[0])
	}

	q.execErr = errors.New("connection refused")
	if err := s.CreateTable(context.Background()); !perr.IsCode(err, perr.ErrorCodeConnectivity) {
		t.Fatalf("err = %v", err)
	}
}

func TestTableExists(t *testing.T) {
	t.Parallel()

	q := &fakeQ{row: fakeRow{n: 1}}
	s := NewPG(Target{Table: "posthog_event"}).Bind(q)
	ok, err := s.TableExists(context.Background())
	if err != nil || !ok {
		t.Fatalf("exists = %v, %v", ok, err)
	}
	if q.args[0][0] != "public" || q.args[0][1] != "posthog_event" {
		t.Fatalf("args = %v", q.args[0])
	}

	mixed := &fakeQ{row: fakeRow{n: 1}}
	if _, err := NewPG(Target{Schema: "Analytics", Table: "PostHog_Event"}).Bind(mixed).TableExists(context.Background()); err != nil {
		t.Fatal(err)
	}
	if mixed.args[0][0] != "analytics" || mixed.args[0][1] != "posthog_event" {
		t.Fatalf("folded args = %v", mixed.args[0])
	}

	q.row = fakeRow{err: errors.New("down")}
	if _, err := s.TableExists(context.Background()); !perr.IsCode(err, perr.ErrorCodeConnectivity) {
		t.Fatalf("err = %v", err)
	}
}
