package domain

import (
	"testing"
)

func TestRow_ValuesFollowColumns(t *testing.T) {
	t.Parallel()

	r := Row{
		UUID: "u1", Event: "e1", Properties: "{}", Elements: "[]", Set: "{}", SetOnce: "{}",
		DistinctID: "d1", TeamID: 1, IP: "127.0.0.1", SiteURL: "https://shop.example.com", Timestamp: "t1",
	}
	vals := r.Values()
	if len(vals) != len(Columns) {
		t.Fatalf("values = %d, columns = %d", len(vals), len(Columns))
	}
	want := map[string]any{
		"uuid": "u1", "event": "e1", "properties": "{}", "elements": "[]", "set": "{}", "set_once": "{}",
		"distinct_id": "d1", "team_id": int64(1), "ip": "127.0.0.1", "site_url": "https://shop.example.com", "timestamp": "t1",
	}
	for i, c := range Columns {
		if vals[i] != want[c] {
			t.Fatalf("column %s = %v, want %v", c, vals[i], want[c])
		}
	}
}

func TestBatch_NextLeavesOriginal(t *testing.T) {
	t.Parallel()

	b := Batch{ID: "b1", Rows: []Row{{UUID: "u1"}}, Retries: 0}
	n := b.Next()

	if b.Retries != 0 {
		t.Fatalf("original mutated: %+v", b)
	}
	if n.Retries != 1 || n.ID != "b1" || n.Len() != 1 || n.Rows[0].UUID != "u1" {
		t.Fatalf("next = %+v", n)
	}
}

func TestState_StringAndTerminal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		s        State
		name     string
		terminal bool
	}{
		{StatePending, "pending", false},
		{StateSubmitted, "submitted", false},
		{StateDelivered, "delivered", true},
		{StateAwaitingRetry, "awaiting_retry", false},
		{StateAbandoned, "abandoned", true},
		{State(42), "unknown", false},
	}
	for _, c := range cases {
		if c.s.String() != c.name || c.s.Terminal() != c.terminal {
			t.Fatalf("%d: %q terminal=%v", c.s, c.s.String(), c.s.Terminal())
		}
	}
}
