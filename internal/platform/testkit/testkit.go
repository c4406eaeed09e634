// Package testkit holds helpers shared by the package tests
package testkit

import (
	"strings"
	"testing"
	"time"
)

// MustPanic fails t unless fn panics
func MustPanic(t testing.TB, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic")
		}
	}()
	fn()
}

// MustContain fails t unless s contains sub; the whole of s is printed on failure
func MustContain(t testing.TB, s, sub string) {
	t.Helper()
	if !strings.Contains(s, sub) {
		t.Fatalf("missing %q in:\n%s", sub, s)
	}
}

// Eventually polls cond every few milliseconds until it holds, failing t after within
func Eventually(t testing.TB, within time.Duration, cond func() bool, what string) {
	t.Helper()
	tick := time.NewTicker(2 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(within)
	for !cond() {
		select {
		case <-tick.C:
		case <-deadline:
			if cond() {
				return
			}
			t.Fatalf("after %v: %s", within, what)
		}
	}
}

// Recv returns the next value from ch, failing t if none arrives within
func Recv[T any](t testing.TB, ch <-chan T, within time.Duration) T {
	t.Helper()
	timer := time.NewTimer(within)
	defer timer.Stop()
	select {
	case v := <-ch:
		return v
	case <-timer.C:
		t.Fatalf("nothing received within %v", within)
		panic("unreachable")
	}
}
