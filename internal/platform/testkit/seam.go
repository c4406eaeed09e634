package testkit

import (
	"sync"
	"testing"
)

// seams guards package-level variables that tests replace
var seams sync.Mutex

// Swap points *target at v until the test ends
func Swap[T any](t testing.TB, target *T, v T) {
	t.Helper()
	prev := *target
	*target = v
	t.Cleanup(func() { *target = prev })
}

// Serial holds the seam lock for the rest of t. Tests that call Swap on shared
// package state should call Serial first and must not run in parallel
func Serial(t testing.TB) {
	t.Helper()
	seams.Lock()
	t.Cleanup(seams.Unlock)
}
