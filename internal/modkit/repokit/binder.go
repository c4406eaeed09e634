// Package repokit is the seam between repos and the store: repos are built
// over a Queryer so one repo value can be rebound per connection
package repokit

import "eventsink/internal/platform/store"

type (
	Queryer    = store.RowQuerier
	ConnRunner = store.ConnRunner
)

// Binder builds a repo T over whichever Queryer is current, usually the
// connection handed out by ConnRunner.WithConn
type Binder[T any] interface {
	Bind(Queryer) T
}

// BindFunc adapts a constructor such as NewStorage to Binder
type BindFunc[T any] func(Queryer) T

func (f BindFunc[T]) Bind(q Queryer) T { return f(q) }

// RequireQueryer panics on nil; a nil Queryer is a wiring bug, not a runtime state
func RequireQueryer(q Queryer) Queryer {
	if q == nil {
		panic("repokit: nil Queryer")
	}
	return q
}

// MustBind binds b to q after RequireQueryer
func MustBind[T any](b Binder[T], q Queryer) T { return b.Bind(RequireQueryer(q)) }
