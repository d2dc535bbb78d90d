package store

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrPending is returned by Run while a previous Run is still in flight.
var ErrPending = errors.New("action already in progress")

// Mutation wraps a write call and refuses duplicate submission.
//
// A successful Run does not touch the cache. Callers revalidate whatever the
// write affected, usually with Query.Mutate on the detail and list keys.
type Mutation[In, Out any] struct {
	fn      func(ctx context.Context, in In) (Out, error)
	pending atomic.Bool
}

// NewMutation wraps fn.
func NewMutation[In, Out any](fn func(ctx context.Context, in In) (Out, error)) *Mutation[In, Out] {
	return &Mutation[In, Out]{fn: fn}
}

// Run calls the write unless one is already running.
func (m *Mutation[In, Out]) Run(ctx context.Context, in In) (Out, error) {
	if !m.pending.CompareAndSwap(false, true) {
		var zero Out
		return zero, ErrPending
	}
	defer m.pending.Store(false)
	return m.fn(ctx, in)
}

// IsPending reports whether a Run is in flight.
func (m *Mutation[In, Out]) IsPending() bool {
	return m.pending.Load()
}
