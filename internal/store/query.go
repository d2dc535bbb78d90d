package store

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is used by StartPolling when Options.RefreshInterval is unset.
const DefaultPollInterval = 30 * time.Second

// Fetcher loads a resource from the server.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Options tune a query. The zero value is an enabled query without polling.
type Options[T any] struct {
	// Disabled skips the network entirely, e.g. for admin-only lists when the
	// caller is an owner.
	Disabled bool
	// Placeholder is reported as Data until the first successful fetch and
	// for disabled queries.
	Placeholder       T
	RefreshInterval   time.Duration
	RevalidateOnFocus bool
}

// State is what a query currently knows.
type State[T any] struct {
	Data T
	// IsLoading is true while the first fetch of the key is in flight. A
	// query that has not been loaded yet reports false.
	IsLoading bool
	// IsValidating is true while any fetch of the key is in flight.
	IsValidating bool
	Err          error
	UpdatedAt    time.Time
}

// Query binds a key to a fetcher.
type Query[T any] struct {
	cache   *Cache
	key     Key
	fetcher Fetcher[T]
	opts    Options[T]

	ctx    context.Context
	cancel context.CancelFunc
	id     int

	mu     sync.Mutex
	unsubs []func()
}

// NewQuery registers a query on cache. It does not fetch until Load or Mutate.
func NewQuery[T any](cache *Cache, key Key, fetcher Fetcher[T], opts Options[T]) *Query[T] {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Query[T]{cache: cache, key: key, fetcher: fetcher, opts: opts, ctx: ctx, cancel: cancel}
	if q.enabled() {
		q.id = cache.register(key.String(), revalidator{
			resource: key.Resource(),
			focus:    opts.RevalidateOnFocus,
			run:      q.revalidate,
		})
	}
	return q
}

func (q *Query[T]) enabled() bool {
	return !q.opts.Disabled && !q.key.IsZero()
}

// Key returns the query's key.
func (q *Query[T]) Key() Key { return q.key }

// State returns a snapshot of the query.
func (q *Query[T]) State() State[T] {
	if !q.enabled() {
		return State[T]{Data: q.opts.Placeholder}
	}
	snap := q.cache.read(q.key.String())
	st := State[T]{
		Data:         q.opts.Placeholder,
		IsLoading:    snap.fetching && !snap.loaded && snap.err == nil,
		IsValidating: snap.fetching,
		Err:          snap.err,
		UpdatedAt:    snap.updatedAt,
	}
	if v, ok := snap.data.(T); ok && snap.loaded {
		st.Data = v
	}
	return st
}

// Load fetches the key unless some query already has. Concurrent loads share
// one fetch.
func (q *Query[T]) Load(ctx context.Context) (State[T], error) {
	if q.enabled() && !q.cache.read(q.key.String()).loaded {
		if err := q.revalidate(ctx, false); err != nil {
			return q.State(), err
		}
	}
	return q.State(), nil
}

// Mutate refetches the key from the server. Call it after a successful write:
// the fetch always starts after the call, so the write is seen even when a
// poll was already in flight. Every query sharing the key sees the result and
// its subscribers are told. Disabled queries do nothing.
func (q *Query[T]) Mutate(ctx context.Context) error {
	return q.revalidate(ctx, true)
}

// revalidate fetches the key; fresh is false for polls, focus and first loads,
// which share a fetch already in flight.
func (q *Query[T]) revalidate(ctx context.Context, fresh bool) error {
	if !q.enabled() {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(q.ctx, cancel)
	defer stop()

	return q.cache.fetch(ctx, q.key.String(), fresh, func(ctx context.Context) (interface{}, error) {
		return q.fetcher(ctx)
	})
}

// Subscribe calls fn with the new state whenever the key changes. The
// returned function unsubscribes; Close also does.
func (q *Query[T]) Subscribe(fn func(State[T])) func() {
	if !q.enabled() {
		return func() {}
	}
	unsub := q.cache.subscribe(q.key.String(), func() { fn(q.State()) })
	q.mu.Lock()
	q.unsubs = append(q.unsubs, unsub)
	q.mu.Unlock()
	return unsub
}

// StartPolling revalidates every RefreshInterval until ctx is done or the
// query is closed. Errors are kept in State.
func (q *Query[T]) StartPolling(ctx context.Context) {
	if !q.enabled() {
		return
	}
	interval := q.opts.RefreshInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.ctx.Done():
				return
			case <-ticker.C:
				_ = q.revalidate(ctx, false)
			}
		}
	}()
}

// Close stops polling, aborts in-flight fetches started by this query and
// drops its subscriptions. Cached data stays for other queries on the key.
func (q *Query[T]) Close() {
	q.cancel()
	if q.enabled() {
		q.cache.unregister(q.key.String(), q.id)
	}
	q.mu.Lock()
	unsubs := q.unsubs
	q.unsubs = nil
	q.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}
