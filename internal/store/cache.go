package store

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache holds one entry per key. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	flights singleflight.Group
	nextID  int
}

type entry struct {
	data      interface{}
	err       error
	loaded    bool
	fetching  int
	updatedAt time.Time
	// epoch numbers the flights on this key. begun is set once the fetcher
	// of the current epoch has been called; applied is the newest epoch whose
	// result was stored.
	epoch   int
	begun   bool
	applied int
	subs    map[int]func()
	// revalidators are the live queries on this key, used by Focus and Revalidate.
	revalidators map[int]revalidator
}

type revalidator struct {
	resource string
	focus    bool
	run      func(ctx context.Context, fresh bool) error
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

func (c *Cache) entryLocked(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{subs: make(map[int]func()), revalidators: make(map[int]revalidator)}
		c.entries[key] = e
	}
	return e
}

func (c *Cache) register(key string, rv revalidator) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.entryLocked(key).revalidators[c.nextID] = rv
	return c.nextID
}

func (c *Cache) unregister(key string, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		delete(e.revalidators, id)
		delete(e.subs, id)
	}
}

func (c *Cache) subscribe(key string, fn func()) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.entryLocked(key).subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			if e, ok := c.entries[key]; ok {
				delete(e.subs, id)
			}
			c.mu.Unlock()
		})
	}
}

type snapshot struct {
	data      interface{}
	err       error
	loaded    bool
	fetching  bool
	updatedAt time.Time
}

func (c *Cache) read(key string) snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return snapshot{}
	}
	return snapshot{data: e.data, err: e.err, loaded: e.loaded, fetching: e.fetching > 0, updatedAt: e.updatedAt}
}

// fetch runs fetcher for key. A shared fetch joins whatever flight is already
// running for the key. A fresh fetch only joins a flight whose fetcher has not
// been called yet, otherwise it starts a new one, so a write that finished
// before the call is always observed. Results of a flight older than the one
// last stored are dropped. Joiners wait on the first caller's context. Data
// only changes on success; a failure keeps the previous data.
func (c *Cache) fetch(ctx context.Context, key string, fresh bool, fetcher func(context.Context) (interface{}, error)) error {
	c.mu.Lock()
	e := c.entryLocked(key)
	if fresh && e.begun {
		e.epoch++
		e.begun = false
	}
	epoch := e.epoch
	e.fetching++
	c.mu.Unlock()
	c.notify(key)

	_, err, _ := c.flights.Do(key+"#"+strconv.Itoa(epoch), func() (interface{}, error) {
		c.mu.Lock()
		if e := c.entryLocked(key); e.epoch == epoch {
			e.begun = true
		}
		c.mu.Unlock()

		v, err := fetcher(ctx)

		c.mu.Lock()
		e := c.entryLocked(key)
		switch {
		case epoch < e.applied:
		case err == nil:
			e.data, e.err, e.loaded, e.updatedAt = v, nil, true, time.Now()
			e.applied = epoch
		case errors.Is(err, context.Canceled):
		default:
			e.err = err
			e.applied = epoch
		}
		c.mu.Unlock()
		return nil, err
	})

	c.mu.Lock()
	c.entryLocked(key).fetching--
	c.mu.Unlock()
	c.notify(key)

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Debug("revalidation failed", "key", key, "error", err)
	}
	return err
}

// notify calls the key's subscribers outside the lock.
func (c *Cache) notify(key string) {
	c.mu.Lock()
	e, ok := c.entries[key]
	var fns []func()
	if ok {
		fns = make([]func(), 0, len(e.subs))
		for _, fn := range e.subs {
			fns = append(fns, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Revalidate refetches key through any live query bound to it, like Mutate.
// It returns false when no query is registered for the key.
func (c *Cache) Revalidate(ctx context.Context, key Key) (bool, error) {
	c.mu.Lock()
	var run func(context.Context, bool) error
	if e, ok := c.entries[key.String()]; ok {
		for _, rv := range e.revalidators {
			run = rv.run
			break
		}
	}
	c.mu.Unlock()

	if run == nil {
		return false, nil
	}
	return true, run(ctx, true)
}

// RevalidateResource refetches every live key under resource, whatever its
// filters, like Mutate. The first error is returned after all keys have been
// tried.
func (c *Cache) RevalidateResource(ctx context.Context, resource string) error {
	var runs []func(context.Context, bool) error
	c.mu.Lock()
	for _, e := range c.entries {
		for _, rv := range e.revalidators {
			if rv.resource == resource {
				runs = append(runs, rv.run)
				break
			}
		}
	}
	c.mu.Unlock()
	return runAll(ctx, runs, true)
}

// Focus revalidates every live key that asked to be refreshed on focus. It
// shares fetches already in flight.
func (c *Cache) Focus(ctx context.Context) error {
	var runs []func(context.Context, bool) error
	c.mu.Lock()
	for _, e := range c.entries {
		for _, rv := range e.revalidators {
			if rv.focus {
				runs = append(runs, rv.run)
				break
			}
		}
	}
	c.mu.Unlock()
	return runAll(ctx, runs, false)
}

func runAll(ctx context.Context, runs []func(context.Context, bool) error, fresh bool) error {
	var first error
	for _, run := range runs {
		if err := run(ctx, fresh); err != nil && first == nil {
			first = err
		}
	}
	return first
}
