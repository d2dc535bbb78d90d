package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyCanonical(t *testing.T) {
	a := NewKey("/handovers", map[string]string{"unitId": "u1", "active": "true", "status": ""})
	b := NewKey("/handovers", map[string]string{"active": "true", "unitId": "u1"})
	assert.Equal(t, a, b)
	assert.Equal(t, "/handovers?active=true&unitId=u1", a.String())
	assert.Equal(t, "/units", NewKey("/units", nil).String())
	assert.True(t, Key{}.IsZero())
	assert.False(t, a.IsZero())
}

func counter(calls *int32, value func(n int32) []string) Fetcher[[]string] {
	return func(ctx context.Context) ([]string, error) {
		n := atomic.AddInt32(calls, 1)
		return value(n), nil
	}
}

func TestLoadAndShareAcrossQueries(t *testing.T) {
	cache := NewCache()
	key := NewKey("/units", nil)
	var calls int32
	fetch := counter(&calls, func(n int32) []string {
		if n == 1 {
			return []string{"A-101"}
		}
		return []string{"A-101", "A-102"}
	})

	first := NewQuery(cache, key, fetch, Options[[]string]{})
	second := NewQuery(cache, key, fetch, Options[[]string]{})
	defer first.Close()
	defer second.Close()

	assert.False(t, first.State().IsLoading, "nothing fetched yet")

	st, err := first.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A-101"}, st.Data)
	assert.False(t, st.IsLoading)

	// Already loaded by first.
	st, err = second.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A-101"}, st.Data)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	var seen []string
	second.Subscribe(func(s State[[]string]) { seen = s.Data })

	require.NoError(t, first.Mutate(context.Background()))
	assert.Equal(t, []string{"A-101", "A-102"}, second.State().Data)
	assert.Equal(t, []string{"A-101", "A-102"}, seen)
}

func TestDisabledQueryNeverFetches(t *testing.T) {
	cache := NewCache()
	fetch := func(ctx context.Context) ([]string, error) {
		t.Fatal("fetcher called for disabled query")
		return nil, nil
	}

	for _, q := range []*Query[[]string]{
		NewQuery(cache, NewKey("/users", nil), fetch, Options[[]string]{Disabled: true, Placeholder: []string{}}),
		NewQuery(cache, Key{}, fetch, Options[[]string]{Placeholder: []string{}}),
	} {
		st, err := q.Load(context.Background())
		require.NoError(t, err)
		assert.False(t, st.IsLoading)
		assert.Equal(t, []string{}, st.Data)
		require.NoError(t, q.Mutate(context.Background()))
		q.StartPolling(context.Background())
		q.Close()
	}
	require.NoError(t, cache.Focus(context.Background()))
}

func TestFailureKeepsData(t *testing.T) {
	cache := NewCache()
	fail := false
	boom := errors.New("server down")
	q := NewQuery(cache, NewKey("/requests", nil), func(ctx context.Context) (int, error) {
		if fail {
			return 0, boom
		}
		return 7, nil
	}, Options[int]{})
	defer q.Close()

	_, err := q.Load(context.Background())
	require.NoError(t, err)

	fail = true
	err = q.Mutate(context.Background())
	assert.ErrorIs(t, err, boom)
	st := q.State()
	assert.Equal(t, 7, st.Data)
	assert.ErrorIs(t, st.Err, boom)

	fail = false
	require.NoError(t, q.Mutate(context.Background()))
	assert.NoError(t, q.State().Err)
}

func TestConcurrentLoadsCoalesced(t *testing.T) {
	cache := NewCache()
	release := make(chan struct{})
	var calls int32
	q := NewQuery(cache, NewKey("/handovers", nil), func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 1, nil
	}, Options[int]{})
	defer q.Close()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = q.Load(context.Background())
		}()
	}
	require.Eventually(t, func() bool { return q.State().IsLoading }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	st := q.State()
	assert.Equal(t, 1, st.Data)
	assert.False(t, st.IsLoading)
	assert.False(t, st.IsValidating)
}

func TestMutateSeesWriteDuringPoll(t *testing.T) {
	cache := NewCache()
	key := NewKey("/handovers/h1", nil)
	var status atomic.Value
	status.Store("DRAFT")
	hold := make(chan struct{})
	var calls int32
	fetch := func(ctx context.Context) (string, error) {
		v := status.Load().(string)
		if atomic.AddInt32(&calls, 1) == 1 {
			<-hold
		}
		return v, nil
	}

	poller := NewQuery(cache, key, fetch, Options[string]{})
	view := NewQuery(cache, key, fetch, Options[string]{})
	defer poller.Close()
	defer view.Close()

	polled := make(chan struct{})
	go func() {
		defer close(polled)
		_, _ = poller.Load(context.Background())
	}()
	// The poll has read DRAFT and is still in flight when the write lands.
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)
	status.Store("SENT_TO_OWNER")

	require.NoError(t, view.Mutate(context.Background()))
	assert.Equal(t, "SENT_TO_OWNER", view.State().Data)
	assert.Equal(t, "SENT_TO_OWNER", poller.State().Data)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))

	// The older poll finishing late must not overwrite the newer result.
	close(hold)
	<-polled
	assert.Equal(t, "SENT_TO_OWNER", view.State().Data)
	assert.Equal(t, "SENT_TO_OWNER", poller.State().Data)
}

func TestRevalidateAfterWriteStartsNewFetch(t *testing.T) {
	cache := NewCache()
	key := NewKey("/snaggings", map[string]string{"unitId": "u1"})
	var version int32
	hold := make(chan struct{})
	var calls int32
	q := NewQuery(cache, key, func(ctx context.Context) (int32, error) {
		v := atomic.LoadInt32(&version)
		if atomic.AddInt32(&calls, 1) == 1 {
			<-hold
		}
		return v, nil
	}, Options[int32]{})
	defer q.Close()

	go func() { _, _ = q.Load(context.Background()) }()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)
	atomic.StoreInt32(&version, 1)

	require.NoError(t, cache.RevalidateResource(context.Background(), "/snaggings"))
	assert.EqualValues(t, 1, q.State().Data)
	close(hold)
}

func TestCloseAbortsInFlightFetch(t *testing.T) {
	cache := NewCache()
	started := make(chan struct{})
	q := NewQuery(cache, NewKey("/snaggings", nil), func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	}, Options[int]{})

	done := make(chan error, 1)
	go func() { done <- q.Mutate(context.Background()) }()
	<-started
	q.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("fetch not aborted by Close")
	}
	assert.NoError(t, q.State().Err)
}

func TestPollingStopsAfterClose(t *testing.T) {
	cache := NewCache()
	var calls int32
	q := NewQuery(cache, NewKey("/handovers", map[string]string{"unitId": "u1"}),
		counter(&calls, func(int32) []string { return nil }),
		Options[[]string]{RefreshInterval: 5 * time.Millisecond})

	q.StartPolling(context.Background())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 2 }, time.Second, time.Millisecond)

	q.Close()
	time.Sleep(10 * time.Millisecond)
	after := atomic.LoadInt32(&calls)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&calls))
}

func TestFocusRevalidatesOptedIn(t *testing.T) {
	cache := NewCache()
	var focused, plain int32
	a := NewQuery(cache, NewKey("/handovers", nil), counter(&focused, func(int32) []string { return nil }),
		Options[[]string]{RevalidateOnFocus: true})
	b := NewQuery(cache, NewKey("/units", nil), counter(&plain, func(int32) []string { return nil }),
		Options[[]string]{})
	defer a.Close()
	defer b.Close()

	require.NoError(t, cache.Focus(context.Background()))
	assert.EqualValues(t, 1, atomic.LoadInt32(&focused))
	assert.EqualValues(t, 0, atomic.LoadInt32(&plain))
}

func TestRevalidateResource(t *testing.T) {
	cache := NewCache()
	var all, one, units int32
	q1 := NewQuery(cache, NewKey("/handovers", nil), counter(&all, func(int32) []string { return nil }), Options[[]string]{})
	q2 := NewQuery(cache, NewKey("/handovers", map[string]string{"unitId": "u1"}), counter(&one, func(int32) []string { return nil }), Options[[]string]{})
	q3 := NewQuery(cache, NewKey("/units", nil), counter(&units, func(int32) []string { return nil }), Options[[]string]{})
	defer q1.Close()
	defer q2.Close()
	defer q3.Close()

	require.NoError(t, cache.RevalidateResource(context.Background(), "/handovers"))
	assert.EqualValues(t, 1, atomic.LoadInt32(&all))
	assert.EqualValues(t, 1, atomic.LoadInt32(&one))
	assert.EqualValues(t, 0, atomic.LoadInt32(&units))

	ok, err := cache.Revalidate(context.Background(), NewKey("/units", nil))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = cache.Revalidate(context.Background(), NewKey("/documents", nil))
	assert.False(t, ok)
}

func TestMutationRejectsDuplicateSubmit(t *testing.T) {
	release := make(chan struct{})
	m := NewMutation(func(ctx context.Context, id string) (string, error) {
		<-release
		return id + "-sent", nil
	})

	done := make(chan string, 1)
	go func() {
		out, _ := m.Run(context.Background(), "h1")
		done <- out
	}()
	require.Eventually(t, m.IsPending, time.Second, time.Millisecond)

	_, err := m.Run(context.Background(), "h1")
	assert.ErrorIs(t, err, ErrPending)

	close(release)
	assert.Equal(t, "h1-sent", <-done)
	assert.False(t, m.IsPending())

	out, err := m.Run(context.Background(), "h2")
	require.NoError(t, err)
	assert.Equal(t, "h2-sent", out)
}
