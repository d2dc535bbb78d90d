package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propdesk/internal/store"
)

// watch renders the entity behind key, then re-renders whenever a poll or a
// manual refresh brings a newer copy. Pressing Enter refreshes immediately.
// It returns when the command context is cancelled.
func watch[T any](cmd *cobra.Command, key store.Key, fetch store.Fetcher[T], interval time.Duration, render func(io.Writer, T)) error {
	ctx := cmd.Context()
	cache := store.NewCache()
	q := store.NewQuery(cache, key, fetch, store.Options[T]{
		RefreshInterval:   interval,
		RevalidateOnFocus: true,
	})
	defer q.Close()

	changed := make(chan struct{}, 1)
	q.Subscribe(func(store.State[T]) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	st, err := q.Load(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	show := func(st store.State[T]) {
		if isJSON() {
			_ = printJSON(out, st.Data)
			return
		}
		fmt.Fprintf(out, "--- %s (refreshing every %s, Enter to refresh now, Ctrl-C to stop)\n",
			st.UpdatedAt.Local().Format("15:04:05"), interval)
		render(out, st.Data)
	}
	show(st)
	last := st.UpdatedAt

	go refreshOnEnter(ctx, cmd.InOrStdin(), cache)
	q.StartPolling(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			st := q.State()
			if st.IsValidating || !st.UpdatedAt.After(last) {
				continue
			}
			last = st.UpdatedAt
			show(st)
		}
	}
}

// refreshOnEnter treats each line on in as the terminal regaining focus.
func refreshOnEnter(ctx context.Context, in io.Reader, cache *store.Cache) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		_ = cache.Focus(ctx)
	}
}
