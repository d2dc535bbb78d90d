package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propdesk/internal/apiclient"
	"github.com/evcraddock/propdesk/internal/dispatch"
)

// pageFlags are the paging flags shared by the list commands.
type pageFlags struct {
	page  int
	limit int
}

func (p *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&p.page, "page", 1, "page number")
	cmd.Flags().IntVar(&p.limit, "limit", 20, "items per page")
}

// options builds list options; empty filter values are dropped by the client.
func (p pageFlags) options(filter map[string]string) apiclient.ListOptions {
	return apiclient.ListOptions{Page: p.page, Limit: p.limit, Filter: filter}
}

// emit prints v as JSON with --format json, otherwise through text.
func emit(cmd *cobra.Command, v interface{}, text func(w io.Writer) error) error {
	if isJSON() {
		return printJSON(cmd.OutOrStdout(), v)
	}
	return text(cmd.OutOrStdout())
}

// done prints a one-line confirmation, or v as JSON.
func done(cmd *cobra.Command, v interface{}, format string, args ...interface{}) error {
	return emit(cmd, v, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "✓ "+format+"\n", args...)
		return err
	})
}

// confirmDelete asks before removing something that has no workflow of its own.
func confirmDelete(cmd *cobra.Command, what string) error {
	ok, err := newConfirmer(cmd).Confirm(cmd.Context(), "delete "+what+"?")
	if err != nil {
		return err
	}
	if !ok {
		return dispatch.ErrDeclined
	}
	return nil
}
