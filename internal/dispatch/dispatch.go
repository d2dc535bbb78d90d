// Package dispatch runs workflow actions against the API on behalf of a user.
// Every action is checked against the workflow tables before the network is
// touched, destructive ones are confirmed, and the API call goes through a
// duplicate-submit guard.
//
// Dispatchers do not notify. The API client has already reported server
// failures; locally rejected actions are returned as errors for the caller
// to show.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/evcraddock/propdesk/internal/apiclient"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// ErrDeclined is returned when the user does not confirm a destructive action.
var ErrDeclined = errors.New("action cancelled")

// ErrUnsupportedAction is returned for actions that have no API call, such as
// edit or download-pdf.
var ErrUnsupportedAction = errors.New("action is not dispatched through the API")

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// AlwaysConfirm approves every prompt.
var AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// allowed checks action against the actions the role has in the current status.
func allowed(actions workflow.ActionSet, action workflow.Action, status string) error {
	if !actions.Has(action) {
		return fmt.Errorf("%s on %s: %w", action, status, workflow.ErrTransitionNotAllowed)
	}
	return nil
}

// confirm asks c before destructive actions. A nil Confirmer declines.
func confirm(ctx context.Context, c Confirmer, action workflow.Action, what string) error {
	if !action.IsDestructive() {
		return nil
	}
	if c == nil {
		return ErrDeclined
	}
	ok, err := c.Confirm(ctx, fmt.Sprintf("%s %s?", action, what))
	if err != nil {
		return fmt.Errorf("confirming %s: %w", action, err)
	}
	if !ok {
		return ErrDeclined
	}
	return nil
}

var (
	_ HandoverAPI = (*apiclient.Client)(nil)
	_ SnaggingAPI = (*apiclient.Client)(nil)
	_ RequestAPI  = (*apiclient.Client)(nil)
)
