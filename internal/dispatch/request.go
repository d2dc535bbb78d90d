package dispatch

import (
	"context"
	"fmt"

	"github.com/evcraddock/propdesk/internal/request"
	"github.com/evcraddock/propdesk/internal/store"
	"github.com/evcraddock/propdesk/internal/validate"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// RequestAPI is the part of the API client the request dispatcher uses.
type RequestAPI interface {
	CreateRequest(ctx context.Context, in request.CreateInput) (*request.Request, error)
	GetRequest(ctx context.Context, id string) (*request.Request, error)
	ApproveRequest(ctx context.Context, id string) (*request.Request, error)
	RejectRequest(ctx context.Context, id, reason string) (*request.Request, error)
	CancelRequest(ctx context.Context, id string) (*request.Request, error)
	RevokeRequest(ctx context.Context, id string) (*request.Request, error)
}

type requestCall func(ctx context.Context) (*request.Request, error)

// RequestDispatcher submits owner requests and runs admin decisions on them.
// Every action result is re-fetched; nothing is assumed from the action reply.
type RequestDispatcher struct {
	api     RequestAPI
	role    workflow.Role
	confirm Confirmer

	create  *store.Mutation[request.CreateInput, *request.Request]
	actions *store.Mutation[requestCall, *request.Request]
}

// NewRequestDispatcher creates a dispatcher acting with role.
func NewRequestDispatcher(api RequestAPI, role workflow.Role, confirm Confirmer) *RequestDispatcher {
	return &RequestDispatcher{
		api:     api,
		role:    role,
		confirm: confirm,
		create:  store.NewMutation(api.CreateRequest),
		actions: store.NewMutation(func(ctx context.Context, call requestCall) (*request.Request, error) {
			return call(ctx)
		}),
	}
}

// Pending reports whether a create or action is in flight.
func (d *RequestDispatcher) Pending() bool {
	return d.create.IsPending() || d.actions.IsPending()
}

// Create submits a request after the same type-specific checks the server runs.
func (d *RequestDispatcher) Create(ctx context.Context, in request.CreateInput) (*request.Request, error) {
	if d.role != workflow.RoleOwner {
		return nil, fmt.Errorf("only owners submit requests: %w", workflow.ErrForbidden)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return d.create.Run(ctx, in)
}

// Approve grants a submitted request.
func (d *RequestDispatcher) Approve(ctx context.Context, r *request.Request) (*request.Request, error) {
	return d.run(ctx, r, workflow.ActionApprove, func(ctx context.Context) (*request.Request, error) {
		return d.api.ApproveRequest(ctx, r.ID)
	})
}

// Reject refuses a submitted request. The reason is required.
func (d *RequestDispatcher) Reject(ctx context.Context, r *request.Request, reason string) (*request.Request, error) {
	in := request.RejectInput{Reason: reason}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	return d.run(ctx, r, workflow.ActionReject, func(ctx context.Context) (*request.Request, error) {
		return d.api.RejectRequest(ctx, r.ID, in.Reason)
	})
}

// Cancel withdraws a submitted request.
func (d *RequestDispatcher) Cancel(ctx context.Context, r *request.Request) (*request.Request, error) {
	return d.run(ctx, r, workflow.ActionCancel, func(ctx context.Context) (*request.Request, error) {
		return d.api.CancelRequest(ctx, r.ID)
	})
}

// Revoke withdraws an approved request.
func (d *RequestDispatcher) Revoke(ctx context.Context, r *request.Request) (*request.Request, error) {
	return d.run(ctx, r, workflow.ActionRevoke, func(ctx context.Context) (*request.Request, error) {
		return d.api.RevokeRequest(ctx, r.ID)
	})
}

func (d *RequestDispatcher) run(ctx context.Context, r *request.Request, action workflow.Action, call requestCall) (*request.Request, error) {
	if err := allowed(r.Actions(d.role), action, string(r.Status)); err != nil {
		return nil, err
	}
	if err := confirm(ctx, d.confirm, action, "request "+r.ID); err != nil {
		return nil, err
	}
	if _, err := d.actions.Run(ctx, call); err != nil {
		return nil, err
	}
	return d.api.GetRequest(ctx, r.ID)
}
