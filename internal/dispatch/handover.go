package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/evcraddock/propdesk/internal/apiclient"
	"github.com/evcraddock/propdesk/internal/handover"
	"github.com/evcraddock/propdesk/internal/store"
	"github.com/evcraddock/propdesk/internal/unit"
	"github.com/evcraddock/propdesk/internal/validate"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// HandoverAPI is the part of the API client the handover dispatcher uses.
type HandoverAPI interface {
	CheckForExistingHandover(ctx context.Context, unitID string) (*handover.Handover, error)
	CreateHandover(ctx context.Context, in handover.CreateInput) (*handover.Handover, error)
	GetHandover(ctx context.Context, id string) (*handover.Handover, error)
	HandoverAction(ctx context.Context, id string, action workflow.Action, in handover.ActionInput) (*handover.Handover, error)
}

// ConflictError reports that the unit already has an active handover.
// Existing is nil when the conflict came from the server rather than the
// pre-flight check.
type ConflictError struct {
	Existing *handover.Handover
	cause    error
}

func (e *ConflictError) Error() string {
	if e.Existing != nil {
		return fmt.Sprintf("%v (%s, %s)", handover.ErrActiveHandoverExists, e.Existing.ID, e.Existing.Status)
	}
	return handover.ErrActiveHandoverExists.Error()
}

// Unwrap exposes handover.ErrActiveHandoverExists and the server error, if any.
func (e *ConflictError) Unwrap() []error {
	if e.cause != nil {
		return []error{handover.ErrActiveHandoverExists, e.cause}
	}
	return []error{handover.ErrActiveHandoverExists}
}

type handoverCall struct {
	id     string
	action workflow.Action
	in     handover.ActionInput
}

// HandoverDispatcher creates handovers and moves them through their lifecycle.
type HandoverDispatcher struct {
	api     HandoverAPI
	role    workflow.Role
	confirm Confirmer

	create  *store.Mutation[handover.CreateInput, *handover.Handover]
	actions *store.Mutation[handoverCall, *handover.Handover]
}

// NewHandoverDispatcher creates a dispatcher acting with role.
func NewHandoverDispatcher(api HandoverAPI, role workflow.Role, confirm Confirmer) *HandoverDispatcher {
	d := &HandoverDispatcher{api: api, role: role, confirm: confirm}
	d.create = store.NewMutation(api.CreateHandover)
	d.actions = store.NewMutation(func(ctx context.Context, c handoverCall) (*handover.Handover, error) {
		return api.HandoverAction(ctx, c.id, c.action, c.in)
	})
	return d
}

// Pending reports whether a create or action is in flight.
func (d *HandoverDispatcher) Pending() bool {
	return d.create.IsPending() || d.actions.IsPending()
}

// CanCreate reports whether a handover can be started for u at all.
func (d *HandoverDispatcher) CanCreate(u *unit.Unit) error {
	if !d.role.IsAdmin() {
		return workflow.ErrForbidden
	}
	if !u.HasOwner() {
		return handover.ErrNoOwnerAssigned
	}
	return nil
}

// Create starts a DRAFT handover for u. The unit ID and, when empty, the
// owner ID are taken from u.
//
// The active-handover check is a read followed by a separate write, so a
// handover created by someone else in between is only caught by the server.
// That 409 is returned as the same *ConflictError as the pre-flight rejection.
func (d *HandoverDispatcher) Create(ctx context.Context, u *unit.Unit, in handover.CreateInput) (*handover.Handover, error) {
	if err := d.CanCreate(u); err != nil {
		return nil, err
	}
	in.UnitID = u.ID
	if in.OwnerID == "" {
		in.OwnerID = u.Owner()
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	existing, err := d.api.CheckForExistingHandover(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &ConflictError{Existing: existing}
	}

	h, err := d.create.Run(ctx, in)
	if err != nil {
		if apiclient.IsConflict(err) {
			return nil, &ConflictError{cause: err}
		}
		return nil, err
	}
	return h, nil
}

var handoverEndpoints = workflow.NewActionSet(
	workflow.ActionSend,
	workflow.ActionAccept,
	workflow.ActionRequestChanges,
	workflow.ActionCancel,
)

// Perform runs action on h. Accept re-fetches the handover so the returned
// value carries the generated pdfUrl.
func (d *HandoverDispatcher) Perform(ctx context.Context, h *handover.Handover, action workflow.Action, in handover.ActionInput) (*handover.Handover, error) {
	if !handoverEndpoints.Has(action) {
		return nil, fmt.Errorf("%s: %w", action, ErrUnsupportedAction)
	}
	if err := allowed(h.Actions(d.role), action, string(h.Status)); err != nil {
		return nil, err
	}
	if err := confirm(ctx, d.confirm, action, "handover "+h.ID); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	out, err := d.actions.Run(ctx, handoverCall{id: h.ID, action: action.Canonical(), in: in})
	if err != nil {
		return nil, err
	}
	if action.Canonical() == workflow.ActionAccept {
		return d.api.GetHandover(ctx, h.ID)
	}
	return out, nil
}

// IsConflict reports whether err is an active-handover conflict from either
// the pre-flight check or the server.
func IsConflict(err error) bool {
	return errors.Is(err, handover.ErrActiveHandoverExists)
}
