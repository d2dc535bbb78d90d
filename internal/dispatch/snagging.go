package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/evcraddock/propdesk/internal/message"
	"github.com/evcraddock/propdesk/internal/snagging"
	"github.com/evcraddock/propdesk/internal/store"
	"github.com/evcraddock/propdesk/internal/validate"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// SnaggingAPI is the part of the API client the snagging dispatcher uses.
type SnaggingAPI interface {
	CreateSnagging(ctx context.Context, in snagging.CreateInput) (*snagging.Snagging, error)
	GetSnagging(ctx context.Context, id string) (*snagging.Snagging, error)
	SendSnagging(ctx context.Context, id string) (*snagging.Snagging, error)
	AcceptSnagging(ctx context.Context, id string) (*snagging.Snagging, error)
	CancelSnagging(ctx context.Context, id string) (*snagging.Snagging, error)
	RegenerateSnaggingPDF(ctx context.Context, id string) (*snagging.Snagging, error)
	ScheduleSnagging(ctx context.Context, id string, at time.Time) (*snagging.Snagging, error)
	SignSnagging(ctx context.Context, id, signature string) (*snagging.Snagging, error)
	PostSnaggingMessage(ctx context.Context, id, body string) (*message.Message, error)
	EditSnaggingMessage(ctx context.Context, id, messageID, body string) (*message.Message, error)
	DeleteSnaggingMessage(ctx context.Context, id, messageID string) error
}

type snaggingCall func(ctx context.Context) (*snagging.Snagging, error)

// SnaggingDispatcher raises snagging reports and moves them through their
// lifecycle using the same table-driven gate as handovers.
type SnaggingDispatcher struct {
	api     SnaggingAPI
	role    workflow.Role
	confirm Confirmer

	create  *store.Mutation[snagging.CreateInput, *snagging.Snagging]
	actions *store.Mutation[snaggingCall, *snagging.Snagging]
}

// NewSnaggingDispatcher creates a dispatcher acting with role.
func NewSnaggingDispatcher(api SnaggingAPI, role workflow.Role, confirm Confirmer) *SnaggingDispatcher {
	return &SnaggingDispatcher{
		api:     api,
		role:    role,
		confirm: confirm,
		create:  store.NewMutation(api.CreateSnagging),
		actions: store.NewMutation(func(ctx context.Context, call snaggingCall) (*snagging.Snagging, error) {
			return call(ctx)
		}),
	}
}

// Pending reports whether a create or action is in flight.
func (d *SnaggingDispatcher) Pending() bool {
	return d.create.IsPending() || d.actions.IsPending()
}

// Create raises a report. Owners always file at MEDIUM priority; admins get
// MEDIUM when they leave it empty. Item and image limits are checked here.
func (d *SnaggingDispatcher) Create(ctx context.Context, in snagging.CreateInput) (*snagging.Snagging, error) {
	in.Priority = workflow.EffectivePriority(d.role, in.Priority)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	return d.create.Run(ctx, in)
}

// Perform runs send, accept, cancel or regenerate-pdf on s. Accept re-fetches
// the report so the returned value carries the generated pdfUrl.
func (d *SnaggingDispatcher) Perform(ctx context.Context, s *snagging.Snagging, action workflow.Action) (*snagging.Snagging, error) {
	var call snaggingCall
	switch action {
	case workflow.ActionSend:
		call = func(ctx context.Context) (*snagging.Snagging, error) { return d.api.SendSnagging(ctx, s.ID) }
	case workflow.ActionAccept:
		call = func(ctx context.Context) (*snagging.Snagging, error) { return d.api.AcceptSnagging(ctx, s.ID) }
	case workflow.ActionCancel:
		call = func(ctx context.Context) (*snagging.Snagging, error) { return d.api.CancelSnagging(ctx, s.ID) }
	case workflow.ActionRegeneratePDF:
		call = func(ctx context.Context) (*snagging.Snagging, error) { return d.api.RegenerateSnaggingPDF(ctx, s.ID) }
	default:
		return nil, fmt.Errorf("%s: %w", action, ErrUnsupportedAction)
	}

	out, err := d.run(ctx, s, action, call)
	if err != nil {
		return nil, err
	}
	if action == workflow.ActionAccept {
		return d.api.GetSnagging(ctx, s.ID)
	}
	return out, nil
}

// Schedule sets the visit time of s.
func (d *SnaggingDispatcher) Schedule(ctx context.Context, s *snagging.Snagging, at time.Time) (*snagging.Snagging, error) {
	if at.IsZero() {
		return nil, validate.Field("scheduledAt", "is required")
	}
	return d.run(ctx, s, workflow.ActionSchedule, func(ctx context.Context) (*snagging.Snagging, error) {
		return d.api.ScheduleSnagging(ctx, s.ID, at)
	})
}

// Sign stores the owner's signature on s.
func (d *SnaggingDispatcher) Sign(ctx context.Context, s *snagging.Snagging, signature string) (*snagging.Snagging, error) {
	if err := validate.Struct(snagging.SignatureInput{Signature: signature}); err != nil {
		return nil, err
	}
	return d.run(ctx, s, workflow.ActionSign, func(ctx context.Context) (*snagging.Snagging, error) {
		return d.api.SignSnagging(ctx, s.ID, signature)
	})
}

func (d *SnaggingDispatcher) run(ctx context.Context, s *snagging.Snagging, action workflow.Action, call snaggingCall) (*snagging.Snagging, error) {
	if err := allowed(s.Actions(d.role), action, string(s.Status)); err != nil {
		return nil, err
	}
	if err := confirm(ctx, d.confirm, action, "snagging report "+s.ID); err != nil {
		return nil, err
	}
	return d.actions.Run(ctx, call)
}

// PostMessage adds body to the report's thread.
func (d *SnaggingDispatcher) PostMessage(ctx context.Context, s *snagging.Snagging, body string) (*message.Message, error) {
	if err := validate.Struct(message.Input{Body: body}); err != nil {
		return nil, err
	}
	return d.api.PostSnaggingMessage(ctx, s.ID, body)
}

// EditMessage replaces the body of one of the caller's messages.
func (d *SnaggingDispatcher) EditMessage(ctx context.Context, s *snagging.Snagging, messageID, body string) (*message.Message, error) {
	if err := validate.Struct(message.Input{Body: body}); err != nil {
		return nil, err
	}
	return d.api.EditSnaggingMessage(ctx, s.ID, messageID, body)
}

// DeleteMessage removes a message after confirmation.
func (d *SnaggingDispatcher) DeleteMessage(ctx context.Context, s *snagging.Snagging, messageID string) error {
	if d.confirm == nil {
		return ErrDeclined
	}
	ok, err := d.confirm.Confirm(ctx, "delete message "+messageID+"?")
	if err != nil {
		return fmt.Errorf("confirming delete: %w", err)
	}
	if !ok {
		return ErrDeclined
	}
	return d.api.DeleteSnaggingMessage(ctx, s.ID, messageID)
}
