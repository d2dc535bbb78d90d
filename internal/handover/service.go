package handover

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/evcraddock/propdesk/internal/message"
	"github.com/evcraddock/propdesk/internal/unit"
	"github.com/evcraddock/propdesk/internal/validate"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// UnitLookup resolves the unit a handover belongs to.
type UnitLookup interface {
	GetByID(id string) (*unit.Unit, error)
}

// Renderer produces the accepted-handover PDF and returns its URL.
type Renderer interface {
	RenderHandover(h *Handover) (string, error)
}

// Notifier tells an owner that something needs their attention.
type Notifier interface {
	NotifyOwner(ownerID, subject, body string) error
}

// Service enforces the handover lifecycle on the server.
type Service struct {
	repo     *Repository
	units    UnitLookup
	messages *message.Service
	renderer Renderer
	notifier Notifier
	now      func() time.Time
}

// NewService creates a handover service. renderer and notifier may be nil.
func NewService(repo *Repository, units UnitLookup, messages *message.Service, renderer Renderer, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		units:    units,
		messages: messages,
		renderer: renderer,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a DRAFT handover for a unit. Only admins may create, the unit must
// have an owner, ownerId must be that owner, and no other active handover may exist.
func (s *Service) Create(actor workflow.Actor, in CreateInput) (*Handover, error) {
	if !actor.Role.IsAdmin() {
		return nil, fmt.Errorf("creating handover: %w", workflow.ErrForbidden)
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	u, err := s.units.GetByID(in.UnitID)
	if err != nil {
		return nil, err
	}
	if !u.HasOwner() {
		return nil, fmt.Errorf("unit %s: %w", u.ID, ErrNoOwnerAssigned)
	}
	if in.OwnerID != u.Owner() {
		return nil, validate.Field("ownerId", "must be the unit's current owner")
	}

	existing, err := s.repo.ActiveForUnit(in.UnitID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("unit %s has handover %s: %w", in.UnitID, existing.ID, ErrActiveHandoverExists)
	}

	// The unique index still catches a create racing between the check and the insert.
	h, err := s.repo.Insert(in)
	if err != nil {
		return nil, err
	}
	slog.Info("handover created", "id", h.ID, "unit", h.UnitID, "by", actor.ID)
	return h, nil
}

// Get returns a handover the actor may see.
func (s *Service) Get(actor workflow.Actor, id string) (*Handover, error) {
	h, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !actor.CanSee(h.OwnerID) {
		return nil, fmt.Errorf("handover %s: %w", id, workflow.ErrForbidden)
	}
	return h, nil
}

// List returns a page of handovers. Owners only ever see their own.
func (s *Service) List(actor workflow.Actor, opts ListOptions) ([]*Handover, int, error) {
	if !actor.Role.IsAdmin() {
		opts.OwnerID = actor.ID
	}
	return s.repo.List(opts)
}

// Update edits a handover. Allowed only where the table grants edit.
func (s *Service) Update(actor workflow.Actor, id string, in UpdateInput) (*Handover, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	h, err := s.Get(actor, id)
	if err != nil {
		return nil, err
	}
	if !h.Actions(actor.Role).Has(workflow.ActionEdit) {
		return nil, fmt.Errorf("edit handover %s in %s: %w", id, h.Status, workflow.ErrTransitionNotAllowed)
	}
	if err := s.repo.Update(id, h.Status, in); err != nil {
		return nil, err
	}
	return s.repo.GetByID(id)
}

// Apply performs a lifecycle action. Deprecated actions go through the same
// table, so owner-confirm behaves as accept and admin-confirm/complete are refused.
func (s *Service) Apply(actor workflow.Actor, id string, action workflow.Action, in ActionInput) (*Handover, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	h, err := s.Get(actor, id)
	if err != nil {
		return nil, err
	}
	if !h.Actions(actor.Role).Has(action) || action.Canonical() == workflow.ActionEdit {
		return nil, fmt.Errorf("%s handover %s in %s: %w", action, id, h.Status, workflow.ErrTransitionNotAllowed)
	}
	if actor.Role == workflow.RoleOwner && !actor.Owns(h.OwnerID) {
		return nil, fmt.Errorf("handover %s: %w", id, workflow.ErrForbidden)
	}

	to, err := workflow.NextHandoverStatus(h.Status, action)
	if err != nil {
		return nil, err
	}

	var changes Changes
	if action.Canonical() == workflow.ActionAccept {
		now := s.now()
		changes.OwnerAcceptedAt = &now
		changes.OwnerSignature = in.Signature
	}

	if err := s.repo.Transition(id, h.Status, to, changes); err != nil {
		return nil, err
	}
	slog.Info("handover transition", "id", id, "action", action, "from", h.Status, "to", to, "by", actor.ID)

	if action.Canonical() == workflow.ActionAccept {
		s.attachPDF(id, to)
	}

	if in.Reason != "" && s.messages != nil {
		if _, err := s.messages.Post(actor, id, message.Input{Body: in.Reason}); err != nil {
			slog.Warn("posting transition reason", "id", id, "error", err)
		}
	}
	if action == workflow.ActionSend {
		s.notify(h.OwnerID, "Your handover is ready for review",
			fmt.Sprintf("Handover %s for unit %s has been sent to you for acceptance.", id, h.UnitID))
	}

	return s.repo.GetByID(id)
}

// Messages returns the handover's discussion thread.
func (s *Service) Messages(actor workflow.Actor, id string) ([]*message.Message, error) {
	if _, err := s.Get(actor, id); err != nil {
		return nil, err
	}
	return s.messages.List(id)
}

// PostMessage adds to the handover's discussion thread.
func (s *Service) PostMessage(actor workflow.Actor, id string, in message.Input) (*message.Message, error) {
	if _, err := s.Get(actor, id); err != nil {
		return nil, err
	}
	return s.messages.Post(actor, id, in)
}

// attachPDF renders the stored handover and records the file's URL. It only
// runs once the transition that calls for the PDF has been stored. A failure
// is logged and leaves the PDF unset.
func (s *Service) attachPDF(id string, status workflow.HandoverStatus) {
	if s.renderer == nil {
		return
	}
	h, err := s.repo.GetByID(id)
	if err != nil {
		slog.Error("loading handover for pdf", "id", id, "error", err)
		return
	}
	url, err := s.renderer.RenderHandover(h)
	if err != nil {
		slog.Error("rendering handover pdf", "id", id, "error", err)
		return
	}
	if err := s.repo.Transition(id, status, status, Changes{PDFURL: &url}); err != nil {
		slog.Error("recording handover pdf", "id", id, "error", err)
	}
}

func (s *Service) notify(ownerID, subject, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyOwner(ownerID, subject, body); err != nil {
		slog.Warn("notifying owner", "owner", ownerID, "error", err)
	}
}

// IsConflict reports whether err means the request lost against current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrActiveHandoverExists) || errors.Is(err, ErrConflict)
}
