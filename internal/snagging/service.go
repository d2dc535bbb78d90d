package snagging

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/evcraddock/propdesk/internal/message"
	"github.com/evcraddock/propdesk/internal/unit"
	"github.com/evcraddock/propdesk/internal/validate"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// UnitLookup resolves the unit a report belongs to.
type UnitLookup interface {
	GetByID(id string) (*unit.Unit, error)
}

// Renderer produces the accepted-report PDF and returns its URL.
type Renderer interface {
	RenderSnagging(s *Snagging) (string, error)
}

// Notifier tells an owner that something needs their attention.
type Notifier interface {
	NotifyOwner(ownerID, subject, body string) error
}

// Service enforces the snagging lifecycle on the server.
type Service struct {
	repo     *Repository
	units    UnitLookup
	messages *message.Service
	renderer Renderer
	notifier Notifier
	now      func() time.Time
}

// NewService creates a snagging service. renderer and notifier may be nil.
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

// Create raises a report. Owners may only report on their own units and always
// get MEDIUM priority; admins get MEDIUM when they leave the priority empty.
func (s *Service) Create(actor workflow.Actor, in CreateInput) (*Snagging, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	u, err := s.units.GetByID(in.UnitID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() && !actor.Owns(u.Owner()) {
		return nil, fmt.Errorf("reporting on unit %s: %w", u.ID, workflow.ErrForbidden)
	}

	in.Priority = workflow.EffectivePriority(actor.Role, in.Priority)
	sn, err := s.repo.Insert(NewReport{CreateInput: in, OwnerID: u.Owner(), CreatedBy: actor})
	if err != nil {
		return nil, err
	}
	slog.Info("snagging created", "id", sn.ID, "unit", sn.UnitID, "by", actor.ID, "priority", sn.Priority)
	return sn, nil
}

// Get returns a report the actor may see.
func (s *Service) Get(actor workflow.Actor, id string) (*Snagging, error) {
	sn, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !actor.CanSee(sn.OwnerID) {
		return nil, fmt.Errorf("snagging %s: %w", id, workflow.ErrForbidden)
	}
	return sn, nil
}

// List returns a page of reports. Owners only ever see reports for their units.
func (s *Service) List(actor workflow.Actor, opts ListOptions) ([]*Snagging, int, error) {
	if !actor.Role.IsAdmin() {
		opts.OwnerID = actor.ID
	}
	return s.repo.List(opts)
}

// Mine returns the reports addressed to an owner, or raised by an admin.
func (s *Service) Mine(actor workflow.Actor, opts ListOptions) ([]*Snagging, int, error) {
	if actor.Role.IsAdmin() {
		opts.CreatedByID = actor.ID
	} else {
		opts.OwnerID = actor.ID
	}
	return s.repo.List(opts)
}

// Update edits a DRAFT report.
func (s *Service) Update(actor workflow.Actor, id string, in UpdateInput) (*Snagging, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	sn, err := s.authorize(actor, id, workflow.ActionEdit)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(id, sn.Status, in); err != nil {
		return nil, err
	}
	return s.repo.GetByID(id)
}

// Send hands the report to the unit owner for review.
func (s *Service) Send(actor workflow.Actor, id string) (*Snagging, error) {
	sn, err := s.authorize(actor, id, workflow.ActionSend)
	if err != nil {
		return nil, err
	}
	if sn.OwnerID == "" {
		return nil, fmt.Errorf("sending snagging %s: %w", id, ErrNoOwner)
	}
	out, err := s.transition(actor, sn, workflow.ActionSend, Changes{})
	if err != nil {
		return nil, err
	}
	s.notify(sn.OwnerID, "A snagging report needs your review",
		fmt.Sprintf("Snagging report %q for unit %s has been sent to you.", sn.Title, sn.UnitID))
	return out, nil
}

// Schedule sets the visit time without changing status.
func (s *Service) Schedule(actor workflow.Actor, id string, in ScheduleInput) (*Snagging, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	sn, err := s.authorize(actor, id, workflow.ActionSchedule)
	if err != nil {
		return nil, err
	}
	return s.transition(actor, sn, workflow.ActionSchedule, Changes{ScheduledAt: in.ScheduledAt})
}

// Sign stores the owner's signature ahead of acceptance.
func (s *Service) Sign(actor workflow.Actor, id string, in SignatureInput) (*Snagging, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	sn, err := s.authorize(actor, id, workflow.ActionSign)
	if err != nil {
		return nil, err
	}
	return s.transition(actor, sn, workflow.ActionSign, Changes{OwnerSignature: &in.Signature})
}

// Accept records the owner's sign-off, then renders the PDF of the stored
// report. A rendering failure leaves the report accepted without a PDF.
func (s *Service) Accept(actor workflow.Actor, id string) (*Snagging, error) {
	sn, err := s.authorize(actor, id, workflow.ActionAccept)
	if err != nil {
		return nil, err
	}

	now := s.now()
	accepted, err := s.transition(actor, sn, workflow.ActionAccept, Changes{AcceptedAt: &now})
	if err != nil {
		return nil, err
	}
	url, ok := s.render(accepted)
	if !ok {
		return accepted, nil
	}
	if err := s.repo.Transition(id, accepted.Status, accepted.Status, Changes{PDFURL: &url}); err != nil {
		slog.Error("recording snagging pdf", "id", id, "error", err)
		return accepted, nil
	}
	return s.repo.GetByID(id)
}

// Cancel withdraws a report.
func (s *Service) Cancel(actor workflow.Actor, id string) (*Snagging, error) {
	sn, err := s.authorize(actor, id, workflow.ActionCancel)
	if err != nil {
		return nil, err
	}
	return s.transition(actor, sn, workflow.ActionCancel, Changes{})
}

// RegeneratePDF re-renders the PDF of an accepted report.
func (s *Service) RegeneratePDF(actor workflow.Actor, id string) (*Snagging, error) {
	sn, err := s.authorize(actor, id, workflow.ActionRegeneratePDF)
	if err != nil {
		return nil, err
	}
	if s.renderer == nil {
		return nil, fmt.Errorf("regenerating pdf for snagging %s: no renderer configured", id)
	}
	url, err := s.renderer.RenderSnagging(sn)
	if err != nil {
		return nil, fmt.Errorf("regenerating pdf for snagging %s: %w", id, err)
	}
	return s.transition(actor, sn, workflow.ActionRegeneratePDF, Changes{PDFURL: &url})
}

// Messages returns the report's discussion thread.
func (s *Service) Messages(actor workflow.Actor, id string) ([]*message.Message, error) {
	if _, err := s.Get(actor, id); err != nil {
		return nil, err
	}
	return s.messages.List(id)
}

// PostMessage adds to the report's discussion thread.
func (s *Service) PostMessage(actor workflow.Actor, id string, in message.Input) (*message.Message, error) {
	if _, err := s.Get(actor, id); err != nil {
		return nil, err
	}
	return s.messages.Post(actor, id, in)
}

// EditMessage changes one of the actor's own messages.
func (s *Service) EditMessage(actor workflow.Actor, id, messageID string, in message.Input) (*message.Message, error) {
	if _, err := s.Get(actor, id); err != nil {
		return nil, err
	}
	return s.messages.Edit(actor, id, messageID, in)
}

// DeleteMessage removes a message from the thread.
func (s *Service) DeleteMessage(actor workflow.Actor, id, messageID string) error {
	if _, err := s.Get(actor, id); err != nil {
		return err
	}
	return s.messages.Delete(actor, id, messageID)
}

// authorize loads the report and checks the table grants action to the actor.
func (s *Service) authorize(actor workflow.Actor, id string, action workflow.Action) (*Snagging, error) {
	sn, err := s.Get(actor, id)
	if err != nil {
		return nil, err
	}
	if !sn.Actions(actor.Role).Has(action) {
		return nil, fmt.Errorf("%s snagging %s in %s: %w", action, id, sn.Status, workflow.ErrTransitionNotAllowed)
	}
	return sn, nil
}

func (s *Service) transition(actor workflow.Actor, sn *Snagging, action workflow.Action, c Changes) (*Snagging, error) {
	to, err := workflow.NextSnaggingStatus(sn.Status, action)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Transition(sn.ID, sn.Status, to, c); err != nil {
		return nil, err
	}
	slog.Info("snagging transition", "id", sn.ID, "action", action, "from", sn.Status, "to", to, "by", actor.ID)
	return s.repo.GetByID(sn.ID)
}

func (s *Service) render(sn *Snagging) (string, bool) {
	if s.renderer == nil {
		return "", false
	}
	url, err := s.renderer.RenderSnagging(sn)
	if err != nil {
		slog.Error("rendering snagging pdf", "id", sn.ID, "error", err)
		return "", false
	}
	return url, true
}

func (s *Service) notify(ownerID, subject, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyOwner(ownerID, subject, body); err != nil {
		slog.Warn("notifying owner", "owner", ownerID, "error", err)
	}
}
