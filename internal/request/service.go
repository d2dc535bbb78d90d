package request

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/evcraddock/propdesk/internal/unit"
	"github.com/evcraddock/propdesk/internal/validate"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// UnitLookup resolves units a request concerns.
type UnitLookup interface {
	GetByID(id string) (*unit.Unit, error)
}

// Renderer produces the approval PDF and returns its URL.
type Renderer interface {
	RenderRequest(r *Request) (string, error)
}

// Notifier tells an owner that something needs their attention.
type Notifier interface {
	NotifyOwner(ownerID, subject, body string) error
}

// Service enforces the request lifecycle on the server.
type Service struct {
	repo     *Repository
	units    UnitLookup
	renderer Renderer
	notifier Notifier
	now      func() time.Time
}

// NewService creates a request service. renderer and notifier may be nil.
func NewService(repo *Repository, units UnitLookup, renderer Renderer, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		units:    units,
		renderer: renderer,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create submits a request. Owners may only file for units they own.
func (s *Service) Create(actor workflow.Actor, in CreateInput) (*Request, error) {
	if actor.Role != workflow.RoleOwner {
		return nil, fmt.Errorf("submitting request: %w", workflow.ErrForbidden)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	for _, id := range in.Units() {
		u, err := s.units.GetByID(id)
		if err != nil {
			return nil, err
		}
		if !actor.Owns(u.Owner()) {
			return nil, fmt.Errorf("request for unit %s: %w", id, workflow.ErrForbidden)
		}
	}

	req, err := s.repo.Insert(actor.ID, in)
	if err != nil {
		return nil, err
	}
	slog.Info("request submitted", "id", req.ID, "type", req.Type, "owner", actor.ID)
	return req, nil
}

// Get returns a request the actor may see.
func (s *Service) Get(actor workflow.Actor, id string) (*Request, error) {
	req, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !actor.CanSee(req.OwnerID) {
		return nil, fmt.Errorf("request %s: %w", id, workflow.ErrForbidden)
	}
	return req, nil
}

// List returns a page of requests. Owners only see their own.
func (s *Service) List(actor workflow.Actor, opts ListOptions) ([]*Request, int, error) {
	if !actor.Role.IsAdmin() {
		opts.OwnerID = actor.ID
	}
	return s.repo.List(opts)
}

// Approve grants a SUBMITTED request, then renders its permit PDF.
func (s *Service) Approve(actor workflow.Actor, id string) (*Request, error) {
	req, err := s.authorize(actor, id, workflow.ActionApprove)
	if err != nil {
		return nil, err
	}

	out, err := s.transition(actor, req, workflow.ActionApprove, Changes{ApprovedBy: &actor.ID})
	if err != nil {
		return nil, err
	}
	if s.attachPDF(out) {
		if out, err = s.repo.GetByID(id); err != nil {
			return nil, err
		}
	}
	s.notify(req.OwnerID, "Your request was approved",
		fmt.Sprintf("Your %s request %s has been approved.", req.Type, req.ID))
	return out, nil
}

// attachPDF renders the permit of a stored approval and records its URL. It
// reports whether the record changed; failures are logged.
func (s *Service) attachPDF(req *Request) bool {
	if s.renderer == nil {
		return false
	}
	url, err := s.renderer.RenderRequest(req)
	if err != nil {
		slog.Error("rendering request pdf", "id", req.ID, "error", err)
		return false
	}
	if err := s.repo.Transition(req.ID, req.Status, req.Status, Changes{PDFURL: &url}); err != nil {
		slog.Error("recording request pdf", "id", req.ID, "error", err)
		return false
	}
	return true
}

// Reject refuses a SUBMITTED request with a reason.
func (s *Service) Reject(actor workflow.Actor, id string, in RejectInput) (*Request, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	req, err := s.authorize(actor, id, workflow.ActionReject)
	if err != nil {
		return nil, err
	}
	out, err := s.transition(actor, req, workflow.ActionReject, Changes{RejectedBy: &actor.ID, RejectionReason: &in.Reason})
	if err != nil {
		return nil, err
	}
	s.notify(req.OwnerID, "Your request was rejected",
		fmt.Sprintf("Your %s request %s was rejected: %s", req.Type, req.ID, in.Reason))
	return out, nil
}

// Cancel withdraws a SUBMITTED request. The owner or an admin may cancel.
func (s *Service) Cancel(actor workflow.Actor, id string) (*Request, error) {
	req, err := s.authorize(actor, id, workflow.ActionCancel)
	if err != nil {
		return nil, err
	}
	return s.transition(actor, req, workflow.ActionCancel, Changes{})
}

// Revoke withdraws an APPROVED request; it lands in CANCELLED with revokedAt set.
func (s *Service) Revoke(actor workflow.Actor, id string) (*Request, error) {
	req, err := s.authorize(actor, id, workflow.ActionRevoke)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return s.transition(actor, req, workflow.ActionRevoke, Changes{RevokedAt: &now})
}

// RecordUse counts one use of an approved request (a guest passing the gate).
// A request that reaches its use budget expires immediately.
func (s *Service) RecordUse(actor workflow.Actor, id string) (*Request, error) {
	if !actor.Role.IsAdmin() {
		return nil, fmt.Errorf("recording use: %w", workflow.ErrForbidden)
	}
	req, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if req.Status != workflow.RequestApproved || req.IsExhausted(s.now()) {
		return nil, fmt.Errorf("use of request %s in %s: %w", id, req.Status, workflow.ErrTransitionNotAllowed)
	}
	if err := s.repo.IncrementUses(id); err != nil {
		return nil, err
	}

	req, err = s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if req.IsExhausted(s.now()) {
		if err := s.expire(req); err != nil {
			return nil, err
		}
		return s.repo.GetByID(id)
	}
	return req, nil
}

// ExpireDue moves every approved request past its date or use budget to EXPIRED.
// It returns how many were expired.
func (s *Service) ExpireDue() (int, error) {
	due, err := s.repo.ApprovedExpiring(s.now())
	if err != nil {
		return 0, err
	}
	n := 0
	for _, req := range due {
		if err := s.expire(req); err != nil {
			slog.Warn("expiring request", "id", req.ID, "error", err)
			continue
		}
		n++
	}
	return n, nil
}

func (s *Service) expire(req *Request) error {
	if err := s.repo.Transition(req.ID, workflow.RequestApproved, workflow.RequestExpired, Changes{}); err != nil {
		return err
	}
	slog.Info("request transition", "id", req.ID, "from", req.Status, "to", workflow.RequestExpired, "by", "system")
	return nil
}

func (s *Service) authorize(actor workflow.Actor, id string, action workflow.Action) (*Request, error) {
	req, err := s.Get(actor, id)
	if err != nil {
		return nil, err
	}
	if !req.Actions(actor.Role).Has(action) {
		return nil, fmt.Errorf("%s request %s in %s: %w", action, id, req.Status, workflow.ErrTransitionNotAllowed)
	}
	return req, nil
}

func (s *Service) transition(actor workflow.Actor, req *Request, action workflow.Action, c Changes) (*Request, error) {
	to, err := workflow.NextRequestStatus(req.Status, action)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Transition(req.ID, req.Status, to, c); err != nil {
		return nil, err
	}
	slog.Info("request transition", "id", req.ID, "action", action, "from", req.Status, "to", to, "by", actor.ID)
	return s.repo.GetByID(req.ID)
}

func (s *Service) notify(ownerID, subject, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyOwner(ownerID, subject, body); err != nil {
		slog.Warn("notifying owner", "owner", ownerID, "error", err)
	}
}
