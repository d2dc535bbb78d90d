package document

import (
	"fmt"

	"github.com/evcraddock/propdesk/internal/unit"
	"github.com/evcraddock/propdesk/internal/validate"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// UnitLookup resolves units for ownership checks.
type UnitLookup interface {
	GetByID(id string) (*unit.Unit, error)
	List(opts unit.ListOptions) ([]*unit.Unit, error)
}

// Service applies role rules to documents: admins manage, owners read their own.
type Service struct {
	repo  *Repository
	units UnitLookup
}

// NewService creates a document service.
func NewService(repo *Repository, units UnitLookup) *Service {
	return &Service{repo: repo, units: units}
}

// Create registers an uploaded file. Admin only.
func (s *Service) Create(actor workflow.Actor, in CreateInput) (*Document, error) {
	if !actor.Role.IsAdmin() {
		return nil, fmt.Errorf("creating document: %w", workflow.ErrForbidden)
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.units.GetByID(in.UnitID); err != nil {
		return nil, err
	}
	return s.repo.Add(in, actor.ID)
}

// Get returns a document the actor may see.
func (s *Service) Get(actor workflow.Actor, id string) (*Document, error) {
	d, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if actor.Role.IsAdmin() {
		return d, nil
	}
	u, err := s.units.GetByID(d.UnitID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(u.Owner()) {
		return nil, fmt.Errorf("document %s: %w", id, workflow.ErrForbidden)
	}
	return d, nil
}

// List returns documents, optionally for one unit. Owners only see their units'.
func (s *Service) List(actor workflow.Actor, unitID string, opts ListOptions) ([]*Document, int, error) {
	if unitID != "" {
		opts.UnitIDs = []string{unitID}
	}
	if actor.Role.IsAdmin() {
		return s.repo.List(opts)
	}

	owned, err := s.units.List(unit.ListOptions{OwnerID: actor.ID})
	if err != nil {
		return nil, 0, err
	}
	allowed := make([]string, 0, len(owned))
	for _, u := range owned {
		if unitID == "" || u.ID == unitID {
			allowed = append(allowed, u.ID)
		}
	}
	if unitID != "" && len(allowed) == 0 {
		return nil, 0, fmt.Errorf("documents of unit %s: %w", unitID, workflow.ErrForbidden)
	}
	opts.UnitIDs = allowed
	return s.repo.List(opts)
}

// Delete removes a document. Admin only.
func (s *Service) Delete(actor workflow.Actor, id string) error {
	if !actor.Role.IsAdmin() {
		return fmt.Errorf("deleting document: %w", workflow.ErrForbidden)
	}
	return s.repo.Delete(id)
}
