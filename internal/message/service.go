package message

import (
	"fmt"

	"github.com/evcraddock/propdesk/internal/validate"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// Service enforces authorship rules on top of the repository.
// Whether the caller may see the thread at all is the parent service's concern.
type Service struct {
	repo   *Repository
	thread Thread
}

// NewService creates a message service for one thread kind.
func NewService(repo *Repository, thread Thread) *Service {
	return &Service{repo: repo, thread: thread}
}

// List returns the thread's messages.
func (s *Service) List(threadID string) ([]*Message, error) {
	return s.repo.List(s.thread, threadID)
}

// Post adds a message authored by actor.
func (s *Service) Post(actor workflow.Actor, threadID string, in Input) (*Message, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	return s.repo.Add(s.thread, threadID, actor.ID, in.Body)
}

// Edit changes a message. Only the author may edit.
func (s *Service) Edit(actor workflow.Actor, threadID, id string, in Input) (*Message, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	m, err := s.repo.Get(s.thread, threadID, id)
	if err != nil {
		return nil, err
	}
	if m.AuthorID != actor.ID {
		return nil, fmt.Errorf("editing message %s: %w", id, workflow.ErrForbidden)
	}
	return s.repo.Edit(s.thread, threadID, id, in.Body)
}

// Delete removes a message. The author or an admin may delete.
func (s *Service) Delete(actor workflow.Actor, threadID, id string) error {
	m, err := s.repo.Get(s.thread, threadID, id)
	if err != nil {
		return err
	}
	if m.AuthorID != actor.ID && !actor.Role.IsAdmin() {
		return fmt.Errorf("deleting message %s: %w", id, workflow.ErrForbidden)
	}
	return s.repo.Delete(s.thread, threadID, id)
}
