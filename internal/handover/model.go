// Package handover provides the handover domain model, its sqlite repository and
// the server-side service enforcing the handover lifecycle.
package handover

import (
	"database/sql"
	"errors"
	"time"

	"github.com/evcraddock/propdesk/internal/workflow"
)

var (
	// ErrNotFound is returned when a handover does not exist.
	ErrNotFound = errors.New("handover not found")
	// ErrActiveHandoverExists is returned when the unit already has a handover
	// that is not cancelled.
	ErrActiveHandoverExists = errors.New("an active handover already exists for this unit")
	// ErrNoOwnerAssigned is returned when a handover is created for a unit without an owner.
	ErrNoOwnerAssigned = errors.New("no owner assigned to this unit")
	// ErrConflict is returned when the handover changed status underneath a transition.
	ErrConflict = errors.New("handover was modified concurrently")
)

// Handover is the formal transfer of a unit to its owner.
type Handover struct {
	ID              string                  `json:"id"`
	UnitID          string                  `json:"unitId"`
	OwnerID         string                  `json:"ownerId"`
	Status          workflow.HandoverStatus `json:"status"`
	ScheduledAt     *time.Time              `json:"scheduledAt"`
	Notes           *string                 `json:"notes"`
	PDFURL          *string                 `json:"pdfUrl"`
	OwnerAcceptedAt *time.Time              `json:"ownerAcceptedAt"`
	AdminSignature  *string                 `json:"adminSignature"`
	OwnerSignature  *string                 `json:"ownerSignature"`
	Items           []Item                  `json:"items"`
	CreatedAt       time.Time               `json:"createdAt"`
	UpdatedAt       time.Time               `json:"updatedAt"`
}

// IsActive reports whether the handover blocks a new one for its unit.
func (h *Handover) IsActive() bool {
	return h.Status.IsActive()
}

// Actions returns what role may do with the handover right now.
func (h *Handover) Actions(role workflow.Role) workflow.ActionSet {
	return workflow.HandoverActions(h.Status, role)
}

// Item is one checklist line (meter reading, key count, fixture condition).
type Item struct {
	ID            string `json:"id"`
	Category      string `json:"category"`
	Label         string `json:"label"`
	ExpectedValue string `json:"expectedValue"`
	Notes         string `json:"notes"`
	Status        string `json:"status"`
	SortOrder     int    `json:"sortOrder"`
}

// ItemInput is a checklist line in a create or update payload.
type ItemInput struct {
	Category      string `json:"category" validate:"required,max=100"`
	Label         string `json:"label" validate:"required,max=200"`
	ExpectedValue string `json:"expectedValue,omitempty" validate:"max=200"`
	Notes         string `json:"notes,omitempty" validate:"max=2000"`
	Status        string `json:"status,omitempty" validate:"max=50"`
}

// CreateInput is the payload for creating a handover.
type CreateInput struct {
	UnitID      string      `json:"unitId" validate:"required"`
	OwnerID     string      `json:"ownerId" validate:"required"`
	ScheduledAt *time.Time  `json:"scheduledAt,omitempty"`
	Notes       *string     `json:"notes,omitempty" validate:"omitempty,max=5000"`
	Items       []ItemInput `json:"items,omitempty" validate:"max=200,dive"`
}

// UpdateInput edits a DRAFT handover. Nil fields are left unchanged; a non-nil
// Items replaces the whole checklist.
type UpdateInput struct {
	ScheduledAt    *time.Time   `json:"scheduledAt,omitempty"`
	Notes          *string      `json:"notes,omitempty" validate:"omitempty,max=5000"`
	AdminSignature *string      `json:"adminSignature,omitempty"`
	Items          *[]ItemInput `json:"items,omitempty" validate:"omitempty,max=200,dive"`
}

// ActionInput carries the optional data some actions take.
type ActionInput struct {
	// Signature is stored as the owner signature on accept.
	Signature *string `json:"signature,omitempty"`
	// Reason is posted to the thread on request-changes and cancel.
	Reason string `json:"reason,omitempty" validate:"max=2000"`
}

// ListOptions controls filtering and paging for List.
type ListOptions struct {
	UnitID     string
	OwnerID    string
	Status     workflow.HandoverStatus
	ActiveOnly bool
	Page       int
	Limit      int
}

func scanHandover(row interface{ Scan(...interface{}) error }) (*Handover, error) {
	var h Handover
	var status string
	var scheduledAt, acceptedAt sql.NullTime
	var notes, pdfURL, adminSig, ownerSig sql.NullString

	err := row.Scan(
		&h.ID, &h.UnitID, &h.OwnerID, &status, &scheduledAt, &notes, &pdfURL,
		&acceptedAt, &adminSig, &ownerSig, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	h.Status = workflow.HandoverStatus(status)
	h.ScheduledAt = timePtr(scheduledAt)
	h.OwnerAcceptedAt = timePtr(acceptedAt)
	h.Notes = stringPtr(notes)
	h.PDFURL = stringPtr(pdfURL)
	h.AdminSignature = stringPtr(adminSig)
	h.OwnerSignature = stringPtr(ownerSig)
	h.Items = []Item{}
	return &h, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
