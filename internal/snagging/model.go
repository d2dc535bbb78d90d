// Package snagging provides snagging reports: defect lists raised against a unit,
// reviewed by the owner and signed off into a PDF.
package snagging

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/evcraddock/propdesk/internal/workflow"
)

const (
	// MaxItems is the largest number of defects one report may carry.
	MaxItems = 50
	// MaxImagesPerItem is the largest number of photos per defect.
	MaxImagesPerItem = 5
)

var (
	// ErrNotFound is returned when a snagging report does not exist.
	ErrNotFound = errors.New("snagging not found")
	// ErrConflict is returned when the report changed status underneath an action.
	ErrConflict = errors.New("snagging was modified concurrently")
	// ErrNoOwner is returned when a report is sent for a unit without an owner.
	ErrNoOwner = errors.New("no owner assigned to this unit")
)

// Creator identifies who raised a report.
type Creator struct {
	ID   string        `json:"id"`
	Role workflow.Role `json:"role"`
	Name string        `json:"name"`
}

// Snagging is a defect report for a unit.
type Snagging struct {
	ID             string                  `json:"id"`
	UnitID         string                  `json:"unitId"`
	OwnerID        string                  `json:"ownerId"`
	CreatedByID    string                  `json:"createdById"`
	CreatedBy      Creator                 `json:"createdBy"`
	Title          string                  `json:"title"`
	Description    string                  `json:"description"`
	Status         workflow.SnaggingStatus `json:"status"`
	Priority       workflow.Priority       `json:"priority"`
	Items          []Item                  `json:"items"`
	PDFURL         *string                 `json:"pdfUrl"`
	AcceptedAt     *time.Time              `json:"acceptedAt"`
	ScheduledAt    *time.Time              `json:"scheduledAt"`
	OwnerSignature *string                 `json:"ownerSignature"`
	CreatedAt      time.Time               `json:"createdAt"`
	UpdatedAt      time.Time               `json:"updatedAt"`
}

// Actions returns what role may do with the report right now.
func (s *Snagging) Actions(role workflow.Role) workflow.ActionSet {
	return workflow.SnaggingActions(s.Status, role)
}

// Item is one defect.
type Item struct {
	ID       string   `json:"id"`
	Category string   `json:"category"`
	Label    string   `json:"label"`
	Location string   `json:"location"`
	Severity string   `json:"severity"`
	Notes    string   `json:"notes"`
	Images   []string `json:"images"`
}

// ItemInput is a defect in a create or update payload. Images are URLs or file keys.
type ItemInput struct {
	Category string   `json:"category" validate:"required,max=100"`
	Label    string   `json:"label" validate:"required,max=200"`
	Location string   `json:"location,omitempty" validate:"max=200"`
	Severity string   `json:"severity,omitempty" validate:"max=50"`
	Notes    string   `json:"notes,omitempty" validate:"max=2000"`
	Images   []string `json:"images,omitempty" validate:"max=5,dive,required"`
}

// CreateInput is the payload for raising a report.
type CreateInput struct {
	UnitID      string            `json:"unitId" validate:"required"`
	Title       string            `json:"title" validate:"required,max=200"`
	Description string            `json:"description,omitempty" validate:"max=5000"`
	Priority    workflow.Priority `json:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Items       []ItemInput       `json:"items,omitempty" validate:"max=50,dive"`
}

// UpdateInput edits a DRAFT report. A non-nil Items replaces the defect list.
// Priority is fixed when the report is created.
type UpdateInput struct {
	Title       *string            `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string            `json:"description,omitempty" validate:"omitempty,max=5000"`
	Items       *[]ItemInput       `json:"items,omitempty" validate:"omitempty,max=50,dive"`
}

// ScheduleInput sets the inspection or repair visit time.
type ScheduleInput struct {
	ScheduledAt *time.Time `json:"scheduledAt" validate:"required"`
}

// SignatureInput carries the owner's signature.
type SignatureInput struct {
	Signature string `json:"signature" validate:"required"`
}

// ListOptions controls filtering and paging for List.
type ListOptions struct {
	UnitID      string
	OwnerID     string
	CreatedByID string
	Status      workflow.SnaggingStatus
	Page        int
	Limit       int
}

func scanSnagging(row interface{ Scan(...interface{}) error }) (*Snagging, error) {
	var s Snagging
	var owner, pdfURL, signature, creatorName sql.NullString
	var acceptedAt, scheduledAt sql.NullTime
	var status, priority, role string

	err := row.Scan(
		&s.ID, &s.UnitID, &owner, &s.CreatedByID, &role, &creatorName,
		&s.Title, &s.Description, &status, &priority, &pdfURL,
		&acceptedAt, &scheduledAt, &signature, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.OwnerID = owner.String
	s.Status = workflow.SnaggingStatus(status)
	s.Priority = workflow.Priority(priority)
	s.CreatedBy = Creator{ID: s.CreatedByID, Role: workflow.Role(role), Name: creatorName.String}
	if pdfURL.Valid {
		s.PDFURL = &pdfURL.String
	}
	if signature.Valid {
		s.OwnerSignature = &signature.String
	}
	if acceptedAt.Valid {
		s.AcceptedAt = &acceptedAt.Time
	}
	if scheduledAt.Valid {
		s.ScheduledAt = &scheduledAt.Time
	}
	s.Items = []Item{}
	return &s, nil
}

func encodeImages(images []string) string {
	if len(images) == 0 {
		return "[]"
	}
	b, err := json.Marshal(images)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeImages(raw string) []string {
	images := []string{}
	if err := json.Unmarshal([]byte(raw), &images); err != nil {
		return []string{}
	}
	return images
}
