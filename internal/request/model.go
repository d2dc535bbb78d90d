// Package request provides owner access and permission requests adjudicated by
// admins: guest visits, work permits, ownership transfers, tenant registrations
// and unit modifications.
package request

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/evcraddock/propdesk/internal/workflow"
)

var (
	// ErrNotFound is returned when a request does not exist.
	ErrNotFound = errors.New("request not found")
	// ErrConflict is returned when the request changed status underneath an action.
	ErrConflict = errors.New("request was modified concurrently")
)

// Request is an owner's application for a permission.
type Request struct {
	ID              string                 `json:"id"`
	Type            workflow.RequestType   `json:"type"`
	Status          workflow.RequestStatus `json:"status"`
	UnitID          string                 `json:"unitId,omitempty"`
	OwnerID         string                 `json:"ownerId"`
	TransferUnitIDs []string               `json:"transferUnitIds"`
	Payload         map[string]interface{} `json:"payload"`
	ExpiresMode     workflow.ExpiresMode   `json:"expiresMode"`
	ExpiresAt       *time.Time             `json:"expiresAt"`
	MaxUses         *int64                 `json:"maxUses"`
	UsesCount       int64                  `json:"usesCount"`
	ApprovedByAdmin *string                `json:"approvedByAdmin"`
	RejectedByAdmin *string                `json:"rejectedByAdmin"`
	RejectionReason *string                `json:"rejectionReason"`
	RevokedAt       *time.Time             `json:"revokedAt"`
	PDFURL          *string                `json:"pdfUrl"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// Actions returns what role may do with the request right now.
func (r *Request) Actions(role workflow.Role) workflow.ActionSet {
	return workflow.RequestActions(r.Status, role)
}

// IsExhausted reports whether an approved request has run out at time now.
func (r *Request) IsExhausted(now time.Time) bool {
	switch r.ExpiresMode {
	case workflow.ExpiresByDate:
		return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
	case workflow.ExpiresByUses:
		return r.MaxUses != nil && r.UsesCount >= *r.MaxUses
	}
	return false
}

// CreateInput is the payload for submitting a request.
type CreateInput struct {
	Type            workflow.RequestType   `json:"type" validate:"required"`
	UnitID          string                 `json:"unitId,omitempty"`
	TransferUnitIDs []string               `json:"transferUnitIds,omitempty" validate:"max=50,dive,required"`
	Payload         map[string]interface{} `json:"payload,omitempty"`
	ExpiresMode     workflow.ExpiresMode   `json:"expiresMode,omitempty"`
	ExpiresAt       *time.Time             `json:"expiresAt,omitempty"`
	MaxUses         *int64                 `json:"maxUses,omitempty"`
}

// RejectInput carries the mandatory rejection reason.
type RejectInput struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// ListOptions controls filtering and paging for List.
type ListOptions struct {
	OwnerID string
	UnitID  string
	Type    workflow.RequestType
	Status  workflow.RequestStatus
	Page    int
	Limit   int
}

// requiredPayload lists the payload keys each request type must carry.
var requiredPayload = map[workflow.RequestType][]string{
	workflow.RequestGuestVisit:         {"guestName", "visitDate"},
	workflow.RequestWorkPermission:     {"contractorName", "workDescription"},
	workflow.RequestOwnershipTransfer:  {"newOwnerEmail"},
	workflow.RequestTenantRegistration: {"tenantName", "leaseStart"},
	workflow.RequestUnitModification:   {"description"},
}

func scanRequest(row interface{ Scan(...interface{}) error }) (*Request, error) {
	var r Request
	var typ, status, mode, transferJSON, payloadJSON string
	var unitID, approvedBy, rejectedBy, reason, pdfURL sql.NullString
	var expiresAt, revokedAt sql.NullTime
	var maxUses sql.NullInt64

	err := row.Scan(
		&r.ID, &typ, &status, &unitID, &r.OwnerID, &transferJSON, &payloadJSON,
		&mode, &expiresAt, &maxUses, &r.UsesCount, &approvedBy, &rejectedBy, &reason,
		&revokedAt, &pdfURL, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Type = workflow.RequestType(typ)
	r.Status = workflow.RequestStatus(status)
	r.ExpiresMode = workflow.ExpiresMode(mode)
	r.UnitID = unitID.String

	r.TransferUnitIDs = []string{}
	if err := json.Unmarshal([]byte(transferJSON), &r.TransferUnitIDs); err != nil {
		r.TransferUnitIDs = []string{}
	}
	r.Payload = map[string]interface{}{}
	if err := json.Unmarshal([]byte(payloadJSON), &r.Payload); err != nil {
		r.Payload = map[string]interface{}{}
	}

	if expiresAt.Valid {
		r.ExpiresAt = &expiresAt.Time
	}
	if revokedAt.Valid {
		r.RevokedAt = &revokedAt.Time
	}
	if maxUses.Valid {
		r.MaxUses = &maxUses.Int64
	}
	if approvedBy.Valid {
		r.ApprovedByAdmin = &approvedBy.String
	}
	if rejectedBy.Valid {
		r.RejectedByAdmin = &rejectedBy.String
	}
	if reason.Valid {
		r.RejectionReason = &reason.String
	}
	if pdfURL.Valid {
		r.PDFURL = &pdfURL.String
	}
	return &r, nil
}
