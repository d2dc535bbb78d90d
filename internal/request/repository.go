package request

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/propdesk/internal/db"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// Repository provides persistence for requests.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a request repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, type, status, unit_id, owner_id, transfer_unit_ids_json, payload_json,
	expires_mode, expires_at, max_uses, uses_count, approved_by_admin, rejected_by_admin,
	rejection_reason, revoked_at, pdf_url, created_at, updated_at`

// Insert stores a new SUBMITTED request for ownerID.
func (r *Repository) Insert(ownerID string, in CreateInput) (*Request, error) {
	transfer, err := json.Marshal(nonNil(in.TransferUnitIDs))
	if err != nil {
		return nil, fmt.Errorf("encoding transfer units: %w", err)
	}
	payload := in.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	var unitID interface{}
	if in.UnitID != "" {
		unitID = in.UnitID
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	_, err = r.db.Exec(
		`INSERT INTO requests (id, type, status, unit_id, owner_id, transfer_unit_ids_json, payload_json,
			expires_mode, expires_at, max_uses, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(in.Type), string(workflow.RequestSubmitted), unitID, ownerID,
		string(transfer), string(payloadJSON), string(in.ExpiresMode), in.ExpiresAt, in.MaxUses, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting request: %w", err)
	}
	return r.GetByID(id)
}

// GetByID returns a request by ID.
func (r *Repository) GetByID(id string) (*Request, error) {
	row := r.db.QueryRow(fmt.Sprintf("SELECT %s FROM requests WHERE id = ?", selectColumns), id)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying request %s: %w", id, err)
	}
	return req, nil
}

// List returns one page of requests and the total match count.
func (r *Repository) List(opts ListOptions) (requests []*Request, total int, err error) {
	var conditions []string
	var args []interface{}

	if opts.OwnerID != "" {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, opts.OwnerID)
	}
	if opts.UnitID != "" {
		conditions = append(conditions, "unit_id = ?")
		args = append(args, opts.UnitID)
	}
	if opts.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(opts.Type))
	}
	if opts.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(opts.Status))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	if err := r.db.QueryRow("SELECT COUNT(*) FROM requests"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting requests: %w", err)
	}

	limit, offset := db.PageBounds(opts.Page, opts.Limit)
	requests, err = r.query(
		fmt.Sprintf("SELECT %s FROM requests%s ORDER BY created_at DESC LIMIT ? OFFSET ?", selectColumns, where),
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// ApprovedExpiring returns approved requests whose date or use budget has run out at now.
func (r *Repository) ApprovedExpiring(now time.Time) ([]*Request, error) {
	candidates, err := r.query(
		fmt.Sprintf("SELECT %s FROM requests WHERE status = ? AND expires_mode IN (?, ?)", selectColumns),
		string(workflow.RequestApproved), string(workflow.ExpiresByDate), string(workflow.ExpiresByUses),
	)
	if err != nil {
		return nil, err
	}

	// Stored timestamps are text, so the date comparison happens here rather than in SQL.
	due := []*Request{}
	for _, req := range candidates {
		if req.IsExhausted(now) {
			due = append(due, req)
		}
	}
	return due, nil
}

func (r *Repository) query(q string, args ...interface{}) (requests []*Request, err error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	requests = []*Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating requests: %w", err)
	}
	return requests, nil
}

// Changes are the columns an action may set besides the status.
type Changes struct {
	ApprovedBy      *string
	RejectedBy      *string
	RejectionReason *string
	RevokedAt       *time.Time
	PDFURL          *string
}

// Transition moves a request between statuses, failing with ErrConflict when
// the stored status is no longer from.
func (r *Repository) Transition(id string, from, to workflow.RequestStatus, c Changes) error {
	sets := []string{"status = ?", "updated_at = ?"}
	args := []interface{}{string(to), time.Now().UTC()}
	if c.ApprovedBy != nil {
		sets = append(sets, "approved_by_admin = ?")
		args = append(args, *c.ApprovedBy)
	}
	if c.RejectedBy != nil {
		sets = append(sets, "rejected_by_admin = ?")
		args = append(args, *c.RejectedBy)
	}
	if c.RejectionReason != nil {
		sets = append(sets, "rejection_reason = ?")
		args = append(args, *c.RejectionReason)
	}
	if c.RevokedAt != nil {
		sets = append(sets, "revoked_at = ?")
		args = append(args, *c.RevokedAt)
	}
	if c.PDFURL != nil {
		sets = append(sets, "pdf_url = ?")
		args = append(args, *c.PDFURL)
	}
	args = append(args, id, string(from))

	result, err := r.db.Exec("UPDATE requests SET "+strings.Join(sets, ", ")+" WHERE id = ? AND status = ?", args...)
	if err != nil {
		return fmt.Errorf("transitioning request %s: %w", id, err)
	}
	return expectOne(result, id)
}

// IncrementUses records one use of an approved request.
func (r *Repository) IncrementUses(id string) error {
	result, err := r.db.Exec(
		"UPDATE requests SET uses_count = uses_count + 1, updated_at = ? WHERE id = ? AND status = ?",
		time.Now().UTC(), id, string(workflow.RequestApproved),
	)
	if err != nil {
		return fmt.Errorf("recording use of request %s: %w", id, err)
	}
	return expectOne(result, id)
}

func expectOne(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("request %s: %w", id, ErrConflict)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
