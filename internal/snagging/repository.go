package snagging

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/propdesk/internal/db"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// Repository provides persistence for snagging reports and their items.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a snagging repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `s.id, s.unit_id, s.owner_id, s.created_by_id, s.created_by_role, u.name,
	s.title, s.description, s.status, s.priority, s.pdf_url,
	s.accepted_at, s.scheduled_at, s.owner_signature, s.created_at, s.updated_at`

const fromClause = ` FROM snaggings s LEFT JOIN users u ON u.id = s.created_by_id`

// NewReport is what the service hands to Insert once ownership and priority are settled.
type NewReport struct {
	CreateInput
	OwnerID   string
	CreatedBy workflow.Actor
}

// Insert stores a new DRAFT report with its items.
func (r *Repository) Insert(n NewReport) (*Snagging, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	id := uuid.NewString()
	var owner interface{}
	if n.OwnerID != "" {
		owner = n.OwnerID
	}
	_, err = tx.Exec(
		`INSERT INTO snaggings (id, unit_id, owner_id, created_by_id, created_by_role, title, description,
			status, priority, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, n.UnitID, owner, n.CreatedBy.ID, string(n.CreatedBy.Role), strings.TrimSpace(n.Title), n.Description,
		string(workflow.SnaggingDraft), string(n.Priority), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting snagging: %w", err)
	}

	if err := insertItems(tx, id, n.Items); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing snagging: %w", err)
	}
	return r.GetByID(id)
}

func insertItems(tx *sql.Tx, snaggingID string, items []ItemInput) error {
	for i, it := range items {
		_, err := tx.Exec(
			`INSERT INTO snagging_items (id, snagging_id, category, label, location, severity, notes, images_json, sort_order)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), snaggingID, it.Category, it.Label, it.Location, it.Severity, it.Notes,
			encodeImages(it.Images), i,
		)
		if err != nil {
			return fmt.Errorf("inserting snagging item %d: %w", i, err)
		}
	}
	return nil
}

// GetByID returns a report with its items.
func (r *Repository) GetByID(id string) (*Snagging, error) {
	row := r.db.QueryRow("SELECT "+selectColumns+fromClause+" WHERE s.id = ?", id)
	s, err := scanSnagging(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snagging %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying snagging %s: %w", id, err)
	}

	items, err := r.items(id)
	if err != nil {
		return nil, err
	}
	s.Items = items
	return s, nil
}

func (r *Repository) items(snaggingID string) (items []Item, err error) {
	rows, err := r.db.Query(
		`SELECT id, category, label, location, severity, notes, images_json
		FROM snagging_items WHERE snagging_id = ? ORDER BY sort_order`, snaggingID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snagging items: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	items = []Item{}
	for rows.Next() {
		var it Item
		var images string
		if err := rows.Scan(&it.ID, &it.Category, &it.Label, &it.Location, &it.Severity, &it.Notes, &images); err != nil {
			return nil, fmt.Errorf("scanning snagging item: %w", err)
		}
		it.Images = decodeImages(images)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snagging items: %w", err)
	}
	return items, nil
}

// List returns one page of reports (without items) and the total match count.
func (r *Repository) List(opts ListOptions) (reports []*Snagging, total int, err error) {
	var conditions []string
	var args []interface{}

	if opts.UnitID != "" {
		conditions = append(conditions, "s.unit_id = ?")
		args = append(args, opts.UnitID)
	}
	if opts.OwnerID != "" {
		conditions = append(conditions, "s.owner_id = ?")
		args = append(args, opts.OwnerID)
	}
	if opts.CreatedByID != "" {
		conditions = append(conditions, "s.created_by_id = ?")
		args = append(args, opts.CreatedByID)
	}
	if opts.Status != "" {
		conditions = append(conditions, "s.status = ?")
		args = append(args, string(opts.Status))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	if err := r.db.QueryRow("SELECT COUNT(*) FROM snaggings s"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting snaggings: %w", err)
	}

	limit, offset := db.PageBounds(opts.Page, opts.Limit)
	rows, err := r.db.Query(
		"SELECT "+selectColumns+fromClause+where+" ORDER BY s.created_at DESC LIMIT ? OFFSET ?",
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing snaggings: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	reports = []*Snagging{}
	for rows.Next() {
		s, err := scanSnagging(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning snagging: %w", err)
		}
		reports = append(reports, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating snaggings: %w", err)
	}
	return reports, total, nil
}

// Update applies an edit to a report that is still in status from.
func (r *Repository) Update(id string, from workflow.SnaggingStatus, in UpdateInput) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}
	if in.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, strings.TrimSpace(*in.Title))
	}
	if in.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *in.Description)
	}
	args = append(args, id, string(from))

	result, err := tx.Exec("UPDATE snaggings SET "+strings.Join(sets, ", ")+" WHERE id = ? AND status = ?", args...)
	if err != nil {
		return fmt.Errorf("updating snagging: %w", err)
	}
	if err := expectOne(result, id); err != nil {
		return err
	}

	if in.Items != nil {
		if _, err := tx.Exec("DELETE FROM snagging_items WHERE snagging_id = ?", id); err != nil {
			return fmt.Errorf("clearing snagging items: %w", err)
		}
		if err := insertItems(tx, id, *in.Items); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Changes are the columns an action may set besides the status.
type Changes struct {
	AcceptedAt     *time.Time
	ScheduledAt    *time.Time
	OwnerSignature *string
	PDFURL         *string
}

// Transition moves a report from one status to another (possibly the same one),
// failing with ErrConflict when the stored status is no longer from.
func (r *Repository) Transition(id string, from, to workflow.SnaggingStatus, c Changes) error {
	sets := []string{"status = ?", "updated_at = ?"}
	args := []interface{}{string(to), time.Now().UTC()}
	if c.AcceptedAt != nil {
		sets = append(sets, "accepted_at = ?")
		args = append(args, *c.AcceptedAt)
	}
	if c.ScheduledAt != nil {
		sets = append(sets, "scheduled_at = ?")
		args = append(args, *c.ScheduledAt)
	}
	if c.OwnerSignature != nil {
		sets = append(sets, "owner_signature = ?")
		args = append(args, *c.OwnerSignature)
	}
	if c.PDFURL != nil {
		sets = append(sets, "pdf_url = ?")
		args = append(args, *c.PDFURL)
	}
	args = append(args, id, string(from))

	result, err := r.db.Exec("UPDATE snaggings SET "+strings.Join(sets, ", ")+" WHERE id = ? AND status = ?", args...)
	if err != nil {
		return fmt.Errorf("transitioning snagging %s: %w", id, err)
	}
	return expectOne(result, id)
}

func expectOne(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("snagging %s: %w", id, ErrConflict)
	}
	return nil
}
