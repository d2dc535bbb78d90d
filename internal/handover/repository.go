package handover

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/evcraddock/propdesk/internal/db"
	"github.com/evcraddock/propdesk/internal/workflow"
)

// Repository provides persistence for handovers and their checklist items.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a handover repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, unit_id, owner_id, status, scheduled_at, notes, pdf_url,
	owner_accepted_at, admin_signature, owner_signature, created_at, updated_at`

// Insert stores a new DRAFT handover with its items.
// A second active handover for the unit fails with ErrActiveHandoverExists.
func (r *Repository) Insert(in CreateInput) (*Handover, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	id := uuid.NewString()
	_, err = tx.Exec(
		`INSERT INTO handovers (id, unit_id, owner_id, status, scheduled_at, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.UnitID, in.OwnerID, string(workflow.HandoverDraft), in.ScheduledAt, in.Notes, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("unit %s: %w", in.UnitID, ErrActiveHandoverExists)
		}
		return nil, fmt.Errorf("inserting handover: %w", err)
	}

	if err := insertItems(tx, id, in.Items); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing handover: %w", err)
	}
	return r.GetByID(id)
}

func insertItems(tx *sql.Tx, handoverID string, items []ItemInput) error {
	for i, it := range items {
		_, err := tx.Exec(
			`INSERT INTO handover_items (id, handover_id, category, label, expected_value, notes, status, sort_order)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), handoverID, it.Category, it.Label, it.ExpectedValue, it.Notes, it.Status, i,
		)
		if err != nil {
			return fmt.Errorf("inserting handover item %d: %w", i, err)
		}
	}
	return nil
}

// GetByID returns a handover with its items.
func (r *Repository) GetByID(id string) (*Handover, error) {
	row := r.db.QueryRow(fmt.Sprintf("SELECT %s FROM handovers WHERE id = ?", selectColumns), id)
	h, err := scanHandover(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("handover %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying handover %s: %w", id, err)
	}

	items, err := r.items(id)
	if err != nil {
		return nil, err
	}
	h.Items = items
	return h, nil
}

func (r *Repository) items(handoverID string) (items []Item, err error) {
	rows, err := r.db.Query(
		`SELECT id, category, label, expected_value, notes, status, sort_order
		FROM handover_items WHERE handover_id = ? ORDER BY sort_order`, handoverID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing handover items: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	items = []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Category, &it.Label, &it.ExpectedValue, &it.Notes, &it.Status, &it.SortOrder); err != nil {
			return nil, fmt.Errorf("scanning handover item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating handover items: %w", err)
	}
	return items, nil
}

// ActiveForUnit returns the unit's non-cancelled handover, or nil when none exists.
func (r *Repository) ActiveForUnit(unitID string) (*Handover, error) {
	row := r.db.QueryRow(
		fmt.Sprintf("SELECT %s FROM handovers WHERE unit_id = ? AND status != ? LIMIT 1", selectColumns),
		unitID, string(workflow.HandoverCancelled),
	)
	h, err := scanHandover(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying active handover for unit %s: %w", unitID, err)
	}
	return h, nil
}

// List returns one page of handovers (without items) and the total match count.
func (r *Repository) List(opts ListOptions) (handovers []*Handover, total int, err error) {
	var conditions []string
	var args []interface{}

	if opts.UnitID != "" {
		conditions = append(conditions, "unit_id = ?")
		args = append(args, opts.UnitID)
	}
	if opts.OwnerID != "" {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, opts.OwnerID)
	}
	if opts.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(opts.Status))
	}
	if opts.ActiveOnly {
		conditions = append(conditions, "status != ?")
		args = append(args, string(workflow.HandoverCancelled))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	if err := r.db.QueryRow("SELECT COUNT(*) FROM handovers"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting handovers: %w", err)
	}

	limit, offset := db.PageBounds(opts.Page, opts.Limit)
	query := fmt.Sprintf("SELECT %s FROM handovers%s ORDER BY created_at DESC LIMIT ? OFFSET ?", selectColumns, where)
	rows, err := r.db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing handovers: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	handovers = []*Handover{}
	for rows.Next() {
		h, err := scanHandover(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning handover: %w", err)
		}
		handovers = append(handovers, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating handovers: %w", err)
	}
	return handovers, total, nil
}

// Update applies an edit to a handover that is still in status from.
func (r *Repository) Update(id string, from workflow.HandoverStatus, in UpdateInput) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}
	if in.ScheduledAt != nil {
		sets = append(sets, "scheduled_at = ?")
		args = append(args, *in.ScheduledAt)
	}
	if in.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *in.Notes)
	}
	if in.AdminSignature != nil {
		sets = append(sets, "admin_signature = ?")
		args = append(args, *in.AdminSignature)
	}
	args = append(args, id, string(from))

	result, err := tx.Exec("UPDATE handovers SET "+strings.Join(sets, ", ")+" WHERE id = ? AND status = ?", args...)
	if err != nil {
		return fmt.Errorf("updating handover: %w", err)
	}
	if err := expectOne(result, id); err != nil {
		return err
	}

	if in.Items != nil {
		if _, err := tx.Exec("DELETE FROM handover_items WHERE handover_id = ?", id); err != nil {
			return fmt.Errorf("clearing handover items: %w", err)
		}
		if err := insertItems(tx, id, *in.Items); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Changes are the columns a transition may set besides the status.
type Changes struct {
	OwnerAcceptedAt *time.Time
	OwnerSignature  *string
	PDFURL          *string
}

// Transition moves a handover from one status to another. It fails with
// ErrConflict when the stored status is no longer from, so a concurrent
// transition loses instead of overwriting.
func (r *Repository) Transition(id string, from, to workflow.HandoverStatus, c Changes) error {
	sets := []string{"status = ?", "updated_at = ?"}
	args := []interface{}{string(to), time.Now().UTC()}
	if c.OwnerAcceptedAt != nil {
		sets = append(sets, "owner_accepted_at = ?")
		args = append(args, *c.OwnerAcceptedAt)
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

	result, err := r.db.Exec("UPDATE handovers SET "+strings.Join(sets, ", ")+" WHERE id = ? AND status = ?", args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("handover %s: %w", id, ErrActiveHandoverExists)
		}
		return fmt.Errorf("transitioning handover %s: %w", id, err)
	}
	return expectOne(result, id)
}

func expectOne(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("handover %s: %w", id, ErrConflict)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
