package document

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/propdesk/internal/db"
)

// Repository provides CRUD operations for documents.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a document repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, unit_id, category, title, file_key, mime_type, size_bytes, uploaded_by, created_at`

func scanDocument(row interface{ Scan(...interface{}) error }) (*Document, error) {
	var d Document
	var category string
	if err := row.Scan(&d.ID, &d.UnitID, &category, &d.Title, &d.FileKey, &d.MimeType, &d.SizeBytes, &d.UploadedBy, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Category = Category(category)
	return &d, nil
}

// Add records a document uploaded by uploadedBy.
func (r *Repository) Add(in CreateInput, uploadedBy string) (*Document, error) {
	if !in.Category.IsValid() {
		return nil, fmt.Errorf("invalid document category: %q", in.Category)
	}

	id := uuid.NewString()
	_, err := r.db.Exec(
		`INSERT INTO documents (id, unit_id, category, title, file_key, mime_type, size_bytes, uploaded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.UnitID, string(in.Category), strings.TrimSpace(in.Title), in.FileKey, in.MimeType, in.SizeBytes,
		uploadedBy, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting document: %w", err)
	}
	return r.GetByID(id)
}

// GetByID returns a document by ID.
func (r *Repository) GetByID(id string) (*Document, error) {
	d, err := scanDocument(r.db.QueryRow(fmt.Sprintf("SELECT %s FROM documents WHERE id = ?", selectColumns), id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying document %s: %w", id, err)
	}
	return d, nil
}

// ListOptions controls filtering and paging for List.
type ListOptions struct {
	UnitIDs  []string
	Category Category
	Page     int
	Limit    int
}

// List returns one page of documents, newest first, and the total match count.
// A non-nil but empty UnitIDs matches nothing.
func (r *Repository) List(opts ListOptions) (docs []*Document, total int, err error) {
	if opts.UnitIDs != nil && len(opts.UnitIDs) == 0 {
		return []*Document{}, 0, nil
	}

	var conditions []string
	var args []interface{}
	if len(opts.UnitIDs) > 0 {
		conditions = append(conditions, "unit_id IN (?"+strings.Repeat(", ?", len(opts.UnitIDs)-1)+")")
		for _, id := range opts.UnitIDs {
			args = append(args, id)
		}
	}
	if opts.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, string(opts.Category))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	if err := r.db.QueryRow("SELECT COUNT(*) FROM documents"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting documents: %w", err)
	}

	limit, offset := db.PageBounds(opts.Page, opts.Limit)
	rows, err := r.db.Query(
		fmt.Sprintf("SELECT %s FROM documents%s ORDER BY created_at DESC LIMIT ? OFFSET ?", selectColumns, where),
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing documents: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	docs = []*Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, total, nil
}

// Delete removes a document record.
func (r *Repository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}
