package unit

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository provides CRUD operations for projects and units.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a unit repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const unitColumns = `id, project_id, name, floor, area_sqm, owner_id, created_at, updated_at`

// CreateProject inserts a project.
func (r *Repository) CreateProject(in ProjectInput) (*Project, error) {
	p := &Project{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Location:  strings.TrimSpace(in.Location),
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.Exec(
		"INSERT INTO projects (id, name, location, created_at) VALUES (?, ?, ?, ?)",
		p.ID, p.Name, p.Location, p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting project: %w", err)
	}
	return r.GetProject(p.ID)
}

// GetProject returns a project by ID.
func (r *Repository) GetProject(id string) (*Project, error) {
	var p Project
	err := r.db.QueryRow(
		"SELECT id, name, location, created_at FROM projects WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Location, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %s: %w", id, ErrProjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying project %s: %w", id, err)
	}
	return &p, nil
}

// ListProjects returns all projects ordered by name.
func (r *Repository) ListProjects() (projects []*Project, err error) {
	rows, err := r.db.Query("SELECT id, name, location, created_at FROM projects ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Location, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}
	return projects, nil
}

// UpdateProject renames or relocates a project.
func (r *Repository) UpdateProject(id string, in ProjectInput) (*Project, error) {
	result, err := r.db.Exec(
		"UPDATE projects SET name = ?, location = ? WHERE id = ?",
		strings.TrimSpace(in.Name), strings.TrimSpace(in.Location), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating project: %w", err)
	}
	if err := expectOne(result, id, ErrProjectNotFound); err != nil {
		return nil, err
	}
	return r.GetProject(id)
}

// DeleteProject removes a project and, by cascade, its units.
func (r *Repository) DeleteProject(id string) error {
	result, err := r.db.Exec("DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return expectOne(result, id, ErrProjectNotFound)
}

// Create inserts a unit.
func (r *Repository) Create(in CreateInput) (*Unit, error) {
	if _, err := r.GetProject(in.ProjectID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	_, err := r.db.Exec(
		`INSERT INTO units (id, project_id, name, floor, area_sqm, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.ProjectID, strings.TrimSpace(in.Name), in.Floor, in.AreaSqm, nullIfEmpty(in.OwnerID), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting unit: %w", err)
	}
	return r.GetByID(id)
}

// GetByID returns a unit by ID.
func (r *Repository) GetByID(id string) (*Unit, error) {
	row := r.db.QueryRow(fmt.Sprintf("SELECT %s FROM units WHERE id = ?", unitColumns), id)
	u, err := scanUnit(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("unit %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying unit %s: %w", id, err)
	}
	return u, nil
}

// ListOptions controls filtering for List.
type ListOptions struct {
	ProjectID string
	OwnerID   string
}

// List returns units, optionally filtered by project or owner.
func (r *Repository) List(opts ListOptions) (units []*Unit, err error) {
	query := fmt.Sprintf("SELECT %s FROM units", unitColumns)
	var conditions []string
	var args []interface{}

	if opts.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, opts.ProjectID)
	}
	if opts.OwnerID != "" {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, opts.OwnerID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing units: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning unit: %w", err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating units: %w", err)
	}
	return units, nil
}

// Update applies a partial update.
func (r *Repository) Update(id string, in UpdateInput) (*Unit, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}

	if in.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, strings.TrimSpace(*in.Name))
	}
	if in.Floor != nil {
		sets = append(sets, "floor = ?")
		args = append(args, *in.Floor)
	}
	if in.AreaSqm != nil {
		sets = append(sets, "area_sqm = ?")
		args = append(args, *in.AreaSqm)
	}
	if in.OwnerID != nil {
		sets = append(sets, "owner_id = ?")
		args = append(args, nullIfEmpty(in.OwnerID))
	}
	args = append(args, id)

	result, err := r.db.Exec("UPDATE units SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("updating unit: %w", err)
	}
	if err := expectOne(result, id, ErrNotFound); err != nil {
		return nil, err
	}
	return r.GetByID(id)
}

// Delete removes a unit.
func (r *Repository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM units WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting unit: %w", err)
	}
	return expectOne(result, id, ErrNotFound)
}

func expectOne(result sql.Result, id string, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, notFound)
	}
	return nil
}

func nullIfEmpty(s *string) interface{} {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
