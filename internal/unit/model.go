// Package unit provides the project and unit domain models and data access.
package unit

import (
	"database/sql"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a unit does not exist.
	ErrNotFound = errors.New("unit not found")
	// ErrProjectNotFound is returned when a project does not exist.
	ErrProjectNotFound = errors.New("project not found")
)

// Project groups units in one development.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"createdAt"`
}

// Unit is an apartment or plot that can be handed over to an owner.
type Unit struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Name      string    `json:"name"`
	Floor     *int64    `json:"floor"`
	AreaSqm   *float64  `json:"areaSqm,omitempty"`
	OwnerID   *string   `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasOwner reports whether an owner is assigned to the unit.
func (u *Unit) HasOwner() bool {
	return u.OwnerID != nil && *u.OwnerID != ""
}

// Owner returns the assigned owner ID, or "" when none.
func (u *Unit) Owner() string {
	if !u.HasOwner() {
		return ""
	}
	return *u.OwnerID
}

// ProjectInput is the payload for creating or renaming a project.
type ProjectInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	Location string `json:"location" validate:"max=500"`
}

// CreateInput is the payload for creating a unit.
type CreateInput struct {
	ProjectID string   `json:"projectId" validate:"required"`
	Name      string   `json:"name" validate:"required,max=200"`
	Floor     *int64   `json:"floor,omitempty"`
	AreaSqm   *float64 `json:"areaSqm,omitempty" validate:"omitempty,gt=0"`
	OwnerID   *string  `json:"ownerId,omitempty"`
}

// UpdateInput is a partial update. A non-nil OwnerID of "" clears the owner.
type UpdateInput struct {
	Name    *string  `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Floor   *int64   `json:"floor,omitempty"`
	AreaSqm *float64 `json:"areaSqm,omitempty" validate:"omitempty,gt=0"`
	OwnerID *string  `json:"ownerId,omitempty"`
}

func scanUnit(row interface{ Scan(...interface{}) error }) (*Unit, error) {
	var u Unit
	var floor sql.NullInt64
	var area sql.NullFloat64
	var owner sql.NullString

	err := row.Scan(&u.ID, &u.ProjectID, &u.Name, &floor, &area, &owner, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if floor.Valid {
		u.Floor = &floor.Int64
	}
	if area.Valid {
		u.AreaSqm = &area.Float64
	}
	if owner.Valid && owner.String != "" {
		u.OwnerID = &owner.String
	}
	return &u, nil
}
