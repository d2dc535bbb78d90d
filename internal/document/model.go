// Package document provides the files attached to a unit: contracts, bills and
// anything else an owner should be able to download.
package document

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Category classifies a unit document.
type Category string

const (
	Contract Category = "CONTRACT"
	Bill     Category = "BILL"
	Other    Category = "OTHER"
)

// ValidCategories is the set of allowed categories.
var ValidCategories = []Category{Contract, Bill, Other}

// IsValid checks if a category is recognized.
func (c Category) IsValid() bool {
	for _, v := range ValidCategories {
		if c == v {
			return true
		}
	}
	return false
}

// Label returns a human-readable label for the category.
func (c Category) Label() string {
	switch c {
	case Contract:
		return "Contract"
	case Bill:
		return "Bill"
	case Other:
		return "Other"
	default:
		return string(c)
	}
}

// Document is a stored file belonging to a unit.
type Document struct {
	ID         string    `json:"id"`
	UnitID     string    `json:"unitId"`
	Category   Category  `json:"category"`
	Title      string    `json:"title"`
	FileKey    string    `json:"fileKey"`
	MimeType   string    `json:"mimeType"`
	SizeBytes  int64     `json:"sizeBytes"`
	UploadedBy string    `json:"uploadedBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CreateInput registers an already uploaded file against a unit.
type CreateInput struct {
	UnitID    string   `json:"unitId" validate:"required"`
	Category  Category `json:"category" validate:"required,oneof=CONTRACT BILL OTHER"`
	Title     string   `json:"title" validate:"required,max=200"`
	FileKey   string   `json:"fileKey" validate:"required"`
	MimeType  string   `json:"mimeType,omitempty" validate:"max=100"`
	SizeBytes int64    `json:"sizeBytes,omitempty" validate:"gte=0"`
}
