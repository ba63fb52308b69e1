// Package types provides the core data types shared by every setbench component.
package types

import (
	"bytes"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is one inventory item. Two records are the same record when their
// IDs are equal; every other field may change over the record's lifetime.
type Record struct {
	// ID is the immutable identity of the record
	ID uuid.UUID `json:"id"`

	// Name is the display name and the primary sort key
	Name string `json:"name"`

	// Description is optional free text
	Description *string `json:"description,omitempty"`

	// PriceCents is the price in minor currency units
	PriceCents int64 `json:"price_cents"`

	// Quantity is the units in stock, never negative
	Quantity int32 `json:"quantity"`

	// Category groups records for display
	Category string `json:"category"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SortKey is the (name, id) pair records are totally ordered by.
type SortKey struct {
	Name string
	ID   uuid.UUID
}

// Key returns the record's current sort key.
func (r Record) Key() SortKey {
	return SortKey{Name: r.Name, ID: r.ID}
}

// Compare orders keys by name, then by id bytes.
func (k SortKey) Compare(other SortKey) int {
	if c := strings.Compare(k.Name, other.Name); c != 0 {
		return c
	}
	return bytes.Compare(k.ID[:], other.ID[:])
}

// Less reports whether k sorts before other.
func (k SortKey) Less(other SortKey) bool {
	return k.Compare(other) < 0
}

// Less reports whether r sorts before other by (name, id).
func (r Record) Less(other Record) bool {
	return r.Key().Less(other.Key())
}

// Equal reports identity equality. Only the ID takes part.
func (r Record) Equal(other Record) bool {
	return r.ID == other.ID
}

// PriceDollars returns the price in major currency units.
func (r Record) PriceDollars() float64 {
	return float64(r.PriceCents) / 100.0
}

// StockValue is price times quantity in minor units.
func (r Record) StockValue() int64 {
	return r.PriceCents * int64(r.Quantity)
}

// NewRecord carries the caller-supplied fields of a record to be created.
type NewRecord struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	PriceCents  int64   `json:"price_cents"`
	Quantity    int32   `json:"quantity"`
	Category    string  `json:"category"`
}

// Validate checks field constraints.
func (n NewRecord) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return ErrEmptyName
	}
	if n.PriceCents < 0 {
		return ErrNegativePrice
	}
	if n.Quantity < 0 {
		return ErrNegativeQuantity
	}
	if strings.TrimSpace(n.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// RecordPatch is a partial update. Nil fields are left unchanged.
type RecordPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	PriceCents  *int64  `json:"price_cents,omitempty"`
	Quantity    *int32  `json:"quantity,omitempty"`
	Category    *string `json:"category,omitempty"`
}

// Apply returns a copy of r with the patch applied and UpdatedAt set to now.
// The result is validated with the same rules as NewRecord.
func (p RecordPatch) Apply(r Record, now time.Time) (Record, error) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Description != nil {
		d := *p.Description
		r.Description = &d
	}
	if p.PriceCents != nil {
		r.PriceCents = *p.PriceCents
	}
	if p.Quantity != nil {
		r.Quantity = *p.Quantity
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	check := NewRecord{Name: r.Name, PriceCents: r.PriceCents, Quantity: r.Quantity, Category: r.Category}
	if err := check.Validate(); err != nil {
		return Record{}, err
	}
	r.UpdatedAt = now
	return r, nil
}

// Empty reports whether the patch changes nothing.
func (p RecordPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.PriceCents == nil && p.Quantity == nil && p.Category == nil
}
