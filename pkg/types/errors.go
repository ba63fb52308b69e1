package types

import "errors"

// Record validation errors
var (
	// ErrEmptyName is returned when a record has a blank name
	ErrEmptyName = errors.New("name must not be empty")

	// ErrNegativePrice is returned when a price is below zero
	ErrNegativePrice = errors.New("price must not be negative")

	// ErrNegativeQuantity is returned when a quantity is below zero
	ErrNegativeQuantity = errors.New("quantity must not be negative")

	// ErrEmptyCategory is returned when a record has a blank category
	ErrEmptyCategory = errors.New("category must not be empty")
)

// Return validation errors
var (
	// ErrNonPositiveReturn is returned when a return carries no units
	ErrNonPositiveReturn = errors.New("return quantity must be > 0")

	// ErrMissingProduct is returned when a return names no record
	ErrMissingProduct = errors.New("product_id is required")
)
