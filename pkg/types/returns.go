package types

import (
	"time"

	"github.com/google/uuid"
)

// Return is one customer return of units of a record.
type Return struct {
	ID         uuid.UUID `json:"id"`
	ProductID  uuid.UUID `json:"product_id"`
	Quantity   int32     `json:"quantity"`
	Reason     string    `json:"reason"`
	ReturnedAt time.Time `json:"returned_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReturnDetail is a return joined with the name and category of its record.
type ReturnDetail struct {
	Return
	ProductName     string `json:"product_name"`
	ProductCategory string `json:"product_category"`
}

// NewReturn carries the caller-supplied fields of a return.
type NewReturn struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	Reason    string    `json:"reason"`

	// ReturnedAt defaults to the creation time when nil
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
}

// Validate checks field constraints. Whether the record exists is up to the
// store.
func (n NewReturn) Validate() error {
	if n.ProductID == uuid.Nil {
		return ErrMissingProduct
	}
	if n.Quantity <= 0 {
		return ErrNonPositiveReturn
	}
	return nil
}
