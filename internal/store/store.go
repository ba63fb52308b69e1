// Package store provides the authoritative record store that the in-memory
// index set mirrors.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/setbench/setbench/internal/errors"
	"github.com/setbench/setbench/pkg/types"
)

// BatchSize is the number of records written per bulk-insert transaction.
const BatchSize = 500

// MaxReturnsListed caps ListReturns.
const MaxReturnsListed = 1000

// Store is the authoritative record set.
type Store interface {
	// Create validates and persists a new record with a fresh id.
	Create(ctx context.Context, in types.NewRecord) (types.Record, error)

	// Get returns a record or a NOT_FOUND error.
	Get(ctx context.Context, id uuid.UUID) (types.Record, error)

	// Update applies a patch and returns the new record, or NOT_FOUND.
	Update(ctx context.Context, id uuid.UUID, patch types.RecordPatch) (types.Record, error)

	// Delete removes a record, or returns NOT_FOUND.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListAll returns every record in creation order.
	ListAll(ctx context.Context) ([]types.Record, error)

	// List returns one page of records in creation order.
	List(ctx context.Context, limit, offset int) ([]types.Record, error)

	Count(ctx context.Context) (int, error)

	// BulkInsert generates and persists n records in batches of BatchSize.
	BulkInsert(ctx context.Context, n int) (int, time.Duration, error)

	// DeleteAll removes every record and returns how many were removed.
	// Returns go with their records.
	DeleteAll(ctx context.Context) (int, error)

	// CreateReturn records a return against an existing record, or NOT_FOUND.
	CreateReturn(ctx context.Context, in types.NewReturn) (types.ReturnDetail, error)

	GetReturn(ctx context.Context, id uuid.UUID) (types.ReturnDetail, error)

	// ListReturns returns up to limit returns, latest ReturnedAt first.
	// Deleting a record deletes its returns.
	ListReturns(ctx context.Context, limit int) ([]types.ReturnDetail, error)

	Close() error
}

func notFound(id uuid.UUID) error {
	return errors.NewNotFoundError(fmt.Sprintf("record %s not found", id)).
		WithDetails(map[string]interface{}{"id": id.String()})
}

func returnNotFound(id uuid.UUID) error {
	return errors.NewNotFoundError(fmt.Sprintf("return %s not found", id)).
		WithDetails(map[string]interface{}{"id": id.String()})
}

func invalidRecord(err error) error {
	return errors.Wrap(errors.ErrCategoryValidation, errors.CodeInvalidRecord, "invalid record", err)
}

func queryFailed(op string, err error) error {
	return errors.NewStoreError(errors.CodeQueryFailed, op+" failed", err)
}

// newRecord builds a full record from validated input.
func newRecord(in types.NewRecord, now time.Time) types.Record {
	var desc *string
	if in.Description != nil {
		d := *in.Description
		desc = &d
	}
	return types.Record{
		ID:          uuid.New(),
		Name:        in.Name,
		Description: desc,
		PriceCents:  in.PriceCents,
		Quantity:    in.Quantity,
		Category:    in.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// newReturn builds a return from validated input.
func newReturn(in types.NewReturn, now time.Time) types.Return {
	returnedAt := now
	if in.ReturnedAt != nil {
		returnedAt = in.ReturnedAt.UTC()
	}
	return types.Return{
		ID:         uuid.New(),
		ProductID:  in.ProductID,
		Quantity:   in.Quantity,
		Reason:     in.Reason,
		ReturnedAt: returnedAt,
		CreatedAt:  now,
	}
}

func clampReturnLimit(limit int) int {
	if limit <= 0 || limit > MaxReturnsListed {
		return MaxReturnsListed
	}
	return limit
}

func validatePage(limit, offset int) error {
	if limit <= 0 || offset < 0 {
		return errors.NewValidationError(errors.CodeInvalidConfiguration,
			fmt.Sprintf("invalid page: limit=%d offset=%d", limit, offset))
	}
	return nil
}

func validateBulk(n int) error {
	if n <= 0 {
		return errors.NewConfigurationError(fmt.Sprintf("bulk insert count must be positive, got %d", n))
	}
	return nil
}
