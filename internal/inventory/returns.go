package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/setbench/setbench/pkg/types"
)

// Ledger operation names for returns.
const (
	OpDBReturnCreate = "db_return_create"
	OpDBReturnGet    = "db_return_get"
	OpDBReturnList   = "db_return_list"
)

// CreateReturn records a return against an existing record. Returns live
// only in the store; the index set is not touched.
func (s *Service) CreateReturn(ctx context.Context, in types.NewReturn) (types.ReturnDetail, time.Duration, error) {
	start := time.Now()
	d, err := s.store.CreateReturn(ctx, in)
	elapsed := time.Since(start)
	s.sample(OpDBReturnCreate, LabelStore, elapsed, 1, err)
	if err != nil {
		return types.ReturnDetail{}, elapsed, err
	}
	s.logger.Info("created return", "id", d.ID, "product_id", d.ProductID, "quantity", d.Quantity)
	return d, elapsed, nil
}

// GetReturn reads one return.
func (s *Service) GetReturn(ctx context.Context, id uuid.UUID) (types.ReturnDetail, time.Duration, error) {
	start := time.Now()
	d, err := s.store.GetReturn(ctx, id)
	elapsed := time.Since(start)
	s.sample(OpDBReturnGet, LabelStore, elapsed, 1, err)
	return d, elapsed, err
}

// ListReturns returns the most recent returns, newest first.
func (s *Service) ListReturns(ctx context.Context, limit int) ([]types.ReturnDetail, time.Duration, error) {
	start := time.Now()
	list, err := s.store.ListReturns(ctx, limit)
	elapsed := time.Since(start)
	s.sample(OpDBReturnList, LabelStore, elapsed, len(list), err)
	return list, elapsed, err
}
