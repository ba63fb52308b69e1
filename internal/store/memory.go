package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/setbench/setbench/pkg/types"
)

// MemoryStore implements Store in process memory. Records are kept in
// creation order.
type MemoryStore struct {
	mu      sync.RWMutex
	order   []uuid.UUID
	records map[uuid.UUID]types.Record
	serial  int
	gen     *Generator

	returns     map[uuid.UUID]types.Return
	returnOrder []uuid.UUID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(gen *Generator) *MemoryStore {
	if gen == nil {
		gen = NewGenerator(0)
	}
	return &MemoryStore{
		records: make(map[uuid.UUID]types.Record),
		returns: make(map[uuid.UUID]types.Return),
		gen:     gen,
	}
}

func (m *MemoryStore) Create(ctx context.Context, in types.NewRecord) (types.Record, error) {
	if err := in.Validate(); err != nil {
		return types.Record{}, invalidRecord(err)
	}
	r := newRecord(in, time.Now().UTC())

	m.mu.Lock()
	m.insertLocked(r)
	m.mu.Unlock()
	return r, nil
}

func (m *MemoryStore) insertLocked(r types.Record) {
	m.order = append(m.order, r.ID)
	m.records[r.ID] = r
	m.serial++
}

func (m *MemoryStore) Get(ctx context.Context, id uuid.UUID) (types.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return types.Record{}, notFound(id)
	}
	return r, nil
}

func (m *MemoryStore) Update(ctx context.Context, id uuid.UUID, patch types.RecordPatch) (types.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.records[id]
	if !ok {
		return types.Record{}, notFound(id)
	}
	updated, err := patch.Apply(current, time.Now().UTC())
	if err != nil {
		return types.Record{}, invalidRecord(err)
	}
	m.records[id] = updated
	return updated, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return notFound(id)
	}
	delete(m.records, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.returnOrder = slices.DeleteFunc(m.returnOrder, func(rid uuid.UUID) bool {
		if m.returns[rid].ProductID != id {
			return false
		}
		delete(m.returns, rid)
		return true
	})
	return nil
}

func (m *MemoryStore) ListAll(ctx context.Context) ([]types.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Record, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out, nil
}

func (m *MemoryStore) List(ctx context.Context, limit, offset int) ([]types.Record, error) {
	if err := validatePage(limit, offset); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []types.Record{}
	for i := offset; i < len(m.order) && len(out) < limit; i++ {
		out = append(out, m.records[m.order[i]])
	}
	return out, nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order), nil
}

func (m *MemoryStore) BulkInsert(ctx context.Context, n int) (int, time.Duration, error) {
	if err := validateBulk(n); err != nil {
		return 0, 0, err
	}
	start := time.Now()
	inserted := 0
	for inserted < n {
		if err := ctx.Err(); err != nil {
			return inserted, time.Since(start), err
		}
		size := min(BatchSize, n-inserted)

		m.mu.Lock()
		batch := m.gen.Batch(m.serial+1, size)
		now := time.Now().UTC()
		for _, in := range batch {
			m.insertLocked(newRecord(in, now))
		}
		m.mu.Unlock()
		inserted += size
	}
	return inserted, time.Since(start), nil
}

func (m *MemoryStore) DeleteAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.order)
	m.order = nil
	m.records = make(map[uuid.UUID]types.Record)
	m.returnOrder = nil
	m.returns = make(map[uuid.UUID]types.Return)
	return n, nil
}

func (m *MemoryStore) CreateReturn(ctx context.Context, in types.NewReturn) (types.ReturnDetail, error) {
	if err := in.Validate(); err != nil {
		return types.ReturnDetail{}, invalidRecord(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[in.ProductID]; !ok {
		return types.ReturnDetail{}, notFound(in.ProductID)
	}
	ret := newReturn(in, time.Now().UTC())
	m.returns[ret.ID] = ret
	m.returnOrder = append(m.returnOrder, ret.ID)
	return m.detailLocked(ret), nil
}

func (m *MemoryStore) GetReturn(ctx context.Context, id uuid.UUID) (types.ReturnDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ret, ok := m.returns[id]
	if !ok {
		return types.ReturnDetail{}, returnNotFound(id)
	}
	return m.detailLocked(ret), nil
}

func (m *MemoryStore) ListReturns(ctx context.Context, limit int) ([]types.ReturnDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// newest first, so the stable sort breaks ReturnedAt ties by creation
	out := make([]types.ReturnDetail, 0, len(m.returnOrder))
	for i := len(m.returnOrder) - 1; i >= 0; i-- {
		out = append(out, m.detailLocked(m.returns[m.returnOrder[i]]))
	}
	slices.SortStableFunc(out, func(a, b types.ReturnDetail) int {
		return b.ReturnedAt.Compare(a.ReturnedAt)
	})
	if limit = clampReturnLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) detailLocked(ret types.Return) types.ReturnDetail {
	r := m.records[ret.ProductID]
	return types.ReturnDetail{Return: ret, ProductName: r.Name, ProductCategory: r.Category}
}

func (m *MemoryStore) Close() error { return nil }
