// Package inventory keeps the authoritative store and the in-memory index set
// in step. Every write goes to the store first and is mirrored into the
// index set only once the store has accepted it.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/setbench/setbench/internal/errors"
	"github.com/setbench/setbench/internal/indexset"
	"github.com/setbench/setbench/internal/logging"
	"github.com/setbench/setbench/internal/metrics"
	"github.com/setbench/setbench/internal/store"
	"github.com/setbench/setbench/pkg/types"
)

// Ledger operation names.
const (
	OpDBCreate     = "db_create"
	OpDBGet        = "db_get"
	OpDBUpdate     = "db_update"
	OpDBDelete     = "db_delete"
	OpDBBulkInsert = "db_bulk_insert"
	OpIndexInsert  = "index_insert"
	OpIndexLookup  = "index_lookup"
	OpIndexRemove  = "index_remove"
	OpIndexSync    = "index_sync"
)

// Ledger index labels for samples that do not belong to one index kind.
const (
	LabelStore = "db"
	LabelAll   = "all"
)

// StatusSampleSize is the number of leading records shown per index by Status.
const StatusSampleSize = 5

// Timing splits an operation's cost between the store and the index set.
type Timing struct {
	Store time.Duration `json:"store_ns"`
	Index time.Duration `json:"index_ns"`
}

// Lookup is one index kind's membership answer for a record.
type Lookup struct {
	Kind       indexset.Kind `json:"kind"`
	Found      bool          `json:"found"`
	DurationNs int64         `json:"duration_ns"`
}

// Detail is a record together with its per-index lookups.
type Detail struct {
	Record  types.Record `json:"record"`
	Lookups []Lookup     `json:"lookups"`
	Timing  Timing       `json:"timing"`
}

// SeedResult describes a bulk load.
type SeedResult struct {
	Inserted     int           `json:"inserted"`
	StoreElapsed time.Duration `json:"store_elapsed_ns"`
	SyncElapsed  time.Duration `json:"sync_elapsed_ns"`
	Total        int           `json:"total"`
}

// IndexStatus is the size and leading sample of one index.
type IndexStatus struct {
	Kind   indexset.Kind  `json:"kind"`
	Size   int            `json:"size"`
	Sample []types.Record `json:"sample"`
}

// ResetResult describes a full reset.
type ResetResult struct {
	RecordsDeleted int `json:"records_deleted"`
	SamplesCleared int `json:"samples_cleared"`
}

// Service is the CRUD entry point shared by the HTTP API and the stress harness.
type Service struct {
	store   store.Store
	manager *indexset.Manager
	ledger  *metrics.Ledger
	maxSeed int
	logger  *slog.Logger
}

// NewService wires a service. maxSeed caps Seed; zero means unlimited.
func NewService(st store.Store, manager *indexset.Manager, ledger *metrics.Ledger, maxSeed int, logger *slog.Logger) *Service {
	return &Service{
		store:   st,
		manager: manager,
		ledger:  ledger,
		maxSeed: maxSeed,
		logger:  logging.OrDefault(logger),
	}
}

// Manager returns the live index set.
func (s *Service) Manager() *indexset.Manager {
	return s.manager
}

func (s *Service) sample(op, label string, d time.Duration, items int, err error) {
	sm := metrics.Sample{
		Operation:  op,
		Index:      label,
		DurationNs: d.Nanoseconds(),
		ItemCount:  items,
		Success:    err == nil,
	}
	if err != nil {
		sm.Notes = errors.GetCode(err)
	}
	s.ledger.Record(sm)
}

// Create persists in and mirrors it into the index set.
func (s *Service) Create(ctx context.Context, in types.NewRecord) (types.Record, Timing, error) {
	var t Timing
	start := time.Now()
	r, err := s.store.Create(ctx, in)
	t.Store = time.Since(start)
	s.sample(OpDBCreate, LabelStore, t.Store, 1, err)
	if err != nil {
		return types.Record{}, t, err
	}

	t.Index = s.manager.InsertOrUpdate(r)
	s.sample(OpIndexInsert, LabelAll, t.Index, 1, nil)
	return r, t, nil
}

// Get reads a record from the store and probes every index for it.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Detail, error) {
	var d Detail
	start := time.Now()
	r, err := s.store.Get(ctx, id)
	d.Timing.Store = time.Since(start)
	s.sample(OpDBGet, LabelStore, d.Timing.Store, 1, err)
	if err != nil {
		return d, err
	}
	d.Record = r
	d.Lookups, d.Timing.Index = s.Probe(id)
	return d, nil
}

// Probe runs a membership test for id against every index kind, recording
// one sample per kind, and returns the summed index time.
func (s *Service) Probe(id uuid.UUID) ([]Lookup, time.Duration) {
	lookups := make([]Lookup, 0, len(indexset.Kinds))
	var total time.Duration
	for _, kind := range indexset.Kinds {
		found, d := s.manager.Contains(kind, id)
		total += d
		lookups = append(lookups, Lookup{Kind: kind, Found: found, DurationNs: d.Nanoseconds()})
		s.sample(OpIndexLookup, kind.String(), d, 1, nil)
	}
	return lookups, total
}

// Update patches a record in the store and re-indexes the new version.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch types.RecordPatch) (types.Record, Timing, error) {
	var t Timing
	start := time.Now()
	r, err := s.store.Update(ctx, id, patch)
	t.Store = time.Since(start)
	s.sample(OpDBUpdate, LabelStore, t.Store, 1, err)
	if err != nil {
		return types.Record{}, t, err
	}

	t.Index = s.manager.InsertOrUpdate(r)
	s.sample(OpIndexInsert, LabelAll, t.Index, 1, nil)
	return r, t, nil
}

// Delete removes a record from the store and then from the index set.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (Timing, error) {
	var t Timing
	start := time.Now()
	err := s.store.Delete(ctx, id)
	t.Store = time.Since(start)
	s.sample(OpDBDelete, LabelStore, t.Store, 1, err)
	if err != nil {
		return t, err
	}

	_, t.Index = s.manager.Remove(id)
	s.sample(OpIndexRemove, LabelAll, t.Index, 1, nil)
	return t, nil
}

// List returns one page of records from the store.
func (s *Service) List(ctx context.Context, limit, offset int) ([]types.Record, error) {
	return s.store.List(ctx, limit, offset)
}

// ListAll returns every record from the store in creation order.
func (s *Service) ListAll(ctx context.Context) ([]types.Record, error) {
	return s.store.ListAll(ctx)
}

// Count returns the number of stored records.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// Seed bulk-inserts n generated records and resyncs the index set.
func (s *Service) Seed(ctx context.Context, n int) (SeedResult, error) {
	if n <= 0 || (s.maxSeed > 0 && n > s.maxSeed) {
		return SeedResult{}, errors.NewConfigurationError(
			fmt.Sprintf("seed count %d out of range (max %d)", n, s.maxSeed)).
			WithDetails(map[string]interface{}{"max": s.maxSeed})
	}

	inserted, elapsed, err := s.store.BulkInsert(ctx, n)
	s.sample(OpDBBulkInsert, LabelStore, elapsed, inserted, err)
	if err != nil {
		return SeedResult{Inserted: inserted, StoreElapsed: elapsed}, err
	}

	total, syncElapsed, err := s.Sync(ctx)
	if err != nil {
		return SeedResult{Inserted: inserted, StoreElapsed: elapsed}, err
	}

	s.logger.Info("seeded records", "inserted", inserted, "total", total, "store_elapsed", elapsed, "sync_elapsed", syncElapsed)
	return SeedResult{Inserted: inserted, StoreElapsed: elapsed, SyncElapsed: syncElapsed, Total: total}, nil
}

// Sync rebuilds the index set from the store.
func (s *Service) Sync(ctx context.Context) (int, time.Duration, error) {
	records, err := s.store.ListAll(ctx)
	if err != nil {
		return 0, 0, err
	}
	d := s.manager.SyncFrom(records)
	s.sample(OpIndexSync, LabelAll, d, len(records), nil)
	return len(records), d, nil
}

// Status reports the size and leading records of every index.
func (s *Service) Status() []IndexStatus {
	out := make([]IndexStatus, 0, len(indexset.Kinds))
	for _, kind := range indexset.Kinds {
		out = append(out, IndexStatus{
			Kind:   kind,
			Size:   s.manager.Size(kind),
			Sample: s.manager.SampleFirstN(kind, StatusSampleSize),
		})
	}
	return out
}

// Reset deletes every stored record, empties the index set (which also
// drops the last benchmark report) and clears the ledger.
func (s *Service) Reset(ctx context.Context) (ResetResult, error) {
	deleted, err := s.store.DeleteAll(ctx)
	if err != nil {
		return ResetResult{}, err
	}
	s.manager.Reset()
	cleared := s.ledger.Len()
	s.ledger.Clear()

	s.logger.Info("reset complete", "records_deleted", deleted, "samples_cleared", cleared)
	return ResetResult{RecordsDeleted: deleted, SamplesCleared: cleared}, nil
}
