package stress

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setbench/setbench/internal/errors"
	"github.com/setbench/setbench/internal/indexset"
	"github.com/setbench/setbench/internal/inventory"
	"github.com/setbench/setbench/internal/logging"
	"github.com/setbench/setbench/internal/metrics"
	"github.com/setbench/setbench/internal/store"
	"github.com/setbench/setbench/pkg/types"
)

// recordingTarget tracks which ids were created and flags any mutation of an
// id it never handed out.
type recordingTarget struct {
	mu         sync.Mutex
	created    map[uuid.UUID]bool
	existing   []types.Record
	violations []string
	calls      int
	failDelete bool
}

func newRecordingTarget(existing int) *recordingTarget {
	rt := &recordingTarget{created: make(map[uuid.UUID]bool)}
	for i := 0; i < existing; i++ {
		rt.existing = append(rt.existing, types.Record{ID: uuid.New(), Name: fmt.Sprintf("pre-%d", i)})
	}
	return rt
}

func (rt *recordingTarget) Create(ctx context.Context, in types.NewRecord) (types.Record, inventory.Timing, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.calls++
	r := types.Record{ID: uuid.New(), Name: in.Name}
	rt.created[r.ID] = true
	return r, inventory.Timing{Index: time.Microsecond}, nil
}

func (rt *recordingTarget) Get(ctx context.Context, id uuid.UUID) (inventory.Detail, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.calls++
	return inventory.Detail{Record: types.Record{ID: id}, Timing: inventory.Timing{Index: time.Microsecond}}, nil
}

func (rt *recordingTarget) Probe(id uuid.UUID) ([]inventory.Lookup, time.Duration) {
	return nil, time.Nanosecond
}

func (rt *recordingTarget) Update(ctx context.Context, id uuid.UUID, patch types.RecordPatch) (types.Record, inventory.Timing, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.calls++
	if !rt.created[id] {
		rt.violations = append(rt.violations, "update "+id.String())
	}
	return types.Record{ID: id}, inventory.Timing{Index: time.Microsecond}, nil
}

func (rt *recordingTarget) Delete(ctx context.Context, id uuid.UUID) (inventory.Timing, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.calls++
	if !rt.created[id] {
		rt.violations = append(rt.violations, "delete "+id.String())
	}
	if rt.failDelete {
		return inventory.Timing{}, errors.NewNotFoundError("gone")
	}
	delete(rt.created, id)
	return inventory.Timing{Index: time.Microsecond}, nil
}

func (rt *recordingTarget) ListAll(ctx context.Context) ([]types.Record, error) {
	return rt.existing, nil
}

func (rt *recordingTarget) Count(ctx context.Context) (int, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.existing) + len(rt.created), nil
}

func (rt *recordingTarget) Seed(ctx context.Context, n int) (inventory.SeedResult, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.calls++
	for i := 0; i < n; i++ {
		rt.existing = append(rt.existing, types.Record{ID: uuid.New()})
	}
	return inventory.SeedResult{Inserted: n, Total: len(rt.existing)}, nil
}

func TestConfig_ValidateRejectsBeforeWork(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero concurrency", Config{Concurrency: 0, OpsPerUser: 10}},
		{"negative concurrency", Config{Concurrency: -1, OpsPerUser: 10}},
		{"concurrency over max", Config{Concurrency: 201, OpsPerUser: 10}},
		{"zero ops", Config{Concurrency: 1, OpsPerUser: 0}},
		{"ops over max", Config{Concurrency: 1, OpsPerUser: 1001}},
		{"negative seed", Config{Concurrency: 1, OpsPerUser: 1, Seed: -5}},
		{"seed over max", Config{Concurrency: 1, OpsPerUser: 1, Seed: 10001}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := newRecordingTarget(0)
			h := NewHarness(target, metrics.NewLedger(), DefaultLimits(), logging.Discard())

			report, err := h.Run(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Nil(t, report)
			assert.True(t, errors.IsInvalidConfiguration(err))
			assert.Equal(t, 0, target.calls, "no work may start")
		})
	}

	assert.NoError(t, Config{Concurrency: 200, OpsPerUser: 1000, Seed: 10000}.Validate(DefaultLimits()))
}

func TestHarness_SingleUserCountsAndPoolConfinement(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		target := newRecordingTarget(5)
		h := NewHarness(target, metrics.NewLedger(), DefaultLimits(), logging.Discard())
		h.RandSeed = seed

		report, err := h.Run(context.Background(), Config{Concurrency: 1, OpsPerUser: 10})
		require.NoError(t, err)

		assert.Equal(t, 10, report.Reads+report.Creates+report.Updates+report.Deletes, "seed %d", seed)
		assert.Equal(t, 10, report.TotalOps)
		assert.Empty(t, target.violations, "seed %d", seed)
		assert.Equal(t, 0, report.Errors)
	}
}

func TestHarness_ManyUsersPoolConfinement(t *testing.T) {
	target := newRecordingTarget(20)
	ledger := metrics.NewLedger()
	h := NewHarness(target, ledger, DefaultLimits(), logging.Discard())
	h.RandSeed = 99

	report, err := h.Run(context.Background(), Config{Concurrency: 16, OpsPerUser: 60})
	require.NoError(t, err)

	assert.Equal(t, 16*60, report.TotalOps)
	assert.Empty(t, target.violations)
	assert.Equal(t, 16*60, ledger.Len(), "one end-to-end sample per operation")

	var breakdownTotal int
	for _, b := range report.Breakdown {
		breakdownTotal += b.Count
	}
	assert.Equal(t, report.TotalOps, breakdownTotal)
	assert.LessOrEqual(t, report.Latency.MinMs, report.Latency.P95Ms)
	assert.LessOrEqual(t, report.Latency.P95Ms, report.Latency.P99Ms)
	assert.LessOrEqual(t, report.Latency.P99Ms, report.Latency.MaxMs)
	assert.Greater(t, report.IndexTime.InsertNs, int64(0))
}

func TestHarness_FailuresAreCountedNotFatal(t *testing.T) {
	target := newRecordingTarget(3)
	target.failDelete = true
	h := NewHarness(target, metrics.NewLedger(), DefaultLimits(), logging.Discard())
	h.RandSeed = 7

	report, err := h.Run(context.Background(), Config{Concurrency: 4, OpsPerUser: 100})
	require.NoError(t, err)

	assert.Equal(t, 400, report.TotalOps)
	assert.Equal(t, report.Deletes, report.Errors)
	assert.Greater(t, report.Deletes, 0)
}

func TestHarness_EmptyStoreReadsProbeIndexes(t *testing.T) {
	target := newRecordingTarget(0)
	h := NewHarness(target, metrics.NewLedger(), DefaultLimits(), logging.Discard())
	h.RandSeed = 3

	report, err := h.Run(context.Background(), Config{Concurrency: 2, OpsPerUser: 25})
	require.NoError(t, err)
	assert.Equal(t, 50, report.TotalOps)
	assert.Equal(t, 0, report.Errors)
}

func TestHarness_SeedsBeforeRun(t *testing.T) {
	target := newRecordingTarget(0)
	h := NewHarness(target, metrics.NewLedger(), DefaultLimits(), logging.Discard())

	report, err := h.Run(context.Background(), Config{Concurrency: 1, OpsPerUser: 1, Seed: 30})
	require.NoError(t, err)
	assert.Equal(t, 30, report.Seeded)
	assert.Equal(t, 30, report.RecordsBefore)
}

func TestHarness_AgainstInventory(t *testing.T) {
	ctx := context.Background()
	manager := indexset.NewManager(logging.Discard())
	ledger := metrics.NewLedger()
	svc := inventory.NewService(store.NewMemoryStore(store.NewGenerator(5)), manager, ledger, 10000, logging.Discard())

	h := NewHarness(svc, ledger, DefaultLimits(), logging.Discard())
	h.RandSeed = 11
	report, err := h.Run(ctx, Config{Concurrency: 8, OpsPerUser: 50, Seed: 25})
	require.NoError(t, err)

	assert.Equal(t, 400, report.TotalOps)
	assert.Equal(t, 0, report.Errors)
	assert.Equal(t, 25, report.RecordsBefore)
	assert.Equal(t, 25+report.Creates-report.Deletes, report.RecordsAfter)
	require.NoError(t, manager.Verify())
	assert.Equal(t, report.RecordsAfter, manager.Size(indexset.KindSorted))
	assert.True(t, strings.Contains(report.Summary, "STRESS TEST REPORT"))
}

func TestDraw_Weights(t *testing.T) {
	counts := make(map[OpKind]int)
	for roll := 0; roll < 100; roll++ {
		counts[draw(roll)]++
	}
	assert.Equal(t, 50, counts[OpRead])
	assert.Equal(t, 25, counts[OpCreate])
	assert.Equal(t, 15, counts[OpUpdate])
	assert.Equal(t, 10, counts[OpDelete])
}

func TestReport_SummaryWidth(t *testing.T) {
	r := &Report{Concurrency: 3, OpsPerUser: 4, TotalOps: 12, Reads: 6, Creates: 3, Updates: 2, Deletes: 1}
	lines := strings.Split(strings.TrimRight(r.render(), "\n"), "\n")
	width := len([]rune(lines[0]))
	for _, line := range lines {
		assert.Equal(t, width, len([]rune(line)), line)
	}
}
