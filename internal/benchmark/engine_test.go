package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setbench/setbench/internal/errors"
	"github.com/setbench/setbench/internal/indexset"
	"github.com/setbench/setbench/internal/logging"
	"github.com/setbench/setbench/internal/metrics"
	"github.com/setbench/setbench/pkg/types"
)

type sliceSource struct {
	records []types.Record
	err     error
}

func (s *sliceSource) ListAll(ctx context.Context) ([]types.Record, error) {
	return s.records, s.err
}

func makeRecords(n int) []types.Record {
	out := make([]types.Record, n)
	for i := range out {
		// Names deliberately run opposite to insertion order.
		out[i] = types.Record{
			ID:         uuid.New(),
			Name:       fmt.Sprintf("item-%04d", n-i),
			PriceCents: int64(100 + i),
			Quantity:   int32(i % 7),
			Category:   "Test",
		}
	}
	return out
}

func newEngine(records []types.Record) (*Engine, *metrics.Ledger) {
	ledger := metrics.NewLedger()
	return NewEngine(&sliceSource{records: records}, ledger, Options{}, logging.Discard()), ledger
}

func TestEngine_EmptySnapshotIsInsufficientData(t *testing.T) {
	engine, ledger := newEngine(nil)

	report, err := engine.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.IsInsufficientData(err))
	assert.Equal(t, 0, ledger.Len())

	_, ok := engine.LastReport()
	assert.False(t, ok)
}

func TestEngine_EmptySnapshotKeepsPreviousReport(t *testing.T) {
	src := &sliceSource{records: makeRecords(5)}
	ledger := metrics.NewLedger()
	engine := NewEngine(src, ledger, Options{}, logging.Discard())

	first, err := engine.Run(context.Background())
	require.NoError(t, err)
	samples := ledger.Len()

	src.records = nil
	_, err = engine.Run(context.Background())
	require.Error(t, err)

	last, ok := engine.LastReport()
	require.True(t, ok)
	assert.Equal(t, first.RunID, last.RunID)
	assert.Equal(t, samples, ledger.Len())
}

func TestEngine_RunProtocol(t *testing.T) {
	records := makeRecords(25)
	engine, ledger := newEngine(records)

	report, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 25, report.RecordCount)
	assert.Equal(t, 25, report.LookupSamples)
	require.Len(t, report.Results, len(indexset.Kinds))

	for i, res := range report.Results {
		assert.Equal(t, indexset.Kinds[i], res.Kind)
		assert.Equal(t, 25, res.LookupHits, "every hit probe must be found")
		assert.Equal(t, 0, res.LookupFalseHits, "no miss probe may be found")
		assert.Equal(t, 12, res.Removed)
		assert.Equal(t, 13, res.Remaining)
		assert.Len(t, res.OrderingSample, 10)
		assert.GreaterOrEqual(t, res.InsertAllNs, int64(0))
		assert.GreaterOrEqual(t, res.LookupHitMeanNs, 0.0)
		assert.GreaterOrEqual(t, res.LookupMissMeanNs, 0.0)
		assert.GreaterOrEqual(t, res.IterateAllNs, int64(0))
		assert.GreaterOrEqual(t, res.RemoveHalfNs, int64(0))
	}

	var wantChecksum int64
	for _, r := range records {
		wantChecksum += r.StockValue()
	}
	for _, res := range report.Results {
		assert.Equal(t, wantChecksum, res.IterateChecksum)
	}

	// 3 kinds x (insert + 25 hits + 25 misses + iterate + remove)
	assert.Equal(t, 3*(1+25+25+1+1), ledger.Len())

	last, ok := engine.LastReport()
	require.True(t, ok)
	assert.Equal(t, report.RunID, last.RunID)
}

func TestEngine_OrderingSamples(t *testing.T) {
	records := makeRecords(30)
	engine, _ := newEngine(records)

	report, err := engine.Run(context.Background())
	require.NoError(t, err)

	ordered, ok := report.Result(indexset.KindOrdered)
	require.True(t, ok)
	for i, r := range ordered.OrderingSample {
		assert.Equal(t, records[i].ID, r.ID, "ordered sample follows insertion order")
	}

	sorted, ok := report.Result(indexset.KindSorted)
	require.True(t, ok)
	for i := 1; i < len(sorted.OrderingSample); i++ {
		assert.False(t, sorted.OrderingSample[i].Less(sorted.OrderingSample[i-1]))
	}
	assert.Equal(t, "item-0001", sorted.OrderingSample[0].Name)
}

func TestEngine_SmallSnapshots(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		engine, _ := newEngine(makeRecords(n))
		report, err := engine.Run(context.Background())
		require.NoError(t, err, "n=%d", n)
		for _, res := range report.Results {
			assert.Len(t, res.OrderingSample, n)
			assert.Equal(t, n-n/2, res.Remaining)
			assert.Equal(t, n, res.LookupHits)
		}
	}
}

func TestEngine_LookupSamplesCapped(t *testing.T) {
	ledger := metrics.NewLedger()
	engine := NewEngine(&sliceSource{records: makeRecords(40)}, ledger, Options{LookupSamples: 8, OrderingSample: 3}, logging.Discard())

	report, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, report.LookupSamples)
	for _, res := range report.Results {
		assert.Len(t, res.OrderingSample, 3)
		assert.Equal(t, 8, res.LookupHits)
	}
	assert.Equal(t, 3*(1+8+8+1+1), ledger.Len())
}

func TestEngine_RepeatedRunsAccumulateHistory(t *testing.T) {
	engine, ledger := newEngine(makeRecords(10))

	first, err := engine.Run(context.Background())
	require.NoError(t, err)
	afterFirst := ledger.Len()

	second, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, 2*afterFirst, ledger.Len())
	last, _ := engine.LastReport()
	assert.Equal(t, second.RunID, last.RunID)
}

func TestEngine_DoesNotTouchLiveManager(t *testing.T) {
	records := makeRecords(20)
	manager := indexset.NewManager(logging.Discard())
	manager.SyncFrom(records)

	engine, _ := newEngine(records)
	_, err := engine.Run(context.Background())
	require.NoError(t, err)

	for _, kind := range indexset.Kinds {
		assert.Equal(t, 20, manager.Size(kind))
	}
}

func TestEngine_ManagerResetClearsLastReport(t *testing.T) {
	manager := indexset.NewManager(logging.Discard())
	engine, ledger := newEngine(makeRecords(4))
	manager.OnReset(engine.ClearLastReport)

	_, err := engine.Run(context.Background())
	require.NoError(t, err)
	samples := ledger.Len()

	manager.Reset()
	_, ok := engine.LastReport()
	assert.False(t, ok)
	assert.Equal(t, samples, ledger.Len(), "reset does not remove ledger history")
}

func TestEngine_SourceError(t *testing.T) {
	ledger := metrics.NewLedger()
	engine := NewEngine(&sliceSource{err: fmt.Errorf("db down")}, ledger, Options{}, logging.Discard())

	_, err := engine.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, 0, ledger.Len())
}

func TestPickWinners_TieBreakByDeclarationOrder(t *testing.T) {
	results := []KindResult{
		{Kind: indexset.KindHash, InsertAllNs: 50, LookupHitMeanNs: 10, IterateAllNs: 30},
		{Kind: indexset.KindOrdered, InsertAllNs: 50, LookupHitMeanNs: 5, IterateAllNs: 20},
		{Kind: indexset.KindSorted, InsertAllNs: 40, LookupHitMeanNs: 5, IterateAllNs: 20},
	}

	w := pickWinners(results)
	assert.Equal(t, indexset.KindSorted, w.Insert)
	assert.Equal(t, indexset.KindOrdered, w.Lookup)
	assert.Equal(t, indexset.KindOrdered, w.Iterate)

	for i := range results {
		results[i].InsertAllNs, results[i].LookupHitMeanNs, results[i].IterateAllNs = 1, 1, 1
	}
	w = pickWinners(results)
	assert.Equal(t, Winners{indexset.KindHash, indexset.KindHash, indexset.KindHash}, w)
}

func TestSpreadSample(t *testing.T) {
	records := makeRecords(10)
	got := spreadSample(records, 5)
	require.Len(t, got, 5)
	for i, r := range got {
		assert.Equal(t, records[i*2].ID, r.ID)
	}
	assert.Len(t, spreadSample(records, 10), 10)
}

func TestAbsentProbes(t *testing.T) {
	records := makeRecords(50)
	present := make(map[uuid.UUID]bool)
	for _, r := range records {
		present[r.ID] = true
	}
	probes := absentProbes(records, 50)
	require.Len(t, probes, 50)
	for _, p := range probes {
		assert.False(t, present[p.ID])
		assert.Equal(t, missName, p.Name)
	}
}

func TestReport_Table(t *testing.T) {
	engine, _ := newEngine(makeRecords(3))
	report, err := engine.Run(context.Background())
	require.NoError(t, err)

	table := report.Table()
	assert.Contains(t, table, "hash")
	assert.Contains(t, table, "ordered")
	assert.Contains(t, table, "sorted")
	assert.Contains(t, table, "winners:")
}
