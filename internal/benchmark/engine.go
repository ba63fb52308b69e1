// Package benchmark times insert, lookup, iterate and remove against fresh
// scratch copies of every index kind built from the same record snapshot.
package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/setbench/setbench/internal/errors"
	"github.com/setbench/setbench/internal/indexset"
	"github.com/setbench/setbench/internal/logging"
	"github.com/setbench/setbench/internal/metrics"
	"github.com/setbench/setbench/pkg/types"
)

// Ledger operation names emitted by a run.
const (
	OpInsertAll  = "insert_all"
	OpLookupHit  = "lookup_hit"
	OpLookupMiss = "lookup_miss"
	OpIterateAll = "iterate_all"
	OpRemoveHalf = "remove_half"
)

// missName is the name given to probe records that must not be found.
const missName = "zzz_nonexistent_product"

// Default protocol sizes.
const (
	DefaultLookupSamples  = 1000
	DefaultOrderingSample = 10
)

// Source supplies the authoritative record snapshot.
type Source interface {
	ListAll(ctx context.Context) ([]types.Record, error)
}

// Options tunes the protocol sizes.
type Options struct {
	// LookupSamples caps K, the number of hit and miss probes per kind
	LookupSamples int

	// OrderingSample is the number of leading elements captured per kind
	OrderingSample int
}

// Engine runs benchmarks and keeps the most recent report.
type Engine struct {
	source Source
	ledger *metrics.Ledger
	opts   Options
	logger *slog.Logger

	// runMu serializes runs so two benchmarks never compete for the CPU.
	runMu sync.Mutex

	mu   sync.RWMutex
	last *Report
}

// NewEngine creates an engine reading from source and writing samples to ledger.
func NewEngine(source Source, ledger *metrics.Ledger, opts Options, logger *slog.Logger) *Engine {
	if opts.LookupSamples <= 0 {
		opts.LookupSamples = DefaultLookupSamples
	}
	if opts.OrderingSample <= 0 {
		opts.OrderingSample = DefaultOrderingSample
	}
	return &Engine{
		source: source,
		ledger: ledger,
		opts:   opts,
		logger: logging.OrDefault(logger),
	}
}

// LastReport returns the most recent report, if any.
func (e *Engine) LastReport() (*Report, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last, e.last != nil
}

// ClearLastReport forgets the most recent report. Ledger history is kept.
func (e *Engine) ClearLastReport() {
	e.mu.Lock()
	e.last = nil
	e.mu.Unlock()
}

// Run snapshots the source and benchmarks every index kind against it.
// An empty snapshot yields an INSUFFICIENT_DATA error, emits no samples and
// leaves the last report untouched.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	records, err := e.source.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot records: %w", err)
	}
	return e.RunRecords(records)
}

// RunRecords benchmarks a caller-supplied snapshot. The slice is not modified.
func (e *Engine) RunRecords(records []types.Record) (*Report, error) {
	if len(records) == 0 {
		return nil, errors.NewInsufficientDataError("benchmark requires at least one record").
			WithDetails(map[string]interface{}{"record_count": 0})
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()

	started := time.Now()
	snapshot := uniqueByID(records)

	hitTargets := spreadSample(snapshot, min(e.opts.LookupSamples, len(snapshot)))
	missTargets := absentProbes(snapshot, len(hitTargets))

	var samples []metrics.Sample
	results := make([]KindResult, 0, len(indexset.Kinds))
	for _, kind := range indexset.Kinds {
		res, kindSamples, err := e.runKind(kind, snapshot, hitTargets, missTargets)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
		samples = append(samples, kindSamples...)
	}

	report := &Report{
		RunID:         uuid.New(),
		RecordCount:   len(snapshot),
		LookupSamples: len(hitTargets),
		Results:       results,
		Winners:       pickWinners(results),
		RanAt:         started,
		Elapsed:       time.Since(started),
	}

	e.mu.Lock()
	e.last = report
	e.mu.Unlock()
	e.ledger.RecordBatch(samples)

	e.logger.Info("benchmark complete",
		"run_id", report.RunID,
		"records", report.RecordCount,
		"samples", len(samples),
		"insert_winner", report.Winners.Insert,
		"lookup_winner", report.Winners.Lookup,
		"iterate_winner", report.Winners.Iterate,
		"elapsed", report.Elapsed)
	return report, nil
}

func (e *Engine) runKind(kind indexset.Kind, snapshot, hitTargets, missTargets []types.Record) (KindResult, []metrics.Sample, error) {
	n := len(snapshot)
	name := kind.String()
	res := KindResult{Kind: kind}
	samples := make([]metrics.Sample, 0, len(hitTargets)+len(missTargets)+3)
	sample := func(op string, d time.Duration, items int, ok bool) {
		samples = append(samples, metrics.Sample{
			Timestamp:  time.Now(),
			Operation:  op,
			Index:      name,
			DurationNs: d.Nanoseconds(),
			ItemCount:  items,
			Success:    ok,
		})
	}

	// Collect garbage left by the previous kind so it is not billed here.
	runtime.GC()
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)

	idx := indexset.New(kind)
	res.OrderGuaranteed = idx.OrderGuaranteed()

	start := time.Now()
	for _, r := range snapshot {
		idx.Insert(r)
	}
	insertDur := time.Since(start)
	runtime.ReadMemStats(&after)
	res.InsertAllNs = insertDur.Nanoseconds()
	res.HeapDeltaBytes = int64(after.HeapAlloc) - int64(before.HeapAlloc)
	sample(OpInsertAll, insertDur, n, idx.Len() == n)

	// Warm-up pass; timings are discarded.
	warm := 0
	for _, r := range snapshot {
		if idx.Contains(r) {
			warm++
		}
	}
	if warm != n {
		return res, nil, errors.NewInvariantError(fmt.Sprintf("%s warm-up found %d of %d records", name, warm, n))
	}

	hitNs := make([]int64, len(hitTargets))
	for i, r := range hitTargets {
		t := time.Now()
		found := idx.Contains(r)
		d := time.Since(t)
		hitNs[i] = d.Nanoseconds()
		if found {
			res.LookupHits++
		}
		sample(OpLookupHit, d, 1, found)
	}
	hit := metrics.Summarize(hitNs)
	res.LookupHitMeanNs, res.LookupHitP95Ns = hit.Mean, hit.P95

	missNs := make([]int64, len(missTargets))
	for i, r := range missTargets {
		t := time.Now()
		found := idx.Contains(r)
		d := time.Since(t)
		missNs[i] = d.Nanoseconds()
		if found {
			res.LookupFalseHits++
		}
		sample(OpLookupMiss, d, 1, !found)
	}
	miss := metrics.Summarize(missNs)
	res.LookupMissMeanNs, res.LookupMissP95Ns = miss.Mean, miss.P95

	var sink int64
	visited := 0
	start = time.Now()
	idx.Ascend(func(r types.Record) bool {
		sink += r.StockValue()
		visited++
		return true
	})
	iterDur := time.Since(start)
	res.IterateAllNs = iterDur.Nanoseconds()
	res.IterateChecksum = sink
	sample(OpIterateAll, iterDur, visited, visited == n)

	// The ordering sample is taken from the full index, before removal.
	res.OrderingSample = indexset.FirstN(idx, e.opts.OrderingSample)

	victims := removalVictims(idx, snapshot)
	start = time.Now()
	for _, r := range victims {
		if idx.Remove(r) {
			res.Removed++
		}
	}
	removeDur := time.Since(start)
	res.RemoveHalfNs = removeDur.Nanoseconds()
	res.Remaining = idx.Len()
	sample(OpRemoveHalf, removeDur, res.Removed, res.Removed == len(victims))

	if res.Remaining != n-n/2 {
		return res, nil, errors.NewInvariantError(fmt.Sprintf(
			"%s remove-half left %d of %d records, want %d", name, res.Remaining, n, n-n/2))
	}
	return res, samples, nil
}

// removalVictims returns the floor(n/2) records remove-half deletes. Ordered
// and sorted kinds lose the first half of their natural iteration order. The
// hash kind has no stable order, so it loses the first half of the snapshot.
func removalVictims(idx indexset.Index, snapshot []types.Record) []types.Record {
	half := len(snapshot) / 2
	if idx.OrderGuaranteed() {
		return indexset.FirstN(idx, half)
	}
	return snapshot[:half]
}

// uniqueByID copies records, keeping the first occurrence of each id.
func uniqueByID(records []types.Record) []types.Record {
	seen := make(map[uuid.UUID]struct{}, len(records))
	out := make([]types.Record, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// spreadSample picks k records at evenly spaced positions of records.
func spreadSample(records []types.Record, k int) []types.Record {
	n := len(records)
	out := make([]types.Record, k)
	for i := 0; i < k; i++ {
		out[i] = records[i*n/k]
	}
	return out
}

// absentProbes builds k probe records whose ids do not occur in records.
func absentProbes(records []types.Record, k int) []types.Record {
	present := make(map[uuid.UUID]struct{}, len(records))
	for _, r := range records {
		present[r.ID] = struct{}{}
	}
	out := make([]types.Record, 0, k)
	for len(out) < k {
		id := uuid.New()
		if _, ok := present[id]; ok {
			continue
		}
		present[id] = struct{}{}
		out = append(out, types.Record{ID: id, Name: missName})
	}
	return out
}
