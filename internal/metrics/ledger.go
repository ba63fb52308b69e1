package metrics

import (
	"sort"
	"sync"
	"time"
)

// Sample is one timing observation. Samples are never mutated once recorded.
type Sample struct {
	Timestamp  time.Time `json:"timestamp"`
	Operation  string    `json:"operation"`
	Index      string    `json:"index"`
	DurationNs int64     `json:"duration_ns"`
	ItemCount  int       `json:"item_count"`
	Success    bool      `json:"success"`
	Notes      string    `json:"notes,omitempty"`
}

// Aggregate is the statistics of every sample sharing (Operation, Index).
type Aggregate struct {
	Operation string  `json:"operation"`
	Index     string  `json:"index"`
	Count     int     `json:"count"`
	MeanNs    float64 `json:"mean_ns"`
	MinNs     int64   `json:"min_ns"`
	MaxNs     int64   `json:"max_ns"`
	P50Ns     int64   `json:"p50_ns"`
	P95Ns     int64   `json:"p95_ns"`
	P99Ns     int64   `json:"p99_ns"`
	MeanMs    float64 `json:"mean_ms"`
	Failures  int     `json:"failures"`
}

// Ledger is an append-only, concurrency-safe store of samples.
type Ledger struct {
	mu      sync.RWMutex
	samples []Sample
	now     func() time.Time
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{now: time.Now}
}

// Record appends s, stamping it with the current time if it has none.
func (l *Ledger) Record(s Sample) {
	if s.Timestamp.IsZero() {
		s.Timestamp = l.now()
	}
	l.mu.Lock()
	l.samples = append(l.samples, s)
	l.mu.Unlock()
}

// Observe records a successful sample of duration d.
func (l *Ledger) Observe(operation, index string, d time.Duration, items int) {
	l.Record(Sample{
		Operation:  operation,
		Index:      index,
		DurationNs: d.Nanoseconds(),
		ItemCount:  items,
		Success:    true,
	})
}

// RecordBatch appends samples under one lock acquisition.
func (l *Ledger) RecordBatch(samples []Sample) {
	if len(samples) == 0 {
		return
	}
	now := l.now()
	l.mu.Lock()
	for _, s := range samples {
		if s.Timestamp.IsZero() {
			s.Timestamp = now
		}
		l.samples = append(l.samples, s)
	}
	l.mu.Unlock()
}

// Len returns the number of recorded samples.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.samples)
}

// Samples returns a copy of every sample in record order.
func (l *Ledger) Samples() []Sample {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Sample, len(l.samples))
	copy(out, l.samples)
	return out
}

// Clear drops every sample.
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.samples = nil
	l.mu.Unlock()
}

type groupKey struct {
	operation string
	index     string
}

// Aggregate groups samples by (operation, index) and returns one Aggregate
// per group, sorted by operation then index.
func (l *Ledger) Aggregate() []Aggregate {
	l.mu.RLock()
	groups := make(map[groupKey][]int64)
	failures := make(map[groupKey]int)
	for _, s := range l.samples {
		k := groupKey{s.Operation, s.Index}
		groups[k] = append(groups[k], s.DurationNs)
		if !s.Success {
			failures[k]++
		}
	}
	l.mu.RUnlock()

	out := make([]Aggregate, 0, len(groups))
	for k, values := range groups {
		sum := Summarize(values)
		out = append(out, Aggregate{
			Operation: k.operation,
			Index:     k.index,
			Count:     sum.Count,
			MeanNs:    sum.Mean,
			MinNs:     sum.Min,
			MaxNs:     sum.Max,
			P50Ns:     sum.P50,
			P95Ns:     sum.P95,
			P99Ns:     sum.P99,
			MeanMs:    sum.Mean / 1e6,
			Failures:  failures[k],
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Operation != out[j].Operation {
			return out[i].Operation < out[j].Operation
		}
		return out[i].Index < out[j].Index
	})
	return out
}
