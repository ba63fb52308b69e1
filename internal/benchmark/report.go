package benchmark

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/setbench/setbench/internal/indexset"
	"github.com/setbench/setbench/pkg/types"
)

// KindResult holds the measurements taken against one index kind.
type KindResult struct {
	Kind indexset.Kind `json:"kind"`

	InsertAllNs      int64   `json:"insert_all_ns"`
	LookupHitMeanNs  float64 `json:"lookup_hit_mean_ns"`
	LookupHitP95Ns   int64   `json:"lookup_hit_p95_ns"`
	LookupMissMeanNs float64 `json:"lookup_miss_mean_ns"`
	LookupMissP95Ns  int64   `json:"lookup_miss_p95_ns"`
	IterateAllNs     int64   `json:"iterate_all_ns"`
	RemoveHalfNs     int64   `json:"remove_half_ns"`

	// LookupHits counts hit probes that reported found; it should equal the
	// sample size. LookupFalseHits counts miss probes that reported found.
	LookupHits      int   `json:"lookup_hits"`
	LookupFalseHits int   `json:"lookup_false_hits"`
	IterateChecksum int64 `json:"iterate_checksum"`
	Removed         int   `json:"removed"`
	Remaining       int   `json:"remaining"`
	HeapDeltaBytes  int64 `json:"heap_delta_bytes"`

	OrderGuaranteed bool           `json:"order_guaranteed"`
	OrderingSample  []types.Record `json:"ordering_sample"`
}

// Winners names the fastest kind per category.
type Winners struct {
	Insert  indexset.Kind `json:"insert"`
	Lookup  indexset.Kind `json:"lookup"`
	Iterate indexset.Kind `json:"iterate"`
}

// Report is the immutable result of one benchmark run.
type Report struct {
	RunID         uuid.UUID     `json:"run_id"`
	RecordCount   int           `json:"record_count"`
	LookupSamples int           `json:"lookup_samples"`
	Results       []KindResult  `json:"results"`
	Winners       Winners       `json:"winners"`
	RanAt         time.Time     `json:"ran_at"`
	Elapsed       time.Duration `json:"elapsed_ns"`
}

// Result returns the result for kind.
func (r *Report) Result(kind indexset.Kind) (KindResult, bool) {
	for _, res := range r.Results {
		if res.Kind == kind {
			return res, true
		}
	}
	return KindResult{}, false
}

// Table renders the report as fixed-width text in microseconds.
func (r *Report) Table() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Benchmark %s: %d records, %d lookup samples, ran %s\n",
		r.RunID, r.RecordCount, r.LookupSamples, r.RanAt.UTC().Format(time.RFC3339))

	const rowFmt = "%-8s %14s %14s %14s %14s %14s %12s\n"
	fmt.Fprintf(&b, rowFmt, "index", "insert (µs)", "hit (µs)", "miss (µs)", "iterate (µs)", "remove (µs)", "heap (KiB)")
	for _, res := range r.Results {
		fmt.Fprintf(&b, rowFmt,
			res.Kind,
			us(float64(res.InsertAllNs)),
			us(res.LookupHitMeanNs),
			us(res.LookupMissMeanNs),
			us(float64(res.IterateAllNs)),
			us(float64(res.RemoveHalfNs)),
			fmt.Sprintf("%d", res.HeapDeltaBytes/1024),
		)
	}
	fmt.Fprintf(&b, "winners: insert=%s lookup=%s iterate=%s\n", r.Winners.Insert, r.Winners.Lookup, r.Winners.Iterate)
	return b.String()
}

func us(ns float64) string {
	return fmt.Sprintf("%.3f", ns/1e3)
}

// pickWinners returns the kind with the smallest metric per category.
// Results are in declaration order and only a strictly smaller value
// displaces the current winner, so ties go to the earlier kind.
func pickWinners(results []KindResult) Winners {
	best := func(metric func(KindResult) float64) indexset.Kind {
		winner := results[0].Kind
		lowest := metric(results[0])
		for _, res := range results[1:] {
			if v := metric(res); v < lowest {
				winner, lowest = res.Kind, v
			}
		}
		return winner
	}
	return Winners{
		Insert:  best(func(r KindResult) float64 { return float64(r.InsertAllNs) }),
		Lookup:  best(func(r KindResult) float64 { return r.LookupHitMeanNs }),
		Iterate: best(func(r KindResult) float64 { return float64(r.IterateAllNs) }),
	}
}
