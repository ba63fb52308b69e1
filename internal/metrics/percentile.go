// Package metrics records timing samples and turns them into percentile
// aggregates and exports.
package metrics

import (
	"math"
	"sort"
)

// Percentile returns the nearest-rank percentile p (0-100) of sorted, which
// must be in ascending order. The rank is ceil(p/100*n)-1 clamped to [0, n-1].
// An empty input yields 0.
func Percentile(sorted []int64, p float64) int64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(n)/100.0)) - 1
	if rank < 0 {
		rank = 0
	}
	if rank > n-1 {
		rank = n - 1
	}
	return sorted[rank]
}

// Summary holds distribution statistics over a set of nanosecond values.
type Summary struct {
	Count int     `json:"count"`
	Min   int64   `json:"min_ns"`
	Max   int64   `json:"max_ns"`
	Mean  float64 `json:"mean_ns"`
	P50   int64   `json:"p50_ns"`
	P95   int64   `json:"p95_ns"`
	P99   int64   `json:"p99_ns"`
}

// Summarize computes a Summary. values is not modified.
func Summarize(values []int64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum float64
	for _, v := range sorted {
		sum += float64(v)
	}
	return Summary{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  sum / float64(len(sorted)),
		P50:   Percentile(sorted, 50),
		P95:   Percentile(sorted, 95),
		P99:   Percentile(sorted, 99),
	}
}
