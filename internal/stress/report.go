package stress

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/setbench/setbench/internal/metrics"
)

// LatencyStats summarizes end-to-end latencies in milliseconds. Percentiles
// use the same nearest-rank rule as the metrics ledger.
type LatencyStats struct {
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	MeanMs float64 `json:"mean_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// KindBreakdown is the per-operation-kind slice of a run.
type KindBreakdown struct {
	Kind   string  `json:"kind"`
	Count  int     `json:"count"`
	Errors int     `json:"errors"`
	MeanMs float64 `json:"mean_ms"`
}

// IndexTime is index-set time summed per attribution bucket. It excludes the
// store and request overhead that end-to-end latency includes.
type IndexTime struct {
	InsertNs int64 `json:"insert_ns"`
	LookupNs int64 `json:"lookup_ns"`
	RemoveNs int64 `json:"remove_ns"`
}

// Report is the result of one stress run.
type Report struct {
	RunID         uuid.UUID `json:"run_id"`
	Concurrency   int       `json:"concurrency"`
	OpsPerUser    int       `json:"ops_per_user"`
	TotalOps      int       `json:"total_ops"`
	Seeded        int       `json:"seeded"`
	RecordsBefore int       `json:"records_before"`
	RecordsAfter  int       `json:"records_after"`

	ElapsedMs    float64 `json:"elapsed_ms"`
	OpsPerSecond float64 `json:"ops_per_second"`

	Reads   int `json:"reads"`
	Creates int `json:"creates"`
	Updates int `json:"updates"`
	Deletes int `json:"deletes"`
	Errors  int `json:"errors"`

	Latency   LatencyStats    `json:"latency"`
	Breakdown []KindBreakdown `json:"breakdown"`
	IndexTime IndexTime       `json:"index_time"`

	Summary string `json:"ascii_summary"`
}

func buildReport(cfg Config, users []*user, t *tally, elapsed time.Duration) *Report {
	var all []int64
	perKind := make(map[OpKind][]int64)
	for _, u := range users {
		for _, l := range u.latencies {
			all = append(all, l.ns)
			perKind[l.kind] = append(perKind[l.kind], l.ns)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	r := &Report{
		RunID:       uuid.New(),
		Concurrency: cfg.Concurrency,
		OpsPerUser:  cfg.OpsPerUser,
		ElapsedMs:   ms(float64(elapsed.Nanoseconds())),
		Reads:       t.ops[OpRead],
		Creates:     t.ops[OpCreate],
		Updates:     t.ops[OpUpdate],
		Deletes:     t.ops[OpDelete],
		IndexTime: IndexTime{
			InsertNs: t.indexInsert.Nanoseconds(),
			LookupNs: t.indexLookup.Nanoseconds(),
			RemoveNs: t.indexRemove.Nanoseconds(),
		},
	}
	r.TotalOps = r.Reads + r.Creates + r.Updates + r.Deletes
	for _, n := range t.errors {
		r.Errors += n
	}
	if secs := elapsed.Seconds(); secs > 0 {
		r.OpsPerSecond = float64(r.TotalOps) / secs
	}

	sum := metrics.Summarize(all)
	r.Latency = LatencyStats{
		MinMs:  ms(float64(sum.Min)),
		MaxMs:  ms(float64(sum.Max)),
		MeanMs: ms(sum.Mean),
		P95Ms:  ms(float64(sum.P95)),
		P99Ms:  ms(float64(sum.P99)),
	}

	for _, kind := range opKinds {
		r.Breakdown = append(r.Breakdown, KindBreakdown{
			Kind:   kind.String(),
			Count:  t.ops[kind],
			Errors: t.errors[kind],
			MeanMs: ms(metrics.Summarize(perKind[kind]).Mean),
		})
	}

	r.Summary = r.render()
	return r
}

func ms(ns float64) float64 {
	return ns / 1e6
}

// render draws the boxed text summary.
func (r *Report) render() string {
	const w = 62
	line := func(b *strings.Builder, content string) {
		pad := w - len([]rune(content))
		if pad < 0 {
			pad = 0
		}
		fmt.Fprintf(b, "║%s%s║\n", content, strings.Repeat(" ", pad))
	}
	divider := strings.Repeat("═", w)

	var b strings.Builder
	fmt.Fprintf(&b, "╔%s╗\n", divider)
	title := " STRESS TEST REPORT "
	left := (w - len(title)) / 2
	line(&b, strings.Repeat(" ", left)+title)
	fmt.Fprintf(&b, "╠%s╣\n", divider)
	line(&b, fmt.Sprintf("  Concurrency : %-6d  Ops/user : %-6d  Total : %-6d", r.Concurrency, r.OpsPerUser, r.TotalOps))
	line(&b, fmt.Sprintf("  Elapsed     : %-10.1f ms  Throughput : %-10.1f ops/s", r.ElapsedMs, r.OpsPerSecond))
	fmt.Fprintf(&b, "╠%s╣\n", divider)
	line(&b, fmt.Sprintf("  %-20s %-20s", "Metric", "Value (ms)"))
	line(&b, "  "+strings.Repeat("─", w-4))
	for _, row := range []struct {
		name string
		v    float64
	}{
		{"Min latency", r.Latency.MinMs},
		{"Avg latency", r.Latency.MeanMs},
		{"P95 latency", r.Latency.P95Ms},
		{"P99 latency", r.Latency.P99Ms},
		{"Max latency", r.Latency.MaxMs},
	} {
		line(&b, fmt.Sprintf("  %-20s %-20.3f", row.name, row.v))
	}
	fmt.Fprintf(&b, "╠%s╣\n", divider)
	line(&b, fmt.Sprintf("  Reads:%-7d Creates:%-7d Updates:%-7d Deletes:%-5d", r.Reads, r.Creates, r.Updates, r.Deletes))
	line(&b, fmt.Sprintf("  Errors: %-4d", r.Errors))
	line(&b, fmt.Sprintf("  Index ns  insert:%d lookup:%d remove:%d", r.IndexTime.InsertNs, r.IndexTime.LookupNs, r.IndexTime.RemoveNs))
	fmt.Fprintf(&b, "╚%s╝\n", divider)
	return b.String()
}
