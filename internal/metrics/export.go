package metrics

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// GranularitySample marks exports that carry one row per raw sample.
const GranularitySample = "sample"

// CSVHeader is the header row written by ExportCSV.
var CSVHeader = []string{
	"timestamp", "operation", "index", "duration_ns", "duration_us",
	"duration_ms", "item_count", "success", "notes",
}

// ExportCSV writes a header row and one row per raw sample.
func (l *Ledger) ExportCSV(w io.Writer) error {
	samples := l.Samples()

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, s := range samples {
		row := []string{
			s.Timestamp.UTC().Format(time.RFC3339Nano),
			s.Operation,
			s.Index,
			strconv.FormatInt(s.DurationNs, 10),
			strconv.FormatFloat(float64(s.DurationNs)/1e3, 'f', 3, 64),
			strconv.FormatFloat(float64(s.DurationNs)/1e6, 'f', 6, 64),
			strconv.Itoa(s.ItemCount),
			strconv.FormatBool(s.Success),
			s.Notes,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSV returns the ExportCSV output as bytes.
func (l *Ledger) CSV() ([]byte, error) {
	var buf bytes.Buffer
	if err := l.ExportCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// JSONExport is the document produced by ExportJSON.
type JSONExport struct {
	ExportedAt  time.Time   `json:"exported_at"`
	EntryCount  int         `json:"entry_count"`
	Granularity string      `json:"granularity"`
	Entries     []Sample    `json:"entries"`
	Aggregates  []Aggregate `json:"aggregates"`
	Table       string      `json:"table"`
}

// ExportJSON builds the JSON export from a consistent copy of the samples.
func (l *Ledger) ExportJSON() JSONExport {
	samples := l.Samples()
	snapshot := &Ledger{samples: samples, now: l.now}
	aggs := snapshot.Aggregate()
	return JSONExport{
		ExportedAt:  l.now().UTC(),
		EntryCount:  len(samples),
		Granularity: GranularitySample,
		Entries:     samples,
		Aggregates:  aggs,
		Table:       RenderTable(aggs),
	}
}

// JSON returns the indented ExportJSON document.
func (l *Ledger) JSON() ([]byte, error) {
	return json.MarshalIndent(l.ExportJSON(), "", "  ")
}

// Table renders the current aggregates as a fixed-width text table.
func (l *Ledger) Table() string {
	return RenderTable(l.Aggregate())
}

// RenderTable renders aggregates as a fixed-width text table in microseconds.
func RenderTable(aggs []Aggregate) string {
	const rowFmt = "| %-20s | %-10s | %8s | %12s | %12s | %12s | %12s |\n"
	sep := "+" + strings.Repeat("-", 22) + "+" + strings.Repeat("-", 12) + "+" + strings.Repeat("-", 10) +
		strings.Repeat("+"+strings.Repeat("-", 14), 4) + "+\n"

	var b strings.Builder
	b.WriteString(sep)
	fmt.Fprintf(&b, rowFmt, "Operation", "Index", "Samples", "Avg (µs)", "P50 (µs)", "P95 (µs)", "P99 (µs)")
	b.WriteString(sep)
	for _, a := range aggs {
		fmt.Fprintf(&b, rowFmt,
			truncate(a.Operation, 20),
			truncate(a.Index, 10),
			strconv.Itoa(a.Count),
			micros(a.MeanNs),
			micros(float64(a.P50Ns)),
			micros(float64(a.P95Ns)),
			micros(float64(a.P99Ns)),
		)
	}
	b.WriteString(sep)
	return b.String()
}

func micros(ns float64) string {
	return strconv.FormatFloat(ns/1e3, 'f', 3, 64)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
