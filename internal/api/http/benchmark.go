package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/setbench/setbench/internal/benchmark"
	"github.com/setbench/setbench/internal/errors"
	"github.com/setbench/setbench/internal/inventory"
	"github.com/setbench/setbench/internal/report"
)

// BenchmarkResponse wraps a report with its text rendering.
type BenchmarkResponse struct {
	Report            *benchmark.Report `json:"report,omitempty"`
	Message           string            `json:"message,omitempty"`
	CurrentIndexSizes map[string]int    `json:"current_index_sizes"`
	ASCIITable        string            `json:"ascii_table,omitempty"`
	BenchmarkTimeMs   float64           `json:"benchmark_time_ms,omitempty"`
}

func (a *API) runBenchmark(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rep, err := a.engine.Run(r.Context())
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, BenchmarkResponse{
		Report:            rep,
		CurrentIndexSizes: sizesByName(a.svc),
		ASCIITable:        rep.Table(),
		BenchmarkTimeMs:   float64(time.Since(start).Nanoseconds()) / 1e6,
	})
}

func (a *API) benchmarkReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := a.engine.LastReport()
	if !ok {
		writeJSON(w, http.StatusOK, BenchmarkResponse{
			Message:           "no benchmark has been run yet; POST /api/benchmark/run first",
			CurrentIndexSizes: sizesByName(a.svc),
		})
		return
	}

	writeJSON(w, http.StatusOK, BenchmarkResponse{
		Report:            rep,
		CurrentIndexSizes: sizesByName(a.svc),
		ASCIITable:        rep.Table(),
	})
}

func (a *API) indexStatus(w http.ResponseWriter, r *http.Request) {
	_, hasReport := a.engine.LastReport()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"indexes":    a.svc.Status(),
		"sample_of":  inventory.StatusSampleSize,
		"has_report": hasReport,
	})
}

func (a *API) benchmarkChart(w http.ResponseWriter, r *http.Request) {
	rep, ok := a.engine.LastReport()
	if !ok {
		a.writeErr(w, r, errors.NewInsufficientDataError("no benchmark report to chart"))
		return
	}

	png, err := report.ChartPNG(rep)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
