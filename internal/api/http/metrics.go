package http

import (
	"net/http"
	"time"

	"github.com/setbench/setbench/internal/errors"
	"github.com/setbench/setbench/internal/export"
	"github.com/setbench/setbench/internal/metrics"
)

func (a *API) aggregate(w http.ResponseWriter, r *http.Request) {
	aggs := a.ledger.Aggregate()
	if aggs == nil {
		aggs = []metrics.Aggregate{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entry_count": a.ledger.Len(),
		"aggregates":  aggs,
		"table":       metrics.RenderTable(aggs),
	})
}

func (a *API) exportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="setbench_metrics.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := a.ledger.ExportCSV(w); err != nil {
		// headers are gone; all that is left is to log
		a.logger.Error("csv export failed", "request_id", GetRequestID(r.Context()), "error", err)
	}
}

func (a *API) exportJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.ledger.ExportJSON())
}

func (a *API) clearMetrics(w http.ResponseWriter, r *http.Request) {
	n := a.ledger.Len()
	a.ledger.Clear()
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

func (a *API) reset(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.Reset(r.Context())
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) archive(w http.ResponseWriter, r *http.Request) {
	if a.archiver == nil {
		a.writeErr(w, r, errors.NewConfigurationError("export storage is not configured"))
		return
	}

	start := time.Now()
	last, _ := a.engine.LastReport()
	artifacts, err := export.Collect(a.ledger, last)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	manifest, err := a.archiver.Archive(r.Context(), artifacts)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"manifest":       manifest,
		"export_time_ms": float64(time.Since(start).Nanoseconds()) / 1e6,
	})
}

func (a *API) listArchives(w http.ResponseWriter, r *http.Request) {
	if a.archiver == nil {
		a.writeErr(w, r, errors.NewConfigurationError("export storage is not configured"))
		return
	}

	keys, err := a.archiver.Archives(r.Context())
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"manifests": keys})
}
