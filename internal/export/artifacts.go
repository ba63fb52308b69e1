package export

import (
	"encoding/json"

	"github.com/setbench/setbench/internal/benchmark"
	"github.com/setbench/setbench/internal/errors"
	"github.com/setbench/setbench/internal/metrics"
	"github.com/setbench/setbench/internal/report"
)

// Collect gathers the ledger exports and, when rep is non-nil, the benchmark
// report with its chart.
func Collect(ledger *metrics.Ledger, rep *benchmark.Report) ([]Artifact, error) {
	csv, err := ledger.CSV()
	if err != nil {
		return nil, errors.NewInternalError("failed to render csv", err)
	}
	js, err := ledger.JSON()
	if err != nil {
		return nil, errors.NewInternalError("failed to render json", err)
	}
	artifacts := []Artifact{
		{Name: "metrics.csv", ContentType: "text/csv", Data: csv},
		{Name: "metrics.json", ContentType: "application/json", Data: js},
	}
	if rep == nil {
		return artifacts, nil
	}

	body, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return nil, errors.NewInternalError("failed to encode report", err)
	}
	png, err := report.ChartPNG(rep)
	if err != nil {
		return nil, err
	}
	return append(artifacts,
		Artifact{Name: "benchmark.json", ContentType: "application/json", Data: body},
		Artifact{Name: "benchmark.png", ContentType: "image/png", Data: png},
	), nil
}
