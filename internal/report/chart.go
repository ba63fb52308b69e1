// Package report renders benchmark reports as charts.
package report

import (
	"bytes"
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/setbench/setbench/internal/benchmark"
	"github.com/setbench/setbench/internal/errors"
)

// Categories are the x-axis groups, in plot order.
var Categories = []string{"insert", "lookup hit", "lookup miss", "iterate", "remove"}

const (
	chartWidth  = 8 * vg.Inch
	chartHeight = 4.5 * vg.Inch
	barWidth    = vg.Length(18) // 18pt; vg.Points is not a constant expression
)

// PerRecordCost converts a kind's totals to ns per record so every category
// fits on one axis. Lookups are already per probe.
func PerRecordCost(res benchmark.KindResult, records int) plotter.Values {
	per := func(total int64, n int) float64 {
		if n <= 0 {
			return 0
		}
		return float64(total) / float64(n)
	}
	return plotter.Values{
		per(res.InsertAllNs, records),
		res.LookupHitMeanNs,
		res.LookupMissMeanNs,
		per(res.IterateAllNs, records),
		per(res.RemoveHalfNs, res.Removed),
	}
}

// RenderChart writes a grouped bar chart of r as PNG.
func RenderChart(w io.Writer, r *benchmark.Report) error {
	if r == nil || len(r.Results) == 0 {
		return errors.NewInsufficientDataError("no benchmark report to chart")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Per-record cost, %d records", r.RecordCount)
	p.Y.Label.Text = "ns per record"
	p.Y.Min = 0

	n := len(r.Results)
	for i, res := range r.Results {
		bars, err := plotter.NewBarChart(PerRecordCost(res, r.RecordCount), barWidth)
		if err != nil {
			return errors.NewInternalError("failed to build bar chart", err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		// center the group on the tick
		bars.Offset = barWidth * vg.Length(2*i-n+1) / 2

		p.Add(bars)
		p.Legend.Add(res.Kind.String(), bars)
	}
	p.Legend.Top = true
	p.NominalX(Categories...)

	wt, err := p.WriterTo(chartWidth, chartHeight, "png")
	if err != nil {
		return errors.NewInternalError("failed to create png canvas", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.NewInternalError("failed to write chart", err)
	}
	return nil
}

// ChartPNG renders r and returns the encoded bytes.
func ChartPNG(r *benchmark.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := RenderChart(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
