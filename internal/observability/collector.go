package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/setbench/setbench/internal/indexset"
	"github.com/setbench/setbench/internal/metrics"
)

const namespace = "setbench"

// Collector exposes ledger aggregates, index sizes and route stats as
// Prometheus metrics. Values are computed at scrape time.
type Collector struct {
	ledger  *metrics.Ledger
	manager *indexset.Manager
	routes  *RouteStats

	opDuration   *prometheus.Desc
	indexSize    *prometheus.Desc
	samples      *prometheus.Desc
	routeReqs    *prometheus.Desc
	routeErrors  *prometheus.Desc
	routeSeconds *prometheus.Desc
}

// NewCollector creates a collector. routes may be nil.
func NewCollector(ledger *metrics.Ledger, manager *indexset.Manager, routes *RouteStats) *Collector {
	return &Collector{
		ledger:  ledger,
		manager: manager,
		routes:  routes,
		opDuration: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ledger", "operation_duration_seconds"),
			"Recorded operation durations by operation and index.",
			[]string{"operation", "index"}, nil),
		indexSize: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "index", "records"),
			"Number of records held by each live index.",
			[]string{"kind"}, nil),
		samples: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ledger", "samples"),
			"Number of samples currently held by the ledger.",
			nil, nil),
		routeReqs: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "http", "requests_total"),
			"HTTP requests by route.",
			[]string{"route"}, nil),
		routeErrors: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "http", "errors_total"),
			"HTTP 5xx responses by route.",
			[]string{"route"}, nil),
		routeSeconds: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "http", "request_seconds_total"),
			"Total time spent serving each route.",
			[]string{"route"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.opDuration
	ch <- c.indexSize
	ch <- c.samples
	ch <- c.routeReqs
	ch <- c.routeErrors
	ch <- c.routeSeconds
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, a := range c.ledger.Aggregate() {
		sum := a.MeanNs * float64(a.Count) / 1e9
		ch <- prometheus.MustNewConstSummary(c.opDuration,
			uint64(a.Count), sum,
			map[float64]float64{
				0.5:  float64(a.P50Ns) / 1e9,
				0.95: float64(a.P95Ns) / 1e9,
				0.99: float64(a.P99Ns) / 1e9,
			},
			a.Operation, a.Index)
	}

	ch <- prometheus.MustNewConstMetric(c.samples, prometheus.GaugeValue, float64(c.ledger.Len()))

	for kind, size := range c.manager.Sizes() {
		ch <- prometheus.MustNewConstMetric(c.indexSize, prometheus.GaugeValue, float64(size), kind.String())
	}

	if c.routes == nil {
		return
	}
	for _, r := range c.routes.All() {
		ch <- prometheus.MustNewConstMetric(c.routeReqs, prometheus.CounterValue, float64(r.Requests), r.Route)
		ch <- prometheus.MustNewConstMetric(c.routeErrors, prometheus.CounterValue, float64(r.Errors), r.Route)
		ch <- prometheus.MustNewConstMetric(c.routeSeconds, prometheus.CounterValue, r.TotalTime.Seconds(), r.Route)
	}
}

// NewRegistry returns a registry holding c plus the Go runtime collectors.
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}
