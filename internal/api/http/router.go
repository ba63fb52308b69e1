package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/setbench/setbench/internal/benchmark"
	"github.com/setbench/setbench/internal/export"
	"github.com/setbench/setbench/internal/inventory"
	"github.com/setbench/setbench/internal/logging"
	"github.com/setbench/setbench/internal/metrics"
	"github.com/setbench/setbench/internal/observability"
	"github.com/setbench/setbench/internal/server"
	"github.com/setbench/setbench/internal/stress"
)

// DefaultSeedCount is used when POST /api/seed carries no count.
const DefaultSeedCount = 1000

// Deps are the components the API serves. Archiver, Lifecycle, Routes and
// Gatherer may be nil.
type Deps struct {
	Service   *inventory.Service
	Engine    *benchmark.Engine
	Harness   *stress.Harness
	Ledger    *metrics.Ledger
	Archiver  *export.Archiver
	Lifecycle *server.Lifecycle
	Routes    *observability.RouteStats
	Gatherer  prometheus.Gatherer

	// StressDefaults fill zero concurrency/ops in POST /api/stress
	StressDefaults stress.Config

	Logger *slog.Logger
}

// API holds the handler dependencies.
type API struct {
	svc       *inventory.Service
	engine    *benchmark.Engine
	harness   *stress.Harness
	ledger    *metrics.Ledger
	archiver  *export.Archiver
	defaults  stress.Config
	logger    *slog.Logger
	startedAt time.Time
}

// NewRouter builds the full handler tree including middleware.
func NewRouter(d Deps) http.Handler {
	a := &API{
		svc:       d.Service,
		engine:    d.Engine,
		harness:   d.Harness,
		ledger:    d.Ledger,
		archiver:  d.Archiver,
		defaults:  d.StressDefaults,
		logger:    logging.OrDefault(d.Logger),
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.health)

	mux.HandleFunc("GET /api/products", a.listProducts)
	mux.HandleFunc("POST /api/products", a.createProduct)
	mux.HandleFunc("GET /api/products/{id}", a.getProduct)
	mux.HandleFunc("PUT /api/products/{id}", a.updateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", a.deleteProduct)

	mux.HandleFunc("GET /api/returns", a.listReturns)
	mux.HandleFunc("POST /api/returns", a.createReturn)
	mux.HandleFunc("GET /api/returns/{id}", a.getReturn)

	mux.HandleFunc("POST /api/seed", a.seed)

	mux.HandleFunc("POST /api/benchmark/run", a.runBenchmark)
	mux.HandleFunc("GET /api/benchmark/report", a.benchmarkReport)
	mux.HandleFunc("GET /api/benchmark/status", a.indexStatus)
	mux.HandleFunc("GET /api/benchmark/chart", a.benchmarkChart)

	mux.HandleFunc("GET /api/metrics/aggregate", a.aggregate)
	mux.HandleFunc("GET /api/metrics/export/csv", a.exportCSV)
	mux.HandleFunc("GET /api/metrics/export/json", a.exportJSON)
	mux.HandleFunc("DELETE /api/metrics", a.clearMetrics)

	mux.HandleFunc("POST /api/stress", a.runStress)
	mux.HandleFunc("POST /api/reset", a.reset)
	mux.HandleFunc("POST /api/export", a.archive)
	mux.HandleFunc("GET /api/export", a.listArchives)

	if d.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	chain := []func(http.Handler) http.Handler{
		RecoveryMiddleware(a.logger),
		RequestIDMiddleware,
	}
	if d.Lifecycle != nil {
		chain = append(chain, d.Lifecycle.Middleware)
	}
	chain = append(chain, AccessLogMiddleware(a.logger, d.Routes))

	return ChainMiddleware(chain...)(mux)
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": time.Since(a.startedAt).Seconds(),
		"index_sizes":    sizesByName(a.svc),
	})
}

func sizesByName(svc *inventory.Service) map[string]int {
	out := make(map[string]int)
	for kind, n := range svc.Manager().Sizes() {
		out[kind.String()] = n
	}
	return out
}
