// Package app wires setbench's components together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	grpcapi "github.com/setbench/setbench/internal/api/grpc"
	httpapi "github.com/setbench/setbench/internal/api/http"
	"github.com/setbench/setbench/internal/benchmark"
	"github.com/setbench/setbench/internal/config"
	"github.com/setbench/setbench/internal/export"
	"github.com/setbench/setbench/internal/indexset"
	"github.com/setbench/setbench/internal/inventory"
	"github.com/setbench/setbench/internal/logging"
	"github.com/setbench/setbench/internal/metrics"
	"github.com/setbench/setbench/internal/observability"
	"github.com/setbench/setbench/internal/server"
	"github.com/setbench/setbench/internal/storage"
	"github.com/setbench/setbench/internal/store"
	"github.com/setbench/setbench/internal/stress"
)

// routeWindow is how long an idle route keeps its access statistics.
const routeWindow = time.Hour

// App is the main application that manages all services.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// Shared resources
	store     store.Store
	manager   *indexset.Manager
	ledger    *metrics.Ledger
	service   *inventory.Service
	engine    *benchmark.Engine
	harness   *stress.Harness
	objects   storage.ObjectStorage
	archiver  *export.Archiver
	routes    *observability.RouteStats
	registry  *prometheus.Registry
	lifecycle *server.Lifecycle

	// Servers
	httpServer *http.Server
	httpAddr   net.Addr
	grpcServer *grpcapi.Server
	grpcAddr   net.Addr

	// State
	mu          sync.Mutex
	initialized bool
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New creates a new App with the given configuration. A nil logger builds
// one from cfg.Log writing to stderr.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
		if err != nil {
			return nil, err
		}
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		lifecycle: server.New(server.DefaultConfig(), logger),
	}, nil
}

// Init opens the store, rebuilds the indexes from it and builds every
// component the CLI modes and the servers share. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initLocked(ctx)
}

func (a *App) initLocked(ctx context.Context) error {
	if a.initialized {
		return nil
	}

	gen := store.NewGenerator(time.Now().UnixNano())
	switch a.cfg.Store.Driver {
	case config.DriverMemory:
		a.store = store.NewMemoryStore(gen)
	default:
		st, err := store.OpenSQLite(a.cfg.Store.Path, a.cfg.Store.MaxOpenConns, gen, a.logger)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		a.store = st
	}
	a.lifecycle.RegisterCloser("store", a.store)

	a.manager = indexset.NewManager(a.logger)
	a.ledger = metrics.NewLedger()
	a.service = inventory.NewService(a.store, a.manager, a.ledger, a.cfg.Benchmark.MaxSeed, a.logger)
	a.engine = benchmark.NewEngine(a.service, a.ledger, benchmark.Options{
		LookupSamples:  a.cfg.Benchmark.LookupSamples,
		OrderingSample: a.cfg.Benchmark.OrderingSample,
	}, a.logger)
	a.manager.OnReset(a.engine.ClearLastReport)

	a.harness = stress.NewHarness(a.service, a.ledger, stress.Limits{
		MaxConcurrency: a.cfg.Stress.MaxConcurrency,
		MaxOpsPerUser:  a.cfg.Stress.MaxOpsPerUser,
		MaxSeed:        a.cfg.Stress.MaxSeed,
	}, a.logger)

	n, elapsed, err := a.service.Sync(ctx)
	if err != nil {
		return fmt.Errorf("failed to sync indexes: %w", err)
	}
	a.logger.Info("indexes rebuilt from store", "driver", a.cfg.Store.Driver, "records", n, "elapsed", elapsed)

	objects, err := a.openObjectStorage(ctx)
	if err != nil {
		return err
	}
	a.objects = objects
	a.archiver = export.NewArchiver(objects, a.cfg.Export.S3.Prefix, a.cfg.Export.Compress, a.logger)

	a.routes = observability.NewRouteStats(routeWindow)
	a.registry = observability.NewRegistry(observability.NewCollector(a.ledger, a.manager, a.routes))

	a.initialized = true
	return nil
}

func (a *App) openObjectStorage(ctx context.Context) (storage.ObjectStorage, error) {
	switch a.cfg.Export.Backend {
	case config.BackendS3:
		s3cfg := storage.DefaultS3Config()
		if a.cfg.Export.S3.Region != "" {
			s3cfg.Region = a.cfg.Export.S3.Region
		}
		s3cfg.Endpoint = a.cfg.Export.S3.Endpoint
		s3cfg.UsePathStyle = a.cfg.Export.S3.UsePathStyle
		st, err := storage.NewS3Storage(ctx, a.cfg.Export.S3.Bucket, s3cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 storage: %w", err)
		}
		return st, nil
	default:
		st, err := storage.NewLocalStorage(a.cfg.Export.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create local storage: %w", err)
		}
		return st, nil
	}
}

// Start initializes shared resources and starts the HTTP and gRPC servers.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("app is already running")
	}

	if err := a.initLocked(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.lifecycle.RegisterCloser("route-pruner", server.CloserFunc(func() error {
		cancel()
		return nil
	}))
	a.wg.Add(1)
	go a.pruneRoutes(ctx)

	if a.cfg.GRPC.Enabled {
		if err := a.startGRPC(); err != nil {
			a.shutdownLocked(context.Background(), "startup failed")
			return err
		}
	}

	if err := a.startHTTP(); err != nil {
		a.shutdownLocked(context.Background(), "startup failed")
		return err
	}

	a.running = true
	a.logger.Info("setbench started", "http", a.httpAddr, "grpc", a.grpcAddr, "data_dir", a.cfg.DataDir)
	return nil
}

func (a *App) startGRPC() error {
	lis, err := net.Listen("tcp", a.cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.GRPC.Addr, err)
	}
	a.grpcAddr = lis.Addr()

	a.grpcServer = grpcapi.NewServer(a.logger)
	a.grpcServer.SetServing(true)
	a.lifecycle.OnShutdownStart(func() { a.grpcServer.SetServing(false) })
	a.lifecycle.RegisterCloser("grpc", a.grpcServer)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("gRPC health service listening", "addr", a.grpcAddr)
		if err := a.grpcServer.Serve(lis); err != nil {
			a.logger.Error("gRPC server error", "error", err)
		}
	}()
	return nil
}

func (a *App) startHTTP() error {
	lis, err := net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.HTTP.Addr, err)
	}
	a.httpAddr = lis.Addr()

	handler := httpapi.NewRouter(httpapi.Deps{
		Service:   a.service,
		Engine:    a.engine,
		Harness:   a.harness,
		Ledger:    a.ledger,
		Archiver:  a.archiver,
		Lifecycle: a.lifecycle,
		Routes:    a.routes,
		Gatherer:  a.registry,
		StressDefaults: stress.Config{
			Concurrency: a.cfg.Stress.DefaultConcurrency,
			OpsPerUser:  a.cfg.Stress.DefaultOpsPerUser,
		},
		Logger: a.logger,
	})

	a.httpServer = &http.Server{
		Handler:      handler,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}
	a.lifecycle.RegisterCloser("http", server.HTTPCloser(a.httpServer, server.DefaultConfig().DrainTimeout))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("HTTP API listening", "addr", a.httpAddr)
		if err := a.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server error", "error", err)
		}
	}()
	return nil
}

func (a *App) pruneRoutes(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.routes.Prune()
		}
	}
}

// Stop gracefully stops all services and releases shared resources.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.shutdownLocked(ctx, "stop requested")
}

func (a *App) shutdownLocked(ctx context.Context, reason string) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := a.lifecycle.Shutdown(shutdownCtx, reason)
	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("all services stopped")
	case <-shutdownCtx.Done():
		a.logger.Warn("timeout waiting for services to stop")
	}

	a.running = false
	return err
}

// WaitForShutdown blocks until a signal, ctx cancellation or Stop, and
// returns the shutdown result.
func (a *App) WaitForShutdown(ctx context.Context) error {
	err := a.lifecycle.ListenForSignals(ctx)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	a.running = false
	return err
}

// Export archives the ledger and the last benchmark report, if any.
func (a *App) Export(ctx context.Context) (*export.Manifest, error) {
	last, _ := a.engine.LastReport()
	artifacts, err := export.Collect(a.ledger, last)
	if err != nil {
		return nil, err
	}
	return a.archiver.Archive(ctx, artifacts)
}

// Config returns the resolved configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Logger returns the process logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Service returns the inventory service.
func (a *App) Service() *inventory.Service { return a.service }

// Engine returns the benchmark engine.
func (a *App) Engine() *benchmark.Engine { return a.engine }

// Harness returns the stress harness.
func (a *App) Harness() *stress.Harness { return a.harness }

// Ledger returns the metrics ledger.
func (a *App) Ledger() *metrics.Ledger { return a.ledger }

// Archiver returns the export archiver.
func (a *App) Archiver() *export.Archiver { return a.archiver }

// HTTPAddr returns the bound HTTP address, or nil before Start.
func (a *App) HTTPAddr() net.Addr { return a.httpAddr }

// GRPCAddr returns the bound gRPC address, or nil when disabled.
func (a *App) GRPCAddr() net.Addr { return a.grpcAddr }
