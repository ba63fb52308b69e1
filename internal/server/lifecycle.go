// Package server coordinates process shutdown: it stops admitting requests,
// drains the ones in flight, then closes registered resources newest first.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/setbench/setbench/internal/logging"
)

// Config holds shutdown timeouts.
type Config struct {
	// ShutdownTimeout bounds the whole shutdown sequence.
	ShutdownTimeout time.Duration

	// DrainTimeout bounds the wait for in-flight requests.
	DrainTimeout time.Duration
}

// DefaultConfig returns 30s overall with a 15s drain.
func DefaultConfig() Config {
	return Config{
		ShutdownTimeout: 30 * time.Second,
		DrainTimeout:    15 * time.Second,
	}
}

type namedCloser struct {
	name   string
	closer io.Closer
}

// Lifecycle tracks in-flight requests and owns shutdown ordering.
type Lifecycle struct {
	cfg    Config
	logger *slog.Logger

	done         chan struct{}
	shutdownOnce sync.Once
	shutdownErr  error
	inFlight     atomic.Int64
	stopping     atomic.Bool

	mu      sync.Mutex
	closers []namedCloser
	onStart []func()
}

// New creates a Lifecycle. Zero timeouts take the defaults.
func New(cfg Config, logger *slog.Logger) *Lifecycle {
	def := DefaultConfig()
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = def.DrainTimeout
	}

	return &Lifecycle{
		cfg:    cfg,
		logger: logging.OrDefault(logger),
		done:   make(chan struct{}),
	}
}

// RegisterCloser adds a resource to close on shutdown. Closers run in
// reverse registration order.
func (l *Lifecycle) RegisterCloser(name string, c io.Closer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closers = append(l.closers, namedCloser{name: name, closer: c})
}

// OnShutdownStart registers fn to run as soon as shutdown begins, before
// the drain.
func (l *Lifecycle) OnShutdownStart(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onStart = append(l.onStart, fn)
}

// ListenForSignals blocks until SIGINT/SIGTERM, ctx cancellation or another
// caller's Shutdown, then returns the shutdown result.
func (l *Lifecycle) ListenForSignals(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		return l.Shutdown(context.Background(), fmt.Sprintf("received signal: %v", sig))
	case <-ctx.Done():
		return l.Shutdown(context.Background(), "context cancelled")
	case <-l.done:
		return l.shutdownResult()
	}
}

// Shutdown runs the shutdown sequence once. Later calls return the first
// call's result.
func (l *Lifecycle) Shutdown(ctx context.Context, reason string) error {
	l.shutdownOnce.Do(func() {
		start := time.Now()
		l.logger.Info("shutdown started", "reason", reason, "in_flight", l.inFlight.Load())
		l.stopping.Store(true)

		l.mu.Lock()
		onStart := append([]func(){}, l.onStart...)
		closers := append([]namedCloser{}, l.closers...)
		l.mu.Unlock()

		for _, fn := range onStart {
			fn()
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, l.cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := l.drain(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("drain failed: %w", err))
		}

		for i := len(closers) - 1; i >= 0; i-- {
			c := closers[i]
			if err := c.closer.Close(); err != nil {
				l.logger.Warn("close failed", "resource", c.name, "error", err)
				errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
				continue
			}
			l.logger.Debug("closed", "resource", c.name)
		}

		l.shutdownErr = errors.Join(errs...)
		close(l.done)
		l.logger.Info("shutdown complete", "elapsed", time.Since(start), "error", l.shutdownErr)
	})

	return l.shutdownResult()
}

func (l *Lifecycle) shutdownResult() error {
	<-l.done
	return l.shutdownErr
}

func (l *Lifecycle) drain(ctx context.Context) error {
	drainCtx, cancel := context.WithTimeout(ctx, l.cfg.DrainTimeout)
	defer cancel()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.inFlight.Load() == 0 {
			return nil
		}

		select {
		case <-drainCtx.Done():
			if remaining := l.inFlight.Load(); remaining > 0 {
				return fmt.Errorf("timeout waiting for %d in-flight requests", remaining)
			}
			return nil
		case <-ticker.C:
		}
	}
}

// TrackRequest counts a request in. It returns false once shutdown has
// started, in which case the caller must reject the request.
func (l *Lifecycle) TrackRequest() bool {
	if l.stopping.Load() {
		return false
	}
	l.inFlight.Add(1)
	return true
}

// UntrackRequest counts a request out.
func (l *Lifecycle) UntrackRequest() {
	l.inFlight.Add(-1)
}

// IsShuttingDown reports whether shutdown has begun.
func (l *Lifecycle) IsShuttingDown() bool {
	return l.stopping.Load()
}

// InFlightCount returns the number of tracked requests.
func (l *Lifecycle) InFlightCount() int64 {
	return l.inFlight.Load()
}

// Done is closed once shutdown has completed.
func (l *Lifecycle) Done() <-chan struct{} {
	return l.done
}

// Middleware rejects requests with 503 during shutdown and tracks the rest.
func (l *Lifecycle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.TrackRequest() {
			w.Header().Set("Connection", "close")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, `{"error":"shutting down","code":"UNAVAILABLE"}`)
			return
		}
		defer l.UntrackRequest()

		next.ServeHTTP(w, r)
	})
}

// HTTPCloser adapts an http.Server to io.Closer with a graceful Shutdown.
func HTTPCloser(srv *http.Server, timeout time.Duration) io.Closer {
	return CloserFunc(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

// CloserFunc is an adapter to allow ordinary functions to be used as io.Closer.
type CloserFunc func() error

// Close calls the underlying function.
func (f CloserFunc) Close() error {
	return f()
}
