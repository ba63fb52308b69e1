package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setbench/setbench/internal/logging"
)

func TestLifecycle_ClosersRunInReverseOrder(t *testing.T) {
	l := New(Config{}, logging.Discard())

	var order []string
	for _, name := range []string{"store", "http", "grpc"} {
		name := name
		l.RegisterCloser(name, CloserFunc(func() error {
			order = append(order, name)
			return nil
		}))
	}

	require.NoError(t, l.Shutdown(context.Background(), "test"))
	assert.Equal(t, []string{"grpc", "http", "store"}, order)
}

func TestLifecycle_ShutdownOnceAndJoinsErrors(t *testing.T) {
	l := New(Config{}, logging.Discard())

	calls := 0
	boom := errors.New("boom")
	l.RegisterCloser("a", CloserFunc(func() error { calls++; return boom }))
	l.RegisterCloser("b", CloserFunc(func() error { calls++; return nil }))

	err := l.Shutdown(context.Background(), "first")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls, "every closer runs even after a failure")

	again := l.Shutdown(context.Background(), "second")
	assert.Equal(t, err, again)
	assert.Equal(t, 2, calls)

	select {
	case <-l.Done():
	default:
		t.Fatal("Done should be closed after shutdown")
	}
}

func TestLifecycle_OnShutdownStartRunsBeforeClosers(t *testing.T) {
	l := New(Config{}, logging.Discard())

	var order []string
	l.RegisterCloser("c", CloserFunc(func() error { order = append(order, "close"); return nil }))
	l.OnShutdownStart(func() { order = append(order, "start") })

	require.NoError(t, l.Shutdown(context.Background(), "test"))
	assert.Equal(t, []string{"start", "close"}, order)
}

func TestLifecycle_DrainsInFlight(t *testing.T) {
	l := New(Config{DrainTimeout: time.Second}, logging.Discard())
	require.True(t, l.TrackRequest())

	go func() {
		time.Sleep(50 * time.Millisecond)
		l.UntrackRequest()
	}()

	require.NoError(t, l.Shutdown(context.Background(), "test"))
	assert.Zero(t, l.InFlightCount())
	assert.False(t, l.TrackRequest(), "no requests admitted after shutdown")
}

func TestLifecycle_DrainTimeout(t *testing.T) {
	l := New(Config{DrainTimeout: 30 * time.Millisecond}, logging.Discard())
	require.True(t, l.TrackRequest())

	err := l.Shutdown(context.Background(), "test")
	assert.ErrorContains(t, err, "in-flight")
}

func TestLifecycle_Middleware(t *testing.T) {
	l := New(Config{DrainTimeout: time.Second}, logging.Discard())

	entered := make(chan struct{})
	release := make(chan struct{})
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	rec := httptest.NewRecorder()
	go func() {
		defer wg.Done()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	}()
	<-entered
	assert.Equal(t, int64(1), l.InFlightCount())

	shutdownDone := make(chan error, 1)
	go func() { shutdownDone <- l.Shutdown(context.Background(), "test") }()

	require.Eventually(t, l.IsShuttingDown, time.Second, 5*time.Millisecond)
	rejected := httptest.NewRecorder()
	h.ServeHTTP(rejected, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rejected.Code)

	close(release)
	wg.Wait()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, <-shutdownDone)
}

func TestLifecycle_ListenForSignalsContextCancel(t *testing.T) {
	l := New(Config{}, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, l.ListenForSignals(ctx))
	assert.True(t, l.IsShuttingDown())
}

func TestHTTPCloser(t *testing.T) {
	srv := &http.Server{}
	assert.NoError(t, HTTPCloser(srv, time.Second).Close())
}
