package shutdown

import (
	"context"
	"net/http"
	"sync"

	"github.com/kevin07696/payment-router/internal/domain/ports"
)

// InFlightTracker counts work in progress so shutdown can wait for it
type InFlightTracker struct {
	name   string
	logger ports.Logger

	mu       sync.Mutex
	wg       sync.WaitGroup
	draining bool
}

// NewInFlightTracker creates a tracker
func NewInFlightTracker(name string, logger ports.Logger) *InFlightTracker {
	return &InFlightTracker{name: name, logger: logger}
}

// Add starts one unit of work. It is false once draining has begun.
func (t *InFlightTracker) Add() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.draining {
		return false
	}
	t.wg.Add(1)
	return true
}

// Done finishes a unit started by Add
func (t *InFlightTracker) Done() { t.wg.Done() }

// IsShuttingDown reports whether new work is refused
func (t *InFlightTracker) IsShuttingDown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draining
}

// Shutdown refuses new work and waits for running work or ctx
func (t *InFlightTracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.draining = true
	t.mu.Unlock()

	t.logger.Info("Waiting for in-flight work", ports.String("tracker", t.name))

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		t.logger.Warn("In-flight work did not finish before shutdown timeout", ports.String("tracker", t.name))
		return ctx.Err()
	}
}

// Middleware answers 503 once draining has begun so the connector retries
// the webhook against another instance
func (t *InFlightTracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.Add() {
			w.Header().Set("Connection", "close")
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		defer t.Done()
		next.ServeHTTP(w, r)
	})
}

// BackgroundWorker runs one goroutine until shutdown cancels it
type BackgroundWorker struct {
	name   string
	logger ports.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBackgroundWorker creates a worker
func NewBackgroundWorker(name string, logger ports.Logger) *BackgroundWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &BackgroundWorker{name: name, logger: logger, ctx: ctx, cancel: cancel}
}

// Start runs work in a goroutine; work must return when ctx is done
func (w *BackgroundWorker) Start(work func(ctx context.Context)) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.logger.Info("Background worker started", ports.String("worker", w.name))
		work(w.ctx)
		w.logger.Info("Background worker stopped", ports.String("worker", w.name))
	}()
}

// Shutdown cancels the worker and waits for it or ctx
func (w *BackgroundWorker) Shutdown(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.logger.Warn("Background worker shutdown timeout", ports.String("worker", w.name))
		return ctx.Err()
	}
}
