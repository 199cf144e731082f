// Package shutdown drains the router's servers and clients on SIGINT/SIGTERM
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kevin07696/payment-router/internal/domain/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	shutdownDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "router_shutdown_duration_seconds",
		Help:    "Total time taken to shut down",
		Buckets: []float64{1, 5, 10, 15, 20, 25, 30},
	})

	componentShutdownDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "router_component_shutdown_duration_seconds",
		Help:    "Time taken to shut down individual components",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 20, 25, 30},
	}, []string{"component"})

	shutdownErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_shutdown_errors_total",
		Help: "Shutdown errors by component",
	}, []string{"component"})
)

// Func stops one component within ctx
type Func func(ctx context.Context) error

type component struct {
	name string
	fn   Func
}

// Manager stops registered components one at a time in reverse registration
// order, so listeners registered after their dependencies stop first.
type Manager struct {
	logger  ports.Logger
	timeout time.Duration

	mu         sync.Mutex
	components []component
	done       bool
}

// NewManager creates a manager whose whole drain is bounded by timeout
func NewManager(logger ports.Logger, timeout time.Duration) *Manager {
	return &Manager{logger: logger, timeout: timeout}
}

// Register adds a component
func (m *Manager) Register(name string, fn Func) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component{name: name, fn: fn})
	m.logger.Debug("Registered shutdown component",
		ports.String("component", name),
		ports.Int("order", len(m.components)),
	)
}

// RegisterHTTPServer registers anything with Shutdown(ctx), e.g. *http.Server
func (m *Manager) RegisterHTTPServer(name string, server interface{ Shutdown(context.Context) error }) {
	m.Register(name, server.Shutdown)
}

// RegisterCloser registers a Close() error
func (m *Manager) RegisterCloser(name string, closer interface{ Close() error }) {
	m.Register(name, func(context.Context) error { return closer.Close() })
}

// RegisterNoErr registers a func with no result, e.g. pgxpool.Pool.Close
func (m *Manager) RegisterNoErr(name string, fn func()) {
	m.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// Wait blocks until SIGINT, SIGTERM or ctx is done, then shuts down
func (m *Manager) Wait(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	m.logger.Info("Shutdown signal received", ports.Duration("timeout", m.timeout))
	return m.Shutdown()
}

// Shutdown runs every component once. Later calls are no-ops.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return nil
	}
	m.done = true
	components := make([]component, len(m.components))
	copy(components, m.components)
	m.mu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: skipped: %w", c.name, ctx.Err()))
			shutdownErrors.WithLabelValues(c.name).Inc()
			continue
		}

		cStart := time.Now()
		err := c.fn(ctx)
		componentShutdownDuration.WithLabelValues(c.name).Observe(time.Since(cStart).Seconds())
		if err != nil {
			shutdownErrors.WithLabelValues(c.name).Inc()
			m.logger.Error("Component shutdown failed",
				ports.String("component", c.name),
				ports.Duration("elapsed", time.Since(cStart)),
				ports.Err(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		m.logger.Info("Component shut down", ports.String("component", c.name),
			ports.Duration("elapsed", time.Since(cStart)))
	}

	shutdownDuration.Observe(time.Since(start).Seconds())
	if len(errs) > 0 {
		m.logger.Error("Shutdown completed with errors", ports.Int("error_count", len(errs)))
		return errors.Join(errs...)
	}
	m.logger.Info("Shutdown completed", ports.Duration("elapsed", time.Since(start)))
	return nil
}
