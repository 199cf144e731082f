package observability

import (
	"errors"
	"net/http"
	"time"

	"github.com/kevin07696/payment-router/internal/domain/ports"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMetricsServer serves /metrics, and /health and /ready when healthChecker is set
func NewMetricsServer(addr string, healthChecker *HealthChecker) *http.Server {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.Handler())

	if healthChecker != nil {
		mux.HandleFunc("GET /health", healthChecker.HealthHandler())
		mux.HandleFunc("GET /ready", healthChecker.HealthHandler())
	} else {
		mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
		})
	}

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
}

// Serve runs server in the background, logging anything but a clean close
func Serve(name string, server *http.Server, logger ports.Logger) {
	go func() {
		logger.Info("HTTP server listening", ports.String("server", name), ports.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", ports.String("server", name), ports.Err(err))
		}
	}()
}
