package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connector flow metrics
	connectorCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_calls_total",
		Help: "Total number of connector flow executions",
	}, []string{
		"connector", // north, epx
		"flow",      // authorize, capture, psync, ...
		"outcome",   // success, business_error, transport_error, deserialization_error, skipped
	})

	connectorCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "connector_call_duration_seconds",
		Help: "Time spent executing a connector flow, network included",
		// Buckets: 50ms to 20s (external API timeout)
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
	}, []string{
		"connector",
		"flow",
	})

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "connector_circuit_breaker_state",
		Help: "Circuit breaker state per connector host (0=closed, 1=open, 2=half-open)",
	}, []string{
		"host",
	})

	// Attempt lifecycle metrics
	attemptTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_attempt_transitions_total",
		Help: "Attempt status transitions written by the router",
	}, []string{
		"connector",
		"flow",
		"status",
	})

	// Webhook ingestion metrics
	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Incoming connector webhooks by final outcome",
	}, []string{
		"connector",
		"event_type",
		"outcome", // processed, no_effect, unauthorized, error
	})

	webhookStageTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_stage_total",
		Help: "Reconciler stages reached by incoming webhooks",
	}, []string{
		"connector",
		"stage",
	})

	webhookProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_processing_duration_seconds",
		Help:    "Time to reconcile an incoming webhook",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{
		"connector",
	})

	// Per-payment lock metrics
	lockAcquireDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_lock_acquire_duration_seconds",
		Help:    "Time spent waiting for the per-payment lock",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{
		"outcome", // acquired, busy, error
	})
)

// RecordConnectorCall records one executor invocation
func RecordConnectorCall(connector, flow, outcome string, duration time.Duration) {
	connectorCallsTotal.WithLabelValues(connector, flow, outcome).Inc()
	connectorCallDuration.WithLabelValues(connector, flow).Observe(duration.Seconds())
}

// RecordCircuitState records a circuit breaker transition for a connector host
func RecordCircuitState(host string, state int) {
	circuitBreakerState.WithLabelValues(host).Set(float64(state))
}

// RecordAttemptTransition records the status an attempt was moved to
func RecordAttemptTransition(connector, flow, status string) {
	attemptTransitionsTotal.WithLabelValues(connector, flow, status).Inc()
}

// RecordWebhookStage records that a webhook reached a reconciler stage
func RecordWebhookStage(connector, stage string) {
	webhookStageTotal.WithLabelValues(connector, stage).Inc()
}

// RecordWebhookEvent records the final outcome of an incoming webhook
func RecordWebhookEvent(connector, eventType, outcome string, duration time.Duration) {
	webhookEventsTotal.WithLabelValues(connector, eventType, outcome).Inc()
	webhookProcessingDuration.WithLabelValues(connector).Observe(duration.Seconds())
}

// RecordLockAcquire records how long a lock acquisition took and how it ended
func RecordLockAcquire(outcome string, wait time.Duration) {
	lockAcquireDuration.WithLabelValues(outcome).Observe(wait.Seconds())
}
