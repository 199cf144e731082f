package resilience

import (
	"context"
	"time"
)

// TimeoutConfig defines timeout values for the application's timeout hierarchy
//
// Timeout Hierarchy (from outermost to innermost):
//
//	HTTP Handler (30s)
//	  ↓
//	Service Layer (25s)
//	  ↓
//	External API (20s merchant flows / 10s webhook-triggered flows)
//	  ↓
//	Database Query (5s)
//
// Each layer completes before its parent times out. The per-payment lock
// expiry must exceed WebhookExecutor so a lock never lapses mid-reconciliation.
type TimeoutConfig struct {
	HTTPHandler time.Duration // Overall request timeout (default: 30s)

	Service time.Duration // Service operation timeout (default: 25s)

	ExternalAPI     time.Duration // Connector calls for merchant flows (default: 20s)
	WebhookExecutor time.Duration // Connector calls issued while reconciling a webhook (default: 10s)

	Database time.Duration // Single query or transaction (default: 5s)
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler: 30 * time.Second,

		// must be < HTTPHandler
		Service: 25 * time.Second,

		ExternalAPI:     20 * time.Second,
		WebhookExecutor: 10 * time.Second,

		Database: 5 * time.Second,
	}
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler:     5 * time.Second,
		Service:         4 * time.Second,
		ExternalAPI:     2 * time.Second,
		WebhookExecutor: 1 * time.Second,
		Database:        1 * time.Second,
	}
}

// HandlerContext creates a context with timeout for HTTP handlers
func (tc *TimeoutConfig) HandlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.HTTPHandler)
}

// ServiceContext creates a context with timeout for service layer operations
func (tc *TimeoutConfig) ServiceContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Service)
}

// ExternalAPIContext creates a context for connector calls made on behalf of a merchant
func (tc *TimeoutConfig) ExternalAPIContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.ExternalAPI)
}

// WebhookExecutorContext creates a context for connector calls made while reconciling a webhook
func (tc *TimeoutConfig) WebhookExecutorContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.WebhookExecutor)
}

// DatabaseContext creates a context for database work
func (tc *TimeoutConfig) DatabaseContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Database)
}
