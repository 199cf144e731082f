package connector

import (
	"context"

	"github.com/kevin07696/payment-router/internal/domain"
)

// Integration is one connector's implementation of one flow
type Integration interface {
	// Headers may sign over the body or call out for an access token
	Headers(ctx context.Context, rd *RouterData) ([]Header, error)
	ContentType() string
	URL(rd *RouterData) (string, error)
	RequestBody(rd *RouterData) (*RequestContent, error)
	// BuildRequest returns nil, nil when the flow needs no network call
	BuildRequest(ctx context.Context, rd *RouterData) (*Request, error)
	HandleResponse(rd *RouterData, resp Response) (*RouterData, error)
	ErrorResponse(resp Response) (*ErrorResponse, error)
}

// StatusClassifier lets a connector widen or narrow the success status range
type StatusClassifier interface {
	IsSuccess(statusCode int) bool
}

// Connector groups the integrations and webhook handling of one processor
type Connector interface {
	Name() string
	// Integration returns nil when the connector does not implement the flow
	Integration(flow domain.Flow) Integration
	// Webhooks returns nil when the connector sends no webhooks
	Webhooks() IncomingWebhook
}

// DefaultIsSuccess is the 2xx range
func DefaultIsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// IsSuccess applies the integration's classifier when it has one
func IsSuccess(integ Integration, statusCode int) bool {
	if c, ok := integ.(StatusClassifier); ok {
		return c.IsSuccess(statusCode)
	}
	return DefaultIsSuccess(statusCode)
}

// BuildDefaultRequest assembles a request from the integration's parts.
// Integrations whose BuildRequest has no special needs delegate here.
func BuildDefaultRequest(ctx context.Context, integ Integration, rd *RouterData, method string) (*Request, error) {
	u, err := integ.URL(rd)
	if err != nil {
		return nil, err
	}
	headers, err := integ.Headers(ctx, rd)
	if err != nil {
		return nil, err
	}
	body, err := integ.RequestBody(rd)
	if err != nil {
		return nil, err
	}
	return NewRequestBuilder(method).
		URL(u).
		Headers(headers).
		ContentType(integ.ContentType()).
		Body(body).
		Build()
}
