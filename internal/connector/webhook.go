package connector

import (
	"net/http"
	"net/url"

	"github.com/kevin07696/payment-router/internal/domain"
)

// WebhookRequest is an incoming connector notification as received over HTTP
type WebhookRequest struct {
	Method  string
	Headers http.Header
	Query   url.Values
	Body    []byte
}

// WebhookSecret is the merchant's verification material for one connector.
// It is fetched per invocation and never stored on router records.
type WebhookSecret struct {
	Secret           []byte
	AdditionalSecret []byte
}

// VerificationStrategy says how a connector's webhooks are authenticated
type VerificationStrategy string

const (
	// VerificationNone means the connector offers no way to authenticate its webhooks
	VerificationNone VerificationStrategy = "none"
	// VerificationLocal is a pure signature check over headers, body and secret
	VerificationLocal VerificationStrategy = "local"
	// VerificationRemote asks the connector through FlowVerifyWebhookSource
	VerificationRemote VerificationStrategy = "remote"
)

// WebhookAPIResponse is what the router answers to the connector
type WebhookAPIResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// DefaultWebhookAPIResponse is an empty 200
func DefaultWebhookAPIResponse() WebhookAPIResponse {
	return WebhookAPIResponse{StatusCode: http.StatusOK}
}

// IncomingWebhook decodes one connector's notifications
type IncomingWebhook interface {
	// ObjectReferenceID extracts which payment or refund the webhook is about
	ObjectReferenceID(req WebhookRequest) (domain.ObjectReferenceID, error)
	// EventType classifies the notification
	EventType(req WebhookRequest) (domain.IncomingWebhookEvent, error)
	// ResourceObject returns the body that the PSync/RSync response handler
	// understands, used instead of a live sync when the source is verified
	ResourceObject(req WebhookRequest) ([]byte, error)
	VerificationStrategy() VerificationStrategy
	// APIResponse is the acknowledgement body, including handshake echoes
	APIResponse(req WebhookRequest) WebhookAPIResponse
}

// LocalVerification is implemented by webhooks using VerificationLocal
type LocalVerification interface {
	Algorithm() SignatureAlgorithm
	Signature(req WebhookRequest) ([]byte, error)
	Message(req WebhookRequest, secret WebhookSecret) ([]byte, error)
}
