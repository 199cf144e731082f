// Package epx is the EPX Server Post connector. Requests are form-encoded;
// replies come back as XML FIELD lists or key-value pairs. Browser Post
// callbacks are authenticated by asking EPX about the transaction.
package epx

import (
	"context"
	"net/http"

	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain"
)

// Name is the connector's registry name
const Name = "epx"

// Config points the connector at an EPX environment
type Config struct {
	// ServerPostURL receives sale, auth, capture, void and credit requests
	ServerPostURL string
	// InquiryURL answers transaction status lookups by AUTH_GUID
	InquiryURL string
}

// DefaultConfig returns the production or sandbox endpoints
func DefaultConfig(environment string) Config {
	if environment == "sandbox" {
		return Config{
			ServerPostURL: "https://secure.epxuap.com",
			InquiryURL:    "https://secure.epxuap.com/inquiry",
		}
	}
	return Config{
		ServerPostURL: "https://epxnow.com/epx/server_post",
		InquiryURL:    "https://epxnow.com/epx/inquiry",
	}
}

// Connector implements connector.Connector for EPX
type Connector struct {
	cfg Config
}

var _ connector.Connector = (*Connector)(nil)

// New creates the EPX connector
func New(cfg Config) *Connector {
	defaults := DefaultConfig("production")
	if cfg.ServerPostURL == "" {
		cfg.ServerPostURL = defaults.ServerPostURL
	}
	if cfg.InquiryURL == "" {
		cfg.InquiryURL = defaults.InquiryURL
	}
	return &Connector{cfg: cfg}
}

func (c *Connector) Name() string { return Name }

func (c *Connector) Integration(flow domain.Flow) connector.Integration {
	switch flow {
	case domain.FlowAuthorize, domain.FlowCapture, domain.FlowVoid, domain.FlowExecute:
		return &integration{url: c.cfg.ServerPostURL, flow: flow}
	case domain.FlowPSync, domain.FlowRSync, domain.FlowVerifyWebhookSource:
		return &integration{url: c.cfg.InquiryURL, flow: flow}
	}
	return nil
}

func (c *Connector) Webhooks() connector.IncomingWebhook {
	return webhooks{}
}

type integration struct {
	url  string
	flow domain.Flow
}

var _ connector.StatusClassifier = (*integration)(nil)

func (i *integration) Headers(ctx context.Context, rd *connector.RouterData) ([]connector.Header, error) {
	return nil, nil
}

func (i *integration) ContentType() string { return connector.ContentTypeForm }

func (i *integration) URL(rd *connector.RouterData) (string, error) {
	return i.url, nil
}

func (i *integration) RequestBody(rd *connector.RouterData) (*connector.RequestContent, error) {
	form, err := buildForm(i.flow, rd)
	if err != nil {
		return nil, err
	}
	return connector.FormContent(form), nil
}

func (i *integration) BuildRequest(ctx context.Context, rd *connector.RouterData) (*connector.Request, error) {
	return connector.BuildDefaultRequest(ctx, i, rd, http.MethodPost)
}

// IsSuccess hands 5xx replies to the response handler: EPX reports
// host-side declines with a server error status and a normal field list
func (i *integration) IsSuccess(statusCode int) bool {
	return connector.DefaultIsSuccess(statusCode) || statusCode >= http.StatusInternalServerError
}

func (i *integration) HandleResponse(rd *connector.RouterData, resp connector.Response) (*connector.RouterData, error) {
	return handleResponse(i.flow, rd, resp)
}

func (i *integration) ErrorResponse(resp connector.Response) (*connector.ErrorResponse, error) {
	return errorResponse(resp), nil
}
