// Package north is the North Custom Pay connector: JSON requests signed with
// an HMAC-SHA256 EPI-Signature, BRIC references, and signed JSON webhooks.
package north

import (
	"context"
	"net/http"
	"strings"

	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain"
)

// Name is the connector's registry name
const Name = "north"

const (
	DefaultBaseURL = "https://api.north.com/custom-pay"
	SandboxBaseURL = "https://api.epxuap.com/custom-pay"
)

// Connector implements connector.Connector for North
type Connector struct {
	baseURL string
}

var _ connector.Connector = (*Connector)(nil)

// New creates the North connector against baseURL
func New(baseURL string) *Connector {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Connector{baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Connector) Name() string { return Name }

func (c *Connector) Integration(flow domain.Flow) connector.Integration {
	switch flow {
	case domain.FlowAuthorize, domain.FlowCapture, domain.FlowVoid, domain.FlowPSync,
		domain.FlowExecute, domain.FlowRSync:
		return &integration{baseURL: c.baseURL, flow: flow}
	}
	return nil
}

func (c *Connector) Webhooks() connector.IncomingWebhook {
	return webhooks{}
}

// integration serves one flow. Every request is signed over its endpoint
// path and body.
type integration struct {
	baseURL string
	flow    domain.Flow
}

func (i *integration) method() string {
	switch i.flow {
	case domain.FlowPSync, domain.FlowRSync:
		return http.MethodGet
	case domain.FlowCapture, domain.FlowVoid:
		return http.MethodPut
	default:
		return http.MethodPost
	}
}

// endpoint is the path North signs, without the base URL
func (i *integration) endpoint(rd *connector.RouterData) (string, error) {
	switch i.flow {
	case domain.FlowAuthorize:
		p, err := rd.RequirePayment()
		if err != nil {
			return "", err
		}
		if p.PaymentToken == "" {
			return "", missingField("payment_token")
		}
		return "/sale/" + p.PaymentToken, nil

	case domain.FlowCapture, domain.FlowVoid, domain.FlowPSync:
		p, err := rd.RequirePayment()
		if err != nil {
			return "", err
		}
		if p.ConnectorTransactionID == "" {
			return "", missingField("connector_transaction_id")
		}
		switch i.flow {
		case domain.FlowCapture:
			return "/sale/" + p.ConnectorTransactionID + "/capture", nil
		case domain.FlowVoid:
			return "/void/" + p.ConnectorTransactionID, nil
		default:
			return "/transaction/" + p.ConnectorTransactionID, nil
		}

	case domain.FlowExecute:
		r, err := rd.RequireRefund()
		if err != nil {
			return "", err
		}
		if r.ConnectorTransactionID == "" {
			return "", missingField("connector_transaction_id")
		}
		return "/refund/" + r.ConnectorTransactionID, nil

	case domain.FlowRSync:
		r, err := rd.RequireRefund()
		if err != nil {
			return "", err
		}
		if r.ConnectorRefundID == nil || *r.ConnectorRefundID == "" {
			return "", missingField("connector_refund_id")
		}
		return "/refund/" + *r.ConnectorRefundID, nil
	}
	return "", domain.NewDomainError(domain.ErrorCodeFlowNotSupported, "north does not support "+i.flow.String())
}

func (i *integration) Headers(ctx context.Context, rd *connector.RouterData) ([]connector.Header, error) {
	content, err := i.RequestBody(rd)
	if err != nil {
		return nil, err
	}
	body, err := content.Encode()
	if err != nil {
		return nil, err
	}
	return i.signedHeaders(rd, body)
}

func (i *integration) signedHeaders(rd *connector.RouterData, body []byte) ([]connector.Header, error) {
	auth, err := authConfig(rd.Auth)
	if err != nil {
		return nil, err
	}
	endpoint, err := i.endpoint(rd)
	if err != nil {
		return nil, err
	}
	return []connector.Header{
		{Name: "EPI-Id", Value: auth.EPIId, Masked: true},
		{Name: "EPI-Signature", Value: CalculateSignature(auth.EPIKey, endpoint, body), Masked: true},
		{Name: "Accept", Value: connector.ContentTypeJSON},
	}, nil
}

func (i *integration) ContentType() string {
	if i.method() == http.MethodGet {
		return ""
	}
	return connector.ContentTypeJSON
}

func (i *integration) URL(rd *connector.RouterData) (string, error) {
	endpoint, err := i.endpoint(rd)
	if err != nil {
		return "", err
	}
	return i.baseURL + endpoint, nil
}

func (i *integration) RequestBody(rd *connector.RouterData) (*connector.RequestContent, error) {
	if i.method() == http.MethodGet {
		return nil, nil
	}
	req, err := buildRequest(i.flow, rd)
	if err != nil {
		return nil, err
	}
	return connector.JSONContent(req), nil
}

// BuildRequest encodes the body once so the signature covers exactly the
// bytes that are sent
func (i *integration) BuildRequest(ctx context.Context, rd *connector.RouterData) (*connector.Request, error) {
	u, err := i.URL(rd)
	if err != nil {
		return nil, err
	}
	content, err := i.RequestBody(rd)
	if err != nil {
		return nil, err
	}
	body, err := content.Encode()
	if err != nil {
		return nil, err
	}
	headers, err := i.signedHeaders(rd, body)
	if err != nil {
		return nil, err
	}
	return connector.NewRequestBuilder(i.method()).
		URL(u).
		Headers(headers).
		ContentType(i.ContentType()).
		Body(connector.RawContent(body)).
		Build()
}

func (i *integration) HandleResponse(rd *connector.RouterData, resp connector.Response) (*connector.RouterData, error) {
	return handleResponse(i.flow, rd, resp)
}

func (i *integration) ErrorResponse(resp connector.Response) (*connector.ErrorResponse, error) {
	return errorResponse(i.flow, resp), nil
}

func missingField(field string) error {
	return domain.NewDomainError(domain.ErrorCodeMissingRequiredField, "north requires "+field).
		WithDetail("field", field)
}
