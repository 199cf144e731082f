// Package fakeconnector is a scripted JSON processor for service, reconciler and
// handler tests. Every flow posts JSON to https://fake.test/{flow}; answers come
// from a Sender whose handler the test sets.
package fakeconnector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain"
	pkgerrors "github.com/kevin07696/payment-router/pkg/errors"
)

// SignatureHeader carries the hex HMAC-SHA256 of the webhook body
const SignatureHeader = "X-Fake-Signature"

// Body is both the success schema of every flow and the webhook resource
type Body struct {
	Status        string `json:"status,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	MandateID     string `json:"mandate_id,omitempty"`
	ChargeID      string `json:"charge_id,omitempty"`
	RefundID      string `json:"refund_id,omitempty"`
	RefundStatus  string `json:"refund_status,omitempty"`
	Verified      *bool  `json:"verified,omitempty"`
}

// ErrorBody is the error schema
type ErrorBody struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	Category      string `json:"category,omitempty"`
	AttemptStatus string `json:"attempt_status,omitempty"`
}

// Event is a webhook envelope
type Event struct {
	Event         string          `json:"event"`
	TransactionID string          `json:"transaction_id,omitempty"`
	RefundID      string          `json:"refund_id,omitempty"`
	Handshake     string          `json:"handshake,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// Connector is the fake processor
type Connector struct {
	name     string
	strategy connector.VerificationStrategy
	flows    map[domain.Flow]bool
}

// New creates a fake connector supporting every payment and refund flow
func New(name string, strategy connector.VerificationStrategy) *Connector {
	flows := map[domain.Flow]bool{
		domain.FlowAuthorize:     true,
		domain.FlowCapture:       true,
		domain.FlowVoid:          true,
		domain.FlowPSync:         true,
		domain.FlowExecute:       true,
		domain.FlowRSync:         true,
		domain.FlowPreProcessing: true,
	}
	if strategy == connector.VerificationRemote {
		flows[domain.FlowVerifyWebhookSource] = true
	}
	return &Connector{name: name, strategy: strategy, flows: flows}
}

func (c *Connector) Name() string { return c.name }

func (c *Connector) Integration(flow domain.Flow) connector.Integration {
	if !c.flows[flow] {
		return nil
	}
	return &integration{flow: flow}
}

func (c *Connector) Webhooks() connector.IncomingWebhook {
	return &webhooks{strategy: c.strategy}
}

type integration struct {
	flow domain.Flow
}

func (i *integration) Headers(ctx context.Context, rd *connector.RouterData) ([]connector.Header, error) {
	return []connector.Header{{Name: "Authorization", Value: "Bearer " + rd.Auth.APIKey, Masked: true}}, nil
}

func (i *integration) ContentType() string { return connector.ContentTypeJSON }

func (i *integration) URL(rd *connector.RouterData) (string, error) {
	return "https://fake.test/" + i.flow.String(), nil
}

func (i *integration) RequestBody(rd *connector.RouterData) (*connector.RequestContent, error) {
	switch {
	case rd.Refund != nil:
		return connector.JSONContent(rd.Refund), nil
	case rd.WebhookVerify != nil:
		return connector.RawContent(rd.WebhookVerify.Body), nil
	case rd.Payment != nil:
		return connector.JSONContent(rd.Payment), nil
	}
	return nil, nil
}

func (i *integration) BuildRequest(ctx context.Context, rd *connector.RouterData) (*connector.Request, error) {
	return connector.BuildDefaultRequest(ctx, i, rd, http.MethodPost)
}

func (i *integration) HandleResponse(rd *connector.RouterData, resp connector.Response) (*connector.RouterData, error) {
	var body Body
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, err
	}
	out := rd.Clone()
	switch {
	case i.flow == domain.FlowVerifyWebhookSource:
		verified := body.Verified != nil && *body.Verified
		out.WebhookVerified = &verified
	case i.flow.IsRefundFlow():
		out.RefundResponse = &connector.RefundsResponseData{
			ConnectorRefundID: body.RefundID,
			Status:            domain.RefundStatus(body.RefundStatus),
		}
	default:
		if body.Status == "" {
			return nil, errors.New("fake response has no status")
		}
		out.Status = domain.AttemptStatus(body.Status)
		out.PaymentResponse = &connector.PaymentsResponseData{
			ConnectorTransactionID: body.TransactionID,
			MandateID:              optional(body.MandateID),
			ChargeID:               optional(body.ChargeID),
		}
	}
	return out, nil
}

func (i *integration) ErrorResponse(resp connector.Response) (*connector.ErrorResponse, error) {
	var body ErrorBody
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, err
	}
	e := &connector.ErrorResponse{
		StatusCode: resp.StatusCode,
		Code:       body.Code,
		Message:    body.Message,
		Category:   pkgerrors.ErrorCategory(body.Category),
	}
	if body.AttemptStatus != "" {
		s := domain.AttemptStatus(body.AttemptStatus)
		e.AttemptStatus = &s
	}
	return e, nil
}

type webhooks struct {
	strategy connector.VerificationStrategy
}

func decodeEvent(req connector.WebhookRequest) (Event, error) {
	var ev Event
	if err := json.Unmarshal(req.Body, &ev); err != nil {
		return Event{}, domain.WrapError(domain.ErrorCodeWebhookBodyDecoding, "fake webhook is not JSON", err)
	}
	return ev, nil
}

func (w *webhooks) ObjectReferenceID(req connector.WebhookRequest) (domain.ObjectReferenceID, error) {
	ev, err := decodeEvent(req)
	if err != nil {
		return domain.ObjectReferenceID{}, err
	}
	switch {
	case ev.RefundID != "":
		return domain.RefundReference(domain.RefundIDTypeConnectorRefundID, ev.RefundID), nil
	case ev.TransactionID != "":
		return domain.PaymentReference(domain.PaymentIDTypeConnectorTransactionID, ev.TransactionID), nil
	}
	return domain.ObjectReferenceID{}, domain.ErrWebhookReferenceNotFound
}

func (w *webhooks) EventType(req connector.WebhookRequest) (domain.IncomingWebhookEvent, error) {
	ev, err := decodeEvent(req)
	if err != nil {
		return "", err
	}
	if ev.Event == "" {
		return "", domain.ErrWebhookEventTypeNotFound
	}
	return domain.IncomingWebhookEvent(ev.Event), nil
}

func (w *webhooks) ResourceObject(req connector.WebhookRequest) ([]byte, error) {
	ev, err := decodeEvent(req)
	if err != nil {
		return nil, err
	}
	if len(ev.Data) == 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeWebhookResourceObjectAbsent, "fake webhook has no data")
	}
	return ev.Data, nil
}

func (w *webhooks) VerificationStrategy() connector.VerificationStrategy {
	return w.strategy
}

func (w *webhooks) APIResponse(req connector.WebhookRequest) connector.WebhookAPIResponse {
	ev, err := decodeEvent(req)
	if err != nil || ev.Handshake == "" {
		return connector.DefaultWebhookAPIResponse()
	}
	return connector.WebhookAPIResponse{
		StatusCode:  http.StatusOK,
		ContentType: "text/plain",
		Body:        []byte(ev.Handshake),
	}
}

func (w *webhooks) Algorithm() connector.SignatureAlgorithm {
	return connector.HMACSHA256{}
}

func (w *webhooks) Signature(req connector.WebhookRequest) ([]byte, error) {
	sig := req.Headers.Get(SignatureHeader)
	if sig == "" {
		return nil, nil
	}
	return connector.DecodeSignature(sig)
}

func (w *webhooks) Message(req connector.WebhookRequest, secret connector.WebhookSecret) ([]byte, error) {
	return req.Body, nil
}

// Sign returns the header value a genuine fake webhook carries
func Sign(secret, body []byte) string {
	return connector.SignHMACSHA256(secret, body)
}

// Sender answers requests through Handler and records them
type Sender struct {
	mu       sync.Mutex
	Handler  func(req *connector.Request) (*connector.Response, error)
	requests []*connector.Request
}

// Send implements connector.Sender
func (s *Sender) Send(ctx context.Context, req *connector.Request) (*connector.Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	handler := s.Handler
	s.mu.Unlock()

	if handler == nil {
		return nil, errors.New("fake sender has no handler")
	}
	return handler(req)
}

// Calls returns how many requests hit the sender
func (s *Sender) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns the recorded requests
func (s *Sender) Requests() []*connector.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*connector.Request(nil), s.requests...)
}

// JSON is a handler that answers every request with status and v
func JSON(status int, v any) func(*connector.Request) (*connector.Response, error) {
	body, err := json.Marshal(v)
	return func(*connector.Request) (*connector.Response, error) {
		if err != nil {
			return nil, err
		}
		return &connector.Response{StatusCode: status, Headers: http.Header{}, Body: body}, nil
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
