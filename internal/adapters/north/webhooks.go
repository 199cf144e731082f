package north

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain"
)

// SignatureHeader carries the hex HMAC-SHA256 of WebhookEndpoint + body
const SignatureHeader = "EPI-Signature"

// WebhookEndpoint is the endpoint North signs webhook bodies under
const WebhookEndpoint = "/webhook"

// Webhook event types
const (
	EventTransactionAuthorized = "transaction.authorized"
	EventTransactionCaptured   = "transaction.captured"
	EventTransactionSettled    = "transaction.settled"
	EventTransactionDeclined   = "transaction.declined"
	EventTransactionVoided     = "transaction.voided"
	EventTransactionPending    = "transaction.pending"
	EventRefundSettled         = "refund.settled"
	EventRefundDeclined        = "refund.declined"
	EventChargebackCreated     = "chargeback.created"
	EventWebhookVerification   = "webhook.verification"
)

var eventTypes = map[string]domain.IncomingWebhookEvent{
	EventTransactionAuthorized: domain.WebhookEventPaymentIntentAuthorizationSuccess,
	EventTransactionCaptured:   domain.WebhookEventPaymentIntentCaptureSuccess,
	EventTransactionSettled:    domain.WebhookEventPaymentIntentSuccess,
	EventTransactionDeclined:   domain.WebhookEventPaymentIntentFailure,
	EventTransactionVoided:     domain.WebhookEventPaymentIntentCancelled,
	EventTransactionPending:    domain.WebhookEventPaymentIntentProcessing,
	EventRefundSettled:         domain.WebhookEventRefundSuccess,
	EventRefundDeclined:        domain.WebhookEventRefundFailure,
	EventChargebackCreated:     domain.WebhookEventDisputeOpened,
	EventWebhookVerification:   domain.WebhookEventEndpointVerification,
}

// WebhookEvent is the envelope North posts
type WebhookEvent struct {
	ID          string               `json:"id"`
	Type        string               `json:"type"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
	Refund      *TransactionResponse `json:"refund,omitempty"`
	// Challenge is set on endpoint verification and must be echoed back
	Challenge string `json:"challenge,omitempty"`
}

type webhooks struct{}

var (
	_ connector.IncomingWebhook   = webhooks{}
	_ connector.LocalVerification = webhooks{}
)

func decodeEvent(req connector.WebhookRequest) (WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(req.Body, &ev); err != nil {
		return WebhookEvent{}, domain.WrapError(domain.ErrorCodeWebhookBodyDecoding, "north webhook is not JSON", err)
	}
	return ev, nil
}

func (webhooks) ObjectReferenceID(req connector.WebhookRequest) (domain.ObjectReferenceID, error) {
	ev, err := decodeEvent(req)
	if err != nil {
		return domain.ObjectReferenceID{}, err
	}
	if ev.Refund != nil && ev.Refund.Reference.BRIC != "" {
		return domain.RefundReference(domain.RefundIDTypeConnectorRefundID, ev.Refund.Reference.BRIC), nil
	}
	if ev.Transaction != nil && ev.Transaction.Reference.BRIC != "" {
		return domain.PaymentReference(domain.PaymentIDTypeConnectorTransactionID, ev.Transaction.Reference.BRIC), nil
	}
	return domain.ObjectReferenceID{}, domain.ErrWebhookReferenceNotFound
}

func (webhooks) EventType(req connector.WebhookRequest) (domain.IncomingWebhookEvent, error) {
	ev, err := decodeEvent(req)
	if err != nil {
		return "", err
	}
	if ev.Type == "" {
		return "", domain.ErrWebhookEventTypeNotFound
	}
	if e, ok := eventTypes[strings.ToLower(ev.Type)]; ok {
		return e, nil
	}
	return domain.WebhookEventEventNotSupported, nil
}

// ResourceObject is the embedded transaction or refund, which has the shape
// of a status lookup reply
func (webhooks) ResourceObject(req connector.WebhookRequest) ([]byte, error) {
	ev, err := decodeEvent(req)
	if err != nil {
		return nil, err
	}
	obj := ev.Transaction
	if ev.Refund != nil {
		obj = ev.Refund
	}
	if obj == nil {
		return nil, domain.NewDomainError(domain.ErrorCodeWebhookResourceObjectAbsent, "north webhook carries no transaction")
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeWebhookResourceObjectAbsent, "encode north webhook resource", err)
	}
	return b, nil
}

func (webhooks) VerificationStrategy() connector.VerificationStrategy {
	return connector.VerificationLocal
}

func (webhooks) APIResponse(req connector.WebhookRequest) connector.WebhookAPIResponse {
	ev, err := decodeEvent(req)
	if err != nil || ev.Challenge == "" {
		return connector.DefaultWebhookAPIResponse()
	}
	body, err := json.Marshal(map[string]string{"challenge": ev.Challenge})
	if err != nil {
		return connector.DefaultWebhookAPIResponse()
	}
	return connector.WebhookAPIResponse{
		StatusCode:  http.StatusOK,
		ContentType: connector.ContentTypeJSON,
		Body:        body,
	}
}

func (webhooks) Algorithm() connector.SignatureAlgorithm {
	return connector.HMACSHA256{}
}

func (webhooks) Signature(req connector.WebhookRequest) ([]byte, error) {
	sig := req.Headers.Get(SignatureHeader)
	if sig == "" {
		return nil, nil
	}
	return connector.DecodeSignature(sig)
}

func (webhooks) Message(req connector.WebhookRequest, _ connector.WebhookSecret) ([]byte, error) {
	return signingMessage(WebhookEndpoint, req.Body), nil
}

// SignWebhook returns the signature header value North sends with body
func SignWebhook(secret string, body []byte) string {
	return CalculateSignature(secret, WebhookEndpoint, body)
}
