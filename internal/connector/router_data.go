package connector

import (
	"encoding/json"
	"net/http"

	"github.com/kevin07696/payment-router/internal/domain"
	pkgerrors "github.com/kevin07696/payment-router/pkg/errors"
)

// ErrorResponse is a connector's business error normalised into one shape.
// It is data carried on RouterData, not a Go error.
type ErrorResponse struct {
	StatusCode             int
	Code                   string
	Message                string
	Reason                 *string
	AttemptStatus          *domain.AttemptStatus
	ConnectorTransactionID *string
	NetworkAdviceCode      *string
	NetworkDeclineCode     *string
	NetworkErrorMessage    *string

	// Category maps the connector code onto the unified decline vocabulary
	Category pkgerrors.ErrorCategory
}

// Sentinel code/message used when a connector returns no error details
const (
	NoErrorCode    = "No error code"
	NoErrorMessage = "No error message"
)

// PaymentsRequestData is the flow input for payment-side flows
type PaymentsRequestData struct {
	Amount                 domain.MinorUnit
	Currency               string
	CaptureMethod          domain.CaptureMethod
	AmountToCapture        *domain.MinorUnit
	ConnectorTransactionID string
	PaymentToken           string
	CancellationReason     *string
	Description            string
	ConnectorMetadata      json.RawMessage
}

// PaymentsResponseData is what a successful payment-side flow produced
type PaymentsResponseData struct {
	ConnectorTransactionID       string
	ConnectorResponseReferenceID *string
	MandateID                    *string
	ChargeID                     *string
	PaymentToken                 *string
	AmountCapturable             *domain.MinorUnit
	ConnectorMetadata            json.RawMessage
	AuthenticationData           json.RawMessage
}

// RefundsRequestData is the flow input for Execute and RSync
type RefundsRequestData struct {
	RefundID               string
	ConnectorTransactionID string
	ConnectorRefundID      *string
	RefundAmount           domain.MinorUnit
	PaymentAmount          domain.MinorUnit
	Currency               string
	Reason                 *string
}

// RefundsResponseData is what a successful refund flow produced
type RefundsResponseData struct {
	ConnectorRefundID string
	Status            domain.RefundStatus
}

// VerifyWebhookSourceRequestData is the flow input for remote webhook verification
type VerifyWebhookSourceRequestData struct {
	Headers http.Header
	Body    []byte
	Secret  WebhookSecret
	// Reference is the connector's own decoding of the webhook subject
	Reference domain.ObjectReferenceID
}

// RouterData is the state threaded through one flow execution.
// Exactly one request section is set, matching Flow.
type RouterData struct {
	Flow       domain.Flow
	Connector  string
	MerchantID string
	PaymentID  string
	AttemptID  string
	Auth       AuthType

	// Status is the attempt status the flow resolves to
	Status domain.AttemptStatus

	Payment       *PaymentsRequestData
	Refund        *RefundsRequestData
	WebhookVerify *VerifyWebhookSourceRequestData

	PaymentResponse *PaymentsResponseData
	RefundResponse  *RefundsResponseData
	WebhookVerified *bool

	// Err is set when the connector answered with a business error
	Err *ErrorResponse
}

// Clone returns a shallow copy so handlers can fill outputs without touching the input
func (rd *RouterData) Clone() *RouterData {
	c := *rd
	return &c
}

// WithError records a business error, applying the attempt-status override when present
func (rd *RouterData) WithError(e *ErrorResponse) *RouterData {
	out := rd.Clone()
	out.Err = e
	if e != nil && e.AttemptStatus != nil {
		out.Status = *e.AttemptStatus
	}
	return out
}

// RequirePayment returns the payment request section or a missing-field error
func (rd *RouterData) RequirePayment() (*PaymentsRequestData, error) {
	if rd.Payment == nil {
		return nil, domain.NewDomainError(domain.ErrorCodeMissingRequiredField,
			"payment request data missing for flow "+rd.Flow.String())
	}
	return rd.Payment, nil
}

// RequireRefund returns the refund request section or a missing-field error
func (rd *RouterData) RequireRefund() (*RefundsRequestData, error) {
	if rd.Refund == nil {
		return nil, domain.NewDomainError(domain.ErrorCodeMissingRequiredField,
			"refund request data missing for flow "+rd.Flow.String())
	}
	return rd.Refund, nil
}
