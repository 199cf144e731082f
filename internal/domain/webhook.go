package domain

import "fmt"

// IncomingWebhookEvent is the router-level classification of a connector notification
type IncomingWebhookEvent string

const (
	WebhookEventPaymentIntentSuccess              IncomingWebhookEvent = "payment_intent_success"
	WebhookEventPaymentIntentFailure              IncomingWebhookEvent = "payment_intent_failure"
	WebhookEventPaymentIntentProcessing           IncomingWebhookEvent = "payment_intent_processing"
	WebhookEventPaymentIntentCancelled            IncomingWebhookEvent = "payment_intent_cancelled"
	WebhookEventPaymentIntentCancelFailure        IncomingWebhookEvent = "payment_intent_cancel_failure"
	WebhookEventPaymentIntentAuthorizationSuccess IncomingWebhookEvent = "payment_intent_authorization_success"
	WebhookEventPaymentIntentAuthorizationFailure IncomingWebhookEvent = "payment_intent_authorization_failure"
	WebhookEventPaymentIntentCaptureSuccess       IncomingWebhookEvent = "payment_intent_capture_success"
	WebhookEventPaymentIntentCaptureFailure       IncomingWebhookEvent = "payment_intent_capture_failure"
	WebhookEventPaymentActionRequired             IncomingWebhookEvent = "payment_action_required"
	WebhookEventRefundSuccess                     IncomingWebhookEvent = "refund_success"
	WebhookEventRefundFailure                     IncomingWebhookEvent = "refund_failure"
	WebhookEventDisputeOpened                     IncomingWebhookEvent = "dispute_opened"
	WebhookEventMandateActive                     IncomingWebhookEvent = "mandate_active"
	WebhookEventEndpointVerification              IncomingWebhookEvent = "endpoint_verification"
	WebhookEventEventNotSupported                 IncomingWebhookEvent = "event_not_supported"
)

var knownWebhookEvents = map[IncomingWebhookEvent]struct{}{
	WebhookEventPaymentIntentSuccess:              {},
	WebhookEventPaymentIntentFailure:              {},
	WebhookEventPaymentIntentProcessing:           {},
	WebhookEventPaymentIntentCancelled:            {},
	WebhookEventPaymentIntentCancelFailure:        {},
	WebhookEventPaymentIntentAuthorizationSuccess: {},
	WebhookEventPaymentIntentAuthorizationFailure: {},
	WebhookEventPaymentIntentCaptureSuccess:       {},
	WebhookEventPaymentIntentCaptureFailure:       {},
	WebhookEventPaymentActionRequired:             {},
	WebhookEventRefundSuccess:                     {},
	WebhookEventRefundFailure:                     {},
	WebhookEventDisputeOpened:                     {},
	WebhookEventMandateActive:                     {},
	WebhookEventEndpointVerification:              {},
	WebhookEventEventNotSupported:                 {},
}

// Known reports whether e is one of the router's event kinds
func (e IncomingWebhookEvent) Known() bool {
	_, ok := knownWebhookEvents[e]
	return ok
}

// WebhookFlow is the reconciliation pipeline an event belongs to
type WebhookFlow string

const (
	WebhookFlowPayment        WebhookFlow = "payment"
	WebhookFlowRefund         WebhookFlow = "refund"
	WebhookFlowDispute        WebhookFlow = "dispute"
	WebhookFlowMandate        WebhookFlow = "mandate"
	WebhookFlowReturnResponse WebhookFlow = "return_response"
)

// Flow maps the event onto its reconciliation pipeline
func (e IncomingWebhookEvent) Flow() WebhookFlow {
	switch e {
	case WebhookEventPaymentIntentSuccess,
		WebhookEventPaymentIntentFailure,
		WebhookEventPaymentIntentProcessing,
		WebhookEventPaymentIntentCancelled,
		WebhookEventPaymentIntentCancelFailure,
		WebhookEventPaymentIntentAuthorizationSuccess,
		WebhookEventPaymentIntentAuthorizationFailure,
		WebhookEventPaymentIntentCaptureSuccess,
		WebhookEventPaymentIntentCaptureFailure,
		WebhookEventPaymentActionRequired:
		return WebhookFlowPayment
	case WebhookEventRefundSuccess, WebhookEventRefundFailure:
		return WebhookFlowRefund
	case WebhookEventDisputeOpened:
		return WebhookFlowDispute
	case WebhookEventMandateActive:
		return WebhookFlowMandate
	default:
		return WebhookFlowReturnResponse
	}
}

// ReferenceKind tells whether a webhook points at a payment or a refund
type ReferenceKind string

const (
	ReferenceKindPayment ReferenceKind = "payment"
	ReferenceKindRefund  ReferenceKind = "refund"
)

// PaymentIDType names which identifier a payment reference carries
type PaymentIDType string

const (
	PaymentIDTypePaymentIntentID        PaymentIDType = "payment_intent_id"
	PaymentIDTypeConnectorTransactionID PaymentIDType = "connector_transaction_id"
	PaymentIDTypePaymentAttemptID       PaymentIDType = "payment_attempt_id"
	PaymentIDTypePreprocessingID        PaymentIDType = "preprocessing_id"
)

// RefundIDType names which identifier a refund reference carries
type RefundIDType string

const (
	RefundIDTypeRefundID          RefundIDType = "refund_id"
	RefundIDTypeConnectorRefundID RefundIDType = "connector_refund_id"
)

// ObjectReferenceID identifies the record a webhook is about
type ObjectReferenceID struct {
	Kind          ReferenceKind
	PaymentIDType PaymentIDType
	RefundIDType  RefundIDType
	ID            string
}

// PaymentReference builds a payment reference
func PaymentReference(idType PaymentIDType, id string) ObjectReferenceID {
	return ObjectReferenceID{Kind: ReferenceKindPayment, PaymentIDType: idType, ID: id}
}

// RefundReference builds a refund reference
func RefundReference(idType RefundIDType, id string) ObjectReferenceID {
	return ObjectReferenceID{Kind: ReferenceKindRefund, RefundIDType: idType, ID: id}
}

func (r ObjectReferenceID) String() string {
	if r.Kind == ReferenceKindRefund {
		return fmt.Sprintf("refund:%s:%s", r.RefundIDType, r.ID)
	}
	return fmt.Sprintf("payment:%s:%s", r.PaymentIDType, r.ID)
}

// TrackerKind is the outcome category of a processed webhook
type TrackerKind string

const (
	TrackerKindPayment  TrackerKind = "payment"
	TrackerKindRefund   TrackerKind = "refund"
	TrackerKindNoEffect TrackerKind = "no_effect"
)

// WebhookResponseTracker reports what a webhook did to router state
type WebhookResponseTracker struct {
	Kind          TrackerKind
	PaymentID     string
	RefundID      string
	PaymentStatus IntentStatus
	RefundStatus  RefundStatus
}

// NoEffectTracker is returned for acknowledged webhooks that changed nothing
func NoEffectTracker() WebhookResponseTracker {
	return WebhookResponseTracker{Kind: TrackerKindNoEffect}
}
