package domain

import (
	"encoding/json"
	"time"
)

// MinorUnit is an amount in the currency's smallest unit (cents for USD)
type MinorUnit int64

// AttemptStatus is the lifecycle state of one payment attempt
type AttemptStatus string

const (
	AttemptStatusStarted                     AttemptStatus = "started"
	AttemptStatusAuthenticationFailed        AttemptStatus = "authentication_failed"
	AttemptStatusRouterDeclined              AttemptStatus = "router_declined"
	AttemptStatusAuthenticationPending       AttemptStatus = "authentication_pending"
	AttemptStatusAuthenticationSuccessful    AttemptStatus = "authentication_successful"
	AttemptStatusAuthorized                  AttemptStatus = "authorized"
	AttemptStatusAuthorizationFailed         AttemptStatus = "authorization_failed"
	AttemptStatusCharged                     AttemptStatus = "charged"
	AttemptStatusAuthorizing                 AttemptStatus = "authorizing"
	AttemptStatusCodInitiated                AttemptStatus = "cod_initiated"
	AttemptStatusVoided                      AttemptStatus = "voided"
	AttemptStatusVoidInitiated               AttemptStatus = "void_initiated"
	AttemptStatusCaptureInitiated            AttemptStatus = "capture_initiated"
	AttemptStatusCaptureFailed               AttemptStatus = "capture_failed"
	AttemptStatusVoidFailed                  AttemptStatus = "void_failed"
	AttemptStatusAutoRefunded                AttemptStatus = "auto_refunded"
	AttemptStatusPartialCharged              AttemptStatus = "partial_charged"
	AttemptStatusPartialChargedAndChargeable AttemptStatus = "partial_charged_and_chargeable"
	AttemptStatusUnresolved                  AttemptStatus = "unresolved"
	AttemptStatusPending                     AttemptStatus = "pending"
	AttemptStatusFailure                     AttemptStatus = "failure"
	AttemptStatusPaymentMethodAwaited        AttemptStatus = "payment_method_awaited"
	AttemptStatusConfirmationAwaited         AttemptStatus = "confirmation_awaited"
	AttemptStatusDeviceDataCollectionPending AttemptStatus = "device_data_collection_pending"
)

// IsTerminal reports whether no further processor-side transition is expected
func (s AttemptStatus) IsTerminal() bool {
	switch s {
	case AttemptStatusCharged,
		AttemptStatusAutoRefunded,
		AttemptStatusVoided,
		AttemptStatusFailure,
		AttemptStatusAuthorizationFailed,
		AttemptStatusAuthenticationFailed,
		AttemptStatusRouterDeclined,
		AttemptStatusCaptureFailed,
		AttemptStatusVoidFailed:
		return true
	}
	return false
}

// IsFailure reports whether the attempt ended in a processor or router decline
func (s AttemptStatus) IsFailure() bool {
	return IntentStatusFromAttempt(s) == IntentStatusFailed
}

// CaptureMethod controls when authorized funds are captured
type CaptureMethod string

const (
	CaptureMethodAutomatic           CaptureMethod = "automatic"
	CaptureMethodManual              CaptureMethod = "manual"
	CaptureMethodManualMultiple      CaptureMethod = "manual_multiple"
	CaptureMethodScheduled           CaptureMethod = "scheduled"
	CaptureMethodSequentialAutomatic CaptureMethod = "sequential_automatic"
)

// AuthenticationType is the cardholder authentication requested for the attempt
type AuthenticationType string

const (
	AuthenticationTypeThreeDS   AuthenticationType = "three_ds"
	AuthenticationTypeNoThreeDS AuthenticationType = "no_three_ds"
)

// PaymentAttempt is one try at moving a payment through one connector
type PaymentAttempt struct {
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt time.Time  `json:"modified_at"`
	LastSynced *time.Time `json:"last_synced"`

	PaymentID  string `json:"payment_id"`
	AttemptID  string `json:"attempt_id"`
	MerchantID string `json:"merchant_id"`

	Status   AttemptStatus `json:"status"`
	Currency string        `json:"currency"`

	Amount           MinorUnit  `json:"amount"`
	SurchargeAmount  *MinorUnit `json:"surcharge_amount"`
	TaxAmount        *MinorUnit `json:"tax_amount"`
	NetAmount        MinorUnit  `json:"net_amount"`
	AmountCapturable MinorUnit  `json:"amount_capturable"`
	AmountToCapture  *MinorUnit `json:"amount_to_capture"`

	Connector                    *string `json:"connector"`
	ConnectorTransactionID       *string `json:"connector_transaction_id"`
	ConnectorResponseReferenceID *string `json:"connector_response_reference_id"`
	MerchantConnectorID          *string `json:"merchant_connector_id"`
	ChargeID                     *string `json:"charge_id"`

	CaptureMethod        *CaptureMethod      `json:"capture_method"`
	AuthenticationType   *AuthenticationType `json:"authentication_type"`
	PaymentMethod        *string             `json:"payment_method"`
	PaymentMethodType    *string             `json:"payment_method_type"`
	PaymentMethodID      *string             `json:"payment_method_id"`
	PaymentToken         *string             `json:"payment_token"`
	MandateID            *string             `json:"mandate_id"`
	PreprocessingStepID  *string             `json:"preprocessing_step_id"`
	CancellationReason   *string             `json:"cancellation_reason"`
	MultipleCaptureCount *int16              `json:"multiple_capture_count"`

	ErrorCode      *string `json:"error_code"`
	ErrorMessage   *string `json:"error_message"`
	ErrorReason    *string `json:"error_reason"`
	UnifiedCode    *string `json:"unified_code"`
	UnifiedMessage *string `json:"unified_message"`

	ExternalThreeDSAuthenticationAttempted *bool   `json:"external_three_ds_authentication_attempted"`
	AuthenticationConnector                *string `json:"authentication_connector"`
	AuthenticationID                       *string `json:"authentication_id"`

	ConnectorMetadata  json.RawMessage `json:"connector_metadata"`
	AuthenticationData json.RawMessage `json:"authentication_data"`
	EncodedData        *string         `json:"encoded_data"`

	UpdatedBy string `json:"updated_by"`
}

// ComputeNetAmount returns amount + surcharge + tax, treating absent components as zero
func ComputeNetAmount(amount MinorUnit, surcharge, tax *MinorUnit) MinorUnit {
	net := amount
	if surcharge != nil {
		net += *surcharge
	}
	if tax != nil {
		net += *tax
	}
	return net
}

// ConnectorName returns the routed connector or an empty string
func (a *PaymentAttempt) ConnectorName() string {
	if a.Connector == nil {
		return ""
	}
	return *a.Connector
}

// IntentStatus is the merchant-visible state of a payment
type IntentStatus string

const (
	IntentStatusSucceeded                      IntentStatus = "succeeded"
	IntentStatusFailed                         IntentStatus = "failed"
	IntentStatusCancelled                      IntentStatus = "cancelled"
	IntentStatusProcessing                     IntentStatus = "processing"
	IntentStatusRequiresCustomerAction         IntentStatus = "requires_customer_action"
	IntentStatusRequiresMerchantAction         IntentStatus = "requires_merchant_action"
	IntentStatusRequiresPaymentMethod          IntentStatus = "requires_payment_method"
	IntentStatusRequiresConfirmation           IntentStatus = "requires_confirmation"
	IntentStatusRequiresCapture                IntentStatus = "requires_capture"
	IntentStatusPartiallyCaptured              IntentStatus = "partially_captured"
	IntentStatusPartiallyCapturedAndCapturable IntentStatus = "partially_captured_and_capturable"
)

// IntentStatusFromAttempt maps the active attempt's state onto the intent
func IntentStatusFromAttempt(s AttemptStatus) IntentStatus {
	switch s {
	case AttemptStatusCharged, AttemptStatusAutoRefunded:
		return IntentStatusSucceeded
	case AttemptStatusConfirmationAwaited:
		return IntentStatusRequiresConfirmation
	case AttemptStatusPaymentMethodAwaited:
		return IntentStatusRequiresPaymentMethod
	case AttemptStatusAuthorized:
		return IntentStatusRequiresCapture
	case AttemptStatusAuthenticationPending, AttemptStatusDeviceDataCollectionPending:
		return IntentStatusRequiresCustomerAction
	case AttemptStatusUnresolved:
		return IntentStatusRequiresMerchantAction
	case AttemptStatusPartialCharged:
		return IntentStatusPartiallyCaptured
	case AttemptStatusPartialChargedAndChargeable:
		return IntentStatusPartiallyCapturedAndCapturable
	case AttemptStatusVoided:
		return IntentStatusCancelled
	case AttemptStatusAuthenticationFailed,
		AttemptStatusAuthorizationFailed,
		AttemptStatusVoidFailed,
		AttemptStatusRouterDeclined,
		AttemptStatusCaptureFailed,
		AttemptStatusFailure:
		return IntentStatusFailed
	default:
		return IntentStatusProcessing
	}
}

// PaymentIntent is the merchant-facing payment; it points at its active attempt
type PaymentIntent struct {
	CreatedAt       time.Time    `json:"created_at"`
	ModifiedAt      time.Time    `json:"modified_at"`
	PaymentID       string       `json:"payment_id"`
	MerchantID      string       `json:"merchant_id"`
	ActiveAttemptID string       `json:"active_attempt_id"`
	Status          IntentStatus `json:"status"`
	Currency        string       `json:"currency"`
	Amount          MinorUnit    `json:"amount"`
	AmountCaptured  *MinorUnit   `json:"amount_captured"`
	UpdatedBy       string       `json:"updated_by"`
}

// SyncWithAttempt derives intent state from a freshly merged attempt.
// Captured amount is only recorded once the attempt has actually charged.
func (i PaymentIntent) SyncWithAttempt(a PaymentAttempt, at time.Time) PaymentIntent {
	i.Status = IntentStatusFromAttempt(a.Status)
	switch a.Status {
	case AttemptStatusCharged:
		captured := a.NetAmount
		if a.AmountToCapture != nil {
			captured = *a.AmountToCapture
		}
		i.AmountCaptured = &captured
	case AttemptStatusPartialCharged, AttemptStatusPartialChargedAndChargeable:
		if a.AmountToCapture != nil {
			captured := *a.AmountToCapture
			i.AmountCaptured = &captured
		}
	}
	i.ActiveAttemptID = a.AttemptID
	i.UpdatedBy = a.UpdatedBy
	if at.After(i.ModifiedAt) {
		i.ModifiedAt = at
	}
	return i
}
