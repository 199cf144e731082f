package domain

import (
	"encoding/json"
	"time"

	"github.com/kevin07696/payment-router/pkg/timeutil"
)

// AttemptUpdate is a partial transition of a PaymentAttempt. The set of
// variants is closed: only types in this package implement it.
//
// Field conventions shared by every variant:
//   - nil pointer: keep the prior value
//   - Patch[T] zero value: keep the prior value; Clear[T]() nulls the column
//   - empty json.RawMessage: keep the prior value
type AttemptUpdate interface {
	toInternal() attemptUpdateInternal
}

// Update rewrites the commercial shape of an attempt before confirmation
type Update struct {
	Amount             *MinorUnit
	NetAmount          *MinorUnit
	Currency           *string
	Status             *AttemptStatus
	AuthenticationType *AuthenticationType
	PaymentMethod      *string
	PaymentMethodType  *string
	PaymentToken       *string
	AmountToCapture    *MinorUnit
	CaptureMethod      *CaptureMethod
	SurchargeAmount    *MinorUnit
	TaxAmount          *MinorUnit
	UpdatedBy          string
}

// UpdateTrackers records routing decisions made while preparing the attempt
type UpdateTrackers struct {
	PaymentToken        *string
	Connector           *string
	AmountCapturable    *MinorUnit
	SurchargeAmount     *MinorUnit
	TaxAmount           *MinorUnit
	MerchantConnectorID Patch[string]
	UpdatedBy           string
}

// AuthenticationTypeUpdate switches between 3DS and non-3DS
type AuthenticationTypeUpdate struct {
	AuthenticationType AuthenticationType
	UpdatedBy          string
}

// ConfirmUpdate is written when the merchant confirms the payment, before the connector call
type ConfirmUpdate struct {
	Amount                   *MinorUnit
	NetAmount                *MinorUnit
	Currency                 *string
	Status                   AttemptStatus
	AuthenticationType       *AuthenticationType
	CaptureMethod            *CaptureMethod
	Connector                *string
	PaymentMethod            *string
	PaymentMethodType        *string
	PaymentToken             *string
	PaymentMethodID          Patch[string]
	MerchantConnectorID      Patch[string]
	ErrorCode                Patch[string]
	ErrorMessage             Patch[string]
	AmountCapturable         *MinorUnit
	SurchargeAmount          *MinorUnit
	TaxAmount                *MinorUnit
	ExternalThreeDSAttempted *bool
	AuthenticationConnector  *string
	AuthenticationID         *string
	UpdatedBy                string
}

// VoidUpdate cancels the attempt
type VoidUpdate struct {
	Status             AttemptStatus
	CancellationReason *string
	UpdatedBy          string
}

// BlocklistUpdate rejects the attempt because the instrument is blocked
type BlocklistUpdate struct {
	Status       AttemptStatus
	ErrorCode    Patch[string]
	ErrorMessage Patch[string]
	UpdatedBy    string
}

// RejectUpdate rejects the attempt before it reaches a connector
type RejectUpdate struct {
	Status       AttemptStatus
	ErrorCode    Patch[string]
	ErrorMessage Patch[string]
	UpdatedBy    string
}

// ResponseUpdate applies a successful connector response
type ResponseUpdate struct {
	Status                       AttemptStatus
	Connector                    *string
	ConnectorTransactionID       *string
	AuthenticationType           *AuthenticationType
	AmountCapturable             *MinorUnit
	PaymentMethodID              Patch[string]
	MandateID                    *string
	ConnectorMetadata            json.RawMessage
	PaymentToken                 *string
	ErrorCode                    Patch[string]
	ErrorMessage                 Patch[string]
	ErrorReason                  Patch[string]
	ConnectorResponseReferenceID *string
	AuthenticationData           json.RawMessage
	EncodedData                  *string
	UnifiedCode                  Patch[string]
	UnifiedMessage               Patch[string]
	ChargeID                     *string
	UpdatedBy                    string
}

// UnresolvedResponseUpdate applies a connector response whose outcome is unknown
type UnresolvedResponseUpdate struct {
	Status                       AttemptStatus
	Connector                    *string
	ConnectorTransactionID       *string
	PaymentMethodID              Patch[string]
	ErrorCode                    Patch[string]
	ErrorMessage                 Patch[string]
	ErrorReason                  Patch[string]
	ConnectorResponseReferenceID *string
	UpdatedBy                    string
}

// StatusUpdate only moves the attempt status
type StatusUpdate struct {
	Status    AttemptStatus
	UpdatedBy string
}

// ErrorUpdate applies a connector or processing error
type ErrorUpdate struct {
	Connector              *string
	Status                 AttemptStatus
	ErrorCode              Patch[string]
	ErrorMessage           Patch[string]
	ErrorReason            Patch[string]
	AmountCapturable       *MinorUnit
	UnifiedCode            Patch[string]
	UnifiedMessage         Patch[string]
	ConnectorTransactionID *string
	AuthenticationType     *AuthenticationType
	UpdatedBy              string
}

// CaptureUpdate records a capture request against the attempt
type CaptureUpdate struct {
	AmountToCapture      *MinorUnit
	MultipleCaptureCount *int16
	UpdatedBy            string
}

// AmountToCaptureUpdate adjusts the capturable balance after a (partial) capture
type AmountToCaptureUpdate struct {
	Status           AttemptStatus
	AmountCapturable MinorUnit
	UpdatedBy        string
}

// PreprocessingUpdate applies the result of a connector preprocessing step
type PreprocessingUpdate struct {
	Status                       *AttemptStatus
	PaymentMethodID              Patch[string]
	ConnectorMetadata            json.RawMessage
	PreprocessingStepID          *string
	ConnectorTransactionID       *string
	ConnectorResponseReferenceID *string
	UpdatedBy                    string
}

// ConnectorResponse stores connector-provided artefacts without moving status
type ConnectorResponse struct {
	AuthenticationData     json.RawMessage
	EncodedData            *string
	ConnectorTransactionID *string
	Connector              *string
	ChargeID               *string
	UpdatedBy              string
}

// IncrementalAuthorizationAmountUpdate raises the authorized amount
type IncrementalAuthorizationAmountUpdate struct {
	Amount           MinorUnit
	AmountCapturable MinorUnit
	UpdatedBy        string
}

// AuthenticationUpdate records the outcome of external 3DS authentication
type AuthenticationUpdate struct {
	Status                   AttemptStatus
	ExternalThreeDSAttempted *bool
	AuthenticationConnector  *string
	AuthenticationID         *string
	UpdatedBy                string
}

// ManualUpdate is an operator correction of the attempt's terminal state
type ManualUpdate struct {
	Status                 *AttemptStatus
	ErrorCode              Patch[string]
	ErrorMessage           Patch[string]
	ErrorReason            Patch[string]
	UnifiedCode            Patch[string]
	UnifiedMessage         Patch[string]
	ConnectorTransactionID *string
	UpdatedBy              string
}

// attemptUpdateInternal is the flat form every variant converts to before merging.
// Every field is absent unless the variant sets it.
type attemptUpdateInternal struct {
	amount                       *MinorUnit
	netAmount                    *MinorUnit
	currency                     *string
	status                       *AttemptStatus
	connector                    *string
	connectorTransactionID       *string
	connectorResponseReferenceID *string
	merchantConnectorID          Patch[string]
	chargeID                     *string
	amountToCapture              *MinorUnit
	amountCapturable             *MinorUnit
	surchargeAmount              *MinorUnit
	taxAmount                    *MinorUnit
	captureMethod                *CaptureMethod
	authenticationType           *AuthenticationType
	paymentMethod                *string
	paymentMethodType            *string
	paymentMethodID              Patch[string]
	paymentToken                 *string
	mandateID                    *string
	preprocessingStepID          *string
	cancellationReason           *string
	multipleCaptureCount         *int16
	errorCode                    Patch[string]
	errorMessage                 Patch[string]
	errorReason                  Patch[string]
	unifiedCode                  Patch[string]
	unifiedMessage               Patch[string]
	externalThreeDSAttempted     *bool
	authenticationConnector      *string
	authenticationID             *string
	connectorMetadata            json.RawMessage
	authenticationData           json.RawMessage
	encodedData                  *string
	updatedBy                    string
}

func (u Update) toInternal() attemptUpdateInternal {
	return attemptUpdateInternal{
		amount:             u.Amount,
		netAmount:          u.NetAmount,
		currency:           u.Currency,
		status:             u.Status,
		authenticationType: u.AuthenticationType,
		paymentMethod:      u.PaymentMethod,
		paymentMethodType:  u.PaymentMethodType,
		paymentToken:       u.PaymentToken,
		amountToCapture:    u.AmountToCapture,
		captureMethod:      u.CaptureMethod,
		surchargeAmount:    u.SurchargeAmount,
		taxAmount:          u.TaxAmount,
		updatedBy:          u.UpdatedBy,
	}
}

func (u UpdateTrackers) toInternal() attemptUpdateInternal {
	return attemptUpdateInternal{
		paymentToken:        u.PaymentToken,
		connector:           u.Connector,
		amountCapturable:    u.AmountCapturable,
		surchargeAmount:     u.SurchargeAmount,
		taxAmount:           u.TaxAmount,
		merchantConnectorID: u.MerchantConnectorID,
		updatedBy:           u.UpdatedBy,
	}
}

func (u AuthenticationTypeUpdate) toInternal() attemptUpdateInternal {
	return attemptUpdateInternal{
		authenticationType: ptr(u.AuthenticationType),
		updatedBy:          u.UpdatedBy,
	}
}

func (u ConfirmUpdate) toInternal() attemptUpdateInternal {
	return attemptUpdateInternal{
		amount:                   u.Amount,
		netAmount:                u.NetAmount,
		currency:                 u.Currency,
		status:                   ptr(u.Status),
		authenticationType:       u.AuthenticationType,
		captureMethod:            u.CaptureMethod,
		connector:                u.Connector,
		paymentMethod:            u.PaymentMethod,
		paymentMethodType:        u.PaymentMethodType,
		paymentToken:             u.PaymentToken,
		paymentMethodID:          u.PaymentMethodID,
		merchantConnectorID:      u.MerchantConnectorID,
		errorCode:                u.ErrorCode,
		errorMessage:             u.ErrorMessage,
		amountCapturable:         u.AmountCapturable,
		surchargeAmount:          u.SurchargeAmount,
		taxAmount:                u.TaxAmount,
		externalThreeDSAttempted: u.ExternalThreeDSAttempted,
		authenticationConnector:  u.AuthenticationConnector,
		authenticationID:         u.AuthenticationID,
		updatedBy:                u.UpdatedBy,
	}
}

func (u VoidUpdate) toInternal() attemptUpdateInternal {
	return attemptUpdateInternal{
		status:             ptr(u.Status),
		cancellationReason: u.CancellationReason,
		updatedBy:          u.UpdatedBy,
	}
}

func (u BlocklistUpdate) toInternal() attemptUpdateInternal {
	return attemptUpdateInternal{
		status:       ptr(u.Status),
		errorCode:    u.ErrorCode,
		errorMessage: u.ErrorMessage,
		updatedBy:    u.UpdatedBy,
	}
}

func (u RejectUpdate) toInternal() attemptUpdateInternal {
	return attemptUpdateInternal{
		status:       ptr(u.Status),
		errorCode:    u.ErrorCode,
		errorMessage: u.ErrorMessage,
		updatedBy:    u.UpdatedBy,
	}
}

func (u ResponseUpdate) toInternal() attemptUpdateInternal {
	return attemptUpdateInternal{
		status:                       ptr(u.Status),
		connector:                    u.Connector,
		connectorTransactionID:       u.ConnectorTransactionID,
		authenticationType:           u.AuthenticationType,
		amountCapturable:             u.AmountCapturable,
		paymentMethodID:              u.PaymentMethodID,
		mandateID:                    u.MandateID,
		connectorMetadata:            u.ConnectorMetadata,
		paymentToken:                 u.PaymentToken,
		errorCode:                    u.ErrorCode,
		errorMessage:                 u.ErrorMessage,
		errorReason:                  u.ErrorReason,
		connectorResponseReferenceID: u.ConnectorResponseReferenceID,
		authenticationData:           u.AuthenticationData,
		encodedData:                  u.EncodedData,
		unifiedCode:                  u.UnifiedCode,
		unifiedMessage:               u.UnifiedMessage,
		chargeID:                     u.ChargeID,
		updatedBy:                    u.UpdatedBy,
	}
}

func (u UnresolvedResponseUpdate) toInternal() attemptUpdateInternal {
	return attemptUpdateInternal{
		status:                       ptr(u.Status),
		connector:                    u.Connector,
		connectorTransactionID:       u.ConnectorTransactionID,
		paymentMethodID:              u.PaymentMethodID,
		errorCode:                    u.ErrorCode,
		errorMessage:                 u.ErrorMessage,
		errorReason:                  u.ErrorReason,
		connectorResponseReferenceID: u.ConnectorResponseReferenceID,
		updatedBy:                    u.UpdatedBy,
	}
}

func (u StatusUpdate) toInternal() attemptUpdateInternal {
	return attemptUpdateInternal{
		status:    ptr(u.Status),
		updatedBy: u.UpdatedBy,
	}
}

func (u ErrorUpdate) toInternal() attemptUpdateInternal {
	return attemptUpdateInternal{
		connector:              u.Connector,
		status:                 ptr(u.Status),
		errorCode:              u.ErrorCode,
		errorMessage:           u.ErrorMessage,
		errorReason:            u.ErrorReason,
		amountCapturable:       u.AmountCapturable,
		unifiedCode:            u.UnifiedCode,
		unifiedMessage:         u.UnifiedMessage,
		connectorTransactionID: u.ConnectorTransactionID,
		authenticationType:     u.AuthenticationType,
		updatedBy:              u.UpdatedBy,
	}
}

func (u CaptureUpdate) toInternal() attemptUpdateInternal {
	return attemptUpdateInternal{
		amountToCapture:      u.AmountToCapture,
		multipleCaptureCount: u.MultipleCaptureCount,
		updatedBy:            u.UpdatedBy,
	}
}

func (u AmountToCaptureUpdate) toInternal() attemptUpdateInternal {
	return attemptUpdateInternal{
		status:           ptr(u.Status),
		amountCapturable: ptr(u.AmountCapturable),
		updatedBy:        u.UpdatedBy,
	}
}

func (u PreprocessingUpdate) toInternal() attemptUpdateInternal {
	return attemptUpdateInternal{
		status:                       u.Status,
		paymentMethodID:              u.PaymentMethodID,
		connectorMetadata:            u.ConnectorMetadata,
		preprocessingStepID:          u.PreprocessingStepID,
		connectorTransactionID:       u.ConnectorTransactionID,
		connectorResponseReferenceID: u.ConnectorResponseReferenceID,
		updatedBy:                    u.UpdatedBy,
	}
}

func (u ConnectorResponse) toInternal() attemptUpdateInternal {
	return attemptUpdateInternal{
		authenticationData:     u.AuthenticationData,
		encodedData:            u.EncodedData,
		connectorTransactionID: u.ConnectorTransactionID,
		connector:              u.Connector,
		chargeID:               u.ChargeID,
		updatedBy:              u.UpdatedBy,
	}
}

func (u IncrementalAuthorizationAmountUpdate) toInternal() attemptUpdateInternal {
	return attemptUpdateInternal{
		amount:           ptr(u.Amount),
		amountCapturable: ptr(u.AmountCapturable),
		updatedBy:        u.UpdatedBy,
	}
}

func (u AuthenticationUpdate) toInternal() attemptUpdateInternal {
	return attemptUpdateInternal{
		status:                   ptr(u.Status),
		externalThreeDSAttempted: u.ExternalThreeDSAttempted,
		authenticationConnector:  u.AuthenticationConnector,
		authenticationID:         u.AuthenticationID,
		updatedBy:                u.UpdatedBy,
	}
}

func (u ManualUpdate) toInternal() attemptUpdateInternal {
	return attemptUpdateInternal{
		status:                 u.Status,
		errorCode:              u.ErrorCode,
		errorMessage:           u.ErrorMessage,
		errorReason:            u.ErrorReason,
		unifiedCode:            u.UnifiedCode,
		unifiedMessage:         u.UnifiedMessage,
		connectorTransactionID: u.ConnectorTransactionID,
		updatedBy:              u.UpdatedBy,
	}
}

// Apply merges u onto the attempt and returns the new record. The receiver is
// not modified. Net amount is recomputed from the merged components unless the
// update supplies one, and ModifiedAt always moves strictly forward.
func (a PaymentAttempt) Apply(u AttemptUpdate) PaymentAttempt {
	in := u.toInternal()
	next := a

	next.Amount = unwrapOr(in.amount, a.Amount)
	next.Currency = unwrapOr(in.currency, a.Currency)
	next.Status = unwrapOr(in.status, a.Status)
	next.AmountCapturable = unwrapOr(in.amountCapturable, a.AmountCapturable)

	next.SurchargeAmount = preferPtr(in.surchargeAmount, a.SurchargeAmount)
	next.TaxAmount = preferPtr(in.taxAmount, a.TaxAmount)
	next.AmountToCapture = preferPtr(in.amountToCapture, a.AmountToCapture)

	next.Connector = preferPtr(in.connector, a.Connector)
	next.ConnectorTransactionID = preferPtr(in.connectorTransactionID, a.ConnectorTransactionID)
	next.ConnectorResponseReferenceID = preferPtr(in.connectorResponseReferenceID, a.ConnectorResponseReferenceID)
	next.MerchantConnectorID = in.merchantConnectorID.ApplyTo(a.MerchantConnectorID)
	next.ChargeID = preferPtr(in.chargeID, a.ChargeID)

	next.CaptureMethod = preferPtr(in.captureMethod, a.CaptureMethod)
	next.AuthenticationType = preferPtr(in.authenticationType, a.AuthenticationType)
	next.PaymentMethod = preferPtr(in.paymentMethod, a.PaymentMethod)
	next.PaymentMethodType = preferPtr(in.paymentMethodType, a.PaymentMethodType)
	next.PaymentMethodID = in.paymentMethodID.ApplyTo(a.PaymentMethodID)
	next.PaymentToken = preferPtr(in.paymentToken, a.PaymentToken)
	next.MandateID = preferPtr(in.mandateID, a.MandateID)
	next.PreprocessingStepID = preferPtr(in.preprocessingStepID, a.PreprocessingStepID)
	next.CancellationReason = preferPtr(in.cancellationReason, a.CancellationReason)
	next.MultipleCaptureCount = preferPtr(in.multipleCaptureCount, a.MultipleCaptureCount)

	next.ErrorCode = in.errorCode.ApplyTo(a.ErrorCode)
	next.ErrorMessage = in.errorMessage.ApplyTo(a.ErrorMessage)
	next.ErrorReason = in.errorReason.ApplyTo(a.ErrorReason)
	next.UnifiedCode = in.unifiedCode.ApplyTo(a.UnifiedCode)
	next.UnifiedMessage = in.unifiedMessage.ApplyTo(a.UnifiedMessage)

	next.ExternalThreeDSAuthenticationAttempted = preferPtr(in.externalThreeDSAttempted, a.ExternalThreeDSAuthenticationAttempted)
	next.AuthenticationConnector = preferPtr(in.authenticationConnector, a.AuthenticationConnector)
	next.AuthenticationID = preferPtr(in.authenticationID, a.AuthenticationID)

	next.ConnectorMetadata = preferRaw(in.connectorMetadata, a.ConnectorMetadata)
	next.AuthenticationData = preferRaw(in.authenticationData, a.AuthenticationData)
	next.EncodedData = preferPtr(in.encodedData, a.EncodedData)

	if in.updatedBy != "" {
		next.UpdatedBy = in.updatedBy
	}

	next.NetAmount = unwrapOr(in.netAmount, ComputeNetAmount(next.Amount, next.SurchargeAmount, next.TaxAmount))
	next.ModifiedAt = nextModifiedAt(a.ModifiedAt)

	return next
}

func preferRaw(update, prior json.RawMessage) json.RawMessage {
	if len(update) > 0 {
		return update
	}
	return prior
}

func nextModifiedAt(prior time.Time) time.Time {
	return timeutil.NowAfter(prior)
}
