package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Connector contract errors (CONNECTOR_*)
	ErrorCodeFlowNotSupported            ErrorCode = "CONNECTOR_FLOW_NOT_SUPPORTED"
	ErrorCodeNotImplemented              ErrorCode = "CONNECTOR_NOT_IMPLEMENTED"
	ErrorCodeFailedToObtainAuthType      ErrorCode = "CONNECTOR_AUTH_TYPE_INVALID"
	ErrorCodeConnectorNotFound           ErrorCode = "CONNECTOR_NOT_FOUND"
	ErrorCodeMissingRequiredField        ErrorCode = "CONNECTOR_MISSING_REQUIRED_FIELD"
	ErrorCodeRequestEncoding             ErrorCode = "CONNECTOR_REQUEST_ENCODING_FAILED"
	ErrorCodeResponseDeserialization     ErrorCode = "CONNECTOR_RESPONSE_DESERIALIZATION_FAILED"
	ErrorCodeTransport                   ErrorCode = "CONNECTOR_TRANSPORT_FAILED"
	ErrorCodeWebhookSourceVerification   ErrorCode = "CONNECTOR_WEBHOOK_SOURCE_VERIFICATION_FAILED"
	ErrorCodeWebhookVerificationSecret   ErrorCode = "CONNECTOR_WEBHOOK_VERIFICATION_SECRET_NOT_FOUND"
	ErrorCodeWebhookResourceObjectAbsent ErrorCode = "CONNECTOR_WEBHOOK_RESOURCE_OBJECT_NOT_FOUND"

	// Webhook pipeline errors (WEBHOOK_*)
	ErrorCodeWebhookAuthentication    ErrorCode = "WEBHOOK_AUTHENTICATION_FAILED"
	ErrorCodeWebhookBodyDecoding      ErrorCode = "WEBHOOK_BODY_DECODING_FAILED"
	ErrorCodeWebhookEventTypeNotFound ErrorCode = "WEBHOOK_EVENT_TYPE_NOT_FOUND"
	ErrorCodeWebhookReferenceNotFound ErrorCode = "WEBHOOK_REFERENCE_ID_NOT_FOUND"

	// Configuration errors (CONFIG_*)
	ErrorCodeConfigWebhookVerification ErrorCode = "CONFIG_WEBHOOK_VERIFICATION"
	ErrorCodeConfigInvalid             ErrorCode = "CONFIG_INVALID"

	// Record errors
	ErrorCodePaymentNotFound ErrorCode = "PAYMENT_NOT_FOUND"
	ErrorCodeRefundNotFound  ErrorCode = "REFUND_NOT_FOUND"

	// Lock errors (LOCK_*)
	ErrorCodeLockBusy          ErrorCode = "LOCK_BUSY"
	ErrorCodeLockReleaseFailed ErrorCode = "LOCK_RELEASE_FAILED"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code, so sentinel instances work with errors.Is
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsRetryable reports whether the caller may retry the same operation later.
// Transport failures, lock contention and database faults are transient; everything
// else (config, auth, processor business errors, parse failures) is not.
func IsRetryable(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeTransport, ErrorCodeLockBusy, ErrorCodeDatabaseError:
		return true
	}
	return false
}

// IsConfigError reports errors caused by deployment configuration rather than input
func IsConfigError(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeConfigWebhookVerification,
		ErrorCodeConfigInvalid,
		ErrorCodeFailedToObtainAuthType,
		ErrorCodeConnectorNotFound,
		ErrorCodeWebhookVerificationSecret:
		return true
	}
	return false
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodePaymentNotFound ||
		code == ErrorCodeRefundNotFound ||
		code == ErrorCodeWebhookReferenceNotFound
}

// Sentinel instances for errors.Is comparisons. Never mutate these; use
// NewDomainError or WrapError when details are needed.
var (
	ErrFlowNotSupported          = NewDomainError(ErrorCodeFlowNotSupported, "flow not supported by connector")
	ErrNotImplemented            = NewDomainError(ErrorCodeNotImplemented, "not implemented")
	ErrFailedToObtainAuthType    = NewDomainError(ErrorCodeFailedToObtainAuthType, "failed to obtain authentication type")
	ErrConnectorNotFound         = NewDomainError(ErrorCodeConnectorNotFound, "connector not registered")
	ErrTransport                 = NewDomainError(ErrorCodeTransport, "connector transport failed")
	ErrResponseDeserialization   = NewDomainError(ErrorCodeResponseDeserialization, "failed to deserialize connector response")
	ErrWebhookAuthentication     = NewDomainError(ErrorCodeWebhookAuthentication, "webhook source verification failed")
	ErrWebhookBodyDecoding       = NewDomainError(ErrorCodeWebhookBodyDecoding, "failed to decode webhook body")
	ErrWebhookEventTypeNotFound  = NewDomainError(ErrorCodeWebhookEventTypeNotFound, "webhook event type not found")
	ErrWebhookReferenceNotFound  = NewDomainError(ErrorCodeWebhookReferenceNotFound, "webhook reference id not found")
	ErrConfigWebhookVerification = NewDomainError(ErrorCodeConfigWebhookVerification, "webhook source verification is mandatory but no strategy is implemented")
	ErrPaymentNotFound           = NewDomainError(ErrorCodePaymentNotFound, "payment not found")
	ErrRefundNotFound            = NewDomainError(ErrorCodeRefundNotFound, "refund not found")
	ErrLockBusy                  = NewDomainError(ErrorCodeLockBusy, "resource is locked by another request")
	ErrDatabaseError             = NewDomainError(ErrorCodeDatabaseError, "database error")
)
