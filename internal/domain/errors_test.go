package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestDomainErrors_Messages tests that sentinel errors render code and message
func TestDomainErrors_Messages(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{name: "flow_not_supported", err: ErrFlowNotSupported, contains: "CONNECTOR_FLOW_NOT_SUPPORTED"},
		{name: "transport", err: ErrTransport, contains: "transport failed"},
		{name: "deserialization", err: ErrResponseDeserialization, contains: "deserialize"},
		{name: "webhook_authentication", err: ErrWebhookAuthentication, contains: "WEBHOOK_AUTHENTICATION_FAILED"},
		{name: "config_webhook_verification", err: ErrConfigWebhookVerification, contains: "no strategy is implemented"},
		{name: "lock_busy", err: ErrLockBusy, contains: "LOCK_BUSY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatalf("expected error to be defined, got nil")
			}
			if !strings.Contains(tt.err.Error(), tt.contains) {
				t.Errorf("error message %q does not contain %q", tt.err.Error(), tt.contains)
			}
		})
	}
}

// TestDomainErrors_Wrapping tests that domain errors can be wrapped and unwrapped correctly
func TestDomainErrors_Wrapping(t *testing.T) {
	cause := errors.New("connection reset by peer")

	wrapped := WrapError(ErrorCodeTransport, "north authorize", cause)
	outer := fmt.Errorf("execute flow: %w", wrapped)

	if !errors.Is(outer, cause) {
		t.Errorf("errors.Is failed: wrapped error does not match cause")
	}
	if !errors.Is(outer, ErrTransport) {
		t.Errorf("errors.Is failed: wrapped error does not match sentinel by code")
	}
	if errors.Is(outer, ErrLockBusy) {
		t.Errorf("errors.Is matched a sentinel with a different code")
	}
	if got := GetErrorCode(outer); got != ErrorCodeTransport {
		t.Errorf("GetErrorCode() = %q, want %q", got, ErrorCodeTransport)
	}
	if !strings.Contains(outer.Error(), "connection reset by peer") {
		t.Errorf("error %q does not include the cause", outer.Error())
	}
}

// TestDomainErrors_WithDetail tests that details are attached to fresh instances
func TestDomainErrors_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorCodePaymentNotFound, "payment not found").
		WithDetail("payment_id", "pay_1")

	if err.Details["payment_id"] != "pay_1" {
		t.Errorf("detail payment_id = %v, want pay_1", err.Details["payment_id"])
	}
	if len(ErrPaymentNotFound.Details) != 0 {
		t.Errorf("sentinel details were mutated: %v", ErrPaymentNotFound.Details)
	}
}

// TestDomainErrors_Classification tests retryable and config helpers
func TestDomainErrors_Classification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		config    bool
	}{
		{name: "transport", err: WrapError(ErrorCodeTransport, "x", errors.New("eof")), retryable: true},
		{name: "lock_busy", err: ErrLockBusy, retryable: true},
		{name: "database", err: ErrDatabaseError, retryable: true},
		{name: "deserialization", err: ErrResponseDeserialization},
		{name: "webhook_auth", err: ErrWebhookAuthentication},
		{name: "config_verification", err: ErrConfigWebhookVerification, config: true},
		{name: "auth_type", err: ErrFailedToObtainAuthType, config: true},
		{name: "config_invalid", err: WrapError(ErrorCodeConfigInvalid, "invalid configuration", errors.New("x")), config: true},
		{name: "event_type_not_found", err: ErrWebhookEventTypeNotFound},
		{name: "payment_not_found", err: fmt.Errorf("sync: %w", ErrPaymentNotFound)},
		{name: "plain_error", err: errors.New("boom")},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
			if got := IsConfigError(tt.err); got != tt.config {
				t.Errorf("IsConfigError() = %v, want %v", got, tt.config)
			}
		})
	}
}
