// Package errors holds the processor-agnostic decline vocabulary that
// connector error codes are mapped onto.
package errors

// ErrorCategory represents the category of a connector decline or failure
type ErrorCategory string

const (
	CategoryApproved          ErrorCategory = "approved"
	CategoryDeclined          ErrorCategory = "declined"
	CategoryInsufficientFunds ErrorCategory = "insufficient_funds"
	CategoryInvalidCard       ErrorCategory = "invalid_card"
	CategoryExpiredCard       ErrorCategory = "expired_card"
	CategoryFraud             ErrorCategory = "fraud"
	CategorySystemError       ErrorCategory = "system_error"
	CategoryNetworkError      ErrorCategory = "network_error"
	CategoryInvalidRequest    ErrorCategory = "invalid_request"
)

type unified struct {
	code      string
	message   string
	retriable bool
}

var unifiedByCategory = map[ErrorCategory]unified{
	CategoryDeclined:          {code: "UE_1000", message: "Issue with payment method details"},
	CategoryInsufficientFunds: {code: "UE_1001", message: "Insufficient funds", retriable: true},
	CategoryInvalidCard:       {code: "UE_1002", message: "Invalid card details"},
	CategoryExpiredCard:       {code: "UE_1003", message: "Card expired"},
	CategoryFraud:             {code: "UE_2000", message: "Payment declined by risk checks"},
	CategorySystemError:       {code: "UE_9000", message: "Something went wrong at the processor", retriable: true},
	CategoryNetworkError:      {code: "UE_9001", message: "Processor unreachable", retriable: true},
	CategoryInvalidRequest:    {code: "UE_3000", message: "Request rejected by the processor"},
}

// Unified returns the router-wide code and message for the category.
// Approved and unknown categories have none.
func (c ErrorCategory) Unified() (code, message string, ok bool) {
	u, ok := unifiedByCategory[c]
	if !ok {
		return "", "", false
	}
	return u.code, u.message, true
}

// IsRetriable reports whether a payment declined with this category may succeed if retried later
func (c ErrorCategory) IsRetriable() bool {
	return unifiedByCategory[c].retriable
}
