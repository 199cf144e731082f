package north

import (
	"github.com/kevin07696/payment-router/internal/connector"
	pkgerrors "github.com/kevin07696/payment-router/pkg/errors"
)

// ResponseCode is an issuer response code as returned in AUTH_RESP and
// the JSON "response" field. Both North and EPX use the ISO 8583 set.
type ResponseCode struct {
	Code     string
	Display  string
	Category pkgerrors.ErrorCategory
	Message  string
}

type codeEntry struct {
	display  string
	category pkgerrors.ErrorCategory
	message  string
}

var responseCodes = map[string]codeEntry{
	"00": {"APPROVAL", pkgerrors.CategoryApproved, "Payment successful"},
	"10": {"PARTIAL APPROVAL", pkgerrors.CategoryApproved, "Payment partially approved"},

	"05": {"DECLINE", pkgerrors.CategoryDeclined, "Transaction declined by the issuing bank"},
	"12": {"INVALID TRANS", pkgerrors.CategoryInvalidRequest, "Transaction type not allowed for this card"},
	"13": {"INVALID AMOUNT", pkgerrors.CategoryInvalidRequest, "Invalid transaction amount"},
	"14": {"INVALID ACCT", pkgerrors.CategoryInvalidCard, "Invalid card number"},
	"51": {"INSUFF FUNDS", pkgerrors.CategoryInsufficientFunds, "Insufficient funds"},
	"54": {"EXP CARD", pkgerrors.CategoryExpiredCard, "Card expired"},
	"57": {"SERV NOT ALLOWED", pkgerrors.CategoryDeclined, "Transaction not permitted to cardholder"},
	"61": {"EXCEEDS LIMIT", pkgerrors.CategoryInsufficientFunds, "Withdrawal limit exceeded"},
	"62": {"RESTRICTED CARD", pkgerrors.CategoryDeclined, "Card is restricted"},
	"65": {"EXCEEDS FREQ", pkgerrors.CategoryDeclined, "Activity limit exceeded"},
	"82": {"CVV ERROR", pkgerrors.CategoryInvalidCard, "Card security code did not match"},
	"N7": {"CVV2 MISMATCH", pkgerrors.CategoryInvalidCard, "Card security code did not match"},

	"41": {"LOST CARD", pkgerrors.CategoryFraud, "Card reported lost"},
	"43": {"STOLEN CARD", pkgerrors.CategoryFraud, "Card reported stolen"},
	"59": {"SUSPECTED FRAUD", pkgerrors.CategoryFraud, "Declined for suspected fraud"},

	"91": {"ISSUER UNAVAIL", pkgerrors.CategoryNetworkError, "Issuer unavailable"},
	"96": {"SYSTEM ERROR", pkgerrors.CategorySystemError, "Processor system error"},
}

// LookupResponseCode resolves code. Unknown codes are generic declines.
func LookupResponseCode(code string) ResponseCode {
	e, ok := responseCodes[code]
	if !ok {
		return ResponseCode{Code: code, Display: "UNKNOWN", Category: pkgerrors.CategoryDeclined, Message: "Transaction declined"}
	}
	return ResponseCode{Code: code, Display: e.display, Category: e.category, Message: e.message}
}

// Approved reports whether the issuer accepted the transaction
func (r ResponseCode) Approved() bool {
	return r.Category == pkgerrors.CategoryApproved
}

// ErrorResponse turns a declined code into the connector error carried on
// RouterData. The processor's own text is kept as the reason.
func (r ResponseCode) ErrorResponse(statusCode int, gatewayMessage string) *connector.ErrorResponse {
	e := &connector.ErrorResponse{
		StatusCode: statusCode,
		Code:       r.Code,
		Message:    r.Message,
		Category:   r.Category,
	}
	if gatewayMessage != "" {
		e.Reason = &gatewayMessage
	}
	return e
}
