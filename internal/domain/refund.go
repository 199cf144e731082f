package domain

import "time"

// RefundStatus is the lifecycle state of a refund at the connector
type RefundStatus string

const (
	RefundStatusPending            RefundStatus = "pending"
	RefundStatusSuccess            RefundStatus = "success"
	RefundStatusFailure            RefundStatus = "failure"
	RefundStatusManualReview       RefundStatus = "manual_review"
	RefundStatusTransactionFailure RefundStatus = "transaction_failure"
)

// IsTerminal reports whether the refund will not change further at the connector
func (s RefundStatus) IsTerminal() bool {
	return s == RefundStatusSuccess || s == RefundStatusFailure || s == RefundStatusTransactionFailure
}

// Refund is a request to return captured funds through the attempt's connector
type Refund struct {
	CreatedAt         time.Time    `json:"created_at"`
	ModifiedAt        time.Time    `json:"modified_at"`
	RefundID          string       `json:"refund_id"`
	PaymentID         string       `json:"payment_id"`
	AttemptID         string       `json:"attempt_id"`
	MerchantID        string       `json:"merchant_id"`
	Connector         string       `json:"connector"`
	ConnectorRefundID *string      `json:"connector_refund_id"`
	Currency          string       `json:"currency"`
	RefundAmount      MinorUnit    `json:"refund_amount"`
	Status            RefundStatus `json:"refund_status"`
	RefundReason      *string      `json:"refund_reason"`
	ErrorCode         *string      `json:"refund_error_code"`
	ErrorMessage      *string      `json:"refund_error_message"`
	UpdatedBy         string       `json:"updated_by"`
}

// RefundUpdate is a partial refund transition produced by Execute/RSync or a webhook
type RefundUpdate interface {
	applyRefund(r Refund) Refund
}

// RefundConnectorUpdate records a successful connector response
type RefundConnectorUpdate struct {
	ConnectorRefundID string
	Status            RefundStatus
	UpdatedBy         string
}

// RefundErrorUpdate records a connector or processing error
type RefundErrorUpdate struct {
	Status            *RefundStatus
	ErrorCode         *string
	ErrorMessage      *string
	ConnectorRefundID *string
	UpdatedBy         string
}

// RefundStatusUpdate only moves the refund status
type RefundStatusUpdate struct {
	Status    RefundStatus
	UpdatedBy string
}

func (u RefundConnectorUpdate) applyRefund(r Refund) Refund {
	r.ConnectorRefundID = &u.ConnectorRefundID
	r.Status = u.Status
	r.ErrorCode = nil
	r.ErrorMessage = nil
	r.UpdatedBy = u.UpdatedBy
	return r
}

func (u RefundErrorUpdate) applyRefund(r Refund) Refund {
	r.Status = unwrapOr(u.Status, r.Status)
	r.ErrorCode = u.ErrorCode
	r.ErrorMessage = u.ErrorMessage
	r.ConnectorRefundID = preferPtr(u.ConnectorRefundID, r.ConnectorRefundID)
	r.UpdatedBy = u.UpdatedBy
	return r
}

func (u RefundStatusUpdate) applyRefund(r Refund) Refund {
	r.Status = u.Status
	r.UpdatedBy = u.UpdatedBy
	return r
}

// Apply merges the update onto the refund and stamps ModifiedAt
func (r Refund) Apply(u RefundUpdate) Refund {
	next := u.applyRefund(r)
	next.ModifiedAt = nextModifiedAt(r.ModifiedAt)
	return next
}
