package fixtures

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/kevin07696/payment-router/internal/domain/ports"
)

// AttemptBuilder provides fluent API for building test payment attempts.
type AttemptBuilder struct {
	attempt domain.PaymentAttempt
}

// NewAttempt creates an attempt builder with sensible defaults: a $100.00 USD
// authorisation routed to "test_connector" and still in "started".
func NewAttempt() *AttemptBuilder {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &AttemptBuilder{
		attempt: domain.PaymentAttempt{
			CreatedAt:        now,
			ModifiedAt:       now,
			PaymentID:        "pay_" + uuid.NewString(),
			AttemptID:        "att_" + uuid.NewString(),
			MerchantID:       "merchant_" + uuid.NewString()[:8],
			Status:           domain.AttemptStatusStarted,
			Currency:         "USD",
			Amount:           10000,
			NetAmount:        10000,
			AmountCapturable: 10000,
			Connector:        StringPtr("test_connector"),
			UpdatedBy:        "fixtures",
		},
	}
}

func (b *AttemptBuilder) WithMerchantID(merchantID string) *AttemptBuilder {
	b.attempt.MerchantID = merchantID
	return b
}

func (b *AttemptBuilder) WithConnector(name string) *AttemptBuilder {
	b.attempt.Connector = StringPtr(name)
	return b
}

func (b *AttemptBuilder) WithConnectorTransactionID(id string) *AttemptBuilder {
	b.attempt.ConnectorTransactionID = StringPtr(id)
	return b
}

func (b *AttemptBuilder) WithPreprocessingID(id string) *AttemptBuilder {
	b.attempt.PreprocessingStepID = StringPtr(id)
	return b
}

// WithAmount sets the amount and recomputes the derived amounts
func (b *AttemptBuilder) WithAmount(amount int64) *AttemptBuilder {
	b.attempt.Amount = domain.MinorUnit(amount)
	b.attempt.NetAmount = domain.ComputeNetAmount(b.attempt.Amount, b.attempt.SurchargeAmount, b.attempt.TaxAmount)
	b.attempt.AmountCapturable = b.attempt.NetAmount
	return b
}

func (b *AttemptBuilder) WithSurcharge(surcharge, tax int64) *AttemptBuilder {
	b.attempt.SurchargeAmount = MinorUnitPtr(surcharge)
	b.attempt.TaxAmount = MinorUnitPtr(tax)
	b.attempt.NetAmount = domain.ComputeNetAmount(b.attempt.Amount, b.attempt.SurchargeAmount, b.attempt.TaxAmount)
	return b
}

func (b *AttemptBuilder) WithStatus(status domain.AttemptStatus) *AttemptBuilder {
	b.attempt.Status = status
	return b
}

func (b *AttemptBuilder) Authorized() *AttemptBuilder {
	b.attempt.Status = domain.AttemptStatusAuthorized
	if b.attempt.ConnectorTransactionID == nil {
		b.attempt.ConnectorTransactionID = StringPtr("txn_" + uuid.NewString()[:12])
	}
	return b
}

func (b *AttemptBuilder) Pending() *AttemptBuilder {
	b.attempt.Status = domain.AttemptStatusPending
	if b.attempt.ConnectorTransactionID == nil {
		b.attempt.ConnectorTransactionID = StringPtr("txn_" + uuid.NewString()[:12])
	}
	return b
}

func (b *AttemptBuilder) WithError(code, message string) *AttemptBuilder {
	b.attempt.ErrorCode = StringPtr(code)
	b.attempt.ErrorMessage = StringPtr(message)
	return b
}

func (b *AttemptBuilder) WithCaptureMethod(m domain.CaptureMethod) *AttemptBuilder {
	b.attempt.CaptureMethod = &m
	return b
}

func (b *AttemptBuilder) Build() domain.PaymentAttempt {
	return b.attempt
}

// IntentFor builds the intent that owns attempt, pointing at it as active
func IntentFor(attempt domain.PaymentAttempt) domain.PaymentIntent {
	return domain.PaymentIntent{
		CreatedAt:       attempt.CreatedAt,
		ModifiedAt:      attempt.ModifiedAt,
		PaymentID:       attempt.PaymentID,
		MerchantID:      attempt.MerchantID,
		ActiveAttemptID: attempt.AttemptID,
		Status:          domain.IntentStatusFromAttempt(attempt.Status),
		Currency:        attempt.Currency,
		Amount:          attempt.Amount,
		UpdatedBy:       attempt.UpdatedBy,
	}
}

// PendingRefund builds a refund against attempt awaiting the connector
func PendingRefund(attempt domain.PaymentAttempt, amount int64) domain.Refund {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.Refund{
		CreatedAt:    now,
		ModifiedAt:   now,
		RefundID:     "ref_" + uuid.NewString(),
		PaymentID:    attempt.PaymentID,
		AttemptID:    attempt.AttemptID,
		MerchantID:   attempt.MerchantID,
		Connector:    attempt.ConnectorName(),
		Currency:     attempt.Currency,
		RefundAmount: domain.MinorUnit(amount),
		Status:       domain.RefundStatusPending,
		UpdatedBy:    "fixtures",
	}
}

// Seed writes the intent and attempt into store
func Seed(ctx context.Context, store ports.PaymentStore, attempt domain.PaymentAttempt) error {
	if err := store.CreateIntent(ctx, IntentFor(attempt)); err != nil {
		return err
	}
	return store.CreateAttempt(ctx, attempt)
}
