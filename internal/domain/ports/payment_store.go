package ports

import (
	"context"

	"github.com/kevin07696/payment-router/internal/domain"
)

// PaymentStore persists intents, attempts and refunds.
// Lookups return a DomainError coded PAYMENT_NOT_FOUND or REFUND_NOT_FOUND when no row matches.
type PaymentStore interface {
	GetIntent(ctx context.Context, merchantID, paymentID string) (*domain.PaymentIntent, error)
	CreateIntent(ctx context.Context, intent domain.PaymentIntent) error
	UpdateIntent(ctx context.Context, intent domain.PaymentIntent) error

	GetAttempt(ctx context.Context, merchantID, attemptID string) (*domain.PaymentAttempt, error)
	GetActiveAttempt(ctx context.Context, merchantID, paymentID string) (*domain.PaymentAttempt, error)
	FindAttemptByConnectorTransactionID(ctx context.Context, merchantID, connector, connectorTxnID string) (*domain.PaymentAttempt, error)
	FindAttemptByPreprocessingID(ctx context.Context, merchantID, connector, preprocessingID string) (*domain.PaymentAttempt, error)
	CreateAttempt(ctx context.Context, attempt domain.PaymentAttempt) error
	UpdateAttempt(ctx context.Context, attempt domain.PaymentAttempt) error

	GetRefund(ctx context.Context, merchantID, refundID string) (*domain.Refund, error)
	FindRefundByConnectorRefundID(ctx context.Context, merchantID, connector, connectorRefundID string) (*domain.Refund, error)
	CreateRefund(ctx context.Context, refund domain.Refund) error
	UpdateRefund(ctx context.Context, refund domain.Refund) error

	// WithTransaction runs fn against a store bound to one transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx PaymentStore) error) error
}
