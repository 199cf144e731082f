// Package postgres is the pgx-backed PaymentStore.
//
// Each record is stored as a JSONB document next to the columns it is looked
// up by; the columns are rewritten from the document on every write.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/kevin07696/payment-router/internal/domain/ports"
)

const uniqueViolation = "23505"

// dbtx is satisfied by both the pool and a transaction
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements ports.PaymentStore on PostgreSQL
type Store struct {
	pool *pgxpool.Pool
	db   dbtx
	inTx bool
}

// NewStore creates a store on pool
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

var _ ports.PaymentStore = (*Store)(nil)

// WithTransaction binds fn to one transaction. Nested calls join the outer one.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx ports.PaymentStore) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return inTransaction(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &Store{pool: s.pool, db: tx, inTx: true})
	})
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- intents ---

func (s *Store) GetIntent(ctx context.Context, merchantID, paymentID string) (*domain.PaymentIntent, error) {
	var intent domain.PaymentIntent
	err := s.get(ctx, &intent, paymentNotFound("payment_id", paymentID),
		`SELECT document FROM payment_intents WHERE merchant_id = $1 AND payment_id = $2`,
		merchantID, paymentID)
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (s *Store) CreateIntent(ctx context.Context, intent domain.PaymentIntent) error {
	doc, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("marshal intent: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO payment_intents (merchant_id, payment_id, active_attempt_id, status, created_at, modified_at, document)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		intent.MerchantID, intent.PaymentID, intent.ActiveAttemptID, string(intent.Status),
		intent.CreatedAt, intent.ModifiedAt, doc)
	return writeErr(err, "create intent")
}

func (s *Store) UpdateIntent(ctx context.Context, intent domain.PaymentIntent) error {
	doc, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("marshal intent: %w", err)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE payment_intents
		SET active_attempt_id = $3, status = $4, modified_at = $5, document = $6
		WHERE merchant_id = $1 AND payment_id = $2`,
		intent.MerchantID, intent.PaymentID, intent.ActiveAttemptID, string(intent.Status), intent.ModifiedAt, doc)
	if err != nil {
		return writeErr(err, "update intent")
	}
	if tag.RowsAffected() == 0 {
		return paymentNotFound("payment_id", intent.PaymentID)
	}
	return nil
}

// --- attempts ---

func (s *Store) GetAttempt(ctx context.Context, merchantID, attemptID string) (*domain.PaymentAttempt, error) {
	return s.getAttempt(ctx, paymentNotFound("attempt_id", attemptID),
		`SELECT document FROM payment_attempts WHERE merchant_id = $1 AND attempt_id = $2`,
		merchantID, attemptID)
}

func (s *Store) GetActiveAttempt(ctx context.Context, merchantID, paymentID string) (*domain.PaymentAttempt, error) {
	return s.getAttempt(ctx, paymentNotFound("payment_id", paymentID), `
		SELECT a.document
		FROM payment_intents i
		JOIN payment_attempts a ON a.merchant_id = i.merchant_id AND a.attempt_id = i.active_attempt_id
		WHERE i.merchant_id = $1 AND i.payment_id = $2`,
		merchantID, paymentID)
}

func (s *Store) FindAttemptByConnectorTransactionID(ctx context.Context, merchantID, connector, connectorTxnID string) (*domain.PaymentAttempt, error) {
	return s.getAttempt(ctx, paymentNotFound("connector_transaction_id", connectorTxnID), `
		SELECT document FROM payment_attempts
		WHERE merchant_id = $1 AND connector = $2 AND connector_transaction_id = $3
		ORDER BY modified_at DESC
		LIMIT 1`,
		merchantID, connector, connectorTxnID)
}

func (s *Store) FindAttemptByPreprocessingID(ctx context.Context, merchantID, connector, preprocessingID string) (*domain.PaymentAttempt, error) {
	return s.getAttempt(ctx, paymentNotFound("preprocessing_id", preprocessingID), `
		SELECT document FROM payment_attempts
		WHERE merchant_id = $1 AND connector = $2 AND preprocessing_step_id = $3
		ORDER BY modified_at DESC
		LIMIT 1`,
		merchantID, connector, preprocessingID)
}

func (s *Store) getAttempt(ctx context.Context, notFound error, query string, args ...any) (*domain.PaymentAttempt, error) {
	var attempt domain.PaymentAttempt
	if err := s.get(ctx, &attempt, notFound, query, args...); err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (s *Store) CreateAttempt(ctx context.Context, attempt domain.PaymentAttempt) error {
	doc, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO payment_attempts (
			merchant_id, attempt_id, payment_id, connector, connector_transaction_id,
			preprocessing_step_id, status, created_at, modified_at, document
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		attempt.MerchantID, attempt.AttemptID, attempt.PaymentID, attempt.Connector, attempt.ConnectorTransactionID,
		attempt.PreprocessingStepID, string(attempt.Status), attempt.CreatedAt, attempt.ModifiedAt, doc)
	return writeErr(err, "create attempt")
}

func (s *Store) UpdateAttempt(ctx context.Context, attempt domain.PaymentAttempt) error {
	doc, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE payment_attempts
		SET connector = $3, connector_transaction_id = $4, preprocessing_step_id = $5,
			status = $6, modified_at = $7, document = $8
		WHERE merchant_id = $1 AND attempt_id = $2`,
		attempt.MerchantID, attempt.AttemptID, attempt.Connector, attempt.ConnectorTransactionID,
		attempt.PreprocessingStepID, string(attempt.Status), attempt.ModifiedAt, doc)
	if err != nil {
		return writeErr(err, "update attempt")
	}
	if tag.RowsAffected() == 0 {
		return paymentNotFound("attempt_id", attempt.AttemptID)
	}
	return nil
}

// --- refunds ---

func (s *Store) GetRefund(ctx context.Context, merchantID, refundID string) (*domain.Refund, error) {
	var refund domain.Refund
	err := s.get(ctx, &refund, refundNotFound("refund_id", refundID),
		`SELECT document FROM refunds WHERE merchant_id = $1 AND refund_id = $2`,
		merchantID, refundID)
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (s *Store) FindRefundByConnectorRefundID(ctx context.Context, merchantID, connector, connectorRefundID string) (*domain.Refund, error) {
	var refund domain.Refund
	err := s.get(ctx, &refund, refundNotFound("connector_refund_id", connectorRefundID), `
		SELECT document FROM refunds
		WHERE merchant_id = $1 AND connector = $2 AND connector_refund_id = $3
		ORDER BY modified_at DESC
		LIMIT 1`,
		merchantID, connector, connectorRefundID)
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (s *Store) CreateRefund(ctx context.Context, refund domain.Refund) error {
	doc, err := json.Marshal(refund)
	if err != nil {
		return fmt.Errorf("marshal refund: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO refunds (
			merchant_id, refund_id, payment_id, attempt_id, connector, connector_refund_id,
			status, created_at, modified_at, document
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		refund.MerchantID, refund.RefundID, refund.PaymentID, refund.AttemptID, refund.Connector,
		refund.ConnectorRefundID, string(refund.Status), refund.CreatedAt, refund.ModifiedAt, doc)
	return writeErr(err, "create refund")
}

func (s *Store) UpdateRefund(ctx context.Context, refund domain.Refund) error {
	doc, err := json.Marshal(refund)
	if err != nil {
		return fmt.Errorf("marshal refund: %w", err)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE refunds
		SET connector_refund_id = $3, status = $4, modified_at = $5, document = $6
		WHERE merchant_id = $1 AND refund_id = $2`,
		refund.MerchantID, refund.RefundID, refund.ConnectorRefundID, string(refund.Status), refund.ModifiedAt, doc)
	if err != nil {
		return writeErr(err, "update refund")
	}
	if tag.RowsAffected() == 0 {
		return refundNotFound("refund_id", refund.RefundID)
	}
	return nil
}

// get scans one JSONB document into out
func (s *Store) get(ctx context.Context, out any, notFound error, query string, args ...any) error {
	var doc []byte
	if err := s.db.QueryRow(ctx, query, args...).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound
		}
		return domain.WrapError(domain.ErrorCodeDatabaseError, "query failed", err)
	}
	if err := json.Unmarshal(doc, out); err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "corrupt stored document", err)
	}
	return nil
}

func writeErr(err error, op string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: record already exists: %w", op, err)
	}
	return domain.WrapError(domain.ErrorCodeDatabaseError, op, err)
}

func paymentNotFound(field, value string) error {
	return domain.NewDomainError(domain.ErrorCodePaymentNotFound, "payment not found").WithDetail(field, value)
}

func refundNotFound(field, value string) error {
	return domain.NewDomainError(domain.ErrorCodeRefundNotFound, "refund not found").WithDetail(field, value)
}
