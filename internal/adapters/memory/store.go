// Package memory is an in-process PaymentStore for single-instance runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/kevin07696/payment-router/internal/domain/ports"
)

type recordKey struct {
	merchantID string
	id         string
}

type tables struct {
	intents  map[recordKey]domain.PaymentIntent
	attempts map[recordKey]domain.PaymentAttempt
	refunds  map[recordKey]domain.Refund
}

func newTables() *tables {
	return &tables{
		intents:  make(map[recordKey]domain.PaymentIntent),
		attempts: make(map[recordKey]domain.PaymentAttempt),
		refunds:  make(map[recordKey]domain.Refund),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.intents {
		c.intents[k] = v
	}
	for k, v := range t.attempts {
		c.attempts[k] = v
	}
	for k, v := range t.refunds {
		c.refunds[k] = v
	}
	return c
}

// Store keeps records in maps. Transactions work on a copy that replaces the
// live tables on commit; writers are serialised so no commit is lost.
type Store struct {
	mu   *sync.RWMutex
	txMu *sync.Mutex
	data *tables
	inTx bool
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{mu: &sync.RWMutex{}, txMu: &sync.Mutex{}, data: newTables()}
}

var _ ports.PaymentStore = (*Store)(nil)

func (s *Store) read(fn func(t *tables)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

func (s *Store) write(fn func(t *tables) error) error {
	if !s.inTx {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// WithTransaction runs fn against a private copy and publishes it when fn succeeds
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx ports.PaymentStore) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	var snapshot *tables
	s.read(func(t *tables) { snapshot = t.clone() })

	tx := &Store{mu: &sync.RWMutex{}, txMu: s.txMu, data: snapshot, inTx: true}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = tx.data
	s.mu.Unlock()
	return nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func (s *Store) GetIntent(ctx context.Context, merchantID, paymentID string) (*domain.PaymentIntent, error) {
	var (
		intent domain.PaymentIntent
		ok     bool
	)
	s.read(func(t *tables) { intent, ok = t.intents[recordKey{merchantID, paymentID}] })
	if !ok {
		return nil, paymentNotFound("payment_id", paymentID)
	}
	return &intent, nil
}

func (s *Store) CreateIntent(ctx context.Context, intent domain.PaymentIntent) error {
	return s.write(func(t *tables) error {
		k := recordKey{intent.MerchantID, intent.PaymentID}
		if _, exists := t.intents[k]; exists {
			return fmt.Errorf("intent %s already exists", intent.PaymentID)
		}
		t.intents[k] = intent
		return nil
	})
}

func (s *Store) UpdateIntent(ctx context.Context, intent domain.PaymentIntent) error {
	return s.write(func(t *tables) error {
		k := recordKey{intent.MerchantID, intent.PaymentID}
		if _, exists := t.intents[k]; !exists {
			return paymentNotFound("payment_id", intent.PaymentID)
		}
		t.intents[k] = intent
		return nil
	})
}

func (s *Store) GetAttempt(ctx context.Context, merchantID, attemptID string) (*domain.PaymentAttempt, error) {
	var (
		attempt domain.PaymentAttempt
		ok      bool
	)
	s.read(func(t *tables) { attempt, ok = t.attempts[recordKey{merchantID, attemptID}] })
	if !ok {
		return nil, paymentNotFound("attempt_id", attemptID)
	}
	return &attempt, nil
}

func (s *Store) GetActiveAttempt(ctx context.Context, merchantID, paymentID string) (*domain.PaymentAttempt, error) {
	intent, err := s.GetIntent(ctx, merchantID, paymentID)
	if err != nil {
		return nil, err
	}
	return s.GetAttempt(ctx, merchantID, intent.ActiveAttemptID)
}

func (s *Store) FindAttemptByConnectorTransactionID(ctx context.Context, merchantID, connector, connectorTxnID string) (*domain.PaymentAttempt, error) {
	return s.findAttempt(merchantID, connector, func(a domain.PaymentAttempt) bool {
		return a.ConnectorTransactionID != nil && *a.ConnectorTransactionID == connectorTxnID
	}, "connector_transaction_id", connectorTxnID)
}

func (s *Store) FindAttemptByPreprocessingID(ctx context.Context, merchantID, connector, preprocessingID string) (*domain.PaymentAttempt, error) {
	return s.findAttempt(merchantID, connector, func(a domain.PaymentAttempt) bool {
		return a.PreprocessingStepID != nil && *a.PreprocessingStepID == preprocessingID
	}, "preprocessing_id", preprocessingID)
}

func (s *Store) findAttempt(merchantID, connector string, match func(domain.PaymentAttempt) bool, field, value string) (*domain.PaymentAttempt, error) {
	var found *domain.PaymentAttempt
	s.read(func(t *tables) {
		for k, a := range t.attempts {
			if k.merchantID != merchantID || a.ConnectorName() != connector || !match(a) {
				continue
			}
			a := a
			found = &a
			return
		}
	})
	if found == nil {
		return nil, paymentNotFound(field, value)
	}
	return found, nil
}

func (s *Store) CreateAttempt(ctx context.Context, attempt domain.PaymentAttempt) error {
	return s.write(func(t *tables) error {
		k := recordKey{attempt.MerchantID, attempt.AttemptID}
		if _, exists := t.attempts[k]; exists {
			return fmt.Errorf("attempt %s already exists", attempt.AttemptID)
		}
		t.attempts[k] = attempt
		return nil
	})
}

func (s *Store) UpdateAttempt(ctx context.Context, attempt domain.PaymentAttempt) error {
	return s.write(func(t *tables) error {
		k := recordKey{attempt.MerchantID, attempt.AttemptID}
		if _, exists := t.attempts[k]; !exists {
			return paymentNotFound("attempt_id", attempt.AttemptID)
		}
		t.attempts[k] = attempt
		return nil
	})
}

func (s *Store) GetRefund(ctx context.Context, merchantID, refundID string) (*domain.Refund, error) {
	var (
		refund domain.Refund
		ok     bool
	)
	s.read(func(t *tables) { refund, ok = t.refunds[recordKey{merchantID, refundID}] })
	if !ok {
		return nil, refundNotFound("refund_id", refundID)
	}
	return &refund, nil
}

func (s *Store) FindRefundByConnectorRefundID(ctx context.Context, merchantID, connector, connectorRefundID string) (*domain.Refund, error) {
	var found *domain.Refund
	s.read(func(t *tables) {
		for k, r := range t.refunds {
			if k.merchantID == merchantID && r.Connector == connector &&
				r.ConnectorRefundID != nil && *r.ConnectorRefundID == connectorRefundID {
				r := r
				found = &r
				return
			}
		}
	})
	if found == nil {
		return nil, refundNotFound("connector_refund_id", connectorRefundID)
	}
	return found, nil
}

func (s *Store) CreateRefund(ctx context.Context, refund domain.Refund) error {
	return s.write(func(t *tables) error {
		k := recordKey{refund.MerchantID, refund.RefundID}
		if _, exists := t.refunds[k]; exists {
			return fmt.Errorf("refund %s already exists", refund.RefundID)
		}
		t.refunds[k] = refund
		return nil
	})
}

func (s *Store) UpdateRefund(ctx context.Context, refund domain.Refund) error {
	return s.write(func(t *tables) error {
		k := recordKey{refund.MerchantID, refund.RefundID}
		if _, exists := t.refunds[k]; !exists {
			return refundNotFound("refund_id", refund.RefundID)
		}
		t.refunds[k] = refund
		return nil
	})
}

func paymentNotFound(field, value string) error {
	return domain.NewDomainError(domain.ErrorCodePaymentNotFound, "payment not found").WithDetail(field, value)
}

func refundNotFound(field, value string) error {
	return domain.NewDomainError(domain.ErrorCodeRefundNotFound, "refund not found").WithDetail(field, value)
}
