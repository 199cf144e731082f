package payment

import (
	"context"
	"fmt"

	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/kevin07696/payment-router/internal/domain/ports"
	"github.com/kevin07696/payment-router/internal/lock"
)

// SyncRequest asks for the processor's view of a payment or refund to be merged
// into router state. Action is Trigger for a live status inquiry or
// HandleResponseBody when a verified webhook already carries the resource.
type SyncRequest struct {
	MerchantID string
	Connector  string
	Reference  domain.ObjectReferenceID
	Action     connector.CallAction
	UpdatedBy  string

	// OnLocked, when set, runs once the payment lock is held
	OnLocked func()
}

// SyncResult is the persisted payment state after a sync
type SyncResult struct {
	Attempt domain.PaymentAttempt
	Intent  domain.PaymentIntent
	Err     *connector.ErrorResponse
}

// Sync runs PSync for the referenced attempt under the payment's lock and writes
// the merged attempt and intent in one transaction. The attempt is re-read after
// the lock is taken so concurrent syncs never overwrite each other.
func (s *Service) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	if req.Reference.Kind != domain.ReferenceKindPayment {
		return nil, domain.NewDomainError(domain.ErrorCodeWebhookReferenceNotFound, "reference does not point at a payment").
			WithDetail("reference", req.Reference.String())
	}

	found, err := s.resolveAttempt(ctx, req.MerchantID, req.Connector, req.Reference)
	if err != nil {
		return nil, err
	}

	var result *SyncResult
	err = s.locker.WithLock(ctx, lock.PaymentKey(req.MerchantID, found.PaymentID), func(ctx context.Context) error {
		if req.OnLocked != nil {
			req.OnLocked()
		}
		attempt, err := s.store.GetAttempt(ctx, req.MerchantID, found.AttemptID)
		if err != nil {
			return err
		}
		intent, err := s.store.GetIntent(ctx, req.MerchantID, attempt.PaymentID)
		if err != nil {
			return err
		}

		rd, err := s.routerData(ctx, domain.FlowPSync, *attempt)
		if err != nil {
			return err
		}
		out, err := s.execute(ctx, rd, req.Action)
		if err != nil {
			return err
		}

		update := DeriveAttemptUpdate(domain.FlowPSync, *attempt, out, req.UpdatedBy)
		if update == nil {
			result = &SyncResult{Attempt: *attempt, Intent: *intent}
			return nil
		}

		next := attempt.Apply(HoldTerminal(*attempt, update))
		synced := next.ModifiedAt
		next.LastSynced = &synced
		recordTransition(next, domain.FlowPSync)

		nextIntent := *intent
		if intent.ActiveAttemptID == next.AttemptID {
			nextIntent = intent.SyncWithAttempt(next, next.ModifiedAt)
		}
		if err := s.persist(ctx, next, nextIntent); err != nil {
			return err
		}
		result = &SyncResult{Attempt: next, Intent: nextIntent, Err: out.Err}
		return nil
	})
	if err != nil {
		s.logger.Warn("Payment sync failed",
			ports.String("merchant_id", req.MerchantID),
			ports.String("connector", req.Connector),
			ports.String("reference", req.Reference.String()),
			ports.Err(err))
		return nil, err
	}

	s.logger.Info("Payment synced",
		ports.String("payment_id", result.Attempt.PaymentID),
		ports.String("attempt_id", result.Attempt.AttemptID),
		ports.String("status", string(result.Attempt.Status)),
		ports.String("call_action", req.Action.String()))
	return result, nil
}

// SyncRefund is Sync for refunds: RSync against the referenced refund, serialised
// on the owning payment's lock
func (s *Service) SyncRefund(ctx context.Context, req SyncRequest) (*domain.Refund, error) {
	if req.Reference.Kind != domain.ReferenceKindRefund {
		return nil, domain.NewDomainError(domain.ErrorCodeWebhookReferenceNotFound, "reference does not point at a refund").
			WithDetail("reference", req.Reference.String())
	}

	found, err := s.resolveRefund(ctx, req.MerchantID, req.Connector, req.Reference)
	if err != nil {
		return nil, err
	}

	var result *domain.Refund
	err = s.locker.WithLock(ctx, lock.PaymentKey(req.MerchantID, found.PaymentID), func(ctx context.Context) error {
		if req.OnLocked != nil {
			req.OnLocked()
		}
		refund, err := s.store.GetRefund(ctx, req.MerchantID, found.RefundID)
		if err != nil {
			return err
		}
		attempt, err := s.store.GetAttempt(ctx, req.MerchantID, refund.AttemptID)
		if err != nil {
			return err
		}

		rd, err := s.refundRouterData(ctx, domain.FlowRSync, *attempt, *refund)
		if err != nil {
			return err
		}
		out, err := s.execute(ctx, rd, req.Action)
		if err != nil {
			return err
		}

		update := DeriveRefundUpdate(domain.FlowRSync, out, req.UpdatedBy)
		if update == nil {
			result = refund
			return nil
		}
		next := refund.Apply(HoldTerminalRefund(*refund, update))

		dbCtx, cancel := s.timeouts.DatabaseContext(ctx)
		defer cancel()
		if err := s.store.WithTransaction(dbCtx, func(ctx context.Context, tx ports.PaymentStore) error {
			if err := tx.UpdateRefund(ctx, next); err != nil {
				return fmt.Errorf("update refund: %w", err)
			}
			return nil
		}); err != nil {
			return err
		}
		result = &next
		return nil
	})
	if err != nil {
		s.logger.Warn("Refund sync failed",
			ports.String("merchant_id", req.MerchantID),
			ports.String("connector", req.Connector),
			ports.String("reference", req.Reference.String()),
			ports.Err(err))
		return nil, err
	}

	s.logger.Info("Refund synced",
		ports.String("refund_id", result.RefundID),
		ports.String("status", string(result.Status)),
		ports.String("call_action", req.Action.String()))
	return result, nil
}

func (s *Service) resolveAttempt(ctx context.Context, merchantID, connectorName string, ref domain.ObjectReferenceID) (*domain.PaymentAttempt, error) {
	switch ref.PaymentIDType {
	case domain.PaymentIDTypePaymentIntentID:
		return s.store.GetActiveAttempt(ctx, merchantID, ref.ID)
	case domain.PaymentIDTypePaymentAttemptID:
		return s.store.GetAttempt(ctx, merchantID, ref.ID)
	case domain.PaymentIDTypeConnectorTransactionID:
		return s.store.FindAttemptByConnectorTransactionID(ctx, merchantID, connectorName, ref.ID)
	case domain.PaymentIDTypePreprocessingID:
		return s.store.FindAttemptByPreprocessingID(ctx, merchantID, connectorName, ref.ID)
	default:
		return nil, domain.NewDomainError(domain.ErrorCodeWebhookReferenceNotFound,
			fmt.Sprintf("unknown payment id type %q", ref.PaymentIDType))
	}
}

func (s *Service) resolveRefund(ctx context.Context, merchantID, connectorName string, ref domain.ObjectReferenceID) (*domain.Refund, error) {
	switch ref.RefundIDType {
	case domain.RefundIDTypeRefundID:
		return s.store.GetRefund(ctx, merchantID, ref.ID)
	case domain.RefundIDTypeConnectorRefundID:
		return s.store.FindRefundByConnectorRefundID(ctx, merchantID, connectorName, ref.ID)
	default:
		return nil, domain.NewDomainError(domain.ErrorCodeWebhookReferenceNotFound,
			fmt.Sprintf("unknown refund id type %q", ref.RefundIDType))
	}
}
