package payment

import (
	"context"
	"fmt"

	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/kevin07696/payment-router/internal/domain/ports"
	"github.com/kevin07696/payment-router/internal/lock"
	"github.com/kevin07696/payment-router/pkg/resilience"
)

// Service drives payment and refund flows through connectors and persists
// the resulting attempt, intent and refund state
type Service struct {
	store       ports.PaymentStore
	registry    *connector.Registry
	executor    *connector.Executor
	locker      lock.Locker
	credentials connector.CredentialStore
	timeouts    *resilience.TimeoutConfig
	logger      ports.Logger
}

// NewService creates a new payment service
func NewService(
	store ports.PaymentStore,
	registry *connector.Registry,
	executor *connector.Executor,
	locker lock.Locker,
	credentials connector.CredentialStore,
	timeouts *resilience.TimeoutConfig,
	logger ports.Logger,
) *Service {
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	return &Service{
		store:       store,
		registry:    registry,
		executor:    executor,
		locker:      locker,
		credentials: credentials,
		timeouts:    timeouts,
		logger:      logger,
	}
}

// FlowRequest asks for one payment-side flow against the payment's active attempt
type FlowRequest struct {
	MerchantID         string
	PaymentID          string
	Flow               domain.Flow
	AmountToCapture    *domain.MinorUnit
	CancellationReason *string
	PaymentToken       string
	Description        string
	UpdatedBy          string
}

// FlowResult is the persisted state after a flow
type FlowResult struct {
	Attempt domain.PaymentAttempt
	Intent  domain.PaymentIntent
	// Err is the connector's business error, if it declined
	Err *connector.ErrorResponse
}

// ExecuteFlow runs req.Flow for the payment under its lock and persists the outcome.
// A connector decline is a successful call: it comes back on FlowResult.Err.
func (s *Service) ExecuteFlow(ctx context.Context, req FlowRequest) (*FlowResult, error) {
	if !req.Flow.Valid() || req.Flow.IsRefundFlow() || req.Flow == domain.FlowVerifyWebhookSource {
		return nil, domain.NewDomainError(domain.ErrorCodeFlowNotSupported,
			fmt.Sprintf("flow %q cannot run against a payment attempt", req.Flow))
	}

	ctx, cancel := s.timeouts.ServiceContext(ctx)
	defer cancel()

	var result *FlowResult
	err := s.locker.WithLock(ctx, lock.PaymentKey(req.MerchantID, req.PaymentID), func(ctx context.Context) error {
		attempt, err := s.store.GetActiveAttempt(ctx, req.MerchantID, req.PaymentID)
		if err != nil {
			return err
		}
		intent, err := s.store.GetIntent(ctx, req.MerchantID, req.PaymentID)
		if err != nil {
			return err
		}

		// The capture amount is recorded on the attempt before the connector sees it
		working := *attempt
		if req.Flow == domain.FlowCapture && req.AmountToCapture != nil {
			working = working.Apply(domain.CaptureUpdate{AmountToCapture: req.AmountToCapture, UpdatedBy: req.UpdatedBy})
		}

		rd, err := s.routerData(ctx, req.Flow, working)
		if err != nil {
			return err
		}
		rd.Payment.CancellationReason = req.CancellationReason
		rd.Payment.Description = req.Description
		if req.PaymentToken != "" {
			rd.Payment.PaymentToken = req.PaymentToken
		}

		out, err := s.execute(ctx, rd, connector.Trigger())
		if err != nil {
			return err
		}

		update := DeriveAttemptUpdate(req.Flow, working, out, req.UpdatedBy)
		next := working
		if update != nil {
			next = working.Apply(update)
			recordTransition(next, req.Flow)
		}
		nextIntent := intent.SyncWithAttempt(next, next.ModifiedAt)

		if err := s.persist(ctx, next, nextIntent); err != nil {
			return err
		}
		result = &FlowResult{Attempt: next, Intent: nextIntent, Err: out.Err}
		return nil
	})
	if err != nil {
		s.logger.Error("Payment flow failed",
			ports.String("merchant_id", req.MerchantID),
			ports.String("payment_id", req.PaymentID),
			ports.String("flow", req.Flow.String()),
			ports.Err(err))
		return nil, err
	}

	s.logger.Info("Payment flow completed",
		ports.String("merchant_id", req.MerchantID),
		ports.String("payment_id", req.PaymentID),
		ports.String("flow", req.Flow.String()),
		ports.String("status", string(result.Attempt.Status)))
	return result, nil
}

// RefundRequest creates and executes a refund against a payment's active attempt
type RefundRequest struct {
	MerchantID string
	PaymentID  string
	RefundID   string
	Amount     domain.MinorUnit
	Reason     *string
	UpdatedBy  string
}

// ExecuteRefund records a pending refund, sends it through the attempt's connector
// and stores the connector's answer
func (s *Service) ExecuteRefund(ctx context.Context, req RefundRequest) (*domain.Refund, error) {
	if req.Amount <= 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeMissingRequiredField, "refund amount must be positive")
	}

	ctx, cancel := s.timeouts.ServiceContext(ctx)
	defer cancel()

	var result *domain.Refund
	err := s.locker.WithLock(ctx, lock.PaymentKey(req.MerchantID, req.PaymentID), func(ctx context.Context) error {
		attempt, err := s.store.GetActiveAttempt(ctx, req.MerchantID, req.PaymentID)
		if err != nil {
			return err
		}

		refund := newRefund(req, *attempt)
		if err := s.store.CreateRefund(ctx, refund); err != nil {
			return fmt.Errorf("create refund: %w", err)
		}

		rd, err := s.refundRouterData(ctx, domain.FlowExecute, *attempt, refund)
		if err != nil {
			return err
		}
		out, err := s.execute(ctx, rd, connector.Trigger())
		if err != nil {
			return err
		}

		if update := DeriveRefundUpdate(domain.FlowExecute, out, req.UpdatedBy); update != nil {
			refund = refund.Apply(update)
		}
		if err := s.store.UpdateRefund(ctx, refund); err != nil {
			return fmt.Errorf("update refund: %w", err)
		}
		result = &refund
		return nil
	})
	if err != nil {
		s.logger.Error("Refund failed",
			ports.String("merchant_id", req.MerchantID),
			ports.String("payment_id", req.PaymentID),
			ports.String("refund_id", req.RefundID),
			ports.Err(err))
		return nil, err
	}

	s.logger.Info("Refund executed",
		ports.String("refund_id", result.RefundID),
		ports.String("status", string(result.Status)))
	return result, nil
}

func newRefund(req RefundRequest, attempt domain.PaymentAttempt) domain.Refund {
	now := nowStamp()
	return domain.Refund{
		CreatedAt:    now,
		ModifiedAt:   now,
		RefundID:     req.RefundID,
		PaymentID:    attempt.PaymentID,
		AttemptID:    attempt.AttemptID,
		MerchantID:   attempt.MerchantID,
		Connector:    attempt.ConnectorName(),
		Currency:     attempt.Currency,
		RefundAmount: req.Amount,
		Status:       domain.RefundStatusPending,
		RefundReason: req.Reason,
		UpdatedBy:    req.UpdatedBy,
	}
}

// execute resolves the integration for rd and runs it
func (s *Service) execute(ctx context.Context, rd *connector.RouterData, action connector.CallAction) (*connector.RouterData, error) {
	integ, err := s.registry.Resolve(rd.Connector, rd.Flow)
	if err != nil {
		return nil, err
	}
	return s.executor.Execute(ctx, integ, rd, action)
}

func (s *Service) routerData(ctx context.Context, flow domain.Flow, attempt domain.PaymentAttempt) (*connector.RouterData, error) {
	rd, err := s.baseRouterData(ctx, flow, attempt)
	if err != nil {
		return nil, err
	}

	captureMethod := domain.CaptureMethodAutomatic
	if attempt.CaptureMethod != nil {
		captureMethod = *attempt.CaptureMethod
	}
	rd.Payment = &connector.PaymentsRequestData{
		Amount:                 attempt.NetAmount,
		Currency:               attempt.Currency,
		CaptureMethod:          captureMethod,
		AmountToCapture:        attempt.AmountToCapture,
		ConnectorTransactionID: deref(attempt.ConnectorTransactionID),
		PaymentToken:           deref(attempt.PaymentToken),
		ConnectorMetadata:      attempt.ConnectorMetadata,
	}
	return rd, nil
}

func (s *Service) refundRouterData(ctx context.Context, flow domain.Flow, attempt domain.PaymentAttempt, refund domain.Refund) (*connector.RouterData, error) {
	rd, err := s.baseRouterData(ctx, flow, attempt)
	if err != nil {
		return nil, err
	}
	rd.Refund = &connector.RefundsRequestData{
		RefundID:               refund.RefundID,
		ConnectorTransactionID: deref(attempt.ConnectorTransactionID),
		ConnectorRefundID:      refund.ConnectorRefundID,
		RefundAmount:           refund.RefundAmount,
		PaymentAmount:          attempt.NetAmount,
		Currency:               refund.Currency,
		Reason:                 refund.RefundReason,
	}
	return rd, nil
}

func (s *Service) baseRouterData(ctx context.Context, flow domain.Flow, attempt domain.PaymentAttempt) (*connector.RouterData, error) {
	name := attempt.ConnectorName()
	if name == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeConnectorNotFound, "attempt has not been routed to a connector").
			WithDetail("attempt_id", attempt.AttemptID)
	}

	auth, err := s.credentials.AuthType(ctx, attempt.MerchantID, name)
	if err != nil {
		return nil, err
	}

	return &connector.RouterData{
		Flow:       flow,
		Connector:  name,
		MerchantID: attempt.MerchantID,
		PaymentID:  attempt.PaymentID,
		AttemptID:  attempt.AttemptID,
		Auth:       auth,
		Status:     attempt.Status,
	}, nil
}

// persist writes attempt and intent in one transaction
func (s *Service) persist(ctx context.Context, attempt domain.PaymentAttempt, intent domain.PaymentIntent) error {
	dbCtx, cancel := s.timeouts.DatabaseContext(ctx)
	defer cancel()

	return s.store.WithTransaction(dbCtx, func(ctx context.Context, tx ports.PaymentStore) error {
		if err := tx.UpdateAttempt(ctx, attempt); err != nil {
			return fmt.Errorf("update attempt: %w", err)
		}
		if err := tx.UpdateIntent(ctx, intent); err != nil {
			return fmt.Errorf("update intent: %w", err)
		}
		return nil
	})
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
