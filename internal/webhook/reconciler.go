// Package webhook turns connector notifications into router state changes.
//
// A webhook moves through a fixed sequence of stages:
//
//	received → decoded → event_typed → filtered → verified → locked → reconciled → unlocked → acknowledged
//
// Every stage reached is logged and counted. A webhook may leave the pipeline
// early with a soft acknowledgement (HTTP 200, no state change) or a hard error.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/kevin07696/payment-router/internal/domain/ports"
	"github.com/kevin07696/payment-router/internal/services/payment"
	"github.com/kevin07696/payment-router/pkg/observability"
	"github.com/kevin07696/payment-router/pkg/resilience"
)

// Stage names one step of the reconciliation pipeline
type Stage string

const (
	StageReceived     Stage = "received"
	StageDecoded      Stage = "decoded"
	StageEventTyped   Stage = "event_typed"
	StageFiltered     Stage = "filtered"
	StageVerified     Stage = "verified"
	StageLocked       Stage = "locked"
	StageReconciled   Stage = "reconciled"
	StageUnlocked     Stage = "unlocked"
	StageAcknowledged Stage = "acknowledged"
)

// Outcome labels for the webhook_events_total metric
const (
	OutcomeProcessed  = "processed"
	OutcomeNoEffect   = "no_effect"
	OutcomeHandshake  = "handshake"
	OutcomeAuthFailed = "auth_failed"
	OutcomeRejected   = "rejected"
	OutcomeError      = "error"
)

// Config tunes how tolerant the reconciler is
type Config struct {
	// TolerateUnknownEvents acknowledges webhooks that carry no event type
	// instead of rejecting them. Undecodable bodies are always rejected.
	TolerateUnknownEvents bool
	// TolerateMissingPayment acknowledges webhooks for payments or refunds the
	// router does not know
	TolerateMissingPayment bool
	// DisabledFlows are acknowledged without processing
	DisabledFlows []domain.WebhookFlow
}

// DefaultConfig tolerates unknown events and nothing else
func DefaultConfig() Config {
	return Config{TolerateUnknownEvents: true}
}

func (c Config) flowDisabled(flow domain.WebhookFlow) bool {
	for _, f := range c.DisabledFlows {
		if f == flow {
			return true
		}
	}
	return false
}

// Syncer merges a processor's view of a payment or refund into router state
type Syncer interface {
	Sync(ctx context.Context, req payment.SyncRequest) (*payment.SyncResult, error)
	SyncRefund(ctx context.Context, req payment.SyncRequest) (*domain.Refund, error)
}

// Result is what the HTTP layer answers with
type Result struct {
	Event    domain.IncomingWebhookEvent
	Verified bool
	Tracker  domain.WebhookResponseTracker
	Response connector.WebhookAPIResponse
}

// Decoded is the connector-independent view of a webhook
type Decoded struct {
	Event     domain.IncomingWebhookEvent
	Reference domain.ObjectReferenceID
}

// Reconciler runs incoming webhooks through the pipeline
type Reconciler struct {
	registry *connector.Registry
	verifier *Verifier
	syncer   Syncer
	cfg      Config
	timeouts *resilience.TimeoutConfig
	logger   ports.Logger
}

// NewReconciler creates a reconciler
func NewReconciler(
	registry *connector.Registry,
	verifier *Verifier,
	syncer Syncer,
	cfg Config,
	timeouts *resilience.TimeoutConfig,
	logger ports.Logger,
) *Reconciler {
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	return &Reconciler{
		registry: registry,
		verifier: verifier,
		syncer:   syncer,
		cfg:      cfg,
		timeouts: timeouts,
		logger:   logger,
	}
}

// run carries one webhook through the stages
type run struct {
	r          *Reconciler
	merchantID string
	connector  string
	event      domain.IncomingWebhookEvent
	start      time.Time
}

func (w *run) reached(stage Stage, fields ...ports.Field) {
	observability.RecordWebhookStage(w.connector, string(stage))
	w.r.logger.Debug("Webhook stage reached", append([]ports.Field{
		ports.String("merchant_id", w.merchantID),
		ports.String("connector", w.connector),
		ports.String("stage", string(stage)),
	}, fields...)...)
}

func (w *run) finish(outcome string) {
	event := string(w.event)
	if event == "" {
		event = "unknown"
	}
	observability.RecordWebhookEvent(w.connector, event, outcome, time.Since(w.start))
}

// ack is a soft acknowledgement: 200 and nothing changed
func (w *run) ack(wh connector.IncomingWebhook, req connector.WebhookRequest, reason string, err error) *Result {
	fields := []ports.Field{
		ports.String("merchant_id", w.merchantID),
		ports.String("connector", w.connector),
		ports.String("event_type", string(w.event)),
		ports.String("reason", reason),
	}
	if err != nil {
		fields = append(fields, ports.Err(err))
	}
	w.r.logger.Info("Webhook acknowledged without effect", fields...)
	w.reached(StageAcknowledged)
	w.finish(OutcomeNoEffect)
	return &Result{Event: w.event, Tracker: domain.NoEffectTracker(), Response: wh.APIResponse(req)}
}

func (w *run) fail(err error) error {
	outcome := OutcomeError
	switch {
	case domain.IsDomainError(err, domain.ErrorCodeWebhookAuthentication):
		outcome = OutcomeAuthFailed
	case !domain.IsRetryable(err) && !domain.IsConfigError(err):
		outcome = OutcomeRejected
	}
	w.r.logger.Warn("Webhook rejected",
		ports.String("merchant_id", w.merchantID),
		ports.String("connector", w.connector),
		ports.String("event_type", string(w.event)),
		ports.String("outcome", outcome),
		ports.Err(err))
	w.finish(outcome)
	return err
}

// Handle runs one webhook to completion. A nil error means the connector gets
// Result.Response; errors carry a DomainError code the HTTP layer maps to a status.
func (r *Reconciler) Handle(ctx context.Context, merchantID, connectorName string, req connector.WebhookRequest) (*Result, error) {
	w := &run{r: r, merchantID: merchantID, connector: connectorName, start: time.Now()}
	w.reached(StageReceived, ports.Int("body_bytes", len(req.Body)))

	conn, err := r.registry.Connector(connectorName)
	if err != nil {
		return nil, w.fail(err)
	}
	wh := conn.Webhooks()
	if wh == nil {
		return nil, w.fail(fmt.Errorf("connector %s does not accept webhooks: %w", connectorName, domain.ErrNotImplemented))
	}
	w.reached(StageDecoded)

	event, err := wh.EventType(req)
	if err != nil {
		if errors.Is(err, domain.ErrWebhookEventTypeNotFound) && r.cfg.TolerateUnknownEvents {
			return w.ack(wh, req, "event type not recognised", err), nil
		}
		return nil, w.fail(err)
	}
	if !event.Known() {
		event = domain.WebhookEventEventNotSupported
	}
	w.event = event
	w.reached(StageEventTyped)

	switch {
	case event == domain.WebhookEventEventNotSupported:
		return w.ack(wh, req, "event not supported", nil), nil
	case event == domain.WebhookEventEndpointVerification:
		w.reached(StageAcknowledged)
		w.finish(OutcomeHandshake)
		r.logger.Info("Answered webhook endpoint verification",
			ports.String("merchant_id", merchantID),
			ports.String("connector", connectorName))
		return &Result{Event: event, Tracker: domain.NoEffectTracker(), Response: wh.APIResponse(req)}, nil
	}

	flow := event.Flow()
	if r.cfg.flowDisabled(flow) {
		return w.ack(wh, req, "flow disabled: "+string(flow), nil), nil
	}
	if flow != domain.WebhookFlowPayment && flow != domain.WebhookFlowRefund {
		return w.ack(wh, req, "no reconciliation for flow "+string(flow), nil), nil
	}
	w.reached(StageFiltered, ports.String("flow", string(flow)))

	ref, err := wh.ObjectReferenceID(req)
	if err != nil {
		return nil, w.fail(err)
	}

	verified, err := r.verifier.Verify(ctx, wh, Source{
		MerchantID: merchantID,
		Connector:  connectorName,
		Request:    req,
		Reference:  ref,
	})
	if err != nil {
		return nil, w.fail(err)
	}
	w.reached(StageVerified, ports.Bool("source_verified", verified))

	tracker, err := r.reconcile(ctx, w, wh, req, Decoded{Event: event, Reference: ref}, verified)
	if err != nil {
		if domain.IsNotFoundError(err) && r.cfg.TolerateMissingPayment {
			return w.ack(wh, req, "reference not found", err), nil
		}
		return nil, w.fail(err)
	}

	w.reached(StageAcknowledged)
	w.finish(OutcomeProcessed)
	r.logger.Info("Webhook reconciled",
		ports.String("merchant_id", merchantID),
		ports.String("connector", connectorName),
		ports.String("event_type", string(event)),
		ports.String("reference", ref.String()),
		ports.Bool("source_verified", verified),
		ports.Duration("duration", time.Since(w.start)))

	return &Result{Event: event, Verified: verified, Tracker: tracker, Response: wh.APIResponse(req)}, nil
}

// reconcile syncs the referenced payment or refund. A verified webhook's resource
// is handed to the PSync/RSync response handler; an unverified one triggers a
// live status inquiry instead.
func (r *Reconciler) reconcile(
	ctx context.Context,
	w *run,
	wh connector.IncomingWebhook,
	req connector.WebhookRequest,
	d Decoded,
	verified bool,
) (domain.WebhookResponseTracker, error) {
	action := connector.Trigger()
	if verified {
		resource, err := wh.ResourceObject(req)
		if err != nil {
			r.logger.Warn("Verified webhook has no usable resource, syncing live",
				ports.String("connector", w.connector),
				ports.Err(err))
		} else {
			action = connector.HandleResponseBody(resource)
		}
	}

	execCtx, cancel := r.timeouts.WebhookExecutorContext(ctx)
	defer cancel()

	syncReq := payment.SyncRequest{
		MerchantID: w.merchantID,
		Connector:  w.connector,
		Reference:  d.Reference,
		Action:     action,
		UpdatedBy:  "webhook:" + w.connector,
		OnLocked:   func() { w.reached(StageLocked) },
	}

	if d.Event.Flow() == domain.WebhookFlowRefund {
		refund, err := r.syncer.SyncRefund(execCtx, syncReq)
		if err != nil {
			return domain.WebhookResponseTracker{}, err
		}
		w.reached(StageReconciled, ports.String("refund_id", refund.RefundID))
		w.reached(StageUnlocked)
		return domain.WebhookResponseTracker{
			Kind:         domain.TrackerKindRefund,
			PaymentID:    refund.PaymentID,
			RefundID:     refund.RefundID,
			RefundStatus: refund.Status,
		}, nil
	}

	result, err := r.syncer.Sync(execCtx, syncReq)
	if err != nil {
		return domain.WebhookResponseTracker{}, err
	}
	w.reached(StageReconciled,
		ports.String("payment_id", result.Attempt.PaymentID),
		ports.String("attempt_status", string(result.Attempt.Status)))
	w.reached(StageUnlocked)
	return domain.WebhookResponseTracker{
		Kind:          domain.TrackerKindPayment,
		PaymentID:     result.Intent.PaymentID,
		PaymentStatus: result.Intent.Status,
	}, nil
}
