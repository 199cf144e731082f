package payment

import (
	"time"

	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/kevin07696/payment-router/pkg/observability"
	"github.com/kevin07696/payment-router/pkg/timeutil"
)

// DeriveAttemptUpdate turns a flow's router data into the attempt transition it implies.
// It returns nil when the flow produced nothing to record (skipped or no request).
func DeriveAttemptUpdate(flow domain.Flow, prior domain.PaymentAttempt, rd *connector.RouterData, updatedBy string) domain.AttemptUpdate {
	if rd.Err != nil {
		return errorUpdate(flow, prior, rd, updatedBy)
	}
	resp := rd.PaymentResponse
	if resp == nil {
		return nil
	}

	connectorName := rd.Connector
	switch {
	case flow == domain.FlowPreProcessing:
		status := rd.Status
		return domain.PreprocessingUpdate{
			Status:                       &status,
			ConnectorMetadata:            resp.ConnectorMetadata,
			PreprocessingStepID:          nonEmpty(resp.ConnectorTransactionID),
			ConnectorResponseReferenceID: resp.ConnectorResponseReferenceID,
			UpdatedBy:                    updatedBy,
		}

	case flow == domain.FlowVoid && rd.Status == domain.AttemptStatusVoided:
		var reason *string
		if rd.Payment != nil {
			reason = rd.Payment.CancellationReason
		}
		return domain.VoidUpdate{Status: rd.Status, CancellationReason: reason, UpdatedBy: updatedBy}

	case rd.Status == domain.AttemptStatusUnresolved:
		return domain.UnresolvedResponseUpdate{
			Status:                       rd.Status,
			Connector:                    &connectorName,
			ConnectorTransactionID:       nonEmpty(resp.ConnectorTransactionID),
			ConnectorResponseReferenceID: resp.ConnectorResponseReferenceID,
			UpdatedBy:                    updatedBy,
		}
	}

	return domain.ResponseUpdate{
		Status:                       rd.Status,
		Connector:                    &connectorName,
		ConnectorTransactionID:       nonEmpty(resp.ConnectorTransactionID),
		AmountCapturable:             amountCapturable(rd.Status, prior, resp.AmountCapturable),
		MandateID:                    resp.MandateID,
		ConnectorMetadata:            resp.ConnectorMetadata,
		PaymentToken:                 resp.PaymentToken,
		ConnectorResponseReferenceID: resp.ConnectorResponseReferenceID,
		AuthenticationData:           resp.AuthenticationData,
		ChargeID:                     resp.ChargeID,
		ErrorCode:                    domain.Clear[string](),
		ErrorMessage:                 domain.Clear[string](),
		ErrorReason:                  domain.Clear[string](),
		UnifiedCode:                  domain.Clear[string](),
		UnifiedMessage:               domain.Clear[string](),
		UpdatedBy:                    updatedBy,
	}
}

func errorUpdate(flow domain.Flow, prior domain.PaymentAttempt, rd *connector.RouterData, updatedBy string) domain.AttemptUpdate {
	e := rd.Err
	connectorName := rd.Connector

	update := domain.ErrorUpdate{
		Connector:              &connectorName,
		Status:                 failureStatus(flow, prior.Status, e),
		ErrorCode:              domain.Set(e.Code),
		ErrorMessage:           domain.Set(e.Message),
		ErrorReason:            domain.SetPtr(e.Reason),
		ConnectorTransactionID: e.ConnectorTransactionID,
		UpdatedBy:              updatedBy,
	}
	if code, message, ok := e.Category.Unified(); ok {
		update.UnifiedCode = domain.Set(code)
		update.UnifiedMessage = domain.Set(message)
	}
	if update.Status.IsFailure() {
		zero := domain.MinorUnit(0)
		update.AmountCapturable = &zero
	}
	return update
}

// failureStatus is where a declined flow leaves the attempt. An explicit
// connector override wins; sync flows keep the prior status.
func failureStatus(flow domain.Flow, prior domain.AttemptStatus, e *connector.ErrorResponse) domain.AttemptStatus {
	if e.AttemptStatus != nil {
		return *e.AttemptStatus
	}
	switch flow {
	case domain.FlowAuthorize, domain.FlowCompleteAuthorize, domain.FlowSetupMandate:
		return domain.AttemptStatusAuthorizationFailed
	case domain.FlowCapture:
		return domain.AttemptStatusCaptureFailed
	case domain.FlowVoid:
		return domain.AttemptStatusVoidFailed
	case domain.FlowPreProcessing:
		return domain.AttemptStatusFailure
	default:
		return prior
	}
}

// amountCapturable follows the attempt status unless the connector reported a figure
func amountCapturable(status domain.AttemptStatus, prior domain.PaymentAttempt, reported *domain.MinorUnit) *domain.MinorUnit {
	if reported != nil {
		return reported
	}
	switch {
	case status == domain.AttemptStatusCharged, status == domain.AttemptStatusVoided, status.IsFailure():
		zero := domain.MinorUnit(0)
		return &zero
	case status == domain.AttemptStatusAuthorized:
		net := prior.NetAmount
		return &net
	}
	return nil
}

// DeriveRefundUpdate turns an Execute or RSync result into the refund transition it implies
func DeriveRefundUpdate(flow domain.Flow, rd *connector.RouterData, updatedBy string) domain.RefundUpdate {
	if e := rd.Err; e != nil {
		update := domain.RefundErrorUpdate{
			ErrorCode:    &e.Code,
			ErrorMessage: &e.Message,
			UpdatedBy:    updatedBy,
		}
		// A failed status inquiry says nothing about the refund itself
		if flow == domain.FlowExecute {
			status := domain.RefundStatusFailure
			update.Status = &status
		}
		return update
	}
	resp := rd.RefundResponse
	if resp == nil {
		return nil
	}
	if resp.ConnectorRefundID == "" {
		return domain.RefundStatusUpdate{Status: resp.Status, UpdatedBy: updatedBy}
	}
	return domain.RefundConnectorUpdate{
		ConnectorRefundID: resp.ConnectorRefundID,
		Status:            resp.Status,
		UpdatedBy:         updatedBy,
	}
}

// HoldTerminal keeps a terminal attempt terminal. A late or replayed sync that
// reports an earlier status still merges its identifiers, but the status, the
// capturable amount and the error columns stay as they were.
func HoldTerminal(prior domain.PaymentAttempt, update domain.AttemptUpdate) domain.AttemptUpdate {
	if !prior.Status.IsTerminal() {
		return update
	}
	switch u := update.(type) {
	case domain.ResponseUpdate:
		if u.Status.IsTerminal() {
			return u
		}
		u.Status = prior.Status
		u.AmountCapturable = nil
		u.ErrorCode, u.ErrorMessage, u.ErrorReason = domain.Patch[string]{}, domain.Patch[string]{}, domain.Patch[string]{}
		u.UnifiedCode, u.UnifiedMessage = domain.Patch[string]{}, domain.Patch[string]{}
		return u
	case domain.UnresolvedResponseUpdate:
		if u.Status.IsTerminal() {
			return u
		}
		u.Status = prior.Status
		u.ErrorCode, u.ErrorMessage, u.ErrorReason = domain.Patch[string]{}, domain.Patch[string]{}, domain.Patch[string]{}
		return u
	case domain.ErrorUpdate:
		if u.Status.IsTerminal() {
			return u
		}
		u.Status = prior.Status
		u.AmountCapturable = nil
		u.ErrorCode, u.ErrorMessage, u.ErrorReason = domain.Patch[string]{}, domain.Patch[string]{}, domain.Patch[string]{}
		u.UnifiedCode, u.UnifiedMessage = domain.Patch[string]{}, domain.Patch[string]{}
		return u
	}
	return update
}

// HoldTerminalRefund is HoldTerminal for refunds
func HoldTerminalRefund(prior domain.Refund, update domain.RefundUpdate) domain.RefundUpdate {
	if !prior.Status.IsTerminal() {
		return update
	}
	switch u := update.(type) {
	case domain.RefundConnectorUpdate:
		if !u.Status.IsTerminal() {
			return domain.RefundStatusUpdate{Status: prior.Status, UpdatedBy: u.UpdatedBy}
		}
	case domain.RefundStatusUpdate:
		if !u.Status.IsTerminal() {
			u.Status = prior.Status
			return u
		}
	case domain.RefundErrorUpdate:
		if u.Status == nil || !u.Status.IsTerminal() {
			return domain.RefundStatusUpdate{Status: prior.Status, UpdatedBy: u.UpdatedBy}
		}
	}
	return update
}

func recordTransition(a domain.PaymentAttempt, flow domain.Flow) {
	observability.RecordAttemptTransition(a.ConnectorName(), flow.String(), string(a.Status))
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nowStamp() time.Time {
	return timeutil.NowStored()
}
