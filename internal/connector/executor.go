package connector

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/kevin07696/payment-router/internal/domain/ports"
	"github.com/kevin07696/payment-router/pkg/observability"
	"github.com/kevin07696/payment-router/pkg/resilience"
)

type callKind int

const (
	callTrigger callKind = iota
	callHandleResponse
	callAvoid
)

// CallAction tells the executor where the connector response comes from
type CallAction struct {
	kind callKind
	body []byte
}

// Trigger performs the network call
func Trigger() CallAction {
	return CallAction{kind: callTrigger}
}

// HandleResponseBody skips the network and feeds an already received body
// (a verified webhook payload) to the integration's response handler
func HandleResponseBody(body []byte) CallAction {
	return CallAction{kind: callHandleResponse, body: body}
}

// Avoid returns the router data unchanged
func Avoid() CallAction {
	return CallAction{kind: callAvoid}
}

func (a CallAction) String() string {
	switch a.kind {
	case callHandleResponse:
		return "handle_response"
	case callAvoid:
		return "avoid"
	default:
		return "trigger"
	}
}

// Outcome labels recorded for every execution
const (
	outcomeSuccess         = "success"
	outcomeBusinessError   = "business_error"
	outcomeTransportError  = "transport_error"
	outcomeDecodeError     = "deserialization_error"
	outcomeBuildError      = "build_error"
	outcomeSkipped         = "skipped"
	outcomeWebhookResponse = "webhook_response"
)

// Executor runs one flow through one integration
type Executor struct {
	sender   Sender
	timeouts *resilience.TimeoutConfig
	logger   ports.Logger
}

// NewExecutor creates an executor
func NewExecutor(sender Sender, timeouts *resilience.TimeoutConfig, logger ports.Logger) *Executor {
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	return &Executor{sender: sender, timeouts: timeouts, logger: logger}
}

// Execute runs integ for rd. Business errors from the connector come back on
// the returned RouterData's Err; the error return is reserved for build,
// transport and deserialisation failures.
func (e *Executor) Execute(ctx context.Context, integ Integration, rd *RouterData, action CallAction) (*RouterData, error) {
	start := time.Now()
	fields := []ports.Field{
		ports.String("connector", rd.Connector),
		ports.String("flow", rd.Flow.String()),
		ports.String("payment_id", rd.PaymentID),
		ports.String("call_action", action.String()),
	}

	switch action.kind {
	case callAvoid:
		e.record(rd, outcomeSkipped, start)
		return rd, nil

	case callHandleResponse:
		out, err := handleResponse(integ, rd, Response{StatusCode: http.StatusOK, Body: action.body})
		if err != nil {
			e.record(rd, outcomeDecodeError, start)
			e.logger.Warn("Failed to handle webhook resource", append(fields, ports.Err(err))...)
			return nil, asDeserialization(err, "handle webhook resource")
		}
		e.record(rd, outcomeWebhookResponse, start)
		return out, nil
	}

	req, err := integ.BuildRequest(ctx, rd)
	if err != nil {
		e.record(rd, outcomeBuildError, start)
		e.logger.Warn("Failed to build connector request", append(fields, ports.Err(err))...)
		return nil, err
	}
	if req == nil {
		e.record(rd, outcomeSkipped, start)
		return rd, nil
	}

	callCtx, cancel := e.timeouts.ExternalAPIContext(ctx)
	defer cancel()

	e.logger.Debug("Sending connector request", append(fields,
		ports.String("method", req.Method),
		ports.String("url", req.URL),
	)...)

	resp, err := e.sender.Send(callCtx, req)
	if err != nil {
		e.record(rd, outcomeTransportError, start)
		e.logger.Error("Connector request failed", append(fields, ports.Err(err))...)
		if !domain.IsDomainError(err, domain.ErrorCodeTransport) {
			err = domain.WrapError(domain.ErrorCodeTransport, "connector request failed", err)
		}
		return nil, err
	}

	fields = append(fields,
		ports.Int("status_code", resp.StatusCode),
		ports.Duration("duration", time.Since(start)),
	)

	if IsSuccess(integ, resp.StatusCode) {
		out, err := handleResponse(integ, rd, *resp)
		if err != nil {
			e.record(rd, outcomeDecodeError, start)
			e.logger.Error("Failed to handle connector response", append(fields, ports.Err(err))...)
			return nil, asDeserialization(err, "handle connector response")
		}
		e.record(rd, outcomeSuccess, start)
		e.logger.Info("Connector flow completed", append(fields, ports.String("status", string(out.Status)))...)
		return out, nil
	}

	errResp, err := integ.ErrorResponse(*resp)
	if err == nil && errResp == nil {
		err = domain.NewDomainError(domain.ErrorCodeResponseDeserialization, "integration returned no error response")
	}
	if err != nil {
		e.record(rd, outcomeDecodeError, start)
		e.logger.Error("Failed to parse connector error response", append(fields, ports.Err(err))...)
		return nil, asDeserialization(err, "parse connector error response")
	}
	if errResp.StatusCode == 0 {
		errResp.StatusCode = resp.StatusCode
	}

	e.record(rd, outcomeBusinessError, start)
	e.logger.Warn("Connector returned error response", append(fields,
		ports.String("error_code", errResp.Code),
		ports.String("error_message", errResp.Message),
	)...)
	return rd.WithError(errResp), nil
}

func (e *Executor) record(rd *RouterData, outcome string, start time.Time) {
	observability.RecordConnectorCall(rd.Connector, rd.Flow.String(), outcome, time.Since(start))
}

// handleResponse treats an integration that returns neither data nor an error as a decode failure
func handleResponse(integ Integration, rd *RouterData, resp Response) (*RouterData, error) {
	out, err := integ.HandleResponse(rd, resp)
	if err == nil && out == nil {
		return nil, domain.NewDomainError(domain.ErrorCodeResponseDeserialization, "integration returned no router data")
	}
	return out, err
}

// asDeserialization keeps typed errors and classifies plain parse failures
func asDeserialization(err error, msg string) error {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return err
	}
	return domain.WrapError(domain.ErrorCodeResponseDeserialization, msg, err)
}
