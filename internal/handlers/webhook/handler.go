// Package webhook serves the connector notification endpoint
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/kevin07696/payment-router/internal/domain/ports"
	"github.com/kevin07696/payment-router/internal/webhook"
	"github.com/kevin07696/payment-router/pkg/middleware"
	"github.com/kevin07696/payment-router/pkg/observability"
	"github.com/kevin07696/payment-router/pkg/resilience"
)

// Route is the endpoint pattern, merchant and connector taken from the path
const Route = "POST /webhooks/{merchant_id}/{connector}"

// DefaultMaxBodyBytes caps webhook bodies at 1 MiB
const DefaultMaxBodyBytes int64 = 1 << 20

// Reconciler runs a webhook through the reconciliation pipeline
type Reconciler interface {
	Handle(ctx context.Context, merchantID, connectorName string, req connector.WebhookRequest) (*webhook.Result, error)
}

// Handler answers connector webhooks
type Handler struct {
	reconciler   Reconciler
	timeouts     *resilience.TimeoutConfig
	logger       ports.Logger
	maxBodyBytes int64
}

// NewHandler creates the webhook endpoint
func NewHandler(reconciler Reconciler, timeouts *resilience.TimeoutConfig, logger ports.Logger) *Handler {
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	return &Handler{
		reconciler:   reconciler,
		timeouts:     timeouts,
		logger:       logger,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
}

// Register mounts the endpoint on mux behind limiter and request metrics
func (h *Handler) Register(mux *http.ServeMux, limiter *middleware.RateLimiter) {
	var handler http.Handler = h
	if limiter != nil {
		handler = limiter.Middleware(handler)
	}
	mux.Handle(Route, observability.HTTPMiddleware("/webhooks", handler))
}

// ServeHTTP reads the webhook and writes the connector-facing answer
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	merchantID := r.PathValue("merchant_id")
	connectorName := r.PathValue("connector")
	if merchantID == "" || connectorName == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PATH", "merchant_id and connector are required")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "webhook body too large")
			return
		}
		writeError(w, http.StatusBadRequest, string(domain.ErrorCodeWebhookBodyDecoding), "failed to read webhook body")
		return
	}

	ctx, cancel := h.timeouts.HandlerContext(r.Context())
	defer cancel()

	res, err := h.reconciler.Handle(ctx, merchantID, connectorName, connector.WebhookRequest{
		Method:  r.Method,
		Headers: r.Header.Clone(),
		Query:   r.URL.Query(),
		Body:    body,
	})
	if err != nil {
		status := StatusFor(err)
		fields := []ports.Field{
			ports.String("merchant_id", merchantID),
			ports.String("connector", connectorName),
			ports.Int("status", status),
			ports.Err(err),
		}
		if status >= http.StatusInternalServerError {
			h.logger.Error("Webhook processing failed", fields...)
			writeError(w, status, string(errorCode(err)), "webhook could not be processed")
			return
		}
		h.logger.Warn("Webhook refused", fields...)
		writeError(w, status, string(errorCode(err)), errorMessage(err))
		return
	}

	writeResponse(w, res.Response)
}

// StatusFor maps a reconciler error onto the HTTP status the connector sees.
// Failed source verification is 401. Webhooks a retry cannot fix (bad body,
// unknown reference, unknown connector) are answered 200 with the error in
// the body; non-2xx is kept for faults on the router's side so processors
// retry only those.
func StatusFor(err error) int {
	switch domain.GetErrorCode(err) {
	case domain.ErrorCodeWebhookAuthentication:
		return http.StatusUnauthorized
	case domain.ErrorCodeWebhookBodyDecoding,
		domain.ErrorCodeWebhookReferenceNotFound,
		domain.ErrorCodeWebhookEventTypeNotFound,
		domain.ErrorCodeWebhookResourceObjectAbsent,
		domain.ErrorCodeResponseDeserialization,
		domain.ErrorCodeConnectorNotFound,
		domain.ErrorCodeNotImplemented,
		domain.ErrorCodeFlowNotSupported,
		domain.ErrorCodePaymentNotFound,
		domain.ErrorCodeRefundNotFound:
		return http.StatusOK
	case domain.ErrorCodeLockBusy:
		return http.StatusServiceUnavailable
	case domain.ErrorCodeTransport:
		return http.StatusBadGateway
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorCode(err error) domain.ErrorCode {
	if code := domain.GetErrorCode(err); code != "" {
		return code
	}
	return domain.ErrorCodeInternalError
}

func errorMessage(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeResponse(w http.ResponseWriter, resp connector.WebhookAPIResponse) {
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(status)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}
