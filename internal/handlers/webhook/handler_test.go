package webhook_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kevin07696/payment-router/internal/adapters/memory"
	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain"
	handler "github.com/kevin07696/payment-router/internal/handlers/webhook"
	"github.com/kevin07696/payment-router/internal/lock"
	"github.com/kevin07696/payment-router/internal/services/payment"
	"github.com/kevin07696/payment-router/internal/testutil/fakeconnector"
	"github.com/kevin07696/payment-router/internal/testutil/fixtures"
	"github.com/kevin07696/payment-router/internal/webhook"
	"github.com/kevin07696/payment-router/pkg/middleware"
	"github.com/kevin07696/payment-router/pkg/resilience"
	"github.com/kevin07696/payment-router/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reconcilerFunc func(ctx context.Context, merchantID, connectorName string, req connector.WebhookRequest) (*webhook.Result, error)

func (f reconcilerFunc) Handle(ctx context.Context, merchantID, connectorName string, req connector.WebhookRequest) (*webhook.Result, error) {
	return f(ctx, merchantID, connectorName, req)
}

func serve(t *testing.T, r handler.Reconciler, limiter *middleware.RateLimiter, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	handler.NewHandler(r, resilience.TestTimeoutConfig(), mocks.NewMockLogger()).Register(mux, limiter)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandler_PassesRequestThrough(t *testing.T) {
	var got connector.WebhookRequest
	var gotMerchant, gotConnector string
	r := reconcilerFunc(func(_ context.Context, merchantID, connectorName string, req connector.WebhookRequest) (*webhook.Result, error) {
		gotMerchant, gotConnector, got = merchantID, connectorName, req
		return &webhook.Result{
			Tracker:  domain.NoEffectTracker(),
			Response: connector.WebhookAPIResponse{StatusCode: http.StatusOK, ContentType: "text/plain", Body: []byte("ok-123")},
		}, nil
	})

	rec := serve(t, r, nil, "/webhooks/merchant_1/north?x=1", []byte(`{"event":"x"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok-123", rec.Body.String())
	assert.Equal(t, "merchant_1", gotMerchant)
	assert.Equal(t, "north", gotConnector)
	assert.Equal(t, `{"event":"x"}`, string(got.Body))
	assert.Equal(t, "1", got.Query.Get("x"))
	assert.Equal(t, http.MethodPost, got.Method)
}

func TestHandler_OnlyPost(t *testing.T) {
	mux := http.NewServeMux()
	handler.NewHandler(reconcilerFunc(nil), nil, mocks.NewMockLogger()).Register(mux, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhooks/m/c", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrWebhookAuthentication, http.StatusUnauthorized},
		{domain.ErrWebhookBodyDecoding, http.StatusOK},
		{domain.ErrWebhookReferenceNotFound, http.StatusOK},
		{domain.ErrWebhookEventTypeNotFound, http.StatusOK},
		{domain.ErrConnectorNotFound, http.StatusOK},
		{fmt.Errorf("connector x does not accept webhooks: %w", domain.ErrNotImplemented), http.StatusOK},
		{domain.ErrPaymentNotFound, http.StatusOK},
		{domain.ErrLockBusy, http.StatusServiceUnavailable},
		{domain.ErrTransport, http.StatusBadGateway},
		{domain.ErrDatabaseError, http.StatusInternalServerError},
		{domain.ErrConfigWebhookVerification, http.StatusInternalServerError},
		{fmt.Errorf("sync: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, handler.StatusFor(tt.err))
		})
	}
}

func TestHandler_ErrorBodies(t *testing.T) {
	t.Run("auth_failure_is_401", func(t *testing.T) {
		r := reconcilerFunc(func(context.Context, string, string, connector.WebhookRequest) (*webhook.Result, error) {
			return nil, domain.ErrWebhookAuthentication
		})
		rec := serve(t, r, nil, "/webhooks/m/c", []byte("{}"))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		var body map[string]map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, string(domain.ErrorCodeWebhookAuthentication), body["error"]["code"])
	})

	t.Run("system_fault_hides_detail", func(t *testing.T) {
		r := reconcilerFunc(func(context.Context, string, string, connector.WebhookRequest) (*webhook.Result, error) {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "insert failed", errors.New("pq: secret table name"))
		})
		rec := serve(t, r, nil, "/webhooks/m/c", []byte("{}"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret table name")
	})

	t.Run("untyped_error_reports_internal_code", func(t *testing.T) {
		r := reconcilerFunc(func(context.Context, string, string, connector.WebhookRequest) (*webhook.Result, error) {
			return nil, errors.New("boom")
		})
		rec := serve(t, r, nil, "/webhooks/m/c", []byte("{}"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var body map[string]map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, string(domain.ErrorCodeInternalError), body["error"]["code"])
	})
}

func TestHandler_BodyTooLarge(t *testing.T) {
	called := false
	r := reconcilerFunc(func(context.Context, string, string, connector.WebhookRequest) (*webhook.Result, error) {
		called = true
		return &webhook.Result{}, nil
	})

	rec := serve(t, r, nil, "/webhooks/m/c", bytes.Repeat([]byte("a"), int(handler.DefaultMaxBodyBytes)+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.False(t, called)
}

func TestHandler_RateLimited(t *testing.T) {
	limiter := middleware.NewRateLimiter(0.001, 1, mocks.NewMockLogger())
	defer limiter.Shutdown()

	r := reconcilerFunc(func(context.Context, string, string, connector.WebhookRequest) (*webhook.Result, error) {
		return &webhook.Result{Response: connector.DefaultWebhookAPIResponse()}, nil
	})

	mux := http.NewServeMux()
	handler.NewHandler(r, nil, mocks.NewMockLogger()).Register(mux, limiter)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/m/c", strings.NewReader("{}")))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

// End to end through the real reconciler: an event the router does not
// recognise is always a 200 with nothing changed
func TestHandler_UnknownEventIsAcknowledged(t *testing.T) {
	logger := mocks.NewMockLogger()
	store := memory.NewStore()
	sender := &fakeconnector.Sender{}
	timeouts := resilience.TestTimeoutConfig()
	locker := lock.NewMemoryLocker(lock.Config{Expiry: 5 * time.Second, Delay: time.Millisecond}, logger)
	registry := connector.NewRegistry(fakeconnector.New("fake", connector.VerificationLocal))
	executor := connector.NewExecutor(sender, timeouts, logger)
	creds := mocks.NewStaticCredentialStore(connector.HeaderKey("sk_test"), connector.WebhookSecret{Secret: []byte("s")})
	svc := payment.NewService(store, registry, executor, locker, creds, timeouts, logger)
	verifier := webhook.NewVerifier(creds, nil, webhook.NewVerificationPolicy("fake"), logger)
	reconciler := webhook.NewReconciler(registry, verifier, svc, webhook.DefaultConfig(), timeouts, logger)

	a := fixtures.NewAttempt().WithConnector("fake").Pending().Build()
	require.NoError(t, fixtures.Seed(context.Background(), store, a))

	for _, event := range []string{"", "invoice.created", string(domain.WebhookEventEventNotSupported)} {
		t.Run("event="+event, func(t *testing.T) {
			body, err := json.Marshal(fakeconnector.Event{Event: event, TransactionID: *a.ConnectorTransactionID})
			require.NoError(t, err)

			rec := serve(t, reconciler, nil, "/webhooks/"+a.MerchantID+"/fake", body)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}

	stored, err := store.GetAttempt(context.Background(), a.MerchantID, a.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, a.ModifiedAt, stored.ModifiedAt)
	assert.Equal(t, 0, sender.Calls())
	assert.Equal(t, 0, locker.TryCount(lock.PaymentKey(a.MerchantID, a.PaymentID)))
}
