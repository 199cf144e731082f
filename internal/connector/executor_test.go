package connector_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/kevin07696/payment-router/pkg/resilience"
	"github.com/kevin07696/payment-router/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubIntegration is a JSON integration whose behaviour is set per test
type stubIntegration struct {
	successRange func(int) bool
	buildErr     error
	noRequest    bool
}

type stubResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type stubError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *stubIntegration) Headers(context.Context, *connector.RouterData) ([]connector.Header, error) {
	return []connector.Header{{Name: "Authorization", Value: "Bearer k", Masked: true}}, nil
}

func (s *stubIntegration) ContentType() string { return connector.ContentTypeJSON }

func (s *stubIntegration) URL(*connector.RouterData) (string, error) {
	return "https://processor.test/payments", nil
}

func (s *stubIntegration) RequestBody(rd *connector.RouterData) (*connector.RequestContent, error) {
	return connector.JSONContent(map[string]any{"amount": rd.Payment.Amount}), nil
}

func (s *stubIntegration) BuildRequest(ctx context.Context, rd *connector.RouterData) (*connector.Request, error) {
	if s.buildErr != nil {
		return nil, s.buildErr
	}
	if s.noRequest {
		return nil, nil
	}
	return connector.BuildDefaultRequest(ctx, s, rd, http.MethodPost)
}

func (s *stubIntegration) HandleResponse(rd *connector.RouterData, resp connector.Response) (*connector.RouterData, error) {
	var body stubResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, err
	}
	out := rd.Clone()
	out.Status = domain.AttemptStatus(body.Status)
	out.PaymentResponse = &connector.PaymentsResponseData{ConnectorTransactionID: body.ID}
	return out, nil
}

func (s *stubIntegration) ErrorResponse(resp connector.Response) (*connector.ErrorResponse, error) {
	var body stubError
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, err
	}
	status := domain.AttemptStatusAuthorizationFailed
	return &connector.ErrorResponse{Code: body.Code, Message: body.Message, AttemptStatus: &status}, nil
}

// classifiedIntegration treats 5xx as parseable business responses
type classifiedIntegration struct{ stubIntegration }

func (c *classifiedIntegration) IsSuccess(status int) bool { return status < 600 }

func (c *classifiedIntegration) BuildRequest(ctx context.Context, rd *connector.RouterData) (*connector.Request, error) {
	return connector.BuildDefaultRequest(ctx, c, rd, http.MethodPost)
}

func routerData() *connector.RouterData {
	return &connector.RouterData{
		Flow:       domain.FlowAuthorize,
		Connector:  "stub",
		MerchantID: "m_1",
		PaymentID:  "pay_1",
		Status:     domain.AttemptStatusPending,
		Payment:    &connector.PaymentsRequestData{Amount: 1000, Currency: "USD"},
	}
}

func newExecutor(client *mocks.MockHTTPClient) *connector.Executor {
	sender := connector.NewHTTPSender(client, nil)
	return connector.NewExecutor(sender, resilience.TestTimeoutConfig(), mocks.NewMockLogger())
}

func TestExecutor_Trigger_Success(t *testing.T) {
	client := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return mocks.Respond(http.StatusOK, `{"id":"txn_1","status":"charged"}`), nil
	})
	exec := newExecutor(client)

	out, err := exec.Execute(context.Background(), &stubIntegration{}, routerData(), connector.Trigger())
	require.NoError(t, err)

	assert.Equal(t, domain.AttemptStatusCharged, out.Status)
	require.NotNil(t, out.PaymentResponse)
	assert.Equal(t, "txn_1", out.PaymentResponse.ConnectorTransactionID)
	assert.Nil(t, out.Err)

	require.Equal(t, 1, client.CallCount())
	req := client.Calls[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "Bearer k", req.Header.Get("Authorization"))
	assert.JSONEq(t, `{"amount":1000}`, string(client.Bodies[0]))
}

func TestExecutor_Trigger_BusinessError(t *testing.T) {
	client := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return mocks.Respond(http.StatusPaymentRequired, `{"code":"05","message":"Do not honor"}`), nil
	})
	exec := newExecutor(client)

	rd := routerData()
	out, err := exec.Execute(context.Background(), &stubIntegration{}, rd, connector.Trigger())
	require.NoError(t, err, "business errors travel on RouterData.Err")

	require.NotNil(t, out.Err)
	assert.Equal(t, "05", out.Err.Code)
	assert.Equal(t, "Do not honor", out.Err.Message)
	assert.Equal(t, http.StatusPaymentRequired, out.Err.StatusCode)
	assert.Equal(t, domain.AttemptStatusAuthorizationFailed, out.Status, "attempt-status override applied")
	assert.Nil(t, rd.Err, "input router data untouched")
}

func TestExecutor_Trigger_StatusClassifier(t *testing.T) {
	client := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return mocks.Respond(http.StatusInternalServerError, `{"id":"txn_9","status":"failure"}`), nil
	})
	exec := newExecutor(client)

	out, err := exec.Execute(context.Background(), &classifiedIntegration{}, routerData(), connector.Trigger())
	require.NoError(t, err)

	assert.Nil(t, out.Err)
	assert.Equal(t, domain.AttemptStatusFailure, out.Status)
	assert.Equal(t, "txn_9", out.PaymentResponse.ConnectorTransactionID)
}

func TestExecutor_Trigger_TransportError(t *testing.T) {
	client := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	exec := newExecutor(client)

	out, err := exec.Execute(context.Background(), &stubIntegration{}, routerData(), connector.Trigger())
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, domain.ErrTransport))
	assert.True(t, domain.IsRetryable(err))
}

func TestExecutor_Trigger_DeserializationError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "success_path", status: http.StatusOK, body: `<html>gateway</html>`},
		{name: "error_path", status: http.StatusBadRequest, body: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
				return mocks.Respond(tt.status, tt.body), nil
			})
			exec := newExecutor(client)

			_, err := exec.Execute(context.Background(), &stubIntegration{}, routerData(), connector.Trigger())
			require.Error(t, err)
			assert.Equal(t, domain.ErrorCodeResponseDeserialization, domain.GetErrorCode(err))
			assert.False(t, domain.IsRetryable(err))
		})
	}
}

// silentIntegration returns neither data nor an error
type silentIntegration struct{ stubIntegration }

func (s *silentIntegration) HandleResponse(*connector.RouterData, connector.Response) (*connector.RouterData, error) {
	return nil, nil
}

func (s *silentIntegration) ErrorResponse(connector.Response) (*connector.ErrorResponse, error) {
	return nil, nil
}

func TestExecutor_NilResultIsDeserializationError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		action connector.CallAction
	}{
		{name: "success_path", status: http.StatusOK, action: connector.Trigger()},
		{name: "error_path", status: http.StatusBadRequest, action: connector.Trigger()},
		{name: "webhook_resource", action: connector.HandleResponseBody([]byte(`{}`))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
				return mocks.Respond(tt.status, `{}`), nil
			})
			exec := newExecutor(client)

			out, err := exec.Execute(context.Background(), &silentIntegration{}, routerData(), tt.action)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, domain.ErrorCodeResponseDeserialization, domain.GetErrorCode(err))
		})
	}
}

func TestExecutor_Trigger_BuildError(t *testing.T) {
	client := mocks.NewMockHTTPClient(nil)
	exec := newExecutor(client)
	buildErr := domain.NewDomainError(domain.ErrorCodeMissingRequiredField, "card number missing")

	_, err := exec.Execute(context.Background(), &stubIntegration{buildErr: buildErr}, routerData(), connector.Trigger())
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeMissingRequiredField, domain.GetErrorCode(err))
	assert.Zero(t, client.CallCount(), "no network call after a build failure")
}

func TestExecutor_Trigger_NoRequest(t *testing.T) {
	client := mocks.NewMockHTTPClient(nil)
	exec := newExecutor(client)
	rd := routerData()

	out, err := exec.Execute(context.Background(), &stubIntegration{noRequest: true}, rd, connector.Trigger())
	require.NoError(t, err)
	assert.Same(t, rd, out)
	assert.Zero(t, client.CallCount())
}

func TestExecutor_HandleResponseBody(t *testing.T) {
	client := mocks.NewMockHTTPClient(nil)
	exec := newExecutor(client)

	body := []byte(`{"id":"txn_wh","status":"authorized"}`)
	out, err := exec.Execute(context.Background(), &stubIntegration{}, routerData(), connector.HandleResponseBody(body))
	require.NoError(t, err)

	assert.Equal(t, domain.AttemptStatusAuthorized, out.Status)
	assert.Equal(t, "txn_wh", out.PaymentResponse.ConnectorTransactionID)
	assert.Zero(t, client.CallCount(), "webhook body replaces the network call")

	_, err = exec.Execute(context.Background(), &stubIntegration{}, routerData(), connector.HandleResponseBody([]byte("{")))
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeResponseDeserialization, domain.GetErrorCode(err))
}

func TestExecutor_Avoid(t *testing.T) {
	client := mocks.NewMockHTTPClient(nil)
	exec := newExecutor(client)
	rd := routerData()

	out, err := exec.Execute(context.Background(), &stubIntegration{}, rd, connector.Avoid())
	require.NoError(t, err)
	assert.Same(t, rd, out)
	assert.Zero(t, client.CallCount())
}

func TestHTTPSender_OpenCircuitIsTransportError(t *testing.T) {
	client := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("timeout")
	})
	breakers := resilience.NewCircuitBreakerGroup(resilience.CircuitBreakerConfig{
		MaxFailures:         2,
		Timeout:             resilience.DefaultCircuitBreakerConfig().Timeout,
		MaxRequestsHalfOpen: 1,
	}, nil)
	sender := connector.NewHTTPSender(client, breakers)
	req := &connector.Request{Method: http.MethodGet, URL: "https://processor.test/status"}

	for i := 0; i < 2; i++ {
		_, err := sender.Send(context.Background(), req)
		require.Error(t, err)
	}
	assert.Equal(t, resilience.StateOpen, breakers.Get("processor.test").State())

	_, err := sender.Send(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.True(t, errors.Is(err, domain.ErrTransport))
	assert.Equal(t, 2, client.CallCount(), "open circuit short-circuits the call")
}
