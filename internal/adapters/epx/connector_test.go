package epx_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/kevin07696/payment-router/internal/adapters/epx"
	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain"
	pkgerrors "github.com/kevin07696/payment-router/pkg/errors"
	"github.com/kevin07696/payment-router/pkg/resilience"
	"github.com/kevin07696/payment-router/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAuth = connector.MultiAuthKey("9001", "900300", "2", "21")

type recorded struct {
	method string
	form   url.Values
}

func newServer(t *testing.T, status int, body string) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		rec.method = r.Method
		rec.form, _ = url.ParseQuery(string(b))
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func execute(t *testing.T, srv *httptest.Server, rd *connector.RouterData) (*connector.RouterData, error) {
	t.Helper()
	c := epx.New(epx.Config{ServerPostURL: srv.URL, InquiryURL: srv.URL})
	integ := c.Integration(rd.Flow)
	require.NotNil(t, integ)
	executor := connector.NewExecutor(connector.NewHTTPSender(srv.Client(), nil), resilience.TestTimeoutConfig(), mocks.NewMockLogger())
	return executor.Execute(context.Background(), integ, rd, connector.Trigger())
}

func paymentData(flow domain.Flow, p connector.PaymentsRequestData) *connector.RouterData {
	return &connector.RouterData{
		Flow:       flow,
		Connector:  epx.Name,
		MerchantID: "m1",
		PaymentID:  "pay_1",
		AttemptID:  "att_1",
		Auth:       testAuth,
		Status:     domain.AttemptStatusPending,
		Payment:    &p,
	}
}

func xmlReply(fields map[string]string) string {
	s := "<RESPONSE><FIELDS>"
	for k, v := range fields {
		s += `<FIELD KEY="` + k + `">` + v + `</FIELD>`
	}
	return s + "</FIELDS></RESPONSE>"
}

func TestAuthorize_SaleForm(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, xmlReply(map[string]string{
		"AUTH_GUID": "09LMQ1", "AUTH_RESP": "00", "AUTH_CODE": "057579",
	}))

	out, err := execute(t, srv, paymentData(domain.FlowAuthorize, connector.PaymentsRequestData{
		Amount: 1050, Currency: "USD", CaptureMethod: domain.CaptureMethodAutomatic, PaymentToken: "BRIC_TOKEN",
	}))
	require.NoError(t, err)
	require.Nil(t, out.Err)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "9001", rec.form.Get("CUST_NBR"))
	assert.Equal(t, "900300", rec.form.Get("MERCH_NBR"))
	assert.Equal(t, "2", rec.form.Get("DBA_NBR"))
	assert.Equal(t, "21", rec.form.Get("TERMINAL_NBR"))
	assert.Equal(t, epx.TranTypeSale, rec.form.Get("TRAN_TYPE"))
	assert.Equal(t, "10.50", rec.form.Get("AMOUNT"))
	assert.Equal(t, "BRIC_TOKEN", rec.form.Get("ORIG_AUTH_GUID"))
	assert.Equal(t, connector.NumericReference("att_1"), rec.form.Get("TRAN_NBR"))

	assert.Equal(t, domain.AttemptStatusCharged, out.Status)
	assert.Equal(t, "09LMQ1", out.PaymentResponse.ConnectorTransactionID)
	assert.Equal(t, "057579", *out.PaymentResponse.ConnectorResponseReferenceID)
}

func TestAuthorize_ManualCaptureIsAuthOnly(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, "AUTH_GUID=g1&AUTH_RESP=00")

	out, err := execute(t, srv, paymentData(domain.FlowAuthorize, connector.PaymentsRequestData{
		Amount: 500, Currency: "USD", CaptureMethod: domain.CaptureMethodManual, PaymentToken: "tok",
	}))
	require.NoError(t, err)

	assert.Equal(t, epx.TranTypeAuthOnly, rec.form.Get("TRAN_TYPE"))
	assert.Equal(t, domain.AttemptStatusAuthorized, out.Status)
}

func TestAuthorize_Declined(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, xmlReply(map[string]string{
		"AUTH_GUID": "g_decl", "AUTH_RESP": "51", "AUTH_RESP_TEXT": "INSUFF FUNDS",
	}))

	out, err := execute(t, srv, paymentData(domain.FlowAuthorize, connector.PaymentsRequestData{
		Amount: 500, Currency: "USD", PaymentToken: "tok",
	}))
	require.NoError(t, err)
	require.NotNil(t, out.Err)

	assert.Equal(t, "51", out.Err.Code)
	assert.Equal(t, pkgerrors.CategoryInsufficientFunds, out.Err.Category)
	assert.Equal(t, "INSUFF FUNDS", *out.Err.Reason)
	assert.Equal(t, "g_decl", *out.Err.ConnectorTransactionID)
}

func TestServerErrorWithFieldsIsADecline(t *testing.T) {
	srv, _ := newServer(t, http.StatusInternalServerError, "AUTH_GUID=g&AUTH_RESP=05")

	out, err := execute(t, srv, paymentData(domain.FlowAuthorize, connector.PaymentsRequestData{
		Amount: 500, Currency: "USD", PaymentToken: "tok",
	}))
	require.NoError(t, err)
	require.NotNil(t, out.Err)
	assert.Equal(t, "05", out.Err.Code)
}

func TestClientError_NoFields(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadRequest, "bad request")

	out, err := execute(t, srv, paymentData(domain.FlowAuthorize, connector.PaymentsRequestData{
		Amount: 500, Currency: "USD", PaymentToken: "tok",
	}))
	require.NoError(t, err)
	require.NotNil(t, out.Err)
	assert.Equal(t, connector.NoErrorCode, out.Err.Code)
	assert.Equal(t, http.StatusBadRequest, out.Err.StatusCode)
}

func TestMalformedReply(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, "<RESPONSE><FIELDS>")

	_, err := execute(t, srv, paymentData(domain.FlowAuthorize, connector.PaymentsRequestData{
		Amount: 500, Currency: "USD", PaymentToken: "tok",
	}))
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeResponseDeserialization))
}

func TestWrongAuthKind(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, "AUTH_GUID=g&AUTH_RESP=00")

	rd := paymentData(domain.FlowAuthorize, connector.PaymentsRequestData{Amount: 1, Currency: "USD", PaymentToken: "tok"})
	rd.Auth = connector.SignatureKey("a", "b", "c")
	_, err := execute(t, srv, rd)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeFailedToObtainAuthType))
}

func TestCaptureAndVoid_KeepAuthorizationReference(t *testing.T) {
	tests := []struct {
		flow     domain.Flow
		tranType string
		amount   string
		status   domain.AttemptStatus
	}{
		{domain.FlowCapture, epx.TranTypeCapture, "4.00", domain.AttemptStatusCharged},
		{domain.FlowVoid, epx.TranTypeVoid, "10.00", domain.AttemptStatusVoided},
	}

	for _, tt := range tests {
		t.Run(tt.flow.String(), func(t *testing.T) {
			srv, rec := newServer(t, http.StatusOK, "AUTH_GUID=g_new&AUTH_RESP=00")

			partial := domain.MinorUnit(400)
			out, err := execute(t, srv, paymentData(tt.flow, connector.PaymentsRequestData{
				Amount: 1000, Currency: "USD", AmountToCapture: &partial, ConnectorTransactionID: "g_auth",
			}))
			require.NoError(t, err)

			assert.Equal(t, tt.tranType, rec.form.Get("TRAN_TYPE"))
			assert.Equal(t, tt.amount, rec.form.Get("AMOUNT"))
			assert.Equal(t, "g_auth", rec.form.Get("ORIG_AUTH_GUID"))
			assert.Equal(t, tt.status, out.Status)
			assert.Equal(t, "g_auth", out.PaymentResponse.ConnectorTransactionID)
			assert.Equal(t, "g_new", *out.PaymentResponse.ConnectorResponseReferenceID)
		})
	}
}

func TestPSync_TranTypes(t *testing.T) {
	tests := []struct {
		tranType string
		want     domain.AttemptStatus
	}{
		{epx.TranTypeSale, domain.AttemptStatusCharged},
		{epx.TranTypeCapture, domain.AttemptStatusCharged},
		{epx.TranTypeAuthOnly, domain.AttemptStatusAuthorized},
		{epx.TranTypeVoid, domain.AttemptStatusVoided},
	}

	for _, tt := range tests {
		t.Run(tt.tranType, func(t *testing.T) {
			srv, rec := newServer(t, http.StatusOK, "AUTH_GUID=g1&AUTH_RESP=00&TRAN_TYPE="+tt.tranType)

			out, err := execute(t, srv, paymentData(domain.FlowPSync, connector.PaymentsRequestData{ConnectorTransactionID: "g1"}))
			require.NoError(t, err)

			assert.Equal(t, "g1", rec.form.Get("ORIG_AUTH_GUID"))
			assert.Empty(t, rec.form.Get("TRAN_TYPE"))
			assert.Equal(t, tt.want, out.Status)
		})
	}
}

func TestPSync_DeclinedMarksFailure(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, "AUTH_GUID=g1&AUTH_RESP=05&TRAN_TYPE=S")

	out, err := execute(t, srv, paymentData(domain.FlowPSync, connector.PaymentsRequestData{ConnectorTransactionID: "g1"}))
	require.NoError(t, err)
	require.NotNil(t, out.Err)
	require.NotNil(t, out.Err.AttemptStatus)
	assert.Equal(t, domain.AttemptStatusFailure, *out.Err.AttemptStatus)
}

func TestRefund(t *testing.T) {
	tests := []struct {
		name string
		resp string
		want domain.RefundStatus
	}{
		{"approved", "00", domain.RefundStatusSuccess},
		{"declined", "05", domain.RefundStatusFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, rec := newServer(t, http.StatusOK, "AUTH_GUID=g_ref&AUTH_RESP="+tt.resp)

			rd := &connector.RouterData{
				Flow: domain.FlowExecute, Connector: epx.Name, MerchantID: "m1", PaymentID: "pay_1", AttemptID: "att_1",
				Auth: testAuth,
				Refund: &connector.RefundsRequestData{
					RefundID: "ref_1", ConnectorTransactionID: "g_auth", RefundAmount: 250, PaymentAmount: 1000, Currency: "USD",
				},
			}
			out, err := execute(t, srv, rd)
			require.NoError(t, err)

			assert.Equal(t, epx.TranTypeRefund, rec.form.Get("TRAN_TYPE"))
			assert.Equal(t, "2.50", rec.form.Get("AMOUNT"))
			assert.Equal(t, connector.NumericReference("ref_1"), rec.form.Get("TRAN_NBR"))
			assert.Equal(t, "g_ref", out.RefundResponse.ConnectorRefundID)
			assert.Equal(t, tt.want, out.RefundResponse.Status)
		})
	}
}

func TestVerifyWebhookSource(t *testing.T) {
	callback := "AUTH_GUID=g1&AUTH_RESP=00&AMOUNT=10.00&TRAN_TYPE=S&TRAN_NBR=42"

	tests := []struct {
		name  string
		reply string
		want  bool
	}{
		{"matching", "AUTH_GUID=g1&AUTH_RESP=00&AMOUNT=10.00", true},
		{"different_outcome", "AUTH_GUID=g1&AUTH_RESP=05&AMOUNT=10.00", false},
		{"different_amount", "AUTH_GUID=g1&AUTH_RESP=00&AMOUNT=99.00", false},
		{"different_transaction", "AUTH_GUID=g2&AUTH_RESP=00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, rec := newServer(t, http.StatusOK, tt.reply)

			rd := &connector.RouterData{
				Flow: domain.FlowVerifyWebhookSource, Connector: epx.Name, MerchantID: "m1", Auth: testAuth,
				WebhookVerify: &connector.VerifyWebhookSourceRequestData{Body: []byte(callback)},
			}
			out, err := execute(t, srv, rd)
			require.NoError(t, err)

			assert.Equal(t, "g1", rec.form.Get("ORIG_AUTH_GUID"))
			require.NotNil(t, out.WebhookVerified)
			assert.Equal(t, tt.want, *out.WebhookVerified)
		})
	}
}

func TestParseReply(t *testing.T) {
	reply, err := epx.ParseReply([]byte(xmlReply(map[string]string{"AUTH_GUID": " g ", "AUTH_RESP": "00"})))
	require.NoError(t, err)
	assert.Equal(t, "g", reply.Get(epx.FieldAuthGUID))
	assert.True(t, reply.Approved())

	_, err = epx.ParseReply([]byte("AUTH_RESP=00"))
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeResponseDeserialization))
}

func TestUnsupportedFlow(t *testing.T) {
	assert.Nil(t, epx.New(epx.Config{}).Integration(domain.FlowSetupMandate))
}

func TestVerifyWebhookSource_AmountFormatting(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, "AUTH_GUID=g1&AUTH_RESP=00&AMOUNT=10.0")

	rd := &connector.RouterData{
		Flow: domain.FlowVerifyWebhookSource, Connector: epx.Name, MerchantID: "m1", Auth: testAuth,
		WebhookVerify: &connector.VerifyWebhookSourceRequestData{Body: []byte("AUTH_GUID=g1&AUTH_RESP=00&AMOUNT=10.00")},
	}
	out, err := execute(t, srv, rd)
	require.NoError(t, err)
	assert.True(t, *out.WebhookVerified)
}
