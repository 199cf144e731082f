package epx

import (
	"encoding/xml"
	"net/url"
	"strings"
	"time"

	"github.com/kevin07696/payment-router/internal/adapters/north"
	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain"
	pkgerrors "github.com/kevin07696/payment-router/pkg/errors"
	"github.com/shopspring/decimal"
)

// TRAN_TYPE values
const (
	TranTypeAuthOnly = "A" // Authorization only
	TranTypeCapture  = "D" // Capture previous authorization
	TranTypeSale     = "S" // Sale (auth + capture)
	TranTypeRefund   = "C" // Credit/refund
	TranTypeVoid     = "V" // Void transaction
)

const approvedCode = "00"

// Field names shared by requests, replies and callbacks
const (
	FieldAuthGUID     = "AUTH_GUID"
	FieldAuthResp     = "AUTH_RESP"
	FieldAuthRespText = "AUTH_RESP_TEXT"
	FieldAuthCode     = "AUTH_CODE"
	FieldTranNbr      = "TRAN_NBR"
	FieldTranType     = "TRAN_TYPE"
	FieldAmount       = "AMOUNT"
	FieldOrigAuthGUID = "ORIG_AUTH_GUID"
)

// Credentials are the four merchant numbers every request carries
type Credentials struct {
	CustNbr     string
	MerchNbr    string
	DBANbr      string
	TerminalNbr string
}

// credentials reads a MultiAuthKey: api_key, key1, key2 and api_secret are
// CUST_NBR, MERCH_NBR, DBA_NBR and TERMINAL_NBR
func credentials(a connector.AuthType) (Credentials, error) {
	a, err := a.Expect(connector.AuthKindMultiAuthKey)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{CustNbr: a.APIKey, MerchNbr: a.Key1, DBANbr: a.Key2, TerminalNbr: a.APISecret}, nil
}

func buildForm(flow domain.Flow, rd *connector.RouterData) (url.Values, error) {
	creds, err := credentials(rd.Auth)
	if err != nil {
		return nil, err
	}

	data := url.Values{}
	data.Set("CUST_NBR", creds.CustNbr)
	data.Set("MERCH_NBR", creds.MerchNbr)
	data.Set("DBA_NBR", creds.DBANbr)
	data.Set("TERMINAL_NBR", creds.TerminalNbr)

	now := time.Now()
	data.Set("BATCH_ID", now.Format("20060102"))
	data.Set("LOCAL_DATE", now.Format("010206"))
	data.Set("LOCAL_TIME", now.Format("150405"))

	switch flow {
	case domain.FlowAuthorize:
		p, err := rd.RequirePayment()
		if err != nil {
			return nil, err
		}
		if p.PaymentToken == "" {
			return nil, missingField("payment_token")
		}
		tranType := TranTypeSale
		if !capturesImmediately(p) {
			tranType = TranTypeAuthOnly
		}
		data.Set(FieldTranType, tranType)
		data.Set(FieldAmount, connector.StringMajorUnit(p.Amount, p.Currency))
		data.Set(FieldTranNbr, connector.NumericReference(rd.AttemptID))
		data.Set(FieldOrigAuthGUID, p.PaymentToken)
		data.Set("CARD_ENT_METH", "Z")
		data.Set("INDUSTRY_TYPE", "E")

	case domain.FlowCapture, domain.FlowVoid:
		p, err := rd.RequirePayment()
		if err != nil {
			return nil, err
		}
		if p.ConnectorTransactionID == "" {
			return nil, missingField("connector_transaction_id")
		}
		amount := p.Amount
		if flow == domain.FlowCapture {
			data.Set(FieldTranType, TranTypeCapture)
			if p.AmountToCapture != nil {
				amount = *p.AmountToCapture
			}
		} else {
			data.Set(FieldTranType, TranTypeVoid)
		}
		data.Set(FieldAmount, connector.StringMajorUnit(amount, p.Currency))
		data.Set(FieldTranNbr, connector.NumericReference(rd.AttemptID+":"+flow.String()))
		data.Set(FieldOrigAuthGUID, p.ConnectorTransactionID)

	case domain.FlowExecute:
		r, err := rd.RequireRefund()
		if err != nil {
			return nil, err
		}
		if r.ConnectorTransactionID == "" {
			return nil, missingField("connector_transaction_id")
		}
		data.Set(FieldTranType, TranTypeRefund)
		data.Set(FieldAmount, connector.StringMajorUnit(r.RefundAmount, r.Currency))
		data.Set(FieldTranNbr, connector.NumericReference(r.RefundID))
		data.Set(FieldOrigAuthGUID, r.ConnectorTransactionID)

	case domain.FlowPSync:
		p, err := rd.RequirePayment()
		if err != nil {
			return nil, err
		}
		if p.ConnectorTransactionID == "" {
			return nil, missingField("connector_transaction_id")
		}
		data.Set(FieldTranNbr, connector.NewReference())
		data.Set(FieldOrigAuthGUID, p.ConnectorTransactionID)

	case domain.FlowRSync:
		r, err := rd.RequireRefund()
		if err != nil {
			return nil, err
		}
		if r.ConnectorRefundID == nil || *r.ConnectorRefundID == "" {
			return nil, missingField("connector_refund_id")
		}
		data.Set(FieldTranNbr, connector.NewReference())
		data.Set(FieldOrigAuthGUID, *r.ConnectorRefundID)

	case domain.FlowVerifyWebhookSource:
		if rd.WebhookVerify == nil {
			return nil, missingField("webhook")
		}
		callback, err := url.ParseQuery(string(rd.WebhookVerify.Body))
		if err != nil || callback.Get(FieldAuthGUID) == "" {
			return nil, domain.NewDomainError(domain.ErrorCodeWebhookSourceVerification, "callback carries no AUTH_GUID")
		}
		data.Set(FieldTranNbr, connector.NewReference())
		data.Set(FieldOrigAuthGUID, callback.Get(FieldAuthGUID))

	default:
		return nil, domain.NewDomainError(domain.ErrorCodeFlowNotSupported, "epx does not support "+flow.String())
	}

	return data, nil
}

func capturesImmediately(p *connector.PaymentsRequestData) bool {
	return p.CaptureMethod == "" || p.CaptureMethod == domain.CaptureMethodAutomatic
}

// Reply is a parsed EPX response or callback
type Reply map[string]string

// Get returns a field or ""
func (r Reply) Get(key string) string { return r[key] }

// Approved reports AUTH_RESP 00
func (r Reply) Approved() bool { return r[FieldAuthResp] == approvedCode }

// EPXResponse is the XML reply envelope
type EPXResponse struct {
	XMLName xml.Name  `xml:"RESPONSE"`
	Fields  EPXFields `xml:"FIELDS"`
}

type EPXFields struct {
	Fields []EPXField `xml:"FIELD"`
}

type EPXField struct {
	Key   string `xml:"KEY,attr"`
	Value string `xml:",chardata"`
}

// ParseReply accepts the XML FIELD list or key-value pairs. AUTH_GUID and
// AUTH_RESP are required.
func ParseReply(body []byte) (Reply, error) {
	trimmed := strings.TrimSpace(string(body))

	reply := Reply{}
	if strings.HasPrefix(trimmed, "<") {
		var resp EPXResponse
		if err := xml.Unmarshal([]byte(trimmed), &resp); err != nil {
			return nil, domain.WrapError(domain.ErrorCodeResponseDeserialization, "decode epx xml reply", err)
		}
		for _, f := range resp.Fields.Fields {
			reply[f.Key] = strings.TrimSpace(f.Value)
		}
	} else {
		params, err := url.ParseQuery(trimmed)
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeResponseDeserialization, "decode epx key-value reply", err)
		}
		for k := range params {
			reply[k] = params.Get(k)
		}
	}

	for _, required := range []string{FieldAuthGUID, FieldAuthResp} {
		if reply[required] == "" {
			return nil, domain.NewDomainError(domain.ErrorCodeResponseDeserialization, required+" is missing from epx reply")
		}
	}
	return reply, nil
}

func handleResponse(flow domain.Flow, rd *connector.RouterData, resp connector.Response) (*connector.RouterData, error) {
	reply, err := ParseReply(resp.Body)
	if err != nil {
		return nil, err
	}

	switch flow {
	case domain.FlowVerifyWebhookSource:
		return verifyResult(rd, reply), nil
	case domain.FlowExecute, domain.FlowRSync:
		return refundResult(flow, rd, reply), nil
	}

	if !reply.Approved() {
		e := declined(resp.StatusCode, reply)
		if flow == domain.FlowAuthorize {
			guid := reply.Get(FieldAuthGUID)
			e.ConnectorTransactionID = &guid
		}
		if flow == domain.FlowPSync {
			failed := domain.AttemptStatusFailure
			e.AttemptStatus = &failed
		}
		return rd.WithError(e), nil
	}

	status, err := paymentStatus(flow, rd, reply)
	if err != nil {
		return nil, err
	}

	out := rd.Clone()
	out.Status = status
	out.PaymentResponse = &connector.PaymentsResponseData{
		ConnectorTransactionID:       reply.Get(FieldAuthGUID),
		ConnectorResponseReferenceID: optional(reply.Get(FieldAuthCode)),
	}
	// follow-up transactions get their own AUTH_GUID; the payment keeps the original
	if flow != domain.FlowAuthorize && rd.Payment != nil && rd.Payment.ConnectorTransactionID != "" {
		guid := reply.Get(FieldAuthGUID)
		out.PaymentResponse.ConnectorTransactionID = rd.Payment.ConnectorTransactionID
		out.PaymentResponse.ConnectorResponseReferenceID = &guid
	}
	return out, nil
}

func paymentStatus(flow domain.Flow, rd *connector.RouterData, reply Reply) (domain.AttemptStatus, error) {
	switch flow {
	case domain.FlowAuthorize:
		if rd.Payment != nil && !capturesImmediately(rd.Payment) {
			return domain.AttemptStatusAuthorized, nil
		}
		return domain.AttemptStatusCharged, nil
	case domain.FlowCapture:
		return domain.AttemptStatusCharged, nil
	case domain.FlowVoid:
		return domain.AttemptStatusVoided, nil
	case domain.FlowPSync:
		switch reply.Get(FieldTranType) {
		case TranTypeSale, TranTypeCapture:
			return domain.AttemptStatusCharged, nil
		case TranTypeAuthOnly:
			return domain.AttemptStatusAuthorized, nil
		case TranTypeVoid:
			return domain.AttemptStatusVoided, nil
		}
		return "", domain.NewDomainError(domain.ErrorCodeResponseDeserialization, "epx reply has no usable TRAN_TYPE").
			WithDetail("tran_type", reply.Get(FieldTranType))
	}
	return "", domain.NewDomainError(domain.ErrorCodeFlowNotSupported, "epx does not support "+flow.String())
}

func refundResult(flow domain.Flow, rd *connector.RouterData, reply Reply) *connector.RouterData {
	refundID := reply.Get(FieldAuthGUID)
	if flow == domain.FlowRSync && rd.Refund != nil && rd.Refund.ConnectorRefundID != nil {
		refundID = *rd.Refund.ConnectorRefundID
	}
	status := domain.RefundStatusFailure
	if reply.Approved() {
		status = domain.RefundStatusSuccess
	}
	out := rd.Clone()
	out.RefundResponse = &connector.RefundsResponseData{ConnectorRefundID: refundID, Status: status}
	return out
}

// verifyResult accepts the callback when EPX reports the same transaction
// with the same outcome
func verifyResult(rd *connector.RouterData, reply Reply) *connector.RouterData {
	verified := false
	if rd.WebhookVerify != nil {
		if callback, err := url.ParseQuery(string(rd.WebhookVerify.Body)); err == nil {
			verified = callback.Get(FieldAuthGUID) == reply.Get(FieldAuthGUID) &&
				callback.Get(FieldAuthResp) == reply.Get(FieldAuthResp) &&
				sameAmount(callback.Get(FieldAmount), reply.Get(FieldAmount))
		}
	}
	out := rd.Clone()
	out.WebhookVerified = &verified
	return out
}

// sameAmount treats a missing amount on either side as a match
func sameAmount(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	da, errA := decimal.NewFromString(a)
	db, errB := decimal.NewFromString(b)
	if errA != nil || errB != nil {
		return false
	}
	return da.Equal(db)
}

func declined(statusCode int, reply Reply) *connector.ErrorResponse {
	return north.LookupResponseCode(reply.Get(FieldAuthResp)).ErrorResponse(statusCode, reply.Get(FieldAuthRespText))
}

func errorResponse(resp connector.Response) *connector.ErrorResponse {
	if reply, err := ParseReply(resp.Body); err == nil {
		return declined(resp.StatusCode, reply)
	}
	return &connector.ErrorResponse{
		StatusCode: resp.StatusCode,
		Code:       connector.NoErrorCode,
		Message:    connector.NoErrorMessage,
		Category:   pkgerrors.CategoryInvalidRequest,
	}
}

func missingField(field string) error {
	return domain.NewDomainError(domain.ErrorCodeMissingRequiredField, "epx requires "+field).
		WithDetail("field", field)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
