package north

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain"
	pkgerrors "github.com/kevin07696/payment-router/pkg/errors"
)

const (
	industryTypeEcommerce = "E"
	cardEntryToken        = "Z"
	approvedCode          = "00"
)

// Transaction states reported by status lookups and webhooks
const (
	StateAuthorized = "AUTHORIZED"
	StateCaptured   = "CAPTURED"
	StateSettled    = "SETTLED"
	StateVoided     = "VOIDED"
	StateDeclined   = "DECLINED"
	StatePending    = "PENDING"
	StateRefunded   = "REFUNDED"
)

// SaleRequest represents a sale request to Custom Pay API
type SaleRequest struct {
	Amount          float64 `json:"amount"`
	Capture         bool    `json:"capture"`
	Transaction     int64   `json:"transaction"`
	BatchID         string  `json:"batchID"`
	IndustryType    string  `json:"industryType"`    // E=Ecommerce
	CardEntryMethod string  `json:"cardEntryMethod"` // Z=Token
	Terminal        string  `json:"terminal,omitempty"`
}

// CaptureRequest captures a prior authorization, fully or in part
type CaptureRequest struct {
	Amount          float64 `json:"amount"`
	Transaction     int64   `json:"transaction"`
	BatchID         string  `json:"batchID"`
	CardEntryMethod string  `json:"cardEntryMethod"`
}

// VoidRequest cancels an unsettled transaction
type VoidRequest struct {
	Transaction     int64  `json:"transaction"`
	BatchID         string `json:"batchID"`
	CardEntryMethod string `json:"cardEntryMethod"`
}

// RefundRequest credits a settled sale
type RefundRequest struct {
	Amount          float64 `json:"amount"`
	Transaction     int64   `json:"transaction"`
	BatchID         string  `json:"batchID"`
	IndustryType    string  `json:"industryType"`
	CardEntryMethod string  `json:"cardEntryMethod"`
}

// TransactionResponse is the reply of every Custom Pay endpoint and the
// object embedded in webhooks
type TransactionResponse struct {
	Data struct {
		Response string   `json:"response"`           // Response code (00, 51, etc.)
		Text     string   `json:"text"`               // Response message
		AuthCode string   `json:"authCode,omitempty"` // Authorization code
		State    string   `json:"state,omitempty"`
		Amount   *float64 `json:"amount,omitempty"`
	} `json:"data"`
	Reference struct {
		BRIC string `json:"bric"` // Token for future transactions
	} `json:"reference"`
	Status int `json:"status"`
}

// errorBody is North's 4xx/5xx shape
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func buildRequest(flow domain.Flow, rd *connector.RouterData) (any, error) {
	batchID := time.Now().UTC().Format("20060102")

	switch flow {
	case domain.FlowAuthorize:
		p, err := rd.RequirePayment()
		if err != nil {
			return nil, err
		}
		auth, err := authConfig(rd.Auth)
		if err != nil {
			return nil, err
		}
		return SaleRequest{
			Amount:          connector.FloatMajorUnit(p.Amount, p.Currency),
			Capture:         p.CaptureMethod == "" || p.CaptureMethod == domain.CaptureMethodAutomatic,
			Transaction:     transactionNumber(rd.AttemptID),
			BatchID:         batchID,
			IndustryType:    industryTypeEcommerce,
			CardEntryMethod: cardEntryToken,
			Terminal:        auth.Terminal,
		}, nil

	case domain.FlowCapture:
		p, err := rd.RequirePayment()
		if err != nil {
			return nil, err
		}
		amount := p.Amount
		if p.AmountToCapture != nil {
			amount = *p.AmountToCapture
		}
		return CaptureRequest{
			Amount:          connector.FloatMajorUnit(amount, p.Currency),
			Transaction:     transactionNumber(rd.AttemptID),
			BatchID:         batchID,
			CardEntryMethod: cardEntryToken,
		}, nil

	case domain.FlowVoid:
		return VoidRequest{
			Transaction:     transactionNumber(rd.AttemptID),
			BatchID:         batchID,
			CardEntryMethod: cardEntryToken,
		}, nil

	case domain.FlowExecute:
		r, err := rd.RequireRefund()
		if err != nil {
			return nil, err
		}
		return RefundRequest{
			Amount:          connector.FloatMajorUnit(r.RefundAmount, r.Currency),
			Transaction:     transactionNumber(r.RefundID),
			BatchID:         batchID,
			IndustryType:    industryTypeEcommerce,
			CardEntryMethod: cardEntryToken,
		}, nil
	}
	return nil, nil
}

func transactionNumber(id string) int64 {
	n, _ := strconv.ParseInt(connector.NumericReference(id), 10, 64)
	return n
}

func decodeTransaction(body []byte) (TransactionResponse, error) {
	var r TransactionResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return r, domain.WrapError(domain.ErrorCodeResponseDeserialization, "decode north response", err)
	}
	if r.Data.Response == "" {
		return r, domain.NewDomainError(domain.ErrorCodeResponseDeserialization, "north response has no response code")
	}
	return r, nil
}

func handleResponse(flow domain.Flow, rd *connector.RouterData, resp connector.Response) (*connector.RouterData, error) {
	r, err := decodeTransaction(resp.Body)
	if err != nil {
		return nil, err
	}
	if flow.IsRefundFlow() {
		return refundResult(rd, r), nil
	}

	if r.Data.Response != approvedCode {
		e := LookupResponseCode(r.Data.Response).ErrorResponse(resp.StatusCode, r.Data.Text)
		if r.Reference.BRIC != "" {
			e.ConnectorTransactionID = &r.Reference.BRIC
		}
		if flow == domain.FlowPSync && strings.EqualFold(r.Data.State, StateDeclined) {
			failed := domain.AttemptStatusFailure
			e.AttemptStatus = &failed
		}
		return rd.WithError(e), nil
	}

	status, err := paymentStatus(flow, rd, r)
	if err != nil {
		return nil, err
	}

	out := rd.Clone()
	out.Status = status
	out.PaymentResponse = &connector.PaymentsResponseData{
		ConnectorTransactionID:       transactionID(rd, r),
		ConnectorResponseReferenceID: optional(r.Data.AuthCode),
	}
	return out, nil
}

// transactionID keeps the authorization's BRIC as the payment's reference:
// capture and void replies may carry a BRIC of their own
func transactionID(rd *connector.RouterData, r TransactionResponse) string {
	if rd.Payment != nil && rd.Payment.ConnectorTransactionID != "" {
		return rd.Payment.ConnectorTransactionID
	}
	return r.Reference.BRIC
}

func paymentStatus(flow domain.Flow, rd *connector.RouterData, r TransactionResponse) (domain.AttemptStatus, error) {
	switch flow {
	case domain.FlowAuthorize:
		if p := rd.Payment; p != nil && p.CaptureMethod != "" && p.CaptureMethod != domain.CaptureMethodAutomatic {
			return domain.AttemptStatusAuthorized, nil
		}
		return domain.AttemptStatusCharged, nil
	case domain.FlowCapture:
		return domain.AttemptStatusCharged, nil
	case domain.FlowVoid:
		return domain.AttemptStatusVoided, nil
	case domain.FlowPSync:
		return stateToStatus(r.Data.State)
	}
	return "", domain.NewDomainError(domain.ErrorCodeFlowNotSupported, "north does not support "+flow.String())
}

func stateToStatus(state string) (domain.AttemptStatus, error) {
	switch strings.ToUpper(state) {
	case StateAuthorized:
		return domain.AttemptStatusAuthorized, nil
	case StateCaptured, StateSettled, StateRefunded:
		return domain.AttemptStatusCharged, nil
	case StateVoided:
		return domain.AttemptStatusVoided, nil
	case StateDeclined:
		return domain.AttemptStatusFailure, nil
	case StatePending:
		return domain.AttemptStatusPending, nil
	}
	return "", domain.NewDomainError(domain.ErrorCodeResponseDeserialization, "unknown north transaction state").
		WithDetail("state", state)
}

func refundResult(rd *connector.RouterData, r TransactionResponse) *connector.RouterData {
	refundID := r.Reference.BRIC
	if refundID == "" && rd.Refund != nil && rd.Refund.ConnectorRefundID != nil {
		refundID = *rd.Refund.ConnectorRefundID
	}

	status := domain.RefundStatusFailure
	if r.Data.Response == approvedCode {
		switch strings.ToUpper(r.Data.State) {
		case StatePending:
			status = domain.RefundStatusPending
		case StateDeclined:
			status = domain.RefundStatusFailure
		default:
			status = domain.RefundStatusSuccess
		}
	}

	out := rd.Clone()
	out.RefundResponse = &connector.RefundsResponseData{ConnectorRefundID: refundID, Status: status}
	return out
}

// errorResponse never fails: a body North did not shape still becomes a
// business error, and a 404 on a lookup means the processor has no record
func errorResponse(flow domain.Flow, resp connector.Response) *connector.ErrorResponse {
	var body errorBody
	if err := json.Unmarshal(resp.Body, &body); err == nil && body.Code != "" {
		e := &connector.ErrorResponse{
			StatusCode: resp.StatusCode,
			Code:       body.Code,
			Message:    body.Message,
			Category:   pkgerrors.CategoryInvalidRequest,
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			e.Category = pkgerrors.CategorySystemError
		}
		return e
	}

	if resp.StatusCode == http.StatusNotFound && flow.IsSync() {
		return &connector.ErrorResponse{
			StatusCode: resp.StatusCode,
			Code:       "TRANSACTION_NOT_FOUND",
			Message:    "North has no record of this transaction",
			Category:   pkgerrors.CategoryInvalidRequest,
		}
	}

	e := &connector.ErrorResponse{
		StatusCode: resp.StatusCode,
		Code:       connector.NoErrorCode,
		Message:    connector.NoErrorMessage,
		Category:   pkgerrors.CategoryInvalidRequest,
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		e.Category = pkgerrors.CategorySystemError
	}
	return e
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
