package epx

import (
	"net/http"
	"net/url"

	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain"
)

// Browser Post callbacks are the same field set as a Server Post reply,
// form-encoded. EPX does not sign them.
type webhooks struct{}

var _ connector.IncomingWebhook = webhooks{}

func decodeCallback(req connector.WebhookRequest) (url.Values, error) {
	values, err := url.ParseQuery(string(req.Body))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeWebhookBodyDecoding, "epx callback is not form-encoded", err)
	}
	return values, nil
}

func (webhooks) ObjectReferenceID(req connector.WebhookRequest) (domain.ObjectReferenceID, error) {
	cb, err := decodeCallback(req)
	if err != nil {
		return domain.ObjectReferenceID{}, err
	}
	guid := cb.Get(FieldAuthGUID)
	if cb.Get(FieldTranType) == TranTypeRefund {
		if guid == "" {
			return domain.ObjectReferenceID{}, domain.ErrWebhookReferenceNotFound
		}
		return domain.RefundReference(domain.RefundIDTypeConnectorRefundID, guid), nil
	}
	// captures and voids point back at the authorization
	if orig := cb.Get(FieldOrigAuthGUID); orig != "" {
		guid = orig
	}
	if guid == "" {
		return domain.ObjectReferenceID{}, domain.ErrWebhookReferenceNotFound
	}
	return domain.PaymentReference(domain.PaymentIDTypeConnectorTransactionID, guid), nil
}

func (webhooks) EventType(req connector.WebhookRequest) (domain.IncomingWebhookEvent, error) {
	cb, err := decodeCallback(req)
	if err != nil {
		return "", err
	}
	resp := cb.Get(FieldAuthResp)
	if resp == "" {
		return "", domain.ErrWebhookEventTypeNotFound
	}
	approved := resp == approvedCode

	switch cb.Get(FieldTranType) {
	case TranTypeSale:
		if approved {
			return domain.WebhookEventPaymentIntentSuccess, nil
		}
		return domain.WebhookEventPaymentIntentFailure, nil
	case TranTypeAuthOnly:
		if approved {
			return domain.WebhookEventPaymentIntentAuthorizationSuccess, nil
		}
		return domain.WebhookEventPaymentIntentAuthorizationFailure, nil
	case TranTypeCapture:
		if approved {
			return domain.WebhookEventPaymentIntentCaptureSuccess, nil
		}
		return domain.WebhookEventPaymentIntentCaptureFailure, nil
	case TranTypeVoid:
		if approved {
			return domain.WebhookEventPaymentIntentCancelled, nil
		}
		return domain.WebhookEventPaymentIntentCancelFailure, nil
	case TranTypeRefund:
		if approved {
			return domain.WebhookEventRefundSuccess, nil
		}
		return domain.WebhookEventRefundFailure, nil
	}
	return domain.WebhookEventEventNotSupported, nil
}

// ResourceObject is the callback itself; ParseReply reads it like an
// inquiry reply
func (webhooks) ResourceObject(req connector.WebhookRequest) ([]byte, error) {
	if _, err := ParseReply(req.Body); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeWebhookResourceObjectAbsent, "epx callback is incomplete", err)
	}
	return req.Body, nil
}

func (webhooks) VerificationStrategy() connector.VerificationStrategy {
	return connector.VerificationRemote
}

// APIResponse echoes TRAN_NBR so EPX stops redelivering
func (webhooks) APIResponse(req connector.WebhookRequest) connector.WebhookAPIResponse {
	cb, err := decodeCallback(req)
	if err != nil || cb.Get(FieldTranNbr) == "" {
		return connector.DefaultWebhookAPIResponse()
	}
	return connector.WebhookAPIResponse{
		StatusCode:  http.StatusOK,
		ContentType: "text/plain",
		Body:        []byte(cb.Get(FieldTranNbr)),
	}
}
