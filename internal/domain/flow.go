package domain

// Flow identifies one unit of work executed against a connector.
// It is a pure routing key: the registry resolves (connector, Flow) to an integration.
type Flow string

const (
	FlowAuthorize                Flow = "authorize"
	FlowCompleteAuthorize        Flow = "complete_authorize"
	FlowCapture                  Flow = "capture"
	FlowVoid                     Flow = "void"
	FlowPSync                    Flow = "psync"
	FlowExecute                  Flow = "execute_refund"
	FlowRSync                    Flow = "rsync"
	FlowAccessTokenAuth          Flow = "access_token_auth"
	FlowSetupMandate             Flow = "setup_mandate"
	FlowPaymentMethodToken       Flow = "payment_method_token"
	FlowPreProcessing            Flow = "preprocessing"
	FlowIncrementalAuthorization Flow = "incremental_authorization"
	FlowVerifyWebhookSource      Flow = "verify_webhook_source"
)

var allFlows = map[Flow]struct{}{
	FlowAuthorize:                {},
	FlowCompleteAuthorize:        {},
	FlowCapture:                  {},
	FlowVoid:                     {},
	FlowPSync:                    {},
	FlowExecute:                  {},
	FlowRSync:                    {},
	FlowAccessTokenAuth:          {},
	FlowSetupMandate:             {},
	FlowPaymentMethodToken:       {},
	FlowPreProcessing:            {},
	FlowIncrementalAuthorization: {},
	FlowVerifyWebhookSource:      {},
}

// Valid reports whether f is one of the known flows
func (f Flow) Valid() bool {
	_, ok := allFlows[f]
	return ok
}

// IsRefundFlow reports whether the flow operates on a refund rather than a payment attempt
func (f Flow) IsRefundFlow() bool {
	return f == FlowExecute || f == FlowRSync
}

// IsSync reports whether the flow only reads processor state
func (f Flow) IsSync() bool {
	return f == FlowPSync || f == FlowRSync
}

func (f Flow) String() string {
	return string(f)
}
