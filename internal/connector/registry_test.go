package connector_test

import (
	"context"
	"encoding/xml"
	"errors"
	"testing"

	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConnector struct {
	name  string
	flows map[domain.Flow]connector.Integration
}

func (c *stubConnector) Name() string { return c.name }

func (c *stubConnector) Integration(flow domain.Flow) connector.Integration {
	return c.flows[flow]
}

func (c *stubConnector) Webhooks() connector.IncomingWebhook { return nil }

func TestRegistry_Resolve(t *testing.T) {
	authorize := &stubIntegration{}
	reg := connector.NewRegistry(&stubConnector{
		name:  "stub",
		flows: map[domain.Flow]connector.Integration{domain.FlowAuthorize: authorize},
	})

	t.Run("implemented_flow", func(t *testing.T) {
		integ, err := reg.Resolve("stub", domain.FlowAuthorize)
		require.NoError(t, err)
		assert.Same(t, authorize, integ)
	})

	t.Run("unimplemented_flow_refuses_to_build", func(t *testing.T) {
		integ, err := reg.Resolve("stub", domain.FlowIncrementalAuthorization)
		require.NoError(t, err)

		req, err := integ.BuildRequest(context.Background(), routerData())
		assert.Nil(t, req)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrFlowNotSupported))
		assert.False(t, domain.IsRetryable(err))
	})

	t.Run("unknown_connector", func(t *testing.T) {
		_, err := reg.Resolve("missing", domain.FlowAuthorize)
		require.Error(t, err)
		assert.Equal(t, domain.ErrorCodeConnectorNotFound, domain.GetErrorCode(err))
		assert.True(t, domain.IsConfigError(err))
	})

	t.Run("unknown_flow", func(t *testing.T) {
		_, err := reg.Resolve("stub", domain.Flow("teleport"))
		require.Error(t, err)
		assert.Equal(t, domain.ErrorCodeFlowNotSupported, domain.GetErrorCode(err))
	})
}

func TestRegistry_Names(t *testing.T) {
	reg := connector.NewRegistry(&stubConnector{name: "north"}, &stubConnector{name: "epx"})
	assert.Equal(t, []string{"epx", "north"}, reg.Names())
}

func TestAuthType_Expect(t *testing.T) {
	tests := []struct {
		name    string
		auth    connector.AuthType
		want    connector.AuthKind
		wantErr bool
	}{
		{name: "signature_ok", auth: connector.SignatureKey("k", "m", "s"), want: connector.AuthKindSignatureKey},
		{name: "wrong_kind", auth: connector.HeaderKey("k"), want: connector.AuthKindSignatureKey, wantErr: true},
		{name: "missing_field", auth: connector.MultiAuthKey("1", "2", "", "4"), want: connector.AuthKindMultiAuthKey, wantErr: true},
		{name: "no_key", auth: connector.NoKey(), want: connector.AuthKindNoKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.auth.Expect(tt.want)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, domain.ErrorCodeFailedToObtainAuthType, domain.GetErrorCode(err))
				assert.True(t, domain.IsConfigError(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseAuthType(t *testing.T) {
	auth, err := connector.ParseAuthType([]byte(`{"auth_type":"MultiAuthKey","api_key":"9001","key1":"900300","key2":"1","api_secret":"2"}`))
	require.NoError(t, err)
	assert.Equal(t, connector.AuthKindMultiAuthKey, auth.Kind)
	assert.Equal(t, "900300", auth.Key1)
	assert.NotContains(t, auth.String(), "9001")

	_, err = connector.ParseAuthType([]byte(`{"auth_type":"Telepathy"}`))
	assert.Error(t, err)

	_, err = connector.ParseAuthType([]byte(`not json`))
	assert.Error(t, err)
}

func TestRequestContent_Encode(t *testing.T) {
	type xmlBody struct {
		XMLName xml.Name `xml:"DETAIL"`
		Amount  string   `xml:"AMOUNT"`
	}

	tests := []struct {
		name    string
		content *connector.RequestContent
		want    string
	}{
		{name: "json", content: connector.JSONContent(map[string]string{"a": "b"}), want: `{"a":"b"}`},
		{name: "form", content: connector.FormContent(map[string][]string{"AMOUNT": {"10.00"}, "TRAN_TYPE": {"CCE1"}}), want: "AMOUNT=10.00&TRAN_TYPE=CCE1"},
		{name: "xml", content: connector.XMLContent(xmlBody{Amount: "1.00"}), want: xml.Header + "<DETAIL><AMOUNT>1.00</AMOUNT></DETAIL>"},
		{name: "raw", content: connector.RawContent([]byte("raw")), want: "raw"},
		{name: "nil", content: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.content.Encode()
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(b))
		})
	}
}

func TestRequestBuilder_RequiresURL(t *testing.T) {
	_, err := connector.NewRequestBuilder("POST").Build()
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeRequestEncoding, domain.GetErrorCode(err))
}
