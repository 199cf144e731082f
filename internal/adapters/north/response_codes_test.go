package north

import (
	"testing"

	pkgerrors "github.com/kevin07696/payment-router/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestLookupResponseCode(t *testing.T) {
	tests := []struct {
		code         string
		wantApproved bool
		wantCategory pkgerrors.ErrorCategory
		wantRetry    bool
	}{
		{code: "00", wantApproved: true, wantCategory: pkgerrors.CategoryApproved},
		{code: "10", wantApproved: true, wantCategory: pkgerrors.CategoryApproved},
		{code: "05", wantCategory: pkgerrors.CategoryDeclined},
		{code: "51", wantCategory: pkgerrors.CategoryInsufficientFunds, wantRetry: true},
		{code: "54", wantCategory: pkgerrors.CategoryExpiredCard},
		{code: "82", wantCategory: pkgerrors.CategoryInvalidCard},
		{code: "N7", wantCategory: pkgerrors.CategoryInvalidCard},
		{code: "41", wantCategory: pkgerrors.CategoryFraud},
		{code: "43", wantCategory: pkgerrors.CategoryFraud},
		{code: "59", wantCategory: pkgerrors.CategoryFraud},
		{code: "91", wantCategory: pkgerrors.CategoryNetworkError, wantRetry: true},
		{code: "96", wantCategory: pkgerrors.CategorySystemError, wantRetry: true},
		{code: "ZZ", wantCategory: pkgerrors.CategoryDeclined},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rc := LookupResponseCode(tt.code)
			assert.Equal(t, tt.code, rc.Code)
			assert.Equal(t, tt.wantApproved, rc.Approved())
			assert.Equal(t, tt.wantCategory, rc.Category)
			assert.Equal(t, tt.wantRetry, rc.Category.IsRetriable())
			assert.NotEmpty(t, rc.Display)
			assert.NotEmpty(t, rc.Message)
		})
	}
}

func TestResponseCode_ErrorResponse(t *testing.T) {
	rc := LookupResponseCode("51")

	gatewayMsg := "DECLINED - Insufficient Funds Available"
	e := rc.ErrorResponse(200, gatewayMsg)

	assert.Equal(t, "51", e.Code)
	assert.Equal(t, rc.Message, e.Message)
	assert.Equal(t, 200, e.StatusCode)
	if assert.NotNil(t, e.Reason) {
		assert.Equal(t, gatewayMsg, *e.Reason)
	}
	assert.Equal(t, pkgerrors.CategoryInsufficientFunds, e.Category)
	assert.Nil(t, e.AttemptStatus)

	assert.Nil(t, rc.ErrorResponse(200, "").Reason)
}
