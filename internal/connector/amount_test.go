package connector_test

import (
	"testing"

	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringMajorUnit(t *testing.T) {
	tests := []struct {
		amount   domain.MinorUnit
		currency string
		want     string
	}{
		{1050, "USD", "10.50"},
		{1, "usd", "0.01"},
		{0, "EUR", "0.00"},
		{1050, "JPY", "1050"},
		{1050, "KWD", "1.050"},
		{-250, "USD", "-2.50"},
	}

	for _, tt := range tests {
		t.Run(tt.want+"_"+tt.currency, func(t *testing.T) {
			assert.Equal(t, tt.want, connector.StringMajorUnit(tt.amount, tt.currency))
		})
	}
}

func TestFloatMajorUnit(t *testing.T) {
	assert.InDelta(t, 10.5, connector.FloatMajorUnit(1050, "USD"), 1e-9)
	assert.InDelta(t, 1050.0, connector.FloatMajorUnit(1050, "JPY"), 1e-9)
}

func TestParseMajorUnit(t *testing.T) {
	got, err := connector.ParseMajorUnit("10.50", "USD")
	require.NoError(t, err)
	assert.Equal(t, domain.MinorUnit(1050), got)

	got, err = connector.ParseMajorUnit(" 7 ", "USD")
	require.NoError(t, err)
	assert.Equal(t, domain.MinorUnit(700), got)

	_, err = connector.ParseMajorUnit("10.505", "USD")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeResponseDeserialization, domain.GetErrorCode(err))

	_, err = connector.ParseMajorUnit("ten", "USD")
	assert.Error(t, err)
}
