package connector

import (
	"fmt"
	"strings"

	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/shopspring/decimal"
)

var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {}, "MGA": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

var threeDecimalCurrencies = map[string]struct{}{
	"BHD": {}, "IQD": {}, "JOD": {}, "KWD": {}, "LYD": {}, "OMR": {}, "TND": {},
}

// CurrencyExponent returns the number of minor-unit digits for an ISO 4217 code
func CurrencyExponent(currency string) int32 {
	c := strings.ToUpper(currency)
	if _, ok := zeroDecimalCurrencies[c]; ok {
		return 0
	}
	if _, ok := threeDecimalCurrencies[c]; ok {
		return 3
	}
	return 2
}

// MajorUnit converts a minor-unit amount into a decimal major-unit amount
func MajorUnit(amount domain.MinorUnit, currency string) decimal.Decimal {
	return decimal.New(int64(amount), -CurrencyExponent(currency))
}

// StringMajorUnit renders the amount with the currency's fixed number of decimals ("10.50")
func StringMajorUnit(amount domain.MinorUnit, currency string) string {
	return MajorUnit(amount, currency).StringFixed(CurrencyExponent(currency))
}

// FloatMajorUnit renders the amount as a float for connectors that want JSON numbers
func FloatMajorUnit(amount domain.MinorUnit, currency string) float64 {
	f, _ := MajorUnit(amount, currency).Float64()
	return f
}

// ParseMajorUnit parses a major-unit string back into minor units.
// Amounts with more precision than the currency allows are rejected.
func ParseMajorUnit(s, currency string) (domain.MinorUnit, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, domain.WrapError(domain.ErrorCodeResponseDeserialization,
			fmt.Sprintf("invalid amount %q", s), err)
	}
	minor := d.Shift(CurrencyExponent(currency))
	if !minor.Equal(minor.Truncate(0)) {
		return 0, domain.NewDomainError(domain.ErrorCodeResponseDeserialization,
			fmt.Sprintf("amount %q has more precision than %s allows", s, currency))
	}
	return domain.MinorUnit(minor.IntPart()), nil
}
