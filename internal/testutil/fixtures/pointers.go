// Package fixtures provides test data builders and helpers.
package fixtures

import (
	"time"

	"github.com/kevin07696/payment-router/internal/domain"
)

// StringPtr returns a pointer to the given string.
func StringPtr(s string) *string {
	return &s
}

// Int16Ptr returns a pointer to the given int16.
func Int16Ptr(i int16) *int16 {
	return &i
}

// BoolPtr returns a pointer to the given bool.
func BoolPtr(b bool) *bool {
	return &b
}

// TimePtr returns a pointer to the given time.Time.
func TimePtr(t time.Time) *time.Time {
	return &t
}

// MinorUnitPtr returns a pointer to the given amount.
func MinorUnitPtr(v int64) *domain.MinorUnit {
	m := domain.MinorUnit(v)
	return &m
}

// StatusPtr returns a pointer to the given attempt status.
func StatusPtr(s domain.AttemptStatus) *domain.AttemptStatus {
	return &s
}
