package mocks

import (
	"context"

	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/stretchr/testify/mock"
)

// MockCredentialStore mocks connector credentials and webhook secrets
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) AuthType(ctx context.Context, merchantID, connectorName string) (connector.AuthType, error) {
	args := m.Called(ctx, merchantID, connectorName)
	return args.Get(0).(connector.AuthType), args.Error(1)
}

func (m *MockCredentialStore) WebhookSecret(ctx context.Context, merchantID, connectorName string) (connector.WebhookSecret, error) {
	args := m.Called(ctx, merchantID, connectorName)
	return args.Get(0).(connector.WebhookSecret), args.Error(1)
}

// NewStaticCredentialStore answers every lookup with auth and secret
func NewStaticCredentialStore(auth connector.AuthType, secret connector.WebhookSecret) *MockCredentialStore {
	m := &MockCredentialStore{}
	m.On("AuthType", mock.Anything, mock.Anything, mock.Anything).Return(auth, nil)
	m.On("WebhookSecret", mock.Anything, mock.Anything, mock.Anything).Return(secret, nil)
	return m
}
