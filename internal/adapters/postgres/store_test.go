package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/kevin07696/payment-router/internal/adapters/postgres"
	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/kevin07696/payment-router/internal/domain/ports"
	"github.com/kevin07696/payment-router/internal/testutil/fixtures"
	"github.com/kevin07696/payment-router/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStore needs a real database and skips otherwise
func newStore(t *testing.T) *postgres.Store {
	t.Helper()
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := postgres.Open(ctx, postgres.DefaultConfig(databaseURL), mocks.NewMockLogger())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.MigratePool(ctx, pool))
	return postgres.NewStore(pool)
}

func TestOpen_InvalidURL(t *testing.T) {
	_, err := postgres.Open(context.Background(), postgres.DefaultConfig("not-a-valid-url"), mocks.NewMockLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to")
}

func TestStore_AttemptRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	a := fixtures.NewAttempt().Authorized().WithSurcharge(150, 50).Build()
	require.NoError(t, fixtures.Seed(ctx, store, a))

	got, err := store.GetAttempt(ctx, a.MerchantID, a.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, a.Status, got.Status)
	assert.Equal(t, a.NetAmount, got.NetAmount)
	assert.True(t, a.ModifiedAt.Equal(got.ModifiedAt))
	assert.Equal(t, *a.ConnectorTransactionID, *got.ConnectorTransactionID)

	active, err := store.GetActiveAttempt(ctx, a.MerchantID, a.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, a.AttemptID, active.AttemptID)

	byTxn, err := store.FindAttemptByConnectorTransactionID(ctx, a.MerchantID, a.ConnectorName(), *a.ConnectorTransactionID)
	require.NoError(t, err)
	assert.Equal(t, a.AttemptID, byTxn.AttemptID)

	_, err = store.FindAttemptByConnectorTransactionID(ctx, a.MerchantID, "other_connector", *a.ConnectorTransactionID)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodePaymentNotFound))
}

func TestStore_UpdateAttempt(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	a := fixtures.NewAttempt().Pending().Build()
	require.NoError(t, fixtures.Seed(ctx, store, a))

	next := a.Apply(domain.StatusUpdate{Status: domain.AttemptStatusCharged, UpdatedBy: "test"})
	require.NoError(t, store.UpdateAttempt(ctx, next))

	got, err := store.GetAttempt(ctx, a.MerchantID, a.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptStatusCharged, got.Status)
	assert.True(t, got.ModifiedAt.After(a.ModifiedAt))

	missing := fixtures.NewAttempt().Build()
	assert.True(t, domain.IsDomainError(store.UpdateAttempt(ctx, missing), domain.ErrorCodePaymentNotFound))
}

func TestStore_TransactionRollsBack(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	a := fixtures.NewAttempt().Pending().Build()
	require.NoError(t, fixtures.Seed(ctx, store, a))

	boom := errors.New("boom")
	err := store.WithTransaction(ctx, func(ctx context.Context, tx ports.PaymentStore) error {
		next := a.Apply(domain.StatusUpdate{Status: domain.AttemptStatusFailure, UpdatedBy: "test"})
		require.NoError(t, tx.UpdateAttempt(ctx, next))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.GetAttempt(ctx, a.MerchantID, a.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptStatusPending, got.Status)
}

func TestStore_Refunds(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	a := fixtures.NewAttempt().WithStatus(domain.AttemptStatusCharged).Build()
	require.NoError(t, fixtures.Seed(ctx, store, a))

	refund := fixtures.PendingRefund(a, 1000)
	require.NoError(t, store.CreateRefund(ctx, refund))

	refund.ConnectorRefundID = fixtures.StringPtr("re_" + refund.RefundID)
	refund.Status = domain.RefundStatusSuccess
	require.NoError(t, store.UpdateRefund(ctx, refund))

	got, err := store.FindRefundByConnectorRefundID(ctx, a.MerchantID, a.ConnectorName(), *refund.ConnectorRefundID)
	require.NoError(t, err)
	assert.Equal(t, domain.RefundStatusSuccess, got.Status)

	_, err = store.GetRefund(ctx, a.MerchantID, "ref_missing")
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeRefundNotFound))
}
