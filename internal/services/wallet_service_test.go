package services

import (
	"context"
	"sync"
	"testing"

	"github.com/courtly/court-booking-backend/internal/database"
	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletLedger(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	wallet := f.db.addWallet(f.org.ID, f.user.ID, 0)

	credit, err := f.wallet.AddFunds(ctx, wallet.ID, 5000, "stripe", nil, "")
	require.NoError(t, err)
	assert.Equal(t, models.WalletCredit, credit.Type)
	assert.Equal(t, int64(5000), credit.AmountCents)
	assert.Equal(t, int64(5000), credit.BalanceAfterCents)
	assert.Equal(t, "Wallet top-up", credit.Description)
	require.NotNil(t, credit.PaymentMethod)
	assert.Equal(t, "stripe", *credit.PaymentMethod)
	assert.Equal(t, int64(5000), f.db.wallet(wallet.ID).BalanceCents)

	debit, err := f.wallet.DeductFunds(ctx, wallet.ID, 3000, "booking", nil)
	require.NoError(t, err)
	assert.Equal(t, models.WalletDebit, debit.Type)
	assert.Equal(t, int64(-3000), debit.AmountCents)
	assert.Equal(t, int64(2000), debit.BalanceAfterCents)

	_, err = f.wallet.DeductFunds(ctx, wallet.ID, 5000, "booking", nil)
	assert.ErrorIs(t, err, models.ErrInsufficientBalance)
	assert.Equal(t, int64(2000), f.db.wallet(wallet.ID).BalanceCents)
	assert.Len(t, f.db.transactionsFor(wallet.ID), 2)

	bookingID := int64(77)
	refund, err := f.wallet.Refund(ctx, wallet.ID, 1500, &bookingID, "rain")
	require.NoError(t, err)
	assert.Equal(t, models.WalletRefund, refund.Type)
	assert.Equal(t, "Refund: rain", refund.Description)
	assert.Equal(t, int64(3500), refund.BalanceAfterCents)

	ok, err := f.wallet.VerifyBalance(ctx, wallet.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	enough, err := f.wallet.HasSufficientBalance(ctx, wallet.ID, 3500)
	require.NoError(t, err)
	assert.True(t, enough)
	enough, err = f.wallet.HasSufficientBalance(ctx, wallet.ID, 3501)
	require.NoError(t, err)
	assert.False(t, enough)

	history, err := f.wallet.GetTransactionHistory(ctx, wallet.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.WalletRefund, history[0].Type, "newest first")
	assert.Equal(t, models.WalletCredit, history[2].Type)

	stored := f.db.wallet(wallet.ID)
	assert.Equal(t, "$35.00", f.wallet.FormattedBalance(&stored))
}

func TestWalletValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	wallet := f.db.addWallet(f.org.ID, f.user.ID, 1000)

	tests := []struct {
		name string
		call func() error
	}{
		{"Zero Credit", func() error {
			_, err := f.wallet.AddFunds(ctx, wallet.ID, 0, "card", nil, "")
			return err
		}},
		{"Negative Debit", func() error {
			_, err := f.wallet.DeductFunds(ctx, wallet.ID, -5, "x", nil)
			return err
		}},
		{"Zero Refund", func() error {
			_, err := f.wallet.Refund(ctx, wallet.ID, 0, nil, "x")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assert.ErrorIs(t, err, models.ErrValidation)
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, "amount_cents")
		})
	}
	assert.Equal(t, int64(1000), f.db.wallet(wallet.ID).BalanceCents)

	_, err := f.wallet.AddFunds(ctx, 99999, 100, "card", nil, "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestWalletConcurrentDebits(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	wallet := f.db.addWallet(f.org.ID, f.user.ID, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.wallet.DeductFunds(ctx, wallet.ID, 100, "snack", nil)
		}()
	}
	wg.Wait()

	assert.Zero(t, f.db.wallet(wallet.ID).BalanceCents)
	assert.Len(t, f.db.transactionsFor(wallet.ID), 11)

	ok, err := f.wallet.VerifyBalance(ctx, wallet.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyBalanceDetectsDrift(t *testing.T) {
	f := newFixture()
	wallet := f.db.addWallet(f.org.ID, f.user.ID, 1000)
	require.NoError(t, fakeWallets{f.db}.UpdateBalance(context.Background(), nil, wallet.ID, 900))

	ok, err := f.wallet.VerifyBalance(context.Background(), wallet.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetOrCreateWallet(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates Once", func(t *testing.T) {
		f := newFixture()
		first, err := f.wallet.GetOrCreateWallet(ctx, f.org.ID, f.user.ID)
		require.NoError(t, err)
		assert.Equal(t, f.org.ID, first.OrganizationID)
		assert.Zero(t, first.BalanceCents)

		second, err := f.wallet.GetOrCreateWallet(ctx, f.org.ID, f.user.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("All Tenants Uses User Organization", func(t *testing.T) {
		f := newFixture()
		f.db.addOrg("second")
		w, err := f.wallet.GetOrCreateWallet(ctx, database.AllTenants, f.user.ID)
		require.NoError(t, err)
		assert.Equal(t, f.org.ID, w.OrganizationID)
	})

	t.Run("Unknown User", func(t *testing.T) {
		f := newFixture()
		_, err := f.wallet.GetOrCreateWallet(ctx, f.org.ID, 12345)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}
