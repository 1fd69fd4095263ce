package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var walletRowColumns = []string{"id", "organization_id", "user_id", "balance_cents", "created_at", "updated_at"}

func TestWalletRepositoryCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWalletRepository()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO user_wallets (.+) ON CONFLICT \(organization_id, user_id\)`).
		WithArgs(int64(1), int64(10)).
		WillReturnRows(sqlmock.NewRows(walletRowColumns).AddRow(int64(3), int64(1), int64(10), int64(0), now, now))

	wallet, err := repo.Create(context.Background(), db, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), wallet.ID)
	assert.Equal(t, int64(0), wallet.BalanceCents)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepositoryLockByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWalletRepository()

	t.Run("Success", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery(`SELECT (.+) FROM user_wallets WHERE id = \$1 FOR UPDATE`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows(walletRowColumns).AddRow(int64(3), int64(1), int64(10), int64(2500), now, now))

		wallet, err := repo.LockByID(context.Background(), db, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(2500), wallet.BalanceCents)
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM user_wallets WHERE id = \$1 FOR UPDATE`).
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows(walletRowColumns))

		wallet, err := repo.LockByID(context.Background(), db, 9)
		assert.Nil(t, wallet)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepositoryInsertTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWalletRepository()
	now := time.Now()
	bookingID := int64(42)

	tx := &models.WalletTransaction{
		WalletID:          3,
		BookingID:         &bookingID,
		AmountCents:       -4000,
		Type:              models.WalletDebit,
		Description:       "Booking payment",
		BalanceAfterCents: 1000,
	}

	mock.ExpectQuery(`INSERT INTO wallet_transactions`).
		WithArgs(int64(3), int64(42), int64(-4000), "debit", nil, nil, "Booking payment", int64(1000)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), now))

	require.NoError(t, repo.InsertTransaction(context.Background(), db, tx))
	assert.Equal(t, int64(11), tx.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepositorySumTransactions(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWalletRepository()

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount_cents\), 0\) FROM wallet_transactions`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(1000)))

	sum, err := repo.SumTransactions(context.Background(), db, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), sum)

	assert.NoError(t, mock.ExpectationsWereMet())
}
