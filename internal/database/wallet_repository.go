package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

const walletColumns = `id, organization_id, user_id, balance_cents, created_at, updated_at`

// WalletRepository handles user_wallets, wallet_transactions and wallet_top_ups
type WalletRepository struct{}

// NewWalletRepository creates a new WalletRepository
func NewWalletRepository() *WalletRepository {
	return &WalletRepository{}
}

// GetByUser returns the user's wallet in the organization
func (r *WalletRepository) GetByUser(ctx context.Context, q Queryer, organizationID, userID int64) (*models.UserWallet, error) {
	wallet := &models.UserWallet{}
	err := sqlx.GetContext(ctx, q, wallet, `
		SELECT `+walletColumns+`
		FROM user_wallets WHERE organization_id = $1 AND user_id = $2`, organizationID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("wallet for user", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}

// Create inserts an empty wallet; an existing wallet for the same
// organization and user is returned unchanged.
func (r *WalletRepository) Create(ctx context.Context, q Queryer, organizationID, userID int64) (*models.UserWallet, error) {
	wallet := &models.UserWallet{}
	err := sqlx.GetContext(ctx, q, wallet, `
		INSERT INTO user_wallets (organization_id, user_id, balance_cents)
		VALUES ($1, $2, 0)
		ON CONFLICT (organization_id, user_id) DO UPDATE SET updated_at = user_wallets.updated_at
		RETURNING `+walletColumns, organizationID, userID)
	if err != nil {
		return nil, wrapWriteErr(err, "create wallet")
	}
	return wallet, nil
}

// GetByID returns a wallet without locking it
func (r *WalletRepository) GetByID(ctx context.Context, q Queryer, walletID int64) (*models.UserWallet, error) {
	return r.byID(ctx, q, walletID, "")
}

// LockByID returns a wallet holding its row lock
func (r *WalletRepository) LockByID(ctx context.Context, q Queryer, walletID int64) (*models.UserWallet, error) {
	return r.byID(ctx, q, walletID, " FOR UPDATE")
}

func (r *WalletRepository) byID(ctx context.Context, q Queryer, walletID int64, suffix string) (*models.UserWallet, error) {
	wallet := &models.UserWallet{}
	err := sqlx.GetContext(ctx, q, wallet, `SELECT `+walletColumns+` FROM user_wallets WHERE id = $1`+suffix, walletID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("wallet", walletID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}

// UpdateBalance stores the new balance
func (r *WalletRepository) UpdateBalance(ctx context.Context, q Queryer, walletID, balanceCents int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE user_wallets SET balance_cents = $1, updated_at = NOW() WHERE id = $2`, balanceCents, walletID)
	if err != nil {
		return fmt.Errorf("failed to update wallet balance: %w", err)
	}
	return nil
}

// InsertTransaction appends a ledger row
func (r *WalletRepository) InsertTransaction(ctx context.Context, q Queryer, tx *models.WalletTransaction) error {
	query := `
		INSERT INTO wallet_transactions (
			wallet_id, booking_id, amount_cents, type, payment_method,
			external_ref, description, balance_after_cents
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := q.QueryRowxContext(ctx, query,
		tx.WalletID, tx.BookingID, tx.AmountCents, tx.Type, tx.PaymentMethod,
		tx.ExternalRef, tx.Description, tx.BalanceAfterCents,
	).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		return wrapWriteErr(err, "create wallet transaction")
	}
	return nil
}

// ListTransactions returns the newest ledger rows first
func (r *WalletRepository) ListTransactions(ctx context.Context, q Queryer, walletID int64, limit int) ([]models.WalletTransaction, error) {
	var txs []models.WalletTransaction
	err := sqlx.SelectContext(ctx, q, &txs, `
		SELECT id, wallet_id, booking_id, amount_cents, type, payment_method,
			   external_ref, description, balance_after_cents, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	return txs, nil
}

// SumTransactions returns the sum of all ledger amounts for a wallet
func (r *WalletRepository) SumTransactions(ctx context.Context, q Queryer, walletID int64) (int64, error) {
	var sum int64
	err := sqlx.GetContext(ctx, q, &sum, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM wallet_transactions WHERE wallet_id = $1`, walletID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum wallet transactions: %w", err)
	}
	return sum, nil
}

// CreateTopUp records a pending gateway top-up
func (r *WalletRepository) CreateTopUp(ctx context.Context, q Queryer, topUp *models.WalletTopUp) error {
	err := q.QueryRowxContext(ctx, `
		INSERT INTO wallet_top_ups (wallet_id, reference, amount_cents, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		topUp.WalletID, topUp.Reference, topUp.AmountCents, topUp.Status,
	).Scan(&topUp.ID, &topUp.CreatedAt)
	if err != nil {
		return wrapWriteErr(err, "create wallet top-up")
	}
	return nil
}

// LockTopUpByReference returns the top-up for a gateway reference, locked
func (r *WalletRepository) LockTopUpByReference(ctx context.Context, q Queryer, reference string) (*models.WalletTopUp, error) {
	topUp := &models.WalletTopUp{}
	err := sqlx.GetContext(ctx, q, topUp, `
		SELECT id, wallet_id, reference, amount_cents, status, created_at
		FROM wallet_top_ups WHERE reference = $1 FOR UPDATE`, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("wallet top-up", reference)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet top-up: %w", err)
	}
	return topUp, nil
}

// CompleteTopUp marks a top-up as credited
func (r *WalletRepository) CompleteTopUp(ctx context.Context, q Queryer, topUpID int64) error {
	_, err := q.ExecContext(ctx, `UPDATE wallet_top_ups SET status = 'completed' WHERE id = $1`, topUpID)
	if err != nil {
		return fmt.Errorf("failed to complete wallet top-up: %w", err)
	}
	return nil
}
