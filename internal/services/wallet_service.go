package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/courtly/court-booking-backend/internal/database"
	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultHistoryLimit caps GetTransactionHistory when no limit is given
const DefaultHistoryLimit = 50

// WalletService maintains the append-only wallet ledger. Every mutation locks
// the wallet row, writes the new balance and appends one transaction whose
// balance_after_cents equals that balance.
type WalletService struct {
	tx             Transactor
	wallets        WalletStore
	users          UserStore
	currencySymbol string
	logger         *logrus.Logger
}

// NewWalletService creates a new WalletService
func NewWalletService(tx Transactor, wallets WalletStore, users UserStore, currencySymbol string, logger *logrus.Logger) *WalletService {
	if currencySymbol == "" {
		currencySymbol = "$"
	}
	return &WalletService{
		tx:             tx,
		wallets:        wallets,
		users:          users,
		currencySymbol: currencySymbol,
		logger:         logger,
	}
}

// GetOrCreateWallet returns the user's wallet in the tenant, creating an empty
// one if needed. With AllTenants the user's own organization is used, falling
// back to the first organization.
func (s *WalletService) GetOrCreateWallet(ctx context.Context, tenantID, userID int64) (*models.UserWallet, error) {
	var wallet *models.UserWallet
	err := s.tx.WithinTx(ctx, func(q database.Queryer) error {
		user, err := s.users.GetUserByID(ctx, q, tenantID, userID)
		if err != nil {
			return err
		}

		orgID := tenantID
		if orgID == database.AllTenants {
			if user.OrganizationID != nil {
				orgID = *user.OrganizationID
			} else {
				org, err := s.users.GetFirstOrganization(ctx, q)
				if err != nil {
					return fmt.Errorf("no organization available for wallet: %w", err)
				}
				orgID = org.ID
			}
		}

		wallet, err = s.getOrCreateTx(ctx, q, orgID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

func (s *WalletService) getOrCreateTx(ctx context.Context, q database.Queryer, organizationID, userID int64) (*models.UserWallet, error) {
	wallet, err := s.wallets.GetByUser(ctx, q, organizationID, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	wallet, err = s.wallets.Create(ctx, q, organizationID, userID)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"wallet_id":       wallet.ID,
		"user_id":         userID,
		"organization_id": organizationID,
	}).Info("Wallet created")
	return wallet, nil
}

// AddFunds credits the wallet
func (s *WalletService) AddFunds(ctx context.Context, walletID, amountCents int64, paymentMethod string, externalRef *string, description string) (*models.WalletTransaction, error) {
	var txn *models.WalletTransaction
	err := s.tx.WithinTx(ctx, func(q database.Queryer) error {
		var err error
		txn, err = s.addFundsTx(ctx, q, walletID, amountCents, paymentMethod, externalRef, description)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *WalletService) addFundsTx(ctx context.Context, q database.Queryer, walletID, amountCents int64, paymentMethod string, externalRef *string, description string) (*models.WalletTransaction, error) {
	if amountCents <= 0 {
		return nil, models.NewValidationError("amount_cents", "must be greater than zero")
	}
	if description == "" {
		description = "Wallet top-up"
	}
	method := paymentMethod
	return s.apply(ctx, q, walletID, amountCents, &models.WalletTransaction{
		Type:          models.WalletCredit,
		PaymentMethod: &method,
		ExternalRef:   externalRef,
		Description:   description,
	})
}

// DeductFunds debits the wallet. It fails with ErrInsufficientBalance, leaving
// the balance unchanged, when the balance is below amountCents.
func (s *WalletService) DeductFunds(ctx context.Context, walletID, amountCents int64, description string, bookingID *int64) (*models.WalletTransaction, error) {
	var txn *models.WalletTransaction
	err := s.tx.WithinTx(ctx, func(q database.Queryer) error {
		var err error
		txn, err = s.deductTx(ctx, q, walletID, amountCents, description, bookingID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *WalletService) deductTx(ctx context.Context, q database.Queryer, walletID, amountCents int64, description string, bookingID *int64) (*models.WalletTransaction, error) {
	if amountCents <= 0 {
		return nil, models.NewValidationError("amount_cents", "must be greater than zero")
	}
	method := string(models.PaymentMethodWallet)
	return s.apply(ctx, q, walletID, -amountCents, &models.WalletTransaction{
		BookingID:     bookingID,
		Type:          models.WalletDebit,
		PaymentMethod: &method,
		Description:   description,
	})
}

// Refund credits the wallet with a refund entry described as "Refund: <reason>"
func (s *WalletService) Refund(ctx context.Context, walletID, amountCents int64, bookingID *int64, reason string) (*models.WalletTransaction, error) {
	var txn *models.WalletTransaction
	err := s.tx.WithinTx(ctx, func(q database.Queryer) error {
		var err error
		txn, err = s.refundTx(ctx, q, walletID, amountCents, bookingID, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *WalletService) refundTx(ctx context.Context, q database.Queryer, walletID, amountCents int64, bookingID *int64, reason string) (*models.WalletTransaction, error) {
	if amountCents <= 0 {
		return nil, models.NewValidationError("amount_cents", "must be greater than zero")
	}
	method := string(models.PaymentMethodWallet)
	return s.apply(ctx, q, walletID, amountCents, &models.WalletTransaction{
		BookingID:     bookingID,
		Type:          models.WalletRefund,
		PaymentMethod: &method,
		Description:   "Refund: " + reason,
	})
}

// apply locks the wallet, moves the balance by delta and appends txn
func (s *WalletService) apply(ctx context.Context, q database.Queryer, walletID, delta int64, txn *models.WalletTransaction) (*models.WalletTransaction, error) {
	wallet, err := s.wallets.LockByID(ctx, q, walletID)
	if err != nil {
		return nil, err
	}

	newBalance := wallet.BalanceCents + delta
	if newBalance < 0 {
		return nil, fmt.Errorf("%w: balance %s, required %s", models.ErrInsufficientBalance,
			models.FormatCents(s.currencySymbol, wallet.BalanceCents),
			models.FormatCents(s.currencySymbol, -delta))
	}

	if err := s.wallets.UpdateBalance(ctx, q, walletID, newBalance); err != nil {
		return nil, err
	}

	txn.WalletID = walletID
	txn.AmountCents = delta
	txn.BalanceAfterCents = newBalance
	if err := s.wallets.InsertTransaction(ctx, q, txn); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"wallet_id":     walletID,
		"type":          txn.Type,
		"amount_cents":  delta,
		"balance_after": newBalance,
	}).Info("Wallet transaction recorded")

	return txn, nil
}

// HasSufficientBalance reports balance >= amountCents
func (s *WalletService) HasSufficientBalance(ctx context.Context, walletID, amountCents int64) (bool, error) {
	wallet, err := s.wallets.GetByID(ctx, s.tx.Queryer(), walletID)
	if err != nil {
		return false, err
	}
	return wallet.BalanceCents >= amountCents, nil
}

// GetTransactionHistory returns the newest transactions first
func (s *WalletService) GetTransactionHistory(ctx context.Context, walletID int64, limit int) ([]models.WalletTransaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.wallets.ListTransactions(ctx, s.tx.Queryer(), walletID, limit)
}

// FormattedBalance renders the balance, e.g. $20.00
func (s *WalletService) FormattedBalance(wallet *models.UserWallet) string {
	return models.FormatCents(s.currencySymbol, wallet.BalanceCents)
}

// VerifyBalance checks that the stored balance equals the ledger sum
func (s *WalletService) VerifyBalance(ctx context.Context, walletID int64) (bool, error) {
	q := s.tx.Queryer()
	wallet, err := s.wallets.GetByID(ctx, q, walletID)
	if err != nil {
		return false, err
	}
	sum, err := s.wallets.SumTransactions(ctx, q, walletID)
	if err != nil {
		return false, err
	}
	if sum != wallet.BalanceCents {
		s.logger.WithFields(logrus.Fields{
			"wallet_id":     walletID,
			"balance_cents": wallet.BalanceCents,
			"ledger_cents":  sum,
		}).Error("Wallet balance does not match ledger")
		return false, nil
	}
	return true, nil
}
