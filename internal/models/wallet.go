package models

import "time"

// WalletTransactionType tags a ledger entry
type WalletTransactionType string

const (
	WalletCredit WalletTransactionType = "credit"
	WalletDebit  WalletTransactionType = "debit"
	WalletRefund WalletTransactionType = "refund"
)

// UserWallet holds a user's stored balance within one organization
type UserWallet struct {
	ID             int64     `json:"id" db:"id"`
	OrganizationID int64     `json:"organization_id" db:"organization_id"`
	UserID         int64     `json:"user_id" db:"user_id"`
	BalanceCents   int64     `json:"balance_cents" db:"balance_cents"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// WalletTransaction is an append-only ledger row. AmountCents is signed:
// credits and refunds are positive, debits negative.
type WalletTransaction struct {
	ID                int64                 `json:"id" db:"id"`
	WalletID          int64                 `json:"wallet_id" db:"wallet_id"`
	BookingID         *int64                `json:"booking_id,omitempty" db:"booking_id"`
	AmountCents       int64                 `json:"amount_cents" db:"amount_cents"`
	Type              WalletTransactionType `json:"type" db:"type"`
	PaymentMethod     *string               `json:"payment_method,omitempty" db:"payment_method"`
	ExternalRef       *string               `json:"external_ref,omitempty" db:"external_ref"`
	Description       string                `json:"description" db:"description"`
	BalanceAfterCents int64                 `json:"balance_after_cents" db:"balance_after_cents"`
	CreatedAt         time.Time             `json:"created_at" db:"created_at"`
}

// AddFundsRequest is the body of a wallet top-up
type AddFundsRequest struct {
	AmountCents int64 `json:"amount_cents" binding:"required"`
}

// TopUpStatus of a gateway-funded wallet top-up
type TopUpStatus string

const (
	TopUpPending   TopUpStatus = "pending"
	TopUpCompleted TopUpStatus = "completed"
)

// WalletTopUp tracks a top-up checkout until the gateway confirms it
type WalletTopUp struct {
	ID          int64       `json:"id" db:"id"`
	WalletID    int64       `json:"wallet_id" db:"wallet_id"`
	Reference   string      `json:"reference" db:"reference"`
	AmountCents int64       `json:"amount_cents" db:"amount_cents"`
	Status      TopUpStatus `json:"status" db:"status"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}
