package models

import "time"

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventCheckoutCreated PaymentEventType = "checkout_created"
	PaymentEventCheckoutFailed  PaymentEventType = "checkout_failed"
	PaymentEventWebhookReceived PaymentEventType = "webhook_received"
	PaymentEventWebhookRejected PaymentEventType = "webhook_rejected"
	PaymentEventRefundCompleted PaymentEventType = "refund_completed"
	PaymentEventRefundFailed    PaymentEventType = "refund_failed"
)

// PaymentAudit is an append-only record of one exchange with the card
// gateway. Rows are never updated.
type PaymentAudit struct {
	ID           int64            `json:"id" db:"id"`
	BookingID    *int64           `json:"booking_id,omitempty" db:"booking_id"`
	WalletID     *int64           `json:"wallet_id,omitempty" db:"wallet_id"`
	Reference    *string          `json:"reference,omitempty" db:"reference"`
	EventType    PaymentEventType `json:"event_type" db:"event_type"`
	Provider     string           `json:"provider" db:"provider"`
	AmountCents  *int64           `json:"amount_cents,omitempty" db:"amount_cents"`
	Success      bool             `json:"success" db:"success"`
	ErrorMessage *string          `json:"error_message,omitempty" db:"error_message"`
	RawBody      *string          `json:"raw_body,omitempty" db:"raw_body"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
}
