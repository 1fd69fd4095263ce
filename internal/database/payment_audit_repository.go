package database

import (
	"context"
	"fmt"

	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

const paymentAuditColumns = `id, booking_id, wallet_id, reference, event_type, provider,
	amount_cents, success, error_message, raw_body, created_at`

// PaymentAuditRepository handles payment_audits
type PaymentAuditRepository struct{}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository() *PaymentAuditRepository {
	return &PaymentAuditRepository{}
}

// Log appends an audit entry and fills in its id and timestamp
func (r *PaymentAuditRepository) Log(ctx context.Context, q Queryer, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	err := sqlx.GetContext(ctx, q, audit, `
		INSERT INTO payment_audits (
			booking_id, wallet_id, reference, event_type, provider,
			amount_cents, success, error_message, raw_body
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+paymentAuditColumns,
		audit.BookingID, audit.WalletID, audit.Reference, audit.EventType, audit.Provider,
		audit.AmountCents, audit.Success, audit.ErrorMessage, audit.RawBody,
	)
	if err != nil {
		return fmt.Errorf("failed to log payment audit: %w", err)
	}
	return nil
}

// ListByReference returns every event for a gateway reference, oldest first
func (r *PaymentAuditRepository) ListByReference(ctx context.Context, q Queryer, reference string) ([]models.PaymentAudit, error) {
	audits := []models.PaymentAudit{}
	err := sqlx.SelectContext(ctx, q, &audits, `
		SELECT `+paymentAuditColumns+`
		FROM payment_audits WHERE reference = $1
		ORDER BY created_at ASC, id ASC`, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment audits: %w", err)
	}
	return audits, nil
}

// ListByBooking returns every event for a booking, oldest first
func (r *PaymentAuditRepository) ListByBooking(ctx context.Context, q Queryer, bookingID int64) ([]models.PaymentAudit, error) {
	audits := []models.PaymentAudit{}
	err := sqlx.SelectContext(ctx, q, &audits, `
		SELECT `+paymentAuditColumns+`
		FROM payment_audits WHERE booking_id = $1
		ORDER BY created_at ASC, id ASC`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment audits: %w", err)
	}
	return audits, nil
}

// ListFailures returns the most recent unsuccessful events
func (r *PaymentAuditRepository) ListFailures(ctx context.Context, q Queryer, limit int) ([]models.PaymentAudit, error) {
	if limit <= 0 {
		limit = 50
	}
	audits := []models.PaymentAudit{}
	err := sqlx.SelectContext(ctx, q, &audits, `
		SELECT `+paymentAuditColumns+`
		FROM payment_audits WHERE success = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment failures: %w", err)
	}
	return audits, nil
}
