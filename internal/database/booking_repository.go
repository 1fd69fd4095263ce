package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const bookingColumns = `
	b.id, b.organization_id, b.user_id, b.resource_id, b.status, b.payment_status,
	b.payment_method, b.payment_reference, b.visibility, b.access_code,
	b.access_code_used_at, b.check_in_at, b.notes, b.created_at, b.updated_at`

// BookingRepository handles bookings and their child rows
// (reservations, booking_line_items, booking_participants)
type BookingRepository struct{}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository() *BookingRepository {
	return &BookingRepository{}
}

// ============================================================================
// BOOKINGS
// ============================================================================

// Create inserts a booking and fills its id and timestamps
func (r *BookingRepository) Create(ctx context.Context, q Queryer, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (
			organization_id, user_id, resource_id, status, payment_status,
			payment_method, payment_reference, visibility, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := q.QueryRowxContext(ctx, query,
		booking.OrganizationID, booking.UserID, booking.ResourceID,
		booking.Status, booking.PaymentStatus,
		booking.PaymentMethodKind, booking.PaymentReference,
		booking.Visibility, booking.Notes,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return wrapWriteErr(err, "create booking")
	}
	return nil
}

// Update writes the mutable booking columns
func (r *BookingRepository) Update(ctx context.Context, q Queryer, booking *models.Booking) error {
	query := `
		UPDATE bookings SET
			status = $1, payment_status = $2, payment_method = $3, payment_reference = $4,
			access_code = $5, check_in_at = $6, notes = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at`

	err := q.QueryRowxContext(ctx, query,
		booking.Status, booking.PaymentStatus, booking.PaymentMethodKind, booking.PaymentReference,
		booking.AccessCode, booking.CheckInAt, booking.Notes, booking.ID,
	).Scan(&booking.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NotFoundf("booking", booking.ID)
	}
	if err != nil {
		return wrapWriteErr(err, "update booking")
	}
	return nil
}

// GetByID retrieves a hydrated booking within the tenant
func (r *BookingRepository) GetByID(ctx context.Context, q Queryer, tenantID, bookingID int64) (*models.Booking, error) {
	return r.getOne(ctx, q, "b.id = $1 AND "+tenantFilter("b.organization_id", 2), "", bookingID, tenantID)
}

// LockByID retrieves a hydrated booking holding a row lock on it
func (r *BookingRepository) LockByID(ctx context.Context, q Queryer, tenantID, bookingID int64) (*models.Booking, error) {
	return r.getOne(ctx, q, "b.id = $1 AND "+tenantFilter("b.organization_id", 2), " FOR UPDATE OF b", bookingID, tenantID)
}

// GetByAccessCode retrieves the booking owning an access code
func (r *BookingRepository) GetByAccessCode(ctx context.Context, q Queryer, tenantID int64, code string) (*models.Booking, error) {
	return r.getOne(ctx, q, "b.access_code = $1 AND "+tenantFilter("b.organization_id", 2), "", code, tenantID)
}

// LockByPaymentReference retrieves and locks the booking paid through a gateway reference
func (r *BookingRepository) LockByPaymentReference(ctx context.Context, q Queryer, reference string) (*models.Booking, error) {
	return r.getOne(ctx, q, "b.payment_reference = $1", " FOR UPDATE OF b", reference)
}

func (r *BookingRepository) getOne(ctx context.Context, q Queryer, where, suffix string, args ...interface{}) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE ` + where + suffix

	booking := &models.Booking{}
	err := sqlx.GetContext(ctx, q, booking, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("booking", args[0])
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	if err := r.hydrate(ctx, q, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// hydrate loads the booking's reservations, line items and participants
func (r *BookingRepository) hydrate(ctx context.Context, q Queryer, booking *models.Booking) error {
	reservations, err := r.ListReservations(ctx, q, booking.ID)
	if err != nil {
		return err
	}
	booking.Reservations = reservations

	items, err := r.ListLineItems(ctx, q, booking.ID)
	if err != nil {
		return err
	}
	booking.LineItems = items

	var participants []models.BookingParticipant
	err = sqlx.SelectContext(ctx, q, &participants, `
		SELECT id, booking_id, user_id, name, email
		FROM booking_participants WHERE booking_id = $1 ORDER BY id`, booking.ID)
	if err != nil {
		return fmt.Errorf("failed to list participants: %w", err)
	}
	booking.Participants = participants
	return nil
}

// ListByUser returns a user's bookings, newest first, without associations
func (r *BookingRepository) ListByUser(ctx context.Context, q Queryer, tenantID, userID int64, limit, offset int) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.user_id = $1 AND ` + tenantFilter("b.organization_id", 2) + `
		ORDER BY b.created_at DESC
		LIMIT $3 OFFSET $4`

	var bookings []models.Booking
	if err := sqlx.SelectContext(ctx, q, &bookings, query, userID, tenantID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// ListExpiredPending returns unpaid pending bookings created before cutoff
func (r *BookingRepository) ListExpiredPending(ctx context.Context, q Queryer, cutoff time.Time) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.status = 'pending' AND b.payment_status = 'pending' AND b.created_at < $1
		ORDER BY b.id`

	var bookings []models.Booking
	if err := sqlx.SelectContext(ctx, q, &bookings, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list expired bookings: %w", err)
	}
	return bookings, nil
}

// ListRefundPending returns cancelled bookings awaiting a refund through the given method
func (r *BookingRepository) ListRefundPending(ctx context.Context, q Queryer, method models.PaymentMethodKind) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.payment_status = 'refund_pending' AND b.payment_method = $1
		ORDER BY b.id`

	var bookings []models.Booking
	if err := sqlx.SelectContext(ctx, q, &bookings, query, method); err != nil {
		return nil, fmt.Errorf("failed to list refund pending bookings: %w", err)
	}
	for i := range bookings {
		items, err := r.ListLineItems(ctx, q, bookings[i].ID)
		if err != nil {
			return nil, err
		}
		bookings[i].LineItems = items
	}
	return bookings, nil
}

// ============================================================================
// ACCESS CODES
// ============================================================================

// AccessCodeExists reports whether any booking already holds code
func (r *BookingRepository) AccessCodeExists(ctx context.Context, q Queryer, code string) (bool, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count, `SELECT COUNT(*) FROM bookings WHERE access_code = $1`, code)
	if err != nil {
		return false, fmt.Errorf("failed to check access code uniqueness: %w", err)
	}
	return count > 0, nil
}

// MarkAccessCodeUsed sets access_code_used_at and check_in_at once.
// Returns false when the code had already been used.
func (r *BookingRepository) MarkAccessCodeUsed(ctx context.Context, q Queryer, bookingID int64, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx, `
		UPDATE bookings
		SET access_code_used_at = $1, check_in_at = COALESCE(check_in_at, $1), updated_at = NOW()
		WHERE id = $2 AND access_code_used_at IS NULL`, at, bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to mark access code used: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// ============================================================================
// RESERVATIONS
// ============================================================================

// CreateReservation inserts the interval a booking occupies
func (r *BookingRepository) CreateReservation(ctx context.Context, q Queryer, res *models.Reservation) error {
	query := `
		INSERT INTO reservations (booking_id, resource_id, reservation_date, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := q.QueryRowxContext(ctx, query,
		res.BookingID, res.ResourceID, models.DateOnly(res.ReservationDate), res.StartTime, res.EndTime,
	).Scan(&res.ID)
	if err != nil {
		return wrapWriteErr(err, "create reservation")
	}
	return nil
}

// DeleteReservations removes every reservation of a booking
func (r *BookingRepository) DeleteReservations(ctx context.Context, q Queryer, bookingID int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM reservations WHERE booking_id = $1`, bookingID); err != nil {
		return fmt.Errorf("failed to delete reservations: %w", err)
	}
	return nil
}

// ListReservations returns a booking's reservations
func (r *BookingRepository) ListReservations(ctx context.Context, q Queryer, bookingID int64) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := sqlx.SelectContext(ctx, q, &reservations, `
		SELECT id, booking_id, resource_id, reservation_date, start_time, end_time
		FROM reservations WHERE booking_id = $1 ORDER BY id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, nil
}

// ListActiveReservations returns reservations on the court and date whose
// booking is pending or confirmed
func (r *BookingRepository) ListActiveReservations(ctx context.Context, q Queryer, resourceID int64, date time.Time) ([]models.Reservation, error) {
	query := `
		SELECT rv.id, rv.booking_id, rv.resource_id, rv.reservation_date, rv.start_time, rv.end_time
		FROM reservations rv
		JOIN bookings b ON b.id = rv.booking_id
		WHERE rv.resource_id = $1
		  AND rv.reservation_date = $2
		  AND b.status = ANY($3)
		ORDER BY rv.start_time`

	var reservations []models.Reservation
	err := sqlx.SelectContext(ctx, q, &reservations, query,
		resourceID, models.DateOnly(date), pq.Array(activeStatuses()))
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, nil
}

// FindConflicts returns active reservations overlapping the half-open
// interval on the court and date, ignoring excludeBookingID when non-zero
func (r *BookingRepository) FindConflicts(ctx context.Context, q Queryer, resourceID int64, date time.Time, iv models.Interval, excludeBookingID int64) ([]models.Reservation, error) {
	query := `
		SELECT rv.id, rv.booking_id, rv.resource_id, rv.reservation_date, rv.start_time, rv.end_time
		FROM reservations rv
		JOIN bookings b ON b.id = rv.booking_id
		WHERE rv.resource_id = $1
		  AND rv.reservation_date = $2
		  AND b.status = ANY($3)
		  AND rv.start_time < $4
		  AND rv.end_time > $5
		  AND ($6 = 0 OR rv.booking_id <> $6)`

	var reservations []models.Reservation
	err := sqlx.SelectContext(ctx, q, &reservations, query,
		resourceID, models.DateOnly(date), pq.Array(activeStatuses()), iv.End, iv.Start, excludeBookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to check reservation conflicts: %w", err)
	}
	return reservations, nil
}

func activeStatuses() []string {
	out := make([]string, len(models.ActiveBookingStatuses))
	for i, s := range models.ActiveBookingStatuses {
		out[i] = string(s)
	}
	return out
}

// ============================================================================
// LINE ITEMS AND PARTICIPANTS
// ============================================================================

// CreateLineItem inserts a priced line
func (r *BookingRepository) CreateLineItem(ctx context.Context, q Queryer, item *models.BookingLineItem) error {
	query := `
		INSERT INTO booking_line_items (booking_id, description, quantity, unit_price_cents, total_cents, type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := q.QueryRowxContext(ctx, query,
		item.BookingID, item.Description, item.Quantity, item.UnitPriceCents, item.TotalCents, item.Type,
	).Scan(&item.ID)
	if err != nil {
		return wrapWriteErr(err, "create line item")
	}
	return nil
}

// ListLineItems returns a booking's line items
func (r *BookingRepository) ListLineItems(ctx context.Context, q Queryer, bookingID int64) ([]models.BookingLineItem, error) {
	var items []models.BookingLineItem
	err := sqlx.SelectContext(ctx, q, &items, `
		SELECT id, booking_id, description, quantity, unit_price_cents, total_cents, type
		FROM booking_line_items WHERE booking_id = $1 ORDER BY id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	return items, nil
}

// CreateParticipant inserts an extra player
func (r *BookingRepository) CreateParticipant(ctx context.Context, q Queryer, p *models.BookingParticipant) error {
	err := q.QueryRowxContext(ctx, `
		INSERT INTO booking_participants (booking_id, user_id, name, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, p.BookingID, p.UserID, p.Name, p.Email).Scan(&p.ID)
	if err != nil {
		return wrapWriteErr(err, "create participant")
	}
	return nil
}
