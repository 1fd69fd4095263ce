package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/courtly/court-booking-backend/internal/database"
	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// BookingService is the booking transaction core. Every write runs in one
// transaction that first locks the court row, so concurrent writers on the
// same court are serialized before the availability check.
type BookingService struct {
	tx             Transactor
	resources      ResourceStore
	users          UserStore
	bookings       BookingStore
	pricing        *PricingService
	availability   *AvailabilityService
	coupons        *CouponService
	accessCodes    *AccessCodeService
	wallet         *WalletService
	notifier       Notifier
	currencySymbol string
	logger         *logrus.Logger
	now            func() time.Time
}

// NewBookingService creates a new BookingService
func NewBookingService(
	tx Transactor,
	resources ResourceStore,
	users UserStore,
	bookings BookingStore,
	pricing *PricingService,
	availability *AvailabilityService,
	coupons *CouponService,
	accessCodes *AccessCodeService,
	wallet *WalletService,
	notifier Notifier,
	currencySymbol string,
	logger *logrus.Logger,
) *BookingService {
	if currencySymbol == "" {
		currencySymbol = "$"
	}
	return &BookingService{
		tx:             tx,
		resources:      resources,
		users:          users,
		bookings:       bookings,
		pricing:        pricing,
		availability:   availability,
		coupons:        coupons,
		accessCodes:    accessCodes,
		wallet:         wallet,
		notifier:       notifier,
		currencySymbol: currencySymbol,
		logger:         logger,
		now:            time.Now,
	}
}

// ============================================================================
// CREATE
// ============================================================================

// CreateBooking books a court interval for a user. The booking starts
// pending/pending and owns one reservation plus its priced line items.
func (s *BookingService) CreateBooking(ctx context.Context, tenantID int64, in *models.CreateBookingInput) (*models.Booking, error) {
	if !in.Interval.Valid() {
		return nil, models.NewValidationError("end_time", "must be after start_time")
	}
	if in.Visibility == "" {
		in.Visibility = models.VisibilityPrivate
	}
	date := models.DateOnly(in.Date)

	var (
		booking  *models.Booking
		resource *models.Resource
	)
	err := s.tx.WithinTx(ctx, func(q database.Queryer) error {
		var err error
		resource, err = s.resources.LockByID(ctx, q, tenantID, in.ResourceID)
		if err != nil {
			return err
		}

		user, err := s.users.GetUserByID(ctx, q, tenantID, in.UserID)
		if err != nil {
			return err
		}

		available, err := s.availability.IsAvailable(ctx, q, tenantID, resource, date, in.Interval, 0)
		if err != nil {
			return err
		}
		if !available {
			return models.ErrSlotUnavailable
		}

		breakdown, err := s.pricing.CalculateBookingPrice(ctx, q, resource.OrganizationID, resource.ID, date, in.Interval, &user.ID)
		if err != nil {
			return err
		}

		created := &models.Booking{
			OrganizationID: resource.OrganizationID,
			UserID:         user.ID,
			ResourceID:     resource.ID,
			Status:         models.BookingStatusPending,
			PaymentStatus:  models.PaymentStatusPending,
			Visibility:     in.Visibility,
			Notes:          in.Notes,
		}
		if err := s.bookings.Create(ctx, q, created); err != nil {
			return err
		}

		if err := s.bookings.CreateReservation(ctx, q, &models.Reservation{
			BookingID:       created.ID,
			ResourceID:      resource.ID,
			ReservationDate: date,
			StartTime:       in.Interval.Start,
			EndTime:         in.Interval.End,
		}); err != nil {
			return err
		}

		for _, item := range s.pricing.GenerateLineItems(breakdown) {
			item.BookingID = created.ID
			if err := s.bookings.CreateLineItem(ctx, q, &item); err != nil {
				return err
			}
		}

		for _, p := range in.Participants {
			p.BookingID = created.ID
			if err := s.bookings.CreateParticipant(ctx, q, &p); err != nil {
				return err
			}
		}

		booking, err = s.bookings.GetByID(ctx, q, resource.OrganizationID, created.ID)
		if err != nil {
			return err
		}

		if in.CouponCode != "" {
			if _, err := s.coupons.ApplyCoupon(ctx, q, booking, in.CouponCode); err != nil {
				return err
			}
		}

		if booking.Status == models.BookingStatusConfirmed && booking.PaymentStatus == models.PaymentStatusPaid {
			if err := s.accessCodes.IssueTx(ctx, q, booking); err != nil {
				return err
			}
			if err := s.bookings.Update(ctx, q, booking); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	booking.Resource = resource
	s.availability.Invalidate(ctx, resource, date)

	s.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"resource_id": resource.ID,
		"user_id":     booking.UserID,
		"date":        date.Format(models.DateLayout),
		"slot":        in.Interval.Start.String() + "-" + in.Interval.End.String(),
		"total_cents": booking.TotalCents(),
	}).Info("Booking created")

	dispatch(ctx, s.notifier, s.logger, Notification{Event: EventBookingCreated, Booking: booking, OccurredAt: s.now().UTC()})
	return booking, nil
}

// ============================================================================
// CANCEL
// ============================================================================

// CancelBooking cancels a live booking. When issueRefund is set and the
// booking was paid, the refund is routed by payment method: wallet payments
// are credited back in the same transaction, card and cash payments are left
// refund_pending. Cancellation and refund commit or roll back together.
// It returns the cancelled booking and the refunded amount.
func (s *BookingService) CancelBooking(ctx context.Context, tenantID, bookingID int64, issueRefund bool) (*models.Booking, int64, error) {
	return s.cancel(ctx, tenantID, bookingID, issueRefund, "")
}

// cancel optionally requires the locked booking to still be in status from
func (s *BookingService) cancel(ctx context.Context, tenantID, bookingID int64, issueRefund bool, from models.BookingStatus) (*models.Booking, int64, error) {
	existing, err := s.bookings.GetByID(ctx, s.tx.Queryer(), tenantID, bookingID)
	if err != nil {
		return nil, 0, err
	}

	var (
		booking     *models.Booking
		resource    *models.Resource
		refundCents int64
	)
	err = s.tx.WithinTx(ctx, func(q database.Queryer) error {
		var err error
		resource, err = s.resources.LockByID(ctx, q, database.AllTenants, existing.ResourceID)
		if err != nil {
			return err
		}
		booking, err = s.bookings.LockByID(ctx, q, tenantID, bookingID)
		if err != nil {
			return err
		}
		if !booking.Status.CanTransitionTo(models.BookingStatusCancelled) || (from != "" && booking.Status != from) {
			return fmt.Errorf("%w: cannot cancel a %s booking", models.ErrInvalidTransition, booking.Status)
		}

		booking.Status = models.BookingStatusCancelled

		if issueRefund && booking.PaymentStatus == models.PaymentStatusPaid {
			refundCents, err = s.routeRefund(ctx, q, booking)
			if err != nil {
				return err
			}
		}

		return s.bookings.Update(ctx, q, booking)
	})
	if err != nil {
		return nil, 0, err
	}

	if r, ok := booking.PrimaryReservation(); ok {
		s.availability.Invalidate(ctx, resource, r.ReservationDate)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"payment_status": booking.PaymentStatus,
		"refund_cents":   refundCents,
	}).Info("Booking cancelled")

	dispatch(ctx, s.notifier, s.logger, Notification{
		Event:       EventBookingCancelled,
		Booking:     booking,
		RefundCents: refundCents,
		OccurredAt:  s.now().UTC(),
	})
	return booking, refundCents, nil
}

// routeRefund is the refund decision point over the payment method variant
func (s *BookingService) routeRefund(ctx context.Context, q database.Queryer, booking *models.Booking) (int64, error) {
	amount := booking.TotalCents()
	if amount < 0 {
		amount = 0
	}
	method, _ := booking.PaymentMethod()

	switch method.Kind {
	case models.PaymentMethodWallet:
		if amount > 0 {
			wallet, err := s.wallet.getOrCreateTx(ctx, q, booking.OrganizationID, booking.UserID)
			if err != nil {
				return 0, err
			}
			bookingID := booking.ID
			reason := fmt.Sprintf("booking #%d cancelled", booking.ID)
			if _, err := s.wallet.refundTx(ctx, q, wallet.ID, amount, &bookingID, reason); err != nil {
				return 0, fmt.Errorf("failed to refund booking to wallet: %w", err)
			}
		}
		booking.PaymentStatus = models.PaymentStatusRefunded
		return amount, nil
	case models.PaymentMethodCard, models.PaymentMethodCash:
		booking.PaymentStatus = models.PaymentStatusRefundPending
		return amount, nil
	default:
		// Paid without a recorded method; staff settle it by hand
		booking.PaymentStatus = models.PaymentStatusRefundPending
		return amount, nil
	}
}

// ============================================================================
// STATUS TRANSITIONS
// ============================================================================

// ConfirmBooking marks a pending booking confirmed and paid with the given
// method and issues its access code. Used for staff-confirmed cash payments.
func (s *BookingService) ConfirmBooking(ctx context.Context, tenantID, bookingID int64, method models.PaymentMethod) (*models.Booking, error) {
	var booking *models.Booking
	err := s.tx.WithinTx(ctx, func(q database.Queryer) error {
		var err error
		booking, err = s.bookings.LockByID(ctx, q, tenantID, bookingID)
		if err != nil {
			return err
		}
		return s.confirmTx(ctx, q, booking, method)
	})
	if err != nil {
		return nil, err
	}

	dispatch(ctx, s.notifier, s.logger, Notification{Event: EventBookingConfirmed, Booking: booking, OccurredAt: s.now().UTC()})
	return booking, nil
}

// confirmTx applies pending -> confirmed/paid on a locked booking
func (s *BookingService) confirmTx(ctx context.Context, q database.Queryer, booking *models.Booking, method models.PaymentMethod) error {
	if !booking.Status.CanTransitionTo(models.BookingStatusConfirmed) {
		return fmt.Errorf("%w: cannot confirm a %s booking", models.ErrInvalidTransition, booking.Status)
	}

	booking.Status = models.BookingStatusConfirmed
	booking.PaymentStatus = models.PaymentStatusPaid
	booking.SetPaymentMethod(method)

	if err := s.accessCodes.IssueTx(ctx, q, booking); err != nil {
		return err
	}
	if err := s.bookings.Update(ctx, q, booking); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"payment_method": method.Kind,
	}).Info("Booking confirmed")
	return nil
}

// CompleteBooking marks a confirmed booking completed
func (s *BookingService) CompleteBooking(ctx context.Context, tenantID, bookingID int64) (*models.Booking, error) {
	return s.transition(ctx, tenantID, bookingID, models.BookingStatusCompleted)
}

// MarkNoShow marks a confirmed booking as a no-show
func (s *BookingService) MarkNoShow(ctx context.Context, tenantID, bookingID int64) (*models.Booking, error) {
	return s.transition(ctx, tenantID, bookingID, models.BookingStatusNoShow)
}

func (s *BookingService) transition(ctx context.Context, tenantID, bookingID int64, next models.BookingStatus) (*models.Booking, error) {
	var booking *models.Booking
	err := s.tx.WithinTx(ctx, func(q database.Queryer) error {
		var err error
		booking, err = s.bookings.LockByID(ctx, q, tenantID, bookingID)
		if err != nil {
			return err
		}
		if !booking.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, booking.Status, next)
		}
		booking.Status = next
		return s.bookings.Update(ctx, q, booking)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"booking_id": booking.ID, "status": next}).Info("Booking status changed")
	return booking, nil
}

// CheckIn stamps check_in_at. Repeated check-ins just move the stamp.
func (s *BookingService) CheckIn(ctx context.Context, tenantID, bookingID int64) (*models.Booking, error) {
	var booking *models.Booking
	err := s.tx.WithinTx(ctx, func(q database.Queryer) error {
		var err error
		booking, err = s.bookings.LockByID(ctx, q, tenantID, bookingID)
		if err != nil {
			return err
		}
		at := s.now().UTC()
		booking.CheckInAt = &at
		return s.bookings.Update(ctx, q, booking)
	})
	if err != nil {
		return nil, err
	}

	dispatch(ctx, s.notifier, s.logger, Notification{Event: EventBookingCheckedIn, Booking: booking, OccurredAt: s.now().UTC()})
	return booking, nil
}

// ============================================================================
// RESCHEDULE
// ============================================================================

// RescheduleBooking moves a live booking to a new interval on the same court.
// The booking's own reservation is ignored by the availability check and the
// reservation row is replaced. Line items keep the original price.
func (s *BookingService) RescheduleBooking(ctx context.Context, tenantID, bookingID int64, date time.Time, iv models.Interval) (*models.Booking, error) {
	if !iv.Valid() {
		return nil, models.NewValidationError("end_time", "must be after start_time")
	}
	day := models.DateOnly(date)

	existing, err := s.bookings.GetByID(ctx, s.tx.Queryer(), tenantID, bookingID)
	if err != nil {
		return nil, err
	}

	var (
		booking  *models.Booking
		resource *models.Resource
		oldDate  time.Time
	)
	err = s.tx.WithinTx(ctx, func(q database.Queryer) error {
		var err error
		resource, err = s.resources.LockByID(ctx, q, database.AllTenants, existing.ResourceID)
		if err != nil {
			return err
		}
		booking, err = s.bookings.LockByID(ctx, q, tenantID, bookingID)
		if err != nil {
			return err
		}
		if !booking.Status.IsActive() {
			return fmt.Errorf("%w: cannot reschedule a %s booking", models.ErrInvalidTransition, booking.Status)
		}
		if r, ok := booking.PrimaryReservation(); ok {
			oldDate = r.ReservationDate
		}

		available, err := s.availability.IsAvailable(ctx, q, tenantID, resource, day, iv, booking.ID)
		if err != nil {
			return err
		}
		if !available {
			return models.ErrSlotUnavailable
		}

		if err := s.bookings.DeleteReservations(ctx, q, booking.ID); err != nil {
			return err
		}
		reservation := models.Reservation{
			BookingID:       booking.ID,
			ResourceID:      resource.ID,
			ReservationDate: day,
			StartTime:       iv.Start,
			EndTime:         iv.End,
		}
		if err := s.bookings.CreateReservation(ctx, q, &reservation); err != nil {
			return err
		}
		booking.Reservations = []models.Reservation{reservation}
		return s.bookings.Update(ctx, q, booking)
	})
	if err != nil {
		return nil, err
	}

	if !oldDate.IsZero() {
		s.availability.Invalidate(ctx, resource, oldDate)
	}
	s.availability.Invalidate(ctx, resource, day)

	dispatch(ctx, s.notifier, s.logger, Notification{Event: EventBookingRescheduled, Booking: booking, OccurredAt: s.now().UTC()})
	return booking, nil
}

// ============================================================================
// READS
// ============================================================================

// GetBooking loads a hydrated booking
func (s *BookingService) GetBooking(ctx context.Context, tenantID, bookingID int64) (*models.Booking, error) {
	return s.bookings.GetByID(ctx, s.tx.Queryer(), tenantID, bookingID)
}

// ListBookingsForUser pages through a user's bookings, newest first
func (s *BookingService) ListBookingsForUser(ctx context.Context, tenantID, userID int64, limit, offset int) ([]models.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.bookings.ListByUser(ctx, s.tx.Queryer(), tenantID, userID, limit, offset)
}

// GetBookingSummary returns the booking with its priced total
func (s *BookingService) GetBookingSummary(ctx context.Context, tenantID, bookingID int64) (*models.BookingSummary, error) {
	booking, err := s.GetBooking(ctx, tenantID, bookingID)
	if err != nil {
		return nil, err
	}
	total := booking.TotalCents()
	items := booking.LineItems
	if items == nil {
		items = []models.BookingLineItem{}
	}
	return &models.BookingSummary{
		Booking:        booking,
		TotalCents:     total,
		TotalFormatted: models.FormatCents(s.currencySymbol, total),
		LineItems:      items,
	}, nil
}

// ExpirePendingBookings cancels pending bookings created before cutoff and
// returns how many were released. Bookings that moved on meanwhile are skipped.
func (s *BookingService) ExpirePendingBookings(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.bookings.ListExpiredPending(ctx, s.tx.Queryer(), cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, b := range stale {
		if _, _, err := s.cancel(ctx, database.AllTenants, b.ID, false, models.BookingStatusPending); err != nil {
			if errors.Is(err, models.ErrInvalidTransition) || errors.Is(err, models.ErrNotFound) {
				continue
			}
			s.logger.WithError(err).WithField("booking_id", b.ID).Error("Failed to expire pending booking")
			continue
		}
		expired++
	}
	return expired, nil
}
