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

// PaymentService settles bookings and wallet top-ups. Wallet payments
// commit in one transaction; card payments call the gateway outside any
// transaction and record the reference afterwards.
type PaymentService struct {
	tx       Transactor
	bookings BookingStore
	users    UserStore
	wallets  WalletStore
	booking  *BookingService
	coupons  *CouponService
	wallet   *WalletService
	gateway  PaymentGateway
	currency string
	notifier Notifier
	audits   PaymentAuditStore
	logger   *logrus.Logger
	now      func() time.Time
}

// NewPaymentService creates a new PaymentService. gateway may be nil, which
// disables card payments.
func NewPaymentService(
	tx Transactor,
	bookings BookingStore,
	users UserStore,
	wallets WalletStore,
	booking *BookingService,
	coupons *CouponService,
	wallet *WalletService,
	gateway PaymentGateway,
	currency string,
	notifier Notifier,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		tx:       tx,
		bookings: bookings,
		users:    users,
		wallets:  wallets,
		booking:  booking,
		coupons:  coupons,
		wallet:   wallet,
		gateway:  gateway,
		currency: currency,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// SetAuditLog enables the payment audit trail
func (s *PaymentService) SetAuditLog(audits PaymentAuditStore) {
	s.audits = audits
}

// audit appends entry to the audit trail. Failures are logged, never
// returned: the payment itself has already happened.
func (s *PaymentService) audit(ctx context.Context, entry models.PaymentAudit) {
	if s.audits == nil {
		return
	}
	if entry.Provider == "" && s.gateway != nil {
		entry.Provider = s.gateway.Name()
	}
	if err := s.audits.Log(ctx, s.tx.Queryer(), &entry); err != nil {
		s.logger.WithError(err).WithField("event", entry.EventType).Error("Failed to write payment audit")
	}
}

func errorText(err error) *string {
	msg := err.Error()
	return &msg
}

// ProcessBookingPayment is the charge decision point over the payment method variant
func (s *PaymentService) ProcessBookingPayment(ctx context.Context, tenantID, bookingID int64, req *models.PayBookingRequest) (*models.PayBookingResponse, error) {
	kind, err := models.ParsePaymentMethodKind(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	switch kind {
	case models.PaymentMethodWallet:
		return s.payWithWallet(ctx, tenantID, bookingID, req.CouponCode)
	case models.PaymentMethodCard:
		return s.payWithCard(ctx, tenantID, bookingID, req)
	case models.PaymentMethodCash:
		return s.payWithCash(ctx, tenantID, bookingID, req.CouponCode)
	default:
		return nil, models.NewValidationError("payment_method", "unsupported payment method")
	}
}

// lockPending locks the booking and requires it to still await payment
func (s *PaymentService) lockPending(ctx context.Context, q database.Queryer, tenantID, bookingID int64) (*models.Booking, error) {
	booking, err := s.bookings.LockByID(ctx, q, tenantID, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusPending || booking.PaymentStatus != models.PaymentStatusPending {
		return nil, fmt.Errorf("%w: booking is %s/%s, not awaiting payment", models.ErrInvalidTransition, booking.Status, booking.PaymentStatus)
	}
	return booking, nil
}

func (s *PaymentService) payWithWallet(ctx context.Context, tenantID, bookingID int64, couponCode string) (*models.PayBookingResponse, error) {
	var booking *models.Booking
	err := s.tx.WithinTx(ctx, func(q database.Queryer) error {
		var err error
		booking, err = s.lockPending(ctx, q, tenantID, bookingID)
		if err != nil {
			return err
		}

		if couponCode != "" {
			if _, err := s.coupons.ApplyCoupon(ctx, q, booking, couponCode); err != nil {
				return err
			}
		}

		total := booking.TotalCents()
		if total > 0 {
			wallet, err := s.wallet.getOrCreateTx(ctx, q, booking.OrganizationID, booking.UserID)
			if err != nil {
				return err
			}
			id := booking.ID
			if _, err := s.wallet.deductTx(ctx, q, wallet.ID, total, fmt.Sprintf("Booking #%d", booking.ID), &id); err != nil {
				return err
			}
		}

		return s.booking.confirmTx(ctx, q, booking, models.WalletPayment())
	})
	if err != nil {
		return nil, err
	}

	dispatch(ctx, s.notifier, s.logger, Notification{Event: EventBookingConfirmed, Booking: booking, OccurredAt: s.now().UTC()})
	return &models.PayBookingResponse{Booking: booking}, nil
}

func (s *PaymentService) payWithCard(ctx context.Context, tenantID, bookingID int64, req *models.PayBookingRequest) (*models.PayBookingResponse, error) {
	if s.gateway == nil {
		return nil, fmt.Errorf("%w: card payments are not configured", models.ErrGateway)
	}

	q := s.tx.Queryer()
	booking, err := s.bookings.GetByID(ctx, q, tenantID, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusPending || booking.PaymentStatus != models.PaymentStatusPending {
		return nil, fmt.Errorf("%w: booking is %s/%s, not awaiting payment", models.ErrInvalidTransition, booking.Status, booking.PaymentStatus)
	}

	total := booking.TotalCents()
	if req.CouponCode != "" {
		discount, err := s.coupons.Preview(ctx, q, booking, req.CouponCode)
		if err != nil {
			return nil, err
		}
		total -= discount
	}
	if total <= 0 {
		return nil, models.NewValidationError("payment_method", "nothing to charge; pay with wallet instead")
	}

	checkout := CheckoutRequest{
		InvoiceID:   fmt.Sprintf("BK-%d-%d", booking.ID, s.now().Unix()),
		AmountCents: total,
		Currency:    s.currency,
		Description: fmt.Sprintf("Court booking #%d", booking.ID),
		ReturnURL:   req.ReturnURL,
		CardToken:   req.CardToken,
		Metadata:    map[string]string{"booking_id": fmt.Sprint(booking.ID)},
	}
	if user, err := s.users.GetUserByID(ctx, q, database.AllTenants, booking.UserID); err == nil {
		checkout.CustomerName = user.Name
		checkout.CustomerEmail = user.Email
		if user.Phone != nil {
			checkout.CustomerPhone = *user.Phone
		}
	}

	session, err := s.gateway.CreateCheckout(ctx, checkout)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Gateway checkout failed")
		s.audit(ctx, models.PaymentAudit{
			BookingID:    &booking.ID,
			EventType:    models.PaymentEventCheckoutFailed,
			AmountCents:  &total,
			ErrorMessage: errorText(err),
		})
		return nil, fmt.Errorf("%w: %v", models.ErrGateway, err)
	}
	s.audit(ctx, models.PaymentAudit{
		BookingID:   &booking.ID,
		Reference:   &session.Reference,
		EventType:   models.PaymentEventCheckoutCreated,
		AmountCents: &total,
		Success:     true,
	})

	err = s.tx.WithinTx(ctx, func(q database.Queryer) error {
		var err error
		booking, err = s.lockPending(ctx, q, tenantID, bookingID)
		if err != nil {
			return err
		}
		if req.CouponCode != "" {
			if _, err := s.coupons.ApplyCoupon(ctx, q, booking, req.CouponCode); err != nil {
				return err
			}
		}
		if booking.TotalCents() != total {
			return models.Conflictf("booking total changed during checkout")
		}

		method := models.CardPayment(session.Reference)
		if session.Status == "successful" {
			return s.booking.confirmTx(ctx, q, booking, method)
		}
		booking.SetPaymentMethod(method)
		return s.bookings.Update(ctx, q, booking)
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": bookingID,
			"reference":  session.Reference,
		}).Error("Failed to record card checkout")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"gateway":    s.gateway.Name(),
		"reference":  session.Reference,
		"status":     session.Status,
	}).Info("Card checkout created")

	if booking.Status == models.BookingStatusConfirmed {
		dispatch(ctx, s.notifier, s.logger, Notification{Event: EventBookingConfirmed, Booking: booking, OccurredAt: s.now().UTC()})
	}
	return &models.PayBookingResponse{
		Booking:     booking,
		CheckoutURL: session.CheckoutURL,
		Reference:   session.Reference,
	}, nil
}

// payWithCash records the method; staff confirm once the money is received
func (s *PaymentService) payWithCash(ctx context.Context, tenantID, bookingID int64, couponCode string) (*models.PayBookingResponse, error) {
	var booking *models.Booking
	err := s.tx.WithinTx(ctx, func(q database.Queryer) error {
		var err error
		booking, err = s.lockPending(ctx, q, tenantID, bookingID)
		if err != nil {
			return err
		}
		if couponCode != "" {
			if _, err := s.coupons.ApplyCoupon(ctx, q, booking, couponCode); err != nil {
				return err
			}
		}
		booking.SetPaymentMethod(models.CashPayment())
		return s.bookings.Update(ctx, q, booking)
	})
	if err != nil {
		return nil, err
	}
	return &models.PayBookingResponse{Booking: booking}, nil
}

// HandleWebhook verifies a gateway callback and applies a successful payment
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte) error {
	if s.gateway == nil {
		return fmt.Errorf("%w: card payments are not configured", models.ErrGateway)
	}
	raw := string(body)
	result, err := s.gateway.ParseWebhook(ctx, body)
	if err != nil {
		s.audit(ctx, models.PaymentAudit{
			EventType:    models.PaymentEventWebhookRejected,
			ErrorMessage: errorText(err),
			RawBody:      &raw,
		})
		return models.NewValidationError("payload", err.Error())
	}
	s.audit(ctx, models.PaymentAudit{
		Reference: &result.Reference,
		EventType: models.PaymentEventWebhookReceived,
		Success:   result.Success,
		RawBody:   &raw,
	})
	if !result.Success {
		s.logger.WithField("reference", result.Reference).Info("Gateway reported unsuccessful payment")
		return nil
	}
	return s.HandleGatewaySuccess(ctx, result.Reference)
}

// HandleGatewaySuccess confirms whatever owns reference: a booking awaiting a
// card payment, or a wallet top-up. Repeated callbacks are no-ops.
func (s *PaymentService) HandleGatewaySuccess(ctx context.Context, reference string) error {
	var booking *models.Booking
	confirmed := false
	err := s.tx.WithinTx(ctx, func(q database.Queryer) error {
		var err error
		booking, err = s.bookings.LockByPaymentReference(ctx, q, reference)
		if err != nil {
			return err
		}

		switch {
		case booking.PaymentStatus != models.PaymentStatusPending:
			return nil
		case booking.Status == models.BookingStatusCancelled:
			// Paid after cancellation; the money goes back through the refund job
			booking.PaymentStatus = models.PaymentStatusRefundPending
			return s.bookings.Update(ctx, q, booking)
		default:
			confirmed = true
			return s.booking.confirmTx(ctx, q, booking, models.CardPayment(reference))
		}
	})
	if errors.Is(err, models.ErrNotFound) {
		_, err = s.HandleTopUpSuccess(ctx, reference)
		return err
	}
	if err != nil {
		return err
	}

	if confirmed {
		dispatch(ctx, s.notifier, s.logger, Notification{Event: EventBookingConfirmed, Booking: booking, OccurredAt: s.now().UTC()})
	}
	return nil
}

// CreateWalletTopUpCheckout starts a card-funded top-up. The wallet is
// credited when the gateway confirms the reference.
func (s *PaymentService) CreateWalletTopUpCheckout(ctx context.Context, tenantID, userID int64, req *models.TopUpRequest) (*models.TopUpResponse, error) {
	if req.AmountCents <= 0 {
		return nil, models.NewValidationError("amount_cents", "must be greater than zero")
	}
	if s.gateway == nil {
		return nil, fmt.Errorf("%w: card payments are not configured", models.ErrGateway)
	}

	wallet, err := s.wallet.GetOrCreateWallet(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}

	checkout := CheckoutRequest{
		InvoiceID:   fmt.Sprintf("TU-%d-%d", wallet.ID, s.now().Unix()),
		AmountCents: req.AmountCents,
		Currency:    s.currency,
		Description: "Wallet top-up",
		ReturnURL:   req.ReturnURL,
		CardToken:   req.CardToken,
		Metadata:    map[string]string{"wallet_id": fmt.Sprint(wallet.ID)},
	}
	if user, err := s.users.GetUserByID(ctx, s.tx.Queryer(), database.AllTenants, userID); err == nil {
		checkout.CustomerName = user.Name
		checkout.CustomerEmail = user.Email
	}

	session, err := s.gateway.CreateCheckout(ctx, checkout)
	if err != nil {
		s.audit(ctx, models.PaymentAudit{
			WalletID:     &wallet.ID,
			EventType:    models.PaymentEventCheckoutFailed,
			AmountCents:  &req.AmountCents,
			ErrorMessage: errorText(err),
		})
		return nil, fmt.Errorf("%w: %v", models.ErrGateway, err)
	}
	s.audit(ctx, models.PaymentAudit{
		WalletID:    &wallet.ID,
		Reference:   &session.Reference,
		EventType:   models.PaymentEventCheckoutCreated,
		AmountCents: &req.AmountCents,
		Success:     true,
	})

	topUp := &models.WalletTopUp{
		WalletID:    wallet.ID,
		Reference:   session.Reference,
		AmountCents: req.AmountCents,
		Status:      models.TopUpPending,
	}
	if err := s.tx.WithinTx(ctx, func(q database.Queryer) error {
		return s.wallets.CreateTopUp(ctx, q, topUp)
	}); err != nil {
		return nil, err
	}

	if session.Status == "successful" {
		if _, err := s.HandleTopUpSuccess(ctx, session.Reference); err != nil {
			return nil, err
		}
		topUp.Status = models.TopUpCompleted
	}

	return &models.TopUpResponse{TopUp: topUp, CheckoutURL: session.CheckoutURL}, nil
}

// HandleTopUpSuccess credits the wallet once per gateway reference. It
// returns nil when the top-up had already been credited.
func (s *PaymentService) HandleTopUpSuccess(ctx context.Context, reference string) (*models.WalletTransaction, error) {
	var txn *models.WalletTransaction
	err := s.tx.WithinTx(ctx, func(q database.Queryer) error {
		topUp, err := s.wallets.LockTopUpByReference(ctx, q, reference)
		if err != nil {
			return err
		}
		if topUp.Status == models.TopUpCompleted {
			return nil
		}

		ref := reference
		txn, err = s.wallet.addFundsTx(ctx, q, topUp.WalletID, topUp.AmountCents, string(models.PaymentMethodCard), &ref, "Wallet top-up")
		if err != nil {
			return err
		}
		return s.wallets.CompleteTopUp(ctx, q, topUp.ID)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// SettleCardRefunds pushes refund_pending card bookings through the gateway
// and marks them refunded. Gateways without a refund API are left for staff.
func (s *PaymentService) SettleCardRefunds(ctx context.Context) (int, error) {
	if s.gateway == nil {
		return 0, nil
	}

	pending, err := s.bookings.ListRefundPending(ctx, s.tx.Queryer(), models.PaymentMethodCard)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, b := range pending {
		ok, err := s.settleCardRefund(ctx, b.ID)
		if err != nil {
			s.logger.WithError(err).WithField("booking_id", b.ID).Error("Card refund settlement failed")
			continue
		}
		if ok {
			settled++
		}
	}
	return settled, nil
}

// settleCardRefund refunds one booking while holding its row lock, so two
// runners never refund the same booking. The gateway call happens only
// after the locked row is confirmed still refund_pending.
func (s *PaymentService) settleCardRefund(ctx context.Context, bookingID int64) (bool, error) {
	var (
		entry   *models.PaymentAudit
		settled bool
	)
	err := s.tx.WithinTx(ctx, func(q database.Queryer) error {
		booking, err := s.bookings.LockByID(ctx, q, database.AllTenants, bookingID)
		if err != nil {
			return err
		}
		if booking.PaymentStatus != models.PaymentStatusRefundPending {
			return nil
		}
		method, ok := booking.PaymentMethod()
		if !ok || method.Kind != models.PaymentMethodCard || method.Reference == "" {
			return nil
		}

		amount := booking.TotalCents()
		if amount > 0 {
			id, ref := booking.ID, method.Reference
			entry = &models.PaymentAudit{
				BookingID:   &id,
				Reference:   &ref,
				EventType:   models.PaymentEventRefundCompleted,
				AmountCents: &amount,
				Success:     true,
			}
			if err := s.gateway.Refund(ctx, method.Reference, amount); err != nil {
				if errors.Is(err, ErrManualRefund) {
					entry = nil
					return nil
				}
				entry.EventType = models.PaymentEventRefundFailed
				entry.Success = false
				entry.ErrorMessage = errorText(err)
				return fmt.Errorf("gateway refund failed: %w", err)
			}
		}

		booking.PaymentStatus = models.PaymentStatusRefunded
		if err := s.bookings.Update(ctx, q, booking); err != nil {
			return err
		}
		settled = true
		return nil
	})
	if entry != nil {
		s.audit(ctx, *entry)
	}
	return settled, err
}
