package services

import (
	"context"
	"strings"
	"time"

	"github.com/courtly/court-booking-backend/internal/database"
	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// CouponService validates and redeems discount codes
type CouponService struct {
	tx       Transactor
	coupons  CouponStore
	bookings BookingStore
	logger   *logrus.Logger
	now      func() time.Time
}

// NewCouponService creates a new CouponService
func NewCouponService(tx Transactor, coupons CouponStore, bookings BookingStore, logger *logrus.Logger) *CouponService {
	return &CouponService{
		tx:       tx,
		coupons:  coupons,
		bookings: bookings,
		logger:   logger,
		now:      time.Now,
	}
}

// GetCoupon looks a code up case-insensitively within the tenant
func (s *CouponService) GetCoupon(ctx context.Context, tenantID int64, code string) (*models.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, models.NewValidationError("coupon_code", "is required")
	}
	return s.coupons.GetByCode(ctx, s.tx.Queryer(), tenantID, code)
}

// IsValid reports whether the code exists and can be redeemed right now
func (s *CouponService) IsValid(ctx context.Context, tenantID int64, code string) (bool, error) {
	coupon, err := s.GetCoupon(ctx, tenantID, code)
	if err != nil {
		return false, err
	}
	return coupon.Redeemable(s.now()) == nil, nil
}

// Preview computes the discount a code would give the booking without redeeming it
func (s *CouponService) Preview(ctx context.Context, q database.Queryer, booking *models.Booking, code string) (int64, error) {
	coupon, err := s.coupons.GetByCode(ctx, q, booking.OrganizationID, strings.TrimSpace(code))
	if err != nil {
		return 0, err
	}
	if err := coupon.Redeemable(s.now()); err != nil {
		return 0, err
	}
	if hasCouponLine(booking) {
		return 0, models.Conflictf("booking %d already has a coupon applied", booking.ID)
	}
	return couponDiscount(coupon, booking), nil
}

// ApplyCoupon redeems code against booking inside the caller's transaction.
// It appends a negative coupon_discount line, bumps the usage count and
// returns the discount in cents. A booking takes at most one coupon.
func (s *CouponService) ApplyCoupon(ctx context.Context, q database.Queryer, booking *models.Booking, code string) (int64, error) {
	coupon, err := s.coupons.LockByCode(ctx, q, booking.OrganizationID, strings.TrimSpace(code))
	if err != nil {
		return 0, err
	}
	if err := coupon.Redeemable(s.now()); err != nil {
		return 0, err
	}
	if hasCouponLine(booking) {
		return 0, models.Conflictf("booking %d already has a coupon applied", booking.ID)
	}

	discount := couponDiscount(coupon, booking)
	if discount > 0 {
		item := &models.BookingLineItem{
			BookingID:      booking.ID,
			Description:    "Coupon: " + coupon.Code,
			Quantity:       1,
			UnitPriceCents: -discount,
			TotalCents:     -discount,
			Type:           models.LineItemCouponDiscount,
		}
		if err := s.bookings.CreateLineItem(ctx, q, item); err != nil {
			return 0, err
		}
		booking.LineItems = append(booking.LineItems, *item)
	}

	if err := s.coupons.IncrementUsage(ctx, q, coupon.ID); err != nil {
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"coupon":         coupon.Code,
		"discount_cents": discount,
	}).Info("Coupon applied")

	return discount, nil
}

// couponDiscount prices the coupon against the court fee, capped so the
// booking total never drops below zero after earlier discounts
func couponDiscount(coupon *models.Coupon, booking *models.Booking) int64 {
	discount := coupon.DiscountFor(booking.CourtFeeCents())
	remaining := booking.TotalCents()
	if remaining < 0 {
		remaining = 0
	}
	if discount > remaining {
		return remaining
	}
	return discount
}

func hasCouponLine(booking *models.Booking) bool {
	for _, item := range booking.LineItems {
		if item.Type == models.LineItemCouponDiscount {
			return true
		}
	}
	return false
}
