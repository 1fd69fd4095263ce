package services

import (
	"github.com/courtly/court-booking-backend/internal/config"
	"github.com/courtly/court-booking-backend/internal/database"
	"github.com/sirupsen/logrus"
)

// Container holds the wired booking core. Repositories are stateless, so
// one set is shared by every service.
type Container struct {
	Pricing      *PricingService
	Availability *AvailabilityService
	Coupons      *CouponService
	AccessCodes  *AccessCodeService
	Wallet       *WalletService
	Bookings     *BookingService
	Payments     *PaymentService
	RateLimits   *RateLimitService
	Cron         *CronService
}

// NewContainer wires every service over db. cache, notifier and gateway
// may be nil: the cache is skipped, notifications are logged and card
// payments are disabled.
func NewContainer(
	cfg *config.Config,
	db *database.PostgresDB,
	cache SlotCache,
	notifier Notifier,
	gateway PaymentGateway,
	logger *logrus.Logger,
) *Container {
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}

	resources := database.NewResourceRepository()
	users := database.NewUserRepository()
	bookings := database.NewBookingRepository()
	maintenance := database.NewMaintenanceRepository()
	rules := database.NewPricingRuleRepository()
	memberships := database.NewMembershipRepository()
	coupons := database.NewCouponRepository()
	wallets := database.NewWalletRepository()

	c := &Container{}
	c.Pricing = NewPricingService(rules, memberships, cfg.Booking.DefaultPriceCents, logger)
	c.Availability = NewAvailabilityService(db, resources, bookings, maintenance, cache, logger)
	c.Coupons = NewCouponService(db, coupons, bookings, logger)
	c.AccessCodes = NewAccessCodeService(db, bookings, users, cfg.Booking.CheckInLead, logger)
	c.AccessCodes.SetLocation(cfg.Booking.Location)
	c.Wallet = NewWalletService(db, wallets, users, cfg.Booking.CurrencySymbol, logger)
	c.Bookings = NewBookingService(
		db,
		resources,
		users,
		bookings,
		c.Pricing,
		c.Availability,
		c.Coupons,
		c.AccessCodes,
		c.Wallet,
		notifier,
		cfg.Booking.CurrencySymbol,
		logger,
	)
	c.Payments = NewPaymentService(
		db,
		bookings,
		users,
		wallets,
		c.Bookings,
		c.Coupons,
		c.Wallet,
		gateway,
		cfg.Payment.Currency,
		notifier,
		logger,
	)
	c.Payments.SetAuditLog(database.NewPaymentAuditRepository())
	c.RateLimits = NewRateLimitService(db.Queryer())
	c.Cron = NewCronService(c.Bookings, c.Payments, cfg.Booking.PendingTTL, logger)
	c.Cron.SetRateLimitCleanup(c.RateLimits)
	return c
}
