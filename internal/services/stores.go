package services

import (
	"context"
	"time"

	"github.com/courtly/court-booking-backend/internal/database"
	"github.com/courtly/court-booking-backend/internal/models"
)

// Transactor runs units of work atomically. *database.PostgresDB satisfies it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(q database.Queryer) error) error
	Queryer() database.Queryer
}

// ResourceStore reads courts
type ResourceStore interface {
	GetByID(ctx context.Context, q database.Queryer, tenantID, resourceID int64) (*models.Resource, error)
	LockByID(ctx context.Context, q database.Queryer, tenantID, resourceID int64) (*models.Resource, error)
}

// PricingRuleStore reads pricing rules
type PricingRuleStore interface {
	ListActiveForResource(ctx context.Context, q database.Queryer, tenantID, resourceID int64) ([]models.PricingRule, error)
}

// MembershipStore reads club memberships
type MembershipStore interface {
	GetActiveForUser(ctx context.Context, q database.Queryer, tenantID, userID int64, day time.Time) (*models.UserClubMembership, error)
}

// UserStore reads users and organizations
type UserStore interface {
	GetUserByID(ctx context.Context, q database.Queryer, tenantID, userID int64) (*models.User, error)
	GetOrganizationByID(ctx context.Context, q database.Queryer, organizationID int64) (*models.Organization, error)
	GetFirstOrganization(ctx context.Context, q database.Queryer) (*models.Organization, error)
}

// BookingStore persists the booking aggregate
type BookingStore interface {
	Create(ctx context.Context, q database.Queryer, booking *models.Booking) error
	Update(ctx context.Context, q database.Queryer, booking *models.Booking) error
	GetByID(ctx context.Context, q database.Queryer, tenantID, bookingID int64) (*models.Booking, error)
	LockByID(ctx context.Context, q database.Queryer, tenantID, bookingID int64) (*models.Booking, error)
	GetByAccessCode(ctx context.Context, q database.Queryer, tenantID int64, code string) (*models.Booking, error)
	LockByPaymentReference(ctx context.Context, q database.Queryer, reference string) (*models.Booking, error)
	ListByUser(ctx context.Context, q database.Queryer, tenantID, userID int64, limit, offset int) ([]models.Booking, error)
	ListExpiredPending(ctx context.Context, q database.Queryer, cutoff time.Time) ([]models.Booking, error)
	ListRefundPending(ctx context.Context, q database.Queryer, method models.PaymentMethodKind) ([]models.Booking, error)

	AccessCodeExists(ctx context.Context, q database.Queryer, code string) (bool, error)
	MarkAccessCodeUsed(ctx context.Context, q database.Queryer, bookingID int64, at time.Time) (bool, error)

	CreateReservation(ctx context.Context, q database.Queryer, res *models.Reservation) error
	DeleteReservations(ctx context.Context, q database.Queryer, bookingID int64) error
	ListActiveReservations(ctx context.Context, q database.Queryer, resourceID int64, date time.Time) ([]models.Reservation, error)
	FindConflicts(ctx context.Context, q database.Queryer, resourceID int64, date time.Time, iv models.Interval, excludeBookingID int64) ([]models.Reservation, error)

	CreateLineItem(ctx context.Context, q database.Queryer, item *models.BookingLineItem) error
	CreateParticipant(ctx context.Context, q database.Queryer, p *models.BookingParticipant) error
}

// MaintenanceStore reads maintenance windows
type MaintenanceStore interface {
	ListBlocking(ctx context.Context, q database.Queryer, resourceID int64, from, to time.Time) ([]models.MaintenanceSchedule, error)
}

// CouponStore reads and redeems coupons
type CouponStore interface {
	GetByCode(ctx context.Context, q database.Queryer, tenantID int64, code string) (*models.Coupon, error)
	LockByCode(ctx context.Context, q database.Queryer, tenantID int64, code string) (*models.Coupon, error)
	IncrementUsage(ctx context.Context, q database.Queryer, couponID int64) error
}

// WalletStore persists wallets, their ledger and gateway top-ups
type WalletStore interface {
	GetByUser(ctx context.Context, q database.Queryer, organizationID, userID int64) (*models.UserWallet, error)
	Create(ctx context.Context, q database.Queryer, organizationID, userID int64) (*models.UserWallet, error)
	GetByID(ctx context.Context, q database.Queryer, walletID int64) (*models.UserWallet, error)
	LockByID(ctx context.Context, q database.Queryer, walletID int64) (*models.UserWallet, error)
	UpdateBalance(ctx context.Context, q database.Queryer, walletID, balanceCents int64) error
	InsertTransaction(ctx context.Context, q database.Queryer, tx *models.WalletTransaction) error
	ListTransactions(ctx context.Context, q database.Queryer, walletID int64, limit int) ([]models.WalletTransaction, error)
	SumTransactions(ctx context.Context, q database.Queryer, walletID int64) (int64, error)
	CreateTopUp(ctx context.Context, q database.Queryer, topUp *models.WalletTopUp) error
	LockTopUpByReference(ctx context.Context, q database.Queryer, reference string) (*models.WalletTopUp, error)
	CompleteTopUp(ctx context.Context, q database.Queryer, topUpID int64) error
}

var (
	_ Transactor       = (*database.PostgresDB)(nil)
	_ ResourceStore    = (*database.ResourceRepository)(nil)
	_ PricingRuleStore = (*database.PricingRuleRepository)(nil)
	_ MembershipStore  = (*database.MembershipRepository)(nil)
	_ UserStore        = (*database.UserRepository)(nil)
	_ BookingStore     = (*database.BookingRepository)(nil)
	_ MaintenanceStore = (*database.MaintenanceRepository)(nil)
	_ CouponStore      = (*database.CouponRepository)(nil)
	_ WalletStore      = (*database.WalletRepository)(nil)
)

// PaymentAuditStore appends gateway events to the payment audit trail
type PaymentAuditStore interface {
	Log(ctx context.Context, q database.Queryer, audit *models.PaymentAudit) error
}
