package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/courtly/court-booking-backend/internal/database"
	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/courtly/court-booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

const (
	accessCodeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	accessCodeSuffixLen   = 4
	accessCodeMaxAttempts = 10

	// DefaultCheckInLead is how early before the start a code is accepted
	DefaultCheckInLead = 30 * time.Minute
)

// AccessCodeService issues and redeems check-in codes
type AccessCodeService struct {
	tx       Transactor
	bookings BookingStore
	users    UserStore
	lead     time.Duration
	loc      *time.Location
	logger   *logrus.Logger
	now      func() time.Time
}

// NewAccessCodeService creates a new AccessCodeService
func NewAccessCodeService(tx Transactor, bookings BookingStore, users UserStore, lead time.Duration, logger *logrus.Logger) *AccessCodeService {
	if lead <= 0 {
		lead = DefaultCheckInLead
	}
	return &AccessCodeService{
		tx:       tx,
		bookings: bookings,
		users:    users,
		lead:     lead,
		loc:      time.UTC,
		logger:   logger,
		now:      time.Now,
	}
}

// SetLocation sets the venue time zone used for the check-in window
func (s *AccessCodeService) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// IssueTx assigns a fresh code to booking inside the caller's transaction.
// The caller persists the booking. An existing code is kept.
func (s *AccessCodeService) IssueTx(ctx context.Context, q database.Queryer, booking *models.Booking) error {
	if booking.AccessCode != nil {
		return nil
	}

	prefix := "ORG"
	org, err := s.users.GetOrganizationByID(ctx, q, booking.OrganizationID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	if org != nil {
		prefix = org.AccessCodePrefix()
	}

	date := s.now().UTC()
	if r, ok := booking.PrimaryReservation(); ok {
		date = r.ReservationDate
	}

	for attempt := 0; attempt < accessCodeMaxAttempts; attempt++ {
		code, err := FormatAccessCode(prefix, booking.ResourceID, date)
		if err != nil {
			return err
		}
		exists, err := s.bookings.AccessCodeExists(ctx, q, code)
		if err != nil {
			return err
		}
		if !exists {
			booking.AccessCode = &code
			return nil
		}
	}
	return fmt.Errorf("failed to generate unique access code after %d attempts", accessCodeMaxAttempts)
}

// FormatAccessCode builds PREFIX-C{resource}-{yyyymmdd}-XXXX with a random suffix
func FormatAccessCode(prefix string, resourceID int64, date time.Time) (string, error) {
	suffix := make([]byte, accessCodeSuffixLen)
	limit := big.NewInt(int64(len(accessCodeAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate access code: %w", err)
		}
		suffix[i] = accessCodeAlphabet[n.Int64()]
	}
	return fmt.Sprintf("%s-C%d-%s-%s", prefix, resourceID, date.Format("20060102"), suffix), nil
}

// ValidateAccessCode returns the booking owning code when it is pending or
// confirmed and not yet used; otherwise nil with no error.
func (s *AccessCodeService) ValidateAccessCode(ctx context.Context, tenantID int64, code string) (*models.Booking, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, models.NewValidationError("code", "is required")
	}

	booking, err := s.bookings.GetByAccessCode(ctx, s.tx.Queryer(), tenantID, code)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if booking.AccessCodeUsedAt != nil || !booking.Status.IsActive() {
		return nil, nil
	}
	return booking, nil
}

// IsValidForCurrentTime reports whether now lies within [start - lead, end]
func (s *AccessCodeService) IsValidForCurrentTime(booking *models.Booking, now time.Time) bool {
	start, end, ok := booking.Window(s.loc)
	if !ok {
		return false
	}
	return !now.Before(start.Add(-s.lead)) && !now.After(end)
}

// MarkAsUsed records the check-in once. It returns false when the code was already used.
func (s *AccessCodeService) MarkAsUsed(ctx context.Context, booking *models.Booking) (bool, error) {
	at := s.now().UTC()
	used, err := s.bookings.MarkAccessCodeUsed(ctx, s.tx.Queryer(), booking.ID, at)
	if err != nil {
		return false, err
	}
	if used {
		booking.AccessCodeUsedAt = &at
		if booking.CheckInAt == nil {
			booking.CheckInAt = &at
		}
	}
	return used, nil
}

// Check runs the kiosk flow: validate, check the time window and, when both
// pass, mark the code used. userAgent labels the device in the result.
func (s *AccessCodeService) Check(ctx context.Context, tenantID int64, code, userAgent string) (*models.AccessCodeCheck, error) {
	device := utils.ParseUserAgent(userAgent)
	result := &models.AccessCodeCheck{DeviceLabel: device.Label()}

	booking, err := s.ValidateAccessCode(ctx, tenantID, code)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		result.Message = "Access code is invalid or already used"
		return result, nil
	}

	result.Valid = true
	result.Booking = booking
	result.WithinTime = s.IsValidForCurrentTime(booking, s.now())
	if !result.WithinTime {
		result.Message = "Access code is not valid at this time"
		return result, nil
	}

	used, err := s.MarkAsUsed(ctx, booking)
	if err != nil {
		return nil, err
	}
	if !used {
		result.Valid = false
		result.Message = "Access code is invalid or already used"
		return result, nil
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"device":     result.DeviceLabel,
	}).Info("Access code checked in")

	result.Message = "Check-in successful"
	return result, nil
}
