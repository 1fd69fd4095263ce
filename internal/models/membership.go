package models

import "time"

// MembershipStatus of a user's club membership
type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipExpired   MembershipStatus = "expired"
	MembershipSuspended MembershipStatus = "suspended"
	MembershipCancelled MembershipStatus = "cancelled"
)

// ClubMembershipType defines the benefits of a membership tier
type ClubMembershipType struct {
	ID                      int64  `json:"id" db:"id"`
	OrganizationID          int64  `json:"organization_id" db:"organization_id"`
	Name                    string `json:"name" db:"name"`
	CourtFeeDiscountPercent int    `json:"court_fee_discount_percent" db:"court_fee_discount_percent"`
	BookingWindowDays       *int   `json:"booking_window_days,omitempty" db:"booking_window_days"`
	MaxActiveBookings       *int   `json:"max_active_bookings,omitempty" db:"max_active_bookings"`
}

// UserClubMembership links a user to a membership tier
type UserClubMembership struct {
	ID               int64            `json:"id" db:"id"`
	UserID           int64            `json:"user_id" db:"user_id"`
	MembershipTypeID int64            `json:"membership_type_id" db:"membership_type_id"`
	ValidFrom        time.Time        `json:"valid_from" db:"valid_from"`
	ValidUntil       *time.Time       `json:"valid_until,omitempty" db:"valid_until"`
	Status           MembershipStatus `json:"status" db:"status"`

	MembershipType *ClubMembershipType `json:"membership_type,omitempty" db:"-"`
}

// IsActiveOn reports whether the membership grants benefits on day
func (m *UserClubMembership) IsActiveOn(day time.Time) bool {
	if m.Status != MembershipActive {
		return false
	}
	d := DateOnly(day)
	if d.Before(DateOnly(m.ValidFrom)) {
		return false
	}
	return m.ValidUntil == nil || !d.After(DateOnly(*m.ValidUntil))
}
