package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/courtly/court-booking-backend/internal/models"
)

// MembershipRepository reads club memberships
type MembershipRepository struct{}

// NewMembershipRepository creates a new MembershipRepository
func NewMembershipRepository() *MembershipRepository {
	return &MembershipRepository{}
}

// GetActiveForUser returns the user's membership that is active on day within
// the tenant, preferring the largest court fee discount. Returns nil when none.
func (r *MembershipRepository) GetActiveForUser(ctx context.Context, q Queryer, tenantID, userID int64, day time.Time) (*models.UserClubMembership, error) {
	query := `
		SELECT m.id, m.user_id, m.membership_type_id, m.valid_from, m.valid_until, m.status,
			   t.id, t.organization_id, t.name, t.court_fee_discount_percent,
			   t.booking_window_days, t.max_active_bookings
		FROM user_club_memberships m
		JOIN club_membership_types t ON t.id = m.membership_type_id
		WHERE m.user_id = $1
		  AND ` + tenantFilter("t.organization_id", 2) + `
		  AND m.status = 'active'
		  AND m.valid_from <= $3
		  AND (m.valid_until IS NULL OR m.valid_until >= $3)
		ORDER BY t.court_fee_discount_percent DESC, m.id
		LIMIT 1`

	membership := &models.UserClubMembership{MembershipType: &models.ClubMembershipType{}}
	mt := membership.MembershipType
	err := q.QueryRowxContext(ctx, query, userID, tenantID, models.DateOnly(day)).Scan(
		&membership.ID, &membership.UserID, &membership.MembershipTypeID,
		&membership.ValidFrom, &membership.ValidUntil, &membership.Status,
		&mt.ID, &mt.OrganizationID, &mt.Name, &mt.CourtFeeDiscountPercent,
		&mt.BookingWindowDays, &mt.MaxActiveBookings,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return membership, nil
}
