package services

import (
	"context"
	"fmt"
	"time"

	"github.com/courtly/court-booking-backend/internal/database"
	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultPriceCents applies when no pricing rule matches
const DefaultPriceCents int64 = 5000

// ResolveBasePrice picks the price for a slot from rules: the first matching
// rule for the court wins, then the first matching organization-wide rule,
// then defaultPrice. Rules are matched in ascending id order.
func ResolveBasePrice(rules []models.PricingRule, resourceID int64, date time.Time, slot models.Interval, defaultPrice int64) (int64, *int64) {
	weekday := models.ISOWeekday(date)

	if rule := firstMatch(rules, weekday, slot, func(r *models.PricingRule) bool {
		return r.ResourceID != nil && *r.ResourceID == resourceID
	}); rule != nil {
		return rule.PriceCents, &rule.ID
	}

	if rule := firstMatch(rules, weekday, slot, func(r *models.PricingRule) bool {
		return r.ResourceID == nil
	}); rule != nil {
		return rule.PriceCents, &rule.ID
	}

	return defaultPrice, nil
}

func firstMatch(rules []models.PricingRule, weekday int, slot models.Interval, scope func(*models.PricingRule) bool) *models.PricingRule {
	var best *models.PricingRule
	for i := range rules {
		r := &rules[i]
		if !scope(r) || !r.Matches(weekday, slot) {
			continue
		}
		if best == nil || r.ID < best.ID {
			best = r
		}
	}
	return best
}

// MembershipDiscount returns the floored court fee discount and its reason
func MembershipDiscount(base int64, membership *models.UserClubMembership) (int64, *string) {
	if membership == nil || membership.MembershipType == nil {
		return 0, nil
	}
	pct := membership.MembershipType.CourtFeeDiscountPercent
	if pct <= 0 {
		return 0, nil
	}
	if pct > 100 {
		pct = 100
	}
	discount := base * int64(pct) / 100
	reason := "Membership: " + membership.MembershipType.Name
	return discount, &reason
}

// PricingService resolves booking prices
type PricingService struct {
	rules        PricingRuleStore
	memberships  MembershipStore
	defaultPrice int64
	logger       *logrus.Logger
	now          func() time.Time
}

// NewPricingService creates a new PricingService
func NewPricingService(rules PricingRuleStore, memberships MembershipStore, defaultPrice int64, logger *logrus.Logger) *PricingService {
	if defaultPrice <= 0 {
		defaultPrice = DefaultPriceCents
	}
	return &PricingService{
		rules:        rules,
		memberships:  memberships,
		defaultPrice: defaultPrice,
		logger:       logger,
		now:          time.Now,
	}
}

// CalculateBookingPrice prices a slot for an optional user. Missing rules are
// not an error; the default price applies.
func (s *PricingService) CalculateBookingPrice(ctx context.Context, q database.Queryer, tenantID, resourceID int64, date time.Time, slot models.Interval, userID *int64) (*models.PriceBreakdown, error) {
	rules, err := s.rules.ListActiveForResource(ctx, q, tenantID, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing rules: %w", err)
	}

	base, ruleID := ResolveBasePrice(rules, resourceID, date, slot, s.defaultPrice)
	breakdown := &models.PriceBreakdown{
		BasePriceCents: base,
		PricingRuleID:  ruleID,
	}

	if userID != nil {
		membership, err := s.memberships.GetActiveForUser(ctx, q, tenantID, *userID, s.now())
		if err != nil {
			return nil, fmt.Errorf("failed to load membership: %w", err)
		}
		if membership != nil && !membership.IsActiveOn(s.now()) {
			membership = nil
		}
		breakdown.DiscountCents, breakdown.DiscountReason = MembershipDiscount(base, membership)
	}

	breakdown.FinalPriceCents = breakdown.BasePriceCents - breakdown.DiscountCents

	s.logger.WithFields(logrus.Fields{
		"resource_id":    resourceID,
		"date":           date.Format(models.DateLayout),
		"slot":           slot.Start.String() + "-" + slot.End.String(),
		"base_cents":     breakdown.BasePriceCents,
		"discount_cents": breakdown.DiscountCents,
	}).Debug("Resolved booking price")

	return breakdown, nil
}

// GenerateLineItems turns a breakdown into a court fee line and, when
// discounted, a negative discount line
func (s *PricingService) GenerateLineItems(breakdown *models.PriceBreakdown) []models.BookingLineItem {
	items := []models.BookingLineItem{{
		Description:    "Court Rental",
		Quantity:       1,
		UnitPriceCents: breakdown.BasePriceCents,
		TotalCents:     breakdown.BasePriceCents,
		Type:           models.LineItemCourtFee,
	}}

	if breakdown.DiscountCents > 0 {
		reason := "Discount"
		if breakdown.DiscountReason != nil {
			reason = "Discount: " + *breakdown.DiscountReason
		}
		items = append(items, models.BookingLineItem{
			Description:    reason,
			Quantity:       1,
			UnitPriceCents: -breakdown.DiscountCents,
			TotalCents:     -breakdown.DiscountCents,
			Type:           models.LineItemDiscount,
		})
	}
	return items
}
