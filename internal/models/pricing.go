package models

import (
	"errors"
	"time"
)

// PricingRule sets a court price for a weekday range and time window.
// A nil ResourceID means the rule applies to every court in the organization.
type PricingRule struct {
	ID             int64     `json:"id" db:"id"`
	OrganizationID int64     `json:"organization_id" db:"organization_id"`
	ResourceID     *int64    `json:"resource_id,omitempty" db:"resource_id"`
	Name           *string   `json:"name,omitempty" db:"name"`
	DayOfWeekStart int       `json:"day_of_week_start" db:"day_of_week_start"` // 1 = Monday
	DayOfWeekEnd   int       `json:"day_of_week_end" db:"day_of_week_end"`     // 7 = Sunday
	TimeStart      ClockTime `json:"time_start" db:"time_start"`
	TimeEnd        ClockTime `json:"time_end" db:"time_end"`
	PriceCents     int64     `json:"price_cents" db:"price_cents"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Validate rejects out-of-range and wrapping weekday ranges
func (r *PricingRule) Validate() error {
	if r.DayOfWeekStart < 1 || r.DayOfWeekStart > 7 || r.DayOfWeekEnd < 1 || r.DayOfWeekEnd > 7 {
		return errors.New("day_of_week values must be between 1 (Monday) and 7 (Sunday)")
	}
	if r.DayOfWeekStart > r.DayOfWeekEnd {
		return errors.New("day_of_week_start must not be after day_of_week_end; split wrapping ranges into two rules")
	}
	if r.TimeStart >= r.TimeEnd {
		return errors.New("time_start must be before time_end")
	}
	if r.PriceCents < 0 {
		return errors.New("price_cents must not be negative")
	}
	return nil
}

// Matches reports whether the rule covers the weekday and the whole interval
func (r *PricingRule) Matches(weekday int, slot Interval) bool {
	if !r.IsActive || r.DayOfWeekStart > r.DayOfWeekEnd {
		return false
	}
	return r.DayOfWeekStart <= weekday && weekday <= r.DayOfWeekEnd &&
		r.TimeStart <= slot.Start && r.TimeEnd >= slot.End
}

// PriceBreakdown is the result of price resolution
type PriceBreakdown struct {
	BasePriceCents  int64   `json:"base_price_cents"`
	DiscountCents   int64   `json:"discount_cents"`
	FinalPriceCents int64   `json:"final_price_cents"`
	DiscountReason  *string `json:"discount_reason,omitempty"`
	PricingRuleID   *int64  `json:"pricing_rule_id,omitempty"`
}
