package models

import "time"

// DiscountType selects how a coupon reduces the court fee
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon is an organization-scoped discount code
type Coupon struct {
	ID             int64        `json:"id" db:"id"`
	OrganizationID int64        `json:"organization_id" db:"organization_id"`
	Code           string       `json:"code" db:"code"`
	DiscountType   DiscountType `json:"discount_type" db:"discount_type"`
	// DiscountValue is a percent (0-100) for percentage coupons and cents for fixed ones
	DiscountValue int64      `json:"discount_value" db:"discount_value"`
	ValidUntil    *time.Time `json:"valid_until,omitempty" db:"valid_until"`
	UsageLimit    *int       `json:"usage_limit,omitempty" db:"usage_limit"`
	UsageCount    int        `json:"usage_count" db:"usage_count"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// Redeemable returns nil when the coupon can be used at now, else a Conflict
// error naming the reason.
func (c *Coupon) Redeemable(now time.Time) error {
	if !c.IsActive {
		return Conflictf("coupon %s is not active", c.Code)
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return Conflictf("coupon %s has expired", c.Code)
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return Conflictf("coupon %s has reached its usage limit", c.Code)
	}
	return nil
}

// DiscountFor computes the discount against a court fee total.
// Percentage discounts are floored; fixed discounts never exceed the total.
func (c *Coupon) DiscountFor(courtFeeCents int64) int64 {
	if courtFeeCents <= 0 {
		return 0
	}
	switch c.DiscountType {
	case DiscountPercentage:
		return courtFeeCents * c.DiscountValue / 100
	case DiscountFixed:
		if c.DiscountValue > courtFeeCents {
			return courtFeeCents
		}
		return c.DiscountValue
	default:
		return 0
	}
}
