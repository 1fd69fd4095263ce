package database

import (
	"context"
	"fmt"

	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

// PricingRuleRepository handles database operations for pricing_rules
type PricingRuleRepository struct{}

// NewPricingRuleRepository creates a new PricingRuleRepository
func NewPricingRuleRepository() *PricingRuleRepository {
	return &PricingRuleRepository{}
}

// ListActiveForResource returns active rules for the court plus the
// organization-wide rules, ordered by id so resolution ties break on the lowest id.
func (r *PricingRuleRepository) ListActiveForResource(ctx context.Context, q Queryer, tenantID, resourceID int64) ([]models.PricingRule, error) {
	query := `
		SELECT id, organization_id, resource_id, name,
			   day_of_week_start, day_of_week_end, time_start, time_end,
			   price_cents, is_active, created_at
		FROM pricing_rules
		WHERE ` + tenantFilter("organization_id", 1) + `
		  AND is_active = true
		  AND (resource_id = $2 OR resource_id IS NULL)
		ORDER BY id`

	var rules []models.PricingRule
	if err := sqlx.SelectContext(ctx, q, &rules, query, tenantID, resourceID); err != nil {
		return nil, fmt.Errorf("failed to list pricing rules: %w", err)
	}
	return rules, nil
}

// Create inserts a rule after validating it; wrapping weekday ranges are rejected here
func (r *PricingRuleRepository) Create(ctx context.Context, q Queryer, rule *models.PricingRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("%w: %s", models.ErrValidation, err.Error())
	}

	query := `
		INSERT INTO pricing_rules (
			organization_id, resource_id, name,
			day_of_week_start, day_of_week_end, time_start, time_end,
			price_cents, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := q.QueryRowxContext(ctx, query,
		rule.OrganizationID, rule.ResourceID, rule.Name,
		rule.DayOfWeekStart, rule.DayOfWeekEnd, rule.TimeStart, rule.TimeEnd,
		rule.PriceCents, rule.IsActive,
	).Scan(&rule.ID, &rule.CreatedAt)
	if err != nil {
		return wrapWriteErr(err, "create pricing rule")
	}
	return nil
}
