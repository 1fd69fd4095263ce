package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

// CouponRepository handles database operations for coupons
type CouponRepository struct{}

// NewCouponRepository creates a new CouponRepository
func NewCouponRepository() *CouponRepository {
	return &CouponRepository{}
}

// GetByCode retrieves a coupon by its code (case-insensitive) within the tenant
func (r *CouponRepository) GetByCode(ctx context.Context, q Queryer, tenantID int64, code string) (*models.Coupon, error) {
	return r.get(ctx, q, tenantID, code, "")
}

// LockByCode retrieves a coupon and locks it for redemption
func (r *CouponRepository) LockByCode(ctx context.Context, q Queryer, tenantID int64, code string) (*models.Coupon, error) {
	return r.get(ctx, q, tenantID, code, " FOR UPDATE")
}

func (r *CouponRepository) get(ctx context.Context, q Queryer, tenantID int64, code, suffix string) (*models.Coupon, error) {
	query := `
		SELECT id, organization_id, code, discount_type, discount_value,
			   valid_until, usage_limit, usage_count, is_active, created_at
		FROM coupons
		WHERE UPPER(code) = $1 AND ` + tenantFilter("organization_id", 2) + suffix

	coupon := &models.Coupon{}
	err := sqlx.GetContext(ctx, q, coupon, query, strings.ToUpper(strings.TrimSpace(code)), tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("coupon", code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return coupon, nil
}

// IncrementUsage bumps usage_count by one
func (r *CouponRepository) IncrementUsage(ctx context.Context, q Queryer, couponID int64) error {
	_, err := q.ExecContext(ctx, `UPDATE coupons SET usage_count = usage_count + 1 WHERE id = $1`, couponID)
	if err != nil {
		return fmt.Errorf("failed to increment coupon usage: %w", err)
	}
	return nil
}
