package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

// UserRepository handles user and organization lookups
type UserRepository struct{}

// NewUserRepository creates a new user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

// GetUserByID retrieves a user. Users without an organization are visible to every tenant.
func (r *UserRepository) GetUserByID(ctx context.Context, q Queryer, tenantID, userID int64) (*models.User, error) {
	query := `
		SELECT id, organization_id, name, email, phone, created_at
		FROM users
		WHERE id = $1 AND ($2 = 0 OR organization_id IS NULL OR organization_id = $2)`

	user := &models.User{}
	err := sqlx.GetContext(ctx, q, user, query, userID, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("user", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrganizationByID retrieves an organization
func (r *UserRepository) GetOrganizationByID(ctx context.Context, q Queryer, organizationID int64) (*models.Organization, error) {
	org := &models.Organization{}
	err := sqlx.GetContext(ctx, q, org, `
		SELECT id, slug, name, created_at FROM organizations WHERE id = $1`, organizationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("organization", organizationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// GetFirstOrganization returns the oldest organization, used when a user has none
func (r *UserRepository) GetFirstOrganization(ctx context.Context, q Queryer) (*models.Organization, error) {
	org := &models.Organization{}
	err := sqlx.GetContext(ctx, q, org, `
		SELECT id, slug, name, created_at FROM organizations ORDER BY id LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("organization", "any")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}
