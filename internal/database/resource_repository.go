package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

const resourceColumns = `
	id, organization_id, name, surface_type, is_indoor, has_lighting,
	status, priority, daily_start_time, daily_end_time, time_block_minutes,
	created_at, updated_at`

// ResourceRepository handles database operations for the resources table
type ResourceRepository struct{}

// NewResourceRepository creates a new ResourceRepository
func NewResourceRepository() *ResourceRepository {
	return &ResourceRepository{}
}

// GetByID retrieves a court within the tenant
func (r *ResourceRepository) GetByID(ctx context.Context, q Queryer, tenantID, resourceID int64) (*models.Resource, error) {
	return r.get(ctx, q, tenantID, resourceID, "")
}

// LockByID retrieves a court and takes a row lock that serializes booking
// writers on the court until the surrounding transaction ends.
func (r *ResourceRepository) LockByID(ctx context.Context, q Queryer, tenantID, resourceID int64) (*models.Resource, error) {
	return r.get(ctx, q, tenantID, resourceID, " FOR UPDATE")
}

func (r *ResourceRepository) get(ctx context.Context, q Queryer, tenantID, resourceID int64, suffix string) (*models.Resource, error) {
	query := `SELECT ` + resourceColumns + `
		FROM resources
		WHERE id = $1 AND ` + tenantFilter("organization_id", 2) + suffix

	resource := &models.Resource{}
	err := sqlx.GetContext(ctx, q, resource, query, resourceID, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("resource", resourceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return resource, nil
}

// ListByOrganization returns the tenant's courts ordered by priority
func (r *ResourceRepository) ListByOrganization(ctx context.Context, q Queryer, tenantID int64) ([]models.Resource, error) {
	query := `SELECT ` + resourceColumns + `
		FROM resources
		WHERE ` + tenantFilter("organization_id", 1) + `
		ORDER BY priority DESC, id`

	var resources []models.Resource
	if err := sqlx.SelectContext(ctx, q, &resources, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return resources, nil
}
