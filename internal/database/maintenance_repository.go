package database

import (
	"context"
	"fmt"
	"time"

	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

// MaintenanceRepository reads maintenance_schedules
type MaintenanceRepository struct{}

// NewMaintenanceRepository creates a new MaintenanceRepository
func NewMaintenanceRepository() *MaintenanceRepository {
	return &MaintenanceRepository{}
}

// ListBlocking returns scheduled or in-progress windows on the court that
// overlap [from, to)
func (r *MaintenanceRepository) ListBlocking(ctx context.Context, q Queryer, resourceID int64, from, to time.Time) ([]models.MaintenanceSchedule, error) {
	query := `
		SELECT id, organization_id, resource_id, start_datetime, end_datetime,
			   status, type, description, created_at
		FROM maintenance_schedules
		WHERE resource_id = $1
		  AND status IN ('scheduled', 'in_progress')
		  AND start_datetime < $3
		  AND end_datetime > $2
		ORDER BY start_datetime`

	var windows []models.MaintenanceSchedule
	if err := sqlx.SelectContext(ctx, q, &windows, query, resourceID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list maintenance schedules: %w", err)
	}
	return windows, nil
}
