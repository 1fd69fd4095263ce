package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/courtly/court-booking-backend/internal/database"
	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

// RateLimitService throttles failed access code checks so kiosk codes
// cannot be guessed
type RateLimitService struct {
	db     database.Queryer
	config RateLimitConfig
	now    func() time.Time
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(db database.Queryer) *RateLimitService {
	return &RateLimitService{
		db:     db,
		config: DefaultRateLimitConfig(),
		now:    time.Now,
	}
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxIPAttempts           int           // Max failed checks per client IP
	IPWindow                time.Duration // Time window for IP rate limit
	MaxOrganizationAttempts int           // Max failed checks per organization
	OrganizationWindow      time.Duration // Time window for organization rate limit
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxIPAttempts:           10,
		IPWindow:                15 * time.Minute,
		MaxOrganizationAttempts: 50,
		OrganizationWindow:      15 * time.Minute,
	}
}

// CheckAccessCodeRateLimit returns a *models.RateLimitError when the client
// IP or the organization has too many recent failed checks
func (s *RateLimitService) CheckAccessCodeRateLimit(ctx context.Context, tenantID int64, ip string) error {
	if ip != "" {
		count, last, err := s.getAttemptCount(ctx, ip, "ip", s.config.IPWindow)
		if err != nil {
			return fmt.Errorf("failed to check IP rate limit: %w", err)
		}
		if count >= s.config.MaxIPAttempts {
			retryAfter := last.Add(s.config.IPWindow)
			return &models.RateLimitError{
				Message:    fmt.Sprintf("Too many invalid access codes from this device. Please try again after %s", retryAfter.Format("15:04:05")),
				RetryAfter: retryAfter,
				Type:       "ip",
			}
		}
	}

	if tenantID != database.AllTenants {
		count, last, err := s.getAttemptCount(ctx, organizationKey(tenantID), "organization", s.config.OrganizationWindow)
		if err != nil {
			return fmt.Errorf("failed to check organization rate limit: %w", err)
		}
		if count >= s.config.MaxOrganizationAttempts {
			retryAfter := last.Add(s.config.OrganizationWindow)
			return &models.RateLimitError{
				Message:    fmt.Sprintf("Access code checks are temporarily locked for this venue. Please try again after %s", retryAfter.Format("15:04:05")),
				RetryAfter: retryAfter,
				Type:       "organization",
			}
		}
	}

	return nil
}

func (s *RateLimitService) getAttemptCount(ctx context.Context, identifier, identifierType string, window time.Duration) (int, time.Time, error) {
	windowStart := s.now().Add(-window)

	query := `
		SELECT COUNT(*) AS attempts, COALESCE(MAX(created_at), NOW()) AS last_attempt
		FROM access_code_attempts
		WHERE identifier = $1
		  AND identifier_type = $2
		  AND created_at > $3
	`

	var row struct {
		Attempts    int       `db:"attempts"`
		LastAttempt time.Time `db:"last_attempt"`
	}
	err := sqlx.GetContext(ctx, s.db, &row, query, identifier, identifierType, windowStart)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, err
	}

	return row.Attempts, row.LastAttempt, nil
}

// RecordFailedAttempt counts an invalid code against the IP and the
// organization
func (s *RateLimitService) RecordFailedAttempt(ctx context.Context, tenantID int64, ip string) error {
	if ip != "" {
		if err := s.recordAttempt(ctx, ip, "ip"); err != nil {
			return fmt.Errorf("failed to record IP attempt: %w", err)
		}
	}

	if tenantID != database.AllTenants {
		if err := s.recordAttempt(ctx, organizationKey(tenantID), "organization"); err != nil {
			return fmt.Errorf("failed to record organization attempt: %w", err)
		}
	}

	return nil
}

func (s *RateLimitService) recordAttempt(ctx context.Context, identifier, identifierType string) error {
	query := `
		INSERT INTO access_code_attempts (identifier, identifier_type, created_at)
		VALUES ($1, $2, NOW())
	`

	_, err := s.db.ExecContext(ctx, query, identifier, identifierType)
	return err
}

// CleanupExpiredRateLimits removes attempts older than the longest window
func (s *RateLimitService) CleanupExpiredRateLimits(ctx context.Context) (int64, error) {
	maxWindow := s.config.IPWindow
	if s.config.OrganizationWindow > maxWindow {
		maxWindow = s.config.OrganizationWindow
	}

	query := `
		DELETE FROM access_code_attempts
		WHERE created_at < $1
	`

	result, err := s.db.ExecContext(ctx, query, s.now().Add(-maxWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup rate limits: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

func organizationKey(tenantID int64) string {
	return strconv.FormatInt(tenantID, 10)
}
