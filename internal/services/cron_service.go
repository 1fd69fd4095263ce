package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Cron schedules (second minute hour day month weekday)
const (
	ExpirePendingSchedule = "0 * * * * *"   // every minute
	SettleRefundsSchedule = "0 */5 * * * *" // every five minutes
	RateLimitSchedule     = "0 30 * * * *"  // hourly
)

// RateLimitCleaner prunes expired access code attempts
type RateLimitCleaner interface {
	CleanupExpiredRateLimits(ctx context.Context) (int64, error)
}

// CronService manages scheduled background jobs
type CronService struct {
	cron       *cron.Cron
	bookings   *BookingService
	payments   *PaymentService
	limits     RateLimitCleaner
	pendingTTL time.Duration
	logger     *logrus.Logger
}

// NewCronService creates a new CronService
func NewCronService(bookings *BookingService, payments *PaymentService, pendingTTL time.Duration, logger *logrus.Logger) *CronService {
	if pendingTTL <= 0 {
		pendingTTL = 30 * time.Minute
	}
	return &CronService{
		cron:       cron.New(cron.WithSeconds()),
		bookings:   bookings,
		payments:   payments,
		pendingTTL: pendingTTL,
		logger:     logger,
	}
}

// SetRateLimitCleanup schedules pruning of expired rate limit records
func (s *CronService) SetRateLimitCleanup(limits RateLimitCleaner) {
	s.limits = limits
}

// Start registers and starts all cron jobs
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service")

	if _, err := s.cron.AddFunc(ExpirePendingSchedule, s.expirePendingJob); err != nil {
		return fmt.Errorf("failed to schedule pending expiry job: %w", err)
	}
	if _, err := s.cron.AddFunc(SettleRefundsSchedule, s.settleRefundsJob); err != nil {
		return fmt.Errorf("failed to schedule refund settlement job: %w", err)
	}
	if s.limits != nil {
		if _, err := s.cron.AddFunc(RateLimitSchedule, s.cleanupRateLimitsJob); err != nil {
			return fmt.Errorf("failed to schedule rate limit cleanup job: %w", err)
		}
	}

	s.cron.Start()
	s.logger.WithField("jobs", len(s.cron.Entries())).Info("Cron service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// expirePendingJob releases slots held by unpaid bookings past the TTL
func (s *CronService) expirePendingJob() {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
	defer cancel()

	expired, err := s.bookings.ExpirePendingBookings(ctx, start.Add(-s.pendingTTL))
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Pending booking expiry failed")
		return
	}
	if expired > 0 {
		s.logger.WithFields(logrus.Fields{
			"expired":  expired,
			"duration": time.Since(start).String(),
		}).Info("[CRON] Expired pending bookings")
	}
}

// settleRefundsJob pushes refund_pending card bookings through the gateway
func (s *CronService) settleRefundsJob() {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	settled, err := s.payments.SettleCardRefunds(ctx)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Refund settlement failed")
		return
	}
	if settled > 0 {
		s.logger.WithFields(logrus.Fields{
			"settled":  settled,
			"duration": time.Since(start).String(),
		}).Info("[CRON] Settled card refunds")
	}
}

// cleanupRateLimitsJob deletes access code attempts outside every window
func (s *CronService) cleanupRateLimitsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := s.limits.CleanupExpiredRateLimits(ctx)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Rate limit cleanup failed")
		return
	}
	s.logger.WithField("deleted", deleted).Debug("[CRON] Cleaned up rate limit records")
}

// RunOnce runs every job immediately, for the maintenance command
func (s *CronService) RunOnce() {
	s.logger.Info("[MANUAL] Running maintenance jobs")
	s.expirePendingJob()
	s.settleRefundsJob()
	if s.limits != nil {
		s.cleanupRateLimitsJob()
	}
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
