package services

import (
	"context"
	"fmt"
	"time"

	"github.com/courtly/court-booking-backend/internal/database"
	"github.com/courtly/court-booking-backend/internal/models"
)

// Overlaps reports whether the half-open ranges [s1, e1) and [s2, e2) intersect.
// Starting inside, ending inside and containing the other range are all covered.
func Overlaps(s1, e1, s2, e2 models.ClockTime) bool {
	return s1 < e2 && e1 > s2
}

// OverlapsAt is Overlaps for absolute instants
func OverlapsAt(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && e1.After(s2)
}

// ConflictChecker detects overlaps with live reservations and blocking maintenance
type ConflictChecker struct {
	bookings    BookingStore
	maintenance MaintenanceStore
}

// NewConflictChecker creates a new ConflictChecker
func NewConflictChecker(bookings BookingStore, maintenance MaintenanceStore) *ConflictChecker {
	return &ConflictChecker{bookings: bookings, maintenance: maintenance}
}

// HasReservationConflict reports whether a pending or confirmed booking already
// holds part of the interval. excludeBookingID (0 = none) lets an edit ignore its own reservation.
func (c *ConflictChecker) HasReservationConflict(ctx context.Context, q database.Queryer, resourceID int64, date time.Time, iv models.Interval, excludeBookingID int64) (bool, error) {
	conflicts, err := c.bookings.FindConflicts(ctx, q, resourceID, date, iv, excludeBookingID)
	if err != nil {
		return false, err
	}
	for _, r := range conflicts {
		if r.BookingID == excludeBookingID && excludeBookingID != 0 {
			continue
		}
		if Overlaps(iv.Start, iv.End, r.StartTime, r.EndTime) {
			return true, nil
		}
	}
	return false, nil
}

// HasMaintenanceConflict reports whether a blocking maintenance window
// overlaps the interval on date
func (c *ConflictChecker) HasMaintenanceConflict(ctx context.Context, q database.Queryer, resourceID int64, date time.Time, iv models.Interval) (bool, error) {
	day := models.DateOnly(date)
	start, end := iv.Start.On(day), iv.End.On(day)

	windows, err := c.maintenance.ListBlocking(ctx, q, resourceID, start, end)
	if err != nil {
		return false, fmt.Errorf("failed to load maintenance windows: %w", err)
	}
	for _, w := range windows {
		if w.Status.IsBlocking() && OverlapsAt(start, end, w.StartDatetime.UTC(), w.EndDatetime.UTC()) {
			return true, nil
		}
	}
	return false, nil
}
