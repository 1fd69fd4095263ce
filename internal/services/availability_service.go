package services

import (
	"context"
	"fmt"
	"time"

	"github.com/courtly/court-booking-backend/internal/database"
	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// AvailabilityService enumerates and checks free court time
type AvailabilityService struct {
	tx          Transactor
	resources   ResourceStore
	bookings    BookingStore
	maintenance MaintenanceStore
	conflicts   *ConflictChecker
	cache       SlotCache
	logger      *logrus.Logger
}

// NewAvailabilityService creates a new AvailabilityService. cache may be nil.
func NewAvailabilityService(
	tx Transactor,
	resources ResourceStore,
	bookings BookingStore,
	maintenance MaintenanceStore,
	cache SlotCache,
	logger *logrus.Logger,
) *AvailabilityService {
	if cache == nil {
		cache = noopSlotCache{}
	}
	return &AvailabilityService{
		tx:          tx,
		resources:   resources,
		bookings:    bookings,
		maintenance: maintenance,
		conflicts:   NewConflictChecker(bookings, maintenance),
		cache:       cache,
		logger:      logger,
	}
}

// GenerateSlots walks the court's operating hours in block steps and keeps
// every slot of the given duration that ends by closing time. A
// non-positive duration uses the court's block length.
func (s *AvailabilityService) GenerateSlots(resource *models.Resource, date time.Time, duration int) []models.Slot {
	step := resource.TimeBlockMinutes
	if step <= 0 {
		return nil
	}
	if duration <= 0 {
		duration = step
	}

	day := date.Format(models.DateLayout)
	var slots []models.Slot
	for start := resource.DailyStartTime; start.Add(duration) <= resource.DailyEndTime; start = start.Add(step) {
		slots = append(slots, models.Slot{Date: day, Start: start, End: start.Add(duration)})
	}
	return slots
}

// GetAvailableSlots returns the generated slots on date that overlap neither a
// live reservation nor a blocking maintenance window
func (s *AvailabilityService) GetAvailableSlots(ctx context.Context, tenantID, resourceID int64, date time.Time, duration int) ([]models.Slot, error) {
	q := s.tx.Queryer()
	day := models.DateOnly(date)

	resource, err := s.resources.GetByID(ctx, q, tenantID, resourceID)
	if err != nil {
		return nil, err
	}
	if duration <= 0 {
		duration = resource.TimeBlockMinutes
	}
	if !resource.IsBookable() {
		return []models.Slot{}, nil
	}

	key := SlotCacheKey(resource.OrganizationID, resource.ID, day, duration)
	if cached, ok := s.cache.Get(ctx, key); ok {
		return cached, nil
	}
	genKey := slotGenerationKey(resource.OrganizationID, resource.ID, day)
	generation := s.cache.Generation(ctx, genKey)

	blocked, err := s.blockedIntervals(ctx, q, resource.ID, day)
	if err != nil {
		return nil, err
	}

	available := make([]models.Slot, 0)
	for _, slot := range s.GenerateSlots(resource, day, duration) {
		if !overlapsAny(slot.Interval(), blocked) {
			available = append(available, slot)
		}
	}

	s.cache.SetIfCurrent(ctx, key, genKey, generation, available)
	return available, nil
}

// blockedIntervals collects live reservations and maintenance windows clipped to the day
func (s *AvailabilityService) blockedIntervals(ctx context.Context, q database.Queryer, resourceID int64, day time.Time) ([]models.Interval, error) {
	reservations, err := s.bookings.ListActiveReservations(ctx, q, resourceID, day)
	if err != nil {
		return nil, err
	}
	windows, err := s.maintenance.ListBlocking(ctx, q, resourceID, day, day.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to load maintenance windows: %w", err)
	}

	blocked := make([]models.Interval, 0, len(reservations)+len(windows))
	for _, r := range reservations {
		blocked = append(blocked, r.Interval())
	}
	for _, w := range windows {
		if !w.Status.IsBlocking() {
			continue
		}
		if iv, ok := w.ClipToDay(day); ok {
			blocked = append(blocked, iv)
		}
	}
	return blocked, nil
}

func overlapsAny(iv models.Interval, blocked []models.Interval) bool {
	for _, b := range blocked {
		if Overlaps(iv.Start, iv.End, b.Start, b.End) {
			return true
		}
	}
	return false
}

// IsAvailable answers whether the court can take the interval on date. The
// checks short-circuit in order: court enabled, inside operating hours, no
// live reservation overlap, no maintenance overlap.
func (s *AvailabilityService) IsAvailable(ctx context.Context, q database.Queryer, tenantID int64, resource *models.Resource, date time.Time, iv models.Interval, excludeBookingID int64) (bool, error) {
	if tenantID != database.AllTenants && resource.OrganizationID != tenantID {
		return false, models.NotFoundf("resource", resource.ID)
	}
	if !resource.IsBookable() {
		return false, nil
	}
	if !iv.Valid() || iv.Start < resource.DailyStartTime || iv.End > resource.DailyEndTime {
		return false, nil
	}

	conflict, err := s.conflicts.HasReservationConflict(ctx, q, resource.ID, date, iv, excludeBookingID)
	if err != nil {
		return false, err
	}
	if conflict {
		return false, nil
	}

	conflict, err = s.conflicts.HasMaintenanceConflict(ctx, q, resource.ID, date, iv)
	if err != nil {
		return false, err
	}
	return !conflict, nil
}

// CheckAvailability is the read-only point query used outside a booking transaction
func (s *AvailabilityService) CheckAvailability(ctx context.Context, tenantID, resourceID int64, date time.Time, iv models.Interval) (bool, error) {
	q := s.tx.Queryer()
	resource, err := s.resources.GetByID(ctx, q, tenantID, resourceID)
	if err != nil {
		return false, err
	}
	return s.IsAvailable(ctx, q, tenantID, resource, date, iv, 0)
}

// Invalidate drops cached slot lists after a booking write
func (s *AvailabilityService) Invalidate(ctx context.Context, resource *models.Resource, date time.Time) {
	s.cache.Invalidate(ctx, resource.OrganizationID, resource.ID, models.DateOnly(date))
}
