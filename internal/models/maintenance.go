package models

import "time"

// MaintenanceStatus represents the state of a maintenance window
type MaintenanceStatus string

const (
	MaintenanceScheduled  MaintenanceStatus = "scheduled"
	MaintenanceInProgress MaintenanceStatus = "in_progress"
	MaintenanceCompleted  MaintenanceStatus = "completed"
	MaintenanceCancelled  MaintenanceStatus = "cancelled"
)

// IsBlocking reports whether the window removes the court from availability
func (s MaintenanceStatus) IsBlocking() bool {
	return s == MaintenanceScheduled || s == MaintenanceInProgress
}

// MaintenanceSchedule blocks a resource between two instants
type MaintenanceSchedule struct {
	ID             int64             `json:"id" db:"id"`
	OrganizationID int64             `json:"organization_id" db:"organization_id"`
	ResourceID     int64             `json:"resource_id" db:"resource_id"`
	StartDatetime  time.Time         `json:"start_datetime" db:"start_datetime"`
	EndDatetime    time.Time         `json:"end_datetime" db:"end_datetime"`
	Status         MaintenanceStatus `json:"status" db:"status"`
	Type           *string           `json:"type,omitempty" db:"type"`
	Description    *string           `json:"description,omitempty" db:"description"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
}

// ClipToDay returns the part of the window that falls on date as a
// time-of-day interval. ok is false when the window does not touch the day.
func (m MaintenanceSchedule) ClipToDay(date time.Time) (Interval, bool) {
	dayStart := DateOnly(date)
	dayEnd := dayStart.Add(24 * time.Hour)

	start := m.StartDatetime.UTC()
	end := m.EndDatetime.UTC()
	if !start.Before(dayEnd) || !end.After(dayStart) {
		return Interval{}, false
	}
	if start.Before(dayStart) {
		start = dayStart
	}

	iv := Interval{Start: ClockOf(start)}
	if !end.Before(dayEnd) {
		iv.End = MinutesPerDay
	} else {
		iv.End = ClockOf(end)
	}
	return iv, iv.Start < iv.End
}
