package models

import (
	"errors"
	"time"
)

// ResourceStatus represents whether a court can be booked
type ResourceStatus string

const (
	ResourceStatusEnabled     ResourceStatus = "enabled"
	ResourceStatusDisabled    ResourceStatus = "disabled"
	ResourceStatusMaintenance ResourceStatus = "maintenance"
)

// Resource is a bookable court
type Resource struct {
	ID               int64          `json:"id" db:"id"`
	OrganizationID   int64          `json:"organization_id" db:"organization_id"`
	Name             string         `json:"name" db:"name"`
	SurfaceType      *string        `json:"surface_type,omitempty" db:"surface_type"`
	IsIndoor         bool           `json:"is_indoor" db:"is_indoor"`
	HasLighting      bool           `json:"has_lighting" db:"has_lighting"`
	Status           ResourceStatus `json:"status" db:"status"`
	Priority         int            `json:"priority" db:"priority"`
	DailyStartTime   ClockTime      `json:"daily_start_time" db:"daily_start_time"`
	DailyEndTime     ClockTime      `json:"daily_end_time" db:"daily_end_time"`
	TimeBlockMinutes int            `json:"time_block_minutes" db:"time_block_minutes"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// Validate checks the operating-hours invariants
func (r *Resource) Validate() error {
	if r.DailyStartTime >= r.DailyEndTime {
		return errors.New("daily_start_time must be before daily_end_time")
	}
	if r.TimeBlockMinutes <= 0 {
		return errors.New("time_block_minutes must be greater than zero")
	}
	return nil
}

// IsBookable reports whether the court accepts new bookings
func (r *Resource) IsBookable() bool {
	return r.Status == ResourceStatusEnabled
}

// OperatingHours returns the daily open interval
func (r *Resource) OperatingHours() Interval {
	return Interval{Start: r.DailyStartTime, End: r.DailyEndTime}
}

// Organization is a tenant
type Organization struct {
	ID        int64     `json:"id" db:"id"`
	Slug      string    `json:"slug" db:"slug"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AccessCodePrefix returns the first three letters of the slug, upper-cased
func (o *Organization) AccessCodePrefix() string {
	slug := o.Slug
	if slug == "" {
		slug = "ORG"
	}
	if len(slug) > 3 {
		slug = slug[:3]
	}
	return upperASCII(slug)
}

func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// User is a customer or staff member
type User struct {
	ID             int64     `json:"id" db:"id"`
	OrganizationID *int64    `json:"organization_id,omitempty" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Email          string    `json:"email" db:"email"`
	Phone          *string   `json:"phone,omitempty" db:"phone"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
