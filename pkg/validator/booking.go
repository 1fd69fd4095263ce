package validator

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/courtly/court-booking-backend/internal/models"
)

const (
	// MaxNotesLength caps booking notes, in characters
	MaxNotesLength = 1000

	// MaxParticipants caps the extra players on one booking
	MaxParticipants = 20

	// MaxAdvanceDays is how far ahead a court can be booked
	MaxAdvanceDays = 365
)

// clockRegex accepts HH:MM with an optional :SS
var clockRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

// BookingValidator turns raw booking requests into validated inputs.
// Every failure is reported per field in a *models.ValidationError.
type BookingValidator struct {
	now func() time.Time
}

// NewBookingValidator creates a new booking validator instance
func NewBookingValidator() *BookingValidator {
	return &BookingValidator{now: time.Now}
}

// ValidateCreate validates a booking request for userID
func (v *BookingValidator) ValidateCreate(req *models.CreateBookingRequest, userID int64) (*models.CreateBookingInput, error) {
	verr := &models.ValidationError{}

	if req.ResourceID <= 0 {
		verr.Add("resource_id", "is required")
	}
	date := v.validateDate(verr, req.Date)
	iv := v.validateInterval(verr, req.StartTime, req.EndTime)

	visibility := models.Visibility(strings.ToLower(strings.TrimSpace(req.Visibility)))
	if visibility == "" {
		visibility = models.VisibilityPrivate
	} else if !visibility.IsValid() {
		verr.Add("visibility", "must be public or private")
	}

	var notes *string
	if trimmed := strings.TrimSpace(req.Notes); trimmed != "" {
		if utf8.RuneCountInString(trimmed) > MaxNotesLength {
			verr.Add("notes", "must be at most 1000 characters")
		}
		notes = &trimmed
	}

	if len(req.Participants) > MaxParticipants {
		verr.Add("participants", "too many participants")
	}
	participants := make([]models.BookingParticipant, 0, len(req.Participants))
	for _, p := range req.Participants {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			verr.Add("participants", "every participant needs a name")
			continue
		}
		participants = append(participants, models.BookingParticipant{UserID: p.UserID, Name: name, Email: p.Email})
	}

	if verr.HasErrors() {
		return nil, verr
	}

	return &models.CreateBookingInput{
		UserID:       userID,
		ResourceID:   req.ResourceID,
		Date:         date,
		Interval:     iv,
		Visibility:   visibility,
		Notes:        notes,
		CouponCode:   strings.TrimSpace(req.CouponCode),
		Participants: participants,
	}, nil
}

// ValidateReschedule validates a reschedule request
func (v *BookingValidator) ValidateReschedule(req *models.RescheduleBookingRequest) (time.Time, models.Interval, error) {
	verr := &models.ValidationError{}
	date := v.validateDate(verr, req.Date)
	iv := v.validateInterval(verr, req.StartTime, req.EndTime)
	if verr.HasErrors() {
		return time.Time{}, models.Interval{}, verr
	}
	return date, iv, nil
}

// ValidateSlotQuery validates an availability query. Past dates are allowed
// for reads; duration must be positive when given.
func (v *BookingValidator) ValidateSlotQuery(date string, duration int) (time.Time, error) {
	verr := &models.ValidationError{}
	parsed, err := models.ParseDate(date)
	if err != nil {
		verr.Add("date", "must be a date in YYYY-MM-DD format")
	}
	if duration < 0 || duration > 24*60 {
		verr.Add("duration", "must be between 1 and 1440 minutes")
	}
	if verr.HasErrors() {
		return time.Time{}, verr
	}
	return parsed, nil
}

// ParseInterval parses a start/end pair and requires end after start
func (v *BookingValidator) ParseInterval(start, end string) (models.Interval, error) {
	verr := &models.ValidationError{}
	iv := v.validateInterval(verr, start, end)
	if verr.HasErrors() {
		return models.Interval{}, verr
	}
	return iv, nil
}

func (v *BookingValidator) validateDate(verr *models.ValidationError, raw string) time.Time {
	date, err := models.ParseDate(raw)
	if err != nil {
		verr.Add("date", "must be a date in YYYY-MM-DD format")
		return time.Time{}
	}
	today := models.DateOnly(v.now())
	if date.Before(today) {
		verr.Add("date", "cannot be in the past")
	} else if date.After(today.AddDate(0, 0, MaxAdvanceDays)) {
		verr.Add("date", "is too far in the future")
	}
	return date
}

func (v *BookingValidator) validateInterval(verr *models.ValidationError, start, end string) models.Interval {
	var iv models.Interval
	okStart, okEnd := clockRegex.MatchString(strings.TrimSpace(start)), clockRegex.MatchString(strings.TrimSpace(end))
	if !okStart {
		verr.Add("start_time", "must be in HH:MM format")
	}
	if !okEnd {
		verr.Add("end_time", "must be in HH:MM format")
	}
	if !okStart || !okEnd {
		return iv
	}

	iv.Start, _ = models.ParseClockTime(start)
	iv.End, _ = models.ParseClockTime(end)
	if !iv.Valid() {
		verr.Add("end_time", "must be after start_time")
	}
	return iv
}
