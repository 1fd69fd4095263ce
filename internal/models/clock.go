package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// ClockTime is a time of day stored as minutes since midnight.
// It maps to a Postgres TIME column.
type ClockTime int

// MinutesPerDay is the exclusive upper bound of a ClockTime.
const MinutesPerDay = 24 * 60

// ParseClockTime parses "HH:MM" or "HH:MM:SS" (seconds are dropped)
func ParseClockTime(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

// MustClockTime parses s and panics on error. Intended for constants and tests.
func MustClockTime(s string) ClockTime {
	c, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hour returns the hour component
func (c ClockTime) Hour() int { return int(c) / 60 }

// Minute returns the minute component
func (c ClockTime) Minute() int { return int(c) % 60 }

// Add returns c shifted by d minutes
func (c ClockTime) Add(minutes int) ClockTime { return c + ClockTime(minutes) }

// String formats as HH:MM
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On combines the clock time with a calendar date in the date's location
func (c ClockTime) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, date.Location())
}

// ClockOf extracts the time of day from t
func ClockOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*60 + t.Minute())
}

// MarshalJSON encodes as "HH:MM"
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON accepts "HH:MM" or "HH:MM:SS"
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	parsed, err := ParseClockTime(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Value implements the driver.Valuer interface
func (c ClockTime) Value() (driver.Value, error) {
	return c.String() + ":00", nil
}

// Scan implements the sql.Scanner interface
func (c *ClockTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*c = ClockOf(v)
		return nil
	case []byte:
		parsed, err := ParseClockTime(string(v))
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	case string:
		parsed, err := ParseClockTime(v)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	case nil:
		*c = 0
		return nil
	default:
		return fmt.Errorf("cannot scan %T into ClockTime", src)
	}
}

// Interval is a half-open time-of-day range [Start, End)
type Interval struct {
	Start ClockTime `json:"start_time"`
	End   ClockTime `json:"end_time"`
}

// Valid reports whether Start is strictly before End
func (i Interval) Valid() bool { return i.Start < i.End }

// Minutes returns the interval length
func (i Interval) Minutes() int { return int(i.End - i.Start) }

// Overlaps reports whether the two half-open intervals share any instant
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && i.End > other.Start
}

// DateOnly truncates t to midnight UTC of its calendar date
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateLayout is the wire format of calendar dates
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// ISOWeekday returns 1 for Monday through 7 for Sunday
func ISOWeekday(date time.Time) int {
	wd := int(date.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
