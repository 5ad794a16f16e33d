package hours

import (
	"fmt"
	"time"
)

// DailyTime is a wall clock time of day in a specific location, e.g. 13:00 CET.
type DailyTime struct {
	Hour     int
	Minute   int
	Location *time.Location
}

func Midnight(loc *time.Location) DailyTime {
	return DailyTime{Location: loc}
}

// ParseDailyTime parses "15:04" in the given location.
func ParseDailyTime(value string, loc *time.Location) (DailyTime, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return DailyTime{}, fmt.Errorf("invalid time of day %q: %w", value, err)
	}
	return DailyTime{Hour: t.Hour(), Minute: t.Minute(), Location: loc}, nil
}

func (d DailyTime) location() *time.Location {
	if d.Location == nil {
		return time.UTC
	}
	return d.Location
}

// On returns the instant of this time of day on the local date of t.
func (d DailyTime) On(t time.Time) time.Time {
	loc := d.location()
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), d.Hour, d.Minute, 0, 0, loc)
}

// HasPassed is true when now is strictly after today's occurrence.
func (d DailyTime) HasPassed(now time.Time) bool {
	return now.After(d.On(now))
}

// Next returns the first occurrence strictly after now.
func (d DailyTime) Next(now time.Time) time.Time {
	next := d.On(now)
	if !next.After(now) {
		loc := d.location()
		l := now.In(loc)
		next = time.Date(l.Year(), l.Month(), l.Day()+1, d.Hour, d.Minute, 0, 0, loc)
	}
	return next
}

func (d DailyTime) String() string {
	return fmt.Sprintf("%02d:%02d %s", d.Hour, d.Minute, d.location())
}
