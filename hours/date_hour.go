package hours

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	dateLayout = "2006-01-02"
	hourLayout = "2006-01-02 15"
)

// DateHour is a UTC hour bucket, the key of every cached price.
type DateHour struct {
	Date string
	Hour uint8
}

func (dh DateHour) String() string {
	return fmt.Sprintf("%s %02d", dh.Date, dh.Hour)
}

func (dh DateHour) IsoString() string {
	return fmt.Sprintf("%sT%02d:00:00Z", dh.Date, dh.Hour)
}

// Time returns the start of the bucket as a UTC instant, zero if the bucket is malformed.
func (dh DateHour) Time() time.Time {
	t, err := time.ParseInLocation(hourLayout, dh.String(), time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// LocalizedString formats the bucket start in the given location.
func (dh DateHour) LocalizedString(loc *time.Location) string {
	t := dh.Time()
	if t.IsZero() {
		return dh.String()
	}
	localTime := t.In(loc)
	return fmt.Sprintf("%s %02d", localTime.Format(dateLayout), localTime.Hour())
}

func (dh DateHour) Add(hours int) DateHour {
	t := dh.Time()
	if t.IsZero() {
		return dh
	}
	return FromTime(t.Add(time.Duration(hours) * time.Hour))
}

func (dh DateHour) Sub(hours int) DateHour {
	return dh.Add(-hours)
}

func (dh DateHour) Compare(other DateHour) int {
	if dh == other {
		return 0
	}
	if dh.Date < other.Date {
		return -1
	}
	if dh.Date > other.Date {
		return 1
	}
	if dh.Hour < other.Hour {
		return -1
	}
	return 1
}

func (dh DateHour) Before(other DateHour) bool {
	return dh.Compare(other) < 0
}

func (dh DateHour) After(other DateHour) bool {
	return dh.Compare(other) > 0
}

func (dh DateHour) IsZero() bool {
	return dh.Date == "" && dh.Hour == 0
}

func FromTime(t time.Time) DateHour {
	if t.IsZero() {
		return DateHour{}
	}
	t = t.UTC()
	return DateHour{
		Date: t.Format(dateLayout),
		Hour: uint8(t.Hour()),
	}
}

// Range returns every bucket from `from` through `to`, both inclusive.
func Range(from, to DateHour) []DateHour {
	if from.IsZero() || to.IsZero() || from.After(to) {
		return nil
	}
	var r []DateHour
	for dh := from; !dh.After(to); dh = dh.Add(1) {
		r = append(r, dh)
	}
	return r
}

// StartOfDay is local midnight of the day t falls on in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// LastHourOfDay is the bucket holding the final hour of the local day that is
// `days` days after the day t falls on. DST days have 23 or 25 hours, so this
// is derived from the following midnight rather than from 23:00.
func LastHourOfDay(t time.Time, loc *time.Location, days int) DateHour {
	midnight := StartOfDay(t, loc).AddDate(0, 0, days+1)
	return FromTime(midnight.Add(-time.Hour))
}

var hourly, _ = cron.ParseStandard("@hourly")

// UntilNextHour is the delay until one millisecond past the next UTC clock hour.
func UntilNextHour(now time.Time) time.Duration {
	return hourly.Next(now.UTC()).Sub(now) + time.Millisecond
}

func (dh DateHour) MarshalText() ([]byte, error) {
	return []byte(dh.IsoString()), nil
}
