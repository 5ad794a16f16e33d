package cache

import (
	"time"

	"github.com/icodeforyou/energiprice-go/hours"
)

// Window is an inclusive range of hour buckets.
type Window struct {
	From hours.DateHour
	To   hours.DateHour
}

func (w Window) Buckets() []hours.DateHour {
	return hours.Range(w.From, w.To)
}

// SpotPriceWindow spans history through the end of today, or through the end of
// tomorrow once the daily publication time has passed in the provider zone.
func (c *Cache) SpotPriceWindow(publication hours.DailyTime) Window {
	now := c.clock.Now()
	days := 0
	if publication.HasPassed(now) {
		days = 1
	}
	return Window{From: c.FirstHistoricHour(), To: hours.LastHourOfDay(now, publication.Location, days)}
}

// ThroughEndOfTomorrow spans history through the last hour of tomorrow in loc.
func (c *Cache) ThroughEndOfTomorrow(loc *time.Location) Window {
	return Window{From: c.FirstHistoricHour(), To: hours.LastHourOfDay(c.clock.Now(), loc, 1)}
}
