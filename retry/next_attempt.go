package retry

import (
	"fmt"
	"time"

	"github.com/icodeforyou/energiprice-go/hours"
	"github.com/robfig/cron/v3"
)

// NextAttempt is either a relative delay or a fixed time of day.
type NextAttempt struct {
	delay time.Duration
	at    hours.DailyTime
	fixed bool
}

var _ cron.Schedule = NextAttempt{}

func After(d time.Duration) NextAttempt {
	if d < 0 {
		d = 0
	}
	return NextAttempt{delay: d}
}

func At(t hours.DailyTime) NextAttempt {
	return NextAttempt{at: t, fixed: true}
}

func (n NextAttempt) IsFixedTime() bool {
	return n.fixed
}

// Next returns the activation time relative to now.
func (n NextAttempt) Next(now time.Time) time.Time {
	if n.fixed {
		return n.at.Next(now)
	}
	return now.Add(n.delay)
}

func (n NextAttempt) Delay(now time.Time) time.Duration {
	return n.Next(now).Sub(now)
}

func (n NextAttempt) String() string {
	if n.fixed {
		return fmt.Sprintf("at %s", n.at)
	}
	return fmt.Sprintf("after %s", n.delay)
}
