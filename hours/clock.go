package hours

import "time"

type Timer interface {
	Stop() bool
}

// Clock supplies the current instant and one-shot timers. The scheduler only
// ever reads time through a Clock so tests can drive it by hand.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
