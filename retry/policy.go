package retry

import (
	"net/http"
	"time"

	"github.com/icodeforyou/energiprice-go/hours"
)

const (
	DefaultMinFutureHours     = 13
	DefaultTransientMin       = time.Minute
	DefaultTooManyRequestsMin = 30 * time.Minute
	DefaultDataIncompleteMin  = 10 * time.Minute
	DefaultMax                = time.Hour
)

// Outcome is what a finished refresh cycle reports to the policy.
type Outcome struct {
	Err             error
	SpotLinked      bool
	FutureSpotHours int
}

type Policy struct {
	Publication        hours.DailyTime // when tomorrow's spot prices are expected, 13:00 CET
	Local              *time.Location  // zone of the safety retries at midnight
	MinFutureHours     int
	TransientMin       time.Duration
	TooManyRequestsMin time.Duration
	DataIncompleteMin  time.Duration
	Max                time.Duration
}

func NewPolicy(publication hours.DailyTime, local *time.Location) Policy {
	return Policy{
		Publication:        publication,
		Local:              local,
		MinFutureHours:     DefaultMinFutureHours,
		TransientMin:       DefaultTransientMin,
		TooManyRequestsMin: DefaultTooManyRequestsMin,
		DataIncompleteMin:  DefaultDataIncompleteMin,
		Max:                DefaultMax,
	}
}

// State is replaced as a whole after every attempt.
type State struct {
	Next       NextAttempt
	Due        time.Time
	Cause      Cause
	StatusCode int
	Attempt    int // consecutive attempts ending with the same cause
}

func Initial(now time.Time) State {
	return State{Next: After(0), Due: now}
}

// Decide computes the state following an outcome. Interrupted cycles get no
// decision, the previous state is returned with ok set to false.
func (p Policy) Decide(o Outcome, prev State, now time.Time) (State, bool) {
	cause := Classify(o.Err)
	if cause == Interrupted {
		return prev, false
	}
	status := StatusCode(o.Err)

	if cause == None && o.SpotLinked && o.FutureSpotHours < p.MinFutureHours {
		cause = DataIncomplete
	}

	attempt := 1
	if prev.Cause == cause && prev.StatusCode == status && cause != None {
		attempt = prev.Attempt + 1
	}
	// Polling after the publication time starts a fresh backoff.
	if cause == DataIncomplete && prev.Next.IsFixedTime() {
		attempt = 1
	}

	var next NextAttempt
	switch cause {
	case Transient:
		floor := p.TransientMin
		if status == http.StatusTooManyRequests {
			floor = p.TooManyRequestsMin
		}
		next = After(p.backoff(floor, attempt))
	case Permanent, Unclassified:
		next = At(hours.Midnight(p.Local))
	case DataIncomplete:
		if p.Publication.HasPassed(now) {
			next = After(p.backoff(p.DataIncompleteMin, attempt))
		} else {
			next = At(p.Publication)
		}
	default:
		if o.SpotLinked {
			next = At(p.Publication)
		} else {
			next = At(hours.Midnight(p.Local))
		}
	}

	return State{
		Next:       next,
		Due:        next.Next(now),
		Cause:      cause,
		StatusCode: status,
		Attempt:    attempt,
	}, true
}

// backoff doubles floor for every consecutive attempt, capped at Max or at
// floor when floor alone exceeds the cap.
func (p Policy) backoff(floor time.Duration, attempt int) time.Duration {
	limit := max(p.Max, floor)
	d := floor
	for i := 1; i < attempt && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}
