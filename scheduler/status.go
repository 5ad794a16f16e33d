package scheduler

import (
	"time"

	"github.com/icodeforyou/energiprice-go/retry"
	"github.com/icodeforyou/energiprice-go/types"
)

type Status struct {
	Started     bool                 `json:"started"`
	Refreshing  bool                 `json:"refreshing"`
	NextRefresh time.Time            `json:"nextRefresh"`
	Schedule    string               `json:"schedule"`
	Cause       retry.Cause          `json:"cause"`
	StatusCode  int                  `json:"statusCode,omitempty"`
	Attempt     int                  `json:"attempt"`
	LastRefresh time.Time            `json:"lastRefresh"`
	Buckets     map[types.Series]int `json:"buckets"`
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	st := Status{
		Started:     s.cancel != nil,
		Refreshing:  s.refreshing.Load(),
		NextRefresh: s.state.Due,
		Schedule:    s.state.Next.String(),
		Cause:       s.state.Cause,
		StatusCode:  s.state.StatusCode,
		Attempt:     s.state.Attempt,
		LastRefresh: s.lastRefresh,
	}
	s.mu.Unlock()

	st.Buckets = make(map[types.Series]int, len(types.AllSeries))
	for _, series := range types.AllSeries {
		st.Buckets[series] = s.cache.Len(series)
	}
	return st
}
