package cache

import (
	"slices"
	"sync"
	"time"

	"github.com/icodeforyou/energiprice-go/hours"
	"github.com/icodeforyou/energiprice-go/types"
	"github.com/icodeforyou/energiprice-go/types/maybe"
)

const DefaultHistoricHours = 24

type prices struct {
	mu     sync.RWMutex
	values map[hours.DateHour]float64
}

/** Hourly prices per series, refreshed from the provider and never persisted */
type Cache struct {
	clock         hours.Clock
	historicHours int
	series        map[types.Series]*prices
}

func New(clock hours.Clock, historicHours int) *Cache {
	if historicHours <= 0 {
		historicHours = DefaultHistoricHours
	}
	c := &Cache{
		clock:         clock,
		historicHours: historicHours,
		series:        make(map[types.Series]*prices, len(types.AllSeries)),
	}
	// The series set is closed, so the outer map is never written after this point
	// and each series only needs its own lock.
	for _, s := range types.AllSeries {
		c.series[s] = &prices{values: make(map[hours.DateHour]float64)}
	}
	return c
}

func (c *Cache) HistoricHours() int {
	return c.historicHours
}

// Put merges records into the series, a later value for the same hour wins.
func (c *Cache) Put(s types.Series, records []types.Record) {
	p, ok := c.series[s]
	if !ok || len(records) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range records {
		if r.Hour.IsZero() {
			continue
		}
		p.values[r.Hour] = r.Value
	}
}

func (c *Cache) IsFullyCovered(s types.Series, w Window) bool {
	p, ok := c.series[s]
	if !ok {
		return false
	}
	buckets := w.Buckets()
	if len(buckets) == 0 {
		return true
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, b := range buckets {
		if _, ok := p.values[b]; !ok {
			return false
		}
	}
	return true
}

// HasHistoricCoverage reports whether the earliest hour of the historic window is cached.
func (c *Cache) HasHistoricCoverage(s types.Series) bool {
	return c.ValueAt(s, c.FirstHistoricHour()).IsValid()
}

func (c *Cache) CountFutureBuckets(s types.Series, from time.Time) int {
	p, ok := c.series[s]
	if !ok {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	count := 0
	for dh := range p.values {
		if !dh.Time().Before(from) {
			count++
		}
	}
	return count
}

func (c *Cache) ValueAt(s types.Series, dh hours.DateHour) maybe.Maybe[float64] {
	p, ok := c.series[s]
	if !ok {
		return maybe.None[float64]()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.values[dh]; ok {
		return maybe.Some(v)
	}
	return maybe.None[float64]()
}

// ValuesFrom returns a copy of every cached hour at or after from, oldest first.
func (c *Cache) ValuesFrom(s types.Series, from time.Time) []types.Record {
	p, ok := c.series[s]
	if !ok {
		return nil
	}
	p.mu.RLock()
	records := make([]types.Record, 0, len(p.values))
	for dh, v := range p.values {
		if !dh.Time().Before(from) {
			records = append(records, types.Record{Hour: dh, Value: v})
		}
	}
	p.mu.RUnlock()

	slices.SortFunc(records, func(a, b types.Record) int {
		return a.Hour.Compare(b.Hour)
	})
	return records
}

// Cleanup drops every hour strictly older than horizon.
func (c *Cache) Cleanup(horizon time.Time) int {
	removed := 0
	for _, p := range c.series {
		p.mu.Lock()
		for dh := range p.values {
			if dh.Time().Before(horizon) {
				delete(p.values, dh)
				removed++
			}
		}
		p.mu.Unlock()
	}
	return removed
}

func (c *Cache) Clear() {
	for _, p := range c.series {
		p.mu.Lock()
		p.values = make(map[hours.DateHour]float64)
		p.mu.Unlock()
	}
}

func (c *Cache) Len(s types.Series) int {
	p, ok := c.series[s]
	if !ok {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.values)
}

func (c *Cache) CurrentHour() hours.DateHour {
	return hours.FromTime(c.clock.Now())
}

func (c *Cache) FirstHistoricHour() hours.DateHour {
	return c.CurrentHour().Sub(c.historicHours)
}

// Horizon is the retention boundary used by the hourly cleanup.
func (c *Cache) Horizon() time.Time {
	return c.FirstHistoricHour().Time()
}
