package scheduler

import (
	"log/slog"
	"sync"

	"github.com/icodeforyou/energiprice-go/hours"
	"github.com/icodeforyou/energiprice-go/types"
	"github.com/icodeforyou/energiprice-go/types/maybe"
)

// Sink receives published prices. Calls are fire-and-forget and must not block.
type Sink interface {
	PublishValue(s types.Series, hour hours.DateHour, value maybe.Maybe[float64])
	PublishTimeSeries(s types.Series, records []types.Record)
	PublishHourlyPrices(prices []types.HourlyPrice)
}

type MultiSink []Sink

func (m MultiSink) PublishValue(s types.Series, hour hours.DateHour, value maybe.Maybe[float64]) {
	for _, sink := range m {
		sink.PublishValue(s, hour, value)
	}
}

func (m MultiSink) PublishTimeSeries(s types.Series, records []types.Record) {
	for _, sink := range m {
		sink.PublishTimeSeries(s, records)
	}
}

func (m MultiSink) PublishHourlyPrices(prices []types.HourlyPrice) {
	for _, sink := range m {
		sink.PublishHourlyPrices(prices)
	}
}

// AsyncSink hands publications to a slower sink on its own goroutine.
// Publications are dropped when the queue is full.
type AsyncSink struct {
	logger *slog.Logger
	next   Sink
	mu     sync.Mutex
	closed bool
	queue  chan func()
	done   chan struct{}
}

func NewAsyncSink(name string, next Sink, size int) *AsyncSink {
	if size <= 0 {
		size = 64
	}
	a := &AsyncSink{
		logger: slog.Default().With("module", "async_sink", slog.String("sink", name)),
		next:   next,
		queue:  make(chan func(), size),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncSink) run() {
	defer close(a.done)
	for f := range a.queue {
		f()
	}
}

func (a *AsyncSink) enqueue(what string, f func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- f:
	default:
		a.logger.Warn("sink queue full, dropping publication", slog.String("what", what))
	}
}

func (a *AsyncSink) PublishValue(s types.Series, hour hours.DateHour, value maybe.Maybe[float64]) {
	a.enqueue("value", func() { a.next.PublishValue(s, hour, value) })
}

func (a *AsyncSink) PublishTimeSeries(s types.Series, records []types.Record) {
	a.enqueue("time_series", func() { a.next.PublishTimeSeries(s, records) })
}

func (a *AsyncSink) PublishHourlyPrices(prices []types.HourlyPrice) {
	a.enqueue("hourly_prices", func() { a.next.PublishHourlyPrices(prices) })
}

// Close drains the queue and waits for the worker to finish.
func (a *AsyncSink) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	<-a.done
}
