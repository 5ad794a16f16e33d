package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/icodeforyou/energiprice-go/cache"
	"github.com/icodeforyou/energiprice-go/hours"
	"github.com/icodeforyou/energiprice-go/metrics"
	"github.com/icodeforyou/energiprice-go/query"
	"github.com/icodeforyou/energiprice-go/retry"
	"github.com/icodeforyou/energiprice-go/types"
)

var ErrAlreadyStarted = errors.New("scheduler already started")

type Options struct {
	Linked       types.SeriesSet // series with at least one consumer
	HourlyPrices bool            // combined hourly prices have a consumer, implies every series
	Currency     string
	TariffZone   *time.Location // zone of the Datahub price lists, Europe/Copenhagen
	Policy       retry.Policy
	Builder      query.Builder
}

// Scheduler drives downloads into the cache with a refresh timer and emits
// the current values on every clock hour with a publish timer.
type Scheduler struct {
	logger    *slog.Logger
	opts      Options
	cache     *cache.Cache
	transport Transport
	sink      Sink
	clock     hours.Clock
	metrics   *metrics.Metrics

	downloadMu sync.Mutex
	refreshing atomic.Bool

	mu           sync.Mutex
	ctx          context.Context
	cancel       context.CancelFunc
	refreshTimer hours.Timer
	publishTimer hours.Timer
	state        retry.State
	lastRefresh  time.Time
	wg           sync.WaitGroup
}

func New(
	opts Options,
	c *cache.Cache,
	transport Transport,
	sink Sink,
	clock hours.Clock,
	m *metrics.Metrics,
) *Scheduler {
	if opts.TariffZone == nil {
		opts.TariffZone = time.UTC
	}
	if opts.Linked == nil {
		opts.Linked = types.NewSeriesSet()
	}
	return &Scheduler{
		logger:    slog.Default().With("module", "scheduler"),
		opts:      opts,
		cache:     c,
		transport: transport,
		sink:      sink,
		clock:     clock,
		metrics:   m,
	}
}

func (s *Scheduler) interested(series types.Series) bool {
	return s.opts.HourlyPrices || s.opts.Linked.IsLinked(series)
}

// Start refreshes immediately and publishes on the next clock hour.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	now := s.clock.Now()
	s.state = retry.Initial(now)
	s.refreshTimer = s.clock.AfterFunc(0, s.onRefreshTimer)
	s.publishTimer = s.clock.AfterFunc(hours.UntilNextHour(now), s.onPublishTimer)
	s.logger.Info("scheduler started", slog.Int("historicHours", s.cache.HistoricHours()))
	return nil
}

// Stop cancels both timers, interrupts a running download and waits for it,
// then drops every cached value.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	stopTimer(&s.refreshTimer)
	stopTimer(&s.publishTimer)
	s.mu.Unlock()

	s.wg.Wait()
	s.cache.Clear()

	s.mu.Lock()
	s.ctx, s.cancel = nil, nil
	s.state = retry.State{}
	s.mu.Unlock()
	s.logger.Info("scheduler stopped")
}

func stopTimer(t *hours.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// RefreshNow moves the next refresh to now unless a cycle is already running.
func (s *Scheduler) RefreshNow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil || s.refreshing.Load() {
		return false
	}
	stopTimer(&s.refreshTimer)
	s.refreshTimer = s.clock.AfterFunc(0, s.onRefreshTimer)
	return true
}

// enter registers a timer callback as a worker, it fails once stopped.
func (s *Scheduler) enter() (context.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil || s.ctx.Err() != nil {
		return nil, false
	}
	s.wg.Add(1)
	return s.ctx, true
}

func (s *Scheduler) onRefreshTimer() {
	ctx, ok := s.enter()
	if !ok {
		return
	}
	defer s.wg.Done()
	s.refresh(ctx)
}

func (s *Scheduler) onPublishTimer() {
	_, ok := s.enter()
	if !ok {
		return
	}
	defer s.wg.Done()
	s.publish()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil && s.ctx.Err() == nil {
		s.publishTimer = s.clock.AfterFunc(hours.UntilNextHour(s.clock.Now()), s.onPublishTimer)
	}
}

func (s *Scheduler) refresh(ctx context.Context) {
	if !s.refreshing.CompareAndSwap(false, true) {
		return
	}
	defer s.refreshing.Store(false)

	err := s.RefreshCycle(ctx)
	if ctx.Err() != nil || retry.Classify(err) == retry.Interrupted {
		s.logger.Debug("refresh interrupted")
		return
	}

	now := s.clock.Now()
	outcome := retry.Outcome{
		Err:             err,
		SpotLinked:      s.interested(types.SpotPrice),
		FutureSpotHours: s.cache.CountFutureBuckets(types.SpotPrice, s.cache.CurrentHour().Time()),
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	state, _ := s.opts.Policy.Decide(outcome, s.state, now)
	s.state = state
	s.lastRefresh = now
	stopTimer(&s.refreshTimer)
	s.refreshTimer = s.clock.AfterFunc(state.Due.Sub(now), s.onRefreshTimer)
	s.mu.Unlock()

	s.metrics.ObserveCycle(state.Cause.String(), state.Due)
	logger := s.logger.With(
		slog.String("cause", state.Cause.String()),
		slog.String("next", state.Next.String()),
		slog.Time("due", state.Due),
		slog.Int("attempt", state.Attempt),
	)
	if err != nil {
		logger.Warn("refresh failed", slog.Any("error", err))
	} else {
		logger.Info("refresh done", slog.Int("futureSpotHours", outcome.FutureSpotHours))
	}

	s.publish()
}

// RefreshCycle downloads every interested series that is not fully cached.
// A failing series does not stop the others. The returned error is the most
// significant failure: transient before permanent before anything else.
// Cancellation aborts at once and leaves the cache untouched for that series.
func (s *Scheduler) RefreshCycle(ctx context.Context) error {
	s.downloadMu.Lock()
	defer s.downloadMu.Unlock()

	var transient, permanent, other error
	for _, series := range types.AllSeries {
		if !s.interested(series) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.refreshSeries(ctx, series)
		switch retry.Classify(err) {
		case retry.None:
		case retry.Interrupted:
			return err
		case retry.Transient:
			transient = firstErr(transient, err)
		case retry.Permanent:
			permanent = firstErr(permanent, err)
		default:
			other = firstErr(other, err)
		}
	}

	switch {
	case transient != nil:
		return transient
	case permanent != nil:
		return permanent
	default:
		return other
	}
}

func firstErr(current, err error) error {
	if current != nil {
		return current
	}
	return err
}

func (s *Scheduler) refreshSeries(ctx context.Context, series types.Series) error {
	var (
		window cache.Window
		spec   query.Spec
	)
	if series == types.SpotPrice {
		window = s.cache.SpotPriceWindow(s.opts.Policy.Publication)
		if s.cache.IsFullyCovered(series, window) {
			s.logger.Debug("series fully cached", slog.String("series", series.String()))
			return nil
		}
		spec = s.opts.Builder.SpotPrice(s.cache.HasHistoricCoverage(series))
	} else {
		window = s.cache.ThroughEndOfTomorrow(s.opts.TariffZone)
		if s.cache.IsFullyCovered(series, window) {
			s.logger.Debug("series fully cached", slog.String("series", series.String()))
			return nil
		}
		var err error
		spec, err = s.opts.Builder.Tariff(series)
		if errors.Is(err, query.ErrNoGLN) {
			s.logger.Debug("skipping series without GLN", slog.String("series", series.String()))
			return nil
		}
		if err != nil {
			return err
		}
	}
	return s.download(ctx, spec)
}

func (s *Scheduler) download(ctx context.Context, spec query.Spec) error {
	logger := s.logger.With(slog.String("series", spec.Series.String()))
	logger.Debug("downloading", slog.String("query", spec.String()))

	start := time.Now()
	records, err := s.transport.Fetch(ctx, spec)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	result := retry.Classify(err)
	s.metrics.ObserveDownload(spec.Series.String(), result.String(), time.Since(start))
	if err != nil {
		return fmt.Errorf("downloading %s: %w", spec.Series, err)
	}

	s.cache.Put(spec.Series, records)
	logger.Debug("downloaded", slog.Int("records", len(records)))
	return nil
}

// publish drops expired hours and emits the current values.
func (s *Scheduler) publish() {
	removed := s.cache.Cleanup(s.cache.Horizon())
	current := s.cache.CurrentHour()
	for _, series := range types.AllSeries {
		s.metrics.SetCacheBuckets(series.String(), s.cache.Len(series))
		if !s.opts.Linked.IsLinked(series) {
			continue
		}
		s.sink.PublishValue(series, current, s.cache.ValueAt(series, current))
		s.sink.PublishTimeSeries(series, s.cache.ValuesFrom(series, current.Time()))
	}
	if s.opts.HourlyPrices {
		s.sink.PublishHourlyPrices(s.HourlyPrices(current.Time()))
	}
	s.metrics.ObservePublish()
	s.logger.Debug("published", slog.String("hour", current.String()), slog.Int("removed", removed))
}

// HourlyPrices combines every cached spot price at or after from with the
// tariffs of the same hour.
func (s *Scheduler) HourlyPrices(from time.Time) []types.HourlyPrice {
	spot := s.cache.ValuesFrom(types.SpotPrice, from)
	prices := make([]types.HourlyPrice, 0, len(spot))
	for _, r := range spot {
		p := types.HourlyPrice{
			Hour:              r.Hour,
			SpotPrice:         r.Value,
			SpotPriceCurrency: s.opts.Currency,
		}
		p.GridTariff = s.cache.ValueAt(types.GridTariff, r.Hour)
		p.SystemTariff = s.cache.ValueAt(types.SystemTariff, r.Hour)
		p.TransmissionGridTariff = s.cache.ValueAt(types.TransmissionGridTariff, r.Hour)
		p.ElectricityTax = s.cache.ValueAt(types.ElectricityTax, r.Hour)
		p.ReducedElectricityTax = s.cache.ValueAt(types.ReducedElectricityTax, r.Hour)
		prices = append(prices, p)
	}
	return prices
}

// Prices returns every cached value of a series, downloading first when the
// series is not fully cached. A failed download is logged and returned along
// with whatever is cached.
func (s *Scheduler) Prices(ctx context.Context, series types.Series) ([]types.Record, error) {
	s.downloadMu.Lock()
	err := s.refreshSeries(ctx, series)
	s.downloadMu.Unlock()
	if err != nil {
		s.logger.Warn("on demand download failed", slog.String("series", series.String()), slog.Any("error", err))
	}
	return s.cache.ValuesFrom(series, time.Time{}), err
}
