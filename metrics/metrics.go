package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the price refresh metrics. A nil *Metrics records nothing.
type Metrics struct {
	DownloadsTotal    *prometheus.CounterVec
	DownloadDuration  *prometheus.HistogramVec
	RefreshCycles     *prometheus.CounterVec
	PublishTicksTotal prometheus.Counter
	CacheBuckets      *prometheus.GaugeVec
	NextRefresh       prometheus.Gauge
}

// New constructs the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DownloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "energiprice_downloads_total",
				Help: "Total series downloads by result",
			},
			[]string{"series", "result"},
		),
		DownloadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "energiprice_download_duration_seconds",
				Help:    "Series download duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"series"},
		),
		RefreshCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "energiprice_refresh_cycles_total",
				Help: "Total refresh cycles by retry cause",
			},
			[]string{"cause"},
		),
		PublishTicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "energiprice_publish_ticks_total",
			Help: "Total hourly publish ticks",
		}),
		CacheBuckets: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "energiprice_cache_buckets",
				Help: "Cached hour buckets per series",
			},
			[]string{"series"},
		),
		NextRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "energiprice_next_refresh_timestamp_seconds",
			Help: "Unix time of the next scheduled refresh",
		}),
	}
	reg.MustRegister(
		m.DownloadsTotal,
		m.DownloadDuration,
		m.RefreshCycles,
		m.PublishTicksTotal,
		m.CacheBuckets,
		m.NextRefresh,
	)
	return m
}

func (m *Metrics) ObserveDownload(series, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(series, result).Inc()
	m.DownloadDuration.WithLabelValues(series).Observe(d.Seconds())
}

func (m *Metrics) ObserveCycle(cause string, next time.Time) {
	if m == nil {
		return
	}
	m.RefreshCycles.WithLabelValues(cause).Inc()
	m.NextRefresh.Set(float64(next.Unix()))
}

func (m *Metrics) ObservePublish() {
	if m == nil {
		return
	}
	m.PublishTicksTotal.Inc()
}

func (m *Metrics) SetCacheBuckets(series string, n int) {
	if m == nil {
		return
	}
	m.CacheBuckets.WithLabelValues(series).Set(float64(n))
}
