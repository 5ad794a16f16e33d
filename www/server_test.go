package www

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/icodeforyou/energiprice-go/config"
	"github.com/icodeforyou/energiprice-go/database"
	"github.com/icodeforyou/energiprice-go/hours"
	"github.com/icodeforyou/energiprice-go/retry"
	"github.com/icodeforyou/energiprice-go/scheduler"
	"github.com/icodeforyou/energiprice-go/types"
	"github.com/icodeforyou/energiprice-go/types/maybe"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noon = hours.DateHour{Date: "2025-02-03", Hour: 12}

type fakePrices struct {
	status    scheduler.Status
	hourly    []types.HourlyPrice
	records   []types.Record
	err       error
	refreshed bool
	from      time.Time
}

func (f *fakePrices) Status() scheduler.Status { return f.status }

func (f *fakePrices) HourlyPrices(from time.Time) []types.HourlyPrice {
	f.from = from
	return f.hourly
}

func (f *fakePrices) Prices(context.Context, types.Series) ([]types.Record, error) {
	return f.records, f.err
}

func (f *fakePrices) RefreshNow() bool {
	if f.status.Refreshing || !f.status.Started {
		return false
	}
	f.refreshed = true
	return true
}

type fakeStore struct {
	from    hours.DateHour
	series  types.Series
	entries []database.LogEntryRow
	level   slog.Level
}

func (f *fakeStore) GetPublishedPrices(_ context.Context, s types.Series, from hours.DateHour) ([]database.PublishedPriceRow, error) {
	f.series, f.from = s, from
	return []database.PublishedPriceRow{{When: from, Series: s, Value: 0.42}}, nil
}

func (f *fakeStore) GetLogEntries(_ context.Context, minLvl slog.Level, _, _ int) ([]database.LogEntryRow, error) {
	f.level = minLvl
	return f.entries, nil
}

func newTestServer(prices PriceService, store Store) (*Server, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewServer(config.AppConfigApi{}, prices, store, NewHub(), reg, "1.2.3"), reg
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHourlyPrices(t *testing.T) {
	fp := &fakePrices{hourly: []types.HourlyPrice{{
		Hour:                   noon,
		SpotPrice:              0.5,
		SpotPriceCurrency:      "DKK",
		GridTariff:             maybe.Some(0.2),
		SystemTariff:           maybe.Some(0.05),
		TransmissionGridTariff: maybe.Some(0.05),
		ElectricityTax:         maybe.Some(0.7),
	}}}
	s, _ := newTestServer(fp, &fakeStore{})

	rec := do(t, s.Handler(), http.MethodGet, "/api/prices?from=2025-02-03T12:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, time.Date(2025, time.February, 3, 12, 0, 0, 0, time.UTC), fp.from)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "2025-02-03T12:00:00Z", body[0]["hourStart"])
	assert.InDelta(t, 1.5, body[0]["totalPrice"], 1e-9)
	assert.Nil(t, body[0]["reducedElectricityTax"])

	rec = do(t, s.Handler(), http.MethodGet, "/api/prices?from=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNoSchedulerRunning(t *testing.T) {
	s, _ := newTestServer(nil, &fakeStore{})
	h := s.Handler()

	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/api/prices").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/api/series/spot-price").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/api/refresh").Code)

	rec := do(t, h, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"1.2.3"`)
	assert.Contains(t, rec.Body.String(), `"started":false`)

	s.SetPriceService(&fakePrices{})
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/prices").Code)
}

func TestSeries(t *testing.T) {
	records := []types.Record{{Hour: noon, Value: 0.21}}
	tests := []struct {
		name    string
		path    string
		records []types.Record
		err     error
		want    int
		wantErr bool
	}{
		{"cached", "/api/series/grid-tariff", records, nil, http.StatusOK, false},
		{"stale after failure", "/api/series/grid_tariff", records, errors.New("boom"), http.StatusOK, true},
		{"nothing after failure", "/api/series/spot-price", nil, errors.New("boom"), http.StatusBadGateway, true},
		{"unknown series", "/api/series/gas", nil, nil, http.StatusNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(&fakePrices{records: tt.records, err: tt.err}, &fakeStore{})
			rec := do(t, s.Handler(), http.MethodGet, tt.path)
			assert.Equal(t, tt.want, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			_, hasErr := body["error"]
			assert.Equal(t, tt.wantErr, hasErr)
		})
	}
}

func TestHistory(t *testing.T) {
	store := &fakeStore{}
	s, _ := newTestServer(&fakePrices{}, store)

	rec := do(t, s.Handler(), http.MethodGet, "/api/history/system-tariff?from=2025-02-03T13:00:00%2B01:00")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.SystemTariff, store.series)
	assert.Equal(t, noon, store.from)
	assert.JSONEq(t, `{"series":"system-tariff","records":[{"hourStart":"2025-02-03T12:00:00Z","value":0.42}]}`, rec.Body.String())
}

func TestRefresh(t *testing.T) {
	fp := &fakePrices{status: scheduler.Status{Started: true}}
	s, _ := newTestServer(fp, &fakeStore{})

	assert.Equal(t, http.StatusAccepted, do(t, s.Handler(), http.MethodPost, "/api/refresh").Code)
	assert.True(t, fp.refreshed)

	fp.status.Refreshing = true
	assert.Equal(t, http.StatusConflict, do(t, s.Handler(), http.MethodPost, "/api/refresh").Code)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s.Handler(), http.MethodGet, "/api/refresh").Code)
}

func TestStatus(t *testing.T) {
	due := time.Date(2025, time.February, 3, 12, 0, 0, 0, time.UTC)
	fp := &fakePrices{status: scheduler.Status{
		Started:     true,
		NextRefresh: due,
		Cause:       retry.Transient,
		StatusCode:  503,
		Attempt:     2,
		Buckets:     map[types.Series]int{types.SpotPrice: 48},
	}}
	s, _ := newTestServer(fp, &fakeStore{})

	rec := do(t, s.Handler(), http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "transient", body["cause"])
	assert.Equal(t, "2025-02-03T12:00:00Z", body["nextRefresh"])
	assert.Equal(t, map[string]any{"spot-price": 48.0}, body["buckets"])
}

func TestLog(t *testing.T) {
	store := &fakeStore{entries: []database.LogEntryRow{{
		Timestamp: time.Date(2025, time.February, 3, 12, 0, 0, 0, time.UTC),
		Level:     int(slog.LevelWarn),
		Message:   "refresh failed",
	}}}
	s, _ := newTestServer(&fakePrices{}, store)

	rec := do(t, s.Handler(), http.MethodGet, "/api/log?level=warn")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, slog.LevelWarn, store.level)
	assert.JSONEq(t, `[{"timestamp":"2025-02-03T12:00:00Z","level":"WARN","message":"refresh failed"}]`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s, reg := newTestServer(&fakePrices{}, &fakeStore{})
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	rec := do(t, s.Handler(), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_total 1")
}

func TestWebSocketReceivesPublications(t *testing.T) {
	s, _ := newTestServer(&fakePrices{}, &fakeStore{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.hub.Run(ctx)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, resp, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.hub.PublishValue(types.SpotPrice, noon, maybe.None[float64]())
	s.hub.PublishTimeSeries(types.GridTariff, []types.Record{{Hour: noon, Value: 0.21}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"value","series":"spot-price","hourStart":"2025-02-03T12:00:00Z","value":null}`, string(msg))

	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"timeseries","series":"grid-tariff","records":[{"hourStart":"2025-02-03T12:00:00Z","value":0.21}]}`, string(msg))

	// Stopping the hub closes the connection.
	cancel()
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
