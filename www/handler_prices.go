package www

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/icodeforyou/energiprice-go/calc"
	"github.com/icodeforyou/energiprice-go/hours"
	"github.com/icodeforyou/energiprice-go/types"
	"github.com/icodeforyou/energiprice-go/types/maybe"
)

var errNotRunning = errors.New("price scheduler is not running")

type pricedHour struct {
	types.HourlyPrice
	TotalPrice maybe.Maybe[float64] `json:"totalPrice"`
}

type seriesResponse struct {
	Series  types.Series   `json:"series"`
	Records []types.Record `json:"records"`
	Error   string         `json:"error,omitempty"`
}

// timeParam reads an RFC 3339 query parameter, def when missing.
func timeParam(r *http.Request, key string, def time.Time) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, errors.New("invalid " + key + ", expected RFC 3339")
	}
	return t, nil
}

// NewHourlyPricesHandler serves the combined prices from the current hour, or
// from the "from" parameter, with the total of each hour.
func NewHourlyPricesHandler(logger *slog.Logger, s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ps := s.priceService()
		if ps == nil {
			writeError(logger, w, http.StatusServiceUnavailable, errNotRunning)
			return
		}

		from, err := timeParam(r, "from", time.Now().Truncate(time.Hour))
		if err != nil {
			writeError(logger, w, http.StatusBadRequest, err)
			return
		}

		prices := ps.HourlyPrices(from)
		out := make([]pricedHour, 0, len(prices))
		for _, p := range prices {
			out = append(out, pricedHour{HourlyPrice: p, TotalPrice: calc.TotalPrice(p, s.reducedTax)})
		}
		writeJSON(logger, w, http.StatusOK, out)
	}
}

// NewSeriesHandler returns every cached value of one series, downloading it
// first when needed. Cached values are served even if the download failed.
func NewSeriesHandler(logger *slog.Logger, s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		series, err := types.ParseSeries(r.PathValue("name"))
		if err != nil {
			writeError(logger, w, http.StatusNotFound, err)
			return
		}
		ps := s.priceService()
		if ps == nil {
			writeError(logger, w, http.StatusServiceUnavailable, errNotRunning)
			return
		}

		records, err := ps.Prices(r.Context(), series)
		resp := seriesResponse{Series: series, Records: records}
		if resp.Records == nil {
			resp.Records = []types.Record{}
		}
		status := http.StatusOK
		if err != nil {
			resp.Error = err.Error()
			if len(records) == 0 {
				status = http.StatusBadGateway
			}
		}
		writeJSON(logger, w, status, resp)
	}
}

// NewHistoryHandler serves published prices from the database, by default the
// last 24 hours.
func NewHistoryHandler(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		series, err := types.ParseSeries(r.PathValue("name"))
		if err != nil {
			writeError(logger, w, http.StatusNotFound, err)
			return
		}
		from, err := timeParam(r, "from", time.Now().Add(-24*time.Hour))
		if err != nil {
			writeError(logger, w, http.StatusBadRequest, err)
			return
		}

		rows, err := store.GetPublishedPrices(r.Context(), series, hours.FromTime(from))
		if err != nil {
			logger.Error("handling history request", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, err)
			return
		}

		records := make([]types.Record, 0, len(rows))
		for _, row := range rows {
			records = append(records, types.Record{Hour: row.When, Value: row.Value})
		}
		writeJSON(logger, w, http.StatusOK, seriesResponse{Series: series, Records: records})
	}
}
