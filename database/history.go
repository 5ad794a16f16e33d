package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/icodeforyou/energiprice-go/hours"
	"github.com/icodeforyou/energiprice-go/types"
	"github.com/icodeforyou/energiprice-go/types/maybe"
)

// HistorySink stores every published time series so past prices survive a
// restart. It blocks on the database and is meant to run behind an async sink.
type HistorySink struct {
	db      *Database
	logger  *slog.Logger
	timeout time.Duration
}

func NewHistorySink(db *Database) *HistorySink {
	return &HistorySink{
		db:      db,
		logger:  slog.Default().With("module", "history"),
		timeout: 10 * time.Second,
	}
}

// PublishValue is covered by the time series of the same tick.
func (h *HistorySink) PublishValue(types.Series, hours.DateHour, maybe.Maybe[float64]) {}

func (h *HistorySink) PublishTimeSeries(s types.Series, records []types.Record) {
	rows := make([]PublishedPriceRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, PublishedPriceRow{When: r.Hour, Series: s, Value: r.Value})
	}
	h.save(rows)
}

func (h *HistorySink) PublishHourlyPrices(prices []types.HourlyPrice) {
	var rows []PublishedPriceRow
	for _, p := range prices {
		rows = append(rows, PublishedPriceRow{When: p.Hour, Series: types.SpotPrice, Value: p.SpotPrice})
		for _, s := range types.AllSeries {
			if v := p.Tariff(s); v.IsValid() {
				rows = append(rows, PublishedPriceRow{When: p.Hour, Series: s, Value: v.Value()})
			}
		}
	}
	h.save(rows)
}

func (h *HistorySink) save(rows []PublishedPriceRow) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	if err := h.db.SavePublishedPrices(ctx, rows); err != nil {
		h.logger.Error("saving price history failed", slog.Any("error", err))
	}
}
