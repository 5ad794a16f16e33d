package nordpool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/icodeforyou/energiprice-go/convert"
	"github.com/icodeforyou/energiprice-go/hours"
	"github.com/icodeforyou/energiprice-go/query"
	"github.com/icodeforyou/energiprice-go/types"
)

// Nordpool serves day-ahead spot prices only. Tariffs are published by the
// Datahub and are not available here.
type Nordpool struct {
	logger  *slog.Logger
	client  *http.Client
	baseURL string
	zone    *time.Location
	clock   hours.Clock
}

func New(client *http.Client, zone *time.Location, clock hours.Clock) *Nordpool {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Nordpool{
		logger:  slog.Default().With("module", "nordpool"),
		client:  client,
		baseURL: API_URL,
		zone:    zone,
		clock:   clock,
	}
}

func (n *Nordpool) WithBaseURL(baseURL string) *Nordpool {
	n.baseURL = strings.TrimSuffix(baseURL, "/")
	return n
}

func (n *Nordpool) Fetch(ctx context.Context, spec query.Spec) ([]types.Record, error) {
	if spec.Series != types.SpotPrice {
		return nil, types.ErrUnsupportedSeries
	}

	now := n.clock.Now()
	start := spec.Start.Resolve(now, n.zone)
	from := hours.FromTime(start)
	last := hours.StartOfDay(now, n.zone).AddDate(0, 0, 1)

	var prices []types.Record
	for day := hours.StartOfDay(start, n.zone); !day.After(last); day = day.AddDate(0, 0, 1) {
		daily, err := n.getEnergyPrices(ctx, day, spec.PriceArea, spec.Currency)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch prices from nordpool for %s: %w", day.Format("2006-01-02"), err)
		}
		for _, p := range daily {
			if !p.Hour.Before(from) {
				prices = append(prices, p)
			}
		}
	}
	return prices, nil
}

func (n *Nordpool) getEnergyPrices(ctx context.Context, date time.Time, area, currency string) ([]types.Record, error) {
	url := fmt.Sprintf("%s/api/DayAheadPrices?date=%s&market=DayAhead&deliveryArea=%s&currency=%s",
		n.baseURL,
		date.Format("2006-01-02"),
		area,
		currency)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &types.TransportError{Message: "failed to fetch prices", Err: err}
	}
	defer resp.Body.Close()

	// Prices for a day that is not published yet.
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return []types.Record{}, nil
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &types.TransportError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var nordpoolData nordpoolData
	if err := json.NewDecoder(resp.Body).Decode(&nordpoolData); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	prices := make([]types.Record, 0)
	for _, entry := range nordpoolData.MultiAreaEntries {
		hour := hours.FromTime(entry.DeliveryStart)
		if slices.ContainsFunc(prices, func(p types.Record) bool { return p.Hour == hour }) {
			continue
		}
		price, ok := entry.EntryPerArea[area]
		if ok {
			prices = append(prices, types.Record{
				Hour:  hour,
				Value: normalizePrice(price),
			})
		}
	}

	n.logger.Debug("nordpool prices", slog.String("date", date.Format("2006-01-02")), slog.Int("hours", len(prices)))
	return prices, nil
}

// normalizePrice converts a price per MWh to per kWh.
func normalizePrice(price float64) float64 {
	return convert.RoundFloat64(price/1e3, 6)
}
