package energidataservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/icodeforyou/energiprice-go/convert"
	"github.com/icodeforyou/energiprice-go/hours"
	"github.com/icodeforyou/energiprice-go/query"
	"github.com/icodeforyou/energiprice-go/types"
)

const userAgent = "energiprice-go"

// Zone is where Datahub price lists and the local dates of the API are valid.
const Zone = "Europe/Copenhagen"

func LoadZone() (*time.Location, error) {
	loc, err := time.LoadLocation(Zone)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", Zone, err)
	}
	return loc, nil
}

// EnergiDataService downloads day-ahead spot prices and Datahub price lists.
type EnergiDataService struct {
	logger  *slog.Logger
	client  *http.Client
	baseURL string
	zone    *time.Location
	clock   hours.Clock
}

// New creates a client. zone is the Danish zone the API expresses local
// dates in, see LoadZone.
func New(client *http.Client, zone *time.Location, clock hours.Clock) *EnergiDataService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &EnergiDataService{
		logger:  slog.Default().With("module", "energidataservice"),
		client:  client,
		baseURL: API_URL,
		zone:    zone,
		clock:   clock,
	}
}

// WithBaseURL points the client at another host, used by tests.
func (e *EnergiDataService) WithBaseURL(baseURL string) *EnergiDataService {
	e.baseURL = strings.TrimSuffix(baseURL, "/")
	return e
}

func (e *EnergiDataService) Fetch(ctx context.Context, spec query.Spec) ([]types.Record, error) {
	if spec.Series == types.SpotPrice {
		return e.spotPrices(ctx, spec)
	}
	if spec.Series.IsTariff() {
		return e.tariffs(ctx, spec)
	}
	return nil, types.ErrUnsupportedSeries
}

func (e *EnergiDataService) spotPrices(ctx context.Context, spec query.Spec) ([]types.Record, error) {
	filter, err := json.Marshal(map[string][]string{"PriceArea": {spec.PriceArea}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter: %w", err)
	}
	params := url.Values{}
	params.Set("start", spec.Start.Format(e.clock.Now(), e.zone))
	params.Set("filter", string(filter))
	params.Set("columns", "HourUTC,SpotPrice"+spec.Currency)
	params.Set("sort", "HourUTC asc")

	var resp response[spotPriceRecord]
	if err := e.get(ctx, "Elspotprices", params, &resp); err != nil {
		return nil, err
	}

	records := make([]types.Record, 0, len(resp.Records))
	for _, raw := range resp.Records {
		hour, err := time.ParseInLocation(recordLayout, raw.HourUTC, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("failed to parse hour %q: %w", raw.HourUTC, err)
		}
		price := raw.SpotPriceDKK
		if spec.Currency == "EUR" {
			price = raw.SpotPriceEUR
		}
		if price == nil {
			continue
		}
		records = append(records, types.Record{
			Hour:  hours.FromTime(hour),
			Value: convert.RoundFloat64(*price/1e3, 6),
		})
	}
	return records, nil
}

func (e *EnergiDataService) tariffs(ctx context.Context, spec query.Spec) ([]types.Record, error) {
	conditions := spec.Filter.Conditions()
	if conditions == nil {
		conditions = make(map[string][]string)
	}
	conditions["GLN_Number"] = []string{spec.GLN.String()}
	conditions["ChargeType"] = []string{chargeTypeTariff}
	filter, err := json.Marshal(conditions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter: %w", err)
	}

	now := e.clock.Now()
	start := spec.Filter.Start.Resolve(now, e.zone)
	params := url.Values{}
	params.Set("start", spec.Filter.Start.Format(now, e.zone))
	params.Set("filter", string(filter))
	params.Set("sort", "ValidFrom asc")

	var resp response[priceListRecord]
	if err := e.get(ctx, "DatahubPricelist", params, &resp); err != nil {
		return nil, err
	}
	return e.expand(resp.Records, start, hours.LastHourOfDay(now, e.zone, 1)), nil
}

// expand turns price list rows into hourly values from start through to.
// Per charge type code the latest row valid at an hour applies, the values
// of all codes are summed.
func (e *EnergiDataService) expand(rows []priceListRecord, start time.Time, to hours.DateHour) []types.Record {
	byCode := make(map[string][]priceListRecord)
	var codes []string
	for _, r := range rows {
		r = r.inZone(e.zone)
		if _, ok := byCode[r.ChargeTypeCode]; !ok {
			codes = append(codes, r.ChargeTypeCode)
		}
		byCode[r.ChargeTypeCode] = append(byCode[r.ChargeTypeCode], r)
	}
	for _, code := range codes {
		slices.SortStableFunc(byCode[code], func(a, b priceListRecord) int {
			return a.ValidFrom.Compare(b.ValidFrom)
		})
	}

	var records []types.Record
	for _, dh := range hours.Range(hours.FromTime(start), to) {
		local := dh.Time().In(e.zone)
		sum, found := 0.0, false
		for _, code := range codes {
			candidates := byCode[code]
			for i := len(candidates) - 1; i >= 0; i-- {
				if !candidates[i].appliesAt(local) {
					continue
				}
				if price, ok := candidates[i].priceAt(local); ok {
					sum += price
					found = true
				}
				break
			}
		}
		if found {
			records = append(records, types.Record{Hour: dh, Value: convert.RoundFloat64(sum, 6)})
		}
	}
	return records
}

func (e *EnergiDataService) get(ctx context.Context, dataset string, params url.Values, out any) error {
	u := fmt.Sprintf("%s/dataset/%s?%s", e.baseURL, dataset, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	e.logger.Debug("requesting", slog.String("dataset", dataset), slog.String("url", u))
	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &types.TransportError{Message: "failed to fetch " + dataset, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &types.TransportError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to decode %s response: %w", dataset, err)
	}
	return nil
}
