package energidataservice

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	API_URL          = "https://api.energidataservice.dk"
	recordLayout     = "2006-01-02T15:04:05"
	chargeTypeTariff = "D03"
)

type response[T any] struct {
	Total   int `json:"total"`
	Records []T `json:"records"`
}

type spotPriceRecord struct {
	HourUTC      string   `json:"HourUTC"`
	SpotPriceDKK *float64 `json:"SpotPriceDKK"`
	SpotPriceEUR *float64 `json:"SpotPriceEUR"`
}

// priceListRecord is one Datahub price list row. Price1..Price24 hold the
// tariff per local hour of the day, a missing price means Price1 applies.
type priceListRecord struct {
	ChargeTypeCode string
	ValidFrom      time.Time
	ValidTo        *time.Time
	Prices         [24]*float64
}

func (r *priceListRecord) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}

	var head struct {
		ChargeTypeCode string  `json:"ChargeTypeCode"`
		ValidFrom      string  `json:"ValidFrom"`
		ValidTo        *string `json:"ValidTo"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return err
	}
	r.ChargeTypeCode = head.ChargeTypeCode

	// Validity is in Danish local time, the zone is applied by the caller.
	from, err := time.Parse(recordLayout, head.ValidFrom)
	if err != nil {
		return fmt.Errorf("invalid ValidFrom %q: %w", head.ValidFrom, err)
	}
	r.ValidFrom = from
	if head.ValidTo != nil && *head.ValidTo != "" {
		to, err := time.Parse(recordLayout, *head.ValidTo)
		if err != nil {
			return fmt.Errorf("invalid ValidTo %q: %w", *head.ValidTo, err)
		}
		r.ValidTo = &to
	}

	for i := range r.Prices {
		raw, ok := fields[fmt.Sprintf("Price%d", i+1)]
		if !ok {
			continue
		}
		var p *float64
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("invalid Price%d: %w", i+1, err)
		}
		r.Prices[i] = p
	}
	return nil
}

// inZone reinterprets the wall clock validity in loc.
func (r priceListRecord) inZone(loc *time.Location) priceListRecord {
	relocate := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
	}
	r.ValidFrom = relocate(r.ValidFrom)
	if r.ValidTo != nil {
		to := relocate(*r.ValidTo)
		r.ValidTo = &to
	}
	return r
}

func (r priceListRecord) appliesAt(t time.Time) bool {
	return !r.ValidFrom.After(t) && (r.ValidTo == nil || t.Before(*r.ValidTo))
}

// priceAt returns the price of the local hour of t.
func (r priceListRecord) priceAt(t time.Time) (float64, bool) {
	if p := r.Prices[t.Hour()]; p != nil {
		return *p, true
	}
	if p := r.Prices[0]; p != nil {
		return *p, true
	}
	return 0, false
}
