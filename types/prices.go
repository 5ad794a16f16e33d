package types

import (
	"errors"
	"fmt"

	"github.com/icodeforyou/energiprice-go/hours"
	"github.com/icodeforyou/energiprice-go/types/maybe"
)

// Record is one hourly value as delivered by a transport.
type Record struct {
	Hour  hours.DateHour `json:"hourStart"`
	Value float64        `json:"value"`
}

// HourlyPrice combines the spot price and every tariff for one hour.
type HourlyPrice struct {
	Hour                   hours.DateHour       `json:"hourStart"`
	SpotPrice              float64              `json:"spotPrice"`
	SpotPriceCurrency      string               `json:"spotPriceCurrency"`
	GridTariff             maybe.Maybe[float64] `json:"gridTariff"`
	SystemTariff           maybe.Maybe[float64] `json:"systemTariff"`
	TransmissionGridTariff maybe.Maybe[float64] `json:"transmissionGridTariff"`
	ElectricityTax         maybe.Maybe[float64] `json:"electricityTax"`
	ReducedElectricityTax  maybe.Maybe[float64] `json:"reducedElectricityTax"`
}

// Tariff returns the tariff of the given series, None for the spot price.
func (p HourlyPrice) Tariff(s Series) maybe.Maybe[float64] {
	switch s {
	case GridTariff:
		return p.GridTariff
	case SystemTariff:
		return p.SystemTariff
	case TransmissionGridTariff:
		return p.TransmissionGridTariff
	case ElectricityTax:
		return p.ElectricityTax
	case ReducedElectricityTax:
		return p.ReducedElectricityTax
	default:
		return maybe.None[float64]()
	}
}

var ErrUnsupportedSeries = errors.New("series not supported by transport")

// TransportError is returned by transports when the provider call failed.
// StatusCode is the HTTP status, 0 when no response was received.
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("transport error: %s: %v", e.Message, e.Err)
		}
		return fmt.Sprintf("transport error: %s", e.Message)
	}
	return fmt.Sprintf("transport error (status %d): %s", e.StatusCode, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
