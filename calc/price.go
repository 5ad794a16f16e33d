package calc

import (
	"github.com/icodeforyou/energiprice-go/convert"
	"github.com/icodeforyou/energiprice-go/types"
	"github.com/icodeforyou/energiprice-go/types/maybe"
)

// TotalPrice is the spot price plus every tariff and one of the electricity
// taxes, per kWh. None when any of the parts is missing for the hour.
func TotalPrice(p types.HourlyPrice, reducedTax bool) maybe.Maybe[float64] {
	tax := p.ElectricityTax
	if reducedTax {
		tax = p.ReducedElectricityTax
	}

	total := p.SpotPrice
	for _, part := range []maybe.Maybe[float64]{p.GridTariff, p.SystemTariff, p.TransmissionGridTariff, tax} {
		if !part.IsValid() {
			return maybe.None[float64]()
		}
		total += part.Value()
	}
	return maybe.Some(convert.RoundFloat64(total, 6))
}
