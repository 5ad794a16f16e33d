package query

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/icodeforyou/energiprice-go/types"
)

var ErrNoGLN = errors.New("no global location number configured")

// Spec describes one download. It is built per attempt and never changed.
type Spec struct {
	Series    types.Series
	Start     DateParameter
	Filter    Filter
	GLN       GLN
	PriceArea string
	Currency  string
}

func (s Spec) String() string {
	if s.Series.IsTariff() {
		return fmt.Sprintf("%s gln=%s start=%s codes=%s notes=%s",
			s.Series, s.GLN, s.Filter.Start, strings.Join(s.Filter.ChargeTypeCodes, ","), strings.Join(s.Filter.Notes, ","))
	}
	return fmt.Sprintf("%s area=%s currency=%s start=%s", s.Series, s.PriceArea, s.Currency, s.Start)
}

// Override replaces parts of the grid tariff filter. Charge type codes or notes
// replace the filter completely, a start alone only moves the start date.
type Override struct {
	Start           DateParameter
	ChargeTypeCodes []string
	Notes           []string
}

func (o *Override) replacesFilter() bool {
	return len(o.ChargeTypeCodes) > 0 || len(o.Notes) > 0
}

// ParseOverride returns nil when nothing is overridden.
func ParseOverride(start, offset string, chargeTypeCodes, notes []string) (*Override, error) {
	codes := compact(chargeTypeCodes)
	n := compact(notes)
	if strings.TrimSpace(start) == "" && strings.TrimSpace(offset) == "" && len(codes) == 0 && len(n) == 0 {
		return nil, nil
	}
	p, err := ParseDateParameter(start, offset)
	if err != nil {
		return nil, fmt.Errorf("invalid grid tariff start %q (offset %q): %w", start, offset, err)
	}
	return &Override{Start: p, ChargeTypeCodes: codes, Notes: n}, nil
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

type Builder struct {
	PriceArea      string
	Currency       string
	GridCompanyGLN GLN
	EnerginetGLN   GLN
	HistoricHours  int
	GridOverride   *Override
}

func (b Builder) historicOffset() Offset {
	return Offset{Duration: -time.Duration(b.HistoricHours) * time.Hour}
}

// SpotPrice starts at the current hour when history is already cached, else
// the lookback hours before it.
func (b Builder) SpotPrice(hasHistoric bool) Spec {
	start := Relative(UtcNow, Offset{})
	if !hasHistoric {
		start = start.WithOffset(b.historicOffset())
	}
	return Spec{
		Series:    types.SpotPrice,
		Start:     start,
		PriceArea: b.PriceArea,
		Currency:  b.Currency,
	}
}

// Tariff builds the price list download of a tariff series. ErrNoGLN means
// the series should be skipped.
func (b Builder) Tariff(s types.Series) (Spec, error) {
	gln := b.EnerginetGLN
	if s == types.GridTariff {
		gln = b.GridCompanyGLN
	}
	if gln.IsEmpty() {
		return Spec{}, fmt.Errorf("%s: %w", s, ErrNoGLN)
	}

	var filter Filter
	switch s {
	case types.GridTariff:
		filter = b.gridTariffFilter()
	case types.SystemTariff:
		filter = SystemTariffFilter()
	case types.TransmissionGridTariff:
		filter = TransmissionGridTariffFilter()
	case types.ElectricityTax:
		filter = ElectricityTaxFilter()
	case types.ReducedElectricityTax:
		filter = ReducedElectricityTaxFilter()
	default:
		return Spec{}, fmt.Errorf("%s: %w", s, types.ErrUnsupportedSeries)
	}
	filter = filter.WithStart(filter.Start.WithOffset(b.historicOffset()))

	return Spec{
		Series:    s,
		Start:     filter.Start,
		Filter:    filter,
		GLN:       gln,
		PriceArea: b.PriceArea,
		Currency:  b.Currency,
	}, nil
}

func (b Builder) gridTariffFilter() Filter {
	o := b.GridOverride
	switch {
	case o == nil:
		return GridTariffFilter(b.GridCompanyGLN)
	case o.replacesFilter():
		return Filter{
			ChargeTypeCodes: slices.Clone(o.ChargeTypeCodes),
			Notes:           slices.Clone(o.Notes),
			Start:           o.Start,
		}
	default:
		return GridTariffFilter(b.GridCompanyGLN).WithStart(o.Start)
	}
}
