package types

import (
	"fmt"
	"strings"
)

// Series identifies one tracked price series.
type Series int

const (
	SpotPrice Series = iota
	GridTariff
	SystemTariff
	TransmissionGridTariff
	ElectricityTax
	ReducedElectricityTax
)

var AllSeries = []Series{
	SpotPrice,
	GridTariff,
	SystemTariff,
	TransmissionGridTariff,
	ElectricityTax,
	ReducedElectricityTax,
}

var seriesNames = map[Series]string{
	SpotPrice:              "spot-price",
	GridTariff:             "grid-tariff",
	SystemTariff:           "system-tariff",
	TransmissionGridTariff: "transmission-grid-tariff",
	ElectricityTax:         "electricity-tax",
	ReducedElectricityTax:  "reduced-electricity-tax",
}

func (s Series) String() string {
	if name, ok := seriesNames[s]; ok {
		return name
	}
	return fmt.Sprintf("series(%d)", int(s))
}

// IsTariff is true for every series published through the Datahub price lists.
func (s Series) IsTariff() bool {
	return s != SpotPrice
}

func (s Series) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Series) UnmarshalText(b []byte) error {
	parsed, err := ParseSeries(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func ParseSeries(name string) (Series, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "_", "-")
	for s, sn := range seriesNames {
		if sn == n {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown series %q", name)
}

// SeriesSet is the set of series that have at least one interested consumer.
type SeriesSet map[Series]struct{}

func NewSeriesSet(series ...Series) SeriesSet {
	set := make(SeriesSet, len(series))
	for _, s := range series {
		set[s] = struct{}{}
	}
	return set
}

func (set SeriesSet) IsLinked(s Series) bool {
	_, ok := set[s]
	return ok
}
