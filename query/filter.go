package query

import "slices"

// Filter selects the Datahub price list rows of one tariff.
type Filter struct {
	ChargeTypeCodes []string
	Notes           []string
	Start           DateParameter
}

func (f Filter) WithStart(start DateParameter) Filter {
	f.Start = start
	return f
}

// Conditions returns the column filter sent to the API, nil when the filter
// does not restrict codes or notes.
func (f Filter) Conditions() map[string][]string {
	conditions := make(map[string][]string)
	if len(f.ChargeTypeCodes) > 0 {
		conditions["ChargeTypeCode"] = slices.Clone(f.ChargeTypeCodes)
	}
	if len(f.Notes) > 0 {
		conditions["Note"] = slices.Clone(f.Notes)
	}
	if len(conditions) == 0 {
		return nil
	}
	return conditions
}

var tariffStart = Relative(StartOfDay, Offset{})

func SystemTariffFilter() Filter {
	return Filter{ChargeTypeCodes: []string{"41000"}, Notes: []string{"Systemtarif"}, Start: tariffStart}
}

func TransmissionGridTariffFilter() Filter {
	return Filter{ChargeTypeCodes: []string{"40000"}, Notes: []string{"Transmissions nettarif"}, Start: tariffStart}
}

func ElectricityTaxFilter() Filter {
	return Filter{ChargeTypeCodes: []string{"EA-001"}, Notes: []string{"Elafgift"}, Start: tariffStart}
}

func ReducedElectricityTaxFilter() Filter {
	return Filter{ChargeTypeCodes: []string{"EA-001"}, Notes: []string{"Reduceret elafgift"}, Start: tariffStart}
}

var gridTariffCodes = map[GLN][]string{
	"5790000610099": {"DT_C_01"},    // Radius Elnet
	"5790001089030": {"CD", "CD R"}, // N1
	"5790000705184": {"30TR_C_ET"},  // Cerius
	"5790000392261": {"C-Time"},     // TREFOR El-net
}

// GridTariffFilter returns the time differentiated consumer tariff of a grid
// company. Unknown companies get every tariff they publish.
func GridTariffFilter(gln GLN) Filter {
	return Filter{ChargeTypeCodes: slices.Clone(gridTariffCodes[gln]), Start: tariffStart}
}
