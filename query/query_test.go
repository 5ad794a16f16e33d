package query

import (
	"testing"
	"time"

	"github.com/icodeforyou/energiprice-go/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var copenhagen = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Copenhagen")
	if err != nil {
		panic(err)
	}
	return loc
}()

func TestParseOffset(t *testing.T) {
	tests := []struct {
		value string
		want  Offset
		ok    bool
	}{
		{"", Offset{}, true},
		{"P1D", Offset{Days: 1}, true},
		{"-P1D", Offset{Days: -1}, true},
		{"PT24H", Offset{Duration: 24 * time.Hour}, true},
		{"-PT12H30M", Offset{Duration: -(12*time.Hour + 30*time.Minute)}, true},
		{"p2dt1h", Offset{Days: 2, Duration: time.Hour}, true},
		{"P", Offset{}, false},
		{"PT", Offset{}, false},
		{"P1DT", Offset{}, false},
		{"1D", Offset{}, false},
		{"P1W", Offset{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseOffset(tt.value)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOffsetString(t *testing.T) {
	assert.Equal(t, "-P1D", Offset{Days: -1}.String())
	assert.Equal(t, "-PT24H", Offset{Duration: -24 * time.Hour}.String())
	assert.Equal(t, "P1DT2H15M", Offset{Days: 1, Duration: 2*time.Hour + 15*time.Minute}.String())
	assert.Equal(t, "", Offset{}.String())
}

func TestParseDateParameter(t *testing.T) {
	p, err := ParseDateParameter("startofday", "-P1D")
	require.NoError(t, err)
	assert.Equal(t, StartOfDay, p.Anchor())
	assert.Equal(t, "StartOfDay-P1D", p.String())

	p, err = ParseDateParameter("2025-01-31", "")
	require.NoError(t, err)
	assert.Equal(t, Absolute, p.Anchor())
	assert.Equal(t, "2025-01-31", p.String())

	p, err = ParseDateParameter("", "PT1H")
	require.NoError(t, err)
	assert.Equal(t, StartOfDay, p.Anchor())

	_, err = ParseDateParameter("yesterday", "")
	assert.Error(t, err)
	_, err = ParseDateParameter("2025-13-01", "")
	assert.Error(t, err)
	_, err = ParseDateParameter("StartOfDay", "P1Y")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	// 2025-03-30 is the spring DST change in Denmark, the day has 23 hours.
	now := time.Date(2025, time.March, 30, 14, 20, 0, 0, time.UTC)

	tests := []struct {
		name   string
		anchor Anchor
		offset Offset
		want   time.Time
	}{
		{"now", Now, Offset{}, now},
		{"utc now minus 24h", UtcNow, Offset{Duration: -24 * time.Hour}, now.Add(-24 * time.Hour)},
		{"start of day", StartOfDay, Offset{}, time.Date(2025, time.March, 29, 23, 0, 0, 0, time.UTC)},
		{"start of day minus one calendar day", StartOfDay, Offset{Days: -1}, time.Date(2025, time.March, 28, 23, 0, 0, 0, time.UTC)},
		{"utc start of day", UtcStartOfDay, Offset{}, time.Date(2025, time.March, 30, 0, 0, 0, 0, time.UTC)},
		{"start of month", StartOfMonth, Offset{}, time.Date(2025, time.February, 28, 23, 0, 0, 0, time.UTC)},
		{"start of year", StartOfYear, Offset{}, time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Relative(tt.anchor, tt.offset).Resolve(now, copenhagen)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got.UTC())
		})
	}

	abs, err := AbsoluteDate("2025-01-31", Offset{Duration: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-31T01:00", abs.Format(now, copenhagen))
}

func TestGLN(t *testing.T) {
	tests := []struct {
		gln  GLN
		want bool
	}{
		{EnerginetGLN, true},
		{"5790000610099", true},
		{"5790001089030", true},
		{"5790000705184", true},
		{"5790000392261", true},
		{"5790000432753", false},
		{"579000043275", false},
		{"57900004327a2", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.gln), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.gln.IsValid())
		})
	}
	assert.True(t, GLN("  ").IsEmpty())
}

func newBuilder(override *Override) Builder {
	return Builder{
		PriceArea:      "DK1",
		Currency:       "DKK",
		GridCompanyGLN: "5790000610099",
		EnerginetGLN:   EnerginetGLN,
		HistoricHours:  24,
		GridOverride:   override,
	}
}

func TestSpotPriceSpec(t *testing.T) {
	now := time.Date(2025, time.February, 3, 10, 0, 0, 0, time.UTC)
	b := newBuilder(nil)

	// Historic hours missing: start 24 hours back.
	s := b.SpotPrice(false)
	assert.Equal(t, types.SpotPrice, s.Series)
	assert.Equal(t, now.Add(-24*time.Hour), s.Start.Resolve(now, time.UTC))

	// Historic hours cached: forward only.
	s = b.SpotPrice(true)
	assert.Equal(t, now, s.Start.Resolve(now, time.UTC))
	assert.Equal(t, "DK1", s.PriceArea)
	assert.Equal(t, "DKK", s.Currency)
}

func TestTariffSpecs(t *testing.T) {
	now := time.Date(2025, time.February, 3, 10, 0, 0, 0, time.UTC)
	startOfYesterday := time.Date(2025, time.February, 1, 23, 0, 0, 0, time.UTC)
	b := newBuilder(nil)

	tests := []struct {
		series types.Series
		gln    GLN
		codes  []string
		notes  []string
	}{
		{types.GridTariff, "5790000610099", []string{"DT_C_01"}, nil},
		{types.SystemTariff, EnerginetGLN, []string{"41000"}, []string{"Systemtarif"}},
		{types.TransmissionGridTariff, EnerginetGLN, []string{"40000"}, []string{"Transmissions nettarif"}},
		{types.ElectricityTax, EnerginetGLN, []string{"EA-001"}, []string{"Elafgift"}},
		{types.ReducedElectricityTax, EnerginetGLN, []string{"EA-001"}, []string{"Reduceret elafgift"}},
	}

	for _, tt := range tests {
		t.Run(tt.series.String(), func(t *testing.T) {
			s, err := b.Tariff(tt.series)
			require.NoError(t, err)
			assert.Equal(t, tt.gln, s.GLN)
			assert.Equal(t, tt.codes, s.Filter.ChargeTypeCodes)
			assert.Equal(t, tt.notes, s.Filter.Notes)
			assert.True(t, startOfYesterday.Equal(s.Start.Resolve(now, copenhagen)))
		})
	}

	_, err := b.Tariff(types.SpotPrice)
	assert.ErrorIs(t, err, types.ErrUnsupportedSeries)

	b.GridCompanyGLN = ""
	_, err = b.Tariff(types.GridTariff)
	assert.ErrorIs(t, err, ErrNoGLN)
}

func TestGridTariffOverride(t *testing.T) {
	now := time.Date(2025, time.February, 3, 10, 0, 0, 0, time.UTC)

	t.Run("codes replace the filter", func(t *testing.T) {
		o, err := ParseOverride("2025-01-01", "", []string{"CD", " ", "CD"}, []string{"Nettarif C"})
		require.NoError(t, err)
		s, err := newBuilder(o).Tariff(types.GridTariff)
		require.NoError(t, err)
		assert.Equal(t, []string{"CD"}, s.Filter.ChargeTypeCodes)
		assert.Equal(t, []string{"Nettarif C"}, s.Filter.Notes)
		assert.Equal(t, "2024-12-31T00:00", s.Start.Format(now, copenhagen))
	})

	t.Run("start only keeps the company filter", func(t *testing.T) {
		o, err := ParseOverride("StartOfMonth", "", nil, nil)
		require.NoError(t, err)
		s, err := newBuilder(o).Tariff(types.GridTariff)
		require.NoError(t, err)
		assert.Equal(t, []string{"DT_C_01"}, s.Filter.ChargeTypeCodes)
		assert.Equal(t, "2025-01-31T00:00", s.Start.Format(now, copenhagen))
	})

	t.Run("nothing overridden", func(t *testing.T) {
		o, err := ParseOverride(" ", "", []string{""}, nil)
		require.NoError(t, err)
		assert.Nil(t, o)
	})

	t.Run("invalid start", func(t *testing.T) {
		_, err := ParseOverride("StartOfWeek", "", nil, nil)
		assert.Error(t, err)
	})
}
