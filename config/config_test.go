package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/icodeforyou/energiprice-go/cache"
	"github.com/icodeforyou/energiprice-go/hours"
	"github.com/icodeforyou/energiprice-go/hours/hourstest"
	"github.com/icodeforyou/energiprice-go/query"
	"github.com/icodeforyou/energiprice-go/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
api:
  address: 127.0.0.1
  port: 8080
database:
  path: /tmp/energiprice.db
energi_data_service:
  price_area: DK1
  currency: DKK
  grid_company_gln: "5790000610099"
  linked: [spot-price, grid_tariff]
  grid_tariff_override:
    start: StartOfYear
schedule:
  publication_time: "13:00"
mqtt:
  enabled: true
  host: broker
  port: 1883
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	c, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, int16(8080), c.Api.Port)
	assert.Equal(t, 90, c.Database.GetDataRetentionDays())
	assert.Equal(t, 10000, c.Logging.GetDbMaxEntries())
	assert.Equal(t, "energiprice", c.Mqtt.GetTopicPrefix())

	linked, err := c.EnergiDataService.GetLinked()
	require.NoError(t, err)
	assert.Equal(t, types.NewSeriesSet(types.SpotPrice, types.GridTariff), linked)

	b := c.Builder()
	assert.Equal(t, "DK1", b.PriceArea)
	assert.Equal(t, query.EnerginetGLN, b.EnerginetGLN)
	assert.Equal(t, 24, b.HistoricHours)
	require.NotNil(t, b.GridOverride)
	assert.Equal(t, query.StartOfYear, b.GridOverride.Start.Anchor())

	p, err := c.Policy()
	require.NoError(t, err)
	assert.Equal(t, 13, p.Publication.Hour)
	assert.Equal(t, "CET", p.Publication.Location.String())
	assert.Equal(t, "Europe/Copenhagen", p.Local.String())
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("ENERGI_DATA_SERVICE_PRICE_AREA", "DK2")
	t.Setenv("ENERGI_DATA_SERVICE_CURRENCY", "EUR")

	c, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)
	assert.Equal(t, "DK2", c.EnergiDataService.PriceArea)
	assert.Equal(t, "EUR", c.EnergiDataService.Currency)
}

func TestValidate(t *testing.T) {
	str := func(s string) *string { return &s }
	num := func(n int) *int { return &n }
	valid := func() AppConfig {
		return AppConfig{EnergiDataService: AppConfigEnergiDataService{PriceArea: "DK2", Currency: "EUR"}}
	}

	tests := []struct {
		name    string
		modify  func(c *AppConfig)
		wantErr string
	}{
		{"defaults", func(c *AppConfig) {}, ""},
		{"price area", func(c *AppConfig) { c.EnergiDataService.PriceArea = "SE3" }, "price area"},
		{"currency", func(c *AppConfig) { c.EnergiDataService.Currency = "SEK" }, "currency"},
		{"grid company gln", func(c *AppConfig) { c.EnergiDataService.GridCompanyGLN = "5790000610098" }, "grid company GLN"},
		{"energinet gln", func(c *AppConfig) { c.EnergiDataService.EnerginetGLN = str("123") }, "Energinet GLN"},
		{"linked", func(c *AppConfig) { c.EnergiDataService.Linked = []string{"gas-price"} }, "unknown series"},
		{"override", func(c *AppConfig) {
			c.EnergiDataService.GridTariffOverride = &AppConfigGridTariffOverride{Offset: "P1X"}
		}, "grid tariff override"},
		{"timezone", func(c *AppConfig) { c.Schedule.Timezone = str("Mars/Olympus") }, "schedule timezone"},
		{"publication", func(c *AppConfig) { c.Schedule.PublicationTime = str("1pm") }, "time of day"},
		{"mqtt", func(c *AppConfig) { c.Mqtt.Enabled = true }, "mqtt host"},
		{"zero historic hours", func(c *AppConfig) { c.EnergiDataService.HistoricHours = num(0) }, "historic hours"},
		{"negative historic hours", func(c *AppConfig) { c.EnergiDataService.HistoricHours = num(-2) }, "historic hours"},
		{"historic hours", func(c *AppConfig) { c.EnergiDataService.HistoricHours = num(48) }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestCacheAndBuilderShareHistoricHours(t *testing.T) {
	num := func(n int) *int { return &n }
	now := time.Date(2025, time.February, 3, 14, 20, 0, 0, time.UTC)

	tests := []struct {
		name     string
		historic *int
		want     int
	}{
		{"unset", nil, cache.DefaultHistoricHours},
		{"zero", num(0), cache.DefaultHistoricHours},
		{"negative", num(-5), cache.DefaultHistoricHours},
		{"configured", num(36), 36},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := AppConfig{EnergiDataService: AppConfigEnergiDataService{
				PriceArea:     "DK1",
				Currency:      "DKK",
				HistoricHours: tt.historic,
			}}
			b := c.Builder()
			cc := cache.New(hourstest.NewClock(now), c.EnergiDataService.GetHistoricHours())

			assert.Equal(t, tt.want, b.HistoricHours)
			assert.Equal(t, tt.want, cc.HistoricHours())

			// The lookback download has to reach the bucket the coverage check looks for.
			start := b.SpotPrice(false).Start.Resolve(now, time.UTC)
			assert.Equal(t, cc.FirstHistoricHour(), hours.FromTime(start))
		})
	}
}

func TestInvalidOverrideFallsBackToDefaultFilter(t *testing.T) {
	c := AppConfig{EnergiDataService: AppConfigEnergiDataService{
		PriceArea:          "DK1",
		Currency:           "DKK",
		GridTariffOverride: &AppConfigGridTariffOverride{Start: "not a date"},
	}}
	assert.Nil(t, c.Builder().GridOverride)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	_, err := Load(writeConfig(t, "energi_data_service:\n  price_area: DK3\n  currency: DKK\n"))
	assert.ErrorContains(t, err, "price area")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "unable to read config file")
}

func TestWatch(t *testing.T) {
	path := writeConfig(t, validConfig)

	changed := make(chan *AppConfig, 4)
	require.NoError(t, Watch(path, func(c *AppConfig) { changed <- c }))

	updated := []byte(validConfig + "nordpool:\n  enabled: true\n")
	require.NoError(t, os.WriteFile(path, updated, 0644))

	select {
	case c := <-changed:
		assert.True(t, c.Nordpool.Enabled)
	case <-time.After(5 * time.Second):
		t.Fatal("no config change received")
	}
}
