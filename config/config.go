package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/icodeforyou/energiprice-go/cache"
	"github.com/icodeforyou/energiprice-go/hours"
	"github.com/icodeforyou/energiprice-go/logging"
	"github.com/icodeforyou/energiprice-go/query"
	"github.com/icodeforyou/energiprice-go/retry"
	"github.com/icodeforyou/energiprice-go/types"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConfigApi struct {
	Address string
	Port    int16
}

type AppConfigDatabase struct {
	Path string
	// How many days published prices should be stored before they get purged
	DataRetentionDays *int `mapstructure:"data_retention_days"`
	// How many days daily backup files should be stored before they get deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
}

func (d AppConfigDatabase) GetDataRetentionDays() int {
	if d.DataRetentionDays == nil {
		return 90
	}
	return *d.DataRetentionDays
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	if d.BackupRetentionDays == nil {
		return 30
	}
	return *d.BackupRetentionDays
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	return logging.AttrFormatFromString(l.DbAttrsFormat)
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

// AppConfigGridTariffOverride replaces the built in grid tariff filter of the
// grid company. Codes or notes replace the whole filter, start alone only
// moves its start.
type AppConfigGridTariffOverride struct {
	Start           string   `mapstructure:"start"`             // "StartOfDay", "StartOfMonth", ... or "2024-01-01"
	Offset          string   `mapstructure:"offset"`            // ISO 8601 duration, e.g. "-P1D"
	ChargeTypeCodes []string `mapstructure:"charge_type_codes"` // e.g. ["DT_C_01"]
	Notes           []string `mapstructure:"notes"`             // e.g. ["Nettarif C time"]
}

type AppConfigEnergiDataService struct {
	PriceArea      string  `mapstructure:"price_area"`       // "DK1" or "DK2"
	Currency       string  `mapstructure:"currency"`         // "DKK" or "EUR"
	GridCompanyGLN string  `mapstructure:"grid_company_gln"` // GLN of the local grid company
	EnerginetGLN   *string `mapstructure:"energinet_gln"`    // default: 5790000432752
	// Hours before the current hour that are kept and downloaded, default: 24
	HistoricHours *int `mapstructure:"historic_hours"`
	// Series with a consumer: "spot-price", "grid-tariff", "system-tariff",
	// "transmission-grid-tariff", "electricity-tax", "reduced-electricity-tax"
	Linked []string `mapstructure:"linked"`
	// Publish combined hourly prices, which needs every series
	HourlyPrices bool `mapstructure:"hourly_prices"`
	// Use the reduced electricity tax when summing total prices
	ReducedElectricityTax bool                         `mapstructure:"reduced_electricity_tax"`
	GridTariffOverride    *AppConfigGridTariffOverride `mapstructure:"grid_tariff_override"`
}

func (e AppConfigEnergiDataService) GetEnerginetGLN() query.GLN {
	if e.EnerginetGLN == nil || strings.TrimSpace(*e.EnerginetGLN) == "" {
		return query.EnerginetGLN
	}
	return query.GLN(strings.TrimSpace(*e.EnerginetGLN))
}

// GetHistoricHours is shared by the cache and the query builder, so both
// agree on the first historic hour.
func (e AppConfigEnergiDataService) GetHistoricHours() int {
	if e.HistoricHours == nil || *e.HistoricHours < 1 {
		return cache.DefaultHistoricHours
	}
	return *e.HistoricHours
}

func (e AppConfigEnergiDataService) GetLinked() (types.SeriesSet, error) {
	set := types.NewSeriesSet()
	for _, name := range e.Linked {
		s, err := types.ParseSeries(name)
		if err != nil {
			return nil, err
		}
		set[s] = struct{}{}
	}
	return set, nil
}

// GetGridOverride returns nil when nothing is overridden.
func (e AppConfigEnergiDataService) GetGridOverride() (*query.Override, error) {
	o := e.GridTariffOverride
	if o == nil {
		return nil, nil
	}
	return query.ParseOverride(o.Start, o.Offset, o.ChargeTypeCodes, o.Notes)
}

type AppConfigSchedule struct {
	// Local time zone of the host, used for the midnight safety refresh, default: Europe/Copenhagen
	Timezone *string `mapstructure:"timezone"`
	// When tomorrow's spot prices are expected, default: "13:00"
	PublicationTime *string `mapstructure:"publication_time"`
	// Zone of the publication time, default: CET
	PublicationTimezone *string `mapstructure:"publication_timezone"`
	// Cron spec of the daily maintenance, default: "30 2 * * *"
	MaintenanceAt *string `mapstructure:"maintenance_at"`
}

func (s AppConfigSchedule) GetTimezone() string {
	if s.Timezone == nil {
		return "Europe/Copenhagen"
	}
	return *s.Timezone
}

func (s AppConfigSchedule) GetMaintenanceAt() string {
	if s.MaintenanceAt == nil {
		return "30 2 * * *"
	}
	return *s.MaintenanceAt
}

func (s AppConfigSchedule) GetLocation() (*time.Location, error) {
	return time.LoadLocation(s.GetTimezone())
}

func (s AppConfigSchedule) GetPublication() (hours.DailyTime, error) {
	at, zone := "13:00", "CET"
	if s.PublicationTime != nil {
		at = *s.PublicationTime
	}
	if s.PublicationTimezone != nil {
		zone = *s.PublicationTimezone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return hours.DailyTime{}, fmt.Errorf("publication timezone: %w", err)
	}
	return hours.ParseDailyTime(at, loc)
}

type AppConfigMqtt struct {
	Enabled     bool
	Host        string
	Port        int16
	Username    string
	Password    string
	TopicPrefix *string `mapstructure:"topic_prefix"` // default: "energiprice"
}

func (m AppConfigMqtt) GetTopicPrefix() string {
	if m.TopicPrefix == nil {
		return "energiprice"
	}
	return strings.TrimSuffix(*m.TopicPrefix, "/")
}

type AppConfigNordpool struct {
	// Use Nord Pool as fallback for spot prices
	Enabled bool
}

type AppConfig struct {
	Api               AppConfigApi
	Database          AppConfigDatabase
	Logging           AppConfigLogging           `mapstructure:"logging"`
	EnergiDataService AppConfigEnergiDataService `mapstructure:"energi_data_service"`
	Schedule          AppConfigSchedule          `mapstructure:"schedule"`
	Mqtt              AppConfigMqtt              `mapstructure:"mqtt"`
	Nordpool          AppConfigNordpool          `mapstructure:"nordpool"`
}

// Validate checks everything the scheduler can't recover from at runtime.
func (c *AppConfig) Validate() error {
	var errs []error
	eds := c.EnergiDataService

	if !slices.Contains([]string{"DK1", "DK2"}, eds.PriceArea) {
		errs = append(errs, fmt.Errorf("price area must be DK1 or DK2, got %q", eds.PriceArea))
	}
	if !slices.Contains([]string{"DKK", "EUR"}, eds.Currency) {
		errs = append(errs, fmt.Errorf("currency must be DKK or EUR, got %q", eds.Currency))
	}
	if gln := query.GLN(eds.GridCompanyGLN); !gln.IsEmpty() && !gln.IsValid() {
		errs = append(errs, fmt.Errorf("invalid grid company GLN %q", eds.GridCompanyGLN))
	}
	if gln := eds.GetEnerginetGLN(); !gln.IsValid() {
		errs = append(errs, fmt.Errorf("invalid Energinet GLN %q", gln))
	}
	if eds.HistoricHours != nil && *eds.HistoricHours < 1 {
		errs = append(errs, fmt.Errorf("historic hours must be at least 1, got %d", *eds.HistoricHours))
	}
	if _, err := eds.GetLinked(); err != nil {
		errs = append(errs, err)
	}
	if _, err := eds.GetGridOverride(); err != nil {
		errs = append(errs, fmt.Errorf("grid tariff override: %w", err))
	}
	if _, err := c.Schedule.GetLocation(); err != nil {
		errs = append(errs, fmt.Errorf("schedule timezone: %w", err))
	}
	if _, err := c.Schedule.GetPublication(); err != nil {
		errs = append(errs, err)
	}
	if c.Mqtt.Enabled && c.Mqtt.Host == "" {
		errs = append(errs, fmt.Errorf("mqtt host is required when mqtt is enabled"))
	}

	return errors.Join(errs...)
}

// Builder returns the query builder, falling back to the built in grid
// tariff filter when the override can't be parsed.
func (c *AppConfig) Builder() query.Builder {
	eds := c.EnergiDataService
	override, err := eds.GetGridOverride()
	if err != nil {
		slog.Default().Warn("ignoring invalid grid tariff override", slog.Any("error", err))
		override = nil
	}
	return query.Builder{
		PriceArea:      eds.PriceArea,
		Currency:       eds.Currency,
		GridCompanyGLN: query.GLN(eds.GridCompanyGLN),
		EnerginetGLN:   eds.GetEnerginetGLN(),
		HistoricHours:  eds.GetHistoricHours(),
		GridOverride:   override,
	}
}

func (c *AppConfig) Policy() (retry.Policy, error) {
	publication, err := c.Schedule.GetPublication()
	if err != nil {
		return retry.Policy{}, err
	}
	local, err := c.Schedule.GetLocation()
	if err != nil {
		return retry.Policy{}, err
	}
	return retry.NewPolicy(publication, local), nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var c AppConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

// Load reads the yaml config, overridden by environment variables such as
// ENERGI_DATA_SERVICE_PRICE_AREA. A .env file in the working directory is
// loaded into the environment first.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unable to load .env file: %w", err)
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}
	return decode(v)
}

// Watch calls onChange with the new config every time the config file is
// written. Invalid edits are logged and skipped.
func Watch(path string, onChange func(*AppConfig)) error {
	logger := slog.Default().With("module", "config")

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("unable to read config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		c, err := decode(v)
		if err != nil {
			logger.Error("ignoring config change", slog.String("file", e.Name), slog.Any("error", err))
			return
		}
		logger.Info("config changed", slog.String("file", e.Name))
		onChange(c)
	})
	v.WatchConfig()
	return nil
}
