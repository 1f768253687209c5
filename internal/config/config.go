// Package config loads the orderbot configuration file and applies environment overrides.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-orderbot/internal/execution"
	"github.com/rxtech-lab/argo-orderbot/internal/logger"
	tradingprovider "github.com/rxtech-lab/argo-orderbot/internal/trading/provider"
	"github.com/rxtech-lab/argo-orderbot/internal/types"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"github.com/rxtech-lab/argo-orderbot/pkg/schema"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvBinanceAPIKey    = "BINANCE_API_KEY"
	EnvBinanceSecretKey = "BINANCE_SECRET_KEY"
	EnvProvider         = "ORDERBOT_PROVIDER"
)

// JournalConfig configures the DuckDB audit journal.
type JournalConfig struct {
	// Path is the journal database file. Empty disables the journal.
	Path string `yaml:"path" json:"path" jsonschema:"title=Journal Path,description=DuckDB file the audit events are appended to; empty disables the journal"`
	// Export writes the journal to this Parquet file when the command finishes.
	Export string `yaml:"export" json:"export" jsonschema:"title=Parquet Export,description=Parquet file the journal is exported to after each command"`
}

// LogConfig configures the process logger and the audit pipeline.
type LogConfig struct {
	Level string `yaml:"level" json:"level" jsonschema:"title=Log Level,enum=debug,enum=info,enum=warn,enum=error,default=info" validate:"oneof=debug info warn error"`
	// AuditBuffer is the number of audit events queued before new ones are dropped.
	AuditBuffer int `yaml:"audit_buffer" json:"audit_buffer" jsonschema:"title=Audit Buffer,description=Audit events queued for the journal before new ones are dropped,minimum=0,default=1024" validate:"gte=0"`
}

// OCOConfig configures OCO placement and the fill watcher.
type OCOConfig struct {
	CheckMarketSides bool          `yaml:"check_market_sides" json:"check_market_sides" jsonschema:"title=Check Market Sides,description=Require the market price between take-profit and stop-loss,default=true"`
	WatchInterval    time.Duration `yaml:"watch_interval" json:"watch_interval" jsonschema:"title=Watch Interval,description=Poll interval of the OCO fill watcher" validate:"gte=0"`
}

// TWAPConfig configures the TWAP scheduler.
type TWAPConfig struct {
	RefreshFills bool `yaml:"refresh_fills" json:"refresh_fills" jsonschema:"title=Refresh Fills,description=Query every slice once more after placement,default=false"`
}

// Config is the orderbot configuration file.
type Config struct {
	Provider  string                                  `yaml:"provider" json:"provider" jsonschema:"title=Provider,enum=binance-paper,enum=binance-live,enum=simulated,default=binance-paper" validate:"required,oneof=binance-paper binance-live simulated"`
	Binance   tradingprovider.BinanceProviderConfig   `yaml:"binance" json:"binance" validate:"-"`
	Simulated tradingprovider.SimulatedProviderConfig `yaml:"simulated" json:"simulated" validate:"-"`
	Retry     tradingprovider.RetryPolicy             `yaml:"retry" json:"retry"`
	Journal   JournalConfig                           `yaml:"journal" json:"journal"`
	Log       LogConfig                               `yaml:"log" json:"log"`
	OCO       OCOConfig                               `yaml:"oco" json:"oco"`
	TWAP      TWAPConfig                              `yaml:"twap" json:"twap"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	engine := execution.DefaultConfig()

	return Config{
		Provider: string(tradingprovider.ProviderBinancePaper),
		Binance: tradingprovider.BinanceProviderConfig{
			ApiKey:            "",
			SecretKey:         "",
			BaseURL:           "",
			QuantityPrecision: 3,
			PricePrecision:    2,
			RequestsPerSecond: 10,
		},
		Simulated: tradingprovider.SimulatedProviderConfig{
			Prices:           map[string]string{},
			DisableNativeOCO: false,
		},
		Retry: tradingprovider.DefaultRetryPolicy(),
		Journal: JournalConfig{
			Path:   "",
			Export: "",
		},
		Log: LogConfig{
			Level:       "info",
			AuditBuffer: 1024,
		},
		OCO: OCOConfig{
			CheckMarketSides: engine.CheckMarketSides,
			WatchInterval:    engine.WatchInterval,
		},
		TWAP: TWAPConfig{
			RefreshFills: engine.RefreshTWAPFills,
		},
	}
}

// Overrides holds command line values. They win over the file and the environment.
type Overrides struct {
	Provider string
	LogLevel string
	Journal  string
	Retries  optional.Option[int]
}

// Apply copies the set overrides into config.
func (o Overrides) Apply(config *Config) {
	if o.Provider != "" {
		config.Provider = o.Provider
	}

	if o.LogLevel != "" {
		config.Log.Level = o.LogLevel
	}

	if o.Journal != "" {
		config.Journal.Path = o.Journal
	}

	if o.Retries.IsSome() {
		config.Retry.MaxRetries = o.Retries.Unwrap()
	}
}

// Load reads the file at path over the defaults, applies the environment and
// the overrides, and validates the result. An empty path loads the defaults.
// JSON files are read as YAML, so both formats use the same snake_case keys.
func Load(path string, overrides Overrides) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv, overrides)
}

// LoadWithEnv is Load with a custom environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool), overrides Overrides) (Config, error) {
	config := Default()

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
		}

		if err := Parse(content, &config); err != nil {
			return Config{}, err
		}
	}

	config.ApplyEnv(lookup)
	overrides.Apply(&config)

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Parse decodes YAML or JSON content into config, keeping the values the
// content does not mention.
func Parse(content []byte, config *Config) error {
	if err := yaml.Unmarshal(content, config); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	return nil
}

// ApplyEnv overrides the provider and the Binance credentials from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if value, ok := lookup(EnvProvider); ok && value != "" {
		c.Provider = value
	}

	if value, ok := lookup(EnvBinanceAPIKey); ok && value != "" {
		c.Binance.ApiKey = value
	}

	if value, ok := lookup(EnvBinanceSecretKey); ok && value != "" {
		c.Binance.SecretKey = value
	}
}

// Validate checks the whole file. Provider sections are only checked for the
// selected provider.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	switch tradingprovider.ProviderType(c.Provider) {
	case tradingprovider.ProviderBinancePaper, tradingprovider.ProviderBinanceLive:
		return c.Binance.Validate()
	case tradingprovider.ProviderSimulated:
		return c.Simulated.Validate()
	}

	return nil
}

// ProviderConfig returns the section of the selected provider in the shape
// NewTradingSystemProvider expects.
func (c *Config) ProviderConfig() any {
	switch tradingprovider.ProviderType(c.Provider) {
	case tradingprovider.ProviderSimulated:
		simulated := c.Simulated

		return &simulated
	default:
		binance := c.Binance

		return &binance
	}
}

// QuantityPrecision returns the number of quantity decimals the selected
// provider sends without truncation.
func (c *Config) QuantityPrecision() int32 {
	if c.usesBinance() && c.Binance.QuantityPrecision > 0 {
		return c.Binance.QuantityPrecision
	}

	return types.DefaultQuantityPrecision
}

// PricePrecision returns the number of price decimals the selected provider sends.
func (c *Config) PricePrecision() int32 {
	if c.usesBinance() && c.Binance.PricePrecision > 0 {
		return c.Binance.PricePrecision
	}

	return types.DefaultPricePrecision
}

func (c *Config) usesBinance() bool {
	switch tradingprovider.ProviderType(c.Provider) {
	case tradingprovider.ProviderBinancePaper, tradingprovider.ProviderBinanceLive:
		return true
	default:
		return false
	}
}

// NewProvider builds the selected provider, wrapped for retries when the
// retry policy asks for them.
func (c *Config) NewProvider(log *logger.Logger) (tradingprovider.TradingSystemProvider, error) {
	provider, err := tradingprovider.NewTradingSystemProvider(tradingprovider.ProviderType(c.Provider), c.ProviderConfig())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to create trading provider", err)
	}

	return tradingprovider.NewRetryingProvider(provider, c.Retry, log), nil
}

// EngineConfig returns the execution engine options.
func (c *Config) EngineConfig() execution.Config {
	return execution.Config{
		CheckMarketSides: c.OCO.CheckMarketSides,
		WatchInterval:    c.OCO.WatchInterval,
		RefreshTWAPFills: c.TWAP.RefreshFills,
	}
}

// GenerateSchemaJSON returns the JSON schema of the configuration file.
func GenerateSchemaJSON() (string, error) {
	return schema.ToIndentedJSONSchema(Config{})
}

// SampleYAML renders the defaults as a commented starting point for a config file.
func SampleYAML() ([]byte, error) {
	content, err := yaml.Marshal(Default())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to render sample config", err)
	}

	return append([]byte("# orderbot configuration\n"), content...), nil
}
