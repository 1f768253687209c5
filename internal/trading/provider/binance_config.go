package tradingprovider

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
)

// BinanceProviderConfig contains configuration for Binance futures trading.
// It is copied into the provider at construction and never mutated afterwards.
type BinanceProviderConfig struct {
	ApiKey    string `yaml:"api_key" json:"apiKey" jsonschema:"title=API Key,description=Binance API key" validate:"required"`
	SecretKey string `yaml:"secret_key" json:"secretKey" jsonschema:"title=Secret Key,description=Binance API secret key" validate:"required"`
	// BaseURL overrides the endpoint, e.g. for a local mock server.
	BaseURL           string  `yaml:"base_url" json:"baseUrl,omitempty" jsonschema:"title=Base URL,description=Overrides the futures REST endpoint" validate:"omitempty,url"`
	QuantityPrecision int32   `yaml:"quantity_precision" json:"quantityPrecision,omitempty" jsonschema:"title=Quantity Precision,description=Decimals sent for quantities,minimum=0,maximum=16,default=8" validate:"gte=0,lte=16"`
	PricePrecision    int32   `yaml:"price_precision" json:"pricePrecision,omitempty" jsonschema:"title=Price Precision,description=Decimals sent for prices,minimum=0,maximum=16,default=8" validate:"gte=0,lte=16"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requestsPerSecond,omitempty" jsonschema:"title=Requests Per Second,description=Client side request rate limit; 0 uses the default,minimum=0,default=10" validate:"gte=0"`
}

// Validate validates the BinanceProviderConfig struct.
func (c *BinanceProviderConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid binance provider config", err)
	}

	return nil
}

// parseBinanceConfig parses a JSON configuration string into a BinanceProviderConfig.
func parseBinanceConfig(jsonConfig string) (*BinanceProviderConfig, error) {
	var config BinanceProviderConfig
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse binance config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
