package tradingprovider

import (
	"testing"

	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type TradingSystemProviderTestSuite struct {
	suite.Suite
}

func TestTradingSystemProviderSuite(t *testing.T) {
	suite.Run(t, new(TradingSystemProviderTestSuite))
}

// Unit Tests - Provider Registry

func (suite *TradingSystemProviderTestSuite) TestGetSupportedProviders() {
	providers := GetSupportedProviders()
	suite.Equal([]string{"binance-live", "binance-paper", "simulated"}, providers)
}

func (suite *TradingSystemProviderTestSuite) TestGetProviderInfo() {
	tests := []struct {
		name          string
		provider      string
		expectedName  string
		expectedPaper bool
		expectError   bool
	}{
		{name: "paper", provider: "binance-paper", expectedName: "Binance Futures Testnet", expectedPaper: true},
		{name: "live", provider: "binance-live", expectedName: "Binance Futures Live", expectedPaper: false},
		{name: "simulated", provider: "simulated", expectedName: "Simulated Exchange", expectedPaper: true},
		{name: "unsupported", provider: "kraken", expectError: true},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			info, err := GetProviderInfo(tt.provider)
			if tt.expectError {
				suite.Error(err)
				suite.Contains(err.Error(), "unsupported trading provider")

				return
			}

			suite.Require().NoError(err)
			suite.Equal(tt.provider, info.Name)
			suite.Equal(tt.expectedName, info.DisplayName)
			suite.Equal(tt.expectedPaper, info.IsPaperTrading)
		})
	}
}

func (suite *TradingSystemProviderTestSuite) TestGetProviderConfigSchema() {
	schema, err := GetProviderConfigSchema("binance-paper")
	suite.Require().NoError(err)
	suite.Contains(schema, "apiKey")
	suite.Contains(schema, "secretKey")
	suite.Contains(schema, "requestsPerSecond")

	schema, err = GetProviderConfigSchema("simulated")
	suite.Require().NoError(err)
	suite.Contains(schema, "prices")

	_, err = GetProviderConfigSchema("unsupported-provider")
	suite.Error(err)
}

func (suite *TradingSystemProviderTestSuite) TestParseProviderConfig() {
	config, err := ParseProviderConfig("binance-live", `{"apiKey": "test-api-key", "secretKey": "test-secret-key", "pricePrecision": 2}`)
	suite.Require().NoError(err)

	binanceConfig, ok := config.(*BinanceProviderConfig)
	suite.Require().True(ok)
	suite.Equal("test-api-key", binanceConfig.ApiKey)
	suite.Equal(int32(2), binanceConfig.PricePrecision)

	_, err = ParseProviderConfig("binance-paper", `{"apiKey": "test-api-key"}`)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	_, err = ParseProviderConfig("binance-paper", `{not json`)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	config, err = ParseProviderConfig("simulated", `{"prices": {"BTCUSDT": "50000"}, "disableNativeOco": true}`)
	suite.Require().NoError(err)

	simConfig, ok := config.(*SimulatedProviderConfig)
	suite.Require().True(ok)
	suite.Equal("50000", simConfig.Prices["BTCUSDT"])
	suite.True(simConfig.DisableNativeOCO)

	_, err = ParseProviderConfig("unsupported-provider", `{}`)
	suite.Error(err)
}

func (suite *TradingSystemProviderTestSuite) TestNewTradingSystemProvider() {
	binanceConfig := &BinanceProviderConfig{ApiKey: "key", SecretKey: "secret"}

	paper, err := NewTradingSystemProvider(ProviderBinancePaper, binanceConfig)
	suite.Require().NoError(err)
	suite.IsType(&BinanceFuturesProvider{}, paper)

	live, err := NewTradingSystemProvider(ProviderBinanceLive, binanceConfig)
	suite.Require().NoError(err)
	suite.False(live.SupportsNativeOCO())

	sim, err := NewTradingSystemProvider(ProviderSimulated, &SimulatedProviderConfig{})
	suite.Require().NoError(err)
	suite.True(sim.SupportsNativeOCO())

	_, err = NewTradingSystemProvider(ProviderBinancePaper, &SimulatedProviderConfig{})
	suite.Error(err)

	_, err = NewTradingSystemProvider(ProviderSimulated, binanceConfig)
	suite.Error(err)

	_, err = NewTradingSystemProvider("kraken", nil)
	suite.Error(err)
}

func (suite *TradingSystemProviderTestSuite) TestConfigIsCopied() {
	config := &BinanceProviderConfig{ApiKey: "key", SecretKey: "secret", QuantityPrecision: 3}

	provider, err := NewTradingSystemProvider(ProviderBinancePaper, config)
	suite.Require().NoError(err)

	config.QuantityPrecision = 1

	futuresProvider, ok := provider.(*BinanceFuturesProvider)
	suite.Require().True(ok)
	suite.Equal(int32(3), futuresProvider.quantityPrecision)
}
