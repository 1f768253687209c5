package tradingprovider

import (
	"context"
	"fmt"
	"sort"

	"github.com/rxtech-lab/argo-orderbot/internal/types"
	"github.com/rxtech-lab/argo-orderbot/pkg/schema"
	"github.com/shopspring/decimal"
)

// TradingSystemProvider is the exchange collaborator used by the execution engine.
// Implementations must be safe for concurrent use by independent strategies.
type TradingSystemProvider interface {
	// PlaceOrder places a single order and returns the exchange's view of it.
	PlaceOrder(ctx context.Context, order types.OrderRequest) (types.OrderHandle, error)
	// PlaceOCO places a linked take-profit / stop-loss pair atomically.
	// Only valid when SupportsNativeOCO returns true.
	PlaceOCO(ctx context.Context, takeProfit, stopLoss types.OrderRequest) (types.OrderHandle, types.OrderHandle, error)
	// CancelOrder cancels an open order
	CancelOrder(ctx context.Context, order types.OrderHandle) error
	// GetOrderStatus returns a fresh view of an order
	GetOrderStatus(ctx context.Context, order types.OrderHandle) (types.OrderHandle, error)
	// GetMarketPrice returns the latest traded price for a symbol
	GetMarketPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	// SupportsNativeOCO reports whether the exchange links OCO legs itself.
	SupportsNativeOCO() bool
}

type ProviderType string

const (
	ProviderBinancePaper ProviderType = "binance-paper"
	ProviderBinanceLive  ProviderType = "binance-live"
	ProviderSimulated    ProviderType = "simulated"
)

type ProviderInfo struct {
	Name           string `json:"name"`
	DisplayName    string `json:"displayName"`
	Description    string `json:"description"`
	IsPaperTrading bool   `json:"isPaperTrading"`
}

var providerRegistry = map[ProviderType]ProviderInfo{
	ProviderBinancePaper: {
		Name:           string(ProviderBinancePaper),
		DisplayName:    "Binance Futures Testnet",
		Description:    "Binance USD-M futures testnet for paper trading without real funds",
		IsPaperTrading: true,
	},
	ProviderBinanceLive: {
		Name:           string(ProviderBinanceLive),
		DisplayName:    "Binance Futures Live",
		Description:    "Binance USD-M futures with real funds",
		IsPaperTrading: false,
	},
	ProviderSimulated: {
		Name:           string(ProviderSimulated),
		DisplayName:    "Simulated Exchange",
		Description:    "In-memory exchange with settable prices, for dry runs and tests",
		IsPaperTrading: true,
	},
}

// GetSupportedProviders returns the registered provider names in sorted order.
func GetSupportedProviders() []string {
	providers := make([]string, 0, len(providerRegistry))
	for providerType := range providerRegistry {
		providers = append(providers, string(providerType))
	}

	sort.Strings(providers)

	return providers
}

// GetProviderInfo returns metadata for a specific trading provider.
func GetProviderInfo(providerName string) (ProviderInfo, error) {
	info, exists := providerRegistry[ProviderType(providerName)]
	if !exists {
		return ProviderInfo{}, fmt.Errorf("unsupported trading provider: %s", providerName)
	}

	return info, nil
}

// GetProviderConfigSchema returns the JSON schema for a provider's configuration.
func GetProviderConfigSchema(providerName string) (string, error) {
	switch ProviderType(providerName) {
	case ProviderBinancePaper, ProviderBinanceLive:
		return schema.ToJSONSchema(BinanceProviderConfig{})
	case ProviderSimulated:
		return schema.ToJSONSchema(SimulatedProviderConfig{})
	default:
		return "", fmt.Errorf("unsupported trading provider: %s", providerName)
	}
}

// ParseProviderConfig parses a JSON configuration string for the given provider.
func ParseProviderConfig(providerName string, jsonConfig string) (any, error) {
	switch ProviderType(providerName) {
	case ProviderBinancePaper, ProviderBinanceLive:
		return parseBinanceConfig(jsonConfig)
	case ProviderSimulated:
		return parseSimulatedConfig(jsonConfig)
	default:
		return nil, fmt.Errorf("unsupported trading provider: %s", providerName)
	}
}

// NewTradingSystemProvider creates a new trading system provider based on the provider type.
// The config is copied; later changes to it do not reach the provider.
func NewTradingSystemProvider(providerType ProviderType, config any) (TradingSystemProvider, error) {
	switch providerType {
	case ProviderBinancePaper:
		cfg, ok := config.(*BinanceProviderConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config type for binance paper provider")
		}

		return NewBinanceFuturesProvider(*cfg, true)

	case ProviderBinanceLive:
		cfg, ok := config.(*BinanceProviderConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config type for binance live provider")
		}

		return NewBinanceFuturesProvider(*cfg, false)

	case ProviderSimulated:
		cfg, ok := config.(*SimulatedProviderConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config type for simulated provider")
		}

		return NewSimulatedProviderFromConfig(*cfg)

	default:
		return nil, fmt.Errorf("unsupported trading provider: %s", providerType)
	}
}
