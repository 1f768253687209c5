package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rxtech-lab/argo-orderbot/internal/config"
	internalLog "github.com/rxtech-lab/argo-orderbot/internal/log"
	"github.com/rxtech-lab/argo-orderbot/internal/logger"
	tradingprovider "github.com/rxtech-lab/argo-orderbot/internal/trading/provider"
	"github.com/rxtech-lab/argo-orderbot/internal/types"
	"github.com/rxtech-lab/argo-orderbot/mocks"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type OrderbotCmdTestSuite struct {
	suite.Suite
	tempDir string
	config  string
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	app     *application
	ctrl    *gomock.Controller
}

func TestOrderbotCmdSuite(t *testing.T) {
	suite.Run(t, new(OrderbotCmdTestSuite))
}

func (suite *OrderbotCmdTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()
	suite.config = filepath.Join(suite.tempDir, "orderbot.yaml")
	suite.Require().NoError(os.WriteFile(suite.config, []byte(`
provider: simulated
simulated:
  prices:
    BTCUSDT: "50000"
    ETHUSDT: "3000"
  disable_native_oco: true
`), 0644))

	suite.stdout = &bytes.Buffer{}
	suite.stderr = &bytes.Buffer{}
	suite.app = newApplication(suite.stdout, suite.stderr)
	suite.app.lookupEnv = func(string) (string, bool) { return "", false }
	suite.app.newLogger = func(string) (*logger.Logger, error) { return logger.NewNopLogger(), nil }
	suite.ctrl = gomock.NewController(suite.T())
}

func (suite *OrderbotCmdTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

// useProvider makes every session trade against provider.
func (suite *OrderbotCmdTestSuite) useProvider(provider tradingprovider.TradingSystemProvider) {
	suite.app.newProvider = func(config.Config, *logger.Logger) (tradingprovider.TradingSystemProvider, error) {
		return provider, nil
	}
}

func (suite *OrderbotCmdTestSuite) run(args ...string) int {
	return suite.app.run(context.Background(), append([]string{"orderbot", "--config", suite.config}, args...))
}

func (suite *OrderbotCmdTestSuite) TestMarketOrderEndToEnd() {
	provider := mocks.NewMockTradingSystemProvider(suite.ctrl)
	provider.EXPECT().PlaceOrder(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, order types.OrderRequest) (types.OrderHandle, error) {
			suite.Equal("BTCUSDT", order.Symbol)
			suite.Equal(types.OrderSideBuy, order.Side)
			suite.Equal(types.OrderKindMarket, order.Kind)
			suite.True(order.Quantity.Equal(decimal.RequireFromString("0.01")))

			return types.OrderHandle{
				OrderID:          "123",
				ClientOrderID:    order.ClientOrderID,
				Symbol:           order.Symbol,
				Side:             order.Side,
				Kind:             order.Kind,
				Status:           types.OrderStatusFilled,
				OrigQuantity:     order.Quantity,
				ExecutedQuantity: order.Quantity,
			}, nil
		}).Times(1)
	suite.useProvider(provider)

	code := suite.run("market", "btcusdt", "buy", "0.01")
	suite.Equal(0, code, suite.stderr.String())
	suite.Contains(suite.stdout.String(), "orderId=123")
	suite.Contains(suite.stdout.String(), "FILLED")
	suite.Contains(suite.stdout.String(), "COMPLETED")
}

func (suite *OrderbotCmdTestSuite) TestInvalidInputNeverReachesTheExchange() {
	provider := mocks.NewMockTradingSystemProvider(suite.ctrl)
	provider.EXPECT().PlaceOrder(gomock.Any(), gomock.Any()).Times(0)
	suite.useProvider(provider)

	tests := []struct {
		name string
		args []string
	}{
		{name: "bad side", args: []string{"market", "BTCUSDT", "HOLD", "0.01"}},
		{name: "zero quantity", args: []string{"market", "BTCUSDT", "BUY", "0"}},
		{name: "missing price", args: []string{"limit", "BTCUSDT", "BUY", "0.01"}},
		{name: "too many arguments", args: []string{"market", "BTCUSDT", "BUY", "0.01", "50000"}},
		{name: "bad time in force", args: []string{"limit", "BTCUSDT", "BUY", "0.01", "50000", "DAY"}},
		{name: "inverted oco", args: []string{"oco", "BTCUSDT", "SELL", "0.01", "48000", "52000"}},
		{name: "grid bounds", args: []string{"grid", "BTCUSDT", "52000", "48000", "5", "0.001"}},
		{name: "more quantity decimals than the provider sends", args: []string{"market", "BTCUSDT", "BUY", "0.000000001"}},
		{name: "grid level quantity too precise", args: []string{"grid", "BTCUSDT", "48000", "52000", "5", "0.0000000015"}},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.stderr.Reset()

			suite.Equal(1, suite.run(tt.args...))
			suite.Contains(suite.stderr.String(), "error")
		})
	}
}

func (suite *OrderbotCmdTestSuite) TestBinancePrecisionIsCheckedBeforeSending() {
	suite.Require().NoError(os.WriteFile(suite.config, []byte(`
provider: binance-paper
binance:
  api_key: key
  secret_key: secret
  quantity_precision: 3
`), 0644))

	provider := mocks.NewMockTradingSystemProvider(suite.ctrl)
	provider.EXPECT().PlaceOrder(gomock.Any(), gomock.Any()).Times(0)
	suite.useProvider(provider)

	suite.Equal(1, suite.run("market", "BTCUSDT", "BUY", "0.0019"))
	suite.Contains(suite.stderr.String(), "quantity")

	suite.stderr.Reset()
	suite.Equal(1, suite.run("twap", "BTCUSDT", "BUY", "0.1005", "2", "0s"))
	suite.Contains(suite.stderr.String(), "total_quantity")
}

func (suite *OrderbotCmdTestSuite) TestExchangeErrorExitsNonZero() {
	provider := mocks.NewMockTradingSystemProvider(suite.ctrl)
	provider.EXPECT().PlaceOrder(gomock.Any(), gomock.Any()).
		Return(types.OrderHandle{}, errors.NewExchangeError(errors.ExchangeErrorAuthFailure, -2015, "Invalid API-key, IP, or permissions for action.", nil))
	suite.useProvider(provider)

	suite.Equal(1, suite.run("limit", "BTCUSDT", "SELL", "0.01", "51000"))
	suite.Contains(suite.stderr.String(), "Invalid API-key")
}

func (suite *OrderbotCmdTestSuite) TestStopLimitOnSimulatedExchange() {
	code := suite.run("stop-limit", "BTCUSDT", "SELL", "0.01", "49000", "48900")
	suite.Equal(0, code, suite.stderr.String())
	suite.Contains(suite.stdout.String(), "STOP_LIMIT BTCUSDT")
	suite.Contains(suite.stdout.String(), "stop=49000")
}

func (suite *OrderbotCmdTestSuite) TestStopLimitAlias() {
	code := suite.run("stoplimit", "BTCUSDT", "SELL", "0.01", "49000", "48900")
	suite.Equal(0, code, suite.stderr.String())
	suite.Contains(suite.stdout.String(), "STOP_LIMIT BTCUSDT")
}

func (suite *OrderbotCmdTestSuite) TestTWAPWritesTheJournal() {
	journalPath := filepath.Join(suite.tempDir, "journal.db")

	code := suite.run("--journal", journalPath, "twap", "BTCUSDT", "BUY", "0.02", "2", "0s")
	suite.Equal(0, code, suite.stderr.String())
	suite.Contains(suite.stdout.String(), "TWAP BTCUSDT")
	suite.Contains(suite.stdout.String(), "2/2 placed")

	journal, err := internalLog.NewJournalLog(journalPath, logger.NewNopLogger())
	suite.Require().NoError(err)

	defer journal.Close()

	placed, err := journal.GetEvents(internalLog.EventFilter{Type: internalLog.EventSlicePlaced})
	suite.Require().NoError(err)
	suite.Len(placed, 2)

	completed, err := journal.GetEvents(internalLog.EventFilter{Type: internalLog.EventStrategyCompleted})
	suite.Require().NoError(err)
	suite.Len(completed, 1)
}

func (suite *OrderbotCmdTestSuite) TestPartialGridExitsZero() {
	provider := mocks.NewMockTradingSystemProvider(suite.ctrl)
	provider.EXPECT().GetMarketPrice(gomock.Any(), "BTCUSDT").Return(decimal.RequireFromString("50000"), nil)
	provider.EXPECT().PlaceOrder(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, order types.OrderRequest) (types.OrderHandle, error) {
			if order.Side == types.OrderSideSell {
				return types.OrderHandle{}, errors.NewExchangeError(errors.ExchangeErrorRejected, -2019, "Margin is insufficient.", nil)
			}

			return types.OrderHandle{
				OrderID:          order.ClientOrderID,
				ClientOrderID:    order.ClientOrderID,
				Symbol:           order.Symbol,
				Side:             order.Side,
				Kind:             order.Kind,
				Status:           types.OrderStatusNew,
				OrigQuantity:     order.Quantity,
				ExecutedQuantity: decimal.Zero,
				Price:            order.Price,
			}, nil
		}).Times(4)
	suite.useProvider(provider)

	code := suite.run("grid", "BTCUSDT", "48000", "52000", "5", "0.001")
	suite.Equal(0, code)
	suite.Contains(suite.stdout.String(), "DEGRADED")
	suite.Contains(suite.stdout.String(), "2 buy, 0 sell, 1 skipped")
	suite.Contains(suite.stderr.String(), "warning")
}

func (suite *OrderbotCmdTestSuite) TestOCOPlacesBothLegs() {
	code := suite.run("oco", "BTCUSDT", "SELL", "0.01", "52000", "48000")
	suite.Equal(0, code, suite.stderr.String())
	suite.Contains(suite.stdout.String(), "take profit")
	suite.Contains(suite.stdout.String(), "stop loss")
	suite.Contains(suite.stdout.String(), "emulated")
}

func (suite *OrderbotCmdTestSuite) TestMissingCredentialsFailConfig() {
	code := suite.app.run(context.Background(), []string{"orderbot", "--provider", "binance-paper", "market", "BTCUSDT", "BUY", "0.01"})
	suite.Equal(1, code)
	suite.Contains(suite.stderr.String(), "error")
}

func (suite *OrderbotCmdTestSuite) TestConfigSchema() {
	suite.Equal(0, suite.app.run(context.Background(), []string{"orderbot", "config-schema"}))

	var doc map[string]any
	suite.Require().NoError(json.Unmarshal(suite.stdout.Bytes(), &doc))
	suite.Contains(doc, "properties")

	suite.stdout.Reset()
	suite.Equal(0, suite.app.run(context.Background(), []string{"orderbot", "config-schema", "--sample"}))
	suite.Contains(suite.stdout.String(), "# orderbot configuration")
	suite.Contains(suite.stdout.String(), "provider: binance-paper")
}

func (suite *OrderbotCmdTestSuite) TestHelpListsCommands() {
	suite.Equal(0, suite.app.run(context.Background(), []string{"orderbot", "help"}))

	for _, name := range []string{"market", "limit", "stop-limit", "oco", "twap", "grid", "config-schema"} {
		suite.Contains(suite.stdout.String(), name)
	}
}
