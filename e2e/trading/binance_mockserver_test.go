package trading_test

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-orderbot/e2e/trading/mockserver"
	"github.com/rxtech-lab/argo-orderbot/internal/execution"
	internalLog "github.com/rxtech-lab/argo-orderbot/internal/log"
	"github.com/rxtech-lab/argo-orderbot/internal/logger"
	tradingprovider "github.com/rxtech-lab/argo-orderbot/internal/trading/provider"
	"github.com/rxtech-lab/argo-orderbot/internal/types"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

const (
	testAPIKey    = "test-key"
	testSecretKey = "test-secret"
)

// BinanceMockServerTestSuite drives the execution engine through the real
// go-binance futures client against the mock futures server.
type BinanceMockServerTestSuite struct {
	suite.Suite
	server  *mockserver.MockFuturesServer
	journal *internalLog.JournalLog
	logger  *logger.Logger
}

func TestBinanceMockServerSuite(t *testing.T) {
	suite.Run(t, new(BinanceMockServerTestSuite))
}

func (s *BinanceMockServerTestSuite) SetupTest() {
	s.server = mockserver.NewMockFuturesServer(mockserver.ServerConfig{
		APIKey:       testAPIKey,
		FirstOrderID: 122,
		Prices: map[string]string{
			"BTCUSDT": "50000",
			"ETHUSDT": "3000",
		},
	})
	s.Require().NoError(s.server.Start(":0"))

	s.logger = logger.NewNopLogger()

	journal, err := internalLog.NewJournalLog(internalLog.InMemoryJournal, s.logger)
	s.Require().NoError(err)

	s.journal = journal
}

func (s *BinanceMockServerTestSuite) TearDownTest() {
	s.journal.Close()
	s.server.Stop()
}

// newEngine connects an engine to the mock server with the given key.
func (s *BinanceMockServerTestSuite) newEngine(apiKey string, retries int) *execution.Engine {
	provider, err := tradingprovider.NewTradingSystemProvider(tradingprovider.ProviderBinancePaper, &tradingprovider.BinanceProviderConfig{
		ApiKey:            apiKey,
		SecretKey:         testSecretKey,
		BaseURL:           s.server.BaseURL(),
		QuantityPrecision: 3,
		PricePrecision:    2,
		RequestsPerSecond: 100,
	})
	s.Require().NoError(err)

	provider = tradingprovider.NewRetryingProvider(provider, tradingprovider.RetryPolicy{
		MaxRetries:      retries,
		InitialInterval: time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
	}, s.logger)

	config := execution.DefaultConfig()
	config.WatchInterval = 10 * time.Millisecond

	engine, err := execution.NewEngine(provider, s.journal, s.logger, config, execution.Callbacks{})
	s.Require().NoError(err)

	return engine
}

func (s *BinanceMockServerTestSuite) TestMarketOrderEndToEnd() {
	engine := s.newEngine(testAPIKey, 0)

	order, err := execution.ParseOrder(execution.RawOrder{Symbol: "BTCUSDT", Side: "BUY", Kind: "market", Quantity: "0.01"})
	s.Require().NoError(err)

	result, err := engine.PlaceOrder(context.Background(), order)
	s.Require().NoError(err)

	s.Equal(types.StrategyStatusCompleted, result.Status)
	s.Require().Len(result.Handles, 1)

	handle := result.Handles[0]
	s.Equal("123", handle.OrderID)
	s.Equal(types.OrderStatusFilled, handle.Status)
	s.True(handle.ExecutedQuantity.Equal(decimal.RequireFromString("0.01")))
	s.True(handle.AvgPrice.Unwrap().Equal(decimal.RequireFromString("50000")))

	events, err := s.journal.GetEvents(internalLog.EventFilter{Type: internalLog.EventOrderPlaced})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("123", events[0].OrderID)
}

func (s *BinanceMockServerTestSuite) TestRejectedCredentials() {
	engine := s.newEngine("wrong-key", 3)

	_, err := engine.PlaceOrder(context.Background(), types.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     types.OrderSideBuy,
		Kind:     types.OrderKindMarket,
		Quantity: decimal.RequireFromString("0.01"),
	})
	s.True(errors.HasCode(err, errors.ErrCodeExchangeAuthFailure), "got %v", err)
	// auth failures are not retried
	s.Equal(1, s.server.Requests(http.MethodPost, "/fapi/v1/order"))
	s.Empty(s.server.Orders())
}

func (s *BinanceMockServerTestSuite) TestTransientErrorsAreRetried() {
	unavailable := mockserver.APIError{Status: http.StatusServiceUnavailable, Code: -1001, Message: "Internal error; unable to process your request. Please try again."}
	s.server.FailNext(unavailable, unavailable)

	engine := s.newEngine(testAPIKey, 3)

	order, err := execution.ParseOrder(execution.RawOrder{Symbol: "BTCUSDT", Side: "SELL", Kind: "limit", Quantity: "0.01", Price: "51000"})
	s.Require().NoError(err)

	result, err := engine.PlaceOrder(context.Background(), order)
	s.Require().NoError(err)
	s.Equal(types.OrderStatusNew, result.Handles[0].Status)
	s.Equal(3, s.server.Requests(http.MethodPost, "/fapi/v1/order"))
	s.Len(s.server.Orders(), 1)
}

func (s *BinanceMockServerTestSuite) TestOCOWatchCancelsTheSurvivor() {
	engine := s.newEngine(testAPIKey, 0)

	request, err := execution.ParseOCO(execution.RawOCO{Symbol: "BTCUSDT", Side: "SELL", Quantity: "0.01", TakeProfit: "52000", StopLoss: "48000"})
	s.Require().NoError(err)

	pair, err := engine.PlaceOCO(context.Background(), request)
	s.Require().NoError(err)
	s.False(pair.Native)
	s.Equal(types.OCOStateOpen, pair.State)
	s.Len(s.server.Orders(), 2)

	s.server.SetPrice("BTCUSDT", "52000")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.Require().NoError(engine.WatchOCO(ctx, pair))
	s.Equal(types.OCOStateClosed, pair.State)
	s.Equal(types.OrderStatusFilled, pair.TakeProfit.Status)
	s.Equal(types.OrderStatusCanceled, pair.StopLoss.Status)

	stopLoss := s.server.GetOrder(mustOrderID(s, pair.StopLoss.OrderID))
	s.Require().NotNil(stopLoss)
	s.Equal(mockserver.OrderStatusCanceled, stopLoss.Status)
	s.Equal("STOP", stopLoss.Type)
}

func (s *BinanceMockServerTestSuite) TestOCORollsBackWhenTheStopLossIsRejected() {
	s.server.FailNextOfType("STOP", mockserver.APIError{Status: http.StatusBadRequest, Code: -2021, Message: "Order would immediately trigger."})

	engine := s.newEngine(testAPIKey, 0)

	request, err := execution.ParseOCO(execution.RawOCO{Symbol: "BTCUSDT", Side: "SELL", Quantity: "0.01", TakeProfit: "52000", StopLoss: "48000"})
	s.Require().NoError(err)

	_, err = engine.PlaceOCO(context.Background(), request)

	var exchangeErr *errors.ExchangeError
	s.Require().True(errors.As(err, &exchangeErr), "got %v", err)
	s.Equal(errors.ExchangeErrorRejected, exchangeErr.Kind)
	s.Equal(int64(-2021), exchangeErr.Code)
	s.Nil(exchangeErr.RollbackError)

	orders := s.server.Orders()
	s.Require().Len(orders, 1)
	s.Equal("LIMIT", orders[0].Type)
	s.Equal(mockserver.OrderStatusCanceled, orders[0].Status)
}

func (s *BinanceMockServerTestSuite) TestTWAPFillsEverySlice() {
	engine := s.newEngine(testAPIKey, 0)

	plan, err := execution.ParseTWAP(execution.RawTWAP{
		Symbol:        "BTCUSDT",
		Side:          "BUY",
		TotalQuantity: "0.03",
		NumOrders:     "3",
		Interval:      "0s",

		QuantityPrecision: 3,
	})
	s.Require().NoError(err)

	result, err := engine.ExecuteTWAP(context.Background(), plan)
	s.Require().NoError(err)
	s.Equal(types.StrategyStatusCompleted, result.Status)
	s.Equal(3, result.Succeeded)
	s.True(result.ExecutedQuantity.Equal(decimal.RequireFromString("0.03")))
	s.True(result.AvgPrice.Unwrap().Equal(decimal.RequireFromString("50000")))

	for _, order := range s.server.Orders() {
		s.Equal(mockserver.OrderStatusFilled, order.Status)
		s.Equal("MARKET", order.Type)
	}
}

func (s *BinanceMockServerTestSuite) TestTWAPSlicesSumExactlyOnTheWire() {
	engine := s.newEngine(testAPIKey, 0)

	plan, err := execution.ParseTWAP(execution.RawTWAP{
		Symbol:        "BTCUSDT",
		Side:          "BUY",
		TotalQuantity: "0.101",
		NumOrders:     "2",
		Interval:      "0s",

		QuantityPrecision: 3,
	})
	s.Require().NoError(err)

	_, err = engine.ExecuteTWAP(context.Background(), plan)
	s.Require().NoError(err)

	sent := decimal.Zero
	for _, order := range s.server.Orders() {
		s.True(order.Quantity.Equal(order.Quantity.Truncate(3)), "sent %s", order.Quantity)
		sent = sent.Add(order.Quantity)
	}

	s.Len(s.server.Orders(), 2)
	s.True(sent.Equal(decimal.RequireFromString("0.101")), "sent %s in total", sent)
}

func (s *BinanceMockServerTestSuite) TestOverPreciseQuantitiesAreRefused() {
	_, err := execution.ParseTWAP(execution.RawTWAP{
		Symbol:        "BTCUSDT",
		Side:          "BUY",
		TotalQuantity: "0.1005",
		NumOrders:     "2",
		Interval:      "0s",

		QuantityPrecision: 3,
	})
	s.True(errors.IsValidationError(err), "got %v", err)

	_, err = execution.ParseOrder(execution.RawOrder{Symbol: "BTCUSDT", Side: "BUY", Kind: "market", Quantity: "0.0019", QuantityPrecision: 3})
	s.True(errors.IsValidationError(err), "got %v", err)

	// the provider refuses instead of truncating when the parser is bypassed
	engine := s.newEngine(testAPIKey, 3)

	_, err = engine.PlaceOrder(context.Background(), types.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     types.OrderSideBuy,
		Kind:     types.OrderKindMarket,
		Quantity: decimal.RequireFromString("0.0019"),
	})

	var validationErr *errors.ValidationError
	s.Require().True(errors.As(err, &validationErr), "got %v", err)
	s.Equal("quantity", validationErr.Field)
	s.Equal(0, s.server.Requests(http.MethodPost, "/fapi/v1/order"))
	s.Empty(s.server.Orders())
}

func (s *BinanceMockServerTestSuite) TestLostResponseIsNotPlacedTwice() {
	s.server.LoseNextResponse(mockserver.APIError{Status: http.StatusServiceUnavailable, Code: -1001, Message: "Internal error; unable to process your request. Please try again."})

	engine := s.newEngine(testAPIKey, 3)

	order, err := execution.ParseOrder(execution.RawOrder{Symbol: "BTCUSDT", Side: "BUY", Kind: "market", Quantity: "0.01", QuantityPrecision: 3})
	s.Require().NoError(err)

	result, err := engine.PlaceOrder(context.Background(), order)
	s.Require().NoError(err)
	s.Require().Len(result.Handles, 1)
	s.Equal("123", result.Handles[0].OrderID)
	s.Equal(types.OrderStatusFilled, result.Handles[0].Status)

	s.Len(s.server.Orders(), 1)
	s.Equal(1, s.server.Requests(http.MethodPost, "/fapi/v1/order"))
	s.Equal(1, s.server.Requests(http.MethodGet, "/fapi/v1/order"))
}

func (s *BinanceMockServerTestSuite) TestGridWithRejectedLevels() {
	margin := mockserver.APIError{Status: http.StatusBadRequest, Code: -2019, Message: "Margin is insufficient."}
	s.server.FailNext(margin, margin)

	engine := s.newEngine(testAPIKey, 2)

	plan, err := execution.ParseGrid(execution.RawGrid{
		Symbol:           "ETHUSDT",
		Lower:            "2800",
		Upper:            "3200",
		Levels:           "5",
		QuantityPerLevel: "0.1",
	})
	s.Require().NoError(err)

	plan.PricePrecision = 2

	result, err := engine.BuildGrid(context.Background(), plan)
	s.True(errors.IsPartialStrategyFailure(err), "got %v", err)
	s.Equal(types.StrategyStatusDegraded, result.Status)
	s.Equal(4, result.Requested)
	s.Equal(2, result.Succeeded)
	s.Equal(1, result.SkippedCount)
	s.Len(s.server.Orders(), 2)

	// rejections are final, so each failed level was sent once
	s.Equal(4, s.server.Requests(http.MethodPost, "/fapi/v1/order"))
}

func mustOrderID(s *BinanceMockServerTestSuite, id string) int64 {
	value, err := strconv.ParseInt(id, 10, 64)
	s.Require().NoError(err)

	return value
}
