package execution

import (
	"context"
	"testing"
	"time"

	internalLog "github.com/rxtech-lab/argo-orderbot/internal/log"
	"github.com/rxtech-lab/argo-orderbot/internal/logger"
	tradingprovider "github.com/rxtech-lab/argo-orderbot/internal/trading/provider"
	"github.com/rxtech-lab/argo-orderbot/internal/types"
	"github.com/rxtech-lab/argo-orderbot/mocks"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"
)

type EngineTestSuite struct {
	suite.Suite
	logger *logger.Logger
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (suite *EngineTestSuite) SetupSuite() {
	suite.logger = logger.NewNopLogger()
}

func (suite *EngineTestSuite) TestNewEngine() {
	ctrl := gomock.NewController(suite.T())
	provider := mocks.NewMockTradingSystemProvider(ctrl)

	tests := []struct {
		name      string
		provider  tradingprovider.TradingSystemProvider
		config    Config
		expectErr errors.ErrorCode
	}{
		{name: "defaults", provider: provider, config: DefaultConfig()},
		{name: "missing provider", provider: nil, config: DefaultConfig(), expectErr: errors.ErrCodeMissingParameter},
		{name: "negative watch interval", provider: provider, config: Config{WatchInterval: -time.Second}, expectErr: errors.ErrCodeInvalidConfiguration},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			engine, err := NewEngine(tt.provider, nil, suite.logger, tt.config, Callbacks{})
			if tt.expectErr != 0 {
				suite.True(errors.HasCode(err, tt.expectErr), "got %v", err)
				suite.Nil(engine)

				return
			}

			suite.Require().NoError(err)
			suite.NotNil(engine.Executor)
			suite.NotNil(engine.OCO)
			suite.NotNil(engine.Watcher)
			suite.NotNil(engine.TWAP)
			suite.NotNil(engine.Grid)
		})
	}
}

func (suite *EngineTestSuite) TestPlaceMarketOrder() {
	ctrl := gomock.NewController(suite.T())
	provider := mocks.NewMockTradingSystemProvider(ctrl)
	audit := &recordingLog{}

	order, err := ParseOrder(RawOrder{Symbol: "BTCUSDT", Side: "BUY", Kind: "market", Quantity: "0.01"})
	suite.Require().NoError(err)

	provider.EXPECT().PlaceOrder(gomock.Any(), stampedOrder{order}).Return(filled("123", order, "50000"), nil).Times(1)

	engine, err := NewEngine(provider, audit, suite.logger, DefaultConfig(), Callbacks{})
	suite.Require().NoError(err)

	result, err := engine.PlaceOrder(context.Background(), order)
	suite.Require().NoError(err)
	suite.Equal(types.StrategyStatusCompleted, result.Status)
	suite.Require().Len(result.Handles, 1)
	suite.Equal("123", result.Handles[0].OrderID)
	suite.Equal(types.OrderStatusFilled, result.Handles[0].Status)
	suite.Len(audit.OfType(internalLog.EventOrderPlaced), 1)
}

func (suite *EngineTestSuite) TestPlaceOrderFailure() {
	ctrl := gomock.NewController(suite.T())
	provider := mocks.NewMockTradingSystemProvider(ctrl)
	provider.EXPECT().PlaceOrder(gomock.Any(), gomock.Any()).
		Return(types.OrderHandle{}, errors.NewExchangeError(errors.ExchangeErrorAuthFailure, -2015, "Invalid API-key, IP, or permissions for action.", nil))

	engine, err := NewEngine(provider, nil, nil, DefaultConfig(), Callbacks{})
	suite.Require().NoError(err)

	_, err = engine.PlaceOrder(context.Background(), marketBuy("0.01"))
	suite.True(errors.HasCode(err, errors.ErrCodeExchangeAuthFailure))
}

func (suite *EngineTestSuite) TestCallbacksAreWired() {
	provider := tradingprovider.NewSimulatedProvider()
	provider.SetNativeOCO(false)
	provider.SetPrice("BTCUSDT", dec("50000"))

	var (
		slices int
		states []types.OCOState
	)

	onSlice := OnSliceCallback(func(SliceReport) { slices++ })
	onState := OnOCOStateChangeCallback(func(pair types.OCOPair) { states = append(states, pair.State) })

	config := DefaultConfig()
	config.WatchInterval = time.Millisecond

	engine, err := NewEngine(provider, nil, suite.logger, config, Callbacks{OnSlice: &onSlice, OnOCOStateChange: &onState})
	suite.Require().NoError(err)

	_, err = engine.ExecuteTWAP(context.Background(), twapPlan("0.02", 2, 0))
	suite.Require().NoError(err)
	suite.Equal(2, slices)

	pair, err := engine.PlaceOCO(context.Background(), sellOCO())
	suite.Require().NoError(err)

	provider.SetPrice("BTCUSDT", dec("48000"))

	suite.Require().NoError(engine.WatchOCO(context.Background(), pair))
	suite.Equal(types.OCOStateClosed, pair.State)
	suite.Equal([]types.OCOState{types.OCOStateClosed}, states)
	suite.Equal(types.OrderStatusFilled, pair.StopLoss.Status)
	suite.Equal(types.OrderStatusCanceled, pair.TakeProfit.Status)
}

// lostResponseProvider books the first order on the simulator and then
// reports a transient failure, as if the response never arrived.
type lostResponseProvider struct {
	*tradingprovider.SimulatedProvider
	lost bool
}

func (p *lostResponseProvider) PlaceOrder(ctx context.Context, order types.OrderRequest) (types.OrderHandle, error) {
	handle, err := p.SimulatedProvider.PlaceOrder(ctx, order)
	if err != nil || p.lost {
		return handle, err
	}

	p.lost = true

	return types.OrderHandle{}, errors.NewExchangeError(errors.ExchangeErrorTransient, -1001, "Internal error; unable to process your request.", nil)
}

func (suite *EngineTestSuite) TestLostResponseDoesNotPlaceTwice() {
	simulated := tradingprovider.NewSimulatedProvider()
	simulated.SetPrice("BTCUSDT", dec("50000"))

	provider := tradingprovider.NewRetryingProvider(&lostResponseProvider{SimulatedProvider: simulated, lost: false}, tradingprovider.RetryPolicy{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
	}, suite.logger)

	engine, err := NewEngine(provider, nil, suite.logger, DefaultConfig(), Callbacks{})
	suite.Require().NoError(err)

	result, err := engine.PlaceOrder(context.Background(), types.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     types.OrderSideBuy,
		Kind:     types.OrderKindMarket,
		Quantity: dec("0.01"),
	})
	suite.Require().NoError(err)

	orders := simulated.Orders()
	suite.Require().Len(orders, 1)
	suite.NotEmpty(orders[0].ClientOrderID)
	suite.Require().Len(result.Handles, 1)
	suite.Equal(orders[0].OrderID, result.Handles[0].OrderID)
}

func (suite *EngineTestSuite) TestConcurrentStrategies() {
	provider := tradingprovider.NewSimulatedProvider()
	provider.SetPrice("BTCUSDT", dec("50000"))
	provider.SetPrice("ETHUSDT", dec("3000"))

	journal, err := internalLog.NewJournalLog(internalLog.InMemoryJournal, suite.logger)
	suite.Require().NoError(err)

	defer journal.Close()

	engine, err := NewEngine(provider, journal, suite.logger, DefaultConfig(), Callbacks{})
	suite.Require().NoError(err)

	var twapResult, gridResult types.StrategyResult

	group, ctx := errgroup.WithContext(context.Background())
	group.Go(func() error {
		plan := twapPlan("0.3", 3, 5*time.Millisecond)

		result, err := engine.ExecuteTWAP(ctx, plan)
		twapResult = result

		return err
	})
	group.Go(func() error {
		plan := gridPlan("2800", "3200", 5)
		plan.Symbol = "ETHUSDT"

		result, err := engine.BuildGrid(ctx, plan)
		gridResult = result

		return err
	})

	suite.Require().NoError(group.Wait())
	suite.Equal(types.StrategyStatusCompleted, twapResult.Status)
	suite.Equal(types.StrategyStatusCompleted, gridResult.Status)
	suite.NotEqual(twapResult.ID, gridResult.ID)

	twapEvents, err := journal.GetEvents(internalLog.EventFilter{StrategyID: twapResult.ID})
	suite.Require().NoError(err)
	suite.Len(twapEvents, 5)

	gridEvents, err := journal.GetEvents(internalLog.EventFilter{StrategyID: gridResult.ID, Type: internalLog.EventOrderPlaced})
	suite.Require().NoError(err)
	suite.Len(gridEvents, 4)

	for _, event := range gridEvents {
		suite.Equal("ETHUSDT", event.Symbol)
	}
}

func (suite *EngineTestSuite) TestAuditSinkReceivesEveryEvent() {
	ctrl := gomock.NewController(suite.T())
	provider := tradingprovider.NewSimulatedProvider()
	provider.SetPrice("BTCUSDT", dec("50000"))

	sink := mocks.NewMockLog(ctrl)

	var received []internalLog.EventType

	sink.EXPECT().Log(gomock.Any()).Do(func(event internalLog.Event) {
		suite.False(event.Timestamp.IsZero())
		suite.Equal("BTCUSDT", event.Symbol)
		received = append(received, event.Type)
	}).Times(4)

	engine, err := NewEngine(provider, sink, suite.logger, DefaultConfig(), Callbacks{})
	suite.Require().NoError(err)

	_, err = engine.ExecuteTWAP(context.Background(), twapPlan("0.02", 2, 0))
	suite.Require().NoError(err)

	suite.Equal([]internalLog.EventType{
		internalLog.EventStrategyStarted,
		internalLog.EventSlicePlaced,
		internalLog.EventSlicePlaced,
		internalLog.EventStrategyCompleted,
	}, received)
}
