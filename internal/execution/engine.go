package execution

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	internalLog "github.com/rxtech-lab/argo-orderbot/internal/log"
	"github.com/rxtech-lab/argo-orderbot/internal/logger"
	tradingprovider "github.com/rxtech-lab/argo-orderbot/internal/trading/provider"
	"github.com/rxtech-lab/argo-orderbot/internal/types"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
)

// Config holds the engine options.
type Config struct {
	// CheckMarketSides requires the market price to lie between the OCO legs.
	CheckMarketSides bool `yaml:"check_market_sides" json:"check_market_sides" jsonschema:"title=Check Market Sides,description=Require the market price between take-profit and stop-loss,default=true"`
	// WatchInterval is the OCO watcher poll interval.
	WatchInterval time.Duration `yaml:"watch_interval" json:"watch_interval" jsonschema:"title=Watch Interval,description=Poll interval of the OCO fill watcher" validate:"gte=0"`
	// RefreshTWAPFills queries every TWAP slice once more after placement.
	RefreshTWAPFills bool `yaml:"refresh_twap_fills" json:"refresh_twap_fills" jsonschema:"title=Refresh TWAP Fills,description=Query each TWAP slice after placement,default=false"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		CheckMarketSides: true,
		WatchInterval:    DefaultWatchInterval,
		RefreshTWAPFills: false,
	}
}

// Callbacks holds optional progress hooks. Nil fields are not called.
type Callbacks struct {
	// OnSlice is called after every TWAP slice.
	OnSlice *OnSliceCallback

	// OnOCOStateChange is called when a watched OCO pair changes state.
	OnOCOStateChange *OnOCOStateChangeCallback
}

// Engine bundles the execution components around one provider and one audit log.
// It keeps no state between calls, so independent strategies may run on it
// from several goroutines.
type Engine struct {
	Executor *OrderExecutor
	OCO      *OCOCoordinator
	Watcher  *OCOWatcher
	TWAP     *TWAPScheduler
	Grid     *GridBuilder
}

// NewEngine wires the components. A nil audit log discards events and a nil
// logger discards log lines.
func NewEngine(
	provider tradingprovider.TradingSystemProvider,
	audit internalLog.Log,
	log *logger.Logger,
	config Config,
	callbacks Callbacks,
) (*Engine, error) {
	if provider == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "trading provider is required")
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid engine config", err)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	executor := NewOrderExecutor(provider, audit, log)

	return &Engine{
		Executor: executor,
		OCO:      NewOCOCoordinator(provider, executor, audit, log, config.CheckMarketSides),
		Watcher:  NewOCOWatcher(provider, audit, log, config.WatchInterval, callbacks.OnOCOStateChange),
		TWAP:     NewTWAPScheduler(provider, executor, audit, log, config.RefreshTWAPFills, callbacks.OnSlice),
		Grid:     NewGridBuilder(provider, executor, audit, log),
	}, nil
}

// PlaceOrder places a single order and reports it as a strategy result.
func (e *Engine) PlaceOrder(ctx context.Context, order types.OrderRequest) (types.StrategyResult, error) {
	handle, err := e.Executor.Place(ctx, order)
	if err != nil {
		return types.StrategyResult{}, err
	}

	return FromOrder(handle), nil
}

// PlaceOCO places a linked pair.
func (e *Engine) PlaceOCO(ctx context.Context, request types.OCORequest) (*types.OCOPair, error) {
	return e.OCO.Place(ctx, request)
}

// WatchOCO keeps a placed pair's cancel-on-fill promise until it closes or ctx ends.
func (e *Engine) WatchOCO(ctx context.Context, pair *types.OCOPair) error {
	return e.Watcher.Watch(ctx, pair)
}

// ExecuteTWAP runs a TWAP plan to completion or cancellation.
func (e *Engine) ExecuteTWAP(ctx context.Context, plan types.TWAPPlan) (types.StrategyResult, error) {
	return e.TWAP.Execute(ctx, plan)
}

// BuildGrid places a grid ladder.
func (e *Engine) BuildGrid(ctx context.Context, plan types.GridPlan) (types.StrategyResult, error) {
	return e.Grid.Build(ctx, plan)
}
