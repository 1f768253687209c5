package tradingprovider

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-orderbot/internal/types"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"github.com/shopspring/decimal"
)

// Binance codes reproduced by the simulated exchange.
const (
	simCodeUnknownOrder     int64 = -2011
	simCodeOrderNotExist    int64 = -2013
	simCodeWouldTrigger     int64 = -2021
	simCodeInvalidSymbol    int64 = -1121
	simCodeInvalidParameter int64 = -1102
	simCodeDuplicateClient  int64 = -4116
)

// SimulatedProviderConfig configures the in-memory exchange.
type SimulatedProviderConfig struct {
	// Prices maps symbols to their initial market price, e.g. {"BTCUSDT": "50000"}.
	Prices map[string]string `yaml:"prices" json:"prices" jsonschema:"title=Prices,description=Initial market price per symbol"`
	// DisableNativeOCO makes the exchange refuse linked OCO submission.
	DisableNativeOCO bool `yaml:"disable_native_oco" json:"disableNativeOco,omitempty" jsonschema:"title=Disable Native OCO,description=Force sequential OCO placement"`
}

// Validate checks that every configured price is a positive decimal.
func (c *SimulatedProviderConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid simulated provider config", err)
	}

	for symbol, price := range c.Prices {
		d, err := decimal.NewFromString(price)
		if err != nil || !d.IsPositive() {
			return errors.Newf(errors.ErrCodeInvalidConfiguration, "invalid simulated price %q for %s", price, symbol)
		}
	}

	return nil
}

func parseSimulatedConfig(jsonConfig string) (*SimulatedProviderConfig, error) {
	var config SimulatedProviderConfig
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse simulated config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

type simulatedOrder struct {
	handle    types.OrderHandle
	triggered bool
	// linkedID is the sibling leg of a native OCO pair.
	linkedID string
}

// SimulatedProvider is an in-memory exchange. Market and marketable limit
// orders fill immediately; other limit and stop-limit orders rest until
// SetPrice moves the market through them. Safe for concurrent use.
type SimulatedProvider struct {
	mu        sync.Mutex
	prices    map[string]decimal.Decimal
	orders    map[string]*simulatedOrder
	sequence  []string
	nextID    int64
	nativeOCO bool
	placeHook func(types.OrderRequest) error
	now       func() time.Time
}

// NewSimulatedProvider creates an empty simulated exchange with native OCO support.
func NewSimulatedProvider() *SimulatedProvider {
	return &SimulatedProvider{
		prices:    make(map[string]decimal.Decimal),
		orders:    make(map[string]*simulatedOrder),
		sequence:  nil,
		nextID:    0,
		nativeOCO: true,
		placeHook: nil,
		now:       time.Now,
	}
}

// NewSimulatedProviderFromConfig creates a simulated exchange seeded with prices.
func NewSimulatedProviderFromConfig(config SimulatedProviderConfig) (*SimulatedProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	provider := NewSimulatedProvider()
	provider.nativeOCO = !config.DisableNativeOCO

	for symbol, price := range config.Prices {
		provider.prices[symbol] = decimal.RequireFromString(price)
	}

	return provider, nil
}

// SetNativeOCO toggles linked OCO support.
func (s *SimulatedProvider) SetNativeOCO(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nativeOCO = enabled
}

// SetPlaceHook installs a function consulted before every placement. A non-nil
// return fails the placement with that error.
func (s *SimulatedProvider) SetPlaceHook(hook func(types.OrderRequest) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.placeHook = hook
}

// SetPrice moves the market and triggers or fills resting orders in the order
// they were placed.
func (s *SimulatedProvider) SetPrice(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[symbol] = price

	for _, id := range s.sequence {
		order := s.orders[id]
		if order.handle.Symbol != symbol || order.handle.Status.IsTerminal() {
			continue
		}

		s.match(order, price)
	}
}

// Orders returns a snapshot of every order in placement order.
func (s *SimulatedProvider) Orders() []types.OrderHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles := make([]types.OrderHandle, 0, len(s.sequence))
	for _, id := range s.sequence {
		handles = append(handles, s.orders[id].handle)
	}

	return handles
}

// OpenOrders returns the orders that are not yet terminal.
func (s *SimulatedProvider) OpenOrders() []types.OrderHandle {
	open := make([]types.OrderHandle, 0)

	for _, handle := range s.Orders() {
		if !handle.Status.IsTerminal() {
			open = append(open, handle)
		}
	}

	return open
}

// PlaceOrder implements TradingSystemProvider.
func (s *SimulatedProvider) PlaceOrder(ctx context.Context, order types.OrderRequest) (types.OrderHandle, error) {
	if err := ctx.Err(); err != nil {
		return types.OrderHandle{}, errors.NewExchangeError(errors.ExchangeErrorTransient, 0, "place order", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(order); err != nil {
		return types.OrderHandle{}, err
	}

	return s.book(order).handle, nil
}

// PlaceOCO places both legs linked: when one fills the exchange cancels the other.
func (s *SimulatedProvider) PlaceOCO(ctx context.Context, takeProfit, stopLoss types.OrderRequest) (types.OrderHandle, types.OrderHandle, error) {
	if err := ctx.Err(); err != nil {
		return types.OrderHandle{}, types.OrderHandle{}, errors.NewExchangeError(errors.ExchangeErrorTransient, 0, "place oco", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.nativeOCO {
		return types.OrderHandle{}, types.OrderHandle{}, errors.New(errors.ErrCodeUnsupportedOperation,
			"simulated exchange has native OCO disabled")
	}

	// Both legs must be accepted before either is booked.
	for _, leg := range []types.OrderRequest{takeProfit, stopLoss} {
		if err := s.check(leg); err != nil {
			return types.OrderHandle{}, types.OrderHandle{}, err
		}
	}

	tp := s.book(takeProfit)
	sl := s.book(stopLoss)

	tp.linkedID = sl.handle.OrderID
	sl.linkedID = tp.handle.OrderID

	if tp.handle.Status == types.OrderStatusFilled {
		s.cancelLinked(tp)
	}

	return tp.handle, sl.handle, nil
}

// CancelOrder implements TradingSystemProvider.
func (s *SimulatedProvider) CancelOrder(ctx context.Context, order types.OrderHandle) error {
	if err := ctx.Err(); err != nil {
		return errors.NewExchangeError(errors.ExchangeErrorTransient, 0, "cancel order", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[order.OrderID]
	if !ok || existing.handle.Status.IsTerminal() {
		return errors.NewExchangeError(errors.ExchangeErrorRejected, simCodeUnknownOrder, "cancel order: Unknown order sent.", nil)
	}

	existing.handle.Status = types.OrderStatusCanceled
	existing.handle.UpdatedAt = s.now()

	return nil
}

// GetOrderStatus implements TradingSystemProvider.
func (s *SimulatedProvider) GetOrderStatus(ctx context.Context, order types.OrderHandle) (types.OrderHandle, error) {
	if err := ctx.Err(); err != nil {
		return types.OrderHandle{}, errors.NewExchangeError(errors.ExchangeErrorTransient, 0, "get order", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[order.OrderID]
	if order.OrderID == "" && order.ClientOrderID != "" {
		existing, ok = s.byClientOrderID(order.Symbol, order.ClientOrderID)
	}

	if !ok {
		return types.OrderHandle{}, errors.NewExchangeError(errors.ExchangeErrorRejected, simCodeOrderNotExist, "get order: Order does not exist.", nil)
	}

	return existing.handle, nil
}

// byClientOrderID finds an order by symbol and client order id. Caller holds mu.
func (s *SimulatedProvider) byClientOrderID(symbol, clientOrderID string) (*simulatedOrder, bool) {
	for _, placed := range s.orders {
		if placed.handle.Symbol == symbol && placed.handle.ClientOrderID == clientOrderID {
			return placed, true
		}
	}

	return nil, false
}

// GetMarketPrice implements TradingSystemProvider.
func (s *SimulatedProvider) GetMarketPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, errors.NewExchangeError(errors.ExchangeErrorTransient, 0, "get market price", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	price, ok := s.prices[symbol]
	if !ok {
		return decimal.Zero, errors.Newf(errors.ErrCodeMarketPriceMissing, "no market price for %s", symbol)
	}

	return price, nil
}

// SupportsNativeOCO implements TradingSystemProvider.
func (s *SimulatedProvider) SupportsNativeOCO() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.nativeOCO
}

// check reports whether the exchange would accept the order. Caller holds mu.
func (s *SimulatedProvider) check(order types.OrderRequest) error {
	if s.placeHook != nil {
		if err := s.placeHook(order); err != nil {
			return err
		}
	}

	if err := order.Validate(); err != nil {
		return errors.NewExchangeError(errors.ExchangeErrorRejected, simCodeInvalidParameter, "place order: "+err.Error(), nil)
	}

	market, ok := s.prices[order.Symbol]
	if !ok {
		return errors.NewExchangeError(errors.ExchangeErrorRejected, simCodeInvalidSymbol, "place order: Invalid symbol.", nil)
	}

	if order.ClientOrderID != "" {
		if _, exists := s.byClientOrderID(order.Symbol, order.ClientOrderID); exists {
			return errors.NewExchangeError(errors.ExchangeErrorRejected, simCodeDuplicateClient, "place order: ClientOrderId is duplicated.", nil)
		}
	}

	if order.Kind == types.OrderKindStopLimit && stopTriggered(order.Side, order.StopPrice.Unwrap(), market) {
		return errors.NewExchangeError(errors.ExchangeErrorRejected, simCodeWouldTrigger, "place order: Order would immediately trigger.", nil)
	}

	return nil
}

// book records an accepted order and matches it against the current price.
// Caller holds mu and has run check.
func (s *SimulatedProvider) book(order types.OrderRequest) *simulatedOrder {
	s.nextID++
	id := strconv.FormatInt(s.nextID, 10)

	placed := &simulatedOrder{
		handle: types.OrderHandle{
			OrderID:          id,
			ClientOrderID:    order.ClientOrderID,
			Symbol:           order.Symbol,
			Side:             order.Side,
			Kind:             order.Kind,
			Status:           types.OrderStatusNew,
			OrigQuantity:     order.Quantity,
			ExecutedQuantity: decimal.Zero,
			AvgPrice:         optional.None[decimal.Decimal](),
			Price:            order.Price,
			StopPrice:        order.StopPrice,
			UpdatedAt:        s.now(),
		},
		triggered: order.Kind != types.OrderKindStopLimit,
		linkedID:  "",
	}

	s.orders[id] = placed
	s.sequence = append(s.sequence, id)

	s.match(placed, s.prices[order.Symbol])

	if !placed.handle.Status.IsTerminal() && order.EffectiveTimeInForce() != types.TimeInForceGTC && placed.triggered {
		placed.handle.Status = types.OrderStatusExpired
	}

	return placed
}

// match fills or triggers an open order at the given market price. Caller holds mu.
func (s *SimulatedProvider) match(order *simulatedOrder, market decimal.Decimal) {
	handle := &order.handle

	if !order.triggered {
		if !stopTriggered(handle.Side, handle.StopPrice.Unwrap(), market) {
			return
		}

		order.triggered = true
	}

	var fillPrice decimal.Decimal

	switch {
	case handle.Kind == types.OrderKindMarket:
		fillPrice = market
	case handle.Side == types.OrderSideBuy && handle.Price.Unwrap().GreaterThanOrEqual(market):
		fillPrice = handle.Price.Unwrap()
	case handle.Side == types.OrderSideSell && handle.Price.Unwrap().LessThanOrEqual(market):
		fillPrice = handle.Price.Unwrap()
	default:
		return
	}

	handle.Status = types.OrderStatusFilled
	handle.ExecutedQuantity = handle.OrigQuantity
	handle.AvgPrice = optional.Some(fillPrice)
	handle.UpdatedAt = s.now()

	s.cancelLinked(order)
}

func (s *SimulatedProvider) cancelLinked(order *simulatedOrder) {
	if order.linkedID == "" {
		return
	}

	sibling, ok := s.orders[order.linkedID]
	if ok && !sibling.handle.Status.IsTerminal() {
		sibling.handle.Status = types.OrderStatusCanceled
		sibling.handle.UpdatedAt = s.now()
	}
}

// stopTriggered reports whether a stop at the given price fires: buy stops
// fire when the market trades at or above, sell stops at or below.
func stopTriggered(side types.OrderSide, stop, market decimal.Decimal) bool {
	if side == types.OrderSideBuy {
		return market.GreaterThanOrEqual(stop)
	}

	return market.LessThanOrEqual(stop)
}
