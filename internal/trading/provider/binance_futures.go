package tradingprovider

import (
	"context"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-orderbot/internal/types"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	// BinanceDecimalPrecision is a default decimal precision used as a fallback.
	// 8 decimals allows for satoshi-level precision (0.00000001 BTC) for BTC-like assets.
	// Production systems should use symbol-specific precision from exchange info (LOT_SIZE, PRICE_FILTER).
	BinanceDecimalPrecision = 8

	// BinanceFuturesTestnetURL is the USD-M futures testnet REST endpoint.
	BinanceFuturesTestnetURL = "https://testnet.binancefuture.com"

	// defaultRequestsPerSecond stays well under the futures order rate limits.
	defaultRequestsPerSecond = 10
)

// Service interfaces for mocking the Binance futures API

// CreateOrderService interface for creating orders.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side futures.SideType) CreateOrderService
	Type(orderType futures.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	Price(price string) CreateOrderService
	StopPrice(stopPrice string) CreateOrderService
	TimeInForce(tif futures.TimeInForceType) CreateOrderService
	NewClientOrderID(clientOrderID string) CreateOrderService
	NewOrderResponseType(respType futures.NewOrderRespType) CreateOrderService
	Do(ctx context.Context) (*futures.CreateOrderResponse, error)
}

// CancelOrderService interface for canceling orders.
type CancelOrderService interface {
	Symbol(symbol string) CancelOrderService
	OrderID(orderID int64) CancelOrderService
	Do(ctx context.Context) (*futures.CancelOrderResponse, error)
}

// GetOrderService interface for querying a single order.
type GetOrderService interface {
	Symbol(symbol string) GetOrderService
	OrderID(orderID int64) GetOrderService
	OrigClientOrderID(clientOrderID string) GetOrderService
	Do(ctx context.Context) (*futures.Order, error)
}

// ListPricesService interface for latest symbol prices.
type ListPricesService interface {
	Symbol(symbol string) ListPricesService
	Do(ctx context.Context) ([]*futures.SymbolPrice, error)
}

// FuturesClient interface abstracts the Binance futures client for testing.
type FuturesClient interface {
	NewCreateOrderService() CreateOrderService
	NewCancelOrderService() CancelOrderService
	NewGetOrderService() GetOrderService
	NewListPricesService() ListPricesService
}

// realFuturesClient wraps the actual futures.Client.
type realFuturesClient struct {
	client *futures.Client
}

func (r *realFuturesClient) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

func (r *realFuturesClient) NewCancelOrderService() CancelOrderService {
	return &realCancelOrderService{service: r.client.NewCancelOrderService()}
}

func (r *realFuturesClient) NewGetOrderService() GetOrderService {
	return &realGetOrderService{service: r.client.NewGetOrderService()}
}

func (r *realFuturesClient) NewListPricesService() ListPricesService {
	return &realListPricesService{service: r.client.NewListPricesService()}
}

// Real service wrappers

type realCreateOrderService struct {
	service *futures.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side futures.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType futures.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOrderService) Price(price string) CreateOrderService {
	s.service = s.service.Price(price)

	return s
}

func (s *realCreateOrderService) StopPrice(stopPrice string) CreateOrderService {
	s.service = s.service.StopPrice(stopPrice)

	return s
}

func (s *realCreateOrderService) TimeInForce(tif futures.TimeInForceType) CreateOrderService {
	s.service = s.service.TimeInForce(tif)

	return s
}

func (s *realCreateOrderService) NewClientOrderID(clientOrderID string) CreateOrderService {
	s.service = s.service.NewClientOrderID(clientOrderID)

	return s
}

func (s *realCreateOrderService) NewOrderResponseType(respType futures.NewOrderRespType) CreateOrderService {
	s.service = s.service.NewOrderResponseType(respType)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*futures.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

type realCancelOrderService struct {
	service *futures.CancelOrderService
}

func (s *realCancelOrderService) Symbol(symbol string) CancelOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCancelOrderService) OrderID(orderID int64) CancelOrderService {
	s.service = s.service.OrderID(orderID)

	return s
}

func (s *realCancelOrderService) Do(ctx context.Context) (*futures.CancelOrderResponse, error) {
	return s.service.Do(ctx)
}

type realGetOrderService struct {
	service *futures.GetOrderService
}

func (s *realGetOrderService) Symbol(symbol string) GetOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realGetOrderService) OrderID(orderID int64) GetOrderService {
	s.service = s.service.OrderID(orderID)

	return s
}

func (s *realGetOrderService) OrigClientOrderID(clientOrderID string) GetOrderService {
	s.service = s.service.OrigClientOrderID(clientOrderID)

	return s
}

func (s *realGetOrderService) Do(ctx context.Context) (*futures.Order, error) {
	return s.service.Do(ctx)
}

type realListPricesService struct {
	service *futures.ListPricesService
}

func (s *realListPricesService) Symbol(symbol string) ListPricesService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realListPricesService) Do(ctx context.Context) ([]*futures.SymbolPrice, error) {
	return s.service.Do(ctx)
}

// BinanceFuturesProvider implements TradingSystemProvider on Binance USD-M futures.
// It holds no order state; every call goes to the exchange.
type BinanceFuturesProvider struct {
	client            FuturesClient
	quantityPrecision int32
	pricePrecision    int32
	limiter           *rate.Limiter
}

// NewBinanceFuturesProvider creates a new Binance futures provider.
// If useTestnet is true, connects to the futures testnet.
// If config.BaseURL is set, it takes precedence over useTestnet.
// Package-level go-binance settings are left untouched.
func NewBinanceFuturesProvider(config BinanceProviderConfig, useTestnet bool) (*BinanceFuturesProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := futures.NewClient(config.ApiKey, config.SecretKey)

	if useTestnet {
		client.BaseURL = BinanceFuturesTestnetURL
	}

	if config.BaseURL != "" {
		client.BaseURL = config.BaseURL
	}

	provider := newBinanceFuturesProviderWithClient(&realFuturesClient{client: client})
	provider.limiter = newLimiter(config.RequestsPerSecond)

	if config.QuantityPrecision > 0 {
		provider.quantityPrecision = config.QuantityPrecision
	}

	if config.PricePrecision > 0 {
		provider.pricePrecision = config.PricePrecision
	}

	return provider, nil
}

// newBinanceFuturesProviderWithClient creates a provider around a custom client.
// This is used for testing with mock clients.
func newBinanceFuturesProviderWithClient(client FuturesClient) *BinanceFuturesProvider {
	return &BinanceFuturesProvider{
		client:            client,
		quantityPrecision: BinanceDecimalPrecision,
		pricePrecision:    BinanceDecimalPrecision,
		limiter:           rate.NewLimiter(rate.Inf, 1),
	}
}

func newLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRequestsPerSecond
	}

	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// PlaceOrder places a single order on Binance futures. The response type is
// RESULT so market orders come back with their fills. Quantities with more
// decimals than the configured precision are refused, never truncated.
func (b *BinanceFuturesProvider) PlaceOrder(ctx context.Context, order types.OrderRequest) (types.OrderHandle, error) {
	side, err := mapSide(order.Side)
	if err != nil {
		return types.OrderHandle{}, err
	}

	if err := types.CheckScale("quantity", order.Quantity, b.quantityPrecision); err != nil {
		return types.OrderHandle{}, err
	}

	service := b.client.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(side).
		Quantity(order.Quantity.String()).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)

	switch order.Kind {
	case types.OrderKindMarket:
		service = service.Type(futures.OrderTypeMarket)
	case types.OrderKindLimit:
		if order.Price.IsNone() {
			return types.OrderHandle{}, errors.NewValidationError("price", "", "required for LIMIT orders")
		}

		service = service.
			Type(futures.OrderTypeLimit).
			Price(b.formatPrice(order.Price.Unwrap())).
			TimeInForce(futures.TimeInForceType(order.EffectiveTimeInForce()))
	case types.OrderKindStopLimit:
		if order.Price.IsNone() || order.StopPrice.IsNone() {
			return types.OrderHandle{}, errors.NewValidationError("stop_price", "", "STOP_LIMIT orders need price and stop price")
		}

		// STOP on futures is a stop-limit: it rests at Price once StopPrice trades.
		service = service.
			Type(futures.OrderTypeStop).
			Price(b.formatPrice(order.Price.Unwrap())).
			StopPrice(b.formatPrice(order.StopPrice.Unwrap())).
			TimeInForce(futures.TimeInForceType(order.EffectiveTimeInForce()))
	default:
		return types.OrderHandle{}, errors.NewValidationError("kind", string(order.Kind), "unsupported order kind")
	}

	if order.ClientOrderID != "" {
		service = service.NewClientOrderID(order.ClientOrderID)
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return types.OrderHandle{}, classifyError("place order", err)
	}

	resp, err := service.Do(ctx)
	if err != nil {
		return types.OrderHandle{}, classifyError("place order", err)
	}

	return convertCreateOrderResponse(resp, order), nil
}

// PlaceOCO is not available on Binance futures; the OCO coordinator places
// the legs one by one instead.
func (b *BinanceFuturesProvider) PlaceOCO(_ context.Context, _, _ types.OrderRequest) (types.OrderHandle, types.OrderHandle, error) {
	return types.OrderHandle{}, types.OrderHandle{}, errors.New(errors.ErrCodeUnsupportedOperation,
		"binance futures has no native OCO orders")
}

// SupportsNativeOCO implements TradingSystemProvider.
func (b *BinanceFuturesProvider) SupportsNativeOCO() bool {
	return false
}

// CancelOrder cancels an open order.
func (b *BinanceFuturesProvider) CancelOrder(ctx context.Context, order types.OrderHandle) error {
	orderID, err := parseOrderID(order.OrderID)
	if err != nil {
		return err
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return classifyError("cancel order", err)
	}

	_, err = b.client.NewCancelOrderService().
		Symbol(order.Symbol).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return classifyError("cancel order", err)
	}

	return nil
}

// GetOrderStatus queries the order and returns its current state. A handle
// without an exchange order id is looked up by its client order id.
func (b *BinanceFuturesProvider) GetOrderStatus(ctx context.Context, order types.OrderHandle) (types.OrderHandle, error) {
	service := b.client.NewGetOrderService().Symbol(order.Symbol)

	if order.OrderID == "" && order.ClientOrderID != "" {
		service = service.OrigClientOrderID(order.ClientOrderID)
	} else {
		orderID, err := parseOrderID(order.OrderID)
		if err != nil {
			return types.OrderHandle{}, err
		}

		service = service.OrderID(orderID)
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return types.OrderHandle{}, classifyError("get order", err)
	}

	resp, err := service.Do(ctx)
	if err != nil {
		return types.OrderHandle{}, classifyError("get order", err)
	}

	return convertFuturesOrder(resp), nil
}

// GetMarketPrice returns the latest price of a symbol.
func (b *BinanceFuturesProvider) GetMarketPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return decimal.Zero, classifyError("get market price", err)
	}

	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, classifyError("get market price", err)
	}

	for _, p := range prices {
		if p == nil || p.Symbol != symbol {
			continue
		}

		price, parseErr := decimal.NewFromString(p.Price)
		if parseErr != nil || !price.IsPositive() {
			return decimal.Zero, errors.Newf(errors.ErrCodeMarketPriceMissing, "invalid price %q for %s", p.Price, symbol)
		}

		return price, nil
	}

	return decimal.Zero, errors.Newf(errors.ErrCodeMarketPriceMissing, "no market price for %s", symbol)
}

func (b *BinanceFuturesProvider) formatPrice(price decimal.Decimal) string {
	return price.Round(b.pricePrecision).String()
}

func mapSide(side types.OrderSide) (futures.SideType, error) {
	switch side {
	case types.OrderSideBuy:
		return futures.SideTypeBuy, nil
	case types.OrderSideSell:
		return futures.SideTypeSell, nil
	default:
		return "", errors.NewValidationError("side", string(side), "unsupported order side")
	}
}

func parseOrderID(orderID string) (int64, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid order ID format", err)
	}

	return id, nil
}

// mapFuturesOrderStatus maps Binance order status to our OrderStatus type.
func mapFuturesOrderStatus(status futures.OrderStatusType) types.OrderStatus {
	switch status {
	case futures.OrderStatusTypePartiallyFilled:
		return types.OrderStatusPartiallyFilled
	case futures.OrderStatusTypeFilled:
		return types.OrderStatusFilled
	case futures.OrderStatusTypeCanceled:
		return types.OrderStatusCanceled
	case futures.OrderStatusTypeRejected:
		return types.OrderStatusRejected
	case futures.OrderStatusTypeExpired:
		return types.OrderStatusExpired
	default:
		return types.OrderStatusNew
	}
}

func mapFuturesOrderKind(orderType futures.OrderType) types.OrderKind {
	switch orderType {
	case futures.OrderTypeMarket:
		return types.OrderKindMarket
	case futures.OrderTypeStop:
		return types.OrderKindStopLimit
	default:
		return types.OrderKindLimit
	}
}

func convertCreateOrderResponse(resp *futures.CreateOrderResponse, order types.OrderRequest) types.OrderHandle {
	if resp == nil {
		return types.OrderHandle{
			Symbol:       order.Symbol,
			Side:         order.Side,
			Kind:         order.Kind,
			Status:       types.OrderStatusNew,
			OrigQuantity: order.Quantity,
			AvgPrice:     optional.None[decimal.Decimal](),
			Price:        order.Price,
			StopPrice:    order.StopPrice,
			UpdatedAt:    time.Now(),
		}
	}

	handle := types.OrderHandle{
		OrderID:          strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID:    resp.ClientOrderID,
		Symbol:           resp.Symbol,
		Side:             order.Side,
		Kind:             order.Kind,
		Status:           mapFuturesOrderStatus(resp.Status),
		OrigQuantity:     parseDecimal(resp.OrigQuantity),
		ExecutedQuantity: parseDecimal(resp.ExecutedQuantity),
		AvgPrice:         parsePositive(resp.AvgPrice),
		Price:            parsePositive(resp.Price),
		StopPrice:        parsePositive(resp.StopPrice),
		UpdatedAt:        timeFromMillis(resp.UpdateTime),
	}

	if handle.Symbol == "" {
		handle.Symbol = order.Symbol
	}

	if handle.OrigQuantity.IsZero() {
		handle.OrigQuantity = order.Quantity
	}

	if handle.ClientOrderID == "" {
		handle.ClientOrderID = order.ClientOrderID
	}

	if handle.Price.IsNone() {
		handle.Price = order.Price
	}

	if handle.StopPrice.IsNone() {
		handle.StopPrice = order.StopPrice
	}

	return handle
}

func convertFuturesOrder(order *futures.Order) types.OrderHandle {
	side := types.OrderSideBuy
	if order.Side == futures.SideTypeSell {
		side = types.OrderSideSell
	}

	return types.OrderHandle{
		OrderID:          strconv.FormatInt(order.OrderID, 10),
		ClientOrderID:    order.ClientOrderID,
		Symbol:           order.Symbol,
		Side:             side,
		Kind:             mapFuturesOrderKind(order.Type),
		Status:           mapFuturesOrderStatus(order.Status),
		OrigQuantity:     parseDecimal(order.OrigQuantity),
		ExecutedQuantity: parseDecimal(order.ExecutedQuantity),
		AvgPrice:         parsePositive(order.AvgPrice),
		Price:            parsePositive(order.Price),
		StopPrice:        parsePositive(order.StopPrice),
		UpdatedAt:        timeFromMillis(order.UpdateTime),
	}
}

func parseDecimal(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}

	return d
}

// parsePositive treats empty and zero values ("0.00000") as absent.
func parsePositive(value string) optional.Option[decimal.Decimal] {
	d := parseDecimal(value)
	if !d.IsPositive() {
		return optional.None[decimal.Decimal]()
	}

	return optional.Some(d)
}

func timeFromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Now()
	}

	return time.UnixMilli(ms)
}
