package execution

import (
	"strconv"
	"strings"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-orderbot/internal/types"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"github.com/shopspring/decimal"
)

// RawOrder holds the order fields exactly as the operator typed them.
type RawOrder struct {
	Symbol      string
	Side        string
	Kind        string
	Quantity    string
	Price       string
	StopPrice   string
	TimeInForce string
	// QuantityPrecision is the number of decimals the exchange accepts for
	// the quantity. 0 means types.DefaultQuantityPrecision.
	QuantityPrecision int32
}

// RawOCO holds the fields of an OCO command.
type RawOCO struct {
	Symbol            string
	Side              string
	Quantity          string
	TakeProfit        string
	StopLoss          string
	QuantityPrecision int32
}

// RawTWAP holds the fields of a TWAP command.
type RawTWAP struct {
	Symbol        string
	Side          string
	TotalQuantity string
	NumOrders     string
	// Interval is a Go duration ("30s", "1m") or a plain number of seconds.
	Interval          string
	OrderKind         string
	LimitPrice        string
	PriceOffset       string
	TimeInForce       string
	QuantityPrecision int32
}

// RawGrid holds the fields of a grid command.
type RawGrid struct {
	Symbol            string
	Lower             string
	Upper             string
	Levels            string
	QuantityPerLevel  string
	TimeInForce       string
	QuantityPrecision int32
	// PricePrecision is the number of decimals levels are rounded to.
	// 0 means types.DefaultPricePrecision.
	PricePrecision int32
}

// ParseOrder normalizes raw fields into a validated OrderRequest.
// Empty Price and StopPrice mean absent. A quantity with more decimals than
// QuantityPrecision is refused rather than rounded.
func ParseOrder(raw RawOrder) (types.OrderRequest, error) {
	side, err := parseSide(raw.Side)
	if err != nil {
		return types.OrderRequest{}, err
	}

	kind, err := parseKind(raw.Kind)
	if err != nil {
		return types.OrderRequest{}, err
	}

	quantity, err := parseQuantity("quantity", raw.Quantity, raw.QuantityPrecision)
	if err != nil {
		return types.OrderRequest{}, err
	}

	price, err := parseOptionalPrice("price", raw.Price)
	if err != nil {
		return types.OrderRequest{}, err
	}

	stopPrice, err := parseOptionalPrice("stop_price", raw.StopPrice)
	if err != nil {
		return types.OrderRequest{}, err
	}

	tif, err := parseTimeInForce(raw.TimeInForce)
	if err != nil {
		return types.OrderRequest{}, err
	}

	order := types.OrderRequest{
		Symbol:        normalizeSymbol(raw.Symbol),
		Side:          side,
		Kind:          kind,
		Quantity:      quantity,
		Price:         price,
		StopPrice:     stopPrice,
		TimeInForce:   tif,
		ClientOrderID: "",
	}

	if err := order.Validate(); err != nil {
		return types.OrderRequest{}, err
	}

	return order, nil
}

// ParseOCO normalizes raw fields into a validated OCORequest. The market-side
// check needs a live price and is left to the OCO coordinator.
func ParseOCO(raw RawOCO) (types.OCORequest, error) {
	side, err := parseSide(raw.Side)
	if err != nil {
		return types.OCORequest{}, err
	}

	quantity, err := parseQuantity("quantity", raw.Quantity, raw.QuantityPrecision)
	if err != nil {
		return types.OCORequest{}, err
	}

	takeProfit, err := parsePositiveDecimal("take_profit", raw.TakeProfit)
	if err != nil {
		return types.OCORequest{}, err
	}

	stopLoss, err := parsePositiveDecimal("stop_loss", raw.StopLoss)
	if err != nil {
		return types.OCORequest{}, err
	}

	request := types.OCORequest{
		Symbol:     normalizeSymbol(raw.Symbol),
		Side:       side,
		Quantity:   quantity,
		TakeProfit: takeProfit,
		StopLoss:   stopLoss,
	}

	if err := validateOCO(request); err != nil {
		return types.OCORequest{}, err
	}

	return request, nil
}

// ParseTWAP normalizes raw fields into a validated TWAPPlan. An empty order
// kind means MARKET children.
func ParseTWAP(raw RawTWAP) (types.TWAPPlan, error) {
	side, err := parseSide(raw.Side)
	if err != nil {
		return types.TWAPPlan{}, err
	}

	total, err := parsePositiveDecimal("total_quantity", raw.TotalQuantity)
	if err != nil {
		return types.TWAPPlan{}, err
	}

	numOrders, err := parseCount("num_orders", raw.NumOrders)
	if err != nil {
		return types.TWAPPlan{}, err
	}

	interval, err := parseInterval(raw.Interval)
	if err != nil {
		return types.TWAPPlan{}, err
	}

	kind := types.OrderKindMarket
	if strings.TrimSpace(raw.OrderKind) != "" {
		kind, err = parseKind(raw.OrderKind)
		if err != nil {
			return types.TWAPPlan{}, err
		}
	}

	limitPrice, err := parseOptionalPrice("limit_price", raw.LimitPrice)
	if err != nil {
		return types.TWAPPlan{}, err
	}

	offset := optional.None[decimal.Decimal]()
	if strings.TrimSpace(raw.PriceOffset) != "" {
		value, err := parseDecimal("price_offset", raw.PriceOffset)
		if err != nil {
			return types.TWAPPlan{}, err
		}

		offset = optional.Some(value)
	}

	tif, err := parseTimeInForce(raw.TimeInForce)
	if err != nil {
		return types.TWAPPlan{}, err
	}

	plan := types.TWAPPlan{
		Symbol:            normalizeSymbol(raw.Symbol),
		Side:              side,
		TotalQuantity:     total,
		NumOrders:         numOrders,
		Interval:          interval,
		OrderKind:         kind,
		LimitPrice:        limitPrice,
		PriceOffset:       offset,
		TimeInForce:       tif,
		QuantityPrecision: withDefault(raw.QuantityPrecision, types.DefaultQuantityPrecision),
	}

	if err := plan.Validate(); err != nil {
		return types.TWAPPlan{}, err
	}

	return plan, nil
}

// ParseGrid normalizes raw fields into a validated GridPlan.
func ParseGrid(raw RawGrid) (types.GridPlan, error) {
	lower, err := parsePositiveDecimal("lower", raw.Lower)
	if err != nil {
		return types.GridPlan{}, err
	}

	upper, err := parsePositiveDecimal("upper", raw.Upper)
	if err != nil {
		return types.GridPlan{}, err
	}

	levels, err := parseCount("levels", raw.Levels)
	if err != nil {
		return types.GridPlan{}, err
	}

	quantity, err := parsePositiveDecimal("quantity_per_level", raw.QuantityPerLevel)
	if err != nil {
		return types.GridPlan{}, err
	}

	tif, err := parseTimeInForce(raw.TimeInForce)
	if err != nil {
		return types.GridPlan{}, err
	}

	plan := types.GridPlan{
		Symbol:            normalizeSymbol(raw.Symbol),
		Lower:             lower,
		Upper:             upper,
		Levels:            levels,
		QuantityPerLevel:  quantity,
		QuantityPrecision: withDefault(raw.QuantityPrecision, types.DefaultQuantityPrecision),
		PricePrecision:    withDefault(raw.PricePrecision, types.DefaultPricePrecision),
		TimeInForce:       tif,
	}

	if err := plan.Validate(); err != nil {
		return types.GridPlan{}, err
	}

	return plan, nil
}

// validateOCO checks the pair and both legs it will produce.
func validateOCO(request types.OCORequest) error {
	if err := request.Validate(); err != nil {
		return err
	}

	takeProfit, stopLoss := ocoLegs(request, "")
	if err := takeProfit.Validate(); err != nil {
		return err
	}

	return stopLoss.Validate()
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func parseSide(value string) (types.OrderSide, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "BUY":
		return types.OrderSideBuy, nil
	case "SELL":
		return types.OrderSideSell, nil
	default:
		return "", errors.NewValidationError("side", value, "must be BUY or SELL")
	}
}

func parseKind(value string) (types.OrderKind, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalized)

	switch normalized {
	case "MARKET":
		return types.OrderKindMarket, nil
	case "LIMIT":
		return types.OrderKindLimit, nil
	case "STOPLIMIT":
		return types.OrderKindStopLimit, nil
	default:
		return "", errors.NewValidationError("kind", value, "must be MARKET, LIMIT or STOP_LIMIT")
	}
}

// parseTimeInForce treats an empty value as GTC.
func parseTimeInForce(value string) (types.TimeInForce, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", "GTC":
		return types.TimeInForceGTC, nil
	case "IOC":
		return types.TimeInForceIOC, nil
	case "FOK":
		return types.TimeInForceFOK, nil
	default:
		return "", errors.NewValidationError("time_in_force", value, "must be GTC, IOC or FOK")
	}
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero, errors.NewValidationError(field, value, "is required")
	}

	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, errors.NewValidationError(field, value, "is not a finite decimal number")
	}

	if d.IsNegative() {
		return decimal.Zero, errors.NewValidationError(field, value, "must not be negative")
	}

	return d, nil
}

func parsePositiveDecimal(field, value string) (decimal.Decimal, error) {
	d, err := parseDecimal(field, value)
	if err != nil {
		return decimal.Zero, err
	}

	if !d.IsPositive() {
		return decimal.Zero, errors.NewValidationError(field, value, "must be greater than zero")
	}

	return d, nil
}

// parseQuantity parses a positive quantity that fits precision decimals.
func parseQuantity(field, value string, precision int32) (decimal.Decimal, error) {
	d, err := parsePositiveDecimal(field, value)
	if err != nil {
		return decimal.Zero, err
	}

	if err := types.CheckScale(field, d, withDefault(precision, types.DefaultQuantityPrecision)); err != nil {
		return decimal.Zero, err
	}

	return d, nil
}

func withDefault(precision, fallback int32) int32 {
	if precision == 0 {
		return fallback
	}

	return precision
}

func parseOptionalPrice(field, value string) (optional.Option[decimal.Decimal], error) {
	if strings.TrimSpace(value) == "" {
		return optional.None[decimal.Decimal](), nil
	}

	d, err := parsePositiveDecimal(field, value)
	if err != nil {
		return optional.None[decimal.Decimal](), err
	}

	return optional.Some(d), nil
}

func parseCount(field, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, errors.NewValidationError(field, value, "is not an integer")
	}

	if n < 1 {
		return 0, errors.NewValidationError(field, value, "must be at least 1")
	}

	return n, nil
}

func parseInterval(value string) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, errors.NewValidationError("interval", value, "is required")
	}

	if d, err := time.ParseDuration(trimmed); err == nil {
		if d < 0 {
			return 0, errors.NewValidationError("interval", value, "must not be negative")
		}

		return d, nil
	}

	seconds, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, errors.NewValidationError("interval", value, "must be a duration like 30s or a number of seconds")
	}

	if seconds.IsNegative() {
		return 0, errors.NewValidationError("interval", value, "must not be negative")
	}

	return time.Duration(seconds.Mul(decimal.NewFromInt(int64(time.Second))).IntPart()), nil
}
