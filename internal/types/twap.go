package types

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"github.com/shopspring/decimal"
)

// DefaultQuantityPrecision allows satoshi-level quantities (0.00000001).
const DefaultQuantityPrecision = 8

type TWAPState string

const (
	TWAPStatePending    TWAPState = "PENDING"
	TWAPStateSubmitting TWAPState = "SUBMITTING"
	TWAPStateSubmitted  TWAPState = "SUBMITTED"
	TWAPStateWaiting    TWAPState = "WAITING"
	TWAPStateCompleted  TWAPState = "COMPLETED"
	TWAPStateDegraded   TWAPState = "DEGRADED"
	TWAPStateCanceled   TWAPState = "CANCELED"
)

// TWAPPlan splits TotalQuantity into NumOrders child orders spaced by Interval.
type TWAPPlan struct {
	Symbol        string          `yaml:"symbol" json:"symbol"`
	Side          OrderSide       `yaml:"side" json:"side"`
	TotalQuantity decimal.Decimal `yaml:"total_quantity" json:"total_quantity"`
	NumOrders     int             `yaml:"num_orders" json:"num_orders"`
	Interval      time.Duration   `yaml:"interval" json:"interval"`
	// OrderKind is MARKET or LIMIT.
	OrderKind OrderKind `yaml:"order_kind" json:"order_kind"`
	// LimitPrice fixes the price of every LIMIT child.
	LimitPrice optional.Option[decimal.Decimal] `yaml:"limit_price" json:"limit_price"`
	// PriceOffset prices each LIMIT child off the market at submission time:
	// BUY children at market + offset, SELL children at market - offset.
	PriceOffset       optional.Option[decimal.Decimal] `yaml:"price_offset" json:"price_offset"`
	TimeInForce       TimeInForce                      `yaml:"time_in_force" json:"time_in_force"`
	QuantityPrecision int32                            `yaml:"quantity_precision" json:"quantity_precision"`
}

// Validate checks the plan before any order is sent.
func (p TWAPPlan) Validate() error {
	child := OrderRequest{
		Symbol:        p.Symbol,
		Side:          p.Side,
		Kind:          OrderKindMarket,
		Quantity:      p.TotalQuantity,
		Price:         optional.None[decimal.Decimal](),
		StopPrice:     optional.None[decimal.Decimal](),
		TimeInForce:   p.TimeInForce,
		ClientOrderID: "",
	}
	if err := child.Validate(); err != nil {
		return err
	}

	if p.NumOrders < 1 {
		return errors.NewValidationErrorf("num_orders", "", "must be at least 1, got %d", p.NumOrders)
	}

	if p.Interval < 0 {
		return errors.NewValidationError("interval", p.Interval.String(), "must not be negative")
	}

	if p.QuantityPrecision < 0 {
		return errors.NewValidationErrorf("quantity_precision", "", "must not be negative, got %d", p.QuantityPrecision)
	}

	if err := CheckScale("total_quantity", p.TotalQuantity, p.precision()); err != nil {
		return err
	}

	switch p.OrderKind {
	case OrderKindMarket:
		if p.LimitPrice.IsSome() || p.PriceOffset.IsSome() {
			return errors.NewValidationError("order_kind", string(p.OrderKind), "MARKET children take no limit price or offset")
		}
	case OrderKindLimit:
		if p.LimitPrice.IsSome() == p.PriceOffset.IsSome() {
			return errors.NewValidationError("limit_price", "", "LIMIT children need exactly one of limit price or price offset")
		}

		if err := validatePositive("limit_price", p.LimitPrice); err != nil {
			return err
		}

		if p.PriceOffset.IsSome() && p.PriceOffset.Unwrap().IsNegative() {
			return errors.NewValidationError("price_offset", p.PriceOffset.Unwrap().String(), "must not be negative")
		}
	default:
		return errors.NewValidationError("order_kind", string(p.OrderKind), "must be MARKET or LIMIT")
	}

	slices := p.Slices()
	if !slices[0].IsPositive() {
		return errors.NewValidationErrorf("num_orders", "",
			"%d slices of %s round to zero at precision %d", p.NumOrders, p.TotalQuantity.String(), p.precision())
	}

	return nil
}

// Slices returns the child quantities. Every slice but the last is the total
// divided by NumOrders, truncated to QuantityPrecision. The last slice takes
// whatever is left so the slices always sum to exactly TotalQuantity.
func (p TWAPPlan) Slices() []decimal.Decimal {
	if p.NumOrders < 1 {
		return nil
	}

	n := decimal.NewFromInt(int64(p.NumOrders))
	precision := p.precision()
	// Divide with headroom before truncating so the truncation is exact.
	each := p.TotalQuantity.DivRound(n, precision+4).Truncate(precision)

	slices := make([]decimal.Decimal, p.NumOrders)
	allocated := decimal.Zero

	for i := 0; i < p.NumOrders-1; i++ {
		slices[i] = each
		allocated = allocated.Add(each)
	}

	slices[p.NumOrders-1] = p.TotalQuantity.Sub(allocated)

	return slices
}

// ChildLimitPrice returns the limit price of a LIMIT child given the market
// price at submission. MARKET plans return None.
func (p TWAPPlan) ChildLimitPrice(market decimal.Decimal) optional.Option[decimal.Decimal] {
	if p.OrderKind != OrderKindLimit {
		return optional.None[decimal.Decimal]()
	}

	if p.LimitPrice.IsSome() {
		return p.LimitPrice
	}

	offset := p.PriceOffset.Unwrap()
	if p.Side == OrderSideBuy {
		return optional.Some(market.Add(offset))
	}

	return optional.Some(market.Sub(offset))
}

// NeedsMarketPrice reports whether children are priced off the live market.
func (p TWAPPlan) NeedsMarketPrice() bool {
	return p.OrderKind == OrderKindLimit && p.PriceOffset.IsSome()
}

func (p TWAPPlan) precision() int32 {
	if p.QuantityPrecision == 0 {
		return DefaultQuantityPrecision
	}

	return p.QuantityPrecision
}
