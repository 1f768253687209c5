package types

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"github.com/shopspring/decimal"
)

type OrderSide string

type OrderKind string

type TimeInForce string

type OrderStatus string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

const (
	OrderKindMarket    OrderKind = "MARKET"
	OrderKindLimit     OrderKind = "LIMIT"
	OrderKindStopLimit OrderKind = "STOP_LIMIT"
)

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
)

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// IsTerminal reports whether no further fills can happen for the status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// OrderRequest is a typed, validated order ready to be sent to the exchange.
type OrderRequest struct {
	Symbol   string          `yaml:"symbol" json:"symbol" validate:"required,alphanum,uppercase,max=20"`
	Side     OrderSide       `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Kind     OrderKind       `yaml:"kind" json:"kind" validate:"required,oneof=MARKET LIMIT STOP_LIMIT"`
	Quantity decimal.Decimal `yaml:"quantity" json:"quantity"`
	// Price is the limit price. Required for LIMIT and STOP_LIMIT orders.
	Price optional.Option[decimal.Decimal] `yaml:"price" json:"price"`
	// StopPrice is the trigger price. Required for STOP_LIMIT orders.
	StopPrice   optional.Option[decimal.Decimal] `yaml:"stop_price" json:"stop_price"`
	TimeInForce TimeInForce                      `yaml:"time_in_force" json:"time_in_force" validate:"omitempty,oneof=GTC IOC FOK"`
	// ClientOrderID tags the order on the exchange, e.g. with an OCO link id.
	ClientOrderID string `yaml:"client_order_id" json:"client_order_id" validate:"omitempty,max=36"`
}

// EffectiveTimeInForce returns the time in force, defaulting to GTC.
func (o OrderRequest) EffectiveTimeInForce() TimeInForce {
	if o.TimeInForce == "" {
		return TimeInForceGTC
	}

	return o.TimeInForce
}

// Validate checks the request invariants. A request that passes Validate never
// misses a price field its kind requires.
func (o *OrderRequest) Validate() error {
	if err := validate.Struct(o); err != nil {
		return toValidationError(err)
	}

	if !o.Quantity.IsPositive() {
		return errors.NewValidationError("quantity", o.Quantity.String(), "must be greater than zero")
	}

	if err := validatePositive("price", o.Price); err != nil {
		return err
	}

	if err := validatePositive("stop_price", o.StopPrice); err != nil {
		return err
	}

	switch o.Kind {
	case OrderKindMarket:
		if o.Price.IsSome() {
			return errors.NewValidationError("price", o.Price.Unwrap().String(), "not allowed for MARKET orders")
		}

		if o.StopPrice.IsSome() {
			return errors.NewValidationError("stop_price", o.StopPrice.Unwrap().String(), "not allowed for MARKET orders")
		}
	case OrderKindLimit:
		if o.Price.IsNone() {
			return errors.NewValidationError("price", "", "required for LIMIT orders")
		}

		if o.StopPrice.IsSome() {
			return errors.NewValidationError("stop_price", o.StopPrice.Unwrap().String(), "not allowed for LIMIT orders")
		}
	case OrderKindStopLimit:
		if o.StopPrice.IsNone() {
			return errors.NewValidationError("stop_price", "", "required for STOP_LIMIT orders")
		}

		if o.Price.IsNone() {
			return errors.NewValidationError("price", "", "required for STOP_LIMIT orders")
		}

		stop := o.StopPrice.Unwrap()
		limit := o.Price.Unwrap()

		// A buy stop triggers on the way up, so its limit may not sit below the
		// trigger; a sell stop is the mirror image.
		if o.Side == OrderSideBuy && limit.LessThan(stop) {
			return errors.NewValidationErrorf("price", limit.String(),
				"BUY stop-limit price must be at or above stop price %s", stop.String())
		}

		if o.Side == OrderSideSell && limit.GreaterThan(stop) {
			return errors.NewValidationErrorf("price", limit.String(),
				"SELL stop-limit price must be at or below stop price %s", stop.String())
		}
	}

	return nil
}

// String renders the request for log lines and CLI output.
func (o OrderRequest) String() string {
	s := fmt.Sprintf("%s %s %s %s", o.Kind, o.Side, o.Quantity.String(), o.Symbol)
	if o.StopPrice.IsSome() {
		s += " stop " + o.StopPrice.Unwrap().String()
	}

	if o.Price.IsSome() {
		s += " @ " + o.Price.Unwrap().String()
	}

	return s
}

// OrderHandle is the exchange's view of a placed order.
type OrderHandle struct {
	// OrderID is the exchange-assigned identifier. Opaque to the engine.
	OrderID          string                           `yaml:"order_id" json:"order_id"`
	ClientOrderID    string                           `yaml:"client_order_id" json:"client_order_id"`
	Symbol           string                           `yaml:"symbol" json:"symbol"`
	Side             OrderSide                        `yaml:"side" json:"side"`
	Kind             OrderKind                        `yaml:"kind" json:"kind"`
	Status           OrderStatus                      `yaml:"status" json:"status"`
	OrigQuantity     decimal.Decimal                  `yaml:"orig_quantity" json:"orig_quantity"`
	ExecutedQuantity decimal.Decimal                  `yaml:"executed_quantity" json:"executed_quantity"`
	AvgPrice         optional.Option[decimal.Decimal] `yaml:"avg_price" json:"avg_price"`
	Price            optional.Option[decimal.Decimal] `yaml:"price" json:"price"`
	StopPrice        optional.Option[decimal.Decimal] `yaml:"stop_price" json:"stop_price"`
	UpdatedAt        time.Time                        `yaml:"updated_at" json:"updated_at"`
}

// FillPrice returns the price the executed quantity was filled at.
// Falls back to the limit price when the exchange reports no average.
func (h OrderHandle) FillPrice() optional.Option[decimal.Decimal] {
	if h.AvgPrice.IsSome() && h.AvgPrice.Unwrap().IsPositive() {
		return h.AvgPrice
	}

	if h.ExecutedQuantity.IsPositive() && h.Price.IsSome() {
		return h.Price
	}

	return optional.None[decimal.Decimal]()
}

// Notional returns executed quantity times fill price, zero when nothing executed.
func (h OrderHandle) Notional() decimal.Decimal {
	price := h.FillPrice()
	if price.IsNone() || !h.ExecutedQuantity.IsPositive() {
		return decimal.Zero
	}

	return h.ExecutedQuantity.Mul(price.Unwrap())
}

// validate reports field errors under their json names.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}

// CheckScale fails with a ValidationError when value has more than precision
// decimal places. Trailing zeros do not count.
func CheckScale(field string, value decimal.Decimal, precision int32) error {
	if !value.Truncate(precision).Equal(value) {
		return errors.NewValidationErrorf(field, value.String(), "has more than %d decimal places", precision)
	}

	return nil
}

func validatePositive(field string, value optional.Option[decimal.Decimal]) error {
	if value.IsSome() && !value.Unwrap().IsPositive() {
		return errors.NewValidationError(field, value.Unwrap().String(), "must be greater than zero")
	}

	return nil
}

// toValidationError converts the first validator field error into a ValidationError.
func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]

		return errors.NewValidationErrorf(fe.Field(), fmt.Sprintf("%v", fe.Value()),
			"failed %q check", fe.Tag())
	}

	return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order request", err)
}
