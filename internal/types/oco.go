package types

import (
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"github.com/shopspring/decimal"
)

type OCOState string

const (
	OCOStateOpen     OCOState = "OPEN"
	OCOStateClosing  OCOState = "CLOSING"
	OCOStateClosed   OCOState = "CLOSED"
	OCOStateCanceled OCOState = "CANCELED"
)

// OCORequest describes a take-profit / stop-loss pair on one side.
type OCORequest struct {
	Symbol     string          `yaml:"symbol" json:"symbol"`
	Side       OrderSide       `yaml:"side" json:"side"`
	Quantity   decimal.Decimal `yaml:"quantity" json:"quantity"`
	TakeProfit decimal.Decimal `yaml:"take_profit" json:"take_profit"`
	StopLoss   decimal.Decimal `yaml:"stop_loss" json:"stop_loss"`
}

// Validate checks that take-profit and stop-loss sit on the correct sides of each
// other: a SELL pair takes profit above its stop, a BUY pair below it.
func (r OCORequest) Validate() error {
	if !r.TakeProfit.IsPositive() {
		return errors.NewValidationError("take_profit", r.TakeProfit.String(), "must be greater than zero")
	}

	if !r.StopLoss.IsPositive() {
		return errors.NewValidationError("stop_loss", r.StopLoss.String(), "must be greater than zero")
	}

	switch r.Side {
	case OrderSideSell:
		if !r.TakeProfit.GreaterThan(r.StopLoss) {
			return errors.NewValidationErrorf("take_profit", r.TakeProfit.String(),
				"SELL take-profit must be above stop-loss %s", r.StopLoss.String())
		}
	case OrderSideBuy:
		if !r.TakeProfit.LessThan(r.StopLoss) {
			return errors.NewValidationErrorf("take_profit", r.TakeProfit.String(),
				"BUY take-profit must be below stop-loss %s", r.StopLoss.String())
		}
	default:
		return errors.NewValidationError("side", string(r.Side), "must be BUY or SELL")
	}

	return nil
}

// ValidateAgainstMarket checks that the current market price lies strictly
// between the two legs.
func (r OCORequest) ValidateAgainstMarket(market decimal.Decimal) error {
	lower, upper := r.StopLoss, r.TakeProfit
	if r.Side == OrderSideBuy {
		lower, upper = r.TakeProfit, r.StopLoss
	}

	if !market.GreaterThan(lower) || !market.LessThan(upper) {
		return errors.NewValidationErrorf("market_price", market.String(),
			"%s OCO needs the market between %s and %s", r.Side, lower.String(), upper.String())
	}

	return nil
}

// OCOPair is a linked take-profit / stop-loss pair. At most one leg may fill;
// the other must be canceled before the pair counts as closed.
type OCOPair struct {
	LinkID     string      `yaml:"link_id" json:"link_id"`
	Symbol     string      `yaml:"symbol" json:"symbol"`
	Side       OrderSide   `yaml:"side" json:"side"`
	TakeProfit OrderHandle `yaml:"take_profit" json:"take_profit"`
	StopLoss   OrderHandle `yaml:"stop_loss" json:"stop_loss"`
	State      OCOState    `yaml:"state" json:"state"`
	// Native is true when the exchange links the legs itself.
	Native bool `yaml:"native" json:"native"`
}

// NewOCOPair creates an open pair from two live legs.
func NewOCOPair(linkID string, takeProfit, stopLoss OrderHandle, native bool) *OCOPair {
	return &OCOPair{
		LinkID:     linkID,
		Symbol:     takeProfit.Symbol,
		Side:       takeProfit.Side,
		TakeProfit: takeProfit,
		StopLoss:   stopLoss,
		State:      OCOStateOpen,
		Native:     native,
	}
}

// IsDone reports whether the pair reached CLOSED or CANCELED.
func (p *OCOPair) IsDone() bool {
	return p.State == OCOStateClosed || p.State == OCOStateCanceled
}

// FilledLeg returns the leg that filled, if any.
func (p *OCOPair) FilledLeg() (OrderHandle, bool) {
	switch {
	case p.TakeProfit.Status == OrderStatusFilled:
		return p.TakeProfit, true
	case p.StopLoss.Status == OrderStatusFilled:
		return p.StopLoss, true
	default:
		return OrderHandle{}, false
	}
}

// Sibling returns the leg linked to the given order id.
func (p *OCOPair) Sibling(orderID string) (OrderHandle, bool) {
	switch orderID {
	case p.TakeProfit.OrderID:
		return p.StopLoss, true
	case p.StopLoss.OrderID:
		return p.TakeProfit, true
	default:
		return OrderHandle{}, false
	}
}

// Apply records a fresh status for one of the legs and advances the pair state.
// It returns an error when the update belongs to neither leg or when both legs
// have filled.
func (p *OCOPair) Apply(update OrderHandle) error {
	switch update.OrderID {
	case p.TakeProfit.OrderID:
		p.TakeProfit = update
	case p.StopLoss.OrderID:
		p.StopLoss = update
	default:
		return errors.Newf(errors.ErrCodeOrderNotFound, "order %s is not a leg of OCO %s", update.OrderID, p.LinkID)
	}

	tp, sl := p.TakeProfit.Status, p.StopLoss.Status

	if tp == OrderStatusFilled && sl == OrderStatusFilled {
		return errors.Newf(errors.ErrCodeOCOInvariantViolated, "both legs of OCO %s filled", p.LinkID)
	}

	switch {
	case tp == OrderStatusFilled || sl == OrderStatusFilled:
		other := sl
		if sl == OrderStatusFilled {
			other = tp
		}

		if other.IsTerminal() {
			p.State = OCOStateClosed
		} else {
			p.State = OCOStateClosing
		}
	case tp.IsTerminal() && sl.IsTerminal():
		p.State = OCOStateCanceled
	}

	return nil
}
