package execution

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-orderbot/internal/types"
	"github.com/shopspring/decimal"
)

// AvgPricePrecision is the number of decimals the volume-weighted average is rounded to.
const AvgPricePrecision = 8

// ResultAggregator collects the outcome of one strategy run and turns it into
// an immutable StrategyResult. It is owned by a single run and not safe for
// concurrent use.
type ResultAggregator struct {
	id        string
	kind      types.StrategyKind
	symbol    string
	requested int
	handles   []types.OrderHandle
	failures  []types.LegFailure
	skipped   []decimal.Decimal
	twapState types.TWAPState
	startedAt time.Time
	canceled  error
	aborted   error
	now       func() time.Time
}

// NewResultAggregator starts collecting a run that intends to place requested orders.
func NewResultAggregator(kind types.StrategyKind, symbol string, requested int) *ResultAggregator {
	return newResultAggregator(newStrategyID(), kind, symbol, requested, time.Now)
}

func newResultAggregator(id string, kind types.StrategyKind, symbol string, requested int, now func() time.Time) *ResultAggregator {
	return &ResultAggregator{
		id:        id,
		kind:      kind,
		symbol:    symbol,
		requested: requested,
		handles:   nil,
		failures:  nil,
		skipped:   nil,
		twapState: "",
		startedAt: now(),
		canceled:  nil,
		aborted:   nil,
		now:       now,
	}
}

// ID returns the strategy run id.
func (a *ResultAggregator) ID() string {
	return a.id
}

// Placed records an order the exchange accepted.
func (a *ResultAggregator) Placed(handle types.OrderHandle) {
	a.handles = append(a.handles, handle)
}

// Failed records a child order that could not be placed.
func (a *ResultAggregator) Failed(index int, request types.OrderRequest, err error) {
	a.failures = append(a.failures, types.LegFailure{Index: index, Request: request, Error: err})
}

// Skipped records a grid level no order was placed at.
func (a *ResultAggregator) Skipped(level decimal.Decimal) {
	a.skipped = append(a.skipped, level)
}

// SetTWAPState records the scheduler state reported with the result.
func (a *ResultAggregator) SetTWAPState(state types.TWAPState) {
	a.twapState = state
}

// Cancel marks the run as stopped from outside.
func (a *ResultAggregator) Cancel(cause error) {
	a.canceled = cause
}

// Abort marks the run as failed before it could place its orders.
func (a *ResultAggregator) Abort(cause error) {
	a.aborted = cause
}

// Finalize builds the result. Handles and failures are copied, so the result
// does not change if the aggregator is used afterwards.
func (a *ResultAggregator) Finalize() types.StrategyResult {
	executed, avg := volumeWeighted(a.handles)

	result := types.StrategyResult{
		ID:               a.id,
		Kind:             a.kind,
		Symbol:           a.symbol,
		Status:           a.status(),
		Handles:          append([]types.OrderHandle(nil), a.handles...),
		Failures:         append([]types.LegFailure(nil), a.failures...),
		Requested:        a.requested,
		Succeeded:        len(a.handles),
		ExecutedQuantity: executed,
		AvgPrice:         avg,
		BuyCount:         0,
		SellCount:        0,
		SkippedCount:     len(a.skipped),
		SkippedLevels:    append([]decimal.Decimal(nil), a.skipped...),
		TWAPState:        a.twapState,
		StartedAt:        a.startedAt,
		FinishedAt:       a.now(),
		Error:            nil,
	}

	for _, handle := range a.handles {
		if handle.Side == types.OrderSideBuy {
			result.BuyCount++
		} else {
			result.SellCount++
		}
	}

	switch {
	case a.canceled != nil:
		result.Error = a.canceled
	case a.aborted != nil:
		result.Error = a.aborted
	}

	return result
}

func (a *ResultAggregator) status() types.StrategyStatus {
	switch {
	case a.canceled != nil:
		return types.StrategyStatusCanceled
	case a.aborted != nil:
		return types.StrategyStatusFailed
	case len(a.handles) >= a.requested && len(a.failures) == 0:
		return types.StrategyStatusCompleted
	case len(a.handles) == 0:
		return types.StrategyStatusFailed
	default:
		return types.StrategyStatusDegraded
	}
}

// volumeWeighted returns the executed quantity and sum(qty*price)/sum(qty) over
// the filled part of every handle. The average is None when nothing executed.
func volumeWeighted(handles []types.OrderHandle) (decimal.Decimal, optional.Option[decimal.Decimal]) {
	quantity := decimal.Zero
	notional := decimal.Zero

	for _, handle := range handles {
		value := handle.Notional()
		if value.IsZero() {
			continue
		}

		quantity = quantity.Add(handle.ExecutedQuantity)
		notional = notional.Add(value)
	}

	if !quantity.IsPositive() {
		return decimal.Zero, optional.None[decimal.Decimal]()
	}

	return quantity, optional.Some(notional.DivRound(quantity, AvgPricePrecision))
}

// FromOrder reports a single placed order in the strategy result shape.
func FromOrder(handle types.OrderHandle) types.StrategyResult {
	aggregator := NewResultAggregator(types.StrategyKindFor(handle.Kind), handle.Symbol, 1)
	aggregator.Placed(handle)

	return aggregator.Finalize()
}

// FromOCO reports a placed OCO pair in the strategy result shape. A pair whose
// legs were both canceled reports CANCELED.
func FromOCO(pair *types.OCOPair) types.StrategyResult {
	aggregator := NewResultAggregator(types.StrategyKindOCO, pair.Symbol, 2)
	aggregator.Placed(pair.TakeProfit)
	aggregator.Placed(pair.StopLoss)

	result := aggregator.Finalize()
	if pair.LinkID != "" {
		result.ID = pair.LinkID
	}

	if pair.State == types.OCOStateCanceled {
		result.Status = types.StrategyStatusCanceled
	}

	return result
}
