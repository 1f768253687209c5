package execution

import (
	"context"
	"strconv"
	"time"

	"github.com/moznion/go-optional"
	internalLog "github.com/rxtech-lab/argo-orderbot/internal/log"
	"github.com/rxtech-lab/argo-orderbot/internal/logger"
	tradingprovider "github.com/rxtech-lab/argo-orderbot/internal/trading/provider"
	"github.com/rxtech-lab/argo-orderbot/internal/types"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SliceReport describes one TWAP child after its placement attempt.
type SliceReport struct {
	StrategyID string
	// Index is zero based.
	Index       int
	Total       int
	Request     types.OrderRequest
	Handle      optional.Option[types.OrderHandle]
	Error       error
	SubmittedAt time.Time
	// NextAt is when the following slice is due; zero after the last slice.
	NextAt time.Time
}

// OnSliceCallback is called after every slice, placed or failed.
type OnSliceCallback func(report SliceReport)

// TWAPScheduler executes TWAP plans one slice at a time.
type TWAPScheduler struct {
	provider      tradingprovider.TradingSystemProvider
	executor      *OrderExecutor
	audit         auditor
	log           *logger.Logger
	refreshStatus bool
	onSlice       *OnSliceCallback
	now           func() time.Time
}

// NewTWAPScheduler creates a scheduler. With refreshStatus every slice the
// exchange did not report terminal is queried once more after placement.
func NewTWAPScheduler(
	provider tradingprovider.TradingSystemProvider,
	executor *OrderExecutor,
	audit internalLog.Log,
	log *logger.Logger,
	refreshStatus bool,
	onSlice *OnSliceCallback,
) *TWAPScheduler {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &TWAPScheduler{
		provider:      provider,
		executor:      executor,
		audit:         newAuditor(audit),
		log:           log,
		refreshStatus: refreshStatus,
		onSlice:       onSlice,
		now:           time.Now,
	}
}

// Execute places the plan's slices in index order. Slice i+1 is submitted no
// earlier than Interval after slice i was submitted. A failed slice is recorded
// and the plan moves on. Canceling ctx stops the plan without waiting out the
// current interval; the result is then CANCELED and the error wraps ctx.Err().
//
// The returned error is result.Err(): nil when every slice was placed and a
// *errors.PartialStrategyFailure when only some were.
func (s *TWAPScheduler) Execute(ctx context.Context, plan types.TWAPPlan) (types.StrategyResult, error) {
	if err := plan.Validate(); err != nil {
		return types.StrategyResult{}, err
	}

	slices := plan.Slices()
	aggregator := newResultAggregator(newStrategyID(), types.StrategyKindTWAP, plan.Symbol, len(slices), s.now)
	aggregator.SetTWAPState(types.TWAPStatePending)

	scope := auditScope{strategyID: aggregator.ID(), kind: types.StrategyKindTWAP, symbol: plan.Symbol}
	s.audit.emit(scope, internalLog.Event{
		Type:     internalLog.EventStrategyStarted,
		Side:     string(plan.Side),
		Quantity: plan.TotalQuantity,
		Fields: map[string]string{
			"num_orders": strconv.Itoa(plan.NumOrders),
			"interval":   plan.Interval.String(),
			"order_kind": string(plan.OrderKind),
		},
	})

	var nextAt time.Time

	for i, quantity := range slices {
		if i > 0 {
			aggregator.SetTWAPState(types.TWAPStateWaiting)
		}

		if err := sleepUntil(ctx, nextAt, s.now); err != nil {
			aggregator.Cancel(err)

			break
		}

		aggregator.SetTWAPState(types.TWAPStateSubmitting)

		submittedAt := s.now()
		if i < len(slices)-1 {
			nextAt = submittedAt.Add(plan.Interval)
		} else {
			nextAt = time.Time{}
		}

		report := s.executeSlice(ctx, scope, plan, i, quantity, aggregator)
		report.Total = len(slices)
		report.SubmittedAt = submittedAt
		report.NextAt = nextAt

		aggregator.SetTWAPState(types.TWAPStateSubmitted)

		if s.onSlice != nil {
			(*s.onSlice)(report)
		}
	}

	result := aggregator.Finalize()

	switch {
	case result.Status == types.StrategyStatusCanceled:
		result.TWAPState = types.TWAPStateCanceled
	case result.Failed() > 0:
		result.TWAPState = types.TWAPStateDegraded
	default:
		result.TWAPState = types.TWAPStateCompleted
	}

	s.audit.emit(scope, strategyCompletedEvent(result))
	s.log.Info("TWAP finished",
		zap.String("strategy_id", result.ID),
		zap.String("status", string(result.Status)),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("requested", result.Requested),
		zap.String("executed_quantity", result.ExecutedQuantity.String()),
	)

	return result, result.Err()
}

// executeSlice builds and places slice i and records the outcome.
func (s *TWAPScheduler) executeSlice(
	ctx context.Context,
	scope auditScope,
	plan types.TWAPPlan,
	index int,
	quantity decimal.Decimal,
	aggregator *ResultAggregator,
) SliceReport {
	order := types.OrderRequest{
		Symbol:        plan.Symbol,
		Side:          plan.Side,
		Kind:          plan.OrderKind,
		Quantity:      quantity,
		Price:         plan.LimitPrice,
		StopPrice:     optional.None[decimal.Decimal](),
		TimeInForce:   plan.TimeInForce,
		ClientOrderID: childOrderID(scope.strategyID, "s", index),
	}

	if plan.OrderKind == types.OrderKindMarket {
		order.TimeInForce = ""
	}

	report := SliceReport{
		StrategyID: scope.strategyID,
		Index:      index,
		Request:    order,
		Handle:     optional.None[types.OrderHandle](),
	}

	fields := map[string]string{"slice": strconv.Itoa(index + 1)}

	if plan.NeedsMarketPrice() {
		market, err := s.provider.GetMarketPrice(ctx, plan.Symbol)
		if err != nil {
			return s.sliceFailed(scope, aggregator, report, fields, toExchangeError("get market price", err))
		}

		order.Price = plan.ChildLimitPrice(market)
		report.Request = order
	}

	handle, err := s.executor.place(ctx, scope, order, internalLog.EventSlicePlaced, internalLog.EventSliceFailed, fields)
	if err != nil {
		report.Error = err
		aggregator.Failed(index, order, err)

		return report
	}

	if s.refreshStatus && !handle.Status.IsTerminal() {
		fresh, err := s.provider.GetOrderStatus(ctx, handle)
		if err != nil {
			s.log.Warn("Failed to refresh TWAP slice", zap.String("order_id", handle.OrderID), zap.Error(err))
		} else {
			handle = fresh
		}
	}

	aggregator.Placed(handle)
	report.Handle = optional.Some(handle)

	return report
}

func (s *TWAPScheduler) sliceFailed(
	scope auditScope,
	aggregator *ResultAggregator,
	report SliceReport,
	fields map[string]string,
	err error,
) SliceReport {
	s.audit.emit(scope, withFields(orderEvent(internalLog.EventSliceFailed, report.Request, types.OrderHandle{}, err), fields))
	aggregator.Failed(report.Index, report.Request, err)
	report.Error = err

	return report
}

// sleepUntil blocks until deadline or until ctx ends, whichever comes first.
// A zero or past deadline only checks ctx.
func sleepUntil(ctx context.Context, deadline time.Time, now func() time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if deadline.IsZero() {
		return nil
	}

	wait := deadline.Sub(now())
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func strategyCompletedEvent(result types.StrategyResult) internalLog.Event {
	event := internalLog.Event{
		Type:     internalLog.EventStrategyCompleted,
		Symbol:   result.Symbol,
		Quantity: result.ExecutedQuantity,
		Fields: map[string]string{
			"status":    string(result.Status),
			"requested": strconv.Itoa(result.Requested),
			"succeeded": strconv.Itoa(result.Succeeded),
		},
	}

	if result.AvgPrice.IsSome() {
		event.Price = result.AvgPrice.Unwrap()
	}

	if err := result.Err(); err != nil && !errors.IsPartialStrategyFailure(err) {
		event.Error = err.Error()
	}

	return event
}
