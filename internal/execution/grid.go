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

// GridBuilder lays a ladder of resting limit orders around the market.
type GridBuilder struct {
	provider tradingprovider.TradingSystemProvider
	executor *OrderExecutor
	audit    auditor
	log      *logger.Logger
	now      func() time.Time
}

// NewGridBuilder creates a grid builder.
func NewGridBuilder(
	provider tradingprovider.TradingSystemProvider,
	executor *OrderExecutor,
	audit internalLog.Log,
	log *logger.Logger,
) *GridBuilder {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &GridBuilder{
		provider: provider,
		executor: executor,
		audit:    newAuditor(audit),
		log:      log,
		now:      time.Now,
	}
}

// gridOrder is one level of the ladder that gets an order.
type gridOrder struct {
	level int
	order types.OrderRequest
}

// Build fetches the reference price once, then places a BUY limit at every
// level below it and a SELL limit at every level above it. A level equal to
// the reference price is skipped. Placements are independent: a failed level
// is recorded and the rest are still placed. If the reference price cannot be
// fetched no order is placed and an ExchangeError is returned.
//
// The returned error is result.Err().
func (b *GridBuilder) Build(ctx context.Context, plan types.GridPlan) (types.StrategyResult, error) {
	if err := plan.Validate(); err != nil {
		return types.StrategyResult{}, err
	}

	levels, err := plan.PriceLevels()
	if err != nil {
		return types.StrategyResult{}, err
	}

	strategyID := newStrategyID()
	scope := auditScope{strategyID: strategyID, kind: types.StrategyKindGrid, symbol: plan.Symbol}

	reference, err := b.provider.GetMarketPrice(ctx, plan.Symbol)
	if err != nil {
		var priceErr error = toExchangeError("get market price", err)
		if errors.HasCode(err, errors.ErrCodeMarketPriceMissing) {
			priceErr = err
		}

		aggregator := newResultAggregator(strategyID, types.StrategyKindGrid, plan.Symbol, len(levels), b.now)
		aggregator.Abort(priceErr)
		result := aggregator.Finalize()
		b.audit.emit(scope, strategyCompletedEvent(result))

		return result, priceErr
	}

	orders, skipped := partitionLevels(plan, levels, reference, strategyID)

	aggregator := newResultAggregator(strategyID, types.StrategyKindGrid, plan.Symbol, len(orders), b.now)
	b.audit.emit(scope, internalLog.Event{
		Type:     internalLog.EventStrategyStarted,
		Quantity: plan.QuantityPerLevel,
		Price:    reference,
		Fields: map[string]string{
			"lower":  plan.Lower.String(),
			"upper":  plan.Upper.String(),
			"levels": strconv.Itoa(plan.Levels),
		},
	})

	for _, level := range skipped {
		aggregator.Skipped(level)
		b.audit.emit(scope, internalLog.Event{
			Type:   internalLog.EventLevelSkipped,
			Price:  level,
			Fields: map[string]string{"reason": "level equals reference price"},
		})
	}

	for _, next := range orders {
		if err := ctx.Err(); err != nil {
			aggregator.Cancel(err)

			break
		}

		fields := map[string]string{"level": strconv.Itoa(next.level + 1)}

		handle, err := b.executor.place(ctx, scope, next.order, internalLog.EventOrderPlaced, internalLog.EventOrderFailed, fields)
		if err != nil {
			aggregator.Failed(next.level, next.order, err)

			continue
		}

		aggregator.Placed(handle)
	}

	result := aggregator.Finalize()

	b.audit.emit(scope, strategyCompletedEvent(result))
	b.log.Info("Grid built",
		zap.String("strategy_id", result.ID),
		zap.String("status", string(result.Status)),
		zap.String("reference_price", reference.String()),
		zap.Int("buy_orders", result.BuyCount),
		zap.Int("sell_orders", result.SellCount),
		zap.Int("skipped", result.SkippedCount),
		zap.Int("failed", result.Failed()),
	)

	return result, result.Err()
}

// partitionLevels turns the ladder into BUY orders below the reference price
// and SELL orders above it, and returns the levels equal to it.
func partitionLevels(plan types.GridPlan, levels []decimal.Decimal, reference decimal.Decimal, strategyID string) ([]gridOrder, []decimal.Decimal) {
	orders := make([]gridOrder, 0, len(levels))
	skipped := make([]decimal.Decimal, 0)

	for i, level := range levels {
		var side types.OrderSide

		switch level.Cmp(reference) {
		case -1:
			side = types.OrderSideBuy
		case 1:
			side = types.OrderSideSell
		default:
			skipped = append(skipped, level)

			continue
		}

		orders = append(orders, gridOrder{
			level: i,
			order: types.OrderRequest{
				Symbol:        plan.Symbol,
				Side:          side,
				Kind:          types.OrderKindLimit,
				Quantity:      plan.QuantityPerLevel,
				Price:         optional.Some(level),
				StopPrice:     optional.None[decimal.Decimal](),
				TimeInForce:   plan.TimeInForce,
				ClientOrderID: childOrderID(strategyID, "g", i),
			},
		})
	}

	return orders, skipped
}
