package execution

import (
	"context"
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

// RollbackTimeout bounds the cancel of an orphaned take-profit leg. The cancel
// runs even when the caller's context is already done.
const RollbackTimeout = 10 * time.Second

// OCOCoordinator places linked take-profit / stop-loss pairs.
type OCOCoordinator struct {
	provider         tradingprovider.TradingSystemProvider
	executor         *OrderExecutor
	audit            auditor
	log              *logger.Logger
	checkMarketSides bool
	newLinkID        func() string
}

// NewOCOCoordinator creates a coordinator. With checkMarketSides the current
// market price must lie between the two legs.
func NewOCOCoordinator(
	provider tradingprovider.TradingSystemProvider,
	executor *OrderExecutor,
	audit internalLog.Log,
	log *logger.Logger,
	checkMarketSides bool,
) *OCOCoordinator {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &OCOCoordinator{
		provider:         provider,
		executor:         executor,
		audit:            newAuditor(audit),
		log:              log,
		checkMarketSides: checkMarketSides,
		newLinkID:        newStrategyID,
	}
}

// ocoLegs builds the take-profit LIMIT and stop-loss STOP_LIMIT legs of a pair.
func ocoLegs(request types.OCORequest, linkID string) (types.OrderRequest, types.OrderRequest) {
	takeProfit := types.OrderRequest{
		Symbol:        request.Symbol,
		Side:          request.Side,
		Kind:          types.OrderKindLimit,
		Quantity:      request.Quantity,
		Price:         optional.Some(request.TakeProfit),
		StopPrice:     optional.None[decimal.Decimal](),
		TimeInForce:   types.TimeInForceGTC,
		ClientOrderID: "",
	}

	stopLoss := types.OrderRequest{
		Symbol:        request.Symbol,
		Side:          request.Side,
		Kind:          types.OrderKindStopLimit,
		Quantity:      request.Quantity,
		Price:         optional.Some(request.StopLoss),
		StopPrice:     optional.Some(request.StopLoss),
		TimeInForce:   types.TimeInForceGTC,
		ClientOrderID: "",
	}

	if linkID != "" {
		takeProfit.ClientOrderID = linkID + "-tp"
		stopLoss.ClientOrderID = linkID + "-sl"
	}

	return takeProfit, stopLoss
}

// Place validates the pair and submits both legs. Natively linked when the
// exchange supports it, otherwise take-profit first and then stop-loss. If the
// stop-loss fails the take-profit is canceled before the ExchangeError is
// returned; a failed cancel is attached as its RollbackError.
func (c *OCOCoordinator) Place(ctx context.Context, request types.OCORequest) (*types.OCOPair, error) {
	if err := validateOCO(request); err != nil {
		return nil, err
	}

	if c.checkMarketSides {
		market, err := c.provider.GetMarketPrice(ctx, request.Symbol)
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeMarketPriceMissing) {
				return nil, err
			}

			return nil, toExchangeError("get market price", err)
		}

		if err := request.ValidateAgainstMarket(market); err != nil {
			return nil, err
		}
	}

	linkID := c.newLinkID()
	scope := auditScope{strategyID: linkID, kind: types.StrategyKindOCO, symbol: request.Symbol}
	takeProfit, stopLoss := ocoLegs(request, linkID)

	c.audit.emit(scope, internalLog.Event{
		Type:     internalLog.EventStrategyStarted,
		Side:     string(request.Side),
		Quantity: request.Quantity,
		Fields: map[string]string{
			"take_profit": request.TakeProfit.String(),
			"stop_loss":   request.StopLoss.String(),
		},
	})

	var pair *types.OCOPair

	if c.provider.SupportsNativeOCO() {
		tp, sl, err := c.provider.PlaceOCO(ctx, takeProfit, stopLoss)
		if err != nil {
			exchangeErr := toExchangeError("place oco", err)
			c.audit.emit(scope, orderEvent(internalLog.EventOrderFailed, takeProfit, types.OrderHandle{}, exchangeErr))

			return nil, exchangeErr
		}

		c.audit.emit(scope, orderEvent(internalLog.EventOrderPlaced, takeProfit, tp, nil))
		c.audit.emit(scope, orderEvent(internalLog.EventOrderPlaced, stopLoss, sl, nil))
		pair = types.NewOCOPair(linkID, tp, sl, true)
	} else {
		tp, err := c.executor.place(ctx, scope, takeProfit, internalLog.EventOrderPlaced, internalLog.EventOrderFailed, legField("take_profit"))
		if err != nil {
			return nil, toExchangeError("place take-profit leg", err)
		}

		sl, err := c.executor.place(ctx, scope, stopLoss, internalLog.EventOrderPlaced, internalLog.EventOrderFailed, legField("stop_loss"))
		if err != nil {
			return nil, c.rollback(ctx, scope, tp, toExchangeError("place stop-loss leg", err))
		}

		pair = types.NewOCOPair(linkID, tp, sl, false)
	}

	// Legs that filled on placement advance the pair right away.
	for _, leg := range []types.OrderHandle{pair.TakeProfit, pair.StopLoss} {
		if err := pair.Apply(leg); err != nil {
			c.log.Error("OCO pair inconsistent after placement", zap.String("link_id", linkID), zap.Error(err))
		}
	}

	c.audit.emit(scope, ocoStateEvent(pair))
	c.log.Info("OCO pair placed",
		zap.String("link_id", linkID),
		zap.String("symbol", pair.Symbol),
		zap.String("take_profit_id", pair.TakeProfit.OrderID),
		zap.String("stop_loss_id", pair.StopLoss.OrderID),
		zap.Bool("native", pair.Native),
	)

	return pair, nil
}

// rollback cancels the live take-profit leg after the stop-loss failed.
func (c *OCOCoordinator) rollback(ctx context.Context, scope auditScope, takeProfit types.OrderHandle, cause *errors.ExchangeError) error {
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RollbackTimeout)
	defer cancel()

	result := *cause

	if err := c.provider.CancelOrder(cancelCtx, takeProfit); err != nil {
		result.RollbackError = err

		c.log.Error("Failed to cancel take-profit leg after stop-loss failure",
			zap.String("link_id", scope.strategyID),
			zap.String("order_id", takeProfit.OrderID),
			zap.Error(err),
		)
		c.audit.emit(scope, internalLog.Event{
			Type:     internalLog.EventRollbackFailed,
			Side:     string(takeProfit.Side),
			Quantity: takeProfit.OrigQuantity,
			OrderID:  takeProfit.OrderID,
			Error:    err.Error(),
		})

		return &result
	}

	c.log.Info("Canceled take-profit leg after stop-loss failure",
		zap.String("link_id", scope.strategyID),
		zap.String("order_id", takeProfit.OrderID),
	)
	c.audit.emit(scope, internalLog.Event{
		Type:     internalLog.EventOrderCanceled,
		Side:     string(takeProfit.Side),
		Quantity: takeProfit.OrigQuantity,
		OrderID:  takeProfit.OrderID,
		Fields:   map[string]string{"reason": "rollback"},
	})

	return &result
}

func legField(leg string) map[string]string {
	return map[string]string{"leg": leg}
}

func ocoStateEvent(pair *types.OCOPair) internalLog.Event {
	return internalLog.Event{
		Type:   internalLog.EventOCOStateChanged,
		Symbol: pair.Symbol,
		Side:   string(pair.Side),
		Fields: map[string]string{
			"state":          string(pair.State),
			"take_profit_id": pair.TakeProfit.OrderID,
			"stop_loss_id":   pair.StopLoss.OrderID,
		},
	}
}
