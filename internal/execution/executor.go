package execution

import (
	"context"

	internalLog "github.com/rxtech-lab/argo-orderbot/internal/log"
	"github.com/rxtech-lab/argo-orderbot/internal/logger"
	tradingprovider "github.com/rxtech-lab/argo-orderbot/internal/trading/provider"
	"github.com/rxtech-lab/argo-orderbot/internal/types"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"go.uber.org/zap"
)

// OrderExecutor places single orders. It never retries; wrap the provider in
// a RetryingProvider for that.
type OrderExecutor struct {
	provider tradingprovider.TradingSystemProvider
	audit    auditor
	log      *logger.Logger
}

// NewOrderExecutor creates an executor. A nil audit log discards events.
func NewOrderExecutor(provider tradingprovider.TradingSystemProvider, audit internalLog.Log, log *logger.Logger) *OrderExecutor {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &OrderExecutor{
		provider: provider,
		audit:    newAuditor(audit),
		log:      log,
	}
}

// Place validates the order and sends exactly one placement to the exchange.
// Invalid orders fail with a *errors.ValidationError before any network call.
// Exchange failures come back as *errors.ExchangeError. An order without a
// client order id gets one derived from its strategy id, so a retried
// placement can be found on the exchange instead of being sent twice.
func (e *OrderExecutor) Place(ctx context.Context, order types.OrderRequest) (types.OrderHandle, error) {
	scope := auditScope{
		strategyID: newStrategyID(),
		kind:       types.StrategyKindFor(order.Kind),
		symbol:     order.Symbol,
	}

	if order.ClientOrderID == "" {
		order.ClientOrderID = childOrderID(scope.strategyID, "o", 0)
	}

	return e.place(ctx, scope, order, internalLog.EventOrderPlaced, internalLog.EventOrderFailed, nil)
}

// place is Place with the audit events chosen by the calling strategy.
func (e *OrderExecutor) place(
	ctx context.Context,
	scope auditScope,
	order types.OrderRequest,
	placedEvent, failedEvent internalLog.EventType,
	fields map[string]string,
) (types.OrderHandle, error) {
	if err := order.Validate(); err != nil {
		e.audit.emit(scope, withFields(orderEvent(failedEvent, order, types.OrderHandle{}, err), fields))

		return types.OrderHandle{}, err
	}

	handle, err := e.provider.PlaceOrder(ctx, order)
	if err != nil {
		if !errors.IsValidationError(err) {
			err = toExchangeError("place order", err)
		}

		e.log.Warn("Order placement failed",
			zap.String("strategy_id", scope.strategyID),
			zap.String("order", order.String()),
			zap.Error(err),
		)
		e.audit.emit(scope, withFields(orderEvent(failedEvent, order, types.OrderHandle{}, err), fields))

		return types.OrderHandle{}, err
	}

	e.log.Debug("Order placed",
		zap.String("strategy_id", scope.strategyID),
		zap.String("order", order.String()),
		zap.String("order_id", handle.OrderID),
		zap.String("status", string(handle.Status)),
	)
	e.audit.emit(scope, withFields(orderEvent(placedEvent, order, handle, nil), fields))

	return handle, nil
}

// toExchangeError makes sure a provider failure reaches the caller as an
// ExchangeError. Failures the provider did not classify count as transient;
// requests the provider refused locally count as rejected.
func toExchangeError(operation string, err error) *errors.ExchangeError {
	var exchangeErr *errors.ExchangeError
	if errors.As(err, &exchangeErr) {
		return exchangeErr
	}

	if errors.IsValidationError(err) || errors.HasCode(err, errors.ErrCodeUnsupportedOperation) {
		return errors.NewExchangeError(errors.ExchangeErrorRejected, 0, operation, err)
	}

	return errors.NewExchangeError(errors.ExchangeErrorTransient, 0, operation, err)
}

func withFields(event internalLog.Event, fields map[string]string) internalLog.Event {
	for key, value := range fields {
		event.Fields[key] = value
	}

	return event
}
