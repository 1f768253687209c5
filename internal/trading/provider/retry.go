package tradingprovider

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-orderbot/internal/logger"
	"github.com/rxtech-lab/argo-orderbot/internal/types"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RetryPolicy configures RetryingProvider.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first one. 0 disables retries.
	MaxRetries      int           `yaml:"max_retries" json:"max_retries" jsonschema:"title=Max Retries,description=Retries after a transient exchange error,minimum=0,default=0" validate:"gte=0,lte=10"`
	InitialInterval time.Duration `yaml:"initial_interval" json:"initial_interval" jsonschema:"title=Initial Interval,description=First backoff delay"`
	MaxInterval     time.Duration `yaml:"max_interval" json:"max_interval" jsonschema:"title=Max Interval,description=Upper bound of a single backoff delay"`
}

// DefaultRetryPolicy does not retry.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      0,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// RetryingProvider retries transient exchange errors of the wrapped provider
// with exponential backoff. Rejections, auth failures and validation errors
// are returned at once.
type RetryingProvider struct {
	inner  TradingSystemProvider
	policy RetryPolicy
	logger *logger.Logger
}

// NewRetryingProvider wraps a provider. A policy without retries returns the
// inner provider unchanged.
func NewRetryingProvider(inner TradingSystemProvider, policy RetryPolicy, logger *logger.Logger) TradingSystemProvider {
	if policy.MaxRetries <= 0 {
		return inner
	}

	return &RetryingProvider{
		inner:  inner,
		policy: policy,
		logger: logger,
	}
}

func (r *RetryingProvider) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if r.policy.InitialInterval > 0 {
		exp.InitialInterval = r.policy.InitialInterval
	}

	if r.policy.MaxInterval > 0 {
		exp.MaxInterval = r.policy.MaxInterval
	}

	exp.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(r.policy.MaxRetries)), ctx)
}

func retry[T any](ctx context.Context, r *RetryingProvider, operation string, fn func() (T, error)) (T, error) {
	attempt := func() (T, error) {
		result, err := fn()
		if err != nil && !errors.IsTransient(err) {
			return result, backoff.Permanent(err)
		}

		return result, err
	}

	notify := func(err error, wait time.Duration) {
		if r.logger != nil {
			r.logger.Warn("Retrying exchange call",
				zap.String("operation", operation),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}
	}

	return backoff.RetryNotifyWithData(attempt, r.backOff(ctx), notify)
}

// PlaceOrder implements TradingSystemProvider. Only orders carrying a client
// order id are retried. Before each new attempt the order is looked up by
// that id, so an attempt that reached the exchange is returned instead of
// being placed a second time.
func (r *RetryingProvider) PlaceOrder(ctx context.Context, order types.OrderRequest) (types.OrderHandle, error) {
	if order.ClientOrderID == "" {
		return r.inner.PlaceOrder(ctx, order)
	}

	attempts := 0

	return retry(ctx, r, "place order", func() (types.OrderHandle, error) {
		attempts++
		if attempts > 1 {
			placed, found, err := r.findPlaced(ctx, order)
			if err != nil || found {
				return placed, err
			}
		}

		return r.inner.PlaceOrder(ctx, order)
	})
}

// PlaceOCO implements TradingSystemProvider. Like PlaceOrder, pairs are only
// retried when both legs carry client order ids.
func (r *RetryingProvider) PlaceOCO(ctx context.Context, takeProfit, stopLoss types.OrderRequest) (types.OrderHandle, types.OrderHandle, error) {
	if takeProfit.ClientOrderID == "" || stopLoss.ClientOrderID == "" {
		return r.inner.PlaceOCO(ctx, takeProfit, stopLoss)
	}

	attempts := 0

	legs, err := retry(ctx, r, "place oco", func() ([2]types.OrderHandle, error) {
		attempts++
		if attempts > 1 {
			tp, found, err := r.findPlaced(ctx, takeProfit)
			if err != nil {
				return [2]types.OrderHandle{}, err
			}

			if found {
				sl, err := r.inner.GetOrderStatus(ctx, clientOrderHandle(stopLoss))

				return [2]types.OrderHandle{tp, sl}, err
			}
		}

		tp, sl, err := r.inner.PlaceOCO(ctx, takeProfit, stopLoss)

		return [2]types.OrderHandle{tp, sl}, err
	})

	return legs[0], legs[1], err
}

// findPlaced looks order up by its client order id. A rejected lookup means
// the exchange does not know the order; transient lookup errors are returned
// so the attempt is retried without placing anything.
func (r *RetryingProvider) findPlaced(ctx context.Context, order types.OrderRequest) (types.OrderHandle, bool, error) {
	placed, err := r.inner.GetOrderStatus(ctx, clientOrderHandle(order))
	if err == nil {
		if r.logger != nil {
			r.logger.Info("Found order placed by an earlier attempt",
				zap.String("client_order_id", order.ClientOrderID),
				zap.String("order_id", placed.OrderID),
			)
		}

		return placed, true, nil
	}

	if errors.IsTransient(err) {
		return types.OrderHandle{}, false, err
	}

	return types.OrderHandle{}, false, nil
}

// clientOrderHandle is a handle that identifies order only by its client order id.
func clientOrderHandle(order types.OrderRequest) types.OrderHandle {
	return types.OrderHandle{
		OrderID:          "",
		ClientOrderID:    order.ClientOrderID,
		Symbol:           order.Symbol,
		Side:             order.Side,
		Kind:             order.Kind,
		Status:           "",
		OrigQuantity:     order.Quantity,
		ExecutedQuantity: decimal.Zero,
		AvgPrice:         optional.None[decimal.Decimal](),
		Price:            order.Price,
		StopPrice:        order.StopPrice,
		UpdatedAt:        time.Time{},
	}
}

// CancelOrder implements TradingSystemProvider.
func (r *RetryingProvider) CancelOrder(ctx context.Context, order types.OrderHandle) error {
	_, err := retry(ctx, r, "cancel order", func() (struct{}, error) {
		return struct{}{}, r.inner.CancelOrder(ctx, order)
	})

	return err
}

// GetOrderStatus implements TradingSystemProvider.
func (r *RetryingProvider) GetOrderStatus(ctx context.Context, order types.OrderHandle) (types.OrderHandle, error) {
	return retry(ctx, r, "get order", func() (types.OrderHandle, error) {
		return r.inner.GetOrderStatus(ctx, order)
	})
}

// GetMarketPrice implements TradingSystemProvider.
func (r *RetryingProvider) GetMarketPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return retry(ctx, r, "get market price", func() (decimal.Decimal, error) {
		return r.inner.GetMarketPrice(ctx, symbol)
	})
}

// SupportsNativeOCO implements TradingSystemProvider.
func (r *RetryingProvider) SupportsNativeOCO() bool {
	return r.inner.SupportsNativeOCO()
}
