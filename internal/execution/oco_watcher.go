package execution

import (
	"context"
	"time"

	internalLog "github.com/rxtech-lab/argo-orderbot/internal/log"
	"github.com/rxtech-lab/argo-orderbot/internal/logger"
	tradingprovider "github.com/rxtech-lab/argo-orderbot/internal/trading/provider"
	"github.com/rxtech-lab/argo-orderbot/internal/types"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"go.uber.org/zap"
)

// DefaultWatchInterval is the poll interval used when none is configured.
const DefaultWatchInterval = 2 * time.Second

// OnOCOStateChangeCallback is called every time a watched pair changes state.
type OnOCOStateChangeCallback func(pair types.OCOPair)

// OCOWatcher keeps the cancel-on-fill promise of a pair the exchange does not
// link itself. It polls both legs and cancels the survivor once one fills.
type OCOWatcher struct {
	provider      tradingprovider.TradingSystemProvider
	audit         auditor
	log           *logger.Logger
	interval      time.Duration
	onStateChange *OnOCOStateChangeCallback
}

// NewOCOWatcher creates a watcher polling every interval. A zero interval uses
// DefaultWatchInterval.
func NewOCOWatcher(
	provider tradingprovider.TradingSystemProvider,
	audit internalLog.Log,
	log *logger.Logger,
	interval time.Duration,
	onStateChange *OnOCOStateChangeCallback,
) *OCOWatcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &OCOWatcher{
		provider:      provider,
		audit:         newAuditor(audit),
		log:           log,
		interval:      interval,
		onStateChange: onStateChange,
	}
}

// Watch polls the pair until it is CLOSED or CANCELED, or ctx ends. The pair
// is updated in place. Natively linked pairs are only observed; the exchange
// cancels their surviving leg.
func (w *OCOWatcher) Watch(ctx context.Context, pair *types.OCOPair) error {
	scope := auditScope{strategyID: pair.LinkID, kind: types.StrategyKindOCO, symbol: pair.Symbol}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.poll(ctx, scope, pair); err != nil {
			return err
		}

		if pair.IsDone() {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.Wrapf(errors.ErrCodeStrategyCanceled, ctx.Err(), "stopped watching OCO %s in state %s", pair.LinkID, pair.State)
		case <-ticker.C:
		}
	}
}

// poll refreshes the open legs once and reacts to a fill.
func (w *OCOWatcher) poll(ctx context.Context, scope auditScope, pair *types.OCOPair) error {
	before := pair.State

	for _, leg := range []types.OrderHandle{pair.TakeProfit, pair.StopLoss} {
		if leg.Status.IsTerminal() {
			continue
		}

		update, err := w.provider.GetOrderStatus(ctx, leg)
		if err != nil {
			// A missed poll is retried on the next tick.
			w.log.Warn("Failed to refresh OCO leg",
				zap.String("link_id", pair.LinkID),
				zap.String("order_id", leg.OrderID),
				zap.Error(err),
			)

			continue
		}

		if err := pair.Apply(update); err != nil {
			w.log.Error("OCO invariant violated", zap.String("link_id", pair.LinkID), zap.Error(err))
			w.audit.emit(scope, internalLog.Event{
				Type:    internalLog.EventOCOStateChanged,
				Side:    string(pair.Side),
				OrderID: update.OrderID,
				Error:   err.Error(),
			})

			return err
		}
	}

	if pair.State == types.OCOStateClosing && !pair.Native {
		w.cancelSurvivor(ctx, scope, pair)
	}

	if pair.State != before {
		w.notify(scope, pair)
	}

	return nil
}

// cancelSurvivor cancels the open leg of a pair whose other leg filled.
// If the cancel fails the next poll sees the leg's real state.
func (w *OCOWatcher) cancelSurvivor(ctx context.Context, scope auditScope, pair *types.OCOPair) {
	filled, ok := pair.FilledLeg()
	if !ok {
		return
	}

	survivor, _ := pair.Sibling(filled.OrderID)
	if survivor.Status.IsTerminal() {
		return
	}

	if err := w.provider.CancelOrder(ctx, survivor); err != nil {
		w.log.Warn("Failed to cancel surviving OCO leg",
			zap.String("link_id", pair.LinkID),
			zap.String("order_id", survivor.OrderID),
			zap.Error(err),
		)

		return
	}

	survivor.Status = types.OrderStatusCanceled
	survivor.UpdatedAt = time.Now()

	if err := pair.Apply(survivor); err != nil {
		w.log.Error("OCO invariant violated", zap.String("link_id", pair.LinkID), zap.Error(err))

		return
	}

	w.audit.emit(scope, internalLog.Event{
		Type:     internalLog.EventOrderCanceled,
		Side:     string(survivor.Side),
		Quantity: survivor.OrigQuantity,
		OrderID:  survivor.OrderID,
		Fields:   map[string]string{"reason": "sibling filled", "filled_order_id": filled.OrderID},
	})
}

func (w *OCOWatcher) notify(scope auditScope, pair *types.OCOPair) {
	w.log.Info("OCO state changed", zap.String("link_id", pair.LinkID), zap.String("state", string(pair.State)))
	w.audit.emit(scope, ocoStateEvent(pair))

	if w.onStateChange != nil {
		(*w.onStateChange)(*pair)
	}
}
