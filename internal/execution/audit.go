package execution

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	internalLog "github.com/rxtech-lab/argo-orderbot/internal/log"
	"github.com/rxtech-lab/argo-orderbot/internal/types"
)

// auditScope ties audit events to the strategy run that produced them.
type auditScope struct {
	strategyID string
	kind       types.StrategyKind
	symbol     string
}

// auditor stamps events and forwards them to the audit sink.
type auditor struct {
	sink internalLog.Log
	now  func() time.Time
}

func newAuditor(sink internalLog.Log) auditor {
	if sink == nil {
		sink = internalLog.NopLog{}
	}

	return auditor{sink: sink, now: time.Now}
}

func (a auditor) emit(scope auditScope, event internalLog.Event) {
	event.StrategyID = scope.strategyID
	event.StrategyKind = string(scope.kind)

	if event.Symbol == "" {
		event.Symbol = scope.symbol
	}

	a.sink.Log(internalLog.WithTimestamp(event, a.now()))
}

// orderEvent describes an order request and, when present, the exchange's answer.
func orderEvent(eventType internalLog.EventType, order types.OrderRequest, handle types.OrderHandle, err error) internalLog.Event {
	event := internalLog.Event{
		Type:     eventType,
		Symbol:   order.Symbol,
		Side:     string(order.Side),
		Quantity: order.Quantity,
		OrderID:  handle.OrderID,
		Fields:   map[string]string{"kind": string(order.Kind)},
	}

	if order.Price.IsSome() {
		event.Price = order.Price.Unwrap()
	}

	if fill := handle.FillPrice(); fill.IsSome() {
		event.Price = fill.Unwrap()
	}

	if order.StopPrice.IsSome() {
		event.Fields["stop_price"] = order.StopPrice.Unwrap().String()
	}

	if order.ClientOrderID != "" {
		event.Fields["client_order_id"] = order.ClientOrderID
	}

	if handle.Status != "" {
		event.Fields["status"] = string(handle.Status)
	}

	if err != nil {
		event.Error = err.Error()
	}

	return event
}

// newStrategyID returns a 32 character hex id.
func newStrategyID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// childOrderID derives a client order id for the index-th child of a strategy.
// Binance caps client order ids at 36 characters.
func childOrderID(strategyID string, tag string, index int) string {
	prefix := strategyID
	if len(prefix) > 16 {
		prefix = prefix[:16]
	}

	return prefix + "-" + tag + strconv.Itoa(index)
}
