package execution

import (
	"fmt"
	"sync"

	"github.com/moznion/go-optional"
	internalLog "github.com/rxtech-lab/argo-orderbot/internal/log"
	"github.com/rxtech-lab/argo-orderbot/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"
)

// recordingLog keeps every audit event it receives.
type recordingLog struct {
	mu     sync.Mutex
	events []internalLog.Event
}

func (r *recordingLog) Log(event internalLog.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *recordingLog) Types() []internalLog.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()

	eventTypes := make([]internalLog.EventType, 0, len(r.events))
	for _, event := range r.events {
		eventTypes = append(eventTypes, event.Type)
	}

	return eventTypes
}

func (r *recordingLog) OfType(eventType internalLog.EventType) []internalLog.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []internalLog.Event

	for _, event := range r.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}

	return matched
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func price(s string) optional.Option[decimal.Decimal] {
	return optional.Some(dec(s))
}

func none() optional.Option[decimal.Decimal] {
	return optional.None[decimal.Decimal]()
}

// filled returns a handle for an order that filled completely at fillPrice.
func filled(orderID string, order types.OrderRequest, fillPrice string) types.OrderHandle {
	return types.OrderHandle{
		OrderID:          orderID,
		ClientOrderID:    order.ClientOrderID,
		Symbol:           order.Symbol,
		Side:             order.Side,
		Kind:             order.Kind,
		Status:           types.OrderStatusFilled,
		OrigQuantity:     order.Quantity,
		ExecutedQuantity: order.Quantity,
		AvgPrice:         price(fillPrice),
		Price:            order.Price,
		StopPrice:        order.StopPrice,
	}
}

// resting returns a handle for an order the exchange accepted but did not fill.
func resting(orderID string, order types.OrderRequest) types.OrderHandle {
	return types.OrderHandle{
		OrderID:          orderID,
		ClientOrderID:    order.ClientOrderID,
		Symbol:           order.Symbol,
		Side:             order.Side,
		Kind:             order.Kind,
		Status:           types.OrderStatusNew,
		OrigQuantity:     order.Quantity,
		ExecutedQuantity: decimal.Zero,
		AvgPrice:         none(),
		Price:            order.Price,
		StopPrice:        order.StopPrice,
	}
}

// stampedOrder matches order once the executor has given it a client order id.
type stampedOrder struct {
	order types.OrderRequest
}

func (m stampedOrder) Matches(x any) bool {
	got, ok := x.(types.OrderRequest)
	if !ok || got.ClientOrderID == "" {
		return false
	}

	got.ClientOrderID = m.order.ClientOrderID

	return gomock.Eq(m.order).Matches(got)
}

func (m stampedOrder) String() string {
	return fmt.Sprintf("is %v with a client order id", m.order)
}
