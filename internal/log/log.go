package log

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType names an audit event emitted by the execution engine.
type EventType string

const (
	EventStrategyStarted   EventType = "strategy_started"
	EventStrategyCompleted EventType = "strategy_completed"
	EventOrderPlaced       EventType = "order_placed"
	EventOrderFailed       EventType = "order_failed"
	EventOrderCanceled     EventType = "order_canceled"
	EventSlicePlaced       EventType = "slice_placed"
	EventSliceFailed       EventType = "slice_failed"
	EventLevelSkipped      EventType = "level_skipped"
	EventRollbackFailed    EventType = "rollback_failed"
	EventOCOStateChanged   EventType = "oco_state_changed"
)

// Event is a single structured audit record.
type Event struct {
	// Timestamp is the wall time the event happened.
	Timestamp time.Time
	Type      EventType
	// StrategyID groups the events of one strategy run.
	StrategyID   string
	StrategyKind string
	Symbol       string
	Side         string
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	OrderID      string
	// Error holds the failure message for *_failed events.
	Error string
	// Fields contains optional structured key-value data.
	Fields map[string]string
}

// Log is the interface for audit sinks.
//
// Log is fire-and-forget: implementations must not block the caller for long
// and must never fail the calling operation. Sink errors are handled inside
// the sink.
type Log interface {
	Log(event Event)
}

// NopLog discards every event.
type NopLog struct{}

// Log implements Log.
func (NopLog) Log(Event) {}

// MultiLog fans every event out to several sinks in order.
type MultiLog []Log

// NewMultiLog skips nil sinks.
func NewMultiLog(sinks ...Log) MultiLog {
	multi := make(MultiLog, 0, len(sinks))

	for _, sink := range sinks {
		if sink != nil {
			multi = append(multi, sink)
		}
	}

	return multi
}

// Log implements Log.
func (m MultiLog) Log(event Event) {
	for _, sink := range m {
		sink.Log(event)
	}
}

// WithTimestamp fills in the timestamp when the caller left it zero.
func WithTimestamp(event Event, now time.Time) Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}

	return event
}
