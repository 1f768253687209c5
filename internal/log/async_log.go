package log

import (
	"sync"
	"sync/atomic"
)

// DefaultAsyncBuffer is the number of events AsyncLog queues before dropping.
const DefaultAsyncBuffer = 1024

// AsyncLog hands events to a background goroutine that writes them to the
// wrapped sink. Log never blocks: when the buffer is full the event is dropped
// and counted.
type AsyncLog struct {
	sink    Log
	events  chan Event
	done    chan struct{}
	dropped atomic.Int64
	// mu guards closed against a concurrent Close.
	mu     sync.RWMutex
	closed bool
}

// NewAsyncLog starts the background writer. Call Close to flush it.
func NewAsyncLog(sink Log, buffer int) *AsyncLog {
	if buffer <= 0 {
		buffer = DefaultAsyncBuffer
	}

	l := &AsyncLog{
		sink:   sink,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}

	go l.run()

	return l
}

func (l *AsyncLog) run() {
	defer close(l.done)

	for event := range l.events {
		l.sink.Log(event)
	}
}

// Log implements Log.
func (l *AsyncLog) Log(event Event) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		l.dropped.Add(1)

		return
	}

	select {
	case l.events <- event:
	default:
		l.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded.
func (l *AsyncLog) Dropped() int64 {
	return l.dropped.Load()
}

// Close stops accepting events and waits until the queued ones are written.
func (l *AsyncLog) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()

		return
	}

	l.closed = true
	close(l.events)
	l.mu.Unlock()

	<-l.done
}
