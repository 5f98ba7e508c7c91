package vfs

import (
	"sync"
	"time"
)

// A Cause tells why an Event was emitted.
type Cause int

const (
	// UnsupportedBackendType is emitted when no factory is registered for a storage's backend type.
	UnsupportedBackendType Cause = iota
	// UnresponsiveBackend is emitted for each replica failing on the transport level.
	UnresponsiveBackend
	// AllBackendsUnresponsive is emitted once all replicas of a node have failed.
	AllBackendsUnresponsive
)

func (c Cause) String() string {
	switch c {
	case UnsupportedBackendType:
		return "unsupported_backend_type"
	case UnresponsiveBackend:
		return "unresponsive_backend"
	case AllBackendsUnresponsive:
		return "all_backends_unresponsive"
	default:
		return "unknown"
	}
}

// An Event is pure telemetry. It never influences the outcome of an operation.
type Event struct {
	Cause         Cause
	Operation     string
	OperationPath Path
	// BackendType is empty for AllBackendsUnresponsive.
	BackendType string
}

// DefaultEventBuffer is the per subscriber capacity if nothing else is configured.
const DefaultEventBuffer = 64

// An EventBus broadcasts events to all subscribers. Sending never blocks: a subscriber whose buffer is full loses
// the event.
type EventBus struct {
	mutex       sync.Mutex
	buffer      int
	subscribers []*Subscriber
}

// NewEventBus creates a bus with the given per subscriber buffer. Non-positive values use DefaultEventBuffer.
func NewEventBus(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &EventBus{buffer: buffer}
}

// Send dispatches the event to every subscriber without waiting.
func (b *EventBus) Send(event Event) {
	b.mutex.Lock()
	// snapshot under lock, dispatch after release
	subscribers := b.subscribers
	b.mutex.Unlock()

	eventsSent.WithLabelValues(event.Cause.String()).Inc()
	for _, s := range subscribers {
		select {
		case s.events <- event:
		default:
			eventsDropped.WithLabelValues(event.Cause.String()).Inc()
		}
	}
}

// Subscribe returns a new independent receiver. It only sees events sent after this call.
func (b *EventBus) Subscribe() *Subscriber {
	s := &Subscriber{bus: b, events: make(chan Event, b.buffer)}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	subscribers := make([]*Subscriber, len(b.subscribers), len(b.subscribers)+1)
	copy(subscribers, b.subscribers)
	b.subscribers = append(subscribers, s)
	return s
}

func (b *EventBus) remove(s *Subscriber) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	subscribers := make([]*Subscriber, 0, len(b.subscribers))
	for _, other := range b.subscribers {
		if other != s {
			subscribers = append(subscribers, other)
		}
	}
	b.subscribers = subscribers
}

// A Subscriber receives events in send order.
type Subscriber struct {
	bus    *EventBus
	events chan Event
}

// Poll waits up to timeout for the next event. It returns false if none arrived in time.
func (s *Subscriber) Poll(timeout time.Duration) (Event, bool) {
	select {
	case ev := <-s.events:
		return ev, true
	default:
	}
	if timeout <= 0 {
		return Event{}, false
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-s.events:
		return ev, true
	case <-timer.C:
		return Event{}, false
	}
}

// Events exposes the underlying channel, e.g. for select loops.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Unsubscribe detaches the subscriber. Already buffered events can still be polled.
func (s *Subscriber) Unsubscribe() {
	s.bus.remove(s)
}
