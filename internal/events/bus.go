// Package events carries producer emissions to the gateway's broadcast
// forwarder over an in-process pub/sub bus. Producers publish on their own
// schedules; the forwarder subscribes and fans matching events out to
// WebSocket subscribers.
package events

import (
	"sync"
	"time"
)

// EventType classifies gateway-bound events.
type EventType string

const (
	KnowledgeUpdated EventType = "knowledge.updated"
	MetricsSampled   EventType = "metrics.sampled"
	StatusReported   EventType = "status.reported"
)

// Event is one producer emission. The payload is opaque to the bus; the
// forwarder routes on Type alone.
type Event struct {
	Type      EventType `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus fans events out to named subscribers. Each subscriber owns a
// buffered channel; a publisher is never blocked by a subscriber that has
// fallen behind — once the buffer is full, events for that subscriber are
// dropped.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]chan Event
	buf  int
}

// NewBus creates a bus whose subscriber channels hold up to buf events.
func NewBus(buf int) *Bus {
	if buf < 1 {
		buf = 64
	}
	return &Bus{subs: make(map[string]chan Event), buf: buf}
}

// Subscribe registers a named consumer and returns its channel. A second
// Subscribe under the same id replaces the first and closes its channel.
func (b *Bus) Subscribe(id string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if prev, ok := b.subs[id]; ok {
		close(prev)
	}
	ch := make(chan Event, b.buf)
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes the consumer and closes its channel. Unknown ids are
// a no-op.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subs[id]
	if !ok {
		return
	}
	close(ch)
	delete(b.subs, id)
}

// Publish stamps the event (when the producer left Timestamp zero) and
// offers it to every current subscriber without blocking.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			// Buffer full: this subscriber misses the event.
		}
	}
}

// SubscriberCount reports how many consumers are registered.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
