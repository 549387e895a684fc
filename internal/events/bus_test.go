package events

import (
	"testing"
	"time"
)

func TestPublishAndSubscribe(t *testing.T) {
	bus := NewBus(16)
	ch := bus.Subscribe("test-1")

	bus.Publish(Event{
		Type:    KnowledgeUpdated,
		Payload: map[string]string{"entity": "service-a"},
	})

	select {
	case evt := <-ch:
		if evt.Type != KnowledgeUpdated {
			t.Fatalf("expected KnowledgeUpdated, got %s", evt.Type)
		}
		if evt.Payload == nil {
			t.Fatal("payload should be carried through")
		}
		if evt.Timestamp.IsZero() {
			t.Fatal("timestamp should be set")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	bus.Unsubscribe("test-1")
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewBus(16)
	ch1 := bus.Subscribe("s1")
	ch2 := bus.Subscribe("s2")

	bus.Publish(Event{Type: StatusReported})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			if evt.Type != StatusReported {
				t.Fatalf("wrong type: %s", evt.Type)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout")
		}
	}

	if bus.SubscriberCount() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", bus.SubscriberCount())
	}

	bus.Unsubscribe("s1")
	bus.Unsubscribe("s2")

	if bus.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", bus.SubscriberCount())
	}
}

func TestResubscribeReplacesAndClosesOldChannel(t *testing.T) {
	bus := NewBus(4)
	old := bus.Subscribe("dup")
	fresh := bus.Subscribe("dup")

	if _, open := <-old; open {
		t.Fatal("replaced channel should be closed")
	}
	if bus.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", bus.SubscriberCount())
	}

	bus.Publish(Event{Type: StatusReported})
	select {
	case evt := <-fresh:
		if evt.Type != StatusReported {
			t.Fatalf("wrong type: %s", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("replacement subscriber did not receive the event")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus(1) // tiny buffer
	_ = bus.Subscribe("slow")

	// Publish more events than the buffer can hold — should not block
	for i := 0; i < 100; i++ {
		bus.Publish(Event{Type: MetricsSampled})
	}
	// If we get here, it didn't block
}
