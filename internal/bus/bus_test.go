package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conversation.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindConversationUpdated, Timestamp: time.Now(), Payload: "c1"})

	select {
	case evt := <-ch:
		if evt.Kind != KindConversationUpdated {
			t.Errorf("got kind %q, want %q", evt.Kind, KindConversationUpdated)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("presence.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindConversationUpdated})
	b.Publish(Event{Kind: KindPresenceChanged})

	select {
	case evt := <-ch:
		if evt.Kind != KindPresenceChanged {
			t.Errorf("got kind %q, want %q", evt.Kind, KindPresenceChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure conversation event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	unsub()

	b.Publish(Event{Kind: KindMessageCommitted})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("typing.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "typing.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "typing.two"})

	evt := <-ch
	if evt.Kind != "typing.one" {
		t.Errorf("got %q, want typing.one", evt.Kind)
	}
}
