package api

import (
	"testing"
	"time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("s1")
	b.Publish("s1", SSEEvent{Type: "plan.progress", Data: map[string]any{"pct": 10}})
	select {
	case evt := <-ch:
		if evt.Type != "plan.progress" {
			t.Fatalf("got %q", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	b.Unsubscribe("s1", ch)
	if _, open := <-ch; open {
		t.Fatal("channel must be closed after unsubscribe")
	}
}

func TestBrokerSessionIsolation(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("s1")
	defer b.Unsubscribe("s1", ch)
	b.Publish("s2", SSEEvent{Type: "plan.completed"})
	select {
	case evt := <-ch:
		t.Fatalf("leaked event from another session: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBrokerSlowSubscriberDropped(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("s1")
	defer b.Unsubscribe("s1", ch)
	// fill the buffer and keep publishing; Publish must never block
	for i := 0; i < 50; i++ {
		b.Publish("s1", SSEEvent{Type: "plan.progress"})
	}
	n := 0
	for {
		select {
		case <-ch:
			n++
		default:
			if n == 0 || n > 8 {
				t.Fatalf("buffered %d events", n)
			}
			return
		}
	}
}
