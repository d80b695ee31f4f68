package events

import (
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Publish(NewTurnStarted("r-1", "coordinator", 1))

	select {
	case e := <-ch:
		if e.EventType() != TypeTurnStarted || e.RunID() != "r-1" {
			t.Errorf("unexpected event: %v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	bus.Subscribe() // never drained
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			bus.Publish(NewTurnStarted("r-1", "security", i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestBus_CloseClosesSubscribers(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("subscriber channel should be closed")
	}

	// Publishing after close must not panic.
	bus.Publish(NewRunCompleted("r-1", "done", "approve", 1, 0.01))
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	a := bus.Subscribe()
	b := bus.Subscribe()
	bus.Publish(NewRunCompleted("r-2", "agent reported completion", "comment", 3, 0.2))

	for _, ch := range []<-chan Event{a, b} {
		select {
		case e := <-ch:
			if e.EventType() != TypeRunCompleted {
				t.Errorf("unexpected type %s", e.EventType())
			}
		case <-time.After(time.Second):
			t.Fatal("event not fanned out")
		}
	}
}
