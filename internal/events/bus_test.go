package events

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := bus.Subscribe(ctx)
	second := bus.Subscribe(ctx)

	bus.Publish(Event{Type: TaskCreated, ActorID: "u1", TaskID: "t1"})

	for name, ch := range map[string]<-chan Event{"first": first, "second": second} {
		select {
		case evt := <-ch:
			if evt.Type != TaskCreated || evt.TaskID != "t1" {
				t.Fatalf("%s: unexpected event %+v", name, evt)
			}
			if evt.OccurredAt.IsZero() {
				t.Fatalf("%s: expected timestamp to be set", name)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: event not delivered", name)
		}
	}
}

func TestSubscribeClosesOnContextEnd(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	ch := bus.Subscribe(ctx)
	cancel()

	select {
	case _, open := <-ch:
		if open {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed after context cancel")
	}
}

func TestPublishDropsWhenSubscriberSlow(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(ctx)
	for i := 0; i < 64; i++ {
		bus.Publish(Event{Type: ProjectUpdated})
	}
	// The buffer holds 16; the rest are dropped rather than blocking.
	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			if count == 0 || count > 16 {
				t.Fatalf("unexpected buffered event count %d", count)
			}
			return
		}
	}
}
