package pm

import (
	"context"
	"testing"

	"taskforge.org/internal/events"
)

func TestRecorderSkipsActor(t *testing.T) {
	svc := NewInMemory()
	rec := NewRecorder(svc)
	ctx := context.Background()

	rec.handle(ctx, events.Event{
		Type:       events.TaskCommentAdded,
		ActorID:    "u1",
		TaskID:     "t1",
		Message:    "u1 commented",
		Recipients: []string{"u1", "u2", ""},
	})

	if got, _ := svc.ListNotifications(ctx, "u1", false, 0); len(got) != 0 {
		t.Fatalf("actor was notified: %+v", got)
	}
	got, _ := svc.ListNotifications(ctx, "u2", false, 0)
	if len(got) != 1 {
		t.Fatalf("recipient notifications = %d, want 1", len(got))
	}
	if got[0].Type != events.TaskCommentAdded || got[0].TaskID != "t1" {
		t.Fatalf("notification = %+v", got[0])
	}
}

func TestRecorderConsumesBus(t *testing.T) {
	svc := NewInMemory()
	rec := NewRecorder(svc)
	bus := events.NewBus()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	ready := make(chan struct{})
	go func() {
		defer close(done)
		ch := bus.Subscribe(ctx)
		close(ready)
		for evt := range ch {
			rec.handle(ctx, evt)
		}
	}()
	<-ready

	bus.Publish(events.Event{
		Type:       events.TaskCreated,
		ActorID:    "leader",
		Message:    "task created",
		Recipients: []string{"staff"},
	})
	cancel()
	<-done

	got, _ := svc.ListNotifications(context.Background(), "staff", true, 0)
	if len(got) != 1 {
		t.Fatalf("notifications = %d, want 1", len(got))
	}
}

func TestRecorderLogsWriteFailures(t *testing.T) {
	svc := NewInMemory()
	var logged []string
	rec := NewRecorder(svc, WithRecorderLog(func(event string, _ map[string]any) {
		logged = append(logged, event)
	}))

	// Missing type fails validation in CreateNotification.
	rec.handle(context.Background(), events.Event{
		ActorID:    "u1",
		Recipients: []string{"u2"},
	})
	if len(logged) != 1 || logged[0] != "notify.record_failed" {
		t.Fatalf("logged = %v", logged)
	}
}
