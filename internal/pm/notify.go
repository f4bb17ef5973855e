package pm

import (
	"context"

	"taskforge.org/internal/events"
)

// LogFunc receives recorder diagnostics as structured key/value pairs.
type LogFunc func(event string, kv map[string]any)

func nopLog(string, map[string]any) {}

// Recorder turns bus events into stored notifications, one per recipient.
// The actor never receives a notification for their own action.
type Recorder struct {
	svc  Service
	logf LogFunc
}

// NewRecorder builds a recorder writing through svc.
func NewRecorder(svc Service, opts ...RecorderOption) *Recorder {
	r := &Recorder{svc: svc, logf: nopLog}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecorderOption customizes a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLog routes recorder diagnostics to logf.
func WithRecorderLog(logf LogFunc) RecorderOption {
	return func(r *Recorder) {
		if logf != nil {
			r.logf = logf
		}
	}
}

// Run consumes bus until ctx is done.
func (r *Recorder) Run(ctx context.Context, bus *events.Bus) {
	ch := bus.Subscribe(ctx)
	for evt := range ch {
		r.handle(ctx, evt)
	}
}

func (r *Recorder) handle(ctx context.Context, evt events.Event) {
	for _, uid := range evt.Recipients {
		if uid == "" || uid == evt.ActorID {
			continue
		}
		_, err := r.svc.CreateNotification(ctx, Notification{
			UserID:    uid,
			Type:      evt.Type,
			Message:   evt.Message,
			ProjectID: evt.ProjectID,
			TaskID:    evt.TaskID,
		})
		if err != nil {
			r.logf("notify.record_failed", map[string]any{
				"type":  evt.Type,
				"user":  uid,
				"error": err.Error(),
			})
		}
	}
}
