package events

import (
	"context"
	"sync"
	"time"
)

// Notification event types emitted after project and task mutations.
const (
	TaskCreated      = "task_created"
	TaskUpdated      = "task_updated"
	TaskDeleted      = "task_deleted"
	TaskAssigned     = "task_assigned"
	TaskStatusMoved  = "task_change_status"
	TaskCommentAdded = "task_comment_added"

	ProjectCreated       = "project_created"
	ProjectUpdated       = "project_updated"
	ProjectDeleted       = "project_deleted"
	ProjectMemberAdded   = "project_member_added"
	ProjectMemberRemoved = "project_member_removed"
)

// Event describes one domain change fanned out to subscribers. Recipients are
// resolved by the publisher; the bus does not interpret them.
type Event struct {
	Type       string    `json:"type"`
	ActorID    string    `json:"actor_id"`
	ProjectID  string    `json:"project_id,omitempty"`
	TaskID     string    `json:"task_id,omitempty"`
	Message    string    `json:"message"`
	Recipients []string  `json:"recipients,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Bus fan-outs events to all active subscribers in process.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewBus initialises an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (b *Bus) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (b *Bus) Publish(evt Event) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
