package events

import (
	"sync"
)

// EventType identifies a query key that has been invalidated. Names mirror
// the RPC surface groups in §6 of the spec so a transport subscriber can
// map an event directly onto the frontend key it must re-fetch.
type EventType string

const (
	EventGetTasks         EventType = "vtask.getTasks"
	EventGetTask          EventType = "vtask.getTask"
	EventInstanceDetails  EventType = "instance.instanceDetails"
	EventGetGroups        EventType = "instance.getGroups"
	EventGetLogs          EventType = "instance.getLogs"
	EventModpackUpdated   EventType = "instance.modpackUpdate"
)

// Event represents a state change notification. TaskID and InstanceID are
// populated according to what the EventType concerns; zero values mean
// "all" (e.g. a GetGroups invalidation has no single instance to scope to).
type Event struct {
	Type       EventType
	TaskID     int64
	InstanceID int64
}

// Bus is an in-process event bus with fan-out to subscribers. It is the
// backbone the task tree (§4.2) uses to publish subtask mutations, and the
// transport layer's invalidation stream (§6) subscribes to it directly.
type Bus struct {
	mu          sync.Mutex
	subscribers map[uint64]chan Event
	nextID      uint64
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[uint64]chan Event),
	}
}

// Subscribe returns a channel that receives events and a function to unsubscribe.
func (b *Bus) Subscribe(bufSize int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, bufSize)
	b.subscribers[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(ch)
		}
	}
}

// Publish sends an event to all subscribers (non-blocking); a slow
// subscriber drops the event rather than stalling the publisher.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}
