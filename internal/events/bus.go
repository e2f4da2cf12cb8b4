package events

import (
	"sync"
	"sync/atomic"
)

// Bus is a simple in-process pub/sub hub. Delivery is at-most-once per
// live subscriber, fire-and-forget: a publisher is never blocked by a
// slow subscriber. Each subscriber gets its own buffered channel; when
// the buffer is full the oldest buffered event is dropped for that
// subscriber only, since status events supersede each other.
type Bus struct {
	mu      sync.RWMutex
	subs    map[Topic]map[int]chan Event
	next    int
	dropped atomic.Uint64
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic]map[int]chan Event)}
}

// Subscribe registers a listener on a topic and returns its channel
// together with a cancel func. Cancel is idempotent and closes the
// channel; callers must defer it on every exit path.
func (b *Bus) Subscribe(topic Topic, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan Event)
	}
	b.subs[topic][id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sc, ok := b.subs[topic][id]; ok {
			delete(b.subs[topic], id)
			close(sc)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish broadcasts an event to all subscribers of the topic.
func (b *Bus) Publish(topic Topic, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- ev:
		default:
			// Buffer full: evict the oldest event for this subscriber
			// to make room, then try once more.
			select {
			case <-ch:
				b.dropped.Add(1)
			default:
			}
			select {
			case ch <- ev:
			default:
				b.dropped.Add(1)
			}
		}
	}
}

// Dropped returns the total number of events dropped for slow
// subscribers. Exposed for observability; overload is never surfaced
// as an error to publishers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// SubscriberCount returns the number of live subscribers on a topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
