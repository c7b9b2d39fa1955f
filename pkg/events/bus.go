// Package events implements the in-process event bus feeding SSE streams
// and the filesystem watcher. Publishers never block: a subscriber whose
// queue overflows is disconnected and its stream reports a final error.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/localtaskrepo/lotar/pkg/logger"
)

var log = logger.New("events:bus")

// Kind identifies an event category on the wire.
type Kind string

const (
	KindTaskCreated    Kind = "task_created"
	KindTaskUpdated    Kind = "task_updated"
	KindTaskDeleted    Kind = "task_deleted"
	KindProjectChanged Kind = "project_changed"
	KindSprintChanged  Kind = "sprint_changed"
	KindReady          Kind = "ready"
	KindError          Kind = "error"
)

// Kinds lists every publishable kind (ready and error are synthetic,
// produced by the stream itself).
var Kinds = []Kind{KindTaskCreated, KindTaskUpdated, KindTaskDeleted, KindProjectChanged, KindSprintChanged}

// Event is one bus message. Seq is monotonic across all publishers.
type Event struct {
	Kind        Kind   `json:"-"`
	ID          string `json:"id,omitempty"`
	Project     string `json:"project,omitempty"`
	TriggeredBy string `json:"triggered_by,omitempty"`
	Seq         uint64 `json:"seq"`
}

// DefaultQueueSize is the per-subscriber buffer; overflow disconnects.
const DefaultQueueSize = 64

// Subscriber is one bounded-queue consumer of the bus.
type Subscriber struct {
	ch      chan Event
	dropped atomic.Bool
	once    sync.Once
}

// Events returns the subscriber's delivery channel. It is closed when the
// subscriber is dropped for falling behind or explicitly unsubscribed;
// check Dropped afterwards to tell the cases apart.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Dropped reports whether the bus disconnected this subscriber because its
// queue overflowed.
func (s *Subscriber) Dropped() bool {
	return s.dropped.Load()
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Bus is the process-wide broadcaster.
type Bus struct {
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
	seq  atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: map[*Subscriber]struct{}{}}
}

// Subscribe registers a consumer. Queue sizes below DefaultQueueSize are
// raised to it.
func (b *Bus) Subscribe(queueSize int) *Subscriber {
	if queueSize < DefaultQueueSize {
		queueSize = DefaultQueueSize
	}
	sub := &Subscriber{ch: make(chan Event, queueSize)}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a consumer and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	_, present := b.subs[sub]
	delete(b.subs, sub)
	b.mu.Unlock()
	if present {
		sub.close()
	}
}

// Publish stamps the next sequence number and fans the event out. A full
// subscriber queue drops that subscriber immediately; the publisher never
// waits.
func (b *Bus) Publish(event Event) {
	event.Seq = b.seq.Add(1)

	b.mu.Lock()
	var overflowed []*Subscriber
	for sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			sub.dropped.Store(true)
			overflowed = append(overflowed, sub)
			delete(b.subs, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range overflowed {
		log.Printf("dropping slow subscriber at seq %d", event.Seq)
		sub.close()
	}
}
