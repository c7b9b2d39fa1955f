package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesSubscribersInOrder(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(0)

	bus.Publish(Event{Kind: KindTaskCreated, ID: "TEST-1", Project: "TEST"})
	bus.Publish(Event{Kind: KindTaskUpdated, ID: "TEST-1", Project: "TEST"})

	first := <-sub.Events()
	second := <-sub.Events()
	assert.Equal(t, KindTaskCreated, first.Kind)
	assert.Equal(t, KindTaskUpdated, second.Kind)
	assert.Less(t, first.Seq, second.Seq)
}

func TestSeqMonotonicAcrossSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(0)
	b := bus.Subscribe(0)

	bus.Publish(Event{Kind: KindSprintChanged})
	ea := <-a.Events()
	eb := <-b.Events()
	assert.Equal(t, ea.Seq, eb.Seq)
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	bus := NewBus()
	slow := bus.Subscribe(0)
	fast := bus.Subscribe(DefaultQueueSize * 4)

	// Overflow the slow subscriber's queue without draining it.
	for i := 0; i < DefaultQueueSize+1; i++ {
		bus.Publish(Event{Kind: KindProjectChanged, Project: "TEST"})
	}

	// The slow channel closes after its buffered events.
	count := 0
	for range slow.Events() {
		count++
	}
	assert.Equal(t, DefaultQueueSize, count)
	assert.True(t, slow.Dropped())

	// The fast subscriber is untouched and still receives publishes.
	bus.Publish(Event{Kind: KindTaskDeleted, ID: "TEST-9"})
	deadline := time.After(time.Second)
	seen := 0
	for seen < DefaultQueueSize+2 {
		select {
		case <-fast.Events():
			seen++
		case <-deadline:
			t.Fatal("fast subscriber starved")
		}
	}
	assert.False(t, fast.Dropped())
}

func TestUnsubscribeCloses(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(0)
	bus.Unsubscribe(sub)

	_, open := <-sub.Events()
	require.False(t, open)
	assert.False(t, sub.Dropped())
}

func TestPublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	_ = bus.Subscribe(0)

	done := make(chan struct{})
	go func() {
		for i := 0; i < DefaultQueueSize*3; i++ {
			bus.Publish(Event{Kind: KindProjectChanged})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
}
