package events

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reveriehq/reverie/internal/core/domain"
)

func thoughtEvent(slug string) domain.DomainEvent {
	return domain.DomainEvent{
		ID:        slug,
		Type:      domain.EventThoughtCreated,
		Timestamp: time.Now().UTC(),
		Topic:     domain.TopicThoughts,
		Path:      slug + ".md",
		Slug:      slug,
	}
}

func TestBus_Publish(t *testing.T) {
	t.Run("no subscribers returns zero", func(t *testing.T) {
		bus := NewBus(10, 10)

		delivered := bus.Publish(thoughtEvent("a"))

		assert.Equal(t, 0, delivered)
	})

	t.Run("delivers to topic and wildcard subscribers", func(t *testing.T) {
		bus := NewBus(10, 10)
		topicSub, err := bus.Subscribe(domain.TopicThoughts)
		require.NoError(t, err)
		wildcardSub, err := bus.Subscribe(domain.TopicAll)
		require.NoError(t, err)

		delivered := bus.Publish(thoughtEvent("a"))

		assert.Equal(t, 2, delivered)
		assert.Equal(t, "a", (<-topicSub.C()).Slug)
		assert.Equal(t, "a", (<-wildcardSub.C()).Slug)
	})

	t.Run("other topics do not receive the event", func(t *testing.T) {
		bus := NewBus(10, 10)
		dreamSub, err := bus.Subscribe(domain.TopicDreams)
		require.NoError(t, err)

		delivered := bus.Publish(thoughtEvent("a"))

		assert.Equal(t, 0, delivered)
		assert.Empty(t, dreamSub.C())
	})
}

func TestBus_DropOldest(t *testing.T) {
	t.Run("full queue evicts exactly one oldest item", func(t *testing.T) {
		bus := NewBus(2, 10)
		sub, err := bus.Subscribe(domain.TopicThoughts)
		require.NoError(t, err)

		bus.Publish(thoughtEvent("first"))
		bus.Publish(thoughtEvent("second"))
		delivered := bus.Publish(thoughtEvent("third"))

		assert.Equal(t, 1, delivered, "drop-oldest still counts the new item's slot")
		assert.Equal(t, int64(1), bus.DroppedEvents())
		assert.Equal(t, "second", (<-sub.C()).Slug, "oldest item was evicted")
		assert.Equal(t, "third", (<-sub.C()).Slug)
	})

	t.Run("overload notification reaches system subscribers", func(t *testing.T) {
		bus := NewBus(1, 10)
		_, err := bus.Subscribe(domain.TopicThoughts)
		require.NoError(t, err)
		systemSub, err := bus.Subscribe(domain.TopicSystem)
		require.NoError(t, err)

		bus.Publish(thoughtEvent("first"))
		bus.Publish(thoughtEvent("second")) // forces a drop

		select {
		case event := <-systemSub.C():
			assert.Equal(t, domain.EventSystemOverload, event.Type)
		default:
			t.Fatal("expected a system.overload event")
		}
	})
}

func TestBus_Subscribe(t *testing.T) {
	t.Run("fails with capacity error at the cap", func(t *testing.T) {
		bus := NewBus(10, 2)
		_, err := bus.Subscribe(domain.TopicThoughts)
		require.NoError(t, err)
		_, err = bus.Subscribe(domain.TopicDreams)
		require.NoError(t, err, "one below the cap succeeds")

		_, err = bus.Subscribe(domain.TopicAll)

		assert.ErrorIs(t, err, domain.ErrMaxSubscribers)
	})

	t.Run("unrecognised topic falls back to wildcard", func(t *testing.T) {
		bus := NewBus(10, 10)
		sub, err := bus.Subscribe(domain.Topic("nonsense"))
		require.NoError(t, err)

		assert.Equal(t, domain.TopicAll, sub.Topic)

		bus.Publish(thoughtEvent("a"))
		assert.Equal(t, "a", (<-sub.C()).Slug)
	})

	t.Run("subscriber count tracks all topics", func(t *testing.T) {
		bus := NewBus(10, 10)
		for i := 0; i < 3; i++ {
			_, err := bus.Subscribe(domain.TopicThoughts)
			require.NoError(t, err)
		}

		assert.Equal(t, 3, bus.SubscriberCount())
	})
}

func TestBus_Unsubscribe(t *testing.T) {
	t.Run("removes the subscriber", func(t *testing.T) {
		bus := NewBus(10, 10)
		sub, err := bus.Subscribe(domain.TopicThoughts)
		require.NoError(t, err)

		sub.Close()

		assert.Equal(t, 0, bus.SubscriberCount())
		assert.Equal(t, 0, bus.Publish(thoughtEvent("a")))
	})

	t.Run("idempotent", func(t *testing.T) {
		bus := NewBus(10, 10)
		sub, err := bus.Subscribe(domain.TopicThoughts)
		require.NoError(t, err)

		sub.Close()
		sub.Close()
		bus.Unsubscribe(domain.TopicThoughts, "never-registered")

		assert.Equal(t, 0, bus.SubscriberCount())
	})
}

func TestBus_PublishDoesNotBlock(t *testing.T) {
	t.Run("stalled subscriber never blocks the publisher", func(t *testing.T) {
		bus := NewBus(4, 10)
		_, err := bus.Subscribe(domain.TopicThoughts)
		require.NoError(t, err)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 1000; i++ {
				bus.Publish(thoughtEvent(fmt.Sprintf("e%d", i)))
			}
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("publish blocked on a full queue")
		}
	})
}
