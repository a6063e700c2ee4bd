package search

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reveriehq/reverie/internal/core/domain"
	"github.com/reveriehq/reverie/internal/events"
)

func contentEvent(eventType domain.EventType, topic domain.Topic, slug string) domain.DomainEvent {
	return domain.DomainEvent{
		ID:        slug,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Topic:     topic,
		Path:      slug + ".md",
		Slug:      slug,
	}
}

// startSubscriber runs the subscriber until the test ends and returns
// its exit error channel.
func startSubscriber(t *testing.T, bus *events.Bus, index *Index, thoughtsDir, dreamsDir string) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sub := NewSubscriber(bus, index, thoughtsDir, dreamsDir)
	errs := make(chan error, 1)
	go func() { errs <- sub.Run(ctx) }()

	// Let the subscription register before the test publishes.
	require.Eventually(t, func() bool {
		return bus.SubscriberCount() == 1
	}, time.Second, 5*time.Millisecond)

	return cancel, errs
}

// searchTotal is polled inside assert.Eventually, so it reports errors
// as an impossible total instead of failing the test directly.
func searchTotal(index *Index, query string) int {
	response, err := index.Search(query, "", 10, 0)
	if err != nil {
		return -1
	}
	return response.Total
}

func TestSubscriber_Run(t *testing.T) {
	t.Run("created event indexes the file", func(t *testing.T) {
		index, thoughtsDir, dreamsDir := newTestIndex(t)
		bus := events.NewBus(10, 10)
		startSubscriber(t, bus, index, thoughtsDir, dreamsDir)

		writeThought(t, thoughtsDir, "arrival", "New Arrival", "", "Fresh off the watcher.")
		bus.Publish(contentEvent(domain.EventThoughtCreated, domain.TopicThoughts, "arrival"))

		assert.Eventually(t, func() bool {
			return searchTotal(index, "arrival") == 1
		}, 3*time.Second, 10*time.Millisecond)
	})

	t.Run("modified event re-indexes the file", func(t *testing.T) {
		index, thoughtsDir, dreamsDir := newTestIndex(t)
		bus := events.NewBus(10, 10)
		startSubscriber(t, bus, index, thoughtsDir, dreamsDir)

		writeThought(t, thoughtsDir, "revision", "Revision", "", "original wording")
		bus.Publish(contentEvent(domain.EventThoughtCreated, domain.TopicThoughts, "revision"))
		require.Eventually(t, func() bool {
			return searchTotal(index, "original") == 1
		}, 3*time.Second, 10*time.Millisecond)

		writeThought(t, thoughtsDir, "revision", "Revision", "", "replacement wording")
		bus.Publish(contentEvent(domain.EventThoughtModified, domain.TopicThoughts, "revision"))

		assert.Eventually(t, func() bool {
			return searchTotal(index, "replacement") == 1 &&
				searchTotal(index, "original") == 0
		}, 3*time.Second, 10*time.Millisecond)
	})

	t.Run("deleted event removes the row", func(t *testing.T) {
		index, thoughtsDir, dreamsDir := newTestIndex(t)
		bus := events.NewBus(10, 10)
		startSubscriber(t, bus, index, thoughtsDir, dreamsDir)

		path := writeDream(t, dreamsDir, "vanish", "Vanishing Act", domain.DreamProse, "Here then gone.")
		require.NoError(t, index.UpsertDocument(path))
		require.NoError(t, os.Remove(path))

		bus.Publish(contentEvent(domain.EventDreamDeleted, domain.TopicDreams, "vanish"))

		assert.Eventually(t, func() bool {
			return searchTotal(index, "vanishing") == 0
		}, 3*time.Second, 10*time.Millisecond)
	})

	t.Run("stale create for a missing file is skipped", func(t *testing.T) {
		index, thoughtsDir, dreamsDir := newTestIndex(t)
		bus := events.NewBus(10, 10)
		startSubscriber(t, bus, index, thoughtsDir, dreamsDir)

		// No file on disk; the event refers to something already gone.
		bus.Publish(contentEvent(domain.EventThoughtCreated, domain.TopicThoughts, "phantom"))

		// Publish a real event afterwards to prove the loop survived.
		writeThought(t, thoughtsDir, "survivor", "Survivor", "", "Still running.")
		bus.Publish(contentEvent(domain.EventThoughtCreated, domain.TopicThoughts, "survivor"))

		assert.Eventually(t, func() bool {
			return searchTotal(index, "survivor") == 1
		}, 3*time.Second, 10*time.Millisecond)
		assert.Equal(t, 0, searchTotal(index, "phantom"))
	})

	t.Run("slugless events are ignored", func(t *testing.T) {
		index, thoughtsDir, dreamsDir := newTestIndex(t)
		bus := events.NewBus(10, 10)
		startSubscriber(t, bus, index, thoughtsDir, dreamsDir)

		bus.Publish(domain.NewHeartbeat())
		bus.Publish(domain.NewOverload())

		writeThought(t, thoughtsDir, "after", "Afterwards", "", "Unaffected.")
		bus.Publish(contentEvent(domain.EventThoughtCreated, domain.TopicThoughts, "after"))

		assert.Eventually(t, func() bool {
			return searchTotal(index, "afterwards") == 1
		}, 3*time.Second, 10*time.Millisecond)
	})

	t.Run("cancel returns the context error and releases the subscription", func(t *testing.T) {
		index, thoughtsDir, dreamsDir := newTestIndex(t)
		bus := events.NewBus(10, 10)
		cancel, errs := startSubscriber(t, bus, index, thoughtsDir, dreamsDir)

		cancel()

		select {
		case err := <-errs:
			assert.True(t, errors.Is(err, context.Canceled))
		case <-time.After(3 * time.Second):
			t.Fatal("subscriber did not stop after cancel")
		}
		assert.Equal(t, 0, bus.SubscriberCount())
	})
}
