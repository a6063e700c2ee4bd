package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/reveriehq/reverie/internal/core/domain"
	"github.com/reveriehq/reverie/internal/logger"
)

// overloadInterval throttles system.overload notifications so a burst
// of queue drops produces at most one.
const overloadInterval = 5 * time.Second

// Subscription is a single subscriber's pull handle on the bus.
// The queue is written by Publish and drained only by the owner.
type Subscription struct {
	// ID is the unique subscriber identifier.
	ID string

	// Topic is the topic the subscription was registered under,
	// after any wildcard fallback.
	Topic domain.Topic

	ch  chan domain.DomainEvent
	bus *Bus
}

// C returns the subscriber's event queue.
func (s *Subscription) C() <-chan domain.DomainEvent {
	return s.ch
}

// Close removes the subscription from the bus. Idempotent.
func (s *Subscription) Close() {
	s.bus.Unsubscribe(s.Topic, s.ID)
}

// Bus is a topic-based pub/sub fan-out with bounded per-subscriber
// queues. Publishers never block: a full queue evicts its oldest item
// to admit the new one.
type Bus struct {
	mu          sync.Mutex
	subscribers map[domain.Topic]map[string]chan domain.DomainEvent

	queueSize      int
	maxSubscribers int

	dropped  atomic.Int64
	overload *rate.Limiter
}

// NewBus creates an event bus. queueSize is the capacity of each
// subscriber queue; maxSubscribers caps concurrent subscriptions.
func NewBus(queueSize, maxSubscribers int) *Bus {
	return &Bus{
		subscribers: map[domain.Topic]map[string]chan domain.DomainEvent{
			domain.TopicThoughts: {},
			domain.TopicDreams:   {},
			domain.TopicSystem:   {},
			domain.TopicAll:      {},
		},
		queueSize:      queueSize,
		maxSubscribers: maxSubscribers,
		overload:       rate.NewLimiter(rate.Every(overloadInterval), 1),
	}
}

// SubscriberCount returns the number of active subscribers across all
// topics.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscriberCountLocked()
}

func (b *Bus) subscriberCountLocked() int {
	total := 0
	for _, subs := range b.subscribers {
		total += len(subs)
	}
	return total
}

// DroppedEvents returns the number of events evicted from full queues.
func (b *Bus) DroppedEvents() int64 {
	return b.dropped.Load()
}

// Subscribe registers a new subscriber on a topic. Unrecognised topics
// fall back to the wildcard. Returns domain.ErrMaxSubscribers when the
// subscriber cap is reached.
func (b *Bus) Subscribe(topic domain.Topic) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscriberCountLocked() >= b.maxSubscribers {
		return nil, domain.ErrMaxSubscribers
	}

	if _, ok := b.subscribers[topic]; !ok {
		topic = domain.TopicAll
	}

	sub := &Subscription{
		ID:    uuid.New().String(),
		Topic: topic,
		ch:    make(chan domain.DomainEvent, b.queueSize),
		bus:   b,
	}
	b.subscribers[topic][sub.ID] = sub.ch

	return sub, nil
}

// Unsubscribe removes a subscriber from the bus. Idempotent.
func (b *Bus) Unsubscribe(topic domain.Topic, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subscribers[topic]; ok {
		if _, present := subs[id]; present {
			delete(subs, id)
			logger.Debug("bus: subscriber %s removed from topic %s", id, topic)
		}
	}
}

// Publish delivers an event to subscribers of its topic and all
// wildcard subscribers. Full queues evict their oldest item; the
// global dropped counter records each eviction. Returns the number of
// subscribers that received the event. Never blocks.
func (b *Bus) Publish(event domain.DomainEvent) int {
	targets := b.snapshot(event.Topic, domain.TopicAll)

	delivered := 0
	overloaded := false
	for _, ch := range targets {
		select {
		case ch <- event:
			delivered++
		default:
			// Queue full: drop the oldest item to admit the new one.
			select {
			case <-ch:
				b.dropped.Add(1)
				overloaded = true
			default:
			}
			select {
			case ch <- event:
				delivered++
			default:
			}
		}
	}

	if overloaded && b.overload.Allow() {
		b.notifyOverload()
	}

	return delivered
}

// snapshot copies the subscriber queues for the given topics so
// delivery never holds the subscriber-map lock.
func (b *Bus) snapshot(topics ...domain.Topic) []chan domain.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[domain.Topic]bool, len(topics))
	var targets []chan domain.DomainEvent
	for _, topic := range topics {
		if seen[topic] {
			continue
		}
		seen[topic] = true
		for _, ch := range b.subscribers[topic] {
			targets = append(targets, ch)
		}
	}
	return targets
}

// notifyOverload tells system and wildcard subscribers that queues are
// dropping events. Best effort: a full queue is skipped rather than
// churned further.
func (b *Bus) notifyOverload() {
	event := domain.NewOverload()
	for _, ch := range b.snapshot(domain.TopicSystem, domain.TopicAll) {
		select {
		case ch <- event:
		default:
		}
	}
	logger.Warn("bus: subscriber queues overloaded, %d events dropped so far", b.dropped.Load())
}
