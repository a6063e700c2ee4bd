package domain

import (
	"time"

	"github.com/google/uuid"
)

// Topic is the routing key grouping domain events.
type Topic string

const (
	// TopicThoughts carries events for thought entries.
	TopicThoughts Topic = "thoughts"

	// TopicDreams carries events for dream entries.
	TopicDreams Topic = "dreams"

	// TopicSystem carries heartbeat and overload events.
	TopicSystem Topic = "system"

	// TopicAll is the wildcard topic receiving every event.
	TopicAll Topic = "*"
)

// Valid reports whether the topic is one a subscriber may request.
func (t Topic) Valid() bool {
	switch t {
	case TopicThoughts, TopicDreams, TopicSystem, TopicAll:
		return true
	}
	return false
}

// EventType identifies the action and content kind of a domain event.
// The set is closed; the normalizer drops anything it cannot map here.
type EventType string

const (
	EventThoughtCreated  EventType = "thought.created"
	EventThoughtModified EventType = "thought.modified"
	EventThoughtDeleted  EventType = "thought.deleted"
	EventDreamCreated    EventType = "dream.created"
	EventDreamModified   EventType = "dream.modified"
	EventDreamDeleted    EventType = "dream.deleted"
	EventHeartbeat       EventType = "heartbeat"
	EventSystemOverload  EventType = "system.overload"
)

// ChangeKind classifies a raw filesystem change.
type ChangeKind int

const (
	// ChangeCreated indicates a new file appeared.
	ChangeCreated ChangeKind = iota

	// ChangeModified indicates an existing file was written.
	ChangeModified

	// ChangeDeleted indicates a file was removed or renamed away.
	ChangeDeleted
)

// String returns a human-readable representation of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeCreated:
		return "created"
	case ChangeModified:
		return "modified"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Priority orders change kinds for debounce coalescing.
// A created or deleted change must not be lost to a later modify
// within the same debounce window.
func (k ChangeKind) Priority() int {
	switch k {
	case ChangeCreated:
		return 3
	case ChangeDeleted:
		return 2
	case ChangeModified:
		return 1
	default:
		return 0
	}
}

// RawEvent is an unprocessed filesystem change, produced by the watcher
// after debouncing and consumed by the normalizer.
type RawEvent struct {
	// Path is the absolute path of the changed file.
	Path string

	// Kind is the coalesced change kind for the debounce window.
	Kind ChangeKind

	// IsDir reports whether the path refers to a directory.
	IsDir bool
}

// DomainEvent is a typed, immutable unit of change. Events are created
// by the normalizer, fanned out by the bus, and never mutated.
type DomainEvent struct {
	// ID is the unique event identifier (UUID).
	ID string `json:"id"`

	// Type is the domain event type.
	Type EventType `json:"type"`

	// Timestamp is the event creation time in UTC.
	Timestamp time.Time `json:"timestamp"`

	// Topic routes the event to subscribers.
	Topic Topic `json:"topic"`

	// Path is the changed file's name, when the event has one.
	Path string `json:"path,omitempty"`

	// Slug is the content identifier extracted from the filename.
	Slug string `json:"slug,omitempty"`
}

// NewHeartbeat creates a heartbeat event on the system topic.
func NewHeartbeat() DomainEvent {
	return DomainEvent{
		ID:        uuid.New().String(),
		Type:      EventHeartbeat,
		Timestamp: time.Now().UTC(),
		Topic:     TopicSystem,
	}
}

// NewOverload creates an overload notification on the system topic.
// The bus emits one when subscriber queues start dropping events.
func NewOverload() DomainEvent {
	return DomainEvent{
		ID:        uuid.New().String(),
		Type:      EventSystemOverload,
		Timestamp: time.Now().UTC(),
		Topic:     TopicSystem,
	}
}
