package events

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/reveriehq/reverie/internal/core/domain"
	"github.com/reveriehq/reverie/internal/logger"
)

// streamBufferSize bounds the per-stream buffer between the bus
// subscription and the outbound frame loop. Real-event latency is
// bounded by this buffer, not by the heartbeat period.
const streamBufferSize = 10

// Frame is a single outbound stream frame: an event name and a JSON
// body, ready for the transport layer to write.
type Frame struct {
	// Event is the frame's event name: a domain event type or
	// "heartbeat".
	Event string

	// Data is the JSON-encoded domain event.
	Data []byte
}

// Hub bridges the event pipeline to outbound client streams. It
// normalizes and publishes raw filesystem events, and turns bus
// subscriptions into frame channels with heartbeat injection.
type Hub struct {
	bus        *Bus
	normalizer *Normalizer
	heartbeat  time.Duration

	active atomic.Int32
}

// NewHub creates a broadcast hub.
func NewHub(bus *Bus, normalizer *Normalizer, heartbeatInterval time.Duration) *Hub {
	return &Hub{
		bus:        bus,
		normalizer: normalizer,
		heartbeat:  heartbeatInterval,
	}
}

// ActiveConnections returns the number of open client streams.
func (h *Hub) ActiveConnections() int {
	return int(h.active.Load())
}

// OnRawEvent normalizes a raw filesystem event and publishes it to
// the bus. A no-op when normalization drops the event.
func (h *Hub) OnRawEvent(raw domain.RawEvent) {
	event, ok := h.normalizer.Normalize(raw)
	if !ok {
		return
	}

	delivered := h.bus.Publish(event)
	logger.Debug("hub: published %s topic=%s path=%s delivered=%d",
		event.Type, event.Topic, event.Path, delivered)
}

// Run consumes the watcher's raw event channel until the context is
// cancelled.
func (h *Hub) Run(ctx context.Context, raws <-chan domain.RawEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-raws:
			h.OnRawEvent(raw)
		}
	}
}

// CreateStream subscribes to the bus and returns a channel of frames
// for one client. A frame is guaranteed at least every heartbeat
// interval: real events are emitted as they arrive, and a heartbeat is
// synthesised when the interval elapses without one.
//
// The stream ends when ctx is cancelled. The subscription, the pump
// and the active-connection count are released on every exit path.
func (h *Hub) CreateStream(ctx context.Context, topic domain.Topic) (<-chan Frame, error) {
	sub, err := h.bus.Subscribe(topic)
	if err != nil {
		return nil, err
	}

	h.active.Add(1)
	logger.Info("hub: stream connected subscriber=%s topic=%s active=%d",
		sub.ID, sub.Topic, h.active.Load())

	buffer := make(chan domain.DomainEvent, streamBufferSize)
	pumpDone := make(chan struct{})

	// Pump moves events from the subscription queue into the stream
	// buffer so the frame loop can multiplex them with heartbeats.
	go func() {
		defer close(pumpDone)
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-sub.C():
				select {
				case buffer <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	out := make(chan Frame)

	go func() {
		defer func() {
			<-pumpDone
			sub.Close()
			h.active.Add(-1)
			close(out)
			logger.Info("hub: stream disconnected subscriber=%s active=%d",
				sub.ID, h.active.Load())
		}()

		heartbeat := time.NewTimer(h.heartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case event := <-buffer:
				if !h.send(ctx, out, event) {
					return
				}
				if !heartbeat.Stop() {
					select {
					case <-heartbeat.C:
					default:
					}
				}
				heartbeat.Reset(h.heartbeat)

			case <-heartbeat.C:
				if !h.send(ctx, out, domain.NewHeartbeat()) {
					return
				}
				heartbeat.Reset(h.heartbeat)
			}
		}
	}()

	return out, nil
}

// send writes one event to the stream as a frame. Returns false when
// the context ended before the frame could be accepted.
func (h *Hub) send(ctx context.Context, out chan<- Frame, event domain.DomainEvent) bool {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("hub: encoding event %s: %v", event.ID, err)
		return true
	}

	select {
	case out <- Frame{Event: string(event.Type), Data: data}:
		return true
	case <-ctx.Done():
		return false
	}
}
