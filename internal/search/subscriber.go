package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/reveriehq/reverie/internal/core/domain"
	"github.com/reveriehq/reverie/internal/events"
	"github.com/reveriehq/reverie/internal/logger"
)

var upsertEvents = map[domain.EventType]bool{
	domain.EventThoughtCreated:  true,
	domain.EventThoughtModified: true,
	domain.EventDreamCreated:    true,
	domain.EventDreamModified:   true,
}

var deleteEvents = map[domain.EventType]bool{
	domain.EventThoughtDeleted: true,
	domain.EventDreamDeleted:   true,
}

// Subscriber consumes the event bus on the wildcard topic and keeps
// the search index consistent with the filesystem incrementally.
// Consistency is eventual and best-effort: per-subscriber delivery is
// FIFO, and a crash leaves the index stale until the next startup
// rebuild.
type Subscriber struct {
	bus   *events.Bus
	index *Index

	roots map[domain.Topic]string
	types map[domain.Topic]domain.ContentType
}

// NewSubscriber creates a search subscriber over the given bus and
// index. The watched roots resolve event slugs back to file paths.
func NewSubscriber(bus *events.Bus, index *Index, thoughtsDir, dreamsDir string) *Subscriber {
	return &Subscriber{
		bus:   bus,
		index: index,
		roots: map[domain.Topic]string{
			domain.TopicThoughts: thoughtsDir,
			domain.TopicDreams:   dreamsDir,
		},
		types: map[domain.Topic]domain.ContentType{
			domain.TopicThoughts: domain.ContentThought,
			domain.TopicDreams:   domain.ContentDream,
		},
	}
}

// Run subscribes to the bus and processes events until the context is
// cancelled, then returns ctx.Err(). The subscription is released on
// every exit path.
func (s *Subscriber) Run(ctx context.Context) error {
	sub, err := s.bus.Subscribe(domain.TopicAll)
	if err != nil {
		return fmt.Errorf("search subscriber: %w", err)
	}
	defer sub.Close()

	logger.Info("search: subscriber started id=%s", sub.ID)

	for {
		select {
		case <-ctx.Done():
			logger.Info("search: subscriber stopped id=%s", sub.ID)
			return ctx.Err()
		case event := <-sub.C():
			s.handle(event)
		}
	}
}

// handle applies one event to the index. Events without a slug, or of
// an unmapped type, are ignored. Per-event failures are logged and
// never abort the loop.
func (s *Subscriber) handle(event domain.DomainEvent) {
	if event.Slug == "" {
		return
	}

	switch {
	case upsertEvents[event.Type]:
		root, ok := s.roots[event.Topic]
		if !ok {
			return
		}
		path := filepath.Join(root, event.Slug+".md")

		// Guard against stale events for files deleted since.
		if _, err := os.Stat(path); err != nil {
			logger.Debug("search: skipping upsert for missing file %s", path)
			return
		}
		if err := s.index.UpsertDocument(path); err != nil {
			logger.Error("search: upsert %s: %v", path, err)
		}

	case deleteEvents[event.Type]:
		contentType, ok := s.types[event.Topic]
		if !ok {
			return
		}
		if err := s.index.DeleteDocument(event.Slug, contentType); err != nil {
			logger.Error("search: delete %s: %v", event.Slug, err)
		}
	}
}
