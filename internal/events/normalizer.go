package events

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reveriehq/reverie/internal/core/domain"
	"github.com/reveriehq/reverie/internal/logger"
)

// contentExtension is the only file extension that produces events.
const contentExtension = ".md"

// slugPattern is the grammar for content identifiers: alphanumeric
// start, then alphanumerics, dash or underscore.
var slugPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// kindTopic keys the closed (change kind, topic) lookup table.
type kindTopic struct {
	kind  domain.ChangeKind
	topic domain.Topic
}

var eventTypeTable = map[kindTopic]domain.EventType{
	{domain.ChangeCreated, domain.TopicThoughts}:  domain.EventThoughtCreated,
	{domain.ChangeModified, domain.TopicThoughts}: domain.EventThoughtModified,
	{domain.ChangeDeleted, domain.TopicThoughts}:  domain.EventThoughtDeleted,
	{domain.ChangeCreated, domain.TopicDreams}:    domain.EventDreamCreated,
	{domain.ChangeModified, domain.TopicDreams}:   domain.EventDreamModified,
	{domain.ChangeDeleted, domain.TopicDreams}:    domain.EventDreamDeleted,
}

// Normalizer turns raw filesystem notifications into typed domain
// events. It is a pure transformation: anything it cannot validate is
// dropped, never surfaced as an error.
type Normalizer struct {
	roots map[domain.Topic]string
}

// NewNormalizer creates a normalizer routing paths under the given
// watched roots to their topics.
func NewNormalizer(thoughtsDir, dreamsDir string) *Normalizer {
	return &Normalizer{
		roots: map[domain.Topic]string{
			domain.TopicThoughts: filepath.Clean(thoughtsDir),
			domain.TopicDreams:   filepath.Clean(dreamsDir),
		},
	}
}

// Root returns the watched root directory for a topic, or "" if the
// topic has none.
func (n *Normalizer) Root(topic domain.Topic) string {
	return n.roots[topic]
}

// Normalize transforms a raw notification into a domain event.
// Returns false when the event should be dropped: paths outside the
// watched subtrees, unmapped change kinds and invalid slugs all drop.
func (n *Normalizer) Normalize(raw domain.RawEvent) (domain.DomainEvent, bool) {
	topic, ok := n.topicFor(raw.Path)
	if !ok {
		logger.Warn("normalizer: no topic for path %s", raw.Path)
		return domain.DomainEvent{}, false
	}

	eventType, ok := eventTypeTable[kindTopic{raw.Kind, topic}]
	if !ok {
		return domain.DomainEvent{}, false
	}

	filename := filepath.Base(raw.Path)
	slug, ok := extractSlug(filename)
	if !ok {
		logger.Warn("normalizer: invalid slug in filename %s", filename)
		return domain.DomainEvent{}, false
	}

	return domain.DomainEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Topic:     topic,
		Path:      filename,
		Slug:      slug,
	}, true
}

// topicFor matches a path against the watched subtrees.
func (n *Normalizer) topicFor(path string) (domain.Topic, bool) {
	clean := filepath.Clean(path)
	for topic, root := range n.roots {
		if clean == root || strings.HasPrefix(clean, root+string(filepath.Separator)) {
			return topic, true
		}
	}
	return "", false
}

// extractSlug validates a filename against the content extension and
// slug grammar, returning the stem.
func extractSlug(filename string) (string, bool) {
	if !strings.HasSuffix(filename, contentExtension) {
		return "", false
	}
	slug := strings.TrimSuffix(filename, contentExtension)
	if slug == "" || !slugPattern.MatchString(slug) {
		return "", false
	}
	return slug, true
}
