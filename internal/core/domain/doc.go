// Package domain defines the core business entities for Reverie.
//
// This package is the innermost layer. It defines the fundamental types:
//
//   - DomainEvent: A typed, immutable filesystem change notification
//   - RawEvent: An unprocessed change from the watcher
//   - ThoughtMeta / DreamMeta: Validated content frontmatter
//   - SearchResult / SearchResponse: Full-text search output
//
// # Import Rules
//
//   - Can Import: Standard library and google/uuid only
//   - Cannot Import: Any other internal/ package
package domain
