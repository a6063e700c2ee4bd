// Package search provides the full-text index over thought and dream
// entries and the bus subscriber that keeps it in sync with the
// filesystem.
//
// The index is an in-memory SQLite FTS5 table with a porter/unicode61
// tokenizer. Ranking is BM25 with title matches weighted 10:1 over
// body matches; lower scores rank first. User queries are sanitised
// before they reach MATCH, and engine-level query errors degrade to an
// empty result set rather than surfacing to callers.
package search
