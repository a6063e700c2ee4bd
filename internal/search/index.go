package search

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/reveriehq/reverie/internal/content"
	"github.com/reveriehq/reverie/internal/core/domain"
	"github.com/reveriehq/reverie/internal/logger"
)

// ftsSpecial matches FTS5 syntax-significant characters that are
// neutralised before a user query reaches MATCH.
var ftsSpecial = regexp.MustCompile(`["*(){}\[\]^~:\-]`)

var whitespace = regexp.MustCompile(`\s+`)

// markdownPatterns strip formatting before body text is indexed, in
// application order.
var markdownPatterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile("(?s)```.*?```"), ""},
	{regexp.MustCompile("`([^`]+)`"), "$1"},
	{regexp.MustCompile(`(?m)^#{1,6}\s+`), ""},
	{regexp.MustCompile(`\*\*(.+?)\*\*`), "$1"},
	{regexp.MustCompile(`\*(.+?)\*`), "$1"},
	{regexp.MustCompile(`__(.+?)__`), "$1"},
	{regexp.MustCompile(`_(.+?)_`), "$1"},
	{regexp.MustCompile(`~~(.+?)~~`), "$1"},
	{regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`), "$1"},
	{regexp.MustCompile(`(?m)^>\s?`), ""},
	{regexp.MustCompile(`(?m)^[-*+]\s`), ""},
	{regexp.MustCompile(`(?m)^\d+\.\s`), ""},
	{regexp.MustCompile(`(?m)^---+$`), ""},
	{regexp.MustCompile(`\n{3,}`), "\n\n"},
}

// stripMarkdown removes markdown formatting for cleaner indexing.
func stripMarkdown(text string) string {
	result := text
	for _, p := range markdownPatterns {
		result = p.re.ReplaceAllString(result, p.replacement)
	}
	return strings.TrimSpace(result)
}

// sanitizeQuery neutralises FTS5 syntax in user input and rewrites the
// query for incremental typing: a single token becomes a prefix match,
// multi-token queries exact-match all but the last token and
// prefix-match the last. Returns "" when nothing searchable remains.
func sanitizeQuery(raw string) string {
	query := strings.TrimSpace(raw)
	if query == "" {
		return ""
	}

	query = ftsSpecial.ReplaceAllString(query, " ")
	query = strings.TrimSpace(whitespace.ReplaceAllString(query, " "))
	if query == "" {
		return ""
	}

	tokens := strings.Fields(query)
	if len(tokens) == 1 {
		return tokens[0] + "*"
	}

	parts := make([]string, 0, len(tokens))
	for _, t := range tokens[:len(tokens)-1] {
		parts = append(parts, `"`+t+`"`)
	}
	parts = append(parts, tokens[len(tokens)-1]+"*")
	return strings.Join(parts, " ")
}

// Index is an in-memory SQLite FTS5 full-text store over thought and
// dream entries. The *sql.DB is restricted to a single connection,
// which both keeps every caller on the same :memory: database and
// serialises writers against concurrent readers.
//
// Title matches are weighted 10:1 over body matches in BM25 ranking.
type Index struct {
	db          *sql.DB
	thoughtsDir string
	dreamsDir   string
}

// NewIndex creates the in-memory FTS5 index. The watched roots are
// used by Rebuild and UpsertDocument to locate content files.
func NewIndex(thoughtsDir, dreamsDir string) (*Index, error) {
	// One connection only: each connection to :memory: would get its
	// own private database.
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening search database: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE VIRTUAL TABLE content_fts USING fts5(
			title,
			body,
			slug UNINDEXED,
			content_type UNINDEXED,
			date UNINDEXED,
			mood UNINDEXED,
			dream_type UNINDEXED,
			tokenize='porter unicode61'
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating fts table: %w", err)
	}

	logger.Info("search: index initialised")
	return &Index{
		db:          db,
		thoughtsDir: thoughtsDir,
		dreamsDir:   dreamsDir,
	}, nil
}

// Close releases the database.
func (i *Index) Close() error {
	return i.db.Close()
}

// indexedDocument is one row ready for insertion.
type indexedDocument struct {
	title       string
	body        string
	slug        string
	contentType domain.ContentType
	date        string
	mood        string
	dreamType   string
}

// Rebuild clears the index and rescans both watched roots. Files that
// fail to parse are skipped with a warning. Returns the number of
// documents indexed.
func (i *Index) Rebuild() (int, error) {
	tx, err := i.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning rebuild: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec("DELETE FROM content_fts"); err != nil {
		return 0, fmt.Errorf("clearing index: %w", err)
	}

	count := 0
	for _, doc := range scanDirectory(i.thoughtsDir, domain.ContentThought) {
		if err := insertDocument(tx, doc); err != nil {
			return 0, err
		}
		count++
	}
	for _, doc := range scanDirectory(i.dreamsDir, domain.ContentDream) {
		if err := insertDocument(tx, doc); err != nil {
			return 0, err
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing rebuild: %w", err)
	}

	logger.Info("search: index rebuilt with %d documents", count)
	return count, nil
}

// scanDirectory parses every markdown file in a directory, skipping
// the ones that fail to parse.
func scanDirectory(dir string, contentType domain.ContentType) []indexedDocument {
	paths, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil
	}
	sort.Strings(paths)

	var docs []indexedDocument
	for _, path := range paths {
		doc, err := parseDocument(path, contentType)
		if err != nil {
			logger.Warn("search: skipping %s: %v", path, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

// parseDocument reads one content file into an index row.
func parseDocument(path string, contentType domain.ContentType) (indexedDocument, error) {
	slug := strings.TrimSuffix(filepath.Base(path), ".md")

	switch contentType {
	case domain.ContentThought:
		meta, body, err := content.ReadThought(path)
		if err != nil {
			return indexedDocument{}, err
		}
		return indexedDocument{
			title:       meta.Title,
			body:        stripMarkdown(body),
			slug:        slug,
			contentType: contentType,
			date:        meta.Date,
			mood:        meta.Mood,
		}, nil

	case domain.ContentDream:
		meta, body, err := content.ReadDream(path)
		if err != nil {
			return indexedDocument{}, err
		}
		return indexedDocument{
			title:       meta.Title,
			body:        stripMarkdown(body),
			slug:        slug,
			contentType: contentType,
			date:        meta.Date,
			dreamType:   string(meta.Type),
		}, nil

	default:
		return indexedDocument{}, fmt.Errorf("%w: content type %q", domain.ErrInvalidInput, contentType)
	}
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertDocument(db execer, doc indexedDocument) error {
	_, err := db.Exec(`
		INSERT INTO content_fts (title, body, slug, content_type, date, mood, dream_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, doc.title, doc.body, doc.slug, string(doc.contentType), doc.date, doc.mood, doc.dreamType)
	if err != nil {
		return fmt.Errorf("inserting document %s: %w", doc.slug, err)
	}
	return nil
}

// UpsertDocument indexes or re-indexes a single file, deriving the
// content type from the parent directory. Idempotent for create and
// modify. Files outside the watched roots, or that fail to parse, are
// skipped with a warning.
func (i *Index) UpsertDocument(path string) error {
	contentType, ok := i.contentTypeFor(path)
	if !ok {
		return nil
	}

	doc, err := parseDocument(path, contentType)
	if err != nil {
		logger.Warn("search: upsert read failed for %s: %v", path, err)
		return nil
	}

	tx, err := i.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(
		"DELETE FROM content_fts WHERE slug = ? AND content_type = ?",
		doc.slug, string(doc.contentType),
	); err != nil {
		return fmt.Errorf("replacing document %s: %w", doc.slug, err)
	}
	if err := insertDocument(tx, doc); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}

	logger.Info("search: upserted %s type=%s", doc.slug, doc.contentType)
	return nil
}

// contentTypeFor derives the content type from a file's parent
// directory.
func (i *Index) contentTypeFor(path string) (domain.ContentType, bool) {
	switch filepath.Dir(filepath.Clean(path)) {
	case filepath.Clean(i.thoughtsDir):
		return domain.ContentThought, true
	case filepath.Clean(i.dreamsDir):
		return domain.ContentDream, true
	}
	return "", false
}

// DeleteDocument removes a document's row. No-op if absent.
func (i *Index) DeleteDocument(slug string, contentType domain.ContentType) error {
	_, err := i.db.Exec(
		"DELETE FROM content_fts WHERE slug = ? AND content_type = ?",
		slug, string(contentType),
	)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", slug, err)
	}

	logger.Info("search: deleted %s type=%s", slug, contentType)
	return nil
}

// Search runs a full-text query with BM25 ranking, title matches
// weighted 10:1 over body matches. Queries that sanitise to nothing,
// and query-syntax errors from the engine, yield an empty result
// rather than an error.
func (i *Index) Search(query string, contentType domain.ContentType, limit, offset int) (domain.SearchResponse, error) {
	empty := domain.SearchResponse{
		Query:   query,
		Results: []domain.SearchResult{},
		Total:   0,
		Limit:   limit,
		Offset:  offset,
	}

	sanitized := sanitizeQuery(query)
	if sanitized == "" {
		return empty, nil
	}

	countSQL := "SELECT COUNT(*) FROM content_fts WHERE content_fts MATCH ?"
	searchSQL := `
		SELECT slug, content_type, date, mood, dream_type,
			snippet(content_fts, 0, '<mark>', '</mark>', '...', 16) AS title_snippet,
			snippet(content_fts, 1, '<mark>', '</mark>', '...', 32) AS body_snippet,
			bm25(content_fts, 10.0, 1.0) AS score
		FROM content_fts
		WHERE content_fts MATCH ?`
	countArgs := []any{sanitized}
	searchArgs := []any{sanitized}

	if contentType == domain.ContentThought || contentType == domain.ContentDream {
		countSQL += " AND content_type = ?"
		searchSQL += " AND content_type = ?"
		countArgs = append(countArgs, string(contentType))
		searchArgs = append(searchArgs, string(contentType))
	}

	searchSQL += " ORDER BY score LIMIT ? OFFSET ?"
	searchArgs = append(searchArgs, limit, offset)

	var total int
	if err := i.db.QueryRow(countSQL, countArgs...).Scan(&total); err != nil {
		// Degrade to empty on query-syntax failures from the engine.
		logger.Warn("search: query failed: %q: %v", query, err)
		return empty, nil
	}

	rows, err := i.db.Query(searchSQL, searchArgs...)
	if err != nil {
		logger.Warn("search: query failed: %q: %v", query, err)
		return empty, nil
	}
	defer rows.Close()

	results := []domain.SearchResult{}
	for rows.Next() {
		var r domain.SearchResult
		var ct, titleSnip, bodySnip string
		if err := rows.Scan(&r.Slug, &ct, &r.Date, &r.Mood, &r.DreamType,
			&titleSnip, &bodySnip, &r.Score); err != nil {
			return empty, fmt.Errorf("scanning search result: %w", err)
		}

		r.Type = domain.ContentType(ct)
		r.Title = titleSnip
		if r.Title == "" {
			r.Title = r.Slug
		}
		r.Snippet = bodySnip
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return empty, fmt.Errorf("iterating search results: %w", err)
	}

	return domain.SearchResponse{
		Query:   query,
		Results: results,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}, nil
}
