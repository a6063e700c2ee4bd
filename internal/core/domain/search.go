package domain

// SearchResult is a single search hit with highlighted snippets.
type SearchResult struct {
	// Slug is the content identifier.
	Slug string `json:"slug"`

	// Title is the entry title, possibly carrying <mark> highlights.
	Title string `json:"title"`

	// Type is the content type of the hit.
	Type ContentType `json:"type"`

	// Date is the entry's ISO 8601 date.
	Date string `json:"date"`

	// Snippet is a body excerpt with <mark> highlight tags.
	Snippet string `json:"snippet"`

	// Score is the BM25 relevance score. Lower is better.
	Score float64 `json:"score"`

	// Mood is the thought mood tag, if any.
	Mood string `json:"mood,omitempty"`

	// DreamType is the dream content form, if any.
	DreamType string `json:"dream_type,omitempty"`
}

// SearchResponse is the paginated search envelope.
type SearchResponse struct {
	// Query echoes the original query string.
	Query string `json:"query"`

	// Results holds the requested page of hits.
	Results []SearchResult `json:"results"`

	// Total is the number of matching documents before paging.
	Total int `json:"total"`

	// Limit is the page size.
	Limit int `json:"limit"`

	// Offset is the number of hits skipped.
	Offset int `json:"offset"`
}
