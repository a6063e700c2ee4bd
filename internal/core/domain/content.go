package domain

import "fmt"

// ContentType discriminates indexed content.
type ContentType string

const (
	// ContentThought tags thought entries.
	ContentThought ContentType = "thought"

	// ContentDream tags dream entries.
	ContentDream ContentType = "dream"
)

// DreamType enumerates the recognised dream content forms.
type DreamType string

const (
	DreamPoetry DreamType = "poetry"
	DreamASCII  DreamType = "ascii"
	DreamProse  DreamType = "prose"
	DreamMixed  DreamType = "mixed"
)

// Valid reports whether the dream type is one of the recognised forms.
func (d DreamType) Valid() bool {
	switch d {
	case DreamPoetry, DreamASCII, DreamProse, DreamMixed:
		return true
	}
	return false
}

// ThoughtMeta is the frontmatter schema for thought entries.
type ThoughtMeta struct {
	// Date is an ISO 8601 date (YYYY-MM-DD).
	Date string `yaml:"date"`

	// Title is the entry title.
	Title string `yaml:"title"`

	// Mood is an optional mood tag.
	Mood string `yaml:"mood"`
}

// Validate checks required frontmatter fields.
func (m ThoughtMeta) Validate() error {
	if m.Date == "" {
		return fmt.Errorf("%w: missing date", ErrInvalidFrontmatter)
	}
	if m.Title == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidFrontmatter)
	}
	return nil
}

// DreamMeta is the frontmatter schema for dream entries.
type DreamMeta struct {
	// Date is an ISO 8601 date (YYYY-MM-DD).
	Date string `yaml:"date"`

	// Title is the entry title.
	Title string `yaml:"title"`

	// Type is the dream content form.
	Type DreamType `yaml:"type"`

	// Immersive marks entries rendered full-screen.
	Immersive bool `yaml:"immersive"`
}

// Validate checks required frontmatter fields.
func (m DreamMeta) Validate() error {
	if m.Date == "" {
		return fmt.Errorf("%w: missing date", ErrInvalidFrontmatter)
	}
	if m.Title == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidFrontmatter)
	}
	if !m.Type.Valid() {
		return fmt.Errorf("%w: unknown dream type %q", ErrInvalidFrontmatter, m.Type)
	}
	return nil
}
