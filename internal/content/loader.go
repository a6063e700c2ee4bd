// Package content reads markdown content files with YAML frontmatter.
// Frontmatter is validated against the typed meta schemas in domain;
// the markdown body is returned untouched.
package content

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/reveriehq/reverie/internal/core/domain"
)

var frontmatterPattern = regexp.MustCompile(`(?s)^---\s*\n(.*?)\n---\s*\n(.*)$`)

// ParseFrontmatter splits raw file content into a YAML frontmatter
// block and the markdown body. Content without a frontmatter block, or
// with YAML that does not parse to a mapping, yields nil frontmatter
// and the full content as body.
func ParseFrontmatter(raw []byte) ([]byte, string) {
	m := frontmatterPattern.FindSubmatch(raw)
	if m == nil {
		return nil, string(raw)
	}

	var probe map[string]any
	if err := yaml.Unmarshal(m[1], &probe); err != nil || probe == nil {
		return nil, string(raw)
	}

	return m[1], string(m[2])
}

// ReadThought reads and validates a thought entry.
func ReadThought(path string) (domain.ThoughtMeta, string, error) {
	var meta domain.ThoughtMeta
	body, err := readInto(path, &meta)
	if err != nil {
		return domain.ThoughtMeta{}, "", err
	}
	if err := meta.Validate(); err != nil {
		return domain.ThoughtMeta{}, "", fmt.Errorf("%s: %w", path, err)
	}
	return meta, body, nil
}

// ReadDream reads and validates a dream entry.
func ReadDream(path string) (domain.DreamMeta, string, error) {
	var meta domain.DreamMeta
	body, err := readInto(path, &meta)
	if err != nil {
		return domain.DreamMeta{}, "", err
	}
	if err := meta.Validate(); err != nil {
		return domain.DreamMeta{}, "", fmt.Errorf("%s: %w", path, err)
	}
	return meta, body, nil
}

// readInto reads a file, splits its frontmatter and unmarshals it into
// the given meta struct.
func readInto(path string, meta any) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading content file: %w", err)
	}

	fm, body := ParseFrontmatter(raw)
	if fm == nil {
		return "", fmt.Errorf("%s: %w: no frontmatter block", path, domain.ErrInvalidFrontmatter)
	}
	if err := yaml.Unmarshal(fm, meta); err != nil {
		return "", fmt.Errorf("%s: %w: %v", path, domain.ErrInvalidFrontmatter, err)
	}

	return body, nil
}
