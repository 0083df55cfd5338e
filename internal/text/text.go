// Package text holds the paragraph-level plumbing shared by extraction,
// chunking, and indexing: whitespace normalization, paragraph splitting,
// duplicate removal, and size-bounded chunk packing.
package text

import (
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

var (
	spaceRegex     = regexp.MustCompile(`\s+`)
	blankLineRegex = regexp.MustCompile(`\n{2,}`)
)

// NormalizeWhitespace collapses all whitespace runs to single spaces and trims.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(spaceRegex.ReplaceAllString(s, " "))
}

// SplitParagraphs splits text on blank-line boundaries into normalized,
// non-empty paragraphs.
func SplitParagraphs(s string) []string {
	parts := blankLineRegex.Split(s, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if n := NormalizeWhitespace(p); n != "" {
			paragraphs = append(paragraphs, n)
		}
	}
	return paragraphs
}

// Dedup removes duplicate paragraphs, keyed by a fast hash of the
// lowercase content. The first occurrence keeps its position.
func Dedup(paragraphs []string) []string {
	seen := make(map[uint64]struct{}, len(paragraphs))
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		key := xxhash.Sum64String(strings.ToLower(p))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// PackChunks packs an ordered paragraph list into chunks bounded by
// targetSize characters. A paragraph is appended to the running chunk
// unless the combined length would meet or exceed the target and the
// running chunk is non-empty; then the running chunk is flushed and the
// paragraph starts a new one. Joining the chunks with "\n\n" reconstructs
// the paragraph sequence exactly.
func PackChunks(paragraphs []string, targetSize int) []string {
	var chunks []string
	var current string

	for _, p := range paragraphs {
		candidate := p
		if current != "" {
			candidate = current + "\n\n" + p
		}
		if len(candidate) >= targetSize && current != "" {
			chunks = append(chunks, current)
			current = p
		} else {
			current = candidate
		}
	}

	if current != "" {
		chunks = append(chunks, current)
	}

	return chunks
}
