// Package textutil provides text cleanup and checksum helpers used by
// the ingestion pipeline.
package textutil

import (
	"html"
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
)

// NormalizeWhitespace collapses runs of whitespace into single spaces
// and trims the result.
func NormalizeWhitespace(value string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(value, " "))
}

// StripHTML removes HTML tags, replacing each with a space so adjacent
// words do not merge.
func StripHTML(value string) string {
	return htmlTagRe.ReplaceAllString(value, " ")
}

// CleanText runs the full cleaning pipeline applied before chunking:
// entity unescaping, tag stripping, whitespace normalisation.
func CleanText(value string) string {
	text := html.UnescapeString(value)
	text = StripHTML(text)
	return NormalizeWhitespace(text)
}

// Truncate shortens value to at most limit runes, cutting at the last
// word boundary and appending an ellipsis when anything was removed.
func Truncate(value string, limit int) string {
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}

	cut := string(runes[:limit])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ") + "..."
}
