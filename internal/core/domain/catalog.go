package domain

import (
	"regexp"
	"strings"
)

// CatalogEntry is one row of the markdown source catalog.
type CatalogEntry struct {
	// Name is the human-readable source name.
	Name string

	// Kind is the source kind (e.g. "website", "arxiv", "file").
	Kind string

	// IngestionMode is the ingestion mode column value.
	IngestionMode string

	// URL is the link extracted from the catalog row.
	URL string
}

// Slug returns a filesystem and ID safe identifier derived from the
// entry name.
func (e CatalogEntry) Slug() string {
	return Slugify(e.Name)
}

// CatalogSyncReport summarises a catalog sync run.
type CatalogSyncReport struct {
	// EntriesParsed is the number of rows parsed from the catalog.
	EntriesParsed int

	// SourcesCreated is the number of new sources registered.
	SourcesCreated int

	// SourcesUpdated is the number of existing sources refreshed.
	SourcesUpdated int

	// DocumentsIngested is the number of documents stored during sync.
	DocumentsIngested int

	// Errors lists per-entry failures encountered during sync.
	Errors []string
}

var nonAlphanumericRe = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Slugify converts a name to a lowercase hyphenated identifier.
// Returns "source" when the name contains no usable characters.
func Slugify(name string) string {
	slug := nonAlphanumericRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "source"
	}
	return slug
}
