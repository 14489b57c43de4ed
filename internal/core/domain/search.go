package domain

// SnippetLength is the maximum number of bytes of chunk text included
// in a search result snippet.
const SnippetLength = 400

// SearchFilters narrows retrieval to a structured subset of the corpus.
// All filters are conjunctive; zero values mean "no constraint".
type SearchFilters struct {
	// Topics requires a chunk to carry at least one of the given topics.
	Topics []string

	// Sources restricts results to documents from the named sources.
	Sources []string

	// RiskAreas requires a chunk to carry at least one of the given risk areas.
	RiskAreas []string

	// YearMin and YearMax bound the document publication year, inclusive.
	YearMin int
	YearMax int

	// Metadata requires exact equality on document metadata values.
	Metadata map[string]any
}

// Empty reports whether no filter is set.
func (f SearchFilters) Empty() bool {
	return len(f.Topics) == 0 && len(f.Sources) == 0 && len(f.RiskAreas) == 0 &&
		f.YearMin == 0 && f.YearMax == 0 && len(f.Metadata) == 0
}

// SearchResult is a chunk-level hit aggregated to document context.
type SearchResult struct {
	// DocID identifies the matched document.
	DocID string

	// Title is the document title.
	Title string

	// URL is the document's public location, if any.
	URL string

	// Snippet is the leading text of the matched chunk.
	Snippet string

	// Score is the cosine similarity of the chunk to the query.
	Score float64

	// Source is the ingestion source name.
	Source string

	// Topics and RiskAreas are the document classifications.
	Topics    []string
	RiskAreas []string

	// Metadata is the document metadata.
	Metadata map[string]any
}
