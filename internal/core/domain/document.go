package domain

import "time"

// Document is the canonical representation of an ingested document or post
// after text cleaning. Documents belong to exactly one source and are
// versioned by content checksum.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// ExternalID is the item identifier within the origin system
	// (arXiv id, post slug, file name). Empty for one-off captures.
	ExternalID string

	// Source is the ingestion source name that produced the document.
	Source string

	// SourceID links to the registry Source row.
	SourceID string

	// Title is the human-readable title.
	Title string

	// URL is the public location of the document, if any.
	URL string

	// Authors lists the document authors.
	Authors []string

	// PublishedAt is the original publication time, if known.
	PublishedAt time.Time

	// AddedAt is when the document was first ingested.
	AddedAt time.Time

	// Abstract is a short summary, typically the leading text.
	Abstract string

	// Text is the full cleaned text content before chunking.
	Text string

	// RawURI is the location the raw bytes were fetched from.
	RawURI string

	// Checksum is the SHA-256 hex digest of the cleaned text.
	// Version bumps are gated on checksum changes.
	Checksum string

	// Topics, RiskAreas and Tags classify the document for filtering.
	Topics    []string
	RiskAreas []string
	Tags      []string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// Version starts at 1 and increments whenever the stored checksum
	// differs from an incoming upsert.
	Version int
}

// Chunk is the minimal retrieval unit: a segment of a document's text
// with an optional embedding vector. Chunks are ordered within a
// document by Index and fully replaced whenever the text changes.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocID links to the parent Document.
	DocID string

	// Index is the ordinal position within the document.
	Index int

	// Text is the chunk content.
	Text string

	// Embedding is the vector representation for similarity search.
	// Nil when no embedding service was configured at ingestion time.
	Embedding []float32

	// Topics and RiskAreas are copied from the parent document so the
	// store can filter candidates without a join on JSON columns.
	Topics    []string
	RiskAreas []string

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the chunk was stored.
	CreatedAt time.Time
}
