package driven

import (
	"context"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
)

// UpsertOutcome describes what an upsert did to the stored document.
type UpsertOutcome int

const (
	// UpsertCreated means the document did not exist before.
	UpsertCreated UpsertOutcome = iota

	// UpsertUpdated means an existing document's checksum changed;
	// its version was bumped and its chunks replaced.
	UpsertUpdated

	// UpsertUnchanged means the checksum matched the stored document;
	// text and chunks were left untouched.
	UpsertUnchanged
)

// DocumentStore persists documents and chunks.
// Backed by SQLite for metadata storage.
type DocumentStore interface {
	// UpsertDocument inserts or updates a document and replaces its
	// chunks atomically. The stored version is bumped when the incoming
	// checksum differs from the stored one; when the checksums match the
	// text and chunks are left as they are and UpsertUnchanged is
	// returned. The source's denormalised doc_count is refreshed in the
	// same transaction.
	UpsertDocument(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) (UpsertOutcome, error)

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetChunks retrieves all chunks for a document ordered by index.
	GetChunks(ctx context.Context, docID string) ([]domain.Chunk, error)

	// DeleteDocument removes a document and its chunks, nulls ledger
	// references and refreshes the source doc_count.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns documents for a source.
	ListDocuments(ctx context.Context, sourceID string) ([]domain.Document, error)

	// ListTopics returns the distinct topics across all documents, sorted.
	ListTopics(ctx context.Context) ([]string, error)

	// CandidateChunks returns up to limit newest chunks matching the
	// filters, paired with their parent documents, for in-process
	// similarity scoring.
	CandidateChunks(ctx context.Context, filters domain.SearchFilters, limit int) ([]CandidatePair, error)
}

// CandidatePair is a chunk joined with its parent document.
type CandidatePair struct {
	Chunk    domain.Chunk
	Document domain.Document
}
