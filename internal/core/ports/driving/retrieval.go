package driving

import (
	"context"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
)

// RetrievalService answers queries against the knowledge base.
type RetrievalService interface {
	// Search ranks chunks against the query embedding and returns the
	// top-k chunk hits; a document may appear more than once.
	Search(ctx context.Context, query string, k int, filters domain.SearchFilters) ([]domain.SearchResult, error)

	// SearchByTopic searches constrained to a single topic. An empty
	// query is seeded from the topic itself.
	SearchByTopic(ctx context.Context, topic, query string, k int) ([]domain.SearchResult, error)

	// GetDocument returns a single document by identifier.
	GetDocument(ctx context.Context, docID string) (*domain.Document, error)

	// GetChunks returns all chunks for a document ordered by index.
	GetChunks(ctx context.Context, docID string) ([]domain.Chunk, error)

	// ListTopics returns all distinct topics across stored documents.
	ListTopics(ctx context.Context) ([]string, error)
}
