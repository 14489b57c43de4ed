package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/core/ports/driven"
	"github.com/meridian-labs/safekb-cli/internal/core/ports/driving"
	"github.com/meridian-labs/safekb-cli/internal/logger"
	"github.com/meridian-labs/safekb-cli/internal/textutil"
)

const (
	// DefaultTopK is the result count when the caller does not set one.
	DefaultTopK = 8

	// DefaultMaxCandidates caps how many stored chunks are scored per
	// query.
	DefaultMaxCandidates = 400
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// RetrievalService answers queries by scoring candidate chunks against
// the query embedding.
type RetrievalService struct {
	docStore      driven.DocumentStore
	embedder      driven.EmbeddingService
	maxCandidates int
}

// RetrievalOption configures a RetrievalService.
type RetrievalOption func(*RetrievalService)

// WithMaxCandidates overrides the candidate cap.
func WithMaxCandidates(limit int) RetrievalOption {
	return func(s *RetrievalService) {
		if limit > 0 {
			s.maxCandidates = limit
		}
	}
}

// NewRetrievalService creates a retrieval service.
func NewRetrievalService(docStore driven.DocumentStore, embedder driven.EmbeddingService, opts ...RetrievalOption) *RetrievalService {
	s := &RetrievalService{
		docStore:      docStore,
		embedder:      embedder,
		maxCandidates: DefaultMaxCandidates,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search ranks chunks against the query embedding and returns the
// top-k chunk hits. A document with several strong chunks can appear
// more than once.
func (s *RetrievalService) Search(ctx context.Context, query string, k int, filters domain.SearchFilters) ([]domain.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if k <= 0 {
		k = DefaultTopK
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	candidates, err := s.docStore.CandidateChunks(ctx, filters, s.maxCandidates)
	if err != nil {
		return nil, fmt.Errorf("loading candidate chunks: %w", err)
	}
	logger.Debug("scoring %d candidate chunk(s)", len(candidates))

	results := make([]domain.SearchResult, 0, len(candidates))
	for _, pair := range candidates {
		if len(pair.Chunk.Embedding) == 0 {
			continue
		}
		score := cosineSimilarity(queryVec, pair.Chunk.Embedding)
		if score <= 0 {
			continue
		}
		results = append(results, domain.SearchResult{
			DocID:     pair.Document.ID,
			Title:     pair.Document.Title,
			URL:       pair.Document.URL,
			Snippet:   textutil.Truncate(pair.Chunk.Text, domain.SnippetLength),
			Score:     score,
			Source:    pair.Document.Source,
			Topics:    pair.Document.Topics,
			RiskAreas: pair.Document.RiskAreas,
			Metadata:  pair.Document.Metadata,
		})
	}

	// Stable sort keeps the stores' newest-first candidate order for
	// equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// SearchByTopic searches constrained to a single topic. An empty query
// is seeded from the topic itself.
func (s *RetrievalService) SearchByTopic(ctx context.Context, topic, query string, k int) ([]domain.SearchResult, error) {
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", domain.ErrInvalidInput)
	}
	if query == "" {
		query = "Authoritative documents about " + topic
	}
	return s.Search(ctx, query, k, domain.SearchFilters{Topics: []string{topic}})
}

// GetDocument returns a single document by identifier.
func (s *RetrievalService) GetDocument(ctx context.Context, docID string) (*domain.Document, error) {
	return s.docStore.GetDocument(ctx, docID)
}

// GetChunks returns all chunks for a document ordered by index.
func (s *RetrievalService) GetChunks(ctx context.Context, docID string) ([]domain.Chunk, error) {
	return s.docStore.GetChunks(ctx, docID)
}

// ListTopics returns all distinct topics across stored documents.
func (s *RetrievalService) ListTopics(ctx context.Context) ([]string, error) {
	return s.docStore.ListTopics(ctx)
}

// cosineSimilarity returns the cosine of the angle between two vectors,
// or 0 when dimensions differ or either vector is zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
