package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu     sync.RWMutex
	docs   map[string]domain.Document
	chunks map[string][]domain.Chunk
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:   make(map[string]domain.Document),
		chunks: make(map[string][]domain.Chunk),
	}
}

// UpsertDocument inserts or updates a document with checksum-gated
// versioning and replaces its chunks.
func (s *DocumentStore) UpsertDocument(_ context.Context, doc *domain.Document, chunks []domain.Chunk) (driven.UpsertOutcome, error) {
	if doc == nil || doc.ID == "" {
		return driven.UpsertUnchanged, domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := driven.UpsertCreated
	stored, exists := s.docs[doc.ID]
	if exists {
		if stored.Checksum == doc.Checksum {
			return driven.UpsertUnchanged, nil
		}
		outcome = driven.UpsertUpdated
		doc.Version = stored.Version + 1
		doc.AddedAt = stored.AddedAt
	} else {
		doc.Version = 1
	}

	now := time.Now().UTC()
	stamped := make([]domain.Chunk, len(chunks))
	copy(stamped, chunks)
	for i := range stamped {
		if stamped[i].CreatedAt.IsZero() {
			stamped[i].CreatedAt = now
		}
	}

	s.docs[doc.ID] = *doc
	s.chunks[doc.ID] = stamped
	return outcome, nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return &doc, nil
}

// GetChunks retrieves all chunks for a document ordered by index.
func (s *DocumentStore) GetChunks(_ context.Context, docID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := make([]domain.Chunk, len(s.chunks[docID]))
	copy(chunks, s.chunks[docID])
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	delete(s.docs, id)
	delete(s.chunks, id)
	return nil
}

// ListDocuments returns documents for a source.
func (s *DocumentStore) ListDocuments(_ context.Context, sourceID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Document
	for _, doc := range s.docs {
		if doc.SourceID == sourceID {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ListTopics returns the distinct topics across all documents, sorted.
func (s *DocumentStore) ListTopics(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for _, doc := range s.docs {
		for _, topic := range doc.Topics {
			seen[topic] = true
		}
	}
	topics := make([]string, 0, len(seen))
	for topic := range seen {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics, nil
}

// CandidateChunks returns up to limit newest chunks matching the
// filters, paired with their parent documents.
func (s *DocumentStore) CandidateChunks(_ context.Context, filters domain.SearchFilters, limit int) ([]driven.CandidatePair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pairs []driven.CandidatePair
	for docID, chunks := range s.chunks {
		doc, ok := s.docs[docID]
		if !ok || !matchesFilters(doc, filters) {
			continue
		}
		for _, chunk := range chunks {
			if !overlaps(chunk.Topics, filters.Topics) || !overlaps(chunk.RiskAreas, filters.RiskAreas) {
				continue
			}
			pairs = append(pairs, driven.CandidatePair{Chunk: chunk, Document: doc})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Chunk.CreatedAt.After(pairs[j].Chunk.CreatedAt)
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs, nil
}

func matchesFilters(doc domain.Document, filters domain.SearchFilters) bool {
	if len(filters.Sources) > 0 {
		found := false
		for _, source := range filters.Sources {
			if doc.Source == source {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filters.YearMin > 0 && (doc.PublishedAt.IsZero() || doc.PublishedAt.Year() < filters.YearMin) {
		return false
	}
	if filters.YearMax > 0 && (doc.PublishedAt.IsZero() || doc.PublishedAt.Year() > filters.YearMax) {
		return false
	}
	for key, want := range filters.Metadata {
		got, ok := doc.Metadata[key]
		if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

// overlaps reports whether values shares an element with wanted.
// An empty wanted set matches everything.
func overlaps(values, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		for _, v := range values {
			if v == w {
				return true
			}
		}
	}
	return false
}
