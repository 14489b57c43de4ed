package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/core/ports/driven"
)

// Ensure SourceStore implements the interface.
var _ driven.SourceStore = (*SourceStore)(nil)

// SourceStore is an in-memory implementation of driven.SourceStore.
type SourceStore struct {
	mu      sync.RWMutex
	sources map[string]domain.Source
}

// NewSourceStore creates a new in-memory source store.
func NewSourceStore() *SourceStore {
	return &SourceStore{
		sources: make(map[string]domain.Source),
	}
}

// Save stores or updates a source. Like the SQLite store, ingestion
// outcome columns of an existing row are preserved.
func (s *SourceStore) Save(_ context.Context, source domain.Source) error {
	if source.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sources[source.ID]; ok {
		source.LastIngestedAt = existing.LastIngestedAt
		source.LastIngestionStatus = existing.LastIngestionStatus
		source.LastErrorMessage = existing.LastErrorMessage
		source.DocCount = existing.DocCount
		source.CreatedAt = existing.CreatedAt
	} else if source.CreatedAt.IsZero() {
		source.CreatedAt = time.Now().UTC()
	}
	source.UpdatedAt = time.Now().UTC()
	s.sources[source.ID] = source
	return nil
}

// Get retrieves a source by ID.
func (s *SourceStore) Get(_ context.Context, id string) (*domain.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	source, ok := s.sources[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &source, nil
}

// Delete removes a source.
func (s *SourceStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.sources, id)
	return nil
}

// List returns all sources ordered by name.
func (s *SourceStore) List(_ context.Context) ([]domain.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Source, 0, len(s.sources))
	for _, source := range s.sources {
		result = append(result, source)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// FindByURL returns sources whose canonical URL matches exactly.
func (s *SourceStore) FindByURL(_ context.Context, url string) ([]domain.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Source
	for _, source := range s.sources {
		if source.CanonicalURL == url {
			result = append(result, source)
		}
	}
	return result, nil
}

// RecordIngestionStatus updates the run outcome columns for a source.
func (s *SourceStore) RecordIngestionStatus(_ context.Context, sourceID, status, errorMessage string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	source, ok := s.sources[sourceID]
	if !ok {
		return domain.ErrNotFound
	}
	source.LastIngestedAt = at
	source.LastIngestionStatus = status
	source.LastErrorMessage = errorMessage
	source.UpdatedAt = time.Now().UTC()
	s.sources[sourceID] = source
	return nil
}
