package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/core/ports/driven"
)

// Ensure RecordStore implements the interface.
var _ driven.RecordStore = (*RecordStore)(nil)

// RecordStore is an in-memory implementation of driven.RecordStore.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]domain.SourceRecord
}

// NewRecordStore creates a new in-memory ledger store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]domain.SourceRecord),
	}
}

func recordKey(source, externalID string) string {
	return source + "\x00" + externalID
}

// Upsert stores or updates a ledger entry keyed by
// (source, external ID), keeping the record ID stable.
func (s *RecordStore) Upsert(_ context.Context, record domain.SourceRecord) error {
	if record.Source == "" || record.ExternalID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(record.Source, record.ExternalID)
	if existing, ok := s.records[key]; ok {
		record.ID = existing.ID
	} else if record.ID == "" {
		record.ID = uuid.New().String()
	}
	s.records[key] = record
	return nil
}

// Get retrieves a ledger entry by (source, external ID).
func (s *RecordStore) Get(_ context.Context, source, externalID string) (*domain.SourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[recordKey(source, externalID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &record, nil
}

// ListBySource returns all ledger entries for a source.
func (s *RecordStore) ListBySource(_ context.Context, source string) ([]domain.SourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.SourceRecord
	for _, record := range s.records {
		if record.Source == source {
			result = append(result, record)
		}
	}
	return result, nil
}

// ListByStatus returns ledger entries with the given status.
func (s *RecordStore) ListByStatus(_ context.Context, status string) ([]domain.SourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.SourceRecord
	for _, record := range s.records {
		if record.Status == status {
			result = append(result, record)
		}
	}
	return result, nil
}
