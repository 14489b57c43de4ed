package cli

import (
	"context"
	"errors"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/core/ports/driving"
)

// mockSourceService implements driving.SourceService for testing.
type mockSourceService struct {
	added   []domain.Source
	removed []string
	active  map[string]bool
	sources []domain.Source
}

func (m *mockSourceService) Add(_ context.Context, source domain.Source) error {
	m.added = append(m.added, source)
	return nil
}

func (m *mockSourceService) Get(_ context.Context, id string) (*domain.Source, error) {
	for i := range m.sources {
		if m.sources[i].ID == id {
			return &m.sources[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockSourceService) List(_ context.Context) ([]domain.Source, error) {
	return m.sources, nil
}

func (m *mockSourceService) Update(_ context.Context, _ domain.Source) error {
	return nil
}

func (m *mockSourceService) Remove(_ context.Context, id string) error {
	m.removed = append(m.removed, id)
	return nil
}

func (m *mockSourceService) SetActive(_ context.Context, id string, active bool) error {
	if m.active == nil {
		m.active = make(map[string]bool)
	}
	m.active[id] = active
	return nil
}

// mockIngestOrchestrator implements driving.IngestOrchestrator for testing.
type mockIngestOrchestrator struct {
	watched string
}

func (m *mockIngestOrchestrator) Ingest(_ context.Context, _ string) error {
	return nil
}

func (m *mockIngestOrchestrator) IngestAll(_ context.Context) error {
	return nil
}

func (m *mockIngestOrchestrator) Status(_ context.Context, _ string) (*driving.IngestStatus, error) {
	return nil, nil
}

func (m *mockIngestOrchestrator) Watch(_ context.Context, sourceID string) error {
	m.watched = sourceID
	return nil
}

// mockIngestOrchestratorError fails every operation.
type mockIngestOrchestratorError struct{}

func (m *mockIngestOrchestratorError) Ingest(_ context.Context, _ string) error {
	return errors.New("boom")
}

func (m *mockIngestOrchestratorError) IngestAll(_ context.Context) error {
	return errors.New("boom")
}

func (m *mockIngestOrchestratorError) Status(_ context.Context, _ string) (*driving.IngestStatus, error) {
	return nil, errors.New("boom")
}

func (m *mockIngestOrchestratorError) Watch(_ context.Context, _ string) error {
	return errors.New("boom")
}

// mockRetrievalService implements driving.RetrievalService for testing.
type mockRetrievalService struct {
	lastQuery   string
	lastK       int
	lastFilters domain.SearchFilters
	lastTopic   string
	results     []domain.SearchResult
	document    *domain.Document
	chunks      []domain.Chunk
	topics      []string
}

func (m *mockRetrievalService) Search(_ context.Context, query string, k int, filters domain.SearchFilters) ([]domain.SearchResult, error) {
	m.lastQuery = query
	m.lastK = k
	m.lastFilters = filters
	return m.results, nil
}

func (m *mockRetrievalService) SearchByTopic(_ context.Context, topic, query string, k int) ([]domain.SearchResult, error) {
	m.lastTopic = topic
	m.lastQuery = query
	m.lastK = k
	return m.results, nil
}

func (m *mockRetrievalService) GetDocument(_ context.Context, docID string) (*domain.Document, error) {
	if m.document == nil || m.document.ID != docID {
		return nil, domain.ErrNotFound
	}
	return m.document, nil
}

func (m *mockRetrievalService) GetChunks(_ context.Context, _ string) ([]domain.Chunk, error) {
	return m.chunks, nil
}

func (m *mockRetrievalService) ListTopics(_ context.Context) ([]string, error) {
	return m.topics, nil
}

// mockRetrievalServiceError fails every operation.
type mockRetrievalServiceError struct{}

func (m *mockRetrievalServiceError) Search(_ context.Context, _ string, _ int, _ domain.SearchFilters) ([]domain.SearchResult, error) {
	return nil, errors.New("boom")
}

func (m *mockRetrievalServiceError) SearchByTopic(_ context.Context, _, _ string, _ int) ([]domain.SearchResult, error) {
	return nil, errors.New("boom")
}

func (m *mockRetrievalServiceError) GetDocument(_ context.Context, _ string) (*domain.Document, error) {
	return nil, errors.New("boom")
}

func (m *mockRetrievalServiceError) GetChunks(_ context.Context, _ string) ([]domain.Chunk, error) {
	return nil, errors.New("boom")
}

func (m *mockRetrievalServiceError) ListTopics(_ context.Context) ([]string, error) {
	return nil, errors.New("boom")
}

// mockCatalogService implements driving.CatalogService for testing.
type mockCatalogService struct {
	markdown string
	report   *domain.CatalogSyncReport
	synced   []string
}

func (m *mockCatalogService) Render(_ context.Context) (string, error) {
	return m.markdown, nil
}

func (m *mockCatalogService) Parse(_ context.Context, _ string) ([]domain.CatalogEntry, error) {
	return nil, nil
}

func (m *mockCatalogService) Sync(_ context.Context, markdown string) (*domain.CatalogSyncReport, error) {
	m.synced = append(m.synced, markdown)
	if m.report != nil {
		return m.report, nil
	}
	return &domain.CatalogSyncReport{}, nil
}

// setupTestServices swaps every service for a default mock and returns
// a cleanup function restoring the previous values.
func setupTestServices() func() {
	oldSource := sourceService
	oldIngest := ingestOrchestrator
	oldRetrieval := retrievalService
	oldCatalog := catalogService

	sourceService = &mockSourceService{}
	ingestOrchestrator = &mockIngestOrchestrator{}
	retrievalService = &mockRetrievalService{
		results: []domain.SearchResult{
			{
				DocID:   "doc-1",
				Title:   "Concrete Problems in AI Safety",
				Source:  "arxiv",
				Snippet: "We present a list of open problems",
				Score:   0.92,
			},
		},
	}
	catalogService = &mockCatalogService{}

	return func() {
		sourceService = oldSource
		ingestOrchestrator = oldIngest
		retrievalService = oldRetrieval
		catalogService = oldCatalog
	}
}
