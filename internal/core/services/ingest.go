package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/core/ports/driven"
	"github.com/meridian-labs/safekb-cli/internal/core/ports/driving"
	"github.com/meridian-labs/safekb-cli/internal/logger"
	"github.com/meridian-labs/safekb-cli/internal/postprocessors/chunker"
	"github.com/meridian-labs/safekb-cli/internal/textutil"
)

// DefaultFetchLimit caps how many items a single ingestion run
// discovers per source.
const DefaultFetchLimit = 50

// Ensure IngestService implements the interface.
var _ driving.IngestOrchestrator = (*IngestService)(nil)

// IngestService runs the discover-fetch-chunk-embed-store pipeline.
type IngestService struct {
	sourceStore driven.SourceStore
	docStore    driven.DocumentStore
	recordStore driven.RecordStore
	factory     driven.SourceFactory
	embedder    driven.EmbeddingService
	chunker     *chunker.Processor
	fetchLimit  int

	mu     sync.Mutex
	status map[string]*driving.IngestStatus
}

// IngestOption configures an IngestService.
type IngestOption func(*IngestService)

// WithFetchLimit overrides the per-run discovery cap.
func WithFetchLimit(limit int) IngestOption {
	return func(s *IngestService) {
		if limit > 0 {
			s.fetchLimit = limit
		}
	}
}

// WithChunker overrides the chunking processor.
func WithChunker(proc *chunker.Processor) IngestOption {
	return func(s *IngestService) {
		s.chunker = proc
	}
}

// NewIngestService creates the ingestion orchestrator. The embedder may
// be nil; documents are then stored without chunk embeddings and
// similarity search stays unavailable until re-ingestion.
func NewIngestService(
	sourceStore driven.SourceStore,
	docStore driven.DocumentStore,
	recordStore driven.RecordStore,
	factory driven.SourceFactory,
	embedder driven.EmbeddingService,
	opts ...IngestOption,
) *IngestService {
	s := &IngestService{
		sourceStore: sourceStore,
		docStore:    docStore,
		recordStore: recordStore,
		factory:     factory,
		embedder:    embedder,
		chunker:     chunker.New(),
		fetchLimit:  DefaultFetchLimit,
		status:      make(map[string]*driving.IngestStatus),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest runs a full ingestion pass for one source.
func (s *IngestService) Ingest(ctx context.Context, sourceID string) error {
	source, err := s.sourceStore.Get(ctx, sourceID)
	if err != nil {
		return err
	}
	if !source.IsActive {
		return fmt.Errorf("source %s: %w", sourceID, domain.ErrSourceInactive)
	}

	status, err := s.begin(sourceID)
	if err != nil {
		return err
	}
	defer s.finish(sourceID)

	runErr := s.run(ctx, *source, status)

	outcome := domain.IngestionStatusSuccess
	message := ""
	if runErr != nil {
		outcome = domain.IngestionStatusFailed
		message = runErr.Error()
	} else if status.ErrorCount > 0 {
		outcome = domain.IngestionStatusFailed
		message = fmt.Sprintf("%d item(s) failed", status.ErrorCount)
	}
	if err := s.sourceStore.RecordIngestionStatus(ctx, sourceID, outcome, message, time.Now().UTC()); err != nil {
		logger.Debug("recording ingestion status for %s: %v", sourceID, err)
	}

	return runErr
}

// IngestAll runs ingestion for every active source. Inactive sources
// are skipped; per-source failures do not stop the pass.
func (s *IngestService) IngestAll(ctx context.Context) error {
	sourceList, err := s.sourceStore.List(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, source := range sourceList {
		if !source.IsActive {
			continue
		}
		if err := s.Ingest(ctx, source.ID); err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", source.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Watch runs an initial ingestion pass for the source, then blocks
// re-ingesting it whenever its backing content changes. Change events
// arriving while a run is still in flight are dropped; the files they
// announce are picked up by the next run.
func (s *IngestService) Watch(ctx context.Context, sourceID string) error {
	source, err := s.sourceStore.Get(ctx, sourceID)
	if err != nil {
		return err
	}
	if !source.IsActive {
		return fmt.Errorf("source %s: %w", sourceID, domain.ErrSourceInactive)
	}

	src, err := s.factory.Create(ctx, *source)
	if err != nil {
		return err
	}
	defer src.Close()

	watchable, ok := src.(driven.WatchableSource)
	if !ok {
		return fmt.Errorf("source %s (kind %s): %w", sourceID, source.Kind, domain.ErrWatchUnsupported)
	}

	if err := s.Ingest(ctx, sourceID); err != nil {
		return err
	}

	return watchable.Watch(ctx, func(path string) {
		logger.Debug("change detected: %s", path)
		err := s.Ingest(ctx, sourceID)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrIngestInProgress):
			logger.Debug("skipping re-ingest of %s, run already in flight", sourceID)
		default:
			logger.Warn("re-ingesting %s: %v", sourceID, err)
		}
	})
}

// Status returns the latest ingestion status for a source.
func (s *IngestService) Status(_ context.Context, sourceID string) (*driving.IngestStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.status[sourceID]; ok {
		copied := *status
		return &copied, nil
	}
	return &driving.IngestStatus{SourceID: sourceID}, nil
}

func (s *IngestService) begin(sourceID string) (*driving.IngestStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.status[sourceID]; ok && existing.Running {
		return nil, fmt.Errorf("source %s: %w", sourceID, domain.ErrIngestInProgress)
	}
	status := &driving.IngestStatus{SourceID: sourceID, Running: true}
	s.status[sourceID] = status
	return status, nil
}

func (s *IngestService) finish(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.status[sourceID]; ok {
		status.Running = false
	}
}

func (s *IngestService) run(ctx context.Context, source domain.Source, status *driving.IngestStatus) error {
	src, err := s.factory.Create(ctx, source)
	if err != nil {
		return err
	}
	defer src.Close()

	logger.Section("ingest " + source.ID)

	records, err := src.Discover(ctx, s.fetchLimit)
	if err != nil {
		return fmt.Errorf("discovering items: %w", err)
	}
	logger.Debug("discovered %d candidate(s) for %s", len(records), source.ID)

	for _, record := range records {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.shouldSkip(ctx, source, record) {
			status.DocumentsSkipped++
			continue
		}
		s.ingestItem(ctx, source, src, record, status)
	}

	return nil
}

// shouldSkip reports whether a discovered item was already fetched and
// the source's mode does not re-check existing items.
func (s *IngestService) shouldSkip(ctx context.Context, source domain.Source, record domain.SourceRecord) bool {
	if source.IngestionMode == domain.ModePoll {
		return false
	}
	existing, err := s.recordStore.Get(ctx, record.Source, record.ExternalID)
	if err != nil || existing == nil {
		return false
	}
	return existing.Status == domain.RecordStatusFetched
}

func (s *IngestService) ingestItem(
	ctx context.Context,
	source domain.Source,
	src driven.IngestionSource,
	record domain.SourceRecord,
	status *driving.IngestStatus,
) {
	record.LastFetchedAt = time.Now().UTC()

	// A previously ingested item keeps its document link even when this
	// run fails before producing a new document.
	if existing, err := s.recordStore.Get(ctx, record.Source, record.ExternalID); err == nil && existing != nil {
		record.DocID = existing.DocID
	}

	doc, err := src.Fetch(ctx, record)
	if err != nil {
		logger.Debug("fetching %s/%s: %v", record.Source, record.ExternalID, err)
		status.ErrorCount++
		record.Status = domain.RecordStatusError
		record.ErrorMessage = err.Error()
		s.upsertRecord(ctx, record)
		return
	}

	doc.ID = DocumentID(source.ID, doc.ExternalID)
	doc.AddedAt = record.LastFetchedAt

	chunks := s.chunker.BuildChunks(doc)
	if err := s.embedChunks(ctx, chunks); err != nil {
		logger.Debug("embedding %s: %v", doc.ID, err)
		status.ErrorCount++
		record.Status = domain.RecordStatusError
		record.ErrorMessage = err.Error()
		s.upsertRecord(ctx, record)
		return
	}

	outcome, err := s.docStore.UpsertDocument(ctx, doc, chunks)
	if err != nil {
		status.ErrorCount++
		record.Status = domain.RecordStatusError
		record.ErrorMessage = err.Error()
		s.upsertRecord(ctx, record)
		return
	}

	if outcome == driven.UpsertUnchanged {
		status.DocumentsSkipped++
	} else {
		status.DocumentsProcessed++
	}

	record.Status = domain.RecordStatusFetched
	record.ErrorMessage = ""
	record.DocID = doc.ID
	s.upsertRecord(ctx, record)
}

func (s *IngestService) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	if s.embedder == nil || len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	return nil
}

func (s *IngestService) upsertRecord(ctx context.Context, record domain.SourceRecord) {
	if err := s.recordStore.Upsert(ctx, record); err != nil {
		logger.Debug("updating ledger for %s/%s: %v", record.Source, record.ExternalID, err)
	}
}

// DocumentID derives a stable document ID from the source and the
// item's external ID, so re-fetching changed content updates the same
// document instead of creating a sibling.
func DocumentID(sourceID, externalID string) string {
	return sourceID + "_" + textutil.SHA256Text(externalID)[:12]
}
