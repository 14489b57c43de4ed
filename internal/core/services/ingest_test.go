package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/safekb-cli/internal/adapters/driven/embedding/fake"
	"github.com/meridian-labs/safekb-cli/internal/adapters/driven/storage/memory"
	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/core/ports/driven"
	"github.com/meridian-labs/safekb-cli/internal/textutil"
)

// stubSource is a scripted ingestion source.
type stubSource struct {
	entry    domain.Source
	items    map[string]string // external ID -> text
	fetchErr map[string]error
}

func (s *stubSource) Name() string            { return "stub" }
func (s *stubSource) Registry() domain.Source { return s.entry }
func (s *stubSource) Close() error            { return nil }

func (s *stubSource) Discover(_ context.Context, limit int) ([]domain.SourceRecord, error) {
	var records []domain.SourceRecord
	for _, id := range sortedKeys(s.items) {
		records = append(records, domain.SourceRecord{
			Source:     s.Name(),
			ExternalID: id,
			Status:     domain.RecordStatusNew,
		})
		if limit > 0 && len(records) == limit {
			break
		}
	}
	return records, nil
}

func (s *stubSource) Fetch(_ context.Context, record domain.SourceRecord) (*domain.Document, error) {
	if err := s.fetchErr[record.ExternalID]; err != nil {
		return nil, err
	}
	text := s.items[record.ExternalID]
	return &domain.Document{
		ExternalID: record.ExternalID,
		Source:     s.Name(),
		SourceID:   s.entry.ID,
		Title:      record.ExternalID,
		Text:       text,
		Checksum:   textutil.SHA256Text(text),
		Topics:     []string{"alignment"},
	}, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	return keys
}

// stubFactory returns the same source for every registry entry.
type stubFactory struct {
	source driven.IngestionSource
	err    error
}

func (f *stubFactory) Create(_ context.Context, _ domain.Source) (driven.IngestionSource, error) {
	return f.source, f.err
}

type ingestFixture struct {
	service     *IngestService
	sourceStore *memory.SourceStore
	docStore    *memory.DocumentStore
	recordStore *memory.RecordStore
	stub        *stubSource
}

func newIngestFixture(t *testing.T, mode string) *ingestFixture {
	t.Helper()

	entry := domain.Source{
		ID:            "source_stub",
		Name:          "Stub",
		Kind:          "website",
		IngestionMode: mode,
		IsActive:      true,
	}
	stub := &stubSource{
		entry: entry,
		items: map[string]string{
			"item-1": "Deceptive alignment arises when training incentives diverge.",
			"item-2": "Interpretability tools inspect model internals.",
		},
		fetchErr: map[string]error{},
	}

	fx := &ingestFixture{
		sourceStore: memory.NewSourceStore(),
		docStore:    memory.NewDocumentStore(),
		recordStore: memory.NewRecordStore(),
		stub:        stub,
	}
	require.NoError(t, fx.sourceStore.Save(context.Background(), entry))

	fx.service = NewIngestService(
		fx.sourceStore,
		fx.docStore,
		fx.recordStore,
		&stubFactory{source: stub},
		fake.NewEmbeddingService(32),
	)
	return fx
}

func TestIngestService_Ingest(t *testing.T) {
	fx := newIngestFixture(t, domain.ModePoll)
	ctx := context.Background()

	require.NoError(t, fx.service.Ingest(ctx, "source_stub"))

	status, err := fx.service.Status(ctx, "source_stub")
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.Equal(t, 2, status.DocumentsProcessed)
	assert.Zero(t, status.DocumentsSkipped)
	assert.Zero(t, status.ErrorCount)

	// Documents stored with stable derived IDs and embedded chunks.
	docID := DocumentID("source_stub", "item-1")
	doc, err := fx.docStore.GetDocument(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Version)

	chunks, err := fx.docStore.GetChunks(ctx, docID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Len(t, chunks[0].Embedding, 32)

	// Ledger updated.
	record, err := fx.recordStore.Get(ctx, "stub", "item-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordStatusFetched, record.Status)
	assert.Equal(t, docID, record.DocID)

	// Run outcome recorded on the source.
	source, err := fx.sourceStore.Get(ctx, "source_stub")
	require.NoError(t, err)
	assert.Equal(t, domain.IngestionStatusSuccess, source.LastIngestionStatus)
	assert.False(t, source.LastIngestedAt.IsZero())
}

func TestIngestService_Ingest_UnchangedContentSkipped(t *testing.T) {
	fx := newIngestFixture(t, domain.ModePoll)
	ctx := context.Background()

	require.NoError(t, fx.service.Ingest(ctx, "source_stub"))
	require.NoError(t, fx.service.Ingest(ctx, "source_stub"))

	status, err := fx.service.Status(ctx, "source_stub")
	require.NoError(t, err)
	assert.Zero(t, status.DocumentsProcessed)
	assert.Equal(t, 2, status.DocumentsSkipped)
}

func TestIngestService_Ingest_ChangedContentBumpsVersion(t *testing.T) {
	fx := newIngestFixture(t, domain.ModePoll)
	ctx := context.Background()

	require.NoError(t, fx.service.Ingest(ctx, "source_stub"))

	fx.stub.items["item-1"] = "Deceptive alignment, revised discussion."
	require.NoError(t, fx.service.Ingest(ctx, "source_stub"))

	doc, err := fx.docStore.GetDocument(ctx, DocumentID("source_stub", "item-1"))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Version)
}

func TestIngestService_Ingest_SnapshotSkipsFetched(t *testing.T) {
	fx := newIngestFixture(t, domain.ModeSnapshot)
	ctx := context.Background()

	require.NoError(t, fx.service.Ingest(ctx, "source_stub"))

	// Change content; a snapshot source must not refetch known items.
	fx.stub.items["item-1"] = "changed"
	require.NoError(t, fx.service.Ingest(ctx, "source_stub"))

	doc, err := fx.docStore.GetDocument(ctx, DocumentID("source_stub", "item-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Version)

	status, err := fx.service.Status(ctx, "source_stub")
	require.NoError(t, err)
	assert.Equal(t, 2, status.DocumentsSkipped)
}

func TestIngestService_Ingest_FetchErrorRecorded(t *testing.T) {
	fx := newIngestFixture(t, domain.ModePoll)
	ctx := context.Background()

	fx.stub.fetchErr["item-2"] = errors.New("origin returned 500")

	require.NoError(t, fx.service.Ingest(ctx, "source_stub"))

	status, err := fx.service.Status(ctx, "source_stub")
	require.NoError(t, err)
	assert.Equal(t, 1, status.DocumentsProcessed)
	assert.Equal(t, 1, status.ErrorCount)

	record, err := fx.recordStore.Get(ctx, "stub", "item-2")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordStatusError, record.Status)
	assert.Contains(t, record.ErrorMessage, "origin returned 500")

	source, err := fx.sourceStore.Get(ctx, "source_stub")
	require.NoError(t, err)
	assert.Equal(t, domain.IngestionStatusFailed, source.LastIngestionStatus)
	assert.Contains(t, source.LastErrorMessage, "1 item(s) failed")
}

func TestIngestService_Ingest_FetchErrorKeepsDocumentLink(t *testing.T) {
	fx := newIngestFixture(t, domain.ModePoll)
	ctx := context.Background()

	require.NoError(t, fx.service.Ingest(ctx, "source_stub"))

	docID := DocumentID("source_stub", "item-1")
	record, err := fx.recordStore.Get(ctx, "stub", "item-1")
	require.NoError(t, err)
	require.Equal(t, docID, record.DocID)

	// A failed refetch marks the record but the document it produced
	// earlier is still there, so the ledger keeps pointing at it.
	fx.stub.fetchErr["item-1"] = errors.New("origin returned 500")
	require.NoError(t, fx.service.Ingest(ctx, "source_stub"))

	record, err = fx.recordStore.Get(ctx, "stub", "item-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordStatusError, record.Status)
	assert.Equal(t, docID, record.DocID)

	_, err = fx.docStore.GetDocument(ctx, docID)
	assert.NoError(t, err)
}

func TestIngestService_Ingest_ErrorRecordRetried(t *testing.T) {
	fx := newIngestFixture(t, domain.ModeSnapshot)
	ctx := context.Background()

	fx.stub.fetchErr["item-2"] = errors.New("transient")
	require.NoError(t, fx.service.Ingest(ctx, "source_stub"))

	// Error records are retried even in snapshot mode.
	delete(fx.stub.fetchErr, "item-2")
	require.NoError(t, fx.service.Ingest(ctx, "source_stub"))

	record, err := fx.recordStore.Get(ctx, "stub", "item-2")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordStatusFetched, record.Status)
	assert.Empty(t, record.ErrorMessage)
}

// watchableStubSource replays scripted change events then returns.
type watchableStubSource struct {
	*stubSource
	changes []string
}

func (s *watchableStubSource) Watch(_ context.Context, onChange func(path string)) error {
	for _, path := range s.changes {
		onChange(path)
	}
	return nil
}

func TestIngestService_Watch(t *testing.T) {
	fx := newIngestFixture(t, domain.ModePoll)
	fx.service.factory = &stubFactory{source: &watchableStubSource{
		stubSource: fx.stub,
		changes:    []string{"sources/files/new.md"},
	}}
	ctx := context.Background()

	require.NoError(t, fx.service.Watch(ctx, "source_stub"))

	// The initial pass ingests everything; the change event triggers a
	// second pass that finds the content unchanged.
	status, err := fx.service.Status(ctx, "source_stub")
	require.NoError(t, err)
	assert.Zero(t, status.DocumentsProcessed)
	assert.Equal(t, 2, status.DocumentsSkipped)

	_, err = fx.docStore.GetDocument(ctx, DocumentID("source_stub", "item-1"))
	assert.NoError(t, err)
}

func TestIngestService_Watch_UnsupportedSource(t *testing.T) {
	fx := newIngestFixture(t, domain.ModePoll)

	err := fx.service.Watch(context.Background(), "source_stub")
	assert.ErrorIs(t, err, domain.ErrWatchUnsupported)
}

func TestIngestService_Ingest_InactiveSource(t *testing.T) {
	fx := newIngestFixture(t, domain.ModePoll)
	ctx := context.Background()

	source, err := fx.sourceStore.Get(ctx, "source_stub")
	require.NoError(t, err)
	source.IsActive = false
	require.NoError(t, fx.sourceStore.Save(ctx, *source))

	err = fx.service.Ingest(ctx, "source_stub")
	assert.ErrorIs(t, err, domain.ErrSourceInactive)
}

func TestIngestService_Ingest_UnknownSource(t *testing.T) {
	fx := newIngestFixture(t, domain.ModePoll)

	err := fx.service.Ingest(context.Background(), "source_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestService_IngestAll_SkipsInactive(t *testing.T) {
	fx := newIngestFixture(t, domain.ModePoll)
	ctx := context.Background()

	require.NoError(t, fx.sourceStore.Save(ctx, domain.Source{
		ID:            "source_idle",
		Name:          "Idle",
		Kind:          "website",
		IngestionMode: domain.ModePoll,
		IsActive:      false,
	}))

	require.NoError(t, fx.service.IngestAll(ctx))

	status, err := fx.service.Status(ctx, "source_idle")
	require.NoError(t, err)
	assert.Zero(t, status.DocumentsProcessed)

	status, err = fx.service.Status(ctx, "source_stub")
	require.NoError(t, err)
	assert.Equal(t, 2, status.DocumentsProcessed)
}

func TestDocumentID_Stable(t *testing.T) {
	a := DocumentID("source_x", "item-1")
	b := DocumentID("source_x", "item-1")
	c := DocumentID("source_x", "item-2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "source_x_")
}
