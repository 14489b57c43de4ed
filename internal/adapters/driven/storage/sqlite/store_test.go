package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/core/ports/driven"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "safekb-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

// createTestSource creates a test source to satisfy foreign key constraints.
func createTestSource(t *testing.T, store *Store, sourceID string) {
	t.Helper()
	ctx := context.Background()
	source := domain.Source{
		ID:            sourceID,
		Name:          "Test Source " + sourceID,
		Kind:          "website",
		CanonicalURL:  "https://example.com/" + sourceID,
		IngestionMode: domain.ModePoll,
		IsActive:      true,
		Metadata:      map[string]any{},
	}
	require.NoError(t, store.SourceStore().Save(ctx, source))
}

// testDocument builds a document with chunks for upsert tests.
func testDocument(docID, sourceID, text string) (*domain.Document, []domain.Chunk) {
	doc := &domain.Document{
		ID:          docID,
		ExternalID:  "ext-" + docID,
		Source:      sourceID,
		SourceID:    sourceID,
		Title:       "Test Document " + docID,
		URL:         "https://example.com/docs/" + docID,
		Authors:     []string{"A. Researcher"},
		PublishedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Text:        text,
		Checksum:    fmt.Sprintf("sum-%x", text),
		Topics:      []string{"interpretability"},
		RiskAreas:   []string{"deception"},
		Metadata:    map[string]any{"lang": "en"},
	}
	chunks := []domain.Chunk{
		{
			ID:        docID + "_0",
			DocID:     docID,
			Index:     0,
			Text:      text,
			Embedding: []float32{0.1, 0.2, 0.3},
			Topics:    doc.Topics,
			RiskAreas: doc.RiskAreas,
			Metadata:  map[string]any{"source": sourceID},
		},
	}
	return doc, chunks
}

func TestNewStore_Success(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "safekb-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	dbPath := filepath.Join(tempDir, "knowledge.db")
	assert.Equal(t, dbPath, store.Path())
	assert.FileExists(t, dbPath)

	assert.NoError(t, store.db.Ping())
}

func TestNewStore_ErrorHandling(t *testing.T) {
	_, err := NewStore("/invalid\x00path")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "creating data directory")
}

func TestNewStore_MigrationsIdempotent(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "safekb-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening must not re-run applied migrations
	store, err = NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	var version int
	require.NoError(t, store.db.QueryRow(
		"SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)
}

// ==================== Source Store Tests ====================

func TestSourceStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	source := domain.Source{
		ID:            "source_arxiv",
		Name:          "arXiv AI Safety",
		Kind:          "arxiv",
		CanonicalURL:  "https://arxiv.org",
		IngestionMode: domain.ModePoll,
		IsActive:      true,
		Metadata:      map[string]any{"category": "cs.AI"},
	}
	require.NoError(t, store.SourceStore().Save(ctx, source))

	got, err := store.SourceStore().Get(ctx, "source_arxiv")
	require.NoError(t, err)
	assert.Equal(t, "arXiv AI Safety", got.Name)
	assert.Equal(t, "arxiv", got.Kind)
	assert.Equal(t, domain.ModePoll, got.IngestionMode)
	assert.True(t, got.IsActive)
	assert.Equal(t, "cs.AI", got.Metadata["category"])
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestSourceStore_Get_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.SourceStore().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSourceStore_Save_InvalidInput(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.SourceStore().Save(context.Background(), domain.Source{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSourceStore_Save_UpdatePreservesIngestionColumns(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestSource(t, store, "source_1")
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SourceStore().RecordIngestionStatus(
		ctx, "source_1", domain.IngestionStatusSuccess, "", at))

	// Re-saving the source must not clear run outcome columns
	updated := domain.Source{
		ID:            "source_1",
		Name:          "Renamed",
		Kind:          "website",
		IngestionMode: domain.ModeManual,
		IsActive:      false,
	}
	require.NoError(t, store.SourceStore().Save(ctx, updated))

	got, err := store.SourceStore().Get(ctx, "source_1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.False(t, got.IsActive)
	assert.Equal(t, domain.IngestionStatusSuccess, got.LastIngestionStatus)
	assert.Equal(t, at, got.LastIngestedAt)
}

func TestSourceStore_RecordIngestionStatus_Failure(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestSource(t, store, "source_1")
	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.SourceStore().RecordIngestionStatus(
		ctx, "source_1", domain.IngestionStatusFailed, "connection refused", at))

	got, err := store.SourceStore().Get(ctx, "source_1")
	require.NoError(t, err)
	assert.Equal(t, domain.IngestionStatusFailed, got.LastIngestionStatus)
	assert.Equal(t, "connection refused", got.LastErrorMessage)
}

func TestSourceStore_List_OrderedByName(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	for _, s := range []domain.Source{
		{ID: "s1", Name: "Zulu", Kind: "website"},
		{ID: "s2", Name: "Alpha", Kind: "website"},
		{ID: "s3", Name: "Mike", Kind: "website"},
	} {
		require.NoError(t, store.SourceStore().Save(ctx, s))
	}

	sources, err := store.SourceStore().List(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, "Alpha", sources[0].Name)
	assert.Equal(t, "Mike", sources[1].Name)
	assert.Equal(t, "Zulu", sources[2].Name)
}

func TestSourceStore_FindByURL(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.SourceStore().Save(ctx, domain.Source{
		ID: "s1", Name: "One", Kind: "website", CanonicalURL: "https://example.com/a",
	}))
	require.NoError(t, store.SourceStore().Save(ctx, domain.Source{
		ID: "s2", Name: "Two", Kind: "website", CanonicalURL: "https://example.com/b",
	}))

	matches, err := store.SourceStore().FindByURL(ctx, "https://example.com/a")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "s1", matches[0].ID)

	matches, err = store.SourceStore().FindByURL(ctx, "https://example.com/none")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSourceStore_Delete_CascadesDocuments(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestSource(t, store, "source_1")
	doc, chunks := testDocument("doc-1", "source_1", "some text")
	_, err := store.DocumentStore().UpsertDocument(ctx, doc, chunks)
	require.NoError(t, err)

	require.NoError(t, store.SourceStore().Delete(ctx, "source_1"))

	_, err = store.DocumentStore().GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := store.DocumentStore().GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

// ==================== Document Store Tests ====================

func TestDocumentStore_Upsert_Created(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestSource(t, store, "source_1")
	doc, chunks := testDocument("doc-1", "source_1", "alpha beta gamma")

	outcome, err := store.DocumentStore().UpsertDocument(ctx, doc, chunks)
	require.NoError(t, err)
	assert.Equal(t, driven.UpsertCreated, outcome)

	got, err := store.DocumentStore().GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, doc.Checksum, got.Checksum)
	assert.Equal(t, []string{"A. Researcher"}, got.Authors)
	assert.Equal(t, []string{"interpretability"}, got.Topics)
	assert.Equal(t, "en", got.Metadata["lang"])
	assert.False(t, got.AddedAt.IsZero())

	// doc_count refreshed in the same transaction
	source, err := store.SourceStore().Get(ctx, "source_1")
	require.NoError(t, err)
	assert.Equal(t, 1, source.DocCount)
}

func TestDocumentStore_Upsert_UnchangedChecksum(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestSource(t, store, "source_1")
	doc, chunks := testDocument("doc-1", "source_1", "alpha beta gamma")
	_, err := store.DocumentStore().UpsertDocument(ctx, doc, chunks)
	require.NoError(t, err)

	// Same checksum: nothing changes, version stays 1
	again, againChunks := testDocument("doc-1", "source_1", "alpha beta gamma")
	outcome, err := store.DocumentStore().UpsertDocument(ctx, again, againChunks)
	require.NoError(t, err)
	assert.Equal(t, driven.UpsertUnchanged, outcome)

	got, err := store.DocumentStore().GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
}

func TestDocumentStore_Upsert_ChangedChecksumBumpsVersion(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestSource(t, store, "source_1")
	doc, chunks := testDocument("doc-1", "source_1", "alpha beta gamma")
	_, err := store.DocumentStore().UpsertDocument(ctx, doc, chunks)
	require.NoError(t, err)

	first, err := store.DocumentStore().GetDocument(ctx, "doc-1")
	require.NoError(t, err)

	changed, changedChunks := testDocument("doc-1", "source_1", "delta epsilon")
	changedChunks = append(changedChunks, domain.Chunk{
		ID: "doc-1_1", DocID: "doc-1", Index: 1, Text: "epsilon",
	})
	outcome, err := store.DocumentStore().UpsertDocument(ctx, changed, changedChunks)
	require.NoError(t, err)
	assert.Equal(t, driven.UpsertUpdated, outcome)

	got, err := store.DocumentStore().GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "delta epsilon", got.Text)
	// First-ingested timestamp survives updates
	assert.Equal(t, first.AddedAt, got.AddedAt)

	// Chunks fully replaced
	gotChunks, err := store.DocumentStore().GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, gotChunks, 2)
	assert.Equal(t, 0, gotChunks[0].Index)
	assert.Equal(t, 1, gotChunks[1].Index)
	assert.Equal(t, "delta epsilon", gotChunks[0].Text)
}

func TestDocumentStore_GetChunks_EmbeddingRoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestSource(t, store, "source_1")
	doc, chunks := testDocument("doc-1", "source_1", "alpha")
	chunks[0].Embedding = []float32{0.25, -1.5, 3.75}
	_, err := store.DocumentStore().UpsertDocument(ctx, doc, chunks)
	require.NoError(t, err)

	got, err := store.DocumentStore().GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []float32{0.25, -1.5, 3.75}, got[0].Embedding)
	assert.Equal(t, []string{"interpretability"}, got[0].Topics)
}

func TestDocumentStore_Delete_NullsLedgerAndRefreshesCount(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestSource(t, store, "source_1")
	doc, chunks := testDocument("doc-1", "source_1", "alpha")
	_, err := store.DocumentStore().UpsertDocument(ctx, doc, chunks)
	require.NoError(t, err)

	require.NoError(t, store.RecordStore().Upsert(ctx, domain.SourceRecord{
		Source:        "source_1",
		ExternalID:    "ext-doc-1",
		DocID:         "doc-1",
		Status:        domain.RecordStatusFetched,
		LastFetchedAt: time.Now().UTC(),
	}))

	require.NoError(t, store.DocumentStore().DeleteDocument(ctx, "doc-1"))

	// Ledger row survives with a nulled document reference
	record, err := store.RecordStore().Get(ctx, "source_1", "ext-doc-1")
	require.NoError(t, err)
	assert.Empty(t, record.DocID)
	assert.Equal(t, domain.RecordStatusFetched, record.Status)

	source, err := store.SourceStore().Get(ctx, "source_1")
	require.NoError(t, err)
	assert.Equal(t, 0, source.DocCount)
}

func TestDocumentStore_Delete_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.DocumentStore().DeleteDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_ListTopics(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestSource(t, store, "source_1")

	doc1, chunks1 := testDocument("doc-1", "source_1", "alpha")
	doc1.Topics = []string{"interpretability", "alignment"}
	_, err := store.DocumentStore().UpsertDocument(ctx, doc1, chunks1)
	require.NoError(t, err)

	doc2, chunks2 := testDocument("doc-2", "source_1", "beta")
	doc2.Topics = []string{"alignment", "robustness"}
	_, err = store.DocumentStore().UpsertDocument(ctx, doc2, chunks2)
	require.NoError(t, err)

	topics, err := store.DocumentStore().ListTopics(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alignment", "interpretability", "robustness"}, topics)
}

func TestDocumentStore_CandidateChunks(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestSource(t, store, "source_a")
	createTestSource(t, store, "source_b")

	docA, chunksA := testDocument("doc-a", "source_a", "alpha")
	docA.PublishedAt = time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	docA.Topics = []string{"interpretability"}
	chunksA[0].Topics = docA.Topics
	_, err := store.DocumentStore().UpsertDocument(ctx, docA, chunksA)
	require.NoError(t, err)

	docB, chunksB := testDocument("doc-b", "source_b", "beta")
	docB.PublishedAt = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	docB.Topics = []string{"governance"}
	docB.Metadata = map[string]any{"lang": "de"}
	chunksB[0].Topics = docB.Topics
	_, err = store.DocumentStore().UpsertDocument(ctx, docB, chunksB)
	require.NoError(t, err)

	t.Run("no filters returns all", func(t *testing.T) {
		pairs, err := store.DocumentStore().CandidateChunks(ctx, domain.SearchFilters{}, 10)
		require.NoError(t, err)
		assert.Len(t, pairs, 2)
	})

	t.Run("source filter", func(t *testing.T) {
		pairs, err := store.DocumentStore().CandidateChunks(ctx,
			domain.SearchFilters{Sources: []string{"source_a"}}, 10)
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, "doc-a", pairs[0].Document.ID)
	})

	t.Run("topic filter", func(t *testing.T) {
		pairs, err := store.DocumentStore().CandidateChunks(ctx,
			domain.SearchFilters{Topics: []string{"governance"}}, 10)
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, "doc-b", pairs[0].Document.ID)
	})

	t.Run("year range filter", func(t *testing.T) {
		pairs, err := store.DocumentStore().CandidateChunks(ctx,
			domain.SearchFilters{YearMin: 2024}, 10)
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, "doc-b", pairs[0].Document.ID)

		pairs, err = store.DocumentStore().CandidateChunks(ctx,
			domain.SearchFilters{YearMax: 2024}, 10)
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, "doc-a", pairs[0].Document.ID)
	})

	t.Run("metadata equality filter", func(t *testing.T) {
		pairs, err := store.DocumentStore().CandidateChunks(ctx,
			domain.SearchFilters{Metadata: map[string]any{"lang": "de"}}, 10)
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, "doc-b", pairs[0].Document.ID)
	})

	t.Run("limit applies", func(t *testing.T) {
		pairs, err := store.DocumentStore().CandidateChunks(ctx, domain.SearchFilters{}, 1)
		require.NoError(t, err)
		assert.Len(t, pairs, 1)
	})
}

// ==================== Record Store Tests ====================

func TestRecordStore_UpsertAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.RecordStore().Upsert(ctx, domain.SourceRecord{
		Source:        "source_arxiv",
		ExternalID:    "2401.00001",
		Status:        domain.RecordStatusNew,
		LastFetchedAt: now,
	}))

	record, err := store.RecordStore().Get(ctx, "source_arxiv", "2401.00001")
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, domain.RecordStatusNew, record.Status)
	assert.Equal(t, now, record.LastFetchedAt)
}

func TestRecordStore_Upsert_KeepsIDStable(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.RecordStore().Upsert(ctx, domain.SourceRecord{
		Source: "s", ExternalID: "e", Status: domain.RecordStatusNew,
	}))
	first, err := store.RecordStore().Get(ctx, "s", "e")
	require.NoError(t, err)

	require.NoError(t, store.RecordStore().Upsert(ctx, domain.SourceRecord{
		Source: "s", ExternalID: "e", Status: domain.RecordStatusError,
		ErrorMessage: "timeout",
	}))
	second, err := store.RecordStore().Get(ctx, "s", "e")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.RecordStatusError, second.Status)
	assert.Equal(t, "timeout", second.ErrorMessage)
}

func TestRecordStore_Upsert_InvalidInput(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.RecordStore().Upsert(context.Background(), domain.SourceRecord{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRecordStore_ListBySourceAndStatus(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	for i, status := range []string{
		domain.RecordStatusNew, domain.RecordStatusFetched, domain.RecordStatusError,
	} {
		require.NoError(t, store.RecordStore().Upsert(ctx, domain.SourceRecord{
			Source:     "source_a",
			ExternalID: fmt.Sprintf("item-%d", i),
			Status:     status,
		}))
	}
	require.NoError(t, store.RecordStore().Upsert(ctx, domain.SourceRecord{
		Source: "source_b", ExternalID: "other", Status: domain.RecordStatusNew,
	}))

	bySource, err := store.RecordStore().ListBySource(ctx, "source_a")
	require.NoError(t, err)
	assert.Len(t, bySource, 3)

	errored, err := store.RecordStore().ListByStatus(ctx, domain.RecordStatusError)
	require.NoError(t, err)
	require.Len(t, errored, 1)
	assert.Equal(t, "item-2", errored[0].ExternalID)
}
