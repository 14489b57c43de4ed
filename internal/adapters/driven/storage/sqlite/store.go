package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/meridian-labs/safekb-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// all metadata store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.safekb/data/knowledge.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".safekb", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "knowledge.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SourceStore returns a SourceStore interface backed by this store.
func (s *Store) SourceStore() driven.SourceStore {
	return &sourceStore{store: s}
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// RecordStore returns a RecordStore interface backed by this store.
func (s *Store) RecordStore() driven.RecordStore {
	return &recordStore{store: s}
}

// SchedulerStore returns a SchedulerStore interface backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Source Store ====================

// sourceStore implements driven.SourceStore.
type sourceStore struct {
	store *Store
}

var _ driven.SourceStore = (*sourceStore)(nil)

const sourceColumns = `id, name, kind, canonical_url, ingestion_mode, is_active,
	last_ingested_at, last_ingestion_status, last_error_message, doc_count,
	metadata, created_at, updated_at`

// Save stores or updates a source. Ingestion outcome columns and the
// doc count are owned by other write paths and left untouched on update.
func (s *sourceStore) Save(ctx context.Context, source domain.Source) error {
	if source.ID == "" {
		return domain.ErrInvalidInput
	}

	metadataJSON, err := json.Marshal(source.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	source.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO sources (id, name, kind, canonical_url, ingestion_mode, is_active,
			last_ingested_at, last_ingestion_status, last_error_message, doc_count,
			metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			canonical_url = excluded.canonical_url,
			ingestion_mode = excluded.ingestion_mode,
			is_active = excluded.is_active,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, source.ID, source.Name, source.Kind, source.CanonicalURL, source.IngestionMode,
		boolToInt(source.IsActive), formatNullableTime(source.LastIngestedAt),
		nullString(source.LastIngestionStatus), nullString(source.LastErrorMessage),
		source.DocCount, string(metadataJSON), source.CreatedAt, source.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving source: %w", err)
	}
	return nil
}

// Get retrieves a source by ID.
func (s *sourceStore) Get(ctx context.Context, id string) (*domain.Source, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+sourceColumns+" FROM sources WHERE id = ?", id)
	return scanSource(row.Scan)
}

// Delete removes a source. Its documents and chunks are removed by the
// database cascade.
func (s *sourceStore) Delete(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}
	return nil
}

// List returns all registered sources ordered by name.
func (s *sourceStore) List(ctx context.Context) ([]domain.Source, error) {
	return s.querySources(ctx, "SELECT "+sourceColumns+" FROM sources ORDER BY name ASC")
}

// FindByURL returns sources whose canonical URL matches exactly.
func (s *sourceStore) FindByURL(ctx context.Context, url string) ([]domain.Source, error) {
	return s.querySources(ctx,
		"SELECT "+sourceColumns+" FROM sources WHERE canonical_url = ?", url)
}

// RecordIngestionStatus updates the run outcome columns for a source.
func (s *sourceStore) RecordIngestionStatus(
	ctx context.Context,
	sourceID, status, errorMessage string,
	at time.Time,
) error {
	_, err := s.store.db.ExecContext(ctx, `
		UPDATE sources
		SET last_ingested_at = ?, last_ingestion_status = ?, last_error_message = ?
		WHERE id = ?
	`, formatNullableTime(at), status, nullString(errorMessage), sourceID)
	if err != nil {
		return fmt.Errorf("recording ingestion status: %w", err)
	}
	return nil
}

func (s *sourceStore) querySources(ctx context.Context, query string, args ...any) ([]domain.Source, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source //nolint:prealloc // size unknown from query
	for rows.Next() {
		source, err := scanSource(rows.Scan)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}

	return sources, nil
}

// scanSource scans a source from a row scan function.
func scanSource(scan func(...any) error) (*domain.Source, error) {
	var source domain.Source
	var isActive int
	var lastIngestedAt, lastStatus, lastError sql.NullString
	var metadataJSON string
	var createdAt, updatedAt sql.NullTime

	if err := scan(&source.ID, &source.Name, &source.Kind, &source.CanonicalURL,
		&source.IngestionMode, &isActive, &lastIngestedAt, &lastStatus, &lastError,
		&source.DocCount, &metadataJSON, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning source: %w", err)
	}

	source.IsActive = isActive == 1
	source.LastIngestedAt = parseNullableTime(lastIngestedAt)
	source.LastIngestionStatus = lastStatus.String
	source.LastErrorMessage = lastError.String
	if createdAt.Valid {
		source.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		source.UpdatedAt = updatedAt.Time
	}

	if err := json.Unmarshal([]byte(metadataJSON), &source.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}

	return &source, nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, external_id, source, source_id, title, url, authors,
	published_at, added_at, abstract, text, raw_uri, checksum, topics, risk_areas,
	tags, metadata, version`

// UpsertDocument inserts or updates a document and replaces its chunks
// atomically. The version is bumped only when the incoming checksum
// differs from the stored one; identical checksums leave the stored
// text and chunks untouched. The source doc_count is refreshed in the
// same transaction.
func (s *documentStore) UpsertDocument(
	ctx context.Context,
	doc *domain.Document,
	chunks []domain.Chunk,
) (driven.UpsertOutcome, error) {
	if doc == nil || doc.ID == "" {
		return driven.UpsertUnchanged, domain.ErrInvalidInput
	}

	if doc.AddedAt.IsZero() {
		doc.AddedAt = time.Now().UTC()
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return driven.UpsertUnchanged, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var storedChecksum string
	var storedVersion int
	var storedAddedAt sql.NullString
	outcome := driven.UpsertCreated

	err = tx.QueryRowContext(ctx,
		"SELECT checksum, version, added_at FROM documents WHERE id = ?", doc.ID).
		Scan(&storedChecksum, &storedVersion, &storedAddedAt)
	switch {
	case err == sql.ErrNoRows:
		doc.Version = 1
	case err != nil:
		return driven.UpsertUnchanged, fmt.Errorf("checking existing document: %w", err)
	case storedChecksum == doc.Checksum:
		return driven.UpsertUnchanged, nil
	default:
		outcome = driven.UpsertUpdated
		doc.Version = storedVersion + 1
		doc.AddedAt = parseNullableTime(storedAddedAt)
	}

	authorsJSON, topicsJSON, riskAreasJSON, tagsJSON, metadataJSON, err := marshalDocumentJSON(doc)
	if err != nil {
		return driven.UpsertUnchanged, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, external_id, source, source_id, title, url, authors,
			published_at, added_at, abstract, text, raw_uri, checksum, topics, risk_areas,
			tags, metadata, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			external_id = excluded.external_id,
			source = excluded.source,
			source_id = excluded.source_id,
			title = excluded.title,
			url = excluded.url,
			authors = excluded.authors,
			published_at = excluded.published_at,
			abstract = excluded.abstract,
			text = excluded.text,
			raw_uri = excluded.raw_uri,
			checksum = excluded.checksum,
			topics = excluded.topics,
			risk_areas = excluded.risk_areas,
			tags = excluded.tags,
			metadata = excluded.metadata,
			version = excluded.version
	`, doc.ID, doc.ExternalID, doc.Source, doc.SourceID, doc.Title, nullString(doc.URL),
		authorsJSON, formatNullableTime(doc.PublishedAt), doc.AddedAt.Format(time.RFC3339),
		doc.Abstract, doc.Text, doc.RawURI, doc.Checksum, topicsJSON, riskAreasJSON,
		tagsJSON, metadataJSON, doc.Version)
	if err != nil {
		return driven.UpsertUnchanged, fmt.Errorf("saving document: %w", err)
	}

	// Chunks are fully replaced whenever the text changed
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE doc_id = ?", doc.ID); err != nil {
		return driven.UpsertUnchanged, fmt.Errorf("deleting old chunks: %w", err)
	}

	if err := insertChunks(ctx, tx, chunks); err != nil {
		return driven.UpsertUnchanged, err
	}

	if err := refreshDocCount(ctx, tx, doc.SourceID); err != nil {
		return driven.UpsertUnchanged, err
	}

	if err := tx.Commit(); err != nil {
		return driven.UpsertUnchanged, fmt.Errorf("committing transaction: %w", err)
	}
	return outcome, nil
}

// insertChunks stores chunks within an existing transaction.
func insertChunks(ctx context.Context, tx *sql.Tx, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, doc_id, chunk_index, text, embedding, topics, risk_areas, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		topicsJSON, err := json.Marshal(emptyIfNil(chunk.Topics))
		if err != nil {
			return fmt.Errorf("marshalling chunk topics: %w", err)
		}
		riskAreasJSON, err := json.Marshal(emptyIfNil(chunk.RiskAreas))
		if err != nil {
			return fmt.Errorf("marshalling chunk risk areas: %w", err)
		}
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}

		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = time.Now().UTC()
		}
		embeddingBlob := float32SliceToBytes(chunk.Embedding)

		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocID, chunk.Index, chunk.Text,
			embeddingBlob, string(topicsJSON), string(riskAreasJSON), string(metadataJSON),
			chunk.CreatedAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	return nil
}

// refreshDocCount recomputes the denormalised document count for a source.
func refreshDocCount(ctx context.Context, tx *sql.Tx, sourceID string) error {
	if sourceID == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE sources
		SET doc_count = (SELECT COUNT(*) FROM documents WHERE source_id = ?)
		WHERE id = ?
	`, sourceID, sourceID)
	if err != nil {
		return fmt.Errorf("refreshing doc count: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	return scanDocument(row.Scan)
}

// GetChunks retrieves all chunks for a document ordered by index.
func (s *documentStore) GetChunks(ctx context.Context, docID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, doc_id, chunk_index, text, embedding, topics, risk_areas, metadata, created_at
		FROM chunks WHERE doc_id = ?
		ORDER BY chunk_index
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// DeleteDocument removes a document and its chunks. Ledger rows keep
// their provenance with a nulled doc reference via the schema's
// ON DELETE SET NULL constraint.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var sourceID string
	err = tx.QueryRowContext(ctx,
		"SELECT source_id FROM documents WHERE id = ?", id).Scan(&sourceID)
	if err == sql.ErrNoRows {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("looking up document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	if err := refreshDocCount(ctx, tx, sourceID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ListDocuments returns documents for a source.
func (s *documentStore) ListDocuments(ctx context.Context, sourceID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE source_id = ?", sourceID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// ListTopics returns the distinct topics across all documents, sorted.
func (s *documentStore) ListTopics(ctx context.Context) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT topics FROM documents")
	if err != nil {
		return nil, fmt.Errorf("querying topics: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var topicsJSON string
		if err := rows.Scan(&topicsJSON); err != nil {
			return nil, fmt.Errorf("scanning topics: %w", err)
		}
		var topics []string
		if err := json.Unmarshal([]byte(topicsJSON), &topics); err != nil {
			return nil, fmt.Errorf("unmarshaling topics: %w", err)
		}
		for _, topic := range topics {
			seen[topic] = struct{}{}
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating topics: %w", err)
	}

	result := make([]string, 0, len(seen))
	for topic := range seen {
		result = append(result, topic)
	}
	sort.Strings(result)
	return result, nil
}

// CandidateChunks returns up to limit newest chunks matching the filters,
// paired with their parent documents. Source and year constraints are
// applied in SQL; topic, risk area and metadata constraints are applied
// in process after scanning since those columns hold JSON arrays.
func (s *documentStore) CandidateChunks(
	ctx context.Context,
	filters domain.SearchFilters,
	limit int,
) ([]driven.CandidatePair, error) {
	query := `
		SELECT c.id, c.doc_id, c.chunk_index, c.text, c.embedding, c.topics, c.risk_areas,
			c.metadata, c.created_at,
			d.id, d.external_id, d.source, d.source_id, d.title, d.url, d.authors,
			d.published_at, d.added_at, d.abstract, d.text, d.raw_uri, d.checksum,
			d.topics, d.risk_areas, d.tags, d.metadata, d.version
		FROM chunks c
		JOIN documents d ON c.doc_id = d.id
	`
	var conditions []string
	var args []any

	if len(filters.Sources) > 0 {
		placeholders := strings.Repeat("?,", len(filters.Sources))
		conditions = append(conditions, "d.source IN ("+placeholders[:len(placeholders)-1]+")")
		for _, src := range filters.Sources {
			args = append(args, src)
		}
	}
	if filters.YearMin > 0 {
		conditions = append(conditions, "d.published_at >= ?")
		args = append(args, fmt.Sprintf("%04d-01-01T00:00:00Z", filters.YearMin))
	}
	if filters.YearMax > 0 {
		conditions = append(conditions, "d.published_at <= ?")
		args = append(args, fmt.Sprintf("%04d-12-31T23:59:59Z", filters.YearMax))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY c.created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying candidate chunks: %w", err)
	}
	defer rows.Close()

	var pairs []driven.CandidatePair //nolint:prealloc // size unknown from query
	for rows.Next() {
		pair, err := scanCandidatePair(rows)
		if err != nil {
			return nil, err
		}
		if !matchesFilters(pair, filters) {
			continue
		}
		pairs = append(pairs, *pair)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidate chunks: %w", err)
	}

	return pairs, nil
}

// matchesFilters applies the constraints that cannot be expressed in SQL.
func matchesFilters(pair *driven.CandidatePair, filters domain.SearchFilters) bool {
	if len(filters.Topics) > 0 && !anyOverlap(pair.Chunk.Topics, filters.Topics) {
		return false
	}
	if len(filters.RiskAreas) > 0 && !anyOverlap(pair.Chunk.RiskAreas, filters.RiskAreas) {
		return false
	}
	for key, want := range filters.Metadata {
		if got, ok := pair.Document.Metadata[key]; !ok || got != want {
			return false
		}
	}
	return true
}

// anyOverlap reports whether the two string slices share an element.
func anyOverlap(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// emptyIfNil normalises a nil slice to an empty one so JSON columns
// always hold arrays rather than null.
func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// marshalDocumentJSON marshals the JSON-backed document columns.
func marshalDocumentJSON(doc *domain.Document) (authors, topics, riskAreas, tags, metadata string, err error) {
	authorsBytes, err := json.Marshal(emptyIfNil(doc.Authors))
	if err != nil {
		return "", "", "", "", "", fmt.Errorf("marshalling authors: %w", err)
	}
	topicsBytes, err := json.Marshal(emptyIfNil(doc.Topics))
	if err != nil {
		return "", "", "", "", "", fmt.Errorf("marshalling topics: %w", err)
	}
	riskAreasBytes, err := json.Marshal(emptyIfNil(doc.RiskAreas))
	if err != nil {
		return "", "", "", "", "", fmt.Errorf("marshalling risk areas: %w", err)
	}
	tagsBytes, err := json.Marshal(emptyIfNil(doc.Tags))
	if err != nil {
		return "", "", "", "", "", fmt.Errorf("marshalling tags: %w", err)
	}
	metadataBytes, err := json.Marshal(doc.Metadata)
	if err != nil {
		return "", "", "", "", "", fmt.Errorf("marshalling metadata: %w", err)
	}
	return string(authorsBytes), string(topicsBytes), string(riskAreasBytes),
		string(tagsBytes), string(metadataBytes), nil
}

// scanDocument scans a document from a row scan function.
func scanDocument(scan func(...any) error) (*domain.Document, error) {
	var doc domain.Document
	var url sql.NullString
	var authorsJSON, topicsJSON, riskAreasJSON, tagsJSON, metadataJSON string
	var publishedAt sql.NullString
	var addedAt string

	if err := scan(&doc.ID, &doc.ExternalID, &doc.Source, &doc.SourceID, &doc.Title,
		&url, &authorsJSON, &publishedAt, &addedAt, &doc.Abstract, &doc.Text,
		&doc.RawURI, &doc.Checksum, &topicsJSON, &riskAreasJSON, &tagsJSON,
		&metadataJSON, &doc.Version); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.URL = url.String
	doc.PublishedAt = parseNullableTime(publishedAt)
	if t, err := time.Parse(time.RFC3339, addedAt); err == nil {
		doc.AddedAt = t
	}

	if err := unmarshalDocumentJSON(&doc, authorsJSON, topicsJSON, riskAreasJSON, tagsJSON, metadataJSON); err != nil {
		return nil, err
	}

	return &doc, nil
}

// unmarshalDocumentJSON fills the JSON-backed document fields.
func unmarshalDocumentJSON(doc *domain.Document, authorsJSON, topicsJSON, riskAreasJSON, tagsJSON, metadataJSON string) error {
	if err := json.Unmarshal([]byte(authorsJSON), &doc.Authors); err != nil {
		return fmt.Errorf("unmarshaling authors: %w", err)
	}
	if err := json.Unmarshal([]byte(topicsJSON), &doc.Topics); err != nil {
		return fmt.Errorf("unmarshaling topics: %w", err)
	}
	if err := json.Unmarshal([]byte(riskAreasJSON), &doc.RiskAreas); err != nil {
		return fmt.Errorf("unmarshaling risk areas: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &doc.Tags); err != nil {
		return fmt.Errorf("unmarshaling tags: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
		return fmt.Errorf("unmarshaling metadata: %w", err)
	}
	return nil
}

// scanChunk scans a chunk from a row scan function.
func scanChunk(scan func(...any) error) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embeddingBlob []byte
	var topicsJSON, riskAreasJSON, metadataJSON string
	var createdAt string

	if err := scan(&chunk.ID, &chunk.DocID, &chunk.Index, &chunk.Text, &embeddingBlob,
		&topicsJSON, &riskAreasJSON, &metadataJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		chunk.CreatedAt = t
	}

	if err := json.Unmarshal([]byte(topicsJSON), &chunk.Topics); err != nil {
		return nil, fmt.Errorf("unmarshaling chunk topics: %w", err)
	}
	if err := json.Unmarshal([]byte(riskAreasJSON), &chunk.RiskAreas); err != nil {
		return nil, fmt.Errorf("unmarshaling chunk risk areas: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
	}

	return &chunk, nil
}

// scanCandidatePair scans a joined chunk and document row.
func scanCandidatePair(rows *sql.Rows) (*driven.CandidatePair, error) {
	var chunk domain.Chunk
	var embeddingBlob []byte
	var chunkTopicsJSON, chunkRiskAreasJSON, chunkMetadataJSON, chunkCreatedAt string

	var doc domain.Document
	var url sql.NullString
	var authorsJSON, topicsJSON, riskAreasJSON, tagsJSON, metadataJSON string
	var publishedAt sql.NullString
	var addedAt string

	if err := rows.Scan(
		&chunk.ID, &chunk.DocID, &chunk.Index, &chunk.Text, &embeddingBlob,
		&chunkTopicsJSON, &chunkRiskAreasJSON, &chunkMetadataJSON, &chunkCreatedAt,
		&doc.ID, &doc.ExternalID, &doc.Source, &doc.SourceID, &doc.Title,
		&url, &authorsJSON, &publishedAt, &addedAt, &doc.Abstract, &doc.Text,
		&doc.RawURI, &doc.Checksum, &topicsJSON, &riskAreasJSON, &tagsJSON,
		&metadataJSON, &doc.Version,
	); err != nil {
		return nil, fmt.Errorf("scanning candidate chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	if t, err := time.Parse(time.RFC3339, chunkCreatedAt); err == nil {
		chunk.CreatedAt = t
	}
	if err := json.Unmarshal([]byte(chunkTopicsJSON), &chunk.Topics); err != nil {
		return nil, fmt.Errorf("unmarshaling chunk topics: %w", err)
	}
	if err := json.Unmarshal([]byte(chunkRiskAreasJSON), &chunk.RiskAreas); err != nil {
		return nil, fmt.Errorf("unmarshaling chunk risk areas: %w", err)
	}
	if err := json.Unmarshal([]byte(chunkMetadataJSON), &chunk.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
	}

	doc.URL = url.String
	doc.PublishedAt = parseNullableTime(publishedAt)
	if t, err := time.Parse(time.RFC3339, addedAt); err == nil {
		doc.AddedAt = t
	}
	if err := unmarshalDocumentJSON(&doc, authorsJSON, topicsJSON, riskAreasJSON, tagsJSON, metadataJSON); err != nil {
		return nil, err
	}

	return &driven.CandidatePair{Chunk: chunk, Document: doc}, nil
}

// ==================== Record Store ====================

// recordStore implements driven.RecordStore.
type recordStore struct {
	store *Store
}

var _ driven.RecordStore = (*recordStore)(nil)

// Upsert stores or updates a ledger entry keyed by (source, external ID).
// The row ID assigned on first insert is kept stable across updates.
func (s *recordStore) Upsert(ctx context.Context, record domain.SourceRecord) error {
	if record.Source == "" || record.ExternalID == "" {
		return domain.ErrInvalidInput
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO source_records (id, source, external_id, last_fetched_at, doc_id, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, external_id) DO UPDATE SET
			last_fetched_at = excluded.last_fetched_at,
			doc_id = excluded.doc_id,
			status = excluded.status,
			error_message = excluded.error_message
	`, record.ID, record.Source, record.ExternalID,
		formatNullableTime(record.LastFetchedAt), nullString(record.DocID),
		record.Status, nullString(record.ErrorMessage))

	if err != nil {
		return fmt.Errorf("saving source record: %w", err)
	}
	return nil
}

// Get retrieves a ledger entry by (source, external ID).
func (s *recordStore) Get(ctx context.Context, source, externalID string) (*domain.SourceRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, source, external_id, last_fetched_at, doc_id, status, error_message
		FROM source_records WHERE source = ? AND external_id = ?
	`, source, externalID)
	return scanSourceRecord(row.Scan)
}

// ListBySource returns all ledger entries for a source.
func (s *recordStore) ListBySource(ctx context.Context, source string) ([]domain.SourceRecord, error) {
	return s.queryRecords(ctx, `
		SELECT id, source, external_id, last_fetched_at, doc_id, status, error_message
		FROM source_records WHERE source = ?
	`, source)
}

// ListByStatus returns ledger entries with the given status.
func (s *recordStore) ListByStatus(ctx context.Context, status string) ([]domain.SourceRecord, error) {
	return s.queryRecords(ctx, `
		SELECT id, source, external_id, last_fetched_at, doc_id, status, error_message
		FROM source_records WHERE status = ?
	`, status)
}

func (s *recordStore) queryRecords(ctx context.Context, query string, args ...any) ([]domain.SourceRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying source records: %w", err)
	}
	defer rows.Close()

	var records []domain.SourceRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		record, err := scanSourceRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating source records: %w", err)
	}

	return records, nil
}

// scanSourceRecord scans a ledger entry from a row scan function.
func scanSourceRecord(scan func(...any) error) (*domain.SourceRecord, error) {
	var record domain.SourceRecord
	var lastFetchedAt, docID, errorMessage sql.NullString

	if err := scan(&record.ID, &record.Source, &record.ExternalID,
		&lastFetchedAt, &docID, &record.Status, &errorMessage); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning source record: %w", err)
	}

	record.LastFetchedAt = parseNullableTime(lastFetchedAt)
	record.DocID = docID.String
	record.ErrorMessage = errorMessage.String

	return &record, nil
}

// formatNullableTime formats a time to RFC3339 string, or returns nil for zero time.
func formatNullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339)
}

// parseNullableTime parses a nullable RFC3339 string to time.Time.
// Returns zero time if the string is empty or invalid.
func parseNullableTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return time.Time{} // Return zero time on parse error
	}
	return t
}

// nullString returns nil for empty strings, otherwise the string.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// boolToInt converts a bool to 1 (true) or 0 (false).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
