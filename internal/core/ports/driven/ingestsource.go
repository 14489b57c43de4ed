package driven

import (
	"context"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
)

// IngestionSource fetches items from a content origin.
// Each source kind (arxiv, website, file, ...) implements this interface.
//
// Discovery and fetching are separate steps so the orchestrator can
// consult the ledger between them and skip items that are already
// up to date.
type IngestionSource interface {
	// Name returns the ingestion source name used in documents and
	// ledger entries.
	Name() string

	// Registry returns the registry Source entry for this source.
	// Used to upsert the registry row before an ingestion run.
	Registry() domain.Source

	// Discover returns ledger candidates for new or updated items,
	// at most limit when limit > 0.
	Discover(ctx context.Context, limit int) ([]domain.SourceRecord, error)

	// Fetch retrieves and parses the document for a discovered record.
	// The returned document has cleaned text and a checksum set.
	Fetch(ctx context.Context, record domain.SourceRecord) (*domain.Document, error)

	// Close releases resources.
	Close() error
}

// WatchableSource is implemented by sources that can report changes to
// their backing content as they happen, such as local directories.
type WatchableSource interface {
	// Watch blocks invoking onChange for every changed item until ctx
	// is cancelled.
	Watch(ctx context.Context, onChange func(path string)) error
}

// SourceFactory creates an IngestionSource from a registry entry.
// Returns domain.ErrUnsupportedKind for unknown kinds.
type SourceFactory interface {
	Create(ctx context.Context, source domain.Source) (IngestionSource, error)
}
