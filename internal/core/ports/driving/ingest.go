package driving

import "context"

// IngestOrchestrator coordinates document ingestion from sources.
type IngestOrchestrator interface {
	// Ingest triggers ingestion for a source.
	Ingest(ctx context.Context, sourceID string) error

	// IngestAll triggers ingestion for all active sources.
	IngestAll(ctx context.Context) error

	// Status returns ingestion status for a source.
	Status(ctx context.Context, sourceID string) (*IngestStatus, error)

	// Watch blocks re-ingesting a source whenever its backing content
	// changes, until ctx is cancelled. Returns
	// domain.ErrWatchUnsupported for source kinds that cannot report
	// changes.
	Watch(ctx context.Context, sourceID string) error
}

// IngestStatus represents the current state of an ingestion run.
type IngestStatus struct {
	// SourceID identifies the source.
	SourceID string

	// Running indicates if ingestion is currently in progress.
	Running bool

	// DocumentsProcessed is the count of documents processed.
	DocumentsProcessed int

	// DocumentsSkipped is the count of documents skipped because
	// their content was unchanged.
	DocumentsSkipped int

	// ErrorCount is the number of errors encountered.
	ErrorCount int
}
