package domain

import "time"

// Ingestion modes declare how a source is refreshed.
const (
	// ModePoll re-checks the source periodically for new or changed items.
	ModePoll = "poll"

	// ModeSnapshot captures the source once; subsequent ingestion runs
	// only pick up items not seen before.
	ModeSnapshot = "snapshot"

	// ModeManual is never scheduled; ingestion must be triggered explicitly.
	ModeManual = "manual"
)

// Ingestion run statuses recorded on a source after each run.
const (
	IngestionStatusPending = "pending"
	IngestionStatusSuccess = "success"
	IngestionStatusFailed  = "failed"
)

// Source is a registry entry describing a canonical content origin.
// Each source produces documents through an ingestion source implementation
// keyed by Kind.
type Source struct {
	// ID is the unique identifier for the source.
	ID string

	// Name is the human-readable name for this source.
	Name string

	// Kind identifies the ingestion source type (e.g. "website", "arxiv", "file").
	Kind string

	// CanonicalURL is the authoritative location of the source.
	CanonicalURL string

	// IngestionMode declares the refresh cadence (poll, snapshot, manual).
	IngestionMode string

	// IsActive gates ingestion; inactive sources are skipped.
	IsActive bool

	// LastIngestedAt is when the last ingestion run finished.
	LastIngestedAt time.Time

	// LastIngestionStatus is the outcome of the last run (pending, success, failed).
	LastIngestionStatus string

	// LastErrorMessage holds the last run's error, empty on success.
	LastErrorMessage string

	// DocCount is the denormalised count of documents belonging to this source.
	// Refreshed by the store on every document upsert or delete.
	DocCount int

	// Metadata contains arbitrary source-specific key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the source was registered.
	CreatedAt time.Time

	// UpdatedAt is when the source was last updated.
	UpdatedAt time.Time
}

// Schedulable reports whether the scheduler should pick up this source.
// Only active poll-mode sources are re-ingested in the background.
func (s *Source) Schedulable() bool {
	return s.IsActive && s.IngestionMode == ModePoll
}
