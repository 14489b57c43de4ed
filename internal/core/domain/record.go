package domain

import "time"

// Source record statuses. A record starts as "new" when discovered,
// becomes "fetched" once a document was stored for it, and "error" when
// the last fetch attempt failed. Error records are retried on the next
// ingestion run.
const (
	RecordStatusNew     = "new"
	RecordStatusFetched = "fetched"
	RecordStatusError   = "error"
)

// SourceRecord is the per-item ingestion ledger entry. One record exists
// per (source, external ID) pair regardless of how often the item is
// fetched, and it outlives the document it points to: deleting the
// document nulls DocID but keeps the record as provenance.
type SourceRecord struct {
	// ID is the unique identifier for the record.
	ID string

	// Source is the ingestion source name.
	Source string

	// ExternalID is the item identifier within the origin system.
	// (Source, ExternalID) is unique.
	ExternalID string

	// LastFetchedAt is when the item was last fetched, successfully or not.
	LastFetchedAt time.Time

	// DocID links to the stored document, empty if none exists (yet,
	// or anymore).
	DocID string

	// Status is the ledger state: new, fetched or error.
	Status string

	// ErrorMessage holds the last fetch error; cleared on success.
	ErrorMessage string
}
