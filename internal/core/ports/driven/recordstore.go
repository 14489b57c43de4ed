package driven

import (
	"context"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
)

// RecordStore persists the per-item ingestion ledger.
// One row exists per (source, external ID) pair; Upsert is the only
// write path so concurrent ingestion runs converge on a single record.
type RecordStore interface {
	// Upsert stores or updates a ledger entry keyed by
	// (source, external ID). The record's own ID is kept stable across
	// updates.
	Upsert(ctx context.Context, record domain.SourceRecord) error

	// Get retrieves a ledger entry by (source, external ID).
	Get(ctx context.Context, source, externalID string) (*domain.SourceRecord, error)

	// ListBySource returns all ledger entries for a source.
	ListBySource(ctx context.Context, source string) ([]domain.SourceRecord, error)

	// ListByStatus returns ledger entries with the given status.
	ListByStatus(ctx context.Context, status string) ([]domain.SourceRecord, error)
}
