package driven

import (
	"context"
	"time"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
)

// SourceStore persists source registry entries.
type SourceStore interface {
	// Save stores or updates a source.
	Save(ctx context.Context, source domain.Source) error

	// Get retrieves a source by ID.
	Get(ctx context.Context, id string) (*domain.Source, error)

	// Delete removes a source. Documents belonging to the source are
	// removed by the database cascade.
	Delete(ctx context.Context, id string) error

	// List returns all registered sources ordered by name.
	List(ctx context.Context) ([]domain.Source, error)

	// FindByURL returns sources whose canonical URL matches exactly.
	FindByURL(ctx context.Context, url string) ([]domain.Source, error)

	// RecordIngestionStatus updates the run outcome columns for a source:
	// last_ingested_at, last_ingestion_status and last_error_message.
	RecordIngestionStatus(ctx context.Context, sourceID, status, errorMessage string, at time.Time) error
}
