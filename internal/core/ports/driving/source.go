package driving

import (
	"context"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
)

// SourceService manages source registrations.
type SourceService interface {
	// Add registers a new source.
	Add(ctx context.Context, source domain.Source) error

	// Get retrieves a source by ID.
	Get(ctx context.Context, id string) (*domain.Source, error)

	// List returns all registered sources.
	List(ctx context.Context) ([]domain.Source, error)

	// Update modifies an existing source registration.
	Update(ctx context.Context, source domain.Source) error

	// Remove deletes a source and its ingested data.
	Remove(ctx context.Context, id string) error

	// SetActive enables or disables ingestion for a source.
	SetActive(ctx context.Context, id string, active bool) error
}
