package driving

import (
	"context"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
)

// CatalogService maintains the markdown source catalog.
type CatalogService interface {
	// Render writes the current sources as a markdown catalog document.
	Render(ctx context.Context) (string, error)

	// Parse extracts source entries from a markdown catalog document.
	Parse(ctx context.Context, markdown string) ([]domain.CatalogEntry, error)

	// Sync reconciles catalog entries with registered sources,
	// creating sources for entries not yet present.
	Sync(ctx context.Context, markdown string) (*domain.CatalogSyncReport, error)
}
