package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-labs/safekb-cli/internal/catalog"
	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/core/ports/driven"
	"github.com/meridian-labs/safekb-cli/internal/core/ports/driving"
	"github.com/meridian-labs/safekb-cli/internal/logger"
)

// DefaultCatalogTitle heads the rendered catalog document.
const DefaultCatalogTitle = "Knowledge Base Sources"

// Ensure CatalogService implements the interface.
var _ driving.CatalogService = (*CatalogService)(nil)

// CatalogService maintains the markdown source catalog.
type CatalogService struct {
	sourceStore driven.SourceStore
	ingestor    driving.IngestOrchestrator
	title       string
}

// NewCatalogService creates a catalog service. The ingestor may be nil;
// Sync then registers sources without ingesting them.
func NewCatalogService(sourceStore driven.SourceStore, ingestor driving.IngestOrchestrator) *CatalogService {
	return &CatalogService{
		sourceStore: sourceStore,
		ingestor:    ingestor,
		title:       DefaultCatalogTitle,
	}
}

// Render writes the current sources as a markdown catalog document.
func (s *CatalogService) Render(ctx context.Context) (string, error) {
	sourceList, err := s.sourceStore.List(ctx)
	if err != nil {
		return "", fmt.Errorf("listing sources: %w", err)
	}
	return catalog.Render(s.title, sourceList), nil
}

// Parse extracts source entries from a markdown catalog document.
func (s *CatalogService) Parse(_ context.Context, markdown string) ([]domain.CatalogEntry, error) {
	return catalog.Parse(markdown), nil
}

// Sync reconciles catalog entries with registered sources. New entries
// are registered and immediately ingested; existing sources get their
// name, URL and mode refreshed from the catalog. Sync is idempotent:
// re-running it with an unchanged catalog changes nothing.
func (s *CatalogService) Sync(ctx context.Context, markdown string) (*domain.CatalogSyncReport, error) {
	report := &domain.CatalogSyncReport{}

	for _, entry := range catalog.Parse(markdown) {
		report.EntriesParsed++
		if err := s.syncEntry(ctx, entry, report); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", entry.Name, err))
		}
	}

	return report, nil
}

func (s *CatalogService) syncEntry(ctx context.Context, entry domain.CatalogEntry, report *domain.CatalogSyncReport) error {
	id := SourceID(entry.Name, entry.Kind)

	mode := entry.IngestionMode
	if mode == "" {
		mode = domain.ModeManual
	}

	existing, err := s.sourceStore.Get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		source := domain.Source{
			ID:                  id,
			Name:                entry.Name,
			Kind:                entry.Kind,
			CanonicalURL:        entry.URL,
			IngestionMode:       mode,
			IsActive:            true,
			LastIngestionStatus: domain.IngestionStatusPending,
		}
		if entry.Kind == "file" && entry.URL != "" {
			source.Metadata = map[string]any{"local_path": trimRelPrefix(entry.URL)}
		}
		if err := s.sourceStore.Save(ctx, source); err != nil {
			return fmt.Errorf("registering: %w", err)
		}
		report.SourcesCreated++
		logger.Debug("catalog sync registered %s", id)
		return s.ingestNew(ctx, id, report)

	case err != nil:
		return err

	default:
		if existing.Name == entry.Name && existing.CanonicalURL == entry.URL && existing.IngestionMode == mode {
			return nil
		}
		existing.Name = entry.Name
		existing.CanonicalURL = entry.URL
		existing.IngestionMode = mode
		if err := s.sourceStore.Save(ctx, *existing); err != nil {
			return fmt.Errorf("updating: %w", err)
		}
		report.SourcesUpdated++
		return nil
	}
}

func (s *CatalogService) ingestNew(ctx context.Context, sourceID string, report *domain.CatalogSyncReport) error {
	if s.ingestor == nil {
		return nil
	}
	if err := s.ingestor.Ingest(ctx, sourceID); err != nil {
		return fmt.Errorf("ingesting: %w", err)
	}
	if status, err := s.ingestor.Status(ctx, sourceID); err == nil {
		report.DocumentsIngested += status.DocumentsProcessed
	}
	return nil
}

func trimRelPrefix(url string) string {
	if len(url) > 2 && url[:2] == "./" {
		return url[2:]
	}
	return url
}
