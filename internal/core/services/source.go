package services

import (
	"context"
	"fmt"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/core/ports/driven"
	"github.com/meridian-labs/safekb-cli/internal/core/ports/driving"
	"github.com/meridian-labs/safekb-cli/internal/logger"
)

// Ensure SourceService implements the interface.
var _ driving.SourceService = (*SourceService)(nil)

// SourceService manages source registrations.
type SourceService struct {
	sourceStore driven.SourceStore
	factory     driven.SourceFactory
}

// NewSourceService creates a new source service. The factory is used to
// validate kinds on Add and may be nil to skip validation.
func NewSourceService(sourceStore driven.SourceStore, factory driven.SourceFactory) *SourceService {
	return &SourceService{
		sourceStore: sourceStore,
		factory:     factory,
	}
}

// Add registers a new source. A missing ID is derived from the name.
func (s *SourceService) Add(ctx context.Context, source domain.Source) error {
	if source.Name == "" {
		return fmt.Errorf("%w: source name is required", domain.ErrInvalidInput)
	}
	if source.Kind == "" {
		return fmt.Errorf("%w: source kind is required", domain.ErrInvalidInput)
	}
	if source.ID == "" {
		source.ID = SourceID(source.Name, source.Kind)
	}
	if source.IngestionMode == "" {
		source.IngestionMode = domain.ModeManual
	}
	if source.LastIngestionStatus == "" {
		source.LastIngestionStatus = domain.IngestionStatusPending
	}

	if s.factory != nil {
		src, err := s.factory.Create(ctx, source)
		if err != nil {
			return fmt.Errorf("validating source: %w", err)
		}
		_ = src.Close()
	}

	existing, err := s.sourceStore.Get(ctx, source.ID)
	if err == nil && existing != nil {
		return fmt.Errorf("source %s: %w", source.ID, domain.ErrAlreadyExists)
	}

	logger.Debug("registering source %s (kind=%s, mode=%s)", source.ID, source.Kind, source.IngestionMode)
	return s.sourceStore.Save(ctx, source)
}

// Get retrieves a source by ID.
func (s *SourceService) Get(ctx context.Context, id string) (*domain.Source, error) {
	return s.sourceStore.Get(ctx, id)
}

// List returns all registered sources.
func (s *SourceService) List(ctx context.Context) ([]domain.Source, error) {
	return s.sourceStore.List(ctx)
}

// Update modifies an existing source registration.
func (s *SourceService) Update(ctx context.Context, source domain.Source) error {
	if source.ID == "" {
		return fmt.Errorf("%w: source ID is required", domain.ErrInvalidInput)
	}
	if _, err := s.sourceStore.Get(ctx, source.ID); err != nil {
		return err
	}
	return s.sourceStore.Save(ctx, source)
}

// Remove deletes a source and its ingested data.
func (s *SourceService) Remove(ctx context.Context, id string) error {
	if _, err := s.sourceStore.Get(ctx, id); err != nil {
		return err
	}
	logger.Debug("removing source %s", id)
	return s.sourceStore.Delete(ctx, id)
}

// SetActive enables or disables ingestion for a source.
func (s *SourceService) SetActive(ctx context.Context, id string, active bool) error {
	source, err := s.sourceStore.Get(ctx, id)
	if err != nil {
		return err
	}
	if source.IsActive == active {
		return nil
	}
	source.IsActive = active
	return s.sourceStore.Save(ctx, *source)
}

// SourceID derives the registry ID for a source name. File sources get
// a distinct prefix so local directories never collide with web
// sources of the same name.
func SourceID(name, kind string) string {
	if kind == "file" {
		return "source_file_" + domain.Slugify(name)
	}
	return "source_" + domain.Slugify(name)
}
