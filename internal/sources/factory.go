// Package sources builds ingestion source implementations from
// registry entries. Each supported kind registers a builder; the
// factory resolves a Source row to a running ingestion source.
package sources

import (
	"context"
	"fmt"
	"sort"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/core/ports/driven"
	"github.com/meridian-labs/safekb-cli/internal/sources/alignmentforum"
	"github.com/meridian-labs/safekb-cli/internal/sources/arxiv"
	"github.com/meridian-labs/safekb-cli/internal/sources/incidents"
	"github.com/meridian-labs/safekb-cli/internal/sources/localfiles"
	"github.com/meridian-labs/safekb-cli/internal/sources/webfetch"
	"github.com/meridian-labs/safekb-cli/internal/sources/website"
)

// BuilderFunc creates an ingestion source from a registry entry.
type BuilderFunc func(entry domain.Source) (driven.IngestionSource, error)

// Factory resolves registry entries to ingestion sources by kind.
type Factory struct {
	builders map[string]BuilderFunc
}

var _ driven.SourceFactory = (*Factory)(nil)

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{builders: make(map[string]BuilderFunc)}
}

// NewDefaultFactory creates a factory with all built-in kinds
// registered, sharing one fetcher across web sources.
func NewDefaultFactory(fetcher *webfetch.Fetcher) *Factory {
	f := NewFactory()
	f.Register(website.Kind, func(entry domain.Source) (driven.IngestionSource, error) {
		return website.New(entry, fetcher)
	})
	f.Register(arxiv.Kind, func(entry domain.Source) (driven.IngestionSource, error) {
		return arxiv.New(entry, fetcher), nil
	})
	f.Register(alignmentforum.Kind, func(entry domain.Source) (driven.IngestionSource, error) {
		return alignmentforum.New(entry, fetcher), nil
	})
	f.Register(incidents.Kind, func(entry domain.Source) (driven.IngestionSource, error) {
		return incidents.New(entry, fetcher), nil
	})
	f.Register(localfiles.Kind, func(entry domain.Source) (driven.IngestionSource, error) {
		return localfiles.New(entry)
	})
	return f
}

// Register adds a builder for a source kind.
func (f *Factory) Register(kind string, builder BuilderFunc) {
	f.builders[kind] = builder
}

// Create returns an ingestion source for the registry entry.
func (f *Factory) Create(_ context.Context, entry domain.Source) (driven.IngestionSource, error) {
	builder, ok := f.builders[entry.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedKind, entry.Kind)
	}
	return builder(entry)
}

// Has reports whether a kind is registered.
func (f *Factory) Has(kind string) bool {
	_, ok := f.builders[kind]
	return ok
}

// Kinds returns all registered kinds, sorted.
func (f *Factory) Kinds() []string {
	kinds := make([]string, 0, len(f.builders))
	for kind := range f.builders {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
