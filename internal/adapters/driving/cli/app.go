package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/meridian-labs/safekb-cli/internal/adapters/driven/config/file"
	"github.com/meridian-labs/safekb-cli/internal/adapters/driven/embedding/fake"
	"github.com/meridian-labs/safekb-cli/internal/adapters/driven/embedding/ollama"
	"github.com/meridian-labs/safekb-cli/internal/adapters/driven/embedding/openai"
	"github.com/meridian-labs/safekb-cli/internal/adapters/driven/storage/sqlite"
	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/core/ports/driven"
	"github.com/meridian-labs/safekb-cli/internal/core/services"
	"github.com/meridian-labs/safekb-cli/internal/logger"
	"github.com/meridian-labs/safekb-cli/internal/postprocessors/chunker"
	"github.com/meridian-labs/safekb-cli/internal/sources"
	"github.com/meridian-labs/safekb-cli/internal/sources/webfetch"
)

// Configuration keys read from config.toml.
const (
	keyEmbeddingProvider   = "embedding.provider"
	keyEmbeddingModel      = "embedding.model"
	keyEmbeddingAPIKey     = "embedding.api_key"
	keyEmbeddingBaseURL    = "embedding.base_url"
	keyEmbeddingDimensions = "embedding.dimensions"
	keyChunkSize           = "chunker.chunk_size"
	keyChunkOverlap        = "chunker.overlap"
	keyMaxCandidates       = "search.max_candidates"
	keyFetchLimit          = "ingest.fetch_limit"
	keyFetchRatePerSecond  = "ingest.rate_per_second"
	keyIngestIntervalHours = "scheduler.interval_hours"
)

// DefaultEmbeddingDimensions is the vector size used when config does
// not fix one.
const DefaultEmbeddingDimensions = 1536

// app holds resources that need closing on exit.
type app struct {
	store    *sqlite.Store
	embedder driven.EmbeddingService
}

var application *app

// initApp opens storage and config under the data directory and wires
// the core services. Called once before the first command runs.
func initApp() error {
	if application != nil {
		return nil
	}

	dir := dataDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving home directory: %w", err)
		}
		dir = filepath.Join(home, ".safekb")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	cfg, err := file.NewConfigStore(dir)
	if err != nil {
		return fmt.Errorf("opening config store: %w", err)
	}

	store, err := sqlite.NewStore(dir)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	logger.Debug("database: %s", store.Path())

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		store.Close()
		return err
	}

	fetcher := webfetch.NewFetcher(webfetch.Config{
		RatePerSecond: fetchRate(cfg),
	})
	factory := sources.NewDefaultFactory(fetcher)

	chunkOpts := []chunker.Option{chunker.WithChunkSize(cfg.GetInt(keyChunkSize))}
	if _, ok := cfg.Get(keyChunkOverlap); ok {
		chunkOpts = append(chunkOpts, chunker.WithOverlap(cfg.GetInt(keyChunkOverlap)))
	}
	proc := chunker.New(chunkOpts...)

	ingest := services.NewIngestService(
		store.SourceStore(),
		store.DocumentStore(),
		store.RecordStore(),
		factory,
		embedder,
		services.WithChunker(proc),
		services.WithFetchLimit(cfg.GetInt(keyFetchLimit)),
	)

	sourceService = services.NewSourceService(store.SourceStore(), factory)
	ingestOrchestrator = ingest
	retrievalService = services.NewRetrievalService(
		store.DocumentStore(),
		embedder,
		services.WithMaxCandidates(cfg.GetInt(keyMaxCandidates)),
	)
	catalogService = services.NewCatalogService(store.SourceStore(), ingest)
	schedulerService = services.NewScheduler(
		schedulerConfig(cfg),
		store.SchedulerStore(),
		store.SourceStore(),
		ingest,
	)

	application = &app{store: store, embedder: embedder}
	return nil
}

// closeApp releases storage and embedder resources.
func closeApp() {
	if application == nil {
		return
	}
	if application.embedder != nil {
		application.embedder.Close()
	}
	if err := application.store.Close(); err != nil {
		logger.Warn("closing database: %v", err)
	}
	application = nil
}

// buildEmbedder constructs the embedding service named in config.
// Absent configuration falls back to the deterministic local embedder
// so ingestion and search work without external services.
func buildEmbedder(cfg driven.ConfigStore) (driven.EmbeddingService, error) {
	provider := cfg.GetString(keyEmbeddingProvider)
	switch provider {
	case "", "fake":
		dims := cfg.GetInt(keyEmbeddingDimensions)
		if dims <= 0 {
			dims = DefaultEmbeddingDimensions
		}
		return fake.NewEmbeddingService(dims), nil
	case "openai":
		svc, err := openai.NewEmbeddingService(openai.Config{
			APIKey:     cfg.GetString(keyEmbeddingAPIKey),
			BaseURL:    cfg.GetString(keyEmbeddingBaseURL),
			Model:      cfg.GetString(keyEmbeddingModel),
			Dimensions: cfg.GetInt(keyEmbeddingDimensions),
		})
		if err != nil {
			return nil, fmt.Errorf("configuring openai embedder: %w", err)
		}
		return svc, nil
	case "ollama":
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    cfg.GetString(keyEmbeddingBaseURL),
			Model:      cfg.GetString(keyEmbeddingModel),
			Dimensions: cfg.GetInt(keyEmbeddingDimensions),
		}), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}

func fetchRate(cfg driven.ConfigStore) float64 {
	if r := cfg.GetInt(keyFetchRatePerSecond); r > 0 {
		return float64(r)
	}
	return 0
}

func schedulerConfig(cfg driven.ConfigStore) domain.SchedulerConfig {
	interval := time.Duration(cfg.GetInt(keyIngestIntervalHours)) * time.Hour
	return domain.SchedulerConfig{
		Enabled:        true,
		IngestInterval: interval,
	}
}
