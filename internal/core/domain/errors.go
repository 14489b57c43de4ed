package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedKind indicates an unknown ingestion source kind.
	ErrUnsupportedKind = errors.New("unsupported source kind")

	// ErrSourceInactive indicates ingestion was requested for a
	// deactivated source.
	ErrSourceInactive = errors.New("source is inactive")

	// ErrIngestInProgress indicates an ingestion run is already running
	// for the source.
	ErrIngestInProgress = errors.New("ingestion in progress")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Similarity search is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrEmptyContent indicates a fetched item produced no usable text.
	ErrEmptyContent = errors.New("empty content")

	// ErrWatchUnsupported indicates continuous watching was requested
	// for a source kind that cannot report changes.
	ErrWatchUnsupported = errors.New("source does not support watching")
)
