// Package fake provides a deterministic embedding service for tests and
// offline development. Vectors are derived from a SHA-256 hash of the
// input text and normalised to unit length, so identical texts always
// embed identically and similarity scores are stable across runs.
package fake

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/meridian-labs/safekb-cli/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultDimensions matches the common OpenAI embedding size so fake
// vectors are drop-in compatible with stored real ones.
const DefaultDimensions = 1536

// ModelName is the pseudo model identifier reported by this service.
const ModelName = "fake-sha256"

// EmbeddingService generates deterministic pseudo-embeddings.
type EmbeddingService struct {
	dimensions int
}

// NewEmbeddingService creates a fake embedding service.
// A non-positive dimensions value falls back to DefaultDimensions.
func NewEmbeddingService(dimensions int) *EmbeddingService {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &EmbeddingService{dimensions: dimensions}
}

// Embed generates a deterministic unit vector for the given text.
func (s *EmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	return s.vector(text), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (s *EmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = s.vector(text)
	}
	return embeddings, nil
}

// vector expands the text hash into a normalised vector by chaining
// SHA-256 over a counter, eight float samples per digest.
func (s *EmbeddingService) vector(text string) []float32 {
	seed := sha256.Sum256([]byte(text))

	values := make([]float64, s.dimensions)
	var counter uint64
	var block [32]byte
	for i := 0; i < s.dimensions; i++ {
		if i%8 == 0 {
			var input [40]byte
			copy(input[:32], seed[:])
			binary.LittleEndian.PutUint64(input[32:], counter)
			block = sha256.Sum256(input[:])
			counter++
		}
		sample := binary.LittleEndian.Uint32(block[(i%8)*4:])
		values[i] = float64(sample) / float64(math.MaxUint32)
	}

	var norm float64
	for _, v := range values {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}

	embedding := make([]float32, s.dimensions)
	for i, v := range values {
		embedding[i] = float32(v / norm)
	}
	return embedding
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the pseudo model identifier.
func (s *EmbeddingService) ModelName() string {
	return ModelName
}

// Ping always succeeds; there is no backing service.
func (s *EmbeddingService) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
