// Package chunker converts document text into overlapping retrieval units.
package chunker

import (
	"fmt"
	"strings"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/textutil"
)

// DefaultChunkSize is the default number of words per chunk.
const DefaultChunkSize = 512

// DefaultChunkOverlap is the default number of overlapping words.
const DefaultChunkOverlap = 80

// Processor splits document text into overlapping word windows.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in words.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in words.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// SplitText splits cleaned text into overlapping word windows.
func (p *Processor) SplitText(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := p.chunkSize - p.overlap
	if step < 1 {
		step = 1
	}

	chunks := make([]string, 0, len(words)/step+1)
	for start := 0; start < len(words); start += step {
		end := start + p.chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}

// BuildChunks cleans the document text and generates Chunk models.
// Chunk IDs are derived from the document ID and chunk index so that
// re-ingesting a document replaces its chunks deterministically.
func (p *Processor) BuildChunks(doc *domain.Document) []domain.Chunk {
	if doc.Text == "" {
		return nil
	}

	normalized := textutil.CleanText(doc.Text)
	bodies := p.SplitText(normalized)

	chunks := make([]domain.Chunk, 0, len(bodies))
	for idx, body := range bodies {
		metadata := map[string]any{"source": doc.Source}
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		chunks = append(chunks, domain.Chunk{
			ID:        fmt.Sprintf("%s_%d", doc.ID, idx),
			DocID:     doc.ID,
			Index:     idx,
			Text:      body,
			Topics:    doc.Topics,
			RiskAreas: doc.RiskAreas,
			Metadata:  metadata,
		})
	}
	return chunks
}
