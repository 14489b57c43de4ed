// Package localfiles ingests documents from a directory on disk.
//
// Discovery walks the directory for supported file types; fetching
// reads and cleans each file, shelling out to pdftotext for PDFs.
// The directory can also be watched for changes to trigger
// re-ingestion.
package localfiles

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/textutil"
)

// Kind is the registry kind handled by this package.
const Kind = "file"

// DefaultDir is the conventional drop directory for local documents.
const DefaultDir = "sources/files"

const (
	abstractRunes = 500

	// Lines longer than this are body text, not titles.
	maxTitleLen = 200
)

// allowedSuffixes are the file types the source will ingest.
var allowedSuffixes = map[string]bool{
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
	".pdf":  true,
}

// Option configures a Source.
type Option func(*Source)

// WithRunner overrides the command runner used for pdftotext.
func WithRunner(runner CommandRunner) Option {
	return func(s *Source) {
		s.runner = runner
	}
}

// Source ingests supported files from a directory.
type Source struct {
	entry  domain.Source
	dir    string
	runner CommandRunner
}

// New creates a local file ingestion source. The directory comes from
// the registry entry's "local_path" metadata key, falling back to the
// canonical URL interpreted as a relative path.
func New(entry domain.Source, opts ...Option) (*Source, error) {
	dir := ""
	if p, ok := entry.Metadata["local_path"].(string); ok && p != "" {
		dir = p
	} else if entry.CanonicalURL != "" {
		dir = strings.TrimPrefix(entry.CanonicalURL, "./")
	}
	if dir == "" {
		return nil, fmt.Errorf("%w: file source %q has no directory", domain.ErrInvalidInput, entry.Name)
	}

	s := &Source{
		entry:  entry,
		dir:    dir,
		runner: execRunner{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Source) Name() string {
	return domain.Slugify(s.entry.Name)
}

func (s *Source) Registry() domain.Source {
	return s.entry
}

// Dir returns the watched directory.
func (s *Source) Dir() string {
	return s.dir
}

// Discover walks the directory and returns one candidate per
// supported file, ordered by path.
func (s *Source) Discover(_ context.Context, limit int) ([]domain.SourceRecord, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading source directory %s: %w", s.dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, s.dir)
	}

	var paths []string
	err = filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !allowedSuffixes[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking source directory %s: %w", s.dir, err)
	}

	sort.Strings(paths)
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}

	records := make([]domain.SourceRecord, 0, len(paths))
	for _, rel := range paths {
		records = append(records, domain.SourceRecord{
			Source:     s.Name(),
			ExternalID: rel,
			Status:     domain.RecordStatusNew,
		})
	}

	return records, nil
}

// Fetch reads a discovered file and builds its document.
func (s *Source) Fetch(ctx context.Context, record domain.SourceRecord) (*domain.Document, error) {
	path := filepath.Join(s.dir, filepath.FromSlash(record.ExternalID))

	var content string
	var err error
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		content, err = s.pdfText(ctx, path)
	} else {
		var raw []byte
		raw, err = os.ReadFile(path)
		content = string(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	text := textutil.CleanText(content)
	if text == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyContent, path)
	}

	return &domain.Document{
		ExternalID: record.ExternalID,
		Source:     s.Name(),
		SourceID:   s.entry.ID,
		Title:      extractTitle(content, path),
		Abstract:   textutil.Truncate(text, abstractRunes),
		Text:       text,
		RawURI:     path,
		Checksum:   textutil.SHA256Text(text),
		Metadata: map[string]any{
			"local_path": path,
			"format":     strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		},
	}, nil
}

func (s *Source) Close() error {
	return nil
}

// pdfText extracts the text layer of a PDF with pdftotext.
func (s *Source) pdfText(ctx context.Context, path string) (string, error) {
	if err := CheckPDFToolAvailable(); err != nil {
		return "", err
	}

	out, err := s.runner.Run(ctx, "pdftotext", "-layout", "-nopgbrk", path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	return string(out), nil
}

// extractTitle returns the first short non-empty line of the content.
// HTML files use the markdown/tag-stripped form; everything falls back
// to the filename with underscores replaced by spaces.
func extractTitle(content, path string) string {
	for _, line := range strings.Split(content, "\n") {
		line = textutil.CleanText(line)
		line = strings.TrimLeft(line, "# ")
		if line == "" || len(line) > maxTitleLen {
			continue
		}
		return line
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.ReplaceAll(base, "_", " ")
}
