// Package arxiv ingests papers from the arXiv Atom API.
//
// Discovery queries the export API for recent submissions matching the
// source's search query; fetching reuses the discovered feed entries,
// falling back to an id_list lookup when a ledger record is retried in
// a later run.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/sources/webfetch"
	"github.com/meridian-labs/safekb-cli/internal/textutil"
)

// Kind is the registry kind handled by this package.
const Kind = "arxiv"

const (
	// SourceName is the ingestion source name on documents and ledger
	// entries.
	SourceName = "arxiv"

	// DefaultBaseURL is the arXiv export API endpoint.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultQuery selects recent AI safety and alignment papers.
	DefaultQuery = `cat:cs.AI AND (all:"ai safety" OR all:alignment)`

	defaultDiscoverLimit = 25
	abstractRunes        = 500
)

// Option configures a Source.
type Option func(*Source)

// WithBaseURL overrides the export API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(s *Source) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// Source ingests papers matching a search query.
type Source struct {
	entry   domain.Source
	fetcher *webfetch.Fetcher
	baseURL string
	query   string

	mu      sync.Mutex
	entries map[string]feedEntry
}

// New creates an arXiv ingestion source. The search query comes from
// the registry entry's "query" metadata key, defaulting to an AI
// safety query.
func New(entry domain.Source, fetcher *webfetch.Fetcher, opts ...Option) *Source {
	query := DefaultQuery
	if q, ok := entry.Metadata["query"].(string); ok && q != "" {
		query = q
	}

	s := &Source{
		entry:   entry,
		fetcher: fetcher,
		baseURL: DefaultBaseURL,
		query:   query,
		entries: make(map[string]feedEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Name() string {
	return SourceName
}

func (s *Source) Registry() domain.Source {
	return s.entry
}

// Discover queries the export API for recent papers matching the
// search query.
func (s *Source) Discover(ctx context.Context, limit int) ([]domain.SourceRecord, error) {
	if limit <= 0 {
		limit = defaultDiscoverLimit
	}

	queryURL := fmt.Sprintf("%s/query?search_query=%s&start=0&max_results=%d&sortBy=submittedDate&sortOrder=descending",
		s.baseURL, url.QueryEscape(s.query), limit)

	feed, err := s.fetchFeed(ctx, queryURL)
	if err != nil {
		return nil, err
	}

	records := make([]domain.SourceRecord, 0, len(feed.Entries))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range feed.Entries {
		id := entry.arxivID()
		if id == "" {
			continue
		}
		s.entries[id] = entry
		records = append(records, domain.SourceRecord{
			Source:     SourceName,
			ExternalID: id,
			Status:     domain.RecordStatusNew,
		})
	}

	return records, nil
}

// Fetch builds a document from a discovered feed entry, looking the
// paper up by ID when it was not part of the current discovery pass.
func (s *Source) Fetch(ctx context.Context, record domain.SourceRecord) (*domain.Document, error) {
	s.mu.Lock()
	entry, ok := s.entries[record.ExternalID]
	s.mu.Unlock()

	if !ok {
		lookupURL := fmt.Sprintf("%s/query?id_list=%s", s.baseURL, url.QueryEscape(record.ExternalID))
		feed, err := s.fetchFeed(ctx, lookupURL)
		if err != nil {
			return nil, err
		}
		if len(feed.Entries) == 0 {
			return nil, fmt.Errorf("paper %s: %w", record.ExternalID, domain.ErrNotFound)
		}
		entry = feed.Entries[0]
	}

	return s.buildDocument(record.ExternalID, entry)
}

func (s *Source) Close() error {
	return nil
}

func (s *Source) fetchFeed(ctx context.Context, queryURL string) (*feed, error) {
	result, err := s.fetcher.Fetch(ctx, queryURL)
	if err != nil {
		return nil, fmt.Errorf("querying arXiv: %w", err)
	}

	var parsed feed
	if err := xml.Unmarshal(result.Body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing arXiv feed: %w", err)
	}
	return &parsed, nil
}

func (s *Source) buildDocument(externalID string, entry feedEntry) (*domain.Document, error) {
	title := textutil.NormalizeWhitespace(entry.Title)
	text := textutil.CleanText(entry.Summary)
	if text == "" {
		return nil, fmt.Errorf("%w: paper %s", domain.ErrEmptyContent, externalID)
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	topics := make([]string, 0, len(entry.Categories))
	for _, c := range entry.Categories {
		if c.Term != "" {
			topics = append(topics, c.Term)
		}
	}

	doc := &domain.Document{
		ExternalID: externalID,
		Source:     SourceName,
		SourceID:   s.entry.ID,
		Title:      title,
		URL:        entry.pageURL(),
		Authors:    authors,
		Abstract:   textutil.Truncate(text, abstractRunes),
		Text:       text,
		RawURI:     entry.ID,
		Checksum:   textutil.SHA256Text(text),
		Topics:     topics,
		Metadata:   map[string]any{"arxiv_id": externalID},
	}
	if ts, err := time.Parse(time.RFC3339, entry.Published); err == nil {
		doc.PublishedAt = ts
	}
	return doc, nil
}

// Atom feed subset returned by the export API.
type feed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []feedEntry `xml:"entry"`
}

type feedEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
	Links []struct {
		Rel  string `xml:"rel,attr"`
		Href string `xml:"href,attr"`
	} `xml:"link"`
}

// arxivID extracts the paper ID from the entry's abs URL
// (e.g. "http://arxiv.org/abs/2401.01234v2" yields "2401.01234v2").
func (e feedEntry) arxivID() string {
	idx := strings.Index(e.ID, "/abs/")
	if idx < 0 {
		return strings.TrimSpace(e.ID)
	}
	return strings.TrimSpace(e.ID[idx+len("/abs/"):])
}

// pageURL prefers the alternate link, falling back to the entry ID.
func (e feedEntry) pageURL() string {
	for _, link := range e.Links {
		if link.Rel == "alternate" && link.Href != "" {
			return link.Href
		}
	}
	return e.ID
}
