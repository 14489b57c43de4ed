// Package alignmentforum ingests posts through the Alignment Forum
// GraphQL API.
//
// Discovery lists the newest posts; fetching reuses the discovered
// post bodies and falls back to a by-ID query for ledger retries.
package alignmentforum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/sources/webfetch"
	"github.com/meridian-labs/safekb-cli/internal/textutil"
)

// Kind is the registry kind handled by this package.
const Kind = "alignmentforum"

const (
	// SourceName is the ingestion source name on documents and ledger
	// entries.
	SourceName = "alignment_forum"

	// DefaultEndpoint is the public GraphQL endpoint.
	DefaultEndpoint = "https://www.alignmentforum.org/graphql"

	defaultDiscoverLimit = 20
	abstractRunes        = 500
)

const listPostsQuery = `{
  posts(input: {terms: {view: "new", limit: %d}}) {
    results {
      _id
      title
      pageUrl
      postedAt
      htmlBody
      user { displayName }
      coauthors { displayName }
      tags { name }
    }
  }
}`

const getPostQuery = `{
  post(input: {selector: {_id: %q}}) {
    result {
      _id
      title
      pageUrl
      postedAt
      htmlBody
      user { displayName }
      coauthors { displayName }
      tags { name }
    }
  }
}`

// Option configures a Source.
type Option func(*Source)

// WithEndpoint overrides the GraphQL endpoint.
func WithEndpoint(endpoint string) Option {
	return func(s *Source) {
		s.endpoint = endpoint
	}
}

// Source ingests recent Alignment Forum posts.
type Source struct {
	entry    domain.Source
	fetcher  *webfetch.Fetcher
	endpoint string

	mu    sync.Mutex
	posts map[string]post
}

// New creates an Alignment Forum ingestion source.
func New(entry domain.Source, fetcher *webfetch.Fetcher, opts ...Option) *Source {
	s := &Source{
		entry:    entry,
		fetcher:  fetcher,
		endpoint: DefaultEndpoint,
		posts:    make(map[string]post),
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

// Discover lists the newest posts.
func (s *Source) Discover(ctx context.Context, limit int) ([]domain.SourceRecord, error) {
	if limit <= 0 {
		limit = defaultDiscoverLimit
	}

	var resp struct {
		Data struct {
			Posts struct {
				Results []post `json:"results"`
			} `json:"posts"`
		} `json:"data"`
	}
	if err := s.query(ctx, fmt.Sprintf(listPostsQuery, limit), &resp); err != nil {
		return nil, err
	}

	results := resp.Data.Posts.Results
	records := make([]domain.SourceRecord, 0, len(results))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range results {
		if p.ID == "" {
			continue
		}
		s.posts[p.ID] = p
		records = append(records, domain.SourceRecord{
			Source:     SourceName,
			ExternalID: p.ID,
			Status:     domain.RecordStatusNew,
		})
	}

	return records, nil
}

// Fetch builds a document from a discovered post, querying by ID when
// the post was not part of the current discovery pass.
func (s *Source) Fetch(ctx context.Context, record domain.SourceRecord) (*domain.Document, error) {
	s.mu.Lock()
	p, ok := s.posts[record.ExternalID]
	s.mu.Unlock()

	if !ok {
		var resp struct {
			Data struct {
				Post struct {
					Result *post `json:"result"`
				} `json:"post"`
			} `json:"data"`
		}
		if err := s.query(ctx, fmt.Sprintf(getPostQuery, record.ExternalID), &resp); err != nil {
			return nil, err
		}
		if resp.Data.Post.Result == nil {
			return nil, fmt.Errorf("post %s: %w", record.ExternalID, domain.ErrNotFound)
		}
		p = *resp.Data.Post.Result
	}

	return s.buildDocument(p)
}

func (s *Source) Close() error {
	return nil
}

func (s *Source) query(ctx context.Context, queryText string, out any) error {
	payload, err := json.Marshal(map[string]string{"query": queryText})
	if err != nil {
		return fmt.Errorf("encoding query: %w", err)
	}

	body, err := s.fetcher.Post(ctx, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("querying forum API: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing forum response: %w", err)
	}
	return nil
}

func (s *Source) buildDocument(p post) (*domain.Document, error) {
	text := textutil.CleanText(p.HTMLBody)
	if text == "" {
		return nil, fmt.Errorf("%w: post %s", domain.ErrEmptyContent, p.ID)
	}

	authors := make([]string, 0, 1+len(p.Coauthors))
	if name := strings.TrimSpace(p.User.DisplayName); name != "" {
		authors = append(authors, name)
	}
	for _, co := range p.Coauthors {
		if name := strings.TrimSpace(co.DisplayName); name != "" {
			authors = append(authors, name)
		}
	}

	topics := make([]string, 0, len(p.Tags))
	for _, tag := range p.Tags {
		if tag.Name != "" {
			topics = append(topics, tag.Name)
		}
	}

	doc := &domain.Document{
		ExternalID: p.ID,
		Source:     SourceName,
		SourceID:   s.entry.ID,
		Title:      textutil.NormalizeWhitespace(p.Title),
		URL:        p.PageURL,
		Authors:    authors,
		Abstract:   textutil.Truncate(text, abstractRunes),
		Text:       text,
		RawURI:     p.PageURL,
		Checksum:   textutil.SHA256Text(text),
		Topics:     topics,
		Metadata:   map[string]any{"post_id": p.ID},
	}
	if ts, err := time.Parse(time.RFC3339, p.PostedAt); err == nil {
		doc.PublishedAt = ts
	}
	return doc, nil
}

type forumUser struct {
	DisplayName string `json:"displayName"`
}

type post struct {
	ID        string      `json:"_id"`
	Title     string      `json:"title"`
	PageURL   string      `json:"pageUrl"`
	PostedAt  string      `json:"postedAt"`
	HTMLBody  string      `json:"htmlBody"`
	User      forumUser   `json:"user"`
	Coauthors []forumUser `json:"coauthors"`
	Tags      []struct {
		Name string `json:"name"`
	} `json:"tags"`
}
