// Package incidents ingests entries from the AI Incident Database
// JSON API.
package incidents

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/sources/webfetch"
	"github.com/meridian-labs/safekb-cli/internal/textutil"
)

// Kind is the registry kind handled by this package.
const Kind = "incidents"

const (
	// SourceName is the ingestion source name on documents and ledger
	// entries.
	SourceName = "incidents_aiid"

	// DefaultBaseURL is the incident database API endpoint.
	DefaultBaseURL = "https://incidentdatabase.ai/api"

	citationURL = "https://incidentdatabase.ai/cite/%d"

	defaultDiscoverLimit = 50
	abstractRunes        = 500
)

// Option configures a Source.
type Option func(*Source)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(s *Source) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// Source ingests incident reports.
type Source struct {
	entry   domain.Source
	fetcher *webfetch.Fetcher
	baseURL string
}

// New creates an incident database ingestion source.
func New(entry domain.Source, fetcher *webfetch.Fetcher, opts ...Option) *Source {
	s := &Source{
		entry:   entry,
		fetcher: fetcher,
		baseURL: DefaultBaseURL,
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

// Discover lists the most recent incidents.
func (s *Source) Discover(ctx context.Context, limit int) ([]domain.SourceRecord, error) {
	if limit <= 0 {
		limit = defaultDiscoverLimit
	}

	result, err := s.fetcher.Fetch(ctx, fmt.Sprintf("%s/incidents?limit=%d", s.baseURL, limit))
	if err != nil {
		return nil, fmt.Errorf("listing incidents: %w", err)
	}

	var listed []incident
	if err := json.Unmarshal(result.Body, &listed); err != nil {
		return nil, fmt.Errorf("parsing incident list: %w", err)
	}

	records := make([]domain.SourceRecord, 0, len(listed))
	for _, inc := range listed {
		if inc.IncidentID <= 0 {
			continue
		}
		records = append(records, domain.SourceRecord{
			Source:     SourceName,
			ExternalID: strconv.Itoa(inc.IncidentID),
			Status:     domain.RecordStatusNew,
		})
	}

	return records, nil
}

// Fetch retrieves a single incident and builds its document.
func (s *Source) Fetch(ctx context.Context, record domain.SourceRecord) (*domain.Document, error) {
	id, err := strconv.Atoi(record.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("%w: incident id %q", domain.ErrInvalidInput, record.ExternalID)
	}

	result, err := s.fetcher.Fetch(ctx, fmt.Sprintf("%s/incidents/%d", s.baseURL, id))
	if err != nil {
		return nil, fmt.Errorf("fetching incident %d: %w", id, err)
	}

	var inc incident
	if err := json.Unmarshal(result.Body, &inc); err != nil {
		return nil, fmt.Errorf("parsing incident %d: %w", id, err)
	}
	if inc.IncidentID <= 0 {
		return nil, fmt.Errorf("incident %d: %w", id, domain.ErrNotFound)
	}

	return s.buildDocument(inc)
}

func (s *Source) Close() error {
	return nil
}

func (s *Source) buildDocument(inc incident) (*domain.Document, error) {
	var sb strings.Builder
	sb.WriteString(inc.Description)
	for _, report := range inc.Reports {
		sb.WriteString("\n\n")
		if report.Title != "" {
			sb.WriteString(report.Title)
			sb.WriteString("\n")
		}
		sb.WriteString(report.Text)
	}

	text := textutil.CleanText(sb.String())
	if text == "" {
		return nil, fmt.Errorf("%w: incident %d", domain.ErrEmptyContent, inc.IncidentID)
	}

	url := fmt.Sprintf(citationURL, inc.IncidentID)
	doc := &domain.Document{
		ExternalID: strconv.Itoa(inc.IncidentID),
		Source:     SourceName,
		SourceID:   s.entry.ID,
		Title:      textutil.NormalizeWhitespace(inc.Title),
		URL:        url,
		Abstract:   textutil.Truncate(text, abstractRunes),
		Text:       text,
		RawURI:     url,
		Checksum:   textutil.SHA256Text(text),
		RiskAreas:  inc.HarmedParties,
		Metadata: map[string]any{
			"incident_id": inc.IncidentID,
			"deployers":   inc.Deployers,
			"developers":  inc.Developers,
		},
	}
	if ts, err := time.Parse("2006-01-02", inc.Date); err == nil {
		doc.PublishedAt = ts
	}
	return doc, nil
}

type incident struct {
	IncidentID    int      `json:"incident_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Date          string   `json:"date"`
	Deployers     []string `json:"alleged_deployer"`
	Developers    []string `json:"alleged_developer"`
	HarmedParties []string `json:"alleged_harmed_parties"`
	Reports       []struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"reports"`
}
