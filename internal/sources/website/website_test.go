package website

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/safekb-cli/internal/core/domain"
	"github.com/meridian-labs/safekb-cli/internal/sources/webfetch"
)

func testEntry(url string) domain.Source {
	return domain.Source{
		ID:            "source_anthropic-core-views",
		Name:          "Anthropic Core Views",
		Kind:          Kind,
		CanonicalURL:  url,
		IngestionMode: domain.ModeSnapshot,
		IsActive:      true,
	}
}

func testWebFetcher() *webfetch.Fetcher {
	return webfetch.NewFetcher(webfetch.Config{AllowPrivate: true, RatePerSecond: 1000})
}

func TestNew_RequiresCanonicalURL(t *testing.T) {
	_, err := New(testEntry(""), testWebFetcher())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSource_Discover(t *testing.T) {
	src, err := New(testEntry("https://example.com/views"), testWebFetcher())
	require.NoError(t, err)

	records, err := src.Discover(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "anthropic-core-views", records[0].Source)
	assert.Equal(t, "https://example.com/views", records[0].ExternalID)
	assert.Equal(t, domain.RecordStatusNew, records[0].Status)
}

func TestSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Core Views on AI Safety</title></head>
<body><main><p>We believe careful scaling requires empirical safety research.</p></main></body></html>`))
	}))
	defer srv.Close()

	src, err := New(testEntry(srv.URL), testWebFetcher())
	require.NoError(t, err)

	doc, err := src.Fetch(context.Background(), domain.SourceRecord{
		Source:     src.Name(),
		ExternalID: srv.URL,
	})
	require.NoError(t, err)

	assert.Equal(t, "Core Views on AI Safety", doc.Title)
	assert.Equal(t, srv.URL, doc.URL)
	assert.Equal(t, "source_anthropic-core-views", doc.SourceID)
	assert.Contains(t, doc.Text, "empirical safety research")
	assert.NotEmpty(t, doc.Checksum)
	assert.NotEmpty(t, doc.Abstract)
}

func TestSource_Fetch_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><main></main></body></html>`))
	}))
	defer srv.Close()

	src, err := New(testEntry(srv.URL), testWebFetcher())
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), domain.SourceRecord{ExternalID: srv.URL})
	assert.ErrorIs(t, err, domain.ErrEmptyContent)
}
