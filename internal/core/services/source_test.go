package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/safekb-cli/internal/adapters/driven/storage/memory"
	"github.com/meridian-labs/safekb-cli/internal/core/domain"
)

func newSourceService() *SourceService {
	return NewSourceService(memory.NewSourceStore(), nil)
}

func TestSourceService_Add_DerivesID(t *testing.T) {
	service := newSourceService()
	ctx := context.Background()

	err := service.Add(ctx, domain.Source{
		Name:         "Anthropic Core Views",
		Kind:         "website",
		CanonicalURL: "https://example.com/views",
		IsActive:     true,
	})
	require.NoError(t, err)

	got, err := service.Get(ctx, "source_anthropic-core-views")
	require.NoError(t, err)
	assert.Equal(t, "Anthropic Core Views", got.Name)
	assert.Equal(t, domain.ModeManual, got.IngestionMode)
	assert.Equal(t, domain.IngestionStatusPending, got.LastIngestionStatus)
}

func TestSourceService_Add_FileSourcePrefix(t *testing.T) {
	service := newSourceService()
	ctx := context.Background()

	err := service.Add(ctx, domain.Source{
		Name:         "Governance Docs",
		Kind:         "file",
		CanonicalURL: "./sources/files",
	})
	require.NoError(t, err)

	_, err = service.Get(ctx, "source_file_governance-docs")
	assert.NoError(t, err)
}

func TestSourceService_Add_Validation(t *testing.T) {
	service := newSourceService()
	ctx := context.Background()

	err := service.Add(ctx, domain.Source{Kind: "website"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = service.Add(ctx, domain.Source{Name: "No Kind"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSourceService_Add_AlreadyExists(t *testing.T) {
	service := newSourceService()
	ctx := context.Background()

	source := domain.Source{Name: "Dup", Kind: "website", CanonicalURL: "https://example.com"}
	require.NoError(t, service.Add(ctx, source))

	err := service.Add(ctx, source)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestSourceService_Update(t *testing.T) {
	service := newSourceService()
	ctx := context.Background()

	require.NoError(t, service.Add(ctx, domain.Source{Name: "Site", Kind: "website", CanonicalURL: "https://a.example"}))

	got, err := service.Get(ctx, "source_site")
	require.NoError(t, err)

	got.CanonicalURL = "https://b.example"
	require.NoError(t, service.Update(ctx, *got))

	updated, err := service.Get(ctx, "source_site")
	require.NoError(t, err)
	assert.Equal(t, "https://b.example", updated.CanonicalURL)
}

func TestSourceService_Update_NotFound(t *testing.T) {
	service := newSourceService()

	err := service.Update(context.Background(), domain.Source{ID: "source_missing", Name: "x", Kind: "website"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSourceService_Remove(t *testing.T) {
	service := newSourceService()
	ctx := context.Background()

	require.NoError(t, service.Add(ctx, domain.Source{Name: "Gone", Kind: "website", CanonicalURL: "https://x.example"}))
	require.NoError(t, service.Remove(ctx, "source_gone"))

	_, err := service.Get(ctx, "source_gone")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, service.Remove(ctx, "source_gone"), domain.ErrNotFound)
}

func TestSourceService_SetActive(t *testing.T) {
	service := newSourceService()
	ctx := context.Background()

	require.NoError(t, service.Add(ctx, domain.Source{Name: "Toggle", Kind: "website", CanonicalURL: "https://x.example", IsActive: true}))

	require.NoError(t, service.SetActive(ctx, "source_toggle", false))
	got, err := service.Get(ctx, "source_toggle")
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	require.NoError(t, service.SetActive(ctx, "source_toggle", true))
	got, err = service.Get(ctx, "source_toggle")
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestSourceID(t *testing.T) {
	assert.Equal(t, "source_ai-safety-papers", SourceID("AI Safety Papers", "arxiv"))
	assert.Equal(t, "source_file_local-notes", SourceID("Local Notes", "file"))
}
