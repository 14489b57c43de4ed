package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchFilters_Empty(t *testing.T) {
	t.Run("zero value is empty", func(t *testing.T) {
		assert.True(t, SearchFilters{}.Empty())
	})

	t.Run("topic filter is not empty", func(t *testing.T) {
		f := SearchFilters{Topics: []string{"alignment"}}
		assert.False(t, f.Empty())
	})

	t.Run("year bound is not empty", func(t *testing.T) {
		f := SearchFilters{YearMin: 2020}
		assert.False(t, f.Empty())
	})

	t.Run("metadata filter is not empty", func(t *testing.T) {
		f := SearchFilters{Metadata: map[string]any{"jurisdiction": "global"}}
		assert.False(t, f.Empty())
	})
}
