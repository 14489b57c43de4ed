package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSource_Schedulable(t *testing.T) {
	tests := []struct {
		name     string
		source   Source
		expected bool
	}{
		{
			name:     "active poll source is schedulable",
			source:   Source{IsActive: true, IngestionMode: ModePoll},
			expected: true,
		},
		{
			name:     "inactive poll source is not schedulable",
			source:   Source{IsActive: false, IngestionMode: ModePoll},
			expected: false,
		},
		{
			name:     "snapshot source is not schedulable",
			source:   Source{IsActive: true, IngestionMode: ModeSnapshot},
			expected: false,
		},
		{
			name:     "manual source is not schedulable",
			source:   Source{IsActive: true, IngestionMode: ModeManual},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.source.Schedulable())
		})
	}
}
