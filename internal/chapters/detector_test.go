package chapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsGenericName(t *testing.T) {
	generic := []string{
		"Chapter 1",
		"chapter 12",
		"CHAPTER five",
		"Part 2",
		"Section 3",
		"Segment 4",
		"7",
		"...",
		"",
		"   ",
	}

	for _, name := range generic {
		assert.True(t, IsGenericName(name), "expected %q to be generic", name)
	}

	notGeneric := []string{
		"Introduction",
		"Basic Paddling Technique",
		"Chapter One: The Beginning",
		"Q&A",
		"Wrap-up and Next Steps",
	}

	for _, name := range notGeneric {
		assert.False(t, IsGenericName(name), "expected %q to NOT be generic", name)
	}
}

func TestAnalyzeChapters(t *testing.T) {
	tests := []struct {
		name        string
		titles      []string
		wantGeneric int
		wantLow     bool
	}{
		{
			name:        "all placeholders",
			titles:      []string{"Chapter 1", "Chapter 2", "Chapter 3"},
			wantGeneric: 3,
			wantLow:     true,
		},
		{
			name:        "all descriptive",
			titles:      []string{"Intro", "Paddling", "Pop-up"},
			wantGeneric: 0,
			wantLow:     false,
		},
		{
			name:        "half is not over threshold",
			titles:      []string{"Chapter 1", "Paddling", "Chapter 3", "Pop-up"},
			wantGeneric: 2,
			wantLow:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chs := make([]Chapter, len(tt.titles))
			for i, title := range tt.titles {
				chs[i] = Chapter{Timestamp: FormatTimestamp(i * 60), Title: title}
			}

			result := AnalyzeChapters(chs)

			assert.Equal(t, len(tt.titles), result.Total)
			assert.Equal(t, tt.wantGeneric, result.GenericCount)
			assert.Equal(t, tt.wantLow, result.LowQuality)
		})
	}
}

func TestAnalyzeChapters_Empty(t *testing.T) {
	assert.Equal(t, AnalysisResult{}, AnalyzeChapters(nil))
}
