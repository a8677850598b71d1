package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaptermark/chaptermark-server/internal/chapters"
	domainerrors "github.com/chaptermark/chaptermark-server/internal/errors"
	"github.com/chaptermark/chaptermark-server/internal/inference"
	"github.com/chaptermark/chaptermark-server/internal/logger"
)

// loadEngine returns a cache holding engine under "m" and its handle.
func loadEngine(t *testing.T, engine inference.Engine) (*inference.Cache, *inference.Handle) {
	t.Helper()

	loader := inference.LoaderFunc(func(_ context.Context, _ string, _ inference.LoadConfig) (inference.Engine, error) {
		return engine, nil
	})
	cache := inference.NewCache(loader, inference.CacheConfig{
		Policy:          inference.DefaultPolicy(""),
		LoadTimeout:     time.Second,
		GenerateTimeout: time.Second,
	}, logger.Discard().Logger)
	t.Cleanup(func() { _ = cache.Close() })

	h, err := cache.GetOrLoad(context.Background(), "m")
	require.NoError(t, err)
	return cache, h
}

func TestSynthesize_PassesGenerationSettings(t *testing.T) {
	var got inference.Options
	cache, h := loadEngine(t, inference.EngineFunc(func(_ context.Context, _ string, opts inference.Options) (string, error) {
		got = opts
		return `{"chapters":[{"timestamp":"00:00:00","title":"Intro"}]}`, nil
	}))

	s := NewSynthesizer(cache, 300, 0.4)
	chs, err := s.Synthesize(context.Background(), h, "prompt", 600)
	require.NoError(t, err)

	assert.Equal(t, []chapters.Chapter{{Timestamp: "00:00:00", Title: "Intro"}}, chs)
	assert.Equal(t, 300, got.MaxTokens)
	assert.InDelta(t, 0.4, got.Temperature, 1e-9)
	assert.Equal(t, chapters.SystemPrompt, got.System)
	assert.True(t, got.JSON)
}

func TestSynthesize(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		want     []chapters.Chapter
		wantCode domainerrors.Code
	}{
		{
			name:     "fenced block with prose around it",
			response: "Here you go:\n```json\n{\"chapters\":[{\"timestamp\":\"00:00:10\",\"title\":\"Start\"},{\"timestamp\":\"05:00\",\"title\":\"Middle\"}]}\n```\nEnjoy",
			want: []chapters.Chapter{
				{Timestamp: "00:00:00", Title: "Start"},
				{Timestamp: "00:05:00", Title: "Middle"},
			},
		},
		{
			name:     "bare array",
			response: `[{"timestamp":"00:00:00","title":"A"},{"timestamp":"00:02:00","title":"B"}]`,
			want: []chapters.Chapter{
				{Timestamp: "00:00:00", Title: "A"},
				{Timestamp: "00:02:00", Title: "B"},
			},
		},
		{
			name:     "engine error",
			err:      errors.New("boom"),
			wantCode: domainerrors.CodeLLMCallFailure,
		},
		{
			name:     "no JSON at all",
			response: "I could not do that.",
			wantCode: domainerrors.CodeJSONParseFailure,
		},
		{
			name:     "empty chapter list",
			response: `{"chapters":[]}`,
			wantCode: domainerrors.CodeSchemaValidationFailure,
		},
		{
			name:     "every timestamp past the end",
			response: `{"chapters":[{"timestamp":"02:00:00","title":"Late"}]}`,
			wantCode: domainerrors.CodeSchemaValidationFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache, h := loadEngine(t, inference.EngineFunc(func(context.Context, string, inference.Options) (string, error) {
				return tt.response, tt.err
			}))

			chs, err := NewSynthesizer(cache, 512, 0.7).Synthesize(context.Background(), h, "prompt", 600)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, domainerrors.CodeOf(err))
				assert.True(t, domainerrors.IsSoft(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, chs)
		})
	}
}
