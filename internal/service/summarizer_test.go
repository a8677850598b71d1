package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chaptermark/chaptermark-server/internal/inference"
	"github.com/chaptermark/chaptermark-server/internal/logger"
)

func TestSummarize(t *testing.T) {
	long := strings.Repeat("word ", SummaryThreshold/5+10)

	tests := []struct {
		name      string
		text      string
		response  string
		err       error
		want      string
		wantCalls int
	}{
		{name: "short transcript skips the model", text: "a short one", want: ShortTranscriptNote},
		{name: "long transcript", text: long, response: "  A talk about words.\n", want: "A talk about words.", wantCalls: 1},
		{name: "engine error", text: long, err: errors.New("offline"), want: SummaryPlaceholder, wantCalls: 1},
		{name: "blank output", text: long, response: " \n\t", want: SummaryPlaceholder, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			var seen string
			var opts inference.Options
			cache, h := loadEngine(t, inference.EngineFunc(func(_ context.Context, prompt string, o inference.Options) (string, error) {
				calls++
				seen = prompt
				opts = o
				return tt.response, tt.err
			}))

			s := NewSummarizer(cache, logger.Discard().Logger)
			got := s.Summarize(context.Background(), h, tt.text, "Words")

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCalls, calls)
			if calls > 0 {
				assert.Equal(t, summaryMaxTokens, opts.MaxTokens)
				assert.Contains(t, seen, "Words")
				assert.Less(t, len(seen), SummaryPrefixChars+1000)
			}
		})
	}
}
