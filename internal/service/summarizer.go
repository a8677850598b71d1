package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/chaptermark/chaptermark-server/internal/chapters"
	"github.com/chaptermark/chaptermark-server/internal/inference"
)

const (
	// SummaryThreshold is the transcript length above which a summary is
	// requested from the model.
	SummaryThreshold = 3000
	// SummaryPrefixChars bounds how much transcript the summary prompt sees.
	SummaryPrefixChars = 2000

	summaryMaxTokens   = 200
	summaryTemperature = 0.3

	// SummaryPlaceholder stands in for a summary the model could not produce.
	SummaryPlaceholder = "content covers multiple topics in sequence"
	// ShortTranscriptNote is used instead of a summary for short transcripts.
	ShortTranscriptNote = "full transcript analyzed"
)

// Summarizer asks a loaded model for a short description of a transcript.
type Summarizer struct {
	cache  *inference.Cache
	logger *slog.Logger
}

// NewSummarizer creates a summarizer over the model cache.
func NewSummarizer(cache *inference.Cache, logger *slog.Logger) *Summarizer {
	return &Summarizer{cache: cache, logger: logger}
}

// Summarize returns the text that fills the prompt's content summary line.
// Short transcripts get ShortTranscriptNote without a model call. It never
// fails: any model problem yields SummaryPlaceholder.
func (s *Summarizer) Summarize(ctx context.Context, h *inference.Handle, text, title string) string {
	if len(text) <= SummaryThreshold {
		return ShortTranscriptNote
	}

	prompt := chapters.BuildSummaryPrompt(prefix(text, SummaryPrefixChars), title)
	out, err := s.cache.Generate(ctx, h, prompt, inference.Options{
		MaxTokens:   summaryMaxTokens,
		Temperature: summaryTemperature,
	})
	if err != nil {
		s.logger.Warn("summary generation failed, using placeholder",
			"model_id", h.ModelID(),
			"error", err,
		)
		return SummaryPlaceholder
	}

	out = strings.TrimSpace(out)
	if out == "" {
		s.logger.Warn("model returned empty summary, using placeholder", "model_id", h.ModelID())
		return SummaryPlaceholder
	}
	return out
}

// prefix returns at most n bytes of s without splitting a UTF-8 sequence.
func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
