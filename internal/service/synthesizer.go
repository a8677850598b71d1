package service

import (
	"context"

	"github.com/chaptermark/chaptermark-server/internal/chapters"
	domainerrors "github.com/chaptermark/chaptermark-server/internal/errors"
	"github.com/chaptermark/chaptermark-server/internal/inference"
)

// Synthesizer turns a chapter prompt into validated chapters using one model
// call. It reports every failure and never falls back on its own.
type Synthesizer struct {
	cache       *inference.Cache
	maxTokens   int
	temperature float64
}

// NewSynthesizer creates a synthesizer with the given generation settings.
func NewSynthesizer(cache *inference.Cache, maxTokens int, temperature float64) *Synthesizer {
	return &Synthesizer{cache: cache, maxTokens: maxTokens, temperature: temperature}
}

// Synthesize generates, extracts, decodes and normalizes chapters.
//
// Errors carry one of the soft codes: LLM call failure, JSON parse failure or
// schema validation failure (including a normalizer with no survivors).
func (s *Synthesizer) Synthesize(ctx context.Context, h *inference.Handle, prompt string, durationSeconds int) ([]chapters.Chapter, error) {
	raw, err := s.cache.Generate(ctx, h, prompt, inference.Options{
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		System:      chapters.SystemPrompt,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	text, err := chapters.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	cands, err := chapters.DecodeCandidates(text, durationSeconds)
	if err != nil {
		return nil, err
	}

	chs, err := chapters.Normalize(cands, durationSeconds)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeSchemaValidationFailure, "no usable chapters in model response")
	}
	return chs, nil
}
