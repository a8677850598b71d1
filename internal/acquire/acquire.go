// Package acquire turns a media reference into transcript text plus duration
// metadata. Downloading and speech recognition happen upstream; sources here
// read what those steps left on disk or in the request.
package acquire

import (
	"context"
	"strings"

	"github.com/chaptermark/chaptermark-server/internal/chapters"
	domainerrors "github.com/chaptermark/chaptermark-server/internal/errors"
)

// Source resolves a reference into a transcript.
type Source interface {
	Acquire(ctx context.Context, ref string) (chapters.TranscriptInput, error)
}

// Inline is a Source whose transcript was supplied directly; the reference
// is ignored.
type Inline chapters.TranscriptInput

// Acquire returns the inline transcript, rejecting blank text.
func (in Inline) Acquire(ctx context.Context, _ string) (chapters.TranscriptInput, error) {
	if err := ctx.Err(); err != nil {
		return chapters.TranscriptInput{}, err
	}
	out := chapters.TranscriptInput(in)
	if err := checkTranscript(out); err != nil {
		return chapters.TranscriptInput{}, err
	}
	return out, nil
}

func checkTranscript(in chapters.TranscriptInput) error {
	if strings.TrimSpace(in.Text) == "" {
		return domainerrors.TranscriptEmpty("transcript is empty")
	}
	return nil
}
