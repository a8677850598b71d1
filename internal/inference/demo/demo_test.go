package demo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaptermark/chaptermark-server/internal/chapters"
	"github.com/chaptermark/chaptermark-server/internal/inference"
)

func TestEngine_ChapterPromptRoundTrip(t *testing.T) {
	eng, err := New().Load(context.Background(), "asr-10k", inference.LoadConfig{})
	require.NoError(t, err)

	prompt := chapters.BuildPrompt(chapters.PromptInput{
		Title:            "Surfing 101",
		DurationSeconds:  900,
		Summary:          "full transcript analyzed",
		TranscriptSample: "welcome to the beach today we talk about boards then paddling then the pop up and finally safety in the lineup",
	})

	raw, err := eng.Complete(context.Background(), prompt, inference.Options{})
	require.NoError(t, err)

	text, err := chapters.ExtractJSON(raw)
	require.NoError(t, err)
	cands, err := chapters.DecodeCandidates(text, 900)
	require.NoError(t, err)
	chs, err := chapters.Normalize(cands, 900)
	require.NoError(t, err)

	require.Len(t, chs, 5)
	assert.Equal(t, "00:00:00", chs[0].Timestamp)
	assert.Equal(t, "00:03:00", chs[1].Timestamp)
	assert.Equal(t, "Welcome to the beach", chs[0].Title)

	again, err := eng.Complete(context.Background(), prompt, inference.Options{})
	require.NoError(t, err)
	assert.Equal(t, raw, again)
}

func TestEngine_EmptySampleUsesPartTitles(t *testing.T) {
	eng, err := New().Load(context.Background(), "m", inference.LoadConfig{})
	require.NoError(t, err)

	raw, err := eng.Complete(context.Background(), chapters.BuildPrompt(chapters.PromptInput{DurationSeconds: 60}), inference.Options{})
	require.NoError(t, err)

	text, err := chapters.ExtractJSON(raw)
	require.NoError(t, err)
	cands, err := chapters.DecodeCandidates(text, 60)
	require.NoError(t, err)
	assert.Equal(t, "Part 1", cands[0].Title)
	assert.Len(t, cands, 3)
}

func TestEngine_SummaryPrompt(t *testing.T) {
	eng, err := New().Load(context.Background(), "m", inference.LoadConfig{})
	require.NoError(t, err)

	out, err := eng.Complete(context.Background(), chapters.BuildSummaryPrompt("boards and wax and leashes", "Gear"), inference.Options{})
	require.NoError(t, err)
	assert.Contains(t, out, "boards and wax and leashes")
}

func TestEngine_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine{}.Complete(ctx, "p", inference.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
