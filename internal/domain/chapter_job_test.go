package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chaptermark/chaptermark-server/internal/chapters"
)

func TestNewChapterJob(t *testing.T) {
	in := chapters.TranscriptInput{Text: "hello world", Title: "Demo", DurationSeconds: 600}
	res := &chapters.Result{
		Chapters:    []chapters.Chapter{{Timestamp: "00:00:00", Title: "Intro"}},
		Source:      chapters.SourceModel,
		ModelID:     "asr-10k",
		TargetCount: 3,
	}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))

	job := NewChapterJob("job-1", in, res, JobOriginAPI, now)

	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, 11, job.TranscriptLength)
	assert.Equal(t, time.UTC, job.CreatedAt.Location())
	assert.Equal(t, JobOriginAPI, job.Origin)
	assert.Equal(t, res.Chapters, job.Chapters)
	assert.Equal(t, chapters.SourceModel, job.Source)
	assert.Equal(t, 3, job.TargetCount)
}
