package domain

import (
	"time"

	"github.com/chaptermark/chaptermark-server/internal/chapters"
)

// JobOrigin records which entry point produced a chapter job.
type JobOrigin string

const (
	JobOriginAPI   JobOrigin = "api"
	JobOriginInbox JobOrigin = "inbox"
	JobOriginCLI   JobOrigin = "cli"
)

// ChapterJob is a persisted pipeline run: the input metadata and the chapters
// that came out.
type ChapterJob struct {
	ID               string             `json:"id"`
	Title            string             `json:"title"`
	DurationSeconds  int                `json:"duration_seconds"`
	TranscriptLength int                `json:"transcript_length"`
	ModelID          string             `json:"model_id"`
	Source           chapters.Source    `json:"source"`
	Reason           string             `json:"reason,omitempty"`
	TargetCount      int                `json:"target_count,omitzero"`
	Summary          string             `json:"summary,omitempty"`
	Chapters         []chapters.Chapter `json:"chapters"`
	Origin           JobOrigin          `json:"origin"`
	CreatedAt        time.Time          `json:"created_at"`
}

// NewChapterJob builds a job record from a pipeline result.
func NewChapterJob(jobID string, in chapters.TranscriptInput, res *chapters.Result, origin JobOrigin, now time.Time) *ChapterJob {
	return &ChapterJob{
		ID:               jobID,
		Title:            in.Title,
		DurationSeconds:  in.DurationSeconds,
		TranscriptLength: len(in.Text),
		ModelID:          res.ModelID,
		Source:           res.Source,
		Reason:           res.Reason,
		TargetCount:      res.TargetCount,
		Summary:          res.Summary,
		Chapters:         res.Chapters,
		Origin:           origin,
		CreatedAt:        now.UTC(),
	}
}
