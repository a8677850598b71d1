// Package search provides full-text search over generated chapters using
// Bleve. Each chapter job is one document holding the video title and every
// chapter title.
package search

import (
	"time"

	"github.com/chaptermark/chaptermark-server/internal/domain"
)

// JobDocument is the indexed form of a chapter job.
type JobDocument struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	ChapterTitles []string  `json:"chapter_titles"`
	ModelID       string    `json:"model_id"`
	Source        string    `json:"source"`
	Duration      int       `json:"duration"`
	ChapterCount  int       `json:"chapter_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// FromJob builds a search document from a persisted job.
func FromJob(job *domain.ChapterJob) *JobDocument {
	titles := make([]string, len(job.Chapters))
	for i, ch := range job.Chapters {
		titles[i] = ch.Title
	}
	return &JobDocument{
		ID:            job.ID,
		Title:         job.Title,
		ChapterTitles: titles,
		ModelID:       job.ModelID,
		Source:        string(job.Source),
		Duration:      job.DurationSeconds,
		ChapterCount:  len(job.Chapters),
		CreatedAt:     job.CreatedAt,
	}
}

// ToMap converts the document to the field names the mapping declares.
func (d *JobDocument) ToMap() map[string]any {
	return map[string]any{
		"id":             d.ID,
		"title":          d.Title,
		"chapter_titles": d.ChapterTitles,
		"model_id":       d.ModelID,
		"source":         d.Source,
		"duration":       float64(d.Duration),
		"chapter_count":  float64(d.ChapterCount),
		"created_at":     d.CreatedAt,
	}
}
