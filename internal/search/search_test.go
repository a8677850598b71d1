package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaptermark/chaptermark-server/internal/chapters"
	"github.com/chaptermark/chaptermark-server/internal/domain"
)

func setupTestIndex(t *testing.T) *SearchIndex {
	t.Helper()

	index, err := NewSearchIndex(Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func job(id, title string, source chapters.Source, created time.Time, chapterTitles ...string) *domain.ChapterJob {
	chs := make([]chapters.Chapter, len(chapterTitles))
	for i, ct := range chapterTitles {
		chs[i] = chapters.Chapter{Timestamp: chapters.FormatTimestamp(i * 60), Title: ct}
	}
	return &domain.ChapterJob{
		ID:              id,
		Title:           title,
		DurationSeconds: 900,
		ModelID:         "asr-10k",
		Source:          source,
		Chapters:        chs,
		CreatedAt:       created,
	}
}

func seed(t *testing.T, index *SearchIndex) {
	t.Helper()

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	docs := []*JobDocument{
		FromJob(job("job-surf", "Surfing for Beginners", chapters.SourceModel, base,
			"Choosing a board", "Paddling technique", "Catching waves")),
		FromJob(job("job-bread", "Sourdough Basics", chapters.SourceModel, base.Add(time.Hour),
			"Feeding the starter", "Shaping the loaf")),
		FromJob(job("job-fallback", "Untitled upload", chapters.SourceFallback, base.Add(2*time.Hour),
			"Introduction", "Main Content", "Conclusion")),
	}
	require.NoError(t, index.IndexDocuments(docs))
}

func TestNewSearchIndex(t *testing.T) {
	index := setupTestIndex(t)

	assert.True(t, index.Created())
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNewSearchIndex_ReopensAndRebuildsOnVersionChange(t *testing.T) {
	dir := t.TempDir()

	index, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index.IndexDocument(FromJob(job("job-1", "Title", chapters.SourceModel, time.Now(), "A"))))
	require.NoError(t, index.Close())

	index, err = NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	assert.False(t, index.Created())
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	require.NoError(t, index.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "chapters.version"), []byte("0"), 0o644))

	index, err = NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer index.Close()
	assert.True(t, index.Created())
	count, err = index.DocumentCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSearch_ByTitle(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), SearchParams{Query: "surfing", Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "job-surf", res.Hits[0].ID)
	assert.Equal(t, "Surfing for Beginners", res.Hits[0].Title)
	assert.Len(t, res.Hits[0].ChapterTitles, 3)
}

func TestSearch_ByChapterTitle(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), SearchParams{Query: "starter", Limit: 10, Highlight: true})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "job-bread", res.Hits[0].ID)
	assert.Contains(t, res.Hits[0].Highlights, "chapter_titles")
}

func TestSearch_Filters(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), SearchParams{Source: "fallback", Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "job-fallback", res.Hits[0].ID)

	res, err = index.Search(context.Background(), SearchParams{ModelID: "asr-1k", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestSearch_RecentSort(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), SearchParams{SortBy: "recent"})
	require.NoError(t, err)
	require.Len(t, res.Hits, 3)
	assert.Equal(t, "job-fallback", res.Hits[0].ID)
	assert.Equal(t, "job-surf", res.Hits[2].ID)
}

func TestDeleteAndRebuild(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	require.NoError(t, index.DeleteDocument("job-surf"))
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	require.NoError(t, index.Rebuild())
	count, err = index.DocumentCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestInMemoryIndex(t *testing.T) {
	index, err := NewSearchIndex(Options{})
	require.NoError(t, err)
	defer index.Close()

	seed(t, index)
	res, err := index.Search(context.Background(), SearchParams{Query: "sourdough"})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
}
