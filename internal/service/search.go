package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chaptermark/chaptermark-server/internal/domain"
	"github.com/chaptermark/chaptermark-server/internal/search"
	"github.com/chaptermark/chaptermark-server/internal/store"
)

// JobService reads chapter history from the store and the search index.
type JobService struct {
	store  *store.Store
	index  *search.SearchIndex
	logger *slog.Logger
}

// NewJobService creates a job history service.
func NewJobService(st *store.Store, index *search.SearchIndex, logger *slog.Logger) *JobService {
	return &JobService{store: st, index: index, logger: logger}
}

// Get returns one job by ID.
func (s *JobService) Get(ctx context.Context, jobID string) (*domain.ChapterJob, error) {
	return s.store.GetJob(ctx, jobID)
}

// List returns jobs newest first.
func (s *JobService) List(ctx context.Context, params store.PaginationParams) (*store.PaginatedResult[*domain.ChapterJob], error) {
	return s.store.ListJobs(ctx, params)
}

// Delete removes a job from the store and the index.
func (s *JobService) Delete(ctx context.Context, jobID string) error {
	if err := s.store.DeleteJob(ctx, jobID); err != nil {
		return err
	}
	if err := s.index.DeleteDocument(jobID); err != nil {
		s.logger.Warn("failed to remove job from search index", "job_id", jobID, "error", err)
	}
	return nil
}

// Search runs a full-text query over video and chapter titles.
func (s *JobService) Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error) {
	return s.index.Search(ctx, params)
}

// DocumentCount returns the number of indexed jobs.
func (s *JobService) DocumentCount() (uint64, error) {
	return s.index.DocumentCount()
}

// ReindexAll rebuilds the search index from every stored job.
func (s *JobService) ReindexAll(ctx context.Context) (int, error) {
	s.logger.Info("starting full reindex")

	if err := s.index.Rebuild(); err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}

	docs := make([]*search.JobDocument, 0, 64)
	for job, err := range s.store.AllJobs(ctx) {
		if err != nil {
			return 0, fmt.Errorf("iterate jobs: %w", err)
		}
		docs = append(docs, search.FromJob(job))
	}

	if err := s.index.IndexDocuments(docs); err != nil {
		return 0, fmt.Errorf("index jobs: %w", err)
	}

	s.logger.Info("reindex complete", "jobs", len(docs))
	return len(docs), nil
}

// BackfillIfNeeded reindexes when the index was created fresh at startup
// while the store already holds jobs.
func (s *JobService) BackfillIfNeeded(ctx context.Context) error {
	if !s.index.Created() {
		return nil
	}
	n, err := s.store.CountJobs(ctx)
	if err != nil {
		return fmt.Errorf("count jobs: %w", err)
	}
	if n == 0 {
		return nil
	}
	_, err = s.ReindexAll(ctx)
	return err
}
