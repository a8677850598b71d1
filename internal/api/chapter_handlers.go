package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/chaptermark/chaptermark-server/internal/chapters"
	"github.com/chaptermark/chaptermark-server/internal/domain"
	"github.com/chaptermark/chaptermark-server/internal/search"
	"github.com/chaptermark/chaptermark-server/internal/service"
	"github.com/chaptermark/chaptermark-server/internal/store"
)

func (s *Server) registerChapterRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "generateChapters",
		Method:      http.MethodPost,
		Path:        "/api/v1/chapters",
		Summary:     "Generate chapters",
		Description: "Runs the chapter pipeline on a transcript. Model failures fall back to evenly spaced chapters instead of failing the request.",
		Tags:        []string{"Chapters"},
		Middlewares: huma.Middlewares{s.rateLimitGenerate},
	}, s.handleGenerateChapters)

	huma.Register(s.api, huma.Operation{
		OperationID: "listChapterJobs",
		Method:      http.MethodGet,
		Path:        "/api/v1/chapters",
		Summary:     "List chapter jobs",
		Description: "Returns stored jobs, newest first, with cursor pagination",
		Tags:        []string{"Chapters"},
	}, s.handleListJobs)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchChapterJobs",
		Method:      http.MethodGet,
		Path:        "/api/v1/chapters/search",
		Summary:     "Search chapter jobs",
		Description: "Full-text search over video titles and chapter titles",
		Tags:        []string{"Chapters"},
	}, s.handleSearchJobs)

	huma.Register(s.api, huma.Operation{
		OperationID: "getChapterJob",
		Method:      http.MethodGet,
		Path:        "/api/v1/chapters/{id}",
		Summary:     "Get chapter job",
		Tags:        []string{"Chapters"},
	}, s.handleGetJob)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteChapterJob",
		Method:        http.MethodDelete,
		Path:          "/api/v1/chapters/{id}",
		Summary:       "Delete chapter job",
		Tags:          []string{"Chapters"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteJob)
}

// === DTOs ===

// GenerateChaptersRequest is the generate request body.
type GenerateChaptersRequest struct {
	Text            string `json:"text" doc:"Full transcript text"`
	Title           string `json:"title,omitempty" doc:"Video title"`
	DurationSeconds int    `json:"durationSeconds,omitempty" doc:"Video duration in seconds"`
	ModelID         string `json:"modelId,omitempty" doc:"Catalog model identifier; defaults to the server default"`
}

// GenerateChaptersInput wraps the generate request for Huma.
type GenerateChaptersInput struct {
	Body GenerateChaptersRequest
}

// ChapterResponse is a pipeline result, as returned by generate and history.
type ChapterResponse struct {
	JobID            string             `json:"jobId" doc:"Job identifier"`
	Title            string             `json:"title,omitempty" doc:"Video title"`
	Chapters         []chapters.Chapter `json:"chapters" doc:"Chapters ordered by timestamp"`
	Source           chapters.Source    `json:"source" doc:"model or fallback"`
	ModelID          string             `json:"modelId" doc:"Model that served the request"`
	TargetCount      int                `json:"targetCount" doc:"Chapter count requested from the model"`
	TranscriptLength int                `json:"transcriptLength" doc:"Transcript length in bytes"`
	VideoDuration    string             `json:"videoDuration" doc:"Video duration as HH:MM:SS"`
	Reason           string             `json:"reason,omitempty" doc:"Error code that caused fallback chapters"`
	Summary          string             `json:"summary,omitempty" doc:"Content summary used in the prompt"`
	Origin           domain.JobOrigin   `json:"origin" doc:"Entry point: api, inbox or cli"`
	CreatedAt        time.Time          `json:"createdAt" doc:"Creation time"`
}

// ChapterOutput wraps a single job for Huma.
type ChapterOutput struct {
	Body ChapterResponse
}

// ListJobsInput contains pagination parameters.
type ListJobsInput struct {
	Limit  int    `query:"limit" minimum:"0" maximum:"500" doc:"Page size (default 50)"`
	Cursor string `query:"cursor" doc:"Cursor from a previous page"`
}

// ListJobsResponse is one page of jobs.
type ListJobsResponse struct {
	Jobs       []ChapterResponse `json:"jobs" doc:"Jobs, newest first"`
	NextCursor string            `json:"nextCursor,omitempty" doc:"Cursor for the next page"`
	HasMore    bool              `json:"hasMore" doc:"More jobs are available"`
}

// ListJobsOutput wraps the page for Huma.
type ListJobsOutput struct {
	Body ListJobsResponse
}

// SearchJobsInput contains search parameters.
type SearchJobsInput struct {
	Query   string `query:"q" maxLength:"200" doc:"Search text"`
	ModelID string `query:"model" doc:"Only jobs served by this model"`
	Source  string `query:"source" enum:"model,fallback" doc:"Only model or fallback results"`
	Sort    string `query:"sort" enum:"relevance,recent" doc:"Sort order (default relevance)"`
	Limit   int    `query:"limit" minimum:"0" maximum:"100" doc:"Max results (default 20)"`
	Offset  int    `query:"offset" minimum:"0" doc:"Pagination offset"`
}

// SearchJobsOutput wraps the search result for Huma.
type SearchJobsOutput struct {
	Body *search.SearchResult
}

// JobIDInput addresses a single job.
type JobIDInput struct {
	ID string `path:"id" doc:"Job ID"`
}

// === Handlers ===

func (s *Server) handleGenerateChapters(ctx context.Context, input *GenerateChaptersInput) (*ChapterOutput, error) {
	job, err := s.services.Chapters.ProduceChapters(ctx, service.ChapterRequest{
		Text:            input.Body.Text,
		Title:           input.Body.Title,
		DurationSeconds: input.Body.DurationSeconds,
		ModelID:         input.Body.ModelID,
		Origin:          domain.JobOriginAPI,
	})
	if err != nil {
		return nil, err
	}
	return &ChapterOutput{Body: toChapterResponse(job)}, nil
}

func (s *Server) handleListJobs(ctx context.Context, input *ListJobsInput) (*ListJobsOutput, error) {
	page, err := s.services.Jobs.List(ctx, store.PaginationParams{Limit: input.Limit, Cursor: input.Cursor})
	if err != nil {
		return nil, err
	}

	resp := ListJobsResponse{
		Jobs:       make([]ChapterResponse, len(page.Items)),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
	for i, job := range page.Items {
		resp.Jobs[i] = toChapterResponse(job)
	}
	return &ListJobsOutput{Body: resp}, nil
}

func (s *Server) handleSearchJobs(ctx context.Context, input *SearchJobsInput) (*SearchJobsOutput, error) {
	params := search.DefaultSearchParams()
	params.Query = input.Query
	params.ModelID = input.ModelID
	params.Source = input.Source
	params.Offset = input.Offset
	if input.Limit > 0 {
		params.Limit = input.Limit
	}
	if input.Sort != "" {
		params.SortBy = input.Sort
	}

	result, err := s.services.Jobs.Search(ctx, params)
	if err != nil {
		s.logger.Error("search failed", "query", input.Query, "error", err)
		return nil, err
	}
	return &SearchJobsOutput{Body: result}, nil
}

func (s *Server) handleGetJob(ctx context.Context, input *JobIDInput) (*ChapterOutput, error) {
	job, err := s.services.Jobs.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ChapterOutput{Body: toChapterResponse(job)}, nil
}

func (s *Server) handleDeleteJob(ctx context.Context, input *JobIDInput) (*struct{}, error) {
	if err := s.services.Jobs.Delete(ctx, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func toChapterResponse(job *domain.ChapterJob) ChapterResponse {
	chs := job.Chapters
	if chs == nil {
		chs = []chapters.Chapter{}
	}
	return ChapterResponse{
		JobID:            job.ID,
		Title:            job.Title,
		Chapters:         chs,
		Source:           job.Source,
		ModelID:          job.ModelID,
		TargetCount:      job.TargetCount,
		TranscriptLength: job.TranscriptLength,
		VideoDuration:    chapters.FormatTimestamp(job.DurationSeconds),
		Reason:           job.Reason,
		Summary:          job.Summary,
		Origin:           job.Origin,
		CreatedAt:        job.CreatedAt,
	}
}
