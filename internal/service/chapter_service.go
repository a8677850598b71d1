package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/chaptermark/chaptermark-server/internal/acquire"
	"github.com/chaptermark/chaptermark-server/internal/catalog"
	"github.com/chaptermark/chaptermark-server/internal/chapters"
	"github.com/chaptermark/chaptermark-server/internal/domain"
	domainerrors "github.com/chaptermark/chaptermark-server/internal/errors"
	"github.com/chaptermark/chaptermark-server/internal/id"
	"github.com/chaptermark/chaptermark-server/internal/inference"
	"github.com/chaptermark/chaptermark-server/internal/search"
	"github.com/chaptermark/chaptermark-server/internal/validation"
)

// JobRecorder persists finished jobs.
type JobRecorder interface {
	CreateJob(ctx context.Context, job *domain.ChapterJob) error
}

// JobIndexer makes finished jobs searchable.
type JobIndexer interface {
	IndexDocument(doc *search.JobDocument) error
}

// GenerationConfig holds the chapter call's sampling settings.
type GenerationConfig struct {
	MaxTokens   int
	Temperature float64
}

// ChapterRequest is one pipeline invocation.
type ChapterRequest struct {
	Text            string           `json:"text"`
	Title           string           `json:"title" validate:"max=500"`
	DurationSeconds int              `json:"durationSeconds" validate:"gte=0"`
	ModelID         string           `json:"modelId" validate:"max=64"`
	Origin          domain.JobOrigin `json:"-"`
}

func (r ChapterRequest) input() chapters.TranscriptInput {
	return chapters.TranscriptInput{Text: r.Text, Title: r.Title, DurationSeconds: r.DurationSeconds}
}

// ChapterService runs the chapter pipeline: resolve the model, load it,
// summarize, prompt, synthesize, and fall back on recoverable failures.
type ChapterService struct {
	catalog     *catalog.Catalog
	cache       *inference.Cache
	summarizer  *Summarizer
	synthesizer *Synthesizer
	validator   *validation.Validator
	jobs        JobRecorder
	index       JobIndexer
	logger      *slog.Logger
	now         func() time.Time
}

// NewChapterService creates the pipeline. jobs and index may be nil, in which
// case results are returned but not recorded.
func NewChapterService(
	cat *catalog.Catalog,
	cache *inference.Cache,
	gen GenerationConfig,
	validator *validation.Validator,
	jobs JobRecorder,
	index JobIndexer,
	logger *slog.Logger,
) *ChapterService {
	return &ChapterService{
		catalog:     cat,
		cache:       cache,
		summarizer:  NewSummarizer(cache, logger),
		synthesizer: NewSynthesizer(cache, gen.MaxTokens, gen.Temperature),
		validator:   validator,
		jobs:        jobs,
		index:       index,
		logger:      logger,
		now:         time.Now,
	}
}

// ProduceChapters runs the pipeline for one transcript.
//
// Hard failures are returned: an empty transcript, invalid input or unknown
// model, a model that cannot be loaded, or a context that ends before the
// chapters are ready. Recoverable model failures produce fallback chapters
// instead, tagged with the reason.
func (s *ChapterService) ProduceChapters(ctx context.Context, req ChapterRequest) (*domain.ChapterJob, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, domainerrors.TranscriptEmpty("transcript is empty")
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	model, err := s.catalog.Resolve(req.ModelID)
	if err != nil {
		return nil, err
	}

	h, err := s.cache.GetOrLoad(ctx, model.ID)
	if err != nil {
		return nil, err
	}

	in := req.input()
	res, err := s.generate(ctx, h, in)
	if err != nil {
		return nil, err
	}
	// A model call cut short by the caller surfaces as a soft failure; the
	// caller is gone, so neither fall back nor record.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if q := chapters.AnalyzeChapters(res.Chapters); q.LowQuality && !res.IsFallback() {
		s.logger.Info("model produced mostly generic chapter titles",
			"model_id", model.ID,
			"generic", q.GenericCount,
			"total", q.Total,
		)
	}

	jobID, err := id.NewJobID()
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate job id")
	}

	origin := req.Origin
	if origin == "" {
		origin = domain.JobOriginAPI
	}
	job := domain.NewChapterJob(jobID, in, res, origin, s.now())
	s.record(ctx, job)

	s.logger.Info("chapters produced",
		"job_id", job.ID,
		"model_id", model.ID,
		"source", res.Source,
		"chapters", len(res.Chapters),
		"duration", in.DurationSeconds,
	)
	return job, nil
}

func (s *ChapterService) generate(ctx context.Context, h *inference.Handle, in chapters.TranscriptInput) (*chapters.Result, error) {
	summary := s.summarizer.Summarize(ctx, h, in.Text, in.Title)

	prompt := chapters.BuildPrompt(chapters.PromptInput{
		Title:            in.Title,
		DurationSeconds:  in.DurationSeconds,
		Summary:          summary,
		TranscriptSample: chapters.TranscriptSample(in.Text),
	})
	target := chapters.TargetCount(in.DurationSeconds)

	chs, err := s.synthesizer.Synthesize(ctx, h, prompt, in.DurationSeconds)
	if err != nil {
		if !domainerrors.IsSoft(err) {
			return nil, err
		}
		code := domainerrors.CodeOf(err)
		s.logger.Warn("chapter generation failed, using fallback chapters",
			"model_id", h.ModelID(),
			"code", code,
			"error", err,
		)
		res := chapters.FallbackResult(in.DurationSeconds, h.ModelID(), string(code))
		res.TargetCount = target
		res.Summary = summary
		return res, nil
	}

	return &chapters.Result{
		Chapters:    chs,
		Source:      chapters.SourceModel,
		ModelID:     h.ModelID(),
		TargetCount: target,
		Summary:     summary,
	}, nil
}

// record stores and indexes job. Failures are logged and never surface to the
// caller, who already has a usable result.
func (s *ChapterService) record(ctx context.Context, job *domain.ChapterJob) {
	if s.jobs != nil {
		if err := s.jobs.CreateJob(ctx, job); err != nil {
			s.logger.Error("failed to persist chapter job", "job_id", job.ID, "error", err)
			return
		}
	}
	if s.index != nil {
		if err := s.index.IndexDocument(search.FromJob(job)); err != nil {
			s.logger.Warn("failed to index chapter job", "job_id", job.ID, "error", err)
		}
	}
}

// AcquireAndProduce reads a transcript from src and runs the pipeline on it.
// Acquisition failures are returned unchanged.
func (s *ChapterService) AcquireAndProduce(ctx context.Context, src acquire.Source, ref, modelID string, origin domain.JobOrigin) (*domain.ChapterJob, error) {
	in, err := src.Acquire(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.ProduceChapters(ctx, ChapterRequest{
		Text:            in.Text,
		Title:           in.Title,
		DurationSeconds: in.DurationSeconds,
		ModelID:         modelID,
		Origin:          origin,
	})
}
