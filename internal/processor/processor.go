package processor

import (
	"context"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/chaptermark/chaptermark-server/internal/acquire"
	"github.com/chaptermark/chaptermark-server/internal/chapters"
	"github.com/chaptermark/chaptermark-server/internal/domain"
	domainerrors "github.com/chaptermark/chaptermark-server/internal/errors"
	"github.com/chaptermark/chaptermark-server/internal/watcher"
)

// Producer runs the chapter pipeline on a transcript reference.
type Producer interface {
	AcquireAndProduce(ctx context.Context, src acquire.Source, ref, modelID string, origin domain.JobOrigin) (*domain.ChapterJob, error)
}

// Options configures an EventProcessor.
type Options struct {
	// MaxConcurrent bounds how many transcripts run through the pipeline at
	// once (default 1).
	MaxConcurrent int
	// ModelID is used for every inbox job; empty means the catalog default.
	ModelID string
	// Probe reads audio metadata (default acquire.ProbeAudio).
	Probe acquire.ProbeFunc
}

// Output is the document written next to a processed transcript.
type Output struct {
	JobID     string             `json:"jobId"`
	Title     string             `json:"title"`
	Duration  string             `json:"videoDuration"`
	ModelID   string             `json:"modelId"`
	Source    chapters.Source    `json:"source"`
	Reason    string             `json:"reason,omitempty"`
	Chapters  []chapters.Chapter `json:"chapters"`
	CreatedAt time.Time          `json:"createdAt"`
}

// NewOutput builds the result document for job.
func NewOutput(job *domain.ChapterJob) Output {
	return Output{
		JobID:     job.ID,
		Title:     job.Title,
		Duration:  chapters.FormatTimestamp(job.DurationSeconds),
		ModelID:   job.ModelID,
		Source:    job.Source,
		Reason:    job.Reason,
		Chapters:  job.Chapters,
		CreatedAt: job.CreatedAt,
	}
}

// Failure is written instead of Output when a transcript cannot be processed.
type Failure struct {
	Code  domainerrors.Code `json:"code"`
	Error string            `json:"error"`
}

// EventProcessor processes inbox events.
//
//   - Transcripts (.json, .txt) run through the pipeline.
//   - Audio files re-trigger a plain-text transcript with the same name that
//     has no result yet, so the transcript picks up the audio duration.
//   - Per-path TryLock drops duplicate events for a file already in flight.
//   - A weighted semaphore bounds pipeline concurrency.
type EventProcessor struct {
	producer Producer
	opts     Options
	logger   *slog.Logger

	sem   *semaphore.Weighted
	locks *SyncMap[string, *sync.Mutex]
	wg    sync.WaitGroup
}

// NewEventProcessor creates a processor.
func NewEventProcessor(producer Producer, opts Options, logger *slog.Logger) *EventProcessor {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.Probe == nil {
		opts.Probe = acquire.ProbeAudio
	}
	return &EventProcessor{
		producer: producer,
		opts:     opts,
		logger:   logger,
		sem:      semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		locks:    NewSyncMap[string, *sync.Mutex](),
	}
}

// Run dispatches watcher events until ctx is cancelled, then waits for
// in-flight jobs.
func (ep *EventProcessor) Run(ctx context.Context, w *watcher.Watcher) {
	defer ep.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-w.Errors():
			ep.logger.Warn("inbox watcher error", "error", err)
		case event := <-w.Events():
			ep.wg.Go(func() {
				if err := ep.ProcessEvent(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
					ep.logger.Error("inbox event failed", "path", event.Path, "error", err)
				}
			})
		}
	}
}

// ProcessEvent handles one file system event. It blocks until the pipeline
// finishes for the affected transcript.
func (ep *EventProcessor) ProcessEvent(ctx context.Context, event watcher.Event) error {
	fileType := classifyFile(event.Path)

	ep.logger.Debug("processing event",
		"type", event.Type.String(),
		"path", event.Path,
		"file_type", fileType.String(),
	)

	if event.Type == watcher.EventRemoved {
		ep.locks.Delete(event.Path)
		return nil
	}

	switch fileType {
	case FileTypeTranscript:
		return ep.process(ctx, event.Path)
	case FileTypeAudio:
		transcript := stem(event.Path) + ".txt"
		if !exists(transcript) || exists(OutputPath(transcript)) {
			return nil
		}
		return ep.process(ctx, transcript)
	default:
		return nil
	}
}

// ProcessExisting runs every transcript in dir that has no result yet.
// Used at startup to catch files dropped while the server was down.
func (ep *EventProcessor) ProcessExisting(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read inbox: %w", err)
	}

	var wg sync.WaitGroup
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if classifyFile(path) != FileTypeTranscript || exists(OutputPath(path)) || exists(ErrorPath(path)) {
			continue
		}
		wg.Go(func() {
			if err := ep.process(ctx, path); err != nil && !errors.Is(err, context.Canceled) {
				ep.logger.Error("inbox backlog item failed", "path", path, "error", err)
			}
		})
	}
	wg.Wait()
	return ctx.Err()
}

func (ep *EventProcessor) process(ctx context.Context, path string) error {
	lock := ep.getLock(path)
	if !lock.TryLock() {
		ep.logger.Debug("transcript already in flight, skipping", "path", path)
		return nil
	}
	defer lock.Unlock()

	if err := ep.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer ep.sem.Release(1)

	ep.logger.Info("processing inbox transcript", "path", path)

	src := &acquire.File{Probe: ep.opts.Probe}
	job, err := ep.producer.AcquireAndProduce(ctx, src, path, ep.opts.ModelID, domain.JobOriginInbox)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		ep.logger.Warn("inbox transcript failed", "path", path, "code", domainerrors.CodeOf(err), "error", err)
		return writeJSON(ErrorPath(path), Failure{Code: domainerrors.CodeOf(err), Error: err.Error()})
	}

	// A stale failure from an earlier attempt no longer applies.
	_ = os.Remove(ErrorPath(path))

	if err := writeJSON(OutputPath(path), NewOutput(job)); err != nil {
		return err
	}

	ep.logger.Info("inbox transcript done",
		"path", path,
		"job_id", job.ID,
		"source", job.Source,
		"chapters", len(job.Chapters),
	)
	return nil
}

// getLock gets or creates the mutex for path.
func (ep *EventProcessor) getLock(path string) *sync.Mutex {
	if lock, ok := ep.locks.Load(path); ok {
		return lock
	}
	actual, _ := ep.locks.LoadOrStore(path, &sync.Mutex{})
	return actual
}

// writeJSON writes v to path through a temp file so readers never see a
// partial document. The temp name matches the watcher's *.tmp ignore rule.
func writeJSON(path string, v any) error {
	data, err := json.Marshal(v, jsontext.WithIndent("  "))
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".chapters-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
