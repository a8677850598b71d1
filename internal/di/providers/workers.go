package providers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/samber/do/v2"

	"github.com/chaptermark/chaptermark-server/internal/config"
	"github.com/chaptermark/chaptermark-server/internal/logger"
	"github.com/chaptermark/chaptermark-server/internal/processor"
	"github.com/chaptermark/chaptermark-server/internal/service"
	"github.com/chaptermark/chaptermark-server/internal/watcher"
)

// InboxHandle runs the transcript drop folder: a watcher feeding an event
// processor. A disabled inbox has a nil Watcher.
type InboxHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable. It waits for in-flight jobs.
func (h *InboxHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	h.cancel()
	err := h.Watcher.Stop()
	<-h.done
	return err
}

// ProvideInbox provides the inbox watcher when enabled.
func ProvideInbox(i do.Injector) (*InboxHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Inbox.Enabled {
		log.Info("Inbox disabled")
		return &InboxHandle{}, nil
	}

	chapterService := do.MustInvoke[*service.ChapterService](i)
	inboxLog := log.Component("inbox")

	if err := os.MkdirAll(cfg.Inbox.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create inbox: %w", err)
	}

	w, err := watcher.New(inboxLog, watcher.Options{IgnoreHidden: true})
	if err != nil {
		return nil, err
	}
	if err := w.Watch(cfg.Inbox.Path); err != nil {
		_ = w.Stop()
		return nil, err
	}

	ep := processor.NewEventProcessor(chapterService, processor.Options{
		MaxConcurrent: cfg.Inbox.MaxConcurrent,
	}, inboxLog)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		if err := w.Start(ctx); err != nil {
			inboxLog.Error("Inbox watcher error", "error", err)
		}
	}()

	go func() {
		defer close(done)
		if err := ep.ProcessExisting(ctx, cfg.Inbox.Path); err != nil && !errors.Is(err, context.Canceled) {
			inboxLog.Warn("Inbox backlog scan failed", "error", err)
		}
		ep.Run(ctx, w)
	}()

	log.Info("Inbox watching", "path", cfg.Inbox.Path, "max_concurrent", cfg.Inbox.MaxConcurrent)

	return &InboxHandle{Watcher: w, cancel: cancel, done: done}, nil
}
