package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/chaptermark/chaptermark-server/internal/config"
	"github.com/chaptermark/chaptermark-server/internal/logger"
	"github.com/chaptermark/chaptermark-server/internal/search"
	"github.com/chaptermark/chaptermark-server/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.Data.SearchPath(),
		Logger:   log.Component("search"),
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount, "created", index.Created())

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// ProvideJobService provides job history and search.
func ProvideJobService(i do.Injector) (*service.JobService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewJobService(storeHandle.Store, indexHandle.SearchIndex, log.Logger), nil
}

// TriggerSearchBackfill reindexes stored jobs in the background when the
// index was created fresh at startup.
func TriggerSearchBackfill(i do.Injector) {
	jobs := do.MustInvoke[*service.JobService](i)
	log := do.MustInvoke[*logger.Logger](i)

	go func() {
		if err := jobs.BackfillIfNeeded(context.Background()); err != nil {
			log.WithError(err).Error("Search backfill failed")
			return
		}
		count, _ := jobs.DocumentCount()
		log.Debug("Search backfill check complete", "documents", count)
	}()
}
