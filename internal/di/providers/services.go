package providers

import (
	"github.com/samber/do/v2"

	"github.com/chaptermark/chaptermark-server/internal/catalog"
	"github.com/chaptermark/chaptermark-server/internal/config"
	"github.com/chaptermark/chaptermark-server/internal/logger"
	"github.com/chaptermark/chaptermark-server/internal/service"
	"github.com/chaptermark/chaptermark-server/internal/validation"
)

// ProvideChapterService provides the chapter pipeline, recording jobs in the
// store and the search index.
func ProvideChapterService(i do.Injector) (*service.ChapterService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cat := do.MustInvoke[*catalog.Catalog](i)
	cache := do.MustInvoke[*CacheHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)

	return service.NewChapterService(
		cat,
		cache.Cache,
		service.GenerationConfig{
			MaxTokens:   cfg.Inference.MaxTokens,
			Temperature: cfg.Inference.Temperature,
		},
		validator,
		storeHandle.Store,
		indexHandle.SearchIndex,
		log.Component("pipeline"),
	), nil
}

// ProvideModelService provides catalog and model cache administration.
func ProvideModelService(i do.Injector) (*service.ModelService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cat := do.MustInvoke[*catalog.Catalog](i)
	cache := do.MustInvoke[*CacheHandle](i)

	return service.NewModelService(cat, cache.Cache, cfg.Inference.Backend, log.Logger), nil
}
