// Package di provides dependency injection configuration for the chapter server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/chaptermark/chaptermark-server/internal/catalog"
	"github.com/chaptermark/chaptermark-server/internal/config"
	"github.com/chaptermark/chaptermark-server/internal/di/providers"
	"github.com/chaptermark/chaptermark-server/internal/logger"
	"github.com/chaptermark/chaptermark-server/internal/service"
	"github.com/chaptermark/chaptermark-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Persistence
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Inference
	do.Provide(injector, providers.ProvideCatalog)
	do.Provide(injector, providers.ProvideModelCache)

	// Business services
	do.Provide(injector, providers.ProvideChapterService)
	do.Provide(injector, providers.ProvideJobService)
	do.Provide(injector, providers.ProvideModelService)

	// Workers
	do.Provide(injector, providers.ProvideInbox)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services. Providers are lazy, so this is where
// configuration and startup errors surface.
func Bootstrap(injector *do.RootScope) error {
	steps := []func() error{
		invoke[*config.Config](injector),
		invoke[*logger.Logger](injector),
		invoke[*validation.Validator](injector),
		invoke[*providers.StoreHandle](injector),
		invoke[*providers.SearchIndexHandle](injector),
		invoke[*catalog.Catalog](injector),
		invoke[*providers.CacheHandle](injector),
		invoke[*service.ChapterService](injector),
		invoke[*service.JobService](injector),
		invoke[*service.ModelService](injector),
		invoke[*providers.InboxHandle](injector),
		invoke[*providers.HTTPServerHandle](injector),
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	providers.TriggerSearchBackfill(injector)
	return nil
}

func invoke[T any](injector *do.RootScope) func() error {
	return func() error {
		_, err := do.Invoke[T](injector)
		return err
	}
}
