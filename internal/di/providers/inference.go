package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/chaptermark/chaptermark-server/internal/catalog"
	"github.com/chaptermark/chaptermark-server/internal/config"
	"github.com/chaptermark/chaptermark-server/internal/inference"
	"github.com/chaptermark/chaptermark-server/internal/inference/demo"
	"github.com/chaptermark/chaptermark-server/internal/inference/gateway"
	"github.com/chaptermark/chaptermark-server/internal/inference/gemini"
	"github.com/chaptermark/chaptermark-server/internal/logger"
	"github.com/chaptermark/chaptermark-server/internal/ratelimit"
)

// ProvideCatalog provides the model catalog, with the configured default
// applied.
func ProvideCatalog(i do.Injector) (*catalog.Catalog, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	cat, err := catalog.Load(cfg.Inference.CatalogPath)
	if err != nil {
		return nil, err
	}
	if cat, err = cat.WithDefault(cfg.Inference.DefaultModel); err != nil {
		return nil, err
	}

	log.Info("Model catalog loaded", "models", len(cat.Models()), "default", cat.Default())
	return cat, nil
}

// CacheHandle wraps the model cache and any backend resources.
type CacheHandle struct {
	*inference.Cache
	limiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	if h.limiter != nil {
		h.limiter.Stop()
	}
	return h.Close()
}

// ProvideModelCache provides the model cache for the configured backend.
func ProvideModelCache(i do.Injector) (*CacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cat := do.MustInvoke[*catalog.Catalog](i)

	handle := &CacheHandle{}

	var loader inference.Loader
	switch cfg.Inference.Backend {
	case config.BackendDemo:
		loader = demo.New()
	case config.BackendGateway:
		handle.limiter = ratelimit.New(cfg.Gateway.RPS, cfg.Gateway.Burst)
		b, err := gateway.New(gateway.Config{
			BaseURL:      cfg.Gateway.BaseURL,
			APIKey:       cfg.Gateway.APIKey,
			VerifyModels: cfg.Gateway.VerifyModels,
			Timeout:      cfg.Inference.GenerateTimeout,
		}, handle.limiter, cat.Upstream, log.Component("gateway"))
		if err != nil {
			handle.limiter.Stop()
			return nil, err
		}
		loader = b
	case config.BackendGemini:
		b, err := gemini.New(cfg.Gemini.APIKey, cat.Upstream, log.Component("gemini"))
		if err != nil {
			return nil, err
		}
		loader = b
	default:
		return nil, fmt.Errorf("unknown inference backend %q", cfg.Inference.Backend)
	}

	handle.Cache = inference.NewCache(loader, inference.CacheConfig{
		Policy:          inference.DefaultPolicy(cfg.Inference.OffloadDir),
		LoadTimeout:     cfg.Inference.LoadTimeout,
		GenerateTimeout: cfg.Inference.GenerateTimeout,
	}, log.Component("inference"))

	log.WithField("backend", cfg.Inference.Backend).Info("Inference backend ready")
	return handle, nil
}
