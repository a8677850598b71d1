package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/chaptermark/chaptermark-server/internal/catalog"
	"github.com/chaptermark/chaptermark-server/internal/inference"
)

// ModelInfo is a catalog entry plus its cache state.
type ModelInfo struct {
	catalog.Model
	Default  bool      `json:"default"`
	Loaded   bool      `json:"loaded"`
	Reduced  bool      `json:"reduced,omitempty"`
	LoadedAt time.Time `json:"loadedAt,omitzero"`
}

// ModelService exposes the catalog and manages loaded models.
type ModelService struct {
	catalog *catalog.Catalog
	cache   *inference.Cache
	backend string
	logger  *slog.Logger
}

// NewModelService creates a model admin service. backend names the inference
// backend for health reporting.
func NewModelService(cat *catalog.Catalog, cache *inference.Cache, backend string, logger *slog.Logger) *ModelService {
	return &ModelService{catalog: cat, cache: cache, backend: backend, logger: logger}
}

// Backend returns the configured inference backend name.
func (s *ModelService) Backend() string { return s.backend }

// Default returns the default model identifier.
func (s *ModelService) Default() string { return s.catalog.Default() }

// Loaded returns identifiers of models currently in memory.
func (s *ModelService) Loaded() []string { return s.cache.Loaded() }

// List returns every catalog model in catalog order.
func (s *ModelService) List() []ModelInfo {
	status := make(map[string]inference.ModelStatus)
	for _, st := range s.cache.Status() {
		status[st.ModelID] = st
	}

	models := s.catalog.Models()
	out := make([]ModelInfo, len(models))
	for i, m := range models {
		st, loaded := status[m.ID]
		out[i] = ModelInfo{
			Model:    m,
			Default:  m.ID == s.catalog.Default(),
			Loaded:   loaded,
			Reduced:  st.Reduced,
			LoadedAt: st.LoadedAt,
		}
	}
	return out
}

// Reload evicts modelID and loads it again. An empty ID means the default.
func (s *ModelService) Reload(ctx context.Context, modelID string) (ModelInfo, error) {
	m, err := s.catalog.Resolve(modelID)
	if err != nil {
		return ModelInfo{}, err
	}

	evicted, err := s.cache.Evict(ctx, m.ID)
	if err != nil {
		s.logger.Warn("failed to release model engine", "model_id", m.ID, "error", err)
	}

	h, err := s.cache.GetOrLoad(ctx, m.ID)
	if err != nil {
		return ModelInfo{}, err
	}

	s.logger.Info("model reloaded", "model_id", m.ID, "was_loaded", evicted, "reduced", h.Reduced())
	return ModelInfo{
		Model:    m,
		Default:  m.ID == s.catalog.Default(),
		Loaded:   true,
		Reduced:  h.Reduced(),
		LoadedAt: h.LoadedAt(),
	}, nil
}
