package inference

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	domainerrors "github.com/chaptermark/chaptermark-server/internal/errors"
)

// Default timeouts used when CacheConfig leaves them unset.
const (
	DefaultLoadTimeout     = 5 * time.Minute
	DefaultGenerateTimeout = 2 * time.Minute
)

// LoadPolicy is the two-attempt load strategy: Primary first, then exactly
// one retry with Reduced.
type LoadPolicy struct {
	Primary LoadConfig
	Reduced LoadConfig
}

// DefaultPolicy enables 8-bit quantization, automatic device placement,
// disk offload to offloadDir and JSON mode, falling back to a plain load.
func DefaultPolicy(offloadDir string) LoadPolicy {
	primary := LoadConfig{
		Quantize8Bit: true,
		OffloadDir:   offloadDir,
		DeviceMap:    "auto",
		JSONMode:     true,
	}
	return LoadPolicy{Primary: primary, Reduced: primary.Reduced()}
}

// CacheConfig configures a Cache.
type CacheConfig struct {
	Policy          LoadPolicy
	LoadTimeout     time.Duration
	GenerateTimeout time.Duration
}

// Handle is a loaded engine. It is owned by the Cache and shared by
// reference; never copy it.
type Handle struct {
	_ noCopy

	modelID  string
	engine   Engine
	sem      *semaphore.Weighted
	loadedAt time.Time
	reduced  bool
}

// ModelID returns the identifier the handle was loaded for.
func (h *Handle) ModelID() string { return h.modelID }

// Reduced reports whether the handle was loaded with the reduced config.
func (h *Handle) Reduced() bool { return h.reduced }

// LoadedAt returns when the engine finished loading.
func (h *Handle) LoadedAt() time.Time { return h.loadedAt }

// ModelStatus describes a loaded model for health reporting.
type ModelStatus struct {
	ModelID  string    `json:"modelId"`
	LoadedAt time.Time `json:"loadedAt"`
	Reduced  bool      `json:"reduced"`
}

// Cache maps model identifiers to loaded engines. Concurrent misses for the
// same model share one load; calls to one model run one at a time while
// different models proceed independently.
type Cache struct {
	loader Loader
	cfg    CacheConfig
	logger *slog.Logger

	mu      sync.RWMutex
	handles map[string]*Handle
	group   singleflight.Group
}

// NewCache creates an empty cache backed by loader.
func NewCache(loader Loader, cfg CacheConfig, logger *slog.Logger) *Cache {
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = DefaultLoadTimeout
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = DefaultGenerateTimeout
	}
	return &Cache{
		loader:  loader,
		cfg:     cfg,
		logger:  logger,
		handles: make(map[string]*Handle),
	}
}

// GetOrLoad returns the handle for modelID, loading it on first use.
// The load itself is detached from ctx: a caller that gives up gets ctx.Err()
// while the load completes for everyone else. Failed loads are not cached.
func (c *Cache) GetOrLoad(ctx context.Context, modelID string) (*Handle, error) {
	if h := c.lookup(modelID); h != nil {
		return h, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(modelID, func() (any, error) {
		if h := c.lookup(modelID); h != nil {
			return h, nil
		}

		h, err := c.load(loadCtx, modelID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.handles[modelID] = h
		c.mu.Unlock()
		return h, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	}
}

func (c *Cache) lookup(modelID string) *Handle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handles[modelID]
}

func (c *Cache) load(ctx context.Context, modelID string) (*Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.LoadTimeout)
	defer cancel()

	start := time.Now()
	engine, primaryErr := c.loader.Load(ctx, modelID, c.cfg.Policy.Primary)
	if primaryErr == nil {
		c.logger.Info("model loaded", "model_id", modelID, "duration", time.Since(start))
		return newHandle(modelID, engine, false), nil
	}

	c.logger.Warn("model load failed, retrying with reduced config",
		"model_id", modelID,
		"error", primaryErr,
	)

	engine, reducedErr := c.loader.Load(ctx, modelID, c.cfg.Policy.Reduced)
	if reducedErr == nil {
		c.logger.Info("model loaded with reduced config", "model_id", modelID, "duration", time.Since(start))
		return newHandle(modelID, engine, true), nil
	}

	c.logger.Error("model load failed", "model_id", modelID, "error", reducedErr)
	return nil, domainerrors.Wrapf(errors.Join(primaryErr, reducedErr),
		domainerrors.CodeModelLoadFailure, "load model %q", modelID)
}

func newHandle(modelID string, engine Engine, reduced bool) *Handle {
	return &Handle{
		modelID:  modelID,
		engine:   engine,
		sem:      semaphore.NewWeighted(1),
		loadedAt: time.Now(),
		reduced:  reduced,
	}
}

// Generate runs one completion on h. Calls on the same handle queue behind
// each other; waiting respects ctx. Each call is bounded by the configured
// generate timeout. Engine failures and timeouts are LLM call failures.
func (c *Cache) Generate(ctx context.Context, h *Handle, prompt string, opts Options) (string, error) {
	if h == nil {
		return "", domainerrors.Internal("generate called with nil handle")
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", domainerrors.Wrapf(err, domainerrors.CodeLLMCallFailure, "wait for model %q", h.modelID)
	}
	defer h.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.GenerateTimeout)
	defer cancel()

	out, err := h.engine.Complete(callCtx, prompt, opts)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", domainerrors.Wrapf(err, domainerrors.CodeLLMCallFailure,
				"model %q timed out after %s", h.modelID, c.cfg.GenerateTimeout)
		}
		return "", domainerrors.Wrapf(err, domainerrors.CodeLLMCallFailure, "model %q generation failed", h.modelID)
	}
	return out, nil
}

// Loaded returns the identifiers of loaded models, sorted.
func (c *Cache) Loaded() []string {
	c.mu.RLock()
	ids := make([]string, 0, len(c.handles))
	for modelID := range c.handles {
		ids = append(ids, modelID)
	}
	c.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// Status reports every loaded model, sorted by identifier.
func (c *Cache) Status() []ModelStatus {
	c.mu.RLock()
	out := make([]ModelStatus, 0, len(c.handles))
	for _, h := range c.handles {
		out = append(out, ModelStatus{ModelID: h.modelID, LoadedAt: h.loadedAt, Reduced: h.reduced})
	}
	c.mu.RUnlock()

	slices.SortFunc(out, func(a, b ModelStatus) int {
		switch {
		case a.ModelID < b.ModelID:
			return -1
		case a.ModelID > b.ModelID:
			return 1
		}
		return 0
	})
	return out
}

// Evict drops modelID from the cache and releases its engine once any
// in-flight call finishes. Returns false when the model was not loaded.
func (c *Cache) Evict(ctx context.Context, modelID string) (bool, error) {
	c.mu.Lock()
	h, ok := c.handles[modelID]
	delete(c.handles, modelID)
	c.mu.Unlock()
	c.group.Forget(modelID)

	if !ok {
		return false, nil
	}
	return true, c.release(ctx, h)
}

// Close releases every loaded engine and empties the cache.
func (c *Cache) Close() error {
	c.mu.Lock()
	handles := c.handles
	c.handles = make(map[string]*Handle)
	c.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := c.release(context.Background(), h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Cache) release(ctx context.Context, h *Handle) error {
	closer, ok := h.engine.(io.Closer)
	if !ok {
		return nil
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer h.sem.Release(1)

	if err := closer.Close(); err != nil {
		c.logger.Warn("failed to close engine", "model_id", h.modelID, "error", err)
		return err
	}
	return nil
}

// noCopy triggers go vet's copylocks check.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
