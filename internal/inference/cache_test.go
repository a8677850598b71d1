package inference

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/chaptermark/chaptermark-server/internal/errors"
	"github.com/chaptermark/chaptermark-server/internal/logger"
)

type fakeEngine struct {
	reply  string
	err    error
	delay  time.Duration
	active atomic.Int32
	peak   atomic.Int32
	closed atomic.Bool
}

func (e *fakeEngine) Complete(ctx context.Context, _ string, _ Options) (string, error) {
	n := e.active.Add(1)
	defer e.active.Add(-1)
	for {
		p := e.peak.Load()
		if n <= p || e.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return e.reply, e.err
}

func (e *fakeEngine) Close() error {
	e.closed.Store(true)
	return nil
}

func newTestCache(loader Loader) *Cache {
	return NewCache(loader, CacheConfig{Policy: DefaultPolicy("/tmp/offload")}, logger.Discard().Logger)
}

func TestCache_LoadsOnceUnderConcurrency(t *testing.T) {
	var loads atomic.Int32
	release := make(chan struct{})
	engine := &fakeEngine{reply: "ok"}

	cache := newTestCache(LoaderFunc(func(context.Context, string, LoadConfig) (Engine, error) {
		loads.Add(1)
		<-release
		return engine, nil
	}))

	const callers = 32
	handles := make([]*Handle, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := cache.GetOrLoad(context.Background(), "asr-10k")
			assert.NoError(t, err)
			handles[i] = h
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}

	h, err := cache.GetOrLoad(context.Background(), "asr-10k")
	require.NoError(t, err)
	assert.Same(t, handles[0], h)
	assert.Equal(t, int32(1), loads.Load())
	assert.Equal(t, []string{"asr-10k"}, cache.Loaded())
}

func TestCache_RetriesWithReducedConfig(t *testing.T) {
	var configs []LoadConfig
	cache := newTestCache(LoaderFunc(func(_ context.Context, _ string, cfg LoadConfig) (Engine, error) {
		configs = append(configs, cfg)
		if cfg.Quantize8Bit {
			return nil, errors.New("bitsandbytes unavailable")
		}
		return &fakeEngine{}, nil
	}))

	h, err := cache.GetOrLoad(context.Background(), "asr-1k")
	require.NoError(t, err)

	require.Len(t, configs, 2)
	assert.Equal(t, DefaultPolicy("/tmp/offload").Primary, configs[0])
	assert.Equal(t, LoadConfig{}, configs[1])
	assert.True(t, h.Reduced())
	assert.Equal(t, "asr-1k", h.ModelID())
}

func TestCache_LoadFailureNotCached(t *testing.T) {
	var attempts atomic.Int32
	fail := atomic.Bool{}
	fail.Store(true)

	cache := newTestCache(LoaderFunc(func(context.Context, string, LoadConfig) (Engine, error) {
		attempts.Add(1)
		if fail.Load() {
			return nil, errors.New("out of memory")
		}
		return &fakeEngine{}, nil
	}))

	_, err := cache.GetOrLoad(context.Background(), "asr-10k")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrModelLoadFailure)
	assert.Contains(t, err.Error(), "out of memory")
	assert.Equal(t, int32(2), attempts.Load())
	assert.Empty(t, cache.Loaded())

	fail.Store(false)
	h, err := cache.GetOrLoad(context.Background(), "asr-10k")
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestCache_CallerCancelDoesNotAbortLoad(t *testing.T) {
	release := make(chan struct{})
	var loadCtxErr atomic.Value

	cache := newTestCache(LoaderFunc(func(ctx context.Context, _ string, _ LoadConfig) (Engine, error) {
		<-release
		if err := ctx.Err(); err != nil {
			loadCtxErr.Store(err)
		}
		return &fakeEngine{}, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := cache.GetOrLoad(ctx, "asr-10k")
		done <- err
	}()

	waiter := make(chan *Handle, 1)
	go func() {
		time.Sleep(10 * time.Millisecond)
		h, err := cache.GetOrLoad(context.Background(), "asr-10k")
		assert.NoError(t, err)
		waiter <- h
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	h := <-waiter
	assert.NotNil(t, h)
	assert.Nil(t, loadCtxErr.Load())
	assert.Equal(t, []string{"asr-10k"}, cache.Loaded())
}

func TestCache_GenerateSerializesPerHandle(t *testing.T) {
	engines := map[string]*fakeEngine{
		"a": {reply: "A", delay: 15 * time.Millisecond},
		"b": {reply: "B", delay: 15 * time.Millisecond},
	}
	cache := newTestCache(LoaderFunc(func(_ context.Context, id string, _ LoadConfig) (Engine, error) {
		return engines[id], nil
	}))

	ha, err := cache.GetOrLoad(context.Background(), "a")
	require.NoError(t, err)
	hb, err := cache.GetOrLoad(context.Background(), "b")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 4 {
		for _, h := range []*Handle{ha, hb} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := cache.Generate(context.Background(), h, "p", Options{})
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	assert.Equal(t, int32(1), engines["a"].peak.Load())
	assert.Equal(t, int32(1), engines["b"].peak.Load())
}

func TestCache_GenerateErrors(t *testing.T) {
	t.Run("engine error", func(t *testing.T) {
		cache := newTestCache(LoaderFunc(func(context.Context, string, LoadConfig) (Engine, error) {
			return &fakeEngine{err: errors.New("CUDA error")}, nil
		}))
		h, err := cache.GetOrLoad(context.Background(), "m")
		require.NoError(t, err)

		_, err = cache.Generate(context.Background(), h, "p", Options{})
		assert.ErrorIs(t, err, domainerrors.ErrLLMCallFailure)
		assert.True(t, domainerrors.IsSoft(err))
	})

	t.Run("timeout", func(t *testing.T) {
		cache := NewCache(LoaderFunc(func(context.Context, string, LoadConfig) (Engine, error) {
			return &fakeEngine{delay: time.Second}, nil
		}), CacheConfig{GenerateTimeout: 20 * time.Millisecond}, logger.Discard().Logger)
		h, err := cache.GetOrLoad(context.Background(), "m")
		require.NoError(t, err)

		_, err = cache.Generate(context.Background(), h, "p", Options{})
		assert.ErrorIs(t, err, domainerrors.ErrLLMCallFailure)
		assert.Contains(t, err.Error(), "timed out")
	})

	t.Run("nil handle", func(t *testing.T) {
		cache := newTestCache(LoaderFunc(func(context.Context, string, LoadConfig) (Engine, error) {
			return &fakeEngine{}, nil
		}))
		_, err := cache.Generate(context.Background(), nil, "p", Options{})
		assert.ErrorIs(t, err, domainerrors.ErrInternal)
	})
}

func TestCache_EvictAndClose(t *testing.T) {
	var loads atomic.Int32
	var mu sync.Mutex
	var engines []*fakeEngine

	cache := newTestCache(LoaderFunc(func(context.Context, string, LoadConfig) (Engine, error) {
		loads.Add(1)
		e := &fakeEngine{}
		mu.Lock()
		engines = append(engines, e)
		mu.Unlock()
		return e, nil
	}))

	_, err := cache.GetOrLoad(context.Background(), "a")
	require.NoError(t, err)
	_, err = cache.GetOrLoad(context.Background(), "b")
	require.NoError(t, err)

	evicted, err := cache.Evict(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, evicted)
	assert.True(t, engines[0].closed.Load())
	assert.Equal(t, []string{"b"}, cache.Loaded())

	evicted, err = cache.Evict(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, evicted)

	_, err = cache.GetOrLoad(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, int32(3), loads.Load())

	status := cache.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "a", status[0].ModelID)

	require.NoError(t, cache.Close())
	assert.Empty(t, cache.Loaded())
	for _, e := range engines {
		assert.True(t, e.closed.Load())
	}
}
