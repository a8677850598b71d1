// Package inference owns text-generation engines: a pluggable Engine
// interface, the Loader that builds engines for a backend, and the Cache that
// loads each model at most once and serializes calls per model.
package inference

import (
	"context"
)

// Options tunes one generation call.
type Options struct {
	MaxTokens   int
	Temperature float64
	// System is an optional instruction sent ahead of the prompt.
	System string
	// JSON asks backends that support it for a JSON-only response.
	JSON bool
}

// Engine generates text from a prompt. Implementations need not be safe for
// concurrent use; the Cache serializes calls per handle.
type Engine interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// LoadConfig describes how a model is loaded. Zero values mean "backend
// default".
type LoadConfig struct {
	Quantize8Bit bool
	OffloadDir   string
	DeviceMap    string
	JSONMode     bool
}

// Reduced strips every optional memory and format optimisation.
func (c LoadConfig) Reduced() LoadConfig {
	return LoadConfig{}
}

// Loader builds an Engine for a model identifier.
type Loader interface {
	Load(ctx context.Context, modelID string, cfg LoadConfig) (Engine, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, modelID string, cfg LoadConfig) (Engine, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, modelID string, cfg LoadConfig) (Engine, error) {
	return f(ctx, modelID, cfg)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, prompt string, opts Options) (string, error)

// Complete calls f.
func (f EngineFunc) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}
