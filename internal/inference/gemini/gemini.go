// Package gemini is an inference backend for the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/chaptermark/chaptermark-server/internal/inference"
)

// ErrEmptyResponse is returned when Gemini answers without any text part.
var ErrEmptyResponse = errors.New("gemini: empty response")

// Backend creates Gemini engines sharing one API key.
type Backend struct {
	apiKey  string
	resolve func(modelID string) string
	logger  *slog.Logger
}

// New creates a Gemini backend. resolve maps catalog identifiers to Gemini
// model names; nil uses the identifier unchanged.
func New(apiKey string, resolve func(string) string, logger *slog.Logger) (*Backend, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if resolve == nil {
		resolve = func(id string) string { return id }
	}
	return &Backend{apiKey: apiKey, resolve: resolve, logger: logger}, nil
}

// Load creates a client for modelID. JSONMode asks Gemini for an
// application/json response.
func (b *Backend) Load(ctx context.Context, modelID string, cfg inference.LoadConfig) (inference.Engine, error) {
	name := b.resolve(modelID)
	if name == "" {
		return nil, fmt.Errorf("gemini: no model name for %q", modelID)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  b.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	b.logger.Debug("gemini engine ready", "model_id", modelID, "upstream_model", name, "json_mode", cfg.JSONMode)
	return &engine{models: client.Models, model: name, jsonMode: cfg.JSONMode}, nil
}

type engine struct {
	models   *genai.Models
	model    string
	jsonMode bool
}

func (e *engine) Complete(ctx context.Context, prompt string, opts inference.Options) (string, error) {
	result, err := e.models.GenerateContent(ctx, e.model, genai.Text(prompt), generateConfig(opts, e.jsonMode))
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	return responseText(result)
}

func generateConfig(opts inference.Options, jsonMode bool) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(opts.System, genai.RoleUser)
	}
	if opts.JSON && jsonMode {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

func responseText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
