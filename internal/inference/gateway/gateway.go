// Package gateway is an inference backend for OpenAI-compatible chat
// completion endpoints.
package gateway

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chaptermark/chaptermark-server/internal/inference"
	"github.com/chaptermark/chaptermark-server/internal/ratelimit"
)

// Config configures the gateway backend.
type Config struct {
	BaseURL string
	APIKey  string
	// VerifyModels makes Load probe GET /models/{name} before handing out
	// an engine.
	VerifyModels bool
	Timeout      time.Duration
}

// Backend creates engines that talk to one gateway.
type Backend struct {
	cfg     Config
	client  *http.Client
	limiter *ratelimit.KeyedRateLimiter
	host    string
	resolve func(modelID string) string
	logger  *slog.Logger
}

// New creates a gateway backend. resolve maps catalog identifiers to the
// upstream model name; nil uses the identifier unchanged. limiter may be nil.
func New(cfg Config, limiter *ratelimit.KeyedRateLimiter, resolve func(string) string, logger *slog.Logger) (*Backend, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gateway: invalid base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if resolve == nil {
		resolve = func(id string) string { return id }
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Backend{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		host:    u.Host,
		resolve: resolve,
		logger:  logger,
	}, nil
}

// Load returns an engine bound to modelID. JSONMode requests
// response_format json_object from the upstream.
func (b *Backend) Load(ctx context.Context, modelID string, cfg inference.LoadConfig) (inference.Engine, error) {
	name := b.resolve(modelID)
	if name == "" {
		return nil, fmt.Errorf("gateway: no upstream model for %q", modelID)
	}

	if b.cfg.VerifyModels {
		if err := b.probe(ctx, name); err != nil {
			return nil, err
		}
	}

	b.logger.Debug("gateway engine ready", "model_id", modelID, "upstream_model", name, "json_mode", cfg.JSONMode)
	return &engine{backend: b, model: name, jsonMode: cfg.JSONMode}, nil
}

func (b *Backend) probe(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.BaseURL+"/models/"+url.PathEscape(name), nil)
	if err != nil {
		return err
	}
	b.authorize(req)

	resp, err := b.do(ctx, req)
	if err != nil {
		return fmt.Errorf("gateway: probe model %q: %w", name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode/100 != 2 {
		return &UpstreamError{Status: resp.StatusCode, Message: "model " + name + " is not available"}
	}
	return nil
}

func (b *Backend) authorize(req *http.Request) {
	if b.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}
	req.Header.Set("Accept", "application/json")
}

func (b *Backend) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx, b.host); err != nil {
			return nil, err
		}
	}
	return b.client.Do(req)
}

// UpstreamError is a non-2xx gateway response.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("gateway upstream %d: %s", e.Status, e.Message)
}

// Retryable reports whether the status suggests a transient failure.
func (e *UpstreamError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status == http.StatusRequestTimeout || e.Status/100 == 5
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitzero"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// maxAttempts bounds chat completion requests per Complete call. Only
// retryable upstream statuses are attempted again.
const maxAttempts = 2

type engine struct {
	backend  *Backend
	model    string
	jsonMode bool
}

func (e *engine) Complete(ctx context.Context, prompt string, opts inference.Options) (string, error) {
	body := chatRequest{
		Model:     e.model,
		MaxTokens: opts.MaxTokens,
	}
	if opts.System != "" {
		body.Messages = append(body.Messages, message{Role: "system", Content: opts.System})
	}
	body.Messages = append(body.Messages, message{Role: "user", Content: prompt})
	if opts.Temperature > 0 {
		temp := opts.Temperature
		body.Temperature = &temp
	}
	if opts.JSON && e.jsonMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(&body)
	if err != nil {
		return "", fmt.Errorf("gateway: encode request: %w", err)
	}

	for attempt := 1; ; attempt++ {
		out, err := e.post(ctx, payload)
		var upErr *UpstreamError
		if err == nil || attempt >= maxAttempts || !errors.As(err, &upErr) || !upErr.Retryable() {
			return out, err
		}
		e.backend.logger.Debug("retrying transient gateway failure",
			"model", e.model,
			"status", upErr.Status,
			"attempt", attempt,
		)
	}
}

// post sends one chat completion request.
func (e *engine) post(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.backend.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	e.backend.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.backend.do(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", &UpstreamError{Status: resp.StatusCode, Message: strings.TrimSpace(string(slurp))}
	}

	var out chatResponse
	if err := json.UnmarshalRead(resp.Body, &out); err != nil {
		return "", fmt.Errorf("gateway: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("gateway: response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}
