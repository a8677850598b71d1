// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Inference backends.
const (
	BackendDemo    = "demo"
	BackendGateway = "gateway"
	BackendGemini  = "gemini"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Server    ServerConfig
	Data      DataConfig
	Inference InferenceConfig
	Gateway   GatewayConfig
	Gemini    GeminiConfig
	Inbox     InboxConfig
	RateLimit RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           string        // Server port (default: 8080)
	ReadTimeout    time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout   time.Duration // HTTP write timeout (default: 5m, generation is slow)
	IdleTimeout    time.Duration // HTTP idle timeout (default: 60s)
	AllowedOrigins []string      // CORS origins (default: *)
}

// DataConfig holds persistent storage configuration.
type DataConfig struct {
	// BasePath holds the job database and search index.
	BasePath string
}

// DBPath returns the Badger directory.
func (d DataConfig) DBPath() string { return filepath.Join(d.BasePath, "db") }

// SearchPath returns the Bleve directory.
func (d DataConfig) SearchPath() string { return filepath.Join(d.BasePath, "search") }

// InferenceConfig selects and tunes the text-generation backend.
type InferenceConfig struct {
	Backend         string // demo, gateway or gemini (default: demo)
	DefaultModel    string // Overrides the catalog default when set
	CatalogPath     string // YAML model catalog (default: built-in)
	MaxTokens       int
	Temperature     float64
	GenerateTimeout time.Duration
	LoadTimeout     time.Duration
	OffloadDir      string // Weight offload directory for the primary load attempt
}

// GatewayConfig holds the OpenAI-compatible gateway settings.
type GatewayConfig struct {
	BaseURL      string
	APIKey       string
	VerifyModels bool
	RPS          float64 // Outbound request rate per host
	Burst        int
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	APIKey string
}

// InboxConfig holds the transcript drop-folder settings.
type InboxConfig struct {
	Enabled       bool
	Path          string
	MaxConcurrent int
}

// RateLimitConfig limits chapter generation per client IP.
type RateLimitConfig struct {
	PerMinute int // 0 disables limiting
	Burst     int
}

// LoadConfig loads configuration from the process arguments and environment.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("chaptermark", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for the job database and search index")

	// Server flags
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 5m)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	allowedOrigins := fs.String("allowed-origins", "", "Comma-separated CORS origins (default: *)")

	// Inference flags
	backend := fs.String("backend", "", "Inference backend: demo, gateway, gemini (default: demo)")
	defaultModel := fs.String("default-model", "", "Default model identifier")
	catalogPath := fs.String("catalog", "", "Path to a YAML model catalog")
	maxTokens := fs.String("max-tokens", "", "Max tokens per chapter call (default: 1024)")
	temperature := fs.String("temperature", "", "Sampling temperature for chapter calls (default: 0.7)")
	generateTimeout := fs.String("generate-timeout", "", "Per-call generation timeout (default: 2m)")
	loadTimeout := fs.String("load-timeout", "", "Model load timeout (default: 5m)")
	offloadDir := fs.String("offload-dir", "", "Weight offload directory")

	// Gateway flags
	gatewayURL := fs.String("gateway-url", "", "OpenAI-compatible base URL")

	// Inbox flags
	inboxEnabled := fs.String("inbox-enabled", "", "Watch the inbox directory (default: false)")
	inboxPath := fs.String("inbox-path", "", "Inbox directory (default: {data}/inbox)")
	inboxMaxConcurrent := fs.String("inbox-max-concurrent", "", "Max inbox files processed at once (default: 2)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*allowedOrigins, "ALLOWED_ORIGINS", "*")),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Inference: InferenceConfig{
			Backend:      strings.ToLower(getConfigValue(*backend, "INFERENCE_BACKEND", BackendDemo)),
			DefaultModel: getConfigValue(*defaultModel, "INFERENCE_DEFAULT_MODEL", ""),
			CatalogPath:  getConfigValue(*catalogPath, "INFERENCE_CATALOG_PATH", ""),
			MaxTokens:    getIntConfigValue(*maxTokens, "INFERENCE_MAX_TOKENS", 1024),
			OffloadDir:   getConfigValue(*offloadDir, "INFERENCE_OFFLOAD_DIR", ""),
		},
		Gateway: GatewayConfig{
			BaseURL:      getConfigValue(*gatewayURL, "GATEWAY_BASE_URL", ""),
			APIKey:       getConfigValue("", "GATEWAY_API_KEY", ""),
			VerifyModels: getBoolConfigValue("", "GATEWAY_VERIFY_MODELS", false),
			Burst:        getIntConfigValue("", "GATEWAY_BURST", 2),
		},
		Gemini: GeminiConfig{
			APIKey: getConfigValue("", "GEMINI_API_KEY", ""),
		},
		Inbox: InboxConfig{
			Enabled:       getBoolConfigValue(*inboxEnabled, "INBOX_ENABLED", false),
			Path:          getConfigValue(*inboxPath, "INBOX_PATH", ""),
			MaxConcurrent: getIntConfigValue(*inboxMaxConcurrent, "INBOX_MAX_CONCURRENT", 2),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getIntConfigValue("", "RATE_LIMIT_PER_MINUTE", 30),
			Burst:     getIntConfigValue("", "RATE_LIMIT_BURST", 5),
		},
	}

	var err error
	if cfg.Inference.Temperature, err = getFloatConfigValue(*temperature, "INFERENCE_TEMPERATURE", 0.7); err != nil {
		return nil, err
	}
	if cfg.Gateway.RPS, err = getFloatConfigValue("", "GATEWAY_RPS", 5); err != nil {
		return nil, err
	}

	durations := []struct {
		dst      *time.Duration
		flagVal  string
		envKey   string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "5m"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Inference.GenerateTimeout, *generateTimeout, "INFERENCE_GENERATE_TIMEOUT", "2m"},
		{&cfg.Inference.LoadTimeout, *loadTimeout, "INFERENCE_LOAD_TIMEOUT", "5m"},
	}
	for _, d := range durations {
		v, err := getDurationConfigValue(d.flagVal, d.envKey, d.fallback)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	switch c.Inference.Backend {
	case BackendDemo:
	case BackendGateway:
		if c.Gateway.BaseURL == "" {
			return errors.New("GATEWAY_BASE_URL is required for the gateway backend")
		}
		if c.Gateway.RPS <= 0 || c.Gateway.Burst <= 0 {
			return errors.New("gateway rate and burst must be positive")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return errors.New("GEMINI_API_KEY is required for the gemini backend")
		}
	default:
		return fmt.Errorf("invalid inference backend: %s (must be demo, gateway, or gemini)", c.Inference.Backend)
	}

	if c.Inference.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.Inference.MaxTokens)
	}
	if c.Inference.Temperature < 0 || c.Inference.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", c.Inference.Temperature)
	}
	if c.Inference.GenerateTimeout <= 0 || c.Inference.LoadTimeout <= 0 {
		return errors.New("inference timeouts must be positive")
	}

	if c.Inbox.Enabled && c.Inbox.MaxConcurrent < 1 {
		return fmt.Errorf("inbox max concurrent must be at least 1, got %d", c.Inbox.MaxConcurrent)
	}
	if c.RateLimit.PerMinute < 0 {
		return fmt.Errorf("rate limit must not be negative, got %d", c.RateLimit.PerMinute)
	}
	if c.RateLimit.PerMinute > 0 && c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate limit burst must be at least 1, got %d", c.RateLimit.Burst)
	}

	return nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	if c.Data.BasePath, err = expandPath(c.Data.BasePath, filepath.Join(homeDir, "Chaptermark", "data")); err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}
	if c.Inbox.Path, err = expandPath(c.Inbox.Path, filepath.Join(c.Data.BasePath, "inbox")); err != nil {
		return fmt.Errorf("invalid inbox path: %w", err)
	}
	if c.Inference.CatalogPath, err = expandPath(c.Inference.CatalogPath, ""); err != nil {
		return fmt.Errorf("invalid catalog path: %w", err)
	}
	if c.Inference.OffloadDir, err = expandPath(c.Inference.OffloadDir, ""); err != nil {
		return fmt.Errorf("invalid offload dir: %w", err)
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, returns defaultPath unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

func getFloatConfigValue(flagValue, envKey string, defaultValue float64) (float64, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return v, nil
}

func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
