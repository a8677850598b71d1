// Package providers contains dependency injection providers for the chapter server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/chaptermark/chaptermark-server/internal/config"
	"github.com/chaptermark/chaptermark-server/internal/logger"
	"github.com/chaptermark/chaptermark-server/internal/validation"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.IsDevelopment(),
		Environment: cfg.App.Environment,
	})

	log.WithFields(map[string]any{
		"environment": cfg.App.Environment,
		"log_level":   cfg.Logger.Level,
		"data_path":   cfg.Data.BasePath,
		"backend":     cfg.Inference.Backend,
	}).Info("Starting chapter server")

	return log, nil
}

// ProvideValidator provides the shared struct validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}
