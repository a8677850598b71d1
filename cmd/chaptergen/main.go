// Command chaptergen runs the chapter pipeline once on a transcript file and
// prints the result as JSON.
//
// Usage:
//
//	chaptergen -file talk.txt [-audio talk.m4a] [-model asr-1k] [-out talk.chapters.json] [-- server flags]
//
// Flags after "--" configure the inference backend exactly like the server
// (for example "-- -backend gateway -gateway-url http://localhost:8000/v1").
package main

import (
	"context"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/chaptermark/chaptermark-server/internal/acquire"
	"github.com/chaptermark/chaptermark-server/internal/catalog"
	"github.com/chaptermark/chaptermark-server/internal/config"
	"github.com/chaptermark/chaptermark-server/internal/di/providers"
	"github.com/chaptermark/chaptermark-server/internal/domain"
	domainerrors "github.com/chaptermark/chaptermark-server/internal/errors"
	"github.com/chaptermark/chaptermark-server/internal/logger"
	"github.com/chaptermark/chaptermark-server/internal/processor"
	"github.com/chaptermark/chaptermark-server/internal/service"
	"github.com/chaptermark/chaptermark-server/internal/validation"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "chaptergen: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("chaptergen", flag.ContinueOnError)
	fs.SetOutput(stderr)

	file := fs.String("file", "", "Transcript file (.json or plain text)")
	audio := fs.String("audio", "", "Audio file to read duration and title from")
	model := fs.String("model", "", "Catalog model identifier (default: catalog default)")
	out := fs.String("out", "", "Write the result here instead of stdout")
	verbose := fs.Bool("v", false, "Log pipeline progress to stderr")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		fs.Usage()
		return errors.New("-file is required")
	}

	cfg, err := config.Load(fs.Args())
	if err != nil {
		return err
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{
		Writer:      stderr,
		Level:       logger.ParseLevel(level),
		Environment: cfg.App.Environment,
	})

	injector := do.New()
	defer injector.Shutdown()
	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, log)
	do.Provide(injector, providers.ProvideCatalog)
	do.Provide(injector, providers.ProvideModelCache)

	cat, err := do.Invoke[*catalog.Catalog](injector)
	if err != nil {
		return err
	}
	cache, err := do.Invoke[*providers.CacheHandle](injector)
	if err != nil {
		return err
	}

	// Jobs are not recorded: the CLI has no database.
	pipeline := service.NewChapterService(cat, cache.Cache, service.GenerationConfig{
		MaxTokens:   cfg.Inference.MaxTokens,
		Temperature: cfg.Inference.Temperature,
	}, validation.New(), nil, nil, log.Component("pipeline"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job, err := pipeline.AcquireAndProduce(ctx, acquire.NewFile(*audio), *file, *model, domain.JobOriginCLI)
	if err != nil {
		return err
	}

	data, err := json.Marshal(processor.NewOutput(job), jsontext.WithIndent("  "))
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if *out == "" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(*out, data, 0o644)
}

// exitCode distinguishes input problems (2) from pipeline failures (1).
func exitCode(err error) int {
	switch domainerrors.CodeOf(err) {
	case domainerrors.CodeValidation, domainerrors.CodeTranscriptEmpty, domainerrors.CodeDownloadFailure:
		return 2
	}
	if errors.Is(err, flag.ErrHelp) {
		return 2
	}
	return 1
}
