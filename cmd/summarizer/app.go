package main

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lexiqai/meeting-summarizer/internal/audio"
	"github.com/lexiqai/meeting-summarizer/internal/config"
	"github.com/lexiqai/meeting-summarizer/internal/llm"
	"github.com/lexiqai/meeting-summarizer/internal/observability"
	"github.com/lexiqai/meeting-summarizer/internal/output"
	"github.com/lexiqai/meeting-summarizer/internal/pipeline"
	"github.com/lexiqai/meeting-summarizer/internal/stt"
)

// options are the flags shared by every command
type options struct {
	outputDir string
	formats   string
}

// app holds the collaborators built from configuration
type app struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	writer   *output.Writer
	logger   zerolog.Logger
}

func newApp(ctx context.Context, opts *options) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.outputDir != "" {
		cfg.OutputDir = opts.outputDir
	}
	if opts.formats != "" {
		cfg.OutputFormats = opts.formats
	}
	formats, err := cfg.Formats()
	if err != nil {
		return nil, err
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	transcriber, err := stt.New(cfg)
	if err != nil {
		return nil, err
	}
	summarizer, counter, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("transcription_provider", cfg.TranscriptionProvider).
		Str("summarization_provider", cfg.SummarizationProvider).
		Dur("chunk_max_duration", cfg.ChunkMaxDuration).
		Int("token_budget", cfg.TokenBudget).
		Strs("formats", formats).
		Msg("Meeting summarizer configured")

	return &app{
		cfg:      cfg,
		pipeline: pipeline.New(cfg.PipelineConfig(), transcriber, summarizer, counter, observability.WithComponent("pipeline")),
		writer:   output.NewWriter(cfg.OutputDir, formats, observability.WithComponent("output")),
		logger:   logger,
	}, nil
}

// process runs one recording and writes whatever the run produced, even
// when it failed part way
func (a *app) process(ctx context.Context, path string) error {
	src, err := audio.Load(ctx, path, audio.LoadOptions{FFmpegPath: a.cfg.FFmpegPath})
	if err != nil {
		return err
	}

	res, runErr := a.pipeline.Run(ctx, src)
	if res != nil {
		paths, err := a.writer.Write(baseName(path), res)
		if err != nil && runErr == nil {
			return err
		}
		a.logger.Info().
			Str("run_id", res.RunID).
			Strs("files", paths).
			Msg("Results written")
	}
	return runErr
}

// baseName returns the file name of path without its extension
func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
