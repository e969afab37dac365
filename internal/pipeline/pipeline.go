// Package pipeline runs one recording through chunking, transcription and
// summarization.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/meeting-summarizer/internal/apperrors"
	"github.com/lexiqai/meeting-summarizer/internal/audio"
	"github.com/lexiqai/meeting-summarizer/internal/observability"
	"github.com/lexiqai/meeting-summarizer/internal/resilience"
	"github.com/lexiqai/meeting-summarizer/internal/summary"
	"github.com/lexiqai/meeting-summarizer/internal/transcript"
)

// Summarizer sends one summarization request and returns the raw response
type Summarizer interface {
	Summarize(ctx context.Context, req *summary.Request) (string, error)
}

// Config holds every limit a run needs
type Config struct {
	ChunkMaxDuration time.Duration
	ChunkMaxBytes    int
	Silence          *audio.SilenceConfig // nil uses the default detector

	Transcription transcript.Config

	TokenBudget       int
	TokenMargin       int
	TokenCountTimeout time.Duration
	SummarizeTimeout  time.Duration
	SummarizeRetry    *resilience.RetryConfig
}

// Result is what a run produced. Transcript and Summary are set whenever
// transcription started, including runs that end with an error.
// SummaryError explains a placeholder summary left by a summarizer that
// stayed unavailable.
type Result struct {
	RunID        string                 `json:"run_id" yaml:"run_id"`
	Transcript   *transcript.Transcript `json:"transcript" yaml:"transcript"`
	Summary      summary.MeetingSummary `json:"summary" yaml:"summary"`
	SummaryError string                 `json:"summary_error,omitempty" yaml:"summary_error,omitempty"`
}

// Pipeline composes the chunker, the transcription orchestrator, the request
// builder and the result assembler around two collaborators
type Pipeline struct {
	config      Config
	chunker     *audio.Chunker
	transcriber transcript.Transcriber
	summarizer  Summarizer
	counter     summary.TokenCounter
	logger      zerolog.Logger
}

// New creates a pipeline. A nil counter falls back to the token estimate.
func New(config Config, transcriber transcript.Transcriber, summarizer Summarizer, counter summary.TokenCounter, logger zerolog.Logger) *Pipeline {
	if config.SummarizeRetry == nil {
		config.SummarizeRetry = resilience.DefaultRetryConfig()
	}
	if counter == nil {
		counter = summary.EstimateCounter{}
	}
	return &Pipeline{
		config:      config,
		chunker:     audio.NewChunker(audio.NewSilenceDetector(config.Silence)),
		transcriber: transcriber,
		summarizer:  summarizer,
		counter:     counter,
		logger:      logger,
	}
}

// Run processes src. A non-nil error is always an *apperrors.Error naming
// the failed stage. Degradations that do not stop the run (failed chunks, a
// truncated transcript) are visible in the result instead.
func (p *Pipeline) Run(ctx context.Context, src *audio.Source) (*Result, error) {
	runID := observability.NewRunID()
	log := observability.WithRunID(p.logger, runID)
	metrics := observability.NewRunMetrics(runID)
	metrics.RecordRunStart()

	outcome := "failed"
	defer func() { metrics.RecordRunEnd(outcome) }()

	fail := func(res *Result, err error) (*Result, error) {
		kind := apperrors.KindOf(err)
		if kind == apperrors.KindCancelled {
			outcome = "cancelled"
		}
		metrics.RecordError(kind.String(), string(apperrors.StageOf(err)))
		log.Error().
			Err(err).
			Str("stage", string(apperrors.StageOf(err))).
			Str("kind", kind.String()).
			Msg("Run failed")
		return res, err
	}

	seq, err := p.chunker.Chunk(src, p.config.ChunkMaxDuration, p.config.ChunkMaxBytes)
	if err != nil {
		return fail(nil, apperrors.WithStage(apperrors.StageChunk, err))
	}

	log.Info().
		Str("source", src.Path()).
		Str("format", src.Format()).
		Dur("duration", src.Duration()).
		Int("max_chunk_frames", seq.MaxFrames()).
		Msg("Run started")

	orchestrator := transcript.NewOrchestrator(p.transcriber, p.config.Transcription, log)
	t, err := orchestrator.Transcribe(ctx, seq)
	result := &Result{RunID: runID, Transcript: t, Summary: summary.Placeholder(summary.PlaceholderText)}
	if err != nil {
		return fail(result, err)
	}

	if t.Empty() {
		if len(t.FailedChunks()) == 0 {
			result.Summary = summary.Placeholder(summary.EmptyTranscriptText)
		}
		outcome = "empty"
		log.Warn().
			Ints("failed_chunks", t.FailedChunks()).
			Msg("Transcript is empty, skipping summarization")
		return result, nil
	}

	builder := summary.NewBuilder(p.counter, p.config.TokenMargin, log).
		WithCountLimits(p.config.TokenCountTimeout, p.config.SummarizeRetry)
	req, err := builder.Build(ctx, t, p.config.TokenBudget)
	if err != nil {
		return fail(result, apperrors.WithStage(apperrors.StageBuild, err))
	}
	if req.Truncated {
		metrics.RecordTruncated()
	}

	raw, err := p.summarize(ctx, req, metrics, log)
	if err != nil {
		result.Summary.Truncated = req.Truncated
		if !degradable(err) {
			return fail(result, err)
		}

		// The transcript is still worth returning
		result.Summary = summary.Placeholder(summary.UnavailableText)
		result.Summary.Truncated = req.Truncated
		result.SummaryError = err.Error()
		outcome = "degraded"
		metrics.RecordError(apperrors.KindOf(err).String(), string(apperrors.StageOf(err)))
		log.Warn().
			Err(err).
			Ints("failed_chunks", t.FailedChunks()).
			Msg("Summarization unavailable, returning the transcript with a placeholder summary")
		return result, nil
	}

	s, err := summary.Assemble(raw)
	s.Truncated = req.Truncated
	result.Summary = s
	if err != nil {
		return fail(result, err)
	}

	outcome = "success"
	if t.Partial {
		outcome = "partial"
	}
	log.Info().
		Int("decisions", len(s.Decisions)).
		Int("action_items", len(s.ActionItems)).
		Bool("truncated", s.Truncated).
		Ints("failed_chunks", t.FailedChunks()).
		Msg("Run complete")
	return result, nil
}

// degradable reports whether a summarization failure leaves a usable run.
// Rejected credentials, rejected input and cancellation do not.
func degradable(err error) bool {
	switch apperrors.KindOf(err) {
	case apperrors.KindTransient, apperrors.KindUnknown:
		return true
	}
	return false
}

// summarize calls the summarizer with a bounded timeout per attempt,
// retrying transient failures
func (p *Pipeline) summarize(ctx context.Context, req *summary.Request, metrics *observability.Metrics, log zerolog.Logger) (string, error) {
	retry := *p.config.SummarizeRetry
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		observability.RecordRetry(string(apperrors.StageSummarize))
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Summarization failed, retrying")
	}

	var raw string
	metrics.RecordSummarizeStart()
	attempts, err := resilience.Retry(ctx, func(ctx context.Context) error {
		r, err := p.attempt(ctx, req)
		if err != nil {
			return err
		}
		raw = r
		return nil
	}, &retry, apperrors.Retryable)
	metrics.RecordSummarizeEnd(err == nil)

	if ctx.Err() != nil {
		return "", apperrors.Wrap(apperrors.StageSummarize, apperrors.KindCancelled, ctx.Err(), "summarization cancelled")
	}
	if err != nil {
		log.Error().
			Err(err).
			Int("attempts", attempts).
			Msg("Summarization failed")
		return "", apperrors.WithStage(apperrors.StageSummarize, err)
	}

	log.Debug().
		Int("attempts", attempts).
		Int("response_chars", len(raw)).
		Msg("Summarization response received")
	return raw, nil
}

func (p *Pipeline) attempt(ctx context.Context, req *summary.Request) (string, error) {
	actx := ctx
	if p.config.SummarizeTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, p.config.SummarizeTimeout)
		defer cancel()
	}

	raw, err := p.summarizer.Summarize(actx, req)
	if err == nil {
		return raw, nil
	}
	if ctx.Err() != nil {
		return "", err
	}
	if errors.Is(actx.Err(), context.DeadlineExceeded) {
		return "", apperrors.Transient(fmt.Errorf("attempt timed out after %s: %w", p.config.SummarizeTimeout, err))
	}
	return "", err
}
