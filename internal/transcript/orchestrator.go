package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lexiqai/meeting-summarizer/internal/apperrors"
	"github.com/lexiqai/meeting-summarizer/internal/audio"
	"github.com/lexiqai/meeting-summarizer/internal/observability"
	"github.com/lexiqai/meeting-summarizer/internal/resilience"
)

// ChunkSource yields chunks in index order. *audio.Sequence satisfies it.
type ChunkSource interface {
	Next() (*audio.Chunk, bool)
}

// Config controls per-chunk retry, timeout and concurrency
type Config struct {
	// Concurrency bounds in-flight chunk requests; values below 1 mean one
	Concurrency int
	// Timeout bounds a single attempt; zero means no per-attempt bound
	Timeout time.Duration
	// Retry applies to transient failures; nil uses the resilience defaults
	Retry *resilience.RetryConfig
	// NewBreaker returns the circuit breaker for one Transcribe call. After
	// repeated chunk failures the breaker holds further chunks back until its
	// reset timeout passes. Nil, or a nil breaker, disables it.
	NewBreaker func() *resilience.CircuitBreaker
}

// Orchestrator feeds chunks to a Transcriber and assembles the results
type Orchestrator struct {
	transcriber Transcriber
	config      Config
	logger      zerolog.Logger
}

// NewOrchestrator creates an orchestrator around transcriber
func NewOrchestrator(transcriber Transcriber, config Config, logger zerolog.Logger) *Orchestrator {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.Retry == nil {
		config.Retry = resilience.DefaultRetryConfig()
	}
	return &Orchestrator{
		transcriber: transcriber,
		config:      config,
		logger:      logger,
	}
}

// Transcribe requests one transcription per chunk and combines the results
// in chunk order. A chunk that keeps failing becomes an empty error-flagged
// fragment and the run continues. Rejected credentials abort the run with an
// authentication error. Cancellation returns a transcript marked Cancelled
// together with a cancellation error.
func (o *Orchestrator) Transcribe(ctx context.Context, chunks ChunkSource) (*Transcript, error) {
	asm := NewAssembler()

	var breaker *resilience.CircuitBreaker
	if o.config.NewBreaker != nil {
		breaker = o.config.NewBreaker()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Concurrency)

	issued := 0
	for gctx.Err() == nil {
		chunk, ok := chunks.Next()
		if !ok {
			break
		}
		issued++

		g.Go(func() error {
			frag, err := o.transcribeChunk(gctx, chunk, breaker)
			if err != nil && apperrors.IsKind(err, apperrors.KindCancelled) {
				return err
			}
			asm.Add(frag)
			return err
		})
	}

	err := g.Wait()
	t := asm.Transcript()

	if ctx.Err() != nil {
		t.Partial = true
		t.Cancelled = true
		o.logger.Warn().
			Int("completed", asm.Len()).
			Int("issued", issued).
			Msg("Transcription cancelled")
		return t, apperrors.Wrap(apperrors.StageTranscribe, apperrors.KindCancelled, ctx.Err(), "transcription cancelled")
	}

	if err != nil {
		t.Partial = true
		o.logger.Error().
			Err(err).
			Int("completed", asm.Len()).
			Msg("Transcription aborted")
		return t, apperrors.WithStage(apperrors.StageTranscribe, err)
	}

	event := o.logger.Info().
		Int("chunks", len(t.Fragments)).
		Ints("failed_chunks", t.FailedChunks())
	if breaker != nil {
		state, requests, failures, rate := breaker.GetStats()
		event = event.
			Str("breaker_state", state.String()).
			Int64("breaker_requests", requests).
			Int64("breaker_failures", failures).
			Float64("breaker_failure_rate", rate)
	}
	event.Msg("Transcription complete")
	return t, nil
}

// transcribeChunk returns the fragment for chunk and a non-nil error only
// when the whole run must stop
func (o *Orchestrator) transcribeChunk(ctx context.Context, chunk *audio.Chunk, breaker *resilience.CircuitBreaker) (Fragment, error) {
	frag := Fragment{
		Index: chunk.Index,
		Start: chunk.Start,
		End:   chunk.End,
	}
	log := o.logger.With().Int("chunk", chunk.Index).Logger()

	if breaker != nil {
		if state := breaker.GetState(); state != resilience.StateClosed {
			log.Warn().
				Str("breaker", breaker.Name()).
				Str("state", state.String()).
				Msg("Circuit not closed, holding chunk")
		}
		if err := breaker.Wait(ctx); err != nil {
			return frag, apperrors.Wrap(apperrors.StageTranscribe, apperrors.KindCancelled, err, fmt.Sprintf("chunk %d cancelled", chunk.Index))
		}
	}
	start := time.Now()

	req := ChunkRequest{
		Index:      chunk.Index,
		Audio:      chunk.WAV(),
		MimeType:   "audio/wav",
		SampleRate: chunk.SampleRate,
		Channels:   chunk.Channels,
		Duration:   chunk.Duration(),
	}

	retry := *o.config.Retry
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		observability.RecordRetry(string(apperrors.StageTranscribe))
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Chunk transcription failed, retrying")
	}

	var text string
	attempts, err := resilience.Retry(ctx, func(ctx context.Context) error {
		t, err := o.attempt(ctx, req)
		if err != nil {
			return err
		}
		text = t
		return nil
	}, &retry, apperrors.Retryable)
	frag.Attempts = attempts

	if ctx.Err() != nil {
		if breaker != nil {
			// Release a half-open probe without judging the service
			breaker.RecordResult(true)
		}
		return frag, apperrors.Wrap(apperrors.StageTranscribe, apperrors.KindCancelled, ctx.Err(), fmt.Sprintf("chunk %d cancelled", chunk.Index))
	}

	kind := apperrors.KindOf(err)
	if breaker != nil {
		breaker.RecordResult(err == nil || kind == apperrors.KindInvalidInput)
		if err != nil && kind != apperrors.KindInvalidInput {
			observability.IncrementCircuitBreakerFailures(breaker.Name())
		}
	}

	if err == nil {
		frag.Text = text
		observability.RecordChunkRequest("success", time.Since(start))
		observability.RecordAudioBytes(int64(len(chunk.Payload)))
		log.Debug().
			Int("attempts", attempts).
			Dur("duration", time.Since(start)).
			Int("chars", len(text)).
			Msg("Chunk transcribed")
		return frag, nil
	}

	if kind == apperrors.KindAuthentication {
		frag.Failed = true
		frag.Error = err.Error()
		observability.RecordChunkRequest("aborted", time.Since(start))
		return frag, apperrors.WithStage(apperrors.StageTranscribe, err)
	}

	frag.Failed = true
	frag.Error = err.Error()
	observability.RecordChunkRequest("failed", time.Since(start))
	log.Error().
		Err(err).
		Str("kind", kind.String()).
		Int("attempts", attempts).
		Msg("Chunk transcription failed, continuing without it")
	return frag, nil
}

// attempt makes one bounded call. A per-attempt timeout is transient; the
// caller's own deadline or cancellation is passed through unchanged.
func (o *Orchestrator) attempt(ctx context.Context, req ChunkRequest) (string, error) {
	actx := ctx
	if o.config.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()
	}

	text, err := o.transcriber.Transcribe(actx, req)
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", err
	}
	if errors.Is(actx.Err(), context.DeadlineExceeded) {
		return "", apperrors.Transient(fmt.Errorf("attempt timed out after %s: %w", o.config.Timeout, err))
	}
	return "", err
}
