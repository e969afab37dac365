package config

import (
	"time"

	"github.com/lexiqai/meeting-summarizer/internal/audio"
	"github.com/lexiqai/meeting-summarizer/internal/observability"
	"github.com/lexiqai/meeting-summarizer/internal/pipeline"
	"github.com/lexiqai/meeting-summarizer/internal/resilience"
	"github.com/lexiqai/meeting-summarizer/internal/transcript"
)

// PipelineConfig derives the explicit pipeline configuration. Every
// transcription run gets its own circuit breaker.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		ChunkMaxDuration: c.ChunkMaxDuration,
		ChunkMaxBytes:    c.ChunkMaxBytes,
		Silence:          c.SilenceConfig(),
		Transcription: transcript.Config{
			Concurrency: c.TranscribeConcurrency,
			Timeout:     c.TranscribeTimeout,
			Retry:       c.RetryConfig(),
			NewBreaker:  func() *resilience.CircuitBreaker {
				return c.CircuitBreaker(c.TranscriptionProvider)
			},
		},
		TokenBudget:       c.TokenBudget,
		TokenMargin:       c.TokenMargin,
		TokenCountTimeout: c.TokenCountTimeout,
		SummarizeTimeout:  c.SummarizeTimeout,
		SummarizeRetry:    c.RetryConfig(),
	}
}

// SilenceConfig returns the chunker's silence detection settings
func (c *Config) SilenceConfig() *audio.SilenceConfig {
	return &audio.SilenceConfig{
		Enabled:          c.SilenceDetection,
		EnergyThreshold:  c.VADEnergyThreshold,
		MinSilenceFrames: c.VADSilenceFrames,
		FrameDuration:    time.Duration(c.VADFrameMs) * time.Millisecond,
		SearchWindow:     c.SilenceSearchWindow,
	}
}

// RetryConfig returns the per-call retry policy
func (c *Config) RetryConfig() *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:       c.RetryMaxAttempts,
		InitialBackoff:    c.RetryInitialBackoff,
		MaxBackoff:        c.RetryMaxBackoff,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// CircuitBreaker returns a breaker for service that reports its state to
// the metrics registry. A non-positive failure limit disables it.
func (c *Config) CircuitBreaker(service string) *resilience.CircuitBreaker {
	if c.CircuitBreakerMaxFailures <= 0 {
		return nil
	}
	cb := resilience.NewCircuitBreaker(service, c.CircuitBreakerMaxFailures, c.CircuitBreakerResetTimeout)
	cb.OnStateChange(func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
		logger := observability.GetLogger()
		logger.Warn().
			Str("breaker", name).
			Str("state", state.String()).
			Msg("Circuit breaker state changed")
	})
	return cb
}
