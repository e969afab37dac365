package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/lexiqai/meeting-summarizer/internal/apperrors"
	"github.com/lexiqai/meeting-summarizer/internal/resilience"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TRANSCRIPTION_PROVIDER", "deepgram")
	t.Setenv("SUMMARIZATION_PROVIDER", "openai")
	t.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	t.Setenv("OPENAI_API_KEY", "test-openai-key")
}

func TestLoad(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}
	if cfg.OpenAIAPIKey != "test-openai-key" {
		t.Errorf("Expected OpenAIAPIKey 'test-openai-key', got '%s'", cfg.OpenAIAPIKey)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("DEEPGRAM_API_KEY", "")

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("Expected error when the transcription key is missing")
	}

	want := "config failed: DEEPGRAM_API_KEY is required for the deepgram transcription provider"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
	if !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Errorf("Expected an invalid input error, got %v", apperrors.KindOf(err))
	}
}

func TestLoad_MalformedValue(t *testing.T) {
	setRequired(t)
	t.Setenv("TOKEN_BUDGET", "lots")

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("Expected error for a non-numeric TOKEN_BUDGET")
	}
	if apperrors.StageOf(err) != apperrors.StageConfig {
		t.Errorf("Expected stage config, got %q", apperrors.StageOf(err))
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.DeepgramModel != "nova-2" {
		t.Errorf("Expected DeepgramModel 'nova-2', got '%s'", cfg.DeepgramModel)
	}
	if cfg.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("Expected OpenAIModel 'gpt-4o-mini', got '%s'", cfg.OpenAIModel)
	}
	if cfg.ChunkMaxDuration != 10*time.Minute {
		t.Errorf("Expected ChunkMaxDuration 10m, got %v", cfg.ChunkMaxDuration)
	}
	if cfg.ChunkMaxBytes != 24<<20 {
		t.Errorf("Expected ChunkMaxBytes 24 MiB, got %d", cfg.ChunkMaxBytes)
	}
	if !cfg.SilenceDetection {
		t.Error("Expected silence detection to be enabled by default")
	}
	if cfg.TranscribeConcurrency != 1 {
		t.Errorf("Expected TranscribeConcurrency 1, got %d", cfg.TranscribeConcurrency)
	}
	if cfg.TokenBudget != 100000 || cfg.TokenMargin != 4000 {
		t.Errorf("Expected token budget 100000/4000, got %d/%d", cfg.TokenBudget, cfg.TokenMargin)
	}
	if cfg.RetryMaxAttempts != 3 {
		t.Errorf("Expected RetryMaxAttempts 3, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected LogLevel 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("Expected MetricsAddr ':9090', got '%s'", cfg.MetricsAddr)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CHUNK_MAX_DURATION", "30s")
	t.Setenv("TRANSCRIBE_CONCURRENCY", "4")
	t.Setenv("SILENCE_DETECTION", "false")
	t.Setenv("OUTPUT_FORMATS", "yaml,docx")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.ChunkMaxDuration != 30*time.Second {
		t.Errorf("Expected ChunkMaxDuration 30s, got %v", cfg.ChunkMaxDuration)
	}
	if cfg.TranscribeConcurrency != 4 {
		t.Errorf("Expected TranscribeConcurrency 4, got %d", cfg.TranscribeConcurrency)
	}
	if cfg.SilenceDetection {
		t.Error("Expected silence detection to be disabled")
	}
}

func TestValidate_Providers(t *testing.T) {
	tests := []struct {
		name    string
		cfg     func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"whisper with openai key", func(c *Config) { c.TranscriptionProvider = ProviderWhisper; c.DeepgramAPIKey = "" }, false},
		{"whisper without openai key", func(c *Config) { c.TranscriptionProvider = ProviderWhisper; c.OpenAIAPIKey = "" }, true},
		{"gemini without key", func(c *Config) { c.SummarizationProvider = ProviderGemini }, true},
		{"gemini with key", func(c *Config) { c.SummarizationProvider = ProviderGemini; c.GeminiAPIKey = "g" }, false},
		{"unknown transcription provider", func(c *Config) { c.TranscriptionProvider = "vosk" }, true},
		{"unknown summarization provider", func(c *Config) { c.SummarizationProvider = "local" }, true},
		{"zero chunk bytes", func(c *Config) { c.ChunkMaxBytes = 0 }, true},
		{"margin equals budget", func(c *Config) { c.TokenMargin = c.TokenBudget }, true},
		{"negative margin", func(c *Config) { c.TokenMargin = -1 }, true},
		{"unknown output format", func(c *Config) { c.OutputFormats = "markdown,pdf" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.cfg(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFormats(t *testing.T) {
	cfg := validConfig()
	cfg.OutputFormats = " Markdown, yaml,,markdown ,DOCX"

	formats, err := cfg.Formats()
	if err != nil {
		t.Fatalf("Formats() failed: %v", err)
	}
	want := []string{FormatMarkdown, FormatYAML, FormatDOCX}
	if !reflect.DeepEqual(formats, want) {
		t.Errorf("Expected %v, got %v", want, formats)
	}
}

func TestPipelineConfig(t *testing.T) {
	cfg := validConfig()
	cfg.TranscribeConcurrency = 3
	cfg.VADFrameMs = 30

	pc := cfg.PipelineConfig()

	if pc.ChunkMaxDuration != cfg.ChunkMaxDuration || pc.ChunkMaxBytes != cfg.ChunkMaxBytes {
		t.Error("Expected chunk limits to be copied")
	}
	if pc.Silence.FrameDuration != 30*time.Millisecond {
		t.Errorf("Expected 30ms silence frames, got %v", pc.Silence.FrameDuration)
	}
	if pc.Transcription.Concurrency != 3 {
		t.Errorf("Expected concurrency 3, got %d", pc.Transcription.Concurrency)
	}
	if pc.Transcription.Retry.MaxAttempts != cfg.RetryMaxAttempts {
		t.Errorf("Expected %d attempts, got %d", cfg.RetryMaxAttempts, pc.Transcription.Retry.MaxAttempts)
	}
	if pc.Transcription.NewBreaker == nil {
		t.Fatal("Expected a breaker factory")
	}
	first, second := pc.Transcription.NewBreaker(), pc.Transcription.NewBreaker()
	if first == nil || first.Name() != ProviderDeepgram {
		t.Error("Expected a breaker named after the transcription provider")
	}
	if first == second {
		t.Error("Expected a fresh breaker for every run")
	}
	if pc.TokenBudget != cfg.TokenBudget || pc.TokenMargin != cfg.TokenMargin {
		t.Error("Expected token budget to be copied")
	}
	if pc.TokenCountTimeout != cfg.TokenCountTimeout {
		t.Errorf("Expected token count timeout %v, got %v", cfg.TokenCountTimeout, pc.TokenCountTimeout)
	}
	if pc.SummarizeTimeout != cfg.SummarizeTimeout {
		t.Errorf("Expected summarize timeout %v, got %v", cfg.SummarizeTimeout, pc.SummarizeTimeout)
	}
}

func TestCircuitBreaker(t *testing.T) {
	cfg := validConfig()
	cfg.CircuitBreakerMaxFailures = 1

	cb := cfg.CircuitBreaker("stt")
	cb.RecordResult(false)
	if cb.GetState() != resilience.StateOpen {
		t.Errorf("Expected open breaker after one failure, got %v", cb.GetState())
	}

	cfg.CircuitBreakerMaxFailures = 0
	if cfg.CircuitBreaker("stt") != nil {
		t.Error("Expected no breaker when the failure limit is zero")
	}
}

func validConfig() *Config {
	return &Config{
		TranscriptionProvider:      ProviderDeepgram,
		SummarizationProvider:      ProviderOpenAI,
		DeepgramAPIKey:             "dg",
		OpenAIAPIKey:               "sk",
		ChunkMaxDuration:           10 * time.Minute,
		ChunkMaxBytes:              24 << 20,
		SilenceDetection:           true,
		VADEnergyThreshold:         500,
		VADSilenceFrames:           10,
		VADFrameMs:                 20,
		SilenceSearchWindow:        5 * time.Second,
		TranscribeConcurrency:      1,
		TranscribeTimeout:          2 * time.Minute,
		SummarizeTimeout:           3 * time.Minute,
		TokenCountTimeout:          30 * time.Second,
		TokenBudget:                100000,
		TokenMargin:                4000,
		RetryMaxAttempts:           3,
		RetryInitialBackoff:        500 * time.Millisecond,
		RetryMaxBackoff:            10 * time.Second,
		CircuitBreakerMaxFailures:  5,
		CircuitBreakerResetTimeout: 30 * time.Second,
		OutputFormats:              "markdown,json",
	}
}
