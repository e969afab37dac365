package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/lexiqai/meeting-summarizer/internal/apperrors"
)

// Provider names
const (
	ProviderDeepgram = "deepgram"
	ProviderWhisper  = "whisper"
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
)

// Output format names
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatDOCX     = "docx"
)

// Config holds all configuration for the meeting summarizer
type Config struct {
	// Transcription provider: deepgram or whisper
	TranscriptionProvider string `envconfig:"TRANSCRIPTION_PROVIDER" default:"deepgram"`

	// Deepgram STT API configuration
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY"`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"` // nova-2, nova-3, enhanced, base
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`  // Language code (en, es, fr, etc.)

	// OpenAI configuration, shared by Whisper and the chat summarizer
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `envconfig:"OPENAI_BASE_URL" default:""` // Optional; for proxies and compatible APIs
	WhisperModel    string `envconfig:"WHISPER_MODEL" default:"whisper-1"`
	WhisperLanguage string `envconfig:"WHISPER_LANGUAGE" default:""` // Empty lets Whisper detect the language
	OpenAIModel     string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`

	// Summarization provider: openai or gemini
	SummarizationProvider string `envconfig:"SUMMARIZATION_PROVIDER" default:"openai"`

	// Gemini configuration
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`

	// Chunking configuration
	ChunkMaxDuration    time.Duration `envconfig:"CHUNK_MAX_DURATION" default:"10m"`
	ChunkMaxBytes       int           `envconfig:"CHUNK_MAX_BYTES" default:"25165824"` // 24 MiB, under the 25 MB Whisper upload limit
	SilenceDetection    bool          `envconfig:"SILENCE_DETECTION" default:"true"`
	VADEnergyThreshold  float64       `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"` // RMS energy below which a frame is silence
	VADSilenceFrames    int           `envconfig:"VAD_SILENCE_FRAMES" default:"10"`      // Frames of silence required for a cut
	VADFrameMs          int           `envconfig:"VAD_FRAME_MS" default:"20"`
	SilenceSearchWindow time.Duration `envconfig:"SILENCE_SEARCH_WINDOW" default:"5s"`

	// Transcription orchestration
	TranscribeConcurrency int           `envconfig:"TRANSCRIBE_CONCURRENCY" default:"1"`
	TranscribeTimeout     time.Duration `envconfig:"TRANSCRIBE_TIMEOUT" default:"120s"`

	// Summarization
	SummarizeTimeout  time.Duration `envconfig:"SUMMARIZE_TIMEOUT" default:"180s"`
	TokenCountTimeout time.Duration `envconfig:"TOKEN_COUNT_TIMEOUT" default:"30s"` // Per call, for token counting services
	TokenBudget       int           `envconfig:"TOKEN_BUDGET" default:"100000"`
	TokenMargin       int           `envconfig:"TOKEN_MARGIN" default:"4000"` // Reserved for instructions and the response

	// Resilience configuration
	RetryMaxAttempts           int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"` // Maximum attempts per call
	RetryInitialBackoff        time.Duration `envconfig:"RETRY_INITIAL_BACKOFF" default:"500ms"`
	RetryMaxBackoff            time.Duration `envconfig:"RETRY_MAX_BACKOFF" default:"10s"`
	CircuitBreakerMaxFailures  int           `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"` // Consecutive chunk failures before opening circuit
	CircuitBreakerResetTimeout time.Duration `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30s"`

	// Audio loading
	FFmpegPath string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`

	// Output configuration
	OutputDir     string `envconfig:"OUTPUT_DIR" default:"output"`
	OutputFormats string `envconfig:"OUTPUT_FORMATS" default:"markdown,json"` // Comma separated: markdown, json, yaml, docx

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics in watch mode
	MetricsAddr    string `envconfig:"METRICS_ADDR" default:":9090"`
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.StageConfig, apperrors.KindInvalidInput, err, "read environment")
	}

	cfg.TranscriptionProvider = strings.ToLower(strings.TrimSpace(cfg.TranscriptionProvider))
	cfg.SummarizationProvider = strings.ToLower(strings.TrimSpace(cfg.SummarizationProvider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks provider selection, the API keys those providers need and
// that every limit is usable
func (c *Config) Validate() error {
	switch c.TranscriptionProvider {
	case ProviderDeepgram:
		if c.DeepgramAPIKey == "" {
			return invalid("DEEPGRAM_API_KEY is required for the deepgram transcription provider")
		}
	case ProviderWhisper:
		if c.OpenAIAPIKey == "" {
			return invalid("OPENAI_API_KEY is required for the whisper transcription provider")
		}
	default:
		return invalid("unknown TRANSCRIPTION_PROVIDER %q (want deepgram or whisper)", c.TranscriptionProvider)
	}

	switch c.SummarizationProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return invalid("OPENAI_API_KEY is required for the openai summarization provider")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return invalid("GEMINI_API_KEY is required for the gemini summarization provider")
		}
	default:
		return invalid("unknown SUMMARIZATION_PROVIDER %q (want openai or gemini)", c.SummarizationProvider)
	}

	positive := []struct {
		name  string
		value int64
	}{
		{"CHUNK_MAX_DURATION", int64(c.ChunkMaxDuration)},
		{"CHUNK_MAX_BYTES", int64(c.ChunkMaxBytes)},
		{"TRANSCRIBE_CONCURRENCY", int64(c.TranscribeConcurrency)},
		{"TRANSCRIBE_TIMEOUT", int64(c.TranscribeTimeout)},
		{"SUMMARIZE_TIMEOUT", int64(c.SummarizeTimeout)},
		{"TOKEN_COUNT_TIMEOUT", int64(c.TokenCountTimeout)},
		{"TOKEN_BUDGET", int64(c.TokenBudget)},
		{"RETRY_MAX_ATTEMPTS", int64(c.RetryMaxAttempts)},
		{"VAD_FRAME_MS", int64(c.VADFrameMs)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return invalid("%s must be greater than zero", p.name)
		}
	}

	if c.TokenMargin < 0 || c.TokenMargin >= c.TokenBudget {
		return invalid("TOKEN_MARGIN must be between 0 and TOKEN_BUDGET (%d)", c.TokenBudget)
	}

	if _, err := c.Formats(); err != nil {
		return err
	}
	return nil
}

// Formats returns the parsed OUTPUT_FORMATS list
func (c *Config) Formats() ([]string, error) {
	var formats []string
	seen := make(map[string]bool)
	for _, f := range strings.Split(c.OutputFormats, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		switch f {
		case FormatMarkdown, FormatJSON, FormatYAML, FormatDOCX:
		default:
			return nil, invalid("unknown output format %q in OUTPUT_FORMATS", f)
		}
		seen[f] = true
		formats = append(formats, f)
	}
	return formats, nil
}

// invalid reports a configuration problem as a single-line stage error
func invalid(format string, args ...any) error {
	return apperrors.New(apperrors.StageConfig, apperrors.KindInvalidInput, fmt.Sprintf(format, args...))
}
