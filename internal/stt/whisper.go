package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/lexiqai/meeting-summarizer/internal/apperrors"
	"github.com/lexiqai/meeting-summarizer/internal/config"
	"github.com/lexiqai/meeting-summarizer/internal/observability"
	"github.com/lexiqai/meeting-summarizer/internal/transcript"
)

// WhisperClient transcribes chunks with the OpenAI audio transcription API
type WhisperClient struct {
	client   *openai.Client
	model    string
	language string
	logger   zerolog.Logger
}

// NewWhisperClient creates a new Whisper client
func NewWhisperClient(cfg *config.Config) *WhisperClient {
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}

	model := cfg.WhisperModel
	if model == "" {
		model = openai.Whisper1
	}

	return &WhisperClient{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    model,
		language: cfg.WhisperLanguage,
		logger:   observability.WithComponent("whisper"),
	}
}

// Transcribe sends one chunk and returns its transcript
func (w *WhisperClient) Transcribe(ctx context.Context, req transcript.ChunkRequest) (string, error) {
	if len(req.Audio) == 0 {
		return "", apperrors.InvalidInput(errors.New("whisper: empty audio"))
	}

	w.logger.Debug().
		Int("chunk", req.Index).
		Int("bytes", len(req.Audio)).
		Str("model", w.model).
		Msg("Sending chunk to Whisper")

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model: w.model,
		// The file name only tells the API which decoder to use
		FilePath: fmt.Sprintf("chunk-%04d.wav", req.Index),
		Reader:   bytes.NewReader(req.Audio),
		Language: w.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", ClassifyOpenAIError(err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Name returns the provider name
func (w *WhisperClient) Name() string { return config.ProviderWhisper }

// ClassifyOpenAIError maps go-openai errors onto apperrors kinds by HTTP status
func ClassifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return apperrors.FromStatus(apiErr.HTTPStatusCode, fmt.Errorf("openai: %w", err))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return apperrors.FromStatus(reqErr.HTTPStatusCode, fmt.Errorf("openai: %w", err))
	}
	return apperrors.FromMessage(fmt.Errorf("openai: %w", err))
}
