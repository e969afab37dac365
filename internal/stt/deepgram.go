package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/meeting-summarizer/internal/apperrors"
	"github.com/lexiqai/meeting-summarizer/internal/config"
	"github.com/lexiqai/meeting-summarizer/internal/observability"
	"github.com/lexiqai/meeting-summarizer/internal/transcript"
)

// streamFunc submits one audio file and returns the best transcript
type streamFunc func(ctx context.Context, audio io.Reader) (string, error)

// DeepgramClient transcribes chunks with Deepgram's prerecorded REST API
type DeepgramClient struct {
	model    string
	language string
	stream   streamFunc
	logger   zerolog.Logger
}

// NewDeepgramClient creates a new Deepgram prerecorded client
func NewDeepgramClient(cfg *config.Config) *DeepgramClient {
	c := client.NewREST(cfg.DeepgramAPIKey, &interfaces.ClientOptions{})
	dg := api.New(c)

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       cfg.DeepgramModel,
		Language:    cfg.DeepgramLanguage,
		Punctuate:   true,
		SmartFormat: true,
	}

	stream := func(ctx context.Context, audio io.Reader) (string, error) {
		res, err := dg.FromStream(ctx, audio, options)
		if err != nil {
			return "", err
		}
		if res == nil || res.Results == nil || len(res.Results.Channels) == 0 ||
			len(res.Results.Channels[0].Alternatives) == 0 {
			// No speech detected
			return "", nil
		}
		return res.Results.Channels[0].Alternatives[0].Transcript, nil
	}

	return newDeepgramClient(cfg, stream)
}

func newDeepgramClient(cfg *config.Config, stream streamFunc) *DeepgramClient {
	return &DeepgramClient{
		model:    cfg.DeepgramModel,
		language: cfg.DeepgramLanguage,
		stream:   stream,
		logger:   observability.WithComponent("deepgram"),
	}
}

// Transcribe sends one chunk and returns its transcript
func (d *DeepgramClient) Transcribe(ctx context.Context, req transcript.ChunkRequest) (string, error) {
	if len(req.Audio) == 0 {
		return "", apperrors.InvalidInput(errors.New("deepgram: empty audio"))
	}

	d.logger.Debug().
		Int("chunk", req.Index).
		Int("bytes", len(req.Audio)).
		Str("model", d.model).
		Msg("Sending chunk to Deepgram")

	text, err := d.stream(ctx, bytes.NewReader(req.Audio))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", classifyDeepgramError(err)
	}
	return strings.TrimSpace(text), nil
}

// Name returns the provider name
func (d *DeepgramClient) Name() string { return config.ProviderDeepgram }

// classifyDeepgramError maps SDK failures, which only surface the HTTP
// status and the Deepgram error code in the message, onto apperrors kinds
func classifyDeepgramError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "invalid_auth"), strings.Contains(msg, "insufficient_permissions"):
		return apperrors.Authentication(fmt.Errorf("deepgram: %w", err))
	case strings.Contains(msg, "bad_request"), strings.Contains(msg, "unsupported data"),
		strings.Contains(msg, "corrupt or unsupported"):
		return apperrors.InvalidInput(fmt.Errorf("deepgram: %w", err))
	}
	return apperrors.FromMessage(fmt.Errorf("deepgram: %w", err))
}
