package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/lexiqai/meeting-summarizer/internal/apperrors"
	"github.com/lexiqai/meeting-summarizer/internal/config"
	"github.com/lexiqai/meeting-summarizer/internal/observability"
	"github.com/lexiqai/meeting-summarizer/internal/summary"
)

// GeminiClient summarizes with Gemini GenerateContent and counts tokens with
// the model's own tokenizer
type GeminiClient struct {
	client *genai.Client
	model  string
	logger zerolog.Logger
}

// NewGeminiClient creates a Gemini API client
func NewGeminiClient(ctx context.Context, cfg *config.Config) (*GeminiClient, error) {
	return newGeminiClient(ctx, cfg, genai.HTTPOptions{})
}

func newGeminiClient(ctx context.Context, cfg *config.Config, httpOptions genai.HTTPOptions) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.GeminiAPIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: httpOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := cfg.GeminiModel
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &GeminiClient{
		client: client,
		model:  model,
		logger: observability.WithComponent("gemini"),
	}, nil
}

// Summarize asks for a JSON response with the instructions as the system
// instruction
func (c *GeminiClient) Summarize(ctx context.Context, req *summary.Request) (string, error) {
	c.logger.Debug().
		Str("model", c.model).
		Int("tokens", req.Tokens).
		Bool("truncated", req.Truncated).
		Msg("Sending summarization request")

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt()), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.Instructions, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", classifyGeminiError(err)
	}

	if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
		var text strings.Builder
		for _, part := range result.Candidates[0].Content.Parts {
			if part != nil && part.Text != "" {
				text.WriteString(part.Text)
			}
		}
		return strings.TrimSpace(text.String()), nil
	}

	return "", apperrors.Malformed(errors.New("gemini: empty response"))
}

// CountTokens returns the model's token count for text
func (c *GeminiClient) CountTokens(ctx context.Context, text string) (int, error) {
	resp, err := c.client.Models.CountTokens(ctx, c.model, genai.Text(text), nil)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, classifyGeminiError(err)
	}
	return int(resp.TotalTokens), nil
}

// Name returns the provider name
func (c *GeminiClient) Name() string { return config.ProviderGemini }

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return apperrors.FromStatus(apiErr.Code, fmt.Errorf("gemini: %w", err))
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code != 0 {
		return apperrors.FromStatus(apiErrPtr.Code, fmt.Errorf("gemini: %w", err))
	}
	return apperrors.FromMessage(fmt.Errorf("gemini: %w", err))
}
