package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/lexiqai/meeting-summarizer/internal/apperrors"
	"github.com/lexiqai/meeting-summarizer/internal/config"
	"github.com/lexiqai/meeting-summarizer/internal/observability"
	"github.com/lexiqai/meeting-summarizer/internal/stt"
	"github.com/lexiqai/meeting-summarizer/internal/summary"
)

// OpenAIClient summarizes with the chat completions API in JSON mode
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

// NewOpenAIClient creates a new OpenAI chat client
func NewOpenAIClient(cfg *config.Config) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}

	model := cfg.OpenAIModel
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: observability.WithComponent("openai"),
	}
}

// Summarize sends the instructions as the system message and the transcript
// as the user message
func (c *OpenAIClient) Summarize(ctx context.Context, req *summary.Request) (string, error) {
	c.logger.Debug().
		Str("model", c.model).
		Int("tokens", req.Tokens).
		Bool("truncated", req.Truncated).
		Msg("Sending summarization request")

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.Instructions},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt()},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", stt.ClassifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", apperrors.Malformed(errors.New("openai: response has no choices"))
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		c.logger.Warn().Msg("Summarization response hit the output token limit")
	}
	return strings.TrimSpace(choice.Message.Content), nil
}

// Name returns the provider name
func (c *OpenAIClient) Name() string { return config.ProviderOpenAI }
