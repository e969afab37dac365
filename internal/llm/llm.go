// Package llm holds the summarization collaborators
package llm

import (
	"context"
	"fmt"

	"github.com/lexiqai/meeting-summarizer/internal/config"
	"github.com/lexiqai/meeting-summarizer/internal/summary"
)

// Summarizer sends one summarization request and returns the raw model
// response
type Summarizer interface {
	Summarize(ctx context.Context, req *summary.Request) (string, error)
	Name() string
}

// New returns the summarizer selected by SUMMARIZATION_PROVIDER together
// with the token counter that matches its model
func New(ctx context.Context, cfg *config.Config) (Summarizer, summary.TokenCounter, error) {
	switch cfg.SummarizationProvider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg), summary.EstimateCounter{}, nil
	case config.ProviderGemini:
		client, err := NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	}
	return nil, nil, fmt.Errorf("unknown summarization provider %q", cfg.SummarizationProvider)
}
