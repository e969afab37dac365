package summary

import (
	"context"
	"strings"
	"unicode/utf8"
)

// TokenCounter measures text in the summarization model's token units
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// EstimateCounter approximates BPE token counts at four characters per
// token, never returning fewer tokens than words
type EstimateCounter struct{}

// CountTokens returns the estimated token count of text
func (EstimateCounter) CountTokens(ctx context.Context, text string) (int, error) {
	return estimateTokens(text), nil
}

func estimateTokens(text string) int {
	words := len(strings.Fields(text))
	byChars := (utf8.RuneCountInString(text) + 3) / 4
	return max(words, byChars)
}

// TokenCounterFunc adapts a function to TokenCounter
type TokenCounterFunc func(ctx context.Context, text string) (int, error)

// CountTokens calls f
func (f TokenCounterFunc) CountTokens(ctx context.Context, text string) (int, error) {
	return f(ctx, text)
}
