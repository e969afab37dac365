package summary

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/lexiqai/meeting-summarizer/internal/apperrors"
	"github.com/lexiqai/meeting-summarizer/internal/observability"
	"github.com/lexiqai/meeting-summarizer/internal/resilience"
	"github.com/lexiqai/meeting-summarizer/internal/transcript"
)

// Instructions is the fixed system prompt for every summarization request
const Instructions = `You summarize meeting transcripts. Respond with a single JSON object and nothing else.
The object must match this schema:
` + Schema + `
Rules:
- "summary" is a short narrative of what was discussed, in the language of the transcript.
- "decisions" lists each decision that was made, in the order it was made.
- "action_items" lists each agreed task in order. Use an empty string for an unknown owner or deadline.
- Use empty lists when there are no decisions or action items. Do not invent content.`

// truncatedNote is appended to the instructions when the transcript was cut
const truncatedNote = `
The transcript was cut short to fit the context window; the end of the meeting is missing. Summarize only what is present.`

// Schema is the response schema hint sent with every request
const Schema = `{"summary": string, "decisions": [string], "action_items": [{"description": string, "owner": string, "deadline": string}]}`

// Builder builds summarization requests that fit a token budget. A Builder
// is used by one run at a time.
type Builder struct {
	counter      TokenCounter
	margin       int
	countTimeout time.Duration
	countRetry   *resilience.RetryConfig
	estimating   bool // the counter gave up; the rest of the run uses the estimate
	logger       zerolog.Logger
}

// NewBuilder creates a builder that reserves margin tokens of every budget
// for the instructions and the response
func NewBuilder(counter TokenCounter, margin int, logger zerolog.Logger) *Builder {
	if counter == nil {
		counter = EstimateCounter{}
	}
	return &Builder{
		counter:    counter,
		margin:     margin,
		countRetry: resilience.DefaultRetryConfig(),
		logger:     logger,
	}
}

// WithCountLimits bounds every token count call by timeout and retries
// transient failures with retry. A zero timeout leaves calls unbounded and a
// nil retry keeps the current policy.
func (b *Builder) WithCountLimits(timeout time.Duration, retry *resilience.RetryConfig) *Builder {
	b.countTimeout = timeout
	if retry != nil {
		b.countRetry = retry
	}
	return b
}

// Build returns a request for t. When the transcript exceeds the budget less
// the margin it keeps the longest word-aligned prefix that fits and drops
// the rest, marking the request truncated. Splitting a long meeting across
// several requests and merging the summaries would slot in here.
func (b *Builder) Build(ctx context.Context, t *transcript.Transcript, tokenBudget int) (*Request, error) {
	available := tokenBudget - b.margin
	if available <= 0 {
		return nil, apperrors.New(apperrors.StageBuild, apperrors.KindInvalidInput,
			fmt.Sprintf("token budget %d leaves no room after a %d token margin", tokenBudget, b.margin))
	}

	text := ""
	if t != nil {
		text = t.Text
	}

	total, err := b.count(ctx, text)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Transcript:     text,
		Instructions:   Instructions,
		Schema:         Schema,
		OriginalTokens: total,
		Tokens:         total,
	}
	if total <= available {
		return req, nil
	}

	prefix, tokens, err := b.truncate(ctx, text, available)
	if err != nil {
		return nil, err
	}

	req.Transcript = prefix
	req.Tokens = tokens
	req.Truncated = true
	req.Instructions = Instructions + truncatedNote

	b.logger.Warn().
		Int("tokens", total).
		Int("available", available).
		Int("kept_tokens", tokens).
		Int("kept_chars", len(prefix)).
		Msg("Transcript exceeds token budget, dropping the tail")
	return req, nil
}

// truncate binary searches for the longest word prefix whose count fits
func (b *Builder) truncate(ctx context.Context, text string, available int) (string, int, error) {
	ends := wordEnds(text)

	// Invariant: prefix of lo words fits, prefix of hi+1 words does not
	lo, hi := 0, len(ends)-1
	loTokens := 0
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		n, err := b.count(ctx, text[:ends[mid-1]])
		if err != nil {
			return "", 0, err
		}
		if n <= available {
			lo, loTokens = mid, n
		} else {
			hi = mid - 1
		}
	}

	if lo == 0 {
		return "", 0, nil
	}
	return text[:ends[lo-1]], loTokens, nil
}

// count measures text with the counter. When the counter keeps failing
// transiently the builder falls back to the estimate instead of failing the
// run.
func (b *Builder) count(ctx context.Context, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	if b.estimating {
		return estimateTokens(text), nil
	}

	retry := *b.countRetry
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		observability.RecordRetry(string(apperrors.StageBuild))
		b.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Token count failed, retrying")
	}

	var n int
	attempts, err := resilience.Retry(ctx, func(ctx context.Context) error {
		c, err := b.countOnce(ctx, text)
		if err != nil {
			return err
		}
		n = c
		return nil
	}, &retry, apperrors.Retryable)
	if err == nil {
		return n, nil
	}

	if ctx.Err() != nil {
		return 0, apperrors.Wrap(apperrors.StageBuild, apperrors.KindCancelled, ctx.Err(), "token counting cancelled")
	}
	if apperrors.Retryable(err) {
		b.estimating = true
		b.logger.Warn().
			Err(err).
			Int("attempts", attempts).
			Msg("Token counter unavailable, using the estimate")
		return estimateTokens(text), nil
	}
	return 0, apperrors.WithStage(apperrors.StageBuild, fmt.Errorf("count tokens: %w", err))
}

// countOnce makes one bounded counter call. A per-call timeout is transient.
func (b *Builder) countOnce(ctx context.Context, text string) (int, error) {
	cctx := ctx
	if b.countTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, b.countTimeout)
		defer cancel()
	}

	n, err := b.counter.CountTokens(cctx, text)
	if err == nil {
		return n, nil
	}
	if ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return 0, apperrors.Transient(fmt.Errorf("token count timed out after %s: %w", b.countTimeout, err))
	}
	return 0, err
}

// wordEnds returns the byte offset just past each word of text
func wordEnds(text string) []int {
	var ends []int
	inWord := false
	for i, r := range text {
		space := unicode.IsSpace(r)
		if inWord && space {
			ends = append(ends, i)
		}
		inWord = !space
	}
	if inWord {
		ends = append(ends, len(text))
	}
	return ends
}
