package transcript

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/meeting-summarizer/internal/apperrors"
	"github.com/lexiqai/meeting-summarizer/internal/audio"
	"github.com/lexiqai/meeting-summarizer/internal/resilience"
)

type transcribeFunc func(ctx context.Context, req ChunkRequest, attempt int) (string, error)

type fakeTranscriber struct {
	mu    sync.Mutex
	calls map[int]int
	order []int
	fn    transcribeFunc
}

func newFakeTranscriber(fn transcribeFunc) *fakeTranscriber {
	return &fakeTranscriber{calls: make(map[int]int), fn: fn}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, req ChunkRequest) (string, error) {
	f.mu.Lock()
	f.calls[req.Index]++
	attempt := f.calls[req.Index]
	f.order = append(f.order, req.Index)
	f.mu.Unlock()

	return f.fn(ctx, req, attempt)
}

func (f *fakeTranscriber) callsFor(index int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[index]
}

func (f *fakeTranscriber) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

var words = []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel"}

func echoIndex(ctx context.Context, req ChunkRequest, attempt int) (string, error) {
	return words[req.Index%len(words)], nil
}

// chunks returns a sequence of n one-second chunks
func chunks(t *testing.T, n int) *audio.Sequence {
	t.Helper()
	src, err := audio.NewSource(audio.FormatPCM16, 1000, 1, make([]byte, 2000*n))
	require.NoError(t, err)
	seq, err := audio.NewChunker(nil).Chunk(src, time.Second, 1<<20)
	require.NoError(t, err)
	return seq
}

func fastRetry() *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func newTestOrchestrator(tr Transcriber, cfg Config) *Orchestrator {
	if cfg.Retry == nil {
		cfg.Retry = fastRetry()
	}
	return NewOrchestrator(tr, cfg, zerolog.Nop())
}

func TestOrchestrator_AllChunksSucceed(t *testing.T) {
	fake := newFakeTranscriber(echoIndex)

	tr, err := newTestOrchestrator(fake, Config{}).Transcribe(context.Background(), chunks(t, 3))
	require.NoError(t, err)

	assert.Equal(t, "alpha bravo charlie", tr.Text)
	assert.False(t, tr.Partial)
	assert.False(t, tr.Cancelled)
	require.Len(t, tr.Fragments, 3)
	assert.Equal(t, time.Second, tr.Fragments[1].Start)
	assert.Equal(t, 2*time.Second, tr.Fragments[1].End)
	assert.Equal(t, []int{0, 1, 2}, fake.order)
}

func TestOrchestrator_RequestCarriesWAV(t *testing.T) {
	fake := newFakeTranscriber(func(ctx context.Context, req ChunkRequest, attempt int) (string, error) {
		src, err := audio.ParseWAV(req.Audio)
		if err != nil {
			return "", apperrors.InvalidInput(err)
		}
		if req.MimeType != "audio/wav" || src.Duration() != req.Duration {
			return "", apperrors.InvalidInput(errors.New("bad request"))
		}
		return "ok", nil
	})

	tr, err := newTestOrchestrator(fake, Config{}).Transcribe(context.Background(), chunks(t, 2))
	require.NoError(t, err)
	assert.Equal(t, "ok ok", tr.Text)
}

func TestOrchestrator_FailingChunkDegrades(t *testing.T) {
	fake := newFakeTranscriber(func(ctx context.Context, req ChunkRequest, attempt int) (string, error) {
		if req.Index == 1 {
			return "", apperrors.Transient(errors.New("503 service unavailable"))
		}
		return echoIndex(ctx, req, attempt)
	})

	tr, err := newTestOrchestrator(fake, Config{}).Transcribe(context.Background(), chunks(t, 3))
	require.NoError(t, err)

	assert.Equal(t, "alpha charlie", tr.Text)
	assert.True(t, tr.Partial)
	require.Len(t, tr.Fragments, 3)
	assert.Equal(t, "", tr.Fragments[1].Text)
	assert.True(t, tr.Fragments[1].Failed)
	assert.Equal(t, 3, tr.Fragments[1].Attempts)
	assert.NotEmpty(t, tr.Fragments[1].Error)
	assert.Equal(t, 3, fake.callsFor(1))
	assert.Equal(t, 1, fake.callsFor(2))
}

func TestOrchestrator_TransientThenSuccess(t *testing.T) {
	fake := newFakeTranscriber(func(ctx context.Context, req ChunkRequest, attempt int) (string, error) {
		if attempt < 3 {
			return "", apperrors.Transient(errors.New("429 rate limited"))
		}
		return echoIndex(ctx, req, attempt)
	})

	tr, err := newTestOrchestrator(fake, Config{}).Transcribe(context.Background(), chunks(t, 2))
	require.NoError(t, err)
	assert.Equal(t, "alpha bravo", tr.Text)
	assert.Equal(t, 3, tr.Fragments[0].Attempts)
	assert.False(t, tr.Partial)
}

func TestOrchestrator_InvalidInputIsNotRetried(t *testing.T) {
	fake := newFakeTranscriber(func(ctx context.Context, req ChunkRequest, attempt int) (string, error) {
		if req.Index == 0 {
			return "", apperrors.InvalidInput(errors.New("400 unsupported audio"))
		}
		return echoIndex(ctx, req, attempt)
	})

	tr, err := newTestOrchestrator(fake, Config{}).Transcribe(context.Background(), chunks(t, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, fake.callsFor(0))
	assert.True(t, tr.Fragments[0].Failed)
	assert.Equal(t, "bravo", tr.Text)
}

func TestOrchestrator_AuthenticationAborts(t *testing.T) {
	fake := newFakeTranscriber(func(ctx context.Context, req ChunkRequest, attempt int) (string, error) {
		if req.Index == 1 {
			return "", apperrors.Authentication(errors.New("401 invalid credentials"))
		}
		return echoIndex(ctx, req, attempt)
	})

	tr, err := newTestOrchestrator(fake, Config{}).Transcribe(context.Background(), chunks(t, 4))
	require.Error(t, err)

	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthentication))
	assert.Equal(t, apperrors.StageTranscribe, apperrors.StageOf(err))
	assert.Contains(t, err.Error(), "transcribe failed:")

	assert.Equal(t, 1, fake.callsFor(1), "authentication errors must not be retried")
	assert.Equal(t, 0, fake.callsFor(2), "no requests after an authentication failure")
	assert.Equal(t, 0, fake.callsFor(3))

	require.NotNil(t, tr)
	assert.Equal(t, "alpha", tr.Text)
	assert.True(t, tr.Partial)
}

func TestOrchestrator_AttemptTimeoutIsTransient(t *testing.T) {
	fake := newFakeTranscriber(func(ctx context.Context, req ChunkRequest, attempt int) (string, error) {
		if attempt == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return echoIndex(ctx, req, attempt)
	})

	tr, err := newTestOrchestrator(fake, Config{Timeout: 20 * time.Millisecond}).Transcribe(context.Background(), chunks(t, 1))
	require.NoError(t, err)
	assert.Equal(t, "alpha", tr.Text)
	assert.Equal(t, 2, tr.Fragments[0].Attempts)
}

func TestOrchestrator_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := newFakeTranscriber(func(ctx context.Context, req ChunkRequest, attempt int) (string, error) {
		if req.Index == 1 {
			cancel()
			<-ctx.Done()
			return "", ctx.Err()
		}
		return echoIndex(ctx, req, attempt)
	})

	tr, err := newTestOrchestrator(fake, Config{}).Transcribe(ctx, chunks(t, 5))
	require.Error(t, err)

	assert.True(t, apperrors.IsKind(err, apperrors.KindCancelled))
	require.NotNil(t, tr)
	assert.True(t, tr.Cancelled)
	assert.True(t, tr.Partial)
	assert.Equal(t, "alpha", tr.Text)
	assert.Equal(t, 2, fake.totalCalls(), "no chunk requests after cancellation")
}

func TestOrchestrator_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := newFakeTranscriber(echoIndex)
	tr, err := newTestOrchestrator(fake, Config{}).Transcribe(ctx, chunks(t, 3))

	assert.True(t, apperrors.IsKind(err, apperrors.KindCancelled))
	assert.True(t, tr.Cancelled)
	assert.Equal(t, 0, fake.totalCalls())
}

func TestOrchestrator_ConcurrentKeepsOrder(t *testing.T) {
	var mu sync.Mutex
	r := rand.New(rand.NewSource(7))

	fake := newFakeTranscriber(func(ctx context.Context, req ChunkRequest, attempt int) (string, error) {
		mu.Lock()
		delay := time.Duration(r.Intn(10)) * time.Millisecond
		mu.Unlock()

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return fmt.Sprintf("w%d", req.Index), nil
	})

	tr, err := newTestOrchestrator(fake, Config{Concurrency: 4}).Transcribe(context.Background(), chunks(t, 12))
	require.NoError(t, err)
	assert.Equal(t, "w0 w1 w2 w3 w4 w5 w6 w7 w8 w9 w10 w11", tr.Text)

	sequential, err := newTestOrchestrator(newFakeTranscriber(func(ctx context.Context, req ChunkRequest, attempt int) (string, error) {
		return fmt.Sprintf("w%d", req.Index), nil
	}), Config{}).Transcribe(context.Background(), chunks(t, 12))
	require.NoError(t, err)
	assert.Equal(t, sequential.Text, tr.Text)
}

func breakerFactory(cb *resilience.CircuitBreaker) func() *resilience.CircuitBreaker {
	return func() *resilience.CircuitBreaker { return cb }
}

func TestOrchestrator_HalfOpenBreakerSendsEveryChunk(t *testing.T) {
	fake := newFakeTranscriber(echoIndex)
	breaker := resilience.NewCircuitBreaker("stt", 1, 10*time.Millisecond)
	breaker.RecordResult(false)

	orch := newTestOrchestrator(fake, Config{Concurrency: 4, NewBreaker: breakerFactory(breaker)})
	tr, err := orch.Transcribe(context.Background(), chunks(t, 3))
	require.NoError(t, err)

	assert.Equal(t, "alpha bravo charlie", tr.Text)
	assert.Empty(t, tr.FailedChunks())
	assert.Equal(t, 3, fake.totalCalls())
	for _, f := range tr.Fragments {
		assert.Equal(t, 1, f.Attempts)
	}
	assert.Equal(t, resilience.StateClosed, breaker.GetState())
}

func TestOrchestrator_OpenBreakerHoldsChunksUntilRecovery(t *testing.T) {
	fake := newFakeTranscriber(func(ctx context.Context, req ChunkRequest, attempt int) (string, error) {
		if req.Index < 2 {
			return "", apperrors.Transient(errors.New("503 service unavailable"))
		}
		return echoIndex(ctx, req, attempt)
	})
	breaker := resilience.NewCircuitBreaker("stt", 2, 10*time.Millisecond)

	tr, err := newTestOrchestrator(fake, Config{NewBreaker: breakerFactory(breaker)}).Transcribe(context.Background(), chunks(t, 8))
	require.NoError(t, err)

	assert.Equal(t, "charlie delta echo foxtrot golf hotel", tr.Text)
	assert.Equal(t, []int{0, 1}, tr.FailedChunks())
	assert.Equal(t, 3, fake.callsFor(0))
	assert.Equal(t, 3, fake.callsFor(1))
	for i := 2; i < 8; i++ {
		assert.Equal(t, 1, fake.callsFor(i), "chunk %d must be sent once", i)
	}
	assert.Equal(t, resilience.StateClosed, breaker.GetState())
}

func TestOrchestrator_OpenBreakerRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	fake := newFakeTranscriber(echoIndex)
	breaker := resilience.NewCircuitBreaker("stt", 1, time.Hour)
	breaker.RecordResult(false)

	tr, err := newTestOrchestrator(fake, Config{NewBreaker: breakerFactory(breaker)}).Transcribe(ctx, chunks(t, 3))
	require.Error(t, err)

	assert.True(t, apperrors.IsKind(err, apperrors.KindCancelled))
	assert.True(t, tr.Cancelled)
	assert.Empty(t, tr.Fragments)
	assert.Equal(t, 0, fake.totalCalls())
}

func TestOrchestrator_BreakerPerRun(t *testing.T) {
	var made []*resilience.CircuitBreaker
	orch := newTestOrchestrator(newFakeTranscriber(echoIndex), Config{
		NewBreaker: func() *resilience.CircuitBreaker {
			cb := resilience.NewCircuitBreaker("stt", 1, time.Hour)
			made = append(made, cb)
			return cb
		},
	})

	first, err := orch.Transcribe(context.Background(), chunks(t, 2))
	require.NoError(t, err)
	second, err := orch.Transcribe(context.Background(), chunks(t, 2))
	require.NoError(t, err)

	require.Len(t, made, 2)
	assert.NotSame(t, made[0], made[1])
	assert.Equal(t, first, second)
}

func TestOrchestrator_EmptySequence(t *testing.T) {
	fake := newFakeTranscriber(echoIndex)
	tr, err := newTestOrchestrator(fake, Config{}).Transcribe(context.Background(), emptySource{})

	require.NoError(t, err)
	assert.Empty(t, tr.Fragments)
	assert.True(t, tr.Empty())
}

type emptySource struct{}

func (emptySource) Next() (*audio.Chunk, bool) { return nil, false }
