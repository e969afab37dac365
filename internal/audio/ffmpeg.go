package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/lexiqai/meeting-summarizer/internal/apperrors"
)

// Executor runs external commands
type Executor interface {
	Execute(ctx context.Context, name string, args ...string) (string, error)
}

// stderrTail bounds how much ffmpeg diagnostic output is kept
const stderrTail = 4096

type execExecutor struct{}

// NewExecutor returns an Executor backed by os/exec
func NewExecutor() Executor {
	return &execExecutor{}
}

// Execute runs an external command with the given arguments
func (e *execExecutor) Execute(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout bytes.Buffer
	stderr := NewTailBuffer(stderrTail)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		// ffmpeg reports the reason on stderr
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return "", fmt.Errorf("command '%s' failed: %w\nstderr: %s", name, err, lastLine(stderrStr))
		}
		return "", fmt.Errorf("command '%s' failed: %w", name, err)
	}

	return stdout.String(), nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Transcode converts any ffmpeg-readable input to a 16kHz mono PCM16 WAV.
// -vn drops video streams so recordings from screen capture work too.
func Transcode(ctx context.Context, executor Executor, ffmpegPath, inPath, outPath string) error {
	if executor == nil {
		executor = NewExecutor()
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", inPath,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-y",
		outPath,
	}

	if _, err := executor.Execute(ctx, ffmpegPath, args...); err != nil {
		if ctx.Err() != nil {
			return apperrors.Wrap(apperrors.StageLoad, apperrors.KindCancelled, ctx.Err(), "transcode cancelled")
		}
		return apperrors.Wrap(apperrors.StageLoad, apperrors.KindInvalidAudio, err, "ffmpeg transcode")
	}
	return nil
}
