package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lexiqai/meeting-summarizer/internal/apperrors"
)

// Format tags recorded on a Source
const (
	FormatPCM16 = "wav/pcm_s16le"
	FormatMulaw = "wav/mulaw"
)

// Source is decoded 16-bit little-endian PCM audio. A Source is immutable
// once created; Data returns the backing buffer, which callers must not
// modify.
type Source struct {
	path       string
	format     string
	sampleRate int
	channels   int
	data       []byte
}

// NewSource creates a source from interleaved PCM16 bytes
func NewSource(format string, sampleRate, channels int, pcm []byte) (*Source, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, apperrors.InvalidAudio(apperrors.StageLoad, "invalid layout: %d channels at %d Hz", channels, sampleRate)
	}
	if len(pcm)%(channels*2) != 0 {
		return nil, apperrors.InvalidAudio(apperrors.StageLoad, "payload of %d bytes is not a whole number of %d-byte frames", len(pcm), channels*2)
	}
	return &Source{
		format:     format,
		sampleRate: sampleRate,
		channels:   channels,
		data:       pcm,
	}, nil
}

// Path returns the file the source was loaded from, if any
func (s *Source) Path() string { return s.path }

// Format returns the format tag
func (s *Source) Format() string { return s.format }

// SampleRate returns samples per second per channel
func (s *Source) SampleRate() int { return s.sampleRate }

// Channels returns the interleaved channel count
func (s *Source) Channels() int { return s.channels }

// BlockAlign returns the size of one sample frame in bytes
func (s *Source) BlockAlign() int { return s.channels * 2 }

// Data returns the PCM16 payload
func (s *Source) Data() []byte { return s.data }

// Frames returns the number of sample frames
func (s *Source) Frames() int {
	if s.channels <= 0 {
		return 0
	}
	return len(s.data) / s.BlockAlign()
}

// Duration returns the playback length
func (s *Source) Duration() time.Duration {
	return framesToDuration(s.Frames(), s.sampleRate)
}

func framesToDuration(frames, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(frames) * int64(time.Second) / int64(sampleRate))
}

// LoadOptions controls how non-WAV inputs are normalized
type LoadOptions struct {
	FFmpegPath string   // defaults to "ffmpeg"
	Executor   Executor // defaults to an os/exec backed executor
	TempDir    string   // defaults to os.TempDir()
}

// supportedExtensions lists the containers the loader accepts. WAV is parsed
// directly, everything else goes through ffmpeg.
var supportedExtensions = []string{".wav", ".mp3", ".m4a", ".aac", ".ogg", ".opus", ".flac", ".webm", ".mp4", ".mov", ".mkv"}

// IsSupported reports whether path has a supported audio or video extension
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range supportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Load reads an audio file into a Source. Non-WAV containers are transcoded
// to 16kHz mono PCM16 with ffmpeg first.
func Load(ctx context.Context, path string, opts LoadOptions) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StageLoad, apperrors.KindInvalidAudio, err, "open audio file")
	}
	if info.IsDir() {
		return nil, apperrors.InvalidAudio(apperrors.StageLoad, "%s is a directory", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".wav" {
		src, err := readWAVFile(path)
		if err != nil {
			return nil, err
		}
		src.path = path
		return src, nil
	}

	tmp, err := os.CreateTemp(opts.TempDir, "summarizer-*.wav")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StageLoad, apperrors.KindUnknown, err, "create temp file")
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := Transcode(ctx, opts.Executor, opts.FFmpegPath, path, tmpPath); err != nil {
		return nil, err
	}

	src, err := readWAVFile(tmpPath)
	if err != nil {
		return nil, err
	}
	src.path = path
	src.format = "ffmpeg/" + strings.TrimPrefix(ext, ".")
	return src, nil
}

func readWAVFile(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.Wrap(apperrors.StageLoad, apperrors.KindInvalidAudio, err, "open audio file")
		}
		return nil, apperrors.Wrap(apperrors.StageLoad, apperrors.KindUnknown, err, "read "+path)
	}
	return ParseWAV(data)
}
