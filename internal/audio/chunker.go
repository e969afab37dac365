package audio

import (
	"time"

	"github.com/lexiqai/meeting-summarizer/internal/apperrors"
)

// Chunk is a contiguous slice of a source submitted as one transcription
// request. Payload aliases the source buffer and must not be modified.
type Chunk struct {
	Index      int
	StartByte  int
	EndByte    int
	Start      time.Duration
	End        time.Duration
	Payload    []byte
	SampleRate int
	Channels   int
}

// Duration returns the playback length of the chunk
func (c *Chunk) Duration() time.Duration { return c.End - c.Start }

// WAV returns the payload wrapped in a WAV header so it can be decoded on
// its own
func (c *Chunk) WAV() []byte {
	return EncodeWAV(c.SampleRate, c.Channels, c.Payload)
}

// Chunker splits sources into bounded chunks
type Chunker struct {
	silence *SilenceDetector
}

// NewChunker creates a chunker. With a nil or disabled detector every cut
// lands exactly on the size or duration limit, which may split a word
// across two chunks.
func NewChunker(silence *SilenceDetector) *Chunker {
	return &Chunker{silence: silence}
}

// Chunk returns a lazy sequence over src in which every chunk lasts at most
// maxDuration and carries at most maxBytes of payload.
func (c *Chunker) Chunk(src *Source, maxDuration time.Duration, maxBytes int) (*Sequence, error) {
	if src == nil || src.Frames() == 0 {
		return nil, apperrors.InvalidAudio(apperrors.StageChunk, "source has no samples")
	}
	if src.sampleRate <= 0 || len(src.data)%src.BlockAlign() != 0 {
		return nil, apperrors.InvalidAudio(apperrors.StageChunk, "malformed source layout")
	}

	byDuration := int(int64(maxDuration) * int64(src.sampleRate) / int64(time.Second))
	byBytes := maxBytes / src.BlockAlign()
	maxFrames := min(byDuration, byBytes)
	if maxFrames < 1 {
		return nil, apperrors.InvalidAudio(apperrors.StageChunk,
			"limits of %s and %d bytes do not fit a single %d-byte sample frame", maxDuration, maxBytes, src.BlockAlign())
	}

	seq := &Sequence{
		src:       src,
		maxFrames: maxFrames,
	}
	if c.silence.Enabled() {
		seq.silence = c.silence
		seq.window = min(c.silence.WindowLen(src.sampleRate), maxFrames/2)
	}
	return seq, nil
}

// Sequence is a finite, restartable, pull-based sequence of chunks. Only
// the current chunk header is allocated; payloads alias the source.
type Sequence struct {
	src       *Source
	maxFrames int
	silence   *SilenceDetector
	window    int

	pos   int // next sample frame
	index int
}

// Next returns the next chunk, or false once the source is exhausted
func (s *Sequence) Next() (*Chunk, bool) {
	total := s.src.Frames()
	if s.pos >= total {
		return nil, false
	}

	start := s.pos
	end := s.cutPoint(start, total)

	align := s.src.BlockAlign()
	chunk := &Chunk{
		Index:      s.index,
		StartByte:  start * align,
		EndByte:    end * align,
		Start:      framesToDuration(start, s.src.sampleRate),
		End:        framesToDuration(end, s.src.sampleRate),
		Payload:    s.src.data[start*align : end*align],
		SampleRate: s.src.sampleRate,
		Channels:   s.src.channels,
	}

	s.pos = end
	s.index++
	return chunk, true
}

// cutPoint returns the exclusive end frame of the chunk starting at start
func (s *Sequence) cutPoint(start, total int) int {
	hard := start + s.maxFrames
	if hard >= total {
		return total
	}
	if s.silence == nil || s.window <= 0 {
		return hard
	}

	from := max(start, hard-s.window)
	if cut, ok := s.silence.FindCut(s.src.data, s.src.channels, s.src.sampleRate, from, hard); ok && cut > start && cut <= hard {
		return cut
	}
	return hard
}

// Reset rewinds the sequence to the first chunk
func (s *Sequence) Reset() {
	s.pos = 0
	s.index = 0
}

// Source returns the source being chunked
func (s *Sequence) Source() *Source { return s.src }

// MaxFrames returns the effective per-chunk limit in sample frames
func (s *Sequence) MaxFrames() int { return s.maxFrames }
