// Package transcript turns a chunk sequence into an ordered transcript by
// driving a speech-to-text collaborator one chunk at a time.
package transcript

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"
)

// ChunkRequest is one transcription request
type ChunkRequest struct {
	Index      int
	Audio      []byte // self-contained WAV file
	MimeType   string
	SampleRate int
	Channels   int
	Duration   time.Duration
}

// Transcriber is the speech-to-text collaborator. Errors should be
// classified with apperrors so the orchestrator can tell transient failures
// from rejected credentials or rejected input.
type Transcriber interface {
	Transcribe(ctx context.Context, req ChunkRequest) (string, error)
}

// Fragment is the transcription result for one chunk. Start and End encode
// as seconds.
type Fragment struct {
	Index    int
	Text     string
	Start    time.Duration
	End      time.Duration
	Attempts int
	Failed   bool
	Error    string
}

// fragmentRecord is the encoded form of a Fragment
type fragmentRecord struct {
	Index    int     `json:"index" yaml:"index"`
	Text     string  `json:"text" yaml:"text"`
	Start    float64 `json:"start_seconds" yaml:"start_seconds"`
	End      float64 `json:"end_seconds" yaml:"end_seconds"`
	Attempts int     `json:"attempts" yaml:"attempts"`
	Failed   bool    `json:"failed" yaml:"failed"`
	Error    string  `json:"error,omitempty" yaml:"error,omitempty"`
}

func (f Fragment) record() fragmentRecord {
	return fragmentRecord{
		Index:    f.Index,
		Text:     f.Text,
		Start:    f.Start.Seconds(),
		End:      f.End.Seconds(),
		Attempts: f.Attempts,
		Failed:   f.Failed,
		Error:    f.Error,
	}
}

// MarshalJSON implements json.Marshaler
func (f Fragment) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.record())
}

// UnmarshalJSON implements json.Unmarshaler
func (f *Fragment) UnmarshalJSON(data []byte) error {
	var r fragmentRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*f = Fragment{
		Index:    r.Index,
		Text:     r.Text,
		Start:    seconds(r.Start),
		End:      seconds(r.End),
		Attempts: r.Attempts,
		Failed:   r.Failed,
		Error:    r.Error,
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (f Fragment) MarshalYAML() (any, error) {
	return f.record(), nil
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// Transcript is the ordered combination of every fragment
type Transcript struct {
	Fragments []Fragment `json:"fragments" yaml:"fragments"`
	Text      string     `json:"text" yaml:"text"`
	Partial   bool       `json:"partial" yaml:"partial"`
	Cancelled bool       `json:"cancelled" yaml:"cancelled"`
}

// Empty reports whether there is no recognized text at all
func (t *Transcript) Empty() bool {
	return t == nil || strings.TrimSpace(t.Text) == ""
}

// FailedChunks returns the indices of error-flagged fragments
func (t *Transcript) FailedChunks() []int {
	var failed []int
	for _, f := range t.Fragments {
		if f.Failed {
			failed = append(failed, f.Index)
		}
	}
	return failed
}

// Join concatenates non-empty fragment texts with a single space, in the
// order given
func Join(fragments []Fragment) string {
	var b strings.Builder
	for _, f := range fragments {
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	}
	return b.String()
}
