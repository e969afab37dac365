// Package output renders a run's transcript and summary to files.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/lexiqai/meeting-summarizer/internal/apperrors"
	"github.com/lexiqai/meeting-summarizer/internal/config"
	"github.com/lexiqai/meeting-summarizer/internal/pipeline"
	"github.com/lexiqai/meeting-summarizer/internal/transcript"
)

// Writer writes the transcript file and one summary file per format
type Writer struct {
	dir     string
	formats []string
	logger  zerolog.Logger
}

// NewWriter creates a writer for dir. Formats are config format names.
func NewWriter(dir string, formats []string, logger zerolog.Logger) *Writer {
	return &Writer{dir: dir, formats: formats, logger: logger}
}

// Write renders res under base and returns the written paths. Partial and
// placeholder results are written like any other.
func (w *Writer) Write(base string, res *pipeline.Result) ([]string, error) {
	if res == nil {
		return nil, apperrors.New(apperrors.StageOutput, apperrors.KindInvalidInput, "nothing to write")
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, apperrors.Wrap(apperrors.StageOutput, apperrors.KindUnknown, err, "create output dir")
	}

	var paths []string
	write := func(suffix string, render func(path string) error) error {
		path := filepath.Join(w.dir, base+suffix)
		if err := render(path); err != nil {
			return apperrors.Wrap(apperrors.StageOutput, apperrors.KindUnknown, err, "write "+path)
		}
		paths = append(paths, path)
		w.logger.Info().Str("path", path).Msg("Output written")
		return nil
	}

	if err := write(".transcript.txt", writeBytes([]byte(TranscriptText(res.Transcript)))); err != nil {
		return paths, err
	}

	for _, format := range w.formats {
		var err error
		switch format {
		case config.FormatMarkdown:
			err = write(".summary.md", writeBytes([]byte(Markdown(base, res))))
		case config.FormatJSON:
			err = write(".summary.json", func(path string) error {
				data, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return err
				}
				return os.WriteFile(path, append(data, '\n'), 0644)
			})
		case config.FormatYAML:
			err = write(".summary.yaml", func(path string) error {
				data, err := yaml.Marshal(res)
				if err != nil {
					return err
				}
				return os.WriteFile(path, data, 0644)
			})
		case config.FormatDOCX:
			err = write(".summary.docx", func(path string) error {
				return writeDocx(base, res, path)
			})
		default:
			err = apperrors.New(apperrors.StageOutput, apperrors.KindInvalidInput, fmt.Sprintf("unknown output format %q", format))
		}
		if err != nil {
			return paths, err
		}
	}
	return paths, nil
}

func writeBytes(data []byte) func(path string) error {
	return func(path string) error {
		return os.WriteFile(path, data, 0644)
	}
}

// GapText marks a chunk whose transcription failed
func GapText(index int) string {
	return fmt.Sprintf("[chunk %d unavailable]", index+1)
}

// TranscriptText renders one line per fragment with its start time. Failed
// chunks appear as gaps so missing audio is visible.
func TranscriptText(t *transcript.Transcript) string {
	if t == nil {
		return ""
	}

	var b strings.Builder
	for _, f := range t.Fragments {
		text := strings.TrimSpace(f.Text)
		switch {
		case f.Failed:
			text = GapText(f.Index)
		case text == "":
			continue
		}
		fmt.Fprintf(&b, "[%s] %s\n", clock(f.Start), text)
	}
	if t.Cancelled {
		b.WriteString("[transcription cancelled]\n")
	}
	return b.String()
}

// clock formats d as hh:mm:ss
func clock(d time.Duration) string {
	s := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}

// notes lists the degradations a reader should know about
func notes(res *pipeline.Result) []string {
	var out []string
	if res.Summary.Placeholder {
		out = append(out, "No model summary is available for this recording.")
	}
	if res.SummaryError != "" {
		out = append(out, "Summarization error: "+res.SummaryError)
	}
	if res.Summary.Truncated {
		out = append(out, "The transcript was too long for the summarization model; the end of the meeting was not summarized.")
	}
	if res.Transcript != nil {
		if failed := res.Transcript.FailedChunks(); len(failed) > 0 {
			labels := make([]string, len(failed))
			for i, idx := range failed {
				labels[i] = fmt.Sprintf("%d", idx+1)
			}
			out = append(out, fmt.Sprintf("Audio chunks %s could not be transcribed.", strings.Join(labels, ", ")))
		}
		if res.Transcript.Cancelled {
			out = append(out, "Transcription was cancelled before the end of the recording.")
		}
	}
	return out
}
