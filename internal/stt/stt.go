// Package stt holds the speech-to-text collaborators
package stt

import (
	"fmt"

	"github.com/lexiqai/meeting-summarizer/internal/config"
	"github.com/lexiqai/meeting-summarizer/internal/transcript"
)

// New returns the transcriber selected by TRANSCRIPTION_PROVIDER
func New(cfg *config.Config) (transcript.Transcriber, error) {
	switch cfg.TranscriptionProvider {
	case config.ProviderDeepgram:
		return NewDeepgramClient(cfg), nil
	case config.ProviderWhisper:
		return NewWhisperClient(cfg), nil
	}
	return nil, fmt.Errorf("unknown transcription provider %q", cfg.TranscriptionProvider)
}
