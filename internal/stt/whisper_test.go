package stt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/meeting-summarizer/internal/apperrors"
	"github.com/lexiqai/meeting-summarizer/internal/config"
	"github.com/lexiqai/meeting-summarizer/internal/transcript"
)

func whisperServer(t *testing.T, handler http.HandlerFunc) *WhisperClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewWhisperClient(&config.Config{
		OpenAIAPIKey:  "sk-test",
		OpenAIBaseURL: srv.URL + "/v1",
		WhisperModel:  "whisper-1",
	})
}

func chunkRequest() transcript.ChunkRequest {
	return transcript.ChunkRequest{Index: 2, Audio: []byte("RIFF....WAVE"), MimeType: "audio/wav"}
}

func TestWhisperClient_Transcribe(t *testing.T) {
	client := whisperServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/audio/transcriptions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "chunk-0002.wav", header.Filename)
		body, _ := io.ReadAll(file)
		assert.Equal(t, "RIFF....WAVE", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"  we agreed to ship on friday  "}`))
	})

	text, err := client.Transcribe(context.Background(), chunkRequest())
	require.NoError(t, err)
	assert.Equal(t, "we agreed to ship on friday", text)
}

func TestWhisperClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   apperrors.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, apperrors.KindAuthentication},
		{"rate limited", http.StatusTooManyRequests, apperrors.KindTransient},
		{"server error", http.StatusBadGateway, apperrors.KindTransient},
		{"bad audio", http.StatusBadRequest, apperrors.KindInvalidInput},
		{"too large", http.StatusRequestEntityTooLarge, apperrors.KindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := whisperServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"request failed","type":"invalid_request_error"}}`))
			})

			_, err := client.Transcribe(context.Background(), chunkRequest())
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err), err.Error())
		})
	}
}

func TestWhisperClient_EmptyAudio(t *testing.T) {
	client := NewWhisperClient(&config.Config{OpenAIAPIKey: "sk-test"})

	_, err := client.Transcribe(context.Background(), transcript.ChunkRequest{})
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidInput))
}

func TestNew(t *testing.T) {
	tr, err := New(&config.Config{TranscriptionProvider: config.ProviderWhisper, OpenAIAPIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &WhisperClient{}, tr)

	tr, err = New(&config.Config{TranscriptionProvider: config.ProviderDeepgram, DeepgramAPIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &DeepgramClient{}, tr)

	_, err = New(&config.Config{TranscriptionProvider: "assemblyai"})
	assert.Error(t, err)
}
