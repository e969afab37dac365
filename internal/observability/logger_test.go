package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Error("Expected distinct run IDs")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("Expected a UUID, got %q", a)
	}
}

func TestWithRunID(t *testing.T) {
	InitLogger("debug", false)

	var buf bytes.Buffer
	base := zerolog.New(&buf)

	explicit := WithRunID(base, "run-1")
	explicit.Info().Msg("explicit")
	if !strings.Contains(buf.String(), `"run_id":"run-1"`) {
		t.Errorf("Expected run_id run-1 in %q", buf.String())
	}

	buf.Reset()
	generated := WithRunID(base, "")
	generated.Info().Msg("generated")
	var line struct {
		RunID string `json:"run_id"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Expected a JSON log line, got %q", buf.String())
	}
	if _, err := uuid.Parse(line.RunID); err != nil {
		t.Errorf("Expected a generated UUID run_id, got %q", line.RunID)
	}
}

func TestWithComponent(t *testing.T) {
	InitLogger("debug", false)

	logger := WithComponent("stt")
	logger.Debug().Msg("component")
}
