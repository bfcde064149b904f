package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Str("source", "query.log").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "source=query.log") {
		t.Errorf("output = %q, want warn message with field", out)
	}
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New("chatty", &buf)

	logger.Debug().Msg("debug")
	logger.Info().Msg("info")

	out := buf.String()
	if strings.Contains(out, "debug") {
		t.Errorf("debug message logged at default level: %q", out)
	}
	if !strings.Contains(out, "info") {
		t.Errorf("output = %q, want info message", out)
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := JSON("debug", &buf)

	logger.Debug().Int("parsed", 2).Msg("processing complete")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["message"] != "processing complete" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["parsed"] != float64(2) {
		t.Errorf("parsed = %v, want 2", entry["parsed"])
	}
}
