package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestLoggerWritesJSONAndHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()
	SetLevel("warn")
	defer SetLevel("info")

	Logger().Info("dropped")
	Logger().Warn("kept", "request_id", "req-1")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["msg"] != "kept" || entry["request_id"] != "req-1" || entry["level"] != "WARN" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestSetLevelUnknownFallsBackToInfo(t *testing.T) {
	SetLevel("loud")
	defer SetLevel("info")
	if !Logger().Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info level should be enabled")
	}
}
