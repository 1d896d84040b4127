package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Options{Level: slog.LevelInfo, Format: FormatJSON})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Debug("hidden")
	logger.With("component", "worker").Info("worker started", "utterance", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "worker started" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["component"] != "worker" {
		t.Errorf("component = %v", entry["component"])
	}
}

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Options{Level: slog.LevelDebug})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Debug("visible", "key", "value")
	if !strings.Contains(buf.String(), "visible") || !strings.Contains(buf.String(), "key=value") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, Options{Format: "xml"}); err == nil {
		t.Error("New() with unknown format succeeded")
	}
}

func TestCharmLevel(t *testing.T) {
	tests := []struct {
		in   slog.Level
		want string
	}{
		{slog.LevelDebug, "debug"},
		{slog.LevelInfo, "info"},
		{slog.LevelWarn, "warn"},
		{slog.LevelError, "error"},
		{slog.LevelError + 4, "error"},
	}
	for _, tt := range tests {
		if got := charmLevel(tt.in).String(); got != tt.want {
			t.Errorf("charmLevel(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
