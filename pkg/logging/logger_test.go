package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		enable slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"warn level", "warn", slog.LevelWarn},
		{"warning alias", "WARNING", slog.LevelWarn},
		{"default info", "", slog.LevelInfo},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			if !logger.Enabled(ctx, tt.enable) {
				t.Fatalf("expected level %s to be enabled", tt.enable)
			}
		})
	}
}

func TestDefaultLogger(t *testing.T) {
	logger := Default()
	logger.Info("test message", "key", "value")

	ctx := context.Background()
	if !logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("Default() should enable info level")
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("Default() should not enable debug level")
	}
	if logger == Default() {
		t.Error("Default() returned the same instance twice")
	}
}

func TestNewWithOptionsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOptions(Options{Level: "info", Output: &buf})
	logger.With("sender_id", "whatsapp:+27820000000").Info("turn handled", "state", "share_location")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected json output, got %q: %v", buf.String(), err)
	}
	if record["sender_id"] != "whatsapp:+27820000000" {
		t.Fatalf("expected sender attribute, got %v", record["sender_id"])
	}
	if record["state"] != "share_location" {
		t.Fatalf("expected state attribute, got %v", record["state"])
	}
}

func TestNewWithOptionsText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOptions(Options{Level: "debug", Format: "text", Output: &buf})
	logger.Debug("hello", "k", "v")
	if !strings.Contains(buf.String(), "k=v") {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}

func TestWithOnNilLogger(t *testing.T) {
	var logger *Logger
	if child := logger.With("a", 1); child == nil || child.Logger == nil {
		t.Fatal("expected usable child logger")
	}
}
