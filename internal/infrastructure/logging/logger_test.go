package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/nerrad567/gray-logic-tof/internal/infrastructure/config"
)

func TestNew_JSONFormat(t *testing.T) {
	cfg := config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	logger := New(cfg, "1.0.0")

	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNew_TextFormat(t *testing.T) {
	cfg := config.LoggingConfig{
		Level:  "debug",
		Format: "text",
		Output: "stderr",
	}

	logger := New(cfg, "1.0.0")

	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{name: "debug level", input: "debug", expected: slog.LevelDebug},
		{name: "info level", input: "info", expected: slog.LevelInfo},
		{name: "warn level", input: "warn", expected: slog.LevelWarn},
		{name: "warning level", input: "warning", expected: slog.LevelWarn},
		{name: "error level", input: "error", expected: slog.LevelError},
		{name: "unknown defaults to info", input: "verbose", expected: slog.LevelInfo},
		{name: "mixed case", input: "DeBuG", expected: slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	logger := Default()

	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("default logger should not enable debug")
	}

	logger.SetLevel("debug")

	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("SetLevel(debug) should enable debug logging")
	}
}

func TestSetLevel_SharedWithDerived(t *testing.T) {
	logger := Default()
	derived := logger.With("component", "camera")

	logger.SetLevel("error")

	if derived.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("derived logger should share the parent's level variable")
	}
}
