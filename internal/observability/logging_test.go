package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name       string
		config     LogConfig
		wantFormat string
	}{
		{name: "default config", config: LogConfig{}, wantFormat: "json"},
		{name: "text format", config: LogConfig{Format: "text"}, wantFormat: "text"},
		{name: "auto on buffer", config: LogConfig{Format: "auto", Output: &bytes.Buffer{}}, wantFormat: "json"},
		{name: "debug level", config: LogConfig{Level: "debug", Format: "JSON"}, wantFormat: "json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.config.Output == nil {
				tt.config.Output = &bytes.Buffer{}
			}
			logger := NewLogger(tt.config)
			if logger.Slog() == nil {
				t.Fatal("expected slog logger")
			}
			if logger.Format() != tt.wantFormat {
				t.Errorf("Format() = %q, want %q", logger.Format(), tt.wantFormat)
			}
		})
	}
}

func TestLoggerIncludesContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})

	ctx := WithBackend(WithRunID(context.Background(), "run-123"), "openai")
	logger.Info(ctx, "index built", "vectors", 12)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if record["run_id"] != "run-123" || record["backend"] != "openai" {
		t.Errorf("record = %v", record)
	}
	if record["vectors"] != float64(12) {
		t.Errorf("vectors = %v", record["vectors"])
	}
	if RunID(ctx) != "run-123" {
		t.Errorf("RunID() = %q", RunID(ctx))
	}
}

func TestSlogCallsIncludeContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})

	ctx := WithBackend(WithRunID(context.Background(), "run-456"), "cohere")
	logger.Slog().InfoContext(ctx, "backend evaluated", "backend", "explicit")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if record["run_id"] != "run-456" {
		t.Errorf("run_id = %v", record["run_id"])
	}
	if record["backend"] != "explicit" {
		t.Errorf("explicit backend attr should win, got %v", record["backend"])
	}
	if strings.Count(buf.String(), `"backend"`) != 1 {
		t.Errorf("backend written more than once: %s", buf.String())
	}
}

func TestLoggerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf, RedactPatterns: []string{`hunter\d+`}})

	secret := "sk-" + strings.Repeat("a", 40)
	logger.Warn(context.Background(), "calling with "+secret,
		"api_key", "plain-value",
		"detail", "password was hunter22",
		"err", errors.New("Bearer abcdefghijklmnopqrstuvwxyz"),
	)
	out := buf.String()
	for _, leaked := range []string{secret, "plain-value", "hunter22", "abcdefghijklmnopqrstuvwxyz"} {
		if strings.Contains(out, leaked) {
			t.Errorf("log output leaked %q: %s", leaked, out)
		}
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("expected redaction marker: %s", out)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "text", Output: &buf})
	logger.Info(context.Background(), "hidden")
	logger.Error(context.Background(), "shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestWithFieldsRedacts(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf}).WithFields("token", "abc")
	logger.Info(context.Background(), "hello")
	if strings.Contains(buf.String(), `"abc"`) {
		t.Errorf("WithFields leaked token: %s", buf.String())
	}
}

func TestLogLevelFromString(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for input, want := range tests {
		if got := LogLevelFromString(input); got != want {
			t.Errorf("LogLevelFromString(%q) = %v, want %v", input, got, want)
		}
	}
}
