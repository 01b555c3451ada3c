package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shotdeck/internal/config"
	"shotdeck/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "debug"

	logger, err := NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Info("hello", String(FieldTaskID, "abc"))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "shotdeck.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", data, err)
	}
	if entry["msg"] != "hello" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
	if entry["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", entry["level"])
	}
	if entry[FieldTaskID] != "abc" {
		t.Fatalf("expected task_id attr, got %v", entry[FieldTaskID])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatal("expected ts key")
	}
}

func TestJSONHandlerRendersDurationsAsMillis(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, lvl, false))
	logger.Info("done", Duration("elapsed", 1500*time.Millisecond))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["elapsed_ms"] != float64(1500) {
		t.Fatalf("expected elapsed_ms=1500, got %v", entry["elapsed_ms"])
	}
}

func TestPrettyHandlerSubjectAndComponent(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))
	logger = NewComponentLogger(logger, "worker")

	logger.Info("task completed",
		String(FieldProjectID, "p-1"),
		String(FieldTaskID, "0123456789abcdef"),
		Int("outputs", 2),
	)

	line := buf.String()
	for _, want := range []string{"INFO", "[task 01234567]", "worker: task completed", "outputs=2"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "project_id=") {
		t.Fatalf("project id should be folded into task subject: %q", line)
	}
}

func TestPrettyHandlerQuotesAndGroups(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false)).WithGroup("fal")
	logger.Warn("request failed", String("model", "fal ai/flux"), Error(errors.New("boom")))

	line := buf.String()
	if !strings.Contains(line, `fal.model="fal ai/flux"`) {
		t.Fatalf("expected grouped quoted attr in %q", line)
	}
	if !strings.Contains(line, "fal.error=boom") {
		t.Fatalf("expected error attr in %q", line)
	}
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))
	logger.Info("quiet")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	base := slog.New(newJSONHandler(&buf, lvl, false))

	ctx := services.WithProjectID(context.Background(), "proj")
	ctx = services.WithRequestID(ctx, "req-9")
	WithContext(ctx, base).Info("scoped")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[FieldProjectID] != "proj" || entry[FieldCorrelationID] != "req-9" {
		t.Fatalf("missing context fields: %v", entry)
	}
}

func TestErrorWithContextDefaults(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, lvl, false))
	ErrorWithContext(logger, "task failed", "task_failed", String(FieldErrorHint, "check fal key"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[FieldEventType] != "task_failed" {
		t.Fatalf("unexpected event type: %v", entry[FieldEventType])
	}
	if entry[FieldErrorHint] != "check fal key" {
		t.Fatalf("caller hint should win: %v", entry[FieldErrorHint])
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should be disabled")
	}
}
